package match

import "testing"

func TestNormalize(t *testing.T) {
	tc := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain ascii unchanged", in: "Song Title", want: "Song Title"},
		{name: "strips acute accents", in: "Beyoncé", want: "Beyonce"},
		{name: "strips umlauts", in: "Motörhead", want: "Motorhead"},
		{name: "strips cedilla", in: "Façade", want: "Facade"},
		{name: "empty string", in: "", want: ""},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSimplify(t *testing.T) {
	tc := []struct {
		name string
		in   string
		want string
	}{
		{name: "dash suffix", in: "Song Title - Remastered 2011", want: "Song Title"},
		{name: "parenthetical suffix", in: "Greatest Hits (Deluxe)", want: "Greatest Hits"},
		{name: "bracket suffix", in: "Anthem [Live]", want: "Anthem"},
		{name: "earliest separator wins", in: "Title (Live) - Edit", want: "Title"},
		{name: "no separator", in: "Plain Title", want: "Plain Title"},
		{name: "leading separator", in: "- odd", want: ""},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := Simplify(tt.in); got != tt.want {
				t.Errorf("Simplify(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeSimplifyIdempotent(t *testing.T) {
	inputs := []string{
		"Song Title - Remastered",
		"Beyoncé (Deluxe)",
		"Motörhead [Live]",
		"",
		"Plain",
	}

	for _, in := range inputs {
		once := Normalize(Simplify(in))
		twice := Normalize(Simplify(once))
		if once != twice {
			t.Errorf("Normalize(Simplify) not idempotent for %q: %q != %q", in, once, twice)
		}
	}
}

func TestArtistsOverlap(t *testing.T) {
	tc := []struct {
		name      string
		candidate []string
		reference []string
		want      bool
	}{
		{name: "shared artist", candidate: []string{"Band Y"}, reference: []string{"Band Y"}, want: true},
		{name: "case insensitive", candidate: []string{"band y"}, reference: []string{"Band Y"}, want: true},
		{name: "overlap among several", candidate: []string{"A", "B"}, reference: []string{"C", "B"}, want: true},
		{name: "no overlap", candidate: []string{"A"}, reference: []string{"B"}, want: false},
		{name: "empty candidate", candidate: nil, reference: []string{"A"}, want: false},
		{name: "empty reference", candidate: []string{"A"}, reference: nil, want: false},
		{name: "simplified qualifier", candidate: []string{"Band Y (Official)"}, reference: []string{"Band Y"}, want: true},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := ArtistsOverlap(tt.candidate, tt.reference); got != tt.want {
				t.Errorf("ArtistsOverlap(%v, %v) = %v, want %v", tt.candidate, tt.reference, got, tt.want)
			}
		})
	}
}

func TestAlbumSimilar(t *testing.T) {
	t.Run("deluxe edition matches base album", func(t *testing.T) {
		// "greatest hits" vs "greatest hits" after simplification
		if !AlbumSimilar("Greatest Hits (Deluxe)", "Greatest Hits", []string{"Band Y"}, []string{"Band Y"}, 0.6) {
			t.Error("expected deluxe edition to match base album")
		}
	})

	t.Run("similar names above threshold", func(t *testing.T) {
		if !AlbumSimilar("Greatest Hits Vol. 1", "Greatest Hits", []string{"Band Y"}, []string{"Band Y"}, 0.6) {
			t.Error("expected similar names to match")
		}
	})

	t.Run("artist mismatch rejects", func(t *testing.T) {
		if AlbumSimilar("Greatest Hits", "Greatest Hits", []string{"Band Y"}, []string{"Band Z"}, 0.6) {
			t.Error("expected artist mismatch to reject match")
		}
	})

	t.Run("dissimilar names reject", func(t *testing.T) {
		if AlbumSimilar("Quiet Storms", "Loud Anthems", []string{"Band Y"}, []string{"Band Y"}, 0.6) {
			t.Error("expected dissimilar names to reject match")
		}
	})

	t.Run("symmetric verdict", func(t *testing.T) {
		pairs := [][2]string{
			{"Greatest Hits (Deluxe)", "Greatest Hits"},
			{"Abbey Road", "Abbey Roads"},
			{"Quiet Storms", "Loud Anthems"},
		}
		for _, p := range pairs {
			fwd := AlbumSimilar(p[0], p[1], []string{"X"}, []string{"X"}, 0.6)
			rev := AlbumSimilar(p[1], p[0], []string{"X"}, []string{"X"}, 0.6)
			if fwd != rev {
				t.Errorf("AlbumSimilar not symmetric for %q / %q: %v vs %v", p[0], p[1], fwd, rev)
			}
		}
	})
}

func TestTrackMatches(t *testing.T) {
	tc := []struct {
		name          string
		sourceName    string
		candidateName string
		sourceISRC    string
		candidateISRC string
		want          bool
	}{
		{name: "isrc short circuit", sourceName: "A", candidateName: "Completely Different", sourceISRC: "USX123", candidateISRC: "USX123", want: true},
		{name: "isrc mismatch rejects despite names", sourceName: "Same", candidateName: "Same", sourceISRC: "USX123", candidateISRC: "USX999", want: false},
		{name: "name equality when no isrc", sourceName: "Song A", candidateName: "song a", want: true},
		{name: "version qualifier ignored", sourceName: "Song A - Radio Edit", candidateName: "Song A", want: true},
		{name: "accent folded", sourceName: "Café Blues", candidateName: "Cafe Blues", want: true},
		{name: "different titles reject", sourceName: "Song A", candidateName: "Song B", want: false},
		{name: "one sided isrc falls back to name", sourceName: "Song A", candidateName: "Song A", sourceISRC: "USX123", want: true},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got := TrackMatches(tt.sourceName, tt.candidateName, tt.sourceISRC, tt.candidateISRC)
			if got != tt.want {
				t.Errorf("TrackMatches(%q, %q, %q, %q) = %v, want %v",
					tt.sourceName, tt.candidateName, tt.sourceISRC, tt.candidateISRC, got, tt.want)
			}
		})
	}
}

func TestRatio(t *testing.T) {
	tc := []struct {
		name string
		a    string
		b    string
		want float64
	}{
		{name: "equal strings", a: "abc", b: "abc", want: 1},
		{name: "both empty", a: "", b: "", want: 1},
		{name: "one empty", a: "abc", b: "", want: 0},
		{name: "disjoint", a: "abc", b: "xyz", want: 0},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := Ratio(tt.a, tt.b); got != tt.want {
				t.Errorf("Ratio(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}

	t.Run("symmetric", func(t *testing.T) {
		if Ratio("greatest hits", "greatest hits vol 1") != Ratio("greatest hits vol 1", "greatest hits") {
			t.Error("expected Ratio to be symmetric")
		}
	})

	t.Run("partial overlap in range", func(t *testing.T) {
		r := Ratio("greatest hits", "greatest hits vol 1")
		if r <= 0.6 || r >= 1 {
			t.Errorf("expected ratio in (0.6, 1), got %v", r)
		}
	})
}
