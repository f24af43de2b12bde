// package match decides whether items from two music catalogs denote the same
// work. All functions are pure: normalization and comparison only, no I/O.
package match

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultAlbumThreshold is the minimum name-similarity ratio for two albums
// to be considered the same release.
const DefaultAlbumThreshold = 0.6

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize strips diacritics from text by decomposing it and dropping
// combining marks, so "Beyoncé" compares equal to "Beyonce".
func Normalize(text string) string {
	out, _, err := transform.String(stripMarks, text)
	if err != nil {
		return text
	}
	return out
}

// Simplify truncates text at the first of "-", "(" or "[" and trims
// whitespace, removing remix/version/edition qualifiers before comparison.
func Simplify(text string) string {
	cut := len(text)
	for _, sep := range []string{"-", "(", "["} {
		if idx := strings.Index(text, sep); idx >= 0 && idx < cut {
			cut = idx
		}
	}
	return strings.TrimSpace(text[:cut])
}

// canonical is the strict comparison key used for track and artist identity.
func canonical(name string) string {
	return Normalize(Simplify(strings.ToLower(name)))
}

// ArtistsOverlap reports whether the candidate and reference artist name sets
// intersect after simplification. Either side being empty means no overlap.
func ArtistsOverlap(candidateArtists, referenceArtists []string) bool {
	if len(candidateArtists) == 0 || len(referenceArtists) == 0 {
		return false
	}

	seen := make(map[string]struct{}, len(referenceArtists))
	for _, name := range referenceArtists {
		seen[Simplify(strings.ToLower(name))] = struct{}{}
	}

	for _, name := range candidateArtists {
		if _, ok := seen[Simplify(strings.ToLower(name))]; ok {
			return true
		}
	}
	return false
}

// AlbumSimilar reports whether a source album and a destination candidate
// denote the same release: the simplified names must reach the similarity
// threshold and the artist sets must overlap.
func AlbumSimilar(sourceName, candidateName string, sourceArtists, candidateArtists []string, threshold float64) bool {
	if threshold <= 0 {
		threshold = DefaultAlbumThreshold
	}

	a := Simplify(strings.ToLower(sourceName))
	b := Simplify(strings.ToLower(candidateName))
	if Ratio(a, b) < threshold {
		return false
	}

	return ArtistsOverlap(candidateArtists, sourceArtists)
}

// TrackMatches reports whether a destination candidate is the same recording
// as the source track. An ISRC present on both sides decides immediately;
// otherwise the canonical names must be exactly equal (no fuzzy ratio for
// tracks).
func TrackMatches(sourceName, candidateName, sourceISRC, candidateISRC string) bool {
	if sourceISRC != "" && candidateISRC != "" {
		return strings.EqualFold(sourceISRC, candidateISRC)
	}
	return canonical(sourceName) == canonical(candidateName)
}

// ArtistMatches reports whether two artist names denote the same artist,
// using exact equality of the canonical forms.
func ArtistMatches(sourceName, candidateName string) bool {
	return canonical(sourceName) == canonical(candidateName)
}

// Ratio computes a symmetric similarity ratio in [0,1] between two strings:
// twice the total length of the longest matching blocks divided by the
// combined length. Equal strings yield 1, disjoint strings 0.
func Ratio(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}

	matched := matchingBlockSize([]rune(a), []rune(b))
	return 2 * float64(matched) / float64(len([]rune(a))+len([]rune(b)))
}

// matchingBlockSize sums the sizes of matching blocks between a and b by
// locating the longest common substring and recursing on the pieces to its
// left and right.
func matchingBlockSize(a, b []rune) int {
	aStart, bStart, size := longestCommonBlock(a, b)
	if size == 0 {
		return 0
	}

	total := size
	total += matchingBlockSize(a[:aStart], b[:bStart])
	total += matchingBlockSize(a[aStart+size:], b[bStart+size:])
	return total
}

// longestCommonBlock finds the longest common contiguous run between a and b.
func longestCommonBlock(a, b []rune) (aStart, bStart, size int) {
	if len(a) == 0 || len(b) == 0 {
		return 0, 0, 0
	}

	// lengths[j] holds the run length ending at a[i-1], b[j-1]
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
				if cur[j] > size {
					size = cur[j]
					aStart = i - size
					bStart = j - size
				}
			} else {
				cur[j] = 0
			}
		}
		prev, cur = cur, prev
	}

	return aStart, bStart, size
}
