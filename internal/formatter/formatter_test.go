package formatter

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/perfectritone/spotify-to-tidal-web/internal/tasks"
)

func sampleRun() *tasks.RunResult {
	return &tasks.RunResult{
		Playlists: &tasks.CollectionResult{Added: 3, Total: 3},
		Favorites: &tasks.CollectionResult{
			Added:    1,
			Total:    3,
			NotFound: []string{"Artist X - Song A", "Artist Y - Song B"},
		},
		Albums: &tasks.CollectionResult{Error: "boom"},
	}
}

func TestReportToText(t *testing.T) {
	text := string(ReportToText(sampleRun()))

	for _, want := range []string{
		"Playlists: 3 added of 3",
		"Liked tracks: 1 added of 3",
		"Saved albums: failed (boom)",
		"favorites: Artist X - Song A",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("report missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "Followed artists") {
		t.Error("unattempted collection should not appear in the report")
	}
}

func TestReportToMarkdown(t *testing.T) {
	md := string(ReportToMarkdown(sampleRun()))

	for _, want := range []string{
		"# Sync report",
		"| Playlists | 3 | 3 | 0 |",
		"| Liked tracks | 1 | 3 | 2 |",
		"error: boom",
		"## Not found",
		"1. Artist X - Song A",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}
}

func TestReportToCSV(t *testing.T) {
	raw, err := ReportToCSV(sampleRun())
	if err != nil {
		t.Fatalf("ReportToCSV: %v", err)
	}

	records, err := csv.NewReader(strings.NewReader(string(raw))).ReadAll()
	if err != nil {
		t.Fatalf("reading CSV back: %v", err)
	}
	// header + 3 collections + 2 not-found rows
	if len(records) != 6 {
		t.Fatalf("got %d records, want 6:\n%s", len(records), raw)
	}
	if records[0][0] != "Collection" {
		t.Errorf("got header %v", records[0])
	}
	if records[2][0] != "favorites" || records[2][1] != "1" {
		t.Errorf("got favorites row %v", records[2])
	}
	if records[3][3] != "Artist X - Song A" {
		t.Errorf("got not-found row %v", records[3])
	}
}

func TestWriteReport(t *testing.T) {
	dir := t.TempDir()

	cases := []struct {
		name string
		want string
	}{
		{"report.txt", "Playlists: 3 added of 3"},
		{"report.md", "# Sync report"},
		{"report.csv", "Collection,Added,Total,NotFound,Error"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			path := filepath.Join(dir, c.name)
			if err := WriteReport(sampleRun(), path); err != nil {
				t.Fatalf("WriteReport: %v", err)
			}
			data, err := os.ReadFile(path)
			if err != nil {
				t.Fatalf("reading report back: %v", err)
			}
			if !strings.Contains(string(data), c.want) {
				t.Errorf("report missing %q:\n%s", c.want, data)
			}
		})
	}
}
