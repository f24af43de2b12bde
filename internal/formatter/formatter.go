// package formatter renders sync run reports to various formats (plain text, Markdown, CSV)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/perfectritone/spotify-to-tidal-web/internal/tasks"
)

// ReportToText renders a run result as plain text, one section per attempted
// collection, with the tracks the destination catalog is missing listed at
// the end.
func ReportToText(run *tasks.RunResult) []byte {
	var buf bytes.Buffer

	for _, task := range tasks.TaskOrder {
		res := run.Collection(task)
		if res == nil {
			continue
		}
		if res.Error != "" {
			buf.WriteString(fmt.Sprintf("%s: failed (%s)\n", tasks.Label(task), res.Error))
			continue
		}
		buf.WriteString(fmt.Sprintf("%s: %d added of %d\n", tasks.Label(task), res.Added, res.Total))
	}

	report := run.NotFoundReport()
	if len(report) > 0 {
		buf.WriteString("\nNot found on destination:\n")
		for _, entry := range report {
			buf.WriteString(fmt.Sprintf("  %s\n", entry))
		}
	}

	return buf.Bytes()
}

// ReportToMarkdown renders a run result as a Markdown document with a summary
// table and a not-found section.
func ReportToMarkdown(run *tasks.RunResult) []byte {
	var buf bytes.Buffer

	buf.WriteString("# Sync report\n\n")
	buf.WriteString("| Collection | Added | Total | Not found |\n")
	buf.WriteString("| --- | --- | --- | --- |\n")
	for _, task := range tasks.TaskOrder {
		res := run.Collection(task)
		if res == nil {
			continue
		}
		if res.Error != "" {
			buf.WriteString(fmt.Sprintf("| %s | - | - | error: %s |\n", tasks.Label(task), res.Error))
			continue
		}
		buf.WriteString(fmt.Sprintf("| %s | %d | %d | %d |\n",
			tasks.Label(task), res.Added, res.Total, len(res.NotFound)))
	}

	wroteHeader := false
	for _, task := range tasks.TaskOrder {
		res := run.Collection(task)
		if res == nil || len(res.NotFound) == 0 {
			continue
		}
		if !wroteHeader {
			buf.WriteString("\n## Not found\n")
			wroteHeader = true
		}
		buf.WriteString(fmt.Sprintf("\n### %s\n\n", tasks.Label(task)))
		for i, entry := range res.NotFound {
			buf.WriteString(fmt.Sprintf("%d. %s\n", i+1, entry))
		}
	}

	return buf.Bytes()
}

// ReportToCSV renders a run result as CSV with columns: Collection, Added,
// Total, NotFound, Error. Each not-found item follows as its own row with
// empty counters.
func ReportToCSV(run *tasks.RunResult) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Collection", "Added", "Total", "NotFound", "Error"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, task := range tasks.TaskOrder {
		res := run.Collection(task)
		if res == nil {
			continue
		}
		record := []string{
			task,
			strconv.Itoa(res.Added),
			strconv.Itoa(res.Total),
			strconv.Itoa(len(res.NotFound)),
			res.Error,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
		for _, entry := range res.NotFound {
			if err := writer.Write([]string{task, "", "", entry, ""}); err != nil {
				return nil, fmt.Errorf("failed to write CSV record: %w", err)
			}
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// WriteReport renders a run result in the format implied by the path's
// extension (.md, .csv, anything else plain text) and writes it to disk.
func WriteReport(run *tasks.RunResult, path string) error {
	var (
		data []byte
		err  error
	)
	switch filepath.Ext(path) {
	case ".md":
		data = ReportToMarkdown(run)
	case ".csv":
		data, err = ReportToCSV(run)
		if err != nil {
			return err
		}
	default:
		data = ReportToText(run)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
