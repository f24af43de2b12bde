package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/perfectritone/spotify-to-tidal-web/internal/formatter"
	"github.com/perfectritone/spotify-to-tidal-web/internal/shared"
	"github.com/perfectritone/spotify-to-tidal-web/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Report renders a saved run result (from 'sync --json') as text, markdown or
// CSV. With --output the rendered report is written to a file whose extension
// picks the format; otherwise plain text goes to stdout.
func (r *Runner) Report(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("result")
	if path == "" {
		return fmt.Errorf("%w: usage: sp2t report <result.json>", shared.ErrMissingArgument)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read run result: %w", err)
	}

	var run tasks.RunResult
	if err := json.Unmarshal(data, &run); err != nil {
		return fmt.Errorf("failed to parse run result: %w", err)
	}

	if outputPath := cmd.String("output"); outputPath != "" {
		if err := formatter.WriteReport(&run, outputPath); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		return r.writePlain("Report saved to %s\n", outputPath)
	}

	return r.writePlain("%s", formatter.ReportToText(&run))
}
