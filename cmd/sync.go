package main

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/perfectritone/spotify-to-tidal-web/internal/formatter"
	"github.com/perfectritone/spotify-to-tidal-web/internal/server"
	"github.com/perfectritone/spotify-to-tidal-web/internal/services"
	"github.com/perfectritone/spotify-to-tidal-web/internal/shared"
	"github.com/perfectritone/spotify-to-tidal-web/internal/tasks"
	"github.com/perfectritone/spotify-to-tidal-web/internal/ui"
	"github.com/urfave/cli/v3"
)

// Sync runs a library sync against the CLI session's stored credentials.
// Renders the interactive progress view by default; --plain and --json switch
// to line output.
func (r *Runner) Sync(ctx context.Context, cmd *cli.Command) error {
	r.loadConfig(cmd)

	sessions, closeDB, err := r.openSessions()
	if err != nil {
		return err
	}
	defer closeDB()

	session, err := r.cliSession(sessions)
	if err != nil {
		return err
	}

	if !session.SpotifyAuthenticated() {
		return fmt.Errorf("%w: run 'sp2t auth spotify' first", shared.ErrNotAuthenticated)
	}
	if !session.TidalAuthenticated() {
		return fmt.Errorf("%w: run 'sp2t auth tidal' first", shared.ErrNotAuthenticated)
	}

	spotify, err := r.spotifyClient(session)
	if err != nil {
		return err
	}
	tidal, err := r.tidalClient(session)
	if err != nil {
		return err
	}

	plain := cmd.Bool("plain") || cmd.Bool("json")

	engineLogger := r.logger
	if !plain {
		// Logs on stderr would fight the interactive view for the screen.
		fileLogger, err := shared.NewFileLogger("./tmp/sp2t-sync.log")
		if err != nil {
			return fmt.Errorf("failed to create file logger: %w", err)
		}
		engineLogger = fileLogger
	}

	source := services.NewRefreshing(spotify, spotify)
	engine := tasks.NewEngine(source, tidal, engineLogger, server.EngineConfig(r.config.Sync))

	opts := tasks.Options{
		Playlists: cmd.Bool("playlists"),
		Favorites: cmd.Bool("favorites"),
		Albums:    cmd.Bool("albums"),
		Artists:   cmd.Bool("artists"),
	}
	if !opts.Any() {
		opts = tasks.Options{Playlists: true, Favorites: true, Albums: true, Artists: true}
	}

	events := make(chan tasks.Event, 64)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var run *tasks.RunResult
	var runErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer close(events)
		run, runErr = engine.Run(runCtx, events, opts)
	}()

	var viewErr error
	if cmd.Bool("json") {
		// JSON mode prints nothing but the final result.
		for range events {
		}
	} else if plain {
		for ev := range events {
			r.printEvent(ev)
		}
	} else {
		model := ui.NewModel(events)
		_, viewErr = tea.NewProgram(model).Run()
		// The engine emits blockingly and nobody reads events once the view
		// exits. A mid-run quit must cancel the run and drain the channel,
		// otherwise Run never returns.
		cancel()
		for range events {
		}
	}
	<-done

	r.persistSpotifyTokens(sessions, session, spotify)

	if viewErr != nil {
		return fmt.Errorf("error running sync view: %w", viewErr)
	}
	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			r.writePlain("Sync cancelled.\n")
			return nil
		}
		if shared.IsAuthError(runErr) {
			return fmt.Errorf("%w: reconnect with 'sp2t auth' and run the sync again", runErr)
		}
		return runErr
	}

	if cmd.Bool("json") {
		if err := r.writeJSON(run, true); err != nil {
			return err
		}
	}

	if reportPath := cmd.String("report"); reportPath != "" {
		if err := formatter.WriteReport(run, reportPath); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		r.writePlain("Report saved to %s\n", reportPath)
	}

	return nil
}

// printEvent renders one stream event as a log-style line for --plain runs.
func (r *Runner) printEvent(ev tasks.Event) {
	switch ev.Type {
	case tasks.EventStart:
		r.writePlain("Syncing %s...\n", ev.Label)
	case tasks.EventDone:
		line := fmt.Sprintf("  %s: %d added of %d", tasks.Label(ev.Task), ev.Result.Added, ev.Result.Total)
		if missing := len(ev.Result.NotFound); missing > 0 {
			line += fmt.Sprintf(" (%d not found)", missing)
		}
		r.writePlain("%s\n", line)
	case tasks.EventError:
		r.writePlain("  %s failed: %s\n", tasks.Label(ev.Task), ev.Err)
	case tasks.EventAuthExpired:
		r.writePlain("✗ %s authorization expired\n", ev.Service)
	case tasks.EventComplete:
		r.writePlain("\n%s", formatter.ReportToText(ev.Run))
	}
}
