package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/perfectritone/spotify-to-tidal-web/internal/repositories"
	"github.com/perfectritone/spotify-to-tidal-web/internal/server"
	"github.com/perfectritone/spotify-to-tidal-web/internal/shared"
	"github.com/urfave/cli/v3"
)

// Sessions untouched for this long are dropped by the periodic sweep.
const staleSessionAge = 30 * 24 * time.Hour

// Serve starts the sync web service and blocks until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	r.loadConfig(cmd)

	if r.config.Server.Secret == "" {
		// Sessions signed with an ephemeral secret die with the process.
		r.config.Server.Secret = shared.GenerateID()
		r.logger.Warn("server.secret not set, using an ephemeral secret; sessions will not survive restarts")
	}

	sessions, closeDB, err := r.openSessions()
	if err != nil {
		return err
	}
	defer closeDB()

	logger := shared.WithLogger(r.logger, "component", "server")
	router := server.NewRouter(r.config, sessions, logger)
	srv := server.NewServer(r.config.Server, router, logger)

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go sweepStaleSessions(sweepCtx, sessions, logger, time.Hour, staleSessionAge)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-stop:
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// sweepStaleSessions periodically deletes sessions whose last update is older
// than maxAge, so abandoned browser logins do not accumulate in the store.
// Runs until ctx is cancelled.
func sweepStaleSessions(ctx context.Context, sessions *repositories.SessionRepository, logger *log.Logger, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			dropped, err := sessions.DeleteStale(time.Now().Add(-maxAge))
			if err != nil {
				logger.Warn("stale session sweep failed", "err", err)
				continue
			}
			if dropped > 0 {
				logger.Info("dropped stale sessions", "count", dropped)
			}
		}
	}
}
