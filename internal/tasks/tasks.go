// package tasks implements the reconciliation engine that copies a user's
// library from the source catalog to the destination catalog.
//
// A run processes the selected collection types strictly in order (playlists,
// favorites, albums, artists). For each collection the engine counts the
// source items, indexes what the destination already has, then streams the
// source lazily, searching the destination for each item and adding only
// unmatched ones. Lifecycle events are emitted in order on a channel for any
// transport (SSE, TUI, plain log lines) to consume.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/perfectritone/spotify-to-tidal-web/internal/services"
	"github.com/perfectritone/spotify-to-tidal-web/internal/shared"
)

// Collection task names, in the fixed processing order.
const (
	TaskPlaylists = "playlists"
	TaskFavorites = "favorites"
	TaskAlbums    = "albums"
	TaskArtists   = "artists"
)

// TaskOrder is the fixed order collection types are processed in. Later
// collections assume the previous one fully finished, so the order is never
// concurrent.
var TaskOrder = []string{TaskPlaylists, TaskFavorites, TaskAlbums, TaskArtists}

var taskLabels = map[string]string{
	TaskPlaylists: "Playlists",
	TaskFavorites: "Liked tracks",
	TaskAlbums:    "Saved albums",
	TaskArtists:   "Followed artists",
}

// Label returns the human-readable label for a task name.
func Label(task string) string {
	if label, ok := taskLabels[task]; ok {
		return label
	}
	return task
}

// Options selects which collection types a run syncs.
type Options struct {
	Playlists bool
	Favorites bool
	Albums    bool
	Artists   bool
}

func (o Options) enabled(task string) bool {
	switch task {
	case TaskPlaylists:
		return o.Playlists
	case TaskFavorites:
		return o.Favorites
	case TaskAlbums:
		return o.Albums
	case TaskArtists:
		return o.Artists
	}
	return false
}

// Any reports whether at least one collection type is selected.
func (o Options) Any() bool {
	return o.Playlists || o.Favorites || o.Albums || o.Artists
}

// Config tunes the engine. Zero values fall back to defaults.
type Config struct {
	RequestDelay   time.Duration // delay between source page fetches
	Concurrency    int           // destination searches in flight per batch
	SearchLimit    int           // candidates considered per item
	AlbumThreshold float64       // name similarity ratio for album matching
	PageSize       int           // source page size
}

func (c Config) withDefaults() Config {
	if c.RequestDelay <= 0 {
		c.RequestDelay = 50 * time.Millisecond
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 3
	}
	if c.SearchLimit <= 0 {
		c.SearchLimit = 5
	}
	if c.AlbumThreshold <= 0 {
		c.AlbumThreshold = 0.6
	}
	if c.PageSize <= 0 {
		c.PageSize = 50
	}
	return c
}

// Engine reconciles a source catalog against a destination catalog.
type Engine struct {
	source services.SourceCatalog
	dest   services.Destination
	logger *log.Logger
	cfg    Config
}

// NewEngine creates an engine over the given providers.
func NewEngine(source services.SourceCatalog, dest services.Destination, logger *log.Logger, cfg Config) *Engine {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Engine{
		source: source,
		dest:   dest,
		logger: logger,
		cfg:    cfg.withDefaults(),
	}
}

// runState carries the state owned by a single run: the per-run track match
// cache shared between the playlists and favorites phases. It lives exactly
// as long as one Run call, so concurrent runs never share state.
type runState struct {
	mu         sync.Mutex
	trackCache map[string]trackMatch // source track ID -> match outcome
}

type trackMatch struct {
	destID string
	ok     bool
}

func newRunState() *runState {
	return &runState{trackCache: make(map[string]trackMatch)}
}

func (s *runState) cached(sourceID string) (trackMatch, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.trackCache[sourceID]
	return m, ok
}

func (s *runState) store(sourceID string, m trackMatch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trackCache[sourceID] = m
}

// authExpiredError tags a credential failure with the service it came from
// so the auth_expired event names the right side.
type authExpiredError struct {
	Service string
	Err     error
}

func (a *authExpiredError) Error() string { return a.Service + ": " + a.Err.Error() }
func (a *authExpiredError) Unwrap() error { return a.Err }

// tagAuth wraps err with its originating service when it is a credential
// failure, and passes every other error through untouched.
func tagAuth(service string, err error) error {
	if err == nil {
		return nil
	}
	var tagged *authExpiredError
	if errors.As(err, &tagged) {
		return err
	}
	if shared.IsAuthError(err) {
		return &authExpiredError{Service: service, Err: err}
	}
	return err
}

// emit delivers an event in order, blocking until the consumer takes it or
// the run is cancelled. Events are never dropped or reordered.
func (e *Engine) emit(ctx context.Context, events chan<- Event, ev Event) error {
	select {
	case events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run syncs the selected collections and returns the aggregate result.
//
// Each attempted collection is bracketed by exactly one start event and one
// terminal done/error event before the next collection starts. An
// authentication failure on the source stops the run immediately with an
// auth_expired event instead of a generic error; otherwise a complete event
// carrying the result closes the stream. The caller owns the events channel;
// Run does not close it.
func (e *Engine) Run(ctx context.Context, events chan<- Event, opts Options) (*RunResult, error) {
	run := &RunResult{}
	state := newRunState()

	for _, task := range TaskOrder {
		if !opts.enabled(task) {
			continue
		}

		if err := e.emit(ctx, events, startEvent(task, taskLabels[task])); err != nil {
			return run, err
		}

		result, err := e.syncCollection(ctx, events, state, task)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return run, err
			}
			if shared.IsAuthError(err) {
				service := e.source.Name()
				var tagged *authExpiredError
				if errors.As(err, &tagged) {
					service = tagged.Service
				}
				e.logger.Warn("credential expired, stopping run", "task", task, "service", service)
				if emitErr := e.emit(ctx, events, authExpiredEvent(service)); emitErr != nil {
					return run, emitErr
				}
				return run, fmt.Errorf("%s: %w", task, err)
			}

			e.logger.Error("collection sync failed", "task", task, "err", err)
			run.setCollection(task, &CollectionResult{Error: err.Error()})
			if emitErr := e.emit(ctx, events, errorEvent(task, err)); emitErr != nil {
				return run, emitErr
			}
			continue
		}

		run.setCollection(task, result)
		if err := e.emit(ctx, events, doneEvent(task, result)); err != nil {
			return run, err
		}
	}

	if err := e.emit(ctx, events, completeEvent(run)); err != nil {
		return run, err
	}
	return run, nil
}

func (e *Engine) syncCollection(ctx context.Context, events chan<- Event, state *runState, task string) (*CollectionResult, error) {
	switch task {
	case TaskPlaylists:
		return e.syncPlaylists(ctx, events, state)
	case TaskFavorites:
		return e.syncFavorites(ctx, events, state)
	case TaskAlbums:
		return e.syncAlbums(ctx, events)
	case TaskArtists:
		return e.syncArtists(ctx, events)
	}
	return nil, fmt.Errorf("%w: unknown task %q", shared.ErrInvalidInput, task)
}

// percent computes floor(processed/total*100) clamped to [0,100], treating a
// missing total as 1 so the math stays defined.
func percent(processed, total int) int {
	if total < 1 {
		total = 1
	}
	p := processed * 100 / total
	if p > 100 {
		p = 100
	}
	return p
}

// countTotal resolves a best-effort collection total. Authentication errors
// propagate so the run aborts; any other failure falls back to zero, which
// only affects percent math.
func (e *Engine) countTotal(task string, total int, err error) (int, error) {
	if err != nil {
		if shared.IsAuthError(err) {
			return 0, tagAuth(e.source.Name(), err)
		}
		e.logger.Warn("count failed, percent math falls back to completion-only", "task", task, "err", err)
		return 0, nil
	}
	return total, nil
}
