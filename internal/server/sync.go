package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/charmbracelet/log"

	"github.com/perfectritone/spotify-to-tidal-web/internal/models"
	"github.com/perfectritone/spotify-to-tidal-web/internal/repositories"
	"github.com/perfectritone/spotify-to-tidal-web/internal/services"
	"github.com/perfectritone/spotify-to-tidal-web/internal/shared"
	"github.com/perfectritone/spotify-to-tidal-web/internal/tasks"
)

// SyncHandler runs sync jobs for the request's session, either streamed over
// SSE or as a single blocking request. Implements [Handler].
type SyncHandler struct {
	config   *shared.Config
	sessions *repositories.SessionRepository
	logger   *log.Logger
}

// NewSyncHandler creates a [SyncHandler].
func NewSyncHandler(config *shared.Config, sessions *repositories.SessionRepository, logger *log.Logger) *SyncHandler {
	return &SyncHandler{config: config, sessions: sessions, logger: logger}
}

// Routes returns the HTTP routes this handler serves.
func (h *SyncHandler) Routes() []string {
	return []string{
		"GET /sync/stream",
		"POST /sync",
		"GET /ping",
	}
}

func (h *SyncHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/sync/stream":
		h.stream(w, r)
	case "/sync":
		h.sync(w, r)
	case "/ping":
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	default:
		http.NotFound(w, r)
	}
}

// EngineConfig maps the file configuration onto engine tuning.
func EngineConfig(cfg shared.SyncConfig) tasks.Config {
	return tasks.Config{
		RequestDelay:   time.Duration(cfg.RequestDelayMS) * time.Millisecond,
		Concurrency:    cfg.Concurrency,
		SearchLimit:    cfg.SearchLimit,
		AlbumThreshold: cfg.AlbumThreshold,
	}
}

// parseOptions reads collection selectors from the query or form. With no
// selectors present every collection is synced.
func parseOptions(values url.Values) tasks.Options {
	selected := func(name string) bool {
		switch values.Get(name) {
		case "1", "true", "on", "yes":
			return true
		}
		return false
	}

	opts := tasks.Options{
		Playlists: selected("playlists"),
		Favorites: selected("favorites"),
		Albums:    selected("albums"),
		Artists:   selected("artists"),
	}
	if !opts.Any() {
		return tasks.Options{Playlists: true, Favorites: true, Albums: true, Artists: true}
	}
	return opts
}

// buildEngine wires the session's service clients into an engine. The source
// is wrapped so an expired Spotify token gets one refresh-and-retry before
// the run aborts.
func (h *SyncHandler) buildEngine(session *models.Session) (*tasks.Engine, *services.SpotifyService, error) {
	if !session.SpotifyAuthenticated() {
		return nil, nil, fmt.Errorf("%w: connect Spotify first", shared.ErrNotAuthenticated)
	}
	if !session.TidalAuthenticated() {
		return nil, nil, fmt.Errorf("%w: connect Tidal first", shared.ErrNotAuthenticated)
	}

	spotify, err := spotifyFromSession(h.config, session)
	if err != nil {
		return nil, nil, err
	}
	tidal, err := tidalFromSession(h.config, session)
	if err != nil {
		return nil, nil, err
	}

	source := services.NewRefreshing(spotify, spotify)
	engine := tasks.NewEngine(source, tidal, h.logger, EngineConfig(h.config.Sync))
	return engine, spotify, nil
}

// persistTokens writes back any token the refresh wrapper minted during the
// run, so the next request starts from the fresh credential.
func (h *SyncHandler) persistTokens(session *models.Session, spotify *services.SpotifyService) {
	token := spotify.Token()
	if token == nil || token.AccessToken == session.SpotifyAccessToken() {
		return
	}
	session.SetSpotifyTokens(token.AccessToken, token.RefreshToken)
	if err := h.sessions.Update(session); err != nil {
		h.logger.Error("failed to persist refreshed tokens", "err", err)
	}
}

// stream runs a sync and emits each engine event as an SSE message. The
// response stays open for the whole run; progress events double as
// keepalives.
func (h *SyncHandler) stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	session := SessionFrom(r.Context())
	engine, spotify, err := h.buildEngine(session)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": err.Error()})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	events := make(chan tasks.Event)
	go func() {
		defer close(events)
		if _, err := engine.Run(r.Context(), events, parseOptions(r.URL.Query())); err != nil {
			h.logger.Warn("sync run ended early", "err", err)
		}
	}()

	for ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			h.logger.Error("failed to encode event", "err", err)
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}

	h.persistTokens(session, spotify)
}

// sync runs a sync to completion and returns the aggregate result as JSON.
func (h *SyncHandler) sync(w http.ResponseWriter, r *http.Request) {
	session := SessionFrom(r.Context())
	engine, spotify, err := h.buildEngine(session)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": err.Error()})
		return
	}

	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed form"})
		return
	}

	events := make(chan tasks.Event)
	go func() {
		// The result carries everything the response needs; drain and drop.
		for range events {
		}
	}()

	run, err := engine.Run(r.Context(), events, parseOptions(r.Form))
	close(events)
	h.persistTokens(session, spotify)

	if err != nil {
		if shared.IsAuthError(err) {
			writeJSON(w, http.StatusUnauthorized, map[string]any{
				"error":  "credential expired",
				"result": run,
			})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"result": run})
}

// NewRouter assembles the full application router with session and logging
// middleware applied to every route.
func NewRouter(cfg *shared.Config, sessions *repositories.SessionRepository, logger *log.Logger) *BasicRouter {
	router := NewBasicRouter()
	router.Use(
		RequestLogger(logger),
		WithSession(sessions, cfg.Server.Secret, logger),
	)
	router.Handler(NewAuthHandler(cfg, sessions, logger))
	router.Handler(NewSyncHandler(cfg, sessions, logger))
	return router
}
