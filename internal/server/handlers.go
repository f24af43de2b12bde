package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/charmbracelet/log"

	"github.com/perfectritone/spotify-to-tidal-web/internal/models"
	"github.com/perfectritone/spotify-to-tidal-web/internal/repositories"
	"github.com/perfectritone/spotify-to-tidal-web/internal/services"
	"github.com/perfectritone/spotify-to-tidal-web/internal/shared"
)

// writeJSON writes v as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// spotifyFromSession builds an authenticated Spotify client for a session.
func spotifyFromSession(cfg *shared.Config, session *models.Session) (*services.SpotifyService, error) {
	spotify, err := services.NewSpotifyService(map[string]string{
		"client_id":     cfg.Credentials.Spotify.ClientID,
		"client_secret": cfg.Credentials.Spotify.ClientSecret,
		"redirect_uri":  cfg.Credentials.Spotify.RedirectURI,
	})
	if err != nil {
		return nil, err
	}
	if session.SpotifyAuthenticated() {
		err = spotify.Authenticate(context.Background(), map[string]string{
			"access_token":  session.SpotifyAccessToken(),
			"refresh_token": session.SpotifyRefreshToken(),
		})
		if err != nil {
			return nil, err
		}
	}
	return spotify, nil
}

// tidalFromSession builds a Tidal client for a session, loading the stored
// grant when the session carries one.
func tidalFromSession(cfg *shared.Config, session *models.Session) (*services.TidalService, error) {
	tidal, err := services.NewTidalService(map[string]string{
		"client_id":     cfg.Credentials.Tidal.ClientID,
		"client_secret": cfg.Credentials.Tidal.ClientSecret,
	})
	if err != nil {
		return nil, err
	}
	if session.TidalAuthenticated() {
		err = tidal.LoadSession(&services.TidalTokens{
			TokenType:    session.TidalTokenType(),
			AccessToken:  session.TidalAccessToken(),
			RefreshToken: session.TidalRefreshToken(),
			ExpiresAt:    session.TidalExpiresAt(),
			UserID:       session.TidalUserID(),
		})
		if err != nil {
			return nil, err
		}
	}
	return tidal, nil
}

// AuthHandler serves session status, the Spotify authorization-code flow,
// the Tidal device flow, and logout. Implements [Handler].
type AuthHandler struct {
	config   *shared.Config
	sessions *repositories.SessionRepository
	logger   *log.Logger
}

// NewAuthHandler creates an [AuthHandler].
func NewAuthHandler(config *shared.Config, sessions *repositories.SessionRepository, logger *log.Logger) *AuthHandler {
	return &AuthHandler{config: config, sessions: sessions, logger: logger}
}

// Routes returns the HTTP routes this handler serves.
func (h *AuthHandler) Routes() []string {
	return []string{
		"GET /{$}",
		"GET /auth/spotify/login",
		"GET /auth/spotify/callback",
		"POST /auth/tidal/start",
		"POST /auth/tidal/poll",
		"POST /logout",
	}
}

// ServeHTTP dispatches to the endpoint implementations. Method matching is
// already handled by the router's patterns.
func (h *AuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/":
		h.status(w, r)
	case "/auth/spotify/login":
		h.spotifyLogin(w, r)
	case "/auth/spotify/callback":
		h.spotifyCallback(w, r)
	case "/auth/tidal/start":
		h.tidalStart(w, r)
	case "/auth/tidal/poll":
		h.tidalPoll(w, r)
	case "/logout":
		h.logout(w, r)
	default:
		http.NotFound(w, r)
	}
}

// status reports which services the session is connected to.
func (h *AuthHandler) status(w http.ResponseWriter, r *http.Request) {
	session := SessionFrom(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"spotify": map[string]any{
			"connected": session.SpotifyAuthenticated(),
			"user":      session.SpotifyUser(),
		},
		"tidal": map[string]any{
			"connected": session.TidalAuthenticated(),
			"user_id":   session.TidalUserID(),
		},
	})
}

// spotifyLogin redirects the browser into Spotify's consent page. The state
// parameter is the signed session ID, so the callback can reject responses
// that were not initiated by this session.
func (h *AuthHandler) spotifyLogin(w http.ResponseWriter, r *http.Request) {
	session := SessionFrom(r.Context())
	spotify, err := spotifyFromSession(h.config, session)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	state := SignValue(session.ID(), h.config.Server.Secret)
	http.Redirect(w, r, spotify.GetAuthURL(state), http.StatusFound)
}

// spotifyCallback exchanges the authorization code and stores the tokens on
// the session.
func (h *AuthHandler) spotifyCallback(w http.ResponseWriter, r *http.Request) {
	session := SessionFrom(r.Context())

	state := r.URL.Query().Get("state")
	if id, err := VerifyValue(state, h.config.Server.Secret); err != nil || id != session.ID() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid state parameter"})
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "authorization failed: " + r.URL.Query().Get("error"),
		})
		return
	}

	spotify, err := spotifyFromSession(h.config, session)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	token, err := spotify.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("spotify code exchange failed", "err", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "token exchange failed"})
		return
	}

	session.SetSpotifyTokens(token.AccessToken, token.RefreshToken)
	if err := spotify.Authenticate(r.Context(), map[string]string{
		"access_token":  token.AccessToken,
		"refresh_token": token.RefreshToken,
	}); err == nil {
		if profile, err := spotify.UserProfile(r.Context()); err == nil {
			session.SetSpotifyUser(profile.DisplayName)
		}
	}

	if err := h.sessions.Update(session); err != nil {
		h.logger.Error("failed to persist spotify tokens", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "session update failed"})
		return
	}

	http.Redirect(w, r, "/", http.StatusFound)
}

// tidalStart begins the device authorization flow and returns the codes the
// user needs to approve the link.
func (h *AuthHandler) tidalStart(w http.ResponseWriter, r *http.Request) {
	session := SessionFrom(r.Context())
	tidal, err := tidalFromSession(h.config, session)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	auth, err := tidal.StartDeviceAuth(r.Context())
	if err != nil {
		h.logger.Error("tidal device auth failed", "err", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "device authorization failed"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"device_code":               auth.DeviceCode,
		"user_code":                 auth.UserCode,
		"verification_uri":          auth.VerificationURI,
		"verification_uri_complete": auth.VerificationURIComplete,
		"expires_in":                auth.ExpiresIn,
		"interval":                  auth.Interval,
	})
}

// tidalPoll checks one device-flow grant attempt. Pending approvals return
// 202 so the client keeps polling at the advertised interval.
func (h *AuthHandler) tidalPoll(w http.ResponseWriter, r *http.Request) {
	session := SessionFrom(r.Context())
	deviceCode := r.FormValue("device_code")
	if deviceCode == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "device_code is required"})
		return
	}

	tidal, err := tidalFromSession(h.config, session)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	tokens, err := tidal.CheckDeviceAuth(r.Context(), deviceCode)
	if errors.Is(err, shared.ErrAuthPending) {
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "pending"})
		return
	}
	if err != nil {
		h.logger.Error("tidal device poll failed", "err", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}

	session.SetTidalTokens(tokens.TokenType, tokens.AccessToken, tokens.RefreshToken, tokens.UserID, tokens.ExpiresAt)
	if err := h.sessions.Update(session); err != nil {
		h.logger.Error("failed to persist tidal tokens", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "session update failed"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "authorized"})
}

// logout drops the session's credentials and the session row itself.
func (h *AuthHandler) logout(w http.ResponseWriter, r *http.Request) {
	session := SessionFrom(r.Context())
	if err := h.sessions.Delete(session.ID()); err != nil {
		h.logger.Error("failed to delete session", "err", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}
