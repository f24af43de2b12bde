package server

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/perfectritone/spotify-to-tidal-web/internal/models"
	"github.com/perfectritone/spotify-to-tidal-web/internal/repositories"
)

// SessionCookie is the cookie carrying the signed session ID.
const SessionCookie = "sync_session"

type sessionContextKey struct{}

// SessionFrom extracts the request's session from the context. Handlers
// behind [WithSession] always get a non-nil session.
func SessionFrom(ctx context.Context) *models.Session {
	session, _ := ctx.Value(sessionContextKey{}).(*models.Session)
	return session
}

// SignValue returns value plus an HMAC-SHA256 signature, suitable for a
// cookie. Only the server knows the secret, so a tampered cookie fails
// verification instead of impersonating a session.
func SignValue(value, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(value))
	return value + "." + base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// VerifyValue checks a signed cookie value and returns the embedded value.
func VerifyValue(signed, secret string) (string, error) {
	idx := strings.LastIndex(signed, ".")
	if idx < 0 {
		return "", fmt.Errorf("malformed signed value")
	}
	value := signed[:idx]
	if !hmac.Equal([]byte(SignValue(value, secret)), []byte(signed)) {
		return "", fmt.Errorf("signature mismatch")
	}
	return value, nil
}

// WithSession resolves the request's session from the signed cookie, creating
// and persisting a fresh session when the cookie is absent, tampered with, or
// references a pruned session. The session lands in the request context.
func WithSession(sessions *repositories.SessionRepository, secret string, logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := resolveSession(r, sessions, secret, logger)
			if session == nil {
				session = models.NewSession()
				if err := sessions.Create(session); err != nil {
					logger.Error("failed to create session", "err", err)
					http.Error(w, "session unavailable", http.StatusInternalServerError)
					return
				}
				http.SetCookie(w, &http.Cookie{
					Name:     SessionCookie,
					Value:    SignValue(session.ID(), secret),
					Path:     "/",
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
					MaxAge:   int((30 * 24 * time.Hour).Seconds()),
				})
			}

			ctx := context.WithValue(r.Context(), sessionContextKey{}, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func resolveSession(r *http.Request, sessions *repositories.SessionRepository, secret string, logger *log.Logger) *models.Session {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil {
		return nil
	}
	id, err := VerifyValue(cookie.Value, secret)
	if err != nil {
		logger.Warn("rejecting session cookie", "err", err)
		return nil
	}
	session, err := sessions.Get(id)
	if err != nil {
		return nil
	}
	return session
}

// RequestLogger logs each request with its status and duration.
func RequestLogger(logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(recorder, r)
			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", recorder.status,
				"duration", time.Since(start),
			)
		})
	}
}

// statusRecorder captures the response status for logging. Flush is
// forwarded so the sync stream endpoint still works behind the middleware.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
