package models

import (
	"fmt"
	"time"
)

// Session holds one browser session's service credentials. The session ID is
// what the signed cookie carries; tokens never leave the server. A session
// may be authenticated against either service independently.
type Session struct {
	id        string
	createdAt time.Time
	updatedAt time.Time

	spotifyAccessToken  string
	spotifyRefreshToken string
	spotifyUser         string

	tidalTokenType    string
	tidalAccessToken  string
	tidalRefreshToken string
	tidalUserID       string
	tidalExpiresAt    time.Time
}

// NewSession creates an empty unauthenticated session.
func NewSession() *Session {
	now := time.Now()
	return &Session{createdAt: now, updatedAt: now}
}

func (s *Session) ID() string           { return s.id }
func (s *Session) CreatedAt() time.Time { return s.createdAt }
func (s *Session) UpdatedAt() time.Time { return s.updatedAt }

func (s *Session) SetID(id string)          { s.id = id }
func (s *Session) SetCreatedAt(t time.Time) { s.createdAt = t }
func (s *Session) SetUpdatedAt(t time.Time) { s.updatedAt = t }

// Validate checks that the session has an identifier.
func (s *Session) Validate() error {
	if s.id == "" {
		return fmt.Errorf("session id is required")
	}
	return nil
}

func (s *Session) SpotifyAccessToken() string  { return s.spotifyAccessToken }
func (s *Session) SpotifyRefreshToken() string { return s.spotifyRefreshToken }
func (s *Session) SpotifyUser() string         { return s.spotifyUser }

// SetSpotifyTokens records the Spotify credential pair for this session.
func (s *Session) SetSpotifyTokens(access, refresh string) {
	s.spotifyAccessToken = access
	s.spotifyRefreshToken = refresh
}

func (s *Session) SetSpotifyUser(user string) { s.spotifyUser = user }

// ClearSpotify drops the Spotify credentials, e.g. on logout.
func (s *Session) ClearSpotify() {
	s.spotifyAccessToken = ""
	s.spotifyRefreshToken = ""
	s.spotifyUser = ""
}

// SpotifyAuthenticated reports whether the session holds a Spotify token.
func (s *Session) SpotifyAuthenticated() bool {
	return s.spotifyAccessToken != ""
}

func (s *Session) TidalTokenType() string    { return s.tidalTokenType }
func (s *Session) TidalAccessToken() string  { return s.tidalAccessToken }
func (s *Session) TidalRefreshToken() string { return s.tidalRefreshToken }
func (s *Session) TidalUserID() string       { return s.tidalUserID }
func (s *Session) TidalExpiresAt() time.Time { return s.tidalExpiresAt }

// SetTidalTokens records the Tidal device-flow grant for this session.
func (s *Session) SetTidalTokens(tokenType, access, refresh, userID string, expiresAt time.Time) {
	s.tidalTokenType = tokenType
	s.tidalAccessToken = access
	s.tidalRefreshToken = refresh
	s.tidalUserID = userID
	s.tidalExpiresAt = expiresAt
}

// ClearTidal drops the Tidal credentials.
func (s *Session) ClearTidal() {
	s.tidalTokenType = ""
	s.tidalAccessToken = ""
	s.tidalRefreshToken = ""
	s.tidalUserID = ""
	s.tidalExpiresAt = time.Time{}
}

// TidalAuthenticated reports whether the session holds a usable Tidal grant:
// an unexpired access token, or a refresh token to mint one with.
func (s *Session) TidalAuthenticated() bool {
	if s.tidalAccessToken == "" {
		return false
	}
	if s.tidalExpiresAt.IsZero() || time.Now().Before(s.tidalExpiresAt) {
		return true
	}
	return s.tidalRefreshToken != ""
}
