package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/perfectritone/spotify-to-tidal-web/internal/models"
	"github.com/perfectritone/spotify-to-tidal-web/internal/shared"
)

// SessionRepository implements [models.Repository] for [models.Session] persistence.
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a new [SessionRepository] with the given database connection
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a new session into the database, generating an ID when the
// session does not carry one yet.
func (r *SessionRepository) Create(session *models.Session) error {
	if session.ID() == "" {
		session.SetID(shared.GenerateID())
	}
	if err := session.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO sessions (
			id, spotify_access_token, spotify_refresh_token, spotify_user,
			tidal_token_type, tidal_access_token, tidal_refresh_token,
			tidal_user_id, tidal_expires_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Exec(query,
		session.ID(),
		session.SpotifyAccessToken(), session.SpotifyRefreshToken(), session.SpotifyUser(),
		session.TidalTokenType(), session.TidalAccessToken(), session.TidalRefreshToken(),
		session.TidalUserID(), nullTime(session.TidalExpiresAt()),
		session.CreatedAt(), session.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

// Get retrieves a session by ID.
func (r *SessionRepository) Get(id string) (*models.Session, error) {
	query := `
		SELECT id, spotify_access_token, spotify_refresh_token, spotify_user,
		       tidal_token_type, tidal_access_token, tidal_refresh_token,
		       tidal_user_id, tidal_expires_at, created_at, updated_at
		FROM sessions
		WHERE id = ?
	`

	var (
		sessionID           string
		spotifyAccessToken  string
		spotifyRefreshToken string
		spotifyUser         string
		tidalTokenType      string
		tidalAccessToken    string
		tidalRefreshToken   string
		tidalUserID         string
		tidalExpiresAt      sql.NullTime
		createdAt           time.Time
		updatedAt           time.Time
	)

	err := r.db.QueryRow(query, id).Scan(
		&sessionID, &spotifyAccessToken, &spotifyRefreshToken, &spotifyUser,
		&tidalTokenType, &tidalAccessToken, &tidalRefreshToken,
		&tidalUserID, &tidalExpiresAt, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session %s: %w", id, shared.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query session: %w", err)
	}

	session := models.NewSession()
	session.SetID(sessionID)
	session.SetCreatedAt(createdAt)
	session.SetUpdatedAt(updatedAt)
	session.SetSpotifyTokens(spotifyAccessToken, spotifyRefreshToken)
	session.SetSpotifyUser(spotifyUser)

	var expires time.Time
	if tidalExpiresAt.Valid {
		expires = tidalExpiresAt.Time
	}
	session.SetTidalTokens(tidalTokenType, tidalAccessToken, tidalRefreshToken, tidalUserID, expires)
	return session, nil
}

// Update modifies an existing session in the database
func (r *SessionRepository) Update(session *models.Session) error {
	if err := session.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	session.SetUpdatedAt(now)

	query := `
		UPDATE sessions
		SET spotify_access_token = ?, spotify_refresh_token = ?, spotify_user = ?,
		    tidal_token_type = ?, tidal_access_token = ?, tidal_refresh_token = ?,
		    tidal_user_id = ?, tidal_expires_at = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.Exec(query,
		session.SpotifyAccessToken(), session.SpotifyRefreshToken(), session.SpotifyUser(),
		session.TidalTokenType(), session.TidalAccessToken(), session.TidalRefreshToken(),
		session.TidalUserID(), nullTime(session.TidalExpiresAt()), now,
		session.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("session %s: %w", session.ID(), shared.ErrNotFound)
	}
	return nil
}

// Delete removes a session by ID. Deleting an unknown session is not an error.
func (r *SessionRepository) Delete(id string) error {
	if _, err := r.db.Exec(`DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteStale removes sessions not touched since the cutoff and returns how
// many were dropped.
func (r *SessionRepository) DeleteStale(cutoff time.Time) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM sessions WHERE updated_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale sessions: %w", err)
	}
	return result.RowsAffected()
}

// nullTime maps the zero time to NULL so unauthenticated sessions do not
// round-trip a fake expiry.
func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
