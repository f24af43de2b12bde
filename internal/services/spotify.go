// Spotify API implementation of [SourceCatalog]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/perfectritone/spotify-to-tidal-web/internal/shared"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"
)

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Country     string `json:"country"`
}

type externalIDs struct {
	ISRC string `json:"isrc"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Artists     []SpotifyArtist `json:"artists"`
	ReleaseDate string          `json:"release_date"`
	TotalTracks int             `json:"total_tracks"`
	URI         string          `json:"uri"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Artists     []SpotifyArtist `json:"artists"`
	Album       SpotifyAlbum    `json:"album"`
	DurationMS  int             `json:"duration_ms"`
	ExternalIDs externalIDs     `json:"external_ids"`
	URI         string          `json:"uri"`
}

type spotifyOwner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type simplePlaylistTracks struct {
	Total int `json:"total"`
}

// SpotifySimplePlaylist represents a simplified playlist object (used in lists).
type SpotifySimplePlaylist struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Owner       spotifyOwner         `json:"owner"`
	Public      bool                 `json:"public"`
	Tracks      simplePlaylistTracks `json:"tracks"`
	URI         string               `json:"uri"`
}

// SpotifySavedTrack represents a track saved in the user's library.
type SpotifySavedTrack struct {
	AddedAt string       `json:"added_at"`
	Track   SpotifyTrack `json:"track"`
}

// SpotifySavedAlbum represents an album saved in the user's library.
type SpotifySavedAlbum struct {
	AddedAt string       `json:"added_at"`
	Album   SpotifyAlbum `json:"album"`
}

// SpotifyPlaylistTrack represents a track within a playlist context.
type SpotifyPlaylistTrack struct {
	AddedAt string       `json:"added_at"`
	Track   SpotifyTrack `json:"track"`
}

// spotifyPage is the common shape of Spotify's offset-paginated responses.
type spotifyPage[T any] struct {
	Items    []T     `json:"items"`
	Total    int     `json:"total"`
	Limit    int     `json:"limit"`
	Offset   int     `json:"offset"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
}

// spotifyCursorArtists is the cursor-paginated followed-artists response.
type spotifyCursorArtists struct {
	Artists struct {
		Items   []SpotifyArtist `json:"items"`
		Total   int             `json:"total"`
		Cursors struct {
			After string `json:"after"`
		} `json:"cursors"`
	} `json:"artists"`
}

// SpotifyService implements [SourceCatalog] for the Spotify Web API.
// Uses [oauth2] for the authorization-code flow and token refresh.
type SpotifyService struct {
	config     *oauth2.Config
	token      *oauth2.Token
	httpClient *http.Client
	baseURL    string
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
func NewSpotifyService(credentials map[string]string) (*SpotifyService, error) {
	clientID, ok := credentials["client_id"]
	if !ok || clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}

	clientSecret, ok := credentials["client_secret"]
	if !ok || clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	redirectURI, ok := credentials["redirect_uri"]
	if !ok || redirectURI == "" {
		redirectURI = "http://127.0.0.1:8000/auth/spotify/callback"
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes: []string{
			"user-library-read",
			"playlist-read-private",
			"playlist-read-collaborative",
			"user-follow-read",
		},
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}

	return &SpotifyService{
		config:     config,
		httpClient: http.DefaultClient,
		baseURL:    spotifyBaseURL,
	}, nil
}

// Authenticate installs a credential on the client. Expects either an
// "access_token" (optionally with "refresh_token") or an "auth_code" to
// exchange.
func (s *SpotifyService) Authenticate(ctx context.Context, credentials map[string]string) error {
	if accessToken, ok := credentials["access_token"]; ok && accessToken != "" {
		s.token = &oauth2.Token{
			AccessToken:  accessToken,
			RefreshToken: credentials["refresh_token"],
		}
		return nil
	}

	if authCode, ok := credentials["auth_code"]; ok && authCode != "" {
		token, err := s.config.Exchange(ctx, authCode)
		if err != nil {
			return fmt.Errorf("failed to exchange auth code: %w", err)
		}
		s.token = token
		return nil
	}

	return fmt.Errorf("%w: missing access_token or auth_code", shared.ErrMissingCredentials)
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// GetAuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) GetAuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Exchange trades an authorization code for a token without installing it.
func (s *SpotifyService) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return s.config.Exchange(ctx, code)
}

// Token returns the currently installed credential, or nil.
func (s *SpotifyService) Token() *oauth2.Token {
	return s.token
}

// Refresh renews the access token once using the stored refresh token.
func (s *SpotifyService) Refresh(ctx context.Context) error {
	if s.token == nil || s.token.RefreshToken == "" {
		return shared.ErrNoRefreshToken
	}

	refreshed, err := s.config.TokenSource(ctx, &oauth2.Token{RefreshToken: s.token.RefreshToken}).Token()
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}

	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = s.token.RefreshToken
	}
	s.token = refreshed
	return nil
}

// doRequest performs an authenticated GET against the Spotify API and decodes
// the JSON response into result. Unauthorized and rate-limit statuses map to
// the shared sentinels so callers can classify failures.
func (s *SpotifyService) doRequest(ctx context.Context, endpoint string, result any) error {
	if s.token == nil {
		return fmt.Errorf("%w: call Authenticate first", shared.ErrNotAuthenticated)
	}

	apiURL := s.baseURL + endpoint

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+s.token.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("spotify %s: %w", endpoint, shared.ErrUnauthorized)
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("spotify %s: %w", endpoint, shared.ErrRateLimited)
	case resp.StatusCode == http.StatusServiceUnavailable:
		return fmt.Errorf("spotify %s: %w", endpoint, shared.ErrServiceUnavailable)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w: spotify status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// UserProfile retrieves the current authenticated user's profile.
func (s *SpotifyService) UserProfile(ctx context.Context) (*SpotifyUser, error) {
	var user SpotifyUser
	if err := s.doRequest(ctx, "/me", &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// clampPageLimit keeps a page size within Spotify's accepted 1..50 window.
func clampPageLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	if limit > 50 {
		return 50
	}
	return limit
}

// Playlists returns one page of the user's playlists plus total.
func (s *SpotifyService) Playlists(ctx context.Context, limit, offset int) ([]Playlist, int, error) {
	endpoint := fmt.Sprintf("/me/playlists?limit=%d&offset=%d", clampPageLimit(limit), offset)

	var page spotifyPage[SpotifySimplePlaylist]
	if err := s.doRequest(ctx, endpoint, &page); err != nil {
		return nil, 0, err
	}

	playlists := make([]Playlist, 0, len(page.Items))
	for _, sp := range page.Items {
		playlists = append(playlists, Playlist{
			ID:          sp.ID,
			Name:        sp.Name,
			Description: sp.Description,
			TrackCount:  sp.Tracks.Total,
			Public:      sp.Public,
		})
	}

	return playlists, page.Total, nil
}

// PlaylistTracks returns one page of a playlist's tracks plus total.
func (s *SpotifyService) PlaylistTracks(ctx context.Context, playlistID string, limit, offset int) ([]Track, int, error) {
	endpoint := fmt.Sprintf("/playlists/%s/tracks?limit=%d&offset=%d",
		url.PathEscape(playlistID), clampPageLimit(limit), offset)

	var page spotifyPage[SpotifyPlaylistTrack]
	if err := s.doRequest(ctx, endpoint, &page); err != nil {
		return nil, 0, err
	}

	tracks := make([]Track, 0, len(page.Items))
	for _, item := range page.Items {
		if item.Track.ID == "" {
			continue // local or unavailable tracks have no catalog identity
		}
		tracks = append(tracks, projectTrack(item.Track))
	}

	return tracks, page.Total, nil
}

// SavedTracks returns one page of the user's liked tracks plus total.
func (s *SpotifyService) SavedTracks(ctx context.Context, limit, offset int) ([]Track, int, error) {
	endpoint := fmt.Sprintf("/me/tracks?limit=%d&offset=%d", clampPageLimit(limit), offset)

	var page spotifyPage[SpotifySavedTrack]
	if err := s.doRequest(ctx, endpoint, &page); err != nil {
		return nil, 0, err
	}

	tracks := make([]Track, 0, len(page.Items))
	for _, item := range page.Items {
		tracks = append(tracks, projectTrack(item.Track))
	}

	return tracks, page.Total, nil
}

// SavedAlbums returns one page of the user's saved albums plus total.
func (s *SpotifyService) SavedAlbums(ctx context.Context, limit, offset int) ([]Album, int, error) {
	endpoint := fmt.Sprintf("/me/albums?limit=%d&offset=%d", clampPageLimit(limit), offset)

	var page spotifyPage[SpotifySavedAlbum]
	if err := s.doRequest(ctx, endpoint, &page); err != nil {
		return nil, 0, err
	}

	albums := make([]Album, 0, len(page.Items))
	for _, item := range page.Items {
		albums = append(albums, Album{
			ID:          item.Album.ID,
			Name:        item.Album.Name,
			Artists:     artistNames(item.Album.Artists),
			ReleaseDate: item.Album.ReleaseDate,
			TrackCount:  item.Album.TotalTracks,
		})
	}

	return albums, page.Total, nil
}

// FollowedArtists returns one cursor page of followed artists, the next
// cursor and the total.
func (s *SpotifyService) FollowedArtists(ctx context.Context, limit int, after string) ([]Artist, string, int, error) {
	endpoint := fmt.Sprintf("/me/following?type=artist&limit=%d", clampPageLimit(limit))
	if after != "" {
		endpoint += "&after=" + url.QueryEscape(after)
	}

	var page spotifyCursorArtists
	if err := s.doRequest(ctx, endpoint, &page); err != nil {
		return nil, "", 0, err
	}

	artists := make([]Artist, 0, len(page.Artists.Items))
	for _, item := range page.Artists.Items {
		artists = append(artists, Artist{ID: item.ID, Name: item.Name})
	}

	return artists, page.Artists.Cursors.After, page.Artists.Total, nil
}

// projectTrack keeps only the fields the matcher and reporter need.
func projectTrack(t SpotifyTrack) Track {
	return Track{
		ID:      t.ID,
		Name:    t.Name,
		Artists: artistNames(t.Artists),
		Album:   t.Album.Name,
		ISRC:    t.ExternalIDs.ISRC,
	}
}

func artistNames(artists []SpotifyArtist) []string {
	names := make([]string, 0, len(artists))
	for _, a := range artists {
		names = append(names, a.Name)
	}
	return names
}
