// Tidal API implementation of [Destination]
//
// Uses the device authorization grant for login and the v1 catalog endpoints
// for search, favorites, and playlist operations.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/perfectritone/spotify-to-tidal-web/internal/shared"
)

const (
	tidalAuthBaseURL = "https://auth.tidal.com/v1/oauth2"
	tidalBaseURL     = "https://api.tidal.com/v1"
	tidalAuthScope   = "r_usr w_usr"
)

// TidalArtist represents an artist in Tidal responses.
type TidalArtist struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// TidalAlbum represents an album in Tidal responses.
type TidalAlbum struct {
	ID             int64         `json:"id"`
	Title          string        `json:"title"`
	Artists        []TidalArtist `json:"artists"`
	ReleaseDate    string        `json:"releaseDate"`
	NumberOfTracks int           `json:"numberOfTracks"`
}

// TidalTrack represents a track in Tidal responses.
type TidalTrack struct {
	ID       int64         `json:"id"`
	Title    string        `json:"title"`
	Artists  []TidalArtist `json:"artists"`
	Album    TidalAlbum    `json:"album"`
	ISRC     string        `json:"isrc"`
	Duration int           `json:"duration"`
}

// TidalPlaylist represents a playlist in Tidal responses.
type TidalPlaylist struct {
	UUID           string `json:"uuid"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	NumberOfTracks int    `json:"numberOfTracks"`
	PublicPlaylist bool   `json:"publicPlaylist"`
}

// tidalItems is the common {items: [...], totalNumberOfItems: n} list shape.
type tidalItems[T any] struct {
	Items              []T `json:"items"`
	TotalNumberOfItems int `json:"totalNumberOfItems"`
}

// tidalFavorite wraps a favorited item with its added date.
type tidalFavorite[T any] struct {
	Created string `json:"created"`
	Item    T      `json:"item"`
}

// TidalDeviceAuth is the response of the device authorization endpoint.
type TidalDeviceAuth struct {
	DeviceCode              string `json:"deviceCode"`
	UserCode                string `json:"userCode"`
	VerificationURI         string `json:"verificationUri"`
	VerificationURIComplete string `json:"verificationUriComplete"`
	ExpiresIn               int    `json:"expiresIn"`
	Interval                int    `json:"interval"`
}

// TidalTokens holds an authorized Tidal session's credentials.
type TidalTokens struct {
	TokenType    string    `json:"token_type"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	UserID       string    `json:"user_id"`
}

// TidalService implements [Destination] for the Tidal API.
type TidalService struct {
	clientID     string
	clientSecret string
	tokens       *TidalTokens
	countryCode  string
	httpClient   *http.Client
	baseURL      string
	authBaseURL  string
}

// NewTidalService creates a new Tidal service with the given device-flow credentials.
func NewTidalService(credentials map[string]string) (*TidalService, error) {
	clientID, ok := credentials["client_id"]
	if !ok || clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}

	return &TidalService{
		clientID:     clientID,
		clientSecret: credentials["client_secret"],
		countryCode:  "US",
		httpClient:   http.DefaultClient,
		baseURL:      tidalBaseURL,
		authBaseURL:  tidalAuthBaseURL,
	}, nil
}

func (t *TidalService) Name() string {
	return "Tidal"
}

// StartDeviceAuth begins the device authorization flow and returns the codes
// the user needs to approve the link in a browser.
func (t *TidalService) StartDeviceAuth(ctx context.Context) (*TidalDeviceAuth, error) {
	form := url.Values{
		"client_id": {t.clientID},
		"scope":     {tidalAuthScope},
	}

	var auth TidalDeviceAuth
	if err := t.postForm(ctx, t.authBaseURL+"/device_authorization", form, &auth); err != nil {
		return nil, fmt.Errorf("device authorization failed: %w", err)
	}

	if !strings.HasPrefix(auth.VerificationURIComplete, "http") {
		auth.VerificationURIComplete = "https://" + auth.VerificationURIComplete
	}

	return &auth, nil
}

// CheckDeviceAuth polls the token endpoint once for a pending device grant.
// Returns [shared.ErrAuthPending] while the user has not yet approved.
func (t *TidalService) CheckDeviceAuth(ctx context.Context, deviceCode string) (*TidalTokens, error) {
	form := url.Values{
		"client_id":   {t.clientID},
		"device_code": {deviceCode},
		"grant_type":  {"urn:ietf:params:oauth:grant-type:device_code"},
		"scope":       {tidalAuthScope},
	}
	if t.clientSecret != "" {
		form.Set("client_secret", t.clientSecret)
	}

	var resp struct {
		TokenType    string `json:"token_type"`
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int    `json:"expires_in"`
		Error        string `json:"error"`
		User         struct {
			UserID int64 `json:"userId"`
		} `json:"user"`
	}

	err := t.postForm(ctx, t.authBaseURL+"/token", form, &resp)
	if resp.Error == "authorization_pending" {
		return nil, shared.ErrAuthPending
	}
	if err != nil {
		return nil, fmt.Errorf("device token request failed: %w", err)
	}
	if resp.AccessToken == "" {
		return nil, fmt.Errorf("%w: empty access token", shared.ErrAPIRequest)
	}

	tokens := &TidalTokens{
		TokenType:    resp.TokenType,
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second),
		UserID:       strconv.FormatInt(resp.User.UserID, 10),
	}
	t.tokens = tokens
	return tokens, nil
}

// LoadSession installs previously obtained tokens on the client.
func (t *TidalService) LoadSession(tokens *TidalTokens) error {
	if tokens == nil || tokens.AccessToken == "" {
		return fmt.Errorf("%w: empty tidal session", shared.ErrMissingCredentials)
	}
	t.tokens = tokens
	return nil
}

// Tokens returns the currently installed session credentials, or nil.
func (t *TidalService) Tokens() *TidalTokens {
	return t.tokens
}

// CheckLogin verifies the installed session against the sessions endpoint and
// captures the account's country code for catalog queries.
func (t *TidalService) CheckLogin(ctx context.Context) error {
	var session struct {
		UserID      int64  `json:"userId"`
		CountryCode string `json:"countryCode"`
	}
	if err := t.doRequest(ctx, http.MethodGet, "/sessions", nil, &session); err != nil {
		return err
	}

	if session.CountryCode != "" {
		t.countryCode = session.CountryCode
	}
	if t.tokens.UserID == "" && session.UserID != 0 {
		t.tokens.UserID = strconv.FormatInt(session.UserID, 10)
	}
	return nil
}

// postForm sends a form-encoded POST without bearer auth (token endpoints).
func (t *TidalService) postForm(ctx context.Context, fullURL string, form url.Values, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	// Decode the body even on error statuses: device-flow polling returns
	// 400 with {"error": "authorization_pending"}.
	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil && resp.StatusCode < 300 {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: tidal auth status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	return nil
}

// doRequest performs an authenticated request against the Tidal API. A form
// body may be provided for POST endpoints. Unauthorized and rate-limit
// statuses map to the shared sentinels.
func (t *TidalService) doRequest(ctx context.Context, method, endpoint string, form url.Values, result any) error {
	if t.tokens == nil {
		return fmt.Errorf("%w: call CheckDeviceAuth or LoadSession first", shared.ErrNotAuthenticated)
	}

	apiURL := t.baseURL + endpoint

	var req *http.Request
	var err error
	if form != nil {
		req, err = http.NewRequestWithContext(ctx, method, apiURL, strings.NewReader(form.Encode()))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	} else {
		req, err = http.NewRequestWithContext(ctx, method, apiURL, nil)
	}
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+t.tokens.AccessToken)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("tidal %s: %w", endpoint, shared.ErrUnauthorized)
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("tidal %s: %w", endpoint, shared.ErrRateLimited)
	case resp.StatusCode == http.StatusServiceUnavailable:
		return fmt.Errorf("tidal %s: %w", endpoint, shared.ErrServiceUnavailable)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w: tidal status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

func (t *TidalService) userPath(suffix string) string {
	return fmt.Sprintf("/users/%s%s", url.PathEscape(t.tokens.UserID), suffix)
}

// SearchTracks returns up to limit ranked track candidates for a query.
func (t *TidalService) SearchTracks(ctx context.Context, query string, limit int) ([]Track, error) {
	endpoint := fmt.Sprintf("/search/tracks?query=%s&limit=%d&countryCode=%s",
		url.QueryEscape(query), limit, t.countryCode)

	var page tidalItems[TidalTrack]
	if err := t.doRequest(ctx, http.MethodGet, endpoint, nil, &page); err != nil {
		return nil, err
	}

	tracks := make([]Track, 0, len(page.Items))
	for _, item := range page.Items {
		tracks = append(tracks, projectTidalTrack(item))
	}
	return tracks, nil
}

// SearchAlbums returns up to limit ranked album candidates for a query.
func (t *TidalService) SearchAlbums(ctx context.Context, query string, limit int) ([]Album, error) {
	endpoint := fmt.Sprintf("/search/albums?query=%s&limit=%d&countryCode=%s",
		url.QueryEscape(query), limit, t.countryCode)

	var page tidalItems[TidalAlbum]
	if err := t.doRequest(ctx, http.MethodGet, endpoint, nil, &page); err != nil {
		return nil, err
	}

	albums := make([]Album, 0, len(page.Items))
	for _, item := range page.Items {
		albums = append(albums, projectTidalAlbum(item))
	}
	return albums, nil
}

// SearchArtists returns up to limit ranked artist candidates for a query.
func (t *TidalService) SearchArtists(ctx context.Context, query string, limit int) ([]Artist, error) {
	endpoint := fmt.Sprintf("/search/artists?query=%s&limit=%d&countryCode=%s",
		url.QueryEscape(query), limit, t.countryCode)

	var page tidalItems[TidalArtist]
	if err := t.doRequest(ctx, http.MethodGet, endpoint, nil, &page); err != nil {
		return nil, err
	}

	artists := make([]Artist, 0, len(page.Items))
	for _, item := range page.Items {
		artists = append(artists, Artist{ID: strconv.FormatInt(item.ID, 10), Name: item.Name})
	}
	return artists, nil
}

// FavoriteTrackIDs returns one page of favorited track identifiers.
func (t *TidalService) FavoriteTrackIDs(ctx context.Context, limit, offset int) ([]string, error) {
	endpoint := t.userPath(fmt.Sprintf("/favorites/tracks?limit=%d&offset=%d&countryCode=%s", limit, offset, t.countryCode))

	var page tidalItems[tidalFavorite[TidalTrack]]
	if err := t.doRequest(ctx, http.MethodGet, endpoint, nil, &page); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(page.Items))
	for _, fav := range page.Items {
		ids = append(ids, strconv.FormatInt(fav.Item.ID, 10))
	}
	return ids, nil
}

// FavoriteAlbumIDs returns one page of favorited album identifiers.
func (t *TidalService) FavoriteAlbumIDs(ctx context.Context, limit, offset int) ([]string, error) {
	endpoint := t.userPath(fmt.Sprintf("/favorites/albums?limit=%d&offset=%d&countryCode=%s", limit, offset, t.countryCode))

	var page tidalItems[tidalFavorite[TidalAlbum]]
	if err := t.doRequest(ctx, http.MethodGet, endpoint, nil, &page); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(page.Items))
	for _, fav := range page.Items {
		ids = append(ids, strconv.FormatInt(fav.Item.ID, 10))
	}
	return ids, nil
}

// FavoriteArtistIDs returns one page of favorited artist identifiers.
func (t *TidalService) FavoriteArtistIDs(ctx context.Context, limit, offset int) ([]string, error) {
	endpoint := t.userPath(fmt.Sprintf("/favorites/artists?limit=%d&offset=%d&countryCode=%s", limit, offset, t.countryCode))

	var page tidalItems[tidalFavorite[TidalArtist]]
	if err := t.doRequest(ctx, http.MethodGet, endpoint, nil, &page); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(page.Items))
	for _, fav := range page.Items {
		ids = append(ids, strconv.FormatInt(fav.Item.ID, 10))
	}
	return ids, nil
}

// AddFavoriteTrack adds a track to the user's favorites. Tidal treats
// re-adding an existing favorite as a no-op.
func (t *TidalService) AddFavoriteTrack(ctx context.Context, trackID string) error {
	form := url.Values{"trackIds": {trackID}}
	return t.doRequest(ctx, http.MethodPost, t.userPath("/favorites/tracks?countryCode="+t.countryCode), form, nil)
}

// AddFavoriteAlbum adds an album to the user's favorites.
func (t *TidalService) AddFavoriteAlbum(ctx context.Context, albumID string) error {
	form := url.Values{"albumIds": {albumID}}
	return t.doRequest(ctx, http.MethodPost, t.userPath("/favorites/albums?countryCode="+t.countryCode), form, nil)
}

// AddFavoriteArtist adds an artist to the user's favorites.
func (t *TidalService) AddFavoriteArtist(ctx context.Context, artistID string) error {
	form := url.Values{"artistIds": {artistID}}
	return t.doRequest(ctx, http.MethodPost, t.userPath("/favorites/artists?countryCode="+t.countryCode), form, nil)
}

// Playlists returns all of the user's playlists.
func (t *TidalService) Playlists(ctx context.Context) ([]Playlist, error) {
	var all []Playlist
	limit := 50
	offset := 0

	for {
		endpoint := t.userPath(fmt.Sprintf("/playlists?limit=%d&offset=%d", limit, offset))

		var page tidalItems[TidalPlaylist]
		if err := t.doRequest(ctx, http.MethodGet, endpoint, nil, &page); err != nil {
			return nil, err
		}

		for _, pl := range page.Items {
			all = append(all, Playlist{
				ID:          pl.UUID,
				Name:        pl.Title,
				Description: pl.Description,
				TrackCount:  pl.NumberOfTracks,
				Public:      pl.PublicPlaylist,
			})
		}

		if len(page.Items) < limit {
			break
		}
		offset += limit
	}

	return all, nil
}

// CreatePlaylist creates a new private playlist with the given name.
func (t *TidalService) CreatePlaylist(ctx context.Context, name, description string) (*Playlist, error) {
	form := url.Values{
		"title":       {name},
		"description": {description},
	}

	var created TidalPlaylist
	if err := t.doRequest(ctx, http.MethodPost, t.userPath("/playlists"), form, &created); err != nil {
		return nil, err
	}

	return &Playlist{
		ID:          created.UUID,
		Name:        created.Title,
		Description: created.Description,
	}, nil
}

// AddPlaylistTracks appends tracks to a playlist, skipping duplicates.
func (t *TidalService) AddPlaylistTracks(ctx context.Context, playlistID string, trackIDs []string) error {
	if len(trackIDs) == 0 {
		return nil
	}

	form := url.Values{
		"trackIds": {strings.Join(trackIDs, ",")},
		"onDupes":  {"SKIP"},
	}
	endpoint := fmt.Sprintf("/playlists/%s/items", url.PathEscape(playlistID))
	return t.doRequest(ctx, http.MethodPost, endpoint, form, nil)
}

// PlaylistTrackIDs returns every track identifier already in a playlist.
func (t *TidalService) PlaylistTrackIDs(ctx context.Context, playlistID string) ([]string, error) {
	var ids []string
	limit := 100
	offset := 0

	for {
		endpoint := fmt.Sprintf("/playlists/%s/tracks?limit=%d&offset=%d&countryCode=%s",
			url.PathEscape(playlistID), limit, offset, t.countryCode)

		var page tidalItems[TidalTrack]
		if err := t.doRequest(ctx, http.MethodGet, endpoint, nil, &page); err != nil {
			return nil, err
		}

		for _, track := range page.Items {
			ids = append(ids, strconv.FormatInt(track.ID, 10))
		}

		if len(page.Items) < limit {
			break
		}
		offset += limit
	}

	return ids, nil
}

func projectTidalTrack(t TidalTrack) Track {
	return Track{
		ID:      strconv.FormatInt(t.ID, 10),
		Name:    t.Title,
		Artists: tidalArtistNames(t.Artists),
		Album:   t.Album.Title,
		ISRC:    t.ISRC,
	}
}

func projectTidalAlbum(a TidalAlbum) Album {
	return Album{
		ID:          strconv.FormatInt(a.ID, 10),
		Name:        a.Title,
		Artists:     tidalArtistNames(a.Artists),
		ReleaseDate: a.ReleaseDate,
		TrackCount:  a.NumberOfTracks,
	}
}

func tidalArtistNames(artists []TidalArtist) []string {
	names := make([]string, 0, len(artists))
	for _, a := range artists {
		names = append(names, a.Name)
	}
	return names
}
