// package services defines the provider interfaces and clients for the sync
// engine: Spotify as the paginated source catalog, Tidal as the searchable
// destination catalog.
package services

import (
	"context"
)

// Track is the minimal projection of a track kept for matching and display.
type Track struct {
	ID      string
	Name    string
	Artists []string
	Album   string
	ISRC    string // International Standard Recording Code for cross-service matching
}

// Album is the minimal projection of an album.
type Album struct {
	ID          string
	Name        string
	Artists     []string
	ReleaseDate string
	TrackCount  int
}

// Artist is the minimal projection of an artist.
type Artist struct {
	ID   string
	Name string
}

// Playlist represents a playlist on either service.
type Playlist struct {
	ID          string
	Name        string
	Description string
	TrackCount  int
	Public      bool
}

// SourceCatalog is the read side of a sync run: a token-authenticated service
// exposing the user's library as limit/offset (or cursor) pages. Every page
// also carries the collection's total so callers can drive percent math
// without materializing the whole collection.
//
// Implementations surface expired or invalid credentials as errors wrapping
// [shared.ErrUnauthorized].
type SourceCatalog interface {
	// Playlists returns one page of the user's playlists plus the total count.
	Playlists(ctx context.Context, limit, offset int) ([]Playlist, int, error)

	// PlaylistTracks returns one page of a playlist's tracks plus the total count.
	PlaylistTracks(ctx context.Context, playlistID string, limit, offset int) ([]Track, int, error)

	// SavedTracks returns one page of the user's liked tracks plus the total count.
	SavedTracks(ctx context.Context, limit, offset int) ([]Track, int, error)

	// SavedAlbums returns one page of the user's saved albums plus the total count.
	SavedAlbums(ctx context.Context, limit, offset int) ([]Album, int, error)

	// FollowedArtists returns one cursor page of followed artists, the cursor
	// for the next page ("" when exhausted), and the total count.
	FollowedArtists(ctx context.Context, limit int, after string) ([]Artist, string, int, error)

	// Name returns the service name (e.g. "Spotify").
	Name() string
}

// Refresher renews the source credential using a stored refresh credential.
// Implemented by source clients that can silently recover from token expiry.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Destination is the write side of a sync run: free-text search returning a
// bounded candidate list per item type, favorites listing by limit/offset,
// and add operations for favorites and playlist tracks.
type Destination interface {
	SearchTracks(ctx context.Context, query string, limit int) ([]Track, error)
	SearchAlbums(ctx context.Context, query string, limit int) ([]Album, error)
	SearchArtists(ctx context.Context, query string, limit int) ([]Artist, error)

	// FavoriteTrackIDs returns one page of identifiers already in the user's
	// favorites. A short page signals end of data.
	FavoriteTrackIDs(ctx context.Context, limit, offset int) ([]string, error)
	FavoriteAlbumIDs(ctx context.Context, limit, offset int) ([]string, error)
	FavoriteArtistIDs(ctx context.Context, limit, offset int) ([]string, error)

	AddFavoriteTrack(ctx context.Context, trackID string) error
	AddFavoriteAlbum(ctx context.Context, albumID string) error
	AddFavoriteArtist(ctx context.Context, artistID string) error

	Playlists(ctx context.Context) ([]Playlist, error)
	CreatePlaylist(ctx context.Context, name, description string) (*Playlist, error)
	AddPlaylistTracks(ctx context.Context, playlistID string, trackIDs []string) error

	// PlaylistTrackIDs returns the identifiers already present in a playlist.
	PlaylistTrackIDs(ctx context.Context, playlistID string) ([]string, error)

	// Name returns the service name (e.g. "Tidal").
	Name() string
}
