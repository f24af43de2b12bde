package services

import (
	"context"
	"sync"

	"github.com/perfectritone/spotify-to-tidal-web/internal/shared"
)

// Refreshing decorates a [SourceCatalog] with a single silent credential
// refresh: when a call fails with an unauthorized error, the wrapper refreshes
// the credential once and retries the call once. A second unauthorized, or a
// failed refresh, surfaces the original auth error to the caller.
//
// The wrapper is an explicit composition around the client rather than any
// dynamic interception, so the retry behavior is visible at the call site
// where the catalog is constructed.
type Refreshing struct {
	catalog   SourceCatalog
	refresher Refresher

	mu        sync.Mutex
	refreshed bool
}

// NewRefreshing wraps catalog with refresh-and-retry-once behavior. The
// refresher is typically the same client; pass nil to disable refresh, in
// which case the wrapper is transparent.
func NewRefreshing(catalog SourceCatalog, refresher Refresher) *Refreshing {
	return &Refreshing{catalog: catalog, refresher: refresher}
}

func (r *Refreshing) Name() string {
	return r.catalog.Name()
}

// retry runs op, and on an unauthorized failure attempts one refresh for the
// lifetime of the wrapper before re-running op.
func (r *Refreshing) retry(ctx context.Context, op func() error) error {
	err := op()
	if err == nil || !shared.IsAuthError(err) || r.refresher == nil {
		return err
	}

	r.mu.Lock()
	alreadyTried := r.refreshed
	r.refreshed = true
	r.mu.Unlock()

	if alreadyTried {
		return err
	}

	if refreshErr := r.refresher.Refresh(ctx); refreshErr != nil {
		return err
	}

	return op()
}

func (r *Refreshing) Playlists(ctx context.Context, limit, offset int) ([]Playlist, int, error) {
	var items []Playlist
	var total int
	err := r.retry(ctx, func() error {
		var opErr error
		items, total, opErr = r.catalog.Playlists(ctx, limit, offset)
		return opErr
	})
	return items, total, err
}

func (r *Refreshing) PlaylistTracks(ctx context.Context, playlistID string, limit, offset int) ([]Track, int, error) {
	var items []Track
	var total int
	err := r.retry(ctx, func() error {
		var opErr error
		items, total, opErr = r.catalog.PlaylistTracks(ctx, playlistID, limit, offset)
		return opErr
	})
	return items, total, err
}

func (r *Refreshing) SavedTracks(ctx context.Context, limit, offset int) ([]Track, int, error) {
	var items []Track
	var total int
	err := r.retry(ctx, func() error {
		var opErr error
		items, total, opErr = r.catalog.SavedTracks(ctx, limit, offset)
		return opErr
	})
	return items, total, err
}

func (r *Refreshing) SavedAlbums(ctx context.Context, limit, offset int) ([]Album, int, error) {
	var items []Album
	var total int
	err := r.retry(ctx, func() error {
		var opErr error
		items, total, opErr = r.catalog.SavedAlbums(ctx, limit, offset)
		return opErr
	})
	return items, total, err
}

func (r *Refreshing) FollowedArtists(ctx context.Context, limit int, after string) ([]Artist, string, int, error) {
	var items []Artist
	var next string
	var total int
	err := r.retry(ctx, func() error {
		var opErr error
		items, next, total, opErr = r.catalog.FollowedArtists(ctx, limit, after)
		return opErr
	})
	return items, next, total, err
}
