package tasks

import (
	"context"
	"strings"
	"sync"

	"github.com/perfectritone/spotify-to-tidal-web/internal/match"
	"github.com/perfectritone/spotify-to-tidal-web/internal/services"
	"github.com/perfectritone/spotify-to-tidal-web/internal/shared"
)

// collectionOps binds a collection's item type to its destination lookups.
// search resolves an item to a destination ID, swallowing transient search
// failures as a miss; only credential failures surface as errors. add
// favorites the matched ID on the destination.
type collectionOps[T any] struct {
	search  func(ctx context.Context, item T) (string, bool, error)
	add     func(ctx context.Context, destID string) error
	display func(item T) string
}

// reconcileItems is the shared item loop for the flat collections (favorites,
// albums, artists). It drains the pager in batches, runs the destination
// searches for a batch concurrently, then folds decisions and emits progress
// serially so events stay ordered and the index is mutated by one goroutine.
func reconcileItems[T any](e *Engine, ctx context.Context, events chan<- Event, task string, total int, pager *Pager[T], index *DestIndex, ops collectionOps[T]) (*CollectionResult, error) {
	result := &CollectionResult{Total: total}
	processed := 0

	for {
		batch := make([]T, 0, e.cfg.Concurrency)
		for len(batch) < e.cfg.Concurrency {
			item, ok, err := pager.Next(ctx)
			if err != nil {
				return nil, tagAuth(e.source.Name(), err)
			}
			if !ok {
				break
			}
			batch = append(batch, item)
		}
		if len(batch) == 0 {
			break
		}

		type outcome struct {
			destID string
			ok     bool
			err    error
		}
		outcomes := make([]outcome, len(batch))
		var wg sync.WaitGroup
		for i := range batch {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				id, ok, err := ops.search(ctx, batch[i])
				outcomes[i] = outcome{destID: id, ok: ok, err: err}
			}(i)
		}
		wg.Wait()
		for _, o := range outcomes {
			if o.err != nil {
				return nil, o.err
			}
		}

		for i, item := range batch {
			processed++
			display := ops.display(item)

			var decision MatchDecision
			switch {
			case !outcomes[i].ok:
				decision = NotFound
			case index.Has(outcomes[i].destID):
				decision = AlreadyPresent
			default:
				if err := ops.add(ctx, outcomes[i].destID); err != nil {
					if shared.IsAuthError(err) {
						return nil, tagAuth(e.dest.Name(), err)
					}
					// Matched but the add failed: not new, not missing.
					e.logger.Warn("add failed", "task", task, "item", display, "err", err)
					decision = AlreadyPresent
				} else {
					index.Record(outcomes[i].destID)
					decision = NewlyAdded
				}
			}
			result.fold(decision, display)

			if total > 0 {
				if err := e.emit(ctx, events, progressEvent(task, percent(processed, total), display)); err != nil {
					return nil, err
				}
			}
		}
	}

	if total <= 0 {
		result.Total = processed
	}
	// The count probe can overshoot when items disappear between counting and
	// paging; the stream still closes the collection at 100.
	if total <= 0 || processed < total {
		if err := e.emit(ctx, events, progressEvent(task, 100, "")); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// loadIndex populates a destination index, emitting a keepalive event per
// batch so long-lived consumers see liveness during the indexing phase. A
// load failure degrades to an empty or partial index; items already on the
// destination then show up as already-present when the add is attempted.
func (e *Engine) loadIndex(ctx context.Context, events chan<- Event, task string, fetch BatchFunc) (*DestIndex, error) {
	index := NewDestIndex()
	var emitErr error
	err := index.Load(ctx, fetch, func() {
		if emitErr == nil {
			emitErr = e.emit(ctx, events, progressEvent(task, 0, "indexing destination library"))
		}
	})
	if emitErr != nil {
		return nil, emitErr
	}
	if err != nil {
		if shared.IsAuthError(err) {
			return nil, tagAuth(e.dest.Name(), err)
		}
		e.logger.Warn("destination index load failed, continuing with partial index", "task", task, "err", err)
	}
	return index, nil
}

// displayTrack renders a track the way it is reported to the user, as
// "Artist - Title".
func displayTrack(t services.Track) string {
	if len(t.Artists) == 0 {
		return t.Name
	}
	return t.Artists[0] + " - " + t.Name
}

func displayAlbum(a services.Album) string {
	if len(a.Artists) == 0 {
		return a.Name
	}
	return a.Artists[0] + " - " + a.Name
}

// searchQuery builds the destination search string from a name and its lead
// artist, both simplified so edition suffixes do not poison the search.
func searchQuery(name string, artists []string) string {
	q := match.Simplify(name)
	if len(artists) > 0 {
		q = strings.TrimSpace(q + " " + match.Simplify(artists[0]))
	}
	return q
}

// findTrack resolves a source track against the destination, consulting the
// run-scoped cache first so a track liked and playlisted is searched once.
// Only definitive hits and misses are cached; transient search errors are
// logged and count as a miss.
func (e *Engine) findTrack(ctx context.Context, state *runState, t services.Track) (string, bool, error) {
	if m, ok := state.cached(t.ID); ok {
		return m.destID, m.ok, nil
	}

	candidates, err := e.dest.SearchTracks(ctx, searchQuery(t.Name, t.Artists), e.cfg.SearchLimit)
	if err != nil {
		if shared.IsAuthError(err) {
			return "", false, tagAuth(e.dest.Name(), err)
		}
		e.logger.Warn("track search failed", "track", displayTrack(t), "err", err)
		return "", false, nil
	}
	for _, c := range candidates {
		if match.TrackMatches(t.Name, c.Name, t.ISRC, c.ISRC) {
			state.store(t.ID, trackMatch{destID: c.ID, ok: true})
			return c.ID, true, nil
		}
	}
	state.store(t.ID, trackMatch{})
	return "", false, nil
}

func (e *Engine) findAlbum(ctx context.Context, a services.Album) (string, bool, error) {
	candidates, err := e.dest.SearchAlbums(ctx, searchQuery(a.Name, a.Artists), e.cfg.SearchLimit)
	if err != nil {
		if shared.IsAuthError(err) {
			return "", false, tagAuth(e.dest.Name(), err)
		}
		e.logger.Warn("album search failed", "album", displayAlbum(a), "err", err)
		return "", false, nil
	}
	for _, c := range candidates {
		if match.AlbumSimilar(a.Name, c.Name, a.Artists, c.Artists, e.cfg.AlbumThreshold) {
			return c.ID, true, nil
		}
	}
	return "", false, nil
}

func (e *Engine) findArtist(ctx context.Context, a services.Artist) (string, bool, error) {
	candidates, err := e.dest.SearchArtists(ctx, match.Simplify(a.Name), e.cfg.SearchLimit)
	if err != nil {
		if shared.IsAuthError(err) {
			return "", false, tagAuth(e.dest.Name(), err)
		}
		e.logger.Warn("artist search failed", "artist", a.Name, "err", err)
		return "", false, nil
	}
	for _, c := range candidates {
		if match.ArtistMatches(a.Name, c.Name) {
			return c.ID, true, nil
		}
	}
	return "", false, nil
}

func (e *Engine) syncFavorites(ctx context.Context, events chan<- Event, state *runState) (*CollectionResult, error) {
	_, rawTotal, err := e.source.SavedTracks(ctx, 1, 0)
	total, err := e.countTotal(TaskFavorites, rawTotal, err)
	if err != nil {
		return nil, err
	}

	index, err := e.loadIndex(ctx, events, TaskFavorites, e.dest.FavoriteTrackIDs)
	if err != nil {
		return nil, err
	}

	pager := NewPager(e.source.SavedTracks, e.cfg.PageSize, e.cfg.RequestDelay)
	ops := collectionOps[services.Track]{
		search: func(ctx context.Context, t services.Track) (string, bool, error) {
			return e.findTrack(ctx, state, t)
		},
		add:     e.dest.AddFavoriteTrack,
		display: displayTrack,
	}
	return reconcileItems(e, ctx, events, TaskFavorites, total, pager, index, ops)
}

func (e *Engine) syncAlbums(ctx context.Context, events chan<- Event) (*CollectionResult, error) {
	_, rawTotal, err := e.source.SavedAlbums(ctx, 1, 0)
	total, err := e.countTotal(TaskAlbums, rawTotal, err)
	if err != nil {
		return nil, err
	}

	index, err := e.loadIndex(ctx, events, TaskAlbums, e.dest.FavoriteAlbumIDs)
	if err != nil {
		return nil, err
	}

	pager := NewPager(e.source.SavedAlbums, e.cfg.PageSize, e.cfg.RequestDelay)
	ops := collectionOps[services.Album]{
		search:  e.findAlbum,
		add:     e.dest.AddFavoriteAlbum,
		display: displayAlbum,
	}
	return reconcileItems(e, ctx, events, TaskAlbums, total, pager, index, ops)
}

func (e *Engine) syncArtists(ctx context.Context, events chan<- Event) (*CollectionResult, error) {
	_, _, rawTotal, err := e.source.FollowedArtists(ctx, 1, "")
	total, err := e.countTotal(TaskArtists, rawTotal, err)
	if err != nil {
		return nil, err
	}

	index, err := e.loadIndex(ctx, events, TaskArtists, e.dest.FavoriteArtistIDs)
	if err != nil {
		return nil, err
	}

	pager := NewPager(CursorPage(e.source.FollowedArtists), e.cfg.PageSize, e.cfg.RequestDelay)
	ops := collectionOps[services.Artist]{
		search:  e.findArtist,
		add:     e.dest.AddFavoriteArtist,
		display: func(a services.Artist) string { return a.Name },
	}
	return reconcileItems(e, ctx, events, TaskArtists, total, pager, index, ops)
}
