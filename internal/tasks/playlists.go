package tasks

import (
	"context"
	"strings"
	"sync"

	"github.com/perfectritone/spotify-to-tidal-web/internal/match"
	"github.com/perfectritone/spotify-to-tidal-web/internal/services"
	"github.com/perfectritone/spotify-to-tidal-web/internal/shared"
)

// addTracksBatchSize bounds how many track IDs go into a single playlist add
// request.
const addTracksBatchSize = 100

// playlistKey folds a playlist name for matching source playlists to
// destination playlists. Case and diacritics are ignored; edition suffixes
// are not stripped since hyphens and parentheses are common in playlist
// titles.
func playlistKey(name string) string {
	return match.Normalize(strings.ToLower(strings.TrimSpace(name)))
}

// syncPlaylists mirrors every source playlist onto the destination. A
// destination playlist with the same folded name is reused, otherwise one is
// created. Track reconciliation within a playlist uses the same search cache
// as the favorites phase. One failed playlist is logged and skipped; the
// rest of the collection still runs.
func (e *Engine) syncPlaylists(ctx context.Context, events chan<- Event, state *runState) (*CollectionResult, error) {
	_, rawTotal, err := e.source.Playlists(ctx, 1, 0)
	total, err := e.countTotal(TaskPlaylists, rawTotal, err)
	if err != nil {
		return nil, err
	}

	destByKey := make(map[string]services.Playlist)
	destLists, err := e.dest.Playlists(ctx)
	if err != nil {
		if shared.IsAuthError(err) {
			return nil, tagAuth(e.dest.Name(), err)
		}
		e.logger.Warn("destination playlist listing failed, creating playlists as needed", "err", err)
	}
	for _, pl := range destLists {
		destByKey[playlistKey(pl.Name)] = pl
	}

	result := &CollectionResult{Total: total}
	processed := 0
	pager := NewPager(e.source.Playlists, e.cfg.PageSize, e.cfg.RequestDelay)

	for {
		pl, ok, err := pager.Next(ctx)
		if err != nil {
			return nil, tagAuth(e.source.Name(), err)
		}
		if !ok {
			break
		}

		notFound, err := e.syncOnePlaylist(ctx, state, pl, destByKey)
		if err != nil {
			if shared.IsAuthError(err) {
				return nil, err
			}
			e.logger.Error("playlist sync failed", "playlist", pl.Name, "err", err)
		} else {
			result.Added++
			result.NotFound = append(result.NotFound, notFound...)
		}

		processed++
		if total > 0 {
			if err := e.emit(ctx, events, progressEvent(TaskPlaylists, percent(processed, total), pl.Name)); err != nil {
				return nil, err
			}
		}
	}

	if total <= 0 {
		result.Total = processed
	}
	// The count probe can overshoot when playlists disappear between counting
	// and paging; the stream still closes the collection at 100.
	if total <= 0 || processed < total {
		if err := e.emit(ctx, events, progressEvent(TaskPlaylists, 100, "")); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// syncOnePlaylist reconciles a single playlist's tracks and returns the
// display names of tracks the destination catalog does not carry.
func (e *Engine) syncOnePlaylist(ctx context.Context, state *runState, pl services.Playlist, destByKey map[string]services.Playlist) ([]string, error) {
	key := playlistKey(pl.Name)
	destPl, ok := destByKey[key]
	if !ok {
		created, err := e.dest.CreatePlaylist(ctx, pl.Name, pl.Description)
		if err != nil {
			return nil, tagAuth(e.dest.Name(), err)
		}
		destPl = *created
		destByKey[key] = destPl
	}

	index := NewDestIndex()
	existing, err := e.dest.PlaylistTrackIDs(ctx, destPl.ID)
	if err != nil {
		if shared.IsAuthError(err) {
			return nil, tagAuth(e.dest.Name(), err)
		}
		e.logger.Warn("playlist track listing failed, adds may duplicate", "playlist", pl.Name, "err", err)
	}
	for _, id := range existing {
		index.Record(id)
	}

	pager := NewPager(func(ctx context.Context, limit, offset int) ([]services.Track, int, error) {
		return e.source.PlaylistTracks(ctx, pl.ID, limit, offset)
	}, e.cfg.PageSize, e.cfg.RequestDelay)

	var toAdd []string
	var notFound []string
	for {
		batch := make([]services.Track, 0, e.cfg.Concurrency)
		for len(batch) < e.cfg.Concurrency {
			track, ok, err := pager.Next(ctx)
			if err != nil {
				return nil, tagAuth(e.source.Name(), err)
			}
			if !ok {
				break
			}
			batch = append(batch, track)
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
				id, ok, err := e.findTrack(ctx, state, batch[i])
				outcomes[i] = outcome{destID: id, ok: ok, err: err}
			}(i)
		}
		wg.Wait()

		for i, track := range batch {
			if outcomes[i].err != nil {
				return nil, outcomes[i].err
			}
			if !outcomes[i].ok {
				notFound = append(notFound, displayTrack(track))
				continue
			}
			if index.Has(outcomes[i].destID) {
				continue
			}
			index.Record(outcomes[i].destID)
			toAdd = append(toAdd, outcomes[i].destID)
		}
	}

	for start := 0; start < len(toAdd); start += addTracksBatchSize {
		end := min(start+addTracksBatchSize, len(toAdd))
		if err := e.dest.AddPlaylistTracks(ctx, destPl.ID, toAdd[start:end]); err != nil {
			if shared.IsAuthError(err) {
				return nil, tagAuth(e.dest.Name(), err)
			}
			// Matched tracks stay out of the not-found report even when
			// the add itself fails.
			e.logger.Warn("playlist add failed", "playlist", pl.Name, "count", end-start, "err", err)
		}
	}
	return notFound, nil
}
