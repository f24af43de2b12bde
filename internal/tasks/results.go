package tasks

// MatchDecision is the outcome of reconciling one source item against the
// destination catalog.
type MatchDecision int

const (
	// AlreadyPresent means a candidate matched and the destination already
	// had it (or an add failed after a match; the item is still "matched").
	AlreadyPresent MatchDecision = iota
	// NewlyAdded means a candidate matched and was added to the destination.
	NewlyAdded
	// NotFound means no acceptable destination candidate exists.
	NotFound
)

// CollectionResult aggregates one collection type's reconciliation outcome.
// Built incrementally while the collection is processed and immutable after
// its Done event.
type CollectionResult struct {
	Added    int      `json:"added"`
	Total    int      `json:"total"`
	NotFound []string `json:"not_found"`
	Error    string   `json:"error,omitempty"`
}

// fold records one item's decision into the counters.
func (r *CollectionResult) fold(decision MatchDecision, display string) {
	switch decision {
	case NewlyAdded:
		r.Added++
	case NotFound:
		r.NotFound = append(r.NotFound, display)
	}
}

// RunResult maps each attempted collection type to its result. Collections
// not selected for the run stay nil. A collection that failed wholesale
// carries a CollectionResult with only Error set.
type RunResult struct {
	Playlists *CollectionResult `json:"playlists,omitempty"`
	Favorites *CollectionResult `json:"favorites,omitempty"`
	Albums    *CollectionResult `json:"albums,omitempty"`
	Artists   *CollectionResult `json:"artists,omitempty"`
}

// Collection returns the result slot for a task name.
func (r *RunResult) Collection(task string) *CollectionResult {
	switch task {
	case TaskPlaylists:
		return r.Playlists
	case TaskFavorites:
		return r.Favorites
	case TaskAlbums:
		return r.Albums
	case TaskArtists:
		return r.Artists
	}
	return nil
}

func (r *RunResult) setCollection(task string, result *CollectionResult) {
	switch task {
	case TaskPlaylists:
		r.Playlists = result
	case TaskFavorites:
		r.Favorites = result
	case TaskAlbums:
		r.Albums = result
	case TaskArtists:
		r.Artists = result
	}
}

// NotFoundReport flattens every collection's not-found entries in processing
// order, prefixed with the collection name.
func (r *RunResult) NotFoundReport() []string {
	var report []string
	for _, task := range TaskOrder {
		res := r.Collection(task)
		if res == nil {
			continue
		}
		for _, entry := range res.NotFound {
			report = append(report, task+": "+entry)
		}
	}
	return report
}
