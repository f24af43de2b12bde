package tasks

import (
	"context"
)

// BatchFunc fetches one limit/offset batch of destination identifiers.
// A short batch signals end of data.
type BatchFunc func(ctx context.Context, limit, offset int) ([]string, error)

// DestIndex is the run-scoped set of destination identifiers known to be
// present for one collection type. It only grows: identifiers are added by
// the initial load and by Record after each successful destination add, so
// duplicate adds within a run are prevented. Not persisted beyond the run.
type DestIndex struct {
	ids map[string]struct{}
}

// NewDestIndex creates an empty index.
func NewDestIndex() *DestIndex {
	return &DestIndex{ids: make(map[string]struct{})}
}

// indexBatchSize bounds destination-index fetches so loading a large library
// does not spike memory.
const indexBatchSize = 100

// Load populates the index from the destination in fixed-size batches,
// invoking keepalive after each batch so long loads stay observable. A batch
// failure leaves the index as loaded so far and returns the error;
// reconciliation proceeds best-effort with a partial (possibly empty) index.
func (i *DestIndex) Load(ctx context.Context, fetch BatchFunc, keepalive func()) error {
	offset := 0
	for {
		batch, err := fetch(ctx, indexBatchSize, offset)
		if err != nil {
			return err
		}

		for _, id := range batch {
			i.ids[id] = struct{}{}
		}
		if keepalive != nil {
			keepalive()
		}

		if len(batch) < indexBatchSize {
			return nil
		}
		offset += len(batch)
	}
}

// Record marks an identifier as present after a successful destination add.
func (i *DestIndex) Record(id string) {
	i.ids[id] = struct{}{}
}

// Has reports whether an identifier is known to be present.
func (i *DestIndex) Has(id string) bool {
	_, ok := i.ids[id]
	return ok
}

// Len returns the number of identifiers known to be present.
func (i *DestIndex) Len() int {
	return len(i.ids)
}
