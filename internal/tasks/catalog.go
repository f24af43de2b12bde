package tasks

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// PageFunc fetches one limit/offset page of a source collection and returns
// the page's items plus the collection total.
type PageFunc[T any] func(ctx context.Context, limit, offset int) ([]T, int, error)

// Pager lazily walks a paginated source collection. The sequence is finite
// and not restartable; a page-fetch error ends it. Page fetches after the
// first wait on a rate limiter so large libraries do not hammer the source.
type Pager[T any] struct {
	fetch    PageFunc[T]
	pageSize int
	limiter  *rate.Limiter

	buf     []T
	offset  int
	started bool
	done    bool
}

// NewPager creates a pager over fetch with the given page size and minimum
// delay between page fetches.
func NewPager[T any](fetch PageFunc[T], pageSize int, delay time.Duration) *Pager[T] {
	if pageSize <= 0 {
		pageSize = 50
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if delay > 0 {
		limiter = rate.NewLimiter(rate.Every(delay), 1)
		// Spend the burst token so the wait before the second fetch already
		// enforces the delay.
		limiter.Allow()
	}
	return &Pager[T]{fetch: fetch, pageSize: pageSize, limiter: limiter}
}

// Next returns the next item in the sequence. ok is false once the sequence
// is exhausted. Errors from page fetches propagate to the caller unclassified.
func (p *Pager[T]) Next(ctx context.Context) (item T, ok bool, err error) {
	var zero T

	for len(p.buf) == 0 {
		if p.done {
			return zero, false, nil
		}

		if p.started {
			// rate limit every page after the first
			if err := p.limiter.Wait(ctx); err != nil {
				return zero, false, err
			}
		}
		p.started = true

		page, _, err := p.fetch(ctx, p.pageSize, p.offset)
		if err != nil {
			p.done = true
			return zero, false, err
		}

		p.offset += len(page)
		if len(page) < p.pageSize {
			p.done = true
		}
		p.buf = page
	}

	item = p.buf[0]
	p.buf = p.buf[1:]
	return item, true, nil
}

// CursorFunc fetches one cursor page: items, the next cursor ("" when
// exhausted), and the collection total.
type CursorFunc[T any] func(ctx context.Context, limit int, after string) ([]T, string, int, error)

// CursorPage adapts a cursor-paginated listing to a [PageFunc] so it can
// drive a [Pager]. The adapter tracks the cursor internally, so the returned
// PageFunc must only be consumed sequentially from offset zero (which is how
// a Pager consumes it).
func CursorPage[T any](fetch CursorFunc[T]) PageFunc[T] {
	var after string
	exhausted := false

	return func(ctx context.Context, limit, _ int) ([]T, int, error) {
		if exhausted {
			return nil, 0, nil
		}

		items, next, total, err := fetch(ctx, limit, after)
		if err != nil {
			return nil, 0, err
		}

		after = next
		if next == "" {
			exhausted = true
		}
		return items, total, nil
	}
}
