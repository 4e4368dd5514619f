package pagination

import (
	"context"
	"errors"
	"fmt"
	"iter"
)

// ErrCursorStalled is yielded when a page reports more pages but carries no
// items, so the cursor cannot advance.
var ErrCursorStalled = errors.New("cursor stalled: empty page with has_next")

// Cursor identifies the last item seen. The zero Cursor means "from the start".
type Cursor[K comparable] struct {
	Last  K
	Valid bool
}

// Page is one response of a cursor-paginated endpoint.
type Page[T any] struct {
	// Number is the 1-based page index within one iteration.
	Number  int
	Items   []T
	HasNext bool
}

// FetchFunc fetches the page that follows cursor.
type FetchFunc[T any, K comparable] func(ctx context.Context, cursor Cursor[K]) (Page[T], error)

// CursorPager iterates a cursor-paginated endpoint.
type CursorPager[T any, K comparable] struct {
	fetch FetchFunc[T, K]
	keyOf func(T) K
}

// NewCursorPager creates a pager. keyOf extracts the cursor value from an item.
func NewCursorPager[T any, K comparable](fetch FetchFunc[T, K], keyOf func(T) K) *CursorPager[T, K] {
	return &CursorPager[T, K]{
		fetch: fetch,
		keyOf: keyOf,
	}
}

// Pages returns a sequence that fetches pages on demand.
// Each page is yielded with a nil error; a failure is yielded once with a
// zero Page and ends the sequence. The pager does not log; reporting a
// failure is up to the caller. Stopping the range loop early stops fetching.
func (p *CursorPager[T, K]) Pages(ctx context.Context) iter.Seq2[Page[T], error] {
	return func(yield func(Page[T], error) bool) {
		var cursor Cursor[K]

		for number := 1; ; number++ {
			if err := ctx.Err(); err != nil {
				yield(Page[T]{}, err)
				return
			}

			page, err := p.fetch(ctx, cursor)
			if err != nil {
				yield(Page[T]{}, fmt.Errorf("fetch page %d: %w", number, err))
				return
			}
			page.Number = number

			if page.HasNext && len(page.Items) == 0 {
				yield(Page[T]{}, fmt.Errorf("page %d: %w", number, ErrCursorStalled))
				return
			}

			if !yield(page, nil) || !page.HasNext {
				return
			}

			next := p.keyOf(page.Items[len(page.Items)-1])
			if cursor.Valid && next == cursor.Last {
				yield(Page[T]{}, fmt.Errorf("page %d: cursor did not advance past %v: %w", number, next, ErrCursorStalled))
				return
			}
			cursor = Cursor[K]{Last: next, Valid: true}
		}
	}
}
