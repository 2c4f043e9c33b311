package reddit

import (
	"context"
)

// PageFunc fetches one page of a listing. It receives the cursor of the
// previous page ("" for the first page) and returns the items, the cursor for
// the next page ("" when the listing is exhausted), and an error.
type PageFunc[T any] func(ctx context.Context, after string) ([]T, string, error)

// Listing is a lazy iterator over a paginated endpoint. Pages are fetched on
// demand: constructing a Listing performs no network traffic, and a page is
// only requested when the buffered items run out.
//
// Listing is not safe for concurrent use.
type Listing[T any] struct {
	fetch PageFunc[T]

	buffer    []T
	bufferIdx int
	after     string
	exhausted bool
}

// NewListing wraps a page fetcher in a lazy iterator.
func NewListing[T any](fetch PageFunc[T]) *Listing[T] {
	return &Listing[T]{fetch: fetch}
}

// Next returns the next item in the listing. The boolean is false when the
// listing is exhausted. Network fetches happen only at page boundaries; once
// exhausted, Next never fetches again.
func (l *Listing[T]) Next(ctx context.Context) (T, bool, error) {
	var zero T

	for l.bufferIdx >= len(l.buffer) {
		if l.exhausted {
			return zero, false, nil
		}
		if err := l.fill(ctx); err != nil {
			return zero, false, err
		}
	}

	item := l.buffer[l.bufferIdx]
	l.bufferIdx++
	return item, true, nil
}

// fill requests the next page and resets the buffer. A page with no next
// cursor marks the listing exhausted; the items of that final page are still
// served before Next reports the end.
func (l *Listing[T]) fill(ctx context.Context) error {
	items, after, err := l.fetch(ctx, l.after)
	if err != nil {
		return err
	}

	l.buffer = items
	l.bufferIdx = 0
	l.after = after
	if after == "" {
		l.exhausted = true
	}
	return nil
}

// Collect advances the listing and accumulates up to max items. A max of 0 or
// less drains the entire listing, which on a large endpoint can mean many
// round trips.
func (l *Listing[T]) Collect(ctx context.Context, max int) ([]T, error) {
	var out []T
	for max <= 0 || len(out) < max {
		item, ok, err := l.Next(ctx)
		if err != nil {
			return out, err
		}
		if !ok {
			break
		}
		out = append(out, item)
	}
	return out, nil
}

// Exhausted reports whether the listing has seen its final page. It is only
// meaningful after at least one call to Next.
func (l *Listing[T]) Exhausted() bool {
	return l.exhausted && l.bufferIdx >= len(l.buffer)
}
