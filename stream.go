package reddit

import (
	"context"
	"io"
	"log/slog"
	"time"
)

const (
	// DefaultStreamInterval is the pause between polls when none is configured.
	DefaultStreamInterval = 5 * time.Second

	// DefaultStreamPageSize is the assumed page size used to bound the
	// duplicate-suppression window when none is configured.
	DefaultStreamPageSize = 100

	// seenRetentionFactor sizes the seen-id window as a multiple of the page
	// size. Items older than the window are also guarded by the timestamp
	// watermark.
	seenRetentionFactor = 4
)

// FetchFunc returns the newest page of a feed, newest item first, the way
// Reddit's /new listings order their results.
type FetchFunc[T any] func(ctx context.Context) ([]T, error)

// Stream polls a feed and yields each item at most once. Duplicate
// suppression combines a bounded window of recently seen ids with a
// creation-time watermark, so an item is skipped when its id was already
// emitted or when it predates everything emitted so far. Reddit listings can
// shuffle slightly between polls; the two guards together keep re-emits out
// without unbounded memory.
//
// Batches are emitted oldest item first. A Stream is not safe for concurrent
// use.
type Stream[T any] struct {
	fetch    FetchFunc[T]
	id       func(T) string
	created  func(T) time.Time
	interval time.Duration
	logger   *slog.Logger

	seen      map[string]struct{}
	seenOrder []string
	seenCap   int
	watermark time.Time
	polled    bool
}

// NewStream builds a stream over a feed. The id function must return a
// stable unique identifier per item; created may return the zero time if the
// feed carries no timestamps, in which case only the id window suppresses
// duplicates.
func NewStream[T any](fetch FetchFunc[T], id func(T) string, created func(T) time.Time, interval time.Duration, pageSize int, logger *slog.Logger) *Stream[T] {
	if interval <= 0 {
		interval = DefaultStreamInterval
	}
	if pageSize <= 0 {
		pageSize = DefaultStreamPageSize
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Stream[T]{
		fetch:    fetch,
		id:       id,
		created:  created,
		interval: interval,
		logger:   logger,
		seen:     make(map[string]struct{}),
		seenCap:  pageSize * seenRetentionFactor,
	}
}

// Poll fetches the feed once and returns the items not yet emitted, oldest
// first. The first poll emits the entire page, seeding the watermark.
func (s *Stream[T]) Poll(ctx context.Context) ([]T, error) {
	items, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}
	s.polled = true

	fresh := make([]T, 0, len(items))
	// Newest first on the wire; walk backwards to emit chronologically.
	for i := len(items) - 1; i >= 0; i-- {
		item := items[i]
		if !s.admit(item) {
			continue
		}
		fresh = append(fresh, item)
	}

	for _, item := range fresh {
		s.mark(item)
	}

	if len(fresh) > 0 {
		s.logger.Debug("stream emitted batch", "count", len(fresh), "fetched", len(items))
	}
	return fresh, nil
}

// NextBatch blocks until a poll yields at least one new item or the context
// ends. Consecutive calls pace themselves by the configured interval.
func (s *Stream[T]) NextBatch(ctx context.Context) ([]T, error) {
	first := !s.polled
	for {
		if !first {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.interval):
			}
		}
		first = false

		batch, err := s.Poll(ctx)
		if err != nil {
			return nil, err
		}
		if len(batch) > 0 {
			return batch, nil
		}
	}
}

// Run polls until the context ends, sending each fresh item to out in
// chronological order. The channel is closed on return. Fetch errors are
// returned immediately; callers who want to ride out transient failures can
// restart Run, the dedupe state survives.
func (s *Stream[T]) Run(ctx context.Context, out chan<- T) error {
	defer close(out)
	first := !s.polled
	for {
		if !first {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.interval):
			}
		}
		first = false

		batch, err := s.Poll(ctx)
		if err != nil {
			return err
		}
		for _, item := range batch {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case out <- item:
			}
		}
	}
}

// admit reports whether an item has not been emitted before.
func (s *Stream[T]) admit(item T) bool {
	if _, ok := s.seen[s.id(item)]; ok {
		return false
	}
	if ts := s.created(item); !ts.IsZero() && !s.watermark.IsZero() && !ts.After(s.watermark) {
		return false
	}
	return true
}

// mark records an emitted item, evicting the oldest ids past the retention
// window and advancing the watermark.
func (s *Stream[T]) mark(item T) {
	id := s.id(item)
	if _, ok := s.seen[id]; !ok {
		s.seen[id] = struct{}{}
		s.seenOrder = append(s.seenOrder, id)
		for len(s.seenOrder) > s.seenCap {
			delete(s.seen, s.seenOrder[0])
			s.seenOrder = s.seenOrder[1:]
		}
	}
	if ts := s.created(item); ts.After(s.watermark) {
		s.watermark = ts
	}
}
