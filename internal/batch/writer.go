// Package batch accumulates pending operations and flushes them in bounded
// groups against a rate-limited provider. One writer instance belongs to one
// processing invocation; nothing here is shared or global.
package batch

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// DefaultCeiling is the provider's hard limit of operations per physical
// commit or send call.
const DefaultCeiling = 500

// FlushFunc performs one physical call for at most ceiling items.
type FlushFunc[T any] func(ctx context.Context, items []T) error

// Result summarizes one logical flush across all partitions.
type Result struct {
	Succeeded int
	Failed    int
	Batches   int
}

// Writer accumulates items and flushes them in partitions of at most the
// ceiling. A partition that keeps failing after retries is counted failed;
// it never blocks or rolls back sibling partitions.
type Writer[T any] struct {
	name     string
	ceiling  int
	items    []T
	flush    FlushFunc[T]
	retries  uint64
	interval time.Duration
	logger   *slog.Logger
}

// Option configures a Writer.
type Option[T any] func(*Writer[T])

func WithLogger[T any](logger *slog.Logger) Option[T] {
	return func(w *Writer[T]) { w.logger = logger }
}

// WithRetries sets how often a failing partition is retried before being
// counted failed.
func WithRetries[T any](n uint64) Option[T] {
	return func(w *Writer[T]) { w.retries = n }
}

// WithRetryInterval sets the initial backoff interval, mostly so tests do
// not sleep.
func WithRetryInterval[T any](d time.Duration) Option[T] {
	return func(w *Writer[T]) { w.interval = d }
}

// NewWriter builds a writer named for logging, bounded at ceiling items per
// physical call.
func NewWriter[T any](name string, ceiling int, flush FlushFunc[T], opts ...Option[T]) *Writer[T] {
	if ceiling <= 0 || ceiling > DefaultCeiling {
		ceiling = DefaultCeiling
	}
	w := &Writer[T]{
		name:     name,
		ceiling:  ceiling,
		flush:    flush,
		retries:  2,
		interval: 100 * time.Millisecond,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Add accumulates one pending item.
func (w *Writer[T]) Add(item T) {
	w.items = append(w.items, item)
}

// Len returns the number of pending items.
func (w *Writer[T]) Len() int {
	return len(w.items)
}

// Flush partitions the accumulated items into groups of at most the ceiling
// and performs one physical call per group, retrying transient failures
// with exponential backoff. Pending items are drained regardless of
// outcome; the result reports per-item success and failure counts.
func (w *Writer[T]) Flush(ctx context.Context) Result {
	items := w.items
	w.items = nil

	var res Result
	for start := 0; start < len(items); start += w.ceiling {
		end := start + w.ceiling
		if end > len(items) {
			end = len(items)
		}
		part := items[start:end]
		res.Batches++

		err := w.commitPartition(ctx, part)
		if err != nil {
			res.Failed += len(part)
			w.logger.ErrorContext(ctx, "batch partition failed",
				"writer", w.name,
				"items", len(part),
				"error", err,
			)
			continue
		}
		res.Succeeded += len(part)
	}
	return res
}

func (w *Writer[T]) commitPartition(ctx context.Context, part []T) error {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(
			backoff.WithInitialInterval(w.interval),
		), w.retries),
		ctx,
	)
	return backoff.Retry(func() error {
		return w.flush(ctx, part)
	}, policy)
}
