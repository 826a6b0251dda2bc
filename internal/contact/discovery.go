package contact

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"chainrelay/internal/platform/cache"
	"chainrelay/internal/platform/metrics"
	"chainrelay/pkg/domain"
)

// queryLimit caps one discovery query; an equality query against the store
// is always limited (provider constraint).
const queryLimit = 1000

// Discovered is one node that recorded a contact naming the probed node as
// partner. RecordedAt is the most recent such contact; rolling-window
// traversal derives the next hop's window from it.
type Discovered struct {
	Recorder   domain.ContactHash
	RecordedAt time.Time
}

type queryKey struct {
	node       domain.ContactHash
	start, end int64
}

// Discovery answers "who recorded a contact with this node inside this
// window". Results are memoized per (node, window) in an invocation-scoped
// cache, so repeated probes of the same node across hops hit the store once.
type Discovery struct {
	store   Store
	queries *cache.Cache[queryKey, []Discovered]
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// DiscoveryOption configures a Discovery.
type DiscoveryOption func(*Discovery)

func WithLogger(logger *slog.Logger) DiscoveryOption {
	return func(d *Discovery) { d.logger = logger }
}

func WithMetrics(m *metrics.Metrics) DiscoveryOption {
	return func(d *Discovery) { d.metrics = m }
}

// NewDiscovery builds a Discovery over store with a fresh cache bounded at
// cacheSize. Construct one per report-processing invocation; never share.
func NewDiscovery(store Store, cacheSize int, opts ...DiscoveryOption) *Discovery {
	d := &Discovery{
		store:   store,
		queries: cache.New[queryKey, []Discovered](cacheSize),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// FindContactsOf returns the deduplicated recorders that named node as
// partner inside [start, end], sorted lexicographically. Multiple contact
// records between the same pair collapse to one entry carrying the most
// recent recorded-at.
func (d *Discovery) FindContactsOf(ctx context.Context, node domain.ContactHash, start, end time.Time) ([]Discovered, error) {
	key := queryKey{node: node, start: start.Unix(), end: end.Unix()}
	if cached, ok := d.queries.Get(key); ok {
		d.countLookup("hit")
		return cached, nil
	}
	d.countLookup("miss")

	records, err := d.store.FindRecordersOf(ctx, node, start, end, queryLimit)
	if err != nil {
		return nil, fmt.Errorf("discover contacts of %s: %w", node, err)
	}

	latest := make(map[domain.ContactHash]time.Time, len(records))
	for _, rec := range records {
		if prev, ok := latest[rec.OwnerHash]; !ok || rec.RecordedAt.After(prev) {
			latest[rec.OwnerHash] = rec.RecordedAt
		}
	}

	out := make([]Discovered, 0, len(latest))
	for recorder, recordedAt := range latest {
		out = append(out, Discovered{Recorder: recorder, RecordedAt: recordedAt})
	}
	// Lexicographic order keeps traversal expansion deterministic; it is
	// the tie-break for equal-length primary paths downstream.
	sort.Slice(out, func(i, j int) bool { return out[i].Recorder < out[j].Recorder })

	d.queries.Set(key, out)
	return out, nil
}

func (d *Discovery) countLookup(outcome string) {
	if d.metrics != nil {
		d.metrics.CacheLookups.WithLabelValues("contact_query", outcome).Inc()
	}
}
