package chain

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"chainrelay/internal/contact"
	"chainrelay/internal/platform/metrics"
	"chainrelay/pkg/domain"
)

// MaxHops bounds the blast radius: traversal never expands beyond hop 10,
// so no internal path exceeds 11 nodes.
const MaxHops = 10

// Discovery queries for distinct frontier nodes run concurrently within a
// hop; this caps the fan-out against the rate-limited store.
const maxConcurrentDiscoveries = 16

var tracer = otel.Tracer("chainrelay/internal/chain")

// Discoverer is the single read the traversal performs.
type Discoverer interface {
	FindContactsOf(ctx context.Context, node domain.ContactHash, start, end time.Time) ([]contact.Discovered, error)
}

// Traversal performs the bounded breadth-first expansion for one report.
// Construct one per invocation; it holds no state shared across reports.
type Traversal struct {
	discovery Discoverer
	policy    WindowPolicy
	root      Window
	lookback  time.Duration
	maxHops   int
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// TraversalOption configures a Traversal.
type TraversalOption func(*Traversal)

func WithTraversalLogger(logger *slog.Logger) TraversalOption {
	return func(t *Traversal) { t.logger = logger }
}

func WithTraversalMetrics(m *metrics.Metrics) TraversalOption {
	return func(t *Traversal) { t.metrics = m }
}

// WithMaxHops lowers the hop bound; values above MaxHops are clamped.
func WithMaxHops(n int) TraversalOption {
	return func(t *Traversal) {
		if n > 0 && n <= MaxHops {
			t.maxHops = n
		}
	}
}

// NewTraversal builds a traversal for a report with the given test date and
// conditions. Under the fixed policy every hop reuses the root window;
// under the rolling policy each discovered edge derives the next window
// from its own recorded-at.
func NewTraversal(discovery Discoverer, testDate time.Time, conditions []domain.ConditionType, policy WindowPolicy, opts ...TraversalOption) *Traversal {
	t := &Traversal{
		discovery: discovery,
		policy:    policy,
		root:      ComputeWindow(testDate, conditions),
		lookback:  domain.MaxIncubation(conditions),
		maxHops:   MaxHops,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

type frontierNode struct {
	hash   domain.ContactHash
	path   Path
	window Window
}

// Run expands the contact graph from the reporter's contact-relation hash
// and returns the deduplicated recipients. Within a hop, discovery queries
// run concurrently and are all gathered before the next hop begins, so hop
// h+1 never observes partial hop-h results. Expansion order is
// deterministic: frontier insertion order, discoverers sorted
// lexicographically by the discovery layer.
func (t *Traversal) Run(ctx context.Context, root domain.ContactHash) (*Dedup, error) {
	ctx, span := tracer.Start(ctx, "chain.Traversal.Run",
		trace.WithAttributes(attribute.Int("max_hops", t.maxHops)))
	defer span.End()

	results := NewDedup()
	bestDepth := map[domain.ContactHash]int{root: 0}
	frontier := []frontierNode{{hash: root, path: Path{root}, window: t.root}}

	for hop := 1; hop <= t.maxHops && len(frontier) > 0; hop++ {
		discovered, err := t.expandHop(ctx, hop, frontier)
		if err != nil {
			return nil, fmt.Errorf("hop %d: %w", hop, err)
		}

		var next []frontierNode
		for i, node := range frontier {
			for _, d := range discovered[i] {
				if d.Recorder == root {
					// A cycle back to the reporter adds no recipient.
					continue
				}
				path := append(append(Path{}, node.path...), d.Recorder)
				if _, seen := bestDepth[d.Recorder]; seen {
					// Already known at an equal or shorter depth: credit
					// the extra path but never re-expand the node.
					results.Add(path)
					continue
				}
				bestDepth[d.Recorder] = hop
				results.Add(path)
				next = append(next, frontierNode{
					hash:   d.Recorder,
					path:   path,
					window: t.nextWindow(node.window, d),
				})
			}
		}
		frontier = next

		if t.metrics != nil {
			t.metrics.HopsExpanded.Inc()
			t.metrics.FrontierSize.Observe(float64(len(frontier)))
		}
	}

	span.SetAttributes(attribute.Int("recipients", results.Len()))
	return results, nil
}

// expandHop issues one discovery query per frontier node, concurrently, and
// gathers all results before returning. Results are indexed by frontier
// position so ordering stays deterministic regardless of completion order.
func (t *Traversal) expandHop(ctx context.Context, hop int, frontier []frontierNode) ([][]contact.Discovered, error) {
	ctx, span := tracer.Start(ctx, "chain.Traversal.expandHop")
	span.SetAttributes(attribute.Int("hop", hop), attribute.Int("frontier", len(frontier)))
	defer span.End()

	discovered := make([][]contact.Discovered, len(frontier))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentDiscoveries)
	for i, node := range frontier {
		g.Go(func() error {
			found, err := t.discovery.FindContactsOf(gctx, node.hash, node.window.Start, node.window.End)
			if err != nil {
				return err
			}
			discovered[i] = found
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return discovered, nil
}

func (t *Traversal) nextWindow(current Window, d contact.Discovered) Window {
	if t.policy == WindowRolling {
		return Window{Start: d.RecordedAt.Add(-t.lookback), End: d.RecordedAt}
	}
	return current
}
