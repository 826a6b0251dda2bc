package notification

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"chainrelay/internal/batch"
	"chainrelay/internal/platform/metrics"
	"chainrelay/internal/push"
	"chainrelay/internal/report"
	"chainrelay/pkg/domain"
	"chainrelay/pkg/platform/sentinel"
)

// lineageQueryLimit bounds the downstream lookup. Chains are at most ten
// hops deep, so a lineage larger than this indicates data corruption rather
// than a legitimate graph.
const lineageQueryLimit = 1000

// Propagator pushes status changes downstream through previously
// materialized notifications. It only ever flips existing documents; it
// never creates one.
type Propagator struct {
	store   Store
	tokens  push.TokenStore
	docs    *batch.Writer[Notification]
	pushes  *batch.Writer[push.Message]
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// PropagatorOption configures a Propagator.
type PropagatorOption func(*Propagator)

func WithPropagatorLogger(logger *slog.Logger) PropagatorOption {
	return func(p *Propagator) { p.logger = logger }
}

func WithPropagatorMetrics(mx *metrics.Metrics) PropagatorOption {
	return func(p *Propagator) { p.metrics = mx }
}

func NewPropagator(
	store Store,
	tokens push.TokenStore,
	docs *batch.Writer[Notification],
	pushes *batch.Writer[push.Message],
	opts ...PropagatorOption,
) *Propagator {
	p := &Propagator{
		store:  store,
		tokens: tokens,
		docs:   docs,
		pushes: pushes,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Propagate flips every exposure notification downstream of a negative
// reporter to a status update. Downstream means the document's chain path
// passes through the reporter's chain hash; the reporter's own records are
// untouched because a stored path never includes its recipient. The
// operation is idempotent: documents already flipped or withdrawn are left
// alone.
func (p *Propagator) Propagate(ctx context.Context, rpt report.Report) (int, error) {
	downstream, err := p.store.FindByPathMember(ctx, rpt.ChainHash, lineageQueryLimit)
	if err != nil {
		return 0, err
	}

	affected := 0
	for _, n := range downstream {
		if n.Type != TypeExposure {
			continue
		}
		n.Type = TypeStatusUpdate
		n.UpdatedAt = time.Now()
		p.docs.Add(n)
		p.enqueuePush(ctx, n)
		p.countMaterialized(TypeStatusUpdate)
		affected++
	}
	p.logger.InfoContext(ctx, "negative result propagated",
		"report_id", rpt.ID.String(),
		"downstream", len(downstream),
		"affected", affected,
	)
	return affected, nil
}

// CascadeDelete flips every notification materialized from the deleted
// report to report_deleted and notifies each recipient. Already-withdrawn
// documents are skipped, so the cascade is safe to re-run.
func (p *Propagator) CascadeDelete(ctx context.Context, reportID domain.ReportID) (int, error) {
	ns, err := p.store.ListByReport(ctx, reportID, lineageQueryLimit)
	if err != nil {
		return 0, err
	}

	affected := 0
	for _, n := range ns {
		if n.Type == TypeReportDeleted {
			continue
		}
		n.Type = TypeReportDeleted
		n.UpdatedAt = time.Now()
		p.docs.Add(n)
		p.enqueuePush(ctx, n)
		p.countMaterialized(TypeReportDeleted)
		affected++
	}
	return affected, nil
}

func (p *Propagator) enqueuePush(ctx context.Context, n Notification) {
	token, err := p.tokens.Find(ctx, n.RecipientHash)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			p.logger.WarnContext(ctx, "push token lookup failed", "error", err)
		}
		return
	}
	title, body := PushContent(n)
	p.pushes.Add(push.Message{
		RecipientToken: token,
		NotificationID: n.ID,
		Type:           string(n.Type),
		Title:          title,
		Body:           body,
	})
	if p.metrics != nil {
		p.metrics.PushesEnqueued.Inc()
	}
}

func (p *Propagator) countMaterialized(t Type) {
	if p.metrics != nil {
		p.metrics.NotificationsMaterialized.WithLabelValues(string(t)).Inc()
	}
}
