package notification

import (
	"context"
	"fmt"
	"log/slog"

	"chainrelay/internal/batch"
	"chainrelay/internal/platform/metrics"
	"chainrelay/internal/push"
	"chainrelay/pkg/domain"
)

// CascadeRunner runs a delete cascade as one self-contained invocation:
// fresh batch writers per call, flushed before returning. The report
// service calls it synchronously from the delete endpoint.
type CascadeRunner struct {
	store   Store
	tokens  push.TokenStore
	sender  push.Sender
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// CascadeRunnerOption configures a CascadeRunner.
type CascadeRunnerOption func(*CascadeRunner)

func WithCascadeLogger(logger *slog.Logger) CascadeRunnerOption {
	return func(r *CascadeRunner) { r.logger = logger }
}

func WithCascadeMetrics(mx *metrics.Metrics) CascadeRunnerOption {
	return func(r *CascadeRunner) { r.metrics = mx }
}

// NewCascadeRunner builds a runner. A nil sender disables pushes; the
// documents are still flipped.
func NewCascadeRunner(store Store, tokens push.TokenStore, sender push.Sender, opts ...CascadeRunnerOption) *CascadeRunner {
	r := &CascadeRunner{
		store:  store,
		tokens: tokens,
		sender: sender,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *CascadeRunner) CascadeDelete(ctx context.Context, reportID domain.ReportID) (int, error) {
	docs := batch.NewWriter("notifications", batch.DefaultCeiling, r.store.BulkUpsert,
		batch.WithLogger[Notification](r.logger))
	pushes := batch.NewWriter("pushes", batch.DefaultCeiling, r.sendPushes,
		batch.WithLogger[push.Message](r.logger))

	propOpts := []PropagatorOption{WithPropagatorLogger(r.logger)}
	if r.metrics != nil {
		propOpts = append(propOpts, WithPropagatorMetrics(r.metrics))
	}
	prop := NewPropagator(r.store, r.tokens, docs, pushes, propOpts...)

	affected, err := prop.CascadeDelete(ctx, reportID)
	if err != nil {
		return 0, err
	}

	docRes := docs.Flush(ctx)
	r.countFlush("notifications", docRes)
	pushRes := pushes.Flush(ctx)
	r.countFlush("pushes", pushRes)
	if r.metrics != nil && pushRes.Failed > 0 {
		r.metrics.PushFailures.Add(float64(pushRes.Failed))
	}

	if docRes.Failed > 0 {
		return affected - docRes.Failed, fmt.Errorf("delete cascade: %d of %d updates failed", docRes.Failed, affected)
	}
	return affected, nil
}

func (r *CascadeRunner) sendPushes(ctx context.Context, msgs []push.Message) error {
	if r.sender == nil {
		return nil
	}
	return r.sender.Send(ctx, msgs)
}

func (r *CascadeRunner) countFlush(kind string, res batch.Result) {
	if r.metrics == nil {
		return
	}
	if res.Succeeded > 0 {
		r.metrics.BatchFlushes.WithLabelValues(kind, "ok").Add(float64(res.Batches))
	}
	if res.Failed > 0 {
		r.metrics.BatchFlushes.WithLabelValues(kind, "failed").Inc()
	}
}
