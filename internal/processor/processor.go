// Package processor runs the asynchronous report pipeline: it owns the
// inbox queue the HTTP layer enqueues into and drives one invocation per
// report through traversal, materialization and propagation. Everything
// invocation-scoped (discovery cache, user cache, batch writers) is
// constructed fresh inside process and discarded with it.
package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"chainrelay/internal/batch"
	"chainrelay/internal/chain"
	"chainrelay/internal/contact"
	"chainrelay/internal/notification"
	"chainrelay/internal/platform/config"
	"chainrelay/internal/platform/metrics"
	"chainrelay/internal/push"
	"chainrelay/internal/report"
	"chainrelay/internal/user"
	"chainrelay/pkg/domain"
	dErrors "chainrelay/pkg/domain-errors"
	"chainrelay/pkg/platform/sentinel"
)

var tracer = otel.Tracer("chainrelay/internal/processor")

// Processor is the single background worker consuming submitted reports.
type Processor struct {
	cfg    config.EngineConfig
	policy chain.WindowPolicy

	reports       report.Store
	contacts      contact.Store
	users         user.Store
	notifications notification.Store
	tokens        push.TokenStore
	sender        push.Sender

	inbox   chan domain.ReportID
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Processor.
type Option func(*Processor)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) { p.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Processor) { p.metrics = m }
}

// New builds the processor. A nil sender disables pushes.
func New(
	cfg config.EngineConfig,
	reports report.Store,
	contacts contact.Store,
	users user.Store,
	notifications notification.Store,
	tokens push.TokenStore,
	sender push.Sender,
	opts ...Option,
) (*Processor, error) {
	policy, err := chain.ParseWindowPolicy(cfg.WindowPolicy)
	if err != nil {
		return nil, fmt.Errorf("processor config: %w", err)
	}
	depth := cfg.QueueDepth
	if depth <= 0 {
		depth = 64
	}
	p := &Processor{
		cfg:           cfg,
		policy:        policy,
		reports:       reports,
		contacts:      contacts,
		users:         users,
		notifications: notifications,
		tokens:        tokens,
		sender:        sender,
		inbox:         make(chan domain.ReportID, depth),
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Enqueue hands a report to the worker without blocking the caller. A full
// queue is reported as unavailable; the report stays pending.
func (p *Processor) Enqueue(_ context.Context, id domain.ReportID) error {
	select {
	case p.inbox <- id:
		return nil
	default:
		return dErrors.New(dErrors.CodeUnavailable, "processing queue is full")
	}
}

// Run consumes the inbox until ctx is cancelled. One report is processed at
// a time; ordering follows submission order.
func (p *Processor) Run(ctx context.Context) error {
	p.logger.InfoContext(ctx, "report processor started",
		"queue_depth", cap(p.inbox),
		"max_hops", p.cfg.MaxHops,
		"window_policy", string(p.policy),
	)
	for {
		select {
		case <-ctx.Done():
			p.logger.InfoContext(ctx, "report processor stopping", "pending", len(p.inbox))
			return nil
		case id := <-p.inbox:
			p.process(ctx, id)
		}
	}
}

func (p *Processor) process(ctx context.Context, id domain.ReportID) {
	ctx, span := tracer.Start(ctx, "processor.process")
	span.SetAttributes(attribute.String("report_id", id.String()))
	defer span.End()

	rpt, err := p.reports.FindByID(ctx, id)
	if err != nil {
		p.logger.ErrorContext(ctx, "load report failed", "report_id", id.String(), "error", err)
		return
	}
	if rpt.Deleted {
		p.logger.InfoContext(ctx, "skipping deleted report", "report_id", id.String())
		return
	}

	if err := p.reports.UpdateStatus(ctx, id, report.StatusProcessing, ""); err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) {
			// Another pass already picked this report up.
			return
		}
		p.logger.ErrorContext(ctx, "mark report processing failed", "report_id", id.String(), "error", err)
		return
	}

	switch rpt.Result {
	case report.ResultPositive:
		err = p.processPositive(ctx, rpt)
	case report.ResultNegative:
		err = p.processNegative(ctx, rpt)
	default:
		err = fmt.Errorf("unknown result %q", rpt.Result)
	}

	status, message := report.StatusCompleted, ""
	if err != nil {
		status, message = report.StatusFailed, err.Error()
		p.logger.ErrorContext(ctx, "report processing failed",
			"report_id", id.String(),
			"result", string(rpt.Result),
			"error", err,
		)
	}
	if err := p.reports.UpdateStatus(ctx, id, status, message); err != nil {
		p.logger.ErrorContext(ctx, "finalize report status failed", "report_id", id.String(), "error", err)
	}
	if p.metrics != nil {
		p.metrics.ReportsProcessed.WithLabelValues(string(rpt.Result), string(status)).Inc()
	}
}

// processPositive runs the full chain: traverse the contact graph from the
// reporter, then materialize one notification per discovered recipient.
// Completed hops are never rolled back; a failed write batch fails the
// report and reprocessing merges into whatever was already written.
func (p *Processor) processPositive(ctx context.Context, rpt report.Report) error {
	discovery := contact.NewDiscovery(p.contacts, p.cfg.CacheSize, p.discoveryOpts()...)
	traversal := chain.NewTraversal(discovery, rpt.TestDate, rpt.Conditions, p.policy, p.traversalOpts()...)

	results, err := traversal.Run(ctx, rpt.ContactHash)
	if err != nil {
		return fmt.Errorf("traverse: %w", err)
	}

	docs, pushes := p.newWriters()
	mat := notification.NewMaterializer(
		p.notifications,
		user.NewCache(p.users, p.cfg.CacheSize, p.userCacheOpts()...),
		p.tokens, docs, pushes,
		p.materializerOpts()...,
	)
	res, err := mat.Materialize(ctx, rpt, results)
	if err != nil {
		return fmt.Errorf("materialize: %w", err)
	}
	if err := p.flush(ctx, docs, pushes); err != nil {
		return err
	}

	p.logger.InfoContext(ctx, "positive report processed",
		"report_id", rpt.ID.String(),
		"recipients", results.Len(),
		"created", res.Created,
		"updated", res.Updated,
		"skipped", res.Skipped,
	)
	return nil
}

// processNegative updates the targeted notification and flips everything
// downstream of the reporter to a status update. No documents are created.
func (p *Processor) processNegative(ctx context.Context, rpt report.Report) error {
	docs, pushes := p.newWriters()
	if rpt.TargetNotificationID != nil {
		mat := notification.NewMaterializer(
			p.notifications,
			user.NewCache(p.users, p.cfg.CacheSize, p.userCacheOpts()...),
			p.tokens, docs, pushes,
			p.materializerOpts()...,
		)
		if _, err := mat.ApplyNegative(ctx, rpt); err != nil {
			return fmt.Errorf("apply negative: %w", err)
		}
	}

	prop := notification.NewPropagator(p.notifications, p.tokens, docs, pushes, p.propagatorOpts()...)
	affected, err := prop.Propagate(ctx, rpt)
	if err != nil {
		return fmt.Errorf("propagate: %w", err)
	}
	if err := p.flush(ctx, docs, pushes); err != nil {
		return err
	}

	p.logger.InfoContext(ctx, "negative report processed",
		"report_id", rpt.ID.String(),
		"affected", affected,
	)
	return nil
}

func (p *Processor) newWriters() (*batch.Writer[notification.Notification], *batch.Writer[push.Message]) {
	docs := batch.NewWriter("notifications", p.cfg.BatchCeiling, p.notifications.BulkUpsert,
		batch.WithLogger[notification.Notification](p.logger))
	pushes := batch.NewWriter("pushes", p.cfg.BatchCeiling, p.sendPushes,
		batch.WithLogger[push.Message](p.logger))
	return docs, pushes
}

func (p *Processor) flush(ctx context.Context, docs *batch.Writer[notification.Notification], pushes *batch.Writer[push.Message]) error {
	docRes := docs.Flush(ctx)
	p.countFlush("notifications", docRes)
	pushRes := pushes.Flush(ctx)
	p.countFlush("pushes", pushRes)
	if p.metrics != nil && pushRes.Failed > 0 {
		p.metrics.PushFailures.Add(float64(pushRes.Failed))
	}

	// Failed pushes degrade delivery, not correctness; failed document
	// batches fail the invocation so it can be rerun.
	if docRes.Failed > 0 {
		return fmt.Errorf("flush notifications: %d of %d writes failed",
			docRes.Failed, docRes.Failed+docRes.Succeeded)
	}
	return nil
}

func (p *Processor) sendPushes(ctx context.Context, msgs []push.Message) error {
	if p.sender == nil {
		return nil
	}
	return p.sender.Send(ctx, msgs)
}

func (p *Processor) countFlush(kind string, res batch.Result) {
	if p.metrics == nil {
		return
	}
	if res.Succeeded > 0 {
		p.metrics.BatchFlushes.WithLabelValues(kind, "ok").Add(float64(res.Batches))
	}
	if res.Failed > 0 {
		p.metrics.BatchFlushes.WithLabelValues(kind, "failed").Inc()
	}
}

func (p *Processor) discoveryOpts() []contact.DiscoveryOption {
	opts := []contact.DiscoveryOption{contact.WithLogger(p.logger)}
	if p.metrics != nil {
		opts = append(opts, contact.WithMetrics(p.metrics))
	}
	return opts
}

func (p *Processor) traversalOpts() []chain.TraversalOption {
	opts := []chain.TraversalOption{
		chain.WithTraversalLogger(p.logger),
		chain.WithMaxHops(p.cfg.MaxHops),
	}
	if p.metrics != nil {
		opts = append(opts, chain.WithTraversalMetrics(p.metrics))
	}
	return opts
}

func (p *Processor) materializerOpts() []notification.MaterializerOption {
	opts := []notification.MaterializerOption{notification.WithMaterializerLogger(p.logger)}
	if p.metrics != nil {
		opts = append(opts, notification.WithMaterializerMetrics(p.metrics))
	}
	return opts
}

func (p *Processor) propagatorOpts() []notification.PropagatorOption {
	opts := []notification.PropagatorOption{notification.WithPropagatorLogger(p.logger)}
	if p.metrics != nil {
		opts = append(opts, notification.WithPropagatorMetrics(p.metrics))
	}
	return opts
}

func (p *Processor) userCacheOpts() []user.CacheOption {
	if p.metrics == nil {
		return nil
	}
	return []user.CacheOption{user.WithCacheMetrics(p.metrics)}
}
