package notification

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"chainrelay/internal/batch"
	"chainrelay/internal/chain"
	"chainrelay/internal/platform/metrics"
	"chainrelay/internal/push"
	"chainrelay/internal/report"
	"chainrelay/internal/user"
	"chainrelay/pkg/domain"
	dErrors "chainrelay/pkg/domain-errors"
	"chainrelay/pkg/platform/sentinel"
)

// Materializer turns deduplicated traversal results into notification
// documents and queued pushes. One instance belongs to one processing
// invocation; its user cache and batch writers are invocation-scoped.
type Materializer struct {
	store   Store
	users   *user.Cache
	tokens  push.TokenStore
	docs    *batch.Writer[Notification]
	pushes  *batch.Writer[push.Message]
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// MaterializerOption configures a Materializer.
type MaterializerOption func(*Materializer)

func WithMaterializerLogger(logger *slog.Logger) MaterializerOption {
	return func(m *Materializer) { m.logger = logger }
}

func WithMaterializerMetrics(mx *metrics.Metrics) MaterializerOption {
	return func(m *Materializer) { m.metrics = mx }
}

func NewMaterializer(
	store Store,
	users *user.Cache,
	tokens push.TokenStore,
	docs *batch.Writer[Notification],
	pushes *batch.Writer[push.Message],
	opts ...MaterializerOption,
) *Materializer {
	m := &Materializer{
		store:  store,
		users:  users,
		tokens: tokens,
		docs:   docs,
		pushes: pushes,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// MaterializeResult counts what one invocation queued for writing. Skipped
// covers recipients with no registered device record and recipients whose
// every path crossed an unregistered intermediate.
type MaterializeResult struct {
	Created int
	Updated int
	Skipped int
}

// Materialize builds one document per discovered recipient plus the
// reporter's own hop-zero record, applying the reporter's disclosure level,
// and queues pushes for recipients with a registered token. A recipient
// that cannot be resolved is skipped and logged; it never aborts the rest
// of the batch.
func (m *Materializer) Materialize(ctx context.Context, rpt report.Report, results *chain.Dedup) (MaterializeResult, error) {
	var res MaterializeResult

	entries := results.Entries()
	if err := m.users.PopulateFromBatch(ctx, collectHashes(entries)); err != nil {
		return res, err
	}

	// The reporter's own record sits at hop depth zero with an empty
	// path. It gets no push; the reporter just submitted it.
	m.docs.Add(m.buildSelf(rpt))
	res.Created++
	m.countMaterialized(TypeExposure)

	for _, e := range entries {
		created, err := m.materializeEntry(ctx, rpt, e)
		if err != nil {
			m.logger.WarnContext(ctx, "skipping recipient",
				"report_id", rpt.ID.String(),
				"error", err,
			)
			res.Skipped++
			continue
		}
		switch created {
		case outcomeCreated:
			res.Created++
		case outcomeUpdated:
			res.Updated++
		case outcomeSkipped:
			res.Skipped++
		}
	}
	return res, nil
}

type entryOutcome int

const (
	outcomeCreated entryOutcome = iota
	outcomeUpdated
	outcomeSkipped
)

func (m *Materializer) materializeEntry(ctx context.Context, rpt report.Report, e *chain.Entry) (entryOutcome, error) {
	recipient, ok, err := m.users.Get(ctx, e.Recipient)
	if err != nil {
		return outcomeSkipped, err
	}
	if !ok {
		// A contact record can reference a partner who never
		// registered. There is nothing to notify.
		m.logger.DebugContext(ctx, "recipient has no device record", "report_id", rpt.ID.String())
		return outcomeSkipped, nil
	}

	primary, all, ok := m.mapPaths(ctx, rpt, e)
	if !ok {
		m.logger.DebugContext(ctx, "no mappable path to recipient", "report_id", rpt.ID.String())
		return outcomeSkipped, nil
	}

	now := time.Now()
	n := Notification{
		RecipientHash: recipient.NotifyHash,
		Type:          TypeExposure,
		ChainPath:     primary,
		ChainPaths:    all,
		HopDepth:      len(primary),
		ReportID:      rpt.ID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if rpt.Disclosure.SharesCondition() && len(rpt.Conditions) > 0 {
		c := rpt.Conditions[0]
		n.Condition = &c
	}
	if rpt.Disclosure.SharesDate() {
		d := rpt.TestDate
		n.ExposureDate = &d
	}

	outcome := outcomeCreated
	existing, err := m.store.FindByReportAndRecipient(ctx, rpt.ID, recipient.NotifyHash)
	switch {
	case err == nil:
		// Reprocessing after a partial failure: merge into the
		// existing document instead of creating a duplicate.
		n.ID = existing.ID
		n.Read = existing.Read
		n.CreatedAt = existing.CreatedAt
		n.ChainPaths = mergePaths(existing.ChainPaths, all)
		if len(existing.ChainPath) > 0 && len(existing.ChainPath) <= len(primary) {
			n.ChainPath = existing.ChainPath
			n.HopDepth = existing.HopDepth
		}
		outcome = outcomeUpdated
	case errors.Is(err, sentinel.ErrNotFound):
		n.ID = domain.NewNotificationID()
	default:
		return outcomeSkipped, err
	}

	m.docs.Add(n)
	m.countMaterialized(TypeExposure)
	if outcome == outcomeCreated {
		m.enqueuePush(ctx, n)
	}
	return outcome, nil
}

// ApplyNegative updates the notification a negative report targets,
// flipping it to a status update. It never creates a document.
func (m *Materializer) ApplyNegative(ctx context.Context, rpt report.Report) (Notification, error) {
	if rpt.TargetNotificationID == nil {
		return Notification{}, dErrors.New(dErrors.CodeInvalidInput, "negative report has no target notification")
	}
	target, err := m.store.FindByID(ctx, *rpt.TargetNotificationID)
	if err != nil {
		return Notification{}, err
	}
	if target.RecipientHash != rpt.NotifyHash {
		return Notification{}, dErrors.New(dErrors.CodeForbidden, "notification belongs to another device")
	}
	if target.Type == TypeExposure {
		target.Type = TypeStatusUpdate
		target.UpdatedAt = time.Now()
		m.docs.Add(target)
		m.countMaterialized(TypeStatusUpdate)
	}
	return target, nil
}

func (m *Materializer) buildSelf(rpt report.Report) Notification {
	now := time.Now()
	n := Notification{
		ID:            domain.NewNotificationID(),
		RecipientHash: rpt.NotifyHash,
		Type:          TypeExposure,
		ChainPath:     []domain.ChainHash{},
		ChainPaths:    [][]domain.ChainHash{},
		HopDepth:      0,
		ReportID:      rpt.ID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if len(rpt.Conditions) > 0 {
		c := rpt.Conditions[0]
		n.Condition = &c
	}
	d := rpt.TestDate
	n.ExposureDate = &d
	return n
}

// mapPaths translates contact-domain traversal paths into chain-domain
// stored paths. The stored path covers the reporter through the last
// intermediate; the recipient is identified by the document itself. A path
// crossing an unregistered intermediate cannot be translated and is
// dropped; the primary becomes the shortest path that survives.
func (m *Materializer) mapPaths(ctx context.Context, rpt report.Report, e *chain.Entry) ([]domain.ChainHash, [][]domain.ChainHash, bool) {
	var (
		primary []domain.ChainHash
		all     [][]domain.ChainHash
	)
	for _, p := range e.All {
		mapped, ok := m.mapPath(ctx, rpt, p)
		if !ok {
			continue
		}
		all = append(all, mapped)
		if primary == nil || len(mapped) < len(primary) {
			primary = mapped
		}
	}
	return primary, all, primary != nil
}

func (m *Materializer) mapPath(ctx context.Context, rpt report.Report, p chain.Path) ([]domain.ChainHash, bool) {
	// p runs reporter..recipient inclusive; drop the recipient.
	stored := make([]domain.ChainHash, 0, len(p)-1)
	stored = append(stored, rpt.ChainHash)
	for _, h := range p[1 : len(p)-1] {
		u, ok, err := m.users.Get(ctx, h)
		if err != nil || !ok {
			return nil, false
		}
		stored = append(stored, u.ChainHash)
	}
	return stored, true
}

func (m *Materializer) enqueuePush(ctx context.Context, n Notification) {
	token, err := m.tokens.Find(ctx, n.RecipientHash)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			m.logger.WarnContext(ctx, "push token lookup failed", "error", err)
		}
		return
	}
	title, body := PushContent(n)
	m.pushes.Add(push.Message{
		RecipientToken: token,
		NotificationID: n.ID,
		Type:           string(n.Type),
		Title:          title,
		Body:           body,
	})
	if m.metrics != nil {
		m.metrics.PushesEnqueued.Inc()
	}
}

func (m *Materializer) countMaterialized(t Type) {
	if m.metrics != nil {
		m.metrics.NotificationsMaterialized.WithLabelValues(string(t)).Inc()
	}
}

func collectHashes(entries []*chain.Entry) []domain.ContactHash {
	seen := make(map[domain.ContactHash]struct{})
	var out []domain.ContactHash
	for _, e := range entries {
		for _, p := range e.All {
			// Skip the reporter at position zero; the report
			// document already carries their hashes.
			for _, h := range p[1:] {
				if _, ok := seen[h]; ok {
					continue
				}
				seen[h] = struct{}{}
				out = append(out, h)
			}
		}
	}
	return out
}

func mergePaths(existing, incoming [][]domain.ChainHash) [][]domain.ChainHash {
	seen := make(map[string]struct{}, len(existing))
	out := make([][]domain.ChainHash, 0, len(existing)+len(incoming))
	add := func(p []domain.ChainHash) {
		key := ""
		for _, h := range p {
			key += string(h) + ">"
		}
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		out = append(out, p)
	}
	for _, p := range existing {
		add(p)
	}
	for _, p := range incoming {
		add(p)
	}
	return out
}
