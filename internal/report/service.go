package report

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"chainrelay/internal/identity"
	"chainrelay/pkg/domain"
	dErrors "chainrelay/pkg/domain-errors"
	"chainrelay/pkg/platform/sentinel"
	pstrings "chainrelay/pkg/platform/strings"
)

// maxReportAge rejects test results too old to produce a meaningful
// exposure window.
const maxReportAge = 365 * 24 * time.Hour

// Enqueuer hands a persisted report to the async processing pipeline.
type Enqueuer interface {
	Enqueue(ctx context.Context, id domain.ReportID) error
}

// ChainLookup answers questions about previously materialized notifications
// without this package depending on the notification package.
type ChainLookup interface {
	// LatestExposure returns the newest exposure notification addressed
	// to the recipient, optionally restricted to one condition; ok is
	// false when there is none.
	LatestExposure(ctx context.Context, recipient domain.NotifyHash, condition *domain.ConditionType) (ChainLink, bool, error)
	// Target resolves a notification to its recipient and originating
	// report for negative-report validation.
	Target(ctx context.Context, id domain.NotificationID) (recipient domain.NotifyHash, reportID domain.ReportID, err error)
}

// Cascader flips and flushes the notifications of a deleted report.
type Cascader interface {
	CascadeDelete(ctx context.Context, reportID domain.ReportID) (int, error)
}

// ChainLink describes the exposure record that ties a device into an
// existing chain.
type ChainLink struct {
	NotificationID domain.NotificationID
	ReportID       domain.ReportID
	HopDepth       int
	ReceivedAt     time.Time
}

// Service owns report submission and lifecycle. Submission is synchronous
// up to the pending document; everything heavier happens in the processor.
type Service struct {
	store    Store
	chains   ChainLookup
	cascader Cascader
	queue    Enqueuer
	logger   *slog.Logger
}

func NewService(store Store, chains ChainLookup, cascader Cascader, queue Enqueuer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, chains: chains, cascader: cascader, queue: queue, logger: logger}
}

// PositiveInput is a validated-on-entry positive report submission.
type PositiveInput struct {
	Conditions []string
	TestDate   time.Time
	Disclosure string
}

// SubmitPositive validates and persists a positive report, links it into an
// existing chain when the reporter was previously notified, and enqueues it
// for traversal. The returned report is in status pending.
func (s *Service) SubmitPositive(ctx context.Context, ids identity.Pseudonyms, input PositiveInput) (Report, error) {
	conditions, err := parseConditions(input.Conditions)
	if err != nil {
		return Report{}, err
	}
	if err := validateTestDate(input.TestDate); err != nil {
		return Report{}, err
	}
	disclosure, err := domain.ParseDisclosureLevel(input.Disclosure)
	if err != nil {
		return Report{}, dErrors.New(dErrors.CodeInvalidInput, err.Error())
	}

	now := time.Now()
	rpt := Report{
		ID:          domain.NewReportID(),
		OwnerHash:   ids.Owner,
		ContactHash: ids.Contact,
		NotifyHash:  ids.Notify,
		ChainHash:   ids.Chain,
		Conditions:  conditions,
		TestDate:    input.TestDate,
		Disclosure:  disclosure,
		Result:      ResultPositive,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	// A reporter who was themselves notified extends that chain rather
	// than starting a fresh lineage.
	if link, ok, err := s.chains.LatestExposure(ctx, ids.Notify, nil); err != nil {
		return Report{}, dErrors.Wrap(dErrors.CodeInternal, "chain link lookup", err)
	} else if ok {
		linked := link.ReportID
		rpt.LinkedReportID = &linked
	}

	if err := s.store.Create(ctx, rpt); err != nil {
		return Report{}, dErrors.Wrap(dErrors.CodeInternal, "create report", err)
	}
	if err := s.queue.Enqueue(ctx, rpt.ID); err != nil {
		// The report stays pending; a requeue sweep or resubmission
		// picks it up. Submission itself succeeded.
		s.logger.ErrorContext(ctx, "enqueue report failed",
			"report_id", rpt.ID.String(),
			"error", err,
		)
	}
	return rpt, nil
}

// SubmitNegative persists a negative report and enqueues it for
// propagation. A nil targetID falls back to the reporter's latest exposure
// notification; with no exposure at all the report still completes as a
// status record that propagates nothing.
func (s *Service) SubmitNegative(ctx context.Context, ids identity.Pseudonyms, targetID *domain.NotificationID, testDate time.Time) (Report, error) {
	if err := validateTestDate(testDate); err != nil {
		return Report{}, err
	}

	var target *domain.NotificationID
	var linked *domain.ReportID
	if targetID != nil {
		recipient, lineageID, err := s.chains.Target(ctx, *targetID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return Report{}, dErrors.New(dErrors.CodeNotFound, "notification not found")
			}
			return Report{}, dErrors.Wrap(dErrors.CodeInternal, "resolve target notification", err)
		}
		if recipient != ids.Notify {
			return Report{}, dErrors.New(dErrors.CodeForbidden, "notification belongs to another device")
		}
		target = targetID
		linked = &lineageID
	} else if link, ok, err := s.chains.LatestExposure(ctx, ids.Notify, nil); err != nil {
		return Report{}, dErrors.Wrap(dErrors.CodeInternal, "resolve exposure lineage", err)
	} else if ok {
		id := link.NotificationID
		target = &id
		linked = &link.ReportID
	}

	now := time.Now()
	rpt := Report{
		ID:                   domain.NewReportID(),
		OwnerHash:            ids.Owner,
		ContactHash:          ids.Contact,
		NotifyHash:           ids.Notify,
		ChainHash:            ids.Chain,
		TestDate:             testDate,
		Disclosure:           domain.DisclosureAnonymous,
		Result:               ResultNegative,
		Status:               StatusPending,
		LinkedReportID:       linked,
		TargetNotificationID: target,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := s.store.Create(ctx, rpt); err != nil {
		return Report{}, dErrors.Wrap(dErrors.CodeInternal, "create report", err)
	}
	if err := s.queue.Enqueue(ctx, rpt.ID); err != nil {
		s.logger.ErrorContext(ctx, "enqueue report failed",
			"report_id", rpt.ID.String(),
			"error", err,
		)
	}
	return rpt, nil
}

// ChainLink reports whether the device currently sits inside an exposure
// chain, and where. A non-nil condition restricts the lookup to exposures
// disclosing that condition.
func (s *Service) ChainLink(ctx context.Context, ids identity.Pseudonyms, condition *domain.ConditionType) (ChainLink, bool, error) {
	link, ok, err := s.chains.LatestExposure(ctx, ids.Notify, condition)
	if err != nil {
		return ChainLink{}, false, dErrors.Wrap(dErrors.CodeInternal, "chain link lookup", err)
	}
	return link, ok, nil
}

// Delete soft-deletes one of the reporter's own reports and cascades the
// withdrawal to every notification the report produced. Returns how many
// notifications were flipped.
func (s *Service) Delete(ctx context.Context, ids identity.Pseudonyms, id domain.ReportID) (int, error) {
	rpt, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return 0, dErrors.New(dErrors.CodeNotFound, "report not found")
		}
		return 0, dErrors.Wrap(dErrors.CodeInternal, "find report", err)
	}
	if rpt.OwnerHash != ids.Owner {
		return 0, dErrors.New(dErrors.CodeForbidden, "report belongs to another device")
	}
	if rpt.Deleted {
		return 0, dErrors.New(dErrors.CodeConflict, "report already deleted")
	}

	if err := s.store.MarkDeleted(ctx, id); err != nil {
		return 0, dErrors.Wrap(dErrors.CodeInternal, "mark report deleted", err)
	}
	affected, err := s.cascader.CascadeDelete(ctx, id)
	if err != nil {
		// The report is already deleted; the cascade re-runs safely on
		// the next delete attempt or a maintenance sweep.
		s.logger.ErrorContext(ctx, "delete cascade failed",
			"report_id", id.String(),
			"error", err,
		)
		return 0, dErrors.Wrap(dErrors.CodeInternal, "cascade delete", err)
	}
	return affected, nil
}

// Status returns the processing status of one of the reporter's reports.
func (s *Service) Status(ctx context.Context, ids identity.Pseudonyms, id domain.ReportID) (Report, error) {
	rpt, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Report{}, dErrors.New(dErrors.CodeNotFound, "report not found")
		}
		return Report{}, dErrors.Wrap(dErrors.CodeInternal, "find report", err)
	}
	if rpt.OwnerHash != ids.Owner {
		// Do not reveal that the report exists.
		return Report{}, dErrors.New(dErrors.CodeNotFound, "report not found")
	}
	return rpt, nil
}

func parseConditions(raw []string) ([]domain.ConditionType, error) {
	cleaned := pstrings.DedupeAndTrimLower(raw)
	if len(cleaned) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "at least one condition is required")
	}
	out := make([]domain.ConditionType, 0, len(cleaned))
	for _, r := range cleaned {
		c, err := domain.ParseConditionType(r)
		if err != nil {
			return nil, dErrors.New(dErrors.CodeInvalidInput, err.Error())
		}
		out = append(out, c)
	}
	return out, nil
}

func validateTestDate(d time.Time) error {
	if d.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "test_date is required")
	}
	now := time.Now()
	if d.After(now) {
		return dErrors.New(dErrors.CodeInvalidInput, "test_date must not be in the future")
	}
	if now.Sub(d) > maxReportAge {
		return dErrors.New(dErrors.CodeInvalidInput, "test_date is too far in the past")
	}
	return nil
}
