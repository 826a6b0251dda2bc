package notification

import (
	"context"
	"errors"

	"chainrelay/internal/report"
	"chainrelay/pkg/domain"
	dErrors "chainrelay/pkg/domain-errors"
	"chainrelay/pkg/platform/sentinel"
)

const defaultListLimit = 100

// Service is the device-facing read side of the notification collection.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// ListForRecipient returns the recipient's notifications, newest first.
func (s *Service) ListForRecipient(ctx context.Context, recipient domain.NotifyHash, limit int) ([]Notification, error) {
	if limit <= 0 || limit > defaultListLimit {
		limit = defaultListLimit
	}
	ns, err := s.store.ListByRecipient(ctx, recipient, limit)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "list notifications", err)
	}
	return ns, nil
}

// LatestExposure returns the newest exposure notification addressed to the
// recipient, optionally restricted to one condition. The report service
// uses it for chain-link detection at submission time. A condition filter
// can only match notifications that disclose their condition.
func (s *Service) LatestExposure(ctx context.Context, recipient domain.NotifyHash, condition *domain.ConditionType) (report.ChainLink, bool, error) {
	ns, err := s.store.ListByRecipient(ctx, recipient, defaultListLimit)
	if err != nil {
		return report.ChainLink{}, false, err
	}
	for _, n := range ns {
		// Hop depth zero is the recipient's own report, not an
		// exposure someone else caused.
		if n.Type != TypeExposure || n.HopDepth == 0 {
			continue
		}
		if condition != nil && (n.Condition == nil || *n.Condition != *condition) {
			continue
		}
		return report.ChainLink{
			NotificationID: n.ID,
			ReportID:       n.ReportID,
			HopDepth:       n.HopDepth,
			ReceivedAt:     n.CreatedAt,
		}, true, nil
	}
	return report.ChainLink{}, false, nil
}

// Target resolves a notification to its recipient and originating report.
func (s *Service) Target(ctx context.Context, id domain.NotificationID) (domain.NotifyHash, domain.ReportID, error) {
	n, err := s.store.FindByID(ctx, id)
	if err != nil {
		return "", domain.ReportID{}, err
	}
	return n.RecipientHash, n.ReportID, nil
}

// MarkRead marks one of the recipient's notifications read. A notification
// belonging to another device is indistinguishable from a missing one.
func (s *Service) MarkRead(ctx context.Context, recipient domain.NotifyHash, id domain.NotificationID) error {
	if err := s.store.MarkRead(ctx, id, recipient); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "notification not found")
		}
		return dErrors.Wrap(dErrors.CodeInternal, "mark notification read", err)
	}
	return nil
}
