package report

import (
	"context"

	"chainrelay/pkg/domain"
)

// Store is the report collection.
type Store interface {
	Create(ctx context.Context, r Report) error
	FindByID(ctx context.Context, id domain.ReportID) (Report, error)
	// UpdateStatus moves the lifecycle forward. Implementations enforce
	// the monotonic transition table and return sentinel.ErrInvalidState
	// on an illegal move.
	UpdateStatus(ctx context.Context, id domain.ReportID, status Status, message string) error
	// MarkDeleted puts the report in its terminal deleted state.
	MarkDeleted(ctx context.Context, id domain.ReportID) error
}
