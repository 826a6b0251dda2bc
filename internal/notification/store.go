package notification

import (
	"context"

	"chainrelay/pkg/domain"
)

// Store is the notification collection. BulkUpsert is the physical batched
// write the batch writer partitions into; a single call never receives
// more than the provider ceiling (500).
type Store interface {
	Create(ctx context.Context, n Notification) error
	FindByID(ctx context.Context, id domain.NotificationID) (Notification, error)
	FindByReportAndRecipient(ctx context.Context, reportID domain.ReportID, recipient domain.NotifyHash) (Notification, error)
	ListByReport(ctx context.Context, reportID domain.ReportID, limit int) ([]Notification, error)
	ListByRecipient(ctx context.Context, recipient domain.NotifyHash, limit int) ([]Notification, error)
	// FindByPathMember returns notifications whose primary chain path
	// passes through the given node. Negative propagation uses this to
	// locate the lineage a reporter belongs to.
	FindByPathMember(ctx context.Context, member domain.ChainHash, limit int) ([]Notification, error)
	// BulkUpsert creates-or-replaces by (report, recipient) in one
	// physical call.
	BulkUpsert(ctx context.Context, notifications []Notification) error
	MarkRead(ctx context.Context, id domain.NotificationID, recipient domain.NotifyHash) error
	Count(ctx context.Context) (int, error)
}
