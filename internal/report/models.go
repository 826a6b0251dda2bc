// Package report holds test-result reports and their lifecycle. A report's
// reported fields are immutable after creation; only its lifecycle status
// moves, and deletion is a terminal state with a notification cascade, not
// a removal.
package report

import (
	"time"

	"chainrelay/pkg/domain"
)

// Result is the reported test outcome.
type Result string

const (
	ResultPositive Result = "positive"
	ResultNegative Result = "negative"
)

// Status is the processing lifecycle. Transitions are monotonic:
// pending → processing → completed|failed. There is no regression and no
// resumption of a partially completed traversal; reprocessing is safe
// because materialization is create-or-update per (report, recipient).
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// allowedTransitions encodes the monotonic lifecycle.
var allowedTransitions = map[Status][]Status{
	StatusPending:    {StatusProcessing},
	StatusProcessing: {StatusCompleted, StatusFailed},
}

// CanTransition reports whether from → to is a legal status move.
func CanTransition(from, to Status) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Report is one submitted test result. The reporter appears only as
// purpose hashes, derived once at submission; the async pipeline never
// sees a raw identifier.
type Report struct {
	ID          domain.ReportID
	OwnerHash   domain.OwnerHash
	ContactHash domain.ContactHash
	NotifyHash  domain.NotifyHash
	ChainHash   domain.ChainHash

	Conditions []domain.ConditionType
	TestDate   time.Time
	Disclosure domain.DisclosureLevel
	Result     Result

	Status        Status
	StatusMessage string

	// LinkedReportID ties this report into an existing lineage: set when
	// the reporter was themselves notified through a prior chain.
	LinkedReportID *domain.ReportID
	// TargetNotificationID points a negative report at the notification
	// that prompted the reporter's test.
	TargetNotificationID *domain.NotificationID

	Deleted   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
