package domain

import (
	"github.com/google/uuid"

	dErrors "chainrelay/pkg/domain-errors"
)

// Document identifiers are typed UUIDs so reports, notifications and
// contacts cannot be swapped for one another at compile time.
type (
	ReportID       uuid.UUID
	NotificationID uuid.UUID
	ContactID      uuid.UUID
)

// Pseudonymous node identifiers are typed hex strings, one type per hash
// domain. Nothing outside internal/identity may construct them from raw
// user identifiers; everything else only moves them between collections.
type (
	// ContactHash identifies a node inside the contact relation. The
	// traversal engine operates exclusively on this domain.
	ContactHash string
	// NotifyHash identifies a notification recipient.
	NotifyHash string
	// ChainHash identifies a node inside a materialized chain path.
	ChainHash string
	// OwnerHash identifies a report owner for ownership checks.
	OwnerHash string
)

func NewReportID() ReportID             { return ReportID(uuid.New()) }
func NewNotificationID() NotificationID { return NotificationID(uuid.New()) }
func NewContactID() ContactID           { return ContactID(uuid.New()) }

func (id ReportID) String() string       { return uuid.UUID(id).String() }
func (id NotificationID) String() string { return uuid.UUID(id).String() }
func (id ContactID) String() string      { return uuid.UUID(id).String() }

// ParseReportID validates and returns a ReportID.
// IDs must be valid, non-nil UUIDs.
func ParseReportID(s string) (ReportID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return ReportID{}, err
	}
	return ReportID(u), nil
}

// ParseNotificationID validates and returns a NotificationID.
func ParseNotificationID(s string) (NotificationID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return NotificationID{}, err
	}
	return NotificationID(u), nil
}

func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must not be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must be a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must not be the nil UUID")
	}
	return u, nil
}
