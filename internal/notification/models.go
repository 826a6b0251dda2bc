// Package notification materializes traversal results into notification
// documents and keeps them consistent through negative updates and report
// deletion cascades.
package notification

import (
	"time"

	"chainrelay/pkg/domain"
)

// Type is the closed set of notification kinds. Every switch over Type in
// this package handles all three; adding a kind means visiting each one.
type Type string

const (
	// TypeExposure is the initial "you may have been exposed" record.
	TypeExposure Type = "exposure"
	// TypeStatusUpdate marks a record superseded by a negative result
	// upstream in its chain.
	TypeStatusUpdate Type = "status_update"
	// TypeReportDeleted marks a record whose originating report was
	// deleted by its owner.
	TypeReportDeleted Type = "report_deleted"
)

// Notification is one recipient's record for one report. Exactly one
// document exists per (report, recipient) pair; multi-path arrival is
// collapsed before creation and merged on update.
type Notification struct {
	ID            domain.NotificationID
	RecipientHash domain.NotifyHash
	Type          Type

	// Condition and ExposureDate are redacted according to the
	// discloser's chosen disclosure level; nil means withheld.
	Condition    *domain.ConditionType
	ExposureDate *time.Time

	// ChainPath is the primary path: chain-domain hashes from the
	// reporter up to (excluding) the recipient. HopDepth == len(ChainPath).
	ChainPath  []domain.ChainHash
	ChainPaths [][]domain.ChainHash
	HopDepth   int

	ReportID domain.ReportID

	Read      bool
	Deleted   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PathContains reports whether the primary path passes through the node.
func (n Notification) PathContains(node domain.ChainHash) bool {
	for _, h := range n.ChainPath {
		if h == node {
			return true
		}
	}
	return false
}
