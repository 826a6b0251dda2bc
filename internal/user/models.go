// Package user holds the pseudonym lookup records the engine needs to move
// between hash domains. A record carries only derived hashes; the raw
// identifier it came from is not recoverable.
package user

import (
	"time"

	"chainrelay/pkg/domain"
)

// User is one registered device's pseudonym bundle, keyed by its
// contact-relation hash. The traversal sees contact hashes only; this
// record is how the materializer finds the matching notification-recipient
// and chain-path hashes.
type User struct {
	ContactHash domain.ContactHash
	NotifyHash  domain.NotifyHash
	ChainHash   domain.ChainHash
	OwnerHash   domain.OwnerHash
	Platform    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
