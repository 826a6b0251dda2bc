package contact

import (
	"context"
	"time"

	"chainrelay/pkg/domain"
)

// Store is the contact collection. Interface-driven so the engine can run
// against in-memory storage in tests and PostgreSQL in production.
type Store interface {
	Save(ctx context.Context, c Contact) error
	// FindRecordersOf returns contact records whose partner field equals
	// node and whose recorded-at falls inside [start, end], capped at
	// limit. This is the only read the traversal performs: partner→owner,
	// never owner→partner.
	FindRecordersOf(ctx context.Context, node domain.ContactHash, start, end time.Time, limit int) ([]Contact, error)
}
