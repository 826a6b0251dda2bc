package user

import (
	"context"

	"chainrelay/pkg/domain"
)

// Store is the user collection.
type Store interface {
	// Save upserts a user record keyed by its contact hash.
	Save(ctx context.Context, u User) error
	FindByContactHash(ctx context.Context, h domain.ContactHash) (User, error)
	// FindByContactHashes bulk-reads records for a batch of contact
	// hashes. Missing hashes are silently absent from the result; callers
	// decide whether absence is an error.
	FindByContactHashes(ctx context.Context, hashes []domain.ContactHash) ([]User, error)
}
