package contact

import (
	"context"
	"sync"
	"time"

	"chainrelay/pkg/domain"
)

// InMemoryStore keeps contacts in a map guarded by a RWMutex. It backs unit
// tests and single-node development setups.
type InMemoryStore struct {
	mu       sync.RWMutex
	contacts []Contact
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Save(_ context.Context, c Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contacts = append(s.contacts, c)
	return nil
}

func (s *InMemoryStore) FindRecordersOf(_ context.Context, node domain.ContactHash, start, end time.Time, limit int) ([]Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Contact
	for _, c := range s.contacts {
		if c.PartnerHash != node {
			continue
		}
		if c.RecordedAt.Before(start) || c.RecordedAt.After(end) {
			continue
		}
		out = append(out, c)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}
