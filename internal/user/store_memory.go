package user

import (
	"context"
	"sync"
	"time"

	"chainrelay/pkg/domain"
	"chainrelay/pkg/platform/sentinel"
)

// InMemoryStore keeps user records in a map guarded by a RWMutex.
type InMemoryStore struct {
	mu    sync.RWMutex
	users map[domain.ContactHash]User
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{users: make(map[domain.ContactHash]User)}
}

func (s *InMemoryStore) Save(_ context.Context, u User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.users[u.ContactHash]; ok {
		u.CreatedAt = existing.CreatedAt
	} else if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	u.UpdatedAt = time.Now()
	s.users[u.ContactHash] = u
	return nil
}

func (s *InMemoryStore) FindByContactHash(_ context.Context, h domain.ContactHash) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if u, ok := s.users[h]; ok {
		return u, nil
	}
	return User{}, sentinel.ErrNotFound
}

func (s *InMemoryStore) FindByContactHashes(_ context.Context, hashes []domain.ContactHash) ([]User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]User, 0, len(hashes))
	for _, h := range hashes {
		if u, ok := s.users[h]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}
