package push

import (
	"context"
	"sync"

	"chainrelay/pkg/domain"
	"chainrelay/pkg/platform/sentinel"
)

// TokenStore maps notification-recipient hashes to device push tokens.
type TokenStore interface {
	Save(ctx context.Context, recipient domain.NotifyHash, token string) error
	Find(ctx context.Context, recipient domain.NotifyHash) (string, error)
	Delete(ctx context.Context, recipient domain.NotifyHash) error
}

// InMemoryTokenStore backs tests and deployments without Redis.
type InMemoryTokenStore struct {
	mu     sync.RWMutex
	tokens map[domain.NotifyHash]string
}

func NewInMemoryTokenStore() *InMemoryTokenStore {
	return &InMemoryTokenStore{tokens: make(map[domain.NotifyHash]string)}
}

func (s *InMemoryTokenStore) Save(_ context.Context, recipient domain.NotifyHash, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[recipient] = token
	return nil
}

func (s *InMemoryTokenStore) Find(_ context.Context, recipient domain.NotifyHash) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if token, ok := s.tokens[recipient]; ok {
		return token, nil
	}
	return "", sentinel.ErrNotFound
}

func (s *InMemoryTokenStore) Delete(_ context.Context, recipient domain.NotifyHash) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, recipient)
	return nil
}
