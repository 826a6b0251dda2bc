package report

import (
	"context"
	"sync"
	"time"

	"chainrelay/pkg/domain"
	"chainrelay/pkg/platform/sentinel"
)

// InMemoryStore keeps reports in a map guarded by a RWMutex.
type InMemoryStore struct {
	mu      sync.RWMutex
	reports map[domain.ReportID]Report
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{reports: make(map[domain.ReportID]Report)}
}

func (s *InMemoryStore) Create(_ context.Context, r Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.reports[r.ID]; exists {
		return sentinel.ErrConflict
	}
	now := time.Now()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	s.reports[r.ID] = r
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id domain.ReportID) (Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.reports[id]; ok {
		return r, nil
	}
	return Report{}, sentinel.ErrNotFound
}

func (s *InMemoryStore) UpdateStatus(_ context.Context, id domain.ReportID, status Status, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if !CanTransition(r.Status, status) {
		return sentinel.ErrInvalidState
	}
	r.Status = status
	r.StatusMessage = message
	r.UpdatedAt = time.Now()
	s.reports[id] = r
	return nil
}

func (s *InMemoryStore) MarkDeleted(_ context.Context, id domain.ReportID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	r.Deleted = true
	r.UpdatedAt = time.Now()
	s.reports[id] = r
	return nil
}
