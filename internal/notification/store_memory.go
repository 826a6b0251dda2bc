package notification

import (
	"context"
	"sync"
	"time"

	"chainrelay/pkg/domain"
	"chainrelay/pkg/platform/sentinel"
)

type pairKey struct {
	report    domain.ReportID
	recipient domain.NotifyHash
}

// InMemoryStore keeps notifications in maps guarded by a RWMutex. The
// byPair index enforces the one-document-per-(report, recipient) invariant
// the same way the PostgreSQL unique index does.
type InMemoryStore struct {
	mu     sync.RWMutex
	byID   map[domain.NotificationID]Notification
	byPair map[pairKey]domain.NotificationID
	order  []domain.NotificationID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byID:   make(map[domain.NotificationID]Notification),
		byPair: make(map[pairKey]domain.NotificationID),
	}
}

func (s *InMemoryStore) Create(_ context.Context, n Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.put(n, false)
}

func (s *InMemoryStore) put(n Notification, upsert bool) error {
	key := pairKey{report: n.ReportID, recipient: n.RecipientHash}
	if existingID, ok := s.byPair[key]; ok {
		if !upsert && existingID != n.ID {
			return sentinel.ErrConflict
		}
		n.ID = existingID
		existing := s.byID[existingID]
		n.CreatedAt = existing.CreatedAt
		n.UpdatedAt = time.Now()
		s.byID[existingID] = n
		return nil
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	n.UpdatedAt = time.Now()
	s.byID[n.ID] = n
	s.byPair[key] = n.ID
	s.order = append(s.order, n.ID)
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id domain.NotificationID) (Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n, ok := s.byID[id]; ok {
		return n, nil
	}
	return Notification{}, sentinel.ErrNotFound
}

func (s *InMemoryStore) FindByReportAndRecipient(_ context.Context, reportID domain.ReportID, recipient domain.NotifyHash) (Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id, ok := s.byPair[pairKey{report: reportID, recipient: recipient}]; ok {
		return s.byID[id], nil
	}
	return Notification{}, sentinel.ErrNotFound
}

func (s *InMemoryStore) ListByReport(_ context.Context, reportID domain.ReportID, limit int) ([]Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Notification
	for _, id := range s.order {
		n := s.byID[id]
		if n.ReportID != reportID {
			continue
		}
		out = append(out, n)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *InMemoryStore) ListByRecipient(_ context.Context, recipient domain.NotifyHash, limit int) ([]Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	// Newest first, matching the PostgreSQL ordering.
	var out []Notification
	for i := len(s.order) - 1; i >= 0; i-- {
		n := s.byID[s.order[i]]
		if n.RecipientHash != recipient || n.Deleted {
			continue
		}
		out = append(out, n)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *InMemoryStore) FindByPathMember(_ context.Context, member domain.ChainHash, limit int) ([]Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Notification
	for _, id := range s.order {
		n := s.byID[id]
		if !n.PathContains(member) {
			continue
		}
		out = append(out, n)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *InMemoryStore) BulkUpsert(_ context.Context, notifications []Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range notifications {
		if err := s.put(n, true); err != nil {
			return err
		}
	}
	return nil
}

func (s *InMemoryStore) MarkRead(_ context.Context, id domain.NotificationID, recipient domain.NotifyHash) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.byID[id]
	if !ok || n.RecipientHash != recipient {
		return sentinel.ErrNotFound
	}
	n.Read = true
	n.UpdatedAt = time.Now()
	s.byID[id] = n
	return nil
}

func (s *InMemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID), nil
}
