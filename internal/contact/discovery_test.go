package contact

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chainrelay/pkg/domain"
)

type countingStore struct {
	mu      sync.Mutex
	inner   Store
	queries int
}

func (s *countingStore) Save(ctx context.Context, c Contact) error {
	return s.inner.Save(ctx, c)
}

func (s *countingStore) FindRecordersOf(ctx context.Context, node domain.ContactHash, start, end time.Time, limit int) ([]Contact, error) {
	s.mu.Lock()
	s.queries++
	s.mu.Unlock()
	return s.inner.FindRecordersOf(ctx, node, start, end, limit)
}

func seedContact(t *testing.T, store Store, owner, partner domain.ContactHash, at time.Time) {
	t.Helper()
	require.NoError(t, store.Save(context.Background(), Contact{
		ID:          domain.NewContactID(),
		OwnerHash:   owner,
		PartnerHash: partner,
		RecordedAt:  at,
	}))
}

func TestDiscovery_ReturnsRecordersInsideWindow(t *testing.T) {
	store := NewInMemoryStore()
	now := time.Now()

	seedContact(t, store, "bbb", "aaa", now.Add(-24*time.Hour))
	seedContact(t, store, "ccc", "aaa", now.Add(-48*time.Hour))
	seedContact(t, store, "ddd", "aaa", now.Add(-40*24*time.Hour)) // outside window
	seedContact(t, store, "eee", "zzz", now.Add(-24*time.Hour))    // different partner

	d := NewDiscovery(store, 100)
	got, err := d.FindContactsOf(context.Background(), "aaa", now.Add(-30*24*time.Hour), now)
	require.NoError(t, err)

	recorders := make([]domain.ContactHash, 0, len(got))
	for _, g := range got {
		recorders = append(recorders, g.Recorder)
	}
	assert.Equal(t, []domain.ContactHash{"bbb", "ccc"}, recorders)
}

func TestDiscovery_CollapsesRepeatedPairsKeepingLatest(t *testing.T) {
	store := NewInMemoryStore()
	now := time.Now()

	older := now.Add(-72 * time.Hour)
	newer := now.Add(-24 * time.Hour)
	seedContact(t, store, "bbb", "aaa", older)
	seedContact(t, store, "bbb", "aaa", newer)

	d := NewDiscovery(store, 100)
	got, err := d.FindContactsOf(context.Background(), "aaa", now.Add(-30*24*time.Hour), now)
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, domain.ContactHash("bbb"), got[0].Recorder)
	assert.WithinDuration(t, newer, got[0].RecordedAt, time.Second)
}

func TestDiscovery_DirectionalityIsNotSymmetric(t *testing.T) {
	store := NewInMemoryStore()
	now := time.Now()

	// A recorded B as partner. Probing A must find nothing: nobody
	// recorded A. Probing B finds A.
	seedContact(t, store, "hash-a", "hash-b", now.Add(-time.Hour))

	d := NewDiscovery(store, 100)

	got, err := d.FindContactsOf(context.Background(), "hash-a", now.Add(-24*time.Hour), now)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = d.FindContactsOf(context.Background(), "hash-b", now.Add(-24*time.Hour), now)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, domain.ContactHash("hash-a"), got[0].Recorder)
}

func TestDiscovery_MemoizesPerWindow(t *testing.T) {
	counting := &countingStore{inner: NewInMemoryStore()}
	now := time.Now()
	seedContact(t, counting, "bbb", "aaa", now.Add(-time.Hour))

	d := NewDiscovery(counting, 100)
	start, end := now.Add(-24*time.Hour), now

	_, err := d.FindContactsOf(context.Background(), "aaa", start, end)
	require.NoError(t, err)
	_, err = d.FindContactsOf(context.Background(), "aaa", start, end)
	require.NoError(t, err)
	assert.Equal(t, 1, counting.queries, "second identical query should hit the cache")

	// A different window is a different cache key.
	_, err = d.FindContactsOf(context.Background(), "aaa", start.Add(-time.Hour), end)
	require.NoError(t, err)
	assert.Equal(t, 2, counting.queries)
}
