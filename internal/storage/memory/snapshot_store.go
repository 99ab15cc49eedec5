package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"tickerpulse/internal/domain"
	"tickerpulse/internal/storage"
)

// SnapshotStore is an in-memory implementation of storage.SnapshotStore.
type SnapshotStore struct {
	mu   sync.RWMutex
	data map[string][]*domain.AggregatedSnapshot // keyed by group name
}

// NewSnapshotStore creates a new in-memory snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		data: make(map[string][]*domain.AggregatedSnapshot),
	}
}

// Compile-time interface check.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)

// InsertBatch adds aggregation snapshot rows.
func (s *SnapshotStore) InsertBatch(_ context.Context, snapshots []*domain.AggregatedSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, snap := range snapshots {
		if snap == nil || snap.GroupName == "" {
			return storage.ErrInvalidInput
		}
		cp := *snap
		s.data[snap.GroupName] = append(s.data[snap.GroupName], &cp)
	}
	return nil
}

// GetByGroup retrieves all snapshot rows for a group, ordered by
// computed_at ASC.
func (s *SnapshotStore) GetByGroup(_ context.Context, group string) ([]*domain.AggregatedSnapshot, error) {
	return s.GetByGroupSince(nil, group, time.Time{})
}

// GetByGroupSince retrieves snapshot rows computed at or after since.
func (s *SnapshotStore) GetByGroupSince(_ context.Context, group string, since time.Time) ([]*domain.AggregatedSnapshot, error) {
	if group == "" {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.AggregatedSnapshot
	for _, snap := range s.data[group] {
		if snap.ComputedAt.Before(since) {
			continue
		}
		cp := *snap
		result = append(result, &cp)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].ComputedAt.Before(result[j].ComputedAt)
	})
	return result, nil
}
