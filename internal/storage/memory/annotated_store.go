// Package memory provides in-memory storage implementations for tests
// and single-process runs without external databases.
package memory

import (
	"context"
	"sort"
	"sync"

	"tickerpulse/internal/domain"
	"tickerpulse/internal/storage"
)

// AnnotatedStore is an in-memory implementation of storage.AnnotatedStore.
type AnnotatedStore struct {
	mu   sync.RWMutex
	data map[string][]*domain.AnnotatedRecord // keyed by group name
}

// NewAnnotatedStore creates a new in-memory annotated record store.
func NewAnnotatedStore() *AnnotatedStore {
	return &AnnotatedStore{
		data: make(map[string][]*domain.AnnotatedRecord),
	}
}

// Compile-time interface check.
var _ storage.AnnotatedStore = (*AnnotatedStore)(nil)

// InsertBatch adds records for a group.
func (s *AnnotatedStore) InsertBatch(_ context.Context, records []*domain.AnnotatedRecord, group string) error {
	if group == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range records {
		if r == nil {
			return storage.ErrInvalidInput
		}
		// Store a copy to prevent external mutation
		cp := r.Clone()
		cp.GroupName = group
		s.data[group] = append(s.data[group], cp)
	}
	return nil
}

// ClearGroup removes all records for a group.
func (s *AnnotatedStore) ClearGroup(_ context.Context, group string) error {
	if group == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, group)
	return nil
}

// QueryRecent returns all records at the most recent `limit` distinct
// message timestamps for the group, newest timestamps first.
func (s *AnnotatedStore) QueryRecent(_ context.Context, group string, limit int) ([]*domain.AnnotatedRecord, error) {
	if group == "" || limit < 0 {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	records := s.data[group]
	if len(records) == 0 || limit == 0 {
		return nil, nil
	}

	// Collect distinct timestamps, newest first
	seen := make(map[int64]struct{})
	var stamps []int64
	for _, r := range records {
		ts := r.MessageTime.UnixNano()
		if _, ok := seen[ts]; !ok {
			seen[ts] = struct{}{}
			stamps = append(stamps, ts)
		}
	}
	sort.Slice(stamps, func(i, j int) bool { return stamps[i] > stamps[j] })
	if len(stamps) > limit {
		stamps = stamps[:limit]
	}

	keep := make(map[int64]struct{}, len(stamps))
	for _, ts := range stamps {
		keep[ts] = struct{}{}
	}

	var result []*domain.AnnotatedRecord
	for _, r := range records {
		if _, ok := keep[r.MessageTime.UnixNano()]; ok {
			result = append(result, r.Clone())
		}
	}

	// Newest timestamps first, stable within a timestamp
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].MessageTime.After(result[j].MessageTime)
	})
	return result, nil
}
