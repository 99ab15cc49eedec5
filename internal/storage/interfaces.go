package storage

import (
	"context"
	"time"

	"tickerpulse/internal/domain"
)

// AnnotatedStore provides access to annotated_records storage.
// Records are scoped by group name; re-ingesting a group is the caller's
// responsibility via an explicit ClearGroup before InsertBatch.
type AnnotatedStore interface {
	// InsertBatch adds records for a group. Repeated inserts are allowed;
	// no dedup key is enforced at this layer.
	InsertBatch(ctx context.Context, records []*domain.AnnotatedRecord, group string) error

	// ClearGroup removes all records for a group.
	ClearGroup(ctx context.Context, group string) error

	// QueryRecent returns all records at the most recent `limit` distinct
	// message timestamps for the group, newest timestamps first.
	QueryRecent(ctx context.Context, group string, limit int) ([]*domain.AnnotatedRecord, error)
}

// SnapshotStore provides access to aggregate_snapshots storage.
type SnapshotStore interface {
	// InsertBatch adds aggregation snapshot rows.
	InsertBatch(ctx context.Context, snapshots []*domain.AggregatedSnapshot) error

	// GetByGroup retrieves all snapshot rows for a group, ordered by
	// computed_at ASC.
	GetByGroup(ctx context.Context, group string) ([]*domain.AggregatedSnapshot, error)

	// GetByGroupSince retrieves snapshot rows computed at or after since.
	GetByGroupSince(ctx context.Context, group string, since time.Time) ([]*domain.AggregatedSnapshot, error)
}
