package clickhouse

import (
	"context"
	"fmt"
	"time"

	"tickerpulse/internal/domain"
	"tickerpulse/internal/storage"
)

// SnapshotStore implements storage.SnapshotStore using ClickHouse.
// Snapshots are append-only; MergeTree ordering keeps per-group reads cheap.
type SnapshotStore struct {
	conn *Conn
}

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore(conn *Conn) *SnapshotStore {
	return &SnapshotStore{conn: conn}
}

// Compile-time interface check.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)

// InsertBatch adds aggregation snapshot rows using a native batch.
func (s *SnapshotStore) InsertBatch(ctx context.Context, snapshots []*domain.AggregatedSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO aggregate_snapshots (
			group_name, computed_at, sender_id, symbol, timeframe, percent_change
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare snapshot batch: %w", err)
	}

	for _, snap := range snapshots {
		if snap == nil || snap.GroupName == "" {
			return storage.ErrInvalidInput
		}
		if err := batch.Append(
			snap.GroupName,
			snap.ComputedAt,
			snap.SenderID,
			snap.Symbol,
			string(snap.Timeframe),
			snap.PercentChange,
		); err != nil {
			return fmt.Errorf("append snapshot row: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send snapshot batch: %w", err)
	}
	return nil
}

// GetByGroup retrieves all snapshot rows for a group, ordered by
// computed_at ASC.
func (s *SnapshotStore) GetByGroup(ctx context.Context, group string) ([]*domain.AggregatedSnapshot, error) {
	return s.GetByGroupSince(ctx, group, time.Time{})
}

// GetByGroupSince retrieves snapshot rows computed at or after since.
func (s *SnapshotStore) GetByGroupSince(ctx context.Context, group string, since time.Time) ([]*domain.AggregatedSnapshot, error) {
	if group == "" {
		return nil, storage.ErrInvalidInput
	}

	query := `
		SELECT group_name, computed_at, sender_id, symbol, timeframe, percent_change
		FROM aggregate_snapshots
		WHERE group_name = ? AND computed_at >= ?
		ORDER BY computed_at ASC, symbol ASC, timeframe ASC
	`

	rows, err := s.conn.Query(ctx, query, group, since)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var result []*domain.AggregatedSnapshot
	for rows.Next() {
		var snap domain.AggregatedSnapshot
		var timeframe string

		err := rows.Scan(
			&snap.GroupName,
			&snap.ComputedAt,
			&snap.SenderID,
			&snap.Symbol,
			&timeframe,
			&snap.PercentChange,
		)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}

		snap.Timeframe = domain.Offset(timeframe)
		result = append(result, &snap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot rows: %w", err)
	}

	return result, nil
}
