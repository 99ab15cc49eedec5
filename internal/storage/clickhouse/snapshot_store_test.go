package clickhouse

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickerpulse/internal/domain"
	"tickerpulse/internal/storage"
)

func testSnapshot(group, symbol string, computedAt time.Time) *domain.AggregatedSnapshot {
	return &domain.AggregatedSnapshot{
		GroupName:     group,
		ComputedAt:    computedAt,
		SenderID:      ptr(int64(42)),
		Symbol:        symbol,
		Timeframe:     domain.Offset24Hr,
		PercentChange: 12.5,
	}
}

func TestSnapshotStore_InsertAndGetByGroup(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewSnapshotStore(conn)
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	snaps := []*domain.AggregatedSnapshot{
		testSnapshot("alpha", "SOL", base.Add(time.Hour)),
		testSnapshot("alpha", "BONK", base),
		testSnapshot("beta", "SOL", base),
	}
	require.NoError(t, store.InsertBatch(ctx, snaps))

	got, err := store.GetByGroup(ctx, "alpha")
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Oldest computed_at first.
	assert.Equal(t, "BONK", got[0].Symbol)
	assert.Equal(t, "SOL", got[1].Symbol)

	bonk := got[0]
	assert.Equal(t, "alpha", bonk.GroupName)
	require.NotNil(t, bonk.SenderID)
	assert.Equal(t, int64(42), *bonk.SenderID)
	assert.Equal(t, domain.Offset24Hr, bonk.Timeframe)
	assert.InDelta(t, 12.5, bonk.PercentChange, 0.0001)
	assert.True(t, bonk.ComputedAt.Equal(base), "computed_at round trip")
}

func TestSnapshotStore_GetByGroupSince(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewSnapshotStore(conn)
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.InsertBatch(ctx, []*domain.AggregatedSnapshot{
		testSnapshot("alpha", "OLD", base),
		testSnapshot("alpha", "EDGE", base.Add(time.Hour)),
		testSnapshot("alpha", "NEW", base.Add(2*time.Hour)),
	}))

	got, err := store.GetByGroupSince(ctx, "alpha", base.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "EDGE", got[0].Symbol, "snapshot computed exactly at the cutoff must be included")
	assert.Equal(t, "NEW", got[1].Symbol)
}

func TestSnapshotStore_NullSenderRoundTrip(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewSnapshotStore(conn)

	snap := testSnapshot("alpha", "SOL", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	snap.SenderID = nil
	require.NoError(t, store.InsertBatch(ctx, []*domain.AggregatedSnapshot{snap}))

	got, err := store.GetByGroup(ctx, "alpha")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Nil(t, got[0].SenderID)
}

func TestSnapshotStore_EmptyBatchIsNoop(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewSnapshotStore(conn)

	require.NoError(t, store.InsertBatch(ctx, nil))

	got, err := store.GetByGroup(ctx, "alpha")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSnapshotStore_InvalidInput(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewSnapshotStore(conn)

	err := store.InsertBatch(ctx, []*domain.AggregatedSnapshot{nil})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	err = store.InsertBatch(ctx, []*domain.AggregatedSnapshot{testSnapshot("", "SOL", time.Now())})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	_, err = store.GetByGroup(ctx, "")
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}
