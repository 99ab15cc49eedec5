package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"tickerpulse/internal/domain"
	"tickerpulse/internal/storage"
)

// AnnotatedStore implements storage.AnnotatedStore using PostgreSQL.
type AnnotatedStore struct {
	pool *Pool
}

// NewAnnotatedStore creates a new AnnotatedStore.
func NewAnnotatedStore(pool *Pool) *AnnotatedStore {
	return &AnnotatedStore{pool: pool}
}

// Compile-time interface check.
var _ storage.AnnotatedStore = (*AnnotatedStore)(nil)

// InsertBatch adds records for a group inside one transaction, so a
// clear-then-insert sequence observed by readers is never half applied.
func (s *AnnotatedStore) InsertBatch(ctx context.Context, records []*domain.AnnotatedRecord, group string) error {
	if group == "" {
		return storage.ErrInvalidInput
	}
	if len(records) == 0 {
		return nil
	}

	query := `
		INSERT INTO annotated_records (
			group_name, sender_id, symbol, message_time,
			price, price_1hr, price_6hr, price_24hr, price_3d, price_7d, price_2w, price_1m
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	batch := &pgx.Batch{}
	for _, r := range records {
		if r == nil {
			return storage.ErrInvalidInput
		}
		batch.Queue(query,
			group,
			r.SenderID,
			r.Symbol,
			r.MessageTime,
			r.BaselinePrice,
			r.PriceAt(domain.Offset1Hr),
			r.PriceAt(domain.Offset6Hr),
			r.PriceAt(domain.Offset24Hr),
			r.PriceAt(domain.Offset3D),
			r.PriceAt(domain.Offset7D),
			r.PriceAt(domain.Offset2W),
			r.PriceAt(domain.Offset1M),
		)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin insert batch: %w", err)
	}
	defer tx.Rollback(ctx)

	br := tx.SendBatch(ctx, batch)
	for range records {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("insert annotated record: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close insert batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit insert batch: %w", err)
	}
	return nil
}

// ClearGroup removes all records for a group.
func (s *AnnotatedStore) ClearGroup(ctx context.Context, group string) error {
	if group == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, `DELETE FROM annotated_records WHERE group_name = $1`, group)
	if err != nil {
		return fmt.Errorf("clear group %s: %w", group, err)
	}
	return nil
}

// QueryRecent returns all records at the most recent `limit` distinct
// message timestamps for the group, newest timestamps first.
func (s *AnnotatedStore) QueryRecent(ctx context.Context, group string, limit int) ([]*domain.AnnotatedRecord, error) {
	if group == "" || limit < 0 {
		return nil, storage.ErrInvalidInput
	}
	if limit == 0 {
		return nil, nil
	}

	query := `
		SELECT r.group_name, r.sender_id, r.symbol, r.message_time,
		       r.price, r.price_1hr, r.price_6hr, r.price_24hr, r.price_3d, r.price_7d, r.price_2w, r.price_1m
		FROM annotated_records r
		JOIN (
			SELECT DISTINCT message_time
			FROM annotated_records
			WHERE group_name = $1
			ORDER BY message_time DESC
			LIMIT $2
		) recent ON r.message_time = recent.message_time
		WHERE r.group_name = $1
		ORDER BY r.message_time DESC, r.id ASC
	`

	rows, err := s.pool.Query(ctx, query, group, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent records: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// scanRecords scans rows into AnnotatedRecords.
func scanRecords(rows pgx.Rows) ([]*domain.AnnotatedRecord, error) {
	var records []*domain.AnnotatedRecord

	for rows.Next() {
		var r domain.AnnotatedRecord
		var p1hr, p6hr, p24hr, p3d, p7d, p2w, p1m float64

		err := rows.Scan(
			&r.GroupName,
			&r.SenderID,
			&r.Symbol,
			&r.MessageTime,
			&r.BaselinePrice,
			&p1hr, &p6hr, &p24hr, &p3d, &p7d, &p2w, &p1m,
		)
		if err != nil {
			return nil, fmt.Errorf("scan annotated record row: %w", err)
		}

		r.OffsetPrices = map[domain.Offset]float64{
			domain.Offset1Hr:  p1hr,
			domain.Offset6Hr:  p6hr,
			domain.Offset24Hr: p24hr,
			domain.Offset3D:   p3d,
			domain.Offset7D:   p7d,
			domain.Offset2W:   p2w,
			domain.Offset1M:   p1m,
		}
		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate annotated record rows: %w", err)
	}

	return records, nil
}
