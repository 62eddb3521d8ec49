package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kzhaodev/mirrorbot/internal/domain"
)

// MirrorStore implements domain.MirrorStore using PostgreSQL. Every mirror
// attempt is recorded, including skips and failures, so the audit trail
// covers decisions and not just fills.
type MirrorStore struct {
	pool *pgxpool.Pool
}

// NewMirrorStore creates a new MirrorStore backed by the given connection pool.
func NewMirrorStore(pool *pgxpool.Pool) *MirrorStore {
	return &MirrorStore{pool: pool}
}

// Insert records a new mirror attempt.
func (s *MirrorStore) Insert(ctx context.Context, rec domain.MirrorRecord) error {
	const query = `
		INSERT INTO mirror_records
			(id, source_tx_hash, source_maker, token_id, side,
			 source_amount, mirror_amount, status, error_reason, order_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := s.pool.Exec(ctx, query,
		rec.ID, rec.SourceTxHash, rec.SourceMaker, rec.TokenID, string(rec.Side),
		rec.SourceAmount, rec.MirrorAmount, string(rec.Status),
		rec.ErrorReason, rec.OrderID, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert mirror record %s: %w", rec.ID, err)
	}
	return nil
}

// UpdateResult finalizes a mirror attempt with its outcome.
func (s *MirrorStore) UpdateResult(ctx context.Context, id string, status domain.MirrorStatus, orderID, errorReason string, executedAt time.Time) error {
	const query = `
		UPDATE mirror_records
		SET status = $2, order_id = $3, error_reason = $4, executed_at = $5
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query, id, string(status), orderID, errorReason, executedAt)
	if err != nil {
		return fmt.Errorf("postgres: update mirror record %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: update mirror record %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// ListRecent returns the most recent mirror attempts, newest first.
func (s *MirrorStore) ListRecent(ctx context.Context, limit int) ([]domain.MirrorRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	const query = `
		SELECT id, source_tx_hash, source_maker, token_id, side,
		       source_amount, mirror_amount, status, error_reason, order_id,
		       created_at, executed_at
		FROM mirror_records
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list mirror records: %w", err)
	}
	defer rows.Close()

	var records []domain.MirrorRecord
	for rows.Next() {
		var rec domain.MirrorRecord
		var side, status string
		var executedAt *time.Time

		if err := rows.Scan(
			&rec.ID, &rec.SourceTxHash, &rec.SourceMaker, &rec.TokenID, &side,
			&rec.SourceAmount, &rec.MirrorAmount, &status, &rec.ErrorReason, &rec.OrderID,
			&rec.CreatedAt, &executedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan mirror record: %w", err)
		}
		rec.Side = domain.OrderSide(side)
		rec.Status = domain.MirrorStatus(status)
		rec.ExecutedAt = executedAt
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list mirror records rows: %w", err)
	}
	return records, nil
}
