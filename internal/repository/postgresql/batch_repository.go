package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tts-worker-service/internal/entity"
	"tts-worker-service/internal/faults"
)

type BatchRepository struct {
	pool *pgxpool.Pool
}

func NewBatchRepository(pool *pgxpool.Pool) *BatchRepository {
	return &BatchRepository{pool: pool}
}

func (r *BatchRepository) Create(ctx context.Context, callerID string, size int) (uuid.UUID, error) {
	const q = `
INSERT INTO batches (caller_id, size)
VALUES ($1, $2)
RETURNING id;
`
	var id uuid.UUID
	if err := r.pool.QueryRow(ctx, q, callerID, size).Scan(&id); err != nil {
		return uuid.Nil, fmt.Errorf("%w: insert batch: %v", faults.ErrStore, err)
	}
	return id, nil
}

func (r *BatchRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Batch, error) {
	const q = `SELECT id, caller_id, size, created_at FROM batches WHERE id = $1;`

	var b entity.Batch
	err := r.pool.QueryRow(ctx, q, id).Scan(&b.ID, &b.CallerID, &b.Size, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, faults.ErrNotFound
		}
		return nil, fmt.Errorf("%w: scan batch: %v", faults.ErrStore, err)
	}
	return &b, nil
}
