package postgresql

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"tts-worker-service/internal/entity"
	"tts-worker-service/internal/faults"
)

// PresetRepository stores per-caller voice presets.
type PresetRepository struct {
	pool *pgxpool.Pool
}

func NewPresetRepository(pool *pgxpool.Pool) *PresetRepository {
	return &PresetRepository{pool: pool}
}

func (r *PresetRepository) Create(ctx context.Context, p *entity.Preset) (uuid.UUID, error) {
	const q = `
INSERT INTO voice_presets (caller_id, name, voice_id, emotion, pitch, rate)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id;
`
	var id uuid.UUID
	err := r.pool.QueryRow(ctx, q, p.CallerID, p.Name, p.VoiceID, p.Emotion, p.Pitch, p.Rate).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: insert preset: %v", faults.ErrStore, err)
	}
	return id, nil
}

func (r *PresetRepository) ListByCaller(ctx context.Context, callerID string) ([]*entity.Preset, error) {
	const q = `
SELECT id, caller_id, name, voice_id, emotion, pitch, rate, created_at
FROM voice_presets
WHERE caller_id = $1
ORDER BY created_at DESC;
`
	rows, err := r.pool.Query(ctx, q, callerID)
	if err != nil {
		return nil, fmt.Errorf("%w: list presets: %v", faults.ErrStore, err)
	}
	defer rows.Close()

	var presets []*entity.Preset
	for rows.Next() {
		var p entity.Preset
		if err := rows.Scan(&p.ID, &p.CallerID, &p.Name, &p.VoiceID, &p.Emotion, &p.Pitch, &p.Rate, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan preset: %v", faults.ErrStore, err)
		}
		presets = append(presets, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list presets: %v", faults.ErrStore, err)
	}
	return presets, nil
}

// Delete removes a preset. The caller guard keeps one caller from deleting
// another's preset by guessing ids.
func (r *PresetRepository) Delete(ctx context.Context, callerID string, id uuid.UUID) error {
	const q = `DELETE FROM voice_presets WHERE id = $1 AND caller_id = $2;`

	tag, err := r.pool.Exec(ctx, q, id, callerID)
	if err != nil {
		return fmt.Errorf("%w: delete preset: %v", faults.ErrStore, err)
	}
	if tag.RowsAffected() == 0 {
		return faults.ErrNotFound
	}
	return nil
}
