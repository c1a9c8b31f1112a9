package postgresql

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"tts-worker-service/internal/entity"
	"tts-worker-service/internal/faults"
)

// MetadataRepository holds the write-once records of completed synthesis
// jobs. Inserted by workers on success, read by history and analytics.
type MetadataRepository struct {
	pool *pgxpool.Pool
}

func NewMetadataRepository(pool *pgxpool.Pool) *MetadataRepository {
	return &MetadataRepository{pool: pool}
}

func (r *MetadataRepository) Insert(ctx context.Context, rec *entity.MetadataRecord) error {
	const q = `
INSERT INTO job_metadata (job_id, caller_id, text, voice_id, format, duration_seconds, output_file)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (job_id) DO NOTHING;
`
	// ON CONFLICT keeps the write idempotent under at-least-once execution
	_, err := r.pool.Exec(ctx, q,
		rec.JobID, rec.CallerID, rec.Text, rec.VoiceID, rec.Format, rec.DurationSeconds, rec.OutputFile)
	if err != nil {
		return fmt.Errorf("%w: insert metadata: %v", faults.ErrStore, err)
	}
	return nil
}

// ListByCaller returns a caller's records, newest first.
func (r *MetadataRepository) ListByCaller(ctx context.Context, callerID string, limit int) ([]*entity.MetadataRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `
SELECT job_id, caller_id, text, voice_id, format, duration_seconds, output_file, created_at
FROM job_metadata
WHERE caller_id = $1
ORDER BY created_at DESC
LIMIT $2;
`
	rows, err := r.pool.Query(ctx, q, callerID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list metadata: %v", faults.ErrStore, err)
	}
	defer rows.Close()

	var recs []*entity.MetadataRecord
	for rows.Next() {
		var rec entity.MetadataRecord
		if err := rows.Scan(
			&rec.JobID, &rec.CallerID, &rec.Text, &rec.VoiceID,
			&rec.Format, &rec.DurationSeconds, &rec.OutputFile, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("%w: scan metadata: %v", faults.ErrStore, err)
		}
		recs = append(recs, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list metadata: %v", faults.ErrStore, err)
	}
	return recs, nil
}

// Analytics aggregates every record into the dashboard summary.
func (r *MetadataRepository) Analytics(ctx context.Context) (*entity.Analytics, error) {
	const totalsQ = `
SELECT count(*),
       coalesce(avg(duration_seconds), 0),
       coalesce(avg(length(text)), 0),
       coalesce(sum(length(text)), 0)
FROM job_metadata;
`
	var a entity.Analytics
	if err := r.pool.QueryRow(ctx, totalsQ).Scan(
		&a.TotalJobs, &a.AvgDuration, &a.AvgChars, &a.TotalChars,
	); err != nil {
		return nil, fmt.Errorf("%w: metadata totals: %v", faults.ErrStore, err)
	}

	const formatsQ = `SELECT format, count(*) FROM job_metadata GROUP BY format;`
	rows, err := r.pool.Query(ctx, formatsQ)
	if err != nil {
		return nil, fmt.Errorf("%w: metadata formats: %v", faults.ErrStore, err)
	}
	defer rows.Close()

	a.Formats = map[string]int{}
	for rows.Next() {
		var format string
		var count int
		if err := rows.Scan(&format, &count); err != nil {
			return nil, fmt.Errorf("%w: scan format count: %v", faults.ErrStore, err)
		}
		a.Formats[format] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: metadata formats: %v", faults.ErrStore, err)
	}
	return &a, nil
}
