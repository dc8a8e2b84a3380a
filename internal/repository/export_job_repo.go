package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sparesmarket/spares_api/internal/models"
	"github.com/sparesmarket/spares_api/internal/utils"
)

const exportJobColumns = `id, kind, data_type, format, status, payload_ref, file_name, record_count,
        error_message, worker_id, created_at, updated_at, started_at, finished_at`

// ExportJobRepository persists export jobs. State transitions are single
// conditional UPDATEs so concurrent workers cannot both win a job.
type ExportJobRepository struct {
	db *sqlx.DB
}

// NewExportJobRepository creates a new ExportJobRepository.
func NewExportJobRepository(db *sqlx.DB) *ExportJobRepository {
	return &ExportJobRepository{db: db}
}

// Create inserts a pending job and fills in its timestamps.
func (r *ExportJobRepository) Create(ctx context.Context, job *models.ExportJob) error {
	const q = `INSERT INTO export_jobs (id, kind, data_type, format, status)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING created_at, updated_at`

	return r.db.QueryRowxContext(ctx, q, job.ID, job.Kind, job.DataType, job.Format, job.Status).
		Scan(&job.CreatedAt, &job.UpdatedAt)
}

// GetByID returns a job or utils.ErrNotFound.
func (r *ExportJobRepository) GetByID(ctx context.Context, id string) (*models.ExportJob, error) {
	var job models.ExportJob
	err := r.db.GetContext(ctx, &job, `SELECT `+exportJobColumns+` FROM export_jobs WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, utils.ErrNotFound
		}
		return nil, err
	}
	return &job, nil
}

// ListRecent returns the newest jobs first.
func (r *ExportJobRepository) ListRecent(ctx context.Context, limit int) ([]models.ExportJob, error) {
	jobs := []models.ExportJob{}
	err := r.db.SelectContext(ctx, &jobs,
		`SELECT `+exportJobColumns+` FROM export_jobs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

// Claim moves a pending job to processing. It returns
// utils.ErrJobNotClaimable when the job is missing or already claimed.
func (r *ExportJobRepository) Claim(ctx context.Context, id, workerID string) (*models.ExportJob, error) {
	const q = `UPDATE export_jobs
        SET status = 'processing', worker_id = $2, started_at = NOW(), updated_at = NOW()
        WHERE id = $1 AND status = 'pending'
        RETURNING ` + exportJobColumns

	var job models.ExportJob
	if err := r.db.GetContext(ctx, &job, q, id, workerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, utils.ErrJobNotClaimable
		}
		return nil, err
	}
	return &job, nil
}

// ClaimNext claims the oldest pending job, skipping rows locked by other
// workers. It returns utils.ErrNotFound when nothing is pending.
func (r *ExportJobRepository) ClaimNext(ctx context.Context, workerID string) (*models.ExportJob, error) {
	const q = `UPDATE export_jobs
        SET status = 'processing', worker_id = $1, started_at = NOW(), updated_at = NOW()
        WHERE id = (
            SELECT id FROM export_jobs
            WHERE status = 'pending'
            ORDER BY created_at
            LIMIT 1
            FOR UPDATE SKIP LOCKED
        ) AND status = 'pending'
        RETURNING ` + exportJobColumns

	var job models.ExportJob
	if err := r.db.GetContext(ctx, &job, q, workerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, utils.ErrNotFound
		}
		return nil, err
	}
	return &job, nil
}

// Complete records the payload of a processing job.
func (r *ExportJobRepository) Complete(ctx context.Context, id, payloadRef, fileName string, recordCount int) (*models.ExportJob, error) {
	const q = `UPDATE export_jobs
        SET status = 'completed', payload_ref = $2, file_name = $3, record_count = $4,
            finished_at = NOW(), updated_at = NOW()
        WHERE id = $1 AND status = 'processing'
        RETURNING ` + exportJobColumns

	return r.transition(ctx, q, id, payloadRef, fileName, recordCount)
}

// Fail records the error of a processing job.
func (r *ExportJobRepository) Fail(ctx context.Context, id, message string) (*models.ExportJob, error) {
	const q = `UPDATE export_jobs
        SET status = 'failed', error_message = $2, finished_at = NOW(), updated_at = NOW()
        WHERE id = $1 AND status = 'processing'
        RETURNING ` + exportJobColumns

	return r.transition(ctx, q, id, message)
}

func (r *ExportJobRepository) transition(ctx context.Context, q string, args ...any) (*models.ExportJob, error) {
	var job models.ExportJob
	if err := r.db.GetContext(ctx, &job, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, utils.ErrJobStateConflict
		}
		return nil, err
	}
	return &job, nil
}

// FailStale fails processing jobs started before the cutoff.
func (r *ExportJobRepository) FailStale(ctx context.Context, startedBefore time.Time, message string) ([]models.ExportJob, error) {
	const q = `UPDATE export_jobs
        SET status = 'failed', error_message = $2, finished_at = NOW(), updated_at = NOW()
        WHERE status = 'processing' AND started_at < $1
        RETURNING ` + exportJobColumns

	jobs := []models.ExportJob{}
	if err := r.db.SelectContext(ctx, &jobs, q, startedBefore, message); err != nil {
		return nil, err
	}
	return jobs, nil
}
