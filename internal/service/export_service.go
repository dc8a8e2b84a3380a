package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/sparesmarket/spares_api/internal/metrics"
	"github.com/sparesmarket/spares_api/internal/models"
	"github.com/sparesmarket/spares_api/internal/utils"
)

const (
	inlineWorkerID   = "inline"
	failWriteTimeout = 10 * time.Second
	maxRecentJobs    = 100
)

// ExportService owns the export job lifecycle: create, claim, execute and
// terminal bookkeeping. Execution may happen in the worker pool or inline
// when no queue is configured.
type ExportService struct {
	jobs         ExportJobStore
	mapper       *CatalogMapper
	encoders     *Encoders
	payloads     PayloadStore
	queue        JobQueue
	notifier     JobNotifier
	pollInterval time.Duration
	now          func() time.Time
}

// ExportServiceOption customizes an ExportService.
type ExportServiceOption func(*ExportService)

// WithJobQueue hands new jobs to the worker pool instead of running them inline.
func WithJobQueue(q JobQueue) ExportServiceOption {
	return func(s *ExportService) { s.queue = q }
}

// WithJobNotifier sets the receiver of job state changes.
func WithJobNotifier(n JobNotifier) ExportServiceOption {
	return func(s *ExportService) { s.notifier = n }
}

// WithPollInterval sets how often Await re-reads a job.
func WithPollInterval(d time.Duration) ExportServiceOption {
	return func(s *ExportService) { s.pollInterval = d }
}

// WithClock replaces the time source used for file names.
func WithClock(now func() time.Time) ExportServiceOption {
	return func(s *ExportService) { s.now = now }
}

// NewExportService constructs an ExportService.
func NewExportService(jobs ExportJobStore, mapper *CatalogMapper, encoders *Encoders, payloads PayloadStore, opts ...ExportServiceOption) *ExportService {
	s := &ExportService{
		jobs:         jobs,
		mapper:       mapper,
		encoders:     encoders,
		payloads:     payloads,
		notifier:     NopJobNotifier{},
		pollInterval: 200 * time.Millisecond,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateJob validates the request and stores a pending job.
func (s *ExportService) CreateJob(ctx context.Context, dataType models.DataType, format models.Format) (*models.ExportJob, error) {
	if !dataType.IsValid() {
		return nil, fmt.Errorf("%w: %q", utils.ErrInvalidDataType, dataType)
	}
	if !format.IsValid() {
		return nil, fmt.Errorf("%w: %q", utils.ErrInvalidFormat, format)
	}

	job := &models.ExportJob{
		ID:       uuid.New().String(),
		Kind:     models.ExportJobKind,
		DataType: dataType,
		Format:   format,
		Status:   models.JobStatusPending,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create export job: %w", err)
	}

	log.Info().Str("job_id", job.ID).Str("data_type", string(dataType)).Str("format", string(format)).Msg("Export job created")
	s.notifier.NotifyJobChanged(job)
	return job, nil
}

// Submit creates a job and hands it to the worker pool. Without a queue the
// job is executed before Submit returns.
func (s *ExportService) Submit(ctx context.Context, dataType models.DataType, format models.Format) (*models.ExportJob, error) {
	job, err := s.CreateJob(ctx, dataType, format)
	if err != nil {
		return nil, err
	}

	if s.queue == nil {
		if _, err := s.RunJob(ctx, job.ID); err != nil {
			log.Warn().Err(err).Str("job_id", job.ID).Msg("Inline export failed")
		}
		return job, nil
	}

	// A lost wake-up is recovered by the workers' pending sweep.
	if err := s.queue.Enqueue(ctx, job.ID); err != nil {
		log.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to enqueue export job")
	}
	return job, nil
}

// RunJob claims a pending job and executes it in the caller's goroutine.
// It returns the payload reference of the completed job.
func (s *ExportService) RunJob(ctx context.Context, jobID string) (string, error) {
	job, err := s.ClaimJob(ctx, jobID, inlineWorkerID)
	if err != nil {
		return "", err
	}
	done, err := s.Execute(ctx, job)
	if err != nil {
		return "", err
	}
	return *done.PayloadRef, nil
}

// ClaimJob moves a pending job to processing on behalf of workerID.
func (s *ExportService) ClaimJob(ctx context.Context, jobID, workerID string) (*models.ExportJob, error) {
	job, err := s.jobs.Claim(ctx, jobID, workerID)
	if err != nil {
		return nil, err
	}
	s.notifier.NotifyJobChanged(job)
	return job, nil
}

// ClaimNextJob claims the oldest pending job. It returns utils.ErrNotFound
// when nothing is pending.
func (s *ExportService) ClaimNextJob(ctx context.Context, workerID string) (*models.ExportJob, error) {
	job, err := s.jobs.ClaimNext(ctx, workerID)
	if err != nil {
		return nil, err
	}
	s.notifier.NotifyJobChanged(job)
	return job, nil
}

// Execute produces the payload of a claimed job and records the terminal
// state. Any failure is written to the job before the error is returned.
func (s *ExportService) Execute(ctx context.Context, job *models.ExportJob) (*models.ExportJob, error) {
	started := time.Now()
	l := log.With().Str("job_id", job.ID).Str("data_type", string(job.DataType)).Str("format", string(job.Format)).Logger()

	rs, err := s.mapper.Load(ctx, job.DataType)
	if err != nil {
		return s.fail(ctx, job, err)
	}
	data, err := s.encoders.Encode(rs, job.Format)
	if err != nil {
		return s.fail(ctx, job, err)
	}

	fileName := ExportFileName(job.DataType, job.Format, s.now())
	key := PayloadKey(job.ID, fileName)
	if err := s.payloads.Put(ctx, key, data, job.Format.ContentType()); err != nil {
		return s.fail(ctx, job, fmt.Errorf("store payload: %w", err))
	}

	done, err := s.jobs.Complete(ctx, job.ID, key, fileName, rs.Len())
	if err != nil {
		return s.fail(ctx, job, fmt.Errorf("complete job: %w", err))
	}

	metrics.ExportJobs.WithLabelValues(string(job.DataType), string(job.Format), string(models.JobStatusCompleted)).Inc()
	metrics.ExportDuration.WithLabelValues(string(job.DataType), string(job.Format)).Observe(time.Since(started).Seconds())
	metrics.ExportRecords.WithLabelValues(string(job.DataType)).Add(float64(rs.Len()))
	l.Info().Str("payload_ref", key).Int("records", rs.Len()).Int("bytes", len(data)).Msg("Export job completed")

	s.notifier.NotifyJobChanged(done)
	return done, nil
}

// fail records the error on the job. The write runs on a context detached
// from the caller so a cancelled request still leaves a terminal job.
func (s *ExportService) fail(ctx context.Context, job *models.ExportJob, cause error) (*models.ExportJob, error) {
	failCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failWriteTimeout)
	defer cancel()

	metrics.ExportJobs.WithLabelValues(string(job.DataType), string(job.Format), string(models.JobStatusFailed)).Inc()

	failedJob, err := s.jobs.Fail(failCtx, job.ID, cause.Error())
	if err != nil {
		log.Error().Err(err).AnErr("cause", cause).Str("job_id", job.ID).Msg("Failed to mark export job as failed")
		return nil, cause
	}
	log.Error().Err(cause).Str("job_id", job.ID).Msg("Export job failed")
	s.notifier.NotifyJobChanged(failedJob)
	return failedJob, cause
}

// GetJob returns a job by id.
func (s *ExportService) GetJob(ctx context.Context, jobID string) (*models.ExportJob, error) {
	return s.jobs.GetByID(ctx, jobID)
}

// ListRecentJobs returns up to limit jobs, newest first.
func (s *ExportService) ListRecentJobs(ctx context.Context, limit int) ([]models.ExportJob, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > maxRecentJobs {
		limit = maxRecentJobs
	}
	jobs, err := s.jobs.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list export jobs: %w", err)
	}
	return jobs, nil
}

// Await polls the job until it is terminal or ctx is done. On ctx expiry the
// last observed job is returned together with ctx.Err().
func (s *ExportService) Await(ctx context.Context, jobID string) (*models.ExportJob, error) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		job, err := s.jobs.GetByID(ctx, jobID)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, err
		}
		if job.Status.IsTerminal() {
			return job, nil
		}

		select {
		case <-ctx.Done():
			return job, ctx.Err()
		case <-ticker.C:
		}
	}
}

// RecoverStale fails processing jobs started more than olderThan ago.
func (s *ExportService) RecoverStale(ctx context.Context, olderThan time.Duration) (int, error) {
	stale, err := s.jobs.FailStale(ctx, time.Now().Add(-olderThan), "worker stopped before the export finished")
	if err != nil {
		return 0, fmt.Errorf("recover stale jobs: %w", err)
	}
	for i := range stale {
		metrics.StaleJobsRecovered.Inc()
		log.Warn().Str("job_id", stale[i].ID).Msg("Stale export job failed")
		s.notifier.NotifyJobChanged(&stale[i])
	}
	return len(stale), nil
}

// DownloadURL returns a link to the payload of a completed job.
func (s *ExportService) DownloadURL(ctx context.Context, job *models.ExportJob) (string, error) {
	if job.Status != models.JobStatusCompleted || job.PayloadRef == nil {
		return "", fmt.Errorf("%w: job %s is %s", utils.ErrJobStateConflict, job.ID, job.Status)
	}
	fileName := ""
	if job.FileName != nil {
		fileName = *job.FileName
	}
	return s.payloads.URL(ctx, *job.PayloadRef, fileName)
}

// IsRequestError reports whether err was caused by invalid input rather than
// infrastructure.
func IsRequestError(err error) bool {
	return errors.Is(err, utils.ErrInvalidDataType) ||
		errors.Is(err, utils.ErrInvalidFormat) ||
		errors.Is(err, utils.ErrUnsupportedFormat) ||
		errors.Is(err, utils.ErrBatchTooLarge)
}

// ExportFileName is "<dataType>_<YYYYMMDD_HHMMSS>.<format>".
func ExportFileName(dataType models.DataType, format models.Format, at time.Time) string {
	return fmt.Sprintf("%s_%s.%s", dataType, at.UTC().Format("20060102_150405"), format)
}

// PayloadKey is the object key of an export payload.
func PayloadKey(jobID, fileName string) string {
	return fmt.Sprintf("exchange/exports/%s/%s", jobID, fileName)
}
