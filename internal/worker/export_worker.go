package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/sparesmarket/spares_api/internal/metrics"
	"github.com/sparesmarket/spares_api/internal/models"
	"github.com/sparesmarket/spares_api/internal/service"
	"github.com/sparesmarket/spares_api/internal/utils"
)

// JobSource delivers ids of newly submitted jobs. An empty id with a nil
// error means the wait timed out.
type JobSource interface {
	Dequeue(ctx context.Context, timeout time.Duration) (string, error)
}

// ExportWorker runs a fixed pool of goroutines that claim and execute
// export jobs. Each job is claimed through a compare-and-set, so a job
// delivered twice still runs once.
type ExportWorker struct {
	exports  *service.ExportService
	source   JobSource
	size     int
	interval time.Duration
	prefix   string
}

// NewExportWorker constructs an ExportWorker. source may be nil, in which
// case workers only sweep the job table every interval.
func NewExportWorker(exports *service.ExportService, source JobSource, size int, interval time.Duration) *ExportWorker {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	if size <= 0 {
		size = 1
	}
	return &ExportWorker{
		exports:  exports,
		source:   source,
		size:     size,
		interval: interval,
		prefix:   host,
	}
}

// Start runs the pool until ctx is cancelled.
func (w *ExportWorker) Start(ctx context.Context) {
	log.Info().Int("workers", w.size).Dur("interval", w.interval).Bool("queue", w.source != nil).Msg("Starting export workers")

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < w.size; i++ {
		workerID := fmt.Sprintf("%s-%d", w.prefix, i)
		g.Go(func() error {
			w.loop(gctx, workerID)
			return nil
		})
	}
	_ = g.Wait()

	log.Info().Msg("Export workers stopped")
}

func (w *ExportWorker) loop(ctx context.Context, workerID string) {
	for ctx.Err() == nil {
		job, err := w.next(ctx, workerID)
		if err != nil {
			if ctx.Err() == nil {
				log.Error().Err(err).Str("worker_id", workerID).Msg("Failed to fetch export job")
			}
			w.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}
		w.execute(ctx, job)
	}
}

// next returns a claimed job, or nil when nothing was available. A failing
// source does not stop the pending sweep; the database claim stays the
// ownership authority while the queue is unreachable.
func (w *ExportWorker) next(ctx context.Context, workerID string) (*models.ExportJob, error) {
	idle := w.source == nil
	if w.source != nil {
		jobID, err := w.source.Dequeue(ctx, w.interval)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, nil
			}
			log.Warn().Err(err).Str("worker_id", workerID).Msg("Export queue unavailable, sweeping pending jobs")
			idle = true
		case jobID != "":
			job, err := w.exports.ClaimJob(ctx, jobID, workerID)
			if errors.Is(err, utils.ErrJobNotClaimable) {
				log.Debug().Str("job_id", jobID).Str("worker_id", workerID).Msg("Export job already claimed")
				return nil, nil
			}
			return job, err
		}
	}

	job, err := w.exports.ClaimNextJob(ctx, workerID)
	if errors.Is(err, utils.ErrNotFound) {
		if idle {
			w.sleep(ctx)
		}
		return nil, nil
	}
	return job, err
}

func (w *ExportWorker) execute(ctx context.Context, job *models.ExportJob) {
	metrics.WorkersBusy.Inc()
	defer metrics.WorkersBusy.Dec()

	// Execute records failures on the job itself.
	_, _ = w.exports.Execute(ctx, job)
}

func (w *ExportWorker) sleep(ctx context.Context) {
	t := time.NewTimer(w.interval)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
