package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sparesmarket/spares_api/internal/service"
)

// StaleJobWorker fails processing jobs whose worker died mid-export.
type StaleJobWorker struct {
	exports    *service.ExportService
	interval   time.Duration
	staleAfter time.Duration
}

// NewStaleJobWorker constructs a StaleJobWorker.
func NewStaleJobWorker(exports *service.ExportService, interval, staleAfter time.Duration) *StaleJobWorker {
	return &StaleJobWorker{
		exports:    exports,
		interval:   interval,
		staleAfter: staleAfter,
	}
}

// Start begins the sweep loop and listens for context cancellation.
func (w *StaleJobWorker) Start(ctx context.Context) {
	log.Info().Dur("interval", w.interval).Dur("stale_after", w.staleAfter).Msg("Starting stale job worker")

	w.run(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.run(ctx)
		case <-ctx.Done():
			log.Info().Msg("Stale job worker stopped")
			return
		}
	}
}

func (w *StaleJobWorker) run(ctx context.Context) {
	n, err := w.exports.RecoverStale(ctx, w.staleAfter)
	if err != nil {
		log.Error().Err(err).Msg("Failed to recover stale export jobs")
		return
	}
	if n > 0 {
		log.Warn().Int("count", n).Msg("Stale export jobs failed")
	}
}
