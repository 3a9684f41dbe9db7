package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/cardlet/cardlet-backend/internal/repository"
)

// AbandonWorker periodically sweeps IN_PROGRESS tests whose time budget ran
// out and marks them ABANDONED. A test is swept once its started_at plus
// duration plus the configured grace has passed; the grace absorbs clock
// skew and slow final submissions.
type AbandonWorker struct {
	testRepo *repository.TestRepository
	interval time.Duration
	grace    time.Duration
	log      zerolog.Logger
}

// NewAbandonWorker creates a new AbandonWorker.
func NewAbandonWorker(testRepo *repository.TestRepository, interval, grace time.Duration, log zerolog.Logger) *AbandonWorker {
	return &AbandonWorker{
		testRepo: testRepo,
		interval: interval,
		grace:    grace,
		log:      log.With().Str("component", "abandon_worker").Logger(),
	}
}

// Start begins the sweep loop. Call in a goroutine.
func (w *AbandonWorker) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Dur("grace", w.grace).Msg("Worker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *AbandonWorker) sweep(ctx context.Context) {
	swept, err := w.testRepo.MarkAbandoned(ctx, w.grace)
	if err != nil {
		if ctx.Err() == nil {
			w.log.Error().Err(err).Msg("Sweep failed")
		}
		return
	}
	if swept > 0 {
		w.log.Info().Int64("swept", swept).Msg("Marked overdue tests abandoned")
	}
}
