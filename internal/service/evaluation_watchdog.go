package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/designhub-api/internal/observability"
	"github.com/noah-isme/designhub-api/internal/repository"
)

// EvaluationWatchdog returns jobs whose lease expired to the queue, e.g. after a worker crash.
type EvaluationWatchdog struct {
	jobs     repository.EvaluationJobRepository
	lease    time.Duration
	interval time.Duration
	logger   zerolog.Logger
	now      func() time.Time
}

// NewEvaluationWatchdog constructs a watchdog scanning every lease/2.
func NewEvaluationWatchdog(jobs repository.EvaluationJobRepository, lease time.Duration, logger zerolog.Logger) *EvaluationWatchdog {
	if lease <= 0 {
		lease = 5 * time.Minute
	}
	return &EvaluationWatchdog{
		jobs:     jobs,
		lease:    lease,
		interval: lease / 2,
		logger:   logger.With().Str("component", "evaluation_watchdog").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Start runs the watchdog loop until ctx is cancelled.
func (w *EvaluationWatchdog) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.Reclaim(ctx); err != nil && ctx.Err() == nil {
				w.logger.Error().Err(err).Msg("lease scan failed")
			}
		}
	}
}

// Reclaim releases every processing job locked for longer than the lease.
func (w *EvaluationWatchdog) Reclaim(ctx context.Context) (int64, error) {
	released, err := w.jobs.ReleaseExpired(ctx, w.now().Add(-w.lease))
	if err != nil {
		return 0, err
	}
	if released > 0 {
		observability.EvaluationsReleased().Add(float64(released))
		w.logger.Warn().Int64("released", released).Msg("expired evaluation leases returned to queue")
	}
	return released, nil
}
