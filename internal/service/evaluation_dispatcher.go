package service

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/designhub-api/internal/dto"
	"github.com/noah-isme/designhub-api/internal/models"
	"github.com/noah-isme/designhub-api/internal/observability"
	"github.com/noah-isme/designhub-api/internal/repository"
	"github.com/noah-isme/designhub-api/pkg/ai"
)

const (
	defaultDispatchInterval = 2 * time.Second
	defaultDispatchBatch    = 16
	defaultDispatchWorkers  = 4
	defaultRetryBase        = 2 * time.Second
	defaultRetryMax         = 2 * time.Minute
	maxStoredErrorLength    = 512
)

// DispatcherConfig tunes the evaluation queue.
type DispatcherConfig struct {
	Interval  time.Duration
	Batch     int
	Workers   int
	RetryBase time.Duration
	RetryMax  time.Duration
	Timeout   time.Duration
}

// EvaluationDispatcher drains the evaluation outbox and writes results back onto solutions.
type EvaluationDispatcher struct {
	jobs          repository.EvaluationJobRepository
	evaluator     ai.Evaluator
	notifications NotificationPublisher
	logger        zerolog.Logger
	tracer        trace.Tracer
	cfg           DispatcherConfig
	now           func() time.Time
	jitter        func() float64
}

// NewEvaluationDispatcher constructs a dispatcher. Zero config values fall back to defaults.
func NewEvaluationDispatcher(jobs repository.EvaluationJobRepository, evaluator ai.Evaluator, notifications NotificationPublisher, logger zerolog.Logger, cfg DispatcherConfig) *EvaluationDispatcher {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultDispatchInterval
	}
	if cfg.Batch <= 0 {
		cfg.Batch = defaultDispatchBatch
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultDispatchWorkers
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = defaultRetryBase
	}
	if cfg.RetryMax < cfg.RetryBase {
		cfg.RetryMax = defaultRetryMax
		if cfg.RetryMax < cfg.RetryBase {
			cfg.RetryMax = cfg.RetryBase
		}
	}

	var mu sync.Mutex
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	return &EvaluationDispatcher{
		jobs:          jobs,
		evaluator:     evaluator,
		notifications: notifications,
		logger:        logger.With().Str("component", "evaluation_dispatcher").Logger(),
		tracer:        otel.Tracer("github.com/noah-isme/designhub-api/internal/service/evaluation"),
		cfg:           cfg,
		now:           func() time.Time { return time.Now().UTC() },
		jitter: func() float64 {
			mu.Lock()
			defer mu.Unlock()
			return rng.Float64()
		},
	}
}

// Run dispatches due jobs every interval until ctx is cancelled.
func (d *EvaluationDispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()

	d.logger.Info().Dur("interval", d.cfg.Interval).Int("workers", d.cfg.Workers).Msg("evaluation dispatcher started")
	d.DispatchOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			d.logger.Info().Msg("evaluation dispatcher stopped")
			return
		case <-ticker.C:
			d.DispatchOnce(ctx)
		}
	}
}

// DispatchOnce claims one batch of due jobs and processes it with bounded concurrency.
// It returns the number of jobs claimed.
func (d *EvaluationDispatcher) DispatchOnce(ctx context.Context) int {
	defer d.updateQueueGauge(ctx)

	jobs, err := d.jobs.ClaimDue(ctx, d.now(), d.cfg.Batch)
	if err != nil {
		if ctx.Err() == nil {
			d.logger.Error().Err(err).Msg("claim evaluation jobs failed")
		}
		return 0
	}
	if len(jobs) == 0 {
		return 0
	}
	observability.EvaluationsClaimed().Add(float64(len(jobs)))

	slots := make(chan struct{}, d.cfg.Workers)
	var wg sync.WaitGroup
	for _, job := range jobs {
		job := job
		slots <- struct{}{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-slots }()
			d.process(ctx, job)
		}()
	}
	wg.Wait()

	return len(jobs)
}

func (d *EvaluationDispatcher) process(ctx context.Context, job models.EvaluationJob) {
	ctx, span := d.tracer.Start(ctx, "evaluation.process", trace.WithAttributes(
		attribute.Int64("solution.id", int64(job.SolutionID)),
		attribute.Int("job.attempt", job.Attempts),
	))
	defer span.End()

	logger := d.logger.With().
		Uint("job_id", job.ID).
		Uint("solution_id", job.SolutionID).
		Int("attempt", job.Attempts).
		Int("max_attempts", job.MaxAttempts).
		Logger()

	if job.Solution.ID != 0 && job.Solution.Status != models.SolutionStatusPending {
		d.discard(ctx, logger, job, "solution is "+job.Solution.Status)
		return
	}

	evalCtx := ctx
	if d.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		evalCtx, cancel = context.WithTimeout(ctx, d.cfg.Timeout)
		defer cancel()
	}

	result, err := d.evaluate(evalCtx, job)
	if err != nil {
		span.RecordError(err)
		if ctx.Err() != nil {
			// Shutdown: the watchdog returns the job to the queue once its lease expires.
			return
		}
		d.handleFailure(ctx, logger, job, err)
		return
	}

	feedback, err := dto.EncodeEvaluation(result)
	if err != nil {
		d.handleFailure(ctx, logger, job, err)
		return
	}

	err = d.jobs.Complete(ctx, job, map[string]interface{}{
		"feedback":   feedback,
		"rating":     result.Rating,
		"attempts":   job.Attempts,
		"last_error": "",
	})
	switch {
	case errors.Is(err, repository.ErrStaleState):
		d.discard(ctx, logger, job, "solution left pending during evaluation")
		return
	case err != nil:
		observability.EvaluationOutcomes().WithLabelValues("store_error").Inc()
		logger.Error().Err(err).Msg("store evaluation failed")
		return
	}

	observability.EvaluationOutcomes().WithLabelValues("reviewed").Inc()
	logger.Info().Int("rating", result.Rating).Msg("solution evaluated")
	d.notify(ctx, job, models.SolutionStatusReviewed, models.NotificationSolutionReviewed, "Ваше решение проверено")
}

func (d *EvaluationDispatcher) evaluate(ctx context.Context, job models.EvaluationJob) (ai.EvaluationResult, error) {
	if d.evaluator == nil {
		return ai.EvaluationResult{}, ai.ErrUpstream
	}
	return d.evaluator.Evaluate(ctx, ai.EvaluationInput{
		TaskDescription:     job.TaskDescription,
		SolutionDescription: job.Solution.Description,
	})
}

func (d *EvaluationDispatcher) handleFailure(ctx context.Context, logger zerolog.Logger, job models.EvaluationJob, cause error) {
	reason := truncateError(cause)

	if retryable(cause) && !job.Exhausted() {
		next := d.now().Add(d.backoff(job.Attempts))
		if err := d.jobs.Retry(ctx, job, next, reason); err != nil {
			logger.Error().Err(err).Msg("schedule evaluation retry failed")
			return
		}
		observability.EvaluationOutcomes().WithLabelValues("retried").Inc()
		logger.Warn().Err(cause).Time("next_attempt_at", next).Msg("evaluation failed, retry scheduled")
		return
	}

	feedback, _ := dto.EncodeEvaluation(ai.Fallback())
	err := d.jobs.Bury(ctx, job, map[string]interface{}{
		"feedback":   feedback,
		"rating":     0,
		"attempts":   job.Attempts,
		"last_error": reason,
	})
	switch {
	case errors.Is(err, repository.ErrStaleState):
		d.discard(ctx, logger, job, "solution left pending during evaluation")
		return
	case err != nil:
		logger.Error().Err(err).Msg("dead-letter evaluation failed")
		return
	}

	observability.EvaluationOutcomes().WithLabelValues("failed").Inc()
	logger.Error().Err(cause).Msg("evaluation failed permanently, solution failed")
	d.notify(ctx, job, models.SolutionStatusFailed, models.NotificationSolutionFailed, "Не удалось оценить решение, попробуйте позже")
}

// retryable reports whether another attempt may succeed. Provider failures and
// per-call timeouts qualify; anything else is dead-lettered at once.
func retryable(err error) bool {
	return errors.Is(err, ai.ErrUpstream) || errors.Is(err, context.DeadlineExceeded)
}

func (d *EvaluationDispatcher) discard(ctx context.Context, logger zerolog.Logger, job models.EvaluationJob, reason string) {
	if err := d.jobs.Discard(ctx, job.ID, reason); err != nil {
		logger.Error().Err(err).Msg("discard evaluation job failed")
		return
	}
	observability.EvaluationOutcomes().WithLabelValues("discarded").Inc()
	logger.Info().Str("reason", reason).Msg("evaluation job discarded")
}

// backoff returns min(base*2^(attempt-1), max) with +/-10% jitter.
func (d *EvaluationDispatcher) backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := d.cfg.RetryBase
	for i := 1; i < attempt && delay < d.cfg.RetryMax; i++ {
		delay *= 2
	}
	if delay > d.cfg.RetryMax {
		delay = d.cfg.RetryMax
	}

	factor := 0.9 + 0.2*d.jitter()
	return time.Duration(float64(delay) * factor)
}

func (d *EvaluationDispatcher) notify(ctx context.Context, job models.EvaluationJob, status, kind, message string) {
	if d.notifications == nil {
		return
	}
	_, err := d.notifications.Publish(ctx, dto.NotificationCreateRequest{
		UserID:  job.Solution.UserID,
		Type:    kind,
		Message: message,
		Metadata: map[string]interface{}{
			"solution_id": job.SolutionID,
			"task_id":     job.Solution.TaskID,
			"status":      status,
		},
	})
	if err != nil {
		d.logger.Warn().Err(err).Uint("solution_id", job.SolutionID).Msg("failed to publish evaluation notification")
	}
}

func (d *EvaluationDispatcher) updateQueueGauge(ctx context.Context) {
	for _, status := range []string{models.EvaluationJobQueued, models.EvaluationJobProcessing, models.EvaluationJobDead} {
		count, err := d.jobs.CountByStatus(ctx, status)
		if err != nil {
			if ctx.Err() == nil {
				d.logger.Warn().Err(err).Str("status", status).Msg("count evaluation jobs failed")
			}
			return
		}
		observability.EvaluationQueue().WithLabelValues(status).Set(float64(count))
	}
}

func truncateError(err error) string {
	if err == nil {
		return ""
	}
	message := strings.TrimSpace(err.Error())
	if len(message) > maxStoredErrorLength {
		message = message[:maxStoredErrorLength]
	}
	return message
}
