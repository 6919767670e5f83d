package client

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrEvaluationDelayed is returned when the attempt budget runs out while the solution is still open.
	ErrEvaluationDelayed = errors.New("evaluation is taking longer than expected")
	// ErrEvaluationFailed is returned when the solution reached the failed state.
	ErrEvaluationFailed = errors.New("evaluation failed")
)

// PollerConfig tunes Poller.Wait.
type PollerConfig struct {
	// Interval between fetches. Defaults to 5s.
	Interval time.Duration
	// Backoff multiplies the interval after every open answer. Values below 1 keep it fixed.
	Backoff float64
	// MaxInterval caps the grown interval. Zero means no cap.
	MaxInterval time.Duration
	// MaxAttempts bounds the number of fetches. Zero polls until ctx ends.
	MaxAttempts int
}

// Poller waits for a solution to be settled.
type Poller struct {
	client *Client
	cfg    PollerConfig
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewPoller creates a poller using the given client.
func NewPoller(client *Client, cfg PollerConfig) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.Backoff < 1 {
		cfg.Backoff = 1
	}
	return &Poller{client: client, cfg: cfg, sleep: sleepContext}
}

// Wait re-fetches the caller's latest solution while it is pending or awaiting a mentor.
// A missing solution returns (nil, nil). The last fetched solution is returned with
// ErrEvaluationDelayed or ErrEvaluationFailed.
func (p *Poller) Wait(ctx context.Context, taskID, userID uint) (*Solution, error) {
	interval := p.cfg.Interval
	for attempt := 1; ; attempt++ {
		solution, err := p.client.MySolution(ctx, taskID, userID)
		if err != nil {
			return nil, err
		}
		if solution == nil {
			return nil, nil
		}

		switch solution.Status {
		case StatusReviewed:
			return solution, nil
		case StatusFailed:
			return solution, ErrEvaluationFailed
		}

		if p.cfg.MaxAttempts > 0 && attempt >= p.cfg.MaxAttempts {
			return solution, ErrEvaluationDelayed
		}
		if err := p.sleep(ctx, interval); err != nil {
			return solution, err
		}
		interval = p.next(interval)
	}
}

func (p *Poller) next(current time.Duration) time.Duration {
	grown := time.Duration(float64(current) * p.cfg.Backoff)
	if p.cfg.MaxInterval > 0 && grown > p.cfg.MaxInterval {
		return p.cfg.MaxInterval
	}
	return grown
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
