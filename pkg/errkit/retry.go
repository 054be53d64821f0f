package errkit

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// RetryConfig controls the retry executor
type RetryConfig struct {
	MaxAttempts int           `json:"max_attempts" mapstructure:"max_attempts"`
	BaseDelay   time.Duration `json:"base_delay" mapstructure:"base_delay"`
	Multiplier  float64       `json:"multiplier" mapstructure:"multiplier"`
	MaxDelay    time.Duration `json:"max_delay" mapstructure:"max_delay"`
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		Multiplier:  2.0,
		MaxDelay:    30 * time.Second,
	}
}

// Retrier executes operations with bounded exponential backoff
type Retrier struct {
	cfg RetryConfig
}

// NewRetrier creates a retrier. Zero or negative fields fall back to the
// defaults.
func NewRetrier(cfg RetryConfig) *Retrier {
	defaults := DefaultRetryConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaults.MaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = defaults.BaseDelay
	}
	if cfg.Multiplier <= 1 {
		cfg.Multiplier = defaults.Multiplier
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = defaults.MaxDelay
	}
	return &Retrier{cfg: cfg}
}

// Do runs op up to MaxAttempts times, sleeping base*multiplier^(attempt-1)
// between attempts, capped at MaxDelay. Non-retryable errors stop
// immediately. Rate-limit errors are retried with the delay widened to at
// least their RetryAfter: the classification marks them non-retryable for
// callers, but the executor honors the server-provided floor instead of
// giving up.
func (r *Retrier) Do(ctx context.Context, op func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return Wrap(KindInternal, err, "retry cancelled")
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}

		classified := As(lastErr)
		rateLimited := classified != nil && classified.Kind == KindRateLimit
		if !IsRetryable(lastErr) && !rateLimited {
			return lastErr
		}
		if attempt == r.cfg.MaxAttempts {
			break
		}

		delay := r.delayFor(attempt)
		if rateLimited && classified.RetryAfter > delay {
			delay = classified.RetryAfter
		}

		log.Debug().
			Int("attempt", attempt).
			Dur("delay", delay).
			Err(lastErr).
			Msg("Retrying after error")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return Wrap(KindInternal, ctx.Err(), "retry cancelled")
		}
	}

	return lastErr
}

// delayFor computes the backoff delay for a 1-based attempt number
func (r *Retrier) delayFor(attempt int) time.Duration {
	delay := float64(r.cfg.BaseDelay)
	for i := 1; i < attempt; i++ {
		delay *= r.cfg.Multiplier
		if time.Duration(delay) >= r.cfg.MaxDelay {
			return r.cfg.MaxDelay
		}
	}
	if time.Duration(delay) > r.cfg.MaxDelay {
		return r.cfg.MaxDelay
	}
	return time.Duration(delay)
}
