package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"
)

// RetryConfig controls attempt count and backoff growth. Zero fields take
// defaults.
type RetryConfig struct {
	MaxAttempts    int
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	Multiplier     float64
	JitterFraction float64
	// Retryable reports whether err is worth another attempt; nil retries
	// everything.
	Retryable func(err error) bool
	// OnRetry is called before sleeping ahead of attempt+1.
	OnRetry func(attempt int, err error, delay time.Duration)
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = 100 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 10 * time.Second
	}
	if c.Multiplier <= 0 {
		c.Multiplier = 2.0
	}
	if c.JitterFraction <= 0 {
		c.JitterFraction = 0.1
	}
	return c
}

// Retry calls fn until it succeeds, MaxAttempts is reached, ctx is done, or
// fn returns an error that Retryable rejects.
func Retry(ctx context.Context, name string, cfg RetryConfig, fn func() error) error {
	_, err := RetryValue(ctx, name, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// RetryValue is Retry for functions producing a value. The value of the
// first successful attempt is returned.
func RetryValue[T any](ctx context.Context, name string, cfg RetryConfig, fn func() (T, error)) (T, error) {
	cfg = cfg.withDefaults()
	logger := slog.Default().With("component", "retry", "operation", name)

	var zero T
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for attempt := 1; ; attempt++ {
		value, err := fn()
		if err == nil {
			if attempt > 1 {
				logger.Info("succeeded after retry", "attempt", attempt)
			}
			return value, nil
		}
		if cfg.Retryable != nil && !cfg.Retryable(err) {
			return zero, err
		}
		if attempt >= cfg.MaxAttempts {
			return zero, fmt.Errorf("all %d attempts failed for %s: %w", cfg.MaxAttempts, name, err)
		}
		if ctx.Err() != nil {
			return zero, fmt.Errorf("retry aborted: %w", ctx.Err())
		}

		delay := computeDelay(attempt, cfg)
		logger.Warn("operation failed, retrying",
			"attempt", attempt,
			"max_attempts", cfg.MaxAttempts,
			"error", err,
			"next_delay", delay,
		)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, delay)
		}
		if timer == nil {
			timer = time.NewTimer(delay)
		} else {
			timer.Reset(delay)
		}
		select {
		case <-timer.C:
		case <-ctx.Done():
			return zero, fmt.Errorf("retry aborted during backoff: %w", ctx.Err())
		}
	}
}

// computeDelay returns InitialDelay*Multiplier^(attempt-1) with +/- jitter,
// capped at MaxDelay.
func computeDelay(attempt int, cfg RetryConfig) time.Duration {
	backoff := float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(attempt-1))
	backoff += backoff * cfg.JitterFraction * (2*rand.Float64() - 1)
	if backoff > float64(cfg.MaxDelay) {
		return cfg.MaxDelay
	}
	if backoff < 0 {
		return cfg.InitialDelay
	}
	return time.Duration(backoff)
}
