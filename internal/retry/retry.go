// Package retry retries transient operations with exponential backoff and
// full jitter.
package retry

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"
)

// Config controls the backoff schedule.
type Config struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	UseJitter       bool
}

// DefaultConfig suits connecting to a local service that may still be
// starting.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:     5,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		Multiplier:      2.0,
		UseJitter:       true,
	}
}

// ExponentialBackoff returns the delay before retry number attempt
// (1-based). Non-positive attempts wait zero.
func ExponentialBackoff(attempt int, cfg Config) time.Duration {
	if attempt <= 0 {
		return 0
	}
	backoff := cfg.InitialInterval
	if backoff <= 0 {
		backoff = time.Millisecond
	}
	multiplier := max(cfg.Multiplier, 1.0)
	for i := 1; i < attempt; i++ {
		backoff = time.Duration(float64(backoff) * multiplier)
		if cfg.MaxInterval > 0 && backoff > cfg.MaxInterval {
			backoff = cfg.MaxInterval
			break
		}
	}
	if cfg.UseJitter {
		return time.Duration(rand.Int64N(int64(backoff) + 1)) // #nosec G404 -- jitter only
	}
	return backoff
}

// Do calls fn until it succeeds, the attempts run out or ctx ends. The last
// error is returned.
func Do(ctx context.Context, cfg Config, fn func(context.Context) error) error {
	attempts := max(cfg.MaxAttempts, 1)
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		timer := time.NewTimer(ExponentialBackoff(attempt, cfg))
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w (last error: %w)", ctx.Err(), err)
		case <-timer.C:
		}
	}
	return fmt.Errorf("after %d attempts: %w", attempts, err)
}
