package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExponentialBackoff(t *testing.T) {
	cfg := Config{InitialInterval: 100 * time.Millisecond, MaxInterval: time.Second, Multiplier: 2}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: 0, want: 0},
		{attempt: 1, want: 100 * time.Millisecond},
		{attempt: 2, want: 200 * time.Millisecond},
		{attempt: 4, want: 800 * time.Millisecond},
		{attempt: 5, want: time.Second},
		{attempt: 50, want: time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExponentialBackoff(tt.attempt, cfg), "attempt %d", tt.attempt)
	}
}

func TestExponentialBackoff_JitterBounded(t *testing.T) {
	cfg := Config{InitialInterval: 50 * time.Millisecond, MaxInterval: time.Second, Multiplier: 2, UseJitter: true}
	for range 100 {
		d := ExponentialBackoff(3, cfg)
		assert.GreaterOrEqual(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, 200*time.Millisecond)
	}
}

func TestDo(t *testing.T) {
	cfg := Config{MaxAttempts: 3, InitialInterval: time.Millisecond, Multiplier: 1}
	transient := errors.New("connection refused")

	t.Run("succeeds after retries", func(t *testing.T) {
		calls := 0
		err := Do(context.Background(), cfg, func(context.Context) error {
			calls++
			if calls < 3 {
				return transient
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("returns last error", func(t *testing.T) {
		calls := 0
		err := Do(context.Background(), cfg, func(context.Context) error {
			calls++
			return transient
		})
		assert.ErrorIs(t, err, transient)
		assert.Equal(t, 3, calls)
	})

	t.Run("stops on cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		slow := Config{MaxAttempts: 5, InitialInterval: time.Hour, Multiplier: 1}
		err := Do(ctx, slow, func(context.Context) error {
			cancel()
			return transient
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.ErrorIs(t, err, transient)
	})
}
