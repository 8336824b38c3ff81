// Package retry implements bounded exponential backoff for rate-limited calls.
package retry

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"leadscout/pkg/apperr"
	"leadscout/pkg/logger"
)

// Config controls the backoff schedule.
type Config struct {
	BaseDelay   time.Duration // first wait (default: 500ms)
	MaxDelay    time.Duration // cap on the doubled delay (default: 10s)
	Jitter      time.Duration // random extra wait in [0, Jitter) (default: 250ms)
	MaxAttempts int           // total attempts including the first (default: 6)
}

// DefaultConfig returns the standard schedule.
func DefaultConfig() Config {
	return Config{
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    10 * time.Second,
		Jitter:      250 * time.Millisecond,
		MaxAttempts: 6,
	}
}

// Retrier retries a remote call when it fails with a rate-limit error.
// Every other error passes through untouched on the first attempt. One
// Retrier is shared by concurrent callers; the jitter source is guarded.
type Retrier struct {
	cfg Config

	mu  sync.Mutex
	rng *rand.Rand
}

func New(cfg Config) *Retrier {
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 500 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 10 * time.Second
	}
	if cfg.Jitter <= 0 {
		cfg.Jitter = 250 * time.Millisecond
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 6
	}
	return &Retrier{
		cfg: cfg,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Do runs fn, retrying on rate-limit errors with exponential backoff and
// jitter. label names the remote operation for logging.
func (r *Retrier) Do(ctx context.Context, label string, fn func() error) error {
	delay := r.cfg.BaseDelay
	var lastErr error

	for attempt := 0; attempt < r.cfg.MaxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !apperr.IsRateLimited(lastErr) {
			return lastErr
		}

		wait := delay + r.jitter()
		logger.WithFields(map[string]any{
			"operation": label,
			"attempt":   attempt + 1,
			"wait_ms":   wait.Milliseconds(),
		}).Warn("rate limited, backing off")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}

		delay *= 2
		if delay > r.cfg.MaxDelay {
			delay = r.cfg.MaxDelay
		}
	}

	return fmt.Errorf("retries exhausted for %s: %w", label, lastErr)
}

func (r *Retrier) jitter() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return time.Duration(r.rng.Int63n(int64(r.cfg.Jitter)))
}
