package retry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"leadscout/pkg/apperr"
)

func fastConfig() Config {
	return Config{
		BaseDelay:   time.Millisecond,
		MaxDelay:    4 * time.Millisecond,
		Jitter:      time.Millisecond,
		MaxAttempts: 4,
	}
}

func TestDoReturnsOnFirstSuccess(t *testing.T) {
	r := New(fastConfig())
	calls := 0
	err := r.Do(context.Background(), "op", func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDoRetriesOnlyRateLimited(t *testing.T) {
	r := New(fastConfig())

	calls := 0
	err := r.Do(context.Background(), "op", func() error {
		calls++
		return errors.New("boom")
	})
	if err == nil || calls != 1 {
		t.Errorf("plain errors must not retry: calls=%d err=%v", calls, err)
	}

	calls = 0
	err = r.Do(context.Background(), "op", func() error {
		calls++
		return apperr.NotFound("gone")
	})
	if !apperr.IsNotFound(err) || calls != 1 {
		t.Errorf("not-found must pass through: calls=%d err=%v", calls, err)
	}
}

func TestDoRecoversAfterRateLimit(t *testing.T) {
	r := New(fastConfig())
	calls := 0
	err := r.Do(context.Background(), "op", func() error {
		calls++
		if calls < 3 {
			return apperr.RateLimited("quota")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	r := New(fastConfig())
	calls := 0
	err := r.Do(context.Background(), "op", func() error {
		calls++
		return apperr.RateLimited("quota")
	})
	if err == nil {
		t.Fatal("expected exhaustion error")
	}
	if calls != 4 {
		t.Errorf("expected 4 attempts, got %d", calls)
	}
	if !apperr.IsRateLimited(err) {
		t.Errorf("exhaustion must wrap the last rate-limit error, got %v", err)
	}
}

func TestDoSharedAcrossGoroutines(t *testing.T) {
	r := New(fastConfig())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			calls := 0
			err := r.Do(context.Background(), "op", func() error {
				calls++
				if calls == 1 {
					return apperr.RateLimited("quota")
				}
				return nil
			})
			if err != nil {
				t.Errorf("shared retrier: %v", err)
			}
			if calls != 2 {
				t.Errorf("expected retry then success, got %d calls", calls)
			}
		}()
	}
	wg.Wait()
}

func TestDoStopsOnContextCancel(t *testing.T) {
	r := New(Config{
		BaseDelay:   time.Hour,
		MaxDelay:    time.Hour,
		Jitter:      time.Millisecond,
		MaxAttempts: 3,
	})
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- r.Do(ctx, "op", func() error {
			calls++
			return apperr.RateLimited("quota")
		})
	}()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if calls != 1 {
			t.Errorf("expected a single attempt before cancellation, got %d", calls)
		}
	case <-time.After(time.Second):
		t.Fatal("Do did not return after cancellation")
	}
}
