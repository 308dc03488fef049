package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDefaultExponentialBackoff(t *testing.T) {
	backoff := DefaultExponentialBackoff()

	if backoff.BaseDelay != 100*time.Millisecond {
		t.Errorf("Expected BaseDelay = 100ms, got %v", backoff.BaseDelay)
	}
	if backoff.MaxDelay != 30*time.Second {
		t.Errorf("Expected MaxDelay = 30s, got %v", backoff.MaxDelay)
	}
	if backoff.Multiplier != 2.0 {
		t.Errorf("Expected Multiplier = 2.0, got %f", backoff.Multiplier)
	}
	if backoff.Jitter != 0.1 {
		t.Errorf("Expected Jitter = 0.1, got %f", backoff.Jitter)
	}
}

func TestExponentialBackoff_NextDelay(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   10 * time.Second,
		Multiplier: 2.0,
		Jitter:     0.0, // No jitter for predictable testing
	}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{-1, 100 * time.Millisecond},
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{2, 400 * time.Millisecond},
		{3, 800 * time.Millisecond},
		{6, 6400 * time.Millisecond},
		{7, 10 * time.Second}, // 12.8s capped
		{10, 10 * time.Second},
	}

	for _, tt := range tests {
		delay := backoff.NextDelay(tt.attempt)
		if delay != tt.expected {
			t.Errorf("NextDelay(%d) = %v, want %v", tt.attempt, delay, tt.expected)
		}
	}
}

func TestExponentialBackoff_WithJitter(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   10 * time.Second,
		Multiplier: 2.0,
		Jitter:     0.1,
	}

	minExpected := 720 * time.Millisecond
	maxExpected := 880 * time.Millisecond
	for i := 0; i < 100; i++ {
		delay := backoff.NextDelay(3)
		if delay < minExpected || delay > maxExpected {
			t.Errorf("Delay = %v, expected range [%v, %v]", delay, minExpected, maxExpected)
		}
	}
}

func TestPublishBackoff(t *testing.T) {
	backoff := PublishBackoff()
	backoff.Jitter = 0

	if got := backoff.NextDelay(0); got != 50*time.Millisecond {
		t.Errorf("NextDelay(0) = %v, want 50ms", got)
	}
	if got := backoff.NextDelay(5); got != 500*time.Millisecond {
		t.Errorf("NextDelay(5) = %v, want 500ms cap", got)
	}
}

func TestFixedBackoff(t *testing.T) {
	backoff := &FixedBackoff{Delay: 5 * time.Second}

	for attempt := 0; attempt < 10; attempt++ {
		if delay := backoff.NextDelay(attempt); delay != 5*time.Second {
			t.Errorf("NextDelay(%d) = %v, want 5s", attempt, delay)
		}
	}
}

func TestRetry(t *testing.T) {
	errTransient := errors.New("channel closed")
	noWait := &FixedBackoff{Delay: 0}

	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		err := Retry(context.Background(), 3, noWait, func(context.Context) error {
			calls++
			if calls < 3 {
				return errTransient
			}
			return nil
		})
		if err != nil {
			t.Fatalf("expected success, got %v", err)
		}
		if calls != 3 {
			t.Errorf("calls = %d, want 3", calls)
		}
	})

	t.Run("returns last error when attempts run out", func(t *testing.T) {
		calls := 0
		err := Retry(context.Background(), 2, noWait, func(context.Context) error {
			calls++
			return errTransient
		})
		if !errors.Is(err, errTransient) {
			t.Errorf("err = %v, want %v", err, errTransient)
		}
		if calls != 2 {
			t.Errorf("calls = %d, want 2", calls)
		}
	})

	t.Run("stops when context is canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		err := Retry(ctx, 5, &FixedBackoff{Delay: time.Hour}, func(context.Context) error {
			calls++
			cancel()
			return errTransient
		})
		if !errors.Is(err, errTransient) {
			t.Errorf("err = %v, want %v", err, errTransient)
		}
		if calls != 1 {
			t.Errorf("calls = %d, want 1", calls)
		}
	})

	t.Run("zero attempts still calls once", func(t *testing.T) {
		calls := 0
		_ = Retry(context.Background(), 0, noWait, func(context.Context) error {
			calls++
			return nil
		})
		if calls != 1 {
			t.Errorf("calls = %d, want 1", calls)
		}
	})
}

func BenchmarkExponentialBackoff(b *testing.B) {
	backoff := DefaultExponentialBackoff()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		backoff.NextDelay(i % 10)
	}
}
