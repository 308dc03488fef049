package stripepay

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errOutage = errors.New("stripe unavailable")

func newTestBreaker(now *time.Time) *CircuitBreaker {
	cb := NewCircuitBreaker(CircuitBreakerConfig{MaxFailures: 3, Cooldown: 10 * time.Second, MaxProbes: 1},
		func(err error) bool { return errors.Is(err, errOutage) })
	cb.now = func() time.Time { return *now }
	cb.changedAt = *now
	return cb
}

func TestCircuitBreaker_DefaultConfig(t *testing.T) {
	config := DefaultCircuitBreakerConfig()

	assert.Equal(t, uint32(5), config.MaxFailures)
	assert.Equal(t, 30*time.Second, config.Cooldown)
	assert.Equal(t, uint32(1), config.MaxProbes)
}

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	now := time.Date(2026, 12, 24, 9, 0, 0, 0, time.UTC)
	cb := newTestBreaker(&now)

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, cb.Call(func() error { return errOutage }), errOutage)
	}
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Call(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestCircuitBreaker_RequestErrorsDoNotTrip(t *testing.T) {
	now := time.Date(2026, 12, 24, 9, 0, 0, 0, time.UTC)
	cb := newTestBreaker(&now)
	declined := errors.New("card declined")

	for i := 0; i < 10; i++ {
		_ = cb.Call(func() error { return declined })
	}
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	now := time.Date(2026, 12, 24, 9, 0, 0, 0, time.UTC)
	cb := newTestBreaker(&now)

	_ = cb.Call(func() error { return errOutage })
	_ = cb.Call(func() error { return errOutage })
	require.NoError(t, cb.Call(func() error { return nil }))
	_ = cb.Call(func() error { return errOutage })
	_ = cb.Call(func() error { return errOutage })

	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenProbe(t *testing.T) {
	tests := []struct {
		name      string
		probeErr  error
		wantState CircuitState
	}{
		{"successful probe closes", nil, StateClosed},
		{"failed probe reopens", errOutage, StateOpen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := time.Date(2026, 12, 24, 9, 0, 0, 0, time.UTC)
			cb := newTestBreaker(&now)
			for i := 0; i < 3; i++ {
				_ = cb.Call(func() error { return errOutage })
			}
			require.Equal(t, StateOpen, cb.State())

			now = now.Add(11 * time.Second)
			_ = cb.Call(func() error { return tt.probeErr })
			assert.Equal(t, tt.wantState, cb.State())
		})
	}
}

func TestCircuitBreaker_ProbeBudget(t *testing.T) {
	now := time.Date(2026, 12, 24, 9, 0, 0, 0, time.UTC)
	cb := newTestBreaker(&now)
	for i := 0; i < 3; i++ {
		_ = cb.Call(func() error { return errOutage })
	}
	now = now.Add(11 * time.Second)

	release := make(chan struct{})
	started := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = cb.Call(func() error {
			close(started)
			<-release
			return nil
		})
	}()

	<-started
	assert.ErrorIs(t, cb.Call(func() error { return nil }), ErrTooManyProbes)
	close(release)
	wg.Wait()
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "unknown", CircuitState(42).String())
}
