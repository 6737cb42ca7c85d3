package breaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func newTestBreaker(threshold int, recovery time.Duration) (*Breaker, *time.Time) {
	b := New(threshold, recovery)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	b.SetClock(func() time.Time { return now })
	return b, &now
}

func tripBreaker(t *testing.T, b *Breaker, failures int) {
	t.Helper()
	for i := 0; i < failures; i++ {
		err := b.Execute(func() error { return errBoom })
		require.ErrorIs(t, err, errBoom)
	}
}

// ============================================
// Closed State Tests
// ============================================

func TestBreaker_StartsClosed(t *testing.T) {
	b := New(3, time.Minute)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_PassesThroughWhenClosed(t *testing.T) {
	b := New(3, time.Minute)

	called := false
	err := b.Execute(func() error {
		called = true
		return nil
	})

	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_StaysClosedBelowThreshold(t *testing.T) {
	b, _ := newTestBreaker(3, time.Minute)

	tripBreaker(t, b, 2)

	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b, _ := newTestBreaker(3, time.Minute)

	tripBreaker(t, b, 2)
	require.NoError(t, b.Execute(func() error { return nil }))
	tripBreaker(t, b, 2)

	// Consecutive failures never reached the threshold.
	assert.Equal(t, StateClosed, b.State())
}

// ============================================
// Open State Tests
// ============================================

func TestBreaker_OpensAtThreshold(t *testing.T) {
	b, _ := newTestBreaker(3, time.Minute)

	tripBreaker(t, b, 3)

	assert.Equal(t, StateOpen, b.State())
}

func TestBreaker_FailsFastWhenOpen(t *testing.T) {
	b, _ := newTestBreaker(3, time.Minute)
	tripBreaker(t, b, 3)

	called := false
	err := b.Execute(func() error {
		called = true
		return nil
	})

	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

// ============================================
// Half-Open State Tests
// ============================================

func TestBreaker_HalfOpenAfterRecoveryTimeout(t *testing.T) {
	b, now := newTestBreaker(3, time.Minute)
	tripBreaker(t, b, 3)

	*now = now.Add(time.Minute)

	// The trial call is admitted.
	called := false
	err := b.Execute(func() error {
		called = true
		return nil
	})

	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_ReopensOnFailedTrial(t *testing.T) {
	b, now := newTestBreaker(3, time.Minute)
	tripBreaker(t, b, 3)

	*now = now.Add(time.Minute)

	err := b.Execute(func() error { return errBoom })
	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, StateOpen, b.State())

	// Still failing fast before the next recovery window.
	err = b.Execute(func() error { return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestBreaker_SingleTrialInHalfOpen(t *testing.T) {
	b, now := newTestBreaker(3, time.Minute)
	tripBreaker(t, b, 3)

	*now = now.Add(time.Minute)

	trialStarted := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- b.Execute(func() error {
			close(trialStarted)
			<-release
			return nil
		})
	}()

	<-trialStarted

	// A second call while the trial is in flight is rejected.
	err := b.Execute(func() error { return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_ClosesAndCountsFreshAfterRecovery(t *testing.T) {
	b, now := newTestBreaker(3, time.Minute)
	tripBreaker(t, b, 3)

	*now = now.Add(time.Minute)
	require.NoError(t, b.Execute(func() error { return nil }))
	require.Equal(t, StateClosed, b.State())

	// The failure count restarted at zero.
	tripBreaker(t, b, 2)
	assert.Equal(t, StateClosed, b.State())
	tripBreaker(t, b, 1)
	assert.Equal(t, StateOpen, b.State())
}

// ============================================
// State String Tests
// ============================================

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half_open", StateHalfOpen.String())
	assert.Equal(t, "unknown(9)", State(9).String())
}
