package ratelimit

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fariz/warden/pkg/errkit"
)

func newLimiter(t *testing.T, cfg Config) *Limiter {
	t.Helper()
	l, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(l.Stop)
	return l
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(Config{Algorithm: AlgorithmSlidingWindow, RequestsPerMinute: 0})
	assert.Error(t, err)

	_, err = New(Config{Algorithm: "leaky_cauldron", RequestsPerMinute: 10})
	require.Error(t, err)
	assert.Equal(t, errkit.KindConfiguration, errkit.KindOf(err))
}

func TestRateCeiling_AllAlgorithms(t *testing.T) {
	const ceiling = 5

	for _, algo := range []string{AlgorithmTokenBucket, AlgorithmSlidingWindow, AlgorithmFixedWindow} {
		t.Run(algo, func(t *testing.T) {
			l := newLimiter(t, Config{
				Algorithm:         algo,
				RequestsPerMinute: ceiling,
				BurstLimit:        ceiling,
				WindowSize:        time.Minute,
			})

			for i := 0; i < ceiling; i++ {
				d := l.Allow("key")
				assert.True(t, d.Allowed, "request %d within ceiling must pass", i+1)
			}

			d := l.Allow("key")
			assert.False(t, d.Allowed, "request over ceiling must be denied")
			assert.Greater(t, d.RetryAfter, time.Duration(0))
		})
	}
}

func TestSlidingWindow_ResetAfterWindow(t *testing.T) {
	l := newLimiter(t, Config{
		Algorithm:         AlgorithmSlidingWindow,
		RequestsPerMinute: 2,
		WindowSize:        50 * time.Millisecond,
	})

	assert.True(t, l.Allow("k").Allowed)
	assert.True(t, l.Allow("k").Allowed)
	assert.False(t, l.Allow("k").Allowed)

	time.Sleep(60 * time.Millisecond)
	assert.True(t, l.Allow("k").Allowed, "window must reset after it elapses")
}

func TestSlidingWindow_RetryAfterApproximatesWindow(t *testing.T) {
	l := newLimiter(t, Config{
		Algorithm:         AlgorithmSlidingWindow,
		RequestsPerMinute: 2,
		WindowSize:        time.Second,
	})

	l.Allow("k")
	l.Allow("k")
	d := l.Allow("k")

	require.False(t, d.Allowed)
	assert.InDelta(t, float64(time.Second), float64(d.RetryAfter), float64(100*time.Millisecond))
}

func TestTokenBucket_BurstThenRefill(t *testing.T) {
	l := newLimiter(t, Config{
		Algorithm:         AlgorithmTokenBucket,
		RequestsPerMinute: 600, // one token per 100ms over a minute window
		BurstLimit:        2,
		WindowSize:        time.Minute,
	})

	assert.True(t, l.Allow("k").Allowed)
	assert.True(t, l.Allow("k").Allowed)
	assert.False(t, l.Allow("k").Allowed, "burst exhausted")

	time.Sleep(150 * time.Millisecond)
	assert.True(t, l.Allow("k").Allowed, "refill must restore a token")
}

func TestTokenBucket_RetryAfterIsRefillInterval(t *testing.T) {
	l := newLimiter(t, Config{
		Algorithm:         AlgorithmTokenBucket,
		RequestsPerMinute: 60,
		BurstLimit:        1,
		WindowSize:        time.Minute,
	})

	l.Allow("k")
	d := l.Allow("k")

	require.False(t, d.Allowed)
	assert.Equal(t, time.Second, d.RetryAfter)
}

func TestFixedWindow_EpochAlignment(t *testing.T) {
	fw := &fixedWindow{cfg: Config{RequestsPerMinute: 1, WindowSize: time.Minute}}

	t1 := time.Date(2026, 8, 31, 10, 30, 10, 0, time.UTC)
	t2 := time.Date(2026, 8, 31, 10, 30, 59, 0, time.UTC)
	t3 := time.Date(2026, 8, 31, 10, 31, 0, 0, time.UTC)

	assert.Equal(t, fw.windowFor(t1), fw.windowFor(t2))
	assert.NotEqual(t, fw.windowFor(t1), fw.windowFor(t3))
}

func TestKeysAreIndependent(t *testing.T) {
	l := newLimiter(t, Config{
		Algorithm:         AlgorithmSlidingWindow,
		RequestsPerMinute: 1,
		WindowSize:        time.Minute,
	})

	assert.True(t, l.Allow("alpha").Allowed)
	assert.False(t, l.Allow("alpha").Allowed)
	assert.True(t, l.Allow("beta").Allowed, "other keys must be unaffected")
}

func TestConsume_ReturnsClassifiedError(t *testing.T) {
	l := newLimiter(t, Config{
		Algorithm:         AlgorithmSlidingWindow,
		RequestsPerMinute: 1,
		WindowSize:        time.Second,
	})

	require.NoError(t, l.Consume("k"))

	err := l.Consume("k")
	require.Error(t, err)

	classified := errkit.As(err)
	require.NotNil(t, classified)
	assert.Equal(t, errkit.KindRateLimit, classified.Kind)
	assert.Greater(t, classified.RetryAfter, time.Duration(0))
	assert.EqualValues(t, 1, classified.Context["retry_after_seconds"])
}

func TestSweep_RemovesIdleEntries(t *testing.T) {
	l := newLimiter(t, Config{
		Algorithm:         AlgorithmSlidingWindow,
		RequestsPerMinute: 10,
		WindowSize:        30 * time.Millisecond,
	})

	for i := 0; i < 5; i++ {
		l.Allow(fmt.Sprintf("key-%d", i))
	}
	assert.Equal(t, 5, l.Len())

	l.sweep(time.Now().Add(time.Second))
	assert.Zero(t, l.Len(), "idle entries must be swept")
}

func TestStop_IsIdempotent(t *testing.T) {
	l, err := New(DefaultConfig())
	require.NoError(t, err)
	l.Stop()
	l.Stop()
}
