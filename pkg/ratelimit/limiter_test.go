package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlidingWindow(t *testing.T) {
	current := time.Unix(1_700_000_000, 0)
	sw := NewSlidingWindow(3, time.Second)
	sw.now = func() time.Time { return current }

	for i := 0; i < 3; i++ {
		assert.True(t, sw.Allow(), "request %d should be allowed", i+1)
	}
	assert.False(t, sw.Allow())
	assert.Equal(t, 0, sw.Remaining())

	current = current.Add(500 * time.Millisecond)
	assert.False(t, sw.Allow())

	current = current.Add(600 * time.Millisecond)
	assert.True(t, sw.Allow())
	assert.Equal(t, 2, sw.Remaining())

	sw.Reset()
	assert.Equal(t, 3, sw.Remaining())
}

func TestSlidingWindowWait(t *testing.T) {
	sw := NewSlidingWindow(1, 50*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, sw.Wait(ctx))

	start := time.Now()
	require.NoError(t, sw.Wait(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestSlidingWindowWaitCancelled(t *testing.T) {
	sw := PerMinute(1)
	require.True(t, sw.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := sw.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewSlidingWindowClampsCapacity(t *testing.T) {
	sw := NewSlidingWindow(0, time.Second)
	assert.True(t, sw.Allow())
	assert.False(t, sw.Allow())
}
