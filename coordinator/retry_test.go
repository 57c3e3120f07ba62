package coordinator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffDelay(t *testing.T) {
	base := 100 * time.Millisecond

	assert.Equal(t, base, backoffDelay(base, 1))
	assert.Equal(t, 200*time.Millisecond, backoffDelay(base, 2))
	assert.Equal(t, 400*time.Millisecond, backoffDelay(base, 3))

	// Retry numbers below 1 fall back to the base delay.
	assert.Equal(t, base, backoffDelay(base, 0))

	// Huge retry counts stay capped instead of overflowing.
	assert.Equal(t, base<<maxBackoffShift, backoffDelay(base, 1000))
}

func TestSleepContext_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := sleepContext(ctx, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestSleepContext_ZeroDelay(t *testing.T) {
	assert.NoError(t, sleepContext(context.Background(), 0))
}
