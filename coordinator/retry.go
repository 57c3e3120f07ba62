package coordinator

import (
	"context"
	"time"
)

// maxBackoffShift caps the exponential growth so a large retry budget cannot
// overflow the duration.
const maxBackoffShift = 16

// backoffDelay returns base * 2^(retry-1) for retry >= 1.
func backoffDelay(base time.Duration, retry int) time.Duration {
	if retry < 1 {
		return base
	}
	shift := retry - 1
	if shift > maxBackoffShift {
		shift = maxBackoffShift
	}
	return base << shift
}

// sleepContext waits d or until the context is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
