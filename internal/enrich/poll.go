package enrich

import (
	"context"
	"fmt"
	"time"
)

// Poll calls check every interval until it reports true, returns an error,
// or timeout elapses. Timing out yields (false, nil); ctx cancellation is an error.
func Poll(ctx context.Context, timeout, interval time.Duration, check func(context.Context) (bool, error)) (bool, error) {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		ok, err := check(ctx)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
		select {
		case <-ctx.Done():
			return false, fmt.Errorf("poll canceled: %w", ctx.Err())
		case <-deadline.C:
			return false, nil
		case <-ticker.C:
		}
	}
}
