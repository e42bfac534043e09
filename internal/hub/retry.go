package hub

import (
	"context"
	"time"
)

const (
	retryAttempts     = 3
	retryInitialDelay = 500 * time.Millisecond
)

// withRetry runs op up to retryAttempts times with exponential backoff,
// honoring context cancellation between attempts. Transient network and
// timeout failures are the expected callers.
func withRetry(ctx context.Context, op func() error) error {
	var err error
	delay := retryInitialDelay
	for attempt := 0; attempt < retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
			delay *= 2
		}
		if err = op(); err == nil {
			return nil
		}
	}
	return err
}
