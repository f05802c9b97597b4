// Package retry provides a bounded, stack-safe retry loop.
package retry

import (
	"context"
	"time"
)

// Do runs op up to attempts times, sleeping delay between attempts.
// It returns nil on the first success, the last error once attempts are
// exhausted, or the context error if ctx ends while waiting.
func Do(ctx context.Context, attempts int, delay time.Duration, op func(ctx context.Context) error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = op(ctx); err == nil {
			return nil
		}

		if i == attempts-1 {
			break
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}
