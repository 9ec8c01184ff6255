package utils

import (
	"context"
	"time"
)

// WaitFor blocks for d or until ctx is cancelled, whichever comes first.
// A non-positive duration returns immediately. Used to pace submission
// attempts so downstream collaborators see a steady request rate.
func WaitFor(ctx context.Context, d time.Duration) error {
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
