package retry

import (
	"context"
	"time"
)

// maxBackoff caps a single sleep between attempts. Indexer reads are the
// only retried calls and their callers hold an open HTTP request slot, so
// there is no point waiting longer than this before giving up the attempt
// budget.
const maxBackoff = 10 * time.Second

// sleepFunc is swapped out in tests so backoff behavior can be asserted
// without real waiting.
var sleepFunc = func(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// BackoffAndSleep sleeps for (backoffMultiplier*retries + 1) units of
// durationType, clamped to maxBackoff. It returns early with the context
// error if ctx is cancelled mid-sleep.
func BackoffAndSleep(ctx context.Context, retries int, backoffMultiplier int, durationType time.Duration) error {
	backoff := (backoffMultiplier * retries) + 1

	backoffPeriod := time.Duration(backoff) * durationType
	if backoffPeriod > maxBackoff {
		backoffPeriod = maxBackoff
	}

	return sleepFunc(ctx, backoffPeriod)
}
