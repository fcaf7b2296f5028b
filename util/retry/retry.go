// Package retry provides a small bounded-retry helper used by the chain
// gateway for idempotent indexer reads. Submission is never retried here:
// a submit that timed out may still have been accepted by the node.
package retry

import (
	"context"
	"time"

	"github.com/torrejonv/multisig-coordinator/errors"
	"github.com/torrejonv/multisig-coordinator/ulogger"
)

type options struct {
	retryCount          int
	backoffMultiplier   int
	backoffDurationType time.Duration
	message             string
}

// Option configures a Retry call.
type Option func(*options)

// WithRetryCount sets the maximum number of attempts (including the first).
func WithRetryCount(n int) Option {
	return func(o *options) { o.retryCount = n }
}

// WithBackoffMultiplier sets the linear backoff multiplier.
func WithBackoffMultiplier(m int) Option {
	return func(o *options) { o.backoffMultiplier = m }
}

// WithBackoffDurationType sets the unit the backoff is expressed in.
func WithBackoffDurationType(d time.Duration) Option {
	return func(o *options) { o.backoffDurationType = d }
}

// WithMessage sets the message logged before each retry attempt.
func WithMessage(msg string) Option {
	return func(o *options) { o.message = msg }
}

func defaultOptions() *options {
	return &options{
		retryCount:          3,
		backoffMultiplier:   2,
		backoffDurationType: time.Second,
		message:             "retrying",
	}
}

// Retry calls f until it succeeds, the attempt budget is exhausted, the
// error is not retryable, or ctx is done. Only chain timeout / network
// errors are retried; everything else is returned immediately.
func Retry[T any](ctx context.Context, logger ulogger.Logger, f func() (T, error), opts ...Option) (T, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	if o.retryCount < 1 {
		o.retryCount = 1
	}

	var (
		result T
		err    error
	)

	for i := 0; i < o.retryCount; i++ {
		select {
		case <-ctx.Done():
			return result, errors.NewContextCanceledError("retry canceled", ctx.Err())
		default:
		}

		result, err = f()
		if err == nil {
			return result, nil
		}

		if !errors.IsRetryableError(err) {
			return result, err
		}

		if i < o.retryCount-1 {
			logger.Warnf("%s (attempt %d of %d): %v", o.message, i+1, o.retryCount, err)

			if serr := BackoffAndSleep(ctx, i, o.backoffMultiplier, o.backoffDurationType); serr != nil {
				return result, errors.NewContextCanceledError("retry canceled during backoff", serr)
			}
		}
	}

	return result, err
}
