package retry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/torrejonv/multisig-coordinator/errors"
	"github.com/torrejonv/multisig-coordinator/ulogger"
)

func fastOpts() []Option {
	return []Option{
		WithRetryCount(3),
		WithBackoffMultiplier(0),
		WithBackoffDurationType(time.Millisecond),
		WithMessage("trying again"),
	}
}

func TestRetrySucceedsFirstAttempt(t *testing.T) {
	logger := ulogger.NewVerboseTestLogger(t)

	calls := 0
	result, err := Retry(context.Background(), logger, func() (string, error) {
		calls++
		return "success", nil
	}, fastOpts()...)

	require.NoError(t, err)
	assert.Equal(t, "success", result)
	assert.Equal(t, 1, calls)
}

func TestRetryRecoversFromTransientError(t *testing.T) {
	logger := ulogger.NewVerboseTestLogger(t)

	calls := 0
	result, err := Retry(context.Background(), logger, func() (string, error) {
		calls++
		if calls == 1 {
			return "", errors.NewChainNetworkError("connection reset")
		}
		return "success", nil
	}, fastOpts()...)

	require.NoError(t, err)
	assert.Equal(t, "success", result)
	assert.Equal(t, 2, calls)
}

func TestRetryExhaustsBudget(t *testing.T) {
	logger := ulogger.NewVerboseTestLogger(t)

	calls := 0
	_, err := Retry(context.Background(), logger, func() (string, error) {
		calls++
		return "", errors.NewChainTimeoutError("deadline exceeded")
	}, fastOpts()...)

	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrChainTimeout))
	assert.Equal(t, 3, calls)
}

func TestRetryDoesNotRetryNonRetryableErrors(t *testing.T) {
	logger := ulogger.NewVerboseTestLogger(t)

	calls := 0
	_, err := Retry(context.Background(), logger, func() (string, error) {
		calls++
		return "", errors.NewInsufficientAdaError("not enough ada")
	}, fastOpts()...)

	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInsufficientAda))
	assert.Equal(t, 1, calls)
}

func TestRetryHonorsContextCancellation(t *testing.T) {
	logger := ulogger.NewVerboseTestLogger(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := Retry(ctx, logger, func() (string, error) {
		calls++
		return "", errors.NewChainNetworkError("unreachable")
	}, fastOpts()...)

	require.Error(t, err)
	assert.Equal(t, 0, calls)
}
