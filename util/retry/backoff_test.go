package retry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureSleeps(t *testing.T) *[]time.Duration {
	t.Helper()

	original := sleepFunc

	var slept []time.Duration

	sleepFunc = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	t.Cleanup(func() { sleepFunc = original })

	return &slept
}

func TestBackoffAndSleepGrowsLinearly(t *testing.T) {
	slept := captureSleeps(t)

	for i := 0; i < 3; i++ {
		require.NoError(t, BackoffAndSleep(context.Background(), i, 2, time.Second))
	}

	assert.Equal(t, []time.Duration{time.Second, 3 * time.Second, 5 * time.Second}, *slept)
}

func TestBackoffAndSleepClampedToMax(t *testing.T) {
	slept := captureSleeps(t)

	require.NoError(t, BackoffAndSleep(context.Background(), 100, 10, time.Second))

	require.Len(t, *slept, 1)
	assert.Equal(t, maxBackoff, (*slept)[0])
}

func TestBackoffAndSleepHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := BackoffAndSleep(ctx, 0, 1, time.Minute)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
