package retry_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tigerroll/lockxfer/pkg/batch/engine/step/retry"
	"github.com/tigerroll/lockxfer/pkg/batch/support/util/exception"
)

func TestPolicy_ShouldRetry(t *testing.T) {
	p := retry.NewPolicy(3, 0, nil)

	assert.True(t, p.ShouldRetry(exception.NewRemoteCallError("remote", "reset", nil)))
	assert.True(t, p.ShouldRetry(exception.NewRemoteTimeoutError("remote", "slow", nil)))
	assert.False(t, p.ShouldRetry(exception.NewDuplicateImportError("guard", "42", 1)))
	assert.False(t, p.ShouldRetry(errors.New("plain")))
	assert.False(t, p.ShouldRetry(nil))
}

func TestPolicy_ConfiguredTypeNames(t *testing.T) {
	p := retry.NewPolicy(2, 0, []string{exception.OptimisticLockingFailureException})
	assert.True(t, p.ShouldRetry(exception.NewOptimisticLockingFailureException("lock", "raced", nil)))
}

func TestPolicy_NonRetryableWrapperOverridesConfiguredNames(t *testing.T) {
	p := retry.NewPolicy(3, 0, []string{exception.RemoteCallError})

	inner := exception.NewRemoteCallError("remote", "commit failed", nil)
	assert.True(t, p.ShouldRetry(inner))

	final := exception.NewBatchError("transfer", "remote commit failed after the staging commit", inner, false, false)
	assert.False(t, p.ShouldRetry(final))
	assert.False(t, p.ShouldRetry(fmt.Errorf("import 42: %w", final)))
}

func TestPolicy_MinimumOneAttempt(t *testing.T) {
	assert.Equal(t, 1, retry.NewPolicy(0, time.Second, nil).MaxAttempts())
}

func TestDo(t *testing.T) {
	retryable := exception.NewRemoteCallError("remote", "reset", nil)

	t.Run("succeeds after retries", func(t *testing.T) {
		calls := 0
		err := retry.Do(context.Background(), retry.NewPolicy(3, time.Millisecond, nil), "op", func(context.Context) error {
			calls++
			if calls < 3 {
				return retryable
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		calls := 0
		err := retry.Do(context.Background(), retry.NewPolicy(2, time.Millisecond, nil), "op", func(context.Context) error {
			calls++
			return retryable
		})
		assert.ErrorIs(t, err, exception.ErrRemoteCall)
		assert.Equal(t, 2, calls)
	})

	t.Run("does not retry business errors", func(t *testing.T) {
		calls := 0
		err := retry.Do(context.Background(), retry.NewPolicy(5, time.Millisecond, nil), "op", func(context.Context) error {
			calls++
			return exception.NewBusinessCountMismatchError("guard", "42", 5, 4)
		})
		assert.ErrorIs(t, err, exception.ErrBusinessCountMismatch)
		assert.Equal(t, 1, calls)
	})

	t.Run("stops when the context ends", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := retry.Do(ctx, retry.NewPolicy(5, time.Hour, nil), "op", func(context.Context) error {
			return retryable
		})
		assert.ErrorIs(t, err, context.Canceled)
	})
}
