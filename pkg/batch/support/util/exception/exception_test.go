package exception_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tigerroll/lockxfer/pkg/batch/support/util/exception"
)

func TestTaxonomyRetryability(t *testing.T) {
	cause := errors.New("connection reset by peer")

	remote := exception.NewRemoteCallError("remote", "select failed", cause)
	assert.True(t, exception.IsRetryable(remote))
	assert.ErrorIs(t, remote, exception.ErrRemoteCall)
	assert.ErrorIs(t, remote, cause)

	timeout := exception.NewRemoteTimeoutError("transfer", "no block within 10ms", nil)
	assert.True(t, exception.IsRetryable(timeout))
	assert.ErrorIs(t, timeout, exception.ErrRemoteTimeout)

	mismatch := exception.NewBusinessCountMismatchError("guard", "42", 5, 4)
	assert.False(t, exception.IsRetryable(mismatch))
	assert.True(t, exception.IsBusinessError(mismatch))
	assert.Contains(t, mismatch.Error(), "message_id 42")
	assert.Contains(t, mismatch.Error(), "header count 5")
	assert.Contains(t, mismatch.Error(), "lines count 4")

	dup := exception.NewDuplicateImportError("guard", "42", 1)
	assert.False(t, exception.IsRetryable(dup))
	assert.ErrorIs(t, dup, exception.ErrDuplicateImport)
}

func TestIsRetryableLooksThroughWrapping(t *testing.T) {
	inner := exception.NewRemoteTimeoutError("transfer", "stalled", nil)
	wrapped := fmt.Errorf("step import: %w", inner)

	assert.True(t, exception.IsRetryable(wrapped))
	assert.True(t, exception.IsBatchError(wrapped))
	assert.True(t, exception.IsRetryable(context.DeadlineExceeded))
	assert.False(t, exception.IsRetryable(errors.New("plain")))
	assert.False(t, exception.IsRetryable(nil))
}

func TestKind(t *testing.T) {
	assert.Equal(t, exception.RemoteTimeoutError, exception.Kind(exception.NewRemoteTimeoutError("m", "x", nil)))
	assert.Equal(t, exception.DuplicateImportError, exception.Kind(exception.NewDuplicateImportError("m", "1", 1)))
	assert.Equal(t, exception.OptimisticLockingFailureException,
		exception.Kind(exception.NewOptimisticLockingFailureException("lock", "count drift", nil)))
	assert.Equal(t, "Unknown", exception.Kind(errors.New("boom")))
}

func TestIsErrorOfTypeByTypeName(t *testing.T) {
	err := exception.NewBatchError("m", "msg", nil, false, false)
	assert.True(t, exception.IsErrorOfType(err, "exception.BatchError"))
	assert.True(t, exception.IsErrorOfType(err, "*exception.BatchError"))
	assert.False(t, exception.IsErrorOfType(err, "net.OpError"))
}

func TestExtractErrorMessage(t *testing.T) {
	err := exception.NewHeaderNotFoundError("guard", "7")
	assert.Equal(t, "BUSINESS-ERROR: no header row found for message_id 7", exception.ExtractErrorMessage(err))
	assert.Equal(t, "", exception.ExtractErrorMessage(nil))
}
