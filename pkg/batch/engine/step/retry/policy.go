// Package retry decides whether a failed transfer is attempted again.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/tigerroll/lockxfer/pkg/batch/support/util/exception"
	"github.com/tigerroll/lockxfer/pkg/batch/support/util/logger"
)

// Policy defines retry logic.
type Policy interface {
	// ShouldRetry reports whether err may be retried.
	ShouldRetry(err error) bool
	// Backoff returns the wait before the given retry (starting from 1).
	Backoff(attempt int) time.Duration
	// MaxAttempts returns the total number of attempts, the first one included.
	MaxAttempts() int
}

// NewPolicy creates a Policy allowing maxAttempts attempts with a fixed interval
// between them. Errors flagged retryable are retried, as are errors matching one of
// the registered type names in retryableErrors. A maxAttempts below 1 means one attempt.
func NewPolicy(maxAttempts int, interval time.Duration, retryableErrors []string) Policy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &defaultPolicy{
		maxAttempts:     maxAttempts,
		interval:        interval,
		retryableErrors: retryableErrors,
	}
}

type defaultPolicy struct {
	maxAttempts     int
	interval        time.Duration
	retryableErrors []string
}

func (p *defaultPolicy) MaxAttempts() int {
	return p.maxAttempts
}

// ShouldRetry checks the BatchError flag first, then the configured type names.
// Business errors are never retried, and neither is a non-retryable BatchError that
// wraps another BatchError: the outer error overrides the inner classification.
func (p *defaultPolicy) ShouldRetry(err error) bool {
	if err == nil || exception.IsBusinessError(err) {
		return false
	}
	if exception.IsRetryable(err) {
		return true
	}
	var be *exception.BatchError
	if errors.As(err, &be) {
		var inner *exception.BatchError
		if errors.As(be.OriginalErr, &inner) {
			return false
		}
	}
	for _, typeName := range p.retryableErrors {
		if exception.IsErrorOfType(err, typeName) {
			return true
		}
	}
	return false
}

func (p *defaultPolicy) Backoff(attempt int) time.Duration {
	return p.interval
}

// Do runs op until it succeeds, the policy refuses a retry, or the attempts are used
// up. It returns the error of the last attempt, or ctx.Err() when ctx ends while
// waiting.
func Do(ctx context.Context, p Policy, what string, op func(ctx context.Context) error) error {
	var err error
	for attempt := 1; ; attempt++ {
		if err = op(ctx); err == nil {
			return nil
		}
		if attempt >= p.MaxAttempts() || !p.ShouldRetry(err) {
			return err
		}
		wait := p.Backoff(attempt)
		logger.Warnf("Retry: %s failed (attempt %d of %d), retrying in %s: %v", what, attempt, p.MaxAttempts(), wait, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

var _ Policy = (*defaultPolicy)(nil)
