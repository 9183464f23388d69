// Package repository defines the persistence ports of lockxfer.
package repository

import (
	"context"
	"errors"

	model "github.com/tigerroll/lockxfer/pkg/batch/core/domain/model"
)

// ErrLockBatchNotFound is returned when no lock batch was published for a work unit.
var ErrLockBatchNotFound = errors.New("lock batch not found")

// WorkUnitStateStore persists the state a work unit shares between its steps.
// The lock step publishes the claimed message ids through it and the import step
// reads them back.
type WorkUnitStateStore interface {
	// SaveLockBatch stores the batch under the work unit id, replacing any earlier batch.
	SaveLockBatch(ctx context.Context, batch model.LockBatch) error

	// FindLockBatch returns the batch published for workUnitID, or ErrLockBatchNotFound.
	FindLockBatch(ctx context.Context, workUnitID int64) (model.LockBatch, error)

	// DeleteLockBatch withdraws the batch published for workUnitID. Deleting a batch
	// that was never published is not an error.
	DeleteLockBatch(ctx context.Context, workUnitID int64) error

	// Close releases resources (such as database connections) used by the store.
	Close() error
}
