// Package inmemory provides an in-memory implementation of the WorkUnitStateStore interface.
// State lives in a map for the life of the process, suitable for single-process runs
// and tests where persistence is not required.
package inmemory

import (
	"context"
	"sync"

	"github.com/tigerroll/lockxfer/pkg/batch/core/domain/model"
	"github.com/tigerroll/lockxfer/pkg/batch/core/domain/repository"
)

// InMemoryStateStore holds one ExecutionContext per work unit.
type InMemoryStateStore struct {
	contexts map[int64]model.ExecutionContext
	names    map[int64]string
	mu       sync.RWMutex
}

var _ repository.WorkUnitStateStore = (*InMemoryStateStore)(nil)

// NewInMemoryStateStore creates and initializes a new instance of InMemoryStateStore.
func NewInMemoryStateStore() *InMemoryStateStore {
	return &InMemoryStateStore{
		contexts: make(map[int64]model.ExecutionContext),
		names:    make(map[int64]string),
	}
}

// SaveLockBatch stores the message ids under KeySourceMessageIDs. The slice is copied
// so later changes by the caller are not visible to readers.
func (s *InMemoryStateStore) SaveLockBatch(ctx context.Context, batch model.LockBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ec, ok := s.contexts[batch.WorkUnit.ID]
	if !ok {
		ec = model.NewExecutionContext()
	} else {
		ec = ec.Copy()
	}
	ec.Put(model.KeySourceMessageIDs, append([]string{}, batch.MessageIDs...))
	s.contexts[batch.WorkUnit.ID] = ec
	s.names[batch.WorkUnit.ID] = batch.WorkUnit.Name
	return nil
}

// FindLockBatch returns a copy of the stored batch.
func (s *InMemoryStateStore) FindLockBatch(ctx context.Context, workUnitID int64) (model.LockBatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ec, ok := s.contexts[workUnitID]
	if !ok {
		return model.LockBatch{}, repository.ErrLockBatchNotFound
	}
	ids, ok := ec.GetStringSlice(model.KeySourceMessageIDs)
	if !ok {
		return model.LockBatch{}, repository.ErrLockBatchNotFound
	}
	return model.LockBatch{
		WorkUnit:   model.WorkUnit{ID: workUnitID, Name: s.names[workUnitID]},
		MessageIDs: ids,
	}, nil
}

// DeleteLockBatch removes KeySourceMessageIDs from the work unit's context.
func (s *InMemoryStateStore) DeleteLockBatch(ctx context.Context, workUnitID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ec, ok := s.contexts[workUnitID]
	if !ok {
		return nil
	}
	ec = ec.Copy()
	ec.Remove(model.KeySourceMessageIDs)
	s.contexts[workUnitID] = ec
	return nil
}

// Close releases resources used by the store.
// As an in-memory store, it holds no external resources, so this method always returns nil.
func (s *InMemoryStateStore) Close() error {
	return nil
}
