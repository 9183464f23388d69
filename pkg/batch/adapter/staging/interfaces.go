// Package staging provides access to the local staging database: row reads and
// inserts plus a block-sized bulk-insert buffer, all on one held transaction.
package staging

import (
	"context"
	"errors"

	"github.com/tigerroll/lockxfer/pkg/batch/core/domain/model"
)

const moduleName = "staging"

var (
	// ErrBulkInsertClosed is returned when a buffer is used after Flush or Discard.
	ErrBulkInsertClosed = errors.New("bulk insert buffer already flushed or discarded")
	// ErrAccessorClosed is returned when an accessor is used after Commit, Rollback or Close.
	ErrAccessorClosed = errors.New("staging accessor is closed")
)

// Accessor reads and writes staging tables within one transaction.
type Accessor interface {
	// SelectRow returns the first matching row, or nil when nothing matches.
	SelectRow(ctx context.Context, table string, spec model.SelectSpec) (model.Row, error)
	InsertRow(ctx context.Context, table string, row model.Row) error
	// NewBulkInsert returns a buffer writing to table in blocks of blockSize rows.
	NewBulkInsert(table string, blockSize int) BulkInsert
	Commit(ctx context.Context) error
	// Rollback is a no-op once the accessor has been committed or rolled back.
	Rollback(ctx context.Context) error
	// Close rolls back an unfinished transaction.
	Close() error
}

// BulkInsert accumulates rows and writes them in blocks. Flush and Discard are
// mutually exclusive terminal operations.
type BulkInsert interface {
	// QueueData buffers rows; every full block is written immediately within the
	// accessor's transaction.
	QueueData(ctx context.Context, rows ...model.Row) error
	// Flush writes the remaining buffered rows.
	Flush(ctx context.Context) error
	// Discard drops the buffered rows without writing them.
	Discard()
	// Written returns the number of rows written so far.
	Written() int64
}

// Opener opens one Accessor per work unit.
type Opener interface {
	Open(ctx context.Context) (Accessor, error)
}
