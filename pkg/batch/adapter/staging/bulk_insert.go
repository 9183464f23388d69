package staging

import (
	"context"
	"fmt"
	"sync"

	"github.com/tigerroll/lockxfer/pkg/batch/core/domain/model"
	"github.com/tigerroll/lockxfer/pkg/batch/support/util/exception"
	"github.com/tigerroll/lockxfer/pkg/batch/support/util/logger"
)

// BlockWriter persists one block of rows.
type BlockWriter func(ctx context.Context, rows []model.Row) error

type bufferState int

const (
	bufferOpen bufferState = iota
	bufferFlushed
	bufferDiscarded
)

// BufferedBulkInsert implements BulkInsert on top of a BlockWriter.
type BufferedBulkInsert struct {
	table     string
	blockSize int
	write     BlockWriter

	mu      sync.Mutex
	buf     []model.Row
	state   bufferState
	written int64
	blocks  int
}

var _ BulkInsert = (*BufferedBulkInsert)(nil)

// NewBufferedBulkInsert creates a buffer for table. A blockSize <= 0 buffers every
// row until Flush.
func NewBufferedBulkInsert(table string, blockSize int, write BlockWriter) *BufferedBulkInsert {
	capacity := blockSize
	if capacity <= 0 {
		capacity = 64
	}
	return &BufferedBulkInsert{
		table:     table,
		blockSize: blockSize,
		write:     write,
		buf:       make([]model.Row, 0, capacity),
	}
}

// QueueData implements BulkInsert.
func (b *BufferedBulkInsert) QueueData(ctx context.Context, rows ...model.Row) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != bufferOpen {
		return exception.NewBatchError(moduleName, fmt.Sprintf("queue into %s", b.table), ErrBulkInsertClosed, false, false)
	}
	for _, row := range rows {
		b.buf = append(b.buf, row)
		if b.blockSize > 0 && len(b.buf) >= b.blockSize {
			if err := b.writeBlockLocked(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *BufferedBulkInsert) writeBlockLocked(ctx context.Context) error {
	if len(b.buf) == 0 {
		return nil
	}
	if err := b.write(ctx, b.buf); err != nil {
		return exception.NewBatchError(moduleName, fmt.Sprintf("failed to insert block of %d rows into %s", len(b.buf), b.table), err, false, false)
	}
	b.written += int64(len(b.buf))
	b.blocks++
	logger.Debugf("BulkInsert '%s': wrote block %d (%d rows, %d total).", b.table, b.blocks, len(b.buf), b.written)
	b.buf = make([]model.Row, 0, cap(b.buf))
	return nil
}

// Flush implements BulkInsert.
func (b *BufferedBulkInsert) Flush(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != bufferOpen {
		return exception.NewBatchError(moduleName, fmt.Sprintf("flush of %s", b.table), ErrBulkInsertClosed, false, false)
	}
	b.state = bufferFlushed
	for len(b.buf) > 0 {
		n := len(b.buf)
		if b.blockSize > 0 && n > b.blockSize {
			n = b.blockSize
		}
		rest := b.buf[n:]
		b.buf = b.buf[:n]
		if err := b.writeBlockLocked(ctx); err != nil {
			return err
		}
		b.buf = rest
	}
	return nil
}

// Discard implements BulkInsert. Discarding a flushed buffer has no effect.
func (b *BufferedBulkInsert) Discard() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != bufferOpen {
		return
	}
	b.state = bufferDiscarded
	if len(b.buf) > 0 {
		logger.Debugf("BulkInsert '%s': discarded %d buffered rows.", b.table, len(b.buf))
	}
	b.buf = nil
}

// Written implements BulkInsert.
func (b *BufferedBulkInsert) Written() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.written
}
