package staging

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/lockxfer/pkg/batch/core/domain/model"
)

type recordingWriter struct {
	blocks [][]model.Row
	fail   error
}

func (w *recordingWriter) write(_ context.Context, rows []model.Row) error {
	if w.fail != nil {
		return w.fail
	}
	w.blocks = append(w.blocks, append([]model.Row(nil), rows...))
	return nil
}

func (w *recordingWriter) sizes() []int {
	out := make([]int, len(w.blocks))
	for i, b := range w.blocks {
		out[i] = len(b)
	}
	return out
}

func rows(n int) []model.Row {
	out := make([]model.Row, n)
	for i := range out {
		out[i] = model.Row{"line": i}
	}
	return out
}

func TestBufferedBulkInsert_WritesFullBlocksThenRemainder(t *testing.T) {
	w := &recordingWriter{}
	b := NewBufferedBulkInsert("imp", 2, w.write)
	ctx := context.Background()

	require.NoError(t, b.QueueData(ctx, rows(3)...))
	assert.Equal(t, []int{2}, w.sizes(), "a full block is written as soon as it is complete")
	require.NoError(t, b.QueueData(ctx, rows(2)...))
	assert.Equal(t, []int{2, 2}, w.sizes())

	require.NoError(t, b.Flush(ctx))
	assert.Equal(t, []int{2, 2, 1}, w.sizes())
	assert.Equal(t, int64(5), b.Written())
}

func TestBufferedBulkInsert_FlushAndDiscardAreTerminal(t *testing.T) {
	ctx := context.Background()

	flushed := NewBufferedBulkInsert("imp", 10, (&recordingWriter{}).write)
	require.NoError(t, flushed.Flush(ctx))
	assert.ErrorIs(t, flushed.Flush(ctx), ErrBulkInsertClosed)
	assert.ErrorIs(t, flushed.QueueData(ctx, model.Row{}), ErrBulkInsertClosed)
	flushed.Discard()

	w := &recordingWriter{}
	discarded := NewBufferedBulkInsert("imp", 10, w.write)
	require.NoError(t, discarded.QueueData(ctx, rows(3)...))
	discarded.Discard()
	assert.ErrorIs(t, discarded.Flush(ctx), ErrBulkInsertClosed)
	assert.Empty(t, w.blocks, "discarded rows are never written")
	assert.Equal(t, int64(0), discarded.Written())
}

func TestBufferedBulkInsert_UnboundedBlockSize(t *testing.T) {
	w := &recordingWriter{}
	b := NewBufferedBulkInsert("imp", 0, w.write)
	ctx := context.Background()

	require.NoError(t, b.QueueData(ctx, rows(100)...))
	assert.Empty(t, w.blocks)
	require.NoError(t, b.Flush(ctx))
	assert.Equal(t, []int{100}, w.sizes())
}

func TestBufferedBulkInsert_WriteFailure(t *testing.T) {
	boom := errors.New("disk full")
	b := NewBufferedBulkInsert("imp", 2, (&recordingWriter{fail: boom}).write)

	err := b.QueueData(context.Background(), rows(2)...)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "imp")
}
