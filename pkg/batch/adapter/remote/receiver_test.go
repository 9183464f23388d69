package remote

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/lockxfer/pkg/batch/core/domain/model"
	"github.com/tigerroll/lockxfer/pkg/batch/core/tx"
	"github.com/tigerroll/lockxfer/pkg/batch/support/util/exception"
)

// sliceCursor yields rows, then optionally blocks until its context is cancelled.
type sliceCursor struct {
	ctx    context.Context
	rows   []model.Row
	stall  bool
	fail   error
	closed atomic.Int32
}

func (c *sliceCursor) Next() (model.Row, error) {
	if len(c.rows) > 0 {
		row := c.rows[0]
		c.rows = c.rows[1:]
		return row, nil
	}
	if c.fail != nil {
		return nil, c.fail
	}
	if c.stall {
		<-c.ctx.Done()
		return nil, c.ctx.Err()
	}
	return nil, io.EOF
}

func (c *sliceCursor) Close() error {
	c.closed.Add(1)
	return nil
}

func rowsN(n int) []model.Row {
	out := make([]model.Row, n)
	for i := range out {
		out[i] = model.Row{"line": i + 1}
	}
	return out
}

func opener(c *sliceCursor) CursorOpener {
	return func(ctx context.Context) (tx.Cursor, error) {
		c.ctx = ctx
		return c, nil
	}
}

func TestCursorReceiver_BlocksThenEOF(t *testing.T) {
	cursor := &sliceCursor{rows: rowsN(5)}
	r, err := StartReceiver(context.Background(), opener(cursor), ReceiveOptions{Block: 2, Timeout: time.Second})
	require.NoError(t, err)

	var sizes []int
	for {
		block, err := r.GetData(context.Background())
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		sizes = append(sizes, len(block))
	}
	assert.Equal(t, []int{2, 2, 1}, sizes)
	assert.Equal(t, 3, r.Fetches())
	assert.True(t, r.Finished())
	assert.Equal(t, int32(1), cursor.closed.Load())

	_, err = r.GetData(context.Background())
	assert.Equal(t, io.EOF, err)
	assert.NoError(t, r.Disconnect())
}

func TestCursorReceiver_ExactMultipleOfBlock(t *testing.T) {
	r, err := StartReceiver(context.Background(), opener(&sliceCursor{rows: rowsN(4)}), ReceiveOptions{Block: 2})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		block, err := r.GetData(context.Background())
		require.NoError(t, err)
		assert.Len(t, block, 2)
	}
	_, err = r.GetData(context.Background())
	assert.Equal(t, io.EOF, err)
}

func TestCursorReceiver_TimeoutThenDisconnect(t *testing.T) {
	cursor := &sliceCursor{rows: rowsN(2), stall: true}
	r, err := StartReceiver(context.Background(), opener(cursor), ReceiveOptions{Block: 2, Timeout: 50 * time.Millisecond})
	require.NoError(t, err)

	block, err := r.GetData(context.Background())
	require.NoError(t, err)
	assert.Len(t, block, 2)

	_, err = r.GetData(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, exception.ErrRemoteTimeout))
	assert.True(t, exception.IsRetryable(err))

	require.NoError(t, r.Disconnect())
	require.NoError(t, r.Disconnect(), "disconnect is idempotent")
	assert.True(t, r.Finished())
	assert.Equal(t, int32(1), cursor.closed.Load())

	_, err = r.GetData(context.Background())
	assert.ErrorIs(t, err, ErrReceiverClosed)
}

func TestCursorReceiver_CursorFailure(t *testing.T) {
	boom := errors.New("connection reset")
	r, err := StartReceiver(context.Background(), opener(&sliceCursor{rows: rowsN(1), fail: boom}), ReceiveOptions{Block: 5, Timeout: time.Second})
	require.NoError(t, err)

	_, err = r.GetData(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, exception.ErrRemoteCall)
	assert.ErrorIs(t, err, boom)
	require.NoError(t, r.Disconnect())
}

func TestStartReceiver_Errors(t *testing.T) {
	_, err := StartReceiver(context.Background(), opener(&sliceCursor{}), ReceiveOptions{Block: 0})
	assert.ErrorIs(t, err, exception.ErrRemoteCall)

	openErr := errors.New("no such table")
	_, err = StartReceiver(context.Background(), func(context.Context) (tx.Cursor, error) { return nil, openErr }, ReceiveOptions{Block: 1})
	assert.ErrorIs(t, err, openErr)
	assert.ErrorIs(t, err, exception.ErrRemoteCall)
}
