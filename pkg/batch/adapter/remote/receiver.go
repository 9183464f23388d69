package remote

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/tigerroll/lockxfer/pkg/batch/core/domain/model"
	"github.com/tigerroll/lockxfer/pkg/batch/core/tx"
	"github.com/tigerroll/lockxfer/pkg/batch/support/util/exception"
	"github.com/tigerroll/lockxfer/pkg/batch/support/util/logger"
)

// CursorOpener opens the cursor a receiver streams from. The context passed in is
// cancelled by Disconnect.
type CursorOpener func(ctx context.Context) (tx.Cursor, error)

type blockResult struct {
	rows []model.Row
	err  error
}

// CursorReceiver implements Receiver. A producer goroutine reads the cursor and
// hands over full blocks on a channel with one block of read-ahead.
type CursorReceiver struct {
	blocks  chan blockResult
	done    chan struct{}
	cancel  context.CancelFunc
	timeout time.Duration

	mu           sync.Mutex
	disconnected bool
	exhausted    bool
	fetches      int
}

var _ Receiver = (*CursorReceiver)(nil)

// StartReceiver opens the cursor and starts streaming it in blocks of opts.Block rows.
func StartReceiver(ctx context.Context, open CursorOpener, opts ReceiveOptions) (*CursorReceiver, error) {
	if opts.Block <= 0 {
		return nil, exception.NewRemoteCallError(moduleName, fmt.Sprintf("invalid block size %d", opts.Block), nil)
	}
	rctx, cancel := context.WithCancel(ctx)
	cursor, err := open(rctx)
	if err != nil {
		cancel()
		return nil, exception.NewRemoteCallError(moduleName, "failed to open receive cursor", err)
	}

	r := &CursorReceiver{
		blocks:  make(chan blockResult, 1),
		done:    make(chan struct{}),
		cancel:  cancel,
		timeout: opts.Timeout,
	}
	go r.produce(rctx, cursor, opts.Block)
	return r, nil
}

func (r *CursorReceiver) produce(ctx context.Context, cursor tx.Cursor, blockSize int) {
	defer close(r.done)
	defer close(r.blocks)
	defer func() {
		if err := cursor.Close(); err != nil {
			logger.Debugf("receiver: closing cursor: %v", err)
		}
	}()

	send := func(res blockResult) bool {
		select {
		case r.blocks <- res:
			return true
		case <-ctx.Done():
			return false
		}
	}

	block := make([]model.Row, 0, blockSize)
	for {
		row, err := cursor.Next()
		if err == io.EOF {
			if len(block) > 0 {
				send(blockResult{rows: block})
			}
			return
		}
		if err != nil {
			if ctx.Err() == nil {
				send(blockResult{err: err})
			}
			return
		}
		block = append(block, row)
		if len(block) == blockSize {
			if !send(blockResult{rows: block}) {
				return
			}
			block = make([]model.Row, 0, blockSize)
		}
	}
}

// GetData implements Receiver.
func (r *CursorReceiver) GetData(ctx context.Context) ([]model.Row, error) {
	r.mu.Lock()
	if r.disconnected {
		r.mu.Unlock()
		return nil, ErrReceiverClosed
	}
	if r.exhausted {
		r.mu.Unlock()
		return nil, io.EOF
	}
	r.mu.Unlock()

	var timeout <-chan time.Time
	if r.timeout > 0 {
		timer := time.NewTimer(r.timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case res, ok := <-r.blocks:
		if !ok {
			<-r.done
			r.mu.Lock()
			r.exhausted = true
			r.mu.Unlock()
			return nil, io.EOF
		}
		if res.err != nil {
			return nil, exception.NewRemoteCallError(moduleName, "failed to fetch block", res.err)
		}
		r.mu.Lock()
		r.fetches++
		r.mu.Unlock()
		return res.rows, nil
	case <-timeout:
		return nil, exception.NewRemoteTimeoutError(moduleName, fmt.Sprintf("no block received within %s", r.timeout), nil)
	case <-ctx.Done():
		return nil, exception.NewRemoteCallError(moduleName, "receive interrupted", ctx.Err())
	}
}

// Disconnect implements Receiver. It waits until the producer has released the cursor.
func (r *CursorReceiver) Disconnect() error {
	r.mu.Lock()
	if r.disconnected {
		r.mu.Unlock()
		return nil
	}
	r.disconnected = true
	r.mu.Unlock()

	r.cancel()
	<-r.done
	return nil
}

// Fetches returns the number of blocks handed out so far.
func (r *CursorReceiver) Fetches() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fetches
}

// Finished reports whether the producer has released the cursor.
func (r *CursorReceiver) Finished() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}
