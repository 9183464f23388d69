package test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/tigerroll/lockxfer/pkg/batch/adapter/remote"
	"github.com/tigerroll/lockxfer/pkg/batch/core/domain/model"
	"github.com/tigerroll/lockxfer/pkg/batch/core/tx"
	"github.com/tigerroll/lockxfer/pkg/batch/support/util/exception"
)

// Fault keys understood by FakeRemote.Fail.
const (
	FaultOpen     = "open"
	FaultCommit   = "commit"
	FaultRollback = "rollback"
	FaultReceive  = "receive"
)

// FaultSelect and FaultUpdate build per-table fault keys.
func FaultSelect(table string) string { return "select:" + table }
func FaultUpdate(table string) string { return "update:" + table }

// FakeRemote is an in-memory remote system. Each opened gateway works on a private
// copy of the tables that replaces the shared state on Commit.
type FakeRemote struct {
	mu        sync.Mutex
	tables    Tables
	faults    map[string]error
	overrides map[string]int64

	// StallAfterRows makes receivers block after that many rows until disconnected,
	// so GetData runs into its timeout. Zero disables stalling. With a FaultReceive
	// error injected the cursor fails at that point instead, or after the last row
	// when StallAfterRows is zero.
	StallAfterRows int

	opened      int
	commits     int
	rollbacks   int
	disconnects int
	fetches     int
	updates     []string
}

var _ remote.Connector = (*FakeRemote)(nil)

// NewFakeRemote creates a fake holding a copy of tables.
func NewFakeRemote(tables Tables) *FakeRemote {
	return &FakeRemote{
		tables:    tables.Clone(),
		faults:    map[string]error{},
		overrides: map[string]int64{},
	}
}

// Fail injects err for the given fault key.
func (f *FakeRemote) Fail(key string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.faults[key] = err
}

// OverrideAffected makes the n-th (1-based) update on table report affected rows
// instead of the real count, simulating a concurrent writer.
func (f *FakeRemote) OverrideAffected(table string, n int, affected int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.overrides[fmt.Sprintf("%s#%d", table, n)] = affected
}

func (f *FakeRemote) fault(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.faults[key]
}

// Rows returns a copy of the committed rows of table.
func (f *FakeRemote) Rows(table string) []model.Row {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Tables{table: f.tables[table]}.Clone()[table]
}

// Counters returns opened, committed and rolled back gateway counts.
func (f *FakeRemote) Counters() (opened, commits, rollbacks int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opened, f.commits, f.rollbacks
}

// Disconnects returns the number of Disconnect calls over all receivers.
func (f *FakeRemote) Disconnects() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disconnects
}

// Fetches returns the number of blocks handed out over all receivers.
func (f *FakeRemote) Fetches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

// Open implements remote.Connector.
func (f *FakeRemote) Open(ctx context.Context) (remote.Gateway, error) {
	if err := f.fault(FaultOpen); err != nil {
		return nil, exception.NewRemoteCallError("remote", "failed to open remote connection", err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened++
	return &fakeGateway{remote: f, work: f.tables.Clone()}, nil
}

type fakeGateway struct {
	remote *FakeRemote
	work   Tables
	// replay re-applies this gateway's updates to the shared tables on commit.
	replay []func(Tables)
	mu     sync.Mutex
	ended  bool
	recv   *countingReceiver
}

func (g *fakeGateway) check(key string) error {
	g.mu.Lock()
	ended := g.ended
	g.mu.Unlock()
	if ended {
		return exception.NewRemoteCallError("remote", "gateway used after end of transaction", remote.ErrGatewayClosed)
	}
	if err := g.remote.fault(key); err != nil {
		return exception.NewRemoteCallError("remote", key+" failed", err)
	}
	return nil
}

func (g *fakeGateway) Select(ctx context.Context, table string, spec model.SelectSpec) ([]model.Row, error) {
	if err := g.check(FaultSelect(table)); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return ApplySelect(g.work[table], spec), nil
}

func (g *fakeGateway) SelectRow(ctx context.Context, table string, spec model.SelectSpec) (model.Row, error) {
	rows, err := g.Select(ctx, table, spec)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

func (g *fakeGateway) Update(ctx context.Context, table string, set model.Row, where model.Where) (int64, error) {
	if err := g.check(FaultUpdate(table)); err != nil {
		return 0, err
	}
	g.mu.Lock()
	n := applyUpdate(g.work[table], set, where)
	setCopy, whereCopy := set.Clone(), make(model.Where, len(where))
	for k, v := range where {
		whereCopy[k] = v
	}
	g.replay = append(g.replay, func(t Tables) { applyUpdate(t[table], setCopy, whereCopy) })
	g.mu.Unlock()

	f := g.remote
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, table)
	count := 0
	for _, t := range f.updates {
		if t == table {
			count++
		}
	}
	if o, ok := f.overrides[fmt.Sprintf("%s#%d", table, count)]; ok {
		return o, nil
	}
	return n, nil
}

func (g *fakeGateway) NewReceiver(ctx context.Context, table string, opts remote.ReceiveOptions) (remote.Receiver, error) {
	if err := g.check(FaultSelect(table)); err != nil {
		return nil, err
	}
	g.mu.Lock()
	rows := ApplySelect(g.work[table], opts.Select)
	g.mu.Unlock()

	f := g.remote
	receiveErr := f.fault(FaultReceive)
	stall := f.StallAfterRows
	inner, err := remote.StartReceiver(ctx, func(cctx context.Context) (tx.Cursor, error) {
		return &sliceCursor{ctx: cctx, rows: rows, stallAfter: stall, failWith: receiveErr}, nil
	}, opts)
	if err != nil {
		return nil, err
	}
	r := &countingReceiver{inner: inner, remote: f}
	g.mu.Lock()
	g.recv = r
	g.mu.Unlock()
	return r, nil
}

func (g *fakeGateway) end() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.ended {
		return false
	}
	g.ended = true
	return true
}

func (g *fakeGateway) Commit(ctx context.Context) error {
	if err := g.check(FaultCommit); err != nil {
		g.end()
		return err
	}
	if !g.end() {
		return exception.NewRemoteCallError("remote", "commit after end of transaction", remote.ErrGatewayClosed)
	}
	f := g.remote
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, apply := range g.replay {
		apply(f.tables)
	}
	f.commits++
	return nil
}

func (g *fakeGateway) Rollback(ctx context.Context) error {
	if !g.end() {
		return nil
	}
	g.mu.Lock()
	recv := g.recv
	g.mu.Unlock()
	if recv != nil {
		recv.inner.Disconnect()
	}
	f := g.remote
	f.mu.Lock()
	f.rollbacks++
	err := f.faults[FaultRollback]
	f.mu.Unlock()
	if err != nil {
		return exception.NewRemoteCallError("remote", "remote rollback failed", err)
	}
	return nil
}

func (g *fakeGateway) Close() error {
	return g.Rollback(context.Background())
}

// countingReceiver records every Disconnect call, including repeated ones.
type countingReceiver struct {
	inner  *remote.CursorReceiver
	remote *FakeRemote
}

func (r *countingReceiver) GetData(ctx context.Context) ([]model.Row, error) {
	rows, err := r.inner.GetData(ctx)
	if err == nil {
		r.remote.mu.Lock()
		r.remote.fetches++
		r.remote.mu.Unlock()
	}
	return rows, err
}

func (r *countingReceiver) Disconnect() error {
	r.remote.mu.Lock()
	r.remote.disconnects++
	r.remote.mu.Unlock()
	return r.inner.Disconnect()
}

// sliceCursor streams rows, optionally stalling or failing after stallAfter rows.
type sliceCursor struct {
	ctx        context.Context
	rows       []model.Row
	pos        int
	stallAfter int
	failWith   error
}

func (c *sliceCursor) Next() (model.Row, error) {
	if c.stallAfter > 0 && c.pos >= c.stallAfter {
		if c.failWith != nil {
			return nil, c.failWith
		}
		<-c.ctx.Done()
		return nil, c.ctx.Err()
	}
	if c.pos >= len(c.rows) {
		if c.failWith != nil && c.stallAfter == 0 {
			return nil, c.failWith
		}
		return nil, io.EOF
	}
	r := c.rows[c.pos]
	c.pos++
	return r, nil
}

func (c *sliceCursor) Close() error { return nil }

// ErrInjected is a generic failure for fault injection.
var ErrInjected = errors.New("injected failure")
