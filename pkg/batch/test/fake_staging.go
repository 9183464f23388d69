package test

import (
	"context"
	"sync"

	"github.com/tigerroll/lockxfer/pkg/batch/adapter/staging"
	"github.com/tigerroll/lockxfer/pkg/batch/core/domain/model"
	"github.com/tigerroll/lockxfer/pkg/batch/support/util/exception"
)

// FaultInsert builds the per-table insert fault key of FakeStaging.
func FaultInsert(table string) string { return "insert:" + table }

// FakeStaging is an in-memory staging database with the same private-copy
// transaction model as FakeRemote.
type FakeStaging struct {
	mu        sync.Mutex
	tables    Tables
	faults    map[string]error
	opened    int
	commits   int
	rollbacks int
	blocks    int
}

var _ staging.Opener = (*FakeStaging)(nil)

// NewFakeStaging creates a fake holding a copy of tables.
func NewFakeStaging(tables Tables) *FakeStaging {
	if tables == nil {
		tables = Tables{}
	}
	return &FakeStaging{tables: tables.Clone(), faults: map[string]error{}}
}

// Fail injects err for the given fault key (FaultOpen, FaultCommit, FaultRollback
// or FaultInsert(table)).
func (f *FakeStaging) Fail(key string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.faults[key] = err
}

func (f *FakeStaging) fault(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.faults[key]
}

// Rows returns a copy of the committed rows of table.
func (f *FakeStaging) Rows(table string) []model.Row {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Tables{table: f.tables[table]}.Clone()[table]
}

// Counters returns opened, committed and rolled back accessor counts.
func (f *FakeStaging) Counters() (opened, commits, rollbacks int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opened, f.commits, f.rollbacks
}

// Blocks returns the number of bulk blocks written over all accessors.
func (f *FakeStaging) Blocks() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.blocks
}

// Open implements staging.Opener.
func (f *FakeStaging) Open(ctx context.Context) (staging.Accessor, error) {
	if err := f.fault(FaultOpen); err != nil {
		return nil, exception.NewBatchError("staging", "failed to open staging connection", err, false, false)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened++
	return &fakeAccessor{staging: f, work: f.tables.Clone(), pending: Tables{}}, nil
}

type fakeAccessor struct {
	staging *FakeStaging
	mu      sync.Mutex
	work    Tables
	pending Tables
	ended   bool
}

func (a *fakeAccessor) check(key string) error {
	a.mu.Lock()
	ended := a.ended
	a.mu.Unlock()
	if ended {
		return exception.NewBatchError("staging", "accessor used after end of transaction", staging.ErrAccessorClosed, false, false)
	}
	if err := a.staging.fault(key); err != nil {
		return exception.NewBatchError("staging", key+" failed", err, false, false)
	}
	return nil
}

func (a *fakeAccessor) SelectRow(ctx context.Context, table string, spec model.SelectSpec) (model.Row, error) {
	if err := a.check("select:" + table); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	rows := ApplySelect(a.work[table], spec)
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (a *fakeAccessor) insert(table string, rows []model.Row) error {
	if err := a.check(FaultInsert(table)); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, r := range rows {
		a.work[table] = append(a.work[table], r.Clone())
		a.pending[table] = append(a.pending[table], r.Clone())
	}
	return nil
}

func (a *fakeAccessor) InsertRow(ctx context.Context, table string, row model.Row) error {
	return a.insert(table, []model.Row{row})
}

func (a *fakeAccessor) NewBulkInsert(table string, blockSize int) staging.BulkInsert {
	return staging.NewBufferedBulkInsert(table, blockSize, func(ctx context.Context, rows []model.Row) error {
		if err := a.insert(table, rows); err != nil {
			return err
		}
		a.staging.mu.Lock()
		a.staging.blocks++
		a.staging.mu.Unlock()
		return nil
	})
}

func (a *fakeAccessor) end() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ended {
		return false
	}
	a.ended = true
	return true
}

func (a *fakeAccessor) Commit(ctx context.Context) error {
	if err := a.check(FaultCommit); err != nil {
		a.end()
		return err
	}
	if !a.end() {
		return exception.NewBatchError("staging", "commit after end of transaction", staging.ErrAccessorClosed, false, false)
	}
	f := a.staging
	f.mu.Lock()
	defer f.mu.Unlock()
	for table, rows := range a.pending {
		f.tables[table] = append(f.tables[table], rows...)
	}
	f.commits++
	return nil
}

func (a *fakeAccessor) Rollback(ctx context.Context) error {
	if !a.end() {
		return nil
	}
	f := a.staging
	f.mu.Lock()
	f.rollbacks++
	err := f.faults[FaultRollback]
	f.mu.Unlock()
	if err != nil {
		return exception.NewBatchError("staging", "staging rollback failed", err, false, false)
	}
	return nil
}

func (a *fakeAccessor) Close() error {
	return a.Rollback(context.Background())
}
