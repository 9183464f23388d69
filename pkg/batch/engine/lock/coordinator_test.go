package lock_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gormadapter "github.com/tigerroll/lockxfer/pkg/batch/adapter/database/gorm"
	"github.com/tigerroll/lockxfer/pkg/batch/adapter/remote"
	"github.com/tigerroll/lockxfer/pkg/batch/core/config"
	"github.com/tigerroll/lockxfer/pkg/batch/core/domain/model"
	"github.com/tigerroll/lockxfer/pkg/batch/core/domain/repository"
	"github.com/tigerroll/lockxfer/pkg/batch/core/metrics"
	"github.com/tigerroll/lockxfer/pkg/batch/engine/lock"
	"github.com/tigerroll/lockxfer/pkg/batch/infrastructure/repository/inmemory"
	"github.com/tigerroll/lockxfer/pkg/batch/support/util/exception"
	testutil "github.com/tigerroll/lockxfer/pkg/batch/test"
)

const hdr = "hdr"

func transferConfig() *config.TransferConfig {
	cfg := config.NewConfig().Lockxfer.Transfer
	cfg.HeaderTable = hdr
	return &cfg
}

func header(id, status, msgType string, recordCount interface{}, wfiid interface{}) model.Row {
	return model.Row{
		model.ColMessageID:    id,
		model.ColIntStatus:    status,
		model.ColSourceSystem: "R11",
		model.ColMessageType:  msgType,
		model.ColRecordCount:  recordCount,
		model.ColWorkUnitID:   wfiid,
	}
}

func seed() testutil.Tables {
	return testutil.Tables{hdr: {
		header("3", "N", "R11_JOURNALS", int64(2), nil),
		header("1", "N", "R11_JOURNALS", int64(5), nil),
		header("2", "N", "R11_JOURNALS", int64(0), nil),
		header("4", "N", "OTHER", int64(1), nil),
		header("5", "N", "R11_JOURNALS", nil, nil),
		header("6", "W", "R11_JOURNALS", int64(1), int64(50)),
		header("7", "x", "R11_JOURNALS", int64(1), int64(99)),
	}}
}

func statusOf(rows []model.Row) map[string]string {
	out := map[string]string{}
	for _, r := range rows {
		out[r[model.ColMessageID].(string)] = r[model.ColIntStatus].(string)
	}
	return out
}

func newCoordinator(fake *testutil.FakeRemote, store repository.WorkUnitStateStore, cfg *config.TransferConfig) *lock.Coordinator {
	return lock.NewCoordinator(fake, store, cfg, metrics.NewNoOpMetricRecorder(), metrics.NewNoOpTracer())
}

func TestClaim_LocksMatchingHeaders(t *testing.T) {
	fake := testutil.NewFakeRemote(seed())
	store := inmemory.NewInMemoryStateStore()
	c := newCoordinator(fake, store, transferConfig())
	wu := model.WorkUnit{ID: 7, Name: "it-mip-70"}

	batch, err := c.Claim(context.Background(), wu)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3"}, batch.MessageIDs, "ordered by message_id")

	assert.Equal(t, map[string]string{
		"1": "W", "2": "W", "3": "W",
		"4": "N", "5": "N", "6": "W", "7": "x",
	}, statusOf(fake.Rows(hdr)))
	for _, r := range fake.Rows(hdr) {
		if r[model.ColIntStatus] == "W" && r[model.ColMessageID] != "6" {
			assert.Equal(t, int64(7), r[model.ColWorkUnitID])
		}
	}

	published, err := store.FindLockBatch(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, batch.MessageIDs, published.MessageIDs)

	_, commits, rollbacks := fake.Counters()
	assert.Equal(t, 1, commits)
	assert.Equal(t, 0, rollbacks)
}

func TestClaim_SecondRunIsEmpty(t *testing.T) {
	fake := testutil.NewFakeRemote(seed())
	store := inmemory.NewInMemoryStateStore()
	c := newCoordinator(fake, store, transferConfig())
	ctx := context.Background()

	_, err := c.Claim(ctx, model.WorkUnit{ID: 7})
	require.NoError(t, err)

	batch, err := c.Claim(ctx, model.WorkUnit{ID: 8})
	require.NoError(t, err)
	assert.True(t, batch.IsEmpty())

	published, err := store.FindLockBatch(ctx, 8)
	require.NoError(t, err)
	assert.Empty(t, published.MessageIDs)
}

func TestClaim_RecordCountSentinel(t *testing.T) {
	fake := testutil.NewFakeRemote(seed())
	cfg := transferConfig()
	cfg.RecordCountSentinel = "0"
	c := newCoordinator(fake, inmemory.NewInMemoryStateStore(), cfg)

	batch, err := c.Claim(context.Background(), model.WorkUnit{ID: 7})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "3"}, batch.MessageIDs)
	assert.Equal(t, "N", statusOf(fake.Rows(hdr))["2"])
}

func TestClaim_ConfirmCountMismatchRollsBack(t *testing.T) {
	fake := testutil.NewFakeRemote(seed())
	fake.OverrideAffected(hdr, 2, 2)
	c := newCoordinator(fake, inmemory.NewInMemoryStateStore(), transferConfig())

	_, err := c.Claim(context.Background(), model.WorkUnit{ID: 7})
	require.Error(t, err)
	assert.True(t, exception.IsOptimisticLockingFailure(err))
	assert.False(t, exception.IsRetryable(err))

	assert.Equal(t, "N", statusOf(fake.Rows(hdr))["1"], "no partial claim may remain")
	_, commits, rollbacks := fake.Counters()
	assert.Equal(t, 0, commits)
	assert.Equal(t, 1, rollbacks)
}

func TestClaim_RemoteFailureRollsBack(t *testing.T) {
	fake := testutil.NewFakeRemote(seed())
	fake.Fail(testutil.FaultSelect(hdr), testutil.ErrInjected)
	c := newCoordinator(fake, inmemory.NewInMemoryStateStore(), transferConfig())

	_, err := c.Claim(context.Background(), model.WorkUnit{ID: 7})
	assert.ErrorIs(t, err, exception.ErrRemoteCall)
	assert.ErrorIs(t, err, testutil.ErrInjected)

	_, _, rollbacks := fake.Counters()
	assert.Equal(t, 1, rollbacks)
	assert.Equal(t, "N", statusOf(fake.Rows(hdr))["1"])
}

type failingStore struct{ repository.WorkUnitStateStore }

func (failingStore) SaveLockBatch(ctx context.Context, batch model.LockBatch) error {
	return errors.New("state store down")
}

func TestClaim_PublishFailureRollsBack(t *testing.T) {
	fake := testutil.NewFakeRemote(seed())
	c := newCoordinator(fake, failingStore{inmemory.NewInMemoryStateStore()}, transferConfig())

	_, err := c.Claim(context.Background(), model.WorkUnit{ID: 7})
	assert.EqualError(t, err, "state store down")

	_, commits, rollbacks := fake.Counters()
	assert.Equal(t, 0, commits)
	assert.Equal(t, 1, rollbacks)
}

func TestClaim_FailureAfterPublishWithdrawsBatch(t *testing.T) {
	cases := []struct {
		name   string
		inject func(*testutil.FakeRemote)
	}{
		{"commit", func(f *testutil.FakeRemote) { f.Fail(testutil.FaultCommit, testutil.ErrInjected) }},
		{"confirm", func(f *testutil.FakeRemote) { f.OverrideAffected(hdr, 2, 1) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fake := testutil.NewFakeRemote(seed())
			tc.inject(fake)
			store := inmemory.NewInMemoryStateStore()
			c := newCoordinator(fake, store, transferConfig())

			_, err := c.Claim(context.Background(), model.WorkUnit{ID: 7})
			require.Error(t, err)

			assert.Equal(t, "N", statusOf(fake.Rows(hdr))["1"])
			_, err = store.FindLockBatch(context.Background(), 7)
			assert.ErrorIs(t, err, repository.ErrLockBatchNotFound, "a rolled-back claim leaves no batch for the import step")
		})
	}
}

func TestRelease_RequeuesHeaders(t *testing.T) {
	fake := testutil.NewFakeRemote(seed())
	c := newCoordinator(fake, inmemory.NewInMemoryStateStore(), transferConfig())
	ctx := context.Background()
	wu := model.WorkUnit{ID: 7}

	_, err := c.Claim(ctx, wu)
	require.NoError(t, err)

	n, err := c.Release(ctx, wu, "2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	for _, r := range fake.Rows(hdr) {
		if r[model.ColMessageID] == "2" {
			assert.Equal(t, "N", r[model.ColIntStatus])
			assert.Nil(t, r[model.ColWorkUnitID])
		}
	}

	n, err = c.Release(ctx, wu)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	status := statusOf(fake.Rows(hdr))
	assert.Equal(t, "W", status["6"], "rows of other work units are untouched")
	assert.Equal(t, "x", status["7"])

	batch, err := c.Claim(ctx, model.WorkUnit{ID: 8})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3"}, batch.MessageIDs, "released headers can be claimed again")
}

func TestClaim_SQLite(t *testing.T) {
	db := testutil.OpenSQLite(t, "remote")
	testutil.ExecSQL(t, db,
		`CREATE TABLE hdr (message_id INTEGER, int_status TEXT, source_system TEXT, message_type TEXT, record_count INTEGER, qorus_wfiid INTEGER, status_end TIMESTAMP)`,
		`INSERT INTO hdr (message_id, int_status, source_system, message_type, record_count) VALUES
			(11,'N','R11','R11_JOURNALS',3),
			(10,'N','R11','R11_JOURNALS',1),
			(12,'N','R11','OTHER',1),
			(13,'N','R11','R11_JOURNALS',NULL)`,
	)
	var connector remote.Connector = remote.NewSQLConnector(gormadapter.NewGormTransactionManager("ebs11i", db))
	store := inmemory.NewInMemoryStateStore()
	c := lock.NewCoordinator(connector, store, transferConfig(), metrics.NewNoOpMetricRecorder(), metrics.NewNoOpTracer())

	batch, err := c.Claim(context.Background(), model.WorkUnit{ID: 500})
	require.NoError(t, err)
	assert.Equal(t, []string{"10", "11"}, batch.MessageIDs)

	var locked int64
	require.NoError(t, db.Raw(`SELECT count(*) FROM hdr WHERE int_status = 'W' AND qorus_wfiid = 500`).Scan(&locked).Error)
	assert.Equal(t, int64(2), locked)

	n, err := c.Release(context.Background(), model.WorkUnit{ID: 500}, "11")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	var requeued int64
	require.NoError(t, db.Raw(`SELECT count(*) FROM hdr WHERE message_id = 11 AND int_status = 'N' AND qorus_wfiid IS NULL`).Scan(&requeued).Error)
	assert.Equal(t, int64(1), requeued)
}
