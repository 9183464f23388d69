package step_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/lockxfer/pkg/batch/core/config"
	"github.com/tigerroll/lockxfer/pkg/batch/core/domain/model"
	"github.com/tigerroll/lockxfer/pkg/batch/core/domain/repository"
	"github.com/tigerroll/lockxfer/pkg/batch/core/metrics"
	"github.com/tigerroll/lockxfer/pkg/batch/engine/guard"
	"github.com/tigerroll/lockxfer/pkg/batch/engine/lock"
	"github.com/tigerroll/lockxfer/pkg/batch/engine/reconcile"
	"github.com/tigerroll/lockxfer/pkg/batch/engine/step"
	"github.com/tigerroll/lockxfer/pkg/batch/engine/step/retry"
	"github.com/tigerroll/lockxfer/pkg/batch/engine/transfer"
	"github.com/tigerroll/lockxfer/pkg/batch/infrastructure/repository/inmemory"
	"github.com/tigerroll/lockxfer/pkg/batch/support/util/exception"
	testutil "github.com/tigerroll/lockxfer/pkg/batch/test"
)

const (
	hdr    = "hdr"
	dtl    = "dtl"
	impLog = "imp_log"
	imp    = "imp"
)

var wu = model.WorkUnit{ID: 77, Name: "it-mip-70"}

func testConfig() *config.Config {
	cfg := config.NewConfig()
	t := &cfg.Lockxfer.Transfer
	t.HeaderTable = hdr
	t.DetailTable = dtl
	t.LogTable = impLog
	t.ImportTable = imp
	t.BlockSize = 2
	t.RemoteTimeout = 2000
	return cfg
}

func header(id string, recordCount int64) model.Row {
	return model.Row{
		model.ColMessageID:    id,
		model.ColIntStatus:    "N",
		model.ColSourceSystem: "R11",
		model.ColMessageType:  "R11_JOURNALS",
		model.ColRecordCount:  recordCount,
	}
}

func details(id string, n int) []model.Row {
	rows := make([]model.Row, n)
	for i := range rows {
		rows[i] = model.Row{model.ColMessageID: id, "line": i + 1}
	}
	return rows
}

func seed() testutil.Tables {
	t := testutil.Tables{hdr: {header("41", 3), header("42", 5), header("43", 2)}}
	t[dtl] = append(t[dtl], details("41", 3)...)
	t[dtl] = append(t[dtl], details("42", 5)...)
	t[dtl] = append(t[dtl], details("43", 1)...)
	return t
}

type harness struct {
	cfg     *config.Config
	remote  *testutil.FakeRemote
	staging *testutil.FakeStaging
	store   repository.WorkUnitStateStore
	runner  *step.Runner
}

func newHarness(tables testutil.Tables, cfg *config.Config) *harness {
	h := &harness{
		cfg:     cfg,
		remote:  testutil.NewFakeRemote(tables),
		staging: testutil.NewFakeStaging(nil),
		store:   inmemory.NewInMemoryStateStore(),
	}
	tc := &cfg.Lockxfer.Transfer
	recorder, tracer := metrics.NewNoOpMetricRecorder(), metrics.NewNoOpTracer()
	coordinator := lock.NewCoordinator(h.remote, h.store, tc, recorder, tracer)
	engine := transfer.NewEngine(h.remote, h.staging, guard.NewGuard(tc), reconcile.NewLogHook(), tc, recorder, tracer)

	registry := step.NewRegistry()
	step.RegisterLockStepBuilder(registry, step.NewLockStepBuilder(coordinator))
	step.RegisterImportStepBuilder(registry, step.NewImportStepBuilder(h.store, engine))
	h.runner = step.NewRunner(registry, cfg, recorder, tracer)
	return h
}

func statuses(rows []model.Row) map[string]string {
	out := map[string]string{}
	for _, r := range rows {
		out[r[model.ColMessageID].(string)] = r[model.ColIntStatus].(string)
	}
	return out
}

func TestRunner_LockThenImport(t *testing.T) {
	tables := seed()
	tables[dtl] = append(tables[dtl], model.Row{model.ColMessageID: "43", "line": 2})
	cfg := testConfig()
	cfg.Lockxfer.Transfer.Concurrency = 2
	h := newHarness(tables, cfg)

	p, err := h.runner.Run(context.Background(), wu)
	require.NoError(t, err)

	assert.Equal(t, []string{"41", "42", "43"}, p.Batch.MessageIDs)
	ids, ok := p.Context.GetStringSlice(model.KeySourceMessageIDs)
	require.True(t, ok)
	assert.Equal(t, p.Batch.MessageIDs, ids)
	assert.NotEmpty(t, p.RunID)

	require.Len(t, p.Results, 3)
	for i, id := range []string{"41", "42", "43"} {
		assert.Equal(t, id, p.Results[i].MessageID, "results keep the batch order")
	}
	assert.Equal(t, map[string]string{"41": "I", "42": "I", "43": "I"}, statuses(h.remote.Rows(hdr)))
	assert.Len(t, h.staging.Rows(imp), 10)
	assert.Len(t, h.staging.Rows(impLog), 3)
}

func TestRunner_EmptyClaimRunsImportZeroTimes(t *testing.T) {
	h := newHarness(testutil.Tables{hdr: {}}, testConfig())

	p, err := h.runner.Run(context.Background(), wu)
	require.NoError(t, err)
	assert.True(t, p.Batch.IsEmpty())
	assert.Empty(t, p.Results)
	opened, _, _ := h.staging.Counters()
	assert.Equal(t, 0, opened)
}

func TestRunner_ImportFailureKeepsOtherTransfers(t *testing.T) {
	h := newHarness(seed(), testConfig())

	_, err := h.runner.Run(context.Background(), wu)
	require.Error(t, err)
	assert.ErrorIs(t, err, exception.ErrBusinessCountMismatch)
	assert.True(t, exception.IsBusinessError(err))
	assert.Contains(t, err.Error(), "message_id 43")

	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	assert.Len(t, merr.Errors, 1)

	assert.Equal(t, map[string]string{"41": "I", "42": "I", "43": "W"}, statuses(h.remote.Rows(hdr)))
	assert.Len(t, h.staging.Rows(impLog), 2)
}

func TestRunner_LockFailureStopsWorkflow(t *testing.T) {
	h := newHarness(seed(), testConfig())
	h.remote.Fail(testutil.FaultUpdate(hdr), testutil.ErrInjected)

	p, err := h.runner.Run(context.Background(), wu)
	assert.Nil(t, p)
	assert.ErrorIs(t, err, testutil.ErrInjected)
	assert.Contains(t, err.Error(), "step 'lock'")
	opened, _, _ := h.staging.Counters()
	assert.Equal(t, 0, opened, "import never ran")
}

func TestRunner_UnknownStep(t *testing.T) {
	cfg := testConfig()
	cfg.Lockxfer.Workflow.Steps = append(cfg.Lockxfer.Workflow.Steps, config.StepConfig{Name: "notify"})
	h := newHarness(seed(), cfg)

	_, err := h.runner.Run(context.Background(), wu)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "notify")
	opened, _, _ := h.remote.Counters()
	assert.Equal(t, 0, opened, "steps are built before anything runs")
}

func TestRunner_NoSteps(t *testing.T) {
	cfg := testConfig()
	cfg.Lockxfer.Workflow.Steps = nil
	_, err := newHarness(seed(), cfg).runner.Run(context.Background(), wu)
	assert.Error(t, err)
}

func TestImportStep_RequiresPublishedBatch(t *testing.T) {
	s := step.NewImportStep(inmemory.NewInMemoryStateStore(), nil, 1, nil)

	_, err := s.Execute(context.Background(), step.NewPayload(wu))
	assert.ErrorIs(t, err, repository.ErrLockBatchNotFound)
}

type stubTransferer struct {
	fail map[string]error
}

func (s stubTransferer) Transfer(ctx context.Context, wu model.WorkUnit, messageID string) (transfer.Result, error) {
	if err := s.fail[messageID]; err != nil {
		return transfer.Result{}, err
	}
	return transfer.Result{MessageID: messageID}, nil
}

func TestImportStep_ReadsIDsFromStore(t *testing.T) {
	store := inmemory.NewInMemoryStateStore()
	require.NoError(t, store.SaveLockBatch(context.Background(), model.LockBatch{WorkUnit: wu, MessageIDs: []string{"1", "2", "3"}}))
	boom := errors.New("boom")
	s := step.NewImportStep(store, stubTransferer{fail: map[string]error{"2": boom}}, 0, nil)

	p := step.NewPayload(wu)
	next, err := s.Execute(context.Background(), p)
	assert.Nil(t, next)
	assert.ErrorIs(t, err, boom)
	require.Len(t, p.Results, 2)
	assert.Equal(t, "1", p.Results[0].MessageID)
	assert.Equal(t, "3", p.Results[1].MessageID)
}

// flakyTransferer fails the first failures calls for each message id.
type flakyTransferer struct {
	mu       sync.Mutex
	failures int
	err      error
	calls    map[string]int
}

func (f *flakyTransferer) Transfer(ctx context.Context, wu model.WorkUnit, messageID string) (transfer.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[messageID]++
	if f.calls[messageID] <= f.failures {
		return transfer.Result{}, f.err
	}
	return transfer.Result{MessageID: messageID}, nil
}

func TestImportStep_RetriesRetryableFailures(t *testing.T) {
	store := inmemory.NewInMemoryStateStore()
	require.NoError(t, store.SaveLockBatch(context.Background(), model.LockBatch{WorkUnit: wu, MessageIDs: []string{"1", "2"}}))

	t.Run("remote call errors", func(t *testing.T) {
		tr := &flakyTransferer{failures: 2, err: exception.NewRemoteCallError("remote", "connection reset", nil), calls: map[string]int{}}
		s := step.NewImportStep(store, tr, 2, retry.NewPolicy(3, time.Millisecond, nil))

		next, err := s.Execute(context.Background(), step.NewPayload(wu))
		require.NoError(t, err)
		assert.Len(t, next.Results, 2)
		assert.Equal(t, map[string]int{"1": 3, "2": 3}, tr.calls)
	})

	t.Run("business errors", func(t *testing.T) {
		tr := &flakyTransferer{failures: 1, err: exception.NewDuplicateImportError("guard", "1", 1), calls: map[string]int{}}
		s := step.NewImportStep(store, tr, 1, retry.NewPolicy(3, time.Millisecond, nil))

		_, err := s.Execute(context.Background(), step.NewPayload(wu))
		assert.ErrorIs(t, err, exception.ErrDuplicateImport)
		assert.Equal(t, map[string]int{"1": 1, "2": 1}, tr.calls)
	})
}

func TestImportStepBuilder_BindsConcurrency(t *testing.T) {
	registry := step.NewRegistry()
	step.RegisterImportStepBuilder(registry, step.NewImportStepBuilder(inmemory.NewInMemoryStateStore(), nil))

	s, err := registry.Build(testConfig(), config.StepConfig{Name: config.StepImport, Properties: map[string]interface{}{"concurrency": "4"}})
	require.NoError(t, err)
	assert.Equal(t, config.StepImport, s.Name())

	_, err = registry.Build(testConfig(), config.StepConfig{Name: config.StepImport, Properties: map[string]interface{}{"concurrency": "many"}})
	assert.Error(t, err)

	_, err = registry.Build(testConfig(), config.StepConfig{Name: config.StepImport, Properties: map[string]interface{}{
		"retry_attempts":   3,
		"retry_interval":   "250ms",
		"retryable_errors": []interface{}{exception.OptimisticLockingFailureException},
	}})
	assert.NoError(t, err)
	assert.Equal(t, []string{config.StepImport}, registry.Names())
}
