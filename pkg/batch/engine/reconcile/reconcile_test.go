package reconcile_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/lockxfer/pkg/batch/core/domain/model"
	"github.com/tigerroll/lockxfer/pkg/batch/engine/reconcile"
	testutil "github.com/tigerroll/lockxfer/pkg/batch/test"
)

var wu = model.WorkUnit{ID: 9, Name: "it-mip-70"}

func newJournal(t *testing.T) *reconcile.SQLJournal {
	t.Helper()
	conn := testutil.OpenSQLiteAdapter(t, "journal")
	j := reconcile.NewSQLJournal(testutil.NewTestSingleConnectionResolver(conn), "journal")
	require.NoError(t, j.EnsureSchema(context.Background()))
	return j
}

func TestNewEvent(t *testing.T) {
	a := reconcile.NewEvent(wu, "42", reconcile.SideStaging, reconcile.SideRemote, errors.New("connection reset"))
	b := reconcile.NewEvent(wu, "42", reconcile.SideStaging, reconcile.SideRemote, nil)

	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, "connection reset", a.Cause)
	assert.Empty(t, b.Cause)
	assert.False(t, a.OccurredAt.IsZero())
}

func TestLogHook_NeverFails(t *testing.T) {
	ev := reconcile.NewEvent(wu, "42", reconcile.SideStaging, reconcile.SideRemote, errors.New("boom"))
	assert.NoError(t, reconcile.NewLogHook().Report(context.Background(), ev))
}

func TestSQLJournal_ReportPendingResolve(t *testing.T) {
	j := newJournal(t)
	ctx := context.Background()

	first := reconcile.NewEvent(wu, "42", reconcile.SideStaging, reconcile.SideRemote, errors.New("commit lost"))
	second := reconcile.NewEvent(wu, "43", reconcile.SideStaging, reconcile.SideRemote, errors.New("commit lost"))
	second.OccurredAt = first.OccurredAt.Add(time.Second)
	require.NoError(t, j.Report(ctx, first))
	require.NoError(t, j.Report(ctx, second))

	pending, err := j.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, first.ID, pending[0].ID)
	assert.Equal(t, wu, pending[0].WorkUnit)
	assert.Equal(t, "42", pending[0].MessageID)
	assert.Equal(t, reconcile.SideStaging, pending[0].Committed)
	assert.Equal(t, reconcile.SideRemote, pending[0].Failed)
	assert.Equal(t, "commit lost", pending[0].Cause)

	require.NoError(t, j.Resolve(ctx, first.ID))
	pending, err = j.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "43", pending[0].MessageID)

	assert.ErrorIs(t, j.Resolve(ctx, first.ID), reconcile.ErrEventNotFound, "already resolved")
	assert.ErrorIs(t, j.Resolve(ctx, "unknown"), reconcile.ErrEventNotFound)
}

func TestSQLJournal_ResolveConnectionFailure(t *testing.T) {
	resolver := &testutil.MockDBConnectionResolver{}
	resolver.On("ResolveDBConnection", mock.Anything, "journal").Return(nil, errors.New("no such database"))
	j := reconcile.NewSQLJournal(resolver, "journal")

	ev := reconcile.NewEvent(wu, "42", reconcile.SideStaging, reconcile.SideRemote, nil)
	assert.Error(t, j.Report(context.Background(), ev))
	_, err := j.Pending(context.Background())
	assert.Error(t, err)
	resolver.AssertExpectations(t)
}
