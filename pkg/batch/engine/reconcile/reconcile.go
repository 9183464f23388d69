// Package reconcile reports transfers whose two commits diverged.
//
// A transfer commits staging first and the remote system second. When the second
// commit fails after the first succeeded, staging holds rows whose header was never
// marked imported. There is no coordinator that could undo the first commit, so the
// divergence is reported as an Event for the host or an operator to replay.
package reconcile

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tigerroll/lockxfer/pkg/batch/core/domain/model"
)

const moduleName = "reconcile"

// Side names one of the two datastores of a transfer.
type Side string

const (
	SideStaging Side = "staging"
	SideRemote  Side = "remote"
)

// Event describes one one-sided commit.
type Event struct {
	ID        string
	WorkUnit  model.WorkUnit
	MessageID string
	// Committed is the side whose commit succeeded; Failed is the side left behind.
	Committed Side
	Failed    Side
	// Cause is the error message of the failed commit.
	Cause      string
	OccurredAt time.Time
}

// NewEvent creates an event with a fresh id.
func NewEvent(wu model.WorkUnit, messageID string, committed, failed Side, cause error) Event {
	ev := Event{
		ID:         uuid.NewString(),
		WorkUnit:   wu,
		MessageID:  messageID,
		Committed:  committed,
		Failed:     failed,
		OccurredAt: time.Now(),
	}
	if cause != nil {
		ev.Cause = cause.Error()
	}
	return ev
}

// Hook receives reconciliation events.
type Hook interface {
	Report(ctx context.Context, ev Event) error
}

// Journal is a Hook that keeps events until they are resolved.
type Journal interface {
	Hook
	// Pending returns the unresolved events, oldest first.
	Pending(ctx context.Context) ([]Event, error)
	// Resolve marks the event as handled.
	Resolve(ctx context.Context, id string) error
}
