package reconcile

import (
	"context"

	"github.com/tigerroll/lockxfer/pkg/batch/support/util/logger"
)

// LogHook writes each event to the error log.
type LogHook struct{}

var _ Hook = LogHook{}

// NewLogHook creates a new LogHook.
func NewLogHook() LogHook {
	return LogHook{}
}

// Report implements Hook.
func (LogHook) Report(ctx context.Context, ev Event) error {
	logger.Errorf("RECONCILE[%s]: %s message_id %s committed on %s but not on %s: %s",
		ev.ID, ev.WorkUnit, ev.MessageID, ev.Committed, ev.Failed, ev.Cause)
	return nil
}
