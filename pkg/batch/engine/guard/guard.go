// Package guard validates a message id before its details are transferred.
package guard

import (
	"context"
	"fmt"

	"github.com/tigerroll/lockxfer/pkg/batch/adapter/remote"
	"github.com/tigerroll/lockxfer/pkg/batch/adapter/staging"
	"github.com/tigerroll/lockxfer/pkg/batch/core/config"
	"github.com/tigerroll/lockxfer/pkg/batch/core/domain/model"
	"github.com/tigerroll/lockxfer/pkg/batch/support/util/exception"
	"github.com/tigerroll/lockxfer/pkg/batch/support/util/logger"
)

const moduleName = "guard"

// Session is the pair of open transactions one transfer runs in.
type Session struct {
	Remote  remote.Gateway
	Staging staging.Accessor
}

// Guard checks header and detail counts and the staging log.
type Guard struct {
	cfg *config.TransferConfig
}

// NewGuard creates a new Guard.
func NewGuard(cfg *config.TransferConfig) *Guard {
	return &Guard{cfg: cfg}
}

// Check verifies that the header record_count of messageID equals its number of detail
// rows and that staging has no log row for it yet, then inserts the log row within the
// staging transaction. The log row is written before any detail is streamed so that an
// interrupted transfer is caught as a duplicate on re-execution.
func (g *Guard) Check(ctx context.Context, s Session, wu model.WorkUnit, messageID string) (int64, error) {
	where := model.Where{model.ColMessageID: messageID}

	head, err := s.Remote.SelectRow(ctx, g.cfg.HeaderTable, model.SelectSpec{
		Columns: []string{model.ColRecordCount},
		Where:   where,
	})
	if err != nil {
		return 0, err
	}
	if head == nil {
		return 0, exception.NewHeaderNotFoundError(moduleName, messageID)
	}
	headerCount, ok := model.ToInt64(head[model.ColRecordCount])
	if !ok {
		return 0, exception.NewBatchError(moduleName,
			fmt.Sprintf("BUSINESS-ERROR: header record_count %v of message_id %s is not a count", head[model.ColRecordCount], messageID),
			exception.ErrBusinessCountMismatch, false, false)
	}

	linesCount, err := countOf(s.Remote.SelectRow(ctx, g.cfg.DetailTable, model.SelectSpec{
		Where:   where,
		CountAs: model.ColLinesCount,
	}))
	if err != nil {
		return 0, err
	}
	if headerCount != linesCount {
		logger.Warnf("BUSINESS-ERROR: %s header count %d differs from lines count %d for message_id %s", wu, headerCount, linesCount, messageID)
		return 0, exception.NewBusinessCountMismatchError(moduleName, messageID, headerCount, linesCount)
	}

	existing, err := countOf(s.Staging.SelectRow(ctx, g.cfg.LogTable, model.SelectSpec{
		Where:   where,
		CountAs: model.ColLinesCount,
	}))
	if err != nil {
		return 0, err
	}
	if existing > 0 {
		logger.Warnf("BUSINESS-ERROR: message_id %s already exists in staging log %s", messageID, g.cfg.LogTable)
		return 0, exception.NewDuplicateImportError(moduleName, messageID, existing)
	}

	logRow := model.StagingLogRow{RefTransfer: messageID, MessageID: messageID, RecordCount: headerCount}
	if err := s.Staging.InsertRow(ctx, g.cfg.LogTable, logRow.Row()); err != nil {
		return 0, err
	}
	logger.Debugf("Guard: message_id %s passed (record_count %d).", messageID, headerCount)
	return headerCount, nil
}

// countOf extracts the lines_count column of a count row.
func countOf(row model.Row, err error) (int64, error) {
	if err != nil {
		return 0, err
	}
	if row == nil {
		return 0, nil
	}
	n, ok := model.ToInt64(row[model.ColLinesCount])
	if !ok {
		return 0, exception.NewBatchError(moduleName, fmt.Sprintf("unexpected count value %v", row[model.ColLinesCount]), nil, false, false)
	}
	return n, nil
}
