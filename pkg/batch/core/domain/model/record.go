package model

import "time"

// HeaderStatus is the value of the int_status column of a header row.
type HeaderStatus string

const (
	// StatusNew marks an unclaimed header.
	StatusNew HeaderStatus = "N"
	// StatusLocked is the transient personal lock written by the claim update.
	StatusLocked HeaderStatus = "x"
	// StatusWaiting marks a header claimed by a work unit and waiting for import.
	StatusWaiting HeaderStatus = "W"
	// StatusImported marks a header whose details were transferred.
	StatusImported HeaderStatus = "I"
)

// String returns the column value.
func (s HeaderStatus) String() string { return string(s) }

// Header, log and staging column names.
const (
	ColMessageID    = "message_id"
	ColIntStatus    = "int_status"
	ColSourceSystem = "source_system"
	ColTargetSystem = "target_system"
	ColMessageType  = "message_type"
	ColRecordCount  = "record_count"
	ColWorkUnitID   = "qorus_wfiid"
	ColStatusEnd    = "status_end"
	ColRefTransfer  = "ref_transfer"
	ColStatus       = "status"
	ColDateCreated  = "date_created"
	ColCreatedBy    = "created_by"
	ColActualFlag   = "actual_flag"
	ColLinesCount   = "lines_count"
)

// StagingStatusNew is the status column value of freshly staged detail rows.
const StagingStatusNew = "NEW"

// RowConstants is the metadata overlaid on every staged detail row.
type RowConstants struct {
	MessageID    string
	SourceSystem string
	TargetSystem string
	MessageType  string
	WorkUnitID   int64
	DateCreated  time.Time
	ActualFlag   string
}

// Row renders the constants as column values.
func (c RowConstants) Row() Row {
	return Row{
		ColMessageID:    c.MessageID,
		ColSourceSystem: c.SourceSystem,
		ColTargetSystem: c.TargetSystem,
		ColMessageType:  c.MessageType,
		ColWorkUnitID:   c.WorkUnitID,
		ColIntStatus:    StatusNew.String(),
		ColStatus:       StagingStatusNew,
		ColDateCreated:  c.DateCreated,
		ColCreatedBy:    c.WorkUnitID,
		ColActualFlag:   c.ActualFlag,
	}
}

// Merge returns a copy of detail with the constants applied on top. The constants
// win on key collision; detail is not modified.
func (c RowConstants) Merge(detail Row) Row {
	out := make(Row, len(detail)+10)
	for k, v := range detail {
		out[k] = v
	}
	for k, v := range c.Row() {
		out[k] = v
	}
	return out
}

// StagingLogRow is the single log entry written per imported message id.
type StagingLogRow struct {
	RefTransfer string
	MessageID   string
	RecordCount int64
}

// Row renders the log entry as column values.
func (l StagingLogRow) Row() Row {
	return Row{
		ColRefTransfer: l.RefTransfer,
		ColMessageID:   l.MessageID,
		ColRecordCount: l.RecordCount,
	}
}
