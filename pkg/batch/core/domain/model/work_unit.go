package model

import "fmt"

// WorkUnit identifies one run of the workflow. ID is the opaque instance identifier
// (the "wfiid") stamped on claimed header rows; it is never reassigned.
type WorkUnit struct {
	ID   int64
	Name string
}

// String returns a compact representation for logs.
func (w WorkUnit) String() string {
	if w.Name == "" {
		return fmt.Sprintf("wfiid=%d", w.ID)
	}
	return fmt.Sprintf("%s(wfiid=%d)", w.Name, w.ID)
}

// LockBatch is the ordered set of message ids claimed by one work unit.
type LockBatch struct {
	WorkUnit   WorkUnit
	MessageIDs []string
}

// Len returns the number of claimed message ids.
func (b LockBatch) Len() int { return len(b.MessageIDs) }

// IsEmpty reports whether the claim found nothing to process.
func (b LockBatch) IsEmpty() bool { return len(b.MessageIDs) == 0 }
