// Package heap implements the disk-backed heap file store: fixed-width
// records organised as slotted pages with a per-page occupancy bitmap
// and a file-level free-page chain.
package heap

import (
	"fmt"

	"storemy/pkg/primitives"
)

// RM_FILE_HDR_PAGE is the page number reserved for the FileHeader.
// It never holds records.
const RM_FILE_HDR_PAGE primitives.PageNumber = 0

// RecordId identifies a record by its location, stable for the
// record's lifetime. A slot is never reassigned a different meaning
// while the record is live; deleting and reinserting may reuse the
// slot but the RecordId is never handed out for two different "live
// spans" without the caller choosing to reuse it via insert_at.
type RecordId struct {
	PageNo primitives.PageNumber
	SlotNo primitives.SlotNumber
}

// String renders the record id as "(page,slot)" to match how the
// specification and tests refer to it.
func (r RecordId) String() string {
	return fmt.Sprintf("(%d,%d)", r.PageNo, r.SlotNo)
}

// Valid reports whether rid could possibly name a record in a file
// with the given header, independent of whether a record actually
// occupies that slot.
func (r RecordId) Valid(hdr FileHeader) bool {
	if r.PageNo <= RM_FILE_HDR_PAGE || r.PageNo >= hdr.NumPages {
		return false
	}
	return r.SlotNo < primitives.SlotNumber(hdr.NumRecordsPerPage)
}
