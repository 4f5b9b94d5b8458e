package heap

import (
	"fmt"

	"storemy/pkg/primitives"
)

// Iterator walks every occupied slot of a RecordFile in ascending
// (page_no, slot_no) order. It acquires no locks; callers that need
// isolation must take a table-level lock themselves before scanning.
// Restartable via Reset.
type Iterator struct {
	file    *RecordFile
	pageNo  primitives.PageNumber
	slotNo  uint32
	started bool
}

// NewIterator returns a fresh iterator over file, positioned before
// the first record.
func NewIterator(file *RecordFile) *Iterator {
	it := &Iterator{file: file}
	it.Reset()
	return it
}

// Reset repositions the iterator before the first record so a fresh
// scan can be restarted without reallocating.
func (it *Iterator) Reset() {
	it.pageNo = RM_FILE_HDR_PAGE + 1
	it.slotNo = 0
	it.started = true
}

// Next advances to and returns the next occupied record, or false
// once the file is exhausted.
func (it *Iterator) Next() (RecordId, []byte, bool, error) {
	hdr := it.file.Header()

	for it.pageNo < hdr.NumPages {
		pinned, err := it.file.pool.Fetch(it.file.fileID, it.pageNo)
		if err != nil {
			return RecordId{}, nil, false, fmt.Errorf("failed to fetch page %d: %w", it.pageNo, err)
		}
		dp := WrapDataPage(pinned.Data)

		for it.slotNo < hdr.NumRecordsPerPage {
			slot := it.slotNo
			it.slotNo++
			if dp.IsOccupied(slot) {
				record := dp.ReadSlot(hdr, slot)
				if err := it.file.pool.Unpin(it.file.fileID, it.pageNo, false); err != nil {
					return RecordId{}, nil, false, err
				}
				rid := RecordId{PageNo: it.pageNo, SlotNo: primitives.SlotNumber(slot)}
				return rid, record, true, nil
			}
		}

		if err := it.file.pool.Unpin(it.file.fileID, it.pageNo, false); err != nil {
			return RecordId{}, nil, false, err
		}
		it.pageNo++
		it.slotNo = 0
	}

	return RecordId{}, nil, false, nil
}

// Scan collects every live record in the file via a throwaway
// iterator. Convenient for tests and small catalogs; large callers
// should drive Iterator directly to avoid buffering the whole file.
func Scan(file *RecordFile) ([]RecordId, [][]byte, error) {
	it := NewIterator(file)
	var rids []RecordId
	var records [][]byte
	for {
		rid, record, ok, err := it.Next()
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			break
		}
		rids = append(rids, rid)
		records = append(records, record)
	}
	return rids, records, nil
}
