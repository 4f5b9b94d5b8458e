package heap

import (
	"bytes"
	"testing"

	"storemy/pkg/primitives"
)

// S1 from the testable-properties scenarios: insert/get round trip on
// a fresh file with record_size=8.
func TestRecordFile_InsertGetRoundTrip(t *testing.T) {
	rf, pool := newTestFile(t, 8)

	rid, err := rf.Insert([]byte("ABCDEFGH"), Context{})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if rid != (RecordId{PageNo: 1, SlotNo: 0}) {
		t.Errorf("expected rid (1,0), got %s", rid)
	}

	got, err := rf.Get(rid, Context{})
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !bytes.Equal(got, []byte("ABCDEFGH")) {
		t.Errorf("expected %q, got %q", "ABCDEFGH", got)
	}

	if unbalanced := pool.unbalanced(); len(unbalanced) != 0 {
		t.Errorf("expected balanced pins, got %v", unbalanced)
	}
}

func TestRecordFile_GetMissingRecordFails(t *testing.T) {
	rf, _ := newTestFile(t, 8)
	if _, err := rf.Insert([]byte("AAAAAAAA"), Context{}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if _, err := rf.Get(RecordId{PageNo: 1, SlotNo: 1}, Context{}); err == nil {
		t.Errorf("expected RecordNotFound for an unoccupied slot")
	}
}

// Boundary: inserting into a file with no free pages triggers exactly
// one page allocation; num_pages increases by one; first_free_page_no
// equals the new page number.
func TestRecordFile_InsertAllocatesPageWhenChainEmpty(t *testing.T) {
	rf, _ := newTestFile(t, 8)
	before := rf.Header().NumPages

	rid, err := rf.Insert([]byte("AAAAAAAA"), Context{})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	after := rf.Header()
	if after.NumPages != before+1 {
		t.Errorf("expected num_pages to increase by 1, got %d -> %d", before, after.NumPages)
	}
	if after.FirstFreePageNo != rid.PageNo {
		t.Errorf("expected first_free_page_no=%d, got %d", rid.PageNo, after.FirstFreePageNo)
	}
}

// Boundary: deleting the sole record on a full page causes that page
// to become the new free-chain head.
func TestRecordFile_DeleteOnFullPageBecomesChainHead(t *testing.T) {
	rf, _ := newTestFile(t, 8)
	perPage := rf.Header().NumRecordsPerPage

	var rids []RecordId
	for i := uint32(0); i < perPage; i++ {
		rid, err := rf.Insert([]byte("AAAAAAAA"), Context{})
		if err != nil {
			t.Fatalf("Insert %d failed: %v", i, err)
		}
		rids = append(rids, rid)
	}

	if rf.Header().FirstFreePageNo != primitives.InvalidPageNumber {
		t.Fatalf("expected chain empty once page 1 is full, got head=%d", rf.Header().FirstFreePageNo)
	}

	if err := rf.Delete(rids[0], Context{}); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if rf.Header().FirstFreePageNo != rids[0].PageNo {
		t.Errorf("expected page %d to become chain head after delete, got %d", rids[0].PageNo, rf.Header().FirstFreePageNo)
	}
}

func TestRecordFile_InsertAt_RejectsOccupiedSlot(t *testing.T) {
	rf, _ := newTestFile(t, 8)
	rid, err := rf.Insert([]byte("AAAAAAAA"), Context{})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := rf.InsertAt(rid, []byte("BBBBBBBB")); err == nil {
		t.Errorf("expected InsertAt to fail on an already-occupied slot")
	}
}

func TestRecordFile_InsertAt_RestoresDeletedRecord(t *testing.T) {
	rf, _ := newTestFile(t, 8)
	rid, err := rf.Insert([]byte("XXXXXXXX"), Context{})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := rf.Delete(rid, Context{}); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := rf.InsertAt(rid, []byte("XXXXXXXX")); err != nil {
		t.Fatalf("InsertAt failed: %v", err)
	}
	got, err := rf.Get(rid, Context{})
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !bytes.Equal(got, []byte("XXXXXXXX")) {
		t.Errorf("expected restored record, got %q", got)
	}
}

func TestRecordFile_Update(t *testing.T) {
	rf, _ := newTestFile(t, 8)
	rid, err := rf.Insert([]byte("AAAAAAAA"), Context{})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := rf.Update(rid, []byte("BBBBBBBB"), Context{}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	got, err := rf.Get(rid, Context{})
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !bytes.Equal(got, []byte("BBBBBBBB")) {
		t.Errorf("expected BBBBBBBB, got %q", got)
	}
}

func TestVerifyInvariants(t *testing.T) {
	rf, _ := newTestFile(t, 8)
	for i := 0; i < 10; i++ {
		if _, err := rf.Insert([]byte("AAAAAAAA"), Context{}); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}
	if err := VerifyInvariants(rf); err != nil {
		t.Errorf("VerifyInvariants failed: %v", err)
	}
}
