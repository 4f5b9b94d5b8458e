package heap

import (
	"bytes"
	"testing"

	"storemy/pkg/storage/page"
)

func TestDataPage_OccupyVacateRoundTrip(t *testing.T) {
	hdr := NewFileHeader(8)
	buf := make([]byte, page.PageSize)
	dp := InitDataPage(buf)

	if dp.NumRecords() != 0 {
		t.Fatalf("expected fresh page to have 0 records")
	}

	record := []byte("ABCDEFGH")
	if err := dp.Occupy(hdr, 0, record); err != nil {
		t.Fatalf("Occupy failed: %v", err)
	}
	if !dp.IsOccupied(0) {
		t.Errorf("expected slot 0 to be occupied")
	}
	if dp.NumRecords() != 1 {
		t.Errorf("expected num_records=1, got %d", dp.NumRecords())
	}
	if got := dp.ReadSlot(hdr, 0); !bytes.Equal(got, record) {
		t.Errorf("expected %q, got %q", record, got)
	}
	if dp.Popcount(hdr) != dp.NumRecords() {
		t.Errorf("popcount %d != num_records %d", dp.Popcount(hdr), dp.NumRecords())
	}

	dp.Vacate(0)
	if dp.IsOccupied(0) {
		t.Errorf("expected slot 0 to be clear after Vacate")
	}
	if dp.NumRecords() != 0 {
		t.Errorf("expected num_records=0 after vacate, got %d", dp.NumRecords())
	}
}

func TestDataPage_FirstClearBit(t *testing.T) {
	hdr := NewFileHeader(8)
	buf := make([]byte, page.PageSize)
	dp := InitDataPage(buf)

	if err := dp.Occupy(hdr, 0, make([]byte, 8)); err != nil {
		t.Fatalf("Occupy failed: %v", err)
	}
	if err := dp.Occupy(hdr, 1, make([]byte, 8)); err != nil {
		t.Fatalf("Occupy failed: %v", err)
	}

	slot, ok := dp.FirstClearBit(hdr)
	if !ok || slot != 2 {
		t.Errorf("expected first clear bit 2, got %d (ok=%v)", slot, ok)
	}
}

func TestDataPage_BitOrderingIsLSBFirst(t *testing.T) {
	hdr := NewFileHeader(8)
	buf := make([]byte, page.PageSize)
	dp := InitDataPage(buf)

	if err := dp.Occupy(hdr, 0, make([]byte, 8)); err != nil {
		t.Fatalf("Occupy failed: %v", err)
	}
	byteVal := buf[pageHeaderSize]
	if byteVal != 0x01 {
		t.Errorf("expected bit 0 to be the LSB of the first bitmap byte (0x01), got 0x%02x", byteVal)
	}
}
