package heap

import (
	"encoding/binary"
	"fmt"

	"storemy/pkg/primitives"
	"storemy/pkg/storage/page"
)

// fileHeaderSize is the number of bytes of FileHeader's four geometry
// fields; fileHeaderSizeWithChain adds first_free_page_no and is the
// full number of bytes FileHeader occupies at the start of page 0. The
// remainder of the page is unused.
const fileHeaderSize = 4 * 4 // record_size, num_records_per_page, bitmap_size, num_pages (uint32 each)
const fileHeaderSizeWithChain = fileHeaderSize + 4 // + first_free_page_no

// FileHeader is the file-level metadata persisted on page 0 in the
// declared field order. It is the single source of truth for the
// file's geometry and the head of the free-page chain.
type FileHeader struct {
	RecordSize        uint32
	NumRecordsPerPage uint32
	BitmapSize        uint32
	NumPages          primitives.PageNumber
	FirstFreePageNo   primitives.PageNumber
}

// NewFileHeader derives a FileHeader for a freshly created file with
// the given fixed record size. The file initially has one page: page
// 0, the header page itself; NumPages is 1 and the free chain is
// empty until the first data page is allocated.
func NewFileHeader(recordSize uint32) FileHeader {
	numRecordsPerPage, bitmapSize := Capacity(page.PageSize, recordSize)
	return FileHeader{
		RecordSize:        recordSize,
		NumRecordsPerPage: numRecordsPerPage,
		BitmapSize:        bitmapSize,
		NumPages:          1,
		FirstFreePageNo:   primitives.InvalidPageNumber,
	}
}

// Capacity computes how many fixed-size records of recordSize fit on
// a data page of pageSize bytes alongside their occupancy bitmap, per
//
//	num_records_per_page = floor(8*(page_size - sizeof(PageHeader)) / (8*record_size + 1))
//	bitmap_size           = ceil(num_records_per_page / 8)
func Capacity(pageSize int, recordSize uint32) (numRecordsPerPage, bitmapSize uint32) {
	available := 8 * uint64(pageSize-pageHeaderSize)
	denom := 8*uint64(recordSize) + 1
	n := available / denom
	numRecordsPerPage = uint32(n)
	bitmapSize = (numRecordsPerPage + 7) / 8
	return
}

// Serialize writes the header into a PageSize buffer suitable for
// page 0. Fields are written in declared order as little-endian
// uint32s.
func (h FileHeader) Serialize() []byte {
	buf := make([]byte, page.PageSize)
	binary.LittleEndian.PutUint32(buf[0:4], h.RecordSize)
	binary.LittleEndian.PutUint32(buf[4:8], h.NumRecordsPerPage)
	binary.LittleEndian.PutUint32(buf[8:12], h.BitmapSize)
	binary.LittleEndian.PutUint32(buf[12:16], uint32(h.NumPages))
	binary.LittleEndian.PutUint32(buf[16:20], uint32(h.FirstFreePageNo))
	return buf
}

// DeserializeFileHeader reads a FileHeader back out of a page-0 buffer.
func DeserializeFileHeader(data []byte) (FileHeader, error) {
	if len(data) < fileHeaderSizeWithChain {
		return FileHeader{}, fmt.Errorf("page 0 buffer too small for file header: got %d bytes", len(data))
	}
	return FileHeader{
		RecordSize:        binary.LittleEndian.Uint32(data[0:4]),
		NumRecordsPerPage: binary.LittleEndian.Uint32(data[4:8]),
		BitmapSize:        binary.LittleEndian.Uint32(data[8:12]),
		NumPages:          primitives.PageNumber(binary.LittleEndian.Uint32(data[12:16])),
		FirstFreePageNo:   primitives.PageNumber(binary.LittleEndian.Uint32(data[16:20])),
	}, nil
}
