package heap

import (
	"fmt"
	"sync"

	dberr "storemy/pkg/error"
	"storemy/pkg/primitives"
	"storemy/pkg/storage/page"
)

// RecordFile is a heap file handle: a file identifier, a reference to
// the buffer pool pages are fetched through, and the file's mutable
// header (record geometry plus free-chain head).
//
// headerMu serialises mutation of the in-memory header fields that
// acquire_free_page and delete's head-push update. The specification
// notes this field is otherwise unprotected and relies on table-IX
// plus page-level exclusion; this mutex is the "per-file latch" it
// suggests for higher contention.
type RecordFile struct {
	fileID primitives.FileID
	name   string
	pool   page.BufferPool

	headerMu sync.Mutex
	hdr      FileHeader
}

// NewRecordFile wraps an already-created, empty file (page 0 holding
// hdr) for record operations. Callers that are creating a brand new
// heap file should persist hdr to page 0 themselves before calling
// this (or use CreateRecordFile).
func NewRecordFile(fileID primitives.FileID, name string, pool page.BufferPool, hdr FileHeader) *RecordFile {
	return &RecordFile{fileID: fileID, name: name, pool: pool, hdr: hdr}
}

// CreateRecordFile initialises a brand-new heap file: it allocates
// page 0 and writes a fresh FileHeader into it, then returns a handle
// ready for inserts.
func CreateRecordFile(fileID primitives.FileID, name string, pool page.BufferPool, recordSize uint32) (*RecordFile, error) {
	hdr := NewFileHeader(recordSize)
	rf := &RecordFile{fileID: fileID, name: name, pool: pool, hdr: hdr}
	if err := rf.initHeaderPage(); err != nil {
		return nil, err
	}
	return rf, nil
}

// Name returns the table name this file is registered under, used to
// tag WriteRecords for undo.
func (rf *RecordFile) Name() string {
	return rf.name
}

// FileID returns the underlying file identifier, for callers (the
// catalog, the buffer pool) that need to drive disk/pool operations
// this handle does not itself expose.
func (rf *RecordFile) FileID() primitives.FileID {
	return rf.fileID
}

// Header returns a copy of the file's current header, for tests and
// invariant checks.
func (rf *RecordFile) Header() FileHeader {
	rf.headerMu.Lock()
	defer rf.headerMu.Unlock()
	return rf.hdr
}

// initHeaderPage allocates page 0 for a brand-new file and writes the
// initial header into it. It must allocate rather than fetch: a
// freshly created file has no page 0 on disk yet for Fetch to find.
func (rf *RecordFile) initHeaderPage() error {
	pinned, err := rf.pool.New(rf.fileID)
	if err != nil {
		return fmt.Errorf("failed to allocate header page: %w", err)
	}
	if pinned.ID.PageNo != RM_FILE_HDR_PAGE {
		_ = rf.pool.Unpin(rf.fileID, pinned.ID.PageNo, false)
		return dberr.InternalError("CreateRecordFile", "RecordManager",
			fmt.Sprintf("expected a fresh file's first page to be %d, got %d", RM_FILE_HDR_PAGE, pinned.ID.PageNo))
	}
	copy(pinned.Data, rf.hdr.Serialize())
	return rf.pool.Unpin(rf.fileID, RM_FILE_HDR_PAGE, true)
}

// persistHeader rewrites the header page of an already-created file,
// e.g. after acquire_free_page updates NumPages/FirstFreePageNo.
func (rf *RecordFile) persistHeader() error {
	pinned, err := rf.pool.Fetch(rf.fileID, RM_FILE_HDR_PAGE)
	if err != nil {
		return fmt.Errorf("failed to fetch header page: %w", err)
	}
	copy(pinned.Data, rf.hdr.Serialize())
	return rf.pool.Unpin(rf.fileID, RM_FILE_HDR_PAGE, true)
}

// acquireFreePage implements §4.1's acquire_free_page: if the chain
// is empty, allocate and initialise a fresh page and make it the new
// head; otherwise fetch the current head. Either way the returned
// page is pinned and the caller is responsible for unpinning it.
func (rf *RecordFile) acquireFreePage() (*page.PinnedPage, error) {
	rf.headerMu.Lock()
	defer rf.headerMu.Unlock()

	if rf.hdr.FirstFreePageNo == primitives.InvalidPageNumber {
		pinned, err := rf.pool.New(rf.fileID)
		if err != nil {
			return nil, fmt.Errorf("failed to allocate new page: %w", err)
		}
		InitDataPage(pinned.Data)
		rf.hdr.NumPages++
		rf.hdr.FirstFreePageNo = pinned.ID.PageNo
		if err := rf.persistHeader(); err != nil {
			_ = rf.pool.Unpin(rf.fileID, pinned.ID.PageNo, true)
			return nil, err
		}
		return pinned, nil
	}

	pinned, err := rf.pool.Fetch(rf.fileID, rf.hdr.FirstFreePageNo)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch free-chain head: %w", err)
	}
	return pinned, nil
}

// advanceFreeChainHead is called once a page transitions from having
// free slots to being full; it pops that page off the chain. Must be
// called with the page's bytes already reflecting the new state
// (next_free_page_no still intact) and before the page is unpinned.
func (rf *RecordFile) advanceFreeChainHead(dp *DataPage) error {
	rf.headerMu.Lock()
	defer rf.headerMu.Unlock()
	rf.hdr.FirstFreePageNo = dp.NextFreePageNo()
	return rf.persistHeader()
}

// pushFreeChainHead is called once a page transitions from full to
// having at least one free slot; it becomes the new chain head.
func (rf *RecordFile) pushFreeChainHead(dp *DataPage, pageNo primitives.PageNumber) error {
	rf.headerMu.Lock()
	defer rf.headerMu.Unlock()
	dp.SetNextFreePageNo(rf.hdr.FirstFreePageNo)
	rf.hdr.FirstFreePageNo = pageNo
	return rf.persistHeader()
}

// Get reads the record named by rid. It acquires table-IS and
// record-S when ctx carries a transaction and lock manager.
func (rf *RecordFile) Get(rid RecordId, ctx Context) ([]byte, error) {
	if ctx.locks() {
		if err := ctx.LockMgr.LockISOnTable(ctx.Txn.ID(), rf.fileID); err != nil {
			return nil, err
		}
		if err := ctx.LockMgr.LockSOnRecord(ctx.Txn.ID(), rf.fileID, rid); err != nil {
			return nil, err
		}
	}

	hdr := rf.Header()
	if !rid.Valid(hdr) {
		return nil, dberr.PageNotExists("Get", fmt.Sprintf("rid %s out of range for file %s", rid, rf.name))
	}

	pinned, err := rf.pool.Fetch(rf.fileID, rid.PageNo)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch page %d: %w", rid.PageNo, err)
	}
	dp := WrapDataPage(pinned.Data)

	if !dp.IsOccupied(uint32(rid.SlotNo)) {
		_ = rf.pool.Unpin(rf.fileID, rid.PageNo, false)
		return nil, dberr.RecordNotFound("Get", fmt.Sprintf("no record at %s in %s", rid, rf.name))
	}

	record := dp.ReadSlot(hdr, uint32(rid.SlotNo))
	if err := rf.pool.Unpin(rf.fileID, rid.PageNo, false); err != nil {
		return nil, err
	}
	return record, nil
}

// Insert writes a new record and returns its assigned rid. It
// acquires table-IX when ctx carries a transaction and lock manager,
// and appends an INSERT write record if the transaction is GROWING.
func (rf *RecordFile) Insert(data []byte, ctx Context) (RecordId, error) {
	if ctx.locks() {
		if err := ctx.LockMgr.LockIXOnTable(ctx.Txn.ID(), rf.fileID); err != nil {
			return RecordId{}, err
		}
	}

	hdr := rf.Header()
	if uint32(len(data)) != hdr.RecordSize {
		return RecordId{}, fmt.Errorf("record length %d does not match record size %d", len(data), hdr.RecordSize)
	}

	pinned, err := rf.acquireFreePage()
	if err != nil {
		return RecordId{}, err
	}
	pageNo := pinned.ID.PageNo
	dp := WrapDataPage(pinned.Data)

	slot, ok := dp.FirstClearBit(hdr)
	if !ok {
		_ = rf.pool.Unpin(rf.fileID, pageNo, false)
		return RecordId{}, dberr.InternalError("Insert", "RecordFile", fmt.Sprintf("free-chain head %d has no clear bit", pageNo))
	}

	if err := dp.Occupy(hdr, slot, data); err != nil {
		_ = rf.pool.Unpin(rf.fileID, pageNo, false)
		return RecordId{}, err
	}

	if dp.NumRecords() == hdr.NumRecordsPerPage {
		if err := rf.advanceFreeChainHead(dp); err != nil {
			_ = rf.pool.Unpin(rf.fileID, pageNo, true)
			return RecordId{}, err
		}
	}

	if err := rf.pool.Unpin(rf.fileID, pageNo, true); err != nil {
		return RecordId{}, err
	}

	rid := RecordId{PageNo: pageNo, SlotNo: primitives.SlotNumber(slot)}
	if ctx.records() {
		ctx.Txn.RecordWrite(WriteInsert, rf.name, rid, nil)
	}
	return rid, nil
}

// InsertAt writes data into the exact slot named by rid, required for
// undoing a DELETE. It never acquires locks and never records an
// undo entry; it is an internal-only operation intended to be driven
// from the transaction manager's abort path.
func (rf *RecordFile) InsertAt(rid RecordId, data []byte) error {
	hdr := rf.Header()
	if !rid.Valid(hdr) {
		return dberr.PageNotExists("InsertAt", fmt.Sprintf("rid %s out of range for file %s", rid, rf.name))
	}
	if uint32(len(data)) != hdr.RecordSize {
		return fmt.Errorf("record length %d does not match record size %d", len(data), hdr.RecordSize)
	}

	pinned, err := rf.pool.Fetch(rf.fileID, rid.PageNo)
	if err != nil {
		return fmt.Errorf("failed to fetch page %d: %w", rid.PageNo, err)
	}
	dp := WrapDataPage(pinned.Data)

	if dp.IsOccupied(uint32(rid.SlotNo)) {
		_ = rf.pool.Unpin(rf.fileID, rid.PageNo, false)
		return dberr.InternalError("InsertAt", "RecordFile", fmt.Sprintf("slot %s already occupied", rid))
	}

	wasFull := dp.NumRecords() == hdr.NumRecordsPerPage
	if err := dp.Occupy(hdr, uint32(rid.SlotNo), data); err != nil {
		_ = rf.pool.Unpin(rf.fileID, rid.PageNo, false)
		return err
	}

	// insert_at is only ever used to undo a prior delete, which by
	// construction already restored the page's free-chain membership;
	// the only maintenance owed here is the symmetric case where that
	// delete's chain push made this page the head and filling its last
	// slot pops it again.
	becameFull := !wasFull && dp.NumRecords() == hdr.NumRecordsPerPage
	isChainHead := rf.Header().FirstFreePageNo == rid.PageNo
	if becameFull && isChainHead {
		if err := rf.advanceFreeChainHead(dp); err != nil {
			_ = rf.pool.Unpin(rf.fileID, rid.PageNo, true)
			return err
		}
	}

	return rf.pool.Unpin(rf.fileID, rid.PageNo, true)
}

// Delete removes the record named by rid, acquiring table-IX and
// record-X, and appends a DELETE write record (with the before image)
// if the transaction is GROWING.
func (rf *RecordFile) Delete(rid RecordId, ctx Context) error {
	if ctx.locks() {
		if err := ctx.LockMgr.LockIXOnTable(ctx.Txn.ID(), rf.fileID); err != nil {
			return err
		}
		if err := ctx.LockMgr.LockXOnRecord(ctx.Txn.ID(), rf.fileID, rid); err != nil {
			return err
		}
	}

	hdr := rf.Header()
	if !rid.Valid(hdr) {
		return dberr.PageNotExists("Delete", fmt.Sprintf("rid %s out of range for file %s", rid, rf.name))
	}

	pinned, err := rf.pool.Fetch(rf.fileID, rid.PageNo)
	if err != nil {
		return fmt.Errorf("failed to fetch page %d: %w", rid.PageNo, err)
	}
	dp := WrapDataPage(pinned.Data)

	if !dp.IsOccupied(uint32(rid.SlotNo)) {
		_ = rf.pool.Unpin(rf.fileID, rid.PageNo, false)
		return dberr.RecordNotFound("Delete", fmt.Sprintf("no record at %s in %s", rid, rf.name))
	}

	beforeImage := dp.ReadSlot(hdr, uint32(rid.SlotNo))
	wasFull := dp.NumRecords() == hdr.NumRecordsPerPage
	dp.Vacate(uint32(rid.SlotNo))

	if wasFull {
		if err := rf.pushFreeChainHead(dp, rid.PageNo); err != nil {
			_ = rf.pool.Unpin(rf.fileID, rid.PageNo, true)
			return err
		}
	}

	if err := rf.pool.Unpin(rf.fileID, rid.PageNo, true); err != nil {
		return err
	}

	if ctx.records() {
		ctx.Txn.RecordWrite(WriteDelete, rf.name, rid, beforeImage)
	}
	return nil
}

// Update overwrites the record named by rid, acquiring table-IX and
// record-X, and appends an UPDATE write record (with the before
// image) if the transaction is GROWING.
func (rf *RecordFile) Update(rid RecordId, data []byte, ctx Context) error {
	if ctx.locks() {
		if err := ctx.LockMgr.LockIXOnTable(ctx.Txn.ID(), rf.fileID); err != nil {
			return err
		}
		if err := ctx.LockMgr.LockXOnRecord(ctx.Txn.ID(), rf.fileID, rid); err != nil {
			return err
		}
	}

	hdr := rf.Header()
	if !rid.Valid(hdr) {
		return dberr.PageNotExists("Update", fmt.Sprintf("rid %s out of range for file %s", rid, rf.name))
	}
	if uint32(len(data)) != hdr.RecordSize {
		return fmt.Errorf("record length %d does not match record size %d", len(data), hdr.RecordSize)
	}

	pinned, err := rf.pool.Fetch(rf.fileID, rid.PageNo)
	if err != nil {
		return fmt.Errorf("failed to fetch page %d: %w", rid.PageNo, err)
	}
	dp := WrapDataPage(pinned.Data)

	if !dp.IsOccupied(uint32(rid.SlotNo)) {
		_ = rf.pool.Unpin(rf.fileID, rid.PageNo, false)
		return dberr.RecordNotFound("Update", fmt.Sprintf("no record at %s in %s", rid, rf.name))
	}

	beforeImage := dp.ReadSlot(hdr, uint32(rid.SlotNo))
	if err := dp.WriteSlot(hdr, uint32(rid.SlotNo), data); err != nil {
		_ = rf.pool.Unpin(rf.fileID, rid.PageNo, false)
		return err
	}

	if err := rf.pool.Unpin(rf.fileID, rid.PageNo, true); err != nil {
		return err
	}

	if ctx.records() {
		ctx.Txn.RecordWrite(WriteUpdate, rf.name, rid, beforeImage)
	}
	return nil
}
