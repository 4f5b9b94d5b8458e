package transaction

import (
	"bytes"
	"testing"

	"storemy/pkg/concurrency/lock"
	dberr "storemy/pkg/error"
	"storemy/pkg/primitives"
	"storemy/pkg/storage/heap"
	"storemy/pkg/storage/page"
)

// fakePool is a minimal single-file buffer pool with no eviction, used
// to exercise the transaction manager without the real buffer pool or
// disk manager.
type fakePool struct {
	pages map[primitives.PageNumber][]byte
}

func newFakePool() *fakePool {
	return &fakePool{pages: make(map[primitives.PageNumber][]byte)}
}

func (p *fakePool) Fetch(fileID primitives.FileID, pageNo primitives.PageNumber) (*page.PinnedPage, error) {
	data, ok := p.pages[pageNo]
	if !ok {
		data = make([]byte, page.PageSize)
		p.pages[pageNo] = data
	}
	return &page.PinnedPage{ID: page.NewPageDescriptor(fileID, pageNo), Data: data}, nil
}

func (p *fakePool) New(fileID primitives.FileID) (*page.PinnedPage, error) {
	pageNo := primitives.PageNumber(len(p.pages))
	data := make([]byte, page.PageSize)
	p.pages[pageNo] = data
	return &page.PinnedPage{ID: page.NewPageDescriptor(fileID, pageNo), Data: data}, nil
}

func (p *fakePool) Unpin(fileID primitives.FileID, pageNo primitives.PageNumber, dirty bool) error {
	return nil
}

// fakeCatalog resolves table names to a fixed set of heap files, the
// role the real catalog collaborator plays for the transaction
// manager's abort path.
type fakeCatalog struct {
	tables map[string]*heap.RecordFile
}

func (c *fakeCatalog) Table(name string) (*heap.RecordFile, error) {
	rf, ok := c.tables[name]
	if !ok {
		return nil, dberr.TableNotFound(name)
	}
	return rf, nil
}

// fakeLog counts flush calls without touching disk.
type fakeLog struct {
	nextLSN primitives.LSN
	flushed primitives.LSN
}

func (l *fakeLog) Append(n int) primitives.LSN {
	lsn := l.nextLSN
	l.nextLSN += primitives.LSN(n) + 1
	return lsn
}

func (l *fakeLog) FlushToDisk(upTo primitives.LSN) error {
	l.flushed = upTo
	return nil
}

func newHarness(t *testing.T, recordSize uint32) (*Manager, *lock.Manager, *heap.RecordFile) {
	t.Helper()
	pool := newFakePool()
	rf, err := heap.CreateRecordFile(1, "widgets", pool, recordSize)
	if err != nil {
		t.Fatalf("CreateRecordFile: %v", err)
	}
	catalog := &fakeCatalog{tables: map[string]*heap.RecordFile{"widgets": rf}}
	registry := NewRegistry()
	lockMgr := lock.NewManager()
	mgr := NewManager(registry, lockMgr, catalog)
	return mgr, lockMgr, rf
}

func ctxFor(lockMgr *lock.Manager, txn *Transaction) heap.Context {
	return heap.Context{Txn: txn, LockMgr: lockMgr}
}

// TestManager_InsertGetCommit is scenario S1: insert then commit leaves
// the record visible and the lock released.
func TestManager_InsertGetCommit(t *testing.T) {
	mgr, lockMgr, rf := newHarness(t, 8)

	txn, err := mgr.Begin(nil)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	ctx := ctxFor(lockMgr, txn)

	rid, err := rf.Insert([]byte("ABCDEFGH"), ctx)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if rid.PageNo != 1 || rid.SlotNo != 0 {
		t.Fatalf("expected rid (1,0), got %s", rid)
	}

	got, err := rf.Get(rid, ctx)
	if err != nil || !bytes.Equal(got, []byte("ABCDEFGH")) {
		t.Fatalf("Get after insert: %v %q", err, got)
	}

	log := &fakeLog{}
	if err := mgr.Commit(txn, log); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if txn.State() != Committed {
		t.Errorf("expected COMMITTED, got %s", txn.State())
	}
	if len(txn.LockSet()) != 0 {
		t.Errorf("expected empty lock set after commit")
	}
}

// TestManager_AbortRestoresDeletedRow is scenario S2.
func TestManager_AbortRestoresDeletedRow(t *testing.T) {
	mgr, lockMgr, rf := newHarness(t, 8)

	t1, _ := mgr.Begin(nil)
	rid, err := rf.Insert([]byte("XXXXXXXX"), ctxFor(lockMgr, t1))
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := mgr.Commit(t1, &fakeLog{}); err != nil {
		t.Fatalf("commit t1: %v", err)
	}

	t2, _ := mgr.Begin(nil)
	if err := rf.Delete(rid, ctxFor(lockMgr, t2)); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := mgr.Abort(t2, &fakeLog{}); err != nil {
		t.Fatalf("Abort: %v", err)
	}

	t3, _ := mgr.Begin(nil)
	got, err := rf.Get(rid, ctxFor(lockMgr, t3))
	if err != nil {
		t.Fatalf("Get after abort: %v", err)
	}
	if !bytes.Equal(got, []byte("XXXXXXXX")) {
		t.Errorf("expected restored record, got %q", got)
	}
}

// TestManager_AbortOrdering is scenario S7: insert, update, delete,
// then abort must replay delete^-1, update^-1, insert^-1 in that
// order, leaving no trace of the record.
func TestManager_AbortOrdering(t *testing.T) {
	mgr, lockMgr, rf := newHarness(t, 8)

	txn, _ := mgr.Begin(nil)
	ctx := ctxFor(lockMgr, txn)

	rid, err := rf.Insert([]byte("AAAAAAAA"), ctx)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := rf.Update(rid, []byte("BBBBBBBB"), ctx); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := rf.Delete(rid, ctx); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if err := mgr.Abort(txn, &fakeLog{}); err != nil {
		t.Fatalf("Abort: %v", err)
	}

	txn2, _ := mgr.Begin(nil)
	_, err = rf.Get(rid, ctxFor(lockMgr, txn2))
	if err == nil {
		t.Fatalf("expected the record to be absent after abort, but Get succeeded")
	}
	if _, ok := dberr.AbortReasonOf(err); ok {
		t.Fatalf("expected RecordNotFound, not a transaction abort: %v", err)
	}
}

// TestManager_LockOnShrinkingAborts is scenario S3: releasing a lock
// then requesting a new one raises LockOnShrinking.
func TestManager_LockOnShrinkingAborts(t *testing.T) {
	lockMgr := lock.NewManager()
	registry := NewRegistry()
	mgr := NewManager(registry, lockMgr, &fakeCatalog{tables: map[string]*heap.RecordFile{}})

	txn, _ := mgr.Begin(nil)
	obj := lock.TableObjectId(1)
	if err := lockMgr.Acquire(txn, obj, lock.S); err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if err := lockMgr.Release(txn, obj); err != nil {
		t.Fatalf("release: %v", err)
	}

	err := lockMgr.Acquire(txn, obj, lock.S)
	reason, ok := dberr.AbortReasonOf(err)
	if !ok || reason != dberr.ReasonLockOnShrinking {
		t.Fatalf("expected ReasonLockOnShrinking, got %v", err)
	}
}
