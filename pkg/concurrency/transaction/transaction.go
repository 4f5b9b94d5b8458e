// Package transaction implements strict two-phase locking transaction
// lifecycle management: begin/commit/abort, an in-memory undo log kept
// as a write set, and the registry those operations are tracked
// through.
package transaction

import (
	"fmt"
	"sync"
	"time"

	"storemy/pkg/concurrency/lock"
	"storemy/pkg/storage/heap"
)

// State is a transaction's position in the strict two-phase locking
// lifecycle: GROWING while it may still acquire locks and append to
// its write set, SHRINKING once the first lock has been released (or
// abort has begun), then COMMITTED or ABORTED once its resources are
// released and it has been erased from the registry.
type State int

const (
	Growing State = iota
	Shrinking
	Committed
	Aborted
)

func (s State) String() string {
	switch s {
	case Growing:
		return "GROWING"
	case Shrinking:
		return "SHRINKING"
	case Committed:
		return "COMMITTED"
	case Aborted:
		return "ABORTED"
	default:
		return "UNKNOWN"
	}
}

// WriteRecord is one entry in a transaction's undo log: enough to
// invert the operation it describes without consulting the heap file
// again. before_image is nil for INSERT, since undoing an insert only
// needs the rid.
type WriteRecord struct {
	Kind        heap.WriteKind
	TableName   string
	Rid         heap.RecordId
	BeforeImage []byte
}

// Transaction is the unit of atomicity and isolation. Its id is unique
// for the process lifetime; its timestamp is assigned once at BEGIN
// and never reused, giving a total order over transactions for any
// caller that wants one (e.g. diagnostics) without this package
// implementing MVCC.
type Transaction struct {
	id        uint64
	timestamp uint64
	startedAt time.Time

	mu       sync.RWMutex
	state    State
	writeSet []WriteRecord
	lockSet  map[lock.ObjectId]struct{}
}

func newTransaction(id, timestamp uint64) *Transaction {
	return &Transaction{
		id:        id,
		timestamp: timestamp,
		startedAt: time.Now(),
		state:     Growing,
		lockSet:   make(map[lock.ObjectId]struct{}),
	}
}

// ID returns the transaction's unique identifier.
func (t *Transaction) ID() uint64 { return t.id }

// Timestamp returns the transaction's assignment-order timestamp.
func (t *Transaction) Timestamp() uint64 { return t.timestamp }

func (t *Transaction) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

func (t *Transaction) setState(s State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = s
}

// IsGrowing reports whether the transaction may still acquire locks
// and append to its write set. It satisfies heap.Txn.
func (t *Transaction) IsGrowing() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state == Growing
}

// Phase reports the transaction's growing/shrinking status for the
// lock manager. It satisfies lock.TxnRef.
func (t *Transaction) Phase() lock.Phase {
	if t.IsGrowing() {
		return lock.Growing
	}
	return lock.Shrinking
}

// BeginShrinking is called by the lock manager the first time it
// releases one of this transaction's locks; it satisfies lock.TxnRef.
func (t *Transaction) BeginShrinking() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == Growing {
		t.state = Shrinking
	}
}

// AddLock records that obj was granted to this transaction. It
// satisfies lock.TxnRef.
func (t *Transaction) AddLock(obj lock.ObjectId) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lockSet[obj] = struct{}{}
}

// RemoveLock drops obj from this transaction's lock set. It satisfies
// lock.TxnRef.
func (t *Transaction) RemoveLock(obj lock.ObjectId) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.lockSet, obj)
}

// LockSet returns a snapshot of the objects this transaction currently
// holds a granted lock on. It satisfies lock.TxnRef; callers driving a
// mass release must snapshot before iterating, since Release mutates
// the underlying set as it goes.
func (t *Transaction) LockSet() []lock.ObjectId {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]lock.ObjectId, 0, len(t.lockSet))
	for obj := range t.lockSet {
		out = append(out, obj)
	}
	return out
}

// RecordWrite appends an undo entry to the write set. It is a no-op
// once the transaction has left GROWING, which is precisely the
// mechanism that stops abort's inverse operations from being recorded
// against themselves. It satisfies heap.Txn.
func (t *Transaction) RecordWrite(kind heap.WriteKind, tableName string, rid heap.RecordId, beforeImage []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Growing {
		return
	}
	t.writeSet = append(t.writeSet, WriteRecord{
		Kind:        kind,
		TableName:   tableName,
		Rid:         rid,
		BeforeImage: beforeImage,
	})
}

// writeSetSnapshot returns the write set for the transaction manager
// to replay during abort. It is not exported: only the transaction
// manager that owns this transaction's lifecycle should ever walk it.
func (t *Transaction) writeSetSnapshot() []WriteRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]WriteRecord, len(t.writeSet))
	copy(out, t.writeSet)
	return out
}

func (t *Transaction) discardWriteSet() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writeSet = nil
}

func (t *Transaction) String() string {
	return fmt.Sprintf("Txn(%d, ts=%d, state=%s)", t.id, t.timestamp, t.State())
}

var (
	_ heap.Txn   = (*Transaction)(nil)
	_ lock.TxnRef = (*Transaction)(nil)
)
