package lock

import (
	"fmt"
	"sync"

	dberr "storemy/pkg/error"
	"storemy/pkg/logging"
	"storemy/pkg/primitives"
	"storemy/pkg/storage/heap"
)

// Phase is the two states of a transaction that the lock table itself
// needs to distinguish. It intentionally does not mirror the full
// transaction lifecycle (COMMITTED/ABORTED are irrelevant here: a
// finished transaction is unregistered, not left in the table).
type Phase int

const (
	Growing Phase = iota
	Shrinking
)

// TxnRef is what the lock manager needs from a transaction in order to
// run the acquire/release algorithm: its identity, its growing/
// shrinking phase, and its lock set. The concrete transaction type
// (concurrency/transaction) implements this and registers itself with
// the manager at BEGIN.
type TxnRef interface {
	ID() uint64
	Phase() Phase
	BeginShrinking()
	AddLock(obj ObjectId)
	RemoveLock(obj ObjectId)
	LockSet() []ObjectId
}

// Manager is the lock manager: a lock table keyed by ObjectId, plus a
// registry mapping the numeric transaction ids the record manager
// deals in back to the full TxnRef the acquire/release algorithm
// operates on. This is what lets heap.LockManager's convenience
// methods take a bare txnID while Acquire/Release still get to check
// txn.state and mutate txn.lock_set.
type Manager struct {
	table *Table

	regMu sync.RWMutex
	txns  map[uint64]TxnRef
}

// NewManager builds an empty lock manager.
func NewManager() *Manager {
	return &Manager{
		table: newTable(),
		txns:  make(map[uint64]TxnRef),
	}
}

// Register makes txn visible to the manager under its own id. The
// transaction manager calls this at BEGIN.
func (m *Manager) Register(txn TxnRef) {
	m.regMu.Lock()
	defer m.regMu.Unlock()
	m.txns[txn.ID()] = txn
}

// Unregister drops txn from the registry. The transaction manager
// calls this once COMMIT/ABORT has released every lock the
// transaction held.
func (m *Manager) Unregister(txnID uint64) {
	m.regMu.Lock()
	defer m.regMu.Unlock()
	delete(m.txns, txnID)
}

func (m *Manager) lookup(txnID uint64) (TxnRef, error) {
	m.regMu.RLock()
	defer m.regMu.RUnlock()
	txn, ok := m.txns[txnID]
	if !ok {
		return nil, fmt.Errorf("lock manager: transaction %d is not registered", txnID)
	}
	return txn, nil
}

// Acquire runs the full acquire algorithm for txn requesting mode on
// obj:
//
//  1. A nil txn is the trusted-internal (undo) pathway: succeed
//     immediately without touching the table.
//  2. A transaction past GROWING may never acquire a new lock.
//  3. If txn already holds a granted mode on obj, combine it with the
//     request via the object's upgrade lattice; if the combined mode
//     is unrepresentable, or conflicts with what other transactions
//     hold, abort with UpgradeConflict.
//  4. Otherwise this is a fresh request: grant it only if compatible
//     with every other transaction's granted mode on obj, else abort
//     with DeadlockPrevention -- there is no waiting.
func (m *Manager) Acquire(txn TxnRef, obj ObjectId, mode Mode) error {
	if txn == nil {
		return nil
	}
	if txn.Phase() == Shrinking {
		logging.WithLock(int(txn.ID()), obj.String()).Debug("lock request denied, transaction shrinking", "mode", mode)
		return dberr.TransactionAbort(dberr.ReasonLockOnShrinking, "Acquire",
			fmt.Sprintf("txn %d requested %s on %s after entering the shrinking phase", txn.ID(), mode, obj))
	}

	var result error
	m.table.withQueue(obj, func(q Queue) Queue {
		if existing := q.find(txn.ID()); existing != nil && existing.Granted {
			combined, ok := combine(obj.Kind, existing.Mode, mode)
			if !ok {
				logging.WithLock(int(txn.ID()), obj.String()).Debug("upgrade conflict, modes cannot combine",
					"held", existing.Mode, "requested", mode)
				result = dberr.TransactionAbort(dberr.ReasonUpgradeConflict, "Acquire",
					fmt.Sprintf("txn %d cannot combine held %s with requested %s on %s", txn.ID(), existing.Mode, mode, obj))
				return q
			}
			if combined == existing.Mode {
				return q
			}
			if !compatibleWithAll(q.grantedModes(txn.ID()), combined) {
				logging.WithLock(int(txn.ID()), obj.String()).Debug("upgrade conflict, combined mode incompatible with another holder",
					"combined", combined)
				result = dberr.TransactionAbort(dberr.ReasonUpgradeConflict, "Acquire",
					fmt.Sprintf("txn %d upgrade to %s on %s conflicts with another holder", txn.ID(), combined, obj))
				return q
			}
			existing.Mode = combined
			return q
		}

		if !compatibleWithAll(q.grantedModes(txn.ID()), mode) {
			logging.WithLock(int(txn.ID()), obj.String()).Debug("deadlock prevention, request incompatible with another holder",
				"mode", mode)
			result = dberr.TransactionAbort(dberr.ReasonDeadlockPrevention, "Acquire",
				fmt.Sprintf("txn %d request for %s on %s conflicts with another holder", txn.ID(), mode, obj))
			return q
		}
		q = append(q, &Request{TxnID: txn.ID(), Mode: mode, Granted: true})
		return q
	})

	if result != nil {
		return result
	}
	txn.AddLock(obj)
	return nil
}

func combine(kind ObjectKind, cur, req Mode) (Mode, bool) {
	if kind == RecordObject {
		return combineRecord(cur, req)
	}
	return combineTable(cur, req)
}

// Release drops every request txn holds on obj, and transitions txn
// from GROWING to SHRINKING if it had not already left the growing
// phase -- releasing any lock ends two-phase growth.
func (m *Manager) Release(txn TxnRef, obj ObjectId) error {
	if txn == nil {
		return nil
	}
	m.table.withQueue(obj, func(q Queue) Queue {
		out, _ := q.removeAll(txn.ID())
		return out
	})
	txn.RemoveLock(obj)
	if txn.Phase() == Growing {
		txn.BeginShrinking()
	}
	return nil
}

// ReleaseAll releases every lock in txn's lock set, iterating a
// snapshot so it is safe against Release mutating the set as it goes.
func (m *Manager) ReleaseAll(txn TxnRef) error {
	if txn == nil {
		return nil
	}
	for _, obj := range txn.LockSet() {
		if err := m.Release(txn, obj); err != nil {
			return err
		}
	}
	return nil
}

// acquireByID resolves txnID to its registered TxnRef and runs Acquire
// against it. This is the bridge the six convenience operations and
// heap.LockManager's methods dispatch through.
func (m *Manager) acquireByID(txnID uint64, obj ObjectId, mode Mode) error {
	txn, err := m.lookup(txnID)
	if err != nil {
		return err
	}
	return m.Acquire(txn, obj, mode)
}

// ReleaseByID resolves txnID and releases every lock it holds. Used by
// the transaction manager at COMMIT/ABORT before Unregister.
func (m *Manager) ReleaseByID(txnID uint64) error {
	txn, err := m.lookup(txnID)
	if err != nil {
		return err
	}
	return m.ReleaseAll(txn)
}

// The six convenience dispatch operations. LockISOnTable, LockIXOnTable,
// LockSOnRecord and LockXOnRecord additionally make *Manager satisfy
// heap.LockManager.

func (m *Manager) LockISOnTable(txnID uint64, fileID primitives.FileID) error {
	return m.acquireByID(txnID, TableObjectId(fileID), IS)
}

func (m *Manager) LockIXOnTable(txnID uint64, fileID primitives.FileID) error {
	return m.acquireByID(txnID, TableObjectId(fileID), IX)
}

func (m *Manager) LockSOnTable(txnID uint64, fileID primitives.FileID) error {
	return m.acquireByID(txnID, TableObjectId(fileID), S)
}

func (m *Manager) LockXOnTable(txnID uint64, fileID primitives.FileID) error {
	return m.acquireByID(txnID, TableObjectId(fileID), X)
}

func (m *Manager) LockSOnRecord(txnID uint64, fileID primitives.FileID, rid heap.RecordId) error {
	return m.acquireByID(txnID, RecordObjectId(fileID, rid), S)
}

func (m *Manager) LockXOnRecord(txnID uint64, fileID primitives.FileID, rid heap.RecordId) error {
	return m.acquireByID(txnID, RecordObjectId(fileID, rid), X)
}

var _ heap.LockManager = (*Manager)(nil)
