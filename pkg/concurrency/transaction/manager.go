package transaction

import (
	"fmt"

	"storemy/pkg/concurrency/lock"
	dberr "storemy/pkg/error"
	"storemy/pkg/logging"
	"storemy/pkg/primitives"
	"storemy/pkg/storage/heap"
)

// LogFlusher is the durability collaborator the transaction manager
// drives at commit and abort: it reserves a marker LSN for the
// transaction's outcome and blocks until everything up to it is on
// disk. The core does not write per-record undo images to the log
// (there is no WAL of the undo image); this call exists purely to
// give commit its durability boundary.
type LogFlusher interface {
	Append(n int) primitives.LSN
	FlushToDisk(upTo primitives.LSN) error
}

// outcomeMarkerLen is the length reserved by the single COMMIT/ABORT
// marker Append records for a transaction's outcome. It must be
// nonzero: Append(0) never advances nextLSN, so FlushToDisk would see
// upTo equal to (or behind) the already-flushed watermark and skip the
// fsync entirely.
const outcomeMarkerLen = 1

// TableResolver looks a heap file up by the name it was registered
// under, so abort can dispatch inverse operations without the
// transaction manager holding heap files directly. The concrete
// resolver is the catalog collaborator; this package only needs the
// one method.
type TableResolver interface {
	Table(name string) (*heap.RecordFile, error)
}

// Manager owns the begin/commit/abort lifecycle and wires the
// registry, lock manager and catalog together the way the record
// manager expects.
type Manager struct {
	registry *Registry
	lockMgr  *lock.Manager
	tables   TableResolver
}

// NewManager builds a transaction manager over an existing registry,
// lock manager and table resolver.
func NewManager(registry *Registry, lockMgr *lock.Manager, tables TableResolver) *Manager {
	return &Manager{
		registry: registry,
		lockMgr:  lockMgr,
		tables:   tables,
	}
}

// Begin starts a transaction. If existing is non-nil it is reactivated
// in place (its id and any prior write set notwithstanding, its state
// is reset to GROWING and it is re-registered); otherwise a fresh
// transaction is allocated with the next id and timestamp.
func (m *Manager) Begin(existing *Transaction) (*Transaction, error) {
	if existing != nil {
		existing.setState(Growing)
		m.registry.readd(existing)
		m.lockMgr.Register(existing)
		return existing, nil
	}

	txn := m.registry.new()
	m.lockMgr.Register(txn)
	logging.WithTx(int(txn.ID())).Debug("transaction started")
	return txn, nil
}

// Commit ends txn successfully: it stops accepting new locks, releases
// everything it holds, waits for the durability boundary, and discards
// the write set -- there is nothing left to undo once committed.
func (m *Manager) Commit(txn *Transaction, logMgr LogFlusher) error {
	txn.setState(Shrinking)

	if err := m.lockMgr.ReleaseAll(txn); err != nil {
		return err
	}

	lsn := logMgr.Append(outcomeMarkerLen)
	if err := logMgr.FlushToDisk(lsn + outcomeMarkerLen); err != nil {
		return fmt.Errorf("commit: failed to flush log: %w", err)
	}

	txn.discardWriteSet()
	txn.setState(Committed)
	m.lockMgr.Unregister(txn.ID())
	m.registry.remove(txn.ID())
	logging.WithTx(int(txn.ID())).Debug("transaction committed")
	return nil
}

// Abort ends txn by undoing it: entering SHRINKING first is what stops
// the inverse operations below from being recorded against
// themselves, since the record manager only appends to the write set
// while GROWING. The write set is replayed in exact reverse order
// under a null-transaction context, so none of these calls acquire
// locks or append further undo entries.
func (m *Manager) Abort(txn *Transaction, logMgr LogFlusher) error {
	txn.setState(Shrinking)

	writeSet := txn.writeSetSnapshot()
	undoCtx := heap.Undo()
	for i := len(writeSet) - 1; i >= 0; i-- {
		wr := writeSet[i]
		table, err := m.tables.Table(wr.TableName)
		if err != nil {
			return dberr.InternalError("Abort", "TransactionManager",
				fmt.Sprintf("write set names unknown table %q: %v", wr.TableName, err))
		}

		switch wr.Kind {
		case heap.WriteInsert:
			err = table.Delete(wr.Rid, undoCtx)
		case heap.WriteDelete:
			err = table.InsertAt(wr.Rid, wr.BeforeImage)
		case heap.WriteUpdate:
			err = table.Update(wr.Rid, wr.BeforeImage, undoCtx)
		default:
			return dberr.InternalError("Abort", "TransactionManager",
				fmt.Sprintf("unknown write kind %v in write set", wr.Kind))
		}
		if err != nil {
			return fmt.Errorf("abort: failed to undo %s on %s: %w", wr.Kind, wr.Rid, err)
		}
	}

	if err := m.lockMgr.ReleaseAll(txn); err != nil {
		return err
	}

	lsn := logMgr.Append(outcomeMarkerLen)
	if err := logMgr.FlushToDisk(lsn + outcomeMarkerLen); err != nil {
		return fmt.Errorf("abort: failed to flush log: %w", err)
	}

	txn.discardWriteSet()
	txn.setState(Aborted)
	m.lockMgr.Unregister(txn.ID())
	m.registry.remove(txn.ID())
	logging.WithTx(int(txn.ID())).Debug("transaction aborted")
	return nil
}
