package heap

import "storemy/pkg/primitives"

// WriteKind identifies which inverse operation undoes a WriteRecord.
type WriteKind int

const (
	WriteInsert WriteKind = iota
	WriteDelete
	WriteUpdate
)

func (k WriteKind) String() string {
	switch k {
	case WriteInsert:
		return "INSERT"
	case WriteDelete:
		return "DELETE"
	case WriteUpdate:
		return "UPDATE"
	default:
		return "UNKNOWN"
	}
}

// Txn is the slice of a transaction's identity and state the record
// manager needs: whether it may still append undo entries, and where
// to append them. The concrete transaction type lives in the
// concurrency/transaction package and satisfies this interface
// structurally, so this package never imports it.
type Txn interface {
	ID() uint64
	IsGrowing() bool
	RecordWrite(kind WriteKind, tableName string, rid RecordId, beforeImage []byte)
}

// LockManager is the slice of lock-manager operations the record
// manager drives. The concrete lock manager satisfies this
// structurally.
type LockManager interface {
	LockISOnTable(txnID uint64, fileID primitives.FileID) error
	LockIXOnTable(txnID uint64, fileID primitives.FileID) error
	LockSOnRecord(txnID uint64, fileID primitives.FileID, rid RecordId) error
	LockXOnRecord(txnID uint64, fileID primitives.FileID, rid RecordId) error
}

// LogFlusher is the slice of the log manager the record manager's
// context carries. The record manager never calls it directly -- it
// is part of the {txn, lock_mgr, log_mgr} triple only so the
// transaction manager can gate undo/locking on the same Context type
// it uses for ordinary operations.
type LogFlusher interface {
	FlushToDisk(upTo primitives.LSN) error
}

// Context is passed into every record operation. A nil Txn is the
// undo pathway: it suppresses both locking and write-set recording,
// regardless of whether LockMgr/LogMgr are set.
type Context struct {
	Txn     Txn
	LockMgr LockManager
	LogMgr  LogFlusher
}

// Undo returns a context with no transaction, used by the
// transaction manager while replaying the write set during abort.
func Undo() Context {
	return Context{}
}

func (c Context) locks() bool {
	return c.Txn != nil && c.LockMgr != nil
}

func (c Context) records() bool {
	return c.Txn != nil && c.Txn.IsGrowing()
}
