// Package shell wires the record manager, lock manager, transaction
// manager, buffer pool, disk manager, and catalog into a single
// interactive session, and renders that session as a terminal UI. It
// is a client of the core, exactly like any other executor would be:
// it never touches page bytes, bitmaps, or the lock table directly.
package shell

import (
	"fmt"
	"strconv"
	"strings"

	"storemy/pkg/concurrency/lock"
	"storemy/pkg/concurrency/transaction"
	logmgr "storemy/pkg/log"
	"storemy/pkg/memory"
	"storemy/pkg/primitives"
	"storemy/pkg/storage/heap"
	"storemy/pkg/storage/page"
)

// Engine is the single-transaction-at-a-time session a shell command
// line drives. One Engine corresponds to one client connection.
type Engine struct {
	catalog *memory.Catalog
	locks   *lock.Manager
	txns    *transaction.Manager
	log     *logmgr.Manager

	current *transaction.Transaction
	table   string
}

// NewEngine assembles a full stack with a buffer pool of poolCapacity
// pages and a log manager over the log file at logPath.
func NewEngine(logPath string, poolCapacity int) (*Engine, error) {
	disk := page.NewDiskManager()
	pool := memory.NewPool(disk, poolCapacity)
	catalog := memory.NewCatalog(disk, pool)
	locks := lock.NewManager()
	registry := transaction.NewRegistry()
	txns := transaction.NewManager(registry, locks, catalog)

	logMgr, err := logmgr.NewManager(logPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open log at %s: %w", logPath, err)
	}

	return &Engine{catalog: catalog, locks: locks, txns: txns, log: logMgr}, nil
}

// CreateTable creates a table for the shell to operate on, if it does
// not already exist.
func (e *Engine) CreateTable(name, path string, recordSize uint32) error {
	if e.catalog.TableExists(name) {
		return nil
	}
	_, err := e.catalog.CreateTable(name, path, recordSize)
	return err
}

func (e *Engine) context() heap.Context {
	if e.current == nil {
		return heap.Context{}
	}
	return heap.Context{Txn: e.current, LockMgr: e.locks, LogMgr: e.log}
}

// Status summarizes the current transaction for the status bar.
type Status struct {
	Active   bool
	ID       uint64
	State    string
	NumLocks int
}

func (e *Engine) Status() Status {
	if e.current == nil {
		return Status{}
	}
	return Status{
		Active:   true,
		ID:       e.current.ID(),
		State:    e.current.State().String(),
		NumLocks: len(e.current.LockSet()),
	}
}

// Run executes one line of shell input and returns the text to
// append to the session transcript.
func (e *Engine) Run(line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ""
	}

	switch strings.ToLower(fields[0]) {
	case "begin":
		txn, err := e.txns.Begin(nil)
		if err != nil {
			return errLine(err)
		}
		e.current = txn
		return fmt.Sprintf("transaction %d started", txn.ID())

	case "table":
		if len(fields) != 2 {
			return errLine(fmt.Errorf("usage: table <name>"))
		}
		e.table = fields[1]
		return fmt.Sprintf("using table %q", e.table)

	case "insert":
		return e.runInsert(strings.TrimSpace(strings.TrimPrefix(line, fields[0])))

	case "get":
		return e.runGet(fields[1:])

	case "delete":
		return e.runDelete(fields[1:])

	case "update":
		return e.runUpdate(fields[1:], line)

	case "commit":
		return e.runCommit()

	case "abort":
		return e.runAbort()

	default:
		return errLine(fmt.Errorf("unrecognized command %q", fields[0]))
	}
}

func (e *Engine) runInsert(payload string) string {
	rf, err := e.requireTable()
	if err != nil {
		return errLine(err)
	}
	rid, err := rf.Insert([]byte(payload), e.context())
	if err != nil {
		return errLine(err)
	}
	return fmt.Sprintf("inserted at %s", rid)
}

func (e *Engine) runGet(args []string) string {
	rf, err := e.requireTable()
	if err != nil {
		return errLine(err)
	}
	rid, err := parseRid(args)
	if err != nil {
		return errLine(err)
	}
	data, err := rf.Get(rid, e.context())
	if err != nil {
		return errLine(err)
	}
	return fmt.Sprintf("%s = %q", rid, data)
}

func (e *Engine) runDelete(args []string) string {
	rf, err := e.requireTable()
	if err != nil {
		return errLine(err)
	}
	rid, err := parseRid(args)
	if err != nil {
		return errLine(err)
	}
	if err := rf.Delete(rid, e.context()); err != nil {
		return errLine(err)
	}
	return fmt.Sprintf("deleted %s", rid)
}

func (e *Engine) runUpdate(args []string, line string) string {
	rf, err := e.requireTable()
	if err != nil {
		return errLine(err)
	}
	if len(args) < 3 {
		return errLine(fmt.Errorf("usage: update <page> <slot> <payload>"))
	}
	rid, err := parseRid(args[:2])
	if err != nil {
		return errLine(err)
	}
	parts := strings.SplitN(line, " ", 4)
	if len(parts) != 4 {
		return errLine(fmt.Errorf("usage: update <page> <slot> <payload>"))
	}
	if err := rf.Update(rid, []byte(parts[3]), e.context()); err != nil {
		return errLine(err)
	}
	return fmt.Sprintf("updated %s", rid)
}

func (e *Engine) runCommit() string {
	if e.current == nil {
		return errLine(fmt.Errorf("no active transaction"))
	}
	txn := e.current
	e.current = nil
	if err := e.txns.Commit(txn, e.log); err != nil {
		return errLine(err)
	}
	return fmt.Sprintf("transaction %d committed", txn.ID())
}

func (e *Engine) runAbort() string {
	if e.current == nil {
		return errLine(fmt.Errorf("no active transaction"))
	}
	txn := e.current
	e.current = nil
	if err := e.txns.Abort(txn, e.log); err != nil {
		return errLine(err)
	}
	return fmt.Sprintf("transaction %d aborted", txn.ID())
}

func (e *Engine) requireTable() (*heap.RecordFile, error) {
	if e.current == nil {
		return nil, fmt.Errorf("no active transaction; run 'begin' first")
	}
	if e.table == "" {
		return nil, fmt.Errorf("no table selected; run 'table <name>' first")
	}
	return e.catalog.Table(e.table)
}

func parseRid(args []string) (heap.RecordId, error) {
	if len(args) != 2 {
		return heap.RecordId{}, fmt.Errorf("usage: <page> <slot>")
	}
	pageNo, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return heap.RecordId{}, fmt.Errorf("bad page number %q", args[0])
	}
	slotNo, err := strconv.ParseUint(args[1], 10, 32)
	if err != nil {
		return heap.RecordId{}, fmt.Errorf("bad slot number %q", args[1])
	}
	return heap.RecordId{
		PageNo: primitives.PageNumber(pageNo),
		SlotNo: primitives.SlotNumber(slotNo),
	}, nil
}

func errLine(err error) string {
	return fmt.Sprintf("error: %v", err)
}
