package memory

import (
	"fmt"
	"sync"

	dberr "storemy/pkg/error"
	"storemy/pkg/primitives"
	"storemy/pkg/storage/heap"
	"storemy/pkg/storage/page"
)

// Catalog is the external table-name collaborator the record and
// transaction managers are driven through: it maps a table name to
// its open heap file, and is the source of TableNotFound/TableExists
// for the executor.
type Catalog struct {
	mu     sync.RWMutex
	disk   *page.DiskManager
	pool   *Pool
	tables map[string]*heap.RecordFile
}

// NewCatalog builds an empty catalog over the given disk manager and
// buffer pool; every table it creates is opened through them.
func NewCatalog(disk *page.DiskManager, pool *Pool) *Catalog {
	return &Catalog{disk: disk, pool: pool, tables: make(map[string]*heap.RecordFile)}
}

// CreateTable creates a brand-new heap file at path, registers it
// under name with the given fixed record size, and returns its handle.
func (c *Catalog) CreateTable(name, path string, recordSize uint32) (*heap.RecordFile, error) {
	if name == "" {
		return nil, fmt.Errorf("table name cannot be empty")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.tables[name]; exists {
		return nil, dberr.TableExists(name)
	}

	fileID, err := c.disk.CreateFile(primitives.Filepath(path))
	if err != nil {
		return nil, fmt.Errorf("create table %q: %w", name, err)
	}

	rf, err := heap.CreateRecordFile(fileID, name, c.pool, recordSize)
	if err != nil {
		return nil, fmt.Errorf("create table %q: %w", name, err)
	}
	c.tables[name] = rf
	return rf, nil
}

// Table returns the heap file registered under name. It satisfies
// transaction.TableResolver, the interface the transaction manager
// drives abort's write-set replay through.
func (c *Catalog) Table(name string) (*heap.RecordFile, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rf, exists := c.tables[name]
	if !exists {
		return nil, dberr.TableNotFound(name)
	}
	return rf, nil
}

// DropTable flushes, closes and removes the named table, discarding
// its on-disk file entirely.
func (c *Catalog) DropTable(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	rf, exists := c.tables[name]
	if !exists {
		return dberr.TableNotFound(name)
	}

	if err := c.pool.FlushAll(rf.FileID()); err != nil {
		return fmt.Errorf("drop table %q: %w", name, err)
	}
	if err := c.disk.DestroyFile(rf.FileID()); err != nil {
		return fmt.Errorf("drop table %q: %w", name, err)
	}
	delete(c.tables, name)
	return nil
}

// TableExists reports whether a table is registered under name.
func (c *Catalog) TableExists(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, exists := c.tables[name]
	return exists
}

// TableNames returns every registered table name.
func (c *Catalog) TableNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.tables))
	for name := range c.tables {
		names = append(names, name)
	}
	return names
}
