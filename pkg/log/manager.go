// Package log provides the minimal log manager contract the core depends
// on. The core never constructs or inspects log records itself -- it only
// asks the log manager to guarantee durability up to a given sequence
// number before letting a commit proceed.
package log

import (
	"fmt"
	"os"
	"sync"

	"storemy/pkg/primitives"
)

// Manager is the log manager collaborator. The transaction manager calls
// Append and FlushToDisk during commit and abort; no other component
// writes to it. Record
// authoring, the WAL format, and crash recovery are handled entirely
// outside the core and are not part of this contract.
type Manager struct {
	mu         sync.Mutex
	file       *os.File
	nextLSN    primitives.LSN
	flushedLSN primitives.LSN
}

// NewManager opens (creating if necessary) the log file at path.
func NewManager(path string) (*Manager, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	return &Manager{file: f}, nil
}

// Append reserves the next LSN for a record of length n and returns it.
// The transaction manager calls it once per commit or abort to reserve
// the outcome marker it then flushes up to; nothing is written to the
// file for the reserved range.
func (m *Manager) Append(n int) primitives.LSN {
	m.mu.Lock()
	defer m.mu.Unlock()
	lsn := m.nextLSN
	m.nextLSN += primitives.LSN(n)
	return lsn
}

// FlushToDisk guarantees every log record up to upTo is durable on disk.
// The transaction manager calls this before marking a transaction
// COMMITTED or ABORTED. A no-op if upTo has already been flushed.
func (m *Manager) FlushToDisk(upTo primitives.LSN) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if upTo <= m.flushedLSN {
		return nil
	}
	if err := m.file.Sync(); err != nil {
		return fmt.Errorf("failed to flush log to disk: %w", err)
	}
	m.flushedLSN = upTo
	return nil
}

// FlushedLSN reports the highest LSN known durable.
func (m *Manager) FlushedLSN() primitives.LSN {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flushedLSN
}

// Close releases the underlying file handle.
func (m *Manager) Close() error {
	return m.file.Close()
}
