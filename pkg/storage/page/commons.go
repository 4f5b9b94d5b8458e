package page

import (
	"fmt"
	"os"
	"sync"

	"storemy/pkg/primitives"
)

// file is a single open on-disk file, addressed by page number. It is
// the DbFile implementation every heap file is backed by.
//
// Thread-safety: all public methods use a read/write mutex so that many
// readers can fetch pages concurrently while writes and allocation are
// exclusive.
type file struct {
	handle   *os.File
	fileID   primitives.FileID
	filePath primitives.Filepath
	mutex    sync.RWMutex
}

func openOSFile(path primitives.Filepath) (*os.File, error) {
	f, err := os.OpenFile(string(path), os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", path, err)
	}
	return f, nil
}

func newFile(filePath primitives.Filepath) (*file, error) {
	if filePath.IsEmpty() {
		return nil, fmt.Errorf("filePath cannot be empty")
	}

	handle, err := openOSFile(filePath)
	if err != nil {
		return nil, err
	}

	return &file{
		handle:   handle,
		fileID:   filePath.Hash(),
		filePath: filePath,
	}, nil
}

func (f *file) GetID() primitives.FileID {
	return f.fileID
}

func (f *file) NumPages() (primitives.PageNumber, error) {
	f.mutex.RLock()
	defer f.mutex.RUnlock()

	if f.handle == nil {
		return 0, fmt.Errorf("file is closed")
	}

	info, err := f.handle.Stat()
	if err != nil {
		return 0, fmt.Errorf("failed to stat file: %w", err)
	}

	n := primitives.PageNumber(info.Size() / int64(PageSize))
	if info.Size()%int64(PageSize) != 0 {
		n++
	}
	return n, nil
}

// AllocateNewPage atomically reserves the next page number by
// extending the file with a zero-filled page and syncing. Holding the
// write lock for the whole stat-write-sync sequence prevents two
// concurrent allocations from landing on the same page number.
func (f *file) AllocateNewPage() (primitives.PageNumber, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if f.handle == nil {
		return 0, fmt.Errorf("file is closed")
	}

	info, err := f.handle.Stat()
	if err != nil {
		return 0, fmt.Errorf("failed to stat file: %w", err)
	}

	numPages := primitives.PageNumber(info.Size() / int64(PageSize))
	if info.Size()%int64(PageSize) != 0 {
		numPages++
	}

	zero := make([]byte, PageSize)
	offset := int64(numPages) * int64(PageSize)
	if _, err := f.handle.WriteAt(zero, offset); err != nil {
		return 0, fmt.Errorf("failed to reserve page space: %w", err)
	}
	if err := f.handle.Sync(); err != nil {
		return 0, fmt.Errorf("failed to sync file after page allocation: %w", err)
	}

	return numPages, nil
}

func (f *file) ReadPage(pageNo primitives.PageNumber) ([]byte, error) {
	f.mutex.RLock()
	defer f.mutex.RUnlock()

	if f.handle == nil {
		return nil, fmt.Errorf("file is closed")
	}

	data := make([]byte, PageSize)
	offset := int64(pageNo) * int64(PageSize)
	if _, err := f.handle.ReadAt(data, offset); err != nil {
		return nil, fmt.Errorf("failed to read page %d: %w", pageNo, err)
	}
	return data, nil
}

func (f *file) WritePage(pageNo primitives.PageNumber, data []byte) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if f.handle == nil {
		return fmt.Errorf("file is closed")
	}
	if len(data) != PageSize {
		return fmt.Errorf("invalid page data size: expected %d, got %d", PageSize, len(data))
	}

	offset := int64(pageNo) * int64(PageSize)
	if _, err := f.handle.WriteAt(data, offset); err != nil {
		return fmt.Errorf("failed to write page %d: %w", pageNo, err)
	}
	if err := f.handle.Sync(); err != nil {
		return fmt.Errorf("failed to sync file: %w", err)
	}
	return nil
}

func (f *file) Close() error {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if f.handle == nil {
		return nil
	}
	err := f.handle.Close()
	f.handle = nil
	return err
}

// DiskManager owns every open file in the store and is the sole place
// that translates a FileID into OS-level file I/O. It maintains the
// name<->FileID mapping so that callers can refer to files by either.
//
// Thread-safety: the manager's own map is guarded independently of each
// file's internal mutex, so opening one file never blocks I/O on
// another.
type DiskManager struct {
	mutex      sync.RWMutex
	files      map[primitives.FileID]*file
	namesByID  map[primitives.FileID]primitives.Filepath
}

// NewDiskManager creates an empty disk manager with no open files.
func NewDiskManager() *DiskManager {
	return &DiskManager{
		files:     make(map[primitives.FileID]*file),
		namesByID: make(map[primitives.FileID]primitives.Filepath),
	}
}

// CreateFile creates the file at path if it does not exist and opens
// it, returning its FileID. A file that already exists on disk is
// opened with its contents intact, not truncated. It is an error to
// create a file that is already open.
func (dm *DiskManager) CreateFile(path primitives.Filepath) (primitives.FileID, error) {
	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	id := path.Hash()
	if _, exists := dm.files[id]; exists {
		return 0, fmt.Errorf("file %s is already open", path)
	}
	if err := path.MkdirAll(0o755); err != nil {
		return 0, fmt.Errorf("failed to create parent directory for %s: %w", path, err)
	}

	f, err := newFile(path)
	if err != nil {
		return 0, err
	}
	dm.files[id] = f
	dm.namesByID[id] = path
	return id, nil
}

// OpenFile opens a pre-existing file at path, returning its FileID. If
// the file is already open this returns the existing FileID rather
// than erroring (unlike CreateFile), so repeated attaches to the same
// physical file are idempotent.
func (dm *DiskManager) OpenFile(path primitives.Filepath) (primitives.FileID, error) {
	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	id := path.Hash()
	if _, exists := dm.files[id]; exists {
		return id, nil
	}

	f, err := newFile(path)
	if err != nil {
		return 0, err
	}
	dm.files[id] = f
	dm.namesByID[id] = path
	return id, nil
}

// CloseFile closes the OS handle for fileID but leaves its on-disk
// contents intact and forgets the name mapping.
func (dm *DiskManager) CloseFile(fileID primitives.FileID) error {
	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	f, exists := dm.files[fileID]
	if !exists {
		return fmt.Errorf("file %d is not open", fileID)
	}
	delete(dm.files, fileID)
	delete(dm.namesByID, fileID)
	return f.Close()
}

// DestroyFile closes fileID if open and removes it from disk.
func (dm *DiskManager) DestroyFile(fileID primitives.FileID) error {
	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	path, hasName := dm.namesByID[fileID]
	if f, exists := dm.files[fileID]; exists {
		if err := f.Close(); err != nil {
			return fmt.Errorf("failed to close file before destroying: %w", err)
		}
		delete(dm.files, fileID)
		delete(dm.namesByID, fileID)
	}
	if !hasName {
		return fmt.Errorf("file %d is not known to the disk manager", fileID)
	}
	return path.Remove()
}

// NameOf reverse-maps a FileID back to the path it was opened from.
func (dm *DiskManager) NameOf(fileID primitives.FileID) (primitives.Filepath, bool) {
	dm.mutex.RLock()
	defer dm.mutex.RUnlock()
	name, ok := dm.namesByID[fileID]
	return name, ok
}

// File returns the DbFile handle for fileID, for passing to the record
// manager's heap file layer.
func (dm *DiskManager) File(fileID primitives.FileID) (DbFile, error) {
	dm.mutex.RLock()
	defer dm.mutex.RUnlock()
	f, exists := dm.files[fileID]
	if !exists {
		return nil, fmt.Errorf("file %d is not open", fileID)
	}
	return f, nil
}

// CloseAll closes every open file, e.g. during shutdown.
func (dm *DiskManager) CloseAll() error {
	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	var firstErr error
	for id, f := range dm.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(dm.files, id)
		delete(dm.namesByID, id)
	}
	return firstErr
}
