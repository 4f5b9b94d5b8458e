package page

import "storemy/pkg/primitives"

// PinnedPage is the handle the buffer pool hands back from Fetch/New.
// While a caller holds one, the pool guarantees the underlying page
// will not be evicted; the caller must release it with exactly one
// matching Unpin.
type PinnedPage struct {
	ID    PageDescriptor
	Data  []byte
	Dirty bool
}

// BufferPool is the contract the record manager drives pages through.
// It is implemented by the in-memory buffer pool and is otherwise
// opaque to the record manager: no knowledge of bitmaps, slots, or
// file headers crosses this boundary.
type BufferPool interface {
	// Fetch pins and returns the page at (fileID, pageNo), reading it
	// from disk through the file's DbFile if it is not already cached.
	Fetch(fileID primitives.FileID, pageNo primitives.PageNumber) (*PinnedPage, error)

	// New allocates a fresh page in fileID, pins it, and returns it
	// zero-filled. The caller is responsible for writing its content
	// before unpinning.
	New(fileID primitives.FileID) (*PinnedPage, error)

	// Unpin releases one pin on (fileID, pageNo). If dirty is true the
	// page is marked dirty even if the caller made no changes this
	// call; a page once marked dirty stays dirty until flushed.
	Unpin(fileID primitives.FileID, pageNo primitives.PageNumber, dirty bool) error
}
