package memory

import (
	"fmt"
	"sync"

	dberr "storemy/pkg/error"
	"storemy/pkg/logging"
	"storemy/pkg/primitives"
	"storemy/pkg/storage/page"
)

// DefaultPoolSize is the number of pages the pool caches before it
// must evict to make room for a new one.
const DefaultPoolSize = 64

// Pool is the buffer pool: a fixed-capacity, pin-counted page cache
// backed by a disk manager. It implements page.BufferPool and is
// otherwise opaque to its callers -- no knowledge of bitmaps, slots,
// or file headers crosses this boundary.
//
// Eviction is NO-STEAL: a dirty page is flushed before it is ever
// dropped from the cache, and a pinned page is never a candidate for
// eviction at all. The scan below walks the cache from least to most
// recently used and takes the first frame with zero pins, flushing it
// first if dirty.
type Pool struct {
	mu    sync.Mutex
	cache *lruCache
	disk  *page.DiskManager
}

// NewPool builds a buffer pool of the given capacity over disk.
func NewPool(disk *page.DiskManager, capacity int) *Pool {
	if capacity <= 0 {
		capacity = DefaultPoolSize
	}
	return &Pool{cache: newLRUCache(capacity), disk: disk}
}

func (p *Pool) descriptor(fileID primitives.FileID, pageNo primitives.PageNumber) page.PageDescriptor {
	return page.NewPageDescriptor(fileID, pageNo)
}

// Fetch pins and returns the page at (fileID, pageNo), reading it from
// disk if it is not already cached. It satisfies page.BufferPool.
func (p *Pool) Fetch(fileID primitives.FileID, pageNo primitives.PageNumber) (*page.PinnedPage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.descriptor(fileID, pageNo)
	if f, ok := p.cache.get(id); ok {
		f.pins++
		return &page.PinnedPage{ID: id, Data: f.data, Dirty: f.dirty}, nil
	}

	dbFile, err := p.disk.File(fileID)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	data, err := dbFile.ReadPage(pageNo)
	if err != nil {
		return nil, dberr.PageNotExists("Fetch", fmt.Sprintf("%s: %v", id, err))
	}

	f := &frame{data: data, pins: 1}
	if err := p.makeRoom(); err != nil {
		return nil, err
	}
	p.cache.put(id, f)
	return &page.PinnedPage{ID: id, Data: f.data}, nil
}

// New allocates a fresh page in fileID, pins it zero-filled, and caches
// it. It satisfies page.BufferPool.
func (p *Pool) New(fileID primitives.FileID) (*page.PinnedPage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	dbFile, err := p.disk.File(fileID)
	if err != nil {
		return nil, fmt.Errorf("new: %w", err)
	}
	pageNo, err := dbFile.AllocateNewPage()
	if err != nil {
		return nil, fmt.Errorf("new: %w", err)
	}

	id := p.descriptor(fileID, pageNo)
	f := &frame{data: make([]byte, page.PageSize), dirty: true, pins: 1}
	if err := p.makeRoom(); err != nil {
		return nil, err
	}
	p.cache.put(id, f)
	return &page.PinnedPage{ID: id, Data: f.data, Dirty: true}, nil
}

// Unpin releases one pin on (fileID, pageNo) and marks it dirty if
// dirty is true; a page once marked dirty stays dirty until flushed.
// It satisfies page.BufferPool.
func (p *Pool) Unpin(fileID primitives.FileID, pageNo primitives.PageNumber, dirty bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.descriptor(fileID, pageNo)
	f, ok := p.cache.get(id)
	if !ok {
		return dberr.InternalError("Unpin", "BufferPool", fmt.Sprintf("%s is not cached", id))
	}
	if f.pins <= 0 {
		return dberr.InternalError("Unpin", "BufferPool", fmt.Sprintf("%s has no outstanding pin", id))
	}
	f.pins--
	if dirty {
		f.dirty = true
	}
	return nil
}

// makeRoom evicts the least-recently-used unpinned frame, flushing it
// first if dirty, so the next put has capacity. It is a no-op if the
// cache is not yet full. Must be called with mu held.
func (p *Pool) makeRoom() error {
	if p.cache.size() < p.cache.maxSize {
		return nil
	}
	for _, id := range p.cache.evictionOrder() {
		f, ok := p.cache.get(id)
		if !ok || f.pins > 0 {
			continue
		}
		wasDirty := f.dirty
		if f.dirty {
			if err := p.flushLocked(id, f); err != nil {
				return err
			}
		}
		logging.WithPage(int(id.PageNo)).Debug("evicting page", "component", "BufferPool", "flushed", wasDirty)
		p.cache.remove(id)
		return nil
	}
	return dberr.InternalError("Fetch", "BufferPool", "no unpinned frame available for eviction")
}

func (p *Pool) flushLocked(id page.PageDescriptor, f *frame) error {
	dbFile, err := p.disk.File(id.FileID)
	if err != nil {
		return fmt.Errorf("flush %s: %w", id, err)
	}
	if err := dbFile.WritePage(id.PageNo, f.data); err != nil {
		return fmt.Errorf("flush %s: %w", id, err)
	}
	f.dirty = false
	return nil
}

// Flush forces (fileID, pageNo) to disk if it is cached and dirty.
func (p *Pool) Flush(fileID primitives.FileID, pageNo primitives.PageNumber) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.descriptor(fileID, pageNo)
	f, ok := p.cache.get(id)
	if !ok || !f.dirty {
		return nil
	}
	return p.flushLocked(id, f)
}

// FlushAll forces every dirty cached page belonging to fileID to disk,
// used when closing a file or shutting the pool down cleanly.
func (p *Pool) FlushAll(fileID primitives.FileID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, id := range p.cache.evictionOrder() {
		if id.FileID != fileID {
			continue
		}
		f, ok := p.cache.get(id)
		if !ok || !f.dirty {
			continue
		}
		if err := p.flushLocked(id, f); err != nil {
			return err
		}
	}
	return nil
}

var _ page.BufferPool = (*Pool)(nil)
