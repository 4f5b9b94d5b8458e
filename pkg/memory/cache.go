// Package memory provides the in-memory buffer pool and table catalog
// the record manager is driven through.
package memory

import (
	"sync"

	"storemy/pkg/storage/page"
)

// frame is one cached page: its bytes, whether it needs to be written
// back before eviction, and how many callers currently hold a pin on
// it. A pinned frame is never a candidate for eviction.
type frame struct {
	data  []byte
	dirty bool
	pins  int
}

type node struct {
	id   page.PageDescriptor
	f    *frame
	prev *node
	next *node
}

// lruCache is a fixed-capacity page cache with a doubly linked list
// giving O(1) recency updates alongside the O(1) hash-map lookup. It
// knows nothing about pinning or the disk; the buffer pool built on
// top of it enforces those.
type lruCache struct {
	maxSize int
	mu      sync.Mutex
	byID    map[page.PageDescriptor]*node
	head    *node
	tail    *node
}

func newLRUCache(maxSize int) *lruCache {
	head := &node{}
	tail := &node{}
	head.next = tail
	tail.prev = head
	return &lruCache{
		maxSize: maxSize,
		byID:    make(map[page.PageDescriptor]*node),
		head:    head,
		tail:    tail,
	}
}

func (c *lruCache) addFront(n *node) {
	n.prev = c.head
	n.next = c.head.next
	c.head.next.prev = n
	c.head.next = n
}

func (c *lruCache) unlink(n *node) {
	n.prev.next = n.next
	n.next.prev = n.prev
}

func (c *lruCache) touch(n *node) {
	c.unlink(n)
	c.addFront(n)
}

// get returns the frame for id and marks it most recently used.
func (c *lruCache) get(id page.PageDescriptor) (*frame, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.byID[id]
	if !ok {
		return nil, false
	}
	c.touch(n)
	return n.f, true
}

// put inserts a new frame, evicting nothing itself -- callers must
// make room first via evictionOrder/remove. Returns false if the cache is
// already at capacity.
func (c *lruCache) put(id page.PageDescriptor, f *frame) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n, exists := c.byID[id]; exists {
		n.f = f
		c.touch(n)
		return true
	}
	if len(c.byID) >= c.maxSize {
		return false
	}
	n := &node{id: id, f: f}
	c.byID[id] = n
	c.addFront(n)
	return true
}

func (c *lruCache) remove(id page.PageDescriptor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n, exists := c.byID[id]; exists {
		delete(c.byID, id)
		c.unlink(n)
	}
}

func (c *lruCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.byID)
}

// evictionOrder returns every cached page id from least to most
// recently used, for the eviction scan.
func (c *lruCache) evictionOrder() []page.PageDescriptor {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]page.PageDescriptor, 0, len(c.byID))
	for n := c.tail.prev; n != c.head; n = n.prev {
		ids = append(ids, n.id)
	}
	return ids
}
