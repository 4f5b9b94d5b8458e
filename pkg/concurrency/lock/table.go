package lock

import "sync"

// Table is the central lock table: one mutex protecting the whole map
// of ObjectId -> request queue. The specification explicitly prefers
// this coarse latch over per-object locks because every critical
// section here is O(queue size) at worst.
type Table struct {
	mu     sync.Mutex
	queues map[ObjectId]Queue
}

func newTable() *Table {
	return &Table{queues: make(map[ObjectId]Queue)}
}

// withQueue runs fn holding the table mutex, passing the (possibly
// empty) queue for obj. fn's return value replaces the stored queue;
// if it is empty the entry is dropped entirely rather than left as an
// empty slice, matching "if the queue becomes empty, erase the
// object."
func (t *Table) withQueue(obj ObjectId, fn func(Queue) Queue) {
	t.mu.Lock()
	defer t.mu.Unlock()

	q := fn(t.queues[obj])
	if len(q) == 0 {
		delete(t.queues, obj)
		return
	}
	t.queues[obj] = q
}

// snapshot returns the queue for obj for read-only inspection. The
// returned slice must not be mutated.
func (t *Table) snapshot(obj ObjectId) Queue {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.queues[obj]
}
