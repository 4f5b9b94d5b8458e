package transaction

import (
	"fmt"
	"sync"
)

// Registry is the process-wide table of active transactions, keyed by
// id. It owns the id and timestamp counters so both are assigned
// exactly once, under the same mutex that protects the map, avoiding
// any lock-order coupling with the lock table.
type Registry struct {
	mu     sync.Mutex
	nextID uint64
	nextTS uint64
	txns   map[uint64]*Transaction
}

// NewRegistry builds an empty transaction registry.
func NewRegistry() *Registry {
	return &Registry{txns: make(map[uint64]*Transaction)}
}

// new allocates a fresh transaction with the next id and timestamp and
// registers it.
func (r *Registry) new() *Transaction {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	r.nextTS++
	txn := newTransaction(r.nextID, r.nextTS)
	r.txns[txn.id] = txn
	return txn
}

// get returns the registered transaction for id, if any.
func (r *Registry) get(id uint64) (*Transaction, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	txn, ok := r.txns[id]
	return txn, ok
}

// readd re-inserts a previously-removed transaction under its
// existing id, used when begin is handed an already-allocated
// transaction to reactivate rather than allocating a fresh one.
func (r *Registry) readd(txn *Transaction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.txns[txn.id] = txn
}

// remove erases a transaction from the registry.
func (r *Registry) remove(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.txns, id)
}

// Active returns every transaction currently registered, i.e. every
// transaction that has begun but not yet committed or aborted.
func (r *Registry) Active() []*Transaction {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Transaction, 0, len(r.txns))
	for _, txn := range r.txns {
		out = append(out, txn)
	}
	return out
}

// Count returns the number of registered transactions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.txns)
}

// Get looks up a registered transaction by id for callers outside this
// package (e.g. a session layer resuming a client's transaction).
func (r *Registry) Get(id uint64) (*Transaction, error) {
	txn, ok := r.get(id)
	if !ok {
		return nil, fmt.Errorf("transaction %d is not registered", id)
	}
	return txn, nil
}
