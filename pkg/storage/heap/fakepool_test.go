package heap

import (
	"fmt"
	"sync"

	"storemy/pkg/primitives"
	"storemy/pkg/storage/page"
)

// fakePool is a minimal single-file buffer pool with no eviction,
// used to exercise the record manager without the real buffer pool
// implementation. It does enforce strict pin balancing so a test that
// double-unpins or leaks a pin fails loudly.
type fakePool struct {
	mu    sync.Mutex
	pages map[primitives.PageNumber][]byte
	pins  map[primitives.PageNumber]int
}

func newFakePool() *fakePool {
	return &fakePool{
		pages: make(map[primitives.PageNumber][]byte),
		pins:  make(map[primitives.PageNumber]int),
	}
}

func (p *fakePool) Fetch(fileID primitives.FileID, pageNo primitives.PageNumber) (*page.PinnedPage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	data, ok := p.pages[pageNo]
	if !ok {
		data = make([]byte, page.PageSize)
		p.pages[pageNo] = data
	}
	p.pins[pageNo]++
	return &page.PinnedPage{ID: page.NewPageDescriptor(fileID, pageNo), Data: data}, nil
}

func (p *fakePool) New(fileID primitives.FileID) (*page.PinnedPage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pageNo := primitives.PageNumber(len(p.pages))
	data := make([]byte, page.PageSize)
	p.pages[pageNo] = data
	p.pins[pageNo]++
	return &page.PinnedPage{ID: page.NewPageDescriptor(fileID, pageNo), Data: data}, nil
}

func (p *fakePool) Unpin(fileID primitives.FileID, pageNo primitives.PageNumber, dirty bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pins[pageNo] <= 0 {
		return fmt.Errorf("unpin of page %d with no outstanding pin", pageNo)
	}
	p.pins[pageNo]--
	return nil
}

// unbalanced returns every page that still has outstanding pins, with
// its pin count; an empty map means all pins are balanced.
func (p *fakePool) unbalanced() map[primitives.PageNumber]int {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[primitives.PageNumber]int)
	for pn, n := range p.pins {
		if n != 0 {
			out[pn] = n
		}
	}
	return out
}

// newTestFile creates a RecordFile over a fresh fakePool, pre-seeding
// page 0 with the given record size's header.
func newTestFile(t interface{ Fatalf(string, ...any) }, recordSize uint32) (*RecordFile, *fakePool) {
	pool := newFakePool()
	rf, err := CreateRecordFile(1, "t", pool, recordSize)
	if err != nil {
		t.Fatalf("CreateRecordFile failed: %v", err)
	}
	return rf, pool
}
