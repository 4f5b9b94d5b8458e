package heap

import (
	"fmt"

	"golang.org/x/sync/errgroup"

	"storemy/pkg/primitives"
)

// VerifyInvariants checks, for every data page of file, that the
// occupancy bitmap's popcount matches num_records and that the page
// is on the free chain exactly when it has spare capacity. Pages are
// checked concurrently since each only needs its own fetch/unpin
// pair; this is a diagnostic used by tests and admin tooling, never
// by the hot insert/delete/get/update path.
func VerifyInvariants(file *RecordFile) error {
	hdr := file.Header()
	onChain := make(map[primitives.PageNumber]bool)
	for pn := hdr.FirstFreePageNo; pn != primitives.InvalidPageNumber; {
		if onChain[pn] {
			return fmt.Errorf("free chain contains a cycle at page %d", pn)
		}
		onChain[pn] = true

		pinned, err := file.pool.Fetch(file.fileID, pn)
		if err != nil {
			return fmt.Errorf("failed to fetch free-chain page %d: %w", pn, err)
		}
		next := WrapDataPage(pinned.Data).NextFreePageNo()
		if err := file.pool.Unpin(file.fileID, pn, false); err != nil {
			return err
		}
		pn = next
	}

	var g errgroup.Group
	for pn := RM_FILE_HDR_PAGE + 1; pn < hdr.NumPages; pn++ {
		pn := pn
		g.Go(func() error {
			pinned, err := file.pool.Fetch(file.fileID, pn)
			if err != nil {
				return fmt.Errorf("failed to fetch page %d: %w", pn, err)
			}
			dp := WrapDataPage(pinned.Data)

			popcount := dp.Popcount(hdr)
			numRecords := dp.NumRecords()
			hasSpace := numRecords < hdr.NumRecordsPerPage

			if err := file.pool.Unpin(file.fileID, pn, false); err != nil {
				return err
			}

			if popcount != numRecords {
				return fmt.Errorf("page %d: popcount(bitmap)=%d != num_records=%d", pn, popcount, numRecords)
			}
			if hasSpace != onChain[pn] {
				return fmt.Errorf("page %d: has_space=%v but on_free_chain=%v", pn, hasSpace, onChain[pn])
			}
			return nil
		})
	}
	return g.Wait()
}
