package page

import (
	"fmt"

	"storemy/pkg/primitives"
)

// PageDescriptor identifies a page uniquely within the whole store: the
// file it belongs to, plus its offset within that file.
type PageDescriptor struct {
	FileID  primitives.FileID
	PageNo  primitives.PageNumber
}

// NewPageDescriptor builds a descriptor for page pageNo of file fileID.
func NewPageDescriptor(fileID primitives.FileID, pageNo primitives.PageNumber) PageDescriptor {
	return PageDescriptor{FileID: fileID, PageNo: pageNo}
}

// String renders the descriptor for logging and test failure messages.
func (d PageDescriptor) String() string {
	return fmt.Sprintf("PageDescriptor(file=%d, page=%d)", d.FileID, d.PageNo)
}
