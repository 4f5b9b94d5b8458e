package error

// Error codes surfaced by the storage and concurrency control core.
const (
	CodeRecordNotFound    = "RECORD_NOT_FOUND"
	CodePageNotExists     = "PAGE_NOT_EXISTS"
	CodeInternalError     = "INTERNAL_ERROR"
	CodeTransactionAbort  = "TRANSACTION_ABORT"
	CodeDatabaseNotFound  = "DATABASE_NOT_FOUND"
	CodeTableNotFound     = "TABLE_NOT_FOUND"
	CodeTableExists       = "TABLE_EXISTS"
	CodeIndexNotFound     = "INDEX_NOT_FOUND"
	CodeIndexExists       = "INDEX_EXISTS"
)

// AbortReason explains why the lock manager refused a lock request with
// an abort-inducing error.
type AbortReason string

const (
	// ReasonLockOnShrinking means the transaction tried to acquire a new
	// lock after it had already entered the SHRINKING phase.
	ReasonLockOnShrinking AbortReason = "LOCK_ON_SHRINKING"

	// ReasonUpgradeConflict means a lock upgrade could not be granted
	// because another transaction holds an incompatible lock.
	ReasonUpgradeConflict AbortReason = "UPGRADE_CONFLICT"

	// ReasonDeadlockPrevention means the no-wait policy aborted the
	// transaction rather than block it behind a conflicting holder.
	ReasonDeadlockPrevention AbortReason = "DEADLOCK_PREVENTION"
)

// RecordNotFound reports that a record ID does not reference a live record.
func RecordNotFound(operation string, detail string) *DBError {
	return &DBError{
		Code:      CodeRecordNotFound,
		Category:  ErrCategoryUser,
		Message:   "record not found",
		Detail:    detail,
		Operation: operation,
		Component: "RecordFile",
		Stack:     captureStack(),
	}
}

// PageNotExists reports that a page number is outside the file's current extent.
func PageNotExists(operation string, detail string) *DBError {
	return &DBError{
		Code:      CodePageNotExists,
		Category:  ErrCategoryData,
		Message:   "page does not exist",
		Detail:    detail,
		Operation: operation,
		Component: "DiskManager",
		Stack:     captureStack(),
	}
}

// InternalError reports a violated invariant: a bug in the core itself
// rather than a condition callers can be expected to avoid.
func InternalError(operation, component, detail string) *DBError {
	return &DBError{
		Code:      CodeInternalError,
		Category:  ErrCategorySystem,
		Message:   "internal invariant violated",
		Detail:    detail,
		Operation: operation,
		Component: component,
		Stack:     captureStack(),
	}
}

// TransactionAbort reports that a lock request was refused for the
// given reason. It does not itself abort the transaction; the caller
// is expected to abort it and issue no further operations under it.
func TransactionAbort(reason AbortReason, operation, detail string) *DBError {
	return &DBError{
		Code:      CodeTransactionAbort,
		Category:  ErrCategoryConcurrency,
		Message:   "transaction aborted: " + string(reason),
		Detail:    detail,
		Operation: operation,
		Component: "TransactionManager",
		Stack:     captureStack(),
	}
}

// DatabaseNotFound reports that a named database does not exist.
func DatabaseNotFound(name string) *DBError {
	return &DBError{
		Code:      CodeDatabaseNotFound,
		Category:  ErrCategoryUser,
		Message:   "database not found",
		Detail:    name,
		Component: "Catalog",
		Stack:     captureStack(),
	}
}

// TableNotFound reports that a named table does not exist.
func TableNotFound(name string) *DBError {
	return &DBError{
		Code:      CodeTableNotFound,
		Category:  ErrCategoryUser,
		Message:   "table not found",
		Detail:    name,
		Component: "Catalog",
		Stack:     captureStack(),
	}
}

// TableExists reports that a table already exists under that name.
func TableExists(name string) *DBError {
	return &DBError{
		Code:      CodeTableExists,
		Category:  ErrCategoryUser,
		Message:   "table already exists",
		Detail:    name,
		Component: "Catalog",
		Stack:     captureStack(),
	}
}

// IndexNotFound reports that a named index does not exist.
func IndexNotFound(name string) *DBError {
	return &DBError{
		Code:      CodeIndexNotFound,
		Category:  ErrCategoryUser,
		Message:   "index not found",
		Detail:    name,
		Component: "Catalog",
		Stack:     captureStack(),
	}
}

// IndexExists reports that an index already exists under that name.
func IndexExists(name string) *DBError {
	return &DBError{
		Code:      CodeIndexExists,
		Category:  ErrCategoryUser,
		Message:   "index already exists",
		Detail:    name,
		Component: "Catalog",
		Stack:     captureStack(),
	}
}

// AbortReasonOf extracts the AbortReason from err if it is a
// TRANSACTION_ABORT DBError, and reports whether one was found.
func AbortReasonOf(err error) (AbortReason, bool) {
	dbErr, ok := err.(*DBError)
	if !ok || dbErr.Code != CodeTransactionAbort {
		return "", false
	}
	for _, r := range []AbortReason{ReasonLockOnShrinking, ReasonUpgradeConflict, ReasonDeadlockPrevention} {
		if dbErr.Message == "transaction aborted: "+string(r) {
			return r, true
		}
	}
	return "", false
}
