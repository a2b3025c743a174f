package domain

import "errors"

var (
	// ErrNotReady is returned while no snapshot has been published yet.
	ErrNotReady = errors.New("rates not ready")
	// ErrStaleSnapshot reports a publish whose version is not newer than the current one.
	ErrStaleSnapshot = errors.New("stale snapshot")
	// ErrSnapshotConflict reports two snapshots sharing a version but not content.
	ErrSnapshotConflict = errors.New("snapshot version conflict")
	ErrSnapshotNotFound = errors.New("snapshot not found")
)

var (
	ErrMalformedRecord = errors.New("malformed import record")
	ErrInvalidRate     = errors.New("invalid rate")
	ErrDuplicatePair   = errors.New("duplicate pair")
	ErrEmptyBatch      = errors.New("empty import batch")
)

var (
	ErrSyntax          = errors.New("syntax error")
	ErrAmbiguousTarget = errors.New("ambiguous target currency")
	ErrUnknownCurrency = errors.New("unknown currency")
	ErrDivisionByZero  = errors.New("division by zero")
)

var (
	ErrOverloaded        = errors.New("conversion queue is full")
	ErrPoolClosed        = errors.New("conversion pool is closed")
	ErrTimeout           = errors.New("conversion timed out")
	ErrCancelled         = errors.New("conversion cancelled")
	ErrNotCancelable     = errors.New("conversion already claimed")
	ErrRequestIDRequired = errors.New("request id is required")
	ErrResultNotFound    = errors.New("conversion result not found")
	ErrRateNotFound      = errors.New("rate not found")
)
