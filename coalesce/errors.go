package coalesce

import "errors"

var (
	// ErrClosed is returned by Batch after Close, and to callers whose
	// batch was still pending when Close ran.
	ErrClosed = errors.New("coalesce: closed")

	// ErrResultCount is returned to every caller of a batch whose
	// RequestFunc returned a different number of results than arguments.
	ErrResultCount = errors.New("coalesce: result count does not match argument count")
)
