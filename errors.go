package granite

import "errors"

var (
	// ErrCapacityExceeded is returned when a storage or per-frame list is
	// asked to grow beyond the maximum declared in WorldCreateInfo.
	ErrCapacityExceeded = errors.New("granite: capacity exceeded")

	// ErrColoringExhausted is returned when a neighbor group needs more
	// than MaxColors colors. The frame is aborted.
	ErrColoringExhausted = errors.New("granite: coloring exhausted")

	// ErrInvalidHandle reports use of a handle after destruction.
	ErrInvalidHandle = errors.New("granite: invalid handle")
)
