package booking

import "errors"

var (
	// ErrSlotUnavailable means the caller lost the race for a slot (or it
	// was withdrawn). Recoverable: re-list open slots and pick another.
	ErrSlotUnavailable = errors.New("slot is no longer available")

	// ErrNotFound covers unknown slot or appointment ids within the
	// caller's tenant scope.
	ErrNotFound = errors.New("not found")
)
