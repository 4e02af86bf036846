package snapshot

import "errors"

// Sentinel kinds for snapshot cache errors.
var (
	// ErrNotFound means no complete snapshot has been persisted yet.
	ErrNotFound = errors.New("snapshot not found")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("snapshot store closed")
)
