package wingraph

import "errors"

// Sentinel error kinds for this package.
var (
	// ErrSnapshotCorrupt marks a persisted adjacency list that cannot be
	// decoded. Callers treat it like a missing snapshot and rebuild.
	ErrSnapshotCorrupt = errors.New("snapshot corrupt")

	// ErrUnknownKind is returned for a graph kind other than wins or net.
	ErrUnknownKind = errors.New("unknown graph kind")
)
