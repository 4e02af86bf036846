package app

import "errors"

// Sentinel error kinds for the graph service.
var (
	// ErrGraphUnavailable means no snapshot could be loaded or built.
	// Chain queries fail with it until a later load or rebuild succeeds.
	ErrGraphUnavailable = errors.New("graph unavailable")

	// ErrNotStarted is returned by refresh requests before Start.
	ErrNotStarted = errors.New("service not started")
)
