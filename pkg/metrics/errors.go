package metrics

import (
	"errors"
)

// Sentinel kinds for metrics errors.
var (
	ErrCollectorRegistered = errors.New("metrics collector already registered")
)
