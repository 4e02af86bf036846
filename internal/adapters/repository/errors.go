package repository

import "errors"

// Sentinel kinds for storage errors.
var (
	ErrNotFound        = errors.New("player not found")
	ErrInvalidPageSize = errors.New("invalid page size")
	ErrUnknownDriver   = errors.New("unknown storage driver")
)
