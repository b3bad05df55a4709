package repository

import "errors"

// Sentinel kinds for analysis store errors.
var (
	ErrNotFound     = errors.New("analysis not found")
	ErrInvalidLimit = errors.New("invalid limit")
	ErrInvalidID    = errors.New("analysis id is required")
)
