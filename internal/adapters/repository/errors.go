package repository

import "errors"

// Sentinel kinds for result store errors.
var (
	ErrNotFound     = errors.New("trial not found")
	ErrInvalidLimit = errors.New("invalid result limit")
	ErrMissingID    = errors.New("result has no trial id")
)
