package domain

import "errors"

var (
	// ErrNotFound is returned by lookups that find no record.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidInput marks caller-visible validation failures.
	ErrInvalidInput = errors.New("invalid input")
)
