package repository

import "errors"

// Sentinel kinds for store errors.
var (
	// ErrNotFound marks a missing subject or an empty subjects table.
	ErrNotFound = errors.New("subject not found")

	// ErrUnavailable marks a store that could not answer; the triggering
	// reading is dropped and the connection keeps processing.
	ErrUnavailable = errors.New("store unavailable")
)

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
