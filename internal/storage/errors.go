package storage

import "errors"

var (
	// ErrNotFound indicates the referenced record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates a uniqueness constraint was violated, such as a
	// username or email that is already registered.
	ErrConflict = errors.New("record conflicts with an existing record")
	// ErrInternal indicates a persistence failure the caller cannot act on.
	// The API boundary maps it to a 500 with a generic body; the underlying
	// cause stays server-side.
	ErrInternal = errors.New("storage failure")
)
