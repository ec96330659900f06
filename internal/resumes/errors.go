package resumes

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no record exists for an id.
	ErrNotFound = errors.New("resume not found")
	// ErrInvalidID rejects empty ids or ids that could escape the key namespace.
	ErrInvalidID = errors.New("invalid resume id")
)

// StorageError is a failed read or write against the record store.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	switch e.Op {
	case "set":
		return fmt.Sprintf("Failed to save resume: %v", e.Err)
	case "delete":
		return fmt.Sprintf("Failed to delete resume: %v", e.Err)
	default:
		return fmt.Sprintf("Failed to read resume: %v", e.Err)
	}
}

func (e *StorageError) Unwrap() error { return e.Err }
