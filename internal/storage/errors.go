package storage

import (
	"errors"
	"fmt"
)

// Sentinel causes. Callers match them with errors.Is through StorageError.
var (
	ErrNotFound     = errors.New("no object at key")
	ErrInvalidKey   = errors.New("key is empty or escapes the storage root")
	ErrTooLarge     = errors.New("object larger than allowed")
	ErrAccessDenied = errors.New("provider rejected credentials")
)

// StorageError records which call failed and for which CV key.
type StorageError struct {
	Op  string // Put, Delete, URL
	Key string
	Err error
}

func (e *StorageError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage: %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IsNotFound reports whether err means the CV object is missing.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsTooLarge reports whether err means the upload exceeded its size cap.
func IsTooLarge(err error) bool { return errors.Is(err, ErrTooLarge) }
