package docstore

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownCollection is returned when an operation references a
	// collection name that was not declared at store construction.
	ErrUnknownCollection = errors.New("unknown collection")

	// ErrCorrupt is returned when a collection file cannot be parsed as a
	// JSON document array after all read retries. The store does not attempt
	// automatic repair.
	ErrCorrupt = errors.New("collection data is corrupt")
)

// StorageError reports a filesystem failure while reading or writing a
// collection file. "Not found" is never a StorageError: a missing file is a
// legitimately empty collection and an unmatched predicate is an absent
// result, not a failure.
type StorageError struct {
	Op         string // "read" or "write"
	Collection string
	Path       string
	Err        error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s collection %q (%s): %v", e.Op, e.Collection, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
