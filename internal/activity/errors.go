package activity

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a lookup by id matches no activity.
	ErrNotFound = errors.New("activity not found")
	// ErrInvalidTrackPoint is wrapped by every ValidationError.
	ErrInvalidTrackPoint = errors.New("invalid track point")
	// ErrStorage is matched by every StorageError.
	ErrStorage = errors.New("activity storage failure")
	// ErrNoGeneratedID means an insert succeeded but no id came back.
	ErrNoGeneratedID = errors.New("no generated id returned")
	// ErrUnknownType means a type name outside the known set.
	ErrUnknownType = errors.New("unknown activity type")
)

// ValidationError reports a track point outside the coordinate bounds.
type ValidationError struct {
	Index int
	Point TrackPoint
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("track point #%d: %s", e.Index, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// StorageError is any failure coming from the backing store, annotated with
// the store operation that hit it.
type StorageError struct {
	Op  string
	Err error
}

func newStorageError(op string, err error) *StorageError {
	return &StorageError{Op: op, Err: err}
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}
