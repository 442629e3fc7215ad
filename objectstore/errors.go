package objectstore

import (
	"fmt"

	"github.com/antgroup/zit/hash"
)

// notFoundError reports that no object exists for a given id, mirroring the
// teacher's noSuchObject/NoSuchObject/IsNoSuchObject predicate-function idiom
// (modules/plumbing/error.go).
type notFoundError struct {
	id hash.ID
}

func (e *notFoundError) Error() string {
	return fmt.Sprintf("objectstore: no such object: %s", e.id)
}

// ErrNotFound creates an error representing a missing object.
func ErrNotFound(id hash.ID) error {
	return &notFoundError{id: id}
}

// IsNotFound reports whether err was produced by ErrNotFound.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	_, ok := err.(*notFoundError)
	return ok
}

type readOnlyError struct {
	op string
}

func (e *readOnlyError) Error() string {
	return fmt.Sprintf("objectstore: %s: storage is read-only", e.op)
}

// ErrReadOnly reports that a write was attempted against a read-only backend.
func ErrReadOnly(op string) error {
	return &readOnlyError{op: op}
}

func IsReadOnly(err error) bool {
	if err == nil {
		return false
	}
	_, ok := err.(*readOnlyError)
	return ok
}

type invalidObjectError struct {
	id     hash.ID
	reason string
}

func (e *invalidObjectError) Error() string {
	return fmt.Sprintf("objectstore: object %s is invalid: %s", e.id, e.reason)
}

// ErrInvalidObject wraps a decode/verification failure for a specific id.
func ErrInvalidObject(id hash.ID, reason string) error {
	return &invalidObjectError{id: id, reason: reason}
}

func IsInvalidObject(err error) bool {
	if err == nil {
		return false
	}
	_, ok := err.(*invalidObjectError)
	return ok
}
