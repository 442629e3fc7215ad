package opstore

import (
	"fmt"

	"github.com/antgroup/zit/hash"
)

// notFoundError reports a missing operation or view, the same
// unexported-struct/exported-constructor/exported-predicate idiom as
// objectstore.ErrNotFound.
type notFoundError struct {
	id hash.ID
}

func (e *notFoundError) Error() string {
	return fmt.Sprintf("opstore: no such operation or view: %s", e.id)
}

func ErrNotFound(id hash.ID) error {
	return &notFoundError{id: id}
}

func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	_, ok := err.(*notFoundError)
	return ok
}

// opStoreError wraps a backend failure (disk I/O, corrupt encoding) that
// isn't a simple "not found" — spec.md §7's Backend/OpStore error kind.
type opStoreError struct {
	op  string
	err error
}

func (e *opStoreError) Error() string {
	return fmt.Sprintf("opstore: %s: %s", e.op, e.err)
}

func (e *opStoreError) Unwrap() error { return e.err }

// ErrOpStore wraps a backend failure at op.
func ErrOpStore(op string, err error) error {
	return &opStoreError{op: op, err: err}
}

func IsOpStore(err error) bool {
	if err == nil {
		return false
	}
	_, ok := err.(*opStoreError)
	return ok
}

// concurrentOperationError reports a head-CAS conflict that persisted after
// the automatic merge-operation retry — spec.md §7's ConcurrentOperation
// kind, "resolve automatically via merge op, inform user".
type concurrentOperationError struct {
	expected []hash.OperationID
	actual   []hash.OperationID
}

func (e *concurrentOperationError) Error() string {
	return fmt.Sprintf("opstore: concurrent modification detected: expected heads %v, found %v", e.expected, e.actual)
}

func ErrConcurrentOperation(expected, actual []hash.OperationID) error {
	return &concurrentOperationError{expected: expected, actual: actual}
}

func IsConcurrentOperation(err error) bool {
	if err == nil {
		return false
	}
	_, ok := err.(*concurrentOperationError)
	return ok
}

// ActualHeads extracts the current head set carried by a concurrent-
// operation error, so a caller (transaction.Commit's merge-operation retry)
// can build the merge without a second round trip to ReadHeads.
func ActualHeads(err error) ([]hash.OperationID, bool) {
	if err == nil {
		return nil, false
	}
	e, ok := err.(*concurrentOperationError)
	if !ok {
		return nil, false
	}
	return e.actual, true
}
