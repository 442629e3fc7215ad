package transaction

import (
	"fmt"

	"github.com/antgroup/zit/hash"
)

// concurrentOperationError reports that a transaction's CAS against the
// operation-log head failed twice in a row: once on the first commit
// attempt, and again on the automatic merge-operation retry.
type concurrentOperationError struct {
	attempts int
}

func (e *concurrentOperationError) Error() string {
	return fmt.Sprintf("transaction: concurrent modification detected across %d attempts", e.attempts)
}

// ErrConcurrentOperation reports a CAS failure that survived the single
// automatic merge-operation retry §4.9 describes.
func ErrConcurrentOperation(attempts int) error {
	return &concurrentOperationError{attempts: attempts}
}

// IsConcurrentOperation reports whether err was produced by
// ErrConcurrentOperation.
func IsConcurrentOperation(err error) bool {
	if err == nil {
		return false
	}
	_, ok := err.(*concurrentOperationError)
	return ok
}

// immutableCommitError reports an attempt to rewrite a commit the rewrite
// engine refuses to touch: the synthetic root commit, or a commit already
// recorded as abandoned in this transaction.
type immutableCommitError struct {
	id hash.CommitID
}

func (e *immutableCommitError) Error() string {
	return fmt.Sprintf("transaction: commit %s is immutable", e.id)
}

// ErrImmutableCommit reports that id cannot be rewritten or reparented.
func ErrImmutableCommit(id hash.CommitID) error {
	return &immutableCommitError{id: id}
}

// IsImmutableCommit reports whether err was produced by ErrImmutableCommit.
func IsImmutableCommit(err error) bool {
	if err == nil {
		return false
	}
	_, ok := err.(*immutableCommitError)
	return ok
}
