package repo

import "fmt"

// ErrInvalidRepoPath reports that dir does not contain a repo directory
// (.zit/repo), the §7 error-kind table's InvalidRepoPath entry.
type ErrInvalidRepoPath struct {
	Dir string
}

func (e *ErrInvalidRepoPath) Error() string {
	return fmt.Sprintf("repo: %s is not a zit repository", e.Dir)
}

func IsInvalidRepoPath(err error) bool {
	if err == nil {
		return false
	}
	_, ok := err.(*ErrInvalidRepoPath)
	return ok
}

// ErrNothingToRedo reports that the current operation head isn't a revert
// marker, so there is nothing for Redo to reapply.
type ErrNothingToRedo struct{}

func (e *ErrNothingToRedo) Error() string { return "repo: nothing to redo" }

func IsNothingToRedo(err error) bool {
	if err == nil {
		return false
	}
	_, ok := err.(*ErrNothingToRedo)
	return ok
}
