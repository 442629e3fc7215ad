package workingcopy

import (
	"sort"
	"strings"
)

// SparsePatterns is a set of repo-path prefixes defining which paths the
// working copy materializes. An empty set means everything is included,
// the same "no restriction" convention as mergedtree.PrefixMatcher's empty
// prefix.
type SparsePatterns struct {
	prefixes []string
}

// NewSparsePatterns builds a SparsePatterns from a list of repo-path
// prefixes, normalizing away leading/trailing slashes.
func NewSparsePatterns(prefixes ...string) *SparsePatterns {
	sp := &SparsePatterns{}
	for _, p := range prefixes {
		p = strings.Trim(p, "/")
		if p != "" {
			sp.prefixes = append(sp.prefixes, p)
		}
	}
	sort.Strings(sp.prefixes)
	return sp
}

// Includes reports whether path falls under any configured prefix (or every
// path, if no prefixes were configured).
func (sp *SparsePatterns) Includes(path string) bool {
	if sp == nil || len(sp.prefixes) == 0 {
		return true
	}
	path = strings.Trim(path, "/")
	for _, prefix := range sp.prefixes {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}

// ShouldDescend reports whether dir could contain an included path, letting
// a directory walk prune whole subtrees the same way
// mergedtree.PrefixMatcher does.
func (sp *SparsePatterns) ShouldDescend(dir string) bool {
	if sp == nil || len(sp.prefixes) == 0 {
		return true
	}
	dir = strings.Trim(dir, "/")
	if dir == "" {
		return true
	}
	for _, prefix := range sp.prefixes {
		if dir == prefix || strings.HasPrefix(dir, prefix+"/") || strings.HasPrefix(prefix, dir+"/") {
			return true
		}
	}
	return false
}

// Prefixes returns the configured prefixes, sorted.
func (sp *SparsePatterns) Prefixes() []string {
	if sp == nil {
		return nil
	}
	return append([]string(nil), sp.prefixes...)
}

// CheckoutStats summarizes the effect of a Checkout or a sparse-pattern
// update: which paths were added, updated, removed from disk, or skipped
// because they fell outside the sparse set.
type CheckoutStats struct {
	Added   []string
	Updated []string
	Removed []string
	Skipped []string
}
