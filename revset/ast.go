// Package revset implements the revset expression evaluator: a small,
// already-parsed expression tree is resolved, lowered, optimized and then
// evaluated against a commit index, the three-pass pipeline described for
// revset evaluation. There is no text parser here — callers build (or a
// separate layer parses text into) the Expr tree directly; this package
// owns everything from a constructed expression to a commit id stream.
package revset

import "github.com/antgroup/zit/hash"

// Expr is one node of a revset expression tree.
type Expr interface {
	isExpr()
}

// Symbol is an unresolved name: a bookmark, tag, change id prefix, commit
// id prefix, "@" (the working-copy commit) or "root()". SymbolResolver
// turns these into CommitSet during the resolve pass.
type Symbol struct {
	Name string
}

// CommitSet is an already-resolved, explicit set of commit ids — what
// every Symbol becomes after resolution, and a convenient leaf for tests
// and programmatic callers that already have ids in hand.
type CommitSet struct {
	IDs []hash.CommitID
}

// All matches every indexed commit.
type All struct{}

// None matches nothing, the identity element for Union.
type None struct{}

// Ancestors matches Of and everything reachable by following parent
// edges. Depth of -1 means unbounded (the common case); a non-negative
// Depth bounds how many parent hops are taken.
type Ancestors struct {
	Of    Expr
	Depth int
}

// Descendants matches Of and everything reachable by following child
// edges, the dual of Ancestors.
type Descendants struct {
	Of    Expr
	Depth int
}

// DagRange matches ancestors(To) intersected with descendants(From): jj's
// "From::To" operator, the set of commits on any path from From to To.
type DagRange struct {
	From, To Expr
}

// Range matches ancestors(To) minus ancestors(From): "From..To", the
// commits introduced by To that are not already introduced by From.
type Range struct {
	From, To Expr
}

// Union, Intersect and Difference are the boolean combinators.
type Union struct{ A, B Expr }
type Intersect struct{ A, B Expr }
type Difference struct{ A, B Expr }

// Heads matches the elements of Of with no descendant also in Of.
type Heads struct{ Of Expr }

// Roots matches the elements of Of with no ancestor also in Of.
type Roots struct{ Of Expr }

// Latest matches the N commits in Of with the newest committer timestamp.
type Latest struct {
	Of Expr
	N  int
}

func (Symbol) isExpr()      {}
func (CommitSet) isExpr()   {}
func (All) isExpr()         {}
func (None) isExpr()        {}
func (Ancestors) isExpr()   {}
func (Descendants) isExpr() {}
func (DagRange) isExpr()    {}
func (Range) isExpr()       {}
func (Union) isExpr()       {}
func (Intersect) isExpr()   {}
func (Difference) isExpr()  {}
func (Heads) isExpr()       {}
func (Roots) isExpr()       {}
func (Latest) isExpr()      {}
