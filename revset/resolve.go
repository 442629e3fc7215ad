package revset

import "fmt"

// SymbolResolver turns a revset symbol into a CommitSet. Resolvers are
// tried in order; the first one to recognize name wins. Pluggable so
// bookmarks, tags, change-id prefixes, commit-id prefixes, "@" and
// "root()" can each be backed by whatever the caller has in scope (a
// *refs.View, an *index.Index, the working copy), without this package
// depending on any of them directly.
type SymbolResolver interface {
	// ResolveSymbol returns the commit set name refers to, and ok=false
	// if this resolver does not recognize name (letting the next
	// resolver in the chain try).
	ResolveSymbol(name string) (CommitSet, bool, error)
}

// ResolverFunc adapts a plain function to a SymbolResolver.
type ResolverFunc func(name string) (CommitSet, bool, error)

func (f ResolverFunc) ResolveSymbol(name string) (CommitSet, bool, error) {
	return f(name)
}

// Chain tries each resolver in order, returning the first match.
type Chain []SymbolResolver

func (c Chain) ResolveSymbol(name string) (CommitSet, bool, error) {
	for _, r := range c {
		set, ok, err := r.ResolveSymbol(name)
		if err != nil {
			return CommitSet{}, false, err
		}
		if ok {
			return set, true, nil
		}
	}
	return CommitSet{}, false, nil
}

// ResolveSymbols is pass one of the pipeline: every Symbol leaf is
// replaced by the CommitSet its resolver chain produces. The tree shape
// is otherwise unchanged.
func ResolveSymbols(expr Expr, resolver SymbolResolver) (Expr, error) {
	switch e := expr.(type) {
	case Symbol:
		set, ok, err := resolver.ResolveSymbol(e.Name)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("revset: unresolved symbol %q", e.Name)
		}
		return set, nil
	case CommitSet, All, None:
		return expr, nil
	case Ancestors:
		of, err := ResolveSymbols(e.Of, resolver)
		if err != nil {
			return nil, err
		}
		return Ancestors{Of: of, Depth: e.Depth}, nil
	case Descendants:
		of, err := ResolveSymbols(e.Of, resolver)
		if err != nil {
			return nil, err
		}
		return Descendants{Of: of, Depth: e.Depth}, nil
	case DagRange:
		from, to, err := resolveTwo(e.From, e.To, resolver)
		if err != nil {
			return nil, err
		}
		return DagRange{From: from, To: to}, nil
	case Range:
		from, to, err := resolveTwo(e.From, e.To, resolver)
		if err != nil {
			return nil, err
		}
		return Range{From: from, To: to}, nil
	case Union:
		a, b, err := resolveTwo(e.A, e.B, resolver)
		if err != nil {
			return nil, err
		}
		return Union{A: a, B: b}, nil
	case Intersect:
		a, b, err := resolveTwo(e.A, e.B, resolver)
		if err != nil {
			return nil, err
		}
		return Intersect{A: a, B: b}, nil
	case Difference:
		a, b, err := resolveTwo(e.A, e.B, resolver)
		if err != nil {
			return nil, err
		}
		return Difference{A: a, B: b}, nil
	case Heads:
		of, err := ResolveSymbols(e.Of, resolver)
		if err != nil {
			return nil, err
		}
		return Heads{Of: of}, nil
	case Roots:
		of, err := ResolveSymbols(e.Of, resolver)
		if err != nil {
			return nil, err
		}
		return Roots{Of: of}, nil
	case Latest:
		of, err := ResolveSymbols(e.Of, resolver)
		if err != nil {
			return nil, err
		}
		return Latest{Of: of, N: e.N}, nil
	default:
		return nil, fmt.Errorf("revset: unknown expression node %T", expr)
	}
}

func resolveTwo(a, b Expr, resolver SymbolResolver) (Expr, Expr, error) {
	ra, err := ResolveSymbols(a, resolver)
	if err != nil {
		return nil, nil, err
	}
	rb, err := ResolveSymbols(b, resolver)
	if err != nil {
		return nil, nil, err
	}
	return ra, rb, nil
}
