package revset

// Lower is pass two of the pipeline: convenience operators are rewritten
// into the primitives the index can evaluate directly (ancestors,
// descendants, and set algebra). "From::To" becomes
// descendants(From) & ancestors(To); "From..To" becomes
// ancestors(To) - ancestors(From), matching the usual "what From doesn't
// already introduce" range semantics.
func Lower(expr Expr) Expr {
	switch e := expr.(type) {
	case DagRange:
		return Intersect{
			A: Descendants{Of: Lower(e.From), Depth: -1},
			B: Ancestors{Of: Lower(e.To), Depth: -1},
		}
	case Range:
		return Difference{
			A: Ancestors{Of: Lower(e.To), Depth: -1},
			B: Ancestors{Of: Lower(e.From), Depth: -1},
		}
	case Ancestors:
		return Ancestors{Of: Lower(e.Of), Depth: e.Depth}
	case Descendants:
		return Descendants{Of: Lower(e.Of), Depth: e.Depth}
	case Union:
		return Union{A: Lower(e.A), B: Lower(e.B)}
	case Intersect:
		return Intersect{A: Lower(e.A), B: Lower(e.B)}
	case Difference:
		return Difference{A: Lower(e.A), B: Lower(e.B)}
	case Heads:
		return Heads{Of: Lower(e.Of)}
	case Roots:
		return Roots{Of: Lower(e.Of)}
	case Latest:
		return Latest{Of: Lower(e.Of), N: e.N}
	default:
		return expr
	}
}
