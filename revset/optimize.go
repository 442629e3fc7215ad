package revset

// Optimize is pass three of the pipeline: algebraic simplification over an
// already-lowered tree. It applies a fixed set of rewrite rules bottom-up
// and repeats until the tree stops changing, so a rewrite that exposes a
// further rewrite (e.g. collapsing a nested Heads after fusing a union)
// still gets applied.
func Optimize(expr Expr) Expr {
	for {
		next := optimizeOnce(expr)
		if exprEqual(next, expr) {
			return next
		}
		expr = next
	}
}

func optimizeOnce(expr Expr) Expr {
	switch e := expr.(type) {
	case Ancestors:
		of := optimizeOnce(e.Of)
		if inner, ok := of.(Ancestors); ok && e.Depth < 0 && inner.Depth < 0 {
			return Ancestors{Of: inner.Of, Depth: -1}
		}
		return Ancestors{Of: of, Depth: e.Depth}
	case Descendants:
		of := optimizeOnce(e.Of)
		if inner, ok := of.(Descendants); ok && e.Depth < 0 && inner.Depth < 0 {
			return Descendants{Of: inner.Of, Depth: -1}
		}
		return Descendants{Of: of, Depth: e.Depth}
	case Union:
		a := optimizeOnce(e.A)
		b := optimizeOnce(e.B)
		if isNone(a) {
			return b
		}
		if isNone(b) {
			return a
		}
		if ha, ok := a.(Heads); ok {
			if hb, ok := b.(Heads); ok {
				return Heads{Of: Union{A: ha.Of, B: hb.Of}}
			}
		}
		return Union{A: a, B: b}
	case Intersect:
		a := optimizeOnce(e.A)
		b := optimizeOnce(e.B)
		if isAll(a) {
			return b
		}
		if isAll(b) {
			return a
		}
		if isNone(a) || isNone(b) {
			return None{}
		}
		return Intersect{A: a, B: b}
	case Difference:
		a := optimizeOnce(e.A)
		b := optimizeOnce(e.B)
		if isNone(b) {
			return a
		}
		if isNone(a) {
			return None{}
		}
		return Difference{A: a, B: b}
	case Heads:
		of := optimizeOnce(e.Of)
		if inner, ok := of.(Heads); ok {
			return inner
		}
		return Heads{Of: of}
	case Roots:
		return Roots{Of: optimizeOnce(e.Of)}
	case Latest:
		return Latest{Of: optimizeOnce(e.Of), N: e.N}
	default:
		return expr
	}
}

func isAll(e Expr) bool {
	_, ok := e.(All)
	return ok
}

func isNone(e Expr) bool {
	_, ok := e.(None)
	return ok
}

// exprEqual is a cheap structural-equality check sufficient to detect a
// fixpoint; it need not (and does not) understand set-level equivalence.
func exprEqual(a, b Expr) bool {
	return exprString(a) == exprString(b)
}
