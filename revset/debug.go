package revset

import "fmt"

// exprString renders expr's full structure, used only to detect whether
// Optimize has reached a fixpoint.
func exprString(expr Expr) string {
	return fmt.Sprintf("%#v", expr)
}
