package query

// PushDownNot rewrites q so that negations sit directly above leaves.
//
//	not(and(a, b)) => or(not(a), not(b))
//	not(or(a, b))  => and(not(a), not(b))
//	not(not(a))    => a
//	not(all())     => none()
//
// The result matches exactly the objects q matches. Nodes that need no
// rewrite are returned unchanged.
func PushDownNot[O any](q Query[O]) Query[O] {
	return pushDown(q, false)
}

func pushDown[O any](q Query[O], negate bool) Query[O] {
	switch n := q.(type) {
	case *Negation[O]:
		return pushDown(n.child, !negate)
	case *Conjunction[O]:
		children := pushDownChildren(n.children, negate)
		if negate {
			return Or(children...)
		}
		if sameChildren(children, n.children) {
			return n
		}
		return And(children...)
	case *Disjunction[O]:
		children := pushDownChildren(n.children, negate)
		if negate {
			return And(children...)
		}
		if sameChildren(children, n.children) {
			return n
		}
		return Or(children...)
	case *Constant[O]:
		if negate {
			return newConstant[O](!n.all)
		}
		return n
	default:
		if negate {
			return Not(q)
		}
		return q
	}
}

func pushDownChildren[O any](children []Query[O], negate bool) []Query[O] {
	out := make([]Query[O], len(children))
	for i, c := range children {
		out[i] = pushDown(c, negate)
	}
	return out
}

func sameChildren[O any](a, b []Query[O]) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
