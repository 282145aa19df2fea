package cegar

import "github.com/benbjohnson/cegar/smt"

// SSAConstraints walks trace left to right, threading an SSAEnv through
// each statement's Con, and returns the resulting constraint sequence
// [c0,...,c_{n-1}] per §4.7's SSA encoding.
func SSAConstraints(trace []Traceable, prog *Program) []Expr {
	env := NewSSAEnv(prog)
	out := make([]Expr, len(trace))
	for i, s := range trace {
		c, next := s.Con(env)
		out[i] = c
		env = next
	}
	return out
}

// Interpolants requests the interpolant sequence I_0,...,I_{n-2} for an SSA
// constraint sequence already established unsatisfiable (Feasible returned
// false): for each split point i, A_i := c_0∧...∧c_i and
// B_i := c_{i+1}∧...∧c_{n-1}. Returns nil, nil if there are fewer than two
// constraints to split (the trace is a single statement; see §9's treatment
// of that degenerate case as ErrInterpolationFailed upstream, since no
// refinement is possible).
func Interpolants(constraints []Expr, solver smt.Solver, enc Encoder) ([]Expr, error) {
	n := len(constraints)
	if n < 2 {
		return nil, nil
	}

	out := make([]Expr, 0, n-1)
	for i := 0; i < n-1; i++ {
		a, err := enc(conjoin(constraints[:i+1]))
		if err != nil {
			return nil, err
		}
		b, err := enc(conjoin(constraints[i+1:]))
		if err != nil {
			return nil, err
		}

		raw, err := solver.Interpolate(a, b)
		if err != nil {
			return nil, err
		}
		itp, ok := raw.(Expr)
		if !ok {
			return nil, ErrInterpolationFailed
		}
		out = append(out, itp)
	}
	return out, nil
}

func conjoin(exprs []Expr) Expr {
	acc := Expr(NewBoolLiteral(true))
	for _, e := range exprs {
		acc = NewBinaryExpr(LogAnd, acc, e)
	}
	return acc
}

// RefinePredicates resolves each raw interpolant (scope-prefixed VarNames,
// as produced by the oracle's own term decoder) against prog, collects
// candidate predicates per collectPotentialPredicates, and offers every
// candidate to preds with dedup. It reports whether at least one new
// predicate was accepted — refinement is stuck, per §8's scenario S6, when
// a whole pass over every interpolant adds nothing.
func RefinePredicates(interpolants []Expr, prog *Program, preds *PredicateList, solver smt.Solver, enc Encoder) (bool, error) {
	added := false
	for _, raw := range interpolants {
		resolved, err := PostprocessInterpolant(raw, prog)
		if err != nil {
			return added, err
		}
		for _, cand := range collectPotentialPredicates(resolved) {
			scope := GlobalScope
			if fn, ok := Scope(cand); ok {
				scope = fn
			}
			_, accepted, err := preds.Extend(cand, scope, solver, enc, true)
			if err != nil {
				return added, err
			}
			if accepted {
				added = true
			}
		}
	}
	return added, nil
}

// collectPotentialPredicates descends an interpolant's boolean structure
// (logical connectives only), taking as candidates every comparison
// subterm that mentions at least one program variable and every boolean
// variable occurrence — per §4.7's collect_potential_predicates. It does
// not descend into a comparison's own (arithmetic) operands: the
// comparison itself is the atomic predicate.
func collectPotentialPredicates(expr Expr) []Expr {
	var out []Expr
	var walk func(Expr)
	walk = func(e Expr) {
		switch e := e.(type) {
		case *UnaryExpr:
			if e.Op == LogNot {
				walk(e.Child)
			}
		case *BinaryExpr:
			switch {
			case e.Op.IsLogical():
				walk(e.Left)
				walk(e.Right)
			case e.Op.IsComparison() && ContainsAnyVar(e):
				out = append(out, e)
			}
		case *Conditional:
			walk(e.Cond)
			walk(e.Then)
			walk(e.Else)
		case *VarName:
			if e.Type() == Bool {
				out = append(out, e)
			}
		}
	}
	walk(expr)
	return out
}
