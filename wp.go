package cegar

import "github.com/benbjohnson/cegar/smt"

// Feasible decides whether trace (a sequence of Traceable statements, Call/
// Return brackets already spliced in by trace lifting) is a genuine
// concrete execution: it folds Wp backwards from false, producing the
// precondition under which some Assume along the trace blocks control
// before it reaches the trailing Assert(false). The trace is spurious
// exactly when that precondition is a tautology — every initial state gets
// blocked by some Assume before reaching the failure — so Feasible reports
// the negation: a trace is feasible iff its precondition is NOT valid.
//
// A feasible trace is the counterexample CEGAR reports to the caller; an
// infeasible (spurious) one drives interpolant-based refinement instead.
func Feasible(trace []Traceable, solver smt.Solver, enc Encoder) (bool, Expr, error) {
	phi := Expr(NewBoolLiteral(false))
	for i := len(trace) - 1; i >= 0; i-- {
		phi = trace[i].Wp(phi)
	}

	negPhi, err := enc(NewUnaryExpr(LogNot, phi))
	if err != nil {
		return false, nil, err
	}
	taut, err := smt.Tautology(solver, negPhi)
	if err != nil {
		return false, nil, err
	}
	return !taut, phi, nil
}
