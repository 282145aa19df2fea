// Package smt declares the narrow contract the CEGAR engine needs from an
// external SMT solver: satisfiability under a set of assertions, and
// Craig interpolants for an unsatisfiable two-part partition. It treats
// the solver as an oracle — see smt/z3 for the only implementation.
package smt

import "time"

// Term is an opaque handle whose concrete type each solver fixes (smt/z3
// takes a cegar.Expr and translates it to a Z3_ast itself). The smt package cannot depend on the cegar package's
// Expr type without an import cycle (cegar depends on smt for predicate
// dedup and interpolation), so every Encoder lives on the cegar side of
// the boundary and trades in Term.
type Term interface{}

// Solver is implemented by a backing SMT engine. Assert/Push/Pop follow
// the usual incremental-solver discipline: Push saves a restore point,
// Pop discards every assertion made since the matching Push.
type Solver interface {
	// Assert adds constraint to the current assertion stack.
	Assert(constraint Term) error

	// Push saves a restore point.
	Push() error

	// Pop discards every assertion since the last unmatched Push.
	Pop() error

	// CheckSat decides satisfiability of the current assertion stack.
	CheckSat() (sat bool, err error)

	// Interpolate computes a Craig interpolant for the unsatisfiable pair
	// (a, b): a formula over the shared vocabulary of a and b that is
	// implied by a and contradicts b. Callers must have established that
	// a ∧ b is unsatisfiable (e.g. via CheckSat) before calling this.
	Interpolate(a, b Term) (interpolant Term, err error)

	// Close releases the solver's native resources.
	Close() error

	// Stats returns solver usage statistics for the -stats CLI flag.
	Stats() Stats
}

// Stats reports solver usage, surfaced by the CLI's -stats flag.
type Stats struct {
	CheckSatN       int
	CheckSatTime    time.Duration
	InterpolateN    int
	InterpolateTime time.Duration
}

// Tautology reports whether negated is unsatisfiable. Callers normally
// pass the negation of the formula phi they want proven valid — Tautology
// returns true iff phi is a tautology — but the same unsat check also
// answers "are these two formulas equivalent" when negated is their XOR,
// and "is phi a contradiction" when negated is phi itself unnegated. Used
// by PredicateList.Extend and by Feasible.
func Tautology(solver Solver, negated Term) (bool, error) {
	if err := solver.Push(); err != nil {
		return false, err
	}
	defer solver.Pop()

	if err := solver.Assert(negated); err != nil {
		return false, err
	}
	sat, err := solver.CheckSat()
	if err != nil {
		return false, err
	}
	return !sat, nil
}
