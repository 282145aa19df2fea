package cegar_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/davecgh/go-spew/spew"

	"github.com/benbjohnson/cegar"
	"github.com/benbjohnson/cegar/parser"
	"github.com/benbjohnson/cegar/smt"
	"github.com/benbjohnson/cegar/smt/z3"
)

// identityEncoder is the z3 Encoder: z3.Solver's own methods accept a
// cegar.Expr directly as smt.Term, translating it to a Z3_ast lazily
// inside Assert/Interpolate, so encoding ahead of time is the identity.
func identityEncoder(e cegar.Expr) (smt.Term, error) { return e, nil }

func mustParseFile(t *testing.T, src string) *cegar.Program {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prog.go")
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	prog, err := parser.Parse(path)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return prog
}

// TestCegar_001_StraightLineAssertion is scenario S1: a straight-line
// assertion that always holds is proven correct after one refinement: with
// no predicates the first iteration's counterexample is spurious, its
// interpolant adds the predicate x == 1, and the second iteration proves it.
func TestCegar_001_StraightLineAssertion(t *testing.T) {
	prog := mustParseFile(t, `package main

var x int

func main() {
	x = 1
	assert(x == 1)
}
`)

	solver := z3.NewSolver()
	defer solver.Close()

	runner := cegar.NewRunner(cegar.Config{}, nil)
	result, err := runner.Run(prog, solver, identityEncoder)
	if err != nil {
		t.Fatal(err)
	}
	if got, exp := result.Outcome, cegar.Correct; got != exp {
		t.Fatalf("Outcome=%s, expected %s", got, exp)
	}
	if got, exp := result.Iterations, 2; got != exp {
		t.Fatalf("Iterations=%d, expected %d", got, exp)
	}
}

// TestCegar_002_GuardedAssertionViolation is scenario S2: the assertion
// inside the if-branch is reachable and concretely false, so the program
// must be reported buggy with a witness trace that mentions the concrete
// assignment, the guard, and the failing assertion.
func TestCegar_002_GuardedAssertionViolation(t *testing.T) {
	prog := mustParseFile(t, `package main

var x int

func main() {
	x = 0
	if x == 0 {
		assert(x != 0)
	}
}
`)

	solver := z3.NewSolver()
	defer solver.Close()

	runner := cegar.NewRunner(cegar.Config{}, nil)
	result, err := runner.Run(prog, solver, identityEncoder)
	if err != nil {
		t.Fatal(err)
	}
	if got, exp := result.Outcome, cegar.Buggy; got != exp {
		t.Fatalf("Outcome=%s, expected %s", got, exp)
	}
	if len(result.Trace) == 0 {
		t.Fatal("expected a non-empty witness trace")
	}

	var sawAssignment, sawAssert bool
	for _, st := range result.Trace {
		switch s := st.(type) {
		case *cegar.SimpleAssignment:
			if s.Var.Name == "x" {
				sawAssignment = true
			}
		case *cegar.Assert:
			sawAssert = true
		}
	}
	if !sawAssignment {
		t.Errorf("witness trace does not contain the concrete assignment to x:\n%s", spew.Sdump(result.Trace))
	}
	if !sawAssert {
		t.Errorf("witness trace does not contain the failing assertion:\n%s", spew.Sdump(result.Trace))
	}
}

// TestCegar_003_UnreachableBugNeedsRefinement exercises the refinement
// path: the assertion is only violated along a branch the if guard
// makes infeasible, so at least one CEGAR iteration must add a predicate
// before the program can be proven correct.
func TestCegar_003_UnreachableBugNeedsRefinement(t *testing.T) {
	prog := mustParseFile(t, `package main

var x int

func main() {
	x = 1
	if x == 1 {
		x = 2
	} else {
		assert(false)
	}
	assert(x == 2)
}
`)

	solver := z3.NewSolver()
	defer solver.Close()

	runner := cegar.NewRunner(cegar.Config{}, nil)
	result, err := runner.Run(prog, solver, identityEncoder)
	if err != nil {
		t.Fatal(err)
	}
	if got, exp := result.Outcome, cegar.Correct; got != exp {
		t.Fatalf("Outcome=%s, expected %s", got, exp)
	}
}
