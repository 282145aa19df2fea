package cegar_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/benbjohnson/cegar"
	"github.com/benbjohnson/cegar/parser"
	"github.com/benbjohnson/cegar/smt"
	"github.com/benbjohnson/cegar/smt/z3"
)

func TestAbstract_EmptyPredicateSetCollapsesToUnknown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prog.go")
	src := `package main

var x int

func main() {
	x = 0
	if x == 0 {
		assert(x != 0)
	}
}
`
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	prog, err := parser.Parse(path)
	if err != nil {
		t.Fatal(err)
	}

	solver := z3.NewSolver()
	defer solver.Close()
	encode := func(e cegar.Expr) (smt.Term, error) { return e, nil }

	abstracted, shadow, err := cegar.Abstract(prog, cegar.NewPredicateList(), solver, encode)
	if err != nil {
		t.Fatal(err)
	}

	if got, exp := len(abstracted.Globals), 0; got != exp {
		t.Fatalf("abstracted Globals=%d, expected %d (no predicates seeded)", got, exp)
	}

	main := abstracted.Main()
	ite, ok := lastIte(main.Body)
	if !ok {
		t.Fatalf("expected an *cegar.Ite in the abstracted main body, got %v", main.Body)
	}
	if _, ok := ite.Cond.(*cegar.UnknownExpr); !ok {
		t.Fatalf("Ite.Cond=%T, expected *cegar.UnknownExpr (no predicate distinguishes the guard)", ite.Cond)
	}

	if len(shadow) == 0 {
		t.Fatal("expected Abstract to populate a non-empty Shadow for the surviving assignment/guard statements")
	}
}

func lastIte(body []cegar.Stmt) (*cegar.Ite, bool) {
	for i := len(body) - 1; i >= 0; i-- {
		if ite, ok := body[i].(*cegar.Ite); ok {
			return ite, true
		}
	}
	return nil, false
}
