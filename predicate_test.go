package cegar_test

import (
	"testing"

	"github.com/benbjohnson/cegar"
	"github.com/benbjohnson/cegar/smt"
	"github.com/benbjohnson/cegar/smt/z3"
)

func TestPredicateList_ExtendWithoutDedup(t *testing.T) {
	pl := cegar.NewPredicateList()

	x := cegar.NewVarName("x")
	x.Resolve(&cegar.VarDef{Name: "x", Type: cegar.Int, Scope: cegar.GlobalScope})
	pred := cegar.NewBinaryExpr(cegar.CmpEq, x, cegar.NewIntLiteral(0))

	p1, added, err := pl.Extend(pred, cegar.GlobalScope, nil, nil, false)
	if err != nil {
		t.Fatal(err)
	}
	if !added {
		t.Fatal("expected first predicate to be added")
	}
	if got, exp := p1.Name, "g0"; got != exp {
		t.Fatalf("Name=%q, expected %q", got, exp)
	}

	p2, added, err := pl.Extend(pred, cegar.GlobalScope, nil, nil, false)
	if err != nil {
		t.Fatal(err)
	}
	if !added {
		t.Fatal("expected second predicate to be added (no dedup requested)")
	}
	if got, exp := p2.Name, "g1"; got != exp {
		t.Fatalf("Name=%q, expected %q", got, exp)
	}

	if got, exp := len(pl.All()), 2; got != exp {
		t.Fatalf("len(All())=%d, expected %d", got, exp)
	}
}

func TestPredicateList_ExtendDedup(t *testing.T) {
	solver := z3.NewSolver()
	defer solver.Close()
	encode := func(e cegar.Expr) (smt.Term, error) { return e, nil }

	pl := cegar.NewPredicateList()

	x := cegar.NewVarName("x")
	x.Resolve(&cegar.VarDef{Name: "x", Type: cegar.Int, Scope: cegar.GlobalScope})

	pred := cegar.NewBinaryExpr(cegar.CmpEq, x, cegar.NewIntLiteral(0))
	if _, added, err := pl.Extend(pred, cegar.GlobalScope, solver, encode, true); err != nil {
		t.Fatal(err)
	} else if !added {
		t.Fatal("expected the first (non-tautological, non-contradictory) predicate to be added")
	}

	// Re-adding the identical predicate must be rejected as a duplicate.
	if _, added, err := pl.Extend(pred, cegar.GlobalScope, solver, encode, true); err != nil {
		t.Fatal(err)
	} else if added {
		t.Fatal("expected an identical predicate to be rejected as a duplicate")
	}

	// A tautology must never be accepted as a predicate.
	taut := cegar.NewBinaryExpr(cegar.LogOr, pred, cegar.NewUnaryExpr(cegar.LogNot, pred))
	if _, added, err := pl.Extend(taut, cegar.GlobalScope, solver, encode, true); err != nil {
		t.Fatal(err)
	} else if added {
		t.Fatal("expected a tautology to be rejected")
	}

	if got, exp := len(pl.All()), 1; got != exp {
		t.Fatalf("len(All())=%d, expected %d", got, exp)
	}
}

func TestPredicateList_ScopesAndFor(t *testing.T) {
	pl := cegar.NewPredicateList()

	x := cegar.NewVarName("x")
	x.Resolve(&cegar.VarDef{Name: "x", Type: cegar.Int, Scope: cegar.GlobalScope})
	n := cegar.NewVarName("n")
	n.Resolve(&cegar.VarDef{Name: "n", Type: cegar.Int, Scope: "helper"})

	if _, _, err := pl.Extend(cegar.NewBinaryExpr(cegar.CmpEq, x, cegar.NewIntLiteral(0)), cegar.GlobalScope, nil, nil, false); err != nil {
		t.Fatal(err)
	}
	if _, _, err := pl.Extend(cegar.NewBinaryExpr(cegar.CmpEq, n, cegar.NewIntLiteral(0)), "helper", nil, nil, false); err != nil {
		t.Fatal(err)
	}

	scopes := pl.Scopes()
	if len(scopes) != 2 || scopes[0] != cegar.GlobalScope {
		t.Fatalf("Scopes()=%v, expected global first then helper", scopes)
	}
	if got, exp := len(pl.For("helper")), 1; got != exp {
		t.Fatalf("len(For(helper))=%d, expected %d", got, exp)
	}
	if got, exp := pl.For("helper")[0].Name, "l0"; got != exp {
		t.Fatalf("local predicate name=%q, expected %q", got, exp)
	}
}
