package cegar_test

import (
	"testing"

	"github.com/benbjohnson/cegar"
	"github.com/benbjohnson/cegar/smt"
	"github.com/benbjohnson/cegar/smt/z3"
)

func TestFeasible(t *testing.T) {
	solver := z3.NewSolver()
	defer solver.Close()
	encode := func(e cegar.Expr) (smt.Term, error) { return e, nil }

	x := &cegar.VarDef{Name: "x", Type: cegar.Int, Scope: cegar.GlobalScope}
	xRef := func() *cegar.VarName {
		v := cegar.NewVarName("x")
		v.Resolve(x)
		return v
	}

	tests := []struct {
		name    string
		trace   []cegar.Traceable
		feasible bool
	}{
		{
			name: "assignment then matching assume survives",
			trace: []cegar.Traceable{
				&cegar.SimpleAssignment{Var: xRef(), Expr: cegar.NewIntLiteral(1)},
				&cegar.Assume{Cond: cegar.NewBinaryExpr(cegar.CmpEq, xRef(), cegar.NewIntLiteral(1))},
				&cegar.Assert{Cond: cegar.NewBoolLiteral(false)},
			},
			feasible: true,
		},
		{
			name: "assignment then contradicting assume is infeasible",
			trace: []cegar.Traceable{
				&cegar.SimpleAssignment{Var: xRef(), Expr: cegar.NewIntLiteral(1)},
				&cegar.Assume{Cond: cegar.NewBinaryExpr(cegar.CmpEq, xRef(), cegar.NewIntLiteral(2))},
				&cegar.Assert{Cond: cegar.NewBoolLiteral(false)},
			},
			feasible: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			feasible, _, err := cegar.Feasible(tt.trace, solver, encode)
			if err != nil {
				t.Fatal(err)
			}
			if feasible != tt.feasible {
				t.Fatalf("Feasible()=%v, expected %v", feasible, tt.feasible)
			}
		})
	}
}
