package cegar

import "github.com/benbjohnson/cegar/smt"

// Encoder turns a cegar.Expr into a smt.Term for a particular solver
// backend (for smt/z3, the identity: its Solver accepts a cegar.Expr as a
// smt.Term directly). Abstraction and predicate
// dedup both need this to drive the oracle without the cegar package
// depending on any concrete solver package.
type Encoder func(Expr) (smt.Term, error)

// visiblePredicates returns the predicates in scope for a function named
// fnName: its own locals, after the globals (spec's P = {p1,...,pn}
// ordering places globals first so the naming/indexing used by
// strongest/weakest is stable across calls within the same function).
func visiblePredicates(preds *PredicateList, fnName string) []*Predicate {
	return append(append([]*Predicate{}, preds.For(GlobalScope)...), preds.For(fnName)...)
}

// cubeLit is one literal of a cube: predicate index i with its polarity.
type cubeLit struct {
	idx int
	pos bool
}

// cubeConcrete conjuncts the concrete-side Expr (Predicate.Expr) of each
// literal in cube, used to drive the SMT oracle.
func cubeConcrete(cube []cubeLit, preds []*Predicate) Expr {
	e := Expr(NewBoolLiteral(true))
	for _, l := range cube {
		lit := preds[l.idx].Expr
		if !l.pos {
			lit = NewUnaryExpr(LogNot, lit)
		}
		e = NewBinaryExpr(LogAnd, e, lit)
	}
	return e
}

// cubeAbstract conjuncts the abstract boolean variable for each literal in
// cube — this is what weakest/strongest actually return, since the result
// feeds into the abstracted program's Assume/Conditional guards.
func cubeAbstract(cube []cubeLit, preds []*Predicate) Expr {
	e := Expr(NewBoolLiteral(true))
	for _, l := range cube {
		lit := Expr(NewVarName(preds[l.idx].Name))
		if !l.pos {
			lit = NewUnaryExpr(LogNot, lit)
		}
		e = NewBinaryExpr(LogAnd, e, lit)
	}
	return e
}

// subsumedBy reports whether some already-recorded prime implicant's
// literal set is a subset of cube's (same indices, same polarities) —
// in which case cube's disjunct adds nothing a shorter one didn't already
// cover.
func subsumedBy(cube []cubeLit, primes [][]cubeLit) bool {
	for _, p := range primes {
		if literalSubset(p, cube) {
			return true
		}
	}
	return false
}

func literalSubset(a, b []cubeLit) bool {
	for _, la := range a {
		found := false
		for _, lb := range b {
			if la.idx == lb.idx && la.pos == lb.pos {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// smtUnsat reports whether expr is unsatisfiable, using solver/enc.
func smtUnsat(solver smt.Solver, enc Encoder, expr Expr) (bool, error) {
	term, err := enc(expr)
	if err != nil {
		return false, err
	}
	if err := solver.Push(); err != nil {
		return false, err
	}
	defer solver.Pop()
	if err := solver.Assert(term); err != nil {
		return false, err
	}
	sat, err := solver.CheckSat()
	if err != nil {
		return false, err
	}
	return !sat, nil
}

func isTautology(solver smt.Solver, enc Encoder, expr Expr) (bool, error) {
	return smtUnsat(solver, enc, NewUnaryExpr(LogNot, expr))
}

// weakest computes weakest(phi, P) per the prime-implicant cube
// enumeration: the weakest boolean-program formula over P's abstract
// variables that phi (a concrete-side formula) implies.
func weakest(phi Expr, preds []*Predicate, solver smt.Solver, enc Encoder) (Expr, error) {
	if taut, err := isTautology(solver, enc, phi); err != nil {
		return nil, err
	} else if taut {
		return NewBoolLiteral(true), nil
	}
	if contra, err := smtUnsat(solver, enc, phi); err != nil {
		return nil, err
	} else if contra {
		return NewBoolLiteral(false), nil
	}

	var primes [][]cubeLit
	var walkErr error

	var rec func(start int, cube []cubeLit)
	rec = func(start int, cube []cubeLit) {
		if walkErr != nil {
			return
		}
		for idx := start; idx < len(preds); idx++ {
			for _, pol := range [2]bool{true, false} {
				newCube := append(append([]cubeLit{}, cube...), cubeLit{idx, pol})
				concrete := cubeConcrete(newCube, preds)

				// c ⊨ ¬phi  <=>  c ∧ phi unsatisfiable: prune.
				doesntHelp, err := smtUnsat(solver, enc, NewBinaryExpr(LogAnd, concrete, phi))
				if err != nil {
					walkErr = err
					return
				}
				if doesntHelp {
					continue
				}

				// c ⊨ phi  <=>  c ∧ ¬phi unsatisfiable: prime implicant.
				isImplicant, err := smtUnsat(solver, enc, NewBinaryExpr(LogAnd, concrete, NewUnaryExpr(LogNot, phi)))
				if err != nil {
					walkErr = err
					return
				}
				if isImplicant {
					if !subsumedBy(newCube, primes) {
						primes = append(primes, newCube)
					}
					continue
				}

				rec(idx+1, newCube)
			}
		}
	}
	rec(0, nil)
	if walkErr != nil {
		return nil, walkErr
	}

	if len(primes) == 0 {
		return NewBoolLiteral(false), nil
	}
	result := cubeAbstract(primes[0], preds)
	for _, c := range primes[1:] {
		result = NewBinaryExpr(LogOr, result, cubeAbstract(c, preds))
	}
	return result, nil
}

// strongest computes strongest(phi, P) := ¬weakest(¬phi, P).
func strongest(phi Expr, preds []*Predicate, solver smt.Solver, enc Encoder) (Expr, error) {
	w, err := weakest(NewUnaryExpr(LogNot, phi), preds, solver, enc)
	if err != nil {
		return nil, err
	}
	return NewUnaryExpr(LogNot, w), nil
}

// Shadow maps an emitted abstracted-program statement back to the
// concrete-domain statement it represents for trace-lifting purposes: a
// CFG/BDD transition is always built from the abstracted node (predicate
// booleans, Unknown guards), but feasibility's wp-fold and the SSA
// encoding need the original condition or assignment, since those are
// what a concrete execution actually evaluates. Abstraction introduces
// statements with no concrete counterpart (the strong/strongNeg Assume
// pair wrapping a While/Ite/Assert) alongside ones that stand in directly
// for a surviving concrete statement (an assignment whose RHS becomes a
// Conditional over predicate booleans); both cases get an entry here. A
// statement with no entry (CallStmt, the literal Assert(false) C3
// always emits) needs none — it already means the same thing in both
// domains, or (for Assert) its Wp/Con never consult Cond.
type Shadow map[Stmt]Traceable

// Abstract transforms prog into a boolean program whose variables are the
// predicates in preds, per §4.3. It never mutates prog. The returned
// Shadow lets BuildCFG register the concrete statement a CFG edge
// corresponds to, rather than its abstracted stand-in.
func Abstract(prog *Program, preds *PredicateList, solver smt.Solver, enc Encoder) (*Program, Shadow, error) {
	out := NewProgram()
	shadow := make(Shadow)
	for _, p := range preds.For(GlobalScope) {
		out.Globals = append(out.Globals, &VarDef{Name: p.Name, Type: Bool, Scope: GlobalScope})
	}

	for _, fn := range prog.Funcs {
		visible := visiblePredicates(preds, fn.Name)

		newFn := &FunDef{Name: fn.Name}
		for _, p := range preds.For(fn.Name) {
			newFn.Locals = append(newFn.Locals, &VarDef{Name: p.Name, Type: Bool, Scope: fn.Name})
		}

		body, err := abstractStmts(fn.Body, visible, solver, enc, shadow)
		if err != nil {
			return nil, nil, err
		}
		newFn.Body = body
		out.Funcs = append(out.Funcs, newFn)
	}

	// Every VarName abstraction emitted (one per predicate boolean) is
	// unresolved; bind them against the VarDefs just created so the
	// abstract program can be SSA-encoded and reached like any other.
	if err := out.Validate(); err != nil {
		return nil, nil, err
	}
	return out, shadow, nil
}

func abstractStmts(body []Stmt, visible []*Predicate, solver smt.Solver, enc Encoder, shadow Shadow) ([]Stmt, error) {
	var out []Stmt
	for _, s := range body {
		abstracted, err := abstractStmt(s, visible, solver, enc, shadow)
		if err != nil {
			return nil, err
		}
		out = append(out, abstracted...)
	}
	return out, nil
}

func abstractStmt(s Stmt, visible []*Predicate, solver smt.Solver, enc Encoder, shadow Shadow) ([]Stmt, error) {
	switch s := s.(type) {
	case *Skip, *DocString:
		return nil, nil

	case *CallStmt:
		return []Stmt{&CallStmt{Target: s.Target}}, nil

	case *Assume:
		return nil, &UnsupportedOperationError{Op: "abstract", Detail: "assume may not appear in user source"}

	case *While:
		strong, strongNeg, err := strongestPair(s.Cond, visible, solver, enc)
		if err != nil {
			return nil, err
		}
		body, err := abstractStmts(s.Body, visible, solver, enc, shadow)
		if err != nil {
			return nil, err
		}
		enter := &Assume{Cond: strong}
		shadow[enter] = &Assume{Cond: s.Cond.Copy()}
		exit := &Assume{Cond: strongNeg}
		shadow[exit] = &Assume{Cond: NewUnaryExpr(LogNot, s.Cond.Copy())}

		loop := &While{Cond: Unknown, Body: append([]Stmt{enter}, body...)}
		return []Stmt{&DocString{Text: "abstracted while"}, loop, exit}, nil

	case *Ite:
		strong, strongNeg, err := strongestPair(s.Cond, visible, solver, enc)
		if err != nil {
			return nil, err
		}
		then, err := abstractStmts(s.Then, visible, solver, enc, shadow)
		if err != nil {
			return nil, err
		}
		els, err := abstractStmts(s.Else, visible, solver, enc, shadow)
		if err != nil {
			return nil, err
		}
		thenGuard := &Assume{Cond: strong}
		shadow[thenGuard] = &Assume{Cond: s.Cond.Copy()}
		elseGuard := &Assume{Cond: strongNeg}
		shadow[elseGuard] = &Assume{Cond: NewUnaryExpr(LogNot, s.Cond.Copy())}

		return []Stmt{&Ite{
			Cond: Unknown,
			Then: append([]Stmt{thenGuard}, then...),
			Else: append([]Stmt{elseGuard}, els...),
		}}, nil

	case *Assert:
		strong, strongNeg, err := strongestPair(s.Cond, visible, solver, enc)
		if err != nil {
			return nil, err
		}
		thenGuard := &Assume{Cond: strong}
		shadow[thenGuard] = &Assume{Cond: s.Cond.Copy()}
		elseGuard := &Assume{Cond: strongNeg}
		shadow[elseGuard] = &Assume{Cond: NewUnaryExpr(LogNot, s.Cond.Copy())}

		return []Stmt{&Ite{
			Cond: Unknown,
			Then: []Stmt{thenGuard},
			Else: []Stmt{elseGuard, &Assert{Cond: NewBoolLiteral(false)}},
		}}, nil

	case *SimpleAssignment:
		return abstractAssignment([]*VarName{s.Var}, []Expr{s.Expr}, visible, solver, enc, shadow, s)

	case *ParallelAssignment:
		return abstractAssignment(s.Vars, s.Exprs, visible, solver, enc, shadow, s)

	default:
		return nil, &UnsupportedOperationError{Op: "abstract", Detail: "unrecognised statement"}
	}
}

// strongestPair computes strongest(cond,P) and strongest(¬cond,P) together,
// the pair every branching construct's abstraction rule wraps its taken
// branch in.
func strongestPair(cond Expr, visible []*Predicate, solver smt.Solver, enc Encoder) (pos, neg Expr, err error) {
	pos, err = strongest(cond, visible, solver, enc)
	if err != nil {
		return nil, nil, err
	}
	neg, err = strongest(NewUnaryExpr(LogNot, cond), visible, solver, enc)
	if err != nil {
		return nil, nil, err
	}
	return pos, neg, nil
}

// abstractAssignment implements the assignment rule of §4.3: every
// predicate mentioning an assigned variable gets a new boolean value
// computed from its weakest/strongest image under the assignment. concrete
// is the original (untouched) assignment statement, recorded in shadow
// against whichever form (Skip, SimpleAssignment, or ParallelAssignment)
// the rewrite happens to emit.
func abstractAssignment(vars []*VarName, exprs []Expr, visible []*Predicate, solver smt.Solver, enc Encoder, shadow Shadow, concrete Traceable) ([]Stmt, error) {
	subst := make(map[string]Expr, len(vars))
	for i, v := range vars {
		subst[v.Name] = exprs[i]
	}

	var outVars []*VarName
	var outExprs []Expr
	for _, p := range visible {
		mentions := false
		for _, v := range vars {
			if Contains(p.Expr, v.Name) {
				mentions = true
				break
			}
		}
		if !mentions {
			continue
		}

		wp := Replace(p.Expr, subst)
		pos, err := weakest(wp, visible, solver, enc)
		if err != nil {
			return nil, err
		}
		neg, err := weakest(NewUnaryExpr(LogNot, wp), visible, solver, enc)
		if err != nil {
			return nil, err
		}

		rhs := NewConditional(NewBinaryExpr(LogOr, pos, neg), NewUnaryExpr(LogNot, neg), Unknown)
		outVars = append(outVars, NewVarName(p.Name))
		outExprs = append(outExprs, rhs)
	}

	switch len(outVars) {
	case 0:
		sk := &Skip{}
		shadow[sk] = concrete
		return []Stmt{sk}, nil
	case 1:
		sa := &SimpleAssignment{Var: outVars[0], Expr: outExprs[0]}
		shadow[sa] = concrete
		return []Stmt{sa}, nil
	default:
		pa := &ParallelAssignment{Vars: outVars, Exprs: outExprs}
		shadow[pa] = concrete
		return []Stmt{pa}, nil
	}
}
