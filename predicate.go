package cegar

import (
	"fmt"

	"github.com/benbjohnson/cegar/smt"
)

// Predicate is a named boolean expression that predicate abstraction
// turns into a boolean program variable.
type Predicate struct {
	Name  string // "g<k>" for a global predicate, "l<k>" for a local one
	Scope string // GlobalScope or the owning function's name
	Expr  Expr
}

func (p *Predicate) String() string { return p.Name }

// PredicateList maps scope name ("global" or a function name) to its
// ordered list of predicates, and supports extension with dedup modulo
// logical equivalence — see Extend.
type PredicateList struct {
	byScope map[string][]*Predicate

	nextGlobalID int
	nextLocalID  map[string]int
}

// NewPredicateList returns an empty predicate set.
func NewPredicateList() *PredicateList {
	return &PredicateList{
		byScope:     make(map[string][]*Predicate),
		nextLocalID: make(map[string]int),
	}
}

// Scopes returns every scope name currently holding at least one
// predicate, "global" first.
func (pl *PredicateList) Scopes() []string {
	var out []string
	if len(pl.byScope[GlobalScope]) > 0 {
		out = append(out, GlobalScope)
	}
	for scope := range pl.byScope {
		if scope != GlobalScope {
			out = append(out, scope)
		}
	}
	return out
}

// For returns the ordered predicate list for scope.
func (pl *PredicateList) For(scope string) []*Predicate { return pl.byScope[scope] }

// All returns every predicate across every scope, global first, in the
// order Extend accepted them within each scope.
func (pl *PredicateList) All() []*Predicate {
	out := append([]*Predicate{}, pl.byScope[GlobalScope]...)
	for scope, preds := range pl.byScope {
		if scope == GlobalScope {
			continue
		}
		out = append(out, preds...)
	}
	return out
}

// candidates returns the predicates Extend must dedup pred against: every
// predicate already in scope, plus every global predicate (globals are
// visible everywhere).
func (pl *PredicateList) candidates(scope string) []*Predicate {
	if scope == GlobalScope {
		return pl.byScope[GlobalScope]
	}
	return append(append([]*Predicate{}, pl.byScope[scope]...), pl.byScope[GlobalScope]...)
}

// Extend adds pred to scope's predicate list, returning the new Predicate
// and true, unless checkDup is set and the SMT oracle (via enc, which
// turns a cegar.Expr into a smt.Term) finds pred tautological,
// contradictory, or logically equivalent to an existing candidate in
// scope or global scope — in which case it returns (nil, false, nil)
// without modifying the list.
func (pl *PredicateList) Extend(pred Expr, scope string, solver smt.Solver, encode func(Expr) (smt.Term, error), checkDup bool) (*Predicate, bool, error) {
	if checkDup {
		term, err := encode(pred)
		if err != nil {
			return nil, false, err
		}
		negTerm, err := encode(NewUnaryExpr(LogNot, pred))
		if err != nil {
			return nil, false, err
		}

		if taut, err := smt.Tautology(solver, negTerm); err != nil {
			return nil, false, err
		} else if taut {
			return nil, false, nil
		}
		if contra, err := smt.Tautology(solver, term); err != nil {
			return nil, false, err
		} else if contra {
			return nil, false, nil
		}

		for _, existing := range pl.candidates(scope) {
			// pred and existing.Expr are logically equivalent iff their XOR
			// is unsatisfiable — they never disagree.
			xor := NewBinaryExpr(LogOr,
				NewBinaryExpr(LogAnd, pred, NewUnaryExpr(LogNot, existing.Expr)),
				NewBinaryExpr(LogAnd, NewUnaryExpr(LogNot, pred), existing.Expr))
			xorTerm, err := encode(xor)
			if err != nil {
				return nil, false, err
			}
			if same, err := smt.Tautology(solver, xorTerm); err != nil {
				return nil, false, err
			} else if same {
				return nil, false, nil
			}
		}
	}

	var name string
	if scope == GlobalScope {
		name = predicateName("g", pl.nextGlobalID)
		pl.nextGlobalID++
	} else {
		name = predicateName("l", pl.nextLocalID[scope])
		pl.nextLocalID[scope]++
	}

	p := &Predicate{Name: name, Scope: scope, Expr: pred}
	pl.byScope[scope] = append(pl.byScope[scope], p)
	return p, true, nil
}

func predicateName(prefix string, k int) string {
	return fmt.Sprintf("%s%d", prefix, k)
}
