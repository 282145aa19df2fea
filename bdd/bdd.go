// Package bdd implements a small reduced ordered binary decision diagram
// engine: variables are indexed by position, nodes are hash-consed so that
// pointer equality is semantic equality, and Ite is the single primitive
// every other boolean operation is built from.
//
// This is a from-scratch implementation rather than a binding to an existing
// decision-diagram library (see the module's DESIGN.md for why). The
// operation set and variable-layout conventions mirror the CUDD-based usage
// in the CEGAR checker this package supports: Ite, And/Or/Not, variable
// composition, existential abstraction, equality, and pick-one-minterm.
package bdd

import "fmt"

// Node is a handle into a Manager's hash-consed node table. Two Nodes
// produced by the same Manager are semantically equal iff they are the same
// pointer.
type Node struct {
	mgr *Manager
	id  uint64

	// v is the variable index at this node, or terminalVar for a leaf.
	v      int
	lo, hi *Node // unused at terminals
	val    bool  // terminal value; only meaningful when v == terminalVar
}

const terminalVar = -1

// Mgr returns the Manager that owns n.
func (n *Node) Mgr() *Manager { return n.mgr }

// IsTerminal reports whether n is the constant zero or one node.
func (n *Node) IsTerminal() bool { return n.v == terminalVar }

// String returns a debug representation of n.
func (n *Node) String() string {
	if n.IsTerminal() {
		if n.val {
			return "1"
		}
		return "0"
	}
	return fmt.Sprintf("(ite x%d %s %s)", n.v, n.hi, n.lo)
}

type nodeKey struct {
	v      int
	lo, hi *Node
}

type iteKey struct {
	f, g, h *Node
}

// Manager owns the node table for a family of BDDs built over a fixed
// number of boolean variables, indexed 0..NumVars()-1.
type Manager struct {
	numVars int
	zero    *Node
	one     *Node

	unique map[nodeKey]*Node
	iteMemo map[iteKey]*Node
	nextID  uint64
}

// NewManager returns a new Manager supporting numVars boolean variables.
func NewManager(numVars int) *Manager {
	m := &Manager{
		numVars: numVars,
		unique:  make(map[nodeKey]*Node),
		iteMemo: make(map[iteKey]*Node),
	}
	m.zero = &Node{mgr: m, v: terminalVar, val: false}
	m.one = &Node{mgr: m, v: terminalVar, val: true}
	return m
}

// NumVars returns the number of boolean variables the manager was built for.
func (m *Manager) NumVars() int { return m.numVars }

// Zero returns the constant false BDD.
func (m *Manager) Zero() *Node { return m.zero }

// One returns the constant true BDD.
func (m *Manager) One() *Node { return m.one }

func (m *Manager) terminal(val bool) *Node {
	if val {
		return m.one
	}
	return m.zero
}

// makeNode returns the canonical node for (v, lo, hi), applying the
// standard reduction rule (lo == hi collapses to lo) and consulting the
// hash-consing table.
func (m *Manager) makeNode(v int, lo, hi *Node) *Node {
	if lo == hi {
		return lo
	}
	key := nodeKey{v, lo, hi}
	if n, ok := m.unique[key]; ok {
		return n
	}
	m.nextID++
	n := &Node{mgr: m, id: m.nextID, v: v, lo: lo, hi: hi}
	m.unique[key] = n
	return n
}

// Var returns the BDD representing the positive literal of variable v.
func (m *Manager) Var(v int) *Node {
	return m.makeNode(v, m.zero, m.one)
}

// topVar returns the smallest variable index among the given non-terminal
// nodes, or terminalVar if all are terminal.
func topVar(nodes ...*Node) int {
	top := terminalVar
	for _, n := range nodes {
		if n.IsTerminal() {
			continue
		}
		if top == terminalVar || n.v < top {
			top = n.v
		}
	}
	return top
}

func cofactor(n *Node, v int, high bool) *Node {
	if n.IsTerminal() || n.v != v {
		return n
	}
	if high {
		return n.hi
	}
	return n.lo
}

// Ite returns the BDD for "if f then g else h" — the universal boolean
// operator every other operation in this package reduces to.
func (m *Manager) Ite(f, g, h *Node) *Node {
	switch {
	case f == m.one:
		return g
	case f == m.zero:
		return h
	case g == h:
		return g
	case g == m.one && h == m.zero:
		return f
	case g == m.zero && h == m.one:
		return m.Not(f)
	}

	key := iteKey{f, g, h}
	if r, ok := m.iteMemo[key]; ok {
		return r
	}

	v := topVar(f, g, h)
	f0, f1 := cofactor(f, v, false), cofactor(f, v, true)
	g0, g1 := cofactor(g, v, false), cofactor(g, v, true)
	h0, h1 := cofactor(h, v, false), cofactor(h, v, true)

	lo := m.Ite(f0, g0, h0)
	hi := m.Ite(f1, g1, h1)
	r := m.makeNode(v, lo, hi)
	m.iteMemo[key] = r
	return r
}

// Not returns the negation of f.
func (m *Manager) Not(f *Node) *Node { return m.Ite(f, m.zero, m.one) }

// And returns the conjunction of f and g.
func (m *Manager) And(f, g *Node) *Node { return m.Ite(f, g, m.zero) }

// Or returns the disjunction of f and g.
func (m *Manager) Or(f, g *Node) *Node { return m.Ite(f, m.one, g) }

// Xor returns the exclusive-or of f and g.
func (m *Manager) Xor(f, g *Node) *Node { return m.Ite(f, m.Not(g), g) }

// Implies returns "f -> g".
func (m *Manager) Implies(f, g *Node) *Node { return m.Ite(f, g, m.one) }

// Iff returns "f <-> g".
func (m *Manager) Iff(f, g *Node) *Node { return m.Ite(f, g, m.Not(g)) }

// AndMulti conjoins an arbitrary number of BDDs, starting from One().
func (m *Manager) AndMulti(nodes ...*Node) *Node {
	r := m.one
	for _, n := range nodes {
		r = m.And(r, n)
	}
	return r
}

// OrMulti disjoins an arbitrary number of BDDs, starting from Zero().
func (m *Manager) OrMulti(nodes ...*Node) *Node {
	r := m.zero
	for _, n := range nodes {
		r = m.Or(r, n)
	}
	return r
}

// ExistAbstract existentially quantifies f over the given variables:
// ∃vars. f.
func (m *Manager) ExistAbstract(f *Node, vars []int) *Node {
	if len(vars) == 0 {
		return f
	}
	set := make(map[int]bool, len(vars))
	for _, v := range vars {
		set[v] = true
	}
	memo := make(map[*Node]*Node)
	var rec func(n *Node) *Node
	rec = func(n *Node) *Node {
		if n.IsTerminal() {
			return n
		}
		if r, ok := memo[n]; ok {
			return r
		}
		lo := rec(n.lo)
		hi := rec(n.hi)
		var res *Node
		if set[n.v] {
			res = m.Or(lo, hi)
		} else {
			res = m.makeNode(n.v, lo, hi)
		}
		memo[n] = res
		return res
	}
	return rec(f)
}

// VectorCompose simultaneously substitutes, for every variable v with
// vec[v] != nil, the BDD vec[v] in place of v's occurrences in f. Variables
// with no entry (v >= len(vec) or vec[v] == nil) are left unchanged. This is
// the mechanism behind "unprime" renaming after an image computation.
func (m *Manager) VectorCompose(f *Node, vec []*Node) *Node {
	memo := make(map[*Node]*Node)
	var rec func(n *Node) *Node
	rec = func(n *Node) *Node {
		if n.IsTerminal() {
			return n
		}
		if r, ok := memo[n]; ok {
			return r
		}
		lo := rec(n.lo)
		hi := rec(n.hi)
		var res *Node
		if n.v < len(vec) && vec[n.v] != nil {
			res = m.Ite(vec[n.v], hi, lo)
		} else {
			// lo/hi may now test variables ordered above n.v, so rebuild
			// through Ite rather than makeNode to keep the result ordered.
			res = m.Ite(m.Var(n.v), hi, lo)
		}
		memo[n] = res
		return res
	}
	return rec(f)
}

// PickOneMinterm returns a single cube over vars that is an implicant of f,
// i.e. one concrete assignment to vars consistent with some satisfying
// assignment of f. Returns Zero() if f is unsatisfiable.
func (m *Manager) PickOneMinterm(f *Node, vars []int) *Node {
	if f == m.zero {
		return m.zero
	}

	assign := make(map[int]bool)
	n := f
	for !n.IsTerminal() {
		switch {
		case n.lo == m.zero && n.hi != m.zero:
			assign[n.v] = true
			n = n.hi
		case n.hi == m.zero:
			assign[n.v] = false
			n = n.lo
		default:
			assign[n.v] = true
			n = n.hi
		}
	}

	cube := m.one
	for _, v := range vars {
		lit := m.Var(v)
		if val, ok := assign[v]; ok && !val {
			lit = m.Not(lit)
		} else if !ok {
			lit = m.Not(lit) // unconstrained: fix to false for a deterministic witness
		}
		cube = m.And(cube, lit)
	}
	return cube
}

// Equal returns "l <-> r". Package-level helper mirroring the original
// implementation's free `equal(BDD, BDD)` function.
func Equal(l, r *Node) *Node { return l.mgr.Iff(l, r) }

// Imply returns "l -> r".
func Imply(l, r *Node) *Node { return l.mgr.Implies(l, r) }
