package symbolic

import (
	"fmt"
	"math/bits"
	"sort"

	"github.com/benbjohnson/cegar/bdd"
)

// Concat concatenates variable vectors in order, mirroring the original
// free function of the same name: it is used to build VectorCompose
// argument lists out of several named variable ranges.
func Concat(vecs ...[]*bdd.Node) []*bdd.Node {
	var out []*bdd.Node
	for _, v := range vecs {
		out = append(out, v...)
	}
	return out
}

// Multiply conjuncts every BDD across the given vectors, starting from mgr's
// One(). Mirrors the original free function `multiply`.
func Multiply(mgr *bdd.Manager, vecs ...[]*bdd.Node) *bdd.Node {
	acc := mgr.One()
	for _, v := range vecs {
		for _, e := range v {
			acc = mgr.And(acc, e)
		}
	}
	return acc
}

// CFG is a symbolic control-flow graph: nodes and program variables are
// encoded as boolean-decision-diagram variables, and transitions are BDD
// relations over a "current" and "primed" (next-state) copy of those
// variables, plus a third "rel" copy of the global variables used as
// call-site memory while computing procedure summaries.
//
// Variable layout (mirrors ControlFlowGraph.hpp's documented layout):
//  1. state variables      (binary encoding of a Node)
//  2. program variables    (globals, then locals)
//  3. primed state variables
//  4. primed program variables
//  5. "rel" global variables (call-site memory for summary relations)
type CFG struct {
	mgr *bdd.Manager

	numNodeVars int
	numGlobVars int
	numLocVars  int

	offsetPrime int // index where the primed state vars begin
	offsetRel   int // index where the rel global vars begin

	nodes   []Node
	nodeIdx map[Node]int

	trans *bdd.Node // transition relation, including inserted summary edges
	calls *bdd.Node // CALL -> ENTRY edges

	callSites map[int][]Call // procedure id -> call sites invoking it
	callProc  map[int]int    // call id -> procedure id it invokes
}

// NewCFG allocates a CFG with the given shape. numMainBlocks/numBlocks are
// the MAIN and BLOCK node counts, numProcedures/numCalls the ENTRY+EXIT and
// CALL+RETURN node counts, and numGlobalVars/numLocalVars size the program
// variable vector.
func NewCFG(numMainBlocks, numBlocks, numProcedures, numCalls, numGlobalVars, numLocalVars int) *CFG {
	var nodes []Node
	for i := 0; i < numMainBlocks; i++ {
		nodes = append(nodes, Node{Main, i})
	}
	for i := 0; i < numBlocks; i++ {
		nodes = append(nodes, Node{Block, i})
	}
	for i := 0; i < numProcedures; i++ {
		nodes = append(nodes, Node{Entry, i})
	}
	for i := 0; i < numProcedures; i++ {
		nodes = append(nodes, Node{Exit, i})
	}
	for i := 0; i < numCalls; i++ {
		nodes = append(nodes, Node{CallSite, i})
	}
	for i := 0; i < numCalls; i++ {
		nodes = append(nodes, Node{Return, i})
	}

	numNodeVars := bitsNeeded(len(nodes))
	numPVars := numGlobalVars + numLocalVars

	total := numNodeVars*2 + numPVars*2 + numGlobalVars
	mgr := bdd.NewManager(total)

	c := &CFG{
		mgr:         mgr,
		numNodeVars: numNodeVars,
		numGlobVars: numGlobalVars,
		numLocVars:  numLocalVars,
		offsetPrime: numNodeVars + numPVars,
		offsetRel:   2 * (numNodeVars + numPVars),
		nodes:       nodes,
		nodeIdx:     make(map[Node]int, len(nodes)),
		trans:       mgr.Zero(),
		calls:       mgr.Zero(),
		callSites:   make(map[int][]Call),
		callProc:    make(map[int]int),
	}
	for i, n := range nodes {
		c.nodeIdx[n] = i
	}

	return c
}

func bitsNeeded(n int) int {
	if n <= 1 {
		return 1
	}
	return bits.Len(uint(n - 1))
}

// Manager returns the BDD manager backing this CFG.
func (c *CFG) Manager() *bdd.Manager { return c.mgr }

// Close releases the CFG's BDD manager. The manager is pure Go with no
// native resources to free, so this is a no-op today — it exists so a
// caller can follow the same explicit-ownership discipline as
// smt/z3.Solver.Close without depending on package-level cleanup.
func (c *CFG) Close() error { return nil }

func (c *CFG) stateVar(bit int, primed bool) int {
	if primed {
		return c.offsetPrime + bit
	}
	return bit
}

func (c *CFG) programVar(idx int, primed bool) int {
	base := c.numNodeVars
	if primed {
		base = c.offsetPrime + c.numNodeVars
	}
	return base + idx
}

// GlobalVar returns the variable index of global i, primed or not.
func (c *CFG) GlobalVar(i int, primed bool) int { return c.programVar(i, primed) }

// LocalVar returns the variable index of local i, primed or not.
func (c *CFG) LocalVar(i int, primed bool) int { return c.programVar(c.numGlobVars+i, primed) }

// GlobalVarRel returns the variable index of the "rel" (doubly-primed
// memory) copy of global i.
func (c *CFG) GlobalVarRel(i int) int { return c.offsetRel + i }

// StateVariables returns every unprimed state variable index.
func (c *CFG) StateVariables() []int {
	out := make([]int, c.numNodeVars)
	for i := range out {
		out[i] = c.stateVar(i, false)
	}
	return out
}

// StateVariablesPrime returns every primed state variable index.
func (c *CFG) StateVariablesPrime() []int {
	out := make([]int, c.numNodeVars)
	for i := range out {
		out[i] = c.stateVar(i, true)
	}
	return out
}

// ProgramVariables returns every unprimed program (global+local) variable
// index.
func (c *CFG) ProgramVariables() []int {
	n := c.numGlobVars + c.numLocVars
	out := make([]int, n)
	for i := range out {
		out[i] = c.programVar(i, false)
	}
	return out
}

// ProgramVariablesPrime returns every primed program variable index.
func (c *CFG) ProgramVariablesPrime() []int {
	n := c.numGlobVars + c.numLocVars
	out := make([]int, n)
	for i := range out {
		out[i] = c.programVar(i, true)
	}
	return out
}

// NumGlobals returns the number of global program variables.
func (c *CFG) NumGlobals() int { return c.numGlobVars }

// NumLocals returns the number of local program variables (the shared
// per-frame slot count, sized to the function with the most locals).
func (c *CFG) NumLocals() int { return c.numLocVars }

// GlobalVariablesRel returns every "rel" global variable index.
func (c *CFG) GlobalVariablesRel() []int {
	out := make([]int, c.numGlobVars)
	for i := range out {
		out[i] = c.offsetRel + i
	}
	return out
}

// Encode returns the BDD predicate "current state is node" (or "next state
// is node" when primed is true): the conjunction of literals giving node's
// binary index over the state variables.
func (c *CFG) Encode(node Node, primed bool) *bdd.Node {
	idx, ok := c.nodeIdx[node]
	if !ok {
		panic(fmt.Sprintf("symbolic: node %v not registered with this CFG", node))
	}
	r := c.mgr.One()
	for bit := 0; bit < c.numNodeVars; bit++ {
		v := c.mgr.Var(c.stateVar(bit, primed))
		if idx&(1<<uint(bit)) == 0 {
			v = c.mgr.Not(v)
		}
		r = c.mgr.And(r, v)
	}
	return r
}

// Decode recovers the Node encoded by a single-minterm state predicate, as
// produced by PickOneMinterm over the state variables.
func (c *CFG) Decode(state *bdd.Node) Node {
	idx := 0
	for bit := 0; bit < c.numNodeVars; bit++ {
		v := c.stateVar(bit, false)
		lit := c.mgr.Var(v)
		if c.mgr.And(state, c.mgr.Not(lit)) == c.mgr.Zero() {
			idx |= 1 << uint(bit)
		}
	}
	if idx < 0 || idx >= len(c.nodes) {
		panic(fmt.Sprintf("symbolic: decoded index %d out of range", idx))
	}
	return c.nodes[idx]
}

// checkTransitionConstraints rejects structurally nonsensical edges; it
// mirrors the original CFG's sanity check on addTransition.
func checkTransitionConstraints(src, dst StateType) bool {
	switch src {
	case Main, Block, Return:
		// MAIN targets: the end of main's chain, or a loop back to its start.
		return dst == Main || dst == Block || dst == CallSite || dst == Exit || dst == Entry
	case Entry:
		// ENTRY target: a loop at the very start of a procedure body.
		return dst == Block || dst == CallSite || dst == Exit || dst == Entry
	case Exit:
		return false // EXIT only leaves via a folded-back summary edge
	case CallSite:
		return false // CALL only leaves via the calls relation, not addTransition
	default:
		return false
	}
}

// AddTransition adds an ordinary (non-call) edge to the transition
// relation: from src, under guardedAction (a BDD over unprimed and primed
// program variables), control moves to dst.
func (c *CFG) AddTransition(src, dst Node, guardedAction *bdd.Node) {
	if !checkTransitionConstraints(src.Type, dst.Type) {
		panic(fmt.Sprintf("symbolic: illegal transition %v -> %v", src, dst))
	}
	edge := c.mgr.AndMulti(c.Encode(src, false), guardedAction, c.Encode(dst, true))
	c.trans = c.mgr.Or(c.trans, edge)
}

// AddCall registers that call site `call` invokes procedure `proc`: it adds
// a CALL->ENTRY edge (globals pass through unchanged, locals of the new
// frame start unconstrained by the caller). The matching summary shortcut
// edge (proc's exit relation folded back to call's return) is inserted
// later, by Reachable, once proc's input/output relation is known.
func (c *CFG) AddCall(call Call, proc Procedure) {
	idEntry := c.mgr.One()
	for i := 0; i < c.numGlobVars; i++ {
		idEntry = c.mgr.And(idEntry, bdd.Equal(c.mgr.Var(c.GlobalVar(i, false)), c.mgr.Var(c.GlobalVar(i, true))))
	}
	callEdge := c.mgr.AndMulti(c.Encode(call.CallNode(), false), idEntry, c.Encode(proc.EntryNode(), true))
	c.calls = c.mgr.Or(c.calls, callEdge)

	c.callSites[proc.ID] = append(c.callSites[proc.ID], call)
	c.callProc[call.ID] = proc.ID
}

// CallSites returns the call sites registered against procedure proc.
func (c *CFG) CallSites(proc Procedure) []Call { return c.callSites[proc.ID] }

// ProcOf returns the procedure invoked by call, if any.
func (c *CFG) ProcOf(call Call) (Procedure, bool) {
	id, ok := c.callProc[call.ID]
	return Procedure{id}, ok
}

// Procedures returns every procedure id that has at least one registered
// call site, in ascending order.
func (c *CFG) Procedures() []int {
	ids := make([]int, 0, len(c.callSites))
	for id := range c.callSites {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// One returns the manager's constant true BDD.
func (c *CFG) One() *bdd.Node { return c.mgr.One() }

// Zero returns the manager's constant false BDD.
func (c *CFG) Zero() *bdd.Node { return c.mgr.Zero() }

// TransitionRelation returns the current transition relation, including any
// summary edges Reachable has inserted.
func (c *CFG) TransitionRelation() *bdd.Node { return c.trans }

// CallRelation returns the CALL->ENTRY relation.
func (c *CFG) CallRelation() *bdd.Node { return c.calls }
