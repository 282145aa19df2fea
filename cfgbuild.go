package cegar

import (
	"github.com/benbjohnson/cegar/bdd"
	"github.com/benbjohnson/cegar/symbolic"
)

// CompiledCFG is the result of translating an abstracted boolean Program
// into a symbolic.CFG: the graph itself, plus the bookkeeping trace lifting
// (C6) needs to walk a path of nodes back into statements and to recurse
// into a called procedure's own body.
type CompiledCFG struct {
	CFG  *symbolic.CFG
	Init *bdd.Node
	Bad  *bdd.Node

	// procByName maps a non-main function name to its symbolic.Procedure.
	procByName map[string]symbolic.Procedure
	// edges maps a registered (pre,post) node pair to the Traceable
	// statement (or synthetic Call marker) that produced it.
	edges map[edgeKey]Traceable
	// callStmt maps a Call site id back to the CallStmt it compiled from,
	// since symbolic.Call carries only an integer id.
	callStmt map[int]*CallStmt
	// mainEntry/mainExit are the MAIN(0)/MAIN(1) nodes; entry/exit of any
	// other function are symbolic.Procedure{id}.EntryNode()/ExitNode().
	mainEntry, mainExit symbolic.Node
}

type edgeKey struct {
	pre, post symbolic.Node
}

// Edge looks up the statement registered for the CFG edge pre->post.
func (c *CompiledCFG) Edge(pre, post symbolic.Node) (Traceable, bool) {
	s, ok := c.edges[edgeKey{pre, post}]
	return s, ok
}

// Procedure returns the compiled Procedure for a non-main function name.
func (c *CompiledCFG) Procedure(name string) (symbolic.Procedure, bool) {
	p, ok := c.procByName[name]
	return p, ok
}

// MainEntry/MainExit expose the two MAIN nodes bounding main's body.
func (c *CompiledCFG) MainEntry() symbolic.Node { return c.mainEntry }
func (c *CompiledCFG) MainExit() symbolic.Node  { return c.mainExit }

// cfgBuilder carries the two-pass numbering state: a first, counting-only
// walk over prog determines how many BLOCK/CALL nodes are needed (and
// hence how many BDD variables a Node needs), then a second walk — using
// the exact same deterministic traversal order — allocates real node ids
// and emits transitions into the now-constructed CFG.
type cfgBuilder struct {
	prog *Program

	// assigned once, before either walk: which procedure id each non-main
	// function gets, and each function's local-variable slot index map.
	procID     map[string]int
	globalIdx  map[*VarDef]int
	localIdx   map[*VarDef]int // recomputed per function by resetLocals
	numLocVars int

	nextBlock int // next BLOCK id to allocate (0 reserved for the fail sink)
	nextCall  int // next CALL/RETURN id to allocate

	cfg      *symbolic.CFG // nil during the counting pass
	edges    map[edgeKey]Traceable
	callStmt map[int]*CallStmt

	// shadow maps an abstracted statement node back to the concrete
	// statement it stands for (see Abstract); nil for a CFG built directly
	// from a program that was never abstracted.
	shadow Shadow
}

// BuildCFG translates an abstracted, validated boolean Program into a
// symbolic.CFG, per §4.4's statement-to-edges mapping. shadow (as returned
// by Abstract) is consulted so the edges map records, for trace lifting,
// the concrete statement a BDD transition corresponds to rather than its
// predicate-boolean stand-in; pass nil to register the literal statements
// as-is.
func BuildCFG(prog *Program, shadow Shadow) (*CompiledCFG, error) {
	b := &cfgBuilder{
		prog:      prog,
		procID:    make(map[string]int),
		globalIdx: make(map[*VarDef]int),
		shadow:    shadow,
	}
	for i, d := range prog.Globals {
		b.globalIdx[d] = i
	}
	id := 0
	for _, f := range prog.Funcs {
		if f.Name == "main" {
			continue
		}
		b.procID[f.Name] = id
		id++
		if len(f.Locals) > b.numLocVars {
			b.numLocVars = len(f.Locals)
		}
	}
	if main := prog.Main(); len(main.Locals) > b.numLocVars {
		b.numLocVars = len(main.Locals)
	}

	// Pass 1: count blocks and calls only.
	b.nextBlock = 1 // 0 reserved for the fail sink
	b.nextCall = 0
	b.walkProgram(nil)
	numBlocks, numCalls := b.nextBlock, b.nextCall

	// Pass 2: build the real CFG and emit transitions.
	cfg := symbolic.NewCFG(2, numBlocks, len(b.procID), numCalls, len(prog.Globals), b.numLocVars)
	b.cfg = cfg
	b.edges = make(map[edgeKey]Traceable)
	b.callStmt = make(map[int]*CallStmt)
	b.nextBlock = 1
	b.nextCall = 0
	b.walkProgram(cfg)

	procByName := make(map[string]symbolic.Procedure, len(b.procID))
	for name, pid := range b.procID {
		procByName[name] = symbolic.Procedure{ID: pid}
	}

	mainEntry, mainExit := symbolic.Node{Type: symbolic.Main, ID: 0}, symbolic.Node{Type: symbolic.Main, ID: 1}
	return &CompiledCFG{
		CFG:        cfg,
		Init:       cfg.Encode(mainEntry, false),
		Bad:        cfg.Encode(symbolic.Node{Type: symbolic.Block, ID: 0}, false),
		procByName: procByName,
		edges:      b.edges,
		callStmt:   b.callStmt,
		mainEntry:  mainEntry,
		mainExit:   mainExit,
	}, nil
}

// walkProgram drives both passes: cfg == nil means "count only".
func (b *cfgBuilder) walkProgram(cfg *symbolic.CFG) {
	main := b.prog.Main()
	b.resetLocals(main)
	b.walkBody(cfg, main.Body, symbolic.Node{Type: symbolic.Main, ID: 0}, symbolic.Node{Type: symbolic.Main, ID: 1})

	for _, f := range b.prog.Funcs {
		if f.Name == "main" {
			continue
		}
		b.resetLocals(f)
		proc := symbolic.Procedure{ID: b.procID[f.Name]}
		b.walkBody(cfg, f.Body, proc.EntryNode(), proc.ExitNode())
	}
}

func (b *cfgBuilder) resetLocals(f *FunDef) {
	b.localIdx = make(map[*VarDef]int, len(f.Locals))
	for i, d := range f.Locals {
		b.localIdx[d] = i
	}
}

func (b *cfgBuilder) newBlock() symbolic.Node {
	n := symbolic.Node{Type: symbolic.Block, ID: b.nextBlock}
	b.nextBlock++
	return n
}

func (b *cfgBuilder) newCall() symbolic.Call {
	c := symbolic.Call{ID: b.nextCall}
	b.nextCall++
	return c
}

func (b *cfgBuilder) failBlock() symbolic.Node { return symbolic.Node{Type: symbolic.Block, ID: 0} }

// traceOf returns the statement an edge should be registered against for
// trace-lifting purposes: its shadowed concrete counterpart, if Abstract
// recorded one, else st itself.
func (b *cfgBuilder) traceOf(st Traceable) Traceable {
	if b.shadow != nil {
		if concrete, ok := b.shadow[st.(Stmt)]; ok {
			return concrete
		}
	}
	return st
}

// walkBody emits (or, during pass 1, merely counts the nodes needed for)
// the sequence body, entering at pre and, barring an Assert(false) or loop
// body that never falls through, exiting at post.
func (b *cfgBuilder) walkBody(cfg *symbolic.CFG, body []Stmt, pre, post symbolic.Node) {
	cur := pre
	for i, s := range body {
		last := i == len(body)-1
		next := post
		if !last {
			next = b.newBlock()
		}

		switch st := s.(type) {
		case *Skip:
			if cfg != nil {
				cfg.AddTransition(cur, next, b.identity(cfg))
				b.edges[edgeKey{cur, next}] = b.traceOf(st)
			}

		case *DocString:
			if cfg != nil {
				cfg.AddTransition(cur, next, b.identity(cfg))
				b.edges[edgeKey{cur, next}] = &Skip{}
			}

		case *CallStmt:
			call := b.newCall()
			if cfg != nil {
				cfg.AddTransition(cur, call.CallNode(), b.identity(cfg))
				b.edges[edgeKey{cur, call.CallNode()}] = b.traceOf(st)
				proc, ok := b.procID[st.Target]
				if !ok {
					panic("cegar: call to unknown procedure " + st.Target)
				}
				cfg.AddCall(call, symbolic.Procedure{ID: proc})
				b.callStmt[call.ID] = st
				cfg.AddTransition(call.ReturnNode(), next, b.identity(cfg))
			}

		case *While:
			if cfg != nil {
				cfg.AddTransition(cur, next, b.identity(cfg)) // nondeterministic exit
			}
			b.walkBody(cfg, st.Body, cur, cur) // body loops back to cur

		case *Ite:
			b.walkBody(cfg, st.Then, cur, next)
			b.walkBody(cfg, st.Else, cur, next)

		case *Assume:
			if cfg != nil {
				action := cfg.Manager().And(b.boolEncode(cfg, st.Cond), b.identity(cfg))
				cfg.AddTransition(cur, next, action)
				b.edges[edgeKey{cur, next}] = b.traceOf(st)
			}

		case *Assert:
			// Abstraction only ever emits Assert(false): an unconditional
			// branch to the fail sink.
			if cfg != nil {
				cfg.AddTransition(cur, b.failBlock(), b.identity(cfg))
				b.edges[edgeKey{cur, b.failBlock()}] = st
			}
			continue // no fall-through to `next`; nothing consumes it.

		case *SimpleAssignment:
			if cfg != nil {
				action := b.compileAssign(cfg, []*VarName{st.Var}, []Expr{st.Expr})
				cfg.AddTransition(cur, next, action)
				b.edges[edgeKey{cur, next}] = b.traceOf(st)
			}

		case *ParallelAssignment:
			if cfg != nil {
				action := b.compileAssign(cfg, st.Vars, st.Exprs)
				cfg.AddTransition(cur, next, action)
				b.edges[edgeKey{cur, next}] = b.traceOf(st)
			}

		default:
			panic("cegar: BuildCFG: unrecognised statement")
		}

		cur = next
	}
}

// varIndex returns decl's CFG program-variable index, the primed copy when
// primed is true.
func (b *cfgBuilder) varIndex(cfg *symbolic.CFG, decl *VarDef, primed bool) int {
	if decl.Scope == GlobalScope {
		return cfg.GlobalVar(b.globalIdx[decl], primed)
	}
	return cfg.LocalVar(b.localIdx[decl], primed)
}

// identity is the "every program variable unchanged" relation.
func (b *cfgBuilder) identity(cfg *symbolic.CFG) *bdd.Node {
	mgr := cfg.Manager()
	id := mgr.One()
	vars, primes := cfg.ProgramVariables(), cfg.ProgramVariablesPrime()
	for i := range vars {
		id = mgr.And(id, bdd.Equal(mgr.Var(vars[i]), mgr.Var(primes[i])))
	}
	return id
}

// identityExcept is the identity relation over every program variable
// except those in skip (by CFG variable index, unprimed).
func (b *cfgBuilder) identityExcept(cfg *symbolic.CFG, skip map[int]bool) *bdd.Node {
	mgr := cfg.Manager()
	id := mgr.One()
	vars, primes := cfg.ProgramVariables(), cfg.ProgramVariablesPrime()
	for i := range vars {
		if skip[vars[i]] {
			continue
		}
		id = mgr.And(id, bdd.Equal(mgr.Var(vars[i]), mgr.Var(primes[i])))
	}
	return id
}

// boolEncode compiles a boolean predicate-variable expression to a BDD over
// unprimed program variables.
func (b *cfgBuilder) boolEncode(cfg *symbolic.CFG, e Expr) *bdd.Node {
	return b.encode(cfg, e, false)
}

func (b *cfgBuilder) encode(cfg *symbolic.CFG, e Expr, primed bool) *bdd.Node {
	mgr := cfg.Manager()
	switch e := e.(type) {
	case *Literal:
		if e.BoolValue() {
			return mgr.One()
		}
		return mgr.Zero()
	case *VarName:
		return mgr.Var(b.varIndex(cfg, e.Decl(), primed))
	case *UnaryExpr:
		child := b.encode(cfg, e.Child, primed)
		switch e.Op {
		case LogNot:
			return mgr.Not(child)
		}
	case *BinaryExpr:
		l, r := b.encode(cfg, e.Left, primed), b.encode(cfg, e.Right, primed)
		switch e.Op {
		case LogAnd:
			return mgr.And(l, r)
		case LogOr:
			return mgr.Or(l, r)
		case CmpEq:
			return bdd.Equal(l, r)
		case CmpNeq:
			return mgr.Not(bdd.Equal(l, r))
		}
	}
	panic("cegar: boolEncode: unsupported expression in abstracted program")
}

// compileAssign compiles a (possibly parallel) assignment of predicate
// booleans, per §4.4: each assigned variable's RHS is either a
// Conditional(guard, value, Unknown) — produced by abstraction — compiled
// as ¬guard ∨ (v' ↔ value), or, degenerately, a plain boolean expression
// compiled as v' ↔ expr. Unassigned program variables keep their identity.
func (b *cfgBuilder) compileAssign(cfg *symbolic.CFG, vars []*VarName, exprs []Expr) *bdd.Node {
	mgr := cfg.Manager()
	skip := make(map[int]bool, len(vars))
	action := mgr.One()
	for i, v := range vars {
		decl := v.Decl()
		vIdx := b.varIndex(cfg, decl, true)
		skip[b.varIndex(cfg, decl, false)] = true

		var rel *bdd.Node
		if cond, ok := exprs[i].(*Conditional); ok {
			if _, isUnknown := cond.Else.(*UnknownExpr); isUnknown {
				guard := b.boolEncode(cfg, cond.Cond)
				value := b.boolEncode(cfg, cond.Then)
				rel = mgr.Or(mgr.Not(guard), bdd.Equal(mgr.Var(vIdx), value))
			}
		}
		if rel == nil {
			value := b.boolEncode(cfg, exprs[i])
			rel = bdd.Equal(mgr.Var(vIdx), value)
		}
		action = mgr.And(action, rel)
	}
	return mgr.And(action, b.identityExcept(cfg, skip))
}
