package cegar

import (
	"fmt"

	"github.com/benbjohnson/cegar/bdd"
	"github.com/benbjohnson/cegar/symbolic"
)

// ExtractTrace finds a shortest witness path from cfg's initial state to its
// bad (fail-sink) state within reach, per §4.5's find_path, and lifts it to
// a flat sequence of Traceable statements per §4.6, recursively expanding
// every summary edge into the callee's own body. It reports (nil, false) if
// no such path exists.
func ExtractTrace(cfg *CompiledCFG, reach *bdd.Node) ([]Traceable, bool, error) {
	path := symbolic.FindPath(cfg.CFG, cfg.Init, cfg.Bad, reach, cfg.CFG.Zero())
	if path == nil {
		return nil, false, nil
	}
	trace, err := liftSegment(cfg, path, decodePath(cfg.CFG, path), cfg.CFG.Zero())
	if err != nil {
		return nil, false, err
	}
	return trace, true, nil
}

func decodePath(g *symbolic.CFG, path []*bdd.Node) []symbolic.Node {
	out := make([]symbolic.Node, len(path))
	for i, p := range path {
		out[i] = g.Decode(p)
	}
	return out
}

// liftSegment walks adjacent (node, node) pairs of a witness path, resolving
// each to its registered statement (per cfgBuilder.walkBody's edge
// bookkeeping) and expanding any CallSite->Return pair — a folded-back
// summary edge — by recursing into the callee via expandCall.
func liftSegment(cfg *CompiledCFG, states []*bdd.Node, nodes []symbolic.Node, ignoredEdges *bdd.Node) ([]Traceable, error) {
	var out []Traceable
	for i := 0; i+1 < len(nodes); i++ {
		pre, post := nodes[i], nodes[i+1]

		if stmt, ok := cfg.Edge(pre, post); ok {
			out = append(out, stmt)
			continue
		}

		if pre.Type == symbolic.CallSite && post.Type == symbolic.Return && pre.ID == post.ID {
			sub, err := cfg.expandCall(pre.ID, states[i], states[i+1], ignoredEdges)
			if err != nil {
				return nil, err
			}
			out = append(out, sub...)
			continue
		}

		// RETURN -> next is the plain identity fall-through AddTransition
		// emitted after a CallStmt (see cfgBuilder.walkBody); it carries no
		// statement of its own.
		if pre.Type == symbolic.Return {
			continue
		}

		return nil, fmt.Errorf("cegar: trace lifting: no statement registered for edge %v -> %v", pre, post)
	}
	return out, nil
}

// expandCall recursively extracts and lifts the witness path inside the
// callee invoked by call site callID, given the pre-call and post-call
// states observed along the outer path (from which the callee's own
// src/dst — ENTRY with the call-time globals, EXIT with the return-time
// globals — are projected), and returns the callee's lifted subtrace
// bracketed by a trailing synthetic Return marker (the leading Call marker
// was already emitted by the caller's own edge lookup).
func (c *CompiledCFG) expandCall(callID int, preState, postState *bdd.Node, ignoredEdges *bdd.Node) ([]Traceable, error) {
	call := symbolic.Call{ID: callID}
	proc, ok := c.CFG.ProcOf(call)
	if !ok {
		return nil, fmt.Errorf("cegar: trace lifting: call site %d has no registered procedure", callID)
	}
	mgr := c.CFG.Manager()

	subSrc := mgr.And(c.CFG.Encode(proc.EntryNode(), false), globalsOnly(c.CFG, mgr, preState))
	subDst := mgr.And(c.CFG.Encode(proc.ExitNode(), false), globalsOnly(c.CFG, mgr, postState))

	// Block this exact summary edge from being retaken by the recursive
	// descent below, so a procedure that (directly or transitively) calls
	// itself can't loop the expansion forever.
	thisSummary := mgr.And(c.CFG.Encode(call.CallNode(), false), c.CFG.Encode(call.ReturnNode(), true))
	nested := mgr.Or(ignoredEdges, thisSummary)

	sum := symbolic.Reachable(c.CFG, subSrc, c.CFG.Zero(), false)
	path := symbolic.FindPath(c.CFG, subSrc, subDst, sum, nested)
	if path == nil {
		return nil, fmt.Errorf("cegar: trace lifting: no witness path inside callee of call site %d", callID)
	}

	sub, err := liftSegment(c, path, decodePath(c.CFG, path), nested)
	if err != nil {
		return nil, err
	}
	return append(sub, &ReturnStmt{}), nil
}

// globalsOnly projects a full single-minterm state down to the cube over
// just the global program variables, dropping its node and local-variable
// bits — the call-time/return-time global valuation a summary edge relates.
func globalsOnly(cfg *symbolic.CFG, mgr *bdd.Manager, state *bdd.Node) *bdd.Node {
	remove := append([]int{}, cfg.StateVariables()...)
	for i := 0; i < cfg.NumLocals(); i++ {
		remove = append(remove, cfg.LocalVar(i, false))
	}
	return mgr.ExistAbstract(state, remove)
}
