package symbolic

import "github.com/benbjohnson/cegar/bdd"

// unprimeVec builds the VectorCompose substitution table that renames every
// primed state/program variable back onto its unprimed counterpart, i.e.
// the "shift next-state into current-state" step used after every image
// computation.
func (c *CFG) unprimeVec() []*bdd.Node {
	vec := make([]*bdd.Node, c.offsetRel+c.numGlobVars)
	for bit := 0; bit < c.numNodeVars; bit++ {
		vec[c.stateVar(bit, true)] = c.mgr.Var(c.stateVar(bit, false))
	}
	for i := 0; i < c.numGlobVars+c.numLocVars; i++ {
		vec[c.programVar(i, true)] = c.mgr.Var(c.programVar(i, false))
	}
	return vec
}

// currentVars returns every unprimed state+program variable index — the
// set existentially removed by a forward image computation.
func (c *CFG) currentVars() []int {
	return append(append([]int{}, c.StateVariables()...), c.ProgramVariables()...)
}

// currentLocVars returns every unprimed local variable index.
func (c *CFG) currentLocVars() []int { return localVars(c, false) }

// step computes one forward-image round: from ∧ trans, quantify away the
// current state+program vars, and rename the resulting primed copy back
// onto the current slot.
func (c *CFG) step(from, trans *bdd.Node) *bdd.Node {
	img := c.mgr.ExistAbstract(c.mgr.And(from, trans), c.currentVars())
	return c.mgr.VectorCompose(img, c.unprimeVec())
}

// fixpoint repeatedly applies step until from stops growing or badFn
// reports a violation, returning (result, hitBad).
func (c *CFG) fixpoint(from, trans *bdd.Node, badFn func(*bdd.Node) bool) (*bdd.Node, bool) {
	for {
		if badFn(from) {
			return from, true
		}
		next := c.mgr.Or(from, c.step(from, trans))
		if next == from {
			return from, false
		}
		from = next
	}
}

// globalIdentityRel0 builds the identity relation "unprimed-global[i] <->
// rel[i]" for every global, used to seed a fresh summary's call-time
// memory (and, for the very first frame, to force locals to false).
func (c *CFG) globalIdentityRel0(freshFrame bool) *bdd.Node {
	rel0 := c.mgr.One()
	for i := 0; i < c.numGlobVars; i++ {
		rel0 = c.mgr.And(rel0, bdd.Equal(c.mgr.Var(c.GlobalVar(i, false)), c.mgr.Var(c.GlobalVarRel(i))))
	}
	if freshFrame {
		for i := 0; i < c.numLocVars; i++ {
			rel0 = c.mgr.And(rel0, c.mgr.Not(c.mgr.Var(c.LocalVar(i, false))))
		}
	}
	return rel0
}

// Reachable computes the set of states reachable from init without
// crossing bad, inserting procedure summary edges into cfg's transition
// relation as a side effect. It is the two-interleaved-fixed-point
// algorithm: an outer fixed point over ordinary reachability (which never
// crosses a call directly), interleaved with, for every procedure with at
// least one known call site, an inner fixed point computing that
// procedure's reachable-states-from-entry set — its "summary" — which is
// then folded back into the shared transition relation as a direct
// CALL->RETURN edge guarded by the procedure's observed input/output
// relation on globals. Once such an edge exists, the outer fixed point can
// step over the call without re-exploring the callee.
//
// initCallFrame, when set, additionally constrains every local to false in
// each summary seed, as if entering a fresh frame from the toplevel; it
// applies in every round and to every procedure's seed.
func Reachable(cfg *CFG, init, bad *bdd.Node, initCallFrame bool) *bdd.Node {
	mgr := cfg.mgr
	reach := init
	trans := cfg.trans
	badOf := func(s *bdd.Node) bool { return mgr.And(s, bad) != mgr.Zero() }

	for {
		var hitBad bool
		reach, hitBad = cfg.fixpoint(reach, trans, badOf)
		if hitBad {
			cfg.trans = trans
			return reach
		}

		edgeAdded := false
		for _, procID := range cfg.Procedures() {
			proc := Procedure{procID}
			sites := cfg.CallSites(proc)
			if len(sites) == 0 {
				continue
			}

			// Seed the summary from every call reached so far, stashing
			// the call-time global values in the "rel" copy.
			seed := mgr.And(reach, cfg.calls)
			seed = mgr.ExistAbstract(seed, append(cfg.StateVariables(), cfg.currentLocVars()...))
			seed = mgr.VectorCompose(seed, cfg.unprimeVec())
			sum := mgr.And(seed, cfg.globalIdentityRel0(initCallFrame))

			var sumHitBad bool
			sum, sumHitBad = cfg.fixpoint(sum, trans, badOf)
			if sumHitBad {
				cfg.trans = trans
				return mgr.Or(reach, sum)
			}

			// Fold the completed summary back: at proc's EXIT, the
			// reachable globals (relative to the call-time "rel" copy)
			// become a guarded action from CALL to RETURN, per call site.
			atExit := mgr.And(sum, cfg.Encode(proc.ExitNode(), false))
			guard := mgr.ExistAbstract(atExit, append(append([]int{}, cfg.StateVariables()...), cfg.currentLocVars()...))
			guard = cfg.restoreGuard(guard)

			for _, call := range sites {
				edge := mgr.AndMulti(cfg.Encode(call.CallNode(), false), guard, cfg.Encode(call.ReturnNode(), true), cfg.localIdentity())
				newTrans := mgr.Or(trans, edge)
				if newTrans != trans {
					edgeAdded = true
				}
				trans = newTrans
			}
		}

		if !edgeAdded {
			cfg.trans = trans
			return reach
		}
	}
}

// localIdentity is the relation "local[i] <-> local'[i]" for every local —
// a callee never mutates its caller's locals.
func (c *CFG) localIdentity() *bdd.Node {
	id := c.mgr.One()
	for i := 0; i < c.numLocVars; i++ {
		id = c.mgr.And(id, bdd.Equal(c.mgr.Var(c.LocalVar(i, false)), c.mgr.Var(c.LocalVar(i, true))))
	}
	return id
}

// restoreGuard takes a formula over (rel-globals, current-globals) — the
// summary's observed input/output relation — and renames rel-global to
// unprimed-global (the call's "before" value) and current-global to
// primed-global (the call's "after" value), producing an ordinary
// guarded-action BDD suitable for use as an AddTransition action.
func (c *CFG) restoreGuard(f *bdd.Node) *bdd.Node {
	vec := make([]*bdd.Node, c.offsetRel+c.numGlobVars)
	for i := 0; i < c.numGlobVars; i++ {
		vec[c.GlobalVarRel(i)] = c.mgr.Var(c.GlobalVar(i, false))
		vec[c.GlobalVar(i, false)] = c.mgr.Var(c.GlobalVar(i, true))
	}
	return c.mgr.VectorCompose(f, vec)
}

// FindPath extracts a shortest concrete path of BDD state predicates from
// src to dst staying within reach, ignoring any edge in ignoredEdges (used
// by trace lifting to avoid re-descending into a call already expanded).
// Returns nil if no such path exists.
func FindPath(cfg *CFG, src, dst, reach, ignoredEdges *bdd.Node) []*bdd.Node {
	mgr := cfg.mgr
	trans := mgr.And(mgr.Or(cfg.trans, cfg.calls), mgr.Not(ignoredEdges))

	preQuant := cfg.StateVariablesPrime()
	preQuant = append(preQuant, cfg.ProgramVariablesPrime()...)
	postQuant := cfg.currentVars()
	mintermVars := cfg.currentVars()

	preReplace := make([]*bdd.Node, cfg.offsetRel+cfg.numGlobVars)
	for bit := 0; bit < cfg.numNodeVars; bit++ {
		preReplace[cfg.stateVar(bit, false)] = mgr.Var(cfg.stateVar(bit, true))
	}
	for i := 0; i < cfg.numGlobVars+cfg.numLocVars; i++ {
		preReplace[cfg.programVar(i, false)] = mgr.Var(cfg.programVar(i, true))
	}

	preimage := func(b *bdd.Node) *bdd.Node {
		shifted := mgr.VectorCompose(b, preReplace)
		return mgr.ExistAbstract(mgr.And(shifted, trans), preQuant)
	}
	postimage := func(b *bdd.Node) *bdd.Node {
		step := mgr.ExistAbstract(mgr.And(b, trans), postQuant)
		return mgr.VectorCompose(step, cfg.unprimeVec())
	}
	single := func(b *bdd.Node) *bdd.Node { return mgr.PickOneMinterm(b, mintermVars) }

	explored := mgr.Zero()
	ksteps := []*bdd.Node{dst}
	for mgr.And(ksteps[len(ksteps)-1], src) == mgr.Zero() {
		pre := mgr.And(preimage(ksteps[len(ksteps)-1]), reach)
		ksteps = append(ksteps, pre)

		preExplored := explored
		explored = mgr.Or(explored, pre)
		if explored == preExplored {
			return nil
		}
	}

	k := len(ksteps) - 1
	path := make([]*bdd.Node, 0, k+1)
	path = append(path, single(mgr.And(src, ksteps[k])))
	for i := 1; i <= k; i++ {
		post := mgr.And(postimage(path[i-1]), ksteps[k-i])
		path = append(path, single(post))
	}
	return path
}

func localVars(cfg *CFG, primed bool) []int {
	out := make([]int, cfg.numLocVars)
	for i := range out {
		out[i] = cfg.LocalVar(i, primed)
	}
	return out
}
