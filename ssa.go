package cegar

import "github.com/benbjohnson/immutable"

// SSAEnv is the single-static-assignment version map `σ` threaded through
// a trace's Con walk. Each local stack frame is an immutable.Map from
// *VarDef to its current version within that frame; globals live in one
// separate map shared by every frame, mirroring how a callee sees the
// caller's globals but not its locals.
//
// SSAEnv is persistent: every mutating method returns a new *SSAEnv
// sharing structure with its parent, the same discipline the teacher uses
// for its symbolic heap (see DESIGN.md).
type SSAEnv struct {
	globals *immutable.Map
	locals  []*immutable.Map // stack of local frames, innermost last
}

// NewSSAEnv returns the initial environment: every declared variable at
// version 0, a single (outermost) local frame.
func NewSSAEnv(prog *Program) *SSAEnv {
	globals := immutable.NewMap(nil)
	for _, d := range prog.Globals {
		globals = globals.Set(d, 0)
	}
	main := prog.Main()
	locals := immutable.NewMap(nil)
	for _, d := range main.Locals {
		locals = locals.Set(d, 0)
	}
	return &SSAEnv{globals: globals, locals: []*immutable.Map{locals}}
}

// Version returns decl's current version in env.
func (env *SSAEnv) Version(decl *VarDef) int {
	if decl.Scope == GlobalScope {
		v, _ := env.globals.Get(decl)
		return asVersion(v)
	}
	top := env.locals[len(env.locals)-1]
	if v, ok := top.Get(decl); ok {
		return asVersion(v)
	}
	// A local declared in an enclosing frame but not yet bound in the
	// current one (e.g. referenced before any assignment bumped it):
	// treat as version 0.
	return 0
}

func asVersion(v interface{}) int {
	if v == nil {
		return 0
	}
	return v.(int)
}

// Bump returns a new env with decl's version incremented by one.
func (env *SSAEnv) Bump(decl *VarDef) *SSAEnv {
	if decl.Scope == GlobalScope {
		next := &SSAEnv{globals: env.globals.Set(decl, env.Version(decl)+1), locals: env.locals}
		return next
	}
	locals := append([]*immutable.Map{}, env.locals...)
	top := len(locals) - 1
	locals[top] = locals[top].Set(decl, env.Version(decl)+1)
	return &SSAEnv{globals: env.globals, locals: locals}
}

// PushFrame enters a fresh local scope (a Call): the callee's locals start
// unversioned (version 0 on first reference), globals stay shared.
func (env *SSAEnv) PushFrame() *SSAEnv {
	locals := append(append([]*immutable.Map{}, env.locals...), immutable.NewMap(nil))
	return &SSAEnv{globals: env.globals, locals: locals}
}

// PopFrame exits the current local scope (a Return), discarding the
// callee's locals; globals (already shared structure) are implicitly
// re-merged since they never lived in the popped frame.
func (env *SSAEnv) PopFrame() *SSAEnv {
	assert(len(env.locals) > 1, "cegar: PopFrame on outermost SSA frame")
	locals := env.locals[:len(env.locals)-1]
	return &SSAEnv{globals: env.globals, locals: locals}
}

// Encode rewrites expr's VarName occurrences into SymbolicConstants at
// their current version in env. It never mutates env; see Con for the
// version-bumping half of the walk.
func (env *SSAEnv) Encode(expr Expr) (Expr, error) {
	switch e := expr.(type) {
	case *Literal:
		return e.Copy(), nil
	case *UnknownExpr:
		return nil, &UnsupportedOperationError{Op: "ssa-encode", Detail: "Unknown has no SSA encoding"}
	case *SymbolicConstant:
		return e.Copy(), nil
	case *VarName:
		decl := e.Decl()
		return NewSymbolicConstant(decl, env.Version(decl)), nil
	case *UnaryExpr:
		child, err := env.Encode(e.Child)
		if err != nil {
			return nil, err
		}
		return NewUnaryExpr(e.Op, child), nil
	case *BinaryExpr:
		l, err := env.Encode(e.Left)
		if err != nil {
			return nil, err
		}
		r, err := env.Encode(e.Right)
		if err != nil {
			return nil, err
		}
		return NewBinaryExpr(e.Op, l, r), nil
	case *Conditional:
		c, err := env.Encode(e.Cond)
		if err != nil {
			return nil, err
		}
		t, err := env.Encode(e.Then)
		if err != nil {
			return nil, err
		}
		el, err := env.Encode(e.Else)
		if err != nil {
			return nil, err
		}
		return NewConditional(c, t, el), nil
	default:
		return nil, &UnsupportedOperationError{Op: "ssa-encode", Detail: "unrecognised expression"}
	}
}
