package cegar

import (
	"fmt"
	"strings"
)

// Expr represents an expression in the analysed program: a literal, a
// variable occurrence, an SSA-versioned occurrence, a non-deterministic
// placeholder introduced by abstraction, or an operator application.
type Expr interface {
	// Type returns the expression's static type.
	Type() Type
	// Copy returns a deep copy of the expression.
	Copy() Expr
	// String returns a textual rendering, used for diagnostics and traces.
	String() string

	expr()
}

func (*Literal) expr()           {}
func (*VarName) expr()           {}
func (*UnknownExpr) expr()       {}
func (*SymbolicConstant) expr()  {}
func (*UnaryExpr) expr()         {}
func (*BinaryExpr) expr()        {}
func (*Conditional) expr()       {}

// Literal is a constant boolean or integer value.
type Literal struct {
	typ Type
	b   bool
	i   int64
}

// NewBoolLiteral returns a boolean constant expression.
func NewBoolLiteral(v bool) *Literal { return &Literal{typ: Bool, b: v} }

// NewIntLiteral returns an integer constant expression.
func NewIntLiteral(v int64) *Literal { return &Literal{typ: Int, i: v} }

func (l *Literal) Type() Type { return l.typ }
func (l *Literal) Copy() Expr { c := *l; return &c }
func (l *Literal) BoolValue() bool {
	return l.b
}
func (l *Literal) IntValue() int64 { return l.i }

func (l *Literal) String() string {
	if l.typ == Bool {
		return fmt.Sprintf("%t", l.b)
	}
	return fmt.Sprintf("%d", l.i)
}

// VarName is an occurrence of a named variable. decl is nil until the
// program has been validated, at which point it is resolved to the
// declaring VarDef (function-local shadows global).
//
// ignoreDepth counts how many enclosing Return/Call brackets have masked
// this occurrence during a wp walk; it only ever affects *local*
// variables — see PushIgnore/PopIgnore and ContainsIgnoredVar.
type VarName struct {
	Name        string
	decl        *VarDef
	ignoreDepth int
}

// NewVarName returns an unresolved variable occurrence.
func NewVarName(name string) *VarName { return &VarName{Name: name} }

// Decl returns the resolved declaration, or nil if unresolved.
func (v *VarName) Decl() *VarDef { return v.decl }

// Resolve binds the occurrence to its declaration. Called once by
// Program.Validate.
func (v *VarName) Resolve(decl *VarDef) { v.decl = decl }

func (v *VarName) Type() Type {
	if v.decl == nil {
		panic(fmt.Sprintf("cegar: VarName %q used before resolution", v.Name))
	}
	return v.decl.Type
}

func (v *VarName) Copy() Expr {
	c := *v
	return &c
}

func (v *VarName) String() string { return v.Name }

// IsLocal reports whether this occurrence resolves to a function-local
// variable (as opposed to a global).
func (v *VarName) IsLocal() bool { return v.decl != nil && v.decl.Scope != GlobalScope }

// PushIgnore increments the ignore-depth counter of every local VarName
// reachable from expr, masking it for one more enclosing Return bracket.
// Globals are left untouched.
func PushIgnore(expr Expr) { walkIgnore(expr, 1) }

// PopIgnore decrements the ignore-depth counter, unmasking one Call
// bracket's worth of locals.
func PopIgnore(expr Expr) { walkIgnore(expr, -1) }

func walkIgnore(expr Expr, delta int) {
	switch e := expr.(type) {
	case *VarName:
		if e.IsLocal() {
			e.ignoreDepth += delta
		}
	case *UnaryExpr:
		walkIgnore(e.Child, delta)
	case *BinaryExpr:
		walkIgnore(e.Left, delta)
		walkIgnore(e.Right, delta)
	case *Conditional:
		walkIgnore(e.Cond, delta)
		walkIgnore(e.Then, delta)
		walkIgnore(e.Else, delta)
	}
}

// UnknownExpr is the non-deterministic boolean placeholder introduced by
// predicate abstraction. It can never be encoded to BDD or SMT directly —
// abstraction always wraps its use sites in an Assume/Ite that resolves it.
type UnknownExpr struct{}

// Unknown is the single shared instance; Unknown is otherwise stateless.
var Unknown = &UnknownExpr{}

func (*UnknownExpr) Type() Type   { return Bool }
func (u *UnknownExpr) Copy() Expr { return u }
func (*UnknownExpr) String() string { return "?" }

// SymbolicConstant is an SSA-named occurrence of decl at a specific
// version, produced by the `con` walk and consumed by the SMT/interpolation
// encoders.
type SymbolicConstant struct {
	Decl    *VarDef
	Version int
}

// NewSymbolicConstant returns the SSA occurrence decl@version.
func NewSymbolicConstant(decl *VarDef, version int) *SymbolicConstant {
	return &SymbolicConstant{Decl: decl, Version: version}
}

func (s *SymbolicConstant) Type() Type { return s.Decl.Type }
func (s *SymbolicConstant) Copy() Expr { c := *s; return &c }
func (s *SymbolicConstant) String() string {
	return fmt.Sprintf("%s$%d", s.Decl.scopedName(), s.Version)
}

// UnaryOp already defined in ops.go; UnaryExpr applies it to a child.
type UnaryExpr struct {
	Op    UnaryOp
	Child Expr
}

// NewUnaryExpr returns op applied to child.
func NewUnaryExpr(op UnaryOp, child Expr) *UnaryExpr {
	return &UnaryExpr{Op: op, Child: child}
}

func (u *UnaryExpr) Type() Type { return u.Op.ResultType() }
func (u *UnaryExpr) Copy() Expr {
	return &UnaryExpr{Op: u.Op, Child: u.Child.Copy()}
}
func (u *UnaryExpr) String() string {
	return fmt.Sprintf("%s%s", u.Op, u.Child)
}

// BinaryExpr applies a BinaryOp to two operands.
type BinaryExpr struct {
	Op          BinaryOp
	Left, Right Expr
}

// NewBinaryExpr returns left op right.
func NewBinaryExpr(op BinaryOp, left, right Expr) *BinaryExpr {
	return &BinaryExpr{Op: op, Left: left, Right: right}
}

func (b *BinaryExpr) Type() Type { return b.Op.ResultType() }
func (b *BinaryExpr) Copy() Expr {
	return &BinaryExpr{Op: b.Op, Left: b.Left.Copy(), Right: b.Right.Copy()}
}
func (b *BinaryExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", b.Left, b.Op, b.Right)
}

// Conditional is a ternary expression: all three operands are boolean,
// and it appears only as the RHS of an abstracted assignment.
type Conditional struct {
	Cond, Then, Else Expr
}

// NewConditional returns cond ? then : els.
func NewConditional(cond, then, els Expr) *Conditional {
	return &Conditional{Cond: cond, Then: then, Else: els}
}

func (c *Conditional) Type() Type { return Bool }
func (c *Conditional) Copy() Expr {
	return &Conditional{Cond: c.Cond.Copy(), Then: c.Then.Copy(), Else: c.Else.Copy()}
}
func (c *Conditional) String() string {
	return fmt.Sprintf("(%s ? %s : %s)", c.Cond, c.Then, c.Else)
}

// Replace returns a copy of expr with every free occurrence of a variable
// named in subst rewritten to the corresponding expression, honouring
// ignoreDepth: a VarName currently masked (ignoreDepth > 0) is left alone,
// since it refers to a callee frame's local already popped off the
// substitution's logical scope.
func Replace(expr Expr, subst map[string]Expr) Expr {
	switch e := expr.(type) {
	case *Literal:
		return e.Copy()
	case *VarName:
		if e.ignoreDepth == 0 {
			if r, ok := subst[e.Name]; ok {
				return r.Copy()
			}
		}
		return e.Copy()
	case *UnknownExpr:
		return e
	case *SymbolicConstant:
		return e.Copy()
	case *UnaryExpr:
		return NewUnaryExpr(e.Op, Replace(e.Child, subst))
	case *BinaryExpr:
		return NewBinaryExpr(e.Op, Replace(e.Left, subst), Replace(e.Right, subst))
	case *Conditional:
		return NewConditional(Replace(e.Cond, subst), Replace(e.Then, subst), Replace(e.Else, subst))
	default:
		panic(fmt.Sprintf("cegar: Replace: unhandled expr type %T", expr))
	}
}

// ReplaceOne substitutes a single variable; a convenience wrapper around
// Replace used by wp for SimpleAssignment.
func ReplaceOne(expr Expr, name string, with Expr) Expr {
	return Replace(expr, map[string]Expr{name: with})
}

// Contains reports whether expr has a free occurrence of the variable
// named name.
func Contains(expr Expr, name string) bool {
	found := false
	walkVars(expr, func(v *VarName) { found = found || v.Name == name })
	return found
}

// ContainsAnyVar reports whether expr mentions any variable at all.
func ContainsAnyVar(expr Expr) bool {
	any := false
	walkVars(expr, func(*VarName) { any = true })
	return any
}

// ContainsIgnoredVar reports whether expr has a VarName currently masked
// (ignoreDepth > 0).
func ContainsIgnoredVar(expr Expr) bool {
	found := false
	walkVars(expr, func(v *VarName) { found = found || v.ignoreDepth > 0 })
	return found
}

func walkVars(expr Expr, fn func(*VarName)) {
	switch e := expr.(type) {
	case *VarName:
		fn(e)
	case *UnaryExpr:
		walkVars(e.Child, fn)
	case *BinaryExpr:
		walkVars(e.Left, fn)
		walkVars(e.Right, fn)
	case *Conditional:
		walkVars(e.Cond, fn)
		walkVars(e.Then, fn)
		walkVars(e.Else, fn)
	}
}

// Scope returns the owning function shared by every free variable in expr,
// or "" if expr only mentions globals and literals. It never panics: when
// free variables come from several functions it returns the last one seen,
// so callers check IsWellScoped first when the input may be malformed.
func Scope(expr Expr) (fn string, ok bool) {
	scopeSeen := ""
	walkVars(expr, func(v *VarName) {
		if v.decl == nil || v.decl.Scope == GlobalScope {
			return
		}
		scopeSeen = v.decl.Scope
	})
	return scopeSeen, scopeSeen != ""
}

// IsWellScoped reports whether every free variable in expr belongs to at
// most one function (plus any number of globals).
func IsWellScoped(expr Expr) bool {
	seen := ""
	ok := true
	walkVars(expr, func(v *VarName) {
		if v.decl == nil || v.decl.Scope == GlobalScope {
			return
		}
		if seen == "" {
			seen = v.decl.Scope
		} else if seen != v.decl.Scope {
			ok = false
		}
	})
	return ok
}

// PostprocessInterpolant rewrites every VarName in expr whose raw Name
// encodes a scope-prefixed identifier ("<scope>%<var>" or
// "<scope>%<var>$<version>", as produced by the interpolation oracle back
// from its own SMT encoding) into a resolved VarName bound against prog's
// declarations. It is an error (UnsupportedOperationError) for the name to
// reference an unknown scope or variable.
func PostprocessInterpolant(expr Expr, prog *Program) (Expr, error) {
	switch e := expr.(type) {
	case *Literal:
		return e.Copy(), nil
	case *UnknownExpr:
		return e, nil
	case *VarName:
		scope, varPart, ok := splitScopedName(e.Name)
		if !ok {
			return e.Copy(), nil
		}
		decl, err := prog.lookupVar(scope, varPart)
		if err != nil {
			return nil, err
		}
		v := NewVarName(varPart)
		v.Resolve(decl)
		return v, nil
	case *SymbolicConstant:
		return e.Copy(), nil
	case *UnaryExpr:
		child, err := PostprocessInterpolant(e.Child, prog)
		if err != nil {
			return nil, err
		}
		return NewUnaryExpr(e.Op, child), nil
	case *BinaryExpr:
		l, err := PostprocessInterpolant(e.Left, prog)
		if err != nil {
			return nil, err
		}
		r, err := PostprocessInterpolant(e.Right, prog)
		if err != nil {
			return nil, err
		}
		return NewBinaryExpr(e.Op, l, r), nil
	case *Conditional:
		c, err := PostprocessInterpolant(e.Cond, prog)
		if err != nil {
			return nil, err
		}
		t, err := PostprocessInterpolant(e.Then, prog)
		if err != nil {
			return nil, err
		}
		el, err := PostprocessInterpolant(e.Else, prog)
		if err != nil {
			return nil, err
		}
		return NewConditional(c, t, el), nil
	default:
		return nil, &UnsupportedOperationError{Op: "postprocess_interpolant", Detail: fmt.Sprintf("%T", expr)}
	}
}

// splitScopedName parses "<scope>%<var>" or "<scope>%<var>$<version>",
// discarding the version (interpolants name the current SSA version, which
// has already been resolved to a plain variable reference by the time the
// caller sees it).
func splitScopedName(raw string) (scope, varName string, ok bool) {
	i := strings.IndexByte(raw, '%')
	if i < 0 {
		return "", "", false
	}
	scope, rest := raw[:i], raw[i+1:]
	if j := strings.IndexByte(rest, '$'); j >= 0 {
		rest = rest[:j]
	}
	return scope, rest, true
}
