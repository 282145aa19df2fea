package cegar

import (
	"bytes"
	"fmt"
)

// Stmt represents a statement in the analysed program.
type Stmt interface {
	String() string
	stmt()
}

func (*While) stmt()              {}
func (*Ite) stmt()                {}
func (*CallStmt) stmt()           {}
func (*ReturnStmt) stmt()         {}
func (*SimpleAssignment) stmt()   {}
func (*ParallelAssignment) stmt() {}
func (*Assume) stmt()             {}
func (*Assert) stmt()             {}
func (*Skip) stmt()               {}
func (*DocString) stmt()          {}

// Traceable is implemented by the statement kinds that survive predicate
// abstraction and can appear in an error trace: Call, Return,
// SimpleAssignment, ParallelAssignment, Assume, Assert, Skip.
type Traceable interface {
	Stmt
	// Wp returns the weakest liberal precondition of phi with respect to
	// this statement.
	Wp(phi Expr) Expr
	// Con returns this statement's SSA constraint given the current
	// version map env, and the env to use after it (env itself is never
	// mutated in place; Con returns the successor map).
	Con(env *SSAEnv) (Expr, *SSAEnv)
}

func (*CallStmt) traceable()           {}
func (*ReturnStmt) traceable()         {}
func (*SimpleAssignment) traceable()   {}
func (*ParallelAssignment) traceable() {}
func (*Assume) traceable()             {}
func (*Assert) traceable()             {}
func (*Skip) traceable()               {}

// While is a structured loop; abstraction replaces Cond with Unknown and
// wraps Body in the strongest/weakest Assume pair described in §4.3.
type While struct {
	Cond Expr
	Body []Stmt
}

func (w *While) String() string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "while (%s) {\n", w.Cond)
	writeBlock(&buf, w.Body)
	buf.WriteString("}")
	return buf.String()
}

// Ite is a structured conditional; Else may be empty (abstraction always
// emits one regardless).
type Ite struct {
	Cond       Expr
	Then, Else []Stmt
}

func (i *Ite) String() string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "if (%s) {\n", i.Cond)
	writeBlock(&buf, i.Then)
	buf.WriteString("}")
	if len(i.Else) > 0 {
		buf.WriteString(" else {\n")
		writeBlock(&buf, i.Else)
		buf.WriteString("}")
	}
	return buf.String()
}

func writeBlock(buf *bytes.Buffer, body []Stmt) {
	for _, s := range body {
		fmt.Fprintf(buf, "  %s\n", s)
	}
}

// CallStmt invokes a parameterless procedure by name.
type CallStmt struct {
	Target string
}

func (c *CallStmt) String() string { return fmt.Sprintf("%s();", c.Target) }

// Wp unmasks the caller's locals that Return had masked: a Call, traversed
// backwards during the wp fold, is the point where control re-enters the
// caller's frame, so any reference to the caller's locals in phi (which
// wp walks right-to-left, i.e. forwards through the call stack) must no
// longer be treated as belonging to a deeper, now-exited frame.
func (c *CallStmt) Wp(phi Expr) Expr {
	PopIgnore(phi)
	return phi
}

// Con contributes no constraint; call/return bracket discipline is
// handled by the SSA stack itself (PushFrame/PopFrame), not by an emitted
// expression. Entering the callee pushes a fresh frame for its locals.
func (c *CallStmt) Con(env *SSAEnv) (Expr, *SSAEnv) {
	return NewBoolLiteral(true), env.PushFrame()
}

// ReturnStmt is synthetic: it never appears in parsed source, only in
// traces, marking where a callee's frame ends (so the wp fold, walking
// the trace backwards, encounters Return before Call and masks the
// caller's locals in phi while it passes through the callee's statements).
type ReturnStmt struct{}

func (r *ReturnStmt) String() string { return "return;" }

func (r *ReturnStmt) Wp(phi Expr) Expr {
	PushIgnore(phi)
	return phi
}

func (r *ReturnStmt) Con(env *SSAEnv) (Expr, *SSAEnv) {
	return NewBoolLiteral(true), env.PopFrame()
}

// SimpleAssignment assigns the value of Expr to Var.
type SimpleAssignment struct {
	Var  *VarName
	Expr Expr
}

func (a *SimpleAssignment) String() string { return fmt.Sprintf("%s = %s;", a.Var, a.Expr) }

func (a *SimpleAssignment) Wp(phi Expr) Expr {
	return ReplaceOne(phi, a.Var.Name, a.Expr)
}

func (a *SimpleAssignment) Con(env *SSAEnv) (Expr, *SSAEnv) {
	decl := a.Var.Decl()
	rhs, _ := env.Encode(a.Expr)
	next := env.Bump(decl)
	lhs := NewSymbolicConstant(decl, next.Version(decl))
	return NewBinaryExpr(CmpEq, lhs, rhs), next
}

// ParallelAssignment assigns the same-cardinality map vars[i] := exprs[i]
// simultaneously: every RHS is evaluated against the pre-assignment
// environment before any LHS is updated.
type ParallelAssignment struct {
	Vars  []*VarName
	Exprs []Expr
}

func (a *ParallelAssignment) String() string {
	var buf bytes.Buffer
	for i, v := range a.Vars {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(v.String())
	}
	buf.WriteString(" = ")
	for i, e := range a.Exprs {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(e.String())
	}
	buf.WriteString(";")
	return buf.String()
}

func (a *ParallelAssignment) Wp(phi Expr) Expr {
	subst := make(map[string]Expr, len(a.Vars))
	for i, v := range a.Vars {
		subst[v.Name] = a.Exprs[i]
	}
	return Replace(phi, subst)
}

func (a *ParallelAssignment) Con(env *SSAEnv) (Expr, *SSAEnv) {
	rhs := make([]Expr, len(a.Exprs))
	for i, e := range a.Exprs {
		rhs[i], _ = env.Encode(e)
	}
	next := env
	conj := Expr(NewBoolLiteral(true))
	for i, v := range a.Vars {
		decl := v.Decl()
		next = next.Bump(decl)
		lhs := NewSymbolicConstant(decl, next.Version(decl))
		conj = NewBinaryExpr(LogAnd, conj, NewBinaryExpr(CmpEq, lhs, rhs[i]))
	}
	return conj, next
}

// Assume restricts control flow to states satisfying Cond.
type Assume struct {
	Cond Expr
}

func (a *Assume) String() string { return fmt.Sprintf("assume(%s);", a.Cond) }

func (a *Assume) Wp(phi Expr) Expr {
	return NewBinaryExpr(LogOr, phi, NewUnaryExpr(LogNot, a.Cond))
}

func (a *Assume) Con(env *SSAEnv) (Expr, *SSAEnv) {
	e, _ := env.Encode(a.Cond)
	return e, env
}

// Assert reports an error if Cond can be false. Only Assert(false) — the
// already-abstracted form produced by C3's `Assert(c)` rewrite, reached
// only along the branch where the guard was observed to fail — survives
// into the CFG/trace; a user-source Assert(c) is abstracted away before
// any traceable statement sees it.
type Assert struct {
	Cond Expr
}

func (a *Assert) String() string { return fmt.Sprintf("assert(%s);", a.Cond) }

func (a *Assert) Wp(phi Expr) Expr {
	return NewBoolLiteral(false)
}

func (a *Assert) Con(env *SSAEnv) (Expr, *SSAEnv) {
	return NewBoolLiteral(true), env
}

// Skip is a no-op statement.
type Skip struct{}

func (s *Skip) String() string { return "skip;" }
func (s *Skip) Wp(phi Expr) Expr { return phi }
func (s *Skip) Con(env *SSAEnv) (Expr, *SSAEnv) { return NewBoolLiteral(true), env }

// DocString is a semantic no-op carrying a human-readable note; abstraction
// uses it to annotate the rewritten While form (see abstraction.go). It is
// not traceable: it never reaches the CFG.
type DocString struct {
	Text string
}

func (d *DocString) String() string { return fmt.Sprintf("// %s", d.Text) }
