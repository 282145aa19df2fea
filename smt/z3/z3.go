// Package z3 implements smt.Solver against the Z3 theorem prover via cgo.
package z3

import (
	"fmt"
	"strings"
	"time"
	"unsafe"

	"github.com/benbjohnson/cegar"
	"github.com/benbjohnson/cegar/smt"
)

/*
#cgo LDFLAGS: -lz3
#include <z3.h>
#include <stdlib.h>
*/
import "C"

// Ensure Solver implements smt.Solver.
var _ smt.Solver = (*Solver)(nil)

// Solver is a smt.Solver backed by an embedded Z3 context and incremental
// solver. Interpolation uses Z3's (legacy) interpolation API, which
// requires the two partitions to be asserted under an interpolation
// context rather than the plain incremental solver.
type Solver struct {
	ctx   *Context
	raw   C.Z3_solver
	stats smt.Stats
}

// NewSolver returns a new Solver with a fresh Z3 context.
func NewSolver() *Solver {
	ctx := newContext()
	raw := C.Z3_mk_solver(ctx.raw)
	C.Z3_solver_inc_ref(ctx.raw, raw)
	return &Solver{ctx: ctx, raw: raw}
}

// Close releases the underlying Z3 solver and context.
func (s *Solver) Close() error {
	C.Z3_solver_dec_ref(s.ctx.raw, s.raw)
	return s.ctx.close()
}

// Stats returns solver usage statistics.
func (s *Solver) Stats() smt.Stats { return s.stats }

// Assert adds constraint, a boolean cegar.Expr, to the current assertion
// stack.
func (s *Solver) Assert(constraint smt.Term) error {
	ast, err := s.ctx.toAST(constraint.(cegar.Expr))
	if err != nil {
		return err
	}
	C.Z3_solver_assert(s.ctx.raw, s.raw, ast)
	return s.ctx.err("Z3_solver_assert")
}

// Push saves a restore point on the assertion stack.
func (s *Solver) Push() error {
	C.Z3_solver_push(s.ctx.raw, s.raw)
	return s.ctx.err("Z3_solver_push")
}

// Pop discards every assertion since the last unmatched Push.
func (s *Solver) Pop() error {
	C.Z3_solver_pop(s.ctx.raw, s.raw, 1)
	return s.ctx.err("Z3_solver_pop")
}

// CheckSat decides satisfiability of the current assertion stack.
func (s *Solver) CheckSat() (bool, error) {
	t := time.Now()
	defer func() {
		s.stats.CheckSatN++
		s.stats.CheckSatTime += time.Since(t)
	}()

	ret := C.Z3_solver_check(s.ctx.raw, s.raw)
	if err := s.ctx.err("Z3_solver_check"); err != nil {
		return false, err
	}
	switch ret {
	case C.Z3_L_FALSE:
		return false, nil
	case C.Z3_L_TRUE:
		return true, nil
	default:
		reason := C.GoString(C.Z3_solver_get_reason_unknown(s.ctx.raw, s.raw))
		if strings.Contains(reason, "timeout") {
			return false, fmt.Errorf("z3: check-sat timed out")
		}
		return false, fmt.Errorf("z3: check-sat returned unknown: %s", reason)
	}
}

// Interpolate computes a Craig interpolant for the unsatisfiable pair
// (a, b) using Z3_mk_interpolant, which marks a subterm of a combined
// conjunction as an interpolation boundary, and Z3_compute_interpolant,
// which runs a fresh proof search over it (Z3's interpolation API does
// not reuse the incremental solver's own assertion stack).
func (s *Solver) Interpolate(a, b smt.Term) (smt.Term, error) {
	t := time.Now()
	defer func() {
		s.stats.InterpolateN++
		s.stats.InterpolateTime += time.Since(t)
	}()

	aAST, err := s.ctx.toAST(a.(cegar.Expr))
	if err != nil {
		return nil, err
	}
	bAST, err := s.ctx.toAST(b.(cegar.Expr))
	if err != nil {
		return nil, err
	}

	marked := C.Z3_mk_interpolant(s.ctx.raw, aAST)
	if err := s.ctx.err("Z3_mk_interpolant"); err != nil {
		return nil, err
	}
	args := [2]C.Z3_ast{marked, bAST}
	combined := C.Z3_mk_and(s.ctx.raw, 2, &args[0])
	if err := s.ctx.err("Z3_mk_and"); err != nil {
		return nil, err
	}

	params := C.Z3_mk_params(s.ctx.raw)
	var model C.Z3_model
	var interps C.Z3_ast_vector
	ret := C.Z3_compute_interpolant(s.ctx.raw, combined, params, &interps, &model)
	if err := s.ctx.err("Z3_compute_interpolant"); err != nil {
		return nil, err
	}
	if ret != C.Z3_L_FALSE {
		return nil, cegar.ErrInterpolationFailed
	}
	if C.Z3_ast_vector_size(s.ctx.raw, interps) == 0 {
		return nil, cegar.ErrInterpolationFailed
	}
	itp := C.Z3_ast_vector_get(s.ctx.raw, interps, 0)

	return s.ctx.fromAST(itp)
}

// Context wraps a Z3 context handle.
type Context struct {
	raw C.Z3_context
}

func newContext() *Context {
	cfg := C.Z3_mk_config()
	defer C.Z3_del_config(cfg)
	raw := C.Z3_mk_interpolation_context(cfg)
	C.Z3_set_error_handler(raw, nil)
	return &Context{raw: raw}
}

func (ctx *Context) close() error {
	C.Z3_del_context(ctx.raw)
	return nil
}

func (ctx *Context) err(op string) error {
	if code := C.Z3_get_error_code(ctx.raw); code != C.Z3_OK {
		return &Error{Op: op, Code: int(code), Message: C.GoString(C.Z3_get_error_msg(ctx.raw, code))}
	}
	return nil
}

// toAST translates a boolean-or-integer cegar.Expr into a Z3 term. Trace
// constraints arrive in SSA form (cegar.SymbolicConstant); predicate and
// abstraction queries arrive over resolved cegar.VarNames, encoded as the
// version-0 constant. Unknown has no encoding and is rejected.
func (ctx *Context) toAST(expr cegar.Expr) (C.Z3_ast, error) {
	switch e := expr.(type) {
	case *cegar.Literal:
		return ctx.literalAST(e)
	case *cegar.SymbolicConstant:
		return ctx.constAST(e.Decl.ScopedName(), e.Version, e.Decl.Type)
	case *cegar.VarName:
		return ctx.constAST(e.Decl().ScopedName(), 0, e.Type())
	case *cegar.UnaryExpr:
		return ctx.unaryAST(e)
	case *cegar.BinaryExpr:
		return ctx.binaryAST(e)
	case *cegar.Conditional:
		return ctx.condAST(e)
	default:
		return nil, &cegar.UnsupportedOperationError{Op: "z3-encode", Detail: fmt.Sprintf("%T", expr)}
	}
}

func (ctx *Context) literalAST(e *cegar.Literal) (C.Z3_ast, error) {
	if e.Type() == cegar.Bool {
		if e.BoolValue() {
			return C.Z3_mk_true(ctx.raw), ctx.err("Z3_mk_true")
		}
		return C.Z3_mk_false(ctx.raw), ctx.err("Z3_mk_false")
	}
	sort := C.Z3_mk_int_sort(ctx.raw)
	return C.Z3_mk_int64(ctx.raw, C.int64_t(e.IntValue()), sort), ctx.err("Z3_mk_int64")
}

func (ctx *Context) sortFor(t cegar.Type) C.Z3_sort {
	if t == cegar.Bool {
		return C.Z3_mk_bool_sort(ctx.raw)
	}
	return C.Z3_mk_int_sort(ctx.raw)
}

func (ctx *Context) constAST(name string, version int, t cegar.Type) (C.Z3_ast, error) {
	full := name
	if version > 0 {
		full = fmt.Sprintf("%s$%d", name, version)
	}
	cname := C.CString(full)
	defer C.free(unsafe.Pointer(cname))
	sym := C.Z3_mk_string_symbol(ctx.raw, cname)
	return C.Z3_mk_const(ctx.raw, sym, ctx.sortFor(t)), ctx.err("Z3_mk_const")
}

func (ctx *Context) unaryAST(e *cegar.UnaryExpr) (C.Z3_ast, error) {
	child, err := ctx.toAST(e.Child)
	if err != nil {
		return nil, err
	}
	switch e.Op {
	case cegar.LogNot:
		return C.Z3_mk_not(ctx.raw, child), ctx.err("Z3_mk_not")
	case cegar.AriNeg:
		return C.Z3_mk_unary_minus(ctx.raw, child), ctx.err("Z3_mk_unary_minus")
	default:
		return nil, &cegar.UnsupportedOperationError{Op: "z3-encode", Detail: fmt.Sprintf("unary op %s", e.Op)}
	}
}

func (ctx *Context) binaryAST(e *cegar.BinaryExpr) (C.Z3_ast, error) {
	lhs, err := ctx.toAST(e.Left)
	if err != nil {
		return nil, err
	}
	rhs, err := ctx.toAST(e.Right)
	if err != nil {
		return nil, err
	}
	switch e.Op {
	case cegar.LogAnd:
		args := [2]C.Z3_ast{lhs, rhs}
		return C.Z3_mk_and(ctx.raw, 2, &args[0]), ctx.err("Z3_mk_and")
	case cegar.LogOr:
		args := [2]C.Z3_ast{lhs, rhs}
		return C.Z3_mk_or(ctx.raw, 2, &args[0]), ctx.err("Z3_mk_or")
	case cegar.AriAdd:
		args := [2]C.Z3_ast{lhs, rhs}
		return C.Z3_mk_add(ctx.raw, 2, &args[0]), ctx.err("Z3_mk_add")
	case cegar.AriSub:
		args := [2]C.Z3_ast{lhs, rhs}
		return C.Z3_mk_sub(ctx.raw, 2, &args[0]), ctx.err("Z3_mk_sub")
	case cegar.AriMul:
		args := [2]C.Z3_ast{lhs, rhs}
		return C.Z3_mk_mul(ctx.raw, 2, &args[0]), ctx.err("Z3_mk_mul")
	case cegar.AriDiv:
		return C.Z3_mk_div(ctx.raw, lhs, rhs), ctx.err("Z3_mk_div")
	case cegar.CmpEq:
		return C.Z3_mk_eq(ctx.raw, lhs, rhs), ctx.err("Z3_mk_eq")
	case cegar.CmpNeq:
		eq := C.Z3_mk_eq(ctx.raw, lhs, rhs)
		if err := ctx.err("Z3_mk_eq"); err != nil {
			return nil, err
		}
		return C.Z3_mk_not(ctx.raw, eq), ctx.err("Z3_mk_not")
	case cegar.CmpLt:
		return C.Z3_mk_lt(ctx.raw, lhs, rhs), ctx.err("Z3_mk_lt")
	case cegar.CmpLe:
		return C.Z3_mk_le(ctx.raw, lhs, rhs), ctx.err("Z3_mk_le")
	case cegar.CmpGt:
		return C.Z3_mk_gt(ctx.raw, lhs, rhs), ctx.err("Z3_mk_gt")
	case cegar.CmpGe:
		return C.Z3_mk_ge(ctx.raw, lhs, rhs), ctx.err("Z3_mk_ge")
	default:
		return nil, &cegar.UnsupportedOperationError{Op: "z3-encode", Detail: fmt.Sprintf("binary op %s", e.Op)}
	}
}

func (ctx *Context) condAST(e *cegar.Conditional) (C.Z3_ast, error) {
	cond, err := ctx.toAST(e.Cond)
	if err != nil {
		return nil, err
	}
	then, err := ctx.toAST(e.Then)
	if err != nil {
		return nil, err
	}
	els, err := ctx.toAST(e.Else)
	if err != nil {
		return nil, err
	}
	return C.Z3_mk_ite(ctx.raw, cond, then, els), ctx.err("Z3_mk_ite")
}

// fromAST walks a Z3 interpolant term back into a cegar.Expr, producing
// VarNames whose raw Name carries the scope-prefixed string the solver
// was given (see constAST); PostprocessInterpolant resolves those once a
// Program is available.
func (ctx *Context) fromAST(ast C.Z3_ast) (cegar.Expr, error) {
	kind := C.Z3_get_ast_kind(ctx.raw, ast)
	switch kind {
	case C.Z3_APP_AST:
		decl := C.Z3_get_app_decl(ctx.raw, C.Z3_to_app(ctx.raw, ast))
		declKind := C.Z3_get_decl_kind(ctx.raw, decl)
		numArgs := int(C.Z3_get_app_num_args(ctx.raw, C.Z3_to_app(ctx.raw, ast)))

		arg := func(i int) (cegar.Expr, error) {
			return ctx.fromAST(C.Z3_get_app_arg(ctx.raw, C.Z3_to_app(ctx.raw, ast), C.uint(i)))
		}

		switch declKind {
		case C.Z3_OP_TRUE:
			return cegar.NewBoolLiteral(true), nil
		case C.Z3_OP_FALSE:
			return cegar.NewBoolLiteral(false), nil
		case C.Z3_OP_AND:
			return foldBinary(cegar.LogAnd, numArgs, arg)
		case C.Z3_OP_OR:
			return foldBinary(cegar.LogOr, numArgs, arg)
		case C.Z3_OP_NOT:
			child, err := arg(0)
			if err != nil {
				return nil, err
			}
			return cegar.NewUnaryExpr(cegar.LogNot, child), nil
		case C.Z3_OP_EQ:
			return binOf(cegar.CmpEq, arg)
		case C.Z3_OP_LT:
			return binOf(cegar.CmpLt, arg)
		case C.Z3_OP_LE:
			return binOf(cegar.CmpLe, arg)
		case C.Z3_OP_GT:
			return binOf(cegar.CmpGt, arg)
		case C.Z3_OP_GE:
			return binOf(cegar.CmpGe, arg)
		case C.Z3_OP_ADD:
			return foldBinary(cegar.AriAdd, numArgs, arg)
		case C.Z3_OP_SUB:
			return foldBinary(cegar.AriSub, numArgs, arg)
		case C.Z3_OP_MUL:
			return foldBinary(cegar.AriMul, numArgs, arg)
		case C.Z3_OP_UNINTERPRETED:
			name := C.GoString(C.Z3_get_symbol_string(ctx.raw, C.Z3_get_decl_name(ctx.raw, decl)))
			return cegar.NewVarName(name), nil
		default:
			return nil, &cegar.UnsupportedOperationError{Op: "z3-decode", Detail: fmt.Sprintf("decl kind %d", declKind)}
		}
	case C.Z3_NUMERAL_AST:
		var v C.int64_t
		C.Z3_get_numeral_int64(ctx.raw, ast, &v)
		return cegar.NewIntLiteral(int64(v)), nil
	default:
		return nil, &cegar.UnsupportedOperationError{Op: "z3-decode", Detail: fmt.Sprintf("ast kind %d", kind)}
	}
}

func binOf(op cegar.BinaryOp, arg func(int) (cegar.Expr, error)) (cegar.Expr, error) {
	l, err := arg(0)
	if err != nil {
		return nil, err
	}
	r, err := arg(1)
	if err != nil {
		return nil, err
	}
	return cegar.NewBinaryExpr(op, l, r), nil
}

func foldBinary(op cegar.BinaryOp, numArgs int, arg func(int) (cegar.Expr, error)) (cegar.Expr, error) {
	acc, err := arg(0)
	if err != nil {
		return nil, err
	}
	for i := 1; i < numArgs; i++ {
		next, err := arg(i)
		if err != nil {
			return nil, err
		}
		acc = cegar.NewBinaryExpr(op, acc, next)
	}
	return acc, nil
}

// Error is a Z3 API error.
type Error struct {
	Op      string
	Code    int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("z3: %s: %s (%d)", e.Op, e.Message, e.Code)
}
