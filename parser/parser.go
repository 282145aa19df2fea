// Package parser turns source text for the analysed language into a
// cegar.Program. The language is a restricted subset of Go — package-level
// var declarations for globals, niladic func declarations for procedures,
// local var declarations, if/for/assignment/call/assert statements, and
// boolean/arithmetic/comparison expressions — so every program it accepts
// is also valid Go source, and the standard library's own go/parser does
// the lexing and grammar work instead of a hand-rolled one.
package parser

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/scanner"
	"go/token"
	"strconv"

	"github.com/benbjohnson/cegar"
)

// Parse reads the file at path, translates its restricted-Go-subset AST
// into a cegar.Program, and runs AddInitializers then Validate on it —
// mirroring the original checker's own parse -> add_initializers ->
// validate pipeline.
func Parse(path string) (*cegar.Program, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, nil, parser.AllErrors)
	if err != nil {
		return nil, toParseError(fset, err)
	}

	p := &translator{fset: fset, prog: cegar.NewProgram()}
	if err := p.translateFile(file); err != nil {
		return nil, err
	}

	p.prog.AddInitializers()
	if err := p.prog.Validate(); err != nil {
		return nil, err
	}
	return p.prog, nil
}

type translator struct {
	fset *token.FileSet
	prog *cegar.Program
}

func (p *translator) errorf(pos token.Pos, format string, args ...interface{}) error {
	return &cegar.ParseError{
		Pos:    p.fset.Position(pos).String(),
		Detail: fmt.Sprintf(format, args...),
	}
}

// toParseError adapts a go/parser error (a scanner.ErrorList for a syntax
// error, or a plain error for e.g. a missing file) into our own
// *ParseError.
func toParseError(fset *token.FileSet, err error) error {
	if list, ok := err.(scanner.ErrorList); ok && len(list) > 0 {
		first := list[0]
		return &cegar.ParseError{Pos: first.Pos.String(), Detail: first.Msg}
	}
	return &cegar.ParseError{Detail: err.Error()}
}

func (p *translator) translateFile(file *ast.File) error {
	for _, decl := range file.Decls {
		switch decl := decl.(type) {
		case *ast.GenDecl:
			if decl.Tok != token.VAR {
				return p.errorf(decl.Pos(), "only var declarations are supported at top level")
			}
			defs, err := p.translateVarSpecs(decl, cegar.GlobalScope)
			if err != nil {
				return err
			}
			p.prog.Globals = append(p.prog.Globals, defs...)

		case *ast.FuncDecl:
			fn, err := p.translateFunc(decl)
			if err != nil {
				return err
			}
			p.prog.Funcs = append(p.prog.Funcs, fn)

		default:
			return p.errorf(decl.Pos(), "unsupported top-level declaration")
		}
	}
	return nil
}

// translateVarSpecs handles both `var x int` and grouped `var ( x int; y
// bool )` forms, and multiple names sharing one type (`var x, y int`).
// scope is not used: Program.Validate assigns each VarDef's scope later.
func (p *translator) translateVarSpecs(decl *ast.GenDecl, scope string) ([]*cegar.VarDef, error) {
	var out []*cegar.VarDef
	for _, spec := range decl.Specs {
		vs, ok := spec.(*ast.ValueSpec)
		if !ok {
			return nil, p.errorf(spec.Pos(), "unsupported declaration form")
		}
		if vs.Type == nil {
			return nil, p.errorf(vs.Pos(), "variable declaration needs an explicit type")
		}
		ident, ok := vs.Type.(*ast.Ident)
		if !ok {
			return nil, p.errorf(vs.Type.Pos(), "unsupported variable type")
		}
		typ, err := translateType(ident.Name)
		if err != nil {
			return nil, p.errorf(vs.Type.Pos(), "%v", err)
		}
		for _, name := range vs.Names {
			out = append(out, &cegar.VarDef{Name: name.Name, Type: typ})
		}
	}
	return out, nil
}

func translateType(name string) (cegar.Type, error) {
	switch name {
	case "bool":
		return cegar.Bool, nil
	case "int":
		return cegar.Int, nil
	default:
		return 0, fmt.Errorf("type %q is not supported", name)
	}
}

func (p *translator) translateFunc(decl *ast.FuncDecl) (*cegar.FunDef, error) {
	if decl.Recv != nil {
		return nil, p.errorf(decl.Pos(), "methods are not supported")
	}
	if len(decl.Type.Params.List) > 0 {
		return nil, p.errorf(decl.Pos(), "function parameters are not supported")
	}
	if decl.Type.Results != nil {
		return nil, p.errorf(decl.Pos(), "function return values are not supported")
	}

	fn := &cegar.FunDef{Name: decl.Name.Name}
	body, err := p.translateBlock(decl.Body, fn)
	if err != nil {
		return nil, err
	}
	fn.Body = body
	return fn, nil
}

func (p *translator) translateBlock(block *ast.BlockStmt, fn *cegar.FunDef) ([]cegar.Stmt, error) {
	var out []cegar.Stmt
	for _, s := range block.List {
		stmts, err := p.translateStmt(s, fn)
		if err != nil {
			return nil, err
		}
		out = append(out, stmts...)
	}
	return out, nil
}

// translateStmt returns zero or more Stmt for one ast.Stmt: a local var
// declaration contributes none of its own (it only registers fn.Locals;
// AddInitializers supplies its default-value assignment), a nested block
// contributes its own statements, everything else contributes exactly one.
func (p *translator) translateStmt(s ast.Stmt, fn *cegar.FunDef) ([]cegar.Stmt, error) {
	switch s := s.(type) {
	case *ast.DeclStmt:
		gd, ok := s.Decl.(*ast.GenDecl)
		if !ok || gd.Tok != token.VAR {
			return nil, p.errorf(s.Pos(), "only var declarations are supported")
		}
		defs, err := p.translateVarSpecs(gd, fn.Name)
		if err != nil {
			return nil, err
		}
		fn.Locals = append(fn.Locals, defs...)
		return nil, nil

	case *ast.EmptyStmt:
		return []cegar.Stmt{&cegar.Skip{}}, nil

	case *ast.AssignStmt:
		return p.translateAssign(s)

	case *ast.ExprStmt:
		return p.translateExprStmt(s)

	case *ast.IfStmt:
		return p.translateIf(s, fn)

	case *ast.ForStmt:
		return p.translateFor(s, fn)

	case *ast.BlockStmt:
		return p.translateBlock(s, fn)

	default:
		return nil, p.errorf(s.Pos(), "unsupported statement %T", s)
	}
}

func (p *translator) translateAssign(s *ast.AssignStmt) ([]cegar.Stmt, error) {
	if s.Tok != token.ASSIGN {
		return nil, p.errorf(s.Pos(), "only plain assignment (=) is supported")
	}
	if len(s.Lhs) != len(s.Rhs) {
		return nil, p.errorf(s.Pos(), "assignment requires matching left/right side counts")
	}

	vars := make([]*cegar.VarName, len(s.Lhs))
	for i, l := range s.Lhs {
		ident, ok := l.(*ast.Ident)
		if !ok {
			return nil, p.errorf(l.Pos(), "assignment target must be a variable name")
		}
		vars[i] = cegar.NewVarName(ident.Name)
	}
	exprs := make([]cegar.Expr, len(s.Rhs))
	for i, r := range s.Rhs {
		e, err := p.translateExpr(r)
		if err != nil {
			return nil, err
		}
		exprs[i] = e
	}

	if len(vars) == 1 {
		return []cegar.Stmt{&cegar.SimpleAssignment{Var: vars[0], Expr: exprs[0]}}, nil
	}
	return []cegar.Stmt{&cegar.ParallelAssignment{Vars: vars, Exprs: exprs}}, nil
}

// translateExprStmt handles the two standalone call forms the grammar
// supports — assert(cond) and f() (a call to another procedure) — plus a
// bare string literal, which stands in for a documentation comment that
// survives pretty-printing but is erased before the CFG is built.
func (p *translator) translateExprStmt(s *ast.ExprStmt) ([]cegar.Stmt, error) {
	if lit, ok := s.X.(*ast.BasicLit); ok && lit.Kind == token.STRING {
		text, err := strconv.Unquote(lit.Value)
		if err != nil {
			text = lit.Value
		}
		return []cegar.Stmt{&cegar.DocString{Text: text}}, nil
	}

	call, ok := s.X.(*ast.CallExpr)
	if !ok {
		return nil, p.errorf(s.Pos(), "unsupported expression statement")
	}
	ident, ok := call.Fun.(*ast.Ident)
	if !ok {
		return nil, p.errorf(call.Fun.Pos(), "unsupported call target")
	}

	if ident.Name == "assert" {
		if len(call.Args) != 1 {
			return nil, p.errorf(call.Pos(), "assert takes exactly one argument")
		}
		cond, err := p.translateExpr(call.Args[0])
		if err != nil {
			return nil, err
		}
		return []cegar.Stmt{&cegar.Assert{Cond: cond}}, nil
	}

	if len(call.Args) != 0 {
		return nil, p.errorf(call.Pos(), "procedure calls take no arguments")
	}
	return []cegar.Stmt{&cegar.CallStmt{Target: ident.Name}}, nil
}

func (p *translator) translateIf(s *ast.IfStmt, fn *cegar.FunDef) ([]cegar.Stmt, error) {
	if s.Init != nil {
		return nil, p.errorf(s.Init.Pos(), "if-statement init clauses are not supported")
	}
	cond, err := p.translateExpr(s.Cond)
	if err != nil {
		return nil, err
	}
	then, err := p.translateBlock(s.Body, fn)
	if err != nil {
		return nil, err
	}

	var els []cegar.Stmt
	switch e := s.Else.(type) {
	case nil:
	case *ast.BlockStmt:
		els, err = p.translateBlock(e, fn)
	case *ast.IfStmt:
		els, err = p.translateIf(e, fn)
	default:
		return nil, p.errorf(s.Else.Pos(), "unsupported else clause")
	}
	if err != nil {
		return nil, err
	}

	return []cegar.Stmt{&cegar.Ite{Cond: cond, Then: then, Else: els}}, nil
}

// translateFor accepts only Go's condition-only for form (`for cond {
// ... }`), which is this language's while loop.
func (p *translator) translateFor(s *ast.ForStmt, fn *cegar.FunDef) ([]cegar.Stmt, error) {
	if s.Init != nil || s.Post != nil {
		return nil, p.errorf(s.Pos(), "only the condition-only for form (while loop) is supported")
	}
	if s.Cond == nil {
		return nil, p.errorf(s.Pos(), "for loop requires an explicit condition")
	}
	cond, err := p.translateExpr(s.Cond)
	if err != nil {
		return nil, err
	}
	body, err := p.translateBlock(s.Body, fn)
	if err != nil {
		return nil, err
	}
	return []cegar.Stmt{&cegar.While{Cond: cond, Body: body}}, nil
}

func (p *translator) translateExpr(e ast.Expr) (cegar.Expr, error) {
	switch e := e.(type) {
	case *ast.ParenExpr:
		return p.translateExpr(e.X)

	case *ast.Ident:
		switch e.Name {
		case "true":
			return cegar.NewBoolLiteral(true), nil
		case "false":
			return cegar.NewBoolLiteral(false), nil
		default:
			return cegar.NewVarName(e.Name), nil
		}

	case *ast.BasicLit:
		if e.Kind != token.INT {
			return nil, p.errorf(e.Pos(), "only integer literals are supported")
		}
		v, err := strconv.ParseInt(e.Value, 10, 64)
		if err != nil {
			return nil, p.errorf(e.Pos(), "invalid integer literal %q", e.Value)
		}
		return cegar.NewIntLiteral(v), nil

	case *ast.UnaryExpr:
		child, err := p.translateExpr(e.X)
		if err != nil {
			return nil, err
		}
		switch e.Op {
		case token.NOT:
			return cegar.NewUnaryExpr(cegar.LogNot, child), nil
		case token.SUB:
			return cegar.NewUnaryExpr(cegar.AriNeg, child), nil
		default:
			return nil, p.errorf(e.Pos(), "unsupported unary operator %q", e.Op)
		}

	case *ast.BinaryExpr:
		op, err := translateBinOp(e.Op)
		if err != nil {
			return nil, p.errorf(e.OpPos, "%v", err)
		}
		l, err := p.translateExpr(e.X)
		if err != nil {
			return nil, err
		}
		r, err := p.translateExpr(e.Y)
		if err != nil {
			return nil, err
		}
		return cegar.NewBinaryExpr(op, l, r), nil

	default:
		return nil, p.errorf(e.Pos(), "unsupported expression %T", e)
	}
}

func translateBinOp(op token.Token) (cegar.BinaryOp, error) {
	switch op {
	case token.LAND:
		return cegar.LogAnd, nil
	case token.LOR:
		return cegar.LogOr, nil
	case token.ADD:
		return cegar.AriAdd, nil
	case token.SUB:
		return cegar.AriSub, nil
	case token.MUL:
		return cegar.AriMul, nil
	case token.QUO:
		return cegar.AriDiv, nil
	case token.EQL:
		return cegar.CmpEq, nil
	case token.NEQ:
		return cegar.CmpNeq, nil
	case token.LSS:
		return cegar.CmpLt, nil
	case token.LEQ:
		return cegar.CmpLe, nil
	case token.GTR:
		return cegar.CmpGt, nil
	case token.GEQ:
		return cegar.CmpGe, nil
	default:
		return 0, fmt.Errorf("unsupported binary operator %q", op)
	}
}
