package cegar

// UnaryOp is the closed set of unary expression operators.
type UnaryOp int

const (
	LogNot UnaryOp = iota
	AriNeg
)

func (op UnaryOp) String() string {
	switch op {
	case LogNot:
		return "!"
	case AriNeg:
		return "-"
	default:
		return "?"
	}
}

// ResultType returns the type UnaryOp produces.
func (op UnaryOp) ResultType() Type {
	if op == LogNot {
		return Bool
	}
	return Int
}

// OperandType returns the type UnaryOp expects of its operand.
func (op UnaryOp) OperandType() Type { return op.ResultType() }

// BinaryOp is the closed set of binary expression operators. Values are
// grouped by kind (logical, arithmetic, comparison) so a range check
// classifies an operator without a lookup table.
type BinaryOp int

const (
	LogAnd BinaryOp = iota
	LogOr

	arithmeticOpBegin
	AriAdd
	AriSub
	AriMul
	AriDiv
	arithmeticOpEnd

	compareOpBegin
	CmpEq
	CmpNeq
	CmpLt
	CmpLe
	CmpGt
	CmpGe
	compareOpEnd
)

// IsArithmetic reports whether op is one of +, -, *, /.
func (op BinaryOp) IsArithmetic() bool { return op > arithmeticOpBegin && op < arithmeticOpEnd }

// IsComparison reports whether op is one of ==, !=, <, <=, >, >=.
func (op BinaryOp) IsComparison() bool { return op > compareOpBegin && op < compareOpEnd }

// IsLogical reports whether op is && or ||.
func (op BinaryOp) IsLogical() bool { return op == LogAnd || op == LogOr }

// ResultType returns the type a BinaryExpr with this operator produces.
func (op BinaryOp) ResultType() Type {
	if op.IsArithmetic() {
		return Int
	}
	return Bool
}

// OperandType returns the type both operands of this operator must have.
func (op BinaryOp) OperandType() Type {
	if op.IsLogical() {
		return Bool
	}
	if op.IsArithmetic() {
		return Int
	}
	// Comparisons accept either bool or int operands, provided both agree;
	// callers validate operand-type agreement explicitly.
	return Int
}

// Precedence returns a binding-strength rank, higher binds tighter. Nothing
// in the module consults it: BinaryExpr.String parenthesizes every binary
// expression, and the parser delegates grouping to Go's own grammar.
func (op BinaryOp) Precedence() int {
	switch op {
	case LogOr:
		return 1
	case LogAnd:
		return 2
	case CmpEq, CmpNeq, CmpLt, CmpLe, CmpGt, CmpGe:
		return 3
	case AriAdd, AriSub:
		return 4
	case AriMul, AriDiv:
		return 5
	default:
		return 0
	}
}

func (op BinaryOp) String() string {
	switch op {
	case LogAnd:
		return "&&"
	case LogOr:
		return "||"
	case AriAdd:
		return "+"
	case AriSub:
		return "-"
	case AriMul:
		return "*"
	case AriDiv:
		return "/"
	case CmpEq:
		return "=="
	case CmpNeq:
		return "!="
	case CmpLt:
		return "<"
	case CmpLe:
		return "<="
	case CmpGt:
		return ">"
	case CmpGe:
		return ">="
	default:
		return "?"
	}
}

// Negate returns the comparison operator for the logical negation of a
// comparison, giving ¬(a cmp b) in normal form rather than wrapped in
// LogNot. Abstraction negates conditions with LogNot and does not use it.
func (op BinaryOp) Negate() (BinaryOp, bool) {
	switch op {
	case CmpEq:
		return CmpNeq, true
	case CmpNeq:
		return CmpEq, true
	case CmpLt:
		return CmpGe, true
	case CmpGe:
		return CmpLt, true
	case CmpGt:
		return CmpLe, true
	case CmpLe:
		return CmpGt, true
	default:
		return 0, false
	}
}
