package ir

import (
	"fmt"
	"math"
	"math/bits"
)

// Op is a binary arithmetic operator.
type Op uint8

const (
	OpAdd Op = iota
	OpSub
	OpMul
	OpDiv
	OpMod
)

func (o Op) String() string {
	switch o {
	case OpAdd:
		return "+"
	case OpSub:
		return "-"
	case OpMul:
		return "*"
	case OpDiv:
		return "/"
	case OpMod:
		return "%"
	}
	return "?"
}

// Commutative reports whether operand order is irrelevant.
func (o Op) Commutative() bool {
	return o == OpAdd || o == OpMul
}

// apply folds two concrete operands. ok is false when the result is not a
// natural number (underflow, division by zero, overflow).
func (o Op) apply(l, r uint64) (uint64, bool) {
	switch o {
	case OpAdd:
		sum, carry := bits.Add64(l, r, 0)
		return sum, carry == 0
	case OpSub:
		if l < r {
			return 0, false
		}
		return l - r, true
	case OpMul:
		hi, lo := bits.Mul64(l, r)
		return lo, hi == 0
	case OpDiv:
		if r == 0 {
			return 0, false
		}
		return l / r, true
	case OpMod:
		if r == 0 {
			return 0, false
		}
		return l % r, true
	}
	return 0, false
}

// FnOp is a builtin function usable inside expressions.
type FnOp uint8

const (
	FnPow2 FnOp = iota
	FnLog2
	FnSinB
	FnCosB
	FnBitRev
)

func (f FnOp) String() string {
	switch f {
	case FnPow2:
		return "pow2"
	case FnLog2:
		return "log2"
	case FnSinB:
		return "sin_bits"
	case FnCosB:
		return "cos_bits"
	case FnBitRev:
		return "bit_rev"
	}
	return "?"
}

// Arity is the number of arguments the function takes.
func (f FnOp) Arity() int {
	switch f {
	case FnPow2, FnLog2:
		return 1
	default:
		return 2
	}
}

// Eval computes the function on concrete arguments.
func (f FnOp) Eval(args []uint64) (uint64, bool) {
	if len(args) != f.Arity() {
		panic(fmt.Sprintf("ir: function %s expects %d arguments, got %d", f, f.Arity(), len(args)))
	}
	switch f {
	case FnPow2:
		if args[0] >= 64 {
			return 0, false
		}
		return 1 << args[0], true
	case FnLog2:
		if args[0] <= 1 {
			return 0, true
		}
		return uint64(bits.Len64(args[0] - 1)), true
	case FnSinB, FnCosB:
		if args[1] == 0 {
			return 0, false
		}
		x := 2 * math.Pi * float64(args[0]) / float64(args[1])
		v := math.Sin(x)
		if f == FnCosB {
			v = math.Cos(x)
		}
		return uint64(math.Float32bits(float32(v))), true
	case FnBitRev:
		n, rev := args[0], uint64(0)
		for range args[1] {
			rev = rev<<1 | n&1
			n >>= 1
		}
		return rev, true
	}
	return 0, false
}

// ExprKind discriminates Expr variants.
type ExprKind uint8

const (
	ExprParam ExprKind = iota
	ExprConcrete
	ExprBin
	ExprFn
	ExprIf
)

// Expr is an interned arithmetic expression over natural numbers. Only the
// fields relevant to Kind are set; the rest stay zero so that structurally
// equal expressions compare equal.
type Expr struct {
	Kind  ExprKind
	Param ParamIdx
	Value uint64
	Op    Op
	L, R  ExprIdx // Bin operands, or If branches
	Fn    FnOp
	Args  [2]ExprIdx
	NArgs uint8
	Cond  PropIdx
}

func ParamExpr(p ParamIdx) Expr { return Expr{Kind: ExprParam, Param: p} }
func Concrete(n uint64) Expr    { return Expr{Kind: ExprConcrete, Value: n} }

func BinExpr(op Op, l, r ExprIdx) Expr {
	return Expr{Kind: ExprBin, Op: op, L: l, R: r}
}

func FnExpr(op FnOp, args ...ExprIdx) Expr {
	if len(args) != op.Arity() {
		panic(fmt.Sprintf("ir: function %s expects %d arguments, got %d", op, op.Arity(), len(args)))
	}
	e := Expr{Kind: ExprFn, Fn: op, NArgs: uint8(len(args))}
	copy(e.Args[:], args)
	return e
}

func IfExpr(cond PropIdx, then, alt ExprIdx) Expr {
	return Expr{Kind: ExprIf, Cond: cond, L: then, R: alt}
}

// ArgList returns the arguments of a function application.
func (e Expr) ArgList() []ExprIdx {
	return e.Args[:e.NArgs]
}

func (e Expr) String() string {
	switch e.Kind {
	case ExprParam:
		return e.Param.String()
	case ExprConcrete:
		return fmt.Sprintf("%d", e.Value)
	case ExprBin:
		return fmt.Sprintf("%s %s %s", e.L, e.Op, e.R)
	case ExprFn:
		if e.NArgs == 1 {
			return fmt.Sprintf("%s(%s)", e.Fn, e.Args[0])
		}
		return fmt.Sprintf("%s(%s, %s)", e.Fn, e.Args[0], e.Args[1])
	case ExprIf:
		return fmt.Sprintf("if %s then %s else %s", e.Cond, e.L, e.R)
	}
	return "?"
}

// ExprCtx can look up and intern expressions.
type ExprCtx interface {
	Expr(ExprIdx) Expr
	AddExpr(Expr) ExprIdx
}

// AsConcrete returns the value if e is a literal.
func (e ExprIdx) AsConcrete(ctx ExprCtx) (uint64, bool) {
	ex := ctx.Expr(e)
	if ex.Kind != ExprConcrete {
		return 0, false
	}
	return ex.Value, true
}

// AsParam returns the parameter if e is a bare parameter reference.
func (e ExprIdx) AsParam(ctx ExprCtx) (ParamIdx, bool) {
	ex := ctx.Expr(e)
	if ex.Kind != ExprParam {
		return 0, false
	}
	return ex.Param, true
}

// IsConst reports whether e is the literal n. No reduction is attempted.
func (e ExprIdx) IsConst(ctx ExprCtx, n uint64) bool {
	v, ok := e.AsConcrete(ctx)
	return ok && v == n
}

func (e ExprIdx) Add(o ExprIdx, ctx ExprCtx) ExprIdx { return ctx.AddExpr(BinExpr(OpAdd, e, o)) }
func (e ExprIdx) Sub(o ExprIdx, ctx ExprCtx) ExprIdx { return ctx.AddExpr(BinExpr(OpSub, e, o)) }
func (e ExprIdx) Mul(o ExprIdx, ctx ExprCtx) ExprIdx { return ctx.AddExpr(BinExpr(OpMul, e, o)) }
func (e ExprIdx) Div(o ExprIdx, ctx ExprCtx) ExprIdx { return ctx.AddExpr(BinExpr(OpDiv, e, o)) }
func (e ExprIdx) Mod(o ExprIdx, ctx ExprCtx) ExprIdx { return ctx.AddExpr(BinExpr(OpMod, e, o)) }
