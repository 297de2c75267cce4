package ast

import (
	"fmt"
	"strings"

	"filament/internal/source"
)

// Ident is a name together with where it was written.
type Ident struct {
	Name string
	Span source.Span
}

func (id Ident) String() string { return id.Name }

// Op is a binary arithmetic operator.
type Op uint8

const (
	OpAdd Op = iota
	OpSub
	OpMul
	OpDiv
	OpMod
)

var opText = [...]string{"+", "-", "*", "/", "%"}

func (o Op) String() string { return opText[o] }

func (o Op) prec() int {
	if o == OpAdd || o == OpSub {
		return 1
	}
	return 2
}

// ExprKind discriminates Expr.
type ExprKind uint8

const (
	ExprConcrete ExprKind = iota
	// ExprParam refers to a parameter in scope.
	ExprParam
	// ExprParamAccess reads an existential parameter of an instance: inst::P.
	ExprParamAccess
	ExprBin
	// ExprApp applies a builtin function such as pow2.
	ExprApp
	ExprIf
)

// Expr is an integer expression over parameters.
type Expr struct {
	Kind  ExprKind
	Span  source.Span
	Value uint64
	// Name is the parameter (ExprParam, ExprParamAccess) or the function
	// (ExprApp).
	Name Ident
	Inst Ident // ExprParamAccess
	Op   Op
	// Args are the operands: L and R for ExprBin, the arguments of ExprApp,
	// then and else for ExprIf.
	Args []*Expr
	Cond *Constraint // ExprIf
}

func Num(n uint64) *Expr { return &Expr{Kind: ExprConcrete, Value: n, Span: source.NoSpan} }

func (e *Expr) String() string {
	var sb strings.Builder
	e.write(&sb, 0)
	return sb.String()
}

func (e *Expr) write(sb *strings.Builder, outer int) {
	switch e.Kind {
	case ExprConcrete:
		fmt.Fprintf(sb, "%d", e.Value)
	case ExprParam:
		sb.WriteString(e.Name.Name)
	case ExprParamAccess:
		fmt.Fprintf(sb, "%s::%s", e.Inst.Name, e.Name.Name)
	case ExprBin:
		p := e.Op.prec()
		if p < outer {
			sb.WriteByte('(')
		}
		e.Args[0].write(sb, p)
		fmt.Fprintf(sb, " %s ", e.Op)
		e.Args[1].write(sb, p+1)
		if p < outer {
			sb.WriteByte(')')
		}
	case ExprApp:
		sb.WriteString(e.Name.Name)
		sb.WriteByte('(')
		for i, a := range e.Args {
			if i > 0 {
				sb.WriteString(", ")
			}
			a.write(sb, 0)
		}
		sb.WriteByte(')')
	case ExprIf:
		fmt.Fprintf(sb, "if %s { %s } else { %s }", e.Cond, e.Args[0], e.Args[1])
	}
}

// Cmp is a comparison. Less-than forms are normalized by swapping the
// operands.
type Cmp uint8

const (
	CmpGt Cmp = iota
	CmpGte
	CmpEq
)

var cmpText = [...]string{">", ">=", "=="}

func (c Cmp) String() string { return cmpText[c] }

// Constraint compares two expressions.
type Constraint struct {
	Left, Right *Expr
	Op          Cmp
	Span        source.Span
}

func (c *Constraint) String() string {
	return fmt.Sprintf("%s %s %s", c.Left, c.Op, c.Right)
}

// Implication is a constraint with an optional guard: guard => cons.
type Implication struct {
	Guard *Constraint
	Cons  Constraint
	Span  source.Span
}

func (i *Implication) String() string {
	if i.Guard == nil {
		return i.Cons.String()
	}
	return fmt.Sprintf("%s => %s", i.Guard, &i.Cons)
}

// Time is an event plus an offset: 'G+1. Offset is nil for 'G.
type Time struct {
	Event  Ident
	Offset *Expr
	Span   source.Span
}

func (t Time) String() string {
	if t.Offset == nil || (t.Offset.Kind == ExprConcrete && t.Offset.Value == 0) {
		return "'" + t.Event.Name
	}
	if t.Offset.Kind == ExprBin {
		return fmt.Sprintf("'%s+(%s)", t.Event.Name, t.Offset)
	}
	return fmt.Sprintf("'%s+%s", t.Event.Name, t.Offset)
}

// TimeSub is an event delay: either a plain expression or the symbolic
// difference |'L - 'R|.
type TimeSub struct {
	Unit *Expr
	L, R *Time
	Span source.Span
}

// IsSym reports a symbolic difference.
func (ts TimeSub) IsSym() bool { return ts.L != nil }

func (ts TimeSub) String() string {
	if ts.IsSym() {
		return fmt.Sprintf("|%s - %s|", ts.L, ts.R)
	}
	return ts.Unit.String()
}

// TimeConstraint compares two times.
type TimeConstraint struct {
	Left, Right Time
	Op          Cmp
	Span        source.Span
}

func (c *TimeConstraint) String() string {
	return fmt.Sprintf("%s %s %s", c.Left, c.Op, c.Right)
}

// Range is the interval [Start, End].
type Range struct {
	Start, End Time
	Span       source.Span
}

func (r Range) String() string {
	return fmt.Sprintf("[%s, %s]", r.Start, r.End)
}
