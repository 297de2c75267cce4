package ir

import "fmt"

// Cmp is a comparison operator. Less-than forms are expressed by swapping
// operands.
type Cmp uint8

const (
	CmpGt Cmp = iota
	CmpGte
	CmpEq
)

func (c Cmp) String() string {
	switch c {
	case CmpGt:
		return ">"
	case CmpGte:
		return ">="
	case CmpEq:
		return "=="
	}
	return "?"
}

func (c Cmp) holds(l, r uint64) bool {
	switch c {
	case CmpGt:
		return l > r
	case CmpGte:
		return l >= r
	default:
		return l == r
	}
}

// PropKind discriminates Prop variants.
type PropKind uint8

const (
	PropFalse PropKind = iota
	PropTrue
	PropCmp
	PropTimeCmp
	PropTimeSubCmp
	PropNot
	PropAnd
	PropOr
	PropImplies
)

// Prop is an interned proposition. As with Expr, only the fields relevant
// to Kind are populated.
type Prop struct {
	Kind   PropKind
	Op     Cmp
	L, R   ExprIdx // Cmp
	TL, TR TimeIdx // TimeCmp
	SL, SR TimeSub // TimeSubCmp
	P, Q   PropIdx // Not uses P; And/Or/Implies use both
}

var (
	True  = Prop{Kind: PropTrue}
	False = Prop{Kind: PropFalse}
)

func CmpProp(op Cmp, l, r ExprIdx) Prop     { return Prop{Kind: PropCmp, Op: op, L: l, R: r} }
func TimeCmpProp(op Cmp, l, r TimeIdx) Prop { return Prop{Kind: PropTimeCmp, Op: op, TL: l, TR: r} }
func TimeSubCmpProp(op Cmp, l, r TimeSub) Prop {
	return Prop{Kind: PropTimeSubCmp, Op: op, SL: l, SR: r}
}
func NotProp(p PropIdx) Prop        { return Prop{Kind: PropNot, P: p} }
func AndProp(p, q PropIdx) Prop     { return Prop{Kind: PropAnd, P: p, Q: q} }
func OrProp(p, q PropIdx) Prop      { return Prop{Kind: PropOr, P: p, Q: q} }
func ImpliesProp(p, q PropIdx) Prop { return Prop{Kind: PropImplies, P: p, Q: q} }

func (p Prop) String() string {
	switch p.Kind {
	case PropTrue:
		return "true"
	case PropFalse:
		return "false"
	case PropCmp:
		return fmt.Sprintf("%s %s %s", p.L, p.Op, p.R)
	case PropTimeCmp:
		return fmt.Sprintf("%s %s %s", p.TL, p.Op, p.TR)
	case PropTimeSubCmp:
		return fmt.Sprintf("%s %s %s", p.SL, p.Op, p.SR)
	case PropNot:
		return fmt.Sprintf("!%s", p.P)
	case PropAnd:
		return fmt.Sprintf("%s & %s", p.P, p.Q)
	case PropOr:
		return fmt.Sprintf("%s | %s", p.P, p.Q)
	case PropImplies:
		return fmt.Sprintf("%s => %s", p.P, p.Q)
	}
	return "?"
}

// PropCtx can look up and intern propositions.
type PropCtx interface {
	Prop(PropIdx) Prop
	AddProp(Prop) PropIdx
}

func (p PropIdx) IsTrue(ctx PropCtx) bool  { return ctx.Prop(p).Kind == PropTrue }
func (p PropIdx) IsFalse(ctx PropCtx) bool { return ctx.Prop(p).Kind == PropFalse }

// AsConcrete returns the truth value of a literal proposition.
func (p PropIdx) AsConcrete(ctx PropCtx) (bool, bool) {
	switch ctx.Prop(p).Kind {
	case PropTrue:
		return true, true
	case PropFalse:
		return false, true
	}
	return false, false
}

func (p PropIdx) Not(ctx PropCtx) PropIdx                { return ctx.AddProp(NotProp(p)) }
func (p PropIdx) And(q PropIdx, ctx PropCtx) PropIdx     { return ctx.AddProp(AndProp(p, q)) }
func (p PropIdx) Or(q PropIdx, ctx PropCtx) PropIdx      { return ctx.AddProp(OrProp(p, q)) }
func (p PropIdx) Implies(q PropIdx, ctx PropCtx) PropIdx { return ctx.AddProp(ImpliesProp(p, q)) }

// Consequent strips an implication down to its right-hand side.
func (p PropIdx) Consequent(ctx PropCtx) PropIdx {
	if pr := ctx.Prop(p); pr.Kind == PropImplies {
		return pr.Q
	}
	return p
}

// Comparisons between expressions.

func (e ExprIdx) Gt(o ExprIdx, ctx PropCtx) PropIdx    { return ctx.AddProp(CmpProp(CmpGt, e, o)) }
func (e ExprIdx) Gte(o ExprIdx, ctx PropCtx) PropIdx   { return ctx.AddProp(CmpProp(CmpGte, e, o)) }
func (e ExprIdx) Lt(o ExprIdx, ctx PropCtx) PropIdx    { return ctx.AddProp(CmpProp(CmpGt, o, e)) }
func (e ExprIdx) Lte(o ExprIdx, ctx PropCtx) PropIdx   { return ctx.AddProp(CmpProp(CmpGte, o, e)) }
func (e ExprIdx) Equal(o ExprIdx, ctx PropCtx) PropIdx { return ctx.AddProp(CmpProp(CmpEq, e, o)) }

// Comparisons between times.

func (t TimeIdx) Gt(o TimeIdx, ctx PropCtx) PropIdx    { return ctx.AddProp(TimeCmpProp(CmpGt, t, o)) }
func (t TimeIdx) Gte(o TimeIdx, ctx PropCtx) PropIdx   { return ctx.AddProp(TimeCmpProp(CmpGte, t, o)) }
func (t TimeIdx) Lt(o TimeIdx, ctx PropCtx) PropIdx    { return ctx.AddProp(TimeCmpProp(CmpGt, o, t)) }
func (t TimeIdx) Lte(o TimeIdx, ctx PropCtx) PropIdx   { return ctx.AddProp(TimeCmpProp(CmpGte, o, t)) }
func (t TimeIdx) Equal(o TimeIdx, ctx PropCtx) PropIdx { return ctx.AddProp(TimeCmpProp(CmpEq, t, o)) }

// Comparisons between time differences.

func (ts TimeSub) Gt(o TimeSub, ctx PropCtx) PropIdx {
	return ctx.AddProp(TimeSubCmpProp(CmpGt, ts, o))
}
func (ts TimeSub) Gte(o TimeSub, ctx PropCtx) PropIdx {
	return ctx.AddProp(TimeSubCmpProp(CmpGte, ts, o))
}
func (ts TimeSub) Lt(o TimeSub, ctx PropCtx) PropIdx {
	return ctx.AddProp(TimeSubCmpProp(CmpGt, o, ts))
}
func (ts TimeSub) Lte(o TimeSub, ctx PropCtx) PropIdx {
	return ctx.AddProp(TimeSubCmpProp(CmpGte, o, ts))
}
func (ts TimeSub) Equal(o TimeSub, ctx PropCtx) PropIdx {
	return ctx.AddProp(TimeSubCmpProp(CmpEq, ts, o))
}

// Fact is a proposition that is either assumed or must be proved.
type Fact struct {
	Prop    PropIdx
	Reason  InfoIdx
	Checked bool
}

// AssertFact builds a fact that must be discharged.
func AssertFact(p PropIdx, reason InfoIdx) *Fact {
	return &Fact{Prop: p, Reason: reason, Checked: true}
}

// AssumeFact builds a fact that may be relied upon.
func AssumeFact(p PropIdx, reason InfoIdx) *Fact {
	return &Fact{Prop: p, Reason: reason}
}

func (f *Fact) IsAssert() bool { return f.Checked }
func (f *Fact) IsAssume() bool { return !f.Checked }
