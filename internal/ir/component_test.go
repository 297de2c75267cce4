package ir

import (
	"testing"

	"filament/internal/source"
)

func newTestComp() (*Component, ExprIdx, ExprIdx) {
	c := NewComponent(CompSource, Attrs{})
	n := c.Params.Add(Param{Owner: SigParam(), Info: UnknownInfo})
	m := c.Params.Add(Param{Owner: SigParam(), Info: UnknownInfo})
	return c, c.ParamRef(n), c.ParamRef(m)
}

func TestPreinternedConstants(t *testing.T) {
	c := NewComponent(CompSource, Attrs{})
	if c.Num(0) != 0 || c.Num(1) != 1 {
		t.Fatalf("got %d %d, want 0 1", c.Num(0), c.Num(1))
	}
	if c.FalseProp() != 0 || c.TrueProp() != 1 {
		t.Fatalf("got false=%d true=%d, want 0 1", c.FalseProp(), c.TrueProp())
	}
}

func TestExprSimplification(t *testing.T) {
	c, n, m := newTestComp()
	zero, one := c.Num(0), c.Num(1)
	cases := []struct {
		name string
		got  ExprIdx
		want ExprIdx
	}{
		{"0+n", zero.Add(n, c), n},
		{"n+0", n.Add(zero, c), n},
		{"n-0", n.Sub(zero, c), n},
		{"n*0", n.Mul(zero, c), zero},
		{"0*n", zero.Mul(n, c), zero},
		{"0/n", zero.Div(n, c), zero},
		{"n*1", n.Mul(one, c), n},
		{"1*n", one.Mul(n, c), n},
		{"n/1", n.Div(one, c), n},
		{"2+3", c.Num(2).Add(c.Num(3), c), c.Num(5)},
		{"7%4", c.Num(7).Mod(c.Num(4), c), c.Num(3)},
		{"n+m=m+n", n.Add(m, c), m.Add(n, c)},
		{"n*m=m*n", n.Mul(m, c), m.Mul(n, c)},
		{"2+n=n+2", c.Num(2).Add(n, c), n.Add(c.Num(2), c)},
		{"pow2(3)", c.AddExpr(FnExpr(FnPow2, c.Num(3))), c.Num(8)},
		{"log2(5)", c.AddExpr(FnExpr(FnLog2, c.Num(5))), c.Num(3)},
		{"if true", c.AddExpr(IfExpr(c.TrueProp(), n, m)), n},
		{"if false", c.AddExpr(IfExpr(c.FalseProp(), n, m)), m},
	}
	for _, tc := range cases {
		if tc.got != tc.want {
			t.Fatalf("%s: got %s, want %s", tc.name, c.DisplayExpr(tc.got), c.DisplayExpr(tc.want))
		}
	}
	sum := c.Num(2).Add(n, c)
	if ex := c.Expr(sum); ex.R != c.Num(2) {
		t.Fatalf("concrete operand not moved right: %s", c.DisplayExpr(sum))
	}
}

func TestExprNoUnsoundFolding(t *testing.T) {
	c, n, _ := newTestComp()
	under := c.Num(2).Sub(c.Num(5), c)
	if _, ok := under.AsConcrete(c); ok {
		t.Fatalf("2-5 must not fold to a constant")
	}
	div := c.Num(4).Div(c.Num(0), c)
	if _, ok := div.AsConcrete(c); ok {
		t.Fatalf("4/0 must not fold to a constant")
	}
	if got := n.Sub(n, c); got != c.Num(0) {
		t.Fatalf("n-n: got %s, want 0", c.DisplayExpr(got))
	}
}

func TestPropSimplification(t *testing.T) {
	c, n, m := newTestComp()
	tt, ff := c.TrueProp(), c.FalseProp()
	p := n.Gt(m, c)
	q := m.Gte(c.Num(3), c)
	cases := []struct {
		name string
		got  PropIdx
		want PropIdx
	}{
		{"!true", tt.Not(c), ff},
		{"!!p", p.Not(c).Not(c), p},
		{"p&true", p.And(tt, c), p},
		{"p&false", p.And(ff, c), ff},
		{"p&p", p.And(p, c), p},
		{"p&q=q&p", p.And(q, c), q.And(p, c)},
		{"p|true", p.Or(tt, c), tt},
		{"p|false", p.Or(ff, c), p},
		{"p|q=q|p", p.Or(q, c), q.Or(p, c)},
		{"false=>p", ff.Implies(p, c), tt},
		{"p=>true", p.Implies(tt, c), tt},
		{"true=>p", tt.Implies(p, c), p},
		{"3>2", c.Num(3).Gt(c.Num(2), c), tt},
		{"2>=3", c.Num(2).Gte(c.Num(3), c), ff},
		{"n<m", n.Lt(m, c), m.Gt(n, c)},
	}
	for _, tc := range cases {
		if tc.got != tc.want {
			t.Fatalf("%s: got %s, want %s", tc.name, c.DisplayProp(tc.got), c.DisplayProp(tc.want))
		}
	}
}

func TestTimeComparisons(t *testing.T) {
	c, n, _ := newTestComp()
	g := c.Events.Add(Event{Info: UnknownInfo})
	h := c.Events.Add(Event{Info: UnknownInfo})
	g0 := c.AddTime(Time{Event: g, Offset: c.Num(0)})
	g2 := c.AddTime(Time{Event: g, Offset: c.Num(2)})
	hn := c.AddTime(Time{Event: h, Offset: n})

	if got := g2.Gt(g0, c); got != c.TrueProp() {
		t.Fatalf("G+2 > G: got %s, want true", c.DisplayProp(got))
	}
	if got := g2.Sub(g0, c); got.Sym || got.Unit != c.Num(2) {
		t.Fatalf("G+2 - G: got %s, want 2", c.DisplayTimeSub(got))
	}
	if got := hn.Sub(g0, c); !got.Sym {
		t.Fatalf("times on different events must give a symbolic difference")
	}
	if got := c.Prop(hn.Gte(g0, c)); got.Kind != PropTimeCmp {
		t.Fatalf("got %v, want a time comparison", got.Kind)
	}
	if got := g0.Shift(UnitSub(c.Num(2)), c); got != g2 {
		t.Fatalf("G + 2: got %s, want %s", c.DisplayTime(got), c.DisplayTime(g2))
	}
	mustPanic(t, "cannot add", func() { g0.Shift(hn.Sub(g0, c), c) })
}

func TestAssertAssume(t *testing.T) {
	c, n, m := newTestComp()
	info := c.AddInfo(AssertInfo(MiscReason("test", source.NoSpan)))
	if c.Assert(c.TrueProp(), info) != nil {
		t.Fatalf("asserting true must produce no command")
	}
	f, ok := c.Assert(n.Gt(m, c), info).(*Fact)
	if !ok || !f.IsAssert() {
		t.Fatalf("got %#v, want an assertion", f)
	}
	if c.Assume(c.TrueProp(), info) != nil {
		t.Fatalf("assuming true must produce no command")
	}
	mustPanic(t, "attempted to assume false", func() { c.Assume(c.FalseProp(), info) })
}

func TestSubsetEq(t *testing.T) {
	c, n, m := newTestComp()
	got := c.SubsetEq([2]ExprIdx{n, m}, [2]ExprIdx{n, m})
	if got[0] != c.TrueProp() || got[1] != c.TrueProp() {
		t.Fatalf("got %s, %s, want true, true", c.DisplayProp(got[0]), c.DisplayProp(got[1]))
	}
	got = c.SubsetEq([2]ExprIdx{c.Num(0), m}, [2]ExprIdx{n, c.Num(4)})
	if want := n.Gte(c.Num(0), c); got[0] != want {
		t.Fatalf("got %s, want %s", c.DisplayProp(got[0]), c.DisplayProp(want))
	}
}

func TestResolveProp(t *testing.T) {
	c := NewComponent(CompSource, Attrs{})
	x := c.Params.Add(Param{Owner: SigParam(), Info: UnknownInfo})
	xe := c.ParamRef(x)
	// X > 0 & X - 1 >= 0 with X = 0: the right side underflows and must not
	// be evaluated.
	guard := xe.Gt(c.Num(0), c).And(xe.Sub(c.Num(1), c).Gte(c.Num(0), c), c)
	zero := c.SubstProp(guard, func(ParamIdx) (ExprIdx, bool) { return c.Num(0), true })
	if got := c.ResolveProp(zero); got != c.FalseProp() {
		t.Fatalf("got %s, want false", c.DisplayProp(got))
	}
	three := c.SubstProp(guard, func(ParamIdx) (ExprIdx, bool) { return c.Num(3), true })
	if got := c.ResolveProp(three); got != c.TrueProp() {
		t.Fatalf("got %s, want true", c.DisplayProp(got))
	}
}

func TestResolvePropGuardOrder(t *testing.T) {
	c := NewComponent(CompSource, Attrs{})
	// The undefined side is interned first, so it is the left conjunct.
	under := c.AddProp(CmpProp(CmpGte, c.Num(2).Sub(c.Num(5), c), c.Num(0)))
	guard := c.props.Intern(CmpProp(CmpGt, c.Num(0), c.Num(0)))
	and := c.props.Intern(AndProp(under, guard))
	if got := c.ResolveProp(and); got != c.FalseProp() {
		t.Fatalf("got %s, want false", c.DisplayProp(got))
	}
	or := c.props.Intern(OrProp(under, guard.Not(c)))
	if got := c.ResolveProp(or); got != c.TrueProp() {
		t.Fatalf("got %s, want true", c.DisplayProp(got))
	}
	mustPanic(t, "cannot evaluate", func() { c.ResolveProp(under) })
}

func TestEvalExpr(t *testing.T) {
	c := NewComponent(CompSource, Attrs{})
	e := c.AddExpr(IfExpr(c.Num(3).Gt(c.Num(2), c), c.Num(10), c.Num(20)))
	if got := c.EvalExpr(e); got != c.Num(10) {
		t.Fatalf("got %s, want 10", c.DisplayExpr(got))
	}
	p := c.Params.Add(Param{Owner: SigParam(), Info: UnknownInfo})
	mustPanic(t, "cannot evaluate", func() { c.EvalExpr(c.ParamRef(p)) })
}

func TestExistAssumes(t *testing.T) {
	c, n, m := newTestComp()
	e := c.Params.Add(Param{Owner: ExistsParam(false), Info: UnknownInfo})
	c.AddExistAssumes(e, Located{Prop: n.Gt(m, c), Loc: source.NoSpan})
	c.AddExistAssumes(e, Located{Prop: m.Gt(n, c), Loc: source.NoSpan})
	facts, ok := c.ExistAssumes(e)
	if !ok || len(facts) != 2 {
		t.Fatalf("got %d facts, want 2", len(facts))
	}
	if got := c.ExistParams(); len(got) != 1 || got[0] != e {
		t.Fatalf("got %v, want [%s]", got, e)
	}
}

func TestExprParams(t *testing.T) {
	c, n, m := newTestComp()
	e := n.Add(m, c).Mul(n, c)
	if got := c.ExprParams(e); len(got) != 3 {
		t.Fatalf("got %v, want three occurrences", got)
	}
}
