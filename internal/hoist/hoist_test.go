package hoist

import (
	"testing"

	"filament/internal/ir"
	"filament/internal/source"
	"filament/internal/testkit"
)

func setup() (*testkit.Comp, ir.ExprIdx, ir.PropIdx) {
	p := testkit.NewProgram()
	m := p.Component("main")
	_, n := m.Param("N")
	cond := n.Gt(m.Num(4), m.C)
	return m, n, cond
}

func assert(c *ir.Component, p ir.PropIdx) *ir.Fact {
	return ir.AssertFact(p, c.AddInfo(ir.AssertInfo(ir.MiscReason("test", source.NoSpan))))
}

func assume(c *ir.Component, p ir.PropIdx) *ir.Fact {
	return ir.AssumeFact(p, c.AddInfo(ir.EmptyInfo()))
}

func TestTopLevelAssert(t *testing.T) {
	m, n, _ := setup()
	c := m.C
	goal := n.Gte(m.Num(1), c)
	c.Cmds = []ir.Command{assert(c, goal)}

	fs := Facts(c)
	if len(fs) != 1 || fs[0].Prop != goal {
		t.Fatalf("got %v, want a single fact %s", fs, goal)
	}
	if len(c.Cmds) != 1 {
		t.Fatalf("body was modified: %v", c.Cmds)
	}
}

func TestBranchConditions(t *testing.T) {
	m, n, cond := setup()
	c := m.C
	g1 := n.Gte(m.Num(1), c)
	g2 := n.Gte(m.Num(2), c)
	c.Cmds = []ir.Command{&ir.If{
		Cond: cond,
		Then: []ir.Command{assert(c, g1)},
		Alt:  []ir.Command{assert(c, g2)},
	}}

	fs := Facts(c)
	if len(fs) != 2 {
		t.Fatalf("got %d facts, want 2", len(fs))
	}
	if want := cond.Implies(g1, c); fs[0].Prop != want {
		t.Fatalf("got %s, want %s", c.DisplayProp(fs[0].Prop), c.DisplayProp(want))
	}
	if want := cond.Not(c).Implies(g2, c); fs[1].Prop != want {
		t.Fatalf("got %s, want %s", c.DisplayProp(fs[1].Prop), c.DisplayProp(want))
	}
}

func TestAssumptionsStayInBranch(t *testing.T) {
	m, n, cond := setup()
	c := m.C
	local := n.Lt(m.Num(100), c)
	g := n.Gte(m.Num(1), c)
	c.Cmds = []ir.Command{&ir.If{
		Cond: cond,
		Then: []ir.Command{assume(c, local)},
		Alt:  []ir.Command{assert(c, g)},
	}}

	fs := Facts(c)
	if len(fs) != 1 {
		t.Fatalf("got %d facts, want 1", len(fs))
	}
	if want := cond.Not(c).Implies(g, c); fs[0].Prop != want {
		t.Fatalf("got %s, want %s", c.DisplayProp(fs[0].Prop), c.DisplayProp(want))
	}
}

func TestLoopBounds(t *testing.T) {
	m, n, _ := setup()
	c := m.C
	info := c.AddInfo(ir.ParamInfo(m.P.Ctx.Names.Intern("i"), source.NoSpan))
	i := c.Params.Add(ir.Param{Owner: ir.LoopParam(), Info: info})
	iv := c.ParamRef(i)
	g := iv.Lt(n, c)
	c.Cmds = []ir.Command{&ir.ForLoop{
		Index: i, Start: m.Num(0), End: n,
		Body: []ir.Command{assert(c, g)},
	}}

	fs := Facts(c)
	if len(fs) != 1 {
		t.Fatalf("got %d facts, want 1", len(fs))
	}
	bounds := iv.Gte(m.Num(0), c).And(iv.Lt(n, c), c)
	if want := bounds.Implies(g, c); fs[0].Prop != want {
		t.Fatalf("got %s, want %s", c.DisplayProp(fs[0].Prop), c.DisplayProp(want))
	}
}

func TestScopeAssumptionsGuardWholeScope(t *testing.T) {
	m, n, _ := setup()
	c := m.C
	a := n.Gt(m.Num(2), c)
	g := n.Gt(m.Num(1), c)
	// the assumption comes after the assertion but still guards it
	c.Cmds = []ir.Command{assert(c, g), assume(c, a)}

	fs := Facts(c)
	if len(fs) != 1 {
		t.Fatalf("got %d facts, want 1", len(fs))
	}
	if want := a.Implies(g, c); fs[0].Prop != want {
		t.Fatalf("got %s, want %s", c.DisplayProp(fs[0].Prop), c.DisplayProp(want))
	}
}

func TestTrivialObligationsDropped(t *testing.T) {
	m, n, _ := setup()
	c := m.C
	g := n.Gte(m.Num(1), c)
	c.Cmds = []ir.Command{assume(c, g), assert(c, g)}

	if fs := Facts(c); len(fs) != 0 {
		t.Fatalf("got %d facts, want none", len(fs))
	}
}
