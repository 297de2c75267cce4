package check

import (
	"context"
	"testing"

	"filament/internal/config"
	"filament/internal/diag"
	"filament/internal/ir"
	"filament/internal/source"
	"filament/internal/testkit"
	"filament/internal/visitor"
)

func run(t *testing.T, p *testkit.Program, v visitor.Visitor) error {
	t.Helper()
	return visitor.Run(context.Background(), p.Ctx, v, config.Defaults())
}

func codes(bag *diag.Bag) map[diag.Code]int {
	out := make(map[diag.Code]int)
	for _, d := range bag.Items() {
		out[d.Code]++
	}
	return out
}

func facts(cmds []ir.Command) []*ir.Fact {
	var out []*ir.Fact
	for _, c := range cmds {
		if f, ok := c.(*ir.Fact); ok {
			out = append(out, f)
		}
	}
	return out
}

func TestAccessObligationsInBounds(t *testing.T) {
	p := testkit.NewProgram()
	m := p.Component("main")
	g := m.Event("G", 1, true)
	in := m.Input("in", 32, m.At(g, 0), m.At(g, 1), 4)

	fs := AccessObligations(m.C, m.Access(in, 1, 3), source.NoSpan)
	if len(fs) != 2 {
		t.Fatalf("got %d obligations, want 2", len(fs))
	}
	for i, f := range fs {
		if !f.Prop.IsTrue(m.C) {
			t.Fatalf("obligation %d: got %s, want true", i, m.C.DisplayProp(f.Prop))
		}
		if !f.IsAssert() {
			t.Fatalf("obligation %d is not an assertion", i)
		}
	}
}

func TestAccessObligationsReversed(t *testing.T) {
	p := testkit.NewProgram()
	m := p.Component("main")
	g := m.Event("G", 1, true)
	in := m.Input("in", 32, m.At(g, 0), m.At(g, 1), 4)

	fs := AccessObligations(m.C, m.Access(in, 3, 2), source.NoSpan)
	if len(fs) != 2 {
		t.Fatalf("got %d obligations, want 2", len(fs))
	}
	if !fs[0].Prop.IsFalse(m.C) {
		t.Fatalf("got %s, want false", m.C.DisplayProp(fs[0].Prop))
	}
	if r := m.C.Reason(fs[0].Reason); r == nil || r.Msg != "end of port access must be greater than the start" {
		t.Fatalf("well-formedness reason = %v", r)
	}
	if r := m.C.Reason(fs[1].Reason); r == nil || r.Code() != diag.ObgInBounds {
		t.Fatalf("second obligation should be a bounds check, got %v", r)
	}
}

func TestCardinality(t *testing.T) {
	p := testkit.NewProgram()
	m := p.Component("main")
	g := m.Event("G", 1, true)
	a := m.Input("a", 8, m.At(g, 0), m.At(g, 1), 2, 3)
	b := m.Output("b", 8, m.At(g, 0), m.At(g, 1), 6, 1)
	c := m.Output("c", 8, m.At(g, 0), m.At(g, 1), 2, 2)

	na := cardinality(m.C, m.Access(a, 0, 2, 0, 3))
	nb := cardinality(m.C, m.Access(b, 0, 6, 0, 1))
	nc := cardinality(m.C, m.Access(c, 0, 2, 0, 2))
	if eq := na.Equal(nb, m.C); !eq.IsTrue(m.C) {
		t.Fatalf("2x3 vs 6x1: got %s, want true", m.C.DisplayProp(eq))
	}
	if eq := na.Equal(nc, m.C); !eq.IsFalse(m.C) {
		t.Fatalf("2x3 vs 2x2: got %s, want false", m.C.DisplayProp(eq))
	}
}

func TestTypeCheckWidthMismatch(t *testing.T) {
	p := testkit.NewProgram()
	m := p.Component("main")
	g := m.Event("G", 1, true)
	in := m.Input("in", 16, m.At(g, 0), m.At(g, 1))
	out := m.Output("out", 32, m.At(g, 0), m.At(g, 1))
	m.Connect(m.Access(out), m.Access(in))

	if err := run(t, p, NewTypeCheck()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fs := facts(m.C.Cmds)
	if len(fs) != 1 {
		t.Fatalf("got %d assertions, want 1", len(fs))
	}
	if !fs[0].Prop.IsFalse(m.C) {
		t.Fatalf("got %s, want false", m.C.DisplayProp(fs[0].Prop))
	}
	if r := m.C.Reason(fs[0].Reason); r == nil || r.Code() != diag.ObgBundleWidth {
		t.Fatalf("got reason %v, want a width mismatch", r)
	}
	if _, ok := m.C.Cmds[len(m.C.Cmds)-1].(*ir.Connect); !ok {
		t.Fatalf("assertion must come before the connection")
	}
}

func TestTypeCheckMatchingConnect(t *testing.T) {
	p := testkit.NewProgram()
	m := p.Component("main")
	g := m.Event("G", 1, true)
	in := m.Input("in", 32, m.At(g, 0), m.At(g, 1), 4)
	out := m.Output("out", 32, m.At(g, 0), m.At(g, 1), 2)
	m.Connect(m.Access(out, 0, 2), m.Access(in, 1, 3))

	if err := run(t, p, NewTypeCheck()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fs := facts(m.C.Cmds); len(fs) != 0 {
		t.Fatalf("got %d assertions, want none", len(fs))
	}
}

func TestIntervalCheckZeroDelay(t *testing.T) {
	p := testkit.NewProgram()
	m := p.Component("main")
	g := m.Event("G", 0, true)
	m.Input("in", 32, m.At(g, 0), m.At(g, 1))

	if err := run(t, p, NewIntervalCheck()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var falses int
	for _, f := range facts(m.C.Cmds) {
		if f.Prop.IsFalse(m.C) {
			falses++
		}
	}
	// the delay itself and the port that outlives it
	if falses != 2 {
		t.Fatalf("got %d false assertions, want 2", falses)
	}
}

func TestIntervalCheckInvokeTooOften(t *testing.T) {
	p := testkit.NewProgram()
	reg := p.Extern("Reg")
	rg := reg.Event("G", 2, true)
	reg.Input("in", 32, reg.At(rg, 0), reg.At(rg, 1))

	m := p.Component("main")
	g := m.Event("G", 1, true)
	r := m.Instance("r", reg)
	m.Invoke("r0", r, m.At(g, 0))

	if err := run(t, p, NewIntervalCheck()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var found bool
	for _, f := range facts(m.C.Cmds) {
		if r := m.C.Reason(f.Reason); r != nil && r.Code() == diag.ObgEventTrigger {
			found = f.Prop.IsFalse(m.C)
		}
	}
	if !found {
		t.Fatalf("expected a false event trigger assertion")
	}
}

func phantomProgram(ifaceEvent bool, invokes int) *testkit.Program {
	p := testkit.NewProgram()
	reg := p.Extern("Reg")
	rg := reg.Event("G", 1, true)
	reg.Input("in", 32, reg.At(rg, 0), reg.At(rg, 1))

	m := p.Component("main")
	g := m.Event("G", 2, ifaceEvent)
	r := m.Instance("r", reg)
	for i := range invokes {
		m.Invoke("r"+string(rune('0'+i)), r, m.At(g, uint64(i)))
	}
	return p
}

func TestPhantomSharedInstance(t *testing.T) {
	bag := diag.NewBag(100)
	err := run(t, phantomProgram(false, 2), NewPhantomCheck(diag.NewBagReporter(bag)))
	if err == nil {
		t.Fatalf("expected phantom check to fail")
	}
	got := codes(bag)
	if got[diag.ChkPhantomShared] != 1 {
		t.Fatalf("got %d shared-instance errors, want 1", got[diag.ChkPhantomShared])
	}
	if got[diag.ChkPhantomBinding] != 2 {
		t.Fatalf("got %d binding errors, want 2", got[diag.ChkPhantomBinding])
	}
}

func TestPhantomInterfaceEventAllowed(t *testing.T) {
	bag := diag.NewBag(100)
	if err := run(t, phantomProgram(true, 2), NewPhantomCheck(diag.NewBagReporter(bag))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bag.Len() != 0 {
		t.Fatalf("got %d diagnostics, want none", bag.Len())
	}
}

func TestPhantomSingleInvocation(t *testing.T) {
	bag := diag.NewBag(100)
	if err := run(t, phantomProgram(false, 1), NewPhantomCheck(diag.NewBagReporter(bag))); err == nil {
		t.Fatalf("expected phantom check to fail")
	}
	got := codes(bag)
	if got[diag.ChkPhantomShared] != 0 || got[diag.ChkPhantomBinding] != 1 {
		t.Fatalf("got %v, want a single binding error", got)
	}
}

func TestPhantomInvokeInLoop(t *testing.T) {
	p := testkit.NewProgram()
	reg := p.Component("Reg")
	rg := reg.Event("G", 1, false)
	reg.Input("in", 32, reg.At(rg, 0), reg.At(rg, 1))

	m := p.Component("main")
	g := m.Event("G", 1, false)
	r := m.Instance("r", reg)
	m.Invoke("r0", r, m.At(g, 0))

	// move the invocation into a loop
	last := len(m.C.Cmds) - 1
	inv := m.C.Cmds[last]
	info := m.C.AddInfo(ir.ParamInfo(p.Ctx.Names.Intern("i"), source.NoSpan))
	idx := m.C.Params.Add(ir.Param{Owner: ir.LoopParam(), Info: info})
	m.C.Cmds[last] = &ir.ForLoop{Index: idx, Start: m.Num(0), End: m.Num(2), Body: []ir.Command{inv}}

	bag := diag.NewBag(100)
	if err := run(t, p, NewPhantomCheck(diag.NewBagReporter(bag))); err == nil {
		t.Fatalf("expected phantom check to fail")
	}
	if got := codes(bag); got[diag.ChkPhantomLoop] != 1 || len(got) != 1 {
		t.Fatalf("got %v, want a single loop error", got)
	}
}

func assignProgram(writes int) (*testkit.Program, *testkit.Comp) {
	p := testkit.NewProgram()
	m := p.Component("main")
	g := m.Event("G", 1, true)
	in := m.Input("in", 32, m.At(g, 0), m.At(g, 1))
	out := m.Output("out", 32, m.At(g, 0), m.At(g, 1), 2)
	for range writes {
		m.Connect(m.Access(out, 0, 1), m.Access(in))
	}
	return p, m
}

func TestAssignCheck(t *testing.T) {
	cases := []struct {
		name   string
		writes int
		want   map[diag.Code]int
	}{
		// out{1} is never written in any case
		{"once", 1, map[diag.Code]int{diag.ChkNeverAssigned: 1}},
		{"never", 0, map[diag.Code]int{diag.ChkNeverAssigned: 2}},
		{"twice", 2, map[diag.Code]int{diag.ChkNeverAssigned: 1, diag.ChkMultipleAssigned: 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, _ := assignProgram(tc.writes)
			bag := diag.NewBag(100)
			err := run(t, p, NewAssignCheck(diag.NewBagReporter(bag)))
			if err == nil {
				t.Fatalf("expected assign check to fail")
			}
			got := codes(bag)
			for code, n := range tc.want {
				if got[code] != n {
					t.Fatalf("%s: got %d, want %d", code, got[code], n)
				}
			}
			if len(got) != len(tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestAssignCheckComplete(t *testing.T) {
	p := testkit.NewProgram()
	m := p.Component("main")
	g := m.Event("G", 1, true)
	in := m.Input("in", 32, m.At(g, 0), m.At(g, 1), 2)
	out := m.Output("out", 32, m.At(g, 0), m.At(g, 1), 2)
	m.Connect(m.Access(out, 0, 2), m.Access(in, 0, 2))

	bag := diag.NewBag(100)
	if err := run(t, p, NewAssignCheck(diag.NewBagReporter(bag))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAssumptions(t *testing.T) {
	p := testkit.NewProgram()
	sh := p.Extern("Shift")
	w, wref := sh.Param("W")
	sh.C.AddParamAsserts(ir.Located{Prop: wref.Gt(sh.Num(0), sh.C), Loc: source.NoSpan})
	l, lref := sh.Exists("L")
	sh.C.AddExistAssumes(l, ir.Located{Prop: lref.Lte(sh.C.ParamRef(w), sh.C), Loc: source.NoSpan})
	sg := sh.Event("G", 1, true)
	sh2 := sh.Event("H", 1, false)
	sh.C.AddEventAsserts(ir.Located{Prop: sh.At(sh2, 0).Gte(sh.At(sg, 1), sh.C), Loc: source.NoSpan})

	m := p.Component("main")
	g := m.Event("G", 1, true)
	_, n := m.Param("N")
	m.C.AddParamAsserts(ir.Located{Prop: n.Gt(m.Num(2), m.C), Loc: source.NoSpan})
	m.Input("in", 8, m.At(g, 0), m.At(g, 1), 4)
	inst := m.Instance("S", sh, n)
	m.Invoke("s0", inst, m.At(g, 0), m.At(g, 0))

	if err := run(t, p, NewAssumptions()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	kinds := make(map[ir.ReasonKind]int)
	var assumes, asserts int
	for _, f := range facts(m.C.Cmds) {
		if f.IsAssume() {
			assumes++
		} else {
			asserts++
		}
		if r := m.C.Reason(f.Reason); r != nil {
			kinds[r.Kind]++
		}
	}
	// N > 2 and the bundle index bound are assumed along with L <= N;
	// N > 0 and the false event ordering are asserted.
	if assumes != 3 || asserts != 2 {
		t.Fatalf("assumes = %d, asserts = %d", assumes, asserts)
	}
	for _, k := range []ir.ReasonKind{ir.ReasonParamConstraint, ir.ReasonEventConstraint, ir.ReasonExistsConstraint} {
		if kinds[k] != 1 {
			t.Fatalf("reason kinds = %v", kinds)
		}
	}
	if len(facts(sh.C.Cmds)) != 0 {
		t.Fatalf("extern body changed")
	}
}
