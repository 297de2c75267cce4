package bundle

import (
	"context"
	"strings"
	"testing"

	"filament/internal/check"
	"filament/internal/config"
	"filament/internal/diag"
	"filament/internal/iface"
	"filament/internal/ir"
	"filament/internal/testkit"
	"filament/internal/visitor"
)

func run(t *testing.T, p *testkit.Program, v visitor.Visitor) error {
	t.Helper()
	return visitor.Run(context.Background(), p.Ctx, v, config.Defaults())
}

func portNamed(t *testing.T, p *testkit.Program, c *ir.Component, name string) ir.PortIdx {
	t.Helper()
	for _, idx := range c.Ports.Idxs() {
		if p.Ctx.Names.MustLookup(c.Info(c.Ports.Get(idx).Info).Name) == name {
			return idx
		}
	}
	t.Fatalf("no port %s", name)
	return 0
}

func connects(c *ir.Component) []*ir.Connect {
	var out []*ir.Connect
	for _, cmd := range c.Cmds {
		if con, ok := cmd.(*ir.Connect); ok {
			out = append(out, con)
		}
	}
	return out
}

// reg forwards a bundle of two elements.
func reg(p *testkit.Program) *testkit.Comp {
	r := p.Component("Reg")
	g := r.Event("G", 1, true)
	in := r.Input("in", 32, r.At(g, 0), r.At(g, 1), 2)
	out := r.Output("out", 32, r.At(g, 0), r.At(g, 1), 2)
	r.Connect(r.Access(out, 0, 2), r.Access(in, 0, 2))
	return r
}

func TestElimSplitsBundles(t *testing.T) {
	p := testkit.NewProgram()
	r := reg(p)
	m := p.Component("main")
	g := m.Event("G", 1, true)
	x := m.Input("x", 32, m.At(g, 0), m.At(g, 1))
	y := m.Output("y", 32, m.At(g, 0), m.At(g, 1))
	b := m.Bundle("b", 32, m.At(g, 0), m.At(g, 1), 2)
	m.Connect(m.Access(b, 0, 1), m.Access(x))
	m.Connect(m.Access(b, 1, 2), m.Access(x))
	inv := m.Invoke("r0", m.Instance("r", r), m.At(g, 0))
	m.Connect(m.Access(m.InvPort(inv, "in"), 0, 2), m.Access(b, 0, 2))
	m.Connect(m.Access(y), m.Access(m.InvPort(inv, "out"), 1, 2))
	p.Main(m)

	bag := diag.NewBag(100)
	if err := run(t, p, NewElim(diag.NewBagReporter(bag))); err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, c := range []*ir.Component{r.C, m.C} {
		for _, idx := range c.Ports.Idxs() {
			port := c.Ports.Get(idx)
			if port.IsLocal() {
				t.Fatalf("local port %s survived", c.DisplayPort(idx))
			}
			if len(port.Live.Lens) != 1 || !port.Live.Lens[0].IsConst(c, 1) {
				t.Fatalf("port %s is still a bundle", c.DisplayPort(idx))
			}
		}
		for _, cmd := range c.Cmds {
			if _, ok := cmd.(*ir.BundleDef); ok {
				t.Fatalf("bundle definition survived")
			}
		}
	}
	if n := len(r.C.Ports.Idxs()); n != 4 {
		t.Fatalf("Reg has %d ports, want 4", n)
	}
	if n := len(connects(r.C)); n != 2 {
		t.Fatalf("Reg has %d connects, want 2", n)
	}

	cons := connects(m.C)
	if len(cons) != 3 {
		t.Fatalf("main has %d connects, want 3", len(cons))
	}
	for i, name := range []string{"in_0", "in_1"} {
		dst, src := cons[i].Dst.Port, cons[i].Src.Port
		if dst != m.InvPort(inv, name) || src != x {
			t.Fatalf("connect %d writes %s from %s", i, m.C.DisplayPort(dst), m.C.DisplayPort(src))
		}
	}
	last := cons[2]
	if last.Dst.Port != y || last.Src.Port != m.InvPort(inv, "out_1") {
		t.Fatalf("last connect writes %s from %s", m.C.DisplayPort(last.Dst.Port), m.C.DisplayPort(last.Src.Port))
	}
	want := portNamed(t, p, r.C, "out_1")
	if base := m.C.Ports.Get(last.Src.Port).Owner.Base; base.Owner != r.Idx || base.Key != want {
		t.Fatalf("out_1 mirrors %v", base)
	}

	bag = diag.NewBag(100)
	if err := run(t, p, check.NewAssignCheck(diag.NewBagReporter(bag))); err != nil {
		t.Fatalf("assignments after elimination: %v (%d diagnostics)", err, bag.Len())
	}
	var sb strings.Builder
	if err := iface.Write(&sb, p.Ctx); err != nil {
		t.Fatalf("iface.Write: %v", err)
	}
}

func TestElimStaggeredRanges(t *testing.T) {
	p := testkit.NewProgram()
	r := p.Component("Pipe")
	rg := r.Event("G", 1, true)
	in := r.Input("in", 8, r.At(rg, 0), r.At(rg, 1), 3)
	i := r.C.ParamRef(r.C.Ports.Get(in).Live.Idxs[0])
	r.C.Ports.Mut(in).Live.Range = ir.Range{
		Start: r.C.AddTime(ir.Time{Event: rg, Offset: i}),
		End:   r.C.AddTime(ir.Time{Event: rg, Offset: i.Add(r.Num(1), r.C)}),
	}
	m := p.Component("main")
	g := m.Event("G", 1, true)
	inv := m.Invoke("p0", m.Instance("p", r), m.At(g, 0))
	p.Main(m)

	bag := diag.NewBag(100)
	if err := run(t, p, NewElim(diag.NewBagReporter(bag))); err != nil {
		t.Fatalf("Run: %v", err)
	}
	offset := func(c *ir.Component, tm ir.TimeIdx) uint64 {
		v, ok := c.Time(tm).Offset.AsConcrete(c)
		if !ok {
			t.Fatalf("offset of %s is not concrete", c.DisplayTime(tm))
		}
		return v
	}
	for k, name := range []string{"in_0", "in_1", "in_2"} {
		sig := r.C.Ports.Get(portNamed(t, p, r.C, name)).Live.Range
		if s, e := offset(r.C, sig.Start), offset(r.C, sig.End); s != uint64(k) || e != uint64(k)+1 {
			t.Fatalf("%s lives in [%d, %d)", name, s, e)
		}
		use := m.C.Ports.Get(m.InvPort(inv, name)).Live.Range
		if s := offset(m.C, use.Start); s != uint64(k) {
			t.Fatalf("invocation port %s starts at %d", name, s)
		}
	}
}

func TestElimRejectsEntrypointBundles(t *testing.T) {
	p := testkit.NewProgram()
	m := p.Component("main")
	g := m.Event("G", 1, true)
	m.Input("in", 8, m.At(g, 0), m.At(g, 1), 4)
	p.Main(m)

	bag := diag.NewBag(100)
	err := run(t, p, NewElim(diag.NewBagReporter(bag)))
	if err == nil {
		t.Fatalf("expected bundle elimination to fail")
	}
	items := bag.Items()
	if len(items) != 1 || items[0].Code != diag.MonoBundleInterface {
		t.Fatalf("diagnostics = %v", items)
	}
	if !strings.Contains(items[0].Message, "bundle of 4 elements") {
		t.Fatalf("message = %q", items[0].Message)
	}
}

func TestElimDropsBundleFacts(t *testing.T) {
	p := testkit.NewProgram()
	r := reg(p)
	in := r.C.Ports.Idxs()[0]
	i := r.C.ParamRef(r.C.Ports.Get(in).Live.Idxs[0])
	r.C.Cmds = append(r.C.Cmds,
		ir.AssertFact(i.Lt(r.Num(2), r.C), ir.UnknownInfo),
		ir.AssertFact(r.Num(1).Lt(r.Num(2), r.C), ir.UnknownInfo),
	)
	m := p.Component("main")
	m.Instance("r", r)
	p.Main(m)

	bag := diag.NewBag(100)
	if err := run(t, p, NewElim(diag.NewBagReporter(bag))); err != nil {
		t.Fatalf("Run: %v", err)
	}
	var facts int
	for _, cmd := range r.C.Cmds {
		if _, ok := cmd.(*ir.Fact); ok {
			facts++
		}
	}
	if facts != 1 {
		t.Fatalf("facts = %d, want 1", facts)
	}
}
