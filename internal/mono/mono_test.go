package mono

import (
	"context"
	"strings"
	"testing"

	"filament/internal/ir"
	"filament/internal/source"
	"filament/internal/testkit"
)

// adder is a component with two signature parameters and no body.
func adder(p *testkit.Program) *testkit.Comp {
	c := p.Component("Add")
	c.Param("W")
	c.Param("N")
	ev := c.Event("G", 1, true)
	c.Input("in", 32, c.At(ev, 0), c.At(ev, 1))
	c.Output("out", 32, c.At(ev, 0), c.At(ev, 1))
	return c
}

func run(t *testing.T, p *testkit.Program, opts Options) *ir.Context {
	t.Helper()
	out, err := Monomorphize(context.Background(), p.Ctx, nil, opts)
	if err != nil {
		t.Fatalf("Monomorphize: %v", err)
	}
	return out
}

func mainOf(out *ir.Context) *ir.Component {
	return out.Get(out.Entrypoint.Comp)
}

func TestSameArgumentsShareSpecialization(t *testing.T) {
	p := testkit.NewProgram()
	add := adder(p)
	m := p.Component("main")
	m.Instance("a0", add, m.Num(4), m.Num(8))
	m.Instance("a1", add, m.Num(4), m.Num(8))
	p.Main(m)

	out := run(t, p, Options{})
	if out.Len() != 2 {
		t.Fatalf("components = %d, want 2", out.Len())
	}
	insts := mainOf(out).Instances
	if insts.Get(0).Comp != insts.Get(1).Comp {
		t.Fatalf("instances refer to %s and %s", insts.Get(0).Comp, insts.Get(1).Comp)
	}
	if len(insts.Get(0).Args) != 0 {
		t.Fatalf("defined component kept arguments: %v", insts.Get(0).Args)
	}
}

func TestDistinctArgumentsSpecializeSeparately(t *testing.T) {
	p := testkit.NewProgram()
	add := adder(p)
	m := p.Component("main")
	m.Instance("a0", add, m.Num(4), m.Num(8))
	m.Instance("a1", add, m.Num(4), m.Num(9))
	p.Main(m)

	mm := New(p.Ctx, nil, Options{})
	out, err := mm.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Len() != 3 {
		t.Fatalf("components = %d, want 3", out.Len())
	}
	var sb strings.Builder
	if err := mm.Dump(&sb, DumpOptions{HeadersOnly: true}); err != nil {
		t.Fatalf("Dump: %v", err)
	}
	for _, want := range []string{"specializations=3", "Add[4, 8]", "Add[4, 9]", "main[]"} {
		if !strings.Contains(sb.String(), want) {
			t.Fatalf("dump lacks %q:\n%s", want, sb.String())
		}
	}
}

func TestNoEntrypointYieldsEmptyContext(t *testing.T) {
	p := testkit.NewProgram()
	adder(p)
	out := run(t, p, Options{})
	if out.Len() != 0 || out.Entrypoint != nil {
		t.Fatalf("got %d components, entrypoint %v", out.Len(), out.Entrypoint)
	}
}

// moveInto removes the commands appended since n and returns them.
func moveInto(c *testkit.Comp, n int) []ir.Command {
	body := append([]ir.Command(nil), c.C.Cmds[n:]...)
	c.C.Cmds = c.C.Cmds[:n]
	return body
}

func TestLoopIsUnrolled(t *testing.T) {
	p := testkit.NewProgram()
	add := adder(p)
	m := p.Component("main")
	idx := m.C.Params.Add(ir.Param{Owner: ir.LoopParam(), Info: ir.UnknownInfo})
	n := len(m.C.Cmds)
	m.Instance("a", add, m.C.ParamRef(idx), m.Num(8))
	body := moveInto(m, n)
	m.C.Cmds = append(m.C.Cmds, &ir.ForLoop{Index: idx, Start: m.Num(0), End: m.Num(3), Body: body})
	p.Main(m)

	out := run(t, p, Options{})
	if out.Len() != 4 {
		t.Fatalf("components = %d, want 4", out.Len())
	}
	main := mainOf(out)
	if main.Instances.Live() != 3 {
		t.Fatalf("instances = %d, want 3", main.Instances.Live())
	}
	for _, cmd := range main.Cmds {
		if _, ok := cmd.(*ir.ForLoop); ok {
			t.Fatalf("loop survived monomorphization")
		}
	}
}

func TestConditionalKeepsTakenBranch(t *testing.T) {
	p := testkit.NewProgram()
	add := adder(p)
	m := p.Component("main")
	_, n := m.Param("N")
	k := len(m.C.Cmds)
	m.Instance("then", add, m.Num(1), m.Num(1))
	then := moveInto(m, k)
	m.Instance("else", add, m.Num(2), m.Num(2))
	alt := moveInto(m, k)
	m.C.Cmds = append(m.C.Cmds, &ir.If{Cond: n.Gt(m.Num(2), m.C), Then: then, Alt: alt})
	p.Main(m, 3)

	mm := New(p.Ctx, nil, Options{})
	out, err := mm.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Len() != 2 {
		t.Fatalf("components = %d, want 2", out.Len())
	}
	if _, ok := mm.processed[NewCompKey(add.Idx, []uint64{1, 1})]; !ok {
		t.Fatalf("taken branch was not specialized")
	}
}

func TestExternalsAreSharedAndKeepArguments(t *testing.T) {
	p := testkit.NewProgram()
	reg := p.Extern("Reg")
	reg.Param("W")
	reg.Event("G", 1, true)
	m := p.Component("main")
	m.Instance("r0", reg, m.Num(4))
	m.Instance("r1", reg, m.Num(8))
	p.Main(m)

	out := run(t, p, Options{})
	if out.Len() != 2 {
		t.Fatalf("components = %d, want 2", out.Len())
	}
	if got := len(out.Externals["prims.fil"]); got != 1 {
		t.Fatalf("externals = %d, want 1", got)
	}
	main := mainOf(out)
	a := main.Instances.Get(1).Args
	if len(a) != 1 || !a[0].IsConst(main, 8) {
		t.Fatalf("extern arguments = %v", a)
	}
}

func TestExistentialFlowsToLaterInstance(t *testing.T) {
	p := testkit.NewProgram()
	add := adder(p)
	dbl := p.Component("Double")
	_, w := dbl.Param("W")
	o, _ := dbl.Exists("O")
	dbl.C.Cmds = append(dbl.C.Cmds, &ir.Exists{Param: o, Expr: w.Mul(dbl.Num(2), dbl.C)})

	m := p.Component("main")
	d := m.Instance("d", dbl, m.Num(4))
	out := m.C.Instances.Get(d).Params[0]
	m.Instance("a", add, m.C.ParamRef(out), m.Num(1))
	p.Main(m)

	mm := New(p.Ctx, nil, Options{})
	if _, err := mm.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, ok := mm.processed[NewCompKey(add.Idx, []uint64{8, 1})]; !ok {
		t.Fatalf("existential value did not reach the second instance")
	}
}

func TestMissingExistentialFails(t *testing.T) {
	p := testkit.NewProgram()
	c := p.Component("C")
	c.Exists("O")
	m := p.Component("main")
	m.Instance("c", c)
	p.Main(m)

	_, err := Monomorphize(context.Background(), p.Ctx, nil, Options{})
	if err == nil || !strings.Contains(err.Error(), "was not given a value") {
		t.Fatalf("err = %v", err)
	}
}

func TestFactsBecomeAssertions(t *testing.T) {
	p := testkit.NewProgram()
	c := p.Component("C")
	_, w := c.Param("W")
	info := c.C.AddInfo(ir.AssertInfo(ir.MiscReason("width is large enough", source.NoSpan)))
	c.C.Cmds = append(c.C.Cmds, ir.AssumeFact(w.Gt(c.Num(3), c.C), info))
	m := p.Component("main")
	m.Instance("ok", c, m.Num(4))
	m.Instance("bad", c, m.Num(2))
	p.Main(m)

	mm := New(p.Ctx, nil, Options{})
	out, err := mm.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	okc := out.Get(mm.processed[NewCompKey(c.Idx, []uint64{4})].Get())
	if len(okc.Cmds) != 0 {
		t.Fatalf("true fact kept: %d commands", len(okc.Cmds))
	}
	bad := out.Get(mm.processed[NewCompKey(c.Idx, []uint64{2})].Get())
	if len(bad.Cmds) != 1 {
		t.Fatalf("commands = %d, want 1", len(bad.Cmds))
	}
	f, ok := bad.Cmds[0].(*ir.Fact)
	if !ok || !f.IsAssert() || !f.Prop.IsFalse(bad) {
		t.Fatalf("got %#v, want a false assertion", bad.Cmds[0])
	}
	if r := bad.Reason(f.Reason); r == nil || r.Msg != "Elaborated during monomorphization." {
		t.Fatalf("reason = %+v", r)
	}
}

func TestInvocationPortsRetarget(t *testing.T) {
	p := testkit.NewProgram()
	add := adder(p)
	m := p.Component("main")
	g := m.Event("G", 1, true)
	in := m.Input("x", 32, m.At(g, 0), m.At(g, 1))
	inst := m.Instance("a", add, m.Num(4), m.Num(8))
	inv := m.Invoke("a0", inst, m.At(g, 0))
	m.Connect(m.Access(m.InvPort(inv, "in")), m.Access(in))
	p.Main(m)

	out := run(t, p, Options{})
	main := mainOf(out)
	callee := main.Instances.Get(0).Comp
	got := main.Invocations.Get(0)
	if len(got.Ports) != 2 || len(got.Events) != 1 {
		t.Fatalf("invocation has %d ports and %d events", len(got.Ports), len(got.Events))
	}
	for _, pi := range got.Ports {
		if owner := main.Ports.Get(pi).Owner; owner.Base.Owner != callee {
			t.Fatalf("port %s mirrors %s, want %s", pi, owner.Base.Owner, callee)
		}
	}
	if got.Events[0].Base.Owner != callee {
		t.Fatalf("event binding refers to %s", got.Events[0].Base.Owner)
	}
}

func TestRecursionIsBounded(t *testing.T) {
	p := testkit.NewProgram()
	r := p.Component("R")
	_, n := r.Param("N")
	r.Instance("r", r, n.Add(r.Num(1), r.C))
	m := p.Component("main")
	m.Instance("r", r, m.Num(0))
	p.Main(m)

	_, err := Monomorphize(context.Background(), p.Ctx, nil, Options{MaxDepth: 16})
	if err == nil || !strings.Contains(err.Error(), "depth exceeded (16)") {
		t.Fatalf("err = %v", err)
	}
}

func factsOf(c *ir.Component) []*ir.Fact {
	var fs []*ir.Fact
	for _, cmd := range c.Cmds {
		if f, ok := cmd.(*ir.Fact); ok {
			fs = append(fs, f)
		}
	}
	return fs
}

func TestFactBeforeBindingIsKept(t *testing.T) {
	p := testkit.NewProgram()
	dbl := p.Component("Double")
	_, w := dbl.Param("W")
	o, oe := dbl.Exists("O")
	dbl.C.Cmds = append(dbl.C.Cmds,
		ir.AssumeFact(oe.Gt(dbl.Num(10), dbl.C), ir.UnknownInfo),
		&ir.Exists{Param: o, Expr: w.Mul(dbl.Num(2), dbl.C)},
	)
	m := p.Component("main")
	m.Instance("d", dbl, m.Num(4))
	p.Main(m)

	mm := New(p.Ctx, nil, Options{})
	out, err := mm.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	got := out.Get(mm.processed[NewCompKey(dbl.Idx, []uint64{4})].Get())
	fs := factsOf(got)
	if len(fs) != 1 || !fs[0].IsAssert() || !fs[0].Prop.IsFalse(got) {
		t.Fatalf("facts = %d, want one false assertion", len(fs))
	}
}

func TestFactWithUnboundParameterFails(t *testing.T) {
	p := testkit.NewProgram()
	c := p.Component("C")
	_, oe := c.Exists("O")
	c.C.Cmds = append(c.C.Cmds, ir.AssumeFact(oe.Gt(c.Num(1), c.C), ir.UnknownInfo))
	m := p.Component("main")
	m.Instance("c", c)
	p.Main(m)

	_, err := Monomorphize(context.Background(), p.Ctx, nil, Options{})
	if err == nil || !strings.Contains(err.Error(), "mentions unbound parameters") {
		t.Fatalf("err = %v", err)
	}
}

func TestBundleFactsAreDropped(t *testing.T) {
	p := testkit.NewProgram()
	c := p.Component("C")
	g := c.Event("G", 1, true)
	in := c.Input("in", 8, c.At(g, 0), c.At(g, 1), 4)
	idx := c.C.Ports.Get(in).Live.Idxs[0]
	c.C.Cmds = append(c.C.Cmds, ir.AssumeFact(c.C.ParamRef(idx).Gt(c.Num(10), c.C), ir.UnknownInfo))
	m := p.Component("main")
	m.Instance("c", c)
	p.Main(m)

	out := run(t, p, Options{})
	callee := out.Get(mainOf(out).Instances.Get(0).Comp)
	if fs := factsOf(callee); len(fs) != 0 {
		t.Fatalf("bundle fact kept: %d facts", len(fs))
	}
}
