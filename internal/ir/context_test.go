package ir

import (
	"errors"
	"slices"
	"strings"
	"testing"

	"filament/internal/source"
)

// instantiate adds an instance of callee to caller.
func instantiate(ctx *Context, caller, callee CompIdx) InstIdx {
	c := ctx.Get(caller)
	inst := c.Instances.Add(Instance{Comp: callee, Info: UnknownInfo})
	c.Cmds = append(c.Cmds, &InstanceCmd{Inst: inst})
	return inst
}

func TestContextOrder(t *testing.T) {
	ctx := NewContext(nil)
	main := ctx.NewComp(CompSource, Attrs{Toplevel: true})
	add := ctx.NewComp(CompExternal, Attrs{})
	mid := ctx.NewComp(CompSource, Attrs{})
	instantiate(ctx, main, mid)
	instantiate(ctx, mid, add)
	instantiate(ctx, main, add)

	order, batches, err := ctx.Order()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := []CompIdx{add, mid, main}; !slices.Equal(order, want) {
		t.Fatalf("got %v, want %v", order, want)
	}
	// add is external and does not constrain the order
	if len(batches) != 2 {
		t.Fatalf("got %d batches, want 2", len(batches))
	}
}

func TestContextOrderCycle(t *testing.T) {
	ctx := NewContext(nil)
	a := ctx.NewComp(CompSource, Attrs{})
	b := ctx.NewComp(CompSource, Attrs{})
	instantiate(ctx, a, b)
	instantiate(ctx, b, a)
	_, _, err := ctx.Order()
	var cerr *CycleError
	if !errors.As(err, &cerr) {
		t.Fatalf("got %v, want a cycle error", err)
	}
	if len(cerr.Comps) != 2 {
		t.Fatalf("got %v, want both components", cerr.Comps)
	}
}

func TestTakePut(t *testing.T) {
	ctx := NewContext(nil)
	idx := ctx.NewComp(CompSource, Attrs{})
	ctx.Get(idx).Src = NewInterfaceSrc(ctx.Names.Intern("Shift"), "")
	c := ctx.Take(idx)
	mustPanic(t, "being visited", func() { ctx.Get(idx) })
	if got := ctx.CompName(idx); got != "Shift" {
		t.Fatalf("name while taken = %q, want Shift", got)
	}
	ctx.Put(idx, c)
	if got := ctx.CompName(idx); got != "Shift" {
		t.Fatalf("name after put = %q, want Shift", got)
	}
	if ctx.Get(idx) != c {
		t.Fatalf("put did not restore the component")
	}
	mustPanic(t, "was not taken", func() { ctx.Put(idx, c) })
}

func TestForeign(t *testing.T) {
	ctx := NewContext(nil)
	idx := ctx.NewComp(CompExternal, Attrs{})
	c := ctx.Get(idx)
	ev := c.Events.Add(Event{Delay: UnitSub(c.Num(1)), Info: UnknownInfo, HasInterface: true})
	if got := ctx.ForeignEvent(NewForeign(ev, idx)); !got.HasInterface {
		t.Fatalf("got %+v, want the interface event", got)
	}
	mustPanic(t, "out of range", func() { ctx.ForeignPort(NewForeign(PortIdx(3), idx)) })
}

func TestFilename(t *testing.T) {
	ctx := NewContext(nil)
	a := ctx.NewComp(CompExternal, Attrs{})
	ctx.Externals["prims.sv"] = []CompIdx{a}
	if f, ok := ctx.Filename(a); !ok || f != "prims.sv" {
		t.Fatalf("got %q %v, want prims.sv", f, ok)
	}
}

func TestBindScopes(t *testing.T) {
	b := NewBind[ParamIdx, ExprIdx]()
	b.Push(1, 10)
	b.Push(2, 20)
	b.Push(1, 11)
	if v, _ := b.Get(1); v != 11 {
		t.Fatalf("got %d, want the innermost binding 11", v)
	}
	b.PopN(1)
	if v, _ := b.Get(1); v != 10 {
		t.Fatalf("got %d, want 10 after pop", v)
	}
	mustPanic(t, "popping more", func() { b.PopN(5) })
}

func TestSubstAndPrint(t *testing.T) {
	names := source.NewInterner()
	ctx := NewContext(names)
	idx := ctx.NewComp(CompSource, Attrs{})
	c := ctx.Get(idx)
	c.Src = NewInterfaceSrc(names.Intern("Shift"), "")
	w := c.Params.Add(Param{Owner: SigParam(), Info: c.AddInfo(ParamInfo(names.Intern("W"), source.NoSpan))})
	c.ParamArgs = []ParamIdx{w}
	g := c.Events.Add(Event{Delay: UnitSub(c.Num(1)), Info: c.AddInfo(EventInfo(names.Intern("G"), source.NoSpan, source.NoSpan, 0, source.NoSpan))})
	c.EventArgs = []EventIdx{g}
	we := c.ParamRef(w)
	e := we.Add(c.Num(1), c).Mul(c.Num(2), c)
	if got := c.DisplayExpr(e); got != "(W+1)*2" {
		t.Fatalf("got %q, want %q", got, "(W+1)*2")
	}
	got := c.SubstExpr(e, func(p ParamIdx) (ExprIdx, bool) {
		if p == w {
			return c.Num(3), true
		}
		return 0, false
	})
	if got != c.Num(8) {
		t.Fatalf("got %s, want 8", c.DisplayExpr(got))
	}
	out := NewPrinter(c).WithContext(ctx, idx)
	var sb strings.Builder
	if err := out.Print(&sb); err != nil {
		t.Fatalf("print: %v", err)
	}
	if !strings.HasPrefix(sb.String(), "comp Shift[W]<'G: 1>(") {
		t.Fatalf("unexpected signature:\n%s", sb.String())
	}
}

func TestValidate(t *testing.T) {
	ctx := NewContext(nil)
	idx := ctx.NewComp(CompSource, Attrs{})
	c := ctx.Get(idx)
	g := c.Events.Add(Event{Delay: UnitSub(c.Num(1)), Info: UnknownInfo})
	t0 := c.AddTime(Time{Event: g, Offset: c.Num(0)})
	t1 := c.AddTime(Time{Event: g, Offset: c.Num(1)})
	p := c.Ports.Add(Port{Owner: LocalOwner(), Width: c.Num(8), Info: UnknownInfo})
	i := c.Params.Add(Param{Owner: BundleParam(p), Info: UnknownInfo})
	c.Ports.Mut(p).Live = Liveness{Idxs: []ParamIdx{i}, Lens: []ExprIdx{c.Num(4)}, Range: Range{Start: t0, End: t1}}
	c.Cmds = []Command{&BundleDef{Port: p}}
	if err := Validate(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c.Cmds = append(c.Cmds, &Connect{Dst: Access{Port: p}, Src: Access{Port: p}, Info: UnknownInfo})
	if err := Validate(ctx); err == nil || !strings.Contains(err.Error(), "0 ranges for 1 dimensions") {
		t.Fatalf("got %v, want a dimension mismatch", err)
	}

	c.Cmds = []Command{&BundleDef{Port: p}}
	c.Ports.Mut(p).Owner = SigIn()
	if err := Validate(ctx); err == nil || !strings.Contains(err.Error(), "bundle definition of non-local port") {
		t.Fatalf("got %v, want a non-local bundle error", err)
	}
}
