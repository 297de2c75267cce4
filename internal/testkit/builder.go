// Package testkit builds small IR programs for tests.
package testkit

import (
	"fmt"

	"filament/internal/ir"
	"filament/internal/source"
)

// Program wraps a context under construction.
type Program struct {
	Ctx *ir.Context
}

func NewProgram() *Program {
	return &Program{Ctx: ir.NewContext(source.NewInterner())}
}

// Comp builds one component.
type Comp struct {
	P   *Program
	Idx ir.CompIdx
	C   *ir.Component
}

func (p *Program) name(s string) source.NameID { return p.Ctx.Names.Intern(s) }

// Component adds a source component.
func (p *Program) Component(name string) *Comp {
	return p.add(name, ir.CompSource)
}

// Extern adds an external component with a signature only.
func (p *Program) Extern(name string) *Comp {
	b := p.add(name, ir.CompExternal)
	p.Ctx.Externals["prims.fil"] = append(p.Ctx.Externals["prims.fil"], b.Idx)
	return b
}

func (p *Program) add(name string, kind ir.CompKind) *Comp {
	idx := p.Ctx.NewComp(kind, ir.Attrs{})
	c := p.Ctx.Get(idx)
	c.Src = ir.NewInterfaceSrc(p.name(name), "")
	return &Comp{P: p, Idx: idx, C: c}
}

// Main marks b as the entrypoint with the given bindings.
func (p *Program) Main(b *Comp, bindings ...uint64) {
	b.C.Attrs.Toplevel = true
	p.Ctx.Entrypoint = &ir.EntryPoint{Comp: b.Idx, Bindings: bindings}
}

func (b *Comp) Num(n uint64) ir.ExprIdx { return b.C.Num(n) }

// Event adds a signature event with a concrete delay.
func (b *Comp) Event(name string, delay uint64, iface bool) ir.EventIdx {
	return b.EventExpr(name, b.C.Num(delay), iface)
}

func (b *Comp) EventExpr(name string, delay ir.ExprIdx, iface bool) ir.EventIdx {
	var ifaceName source.NameID
	if iface {
		ifaceName = b.P.name("go_" + name)
	}
	info := b.C.AddInfo(ir.EventInfo(b.P.name(name), source.NoSpan, source.NoSpan, ifaceName, source.NoSpan))
	ev := b.C.Events.Add(ir.Event{Delay: ir.UnitSub(delay), Info: info, HasInterface: iface})
	b.C.EventArgs = append(b.C.EventArgs, ev)
	b.C.Src.Events[ev] = b.P.name(name)
	if iface {
		b.C.Src.InterfacePorts[ev] = ifaceName
	}
	return ev
}

// Param adds a signature parameter and returns its expression.
func (b *Comp) Param(name string) (ir.ParamIdx, ir.ExprIdx) {
	info := b.C.AddInfo(ir.ParamInfo(b.P.name(name), source.NoSpan))
	p := b.C.Params.Add(ir.Param{Owner: ir.SigParam(), Info: info})
	b.C.ParamArgs = append(b.C.ParamArgs, p)
	b.C.Src.Params[p] = b.P.name(name)
	return p, b.C.ParamRef(p)
}

// Exists adds an existentially quantified output parameter.
func (b *Comp) Exists(name string) (ir.ParamIdx, ir.ExprIdx) {
	info := b.C.AddInfo(ir.ParamInfo(b.P.name(name), source.NoSpan))
	p := b.C.Params.Add(ir.Param{Owner: ir.ExistsParam(false), Info: info})
	b.C.Src.Params[p] = b.P.name(name)
	return p, b.C.ParamRef(p)
}

// At is the time offset cycles after ev.
func (b *Comp) At(ev ir.EventIdx, offset uint64) ir.TimeIdx {
	return b.C.AddTime(ir.Time{Event: ev, Offset: b.C.Num(offset)})
}

// Input adds a signature input port live in [start, end).
func (b *Comp) Input(name string, width uint64, start, end ir.TimeIdx, lens ...uint64) ir.PortIdx {
	return b.port(name, ir.SigIn(), width, ir.Range{Start: start, End: end}, lens)
}

func (b *Comp) Output(name string, width uint64, start, end ir.TimeIdx, lens ...uint64) ir.PortIdx {
	return b.port(name, ir.SigOut(), width, ir.Range{Start: start, End: end}, lens)
}

// Bundle adds a local bundle and its definition command.
func (b *Comp) Bundle(name string, width uint64, start, end ir.TimeIdx, lens ...uint64) ir.PortIdx {
	p := b.port(name, ir.LocalOwner(), width, ir.Range{Start: start, End: end}, lens)
	b.C.Cmds = append(b.C.Cmds, &ir.BundleDef{Port: p})
	return p
}

func (b *Comp) port(name string, owner ir.PortOwner, width uint64, rng ir.Range, lens []uint64) ir.PortIdx {
	if len(lens) == 0 {
		lens = []uint64{1}
	}
	info := b.C.AddInfo(ir.PortInfo(b.P.name(name), source.NoSpan, source.NoSpan, source.NoSpan))
	p := b.C.Ports.Add(ir.Port{Owner: owner, Width: b.C.Num(width), Live: ir.Liveness{Range: rng}, Info: info})
	port := b.C.Ports.Mut(p)
	for i, l := range lens {
		pinfo := b.C.AddInfo(ir.ParamInfo(b.P.name(fmt.Sprintf("%s_i%d", name, i)), source.NoSpan))
		idx := b.C.Params.Add(ir.Param{Owner: ir.BundleParam(p), Info: pinfo})
		port.Live.Idxs = append(port.Live.Idxs, idx)
		port.Live.Lens = append(port.Live.Lens, b.C.Num(l))
	}
	if owner.Kind == ir.OwnerSig {
		b.C.Src.Ports[p] = b.P.name(name)
	}
	return p
}

// Instance instantiates callee and appends the instance command.
func (b *Comp) Instance(name string, callee *Comp, args ...ir.ExprIdx) ir.InstIdx {
	info := b.C.AddInfo(ir.InstanceInfo(b.P.name(name), source.NoSpan, source.NoSpan))
	inst := b.C.Instances.Add(ir.Instance{Comp: callee.Idx, Args: args, Info: info})
	for _, ep := range callee.C.ExistParams() {
		pinfo := b.C.AddInfo(ir.ParamInfo(callee.C.Info(callee.C.Params.Get(ep).Info).Name, source.NoSpan))
		np := b.C.Params.Add(ir.Param{Owner: ir.InstanceParam(inst, ir.NewForeign(ep, callee.Idx)), Info: pinfo})
		in := b.C.Instances.Mut(inst)
		in.Params = append(in.Params, np)
	}
	b.C.Cmds = append(b.C.Cmds, &ir.InstanceCmd{Inst: inst})
	return inst
}

// Invoke invokes inst with one time per event of the callee, creating the
// ports of the invocation, and appends the invoke command.
func (b *Comp) Invoke(name string, inst ir.InstIdx, binds ...ir.TimeIdx) ir.InvIdx {
	in := b.C.Instances.Get(inst)
	callee := b.P.Ctx.Get(in.Comp)
	if len(binds) != len(callee.EventArgs) {
		panic(fmt.Sprintf("testkit: %d event bindings for %d events", len(binds), len(callee.EventArgs)))
	}
	info := b.C.AddInfo(ir.InvokeInfo(b.P.name(name), source.NoSpan, source.NoSpan))
	inv := b.C.Invocations.Add(ir.Invoke{Inst: inst, Info: info})

	params := make(map[ir.ParamIdx]ir.ExprIdx)
	for i, p := range callee.ParamArgs {
		params[p] = in.Args[i]
	}
	for i, p := range callee.ExistParams() {
		params[p] = b.C.ParamRef(in.Params[i])
	}
	events := make(map[ir.EventIdx]ir.TimeIdx)
	for i, ev := range callee.EventArgs {
		events[ev] = binds[i]
	}
	im := ir.NewImporter(callee, b.C,
		func(p ir.ParamIdx) (ir.ExprIdx, bool) { e, ok := params[p]; return e, ok },
		func(e ir.EventIdx) (ir.TimeIdx, bool) { t, ok := events[e]; return t, ok })

	var ebs []ir.EventBind
	for i, ev := range callee.EventArgs {
		ebinfo := b.C.AddInfo(ir.EventBindInfo(source.NoSpan, source.NoSpan))
		ebs = append(ebs, ir.EventBind{
			Delay: im.TimeSub(callee.Events.Get(ev).Delay),
			Arg:   binds[i],
			Info:  ebinfo,
			Base:  ir.NewForeign(ev, in.Comp),
		})
	}
	var ports []ir.PortIdx
	for _, p := range append(callee.Inputs(), callee.Outputs()...) {
		sig := callee.Ports.Get(p)
		pinfo := b.C.AddInfo(callee.Info(sig.Info))
		ports = append(ports, im.Port(p, ir.InvOwner(inv, sig.Owner.Dir.Reverse(), ir.NewForeign(p, in.Comp)), pinfo))
	}
	i := b.C.Invocations.Mut(inv)
	i.Events = ebs
	i.Ports = ports
	b.C.Cmds = append(b.C.Cmds, &ir.InvokeCmd{Inv: inv})
	return inv
}

// InvPort finds the port of an invocation that mirrors the callee port
// with the given name.
func (b *Comp) InvPort(inv ir.InvIdx, name string) ir.PortIdx {
	for _, p := range b.C.Invocations.Get(inv).Ports {
		if b.P.Ctx.Names.MustLookup(b.C.Info(b.C.Ports.Get(p).Info).Name) == name {
			return p
		}
	}
	panic(fmt.Sprintf("testkit: invocation %s has no port %s", inv, name))
}

// Access selects [start, end) in each dimension of port, given as pairs.
func (b *Comp) Access(port ir.PortIdx, bounds ...uint64) ir.Access {
	a := ir.Access{Port: port}
	if len(bounds) == 0 {
		a.Ranges = []ir.AccessRange{{Start: b.C.Num(0), End: b.C.Num(1)}}
		return a
	}
	for i := 0; i+1 < len(bounds); i += 2 {
		a.Ranges = append(a.Ranges, ir.AccessRange{Start: b.C.Num(bounds[i]), End: b.C.Num(bounds[i+1])})
	}
	return a
}

// Connect appends dst = src.
func (b *Comp) Connect(dst, src ir.Access) *ir.Connect {
	info := b.C.AddInfo(ir.ConnectInfo(source.NoSpan, source.NoSpan))
	con := &ir.Connect{Dst: dst, Src: src, Info: info}
	b.C.Cmds = append(b.C.Cmds, con)
	return con
}
