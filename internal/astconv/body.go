package astconv

import (
	"fmt"

	"filament/internal/ast"
	"filament/internal/diag"
	"filament/internal/ir"
	"filament/internal/source"
)

// commands converts one scope. Instances, invocations and lets are
// declared first because invocation ports may be used before the
// invocation that defines them.
func (b *builder) commands(cmds []ast.Command) ([]ir.Command, error) {
	for _, cmd := range cmds {
		if err := b.declare(cmd); err != nil {
			return nil, err
		}
	}
	out := make([]ir.Command, 0, len(cmds))
	for _, cmd := range cmds {
		cs, err := b.command(cmd)
		if err != nil {
			return nil, err
		}
		out = append(out, cs...)
	}
	return out, nil
}

func (b *builder) declare(cmd ast.Command) error {
	switch cmd := cmd.(type) {
	case *ast.Instance:
		return b.declareInst(cmd)
	case *ast.Invoke:
		return b.declareInv(cmd)
	case *ast.ParamLet:
		bind := ir.UnknownExpr
		if cmd.Expr != nil {
			e, err := b.expr(cmd.Expr)
			if err != nil {
				return err
			}
			bind = e
		}
		b.param(cmd.Name, ir.LetParam(bind))
	}
	return nil
}

// arity checks the number of arguments against a list with defaults.
func (b *builder) arity(name ast.Ident, what string, got, minN, maxN int) error {
	switch {
	case got > maxN:
		return b.errorf(diag.InpArity, name.Span, "`%s' requires at most %d %s but %d were provided", name.Name, maxN, what, got)
	case got < minN:
		return b.errorf(diag.InpArity, name.Span, "`%s' requires at least %d %s but %d were provided", name.Name, minN, what, got)
	}
	return nil
}

func (b *builder) declareInst(in *ast.Instance) error {
	callee, err := b.t.lookupSig(in.Comp)
	if err != nil {
		return err
	}
	if err := b.arity(in.Comp, "parameters", len(in.Args), callee.minParams(), len(callee.params)); err != nil {
		return err
	}
	args := make([]ir.ExprIdx, 0, len(callee.params))
	for _, a := range in.Args {
		e, err := b.expr(a)
		if err != nil {
			return err
		}
		args = append(args, e)
	}
	if len(args) < len(callee.params) {
		im := ir.NewImporter(callee.comp, b.comp, paramsFrom(callee.comp.ParamArgs, &args), nil)
		for i := len(args); i < len(callee.params); i++ {
			args = append(args, im.Expr(callee.defaults[i]))
		}
	}

	name := b.t.intern(in.Name.Name)
	info := ir.InstanceInfo(name, in.Comp.Span, in.Name.Span)
	for _, l := range in.Lives {
		info.Lives = append(info.Lives, l.Span)
	}
	idx := b.comp.Instances.Add(ir.Instance{Comp: callee.idx, Args: args, Info: b.comp.AddInfo(info)})

	var params []ir.ParamIdx
	for _, ep := range callee.comp.ExistParams() {
		pname := callee.comp.Src.Params[ep]
		pinfo := b.comp.AddInfo(ir.ParamInfo(pname, in.Name.Span))
		np := b.comp.Params.Add(ir.Param{Owner: ir.InstanceParam(idx, ir.NewForeign(ep, callee.idx)), Info: pinfo})
		params = append(params, np)
		b.instParams[instParam{idx, b.t.ctx.Names.MustLookup(pname)}] = b.comp.ParamRef(np)
	}
	b.comp.Instances.Mut(idx).Params = params

	if _, dup := b.scope.insts[in.Name.Name]; dup {
		return b.errorf(diag.InpDuplicateName, in.Name.Span, "instance `%s' is defined more than once", in.Name.Name)
	}
	b.scope.insts[in.Name.Name] = idx
	b.instSigs[idx] = callee

	// Lives may mention the instance's own existentials.
	lives := make([]ir.Range, 0, len(in.Lives))
	for i := range in.Lives {
		r, err := b.rng(&in.Lives[i])
		if err != nil {
			return err
		}
		lives = append(lives, r)
	}
	b.comp.Instances.Mut(idx).Lives = lives
	return nil
}

// declareInv adds the invocation with its event bindings and output ports.
// Input ports are added when the invocation is defined.
func (b *builder) declareInv(inv *ast.Invoke) error {
	inst, ok := b.scope.inst(inv.Inst.Name)
	if !ok {
		return b.errorf(diag.InpUnknownName, inv.Inst.Span, "undefined instance `%s'", inv.Inst.Name)
	}
	callee := b.instSigs[inst]
	cc := callee.comp
	if err := b.arity(inv.Inst, "events", len(inv.Events), callee.minEvents(), len(callee.events)); err != nil {
		return err
	}
	times := make([]ir.TimeIdx, 0, len(callee.events))
	for i := range inv.Events {
		tm, err := b.time(&inv.Events[i])
		if err != nil {
			return err
		}
		times = append(times, tm)
	}

	idx := b.comp.Invocations.Add(ir.Invoke{Inst: inst, Info: ir.UnknownInfo})
	if _, dup := b.scope.invs[inv.Name.Name]; dup {
		return b.errorf(diag.InpDuplicateName, inv.Name.Span, "invocation `%s' is defined more than once", inv.Name.Name)
	}
	b.scope.invs[inv.Name.Name] = idx

	in := b.comp.Instances.Get(inst)
	actuals := append([]ir.ExprIdx(nil), in.Args...)
	formals := append([]ir.ParamIdx(nil), cc.ParamArgs...)
	for i, ep := range cc.ExistParams() {
		formals = append(formals, ep)
		actuals = append(actuals, b.comp.ParamRef(in.Params[i]))
	}
	im := ir.NewImporter(cc, b.comp, paramsFrom(formals, &actuals), func(ev ir.EventIdx) (ir.TimeIdx, bool) {
		if i := indexOf(cc.EventArgs, ev); i >= 0 && i < len(times) {
			return times[i], true
		}
		return ir.UnknownTime, false
	})
	for i := len(times); i < len(callee.events); i++ {
		times = append(times, im.Time(callee.eventDefaults[i]))
	}
	b.importers[idx] = im

	info := ir.InvokeInfo(b.t.intern(inv.Name.Name), inv.Inst.Span, inv.Name.Span)
	events := make([]ir.EventBind, len(cc.EventArgs))
	for i, ev := range cc.EventArgs {
		bind := source.NoSpan
		if i < len(inv.Events) {
			bind = inv.Events[i].Span
			info.EventBinds = append(info.EventBinds, bind)
		}
		evInfo := cc.Info(cc.Events.Get(ev).Info)
		events[i] = ir.EventBind{
			Delay: im.TimeSub(cc.Events.Get(ev).Delay),
			Arg:   times[i],
			Info:  b.comp.AddInfo(ir.EventBindInfo(evInfo.Delay, bind)),
			Base:  ir.NewForeign(ev, callee.idx),
		}
	}

	var ports []ir.PortIdx
	for _, p := range callee.outputs {
		ports = append(ports, b.invPort(im, idx, p, callee, ir.DirOut))
	}
	iv := b.comp.Invocations.Mut(idx)
	iv.Events = events
	iv.Ports = ports
	iv.Info = b.comp.AddInfo(info)
	return nil
}

// invPort instantiates the signature port p of callee for an invocation.
func (b *builder) invPort(im *ir.Importer, inv ir.InvIdx, p ir.PortIdx, callee *sig, dir ir.Direction) ir.PortIdx {
	cc := callee.comp
	sp := cc.Ports.Get(p)
	pinfo := b.comp.AddInfo(cc.Info(sp.Info))
	np := im.Port(p, ir.InvOwner(inv, dir, ir.NewForeign(p, callee.idx)), pinfo)
	name := b.t.ctx.Names.MustLookup(cc.Src.Ports[p])
	b.scope.ports[invPortKey(inv, dir, name)] = np
	return np
}

func (b *builder) command(cmd ast.Command) ([]ir.Command, error) {
	c := b.comp
	switch cmd := cmd.(type) {
	case *ast.Instance:
		inst, _ := b.scope.inst(cmd.Name.Name)
		return []ir.Command{&ir.InstanceCmd{Inst: inst}}, nil

	case *ast.Invoke:
		return b.invoke(cmd)

	case *ast.ParamLet:
		pe, _ := b.scope.param(cmd.Name.Name)
		p, ok := pe.AsParam(c)
		if !ok {
			panic(fmt.Sprintf("astconv: let-bound %s was rewritten to an expression", cmd.Name.Name))
		}
		let := &ir.Let{Param: p}
		if cmd.Expr != nil {
			e, err := b.expr(cmd.Expr)
			if err != nil {
				return nil, err
			}
			let.Expr = &e
		}
		return []ir.Command{let}, nil

	case *ast.Exists:
		e, err := b.expr(cmd.Expr)
		if err != nil {
			return nil, err
		}
		pe, ok := b.scope.param(cmd.Name.Name)
		if !ok {
			return nil, b.errorf(diag.InpUnknownName, cmd.Name.Span, "undefined parameter `%s'", cmd.Name.Name)
		}
		p, ok := pe.AsParam(c)
		if !ok || !c.Params.Mut(p).IsExists() {
			diag.ReportError(b.t.r, diag.InpNotExistential, cmd.Name.Span,
				"parameter in exists binding is not existentially quantified").
				WithNote(cmd.Name.Span, "parameter is not existentially quantified").Emit()
			return nil, errReported
		}
		return []ir.Command{&ir.Exists{Param: p, Expr: e}}, nil

	case *ast.Fact:
		reason := c.AddInfo(ir.AssertInfo(ir.MiscReason("cannot prove source-level fact", cmd.Cons.Span)))
		prop, err := b.implication(&cmd.Cons)
		if err != nil {
			return nil, err
		}
		var fact ir.Command
		if cmd.Checked {
			fact = c.Assert(prop, reason)
		} else {
			if prop.IsFalse(c) {
				return nil, b.errorf(diag.InpBadExpr, cmd.Cons.Span, "assumption `%s' is always false", &cmd.Cons)
			}
			fact = c.Assume(prop, reason)
		}
		if fact == nil {
			return nil, nil
		}
		return []ir.Command{fact}, nil

	case *ast.Connect:
		info := c.AddInfo(ir.ConnectInfo(cmd.Dst.Span, cmd.Src.Span))
		src, err := b.access(&cmd.Src, ir.DirOut)
		if err != nil {
			return nil, err
		}
		dst, err := b.access(&cmd.Dst, ir.DirIn)
		if err != nil {
			return nil, err
		}
		return []ir.Command{&ir.Connect{Dst: dst, Src: src, Info: info}}, nil

	case *ast.ForLoop:
		start, err := b.expr(cmd.Start)
		if err != nil {
			return nil, err
		}
		end, err := b.expr(cmd.End)
		if err != nil {
			return nil, err
		}
		loop := &ir.ForLoop{Start: start, End: end}
		err = b.withScope(func() error {
			loop.Index = b.param(cmd.Index, ir.LoopParam())
			body, err := b.commands(cmd.Body)
			loop.Body = body
			return err
		})
		if err != nil {
			return nil, err
		}
		return []ir.Command{loop}, nil

	case *ast.If:
		cond, err := b.cons(&cmd.Cond)
		if err != nil {
			return nil, err
		}
		branch := &ir.If{Cond: cond}
		err = b.withScope(func() (err error) {
			branch.Then, err = b.commands(cmd.Then)
			return err
		})
		if err != nil {
			return nil, err
		}
		err = b.withScope(func() (err error) {
			branch.Alt, err = b.commands(cmd.Alt)
			return err
		})
		if err != nil {
			return nil, err
		}
		return []ir.Command{branch}, nil

	case *ast.Bundle:
		p, err := b.port(&cmd.Def, ir.LocalOwner())
		if err != nil {
			return nil, err
		}
		return []ir.Command{&ir.BundleDef{Port: p}}, nil
	}
	panic(fmt.Sprintf("astconv: unknown command %T", cmd))
}

// invoke adds the input ports of a declared invocation and the connections
// from its arguments.
func (b *builder) invoke(inv *ast.Invoke) ([]ir.Command, error) {
	idx, _ := b.scope.inv(inv.Name.Name)
	callee := b.instSigs[b.comp.Invocations.Get(idx).Inst]
	if len(callee.inputs) != len(inv.Ports) {
		return nil, b.errorf(diag.InpArity, inv.Inst.Span, "instance `%s' requires %d inputs but provided %d arguments",
			inv.Inst.Name, len(callee.inputs), len(inv.Ports))
	}
	srcs := make([]ir.Access, len(inv.Ports))
	for i := range inv.Ports {
		a, err := b.access(&inv.Ports[i], ir.DirOut)
		if err != nil {
			return nil, err
		}
		srcs[i] = a
	}

	im := b.importers[idx]
	out := []ir.Command{&ir.InvokeCmd{Inv: idx}}
	for i, p := range callee.inputs {
		np := b.invPort(im, idx, p, callee, ir.DirIn)
		iv := b.comp.Invocations.Mut(idx)
		iv.Ports = append(iv.Ports, np)

		def := callee.comp.Info(callee.comp.Ports.Get(p).Info)
		info := b.comp.AddInfo(ir.ConnectInfo(def.Bind, inv.Ports[i].Span))
		out = append(out, &ir.Connect{Dst: b.fullAccess(np), Src: srcs[i], Info: info})
	}
	return out, nil
}

// fullAccess selects every element of a port.
func (b *builder) fullAccess(p ir.PortIdx) ir.Access {
	zero := b.comp.Num(0)
	lens := b.comp.Ports.Get(p).Live.Lens
	a := ir.Access{Port: p, Ranges: make([]ir.AccessRange, len(lens))}
	for i, l := range lens {
		a.Ranges[i] = ir.AccessRange{Start: zero, End: l}
	}
	return a
}

// access resolves a port reference. Names of the component itself may
// refer to a signature port or a local bundle.
func (b *builder) access(p *ast.Port, dir ir.Direction) (ir.Access, error) {
	var (
		idx ir.PortIdx
		ok  bool
	)
	if p.Inv.Name == "" {
		if idx, ok = b.scope.port(sigPortKey(dir, p.Name.Name)); !ok {
			idx, ok = b.scope.port(localPortKey(p.Name.Name))
		}
	} else {
		inv, found := b.scope.inv(p.Inv.Name)
		if !found {
			return ir.Access{}, b.errorf(diag.InpUnknownName, p.Inv.Span, "undefined invocation `%s'", p.Inv.Name)
		}
		idx, ok = b.scope.port(invPortKey(inv, dir, p.Name.Name))
	}
	if !ok {
		return ir.Access{}, b.errorf(diag.InpUnknownName, p.Name.Span, "undefined %s port `%s'", portRole(dir), portName(p))
	}
	if len(p.Access) == 0 {
		return b.fullAccess(idx), nil
	}
	a := ir.Access{Port: idx}
	for _, acc := range p.Access {
		s, err := b.expr(acc.Start)
		if err != nil {
			return ir.Access{}, err
		}
		e, err := b.expr(acc.End)
		if err != nil {
			return ir.Access{}, err
		}
		a.Ranges = append(a.Ranges, ir.AccessRange{Start: s, End: e})
	}
	return a, nil
}

func portName(p *ast.Port) string {
	if p.Inv.Name == "" {
		return p.Name.Name
	}
	return p.Inv.Name + "." + p.Name.Name
}

func portRole(dir ir.Direction) string {
	if dir == ir.DirOut {
		return "source"
	}
	return "destination"
}
