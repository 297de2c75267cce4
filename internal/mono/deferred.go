package mono

import (
	"context"
	"fmt"

	"filament/internal/ir"
	"filament/internal/source"
)

func (s *specializer) emit(cmd ir.Command) {
	if cmd != nil {
		s.base.Cmds = append(s.base.Cmds, cmd)
	}
}

// cmds specializes a command list. A fact may mention parameters bound
// later in the same list, such as the value of an existential or the
// parameters an instance exposes; it is emitted once the list is done.
func (s *specializer) cmds(ctx context.Context, cmds []ir.Command) error {
	var pending []*ir.Fact
	for _, cmd := range cmds {
		if f, ok := cmd.(*ir.Fact); ok && !s.bundleFact(f) && !s.resolvable(s.ul.PropParams(f.Prop)) {
			pending = append(pending, f)
			continue
		}
		if err := s.command(ctx, cmd); err != nil {
			return err
		}
	}
	for _, f := range pending {
		if err := s.fact(f); err != nil {
			return err
		}
	}
	return nil
}

func (s *specializer) command(ctx context.Context, cmd ir.Command) error {
	switch cmd := cmd.(type) {
	case *ir.InstanceCmd:
		return s.instDef(ctx, cmd.Inst)
	case *ir.InvokeCmd:
		return s.invDef(cmd.Inv)
	case *ir.BundleDef:
		p := s.ul.Ports.Get(cmd.Port)
		nb := s.portPartial(cmd.Port, p.Owner, ir.UnknownInv)
		s.portData(cmd.Port, nb)
		s.emit(&ir.BundleDef{Port: nb.Get()})
	case *ir.Connect:
		return s.connect(cmd)
	case *ir.Let:
		if cmd.Expr == nil {
			return s.errorf("let-bound parameter %s has no value", s.ul.DisplayParam(cmd.Param))
		}
		v, err := s.value(*cmd.Expr, "let binding")
		if err != nil {
			return err
		}
		s.push(cmd.Param, v)
	case *ir.ForLoop:
		return s.forLoop(ctx, cmd)
	case *ir.If:
		return s.ifStmt(ctx, cmd)
	case *ir.Exists:
		v, err := s.value(cmd.Expr, "existential binding")
		if err != nil {
			return err
		}
		s.exists[underlying(cmd.Param)] = v
		s.im = nil
	case *ir.Fact:
		return s.fact(cmd)
	default:
		return s.errorf("unexpected command %T", cmd)
	}
	return nil
}

func (s *specializer) instDef(ctx context.Context, ui ir.InstIdx) error {
	inst := s.ul.Instances.Get(ui)
	args := make([]uint64, len(inst.Args))
	for i, a := range inst.Args {
		v, err := s.value(a, fmt.Sprintf("argument %d of %s", i, s.ul.DisplayInst(ui)))
		if err != nil {
			return err
		}
		args[i] = v
	}
	key, comp, err := s.m.monomorphize(ctx, inst.Comp, args)
	if err != nil {
		return err
	}
	ii := s.m.info(key)
	for _, p := range inst.Params {
		owner := s.ul.Params.Get(p).Owner
		v, ok := ii.Exist(underlying(owner.Base.Key))
		if !ok {
			return s.errorf("%s does not define a value for %s", s.m.describe(key), s.ul.DisplayParam(p))
		}
		s.push(p, v)
	}

	// Externals keep their arguments; they are parameterized outside the
	// language.
	var kept []ir.ExprIdx
	if s.m.old.IsExt(inst.Comp) {
		for _, v := range args {
			kept = append(kept, s.base.Num(v))
		}
	}
	lives := make([]ir.Range, len(inst.Lives))
	for i, l := range inst.Lives {
		lives[i] = s.rng(l)
	}
	ni := s.base.Instances.Add(ir.Instance{
		Comp:  comp.Get(),
		Args:  kept,
		Lives: lives,
		Info:  s.info(inst.Info),
	})
	s.insts[underlying(ui)] = base(ni)
	s.instKeys[underlying(ui)] = key
	s.emit(&ir.InstanceCmd{Inst: ni})
	return nil
}

func (s *specializer) invDef(ui ir.InvIdx) error {
	inv := s.ul.Invocations.Get(ui)
	bi, ok := s.insts[underlying(inv.Inst)]
	if !ok {
		return s.errorf("%s is invoked before it is defined", s.ul.DisplayInst(inv.Inst))
	}
	ii := s.m.info(s.instKeys[underlying(inv.Inst)])
	callee := s.base.Instances.Get(bi.Get()).Comp

	ni := s.base.Invocations.Add(ir.Invoke{Inst: bi.Get(), Info: s.info(inv.Info)})
	s.invs[underlying(ui)] = base(ni)

	ports := make([]ir.PortIdx, 0, len(inv.Ports))
	for _, p := range inv.Ports {
		owner := s.ul.Ports.Get(p).Owner
		sig, ok := ii.Port(underlying(owner.Base.Key))
		if !ok {
			return s.errorf("port %s has no counterpart in %s", s.ul.DisplayPort(p), s.m.describe(s.instKeys[underlying(inv.Inst)]))
		}
		nb := s.portPartial(p, ir.InvOwner(ni, owner.Dir, ir.NewForeign(sig.Get(), callee)), ni)
		ports = append(ports, nb.Get())
	}
	for _, p := range inv.Ports {
		s.portData(p, s.ports[portKey{ni, underlying(p)}])
	}

	events := make([]ir.EventBind, 0, len(inv.Events))
	for _, eb := range inv.Events {
		ev, ok := ii.Event(underlying(eb.Base.Key))
		if !ok {
			return s.errorf("event binding of %s has no counterpart", s.ul.DisplayInv(ui))
		}
		events = append(events, ir.EventBind{
			Delay: s.importer().TimeSub(eb.Delay),
			Arg:   s.time(eb.Arg),
			Info:  s.info(eb.Info),
			Base:  ir.NewForeign(ev.Get(), callee),
		})
	}
	nv := s.base.Invocations.Mut(ni)
	nv.Ports = ports
	nv.Events = events
	s.emit(&ir.InvokeCmd{Inv: ni})
	return nil
}

func (s *specializer) access(a ir.Access) (ir.Access, error) {
	p, err := s.portUse(a.Port)
	if err != nil {
		return ir.Access{}, err
	}
	out := ir.Access{Port: p, Ranges: make([]ir.AccessRange, len(a.Ranges))}
	for i, r := range a.Ranges {
		out.Ranges[i] = ir.AccessRange{Start: s.expr(r.Start), End: s.expr(r.End)}
	}
	return out, nil
}

func (s *specializer) connect(con *ir.Connect) error {
	dst, err := s.access(con.Dst)
	if err != nil {
		return err
	}
	src, err := s.access(con.Src)
	if err != nil {
		return err
	}
	s.emit(&ir.Connect{Dst: dst, Src: src, Info: s.info(con.Info)})
	return nil
}

func (s *specializer) forLoop(ctx context.Context, lp *ir.ForLoop) error {
	start, err := s.value(lp.Start, "loop start")
	if err != nil {
		return err
	}
	end, err := s.value(lp.End, "loop end")
	if err != nil {
		return err
	}
	for i := start; i < end; i++ {
		err := s.scope(func() error {
			s.push(lp.Index, i)
			return s.cmds(ctx, lp.Body)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *specializer) ifStmt(ctx context.Context, br *ir.If) error {
	if !s.resolvable(s.ul.PropParams(br.Cond)) {
		return s.errorf("condition `%s' mentions unbound parameters", s.ul.DisplayProp(br.Cond))
	}
	cond, ok := s.prop(br.Cond).AsConcrete(s.base)
	if !ok {
		return s.errorf("condition `%s' does not resolve to true or false", s.ul.DisplayProp(br.Cond))
	}
	body := br.Alt
	if cond {
		body = br.Then
	}
	return s.scope(func() error { return s.cmds(ctx, body) })
}

// bundleFact reports a fact about bundle elements. Such facts were proved
// before specialization and are dropped along with the bundles.
func (s *specializer) bundleFact(f *ir.Fact) bool {
	for _, p := range s.ul.PropParams(f.Prop) {
		if s.ul.Params.Get(p).Owner.Kind == ir.ParamBundle {
			return true
		}
	}
	return false
}

// fact turns assumptions and assertions alike into assertions.
func (s *specializer) fact(f *ir.Fact) error {
	if s.bundleFact(f) {
		return nil
	}
	if !s.resolvable(s.ul.PropParams(f.Prop)) {
		return s.errorf("fact `%s' mentions unbound parameters", s.ul.DisplayProp(f.Prop))
	}
	info := s.info(f.Reason)
	if ir.IsUnknown(info) {
		info = s.base.AddInfo(ir.AssertInfo(ir.MiscReason(elaborated, source.NoSpan)))
	}
	s.emit(s.base.Assert(s.prop(f.Prop), info))
	return nil
}
