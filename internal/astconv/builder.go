package astconv

import (
	"fmt"

	"filament/internal/ast"
	"filament/internal/diag"
	"filament/internal/ir"
	"filament/internal/source"
)

// instParam names an existential parameter exposed by an instance.
type instParam struct {
	inst ir.InstIdx
	name string
}

// builder converts one component.
type builder struct {
	t      *transformer
	idx    ir.CompIdx
	comp   *ir.Component
	sig    *sig
	astSig *ast.Signature
	scope  *scope

	events     map[string]ir.EventIdx
	instSigs   map[ir.InstIdx]*sig
	instParams map[instParam]ir.ExprIdx
	importers  map[ir.InvIdx]*ir.Importer
}

func (t *transformer) newBuilder(kind ir.CompKind, s *ast.Signature, genTool string) *builder {
	idx := t.ctx.NewComp(kind, ir.Attrs{Toplevel: s.Attrs.Toplevel, CounterFSM: s.Attrs.CounterFSM})
	comp := t.ctx.Get(idx)
	comp.Src = ir.NewInterfaceSrc(t.intern(s.Name.Name), genTool)
	return &builder{
		t:          t,
		idx:        idx,
		comp:       comp,
		sig:        &sig{idx: idx, comp: comp, name: s.Name},
		astSig:     s,
		scope:      newScope(nil),
		events:     make(map[string]ir.EventIdx),
		instSigs:   make(map[ir.InstIdx]*sig),
		instParams: make(map[instParam]ir.ExprIdx),
		importers:  make(map[ir.InvIdx]*ir.Importer),
	}
}

func (b *builder) errorf(code diag.Code, sp source.Span, format string, args ...any) error {
	return b.t.errorf(code, sp, format, args...)
}

func (b *builder) withScope(fn func() error) error {
	b.scope = newScope(b.scope)
	defer func() { b.scope = b.scope.parent }()
	return fn()
}

// param adds a parameter and binds its name in the current scope.
// Parameters owned by the signature are recorded in the interface.
func (b *builder) param(name ast.Ident, owner ir.ParamOwner) ir.ParamIdx {
	id := b.t.intern(name.Name)
	info := b.comp.AddInfo(ir.ParamInfo(id, name.Span))
	p := b.comp.Params.Add(ir.Param{Owner: owner, Info: info})
	b.scope.params[name.Name] = b.comp.ParamRef(p)
	if owner.Kind == ir.ParamSig || owner.Kind == ir.ParamExists {
		b.comp.Src.Params[p] = id
	}
	return p
}

// signature converts the signature of the component.
func (b *builder) signature(s *ast.Signature) error {
	c := b.comp
	b.sig.params = s.Params
	b.sig.events = s.Events

	for _, pb := range s.Params {
		c.ParamArgs = append(c.ParamArgs, b.param(pb.Name, ir.SigParam()))
	}
	b.sig.defaults = make([]ir.ExprIdx, len(s.Params))
	for i, pb := range s.Params {
		b.sig.defaults[i] = ir.UnknownExpr
		if pb.Default == nil {
			continue
		}
		e, err := b.expr(pb.Default)
		if err != nil {
			return err
		}
		for _, p := range c.ExprParams(e) {
			if j := indexOf(c.ParamArgs, p); j < 0 || j >= i {
				return b.errorf(diag.InpBadExpr, pb.Default.Span,
					"default of `%s' may only mention earlier parameters", pb.Name.Name)
			}
		}
		b.sig.defaults[i] = e
	}

	for i := range s.SigBinds {
		sb := &s.SigBinds[i]
		if sb.IsLet() {
			e, err := b.expr(sb.Expr)
			if err != nil {
				return err
			}
			b.scope.params[sb.Name.Name] = e
			continue
		}
		p := b.param(sb.Name, ir.ExistsParam(sb.Opaque))
		facts := make([]ir.Located, 0, len(sb.Where))
		for j := range sb.Where {
			prop, err := b.cons(&sb.Where[j])
			if err != nil {
				return err
			}
			facts = append(facts, ir.Located{Prop: prop, Loc: sb.Where[j].Span})
		}
		c.AddExistAssumes(p, facts...)
	}

	ifaces := make(map[string]ast.InterfaceDef, len(s.Interfaces))
	for _, id := range s.Interfaces {
		ifaces[id.Event.Name] = id
	}
	for _, eb := range s.Events {
		iface, ok := ifaces[eb.Name.Name]
		delete(ifaces, eb.Name.Name)
		c.EventArgs = append(c.EventArgs, b.declareEvent(eb, iface, ok))
	}
	for _, id := range s.Interfaces {
		if _, ok := ifaces[id.Event.Name]; ok {
			return b.errorf(diag.InpUnknownName, id.Event.Span,
				"interface port `%s' refers to undefined event `%s'", id.Name.Name, id.Event.Name)
		}
	}
	// Delays may mention any event, so they are set once all are declared.
	for i, eb := range s.Events {
		d, err := b.timeSub(eb.Delay)
		if err != nil {
			return err
		}
		c.Events.Mut(c.EventArgs[i]).Delay = d
	}
	b.sig.eventDefaults = make([]ir.TimeIdx, len(s.Events))
	for i, eb := range s.Events {
		b.sig.eventDefaults[i] = ir.UnknownTime
		if eb.Default == nil {
			continue
		}
		tm, err := b.time(eb.Default)
		if err != nil {
			return err
		}
		if j := indexOf(c.EventArgs, tm.Event(c)); j >= i {
			return b.errorf(diag.InpBadExpr, eb.Default.Span,
				"default of event `%s' may only mention earlier events", eb.Name.Name)
		}
		b.sig.eventDefaults[i] = tm
	}

	for i := range s.Inputs {
		p, err := b.port(&s.Inputs[i], ir.SigIn())
		if err != nil {
			return err
		}
		b.sig.inputs = append(b.sig.inputs, p)
	}
	for i := range s.Outputs {
		p, err := b.port(&s.Outputs[i], ir.SigOut())
		if err != nil {
			return err
		}
		b.sig.outputs = append(b.sig.outputs, p)
	}

	for i := range s.EventConstraints {
		ec := &s.EventConstraints[i]
		prop, err := b.timeCons(ec)
		if err != nil {
			return err
		}
		c.AddEventAsserts(ir.Located{Prop: prop, Loc: ec.Span})
	}
	for i := range s.ParamConstraints {
		pc := &s.ParamConstraints[i]
		prop, err := b.cons(pc)
		if err != nil {
			return err
		}
		c.AddParamAsserts(ir.Located{Prop: prop, Loc: pc.Span})
	}
	return nil
}

func indexOf[T comparable](xs []T, x T) int {
	for i, v := range xs {
		if v == x {
			return i
		}
	}
	return -1
}

// declareEvent adds an event with a placeholder delay.
func (b *builder) declareEvent(eb ast.EventBind, iface ast.InterfaceDef, hasIface bool) ir.EventIdx {
	id := b.t.intern(eb.Name.Name)
	var ifaceID source.NameID
	ifaceSpan := source.NoSpan
	if hasIface {
		ifaceID = b.t.intern(iface.Name.Name)
		ifaceSpan = iface.Name.Span
	}
	info := b.comp.AddInfo(ir.EventInfo(id, eb.Name.Span, eb.Delay.Span, ifaceID, ifaceSpan))
	ev := b.comp.Events.Add(ir.Event{Delay: ir.UnitSub(b.comp.Num(0)), Info: info, HasInterface: hasIface})
	b.comp.Src.Events[ev] = id
	if hasIface {
		b.comp.Src.InterfacePorts[ev] = ifaceID
	}
	b.events[eb.Name.Name] = ev
	return ev
}

// port converts a port definition. The bundle indices are only in scope
// for the lengths and the liveness.
func (b *builder) port(pd *ast.PortDef, owner ir.PortOwner) (ir.PortIdx, error) {
	id := b.t.intern(pd.Name.Name)
	info := b.comp.AddInfo(ir.PortInfo(id, pd.Name.Span, pd.Width.Span, pd.Live.Span))
	var live ir.Liveness
	err := b.withScope(func() error {
		for _, idx := range pd.Idxs {
			live.Idxs = append(live.Idxs, b.param(idx, ir.BundleParam(ir.UnknownPort)))
		}
		for _, l := range pd.Lens {
			e, err := b.expr(l)
			if err != nil {
				return err
			}
			live.Lens = append(live.Lens, e)
		}
		r, err := b.rng(&pd.Live)
		live.Range = r
		return err
	})
	if err != nil {
		return ir.UnknownPort, err
	}
	width, err := b.expr(pd.Width)
	if err != nil {
		return ir.UnknownPort, err
	}
	p := b.comp.Ports.Add(ir.Port{Owner: owner, Width: width, Live: live, Info: info})
	for _, idx := range live.Idxs {
		b.comp.Params.Mut(idx).Owner = ir.BundleParam(p)
	}

	var key portKey
	switch owner.Kind {
	case ir.OwnerSig:
		b.comp.Src.Ports[p] = id
		key = sigPortKey(owner.Dir, pd.Name.Name)
	case ir.OwnerLocal:
		key = localPortKey(pd.Name.Name)
	default:
		panic(fmt.Sprintf("astconv: port %s defined with owner %s", pd.Name.Name, owner))
	}
	if _, dup := b.scope.ports[key]; dup {
		return ir.UnknownPort, b.errorf(diag.InpDuplicateName, pd.Name.Span, "port `%s' is defined more than once", pd.Name.Name)
	}
	b.scope.ports[key] = p
	return p, nil
}
