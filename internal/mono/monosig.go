package mono

import (
	"fmt"

	"filament/internal/ir"
)

// portKey names a port of the component being built. Signature and local
// ports use ir.UnknownInv; invocation ports are keyed by the invocation
// that defines them, since an unrolled loop defines the same underlying
// port once per iteration.
type portKey struct {
	inv  ir.InvIdx
	port Underlying[ir.PortIdx]
}

// specializer builds one specialization of one component. Entities of the
// generic component are translated to entities of the new one as the body
// is walked; parameters are replaced by their values as soon as they are
// known.
type specializer struct {
	m    *Monomorphizer
	key  CompKey
	ul   *ir.Component
	base *ir.Component
	ii   *InstanceInfo

	binding *ir.Bind[Underlying[ir.ParamIdx], uint64]
	// Values of the component's own existential parameters.
	exists map[Underlying[ir.ParamIdx]]uint64
	// Bundle index parameters survive monomorphization.
	params map[Underlying[ir.ParamIdx]]Base[ir.ParamIdx]

	events   map[Underlying[ir.EventIdx]]Base[ir.EventIdx]
	ports    map[portKey]Base[ir.PortIdx]
	insts    map[Underlying[ir.InstIdx]]Base[ir.InstIdx]
	instKeys map[Underlying[ir.InstIdx]]CompKey
	invs     map[Underlying[ir.InvIdx]]Base[ir.InvIdx]
	infos    map[Underlying[ir.InfoIdx]]Base[ir.InfoIdx]

	im *ir.Importer
}

func newSpecializer(m *Monomorphizer, key CompKey, ul *ir.Component, kind ir.CompKind, args []uint64) *specializer {
	s := &specializer{
		m:        m,
		key:      key,
		ul:       ul,
		base:     ir.NewComponent(kind, ul.Attrs),
		ii:       m.info(key),
		binding:  ir.NewBind[Underlying[ir.ParamIdx], uint64](),
		exists:   make(map[Underlying[ir.ParamIdx]]uint64),
		params:   make(map[Underlying[ir.ParamIdx]]Base[ir.ParamIdx]),
		events:   make(map[Underlying[ir.EventIdx]]Base[ir.EventIdx]),
		ports:    make(map[portKey]Base[ir.PortIdx]),
		insts:    make(map[Underlying[ir.InstIdx]]Base[ir.InstIdx]),
		instKeys: make(map[Underlying[ir.InstIdx]]CompKey),
		invs:     make(map[Underlying[ir.InvIdx]]Base[ir.InvIdx]),
		infos:    make(map[Underlying[ir.InfoIdx]]Base[ir.InfoIdx]),
	}
	for i, p := range ul.ParamArgs {
		s.binding.Push(underlying(p), args[i])
	}
	return s
}

func (s *specializer) push(p ir.ParamIdx, v uint64) {
	s.binding.Push(underlying(p), v)
	s.im = nil
}

// scope runs fn and then drops every binding fn introduced.
func (s *specializer) scope(fn func() error) error {
	n := s.binding.Len()
	err := fn()
	s.binding.PopN(s.binding.Len() - n)
	s.im = nil
	return err
}

// importer translates values of the generic component under the current
// binding. The cache is only valid until the binding changes.
func (s *specializer) importer() *ir.Importer {
	if s.im == nil {
		s.im = ir.NewImporter(s.ul, s.base, s.param, s.event)
	}
	return s.im
}

func (s *specializer) param(p ir.ParamIdx) (ir.ExprIdx, bool) {
	u := underlying(p)
	if v, ok := s.binding.Get(u); ok {
		return s.base.Num(v), true
	}
	if v, ok := s.exists[u]; ok {
		return s.base.Num(v), true
	}
	if b, ok := s.params[u]; ok {
		return s.base.ParamRef(b.Get()), true
	}
	return ir.UnknownExpr, false
}

func (s *specializer) event(e ir.EventIdx) (ir.TimeIdx, bool) {
	b, ok := s.events[underlying(e)]
	if !ok {
		return ir.UnknownTime, false
	}
	return s.base.AddTime(ir.Time{Event: b.Get(), Offset: s.base.Num(0)}), true
}

// resolvable reports whether every parameter in ps has a translation.
func (s *specializer) resolvable(ps []ir.ParamIdx) bool {
	for _, p := range ps {
		if _, ok := s.param(p); !ok {
			return false
		}
	}
	return true
}

func (s *specializer) expr(e ir.ExprIdx) ir.ExprIdx { return s.importer().Expr(e) }
func (s *specializer) time(t ir.TimeIdx) ir.TimeIdx { return s.importer().Time(t) }
func (s *specializer) rng(r ir.Range) ir.Range      { return s.importer().Range(r) }

// value evaluates an expression that must be concrete once the current
// binding is applied.
func (s *specializer) value(e ir.ExprIdx, what string) (uint64, error) {
	if !s.resolvable(s.ul.ExprParams(e)) {
		return 0, s.errorf("%s `%s' mentions unbound parameters", what, s.ul.DisplayExpr(e))
	}
	v, ok := s.expr(e).AsConcrete(s.base)
	if !ok {
		return 0, s.errorf("%s `%s' does not evaluate to a natural number", what, s.ul.DisplayExpr(e))
	}
	return v, nil
}

// prop translates a proposition. The left side of an implication or
// conjunction is translated first and a false guard skips the right side.
func (s *specializer) prop(p ir.PropIdx) ir.PropIdx {
	pr := s.ul.Prop(p)
	switch pr.Kind {
	case ir.PropImplies:
		l := s.prop(pr.P)
		if l.IsFalse(s.base) {
			return s.base.TrueProp()
		}
		return l.Implies(s.prop(pr.Q), s.base)
	case ir.PropAnd:
		l := s.prop(pr.P)
		if l.IsFalse(s.base) {
			return s.base.FalseProp()
		}
		return l.And(s.prop(pr.Q), s.base)
	}
	return s.importer().Prop(p)
}

func (s *specializer) errorf(format string, args ...any) error {
	return fmt.Errorf("mono: %s: %s", s.m.describe(s.key), fmt.Sprintf(format, args...))
}

// info copies the provenance of an entity. Assertion reasons mention
// values of the generic component and are rebuilt.
func (s *specializer) info(id ir.InfoIdx) ir.InfoIdx {
	if ir.IsUnknown(id) || !s.ul.Infos.Valid(id) {
		return ir.UnknownInfo
	}
	u := underlying(id)
	if b, ok := s.infos[u]; ok {
		return b.Get()
	}
	info := s.ul.Infos.Get(id)
	if info.Kind == ir.InfoAssert && info.Reason != nil {
		return s.base.AddInfo(ir.AssertInfo(s.reason(info.Reason)))
	}
	b := s.base.AddInfo(info)
	s.infos[u] = base(b)
	return b
}

const elaborated = "Elaborated during monomorphization."

func (s *specializer) reason(r *ir.Reason) ir.Reason {
	if r.Kind == ir.ReasonLiveness {
		return ir.LivenessReason(r.Dst, r.Src, s.rng(r.DstLive), s.rng(r.SrcLive))
	}
	return ir.MiscReason(elaborated, r.Loc())
}

// sigPartial creates the signature entities. Their data may mention
// existential parameters and is filled in by sigComplete.
func (s *specializer) sigPartial() {
	s.ul.Events.Iter(func(idx ir.EventIdx, ev ir.Event) {
		nb := base(s.base.Events.Add(ir.Event{
			Delay:        ir.UnitSub(s.base.Num(0)),
			Info:         s.info(ev.Info),
			HasInterface: ev.HasInterface,
		}))
		s.events[underlying(idx)] = nb
		s.ii.events[underlying(idx)] = nb
	})
	for _, e := range s.ul.EventArgs {
		s.base.EventArgs = append(s.base.EventArgs, s.events[underlying(e)].Get())
	}
	s.ul.Ports.Iter(func(idx ir.PortIdx, p ir.Port) {
		if !p.IsSig() {
			return
		}
		nb := s.portPartial(idx, p.Owner, ir.UnknownInv)
		s.ii.ports[underlying(idx)] = nb
	})

	if s.ul.Src != nil {
		src := ir.NewInterfaceSrc(s.ul.Src.Name, s.ul.Src.GenTool)
		for p, n := range s.ul.Src.Ports {
			if b, ok := s.ports[portKey{ir.UnknownInv, underlying(p)}]; ok {
				src.Ports[b.Get()] = n
			}
		}
		for e, n := range s.ul.Src.Events {
			src.Events[s.events[underlying(e)].Get()] = n
		}
		for e, n := range s.ul.Src.InterfacePorts {
			src.InterfacePorts[s.events[underlying(e)].Get()] = n
		}
		s.base.Src = src
	}
}

// sigComplete records the values of the existential parameters, checks the
// assumptions attached to them and fills in the signature data.
func (s *specializer) sigComplete() error {
	for _, p := range s.ul.ExistParams() {
		v, ok := s.exists[underlying(p)]
		if !ok {
			return s.errorf("existential parameter %s was not given a value", s.ul.DisplayParam(p))
		}
		s.ii.exists[underlying(p)] = v
	}
	s.im = nil
	for _, f := range s.ul.AllExistAssumes() {
		if !s.resolvable(s.ul.PropParams(f.Prop)) {
			return s.errorf("constraint `%s' mentions unbound parameters", s.ul.DisplayProp(f.Prop))
		}
		if b, ok := s.prop(f.Prop).AsConcrete(s.base); !ok || !b {
			return s.errorf("existential parameter constraint `%s' does not hold", s.ul.DisplayProp(f.Prop))
		}
	}

	s.ul.Ports.Iter(func(idx ir.PortIdx, p ir.Port) {
		if p.IsSig() {
			s.portData(idx, s.ports[portKey{ir.UnknownInv, underlying(idx)}])
		}
	})
	s.ul.Events.Iter(func(idx ir.EventIdx, ev ir.Event) {
		s.base.Events.Mut(s.events[underlying(idx)].Get()).Delay = s.importer().TimeSub(ev.Delay)
	})
	for _, f := range s.ul.EventAsserts() {
		if s.resolvable(s.ul.PropParams(f.Prop)) {
			s.base.AddEventAsserts(ir.Located{Prop: s.prop(f.Prop), Loc: f.Loc})
		}
	}
	return nil
}

// portPartial creates a port with its bundle index parameters but without
// width or liveness, so that facts about the port can be translated
// before its data is known.
func (s *specializer) portPartial(p ir.PortIdx, owner ir.PortOwner, inv ir.InvIdx) Base[ir.PortIdx] {
	src := s.ul.Ports.Get(p)
	idx := s.base.Ports.Add(ir.Port{Owner: owner, Info: s.info(src.Info)})
	idxs := make([]ir.ParamIdx, len(src.Live.Idxs))
	for i, old := range src.Live.Idxs {
		np := s.base.Params.Add(ir.Param{Owner: ir.BundleParam(idx), Info: s.info(s.ul.Params.Get(old).Info)})
		idxs[i] = np
		s.params[underlying(old)] = base(np)
	}
	s.base.Ports.Mut(idx).Live.Idxs = idxs
	s.im = nil
	nb := base(idx)
	s.ports[portKey{inv, underlying(p)}] = nb
	return nb
}

func (s *specializer) portData(p ir.PortIdx, nb Base[ir.PortIdx]) {
	src := s.ul.Ports.Get(p)
	lens := make([]ir.ExprIdx, len(src.Live.Lens))
	for i, l := range src.Live.Lens {
		lens[i] = s.expr(l)
	}
	width := s.expr(src.Width)
	r := s.rng(src.Live.Range)
	port := s.base.Ports.Mut(nb.Get())
	port.Width = width
	port.Live.Lens = lens
	port.Live.Range = r
}

// portUse translates a reference to a port that has already been defined.
func (s *specializer) portUse(p ir.PortIdx) (ir.PortIdx, error) {
	owner := s.ul.Ports.Get(p).Owner
	inv := ir.UnknownInv
	if owner.Kind == ir.OwnerInv {
		b, ok := s.invs[underlying(owner.Inv)]
		if !ok {
			return ir.UnknownPort, s.errorf("port %s is used before its invocation", s.ul.DisplayPort(p))
		}
		inv = b.Get()
	}
	b, ok := s.ports[portKey{inv, underlying(p)}]
	if !ok {
		return ir.UnknownPort, s.errorf("port %s is used before it is defined", s.ul.DisplayPort(p))
	}
	return b.Get(), nil
}
