package check

import (
	"filament/internal/ir"
	"filament/internal/visitor"
)

// Assumptions states what a well-formed program may rely on and what its
// uses of other components must guarantee:
//
//   - a component assumes its own parameter and event constraints, and that
//     bundle indices stay below the bundle length;
//   - an instance must satisfy the parameter constraints of its component
//     and may assume the constraints on the component's existentials;
//   - an invocation must satisfy the event constraints of the component.
type Assumptions struct {
	visitor.Base
}

func NewAssumptions() *Assumptions { return &Assumptions{} }

func (*Assumptions) Name() string { return "assumptions" }

// appendAssume skips false propositions; every obligation under them
// would hold vacuously.
func appendAssume(cmds []ir.Command, c *ir.Component, prop ir.PropIdx, reason ir.Reason) []ir.Command {
	if prop.IsFalse(c) {
		return cmds
	}
	if cmd := c.Assume(prop, c.AddInfo(ir.AssertInfo(reason))); cmd != nil {
		cmds = append(cmds, cmd)
	}
	return cmds
}

func (*Assumptions) Start(d *visitor.Data) visitor.Action {
	c := d.Comp
	var cmds []ir.Command
	for _, l := range append(append([]ir.Located(nil), c.EventAsserts()...), c.ParamAsserts()...) {
		cmds = appendAssume(cmds, c, l.Prop, ir.MiscReason("signature assumption", l.Loc))
	}
	c.Ports.Iter(func(_ ir.PortIdx, p ir.Port) {
		for i, idx := range p.Live.Idxs {
			bind := c.Info(c.Params.Get(idx).Info).Bind
			prop := c.ParamRef(idx).Lt(p.Live.Lens[i], c)
			cmds = appendAssume(cmds, c, prop, ir.MiscReason("bundle index is within range", bind))
		}
	})
	if len(cmds) == 0 {
		return visitor.Continue
	}
	return visitor.AddBefore(cmds...)
}

// binding maps the signature parameters and existentials of the instance's
// component to the arguments and mirrored parameters of the instance.
func binding(c *ir.Component, inst ir.Instance, callee *ir.Component) map[ir.ParamIdx]ir.ExprIdx {
	out := make(map[ir.ParamIdx]ir.ExprIdx, len(inst.Args)+len(inst.Params))
	for i, p := range callee.ParamArgs {
		if i < len(inst.Args) {
			out[p] = inst.Args[i]
		}
	}
	for i, p := range callee.ExistParams() {
		if i < len(inst.Params) {
			out[p] = c.ParamRef(inst.Params[i])
		}
	}
	return out
}

func lookup[K comparable, V any](m map[K]V) func(K) (V, bool) {
	return func(k K) (V, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func (*Assumptions) Instance(idx ir.InstIdx, d *visitor.Data) visitor.Action {
	c := d.Comp
	inst := c.Instances.Get(idx)
	callee := d.Get(inst.Comp)
	site := c.Info(inst.Info).Comp
	im := ir.NewImporter(callee, c, lookup(binding(c, inst, callee)), nil)

	var cmds []ir.Command
	for _, l := range callee.ParamAsserts() {
		cmds = appendAssert(cmds, c, im.Prop(l.Prop), ir.ParamConstraintReason(site, l.Loc))
	}
	for _, l := range callee.AllExistAssumes() {
		cmds = appendAssume(cmds, c, im.Prop(l.Prop), ir.ExistsConstraintReason(site, l.Loc))
	}
	if len(cmds) == 0 {
		return visitor.Continue
	}
	return visitor.AddBefore(cmds...)
}

func (*Assumptions) Invoke(idx ir.InvIdx, d *visitor.Data) visitor.Action {
	c := d.Comp
	inv := c.Invocations.Get(idx)
	inst := c.Instances.Get(inv.Inst)
	callee := d.Get(inst.Comp)
	if len(callee.EventAsserts()) == 0 {
		return visitor.Continue
	}
	events := make(map[ir.EventIdx]ir.TimeIdx, len(inv.Events))
	for _, eb := range inv.Events {
		events[eb.Base.Key] = eb.Arg
	}
	im := ir.NewImporter(callee, c, lookup(binding(c, inst, callee)), lookup(events))

	site := c.Info(inv.Info).Inst
	var cmds []ir.Command
	for _, l := range callee.EventAsserts() {
		cmds = appendAssert(cmds, c, im.Prop(l.Prop), ir.EventConstraintReason(site, l.Loc))
	}
	if len(cmds) == 0 {
		return visitor.Continue
	}
	return visitor.AddBefore(cmds...)
}
