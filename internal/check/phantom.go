package check

import (
	"fmt"
	"slices"

	"filament/internal/diag"
	"filament/internal/ir"
	"filament/internal/source"
	"filament/internal/visitor"
)

// PhantomCheck rejects uses of phantom events that would require
// resource sharing. An event is phantom when it has no interface port; it
// is compiled away, so it cannot be used to reuse an instance, to invoke
// inside a loop an instance defined outside of it, or to trigger a
// non-phantom event of a subcomponent.
type PhantomCheck struct {
	visitor.Base
	rep *diag.Counter

	phantoms []ir.EventIdx
	// instances defined in each enclosing loop scope
	scopes [][]ir.InstIdx
}

func NewPhantomCheck(rep diag.Reporter) *PhantomCheck {
	return &PhantomCheck{rep: diag.NewCounter(rep)}
}

func (*PhantomCheck) Name() string { return "phantom-check" }

func (p *PhantomCheck) ClearData() {
	p.phantoms = nil
	p.scopes = [][]ir.InstIdx{nil}
}

func (p *PhantomCheck) AfterTraversal() (uint64, bool) {
	n := p.rep.Errors()
	return n, n > 0
}

func (p *PhantomCheck) isPhantom(c *ir.Component, t ir.TimeIdx) bool {
	return slices.Contains(p.phantoms, t.Event(c))
}

// phantomUse returns the first event binding of inv that uses a phantom
// event of this component.
func (p *PhantomCheck) phantomUse(c *ir.Component, inv ir.InvIdx) (ir.EventBind, bool) {
	for _, eb := range c.Invocations.Get(inv).Events {
		if p.isPhantom(c, eb.Arg) {
			return eb, true
		}
	}
	return ir.EventBind{}, false
}

func (p *PhantomCheck) Start(d *visitor.Data) visitor.Action {
	c := d.Comp
	p.phantoms = c.PhantomEvents()
	if len(p.phantoms) == 0 {
		return visitor.Stop
	}

	m := c.InstInvokeMap()
	insts := make([]ir.InstIdx, 0, len(m))
	for inst := range m {
		insts = append(insts, inst)
	}
	slices.Sort(insts)
	for _, inst := range insts {
		invs := m[inst]
		if len(invs) < 2 {
			continue
		}
		for _, inv := range invs {
			eb, ok := p.phantomUse(c, inv)
			if !ok {
				continue
			}
			ev := eb.Arg.Event(c)
			diag.ReportError(p.rep, diag.ChkPhantomShared, c.Info(c.Invocations.Get(inv).Info).Bind,
				"cannot reuse instance using a phantom event").
				WithLabel("invocation uses phantom event").
				WithNote(c.Info(c.Instances.Get(inst).Info).Bind, fmt.Sprintf("instance is invoked %d times", len(invs))).
				WithNote(c.Info(eb.Info).Bind, fmt.Sprintf("event %s is a phantom event", c.DisplayEvent(ev))).
				WithNote(source.NoSpan, "phantom events are compiled away and cannot be used for resource sharing").
				Emit()
			break
		}
	}
	return visitor.Continue
}

func (p *PhantomCheck) StartLoop(*ir.ForLoop, *visitor.Data) visitor.Action {
	p.scopes = append(p.scopes, nil)
	return visitor.Continue
}

func (p *PhantomCheck) EndLoop(*ir.ForLoop, *visitor.Data) visitor.Action {
	p.scopes = p.scopes[:len(p.scopes)-1]
	return visitor.Continue
}

func (p *PhantomCheck) Instance(inst ir.InstIdx, _ *visitor.Data) visitor.Action {
	last := len(p.scopes) - 1
	p.scopes[last] = append(p.scopes[last], inst)
	return visitor.Continue
}

func (p *PhantomCheck) Invoke(idx ir.InvIdx, d *visitor.Data) visitor.Action {
	c := d.Comp
	inv := c.Invocations.Get(idx)
	inst := c.Instances.Get(inv.Inst)

	if len(p.scopes) > 1 && !slices.Contains(p.scopes[len(p.scopes)-1], inv.Inst) {
		if eb, ok := p.phantomUse(c, idx); ok {
			diag.ReportError(p.rep, diag.ChkPhantomLoop, c.Info(eb.Info).Bind,
				"invocation is within a loop but instance is not").
				WithLabel("invocation uses phantom event").
				WithNote(c.Info(inst.Info).Bind, "instance is not within the same loop").
				WithNote(source.NoSpan, "invocations within loops will be unrolled and imply instance sharing").
				Emit()
		}
	}

	callee := d.Get(inst.Comp)
	calleePhantoms := callee.PhantomEvents()
	for i, eb := range inv.Events {
		if i >= len(callee.EventArgs) {
			break
		}
		event := callee.EventArgs[i]
		if slices.Contains(calleePhantoms, event) || !p.isPhantom(c, eb.Arg) {
			continue
		}
		ev := eb.Arg.Event(c)
		diag.ReportError(p.rep, diag.ChkPhantomBinding, c.Info(eb.Info).Bind,
			"component provided phantom event binding to non-phantom event argument").
			WithLabel("invoke provides phantom event").
			WithNote(c.Info(c.Events.Get(ev).Info).Bind, "event is a phantom event").
			WithNote(callee.Info(callee.Events.Get(event).Info).Bind, "instance's event is not phantom").
			WithNote(source.NoSpan, "phantom ports are compiled away and cannot be used by subcomponents").
			Emit()
	}
	return visitor.Continue
}
