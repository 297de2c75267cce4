package check

import (
	"filament/internal/ir"
	"filament/internal/source"
	"filament/internal/visitor"
)

// IntervalCheck asserts that delays are well formed and that ports are
// connected for as long as they need to be:
//
//   - event delays are positive and every signature or local range is
//     well formed and shorter than the delay of its start event;
//   - invocations trigger events no more often than the invoked
//     component allows, and only while their instance is live;
//   - a connected source is available whenever the destination needs it.
type IntervalCheck struct {
	visitor.Base
}

func NewIntervalCheck() *IntervalCheck { return &IntervalCheck{} }

func (*IntervalCheck) Name() string { return "interval-check" }

func (*IntervalCheck) Start(d *visitor.Data) visitor.Action {
	c := d.Comp
	assumes := existAssumes(c)
	zero := ir.UnitSub(c.Num(0))

	var cmds []ir.Command
	c.Events.Iter(func(_ ir.EventIdx, ev ir.Event) {
		loc := c.Info(ev.Info).Delay
		prop := assumes.Implies(ev.Delay.Gt(zero, c), c)
		cmds = appendAssert(cmds, c, prop, ir.MiscReason("delay must be greater than zero", loc))
	})

	c.Ports.Iter(func(_ ir.PortIdx, p ir.Port) {
		if p.IsInv() {
			return
		}
		liveLoc := c.Info(p.Info).Live
		rng := p.Live.Range
		wf := assumes.Implies(rng.End.Gt(rng.Start, c), c)
		cmds = appendAssert(cmds, c, wf, ir.WellFormedReason(liveLoc, rng.Start, rng.End))

		// only the event of the start of the range is constrained
		ev := c.Events.Get(rng.Start.Event(c))
		length := rng.End.Sub(rng.Start, c)
		params := make([]ir.ParamRange, len(p.Live.Idxs))
		for i, idx := range p.Live.Idxs {
			params[i] = ir.ParamRange{Bind: c.Info(c.Params.Get(idx).Info).Bind, Start: c.Num(0), End: p.Live.Lens[i]}
		}
		prop := assumes.Implies(ev.Delay.Gte(length, c), c)
		cmds = appendAssert(cmds, c, prop, ir.BundleDelayReason(c.Info(ev.Info).Delay, liveLoc, length, params))
	})

	if len(cmds) == 0 {
		return visitor.Continue
	}
	return visitor.AddBefore(cmds...)
}

func (*IntervalCheck) Invoke(idx ir.InvIdx, d *visitor.Data) visitor.Action {
	c := d.Comp
	inv := c.Invocations.Get(idx)
	inst := c.Instances.Get(inv.Inst)
	instInfo, invInfo := c.Info(inst.Info), c.Info(inv.Info)

	var cmds []ir.Command
	if len(inst.Lives) > 0 {
		for i, live := range inst.Lives {
			if i >= len(inv.Events) {
				break
			}
			eb := inv.Events[i]
			if eb.Delay.Sym {
				c.InternalError("invocation " + c.DisplayInv(idx) + " binds an event with a symbolic delay")
			}
			useEnd := eb.Arg.Shift(eb.Delay, c)
			prop := eb.Arg.Gte(live.Start, c).And(useEnd.Lte(live.End, c), c)
			reason := ir.EventLiveReason(spanAt(instInfo.Lives, i), live, ir.Range{Start: eb.Arg, End: useEnd}, spanAt(invInfo.EventBinds, i))
			cmds = appendAssert(cmds, c, prop, reason)
		}
	}

	for _, eb := range inv.Events {
		ebInfo := c.Info(eb.Info)
		this := c.Events.Get(eb.Arg.Event(c))
		reason := ir.EventTrigReason(ebInfo.Delay, eb.Delay, c.Info(this.Info).Delay, this.Delay, ebInfo.Bind)
		cmds = appendAssert(cmds, c, this.Delay.Gte(eb.Delay, c), reason)
	}

	if len(cmds) == 0 {
		return visitor.Continue
	}
	return visitor.AddBefore(cmds...)
}

func (*IntervalCheck) Instance(idx ir.InstIdx, d *visitor.Data) visitor.Action {
	c := d.Comp
	inst := c.Instances.Get(idx)
	if len(inst.Lives) == 0 {
		return visitor.Continue
	}
	info := c.Info(inst.Info)
	var cmds []ir.Command
	for i, live := range inst.Lives {
		length := live.End.Sub(live.Start, c)
		ev := c.Events.Get(live.Start.Event(c))
		reason := ir.EventLiveDelayReason(spanAt(info.Lives, i), length, c.Info(ev.Info).Delay, ev.Delay)
		cmds = appendAssert(cmds, c, ev.Delay.Gte(length, c), reason)
	}
	if len(cmds) == 0 {
		return visitor.Continue
	}
	return visitor.AddBefore(cmds...)
}

func (*IntervalCheck) Connect(con *ir.Connect, d *visitor.Data) visitor.Action {
	c := d.Comp
	src, dst := BundleType(c, con.Src), BundleType(c, con.Dst)
	ranges := inRange(c, dst).And(inRange(c, src), c)

	// index the destination with the source's indices
	binding := make(map[ir.ParamIdx]ir.ExprIdx)
	for i := 0; i < len(dst.Idxs) && i < len(src.Idxs); i++ {
		binding[dst.Idxs[i]] = c.ParamRef(src.Idxs[i])
	}
	dstRange := c.SubstRange(dst.Range, func(p ir.ParamIdx) (ir.ExprIdx, bool) {
		e, ok := binding[p]
		return e, ok
	})

	srcLen, dstLen := c.Num(1), c.Num(1)
	for _, l := range src.Lens {
		srcLen = srcLen.Mul(l, c)
	}
	for _, l := range dst.Lens {
		dstLen = dstLen.Mul(l, c)
	}
	pre := srcLen.Equal(dstLen, c).And(ranges, c)
	contains := src.Range.Start.Lte(dstRange.Start, c).And(src.Range.End.Gte(dstRange.End, c), c)

	info := c.Info(con.Info)
	cmds := appendAssert(nil, c, pre.Implies(contains, c), ir.LivenessReason(info.Dst, info.Src, dst.Range, src.Range))
	if len(cmds) == 0 {
		return visitor.Continue
	}
	return visitor.AddBefore(cmds...)
}

func spanAt(spans []source.Span, i int) source.Span {
	if i < len(spans) {
		return spans[i]
	}
	return source.NoSpan
}
