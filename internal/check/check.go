// Package check holds the passes that verify a program before it is
// monomorphized. TypeCheck and IntervalCheck only add assertions to the
// IR; PhantomCheck and AssignCheck report errors directly.
package check

import (
	"filament/internal/ir"
)

// appendAssert adds prop as an assertion unless it is trivially true.
func appendAssert(cmds []ir.Command, c *ir.Component, prop ir.PropIdx, reason ir.Reason) []ir.Command {
	if prop.IsTrue(c) {
		return cmds
	}
	return append(cmds, ir.AssertFact(prop, c.AddInfo(ir.AssertInfo(reason))))
}

// BundleType is the liveness of the sub-bundle selected by an access. The
// index parameters of the port are reused; in each dimension index i of the
// access corresponds to index i+start of the port.
func BundleType(c *ir.Component, a ir.Access) ir.Liveness {
	live := c.Ports.Get(a.Port).Live
	if len(a.Ranges) != live.Dims() {
		c.InternalError("access of " + c.DisplayPort(a.Port) + " does not match its dimensions")
	}
	binding := make(map[ir.ParamIdx]ir.ExprIdx, len(a.Ranges))
	lens := make([]ir.ExprIdx, len(a.Ranges))
	for i, r := range a.Ranges {
		idx := live.Idxs[i]
		if c.IsSucc(r.Start, r.End) {
			binding[idx] = r.Start
		} else {
			binding[idx] = c.ParamRef(idx).Add(r.Start, c)
		}
		lens[i] = r.End.Sub(r.Start, c)
	}
	rng := c.SubstRange(live.Range, func(p ir.ParamIdx) (ir.ExprIdx, bool) {
		e, ok := binding[p]
		return e, ok
	})
	return ir.Liveness{Idxs: live.Idxs, Lens: lens, Range: rng}
}

// inRange states that every index of the bundle type is within its length.
func inRange(c *ir.Component, live ir.Liveness) ir.PropIdx {
	prop := c.TrueProp()
	for i, idx := range live.Idxs {
		prop = prop.And(c.ParamRef(idx).Lt(live.Lens[i], c), c)
	}
	return prop
}

// cardinality is the number of elements selected by an access.
func cardinality(c *ir.Component, a ir.Access) ir.ExprIdx {
	n := c.Num(1)
	for _, r := range a.Ranges {
		n = n.Mul(r.End.Sub(r.Start, c), c)
	}
	return n
}

// existAssumes conjoins the constraints on the existential parameters.
func existAssumes(c *ir.Component) ir.PropIdx {
	prop := c.TrueProp()
	for _, l := range c.AllExistAssumes() {
		prop = prop.And(l.Prop, c)
	}
	return prop
}
