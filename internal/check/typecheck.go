package check

import (
	"filament/internal/ir"
	"filament/internal/source"
	"filament/internal/visitor"
)

// TypeCheck asserts that bundle accesses are in bounds and well formed,
// that connected ports agree in width and number of elements, and that
// the body satisfies the constraints on existential parameters.
type TypeCheck struct {
	visitor.Base
}

func NewTypeCheck() *TypeCheck { return &TypeCheck{} }

func (*TypeCheck) Name() string { return "type-check" }

// AccessObligations returns the obligations of one access: for each
// dimension, end > start and then start < len && end <= len.
func AccessObligations(c *ir.Component, a ir.Access, loc source.Span) []*ir.Fact {
	port := c.Ports.Get(a.Port)
	if len(a.Ranges) != port.Live.Dims() {
		c.InternalError("access of " + c.DisplayPort(a.Port) + " does not match its dimensions")
	}
	def := c.Info(port.Info).Bind
	wf := c.AddInfo(ir.AssertInfo(ir.MiscReason("end of port access must be greater than the start", loc)))
	facts := make([]*ir.Fact, 0, 2*len(a.Ranges))
	for i, r := range a.Ranges {
		dimLen := port.Live.Lens[i]
		bounds := c.AddInfo(ir.AssertInfo(ir.InBoundsReason(def, i, loc, dimLen)))
		inRange := r.Start.Lt(dimLen, c).And(r.End.Lte(dimLen, c), c)
		facts = append(facts,
			ir.AssertFact(r.End.Gt(r.Start, c), wf),
			ir.AssertFact(inRange, bounds))
	}
	return facts
}

func accessAsserts(cmds []ir.Command, c *ir.Component, a ir.Access, loc source.Span) []ir.Command {
	for _, f := range AccessObligations(c, a, loc) {
		if !f.Prop.IsTrue(c) {
			cmds = append(cmds, f)
		}
	}
	return cmds
}

func (*TypeCheck) Connect(con *ir.Connect, d *visitor.Data) visitor.Action {
	c := d.Comp
	info := c.Info(con.Info)
	var cmds []ir.Command
	cmds = accessAsserts(cmds, c, con.Src, info.Src)
	cmds = accessAsserts(cmds, c, con.Dst, info.Dst)

	srcW, dstW := c.Ports.Get(con.Src.Port).Width, c.Ports.Get(con.Dst.Port).Width
	cmds = appendAssert(cmds, c, srcW.Equal(dstW, c), ir.BundleWidthReason(info.Dst, info.Src, dstW, srcW))

	srcN, dstN := cardinality(c, con.Src), cardinality(c, con.Dst)
	cmds = appendAssert(cmds, c, srcN.Equal(dstN, c), ir.BundleLenReason(info.Dst, info.Src, dstN, srcN))

	if len(cmds) == 0 {
		return visitor.Continue
	}
	return visitor.AddBefore(cmds...)
}

func (*TypeCheck) Exists(e *ir.Exists, d *visitor.Data) visitor.Action {
	c := d.Comp
	assumes, ok := c.ExistAssumes(e.Param)
	if !ok {
		return visitor.Continue
	}
	bind := c.Info(c.Params.Get(e.Param).Info).Bind
	var cmds []ir.Command
	for _, l := range assumes {
		cmds = appendAssert(cmds, c, l.Prop, ir.ExistsConstraintReason(bind, l.Loc))
	}
	if len(cmds) == 0 {
		return visitor.Continue
	}
	return visitor.AddBefore(cmds...)
}
