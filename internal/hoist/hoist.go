// Package hoist flattens the checked facts of a component body into
// top-level obligations guarded by their path conditions.
package hoist

import "filament/internal/ir"

type hoister struct {
	comp *ir.Component
	// frames records the length of pathCond when each scope was entered.
	frames   []int
	pathCond []ir.PropIdx
	facts    []*ir.Fact
}

// Facts returns one obligation `pathcond => P` for every assertion P in
// the body of c, in program order. The path condition of an assertion is
// the conjunction of the loop bounds and branch conditions enclosing it and
// the assumptions and existential bindings of every enclosing scope. The
// body itself is not modified. Obligations that simplify to true are
// dropped.
func Facts(c *ir.Component) []*ir.Fact {
	h := &hoister{comp: c}
	h.cmds(c.Cmds)
	if len(h.frames) != 0 {
		c.InternalError("unbalanced scopes while hoisting facts")
	}
	return h.facts
}

func (h *hoister) push() { h.frames = append(h.frames, len(h.pathCond)) }

func (h *hoister) pop() {
	n := h.frames[len(h.frames)-1]
	h.frames = h.frames[:len(h.frames)-1]
	h.pathCond = h.pathCond[:n]
}

func (h *hoister) cond() ir.PropIdx {
	pc := h.comp.TrueProp()
	for _, p := range h.pathCond {
		pc = pc.And(p, h.comp)
	}
	return pc
}

func (h *hoister) cmds(cmds []ir.Command) {
	c := h.comp
	// assumptions hold for the whole scope they are declared in
	for _, cmd := range cmds {
		switch cmd := cmd.(type) {
		case *ir.Fact:
			if cmd.IsAssume() {
				h.pathCond = append(h.pathCond, cmd.Prop)
			}
		case *ir.Exists:
			h.pathCond = append(h.pathCond, c.ParamRef(cmd.Param).Equal(cmd.Expr, c))
		}
	}

	for _, cmd := range cmds {
		switch cmd := cmd.(type) {
		case *ir.ForLoop:
			h.push()
			idx := c.ParamRef(cmd.Index)
			h.pathCond = append(h.pathCond, idx.Gte(cmd.Start, c).And(idx.Lt(cmd.End, c), c))
			h.cmds(cmd.Body)
			h.pop()
		case *ir.If:
			h.push()
			h.pathCond = append(h.pathCond, cmd.Cond)
			h.cmds(cmd.Then)
			h.pop()

			h.push()
			h.pathCond = append(h.pathCond, cmd.Cond.Not(c))
			h.cmds(cmd.Alt)
			h.pop()
		case *ir.Fact:
			if !cmd.IsAssert() {
				continue
			}
			if f, ok := c.Assert(h.cond().Implies(cmd.Prop, c), cmd.Reason).(*ir.Fact); ok {
				h.facts = append(h.facts, f)
			}
		}
	}
}
