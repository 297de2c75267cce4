package check

import (
	"fmt"

	"filament/internal/diag"
	"filament/internal/ir"
	"filament/internal/source"
	"filament/internal/visitor"
)

// AssignCheck makes sure every element of every port the body must drive
// is written exactly once. It runs on monomorphized components, where all
// lengths and access bounds are concrete.
type AssignCheck struct {
	visitor.Base
	rep *diag.Counter

	// writes records the assignment sites of each element.
	writes map[element][]source.Span
	order  []element
}

type element struct {
	port ir.PortIdx
	idx  string
}

func NewAssignCheck(rep diag.Reporter) *AssignCheck {
	return &AssignCheck{rep: diag.NewCounter(rep)}
}

func (*AssignCheck) Name() string { return "assign-check" }

func (a *AssignCheck) ClearData() {
	a.writes = make(map[element][]source.Span)
	a.order = nil
}

func (a *AssignCheck) AfterTraversal() (uint64, bool) {
	n := a.rep.Errors()
	return n, n > 0
}

func concrete(c *ir.Component, e ir.ExprIdx, what string) uint64 {
	v, ok := c.EvalExpr(e).AsConcrete(c)
	if !ok {
		c.InternalError(fmt.Sprintf("%s `%s' is not concrete", what, c.DisplayExpr(e)))
	}
	return v
}

// elements enumerates the indices selected by bounds, in row-major order.
func elements(bounds [][2]uint64, fn func(idx string)) {
	var rec func(dim int, prefix string)
	rec = func(dim int, prefix string) {
		if dim == len(bounds) {
			fn(prefix)
			return
		}
		for i := bounds[dim][0]; i < bounds[dim][1]; i++ {
			rec(dim+1, fmt.Sprintf("%s{%d}", prefix, i))
		}
	}
	rec(0, "")
}

func (a *AssignCheck) Start(d *visitor.Data) visitor.Action {
	c := d.Comp
	c.Ports.Iter(func(idx ir.PortIdx, p ir.Port) {
		if p.IsSigIn() || p.IsInvOut() {
			return
		}
		bounds := make([][2]uint64, len(p.Live.Lens))
		for i, l := range p.Live.Lens {
			bounds[i] = [2]uint64{0, concrete(c, l, "length")}
		}
		elements(bounds, func(s string) {
			e := element{port: idx, idx: s}
			a.writes[e] = nil
			a.order = append(a.order, e)
		})
	})
	return visitor.Continue
}

func (a *AssignCheck) Connect(con *ir.Connect, d *visitor.Data) visitor.Action {
	c := d.Comp
	bounds := make([][2]uint64, len(con.Dst.Ranges))
	for i, r := range con.Dst.Ranges {
		bounds[i] = [2]uint64{concrete(c, r.Start, "access start"), concrete(c, r.End, "access end")}
	}
	loc := c.Info(con.Info).Dst
	elements(bounds, func(s string) {
		e := element{port: con.Dst.Port, idx: s}
		if _, ok := a.writes[e]; !ok {
			a.order = append(a.order, e)
		}
		a.writes[e] = append(a.writes[e], loc)
	})
	return visitor.Continue
}

func (a *AssignCheck) End(d *visitor.Data) {
	c := d.Comp
	for _, e := range a.order {
		sites := a.writes[e]
		if len(sites) == 1 {
			continue
		}
		port := c.Ports.Get(e.port)
		name := c.DisplayPort(e.port) + e.idx
		code, what := diag.ChkMultipleAssigned, "is assigned to multiple times"
		if len(sites) == 0 {
			code, what = diag.ChkNeverAssigned, "is never assigned to"
		}
		b := diag.ReportError(a.rep, code, c.Info(port.Info).Bind, fmt.Sprintf("port %s %s", name, what)).
			WithLabel("defined here")
		missing := 0
		for _, sp := range sites {
			if !sp.IsValid() {
				missing++
				continue
			}
			b.WithNote(sp, "assigned here")
		}
		if missing > 0 && len(sites) > 1 {
			b.WithNote(source.NoSpan, fmt.Sprintf("also assigned in %d other %s", missing, plural(missing, "location")))
		}
		b.Emit()
	}
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}

func (e element) String() string { return e.port.String() + e.idx }
