// Package bundle removes bundles from monomorphized components. Every
// signature and invocation bundle is split into scalar ports, one per
// element, and local bundles disappear into the connections that read
// them.
package bundle

import (
	"fmt"
	"maps"

	"filament/internal/diag"
	"filament/internal/ir"
	"filament/internal/source"
	"filament/internal/visitor"
)

const Name = "bundle-elim"

// split is the scalar ports that replace a bundle, in row-major order.
type split struct {
	lens  []uint64
	ports []ir.PortIdx
}

func (s *split) total() uint64 {
	n := uint64(1)
	for _, l := range s.lens {
		n *= l
	}
	return n
}

// at returns the port of element idx. A kept bundle has a single port.
func (s *split) at(idx []uint64) ir.PortIdx {
	if len(s.ports) == 1 {
		return s.ports[0]
	}
	flat := uint64(0)
	for i, v := range idx {
		flat = flat*s.lens[i] + v
	}
	return s.ports[flat]
}

// element is one element of a bundle.
type element struct {
	port ir.PortIdx
	idx  []uint64
}

func (e element) key() string { return fmt.Sprintf("%s%v", e.port, e.idx) }

// Elim splits bundles. Signature ports of the entrypoint and of external
// components are kept: their interface is fixed, so they must already
// have a single element.
type Elim struct {
	visitor.Base
	rep *diag.Counter

	// sigs holds the split signature ports of every visited component.
	sigs map[ir.CompIdx]map[ir.PortIdx]*split

	ports  map[ir.PortIdx]*split
	locals map[ir.PortIdx]bool
	// alias maps an element of a local bundle to the element written to it.
	alias map[string]element
}

func NewElim(rep diag.Reporter) *Elim {
	return &Elim{
		rep:  diag.NewCounter(rep),
		sigs: make(map[ir.CompIdx]map[ir.PortIdx]*split),
	}
}

func (*Elim) Name() string { return Name }

func (e *Elim) ClearData() {
	e.ports = make(map[ir.PortIdx]*split)
	e.locals = make(map[ir.PortIdx]bool)
	e.alias = make(map[string]element)
}

func (e *Elim) AfterTraversal() (uint64, bool) {
	n := e.rep.Errors()
	return n, n > 0
}

func concrete(c *ir.Component, x ir.ExprIdx, what string) uint64 {
	v, ok := c.EvalExpr(x).AsConcrete(c)
	if !ok {
		c.InternalError(fmt.Sprintf("%s `%s' is not concrete", what, c.DisplayExpr(x)))
	}
	return v
}

func lens(c *ir.Component, p ir.Port) []uint64 {
	out := make([]uint64, len(p.Live.Lens))
	for i, l := range p.Live.Lens {
		out[i] = concrete(c, l, "bundle length")
	}
	return out
}

// indices enumerates the elements selected by bounds in row-major order.
func indices(bounds [][2]uint64) [][]uint64 {
	out := [][]uint64{nil}
	for _, b := range bounds {
		var next [][]uint64
		for _, prefix := range out {
			for i := b[0]; i < b[1]; i++ {
				next = append(next, append(append([]uint64(nil), prefix...), i))
			}
		}
		out = next
	}
	return out
}

func accessed(c *ir.Component, a ir.Access) [][]uint64 {
	bounds := make([][2]uint64, len(a.Ranges))
	for i, r := range a.Ranges {
		bounds[i] = [2]uint64{concrete(c, r.Start, "access start"), concrete(c, r.End, "access end")}
	}
	return indices(bounds)
}

// settle evaluates the offset of a time once bundle indices are replaced.
func settle(c *ir.Component, t ir.TimeIdx) ir.TimeIdx {
	tm := c.Time(t)
	if _, ok := tm.Offset.AsConcrete(c); ok {
		return t
	}
	return c.AddTime(ir.Time{Event: tm.Event, Offset: c.EvalExpr(tm.Offset)})
}

// rangeAt is the live range of element idx of p.
func rangeAt(c *ir.Component, p ir.Port, idx []uint64) ir.Range {
	r := c.SubstRange(p.Live.Range, func(q ir.ParamIdx) (ir.ExprIdx, bool) {
		for i, bi := range p.Live.Idxs {
			if bi == q && i < len(idx) {
				return c.Num(idx[i]), true
			}
		}
		return ir.UnknownExpr, false
	})
	return ir.Range{Start: settle(c, r.Start), End: settle(c, r.End)}
}

// divide replaces port idx with one scalar port per element and deletes it
// along with its index parameters.
func (e *Elim) divide(c *ir.Component, idx ir.PortIdx, owner func(i int) ir.PortOwner) *split {
	p := c.Ports.Get(idx)
	s := &split{lens: lens(c, p)}
	info := c.Info(p.Info)
	name, named := "", c.Names != nil && info.Name != source.NoName
	if named {
		name = c.Names.MustLookup(info.Name)
	}
	var srcName source.NameID
	hasSrc := false
	if c.Src != nil {
		srcName, hasSrc = c.Src.Ports[idx]
		delete(c.Src.Ports, idx)
	}
	idxInfo := ir.UnknownInfo
	if len(p.Live.Idxs) > 0 {
		idxInfo = c.Params.Get(p.Live.Idxs[0]).Info
	}

	all := indices(boundsOf(s.lens))
	for i, el := range all {
		pi := info
		if named && len(all) > 1 {
			pi.Name = c.Names.Intern(fmt.Sprintf("%s_%d", name, i))
		}
		np := c.Ports.Add(ir.Port{Owner: owner(i), Width: p.Width, Info: c.AddInfo(pi)})
		dummy := c.Params.Add(ir.Param{Owner: ir.BundleParam(np), Info: idxInfo})
		c.Ports.Mut(np).Live = ir.Liveness{
			Idxs:  []ir.ParamIdx{dummy},
			Lens:  []ir.ExprIdx{c.Num(1)},
			Range: rangeAt(c, p, el),
		}
		if hasSrc {
			c.Src.Ports[np] = srcName
			if len(all) > 1 {
				c.Src.Ports[np] = pi.Name
			}
		}
		s.ports = append(s.ports, np)
	}
	remove(c, idx)
	return s
}

func boundsOf(lens []uint64) [][2]uint64 {
	out := make([][2]uint64, len(lens))
	for i, l := range lens {
		out[i] = [2]uint64{0, l}
	}
	return out
}

func remove(c *ir.Component, idx ir.PortIdx) {
	p := c.Ports.Get(idx)
	for _, q := range p.Live.Idxs {
		c.Params.Delete(q)
	}
	c.Ports.Delete(idx)
}

// keep leaves a port of a fixed interface in place, resolving its range
// for its only element.
func (e *Elim) keep(c *ir.Component, idx ir.PortIdx, what string) *split {
	p := c.Ports.Get(idx)
	s := &split{lens: lens(c, p), ports: []ir.PortIdx{idx}}
	if n := s.total(); n != 1 {
		diag.ReportError(e.rep, diag.MonoBundleInterface, c.Info(p.Info).Bind,
			fmt.Sprintf("port %s of %s is a bundle of %d elements", c.DisplayPort(idx), what, n)).
			WithLabel("defined here").
			WithNote(source.NoSpan, "the interface of this component cannot be changed").Emit()
		return s
	}
	c.Ports.Mut(idx).Live.Range = rangeAt(c, p, make([]uint64, len(s.lens)))
	return s
}

// sig returns the split of a signature port of another component.
// External components are never visited, so their ports are kept.
func (e *Elim) sig(d *visitor.Data, f ir.Foreign[ir.PortIdx]) *split {
	m, ok := e.sigs[f.Owner]
	if !ok {
		m = make(map[ir.PortIdx]*split)
		e.sigs[f.Owner] = m
	}
	if s, ok := m[f.Key]; ok {
		return s
	}
	callee := d.Get(f.Owner)
	if !callee.IsExt() {
		callee.InternalError(fmt.Sprintf("port %s was not split before its use", callee.DisplayPort(f.Key)))
	}
	p := callee.Ports.Get(f.Key)
	s := &split{lens: lens(callee, p), ports: []ir.PortIdx{f.Key}}
	if n := s.total(); n != 1 {
		diag.ReportError(e.rep, diag.MonoBundleInterface, callee.Info(p.Info).Bind,
			fmt.Sprintf("port %s of external %s is a bundle of %d elements", callee.DisplayPort(f.Key), d.Ctx.CompName(f.Owner), n)).
			WithLabel("defined here").Emit()
	}
	m[f.Key] = s
	return s
}

func (e *Elim) invoke(d *visitor.Data, inv ir.InvIdx) {
	c := d.Comp
	var ports []ir.PortIdx
	for _, p := range c.Invocations.Get(inv).Ports {
		owner := c.Ports.Get(p).Owner
		base := e.sig(d, owner.Base)
		s := e.divide(c, p, func(i int) ir.PortOwner {
			key := base.ports[0]
			if i < len(base.ports) {
				key = base.ports[i]
			}
			return ir.InvOwner(inv, owner.Dir, ir.NewForeign(key, owner.Base.Owner))
		})
		e.ports[p] = s
		ports = append(ports, s.ports...)
	}
	c.Invocations.Mut(inv).Ports = ports
}

// aliases records, for every element of a local bundle, the element that
// is written to it.
func (e *Elim) aliases(c *ir.Component) {
	for _, cmd := range c.Cmds {
		con, ok := cmd.(*ir.Connect)
		if !ok || !e.locals[con.Dst.Port] {
			continue
		}
		dst, src := accessed(c, con.Dst), accessed(c, con.Src)
		if len(dst) != len(src) {
			c.InternalError(fmt.Sprintf("connect %s = %s selects %d and %d elements", c.DisplayAccess(con.Dst), c.DisplayAccess(con.Src), len(dst), len(src)))
		}
		for i := range dst {
			e.alias[element{con.Dst.Port, dst[i]}.key()] = element{con.Src.Port, src[i]}
		}
	}
}

func (e *Elim) Start(d *visitor.Data) visitor.Action {
	c := d.Comp
	fixed := d.Ctx.Entrypoint != nil && d.Ctx.Entrypoint.Comp == d.Idx
	sigs := make(map[ir.PortIdx]*split)
	for _, idx := range c.Ports.Idxs() {
		p := c.Ports.Get(idx)
		switch {
		case p.IsSig() && fixed:
			sigs[idx] = e.keep(c, idx, "entrypoint "+d.Ctx.CompName(d.Idx))
		case p.IsSig():
			sigs[idx] = e.divide(c, idx, func(int) ir.PortOwner { return p.Owner })
		case p.IsLocal():
			e.locals[idx] = true
		}
	}
	e.sigs[d.Idx] = sigs
	maps.Copy(e.ports, sigs)

	for _, inv := range c.Invocations.Idxs() {
		e.invoke(d, inv)
	}
	e.aliases(c)
	for idx := range e.locals {
		remove(c, idx)
	}
	return visitor.Continue
}

// resolve maps the elements of an access to scalar ports, following local
// bundles to the element that was written to them.
func (e *Elim) resolve(c *ir.Component, a ir.Access) []ir.PortIdx {
	var out []ir.PortIdx
	for _, idx := range accessed(c, a) {
		el := element{a.Port, idx}
		for steps := 0; ; steps++ {
			next, ok := e.alias[el.key()]
			if !ok {
				break
			}
			if steps > len(e.alias) {
				c.InternalError(fmt.Sprintf("local bundle element %s is defined in terms of itself", el.key()))
			}
			el = next
		}
		s, ok := e.ports[el.port]
		if !ok {
			c.InternalError(fmt.Sprintf("local bundle element %s is read but never written", el.key()))
		}
		out = append(out, s.at(el.idx))
	}
	return out
}

func scalar(c *ir.Component, p ir.PortIdx) ir.Access {
	dims := c.Ports.Get(p).Live.Dims()
	a := ir.Access{Port: p, Ranges: make([]ir.AccessRange, dims)}
	for i := range a.Ranges {
		a.Ranges[i] = ir.AccessRange{Start: c.Num(0), End: c.Num(1)}
	}
	return a
}

func (e *Elim) Connect(con *ir.Connect, d *visitor.Data) visitor.Action {
	c := d.Comp
	if e.locals[con.Dst.Port] {
		return visitor.Change()
	}
	dst, src := e.resolve(c, con.Dst), e.resolve(c, con.Src)
	if len(dst) != len(src) {
		c.InternalError(fmt.Sprintf("connect %s = %s selects %d and %d elements", c.DisplayAccess(con.Dst), c.DisplayAccess(con.Src), len(dst), len(src)))
	}
	cmds := make([]ir.Command, len(dst))
	for i := range dst {
		cmds[i] = &ir.Connect{Dst: scalar(c, dst[i]), Src: scalar(c, src[i]), Info: con.Info}
	}
	return visitor.Change(cmds...)
}

func (*Elim) BundleDef(ir.PortIdx, *visitor.Data) visitor.Action { return visitor.Change() }

// Fact drops facts about bundle elements. They were proved before
// monomorphization and their indices no longer exist.
func (*Elim) Fact(f *ir.Fact, d *visitor.Data) visitor.Action {
	c := d.Comp
	for _, q := range c.PropParams(f.Prop) {
		if !c.Params.Valid(q) || c.Params.Get(q).Owner.Kind == ir.ParamBundle {
			return visitor.Change()
		}
	}
	return visitor.Continue
}
