package ir

import "fmt"

// Importer copies interned values from one component into another,
// replacing the parameters and events of the source on the way. Results
// are cached per source index, so a sub-expression reached twice is only
// rebuilt once.
type Importer struct {
	From, To *Component
	// Param maps a parameter of From to an expression of To.
	Param func(ParamIdx) (ExprIdx, bool)
	// Event maps an event of From to the time of To it starts at.
	Event func(EventIdx) (TimeIdx, bool)

	local map[ParamIdx]ExprIdx
	exprs map[ExprIdx]ExprIdx
	times map[TimeIdx]TimeIdx
	props map[PropIdx]PropIdx
}

func NewImporter(from, to *Component, param func(ParamIdx) (ExprIdx, bool), event func(EventIdx) (TimeIdx, bool)) *Importer {
	return &Importer{
		From:  from,
		To:    to,
		Param: param,
		Event: event,
		local: make(map[ParamIdx]ExprIdx),
		exprs: make(map[ExprIdx]ExprIdx),
		times: make(map[TimeIdx]TimeIdx),
		props: make(map[PropIdx]PropIdx),
	}
}

// Bind maps p to e, overriding Param.
func (im *Importer) Bind(p ParamIdx, e ExprIdx) { im.local[p] = e }

func (im *Importer) param(p ParamIdx) ExprIdx {
	if e, ok := im.local[p]; ok {
		return e
	}
	if im.Param != nil {
		if e, ok := im.Param(p); ok {
			return e
		}
	}
	im.To.InternalError(fmt.Sprintf("import: parameter %s has no binding", im.From.DisplayParam(p)))
	return UnknownExpr
}

func (im *Importer) Expr(e ExprIdx) ExprIdx {
	if out, ok := im.exprs[e]; ok {
		return out
	}
	var out ExprIdx
	switch ex := im.From.Expr(e); ex.Kind {
	case ExprParam:
		out = im.param(ex.Param)
	case ExprConcrete:
		out = im.To.Num(ex.Value)
	case ExprBin:
		out = im.To.AddExpr(BinExpr(ex.Op, im.Expr(ex.L), im.Expr(ex.R)))
	case ExprFn:
		args := make([]ExprIdx, ex.NArgs)
		for i, a := range ex.ArgList() {
			args[i] = im.Expr(a)
		}
		out = im.To.AddExpr(FnExpr(ex.Fn, args...))
	case ExprIf:
		out = im.To.AddExpr(IfExpr(im.Prop(ex.Cond), im.Expr(ex.L), im.Expr(ex.R)))
	}
	im.exprs[e] = out
	return out
}

// Time rebases a time of From onto the time its event is mapped to.
func (im *Importer) Time(t TimeIdx) TimeIdx {
	if out, ok := im.times[t]; ok {
		return out
	}
	tm := im.From.Time(t)
	var base TimeIdx
	ok := false
	if im.Event != nil {
		base, ok = im.Event(tm.Event)
	}
	if !ok {
		im.To.InternalError(fmt.Sprintf("import: event %s has no binding", im.From.DisplayEvent(tm.Event)))
	}
	out := base.Shift(UnitSub(im.Expr(tm.Offset)), im.To)
	im.times[t] = out
	return out
}

func (im *Importer) TimeSub(ts TimeSub) TimeSub {
	if ts.Sym {
		return im.Time(ts.L).Sub(im.Time(ts.R), im.To)
	}
	return UnitSub(im.Expr(ts.Unit))
}

func (im *Importer) Range(r Range) Range {
	return Range{Start: im.Time(r.Start), End: im.Time(r.End)}
}

func (im *Importer) Prop(p PropIdx) PropIdx {
	if out, ok := im.props[p]; ok {
		return out
	}
	pr := im.From.Prop(p)
	var out PropIdx
	switch pr.Kind {
	case PropTrue:
		out = im.To.TrueProp()
	case PropFalse:
		out = im.To.FalseProp()
	case PropCmp:
		out = im.To.AddProp(CmpProp(pr.Op, im.Expr(pr.L), im.Expr(pr.R)))
	case PropTimeCmp:
		out = im.To.AddProp(TimeCmpProp(pr.Op, im.Time(pr.TL), im.Time(pr.TR)))
	case PropTimeSubCmp:
		out = im.To.AddProp(TimeSubCmpProp(pr.Op, im.TimeSub(pr.SL), im.TimeSub(pr.SR)))
	case PropNot:
		out = im.Prop(pr.P).Not(im.To)
	case PropAnd:
		out = im.Prop(pr.P).And(im.Prop(pr.Q), im.To)
	case PropOr:
		out = im.Prop(pr.P).Or(im.Prop(pr.Q), im.To)
	case PropImplies:
		out = im.Prop(pr.P).Implies(im.Prop(pr.Q), im.To)
	}
	im.props[p] = out
	return out
}

// Port creates a copy of port p of From in To with the given owner. The
// bundle index parameters of p get fresh counterparts owned by the copy.
func (im *Importer) Port(p PortIdx, owner PortOwner, info InfoIdx) PortIdx {
	src := im.From.Ports.Get(p)
	idx := im.To.Ports.Add(Port{Owner: owner, Info: info})
	live := Liveness{
		Idxs: make([]ParamIdx, len(src.Live.Idxs)),
		Lens: make([]ExprIdx, len(src.Live.Lens)),
	}
	for i, old := range src.Live.Idxs {
		np := im.To.Params.Add(Param{Owner: BundleParam(idx), Info: im.importInfo(im.From.Params.Get(old).Info)})
		live.Idxs[i] = np
		im.Bind(old, im.To.ParamRef(np))
	}
	for i, l := range src.Live.Lens {
		live.Lens[i] = im.Expr(l)
	}
	live.Range = im.Range(src.Live.Range)
	port := im.To.Ports.Mut(idx)
	port.Width = im.Expr(src.Width)
	port.Live = live
	return idx
}

// importInfo copies the provenance of a parameter. Reasons are not copied;
// they mention expressions of From.
func (im *Importer) importInfo(id InfoIdx) InfoIdx {
	info := im.From.Info(id)
	if info.Kind == InfoEmpty || info.Kind == InfoAssert {
		return UnknownInfo
	}
	return im.To.AddInfo(info)
}
