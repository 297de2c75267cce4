package ir

// Bind is an ordered list of bindings used as a scoped environment: later
// pushes shadow earlier ones and PopN undoes a scope.
type Bind[K comparable, V any] struct {
	items []bindEntry[K, V]
}

type bindEntry[K comparable, V any] struct {
	key K
	val V
}

func NewBind[K comparable, V any]() *Bind[K, V] { return &Bind[K, V]{} }

func (b *Bind[K, V]) Len() int { return len(b.items) }

func (b *Bind[K, V]) Push(k K, v V) {
	b.items = append(b.items, bindEntry[K, V]{key: k, val: v})
}

// PopN removes the last n bindings.
func (b *Bind[K, V]) PopN(n int) {
	if n > len(b.items) {
		panic("ir: popping more bindings than pushed")
	}
	b.items = b.items[:len(b.items)-n]
}

// Get returns the innermost binding of k.
func (b *Bind[K, V]) Get(k K) (V, bool) {
	for i := len(b.items) - 1; i >= 0; i-- {
		if b.items[i].key == k {
			return b.items[i].val, true
		}
	}
	var zero V
	return zero, false
}

// Lookup adapts Get to the substitution callbacks below.
func (b *Bind[K, V]) Lookup() func(K) (V, bool) { return b.Get }

// SubstExpr replaces parameters in e according to fn and re-interns the
// result so that it is simplified again.
func (c *Component) SubstExpr(e ExprIdx, fn func(ParamIdx) (ExprIdx, bool)) ExprIdx {
	ex := c.Expr(e)
	switch ex.Kind {
	case ExprParam:
		if v, ok := fn(ex.Param); ok {
			return v
		}
		return e
	case ExprConcrete:
		return e
	case ExprBin:
		l := c.SubstExpr(ex.L, fn)
		r := c.SubstExpr(ex.R, fn)
		return c.AddExpr(BinExpr(ex.Op, l, r))
	case ExprFn:
		args := make([]ExprIdx, 0, ex.NArgs)
		for _, a := range ex.ArgList() {
			args = append(args, c.SubstExpr(a, fn))
		}
		return c.AddExpr(FnExpr(ex.Fn, args...))
	case ExprIf:
		cond := c.SubstProp(ex.Cond, fn)
		return c.AddExpr(IfExpr(cond, c.SubstExpr(ex.L, fn), c.SubstExpr(ex.R, fn)))
	}
	return e
}

// SubstTime substitutes parameters in the offset of t.
func (c *Component) SubstTime(t TimeIdx, fn func(ParamIdx) (ExprIdx, bool)) TimeIdx {
	tm := c.Time(t)
	return c.AddTime(Time{Event: tm.Event, Offset: c.SubstExpr(tm.Offset, fn)})
}

func (c *Component) SubstTimeSub(ts TimeSub, fn func(ParamIdx) (ExprIdx, bool)) TimeSub {
	if ts.Sym {
		return c.SubstTime(ts.L, fn).Sub(c.SubstTime(ts.R, fn), c)
	}
	return UnitSub(c.SubstExpr(ts.Unit, fn))
}

func (c *Component) SubstRange(r Range, fn func(ParamIdx) (ExprIdx, bool)) Range {
	return Range{Start: c.SubstTime(r.Start, fn), End: c.SubstTime(r.End, fn)}
}

// SubstProp substitutes parameters inside a proposition.
func (c *Component) SubstProp(p PropIdx, fn func(ParamIdx) (ExprIdx, bool)) PropIdx {
	pr := c.Prop(p)
	switch pr.Kind {
	case PropTrue, PropFalse:
		return p
	case PropCmp:
		return c.AddProp(CmpProp(pr.Op, c.SubstExpr(pr.L, fn), c.SubstExpr(pr.R, fn)))
	case PropTimeCmp:
		return c.AddProp(TimeCmpProp(pr.Op, c.SubstTime(pr.TL, fn), c.SubstTime(pr.TR, fn)))
	case PropTimeSubCmp:
		return c.AddProp(TimeSubCmpProp(pr.Op, c.SubstTimeSub(pr.SL, fn), c.SubstTimeSub(pr.SR, fn)))
	case PropNot:
		return c.SubstProp(pr.P, fn).Not(c)
	case PropAnd:
		return c.SubstProp(pr.P, fn).And(c.SubstProp(pr.Q, fn), c)
	case PropOr:
		return c.SubstProp(pr.P, fn).Or(c.SubstProp(pr.Q, fn), c)
	case PropImplies:
		return c.SubstProp(pr.P, fn).Implies(c.SubstProp(pr.Q, fn), c)
	}
	return p
}

// SubstEventTime replaces the event of t: when fn maps the event to a time
// u, the result is u shifted by the offset of t.
func (c *Component) SubstEventTime(t TimeIdx, fn func(EventIdx) (TimeIdx, bool)) TimeIdx {
	tm := c.Time(t)
	u, ok := fn(tm.Event)
	if !ok {
		return t
	}
	return u.Shift(UnitSub(tm.Offset), c)
}
