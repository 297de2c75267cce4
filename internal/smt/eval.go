package smt

import "filament/internal/ir"

// Eval decides p when its value does not depend on any free parameter or
// event. Let-bound parameters are replaced by their values. ok is false
// when p is not ground.
func Eval(c *ir.Component, p ir.PropIdx) (value, ok bool) {
	g := ground{c: c}
	return g.prop(p)
}

type ground struct {
	c *ir.Component
}

func (g ground) expr(x ir.ExprIdx) (uint64, bool) {
	c := g.c
	ex := c.Expr(x)
	switch ex.Kind {
	case ir.ExprConcrete:
		return ex.Value, true
	case ir.ExprParam:
		owner := c.Params.Get(ex.Param).Owner
		if owner.Kind != ir.ParamLet || ir.IsUnknown(owner.Bind) {
			return 0, false
		}
		return g.expr(owner.Bind)
	case ir.ExprBin:
		l, lok := g.expr(ex.L)
		r, rok := g.expr(ex.R)
		if !lok || !rok {
			return 0, false
		}
		// interning folds concrete operands
		return c.AddExpr(ir.BinExpr(ex.Op, c.Num(l), c.Num(r))).AsConcrete(c)
	case ir.ExprFn:
		args := make([]ir.ExprIdx, 0, ex.NArgs)
		for _, a := range ex.ArgList() {
			v, ok := g.expr(a)
			if !ok {
				return 0, false
			}
			args = append(args, c.Num(v))
		}
		return c.AddExpr(ir.FnExpr(ex.Fn, args...)).AsConcrete(c)
	case ir.ExprIf:
		cond, ok := g.prop(ex.Cond)
		if !ok {
			return 0, false
		}
		if cond {
			return g.expr(ex.L)
		}
		return g.expr(ex.R)
	}
	return 0, false
}

func compare(op ir.Cmp, l, r uint64) bool {
	switch op {
	case ir.CmpGt:
		return l > r
	case ir.CmpGte:
		return l >= r
	}
	return l == r
}

func (g ground) cmp(op ir.Cmp, l, r ir.ExprIdx) (bool, bool) {
	lv, lok := g.expr(l)
	rv, rok := g.expr(r)
	if !lok || !rok {
		return false, false
	}
	return compare(op, lv, rv), true
}

func (g ground) prop(p ir.PropIdx) (bool, bool) {
	c := g.c
	pr := c.Prop(p)
	switch pr.Kind {
	case ir.PropTrue:
		return true, true
	case ir.PropFalse:
		return false, true
	case ir.PropCmp:
		return g.cmp(pr.Op, pr.L, pr.R)
	case ir.PropTimeCmp:
		l, r := c.Time(pr.TL), c.Time(pr.TR)
		if l.Event != r.Event {
			return false, false
		}
		return g.cmp(pr.Op, l.Offset, r.Offset)
	case ir.PropTimeSubCmp:
		if pr.SL.Sym || pr.SR.Sym {
			return false, false
		}
		return g.cmp(pr.Op, pr.SL.Unit, pr.SR.Unit)
	case ir.PropNot:
		v, ok := g.prop(pr.P)
		return !v, ok
	case ir.PropAnd:
		l, lok := g.prop(pr.P)
		if lok && !l {
			return false, true
		}
		r, rok := g.prop(pr.Q)
		if rok && !r {
			return false, true
		}
		return true, lok && rok
	case ir.PropOr:
		l, lok := g.prop(pr.P)
		if lok && l {
			return true, true
		}
		r, rok := g.prop(pr.Q)
		if rok && r {
			return true, true
		}
		return false, lok && rok
	case ir.PropImplies:
		l, lok := g.prop(pr.P)
		if lok && !l {
			return true, true
		}
		r, rok := g.prop(pr.Q)
		if rok && r {
			return true, true
		}
		return false, lok && rok
	}
	return false, false
}
