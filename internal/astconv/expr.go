package astconv

import (
	"filament/internal/ast"
	"filament/internal/diag"
	"filament/internal/ir"
)

var binOps = map[ast.Op]ir.Op{
	ast.OpAdd: ir.OpAdd,
	ast.OpSub: ir.OpSub,
	ast.OpMul: ir.OpMul,
	ast.OpDiv: ir.OpDiv,
	ast.OpMod: ir.OpMod,
}

var cmpOps = map[ast.Cmp]ir.Cmp{
	ast.CmpGt:  ir.CmpGt,
	ast.CmpGte: ir.CmpGte,
	ast.CmpEq:  ir.CmpEq,
}

var builtins = map[string]ir.FnOp{}

func init() {
	for _, f := range []ir.FnOp{ir.FnPow2, ir.FnLog2, ir.FnSinB, ir.FnCosB, ir.FnBitRev} {
		builtins[f.String()] = f
	}
}

func (b *builder) expr(e *ast.Expr) (ir.ExprIdx, error) {
	c := b.comp
	switch e.Kind {
	case ast.ExprConcrete:
		return c.Num(e.Value), nil
	case ast.ExprParam:
		if idx, ok := b.scope.param(e.Name.Name); ok {
			return idx, nil
		}
		return ir.UnknownExpr, b.errorf(diag.InpUnknownName, e.Name.Span, "undefined parameter `%s'", e.Name.Name)
	case ast.ExprParamAccess:
		inst, ok := b.scope.inst(e.Inst.Name)
		if !ok {
			return ir.UnknownExpr, b.errorf(diag.InpUnknownName, e.Inst.Span, "undefined instance `%s'", e.Inst.Name)
		}
		if idx, ok := b.instParams[instParam{inst, e.Name.Name}]; ok {
			return idx, nil
		}
		return ir.UnknownExpr, b.errorf(diag.InpUnknownName, e.Name.Span,
			"instance `%s' has no existential parameter `%s'", e.Inst.Name, e.Name.Name)
	case ast.ExprBin:
		l, err := b.expr(e.Args[0])
		if err != nil {
			return ir.UnknownExpr, err
		}
		r, err := b.expr(e.Args[1])
		if err != nil {
			return ir.UnknownExpr, err
		}
		return c.AddExpr(ir.BinExpr(binOps[e.Op], l, r)), nil
	case ast.ExprApp:
		fn, ok := builtins[e.Name.Name]
		if !ok {
			return ir.UnknownExpr, b.errorf(diag.InpUnknownName, e.Name.Span, "unknown function `%s'", e.Name.Name)
		}
		if len(e.Args) != fn.Arity() {
			return ir.UnknownExpr, b.errorf(diag.InpArity, e.Span,
				"`%s' takes %d arguments but %d were provided", fn, fn.Arity(), len(e.Args))
		}
		args := make([]ir.ExprIdx, len(e.Args))
		for i, a := range e.Args {
			idx, err := b.expr(a)
			if err != nil {
				return ir.UnknownExpr, err
			}
			args[i] = idx
		}
		return c.AddExpr(ir.FnExpr(fn, args...)), nil
	case ast.ExprIf:
		cond, err := b.cons(e.Cond)
		if err != nil {
			return ir.UnknownExpr, err
		}
		then, err := b.expr(e.Args[0])
		if err != nil {
			return ir.UnknownExpr, err
		}
		alt, err := b.expr(e.Args[1])
		if err != nil {
			return ir.UnknownExpr, err
		}
		return c.AddExpr(ir.IfExpr(cond, then, alt)), nil
	}
	panic("astconv: unknown expression kind")
}

func (b *builder) cons(c *ast.Constraint) (ir.PropIdx, error) {
	l, err := b.expr(c.Left)
	if err != nil {
		return ir.UnknownProp, err
	}
	r, err := b.expr(c.Right)
	if err != nil {
		return ir.UnknownProp, err
	}
	return b.comp.AddProp(ir.CmpProp(cmpOps[c.Op], l, r)), nil
}

func (b *builder) timeCons(c *ast.TimeConstraint) (ir.PropIdx, error) {
	l, err := b.time(&c.Left)
	if err != nil {
		return ir.UnknownProp, err
	}
	r, err := b.time(&c.Right)
	if err != nil {
		return ir.UnknownProp, err
	}
	return b.comp.AddProp(ir.TimeCmpProp(cmpOps[c.Op], l, r)), nil
}

func (b *builder) implication(i *ast.Implication) (ir.PropIdx, error) {
	cons, err := b.cons(&i.Cons)
	if err != nil || i.Guard == nil {
		return cons, err
	}
	guard, err := b.cons(i.Guard)
	if err != nil {
		return ir.UnknownProp, err
	}
	return guard.Implies(cons, b.comp), nil
}

func (b *builder) time(t *ast.Time) (ir.TimeIdx, error) {
	ev, ok := b.events[t.Event.Name]
	if !ok {
		return ir.UnknownTime, b.errorf(diag.InpUnknownName, t.Event.Span, "undefined event `%s'", t.Event.Name)
	}
	off := b.comp.Num(0)
	if t.Offset != nil {
		var err error
		if off, err = b.expr(t.Offset); err != nil {
			return ir.UnknownTime, err
		}
	}
	return b.comp.AddTime(ir.Time{Event: ev, Offset: off}), nil
}

func (b *builder) timeSub(ts ast.TimeSub) (ir.TimeSub, error) {
	if !ts.IsSym() {
		e, err := b.expr(ts.Unit)
		return ir.UnitSub(e), err
	}
	l, err := b.time(ts.L)
	if err != nil {
		return ir.TimeSub{}, err
	}
	r, err := b.time(ts.R)
	if err != nil {
		return ir.TimeSub{}, err
	}
	return l.Sub(r, b.comp), nil
}

func (b *builder) rng(r *ast.Range) (ir.Range, error) {
	s, err := b.time(&r.Start)
	if err != nil {
		return ir.Range{}, err
	}
	e, err := b.time(&r.End)
	if err != nil {
		return ir.Range{}, err
	}
	return ir.Range{Start: s, End: e}, nil
}
