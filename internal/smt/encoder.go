package smt

import (
	"fmt"
	"math/big"
	"strings"

	"filament/internal/config"
	"filament/internal/ir"
)

// Encoder translates the entities of one component into SMT-LIB2 terms.
// Each entity is defined once, the first time it is needed; the commands
// defining it accumulate until Take is called.
type Encoder struct {
	comp *ir.Component
	// ctx resolves the existential parameters of instances; may be nil.
	ctx    *ir.Context
	solver config.Solver
	bv     uint8

	pending []string

	params map[ir.ParamIdx]string
	events map[ir.EventIdx]string
	exprs  map[ir.ExprIdx]string
	times  map[ir.TimeIdx]string
	props  map[ir.PropIdx]string
	funcs  map[string]bool
	lits   int

	byName map[string]ir.ParamIdx
}

// NewEncoder encodes c for solver. A non-zero bv switches from integers to
// bitvectors of that many bits; arithmetic is done in twice the width so
// that overflow can be ruled out by assertions.
func NewEncoder(c *ir.Component, ctx *ir.Context, solver config.Solver, bv uint8) *Encoder {
	return &Encoder{
		comp:   c,
		ctx:    ctx,
		solver: solver,
		bv:     bv,
		params: make(map[ir.ParamIdx]string),
		events: make(map[ir.EventIdx]string),
		exprs:  make(map[ir.ExprIdx]string),
		times:  make(map[ir.TimeIdx]string),
		props:  make(map[ir.PropIdx]string),
		funcs:  make(map[string]bool),
		byName: make(map[string]ir.ParamIdx),
	}
}

// Take returns the commands emitted since the last call.
func (e *Encoder) Take() []string {
	out := e.pending
	e.pending = nil
	return out
}

func (e *Encoder) emit(cmd string) { e.pending = append(e.pending, cmd) }

// Sort is the sort of every integer quantity.
func (e *Encoder) Sort() string {
	if e.bv == 0 {
		return "Int"
	}
	return fmt.Sprintf("(_ BitVec %d)", 2*int(e.bv))
}

func (e *Encoder) Num(n uint64) string {
	if e.bv == 0 {
		return fmt.Sprint(n)
	}
	return fmt.Sprintf("(_ bv%d %d)", n, 2*int(e.bv))
}

func (e *Encoder) arith(op ir.Op, l, r string) string {
	if e.bv == 0 {
		switch op {
		case ir.OpDiv:
			return App("div", l, r)
		case ir.OpMod:
			return App("mod", l, r)
		}
		return App(op.String(), l, r)
	}
	names := [...]string{ir.OpAdd: "bvadd", ir.OpSub: "bvsub", ir.OpMul: "bvmul", ir.OpDiv: "bvudiv", ir.OpMod: "bvurem"}
	return App(names[op], l, r)
}

func (e *Encoder) cmp(op ir.Cmp, l, r string) string {
	switch op {
	case ir.CmpGt:
		if e.bv != 0 {
			return App("bvugt", l, r)
		}
		return App(">", l, r)
	case ir.CmpGte:
		if e.bv != 0 {
			return App("bvuge", l, r)
		}
		return App(">=", l, r)
	}
	return App("=", l, r)
}

// bound restricts an integer quantity to the natural numbers, or to the
// representable range in bitvector mode.
func (e *Encoder) bound(term string) {
	if e.bv == 0 {
		e.emit(App("assert", App(">=", term, "0")))
		return
	}
	limit := new(big.Int).Lsh(big.NewInt(1), uint(e.bv))
	e.emit(App("assert", App("bvult", term, fmt.Sprintf("(_ bv%s %d)", limit, 2*int(e.bv)))))
}

// symbol quotes a surface name for solvers that print quoted symbols back.
func (e *Encoder) symbol(display, kind string, raw uint32) string {
	if e.solver != config.SolverZ3 {
		return fmt.Sprintf("%s%d", kind, raw)
	}
	display = strings.NewReplacer("|", "_", `\`, "_").Replace(display)
	return fmt.Sprintf("|%s@%s%d|", display, kind, raw)
}

// Param returns the constant standing for p, declaring it on first use.
// Let-bound parameters are constrained to their value and existential
// parameters of instances to the function computing them from the
// instance arguments.
func (e *Encoder) Param(p ir.ParamIdx) string {
	if s, ok := e.params[p]; ok {
		return s
	}
	name := e.symbol(e.comp.DisplayParam(p), "param", uint32(p))
	e.params[p] = name
	e.byName[name] = p
	e.emit(App("declare-const", name, e.Sort()))
	e.bound(name)

	owner := e.comp.Params.Get(p).Owner
	switch owner.Kind {
	case ir.ParamLet:
		if !ir.IsUnknown(owner.Bind) {
			e.emit(App("assert", App("=", name, e.Expr(owner.Bind))))
		}
	case ir.ParamInstance:
		if fn, args, ok := e.instanceFn(owner); ok {
			e.emit(App("assert", App("=", name, App(fn, args...))))
		}
	}
	return name
}

func (e *Encoder) instanceFn(owner ir.ParamOwner) (string, []string, bool) {
	if e.ctx == nil || !e.ctx.Valid(owner.Base.Owner) {
		return "", nil, false
	}
	base := e.ctx.ForeignParam(owner.Base)
	if base.Owner.Opaque {
		return "", nil, false
	}
	callee := e.ctx.Get(owner.Base.Owner)
	fn := fmt.Sprintf("comp%d_param%d", uint32(owner.Base.Owner), uint32(owner.Base.Key))
	if !e.funcs[fn] {
		e.funcs[fn] = true
		sorts := make([]string, len(callee.ParamArgs))
		for i := range sorts {
			sorts[i] = e.Sort()
		}
		e.emit(fmt.Sprintf("(declare-fun %s (%s) %s)", fn, strings.Join(sorts, " "), e.Sort()))
	}
	inst := e.comp.Instances.Get(owner.Inst)
	args := make([]string, len(inst.Args))
	for i, a := range inst.Args {
		args[i] = e.Expr(a)
	}
	return fn, args, true
}

func (e *Encoder) Event(ev ir.EventIdx) string {
	if s, ok := e.events[ev]; ok {
		return s
	}
	name := e.symbol(e.comp.DisplayEvent(ev), "event", uint32(ev))
	e.events[ev] = name
	e.emit(App("declare-const", name, e.Sort()))
	e.bound(name)
	return name
}

func (e *Encoder) fn(op ir.FnOp) string {
	names := [...]string{ir.FnPow2: "pow2", ir.FnLog2: "log2", ir.FnSinB: "sinb", ir.FnCosB: "cosb", ir.FnBitRev: "bitrev"}
	name := names[op]
	if !e.funcs[name] {
		e.funcs[name] = true
		sorts := make([]string, op.Arity())
		for i := range sorts {
			sorts[i] = e.Sort()
		}
		e.emit(fmt.Sprintf("(declare-fun %s (%s) %s)", name, strings.Join(sorts, " "), e.Sort()))
	}
	return name
}

func (e *Encoder) Expr(x ir.ExprIdx) string {
	if s, ok := e.exprs[x]; ok {
		return s
	}
	ex := e.comp.Expr(x)
	var term string
	switch ex.Kind {
	case ir.ExprParam:
		// parameters are referenced directly
		term = e.Param(ex.Param)
		e.exprs[x] = term
		return term
	case ir.ExprConcrete:
		term = e.Num(ex.Value)
		e.exprs[x] = term
		return term
	case ir.ExprBin:
		term = e.arith(ex.Op, e.Expr(ex.L), e.Expr(ex.R))
	case ir.ExprFn:
		args := make([]string, 0, ex.NArgs)
		for _, a := range ex.ArgList() {
			args = append(args, e.Expr(a))
		}
		term = App(e.fn(ex.Fn), args...)
	case ir.ExprIf:
		term = App("ite", e.Prop(ex.Cond), e.Expr(ex.L), e.Expr(ex.R))
	}
	name := fmt.Sprintf("e%d", uint32(x))
	e.emit(fmt.Sprintf("(define-fun %s () %s %s)", name, e.Sort(), term))
	if e.bv != 0 {
		e.bound(name)
	}
	e.exprs[x] = name
	return name
}

func (e *Encoder) Time(t ir.TimeIdx) string {
	if s, ok := e.times[t]; ok {
		return s
	}
	tm := e.comp.Time(t)
	term := e.arith(ir.OpAdd, e.Event(tm.Event), e.Expr(tm.Offset))
	name := fmt.Sprintf("t%d", uint32(t))
	e.emit(fmt.Sprintf("(define-fun %s () %s %s)", name, e.Sort(), term))
	if e.bv != 0 {
		e.bound(name)
	}
	e.times[t] = name
	return name
}

func (e *Encoder) timeSub(ts ir.TimeSub) string {
	if !ts.Sym {
		return e.Expr(ts.Unit)
	}
	return e.arith(ir.OpSub, e.Time(ts.L), e.Time(ts.R))
}

func (e *Encoder) Prop(p ir.PropIdx) string {
	if s, ok := e.props[p]; ok {
		return s
	}
	pr := e.comp.Prop(p)
	var term string
	switch pr.Kind {
	case ir.PropTrue:
		term = "true"
	case ir.PropFalse:
		term = "false"
	case ir.PropCmp:
		term = e.cmp(pr.Op, e.Expr(pr.L), e.Expr(pr.R))
	case ir.PropTimeCmp:
		term = e.cmp(pr.Op, e.Time(pr.TL), e.Time(pr.TR))
	case ir.PropTimeSubCmp:
		term = e.cmp(pr.Op, e.timeSub(pr.SL), e.timeSub(pr.SR))
	case ir.PropNot:
		term = App("not", e.Prop(pr.P))
	case ir.PropAnd:
		term = App("and", e.Prop(pr.P), e.Prop(pr.Q))
	case ir.PropOr:
		term = App("or", e.Prop(pr.P), e.Prop(pr.Q))
	case ir.PropImplies:
		term = App("=>", e.Prop(pr.P), e.Prop(pr.Q))
	}
	name := fmt.Sprintf("prop%d", uint32(p))
	e.emit(fmt.Sprintf("(define-fun %s () Bool %s)", name, term))
	e.props[p] = name
	return name
}

// ActLit declares a fresh activation literal.
func (e *Encoder) ActLit() string {
	e.lits++
	name := fmt.Sprintf("act_lit%d", e.lits)
	e.emit(App("declare-const", name, "Bool"))
	return name
}

// ParamTerm returns the constant of p if it has been declared.
func (e *Encoder) ParamTerm(p ir.ParamIdx) (string, bool) {
	s, ok := e.params[p]
	return s, ok
}

// ParamOf maps a declared constant back to its parameter.
func (e *Encoder) ParamOf(name string) (ir.ParamIdx, bool) {
	p, ok := e.byName[name]
	return p, ok
}
