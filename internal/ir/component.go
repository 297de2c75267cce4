package ir

import (
	"fmt"
	"maps"
	"slices"

	"filament/internal/source"
)

// CompKind tells where a component's definition comes from.
type CompKind uint8

const (
	CompSource CompKind = iota
	CompExternal
	CompGenerated
)

func (k CompKind) String() string {
	switch k {
	case CompExternal:
		return "extern"
	case CompGenerated:
		return "gen"
	}
	return "source"
}

// Attrs are component-level flags.
type Attrs struct {
	Toplevel   bool
	CounterFSM bool
}

// Located is a proposition together with the source span that stated it.
type Located struct {
	Prop PropIdx
	Loc  source.Span
}

type existAssumes struct {
	param ParamIdx
	facts []Located
}

// InterfaceSrc keeps the surface names of a component's signature. It is
// needed to emit interfaces and to print readable IR.
type InterfaceSrc struct {
	Name           source.NameID
	Ports          map[PortIdx]source.NameID
	Params         map[ParamIdx]source.NameID
	Events         map[EventIdx]source.NameID
	InterfacePorts map[EventIdx]source.NameID
	GenTool        string
}

func NewInterfaceSrc(name source.NameID, genTool string) *InterfaceSrc {
	return &InterfaceSrc{
		Name:           name,
		Ports:          make(map[PortIdx]source.NameID),
		Params:         make(map[ParamIdx]source.NameID),
		Events:         make(map[EventIdx]source.NameID),
		InterfacePorts: make(map[EventIdx]source.NameID),
		GenTool:        genTool,
	}
}

func (s *InterfaceSrc) Clone() *InterfaceSrc {
	out := *s
	out.Ports = maps.Clone(s.Ports)
	out.Params = maps.Clone(s.Params)
	out.Events = maps.Clone(s.Events)
	out.InterfacePorts = maps.Clone(s.InterfacePorts)
	return &out
}

// ParamByName finds a signature parameter by its surface name.
func (s *InterfaceSrc) ParamByName(name source.NameID) (ParamIdx, bool) {
	for p, n := range s.Params {
		if n == name {
			return p, true
		}
	}
	return UnknownParam, false
}

// Component is a hardware component: its signature, its entities and its
// body. Expressions, times and propositions are interned per component
// because two components may reuse the same indices for different events.
type Component struct {
	exprs *Interned[ExprIdx, Expr]
	times *Interned[TimeIdx, Time]
	props *Interned[PropIdx, Prop]

	Ports       *Store[PortIdx, Port]
	Params      *Store[ParamIdx, Param]
	Events      *Store[EventIdx, Event]
	Instances   *Store[InstIdx, Instance]
	Invocations *Store[InvIdx, Invoke]
	Infos       *Store[InfoIdx, Info]

	Kind  CompKind
	Attrs Attrs

	// Signature order of parameters and events.
	ParamArgs []ParamIdx
	EventArgs []EventIdx

	existAssumes []existAssumes
	paramAsserts []Located
	eventAsserts []Located

	Src *InterfaceSrc
	// Names resolves the identifiers stored in Info and Src. It is set by
	// Context.Add; components outside a context print raw indices.
	Names *source.Interner

	Cmds []Command
}

// NewComponent creates an empty component. The constants 0 and 1 and the
// literals false and true are interned first so they get small indices.
func NewComponent(kind CompKind, attrs Attrs) *Component {
	c := &Component{
		exprs:       NewInterned[ExprIdx, Expr](),
		times:       NewInterned[TimeIdx, Time](),
		props:       NewInterned[PropIdx, Prop](),
		Ports:       NewStore[PortIdx, Port](),
		Params:      NewStore[ParamIdx, Param](),
		Events:      NewStore[EventIdx, Event](),
		Instances:   NewStore[InstIdx, Instance](),
		Invocations: NewStore[InvIdx, Invoke](),
		Infos:       NewStore[InfoIdx, Info](),
		Kind:        kind,
		Attrs:       attrs,
	}
	c.Num(0)
	c.Num(1)
	c.AddProp(False)
	c.AddProp(True)
	return c
}

// Clone returns an independent copy of c. Entities are copied shallowly,
// so slices inside them are shared until replaced.
func (c *Component) Clone() *Component {
	out := *c
	out.exprs = c.exprs.Clone()
	out.times = c.times.Clone()
	out.props = c.props.Clone()
	out.Ports = c.Ports.Clone()
	out.Params = c.Params.Clone()
	out.Events = c.Events.Clone()
	out.Instances = c.Instances.Clone()
	out.Invocations = c.Invocations.Clone()
	out.Infos = c.Infos.Clone()
	out.ParamArgs = slices.Clone(c.ParamArgs)
	out.EventArgs = slices.Clone(c.EventArgs)
	out.existAssumes = make([]existAssumes, len(c.existAssumes))
	for i, ea := range c.existAssumes {
		out.existAssumes[i] = existAssumes{param: ea.param, facts: slices.Clone(ea.facts)}
	}
	out.paramAsserts = slices.Clone(c.paramAsserts)
	out.eventAsserts = slices.Clone(c.eventAsserts)
	if c.Src != nil {
		out.Src = c.Src.Clone()
	}
	out.Cmds = CloneCmds(c.Cmds)
	return &out
}

func (c *Component) IsExt() bool { return c.Kind == CompExternal }
func (c *Component) IsGen() bool { return c.Kind == CompGenerated }

// Exprs, Times and Props expose the interning tables read-only.
func (c *Component) Exprs() *Interned[ExprIdx, Expr] { return c.exprs }
func (c *Component) Times() *Interned[TimeIdx, Time] { return c.times }
func (c *Component) Props() *Interned[PropIdx, Prop] { return c.props }

func (c *Component) Expr(i ExprIdx) Expr { return c.exprs.Get(i) }
func (c *Component) Time(i TimeIdx) Time { return c.times.Get(i) }
func (c *Component) Prop(i PropIdx) Prop { return c.props.Get(i) }

func (c *Component) AddTime(t Time) TimeIdx { return c.times.Intern(t) }
func (c *Component) AddInfo(i Info) InfoIdx { return c.Infos.Add(i) }

// Num interns a constant.
func (c *Component) Num(n uint64) ExprIdx { return c.exprs.Intern(Concrete(n)) }

// ParamRef interns the expression referring to p.
func (c *Component) ParamRef(p ParamIdx) ExprIdx { return c.exprs.Intern(ParamExpr(p)) }

// TrueProp and FalseProp return the interned literals.
func (c *Component) TrueProp() PropIdx  { return c.props.Intern(True) }
func (c *Component) FalseProp() PropIdx { return c.props.Intern(False) }

// AddExpr interns e after simplifying it. Structurally equal simplified
// expressions always get the same index.
func (c *Component) AddExpr(e Expr) ExprIdx {
	switch e.Kind {
	case ExprParam, ExprConcrete:
		return c.exprs.Intern(e)
	case ExprBin:
		return c.addBin(e)
	case ExprFn:
		args := make([]uint64, 0, e.NArgs)
		for _, a := range e.ArgList() {
			v, ok := a.AsConcrete(c)
			if !ok {
				return c.exprs.Intern(e)
			}
			args = append(args, v)
		}
		if v, ok := e.Fn.Eval(args); ok {
			return c.Num(v)
		}
		return c.exprs.Intern(e)
	case ExprIf:
		switch c.Prop(e.Cond).Kind {
		case PropTrue:
			return e.L
		case PropFalse:
			return e.R
		}
		return c.exprs.Intern(e)
	}
	panic(fmt.Sprintf("ir: unknown expression kind %d", e.Kind))
}

func (c *Component) addBin(e Expr) ExprIdx {
	l, lok := e.L.AsConcrete(c)
	r, rok := e.R.AsConcrete(c)
	if lok && rok {
		if v, ok := e.Op.apply(l, r); ok {
			return c.Num(v)
		}
		return c.exprs.Intern(e)
	}
	switch e.Op {
	case OpAdd:
		if lok && l == 0 {
			return e.R
		}
		if rok && r == 0 {
			return e.L
		}
	case OpSub:
		if rok && r == 0 {
			return e.L
		}
		if e.L == e.R {
			return c.Num(0)
		}
	case OpMul:
		if (lok && l == 0) || (rok && r == 0) {
			return c.Num(0)
		}
		if rok && r == 1 {
			return e.L
		}
		if lok && l == 1 {
			return e.R
		}
	case OpDiv:
		if lok && l == 0 {
			return c.Num(0)
		}
		if rok && r == 1 {
			return e.L
		}
	}
	if e.Op.Commutative() {
		if lok || (!rok && e.L > e.R) {
			e.L, e.R = e.R, e.L
		}
	}
	return c.exprs.Intern(e)
}

// AddProp interns p after simplifying it.
func (c *Component) AddProp(p Prop) PropIdx {
	switch p.Kind {
	case PropTrue, PropFalse:
		return c.props.Intern(p)
	case PropNot:
		inner := c.Prop(p.P)
		switch inner.Kind {
		case PropTrue:
			return c.FalseProp()
		case PropFalse:
			return c.TrueProp()
		case PropNot:
			return inner.P
		}
		return c.props.Intern(p)
	case PropAnd:
		switch {
		case p.P == p.Q:
			return p.P
		case p.P.IsTrue(c):
			return p.Q
		case p.Q.IsTrue(c):
			return p.P
		case p.P.IsFalse(c), p.Q.IsFalse(c):
			return c.FalseProp()
		}
		if p.P > p.Q {
			p.P, p.Q = p.Q, p.P
		}
		return c.props.Intern(p)
	case PropOr:
		switch {
		case p.P == p.Q:
			return p.P
		case p.P.IsFalse(c):
			return p.Q
		case p.Q.IsFalse(c):
			return p.P
		case p.P.IsTrue(c), p.Q.IsTrue(c):
			return c.TrueProp()
		}
		if p.P > p.Q {
			p.P, p.Q = p.Q, p.P
		}
		return c.props.Intern(p)
	case PropImplies:
		switch {
		case p.P.IsFalse(c), p.Q.IsTrue(c), p.P == p.Q:
			return c.TrueProp()
		case p.P.IsTrue(c):
			return p.Q
		}
		return c.props.Intern(p)
	case PropCmp:
		l, lok := p.L.AsConcrete(c)
		r, rok := p.R.AsConcrete(c)
		if lok && rok {
			if p.Op.holds(l, r) {
				return c.TrueProp()
			}
			return c.FalseProp()
		}
		if p.L == p.R {
			if p.Op == CmpGt {
				return c.FalseProp()
			}
			return c.TrueProp()
		}
		return c.props.Intern(p)
	case PropTimeCmp:
		l, r := c.Time(p.TL), c.Time(p.TR)
		if l.Event == r.Event {
			return c.AddProp(CmpProp(p.Op, l.Offset, r.Offset))
		}
		return c.props.Intern(p)
	case PropTimeSubCmp:
		if !p.SL.Sym && !p.SR.Sym {
			return c.AddProp(CmpProp(p.Op, p.SL.Unit, p.SR.Unit))
		}
		return c.props.Intern(p)
	}
	panic(fmt.Sprintf("ir: unknown proposition kind %d", p.Kind))
}

// SubsetEq returns the two propositions stating [a0, a1) contains [b0, b1)
// when read as a0 <= b0 and a1 >= b1.
func (c *Component) SubsetEq(a, b [2]ExprIdx) [2]PropIdx {
	return [2]PropIdx{a[0].Lte(b[0], c), a[1].Gte(b[1], c)}
}

// Assert builds a checked fact, or nil when prop is trivially true.
func (c *Component) Assert(prop PropIdx, info InfoIdx) Command {
	if prop.IsTrue(c) {
		return nil
	}
	return AssertFact(prop, info)
}

// Assume builds an assumption, or nil when prop is trivially true.
// Assuming false is a compiler bug.
func (c *Component) Assume(prop PropIdx, info InfoIdx) Command {
	if prop.IsFalse(c) {
		c.InternalError("attempted to assume false")
	}
	if prop.IsTrue(c) {
		return nil
	}
	return AssumeFact(prop, info)
}

// InternalError aborts with the printed component and msg.
func (c *Component) InternalError(msg string) {
	panic(fmt.Sprintf("%s\ninternal error: %s", c.String(), msg))
}

// AddExistAssumes records facts about an existential parameter.
func (c *Component) AddExistAssumes(param ParamIdx, facts ...Located) {
	for i := range c.existAssumes {
		if c.existAssumes[i].param == param {
			c.existAssumes[i].facts = append(c.existAssumes[i].facts, facts...)
			return
		}
	}
	c.existAssumes = append(c.existAssumes, existAssumes{param: param, facts: slices.Clone(facts)})
}

// ExistAssumes returns the facts recorded for param.
func (c *Component) ExistAssumes(param ParamIdx) ([]Located, bool) {
	for _, ea := range c.existAssumes {
		if ea.param == param {
			return ea.facts, true
		}
	}
	return nil, false
}

// AllExistAssumes returns every existential fact in declaration order.
func (c *Component) AllExistAssumes() []Located {
	var out []Located
	for _, ea := range c.existAssumes {
		out = append(out, ea.facts...)
	}
	return out
}

func (c *Component) AddParamAsserts(facts ...Located) {
	c.paramAsserts = append(c.paramAsserts, facts...)
}

func (c *Component) ParamAsserts() []Located { return c.paramAsserts }

func (c *Component) AddEventAsserts(facts ...Located) {
	c.eventAsserts = append(c.eventAsserts, facts...)
}

func (c *Component) EventAsserts() []Located { return c.eventAsserts }

// InstInvokeMap groups invocations by instance, in invocation order.
func (c *Component) InstInvokeMap() map[InstIdx][]InvIdx {
	out := make(map[InstIdx][]InvIdx)
	c.Invocations.Iter(func(idx InvIdx, inv Invoke) {
		out[inv.Inst] = append(out[inv.Inst], idx)
	})
	return out
}

func (c *Component) portsWhere(pred func(*Port) bool) []PortIdx {
	var out []PortIdx
	c.Ports.Iter(func(idx PortIdx, p Port) {
		if pred(&p) {
			out = append(out, idx)
		}
	})
	return out
}

// Inputs returns the signature input ports.
func (c *Component) Inputs() []PortIdx { return c.portsWhere((*Port).IsSigIn) }

// Outputs returns the signature output ports.
func (c *Component) Outputs() []PortIdx { return c.portsWhere((*Port).IsSigOut) }

func (c *Component) paramsWhere(pred func(*Param) bool) []ParamIdx {
	var out []ParamIdx
	c.Params.Iter(func(idx ParamIdx, p Param) {
		if pred(&p) {
			out = append(out, idx)
		}
	})
	return out
}

// SigParams returns the parameters owned by the signature.
func (c *Component) SigParams() []ParamIdx { return c.paramsWhere((*Param).IsSigOwned) }

// ExistParams returns the existentially quantified parameters.
func (c *Component) ExistParams() []ParamIdx { return c.paramsWhere((*Param).IsExists) }

// PhantomEvents returns events without an interface port.
func (c *Component) PhantomEvents() []EventIdx {
	var out []EventIdx
	c.Events.Iter(func(idx EventIdx, ev Event) {
		if !ev.HasInterface {
			out = append(out, idx)
		}
	})
	return out
}

// ExprParams lists the parameters mentioned by e, with repetitions.
func (c *Component) ExprParams(e ExprIdx) []ParamIdx {
	var acc []ParamIdx
	c.exprParams(e, &acc)
	return acc
}

// PropParams lists the parameters mentioned by p, with repetitions.
func (c *Component) PropParams(p PropIdx) []ParamIdx {
	var acc []ParamIdx
	c.propParams(p, &acc)
	return acc
}

func (c *Component) exprParams(e ExprIdx, acc *[]ParamIdx) {
	ex := c.Expr(e)
	switch ex.Kind {
	case ExprParam:
		*acc = append(*acc, ex.Param)
	case ExprBin:
		c.exprParams(ex.L, acc)
		c.exprParams(ex.R, acc)
	case ExprFn:
		for _, a := range ex.ArgList() {
			c.exprParams(a, acc)
		}
	case ExprIf:
		c.propParams(ex.Cond, acc)
		c.exprParams(ex.L, acc)
		c.exprParams(ex.R, acc)
	}
}

func (c *Component) timeSubParams(ts TimeSub, acc *[]ParamIdx) {
	if ts.Sym {
		c.exprParams(c.Time(ts.L).Offset, acc)
		c.exprParams(c.Time(ts.R).Offset, acc)
		return
	}
	c.exprParams(ts.Unit, acc)
}

func (c *Component) propParams(p PropIdx, acc *[]ParamIdx) {
	pr := c.Prop(p)
	switch pr.Kind {
	case PropCmp:
		c.exprParams(pr.L, acc)
		c.exprParams(pr.R, acc)
	case PropTimeCmp:
		c.exprParams(c.Time(pr.TL).Offset, acc)
		c.exprParams(c.Time(pr.TR).Offset, acc)
	case PropTimeSubCmp:
		c.timeSubParams(pr.SL, acc)
		c.timeSubParams(pr.SR, acc)
	case PropNot:
		c.propParams(pr.P, acc)
	case PropAnd, PropOr, PropImplies:
		c.propParams(pr.P, acc)
		c.propParams(pr.Q, acc)
	}
}

// EvalExpr computes the value of an expression that mentions no parameters
// and returns it interned as a constant.
func (c *Component) EvalExpr(e ExprIdx) ExprIdx {
	return c.Num(c.evalConcrete(e))
}

func (c *Component) evalConcrete(e ExprIdx) uint64 {
	v, ok := c.tryEval(e)
	if !ok {
		c.InternalError(fmt.Sprintf("cannot evaluate %s", c.DisplayExpr(e)))
	}
	return v
}

// tryEval evaluates a concrete expression. It reports false when an
// operation is undefined, such as a subtraction below zero.
func (c *Component) tryEval(e ExprIdx) (uint64, bool) {
	ex := c.Expr(e)
	switch ex.Kind {
	case ExprConcrete:
		return ex.Value, true
	case ExprParam:
		c.InternalError(fmt.Sprintf("cannot evaluate expression with parameter %s", c.DisplayParam(ex.Param)))
	case ExprBin:
		l, lok := c.tryEval(ex.L)
		r, rok := c.tryEval(ex.R)
		if !lok || !rok {
			return 0, false
		}
		return ex.Op.apply(l, r)
	case ExprFn:
		args := make([]uint64, 0, ex.NArgs)
		for _, a := range ex.ArgList() {
			v, ok := c.tryEval(a)
			if !ok {
				return 0, false
			}
			args = append(args, v)
		}
		return ex.Fn.Eval(args)
	case ExprIf:
		cond, ok := c.resolveProp(ex.Cond)
		if !ok {
			return 0, false
		}
		b, ok := cond.AsConcrete(c)
		if !ok {
			c.InternalError("condition did not resolve to true or false")
		}
		if b {
			return c.tryEval(ex.L)
		}
		return c.tryEval(ex.R)
	}
	panic("unreachable")
}

// ResolveProp evaluates the arithmetic comparisons of p, whose parameters
// must all have been replaced by constants, and folds the result. Time
// comparisons and implications are kept as they are. A conjunction with a
// false side is false even when the other side is undefined, as in
// `X > 0 & X - 1 >= 0` for X = 0; a disjunction with a true side is true.
func (c *Component) ResolveProp(p PropIdx) PropIdx {
	out, ok := c.resolveProp(p)
	if !ok {
		c.InternalError(fmt.Sprintf("cannot evaluate %s", c.DisplayProp(p)))
	}
	return out
}

func (c *Component) resolveProp(p PropIdx) (PropIdx, bool) {
	pr := c.Prop(p)
	switch pr.Kind {
	case PropCmp:
		l, lok := c.tryEval(pr.L)
		r, rok := c.tryEval(pr.R)
		if !lok || !rok {
			return p, false
		}
		if pr.Op.holds(l, r) {
			return c.TrueProp(), true
		}
		return c.FalseProp(), true
	case PropAnd:
		l, lok := c.resolveProp(pr.P)
		r, rok := c.resolveProp(pr.Q)
		if (lok && l.IsFalse(c)) || (rok && r.IsFalse(c)) {
			return c.FalseProp(), true
		}
		if !lok || !rok {
			return p, false
		}
		return l.And(r, c), true
	case PropOr:
		l, lok := c.resolveProp(pr.P)
		r, rok := c.resolveProp(pr.Q)
		if (lok && l.IsTrue(c)) || (rok && r.IsTrue(c)) {
			return c.TrueProp(), true
		}
		if !lok || !rok {
			return p, false
		}
		return l.Or(r, c), true
	case PropNot:
		r, ok := c.resolveProp(pr.P)
		if !ok {
			return p, false
		}
		return r.Not(c), true
	}
	return p, true
}
