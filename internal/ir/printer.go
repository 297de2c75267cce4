package ir

import (
	"fmt"
	"io"
	"strings"
)

// precedence of an operator when printing; higher binds tighter.
func precedence(op Op) int {
	switch op {
	case OpAdd:
		return 0
	case OpSub:
		return 1
	}
	return 2
}

func (c *Component) name(id InfoIdx, fallback string) string {
	if c.Names == nil || IsUnknown(id) || !c.Infos.Valid(id) {
		return fallback
	}
	info := c.Infos.Get(id)
	if info.Name == 0 {
		return fallback
	}
	return c.Names.MustLookup(info.Name)
}

// DisplayParam prints a parameter by its surface name when one is known.
// Instance parameters are qualified by the instance name.
func (c *Component) DisplayParam(p ParamIdx) string {
	if !c.Params.Valid(p) {
		return p.String()
	}
	param := c.Params.Get(p)
	name := c.name(param.Info, p.String())
	if param.Owner.Kind == ParamInstance && c.Instances.Valid(param.Owner.Inst) {
		inst := c.Instances.Get(param.Owner.Inst)
		return c.name(inst.Info, param.Owner.Inst.String()) + "::" + name
	}
	return name
}

func (c *Component) DisplayEvent(e EventIdx) string {
	if !c.Events.Valid(e) {
		return "'" + e.String()
	}
	return "'" + c.name(c.Events.Get(e).Info, e.String())
}

func (c *Component) DisplayPort(p PortIdx) string {
	if !c.Ports.Valid(p) {
		return p.String()
	}
	port := c.Ports.Get(p)
	name := c.name(port.Info, p.String())
	if port.Owner.Kind == OwnerInv && c.Invocations.Valid(port.Owner.Inv) {
		inv := c.Invocations.Get(port.Owner.Inv)
		return c.name(inv.Info, port.Owner.Inv.String()) + "." + name
	}
	return name
}

func (c *Component) DisplayInst(i InstIdx) string {
	if !c.Instances.Valid(i) {
		return i.String()
	}
	return c.name(c.Instances.Get(i).Info, i.String())
}

func (c *Component) DisplayInv(i InvIdx) string {
	if !c.Invocations.Valid(i) {
		return i.String()
	}
	return c.name(c.Invocations.Get(i).Info, i.String())
}

// DisplayExpr prints an expression with the minimal parentheses.
func (c *Component) DisplayExpr(e ExprIdx) string {
	return c.displayExpr(e, 0)
}

func (c *Component) displayExpr(e ExprIdx, outer int) string {
	if !c.exprs.Valid(e) {
		return e.String()
	}
	ex := c.Expr(e)
	switch ex.Kind {
	case ExprParam:
		return c.DisplayParam(ex.Param)
	case ExprConcrete:
		return fmt.Sprintf("%d", ex.Value)
	case ExprBin:
		inner := precedence(ex.Op)
		s := c.displayExpr(ex.L, inner) + ex.Op.String() + c.displayExpr(ex.R, inner+1)
		if outer > inner {
			return "(" + s + ")"
		}
		return s
	case ExprFn:
		args := make([]string, 0, ex.NArgs)
		for _, a := range ex.ArgList() {
			args = append(args, c.displayExpr(a, 0))
		}
		return fmt.Sprintf("%s(%s)", ex.Fn, strings.Join(args, ", "))
	case ExprIf:
		return fmt.Sprintf("if %s then %s else %s", c.DisplayProp(ex.Cond), c.displayExpr(ex.L, outer), c.displayExpr(ex.R, outer))
	}
	return e.String()
}

func (c *Component) DisplayTime(t TimeIdx) string {
	if !c.times.Valid(t) {
		return t.String()
	}
	tm := c.Time(t)
	if tm.Offset.IsConst(c, 0) {
		return c.DisplayEvent(tm.Event)
	}
	return c.DisplayEvent(tm.Event) + "+" + c.displayExpr(tm.Offset, 1)
}

func (c *Component) DisplayTimeSub(ts TimeSub) string {
	if ts.Sym {
		return fmt.Sprintf("|%s - %s|", c.DisplayTime(ts.L), c.DisplayTime(ts.R))
	}
	return c.DisplayExpr(ts.Unit)
}

func (c *Component) DisplayRange(r Range) string {
	return fmt.Sprintf("[%s, %s]", c.DisplayTime(r.Start), c.DisplayTime(r.End))
}

// propPrec orders propositions for printing; higher binds tighter.
func propPrec(k PropKind) int {
	switch k {
	case PropImplies:
		return 0
	case PropOr:
		return 1
	case PropAnd:
		return 2
	case PropNot:
		return 4
	}
	return 3
}

func (c *Component) DisplayProp(p PropIdx) string {
	return c.displayProp(p, 0)
}

func (c *Component) displayProp(p PropIdx, outer int) string {
	if !c.props.Valid(p) {
		return p.String()
	}
	pr := c.Prop(p)
	inner := propPrec(pr.Kind)
	var s string
	switch pr.Kind {
	case PropTrue:
		return "true"
	case PropFalse:
		return "false"
	case PropCmp:
		s = fmt.Sprintf("%s %s %s", c.DisplayExpr(pr.L), pr.Op, c.DisplayExpr(pr.R))
	case PropTimeCmp:
		s = fmt.Sprintf("%s %s %s", c.DisplayTime(pr.TL), pr.Op, c.DisplayTime(pr.TR))
	case PropTimeSubCmp:
		s = fmt.Sprintf("%s %s %s", c.DisplayTimeSub(pr.SL), pr.Op, c.DisplayTimeSub(pr.SR))
	case PropNot:
		return "!" + c.displayProp(pr.P, inner)
	case PropAnd:
		s = c.displayProp(pr.P, inner) + " & " + c.displayProp(pr.Q, inner)
	case PropOr:
		s = c.displayProp(pr.P, inner) + " | " + c.displayProp(pr.Q, inner)
	case PropImplies:
		s = c.displayProp(pr.P, inner+1) + " => " + c.displayProp(pr.Q, inner)
	}
	if outer > inner {
		return "(" + s + ")"
	}
	return s
}

func (c *Component) DisplayAccess(a Access) string {
	var sb strings.Builder
	sb.WriteString(c.DisplayPort(a.Port))
	for _, r := range a.Ranges {
		if c.IsSucc(r.Start, r.End) {
			fmt.Fprintf(&sb, "{%s}", c.DisplayExpr(r.Start))
			continue
		}
		fmt.Fprintf(&sb, "{%s..%s}", c.DisplayExpr(r.Start), c.DisplayExpr(r.End))
	}
	return sb.String()
}

// IsSucc reports end == start+1 without interning anything.
func (c *Component) IsSucc(start, end ExprIdx) bool {
	s, sok := start.AsConcrete(c)
	e, eok := end.AsConcrete(c)
	if sok && eok {
		return e == s+1
	}
	ex := c.Expr(end)
	return ex.Kind == ExprBin && ex.Op == OpAdd && ex.L == start && ex.R.IsConst(c, 1)
}

func (c *Component) DisplayLiveness(l Liveness) string {
	var sb strings.Builder
	for i, idx := range l.Idxs {
		fmt.Fprintf(&sb, "for<%s: %s> ", c.DisplayParam(idx), c.DisplayExpr(l.Lens[i]))
	}
	sb.WriteString(c.DisplayRange(l.Range))
	return sb.String()
}

// Printer writes components in a readable surface-like syntax. It is used
// for dumps and internal error messages.
type Printer struct {
	comp *Component
	ctx  *Context
	idx  CompIdx
}

func NewPrinter(c *Component) *Printer {
	return &Printer{comp: c, idx: UnknownComp}
}

// WithContext lets the printer name instantiated components.
func (p *Printer) WithContext(ctx *Context, idx CompIdx) *Printer {
	p.ctx, p.idx = ctx, idx
	return p
}

func (c *Component) String() string {
	var sb strings.Builder
	_ = NewPrinter(c).Print(&sb)
	return sb.String()
}

type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

// Print writes the signature and the body.
func (p *Printer) Print(w io.Writer) error {
	ew := &errWriter{w: w}
	p.sig(ew)
	p.cmds(ew, p.comp.Cmds, 2)
	ew.printf("}\n")
	return ew.err
}

func (p *Printer) compName(idx CompIdx) string {
	if p.ctx != nil && p.ctx.Valid(idx) {
		return p.ctx.CompName(idx)
	}
	return idx.String()
}

func (p *Printer) port(idx PortIdx) string {
	c := p.comp
	port := c.Ports.Get(idx)
	return fmt.Sprintf("  %s: %s %s", c.DisplayPort(idx), c.DisplayLiveness(port.Live), c.DisplayExpr(port.Width))
}

func (p *Printer) sig(ew *errWriter) {
	c := p.comp
	var attrs []string
	if c.Attrs.Toplevel {
		attrs = append(attrs, "toplevel")
	}
	if c.Attrs.CounterFSM {
		attrs = append(attrs, "counter_fsm")
	}
	if len(attrs) > 0 {
		ew.printf("#[%s]\n", strings.Join(attrs, ", "))
	}
	if c.IsExt() {
		ew.printf("ext ")
	}
	switch {
	case c.Src != nil && c.Names != nil:
		ew.printf("comp %s", c.Names.MustLookup(c.Src.Name))
	case !IsUnknown(p.idx):
		ew.printf("comp %s", p.idx)
	default:
		ew.printf("comp")
	}
	params := make([]string, 0, len(c.ParamArgs))
	for _, pa := range c.ParamArgs {
		params = append(params, c.DisplayParam(pa))
	}
	events := make([]string, 0, len(c.EventArgs))
	for _, ev := range c.EventArgs {
		events = append(events, fmt.Sprintf("%s: %s", c.DisplayEvent(ev), c.DisplayTimeSub(c.Events.Get(ev).Delay)))
	}
	ew.printf("[%s]<%s>(\n", strings.Join(params, ", "), strings.Join(events, ", "))
	var ins, outs []string
	for _, i := range c.Inputs() {
		ins = append(ins, p.port(i))
	}
	for _, o := range c.Outputs() {
		outs = append(outs, p.port(o))
	}
	ew.printf("%s) -> (\n%s) with {\n", strings.Join(ins, ",\n"), strings.Join(outs, ",\n"))
	for _, ep := range c.ExistParams() {
		ew.printf("  exists %s", c.DisplayParam(ep))
		if facts, ok := c.ExistAssumes(ep); ok && len(facts) > 0 {
			props := make([]string, 0, len(facts))
			for _, f := range facts {
				props = append(props, c.DisplayProp(f.Prop))
			}
			ew.printf(" where %s", strings.Join(props, ", "))
		}
		ew.printf(";\n")
	}
	asserts := append(append([]Located(nil), c.ParamAsserts()...), c.EventAsserts()...)
	if len(asserts) > 0 {
		ew.printf("} where\n")
		for _, a := range asserts {
			ew.printf("  %s,\n", c.DisplayProp(a.Prop))
		}
	}
	ew.printf("{\n")
}

func (p *Printer) cmds(ew *errWriter, cmds []Command, indent int) {
	for _, cmd := range cmds {
		p.cmd(ew, cmd, indent)
	}
}

// CommandString prints a single command without trailing newline.
func (p *Printer) CommandString(cmd Command) string {
	var sb strings.Builder
	p.cmd(&errWriter{w: &sb}, cmd, 0)
	return strings.TrimSuffix(sb.String(), "\n")
}

func (p *Printer) cmd(ew *errWriter, cmd Command, indent int) {
	c := p.comp
	pad := strings.Repeat(" ", indent)
	switch cmd := cmd.(type) {
	case *InstanceCmd:
		inst := c.Instances.Get(cmd.Inst)
		ew.printf("%s%s", pad, c.DisplayInst(cmd.Inst))
		for _, pr := range inst.Params {
			ew.printf(", %s", c.DisplayParam(pr))
		}
		ew.printf(" = %s", p.compName(inst.Comp))
		if len(inst.Args) > 0 {
			args := make([]string, 0, len(inst.Args))
			for _, a := range inst.Args {
				args = append(args, c.DisplayExpr(a))
			}
			ew.printf("[%s]", strings.Join(args, ", "))
		}
		if len(inst.Lives) > 0 {
			lives := make([]string, 0, len(inst.Lives))
			for _, l := range inst.Lives {
				lives = append(lives, c.DisplayRange(l))
			}
			ew.printf(" in %s", strings.Join(lives, ", "))
		}
		ew.printf(";\n")
	case *InvokeCmd:
		inv := c.Invocations.Get(cmd.Inv)
		events := make([]string, 0, len(inv.Events))
		for _, eb := range inv.Events {
			events = append(events, c.DisplayTime(eb.Arg))
		}
		ew.printf("%s%s = %s<%s>;\n", pad, c.DisplayInv(cmd.Inv), c.DisplayInst(inv.Inst), strings.Join(events, ", "))
		for _, port := range inv.Ports {
			pt := c.Ports.Get(port)
			ew.printf("%s  %s: bundle(%s) %s %s;\n", pad, c.DisplayPort(port), pt.Owner.Dir,
				c.DisplayLiveness(pt.Live), c.DisplayExpr(pt.Width))
		}
	case *BundleDef:
		pt := c.Ports.Get(cmd.Port)
		ew.printf("%s%s = bundle %s %s;\n", pad, c.DisplayPort(cmd.Port), c.DisplayLiveness(pt.Live), c.DisplayExpr(pt.Width))
	case *Connect:
		ew.printf("%s%s = %s;\n", pad, c.DisplayAccess(cmd.Dst), c.DisplayAccess(cmd.Src))
	case *Let:
		val := "?"
		if cmd.Expr != nil {
			val = c.DisplayExpr(*cmd.Expr)
		}
		ew.printf("%slet %s = %s;\n", pad, c.DisplayParam(cmd.Param), val)
	case *ForLoop:
		ew.printf("%sfor %s in %s..%s {\n", pad, c.DisplayParam(cmd.Index), c.DisplayExpr(cmd.Start), c.DisplayExpr(cmd.End))
		p.cmds(ew, cmd.Body, indent+2)
		ew.printf("%s}\n", pad)
	case *If:
		ew.printf("%sif %s {\n", pad, c.DisplayProp(cmd.Cond))
		p.cmds(ew, cmd.Then, indent+2)
		if len(cmd.Alt) > 0 {
			ew.printf("%s} else {\n", pad)
			p.cmds(ew, cmd.Alt, indent+2)
		}
		ew.printf("%s}\n", pad)
	case *Fact:
		kw := "assume"
		if cmd.Checked {
			kw = "assert"
		}
		ew.printf("%s%s %s;", pad, kw, c.DisplayProp(cmd.Prop))
		if !IsUnknown(cmd.Reason) && c.Infos.Valid(cmd.Reason) {
			if r := c.Infos.Get(cmd.Reason).Reason; r != nil && r.Kind == ReasonMisc {
				ew.printf(" // %s", r.Msg)
			}
		}
		ew.printf("\n")
	case *Exists:
		ew.printf("%sexists %s = %s;\n", pad, c.DisplayParam(cmd.Param), c.DisplayExpr(cmd.Expr))
	}
}
