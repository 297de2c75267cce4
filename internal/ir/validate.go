package ir

import (
	"errors"
	"fmt"
)

type validator struct {
	ctx  *Context
	comp *Component
	idx  CompIdx
	errs []error
}

func (v *validator) failf(format string, args ...any) {
	v.errs = append(v.errs, fmt.Errorf("%s: %s", v.ctx.CompName(v.idx), fmt.Sprintf(format, args...)))
}

// Validate checks the structural invariants every pass relies on: handles
// point to live entities, ports and parameters agree on ownership and
// accesses match the dimensions of their ports. It returns all problems
// joined, or nil.
func Validate(ctx *Context) error {
	var errs []error
	ctx.Iter(func(idx CompIdx, c *Component) {
		if c == nil {
			return
		}
		if err := ValidateComponent(ctx, idx, c); err != nil {
			errs = append(errs, err)
		}
	})
	return errors.Join(errs...)
}

func ValidateComponent(ctx *Context, idx CompIdx, c *Component) error {
	v := &validator{ctx: ctx, comp: c, idx: idx}
	c.Ports.Iter(func(p PortIdx, _ Port) { v.port(p) })
	c.Instances.Iter(func(i InstIdx, _ Instance) { v.instance(i) })
	c.Invocations.Iter(func(i InvIdx, _ Invoke) { v.invoke(i) })
	for _, p := range c.ParamArgs {
		if !c.Params.Valid(p) || c.Params.Get(p).Owner.Kind != ParamSig {
			v.failf("signature parameter %s is not owned by the signature", p)
		}
	}
	for _, e := range c.EventArgs {
		if !c.Events.Valid(e) {
			v.failf("signature event %s is not defined", e)
		}
	}
	WalkCmds(c.Cmds, v.command)
	return errors.Join(v.errs...)
}

func (v *validator) expr(e ExprIdx) {
	if !v.comp.exprs.Valid(e) {
		v.failf("undefined expression %s", e)
	}
}

func (v *validator) time(t TimeIdx) {
	if !v.comp.times.Valid(t) {
		v.failf("undefined time %s", t)
		return
	}
	tm := v.comp.Time(t)
	if !v.comp.Events.Valid(tm.Event) {
		v.failf("time %s refers to undefined event %s", t, tm.Event)
	}
	v.expr(tm.Offset)
}

func (v *validator) timeSub(ts TimeSub) {
	if ts.Sym {
		v.time(ts.L)
		v.time(ts.R)
		return
	}
	v.expr(ts.Unit)
}

func (v *validator) prop(p PropIdx) {
	if !v.comp.props.Valid(p) {
		v.failf("undefined proposition %s", p)
	}
}

func (v *validator) port(p PortIdx) {
	c := v.comp
	port := c.Ports.Get(p)
	if len(port.Live.Idxs) != len(port.Live.Lens) {
		v.failf("port %s has %d index parameters for %d dimensions", p, len(port.Live.Idxs), len(port.Live.Lens))
	}
	for _, idx := range port.Live.Idxs {
		if !c.Params.Valid(idx) {
			v.failf("port %s uses undefined parameter %s", p, idx)
			continue
		}
		owner := c.Params.Get(idx).Owner
		if owner.Kind != ParamBundle || owner.Port != p {
			v.failf("index parameter %s of port %s is owned by %s", idx, p, owner)
		}
	}
	for _, l := range port.Live.Lens {
		v.expr(l)
	}
	v.expr(port.Width)
	v.time(port.Live.Range.Start)
	v.time(port.Live.Range.End)
	if port.Owner.Kind == OwnerInv {
		if !c.Invocations.Valid(port.Owner.Inv) {
			v.failf("port %s is owned by undefined invocation %s", p, port.Owner.Inv)
		}
	}
}

func (v *validator) instance(i InstIdx) {
	inst := v.comp.Instances.Get(i)
	if !v.ctx.Valid(inst.Comp) {
		v.failf("instance %s refers to undefined component %s", i, inst.Comp)
	}
	for _, a := range inst.Args {
		v.expr(a)
	}
	for _, p := range inst.Params {
		if !v.comp.Params.Valid(p) {
			v.failf("instance %s exposes undefined parameter %s", i, p)
			continue
		}
		owner := v.comp.Params.Get(p).Owner
		if owner.Kind != ParamInstance || owner.Inst != i {
			v.failf("parameter %s of instance %s is owned by %s", p, i, owner)
		}
	}
}

func (v *validator) invoke(i InvIdx) {
	c := v.comp
	inv := c.Invocations.Get(i)
	if !c.Instances.Valid(inv.Inst) {
		v.failf("invocation %s refers to undefined instance %s", i, inv.Inst)
		return
	}
	comp := c.Instances.Get(inv.Inst).Comp
	for _, p := range inv.Ports {
		if !c.Ports.Valid(p) {
			v.failf("invocation %s defines undefined port %s", i, p)
			continue
		}
		owner := c.Ports.Get(p).Owner
		if owner.Kind != OwnerInv || owner.Inv != i {
			v.failf("port %s of invocation %s is owned by %s", p, i, owner)
		} else if owner.Base.Owner != comp {
			v.failf("port %s of invocation %s mirrors a port of %s instead of %s", p, i, owner.Base.Owner, comp)
		}
	}
	for _, eb := range inv.Events {
		v.time(eb.Arg)
		v.timeSub(eb.Delay)
		if eb.Base.Owner != comp {
			v.failf("event binding of invocation %s refers to %s instead of %s", i, eb.Base.Owner, comp)
		}
	}
}

func (v *validator) access(a Access) {
	c := v.comp
	if !c.Ports.Valid(a.Port) {
		v.failf("access of undefined port %s", a.Port)
		return
	}
	if dims := c.Ports.Get(a.Port).Live.Dims(); dims != len(a.Ranges) {
		v.failf("access of port %s has %d ranges for %d dimensions", a.Port, len(a.Ranges), dims)
	}
	for _, r := range a.Ranges {
		v.expr(r.Start)
		v.expr(r.End)
	}
}

func (v *validator) paramOwned(p ParamIdx, kind ParamOwnerKind, what string) {
	if !v.comp.Params.Valid(p) {
		v.failf("%s binds undefined parameter %s", what, p)
		return
	}
	if owner := v.comp.Params.Get(p).Owner; owner.Kind != kind {
		v.failf("%s binds parameter %s owned by %s", what, p, owner)
	}
}

func (v *validator) command(cmd Command) {
	c := v.comp
	switch cmd := cmd.(type) {
	case *InstanceCmd:
		if !c.Instances.Valid(cmd.Inst) {
			v.failf("undefined instance %s", cmd.Inst)
		}
	case *InvokeCmd:
		if !c.Invocations.Valid(cmd.Inv) {
			v.failf("undefined invocation %s", cmd.Inv)
		}
	case *BundleDef:
		if !c.Ports.Valid(cmd.Port) {
			v.failf("undefined bundle %s", cmd.Port)
		} else if !c.Ports.Get(cmd.Port).IsLocal() {
			v.failf("bundle definition of non-local port %s", cmd.Port)
		}
	case *Connect:
		v.access(cmd.Dst)
		v.access(cmd.Src)
	case *Let:
		v.paramOwned(cmd.Param, ParamLet, "let")
		if cmd.Expr != nil {
			v.expr(*cmd.Expr)
		}
	case *ForLoop:
		v.paramOwned(cmd.Index, ParamLoop, "loop")
		v.expr(cmd.Start)
		v.expr(cmd.End)
	case *If:
		v.prop(cmd.Cond)
	case *Fact:
		v.prop(cmd.Prop)
		if !c.Infos.Valid(cmd.Reason) {
			v.failf("fact %s has undefined reason %s", cmd.Prop, cmd.Reason)
		}
	case *Exists:
		v.paramOwned(cmd.Param, ParamExists, "exists")
		v.expr(cmd.Expr)
	}
}
