package visitor

import (
	"fmt"

	"filament/internal/ir"
)

// VisitCmd dispatches one command to its hook.
func VisitCmd(v Visitor, cmd ir.Command, d *Data) Action {
	switch c := cmd.(type) {
	case *ir.InstanceCmd:
		return v.Instance(c.Inst, d)
	case *ir.InvokeCmd:
		return v.Invoke(c.Inv, d)
	case *ir.BundleDef:
		return v.BundleDef(c.Port, d)
	case *ir.Connect:
		return v.Connect(c, d)
	case *ir.ForLoop:
		if lt, ok := v.(LoopTraverser); ok {
			return lt.DoLoop(c, d)
		}
		return VisitLoop(v, c, d)
	case *ir.If:
		if it, ok := v.(IfTraverser); ok {
			return it.DoIf(c, d)
		}
		return VisitIf(v, c, d)
	case *ir.Fact:
		return v.Fact(c, d)
	case *ir.Exists:
		return v.Exists(c, d)
	case *ir.Let:
		return v.Let(c, d)
	}
	panic(fmt.Sprintf("visitor: unknown command %T", cmd))
}

// VisitLoop is the default loop traversal: StartLoop, the body, EndLoop.
func VisitLoop(v Visitor, l *ir.ForLoop, d *Data) Action {
	return v.StartLoop(l, d).
		AndThen(func() Action { return VisitCmds(v, &l.Body, d) }).
		AndThen(func() Action { return v.EndLoop(l, d) })
}

// VisitIf is the default conditional traversal: StartIf, then, else, EndIf.
func VisitIf(v Visitor, i *ir.If, d *Data) Action {
	return v.StartIf(i, d).
		AndThen(func() Action { return VisitCmds(v, &i.Then, d) }).
		AndThen(func() Action { return VisitCmds(v, &i.Alt, d) }).
		AndThen(func() Action { return v.EndIf(i, d) })
}

// VisitCmds visits a command list in order and rebuilds it from the
// actions returned. It returns Stop if a hook stopped, else Continue.
func VisitCmds(v Visitor, cmds *[]ir.Command, d *Data) Action {
	v.StartCmds(cmds, d)

	old := *cmds
	out := make([]ir.Command, 0, len(old))
	stopped := false
	for i, cmd := range old {
		act := VisitCmd(v, cmd, d)
		switch act.kind {
		case actStop:
			out = append(out, old[i:]...)
			stopped = true
		case actContinue:
			out = append(out, cmd)
		case actChange:
			out = append(out, act.cmds...)
		case actAddBefore:
			out = append(out, act.cmds...)
			out = append(out, cmd)
		}
		if stopped {
			break
		}
	}
	*cmds = out

	if stopped {
		return Stop
	}
	v.EndCmds(cmds, d)
	return Continue
}

// Visit runs v over the body of d.Comp.
func Visit(v Visitor, d *Data) {
	var pre []ir.Command
	act := v.Start(d)
	switch act.kind {
	case actStop:
		return
	case actAddBefore:
		pre = act.cmds
	case actChange:
		d.Comp.InternalError(fmt.Sprintf("%s: start must not change the component", v.Name()))
	}

	cmds := d.Comp.Cmds
	d.Comp.Cmds = nil
	VisitCmds(v, &cmds, d)
	d.Comp.Cmds = append(pre, cmds...)

	v.End(d)
}
