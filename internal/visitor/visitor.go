package visitor

import (
	"context"

	"filament/internal/config"
	"filament/internal/ir"
)

// Data is handed to every hook. Comp is detached from Ctx for the duration
// of the visit; use Get to read components uniformly.
type Data struct {
	Comp *ir.Component
	Idx  ir.CompIdx
	Opts *config.Options
	Ctx  *ir.Context
	// Context carries the tracer.
	Context context.Context
}

// Get returns component idx, which may be the one being visited.
func (d *Data) Get(idx ir.CompIdx) *ir.Component {
	if idx == d.Idx {
		return d.Comp
	}
	return d.Ctx.Get(idx)
}

// Visitor is a pass over component bodies. Hooks returning an Action may
// rewrite the command they receive.
type Visitor interface {
	// Name is the pass name used by --dump-after and in traces.
	Name() string
	// ClearData resets per-component state before each component.
	ClearData()
	// AfterTraversal runs once every component was visited. A true ok
	// means the pass failed with n errors.
	AfterTraversal() (n uint64, failed bool)

	// Start runs before the commands are visited. It may return Stop to
	// skip the component, or AddBefore to prepend commands.
	Start(d *Data) Action
	End(d *Data)

	Instance(inst ir.InstIdx, d *Data) Action
	Invoke(inv ir.InvIdx, d *Data) Action
	BundleDef(port ir.PortIdx, d *Data) Action
	Connect(con *ir.Connect, d *Data) Action
	Let(l *ir.Let, d *Data) Action
	Exists(e *ir.Exists, d *Data) Action
	Fact(f *ir.Fact, d *Data) Action

	StartLoop(l *ir.ForLoop, d *Data) Action
	EndLoop(l *ir.ForLoop, d *Data) Action
	StartIf(i *ir.If, d *Data) Action
	EndIf(i *ir.If, d *Data) Action

	// StartCmds and EndCmds bracket every command list: the body, loop
	// bodies and both branches of conditionals.
	StartCmds(cmds *[]ir.Command, d *Data)
	EndCmds(cmds *[]ir.Command, d *Data)
}

// LoopTraverser replaces the default traversal of loops.
type LoopTraverser interface {
	DoLoop(l *ir.ForLoop, d *Data) Action
}

// IfTraverser replaces the default traversal of conditionals.
type IfTraverser interface {
	DoIf(i *ir.If, d *Data) Action
}

// Base implements every hook as a no-op. Embed it and override.
type Base struct{}

func (Base) ClearData()                          {}
func (Base) AfterTraversal() (uint64, bool)      { return 0, false }
func (Base) Start(*Data) Action                  { return Continue }
func (Base) End(*Data)                           {}
func (Base) Instance(ir.InstIdx, *Data) Action   { return Continue }
func (Base) Invoke(ir.InvIdx, *Data) Action      { return Continue }
func (Base) BundleDef(ir.PortIdx, *Data) Action  { return Continue }
func (Base) Connect(*ir.Connect, *Data) Action   { return Continue }
func (Base) Let(*ir.Let, *Data) Action           { return Continue }
func (Base) Exists(*ir.Exists, *Data) Action     { return Continue }
func (Base) Fact(*ir.Fact, *Data) Action         { return Continue }
func (Base) StartLoop(*ir.ForLoop, *Data) Action { return Continue }
func (Base) EndLoop(*ir.ForLoop, *Data) Action   { return Continue }
func (Base) StartIf(*ir.If, *Data) Action        { return Continue }
func (Base) EndIf(*ir.If, *Data) Action          { return Continue }
func (Base) StartCmds(*[]ir.Command, *Data)      {}
func (Base) EndCmds(*[]ir.Command, *Data)        {}
