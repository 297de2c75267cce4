package ir

// Command is one statement of a component body. The concrete types are
// *InstanceCmd, *InvokeCmd, *BundleDef, *Connect, *Let, *ForLoop, *If,
// *Fact and *Exists.
type Command interface {
	command()
}

// Instance is a use of a component with concrete or symbolic parameters.
type Instance struct {
	Comp CompIdx
	Args []ExprIdx
	// Lives are the ranges during which the instance is in use.
	Lives []Range
	// Params mirror the existential parameters of Comp.
	Params []ParamIdx
	Info   InfoIdx
}

// EventBind binds an event of the invoked component to a time in the
// invoking one.
type EventBind struct {
	Delay TimeSub
	Arg   TimeIdx
	Info  InfoIdx
	Base  Foreign[EventIdx]
}

// Invoke is one use of an instance at specific times.
type Invoke struct {
	Inst   InstIdx
	Events []EventBind
	Ports  []PortIdx
	Info   InfoIdx
}

// InstanceCmd marks the position of an instance definition.
type InstanceCmd struct{ Inst InstIdx }

// InvokeCmd marks the position of an invocation.
type InvokeCmd struct{ Inv InvIdx }

// BundleDef defines a local bundle.
type BundleDef struct{ Port PortIdx }

// Connect writes src into dst.
type Connect struct {
	Dst  Access
	Src  Access
	Info InfoIdx
}

// Let binds a parameter to an expression. A nil Expr means the value is
// unknown to the body and is only constrained by facts.
type Let struct {
	Param ParamIdx
	Expr  *ExprIdx
}

// ForLoop repeats Body for Index in [Start, End).
type ForLoop struct {
	Index      ParamIdx
	Start, End ExprIdx
	Body       []Command
}

type If struct {
	Cond PropIdx
	Then []Command
	Alt  []Command
}

// Exists gives the value of an existentially quantified parameter of the
// component.
type Exists struct {
	Param ParamIdx
	Expr  ExprIdx
}

func (*InstanceCmd) command() {}
func (*InvokeCmd) command()   {}
func (*BundleDef) command()   {}
func (*Connect) command()     {}
func (*Let) command()         {}
func (*ForLoop) command()     {}
func (*If) command()          {}
func (*Fact) command()        {}
func (*Exists) command()      {}

// CloneCmds deep-copies a command list so that the copy can be edited
// independently. Interned and stored entities are shared.
func CloneCmds(cmds []Command) []Command {
	if cmds == nil {
		return nil
	}
	out := make([]Command, len(cmds))
	for i, c := range cmds {
		out[i] = CloneCmd(c)
	}
	return out
}

func CloneCmd(c Command) Command {
	switch c := c.(type) {
	case *InstanceCmd:
		cp := *c
		return &cp
	case *InvokeCmd:
		cp := *c
		return &cp
	case *BundleDef:
		cp := *c
		return &cp
	case *Connect:
		cp := *c
		cp.Dst.Ranges = append([]AccessRange(nil), c.Dst.Ranges...)
		cp.Src.Ranges = append([]AccessRange(nil), c.Src.Ranges...)
		return &cp
	case *Let:
		cp := *c
		if c.Expr != nil {
			e := *c.Expr
			cp.Expr = &e
		}
		return &cp
	case *ForLoop:
		cp := *c
		cp.Body = CloneCmds(c.Body)
		return &cp
	case *If:
		cp := *c
		cp.Then = CloneCmds(c.Then)
		cp.Alt = CloneCmds(c.Alt)
		return &cp
	case *Fact:
		cp := *c
		return &cp
	case *Exists:
		cp := *c
		return &cp
	}
	panic("ir: unknown command")
}

// WalkCmds calls fn on every command in pre-order, descending into loops
// and branches.
func WalkCmds(cmds []Command, fn func(Command)) {
	for _, c := range cmds {
		fn(c)
		switch c := c.(type) {
		case *ForLoop:
			WalkCmds(c.Body, fn)
		case *If:
			WalkCmds(c.Then, fn)
			WalkCmds(c.Alt, fn)
		}
	}
}
