package ast

import (
	"filament/internal/source"
)

// Command is one statement of a component body.
type Command interface {
	command()
}

// Instance creates an instance of a component: name := new Comp[args].
type Instance struct {
	Name  Ident
	Comp  Ident
	Args  []*Expr
	Lives []Range
	Span  source.Span
}

// Invoke uses an instance: name := inst<times>(ports).
type Invoke struct {
	Name   Ident
	Inst   Ident
	Events []Time
	Ports  []Port
	Span   source.Span
}

// Access selects [Start, End) of one bundle dimension.
type Access struct {
	Start, End *Expr
	Span       source.Span
}

// Port names a port of the component (Inv is empty) or of an invocation,
// optionally narrowed by accesses.
type Port struct {
	Inv    Ident
	Name   Ident
	Access []Access
	Span   source.Span
}

// Connect writes Src into Dst.
type Connect struct {
	Dst, Src Port
	Span     source.Span
}

// ParamLet binds a local parameter. A nil Expr leaves the value open.
type ParamLet struct {
	Name Ident
	Expr *Expr
}

// Exists gives the value of an existential parameter of the signature.
type Exists struct {
	Name Ident
	Expr *Expr
}

// Fact is an assertion (Checked) or an assumption.
type Fact struct {
	Checked bool
	Cons    Implication
	Span    source.Span
}

type ForLoop struct {
	Index      Ident
	Start, End *Expr
	Body       []Command
}

type If struct {
	Cond Constraint
	Then []Command
	Alt  []Command
}

// Bundle defines a local bundle.
type Bundle struct {
	Def PortDef
}

func (*Instance) command() {}
func (*Invoke) command()   {}
func (*Connect) command()  {}
func (*ParamLet) command() {}
func (*Exists) command()   {}
func (*Fact) command()     {}
func (*ForLoop) command()  {}
func (*If) command()       {}
func (*Bundle) command()   {}
