package ast

import (
	"filament/internal/source"
)

// ParamBind declares a signature parameter with an optional default.
type ParamBind struct {
	Name    Ident
	Default *Expr
}

// SigBind is a parameter bound by the signature itself: a let binding, or
// an existential parameter whose value the body provides.
type SigBind struct {
	Name Ident
	// Let: the bound value. Nil for an existential.
	Expr   *Expr
	Opaque bool
	// Where constrains an existential.
	Where []Constraint
	Span  source.Span
}

func (b *SigBind) IsLet() bool { return b.Expr != nil }

// EventBind declares an event with its delay and an optional default time
// used when an invocation does not bind it.
type EventBind struct {
	Name    Ident
	Delay   TimeSub
	Default *Time
	Span    source.Span
}

// InterfaceDef names the interface port that signals an event.
type InterfaceDef struct {
	Name  Ident
	Event Ident
}

// PortDef is a port or a bundle of ports: name[len..]: for<idx..> [live] width.
// A plain port has one dimension of length 1.
type PortDef struct {
	Name  Ident
	Idxs  []Ident
	Lens  []*Expr
	Live  Range
	Width *Expr
	Span  source.Span
}

// Attrs are the component attributes.
type Attrs struct {
	Toplevel     bool
	ToplevelSpan source.Span
	CounterFSM   bool
}

// Signature is the interface of a component.
type Signature struct {
	Name       Ident
	Attrs      Attrs
	Params     []ParamBind
	SigBinds   []SigBind
	Events     []EventBind
	Interfaces []InterfaceDef
	Inputs     []PortDef
	Outputs    []PortDef

	ParamConstraints []Constraint
	EventConstraints []TimeConstraint
}

// Component is a signature with a body.
type Component struct {
	Sig  Signature
	Body []Command
}

// Extern declares components implemented outside the language, either in
// a file or by a generator tool.
type Extern struct {
	Path  string
	Gen   string
	Comps []Signature
}

// Requirement is the compiler version range a file declares with its
// filament key.
type Requirement struct {
	Constraint string
	Span       source.Span
}

// Namespace is a whole program after imports are resolved.
type Namespace struct {
	Imports    []string
	Requires   []Requirement
	Externs    []Extern
	Components []Component
	// Toplevel names the entry component when none carries the toplevel
	// attribute.
	Toplevel string
	// Bindings are the values of the entry component's parameters.
	Bindings []uint64
}

func NewNamespace() *Namespace {
	return &Namespace{Toplevel: "main"}
}

// RequiresGen reports whether some extern is provided by a generator tool.
func (ns *Namespace) RequiresGen() bool {
	for _, e := range ns.Externs {
		if e.Gen != "" {
			return true
		}
	}
	return false
}

// MainIdx returns the position in Components of the entry component: the
// one with the toplevel attribute, or else the one named ns.Toplevel.
func (ns *Namespace) MainIdx() (int, bool) {
	for i, c := range ns.Components {
		if c.Sig.Attrs.Toplevel {
			return i, true
		}
	}
	for i, c := range ns.Components {
		if c.Sig.Name.Name == ns.Toplevel {
			return i, true
		}
	}
	return 0, false
}

// ExternCount is the number of signatures declared by externs.
func (ns *Namespace) ExternCount() int {
	n := 0
	for _, e := range ns.Externs {
		n += len(e.Comps)
	}
	return n
}

// Merge appends the declarations of other after those of ns.
func (ns *Namespace) Merge(other *Namespace) {
	ns.Requires = append(ns.Requires, other.Requires...)
	ns.Externs = append(ns.Externs, other.Externs...)
	ns.Components = append(ns.Components, other.Components...)
}
