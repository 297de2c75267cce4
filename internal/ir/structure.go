package ir

import (
	"fmt"
	"strings"
)

// Foreign refers to an entity owned by another component. It is only a
// lookup key and can be resolved through a Context.
type Foreign[K Index] struct {
	Key   K
	Owner CompIdx
}

// NewForeign pairs a key with the component that owns it.
func NewForeign[K Index](key K, owner CompIdx) Foreign[K] {
	return Foreign[K]{Key: key, Owner: owner}
}

func (f Foreign[K]) String() string {
	return fmt.Sprintf("%d@%s", uint32(f.Key), f.Owner)
}

// Range is the half-open interval [Start, End).
type Range struct {
	Start, End TimeIdx
}

func (r Range) String() string {
	return fmt.Sprintf("[%s, %s]", r.Start, r.End)
}

// Direction of a port, seen from inside the component body: an Out port
// produces values the body can read, an In port must be written by the body.
type Direction uint8

const (
	DirIn Direction = iota
	DirOut
)

func (d Direction) String() string {
	if d == DirIn {
		return "in"
	}
	return "out"
}

// Reverse flips the direction.
func (d Direction) Reverse() Direction {
	if d == DirIn {
		return DirOut
	}
	return DirIn
}

// PortOwnerKind discriminates PortOwner.
type PortOwnerKind uint8

const (
	OwnerSig PortOwnerKind = iota
	OwnerInv
	OwnerLocal
)

// PortOwner records where a port comes from.
type PortOwner struct {
	Kind PortOwnerKind
	Dir  Direction
	Inv  InvIdx           // OwnerInv only
	Base Foreign[PortIdx] // OwnerInv only: the signature port it implements
}

// SigIn is the owner of a signature input port. Inside the body it is a
// source, hence DirOut.
func SigIn() PortOwner  { return PortOwner{Kind: OwnerSig, Dir: DirOut} }
func SigOut() PortOwner { return PortOwner{Kind: OwnerSig, Dir: DirIn} }
func LocalOwner() PortOwner {
	return PortOwner{Kind: OwnerLocal}
}

// InvOwner is the owner of a port defined by an invocation.
func InvOwner(inv InvIdx, dir Direction, base Foreign[PortIdx]) PortOwner {
	return PortOwner{Kind: OwnerInv, Dir: dir, Inv: inv, Base: base}
}

func (o PortOwner) String() string {
	switch o.Kind {
	case OwnerSig:
		return fmt.Sprintf("sig(%s)", o.Dir)
	case OwnerInv:
		return fmt.Sprintf("%s(%s)", o.Inv, o.Dir)
	}
	return "local"
}

// Liveness is the bundle type of a port: one index parameter and one length
// per dimension, and the availability range, which may mention the indices.
type Liveness struct {
	Idxs  []ParamIdx
	Lens  []ExprIdx
	Range Range
}

// Dims returns the number of bundle dimensions.
func (l Liveness) Dims() int { return len(l.Lens) }

// Port is a signal or a bundle of signals.
type Port struct {
	Owner PortOwner
	Width ExprIdx
	Live  Liveness
	Info  InfoIdx
}

func (p Port) IsSig() bool   { return p.Owner.Kind == OwnerSig }
func (p Port) IsInv() bool   { return p.Owner.Kind == OwnerInv }
func (p Port) IsLocal() bool { return p.Owner.Kind == OwnerLocal }

// IsSigIn reports a signature input port.
func (p Port) IsSigIn() bool { return p.IsSig() && p.Owner.Dir == DirOut }

// IsSigOut reports a signature output port.
func (p Port) IsSigOut() bool { return p.IsSig() && p.Owner.Dir == DirIn }

// IsInvIn reports an input port of an invocation.
func (p Port) IsInvIn() bool { return p.IsInv() && p.Owner.Dir == DirIn }

// IsInvOut reports an output port of an invocation.
func (p Port) IsInvOut() bool { return p.IsInv() && p.Owner.Dir == DirOut }

// AccessRange is one dimension of a bundle access: [Start, End).
type AccessRange struct {
	Start, End ExprIdx
}

// Access selects a sub-bundle of a port.
type Access struct {
	Port   PortIdx
	Ranges []AccessRange
}

func (a Access) String() string {
	var sb strings.Builder
	sb.WriteString(a.Port.String())
	for _, r := range a.Ranges {
		fmt.Fprintf(&sb, "{%s..%s}", r.Start, r.End)
	}
	return sb.String()
}

// ParamOwnerKind discriminates ParamOwner.
type ParamOwnerKind uint8

const (
	ParamSig ParamOwnerKind = iota
	ParamLoop
	ParamLet
	ParamBundle
	ParamInstance
	ParamExists
)

// ParamOwner records what binds a parameter.
type ParamOwner struct {
	Kind   ParamOwnerKind
	Bind   ExprIdx           // ParamLet: the bound value, UnknownExpr if unbound
	Port   PortIdx           // ParamBundle
	Inst   InstIdx           // ParamInstance
	Base   Foreign[ParamIdx] // ParamInstance: the existential it mirrors
	Opaque bool              // ParamExists
}

func SigParam() ParamOwner                { return ParamOwner{Kind: ParamSig} }
func LoopParam() ParamOwner               { return ParamOwner{Kind: ParamLoop} }
func LetParam(bind ExprIdx) ParamOwner    { return ParamOwner{Kind: ParamLet, Bind: bind} }
func BundleParam(port PortIdx) ParamOwner { return ParamOwner{Kind: ParamBundle, Port: port} }
func ExistsParam(opaque bool) ParamOwner  { return ParamOwner{Kind: ParamExists, Opaque: opaque} }

// InstanceParam is an existential parameter of a sub-component, exposed
// through one of its instances.
func InstanceParam(inst InstIdx, base Foreign[ParamIdx]) ParamOwner {
	return ParamOwner{Kind: ParamInstance, Inst: inst, Base: base}
}

func (o ParamOwner) String() string {
	switch o.Kind {
	case ParamSig:
		return "sig"
	case ParamLoop:
		return "loop"
	case ParamLet:
		if IsUnknown(o.Bind) {
			return "let"
		}
		return fmt.Sprintf("let(%s)", o.Bind)
	case ParamBundle:
		return fmt.Sprintf("bundle(%s)", o.Port)
	case ParamInstance:
		return fmt.Sprintf("inst(%s, %s)", o.Inst, o.Base)
	case ParamExists:
		if o.Opaque {
			return "opaque exists"
		}
		return "exists"
	}
	return "?"
}

// Param is an integer-valued parameter.
type Param struct {
	Owner ParamOwner
	Info  InfoIdx
}

func (p *Param) IsSigOwned() bool { return p.Owner.Kind == ParamSig }
func (p *Param) IsExists() bool   { return p.Owner.Kind == ParamExists }

// Event is a recurring trigger. Delay is the minimum number of cycles
// between two consecutive triggers.
type Event struct {
	Delay        TimeSub
	Info         InfoIdx
	HasInterface bool
}

// IsPhantom reports an event without an interface port.
func (e *Event) IsPhantom() bool { return !e.HasInterface }
