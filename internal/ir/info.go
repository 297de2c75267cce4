package ir

import (
	"fmt"

	"filament/internal/diag"
	"filament/internal/source"
)

// InfoKind discriminates Info.
type InfoKind uint8

const (
	InfoEmpty InfoKind = iota
	InfoAssert
	InfoParam
	InfoEvent
	InfoEventBind
	InfoInstance
	InfoInvoke
	InfoConnect
	InfoPort
)

// Info is the surface-level provenance of an IR entity. It only feeds error
// messages and printing; no pass may change behavior based on it.
type Info struct {
	Kind InfoKind
	Name source.NameID

	Bind source.Span
	// Event: location of the delay. EventBind: the invoked event's delay.
	Delay source.Span
	// Event: name and location of the interface port, if any.
	Interface     source.NameID
	InterfaceBind source.Span
	Comp          source.Span   // Instance
	Lives         []source.Span // Instance: one per declared liveness
	Inst          source.Span   // Invoke
	EventBinds    []source.Span // Invoke: one per event argument
	Dst, Src      source.Span   // Connect
	Width, Live   source.Span   // Port

	Reason *Reason // Assert
}

func EmptyInfo() Info {
	ns := source.NoSpan
	return Info{
		Bind: ns, Delay: ns, InterfaceBind: ns, Comp: ns, Inst: ns,
		Dst: ns, Src: ns, Width: ns, Live: ns,
	}
}

func AssertInfo(r Reason) Info { return Info{Kind: InfoAssert, Reason: &r} }
func ParamInfo(name source.NameID, bind source.Span) Info {
	return Info{Kind: InfoParam, Name: name, Bind: bind}
}

func EventInfo(name source.NameID, bind, delay source.Span, iface source.NameID, ifaceBind source.Span) Info {
	return Info{Kind: InfoEvent, Name: name, Bind: bind, Delay: delay, Interface: iface, InterfaceBind: ifaceBind}
}

func EventBindInfo(evDelay, bind source.Span) Info {
	return Info{Kind: InfoEventBind, Delay: evDelay, Bind: bind}
}

func InstanceInfo(name source.NameID, comp, bind source.Span) Info {
	return Info{Kind: InfoInstance, Name: name, Comp: comp, Bind: bind}
}

func InvokeInfo(name source.NameID, inst, bind source.Span) Info {
	return Info{Kind: InfoInvoke, Name: name, Inst: inst, Bind: bind}
}

func ConnectInfo(dst, src source.Span) Info {
	return Info{Kind: InfoConnect, Dst: dst, Src: src}
}

func PortInfo(name source.NameID, bind, width, live source.Span) Info {
	return Info{Kind: InfoPort, Name: name, Bind: bind, Width: width, Live: live}
}

// Info returns the provenance of an entity, or an empty Info when id is
// unknown.
func (c *Component) Info(id InfoIdx) Info {
	if IsUnknown(id) || !c.Infos.Valid(id) {
		return EmptyInfo()
	}
	return c.Infos.Get(id)
}

// Reason returns the reason attached to an assertion info, if any.
func (c *Component) Reason(id InfoIdx) *Reason {
	return c.Info(id).Reason
}

// Loc returns the most useful location of the entity.
func (i *Info) Loc() source.Span {
	switch i.Kind {
	case InfoConnect:
		return i.Dst.Cover(i.Src)
	case InfoAssert, InfoEmpty:
		return source.NoSpan
	}
	return i.Bind
}

// ReasonKind discriminates Reason.
type ReasonKind uint8

const (
	ReasonMisc ReasonKind = iota
	ReasonParamConstraint
	ReasonEventConstraint
	ReasonExistsConstraint
	ReasonBundleLenMatch
	ReasonBundleWidthMatch
	ReasonInBoundsAccess
	ReasonLiveness
	ReasonBundleDelay
	ReasonWellFormedInterval
	ReasonEventTrig
	ReasonEventLive
	ReasonEventLiveDelay
)

// ParamRange describes the values a bundle index can take.
type ParamRange struct {
	Bind       source.Span
	Start, End ExprIdx
}

// Reason explains why an assertion exists.
type Reason struct {
	Kind ReasonKind
	Msg  string // Misc

	Def        source.Span // Misc, InBoundsAccess
	Bind       source.Span // constraints
	Constraint source.Span // constraints; NoSpan for an exists without one
	Dst, Src   source.Span
	Access     source.Span
	Range      source.Span
	EvDelay    source.Span
	CompEv     source.Span
	TimeExpr   source.Span

	Dim              int
	Len              ExprIdx // InBoundsAccess
	DstLen, SrcLen   ExprIdx // BundleLenMatch, BundleWidthMatch
	DstLive, SrcLive Range
	Live             TimeSub // BundleDelay
	Params           []ParamRange
	Start, End       TimeIdx // WellFormedInterval
	EvDelayVal       TimeSub // EventTrig
	DelayVal         TimeSub // EventTrig
}

func MiscReason(msg string, def source.Span) Reason {
	return Reason{Kind: ReasonMisc, Msg: msg, Def: def}
}

func ParamConstraintReason(bind, constraint source.Span) Reason {
	return Reason{Kind: ReasonParamConstraint, Bind: bind, Constraint: constraint}
}

func EventConstraintReason(bind, constraint source.Span) Reason {
	return Reason{Kind: ReasonEventConstraint, Bind: bind, Constraint: constraint}
}

func ExistsConstraintReason(bind, constraint source.Span) Reason {
	return Reason{Kind: ReasonExistsConstraint, Bind: bind, Constraint: constraint}
}

func BundleLenReason(dst, src source.Span, dstLen, srcLen ExprIdx) Reason {
	return Reason{Kind: ReasonBundleLenMatch, Dst: dst, Src: src, DstLen: dstLen, SrcLen: srcLen}
}

func BundleWidthReason(dst, src source.Span, dstWidth, srcWidth ExprIdx) Reason {
	return Reason{Kind: ReasonBundleWidthMatch, Dst: dst, Src: src, DstLen: dstWidth, SrcLen: srcWidth}
}

func InBoundsReason(def source.Span, dim int, access source.Span, dimLen ExprIdx) Reason {
	return Reason{Kind: ReasonInBoundsAccess, Def: def, Dim: dim, Access: access, Len: dimLen}
}

func LivenessReason(dst, src source.Span, dstLive, srcLive Range) Reason {
	return Reason{Kind: ReasonLiveness, Dst: dst, Src: src, DstLive: dstLive, SrcLive: srcLive}
}

func BundleDelayReason(evDelay, rng source.Span, live TimeSub, params []ParamRange) Reason {
	return Reason{Kind: ReasonBundleDelay, EvDelay: evDelay, Range: rng, Live: live, Params: params}
}

func WellFormedReason(rng source.Span, start, end TimeIdx) Reason {
	return Reason{Kind: ReasonWellFormedInterval, Range: rng, Start: start, End: end}
}

func EventTrigReason(evDelayLoc source.Span, evDelay TimeSub, compEv source.Span, delay TimeSub, timeExpr source.Span) Reason {
	return Reason{
		Kind: ReasonEventTrig, EvDelay: evDelayLoc, EvDelayVal: evDelay,
		CompEv: compEv, DelayVal: delay, TimeExpr: timeExpr,
	}
}

// EventLiveReason explains that an invocation must happen while its
// instance is live: use is the invocation's active range, borrow the
// liveness the instance declared.
func EventLiveReason(live source.Span, borrow, use Range, bind source.Span) Reason {
	return Reason{Kind: ReasonEventLive, Range: live, SrcLive: borrow, DstLive: use, TimeExpr: bind}
}

func EventLiveDelayReason(live source.Span, length TimeSub, evDelay source.Span, delay TimeSub) Reason {
	return Reason{Kind: ReasonEventLiveDelay, Range: live, Live: length, EvDelay: evDelay, DelayVal: delay}
}

var reasonCodes = [...]diag.Code{
	ReasonMisc:               diag.ObgMisc,
	ReasonParamConstraint:    diag.ObgParamConstraint,
	ReasonEventConstraint:    diag.ObgEventConstraint,
	ReasonExistsConstraint:   diag.ObgExistsConstraint,
	ReasonBundleLenMatch:     diag.ObgBundleLen,
	ReasonBundleWidthMatch:   diag.ObgBundleWidth,
	ReasonInBoundsAccess:     diag.ObgInBounds,
	ReasonLiveness:           diag.ObgLiveness,
	ReasonBundleDelay:        diag.ObgBundleDelay,
	ReasonWellFormedInterval: diag.ObgWellFormed,
	ReasonEventTrig:          diag.ObgEventTrigger,
	ReasonEventLive:          diag.ObgEventLive,
	ReasonEventLiveDelay:     diag.ObgEventLiveDelay,
}

// Code returns the diagnostic code used when the assertion fails.
func (r *Reason) Code() diag.Code { return reasonCodes[r.Kind] }

// Loc returns the location the reason points at.
func (r *Reason) Loc() source.Span {
	switch r.Kind {
	case ReasonMisc:
		return r.Def
	case ReasonParamConstraint, ReasonEventConstraint, ReasonExistsConstraint:
		if r.Constraint.IsValid() {
			return r.Constraint
		}
		return r.Bind
	case ReasonInBoundsAccess:
		return r.Access
	case ReasonBundleLenMatch:
		return r.Dst
	case ReasonBundleWidthMatch, ReasonLiveness:
		return r.Src
	case ReasonEventTrig, ReasonEventLive:
		return r.TimeExpr
	}
	return r.Range
}

// Diagnostic renders the failure of an assertion justified by r.
func (r *Reason) Diagnostic(c *Component) diag.Diagnostic {
	d := diag.NewError(r.Code(), source.NoSpan, "")
	note := func(sp source.Span, msg string) {
		d.Notes = append(d.Notes, diag.Note{Span: sp, Msg: msg})
	}
	primary := func(sp source.Span, label string) {
		d.Primary, d.Label = sp, label
	}
	switch r.Kind {
	case ReasonMisc:
		d.Message = r.Msg
		if r.Def.IsValid() {
			primary(r.Def, r.Msg)
		}
	case ReasonExistsConstraint:
		d.Message = "component's body does not satisfy constraint on existentially-quantified parameter"
		if r.Constraint.IsValid() {
			primary(r.Constraint, "cannot prove constraint")
			note(r.Bind, "existentially quantified parameter")
		} else {
			primary(r.Bind, "cannot prove constraint on existentially quantified parameter")
		}
	case ReasonParamConstraint:
		d.Message = "instantiation violates parameter constraint"
		primary(r.Constraint, "constraint was violated")
		note(r.Bind, "instantiation occurs here")
	case ReasonEventConstraint:
		d.Message = "invocation violates event constraint"
		primary(r.Constraint, "constraint was violated")
		note(r.Bind, "invocation occurs here")
	case ReasonInBoundsAccess:
		d.Message = "out of bounds access of bundle"
		primary(r.Access, "out of bounds access")
		note(r.Def, fmt.Sprintf("dimension %d has length %s", r.Dim, c.DisplayExpr(r.Len)))
	case ReasonBundleLenMatch:
		sw, dw := c.DisplayExpr(r.SrcLen), c.DisplayExpr(r.DstLen)
		d.Message = fmt.Sprintf("required bundle of size `%s' but found bundle of size `%s'", dw, sw)
		primary(r.Dst, "length of bundle is "+dw)
		note(r.Src, "length of bundle is "+sw)
	case ReasonBundleWidthMatch:
		sw, dw := c.DisplayExpr(r.SrcLen), c.DisplayExpr(r.DstLen)
		d.Message = fmt.Sprintf("required bundle of width `%s' but found bundle of width `%s'", dw, sw)
		primary(r.Src, "source has width "+sw)
		note(r.Dst, "destination has width "+dw)
	case ReasonLiveness:
		d.Message = "source port does not provide value for as long as destination requires"
		primary(r.Src, "source is available for "+c.DisplayRange(r.SrcLive))
		note(r.Dst, "requires value for "+c.DisplayRange(r.DstLive))
	case ReasonBundleDelay:
		d.Message = "bundle's availability is greater than the delay of the event"
		primary(r.Range, fmt.Sprintf("available for %s cycles", c.DisplayTimeSub(r.Live)))
		note(r.EvDelay, "event's delay")
		for _, p := range r.Params {
			if p.Bind.IsValid() {
				note(p.Bind, fmt.Sprintf("takes values in [%s, %s)", c.DisplayExpr(p.Start), c.DisplayExpr(p.End)))
			}
		}
	case ReasonWellFormedInterval:
		d.Message = "interval's end must be strictly greater than the start"
		primary(r.Range, fmt.Sprintf("interval's end `%s' is not strictly greater than the start `%s'",
			c.DisplayTime(r.End), c.DisplayTime(r.Start)))
	case ReasonEventTrig:
		d.Message = "event provided to invocation triggers more often that invocation's event's delay allows"
		primary(r.TimeExpr, "event provided to invoke triggers too often")
		note(r.EvDelay, fmt.Sprintf("invocation's event is allowed to trigger every %s cycles", c.DisplayTimeSub(r.EvDelayVal)))
		note(r.CompEv, fmt.Sprintf("this event triggers every %s cycles", c.DisplayTimeSub(r.DelayVal)))
	case ReasonEventLive:
		d.Message = "invocation uses the instance outside of its declared liveness"
		primary(r.TimeExpr, "instance is used during "+c.DisplayRange(r.DstLive))
		note(r.Range, "instance is live during "+c.DisplayRange(r.SrcLive))
	case ReasonEventLiveDelay:
		d.Message = "instance is live for longer than the delay of its event"
		primary(r.Range, fmt.Sprintf("instance is live for %s cycles", c.DisplayTimeSub(r.Live)))
		note(r.EvDelay, fmt.Sprintf("event's delay is %s cycles", c.DisplayTimeSub(r.DelayVal)))
	}
	return d
}
