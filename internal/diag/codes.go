package diag

import "fmt"

type Code uint16

const (
	UnknownCode Code = 0

	// Input and AST conversion.
	InpDecode             Code = 1001
	InpBadExpr            Code = 1002
	InpUnknownName        Code = 1003
	InpArity              Code = 1004
	InpMultipleToplevel   Code = 1005
	InpExternToplevel     Code = 1006
	InpNotExistential     Code = 1007
	InpBindings           Code = 1008
	InpDuplicateName      Code = 1009
	InpNoEntrypoint       Code = 1010
	InpGenTool            Code = 1011
	InpCycle              Code = 1012
	InpNonConcreteBinding Code = 1013
	InpVersion            Code = 1014

	// Structural checks.
	ChkPhantomShared    Code = 2001
	ChkPhantomLoop      Code = 2002
	ChkPhantomBinding   Code = 2003
	ChkNeverAssigned    Code = 2004
	ChkMultipleAssigned Code = 2005
	ChkInvalid          Code = 2006

	// Obligations that could not be discharged.
	ObgMisc             Code = 3000
	ObgParamConstraint  Code = 3001
	ObgEventConstraint  Code = 3002
	ObgExistsConstraint Code = 3003
	ObgBundleLen        Code = 3004
	ObgBundleWidth      Code = 3005
	ObgInBounds         Code = 3006
	ObgLiveness         Code = 3007
	ObgBundleDelay      Code = 3008
	ObgWellFormed       Code = 3009
	ObgEventTrigger     Code = 3010
	ObgUnproved         Code = 3011
	ObgEventLive        Code = 3012
	ObgEventLiveDelay   Code = 3013

	// Solver and toolchain.
	SolStart    Code = 4001
	SolProtocol Code = 4002
	SolCache    Code = 4003

	MonoDepth           Code = 5001
	MonoNonConcrete     Code = 5002
	MonoBundleInterface Code = 5003
)

var codeDescription = map[Code]string{
	UnknownCode:           "unknown error",
	InpDecode:             "malformed input",
	InpBadExpr:            "malformed expression",
	InpUnknownName:        "unknown name",
	InpArity:              "wrong number of arguments",
	InpMultipleToplevel:   "multiple top-level components",
	InpExternToplevel:     "external component marked top-level",
	InpNotExistential:     "parameter is not existentially quantified",
	InpBindings:           "invalid bindings file",
	InpDuplicateName:      "duplicate definition",
	InpNoEntrypoint:       "no entrypoint",
	InpGenTool:            "generator tool failed",
	InpCycle:              "cyclic instantiation",
	InpNonConcreteBinding: "entrypoint binding is not concrete",
	InpVersion:            "unsupported compiler version",
	ChkPhantomShared:      "phantom event on shared instance",
	ChkPhantomLoop:        "phantom event used inside a loop",
	ChkPhantomBinding:     "phantom event bound to interface event",
	ChkNeverAssigned:      "port never assigned",
	ChkMultipleAssigned:   "port assigned multiple times",
	ChkInvalid:            "malformed IR",
	ObgMisc:               "unproved fact",
	ObgParamConstraint:    "parameter constraint violated",
	ObgEventConstraint:    "event constraint violated",
	ObgExistsConstraint:   "existential constraint violated",
	ObgBundleLen:          "bundle length mismatch",
	ObgBundleWidth:        "bundle width mismatch",
	ObgInBounds:           "out of bounds access",
	ObgLiveness:           "liveness violation",
	ObgBundleDelay:        "bundle outlives event delay",
	ObgWellFormed:         "ill-formed interval",
	ObgEventTrigger:       "event triggers too often",
	ObgUnproved:           "solver could not decide obligation",
	ObgEventLive:          "invocation outside instance liveness",
	ObgEventLiveDelay:     "instance liveness exceeds event delay",
	SolStart:              "cannot start solver",
	SolProtocol:           "solver protocol error",
	SolCache:              "proof cache unavailable",
	MonoDepth:             "instantiation depth exceeded",
	MonoNonConcrete:       "value is not concrete",
	MonoBundleInterface:   "bundle port in a fixed interface",
}

// ID is the stable short form printed next to every diagnostic.
func (c Code) ID() string {
	switch ic := int(c); {
	case ic >= 1000 && ic < 2000:
		return fmt.Sprintf("INP%04d", ic)
	case ic >= 2000 && ic < 3000:
		return fmt.Sprintf("CHK%04d", ic)
	case ic >= 3000 && ic < 4000:
		return fmt.Sprintf("OBG%04d", ic)
	case ic >= 4000 && ic < 5000:
		return fmt.Sprintf("SOL%04d", ic)
	case ic >= 5000 && ic < 6000:
		return fmt.Sprintf("MON%04d", ic)
	}
	return "E0000"
}

func (c Code) Title() string {
	if desc, ok := codeDescription[c]; ok {
		return desc
	}
	return codeDescription[UnknownCode]
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}
