package ir

import (
	"fmt"
	"math"
)

// Index is the constraint satisfied by every typed handle in the IR.
type Index interface {
	~uint32
}

// Typed handles. Each entity kind gets its own index space so that a port
// index can never be used where an expression index is expected.
type (
	CompIdx  uint32
	PortIdx  uint32
	ParamIdx uint32
	EventIdx uint32
	InstIdx  uint32
	InvIdx   uint32
	ExprIdx  uint32
	PropIdx  uint32
	TimeIdx  uint32
	InfoIdx  uint32
)

// Unknown marks a handle that has not been resolved yet.
const Unknown = math.MaxUint32

const (
	UnknownComp  CompIdx  = Unknown
	UnknownPort  PortIdx  = Unknown
	UnknownParam ParamIdx = Unknown
	UnknownEvent EventIdx = Unknown
	UnknownInst  InstIdx  = Unknown
	UnknownInv   InvIdx   = Unknown
	UnknownExpr  ExprIdx  = Unknown
	UnknownProp  PropIdx  = Unknown
	UnknownTime  TimeIdx  = Unknown
	UnknownInfo  InfoIdx  = Unknown
)

func idxString(prefix string, raw uint32) string {
	if raw == Unknown {
		return prefix + "?"
	}
	return fmt.Sprintf("%s%d", prefix, raw)
}

func (i CompIdx) String() string  { return idxString("comp", uint32(i)) }
func (i PortIdx) String() string  { return idxString("p", uint32(i)) }
func (i ParamIdx) String() string { return idxString("pr", uint32(i)) }
func (i EventIdx) String() string { return idxString("ev", uint32(i)) }
func (i InstIdx) String() string  { return idxString("inst", uint32(i)) }
func (i InvIdx) String() string   { return idxString("inv", uint32(i)) }
func (i ExprIdx) String() string  { return idxString("e", uint32(i)) }
func (i PropIdx) String() string  { return idxString("prop", uint32(i)) }
func (i TimeIdx) String() string  { return idxString("t", uint32(i)) }
func (i InfoIdx) String() string  { return idxString("info", uint32(i)) }

// IsUnknown reports whether the handle is the Unknown sentinel.
func IsUnknown[I Index](i I) bool {
	return uint32(i) == Unknown
}
