package mono

import (
	"fmt"
	"strconv"
	"strings"

	"filament/internal/ir"
)

// Base is an index into a component built by monomorphization.
type Base[I ir.Index] struct{ idx I }

// Underlying is an index into the generic component being specialized.
// It cannot be used where a Base index is expected.
type Underlying[I ir.Index] struct{ idx I }

func base[I ir.Index](i I) Base[I]             { return Base[I]{idx: i} }
func underlying[I ir.Index](i I) Underlying[I] { return Underlying[I]{idx: i} }

func (b Base[I]) Get() I       { return b.idx }
func (u Underlying[I]) Get() I { return u.idx }

// ArgsKey is the canonical rendering of a parameter vector.
type ArgsKey string

func argsKey(params []uint64) ArgsKey {
	if len(params) == 0 {
		return ""
	}
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = strconv.FormatUint(p, 10)
	}
	return ArgsKey(strings.Join(parts, ", "))
}

// CompKey identifies one specialization: a generic component with concrete
// values for its signature parameters.
type CompKey struct {
	Comp Underlying[ir.CompIdx]
	Args ArgsKey
}

func NewCompKey(comp ir.CompIdx, params []uint64) CompKey {
	return CompKey{Comp: underlying(comp), Args: argsKey(params)}
}

func (k CompKey) String() string {
	return fmt.Sprintf("%s[%s]", k.Comp.Get(), k.Args)
}

// InstanceInfo maps the signature of a generic component to the signature
// of one of its specializations. Invocations in other components use it to
// retarget their foreign references.
type InstanceInfo struct {
	ports  map[Underlying[ir.PortIdx]]Base[ir.PortIdx]
	events map[Underlying[ir.EventIdx]]Base[ir.EventIdx]
	exists map[Underlying[ir.ParamIdx]]uint64
}

func newInstanceInfo() *InstanceInfo {
	return &InstanceInfo{
		ports:  make(map[Underlying[ir.PortIdx]]Base[ir.PortIdx]),
		events: make(map[Underlying[ir.EventIdx]]Base[ir.EventIdx]),
		exists: make(map[Underlying[ir.ParamIdx]]uint64),
	}
}

func (ii *InstanceInfo) Port(p Underlying[ir.PortIdx]) (Base[ir.PortIdx], bool) {
	b, ok := ii.ports[p]
	return b, ok
}

func (ii *InstanceInfo) Event(e Underlying[ir.EventIdx]) (Base[ir.EventIdx], bool) {
	b, ok := ii.events[e]
	return b, ok
}

// Exist returns the value an existential parameter took in this
// specialization.
func (ii *InstanceInfo) Exist(p Underlying[ir.ParamIdx]) (uint64, bool) {
	v, ok := ii.exists[p]
	return v, ok
}
