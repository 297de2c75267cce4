package astconv

import (
	"filament/internal/ir"
)

// portKey identifies a port by how the body refers to it. Signature ports
// and invocation ports are looked up by direction so that an input and an
// output may share a name.
type portKey struct {
	kind ir.PortOwnerKind
	dir  ir.Direction
	inv  ir.InvIdx
	name string
}

func sigPortKey(dir ir.Direction, name string) portKey {
	return portKey{kind: ir.OwnerSig, dir: dir, inv: ir.UnknownInv, name: name}
}

func localPortKey(name string) portKey {
	return portKey{kind: ir.OwnerLocal, inv: ir.UnknownInv, name: name}
}

func invPortKey(inv ir.InvIdx, dir ir.Direction, name string) portKey {
	return portKey{kind: ir.OwnerInv, dir: dir, inv: inv, name: name}
}

// scope is one level of lexical nesting: the signature, the body, a loop
// body or a branch.
type scope struct {
	parent *scope
	params map[string]ir.ExprIdx
	ports  map[portKey]ir.PortIdx
	insts  map[string]ir.InstIdx
	invs   map[string]ir.InvIdx
}

func newScope(parent *scope) *scope {
	return &scope{
		parent: parent,
		params: make(map[string]ir.ExprIdx),
		ports:  make(map[portKey]ir.PortIdx),
		insts:  make(map[string]ir.InstIdx),
		invs:   make(map[string]ir.InvIdx),
	}
}

func lookup[K comparable, V any](s *scope, sel func(*scope) map[K]V, k K) (V, bool) {
	for ; s != nil; s = s.parent {
		if v, ok := sel(s)[k]; ok {
			return v, true
		}
	}
	var zero V
	return zero, false
}

func (s *scope) param(name string) (ir.ExprIdx, bool) {
	return lookup(s, func(s *scope) map[string]ir.ExprIdx { return s.params }, name)
}

func (s *scope) port(k portKey) (ir.PortIdx, bool) {
	return lookup(s, func(s *scope) map[portKey]ir.PortIdx { return s.ports }, k)
}

func (s *scope) inst(name string) (ir.InstIdx, bool) {
	return lookup(s, func(s *scope) map[string]ir.InstIdx { return s.insts }, name)
}

func (s *scope) inv(name string) (ir.InvIdx, bool) {
	return lookup(s, func(s *scope) map[string]ir.InvIdx { return s.invs }, name)
}
