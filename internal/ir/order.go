package ir

import (
	"fmt"
	"strings"

	"filament/internal/dag"
)

// CycleError reports components that instantiate each other.
type CycleError struct {
	Comps []CompIdx
	Names []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("ir: cyclic instantiation between components %s", strings.Join(e.Names, ", "))
}

func (ctx *Context) depGraph() *dag.Graph {
	g := dag.NewGraph(ctx.Len())
	ctx.Iter(func(idx CompIdx, c *Component) {
		g.Mark(dag.NodeID(idx))
		c.Instances.Iter(func(_ InstIdx, inst Instance) {
			if ctx.Valid(inst.Comp) && !ctx.Get(inst.Comp).IsExt() {
				g.AddEdge(dag.NodeID(inst.Comp), dag.NodeID(idx))
			}
		})
	})
	return g
}

// Order returns every component after the components it instantiates.
// Components in the same batch do not depend on each other.
func (ctx *Context) Order() (order []CompIdx, batches [][]CompIdx, err error) {
	topo := dag.ToposortKahn(ctx.depGraph())
	if topo.Cyclic {
		cerr := &CycleError{}
		for _, n := range topo.Cycles {
			cerr.Comps = append(cerr.Comps, CompIdx(n))
			cerr.Names = append(cerr.Names, ctx.CompName(CompIdx(n)))
		}
		return nil, nil, cerr
	}
	order = make([]CompIdx, len(topo.Order))
	for i, n := range topo.Order {
		order[i] = CompIdx(n)
	}
	batches = make([][]CompIdx, len(topo.Batches))
	for i, b := range topo.Batches {
		batches[i] = make([]CompIdx, len(b))
		for j, n := range b {
			batches[i][j] = CompIdx(n)
		}
	}
	return order, batches, nil
}
