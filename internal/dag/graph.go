// Package dag orders the nodes of a dependency graph. Node ids are dense
// uint32 values; callers map their own handles onto them.
package dag

import (
	"fmt"
	"slices"

	"fortio.org/safecast"
)

type NodeID uint32

type Graph struct {
	Edges   [][]NodeID // Edges[from] = []to
	Indeg   []int      // counts only edges between present nodes
	Present []bool     // deleted handles leave holes
}

// NewGraph creates a graph with n absent nodes.
func NewGraph(n int) *Graph {
	return &Graph{
		Edges:   make([][]NodeID, n),
		Indeg:   make([]int, n),
		Present: make([]bool, n),
	}
}

func toNode(i int) NodeID {
	id, err := safecast.Conv[NodeID](i)
	if err != nil {
		panic(fmt.Errorf("dag: node id overflow: %w", err))
	}
	return id
}

// Mark records that node id exists.
func (g *Graph) Mark(id NodeID) {
	g.Present[id] = true
}

// AddEdge records that from must come before to. Duplicate edges are
// ignored so in-degrees stay exact.
func (g *Graph) AddEdge(from, to NodeID) {
	if slices.Contains(g.Edges[from], to) {
		return
	}
	g.Edges[from] = append(g.Edges[from], to)
	g.Indeg[to]++
}
