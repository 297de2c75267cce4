package dag

import "slices"

type Topo struct {
	Order   []NodeID   // linear order over present nodes
	Batches [][]NodeID // waves of mutually independent nodes
	Cyclic  bool
	Cycles  []NodeID // nodes left with pending edges
}

// ToposortKahn runs Kahn's algorithm. Within a batch nodes are sorted by
// id so the order is deterministic.
func ToposortKahn(g *Graph) *Topo {
	n := len(g.Edges)
	indeg := slices.Clone(g.Indeg)
	// edges from absent nodes never get removed
	for from := range n {
		if g.Present[from] {
			continue
		}
		for _, to := range g.Edges[from] {
			indeg[to]--
		}
	}

	topo := &Topo{Order: make([]NodeID, 0, n)}
	active := 0
	var current []NodeID
	for i := range n {
		if !g.Present[i] {
			continue
		}
		active++
		if indeg[i] == 0 {
			current = append(current, toNode(i))
		}
	}

	for len(current) > 0 {
		batch := slices.Clone(current)
		topo.Batches = append(topo.Batches, batch)
		var next []NodeID
		for _, id := range batch {
			topo.Order = append(topo.Order, id)
			for _, to := range g.Edges[id] {
				if !g.Present[to] {
					continue
				}
				indeg[to]--
				if indeg[to] == 0 {
					next = append(next, to)
				}
			}
		}
		slices.Sort(next)
		current = next
	}

	if len(topo.Order) != active {
		topo.Cyclic = true
		for i := range n {
			if g.Present[i] && indeg[i] > 0 {
				topo.Cycles = append(topo.Cycles, toNode(i))
			}
		}
	}
	return topo
}
