package wingraph

import (
	"errors"
	"fmt"

	"github.com/dominikbraun/graph"
)

// ShortestChain runs Dijkstra from -> to and returns the player ids along the
// cheapest path, both ends included. found is false, with a nil error, when
// either id is not a node or to is unreachable from from. When several paths
// share the minimal cost any one of them may be returned.
func (g *Graph) ShortestChain(from, to int64) (chain []int64, found bool, err error) {
	if !g.HasNode(from) || !g.HasNode(to) {
		return nil, false, nil
	}
	path, err := graph.ShortestPath(g.g, from, to)
	if errors.Is(err, graph.ErrTargetNotReachable) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("shortest %s path %d->%d: %w", g.kind, from, to, err)
	}
	return path, true, nil
}

// PathCost sums edge weights along path. It fails if a hop is not an edge.
func (g *Graph) PathCost(path []int64) (int, error) {
	total := 0
	for i := 1; i < len(path); i++ {
		w, ok := g.Weight(path[i-1], path[i])
		if !ok {
			return 0, fmt.Errorf("no %s edge %d->%d", g.kind, path[i-1], path[i])
		}
		total += w
	}
	return total, nil
}

// FindChain resolves a chain on the graph selected by useNetMargin.
func (s *Snapshot) FindChain(from, to int64, useNetMargin bool) ([]int64, bool, error) {
	return s.Select(useNetMargin).ShortestChain(from, to)
}
