package wingraph

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
)

// neighbor is one entry of a persisted adjacency list. Weight is only
// written for the net-margin graph.
type neighbor struct {
	ID     int64 `json:"id"`
	Weight int   `json:"w,omitempty"`
}

// Encode serializes g as a JSON object mapping decimal player ids to their
// ascending neighbor lists. Every node is present, even without edges.
func Encode(g *Graph) ([]byte, error) {
	adj, err := g.Adjacency()
	if err != nil {
		return nil, err
	}
	doc := make(map[string][]neighbor, len(adj))
	for id, edges := range adj {
		list := make([]neighbor, 0, len(edges))
		for _, e := range edges {
			n := neighbor{ID: e.To}
			if g.kind == KindNet {
				n.Weight = e.Weight
			}
			list = append(list, n)
		}
		doc[strconv.FormatInt(id, 10)] = list
	}
	return json.Marshal(doc)
}

// Decode rebuilds a graph of the given kind from Encode output. Any
// malformed entry fails the whole decode with ErrSnapshotCorrupt.
func Decode(kind Kind, data []byte) (*Graph, error) {
	if _, err := ParseKind(string(kind)); err != nil {
		return nil, err
	}

	var doc map[string][]neighbor
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSnapshotCorrupt, kind, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: %s: empty document", ErrSnapshotCorrupt, kind)
	}

	adj := make(map[int64][]neighbor, len(doc))
	for key, list := range doc {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: non-integer key %q", ErrSnapshotCorrupt, kind, key)
		}
		if _, dup := adj[id]; dup {
			return nil, fmt.Errorf("%w: %s: duplicate key %q", ErrSnapshotCorrupt, kind, key)
		}
		adj[id] = list
	}

	g := newGraph(kind)
	ids := sortedKeys(adj)
	for _, id := range ids {
		if err := g.addNode(id); err != nil {
			return nil, err
		}
	}
	for _, id := range ids {
		for _, n := range adj[id] {
			if _, ok := adj[n.ID]; !ok {
				return nil, fmt.Errorf("%w: %s: neighbor %d of %d is not a node", ErrSnapshotCorrupt, kind, n.ID, id)
			}
			w := 1
			if kind == KindNet {
				if n.Weight <= 0 {
					return nil, fmt.Errorf("%w: %s: edge %d->%d has weight %d", ErrSnapshotCorrupt, kind, id, n.ID, n.Weight)
				}
				w = n.Weight
			}
			if _, exists := g.Weight(id, n.ID); exists {
				return nil, fmt.Errorf("%w: %s: duplicate edge %d->%d", ErrSnapshotCorrupt, kind, id, n.ID)
			}
			if err := g.addEdge(id, n.ID, w); err != nil {
				return nil, err
			}
		}
	}
	return g, nil
}

// EncodeSnapshot encodes both graphs of s.
func EncodeSnapshot(s *Snapshot) (wins, net []byte, err error) {
	if wins, err = Encode(s.Wins); err != nil {
		return nil, nil, fmt.Errorf("encode wins: %w", err)
	}
	if net, err = Encode(s.Net); err != nil {
		return nil, nil, fmt.Errorf("encode net: %w", err)
	}
	return wins, net, nil
}

// DecodeSnapshot rebuilds a Snapshot from both encoded graphs. The two
// graphs must share the same node set.
func DecodeSnapshot(wins, net []byte, meta Meta) (*Snapshot, error) {
	w, err := Decode(KindWins, wins)
	if err != nil {
		return nil, err
	}
	n, err := Decode(KindNet, net)
	if err != nil {
		return nil, err
	}

	wn, err := w.Nodes()
	if err != nil {
		return nil, err
	}
	nn, err := n.Nodes()
	if err != nil {
		return nil, err
	}
	if !slices.Equal(wn, nn) {
		return nil, fmt.Errorf("%w: win graph has %d nodes, net graph %d", ErrSnapshotCorrupt, len(wn), len(nn))
	}

	meta.WinNodes, meta.WinEdges = w.Order(), w.Size()
	meta.NetNodes, meta.NetEdges = n.Order(), n.Size()
	return &Snapshot{Wins: w, Net: n, Meta: meta}, nil
}
