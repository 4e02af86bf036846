// Package wingraph builds the directed win and net-margin graphs from game
// records, encodes them as adjacency lists, and resolves shortest chains.
package wingraph

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/dominikbraun/graph"
)

// Kind names one of the two graphs.
type Kind string

// Graph kinds.
const (
	KindWins Kind = "wins" // A->B iff A beat B at least once, weight 1
	KindNet  Kind = "net"  // A->B iff net(A,B) > 0, weight net(A,B)
)

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindWins, KindNet:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

func playerHash(id int64) int64 { return id }

// Graph is an immutable directed graph of player ids. It is only mutated
// while being built or decoded and is safe for concurrent reads afterwards.
type Graph struct {
	kind  Kind
	g     graph.Graph[int64, int64]
	nodes int
	edges int
}

func newGraph(kind Kind) *Graph {
	opts := []func(*graph.Traits){graph.Directed()}
	if kind == KindNet {
		opts = append(opts, graph.Weighted())
	}
	return &Graph{kind: kind, g: graph.New(playerHash, opts...)}
}

func (g *Graph) addNode(id int64) error {
	err := g.g.AddVertex(id)
	switch {
	case err == nil:
		g.nodes++
		return nil
	case errors.Is(err, graph.ErrVertexAlreadyExists):
		return nil
	default:
		return err
	}
}

func (g *Graph) addEdge(from, to int64, weight int) error {
	var err error
	if g.kind == KindNet {
		err = g.g.AddEdge(from, to, graph.EdgeWeight(weight))
	} else {
		err = g.g.AddEdge(from, to)
	}
	if err != nil {
		return fmt.Errorf("add %s edge %d->%d: %w", g.kind, from, to, err)
	}
	g.edges++
	return nil
}

// Kind reports which graph this is.
func (g *Graph) Kind() Kind { return g.kind }

// Order returns the number of players in the graph.
func (g *Graph) Order() int { return g.nodes }

// Size returns the number of edges in the graph.
func (g *Graph) Size() int { return g.edges }

// HasNode reports whether id is a node of the graph.
func (g *Graph) HasNode(id int64) bool {
	_, err := g.g.Vertex(id)
	return err == nil
}

// Weight returns the weight of edge from->to. Win graph edges weigh 1.
func (g *Graph) Weight(from, to int64) (int, bool) {
	e, err := g.g.Edge(from, to)
	if err != nil {
		return 0, false
	}
	if g.kind != KindNet {
		return 1, true
	}
	return e.Properties.Weight, true
}

// Edge is a directed, weighted edge.
type Edge struct {
	From   int64
	To     int64
	Weight int
}

// Adjacency returns every node with its outgoing edges sorted by target id.
// Nodes without outgoing edges map to an empty slice.
func (g *Graph) Adjacency() (map[int64][]Edge, error) {
	am, err := g.g.AdjacencyMap()
	if err != nil {
		return nil, err
	}
	out := make(map[int64][]Edge, len(am))
	for from, targets := range am {
		list := make([]Edge, 0, len(targets))
		for to, e := range targets {
			w := 1
			if g.kind == KindNet {
				w = e.Properties.Weight
			}
			list = append(list, Edge{From: from, To: to, Weight: w})
		}
		slices.SortFunc(list, func(a, b Edge) int { return cmp.Compare(a.To, b.To) })
		out[from] = list
	}
	return out, nil
}

// Edges returns all edges ordered by source then target.
func (g *Graph) Edges() ([]Edge, error) {
	adj, err := g.Adjacency()
	if err != nil {
		return nil, err
	}
	out := make([]Edge, 0, g.edges)
	for _, id := range sortedKeys(adj) {
		out = append(out, adj[id]...)
	}
	return out, nil
}

// Nodes returns all node ids in ascending order.
func (g *Graph) Nodes() ([]int64, error) {
	adj, err := g.Adjacency()
	if err != nil {
		return nil, err
	}
	return sortedKeys(adj), nil
}

// Snapshot pairs the win and net-margin graphs built from the same game set.
// A Snapshot is never modified after it is published.
type Snapshot struct {
	Wins *Graph
	Net  *Graph
	Meta Meta
}

// Meta describes where a snapshot came from.
type Meta struct {
	Generation   string    `json:"generation"`
	BuiltAt      time.Time `json:"built_at"`
	GamesScanned int64     `json:"games_scanned"`
	GamesSkipped int64     `json:"games_skipped"`
	WinNodes     int       `json:"win_nodes"`
	WinEdges     int       `json:"win_edges"`
	NetNodes     int       `json:"net_nodes"`
	NetEdges     int       `json:"net_edges"`
}

// Select returns the net-margin graph when useNetMargin is set and the win
// graph otherwise.
func (s *Snapshot) Select(useNetMargin bool) *Graph {
	if useNetMargin {
		return s.Net
	}
	return s.Wins
}

func sortedKeys[V any](m map[int64]V) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
