package wingraph

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/okian/winchain/internal/domain/model"
)

// GameSource yields every stored game record, page by page. Implementations
// stop early and return the callback's error when it fails.
type GameSource interface {
	ScanGames(ctx context.Context, pageSize int, fn func([]model.Game) error) error
}

// Option applies a configuration option to the Builder.
type Option func(*Builder)

// WithProgress calls fn every n scanned records. n <= 0 disables it.
func WithProgress(n int, fn func(scanned int64)) Option {
	return func(b *Builder) {
		if n > 0 && fn != nil {
			b.progressEvery = int64(n)
			b.onProgress = fn
		}
	}
}

// WithClock overrides the build timestamp source.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) {
		if now != nil {
			b.now = now
		}
	}
}

// WithGeneration fixes the snapshot generation id instead of a random uuid.
func WithGeneration(id string) Option {
	return func(b *Builder) {
		if id != "" {
			b.generation = id
		}
	}
}

type pair struct{ from, to int64 }

// Builder accumulates game records and produces a Snapshot. The result only
// depends on the multiset of records added, never on their order or on how
// they were paged.
type Builder struct {
	nodes map[int64]struct{}
	wins  map[pair]struct{}
	net   map[pair]int

	scanned int64
	skipped int64

	progressEvery int64
	onProgress    func(int64)
	now           func() time.Time
	generation    string
}

// NewBuilder returns an empty Builder.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		nodes: make(map[int64]struct{}),
		wins:  make(map[pair]struct{}),
		net:   make(map[pair]int),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Add folds game records into the builder. Records without a known opponent
// are counted as skipped.
func (b *Builder) Add(games ...model.Game) {
	for _, g := range games {
		b.scanned++
		if b.progressEvery > 0 && b.scanned%b.progressEvery == 0 {
			b.onProgress(b.scanned)
		}

		opp, ok := g.Opponent()
		if !ok {
			b.skipped++
			continue
		}
		b.nodes[g.PlayerID] = struct{}{}
		b.nodes[opp] = struct{}{}

		p := pair{from: g.PlayerID, to: opp}
		if g.Result {
			b.wins[p] = struct{}{}
			b.net[p]++
		} else {
			b.net[p]--
		}
	}
}

// Scanned returns the number of records added so far.
func (b *Builder) Scanned() int64 { return b.scanned }

// Build materializes both graphs. Both share the node universe of every
// player seen in a game with a known opponent.
func (b *Builder) Build() (*Snapshot, error) {
	ids := sortedKeys(b.nodes)

	wins := newGraph(KindWins)
	net := newGraph(KindNet)
	for _, id := range ids {
		if err := wins.addNode(id); err != nil {
			return nil, err
		}
		if err := net.addNode(id); err != nil {
			return nil, err
		}
	}

	for _, p := range sortedPairs(b.wins) {
		if err := wins.addEdge(p.from, p.to, 1); err != nil {
			return nil, err
		}
	}
	for _, p := range sortedPairs(b.net) {
		if w := b.net[p]; w > 0 {
			if err := net.addEdge(p.from, p.to, w); err != nil {
				return nil, err
			}
		}
	}

	gen := b.generation
	if gen == "" {
		gen = uuid.NewString()
	}
	return &Snapshot{
		Wins: wins,
		Net:  net,
		Meta: Meta{
			Generation:   gen,
			BuiltAt:      b.now().UTC(),
			GamesScanned: b.scanned,
			GamesSkipped: b.skipped,
			WinNodes:     wins.Order(),
			WinEdges:     wins.Size(),
			NetNodes:     net.Order(),
			NetEdges:     net.Size(),
		},
	}, nil
}

// Build scans src in pages of pageSize and builds a Snapshot. A scan error or
// a cancelled ctx aborts the build and nothing is returned.
func Build(ctx context.Context, src GameSource, pageSize int, opts ...Option) (*Snapshot, error) {
	b := NewBuilder(opts...)
	err := src.ScanGames(ctx, pageSize, func(page []model.Game) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		b.Add(page...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan games: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return b.Build()
}

func sortedPairs[V any](m map[pair]V) []pair {
	out := make([]pair, 0, len(m))
	for p := range m {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b pair) int {
		if c := cmp.Compare(a.from, b.from); c != 0 {
			return c
		}
		return cmp.Compare(a.to, b.to)
	})
	return out
}
