package snapshot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okian/winchain/internal/domain/model"
	"github.com/okian/winchain/internal/domain/wingraph"
)

func openInMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open(InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func buildSnapshot(t *testing.T, generation string, games ...model.Game) *wingraph.Snapshot {
	t.Helper()
	b := wingraph.NewBuilder(wingraph.WithGeneration(generation))
	b.Add(games...)
	snap, err := b.Build()
	require.NoError(t, err)
	return snap
}

func win(p, o int64) model.Game {
	return model.Game{PlayerID: p, OpponentID: model.ID(o), Result: true}
}

func loss(p, o int64) model.Game {
	return model.Game{PlayerID: p, OpponentID: model.ID(o)}
}

func edgesOf(t *testing.T, g *wingraph.Graph) []wingraph.Edge {
	t.Helper()
	e, err := g.Edges()
	require.NoError(t, err)
	return e
}

// TestSaveLoadRoundTrip verifies a stored snapshot reloads with identical edges.
func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openInMemory(t)
	snap := buildSnapshot(t, "gen-a", win(1, 2), win(2, 3), win(4, 1), win(1, 2), loss(3, 4))

	wb, nb, err := s.Save(ctx, snap)
	require.NoError(t, err)
	assert.Positive(t, wb)
	assert.Positive(t, nb)

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, edgesOf(t, snap.Wins), edgesOf(t, got.Wins))
	assert.Equal(t, edgesOf(t, snap.Net), edgesOf(t, got.Net))
	assert.Equal(t, "gen-a", got.Meta.Generation)
	assert.Equal(t, snap.Meta.GamesScanned, got.Meta.GamesScanned)

	chain, found, err := got.FindChain(4, 3, false)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []int64{4, 1, 2, 3}, chain)

	meta, err := s.Meta(ctx)
	require.NoError(t, err)
	assert.Equal(t, "gen-a", meta.Generation)
}

// TestLoadMissing verifies an empty cache reports ErrNotFound.
func TestLoadMissing(t *testing.T) {
	s := openInMemory(t)

	_, err := s.Load(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Meta(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}

// TestLoadPartial verifies a snapshot with one graph missing is not loaded.
func TestLoadPartial(t *testing.T) {
	s := openInMemory(t)
	require.NoError(t, s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(keyWins, []byte(`{"1":[]}`))
	}))

	_, err := s.Load(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}

// TestLoadCorrupt verifies malformed parts surface as ErrSnapshotCorrupt.
func TestLoadCorrupt(t *testing.T) {
	cases := map[string]map[string]string{
		"bad key":  {"wins": `{"x":[]}`, "net": `{}`, "meta": `{}`},
		"bad json": {"wins": `{}`, "net": `[`, "meta": `{}`},
		"bad meta": {"wins": `{}`, "net": `{}`, "meta": `oops`},
	}
	for name, parts := range cases {
		t.Run(name, func(t *testing.T) {
			s := openInMemory(t)
			require.NoError(t, s.db.Update(func(txn *badger.Txn) error {
				for k, v := range map[string][]byte{
					string(keyWins): []byte(parts["wins"]),
					string(keyNet):  []byte(parts["net"]),
					string(keyMeta): []byte(parts["meta"]),
				} {
					if err := txn.Set([]byte(k), v); err != nil {
						return err
					}
				}
				return nil
			}))

			_, err := s.Load(context.Background())
			assert.ErrorIs(t, err, wingraph.ErrSnapshotCorrupt)
		})
	}
}

// TestFailedSaveKeepsPrevious verifies an aborted save leaves the old snapshot.
func TestFailedSaveKeepsPrevious(t *testing.T) {
	s := openInMemory(t)
	_, _, err := s.Save(context.Background(), buildSnapshot(t, "old", win(1, 2)))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = s.Save(ctx, buildSnapshot(t, "new", win(2, 1)))
	require.Error(t, err)

	got, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "old", got.Meta.Generation)
	_, ok := got.Wins.Weight(1, 2)
	assert.True(t, ok)
}

// TestOverwrite verifies the latest save wins.
func TestOverwrite(t *testing.T) {
	ctx := context.Background()
	s := openInMemory(t)
	_, _, err := s.Save(ctx, buildSnapshot(t, "one", win(1, 2)))
	require.NoError(t, err)
	_, _, err = s.Save(ctx, buildSnapshot(t, "two", win(2, 1), win(3, 1)))
	require.NoError(t, err)

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "two", got.Meta.Generation)
	assert.Equal(t, 3, got.Wins.Order())
	_, ok := got.Wins.Weight(1, 2)
	assert.False(t, ok)
}

// TestClear verifies a cleared cache behaves as empty.
func TestClear(t *testing.T) {
	ctx := context.Background()
	s := openInMemory(t)
	_, _, err := s.Save(ctx, buildSnapshot(t, "x", win(1, 2)))
	require.NoError(t, err)

	require.NoError(t, s.Clear(ctx))
	_, err = s.Load(ctx)
	assert.ErrorIs(t, err, ErrNotFound)
}

// TestPersistentReopen verifies snapshots survive closing the database.
func TestPersistentReopen(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig(t.TempDir())
	cfg.GCInterval = time.Hour

	s, err := Open(cfg)
	require.NoError(t, err)
	_, _, err = s.Save(ctx, buildSnapshot(t, "durable", win(1, 2), win(1, 2), loss(1, 2)))
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "second close is a no-op")

	_, err = s.Load(ctx)
	assert.ErrorIs(t, err, ErrClosed)

	s2, err := Open(cfg)
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "durable", got.Meta.Generation)
	w, ok := got.Net.Weight(1, 2)
	assert.True(t, ok)
	assert.Equal(t, 1, w)
}

// TestOpenValidation verifies configuration errors are reported.
func TestOpenValidation(t *testing.T) {
	_, err := Open(Config{})
	require.Error(t, err)

	cfg := DefaultConfig(t.TempDir())
	cfg.GCDiscardRatio = 2
	_, err = Open(cfg)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
}
