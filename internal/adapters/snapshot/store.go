// Package snapshot persists the win and net-margin adjacency lists in a
// badger database so a restarted process can skip the full rebuild.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/okian/winchain/internal/domain/wingraph"
)

// Keys under which a snapshot is stored. All three are written in one
// transaction.
var (
	keyWins = []byte("snapshot/wins")
	keyNet  = []byte("snapshot/net")
	keyMeta = []byte("snapshot/meta")
)

// Store is a durable two-graph snapshot cache.
type Store struct {
	db *badger.DB
	gc *gcRunner

	mu     sync.RWMutex
	closed bool
}

// Open opens (or creates) the snapshot cache described by cfg.
func Open(cfg Config) (*Store, error) {
	db, err := openBadger(cfg)
	if err != nil {
		return nil, err
	}

	s := &Store{db: db}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		runner, err := newGCRunner(db, cfg.GCInterval, cfg.GCDiscardRatio, cfg.Logger)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("create gc runner: %w", err)
		}
		s.gc = runner
		runner.start()
	}
	return s, nil
}

// Save encodes both graphs of snap and replaces the stored snapshot.
// Either the whole snapshot is committed or the previous one is kept.
// It returns the encoded sizes of the win and net graphs.
func (s *Store) Save(ctx context.Context, snap *wingraph.Snapshot) (winsBytes, netBytes int, err error) {
	wins, net, err := wingraph.EncodeSnapshot(snap)
	if err != nil {
		return 0, 0, err
	}
	meta, err := json.Marshal(snap.Meta)
	if err != nil {
		return 0, 0, fmt.Errorf("encode meta: %w", err)
	}

	err = s.withTxn(ctx, true, func(txn *badger.Txn) error {
		for _, kv := range []struct{ k, v []byte }{{keyWins, wins}, {keyNet, net}, {keyMeta, meta}} {
			if err := txn.Set(kv.k, kv.v); err != nil {
				return fmt.Errorf("set %s: %w", kv.k, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, 0, fmt.Errorf("save snapshot: %w", err)
	}
	return len(wins), len(net), nil
}

// Load reads and decodes the stored snapshot. It returns ErrNotFound when
// any part is missing and an error wrapping wingraph.ErrSnapshotCorrupt
// when a part cannot be decoded.
func (s *Store) Load(ctx context.Context) (*wingraph.Snapshot, error) {
	var wins, net, metaRaw []byte
	err := s.withTxn(ctx, false, func(txn *badger.Txn) error {
		var err error
		if wins, err = get(txn, keyWins); err != nil {
			return err
		}
		if net, err = get(txn, keyNet); err != nil {
			return err
		}
		metaRaw, err = get(txn, keyMeta)
		return err
	})
	if err != nil {
		return nil, err
	}

	var meta wingraph.Meta
	if err := json.Unmarshal(metaRaw, &meta); err != nil {
		return nil, fmt.Errorf("%w: meta: %v", wingraph.ErrSnapshotCorrupt, err)
	}
	return wingraph.DecodeSnapshot(wins, net, meta)
}

// Meta returns the metadata of the stored snapshot without decoding graphs.
func (s *Store) Meta(ctx context.Context) (wingraph.Meta, error) {
	var meta wingraph.Meta
	err := s.withTxn(ctx, false, func(txn *badger.Txn) error {
		raw, err := get(txn, keyMeta)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(raw, &meta); err != nil {
			return fmt.Errorf("%w: meta: %v", wingraph.ErrSnapshotCorrupt, err)
		}
		return nil
	})
	return meta, err
}

// Clear removes the stored snapshot.
func (s *Store) Clear(ctx context.Context) error {
	return s.withTxn(ctx, true, func(txn *badger.Txn) error {
		for _, k := range [][]byte{keyWins, keyNet, keyMeta} {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close stops value log GC and closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.gc != nil {
		s.gc.stop()
	}
	return s.db.Close()
}

func (s *Store) withTxn(ctx context.Context, update bool, fn func(*badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}

	txn := s.db.NewTransaction(update)
	defer txn.Discard()

	if err := fn(txn); err != nil {
		return err
	}
	if !update {
		return nil
	}
	return txn.Commit()
}

func get(txn *badger.Txn, key []byte) ([]byte, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return item.ValueCopy(nil)
}
