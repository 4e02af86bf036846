package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/okian/winchain/internal/domain/model"
)

// MemoryStore keeps players and games in process memory. Games are
// append-only so a scan can page over a stable prefix without holding the
// lock between pages.
type MemoryStore struct {
	mu      sync.RWMutex
	players map[int64]model.Player
	games   []model.Game
	nextID  int64
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{players: make(map[int64]model.Player)}
}

func (s *MemoryStore) ScanGames(ctx context.Context, pageSize int, fn func([]model.Game) error) error {
	if pageSize <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidPageSize, pageSize)
	}

	s.mu.RLock()
	all := s.games[:len(s.games):len(s.games)]
	s.mu.RUnlock()

	for off := 0; off < len(all); off += pageSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(off+pageSize, len(all))
		page := make([]model.Game, end-off)
		copy(page, all[off:end])
		if err := fn(page); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemoryStore) Player(_ context.Context, id int64) (model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.players[id]
	if !ok {
		return model.Player{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return p, nil
}

func (s *MemoryStore) SavePlayers(_ context.Context, players []model.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range players {
		s.players[p.ID] = p
	}
	return nil
}

func (s *MemoryStore) SaveGames(_ context.Context, games []model.Game) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, g := range games {
		s.nextID++
		g.ID = s.nextID
		s.games = append(s.games, g)
	}
	return nil
}

func (s *MemoryStore) Counts(_ context.Context) (int64, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.players)), int64(len(s.games)), nil
}

func (s *MemoryStore) Close() error { return nil }
