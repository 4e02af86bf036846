// Package repository stores players and game records and serves the paged
// game scan the graph builder consumes.
package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/okian/winchain/internal/domain/model"
)

// Supported storage drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// GameSource yields every game record in ascending id order, pageSize records
// at a time. fn's error stops the scan and is returned unchanged. The slice
// passed to fn is owned by the callee.
type GameSource interface {
	ScanGames(ctx context.Context, pageSize int, fn func([]model.Game) error) error
}

// PlayerLookup fetches display data for a player.
// Returns ErrNotFound if the player is unknown.
type PlayerLookup interface {
	Player(ctx context.Context, id int64) (model.Player, error)
}

// Writer ingests players and games.
type Writer interface {
	// SavePlayers inserts players or updates them by id.
	SavePlayers(ctx context.Context, players []model.Player) error
	// SaveGames appends game records; ids are assigned by the store.
	SaveGames(ctx context.Context, games []model.Game) error
}

// Store is the full storage surface used by the service and the CLI.
type Store interface {
	GameSource
	PlayerLookup
	Writer

	// Counts returns the number of stored players and games.
	Counts(ctx context.Context) (players, games int64, err error)
	Close() error
}

// Open returns the store for driver. dsn is ignored by the memory driver.
func Open(ctx context.Context, driver, dsn string, opts ...Option) (Store, error) {
	switch strings.ToLower(driver) {
	case DriverMemory:
		return NewMemoryStore(), nil
	case DriverSQLite, DriverPostgres:
		return OpenSQL(ctx, driver, dsn, opts...)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}
