// Package seed generates synthetic players and games and writes them to a
// repository. Output is fully determined by the seed.
package seed

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/okian/winchain/internal/adapters/repository"
	"github.com/okian/winchain/internal/domain/model"
	"github.com/okian/winchain/pkg/logger"
)

// Generation constants.
const (
	defaultBatchSize   = 1_000
	baseRating         = 1_200
	ratingSpread       = 400
	eloScale           = 400.0
	tournamentCount    = 20
	unknownOpponentOdd = 50 // one match in this many lost its opponent
	matchInterval      = 37 * time.Minute
)

// ErrInvalidConfig is returned for non-positive sizes.
var ErrInvalidConfig = errors.New("invalid seed config")

var (
	firstNames = []string{"Anna", "Boris", "Clara", "Dmitri", "Elena", "Fedor", "Galina", "Igor", "Katya", "Leonid", "Maria", "Nikolai", "Olga", "Pavel", "Sofia", "Timur"}
	lastNames  = []string{"Ivanova", "Petrov", "Smirnova", "Volkov", "Kuznetsova", "Popov", "Sokolova", "Lebedev", "Kozlova", "Novikov"}
	cities     = []string{"Moscow", "Kazan", "Samara", "Tver", "Omsk"}
)

// Config sizes the generated data.
type Config struct {
	Players   int
	Matches   int
	Seed      uint64
	BatchSize int
	Start     time.Time
}

func (c Config) validate() error {
	switch {
	case c.Players < 2:
		return fmt.Errorf("%w: need at least 2 players, got %d", ErrInvalidConfig, c.Players)
	case c.Matches < 0:
		return fmt.Errorf("%w: negative match count %d", ErrInvalidConfig, c.Matches)
	}
	return nil
}

// Generator produces players and matches from a seeded PCG source.
type Generator struct {
	cfg Config
	rng *rand.Rand
}

// NewGenerator returns a generator for cfg.
func NewGenerator(cfg Config) *Generator {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.Start.IsZero() {
		cfg.Start = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return &Generator{cfg: cfg, rng: rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))}
}

// Players returns cfg.Players players with ids 1..n.
func (g *Generator) Players() []model.Player {
	out := make([]model.Player, g.cfg.Players)
	for i := range out {
		out[i] = model.Player{
			ID:     int64(i + 1),
			Name:   firstNames[g.rng.IntN(len(firstNames))] + " " + lastNames[g.rng.IntN(len(lastNames))],
			Rating: baseRating + int(g.rng.NormFloat64()*ratingSpread/2),
			City:   cities[g.rng.IntN(len(cities))],
		}
	}
	return out
}

// Match plays the i-th match between two distinct players. The winner is
// drawn with the Elo expected score. Usually both perspectives are recorded;
// occasionally only the first player's record survives and it lost its
// opponent.
func (g *Generator) Match(players []model.Player, i int) []model.Game {
	a := players[g.rng.IntN(len(players))]
	b := players[g.rng.IntN(len(players)-1)]
	if b.ID >= a.ID {
		b = players[b.ID] // skip a: ids are index+1
	}

	expected := 1 / (1 + math.Pow(10, float64(b.Rating-a.Rating)/eloScale))
	aWon := g.rng.Float64() < expected
	date := g.cfg.Start.Add(time.Duration(i) * matchInterval)
	tournament := model.ID(int64(g.rng.IntN(tournamentCount) + 1))

	if g.rng.IntN(unknownOpponentOdd) == 0 {
		return []model.Game{{PlayerID: a.ID, Result: aWon, TournamentID: tournament, Date: date}}
	}
	return []model.Game{
		{PlayerID: a.ID, OpponentID: model.ID(b.ID), Result: aWon, TournamentID: tournament, Date: date},
		{PlayerID: b.ID, OpponentID: model.ID(a.ID), Result: !aWon, TournamentID: tournament, Date: date},
	}
}

// Result summarizes a seeding run.
type Result struct {
	Players int
	Games   int
	Took    time.Duration
}

// Run writes generated players and games to w in batches.
func Run(ctx context.Context, w repository.Writer, cfg Config) (Result, error) {
	if err := cfg.validate(); err != nil {
		return Result{}, err
	}
	log := logger.Get().Named("seed")
	start := time.Now()
	g := NewGenerator(cfg)

	players := g.Players()
	for lo := 0; lo < len(players); lo += g.cfg.BatchSize {
		hi := min(lo+g.cfg.BatchSize, len(players))
		if err := w.SavePlayers(ctx, players[lo:hi]); err != nil {
			return Result{}, fmt.Errorf("save players: %w", err)
		}
	}
	log.Info(ctx, "players written", logger.Int("players", len(players)))

	res := Result{Players: len(players)}
	batch := make([]model.Game, 0, g.cfg.BatchSize+1)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := w.SaveGames(ctx, batch); err != nil {
			return fmt.Errorf("save games: %w", err)
		}
		res.Games += len(batch)
		batch = batch[:0]
		return nil
	}

	for i := range cfg.Matches {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		batch = append(batch, g.Match(players, i)...)
		if len(batch) >= g.cfg.BatchSize {
			if err := flush(); err != nil {
				return res, err
			}
			log.Debug(ctx, "games written", logger.Int("games", res.Games))
		}
	}
	if err := flush(); err != nil {
		return res, err
	}

	res.Took = time.Since(start)
	log.Info(ctx, "seeding finished",
		logger.Int("players", res.Players),
		logger.Int("games", res.Games),
		logger.Duration("took", res.Took),
	)
	return res, nil
}
