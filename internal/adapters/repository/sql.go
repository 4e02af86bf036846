package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/okian/winchain/internal/domain/model"
)

const defaultInsertBatch = 1000

// dialect captures the few differences between SQLite and Postgres.
type dialect struct {
	name       string
	driverName string // database/sql driver
	now        string
	numbered   bool // $1 placeholders instead of ?
}

var (
	sqliteDialect   = dialect{name: DriverSQLite, driverName: "sqlite", now: "CURRENT_TIMESTAMP"}
	postgresDialect = dialect{name: DriverPostgres, driverName: "pgx", now: "now()", numbered: true}
)

// rebind rewrites ? placeholders for dialects that number them.
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SQLStore is a database/sql backed Store for SQLite or Postgres.
type SQLStore struct {
	db      *sql.DB
	dialect dialect

	maxOpenConns    int
	connMaxLifetime time.Duration
	insertBatch     int
}

// OpenSQL connects to driver ("sqlite" or "postgres"), pings it and applies
// the embedded migrations.
func OpenSQL(ctx context.Context, driver, dsn string, opts ...Option) (*SQLStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("%s dsn is required", driver)
	}

	s := &SQLStore{insertBatch: defaultInsertBatch}
	switch strings.ToLower(driver) {
	case DriverSQLite:
		s.dialect = sqliteDialect
		s.maxOpenConns = 1
	case DriverPostgres:
		s.dialect = postgresDialect
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
	for _, opt := range opts {
		opt(s)
	}

	db, err := sql.Open(s.dialect.driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.dialect.name, err)
	}
	if s.maxOpenConns > 0 {
		db.SetMaxOpenConns(s.maxOpenConns)
	}
	if s.connMaxLifetime > 0 {
		db.SetConnMaxLifetime(s.connMaxLifetime)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", s.dialect.name, err)
	}
	if err := applyMigrations(ctx, db, s.dialect); err != nil {
		_ = db.Close()
		return nil, err
	}
	s.db = db
	return s, nil
}

func (s *SQLStore) ScanGames(ctx context.Context, pageSize int, fn func([]model.Game) error) error {
	if pageSize <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidPageSize, pageSize)
	}

	q := s.dialect.rebind(`SELECT id, player_id, opponent_id, result, tournament_id, played_at
FROM games WHERE id > ? ORDER BY id LIMIT ?`)

	var after int64
	for {
		page, err := s.gamesPage(ctx, q, after, pageSize)
		if err != nil {
			return err
		}
		if len(page) == 0 {
			return nil
		}
		if err := fn(page); err != nil {
			return err
		}
		if len(page) < pageSize {
			return nil
		}
		after = page[len(page)-1].ID
	}
}

func (s *SQLStore) gamesPage(ctx context.Context, q string, after int64, limit int) ([]model.Game, error) {
	rows, err := s.db.QueryContext(ctx, q, after, limit)
	if err != nil {
		return nil, fmt.Errorf("query games after %d: %w", after, err)
	}
	defer rows.Close()

	page := make([]model.Game, 0, limit)
	for rows.Next() {
		var (
			g          model.Game
			opponent   sql.NullInt64
			tournament sql.NullInt64
			playedAt   int64
		)
		if err := rows.Scan(&g.ID, &g.PlayerID, &opponent, &g.Result, &tournament, &playedAt); err != nil {
			return nil, fmt.Errorf("scan game: %w", err)
		}
		if opponent.Valid {
			g.OpponentID = model.ID(opponent.Int64)
		}
		if tournament.Valid {
			g.TournamentID = model.ID(tournament.Int64)
		}
		if playedAt != 0 {
			g.Date = time.Unix(playedAt, 0).UTC()
		}
		page = append(page, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate games: %w", err)
	}
	return page, nil
}

func (s *SQLStore) Player(ctx context.Context, id int64) (model.Player, error) {
	var p model.Player
	err := s.db.QueryRowContext(ctx, s.dialect.rebind(`SELECT id, name, rating, city FROM players WHERE id = ?`), id).
		Scan(&p.ID, &p.Name, &p.Rating, &p.City)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Player{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		return model.Player{}, fmt.Errorf("get player %d: %w", id, err)
	}
	return p, nil
}

func (s *SQLStore) SavePlayers(ctx context.Context, players []model.Player) error {
	q := s.dialect.rebind(`INSERT INTO players (id, name, rating, city) VALUES (?,?,?,?)
ON CONFLICT (id) DO UPDATE SET name = excluded.name, rating = excluded.rating, city = excluded.city`)
	return s.inBatches(ctx, len(players), q, func(stmt *sql.Stmt, i int) error {
		p := players[i]
		_, err := stmt.ExecContext(ctx, p.ID, p.Name, p.Rating, p.City)
		return err
	})
}

func (s *SQLStore) SaveGames(ctx context.Context, games []model.Game) error {
	q := s.dialect.rebind(`INSERT INTO games (player_id, opponent_id, result, tournament_id, played_at) VALUES (?,?,?,?,?)`)
	return s.inBatches(ctx, len(games), q, func(stmt *sql.Stmt, i int) error {
		g := games[i]
		var playedAt int64
		if !g.Date.IsZero() {
			playedAt = g.Date.Unix()
		}
		_, err := stmt.ExecContext(ctx, g.PlayerID, nullable(g.OpponentID), g.Result, nullable(g.TournamentID), playedAt)
		return err
	})
}

func nullable(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

// inBatches runs exec for rows [0,n) in transactions of insertBatch rows.
func (s *SQLStore) inBatches(ctx context.Context, n int, q string, exec func(*sql.Stmt, int) error) error {
	for start := 0; start < n; start += s.insertBatch {
		end := min(start+s.insertBatch, n)
		if err := s.withTx(ctx, func(tx *sql.Tx) error {
			stmt, err := tx.PrepareContext(ctx, q)
			if err != nil {
				return err
			}
			defer stmt.Close()
			for i := start; i < end; i++ {
				if err := exec(stmt, i); err != nil {
					return fmt.Errorf("row %d: %w", i, err)
				}
			}
			return nil
		}); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLStore) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *SQLStore) Counts(ctx context.Context) (int64, int64, error) {
	var players, games int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM players`).Scan(&players); err != nil {
		return 0, 0, fmt.Errorf("count players: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM games`).Scan(&games); err != nil {
		return 0, 0, fmt.Errorf("count games: %w", err)
	}
	return players, games, nil
}

// Close releases the connection pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
