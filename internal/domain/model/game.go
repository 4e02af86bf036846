// Package model contains domain models passed between layers.
package model

import "time"

// Game is one recorded match from the perspective of PlayerID.
// Result is true when PlayerID beat OpponentID. Several records may exist
// for the same ordered pair.
type Game struct {
	ID           int64
	PlayerID     int64
	OpponentID   *int64 // nil when the opponent is not known
	Result       bool
	TournamentID *int64
	Date         time.Time
}

// Opponent returns the opponent id and whether it is known.
func (g Game) Opponent() (int64, bool) {
	if g.OpponentID == nil {
		return 0, false
	}
	return *g.OpponentID, true
}

// Player carries the display data used to enrich resolved chains.
type Player struct {
	ID     int64
	Name   string
	Rating int
	City   string
}

// RefreshRequest asks for a graph rebuild after new games were ingested.
type RefreshRequest struct {
	JobID       string    // unique id for idempotency
	Reason      string    // e.g. "ingest", "schedule", "cli"
	RequestedAt time.Time // when the trigger fired
}

// ID returns a pointer to v; handy for optional id fields.
func ID(v int64) *int64 { return &v }
