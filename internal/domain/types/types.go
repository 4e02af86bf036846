// Package types contains JSON payload types shared by the API and the CLI.
package types

import "time"

// ChainLink is one player in a resolved chain.
type ChainLink struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Rating int    `json:"rating"`
}

// ChainResult is the answer to a chain query. Found is false when either
// player is unknown or no directed path exists; Chain is then empty.
// From and To describe the queried players whether or not a chain exists.
type ChainResult struct {
	Found    bool        `json:"found"`
	CountAll bool        `json:"count_all"`
	From     *ChainLink  `json:"from,omitempty"`
	To       *ChainLink  `json:"to,omitempty"`
	Chain    []ChainLink `json:"chain"`
}

// Stats describes the live graph service.
type Stats struct {
	State            string     `json:"state"`
	Generation       string     `json:"generation,omitempty"`
	WinNodes         int        `json:"win_nodes"`
	WinEdges         int        `json:"win_edges"`
	NetNodes         int        `json:"net_nodes"`
	NetEdges         int        `json:"net_edges"`
	GamesScanned     int64      `json:"games_scanned"`
	BuiltAt          *time.Time `json:"built_at,omitempty"`
	LastRebuildMs    int64      `json:"last_rebuild_ms"`
	LastError        string     `json:"last_error,omitempty"`
	Rebuilds         int64      `json:"rebuilds"`
	FailedRebuilds   int64      `json:"failed_rebuilds"`
	RefreshQueueSize int        `json:"refresh_queue_size"`
}

// RefreshStatus acknowledges a refresh request. Duplicate is true when the
// job id was already seen and nothing was queued.
type RefreshStatus struct {
	JobID     string `json:"job_id"`
	Duplicate bool   `json:"duplicate"`
}
