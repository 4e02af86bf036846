// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/winchain/internal/domain/types"
	"github.com/okian/winchain/pkg/metrics"
)

// ChainResolver answers chain queries.
type ChainResolver interface {
	Chain(ctx context.Context, from, to int64, countAll bool) (types.ChainResult, error)
}

// Refresher accepts refresh requests from ingestion jobs.
type Refresher interface {
	RequestRefresh(ctx context.Context, jobID string) (types.RefreshStatus, error)
}

// StatsProvider reports service statistics.
type StatsProvider interface {
	GetStats(ctx context.Context) types.Stats
}

// Dependencies required by HTTP handlers.
type Dependencies interface {
	ChainResolver
	Refresher
	StatsProvider
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	chainHandler   *ChainHandler
	refreshHandler *RefreshHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	return &Server{
		healthHandler:  NewHealthHandler(deps),
		statsHandler:   NewStatsHandler(deps),
		chainHandler:   NewChainHandler(deps),
		refreshHandler: NewRefreshHandler(deps),
	}
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(_ context.Context, r chi.Router) {
	r.Get("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	r.Get("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	r.Get("/chain", MetricsMiddleware(s.chainHandler.HandleGetChain, "chain"))
	r.Post("/refresh", MetricsMiddleware(s.refreshHandler.HandlePostRefresh, "refresh"))
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
