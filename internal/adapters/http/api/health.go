package api

import "net/http"

// HealthHandler handles health check requests.
type HealthHandler struct {
	stats StatsProvider
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(stats StatsProvider) *HealthHandler {
	return &HealthHandler{stats: stats}
}

type healthResponse struct {
	Status string `json:"status"`
	State  string `json:"state"`
}

// HandleHealth handles GET /healthz. The process is healthy while it serves
// requests; state tells whether graphs are loaded yet.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status: "ok",
		State:  h.stats.GetStats(r.Context()).State,
	})
}
