package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/okian/winchain/internal/adapters/mq/queue"
	"github.com/okian/winchain/internal/app"
)

// refreshRequest mirrors the OpenAPI schema for POST /refresh.
type refreshRequest struct {
	JobID string `json:"job_id"`
}

type ackResponse struct {
	Status    string `json:"status"`
	JobID     string `json:"job_id"`
	Duplicate bool   `json:"duplicate"`
}

// RefreshHandler handles refresh triggers from ingestion jobs.
type RefreshHandler struct {
	deps Refresher
}

// NewRefreshHandler creates a new refresh handler.
func NewRefreshHandler(deps Refresher) *RefreshHandler {
	return &RefreshHandler{deps: deps}
}

// HandlePostRefresh handles POST /refresh requests. The body is optional;
// without a job_id one is generated.
func (h *RefreshHandler) HandlePostRefresh(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_refresh"

	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	st, err := h.deps.RequestRefresh(r.Context(), strings.TrimSpace(req.JobID))
	switch {
	case err == nil && st.Duplicate:
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", JobID: st.JobID, Duplicate: true})
	case err == nil:
		writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", JobID: st.JobID})
	case errors.Is(err, queue.ErrFull):
		writeError(w, http.StatusTooManyRequests, "backpressure", WrapKind(op, ErrBackpressure, err))
	case errors.Is(err, queue.ErrClosed), errors.Is(err, app.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "unavailable", WrapKind(op, ErrUnavailable, err))
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", WrapKind(op, ErrInternal, err))
	}
}
