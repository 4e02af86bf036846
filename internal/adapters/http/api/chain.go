package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/okian/winchain/internal/app"
)

// ChainHandler handles chain queries.
type ChainHandler struct {
	deps ChainResolver
}

// NewChainHandler creates a new chain handler.
func NewChainHandler(deps ChainResolver) *ChainHandler {
	return &ChainHandler{deps: deps}
}

// HandleGetChain handles GET /chain?player1_id=&player2_id=&count_all=.
// A missing connection is a normal 200 answer with found=false.
func (h *ChainHandler) HandleGetChain(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_chain"
	q := r.URL.Query()

	from, err := parseID(q.Get("player1_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, fmt.Errorf("player1_id: %w", err)))
		return
	}
	to, err := parseID(q.Get("player2_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, fmt.Errorf("player2_id: %w", err)))
		return
	}
	countAll, err := parseFlag(q.Get("count_all"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, fmt.Errorf("count_all: %w", err)))
		return
	}

	res, err := h.deps.Chain(r.Context(), from, to, countAll)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, res)
	case errors.Is(err, app.ErrGraphUnavailable):
		writeError(w, http.StatusServiceUnavailable, "feature_unavailable", WrapKind(op, ErrUnavailable, err))
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", WrapKind(op, ErrInternal, err))
	}
}

func parseID(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("missing")
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, errors.New("must be an integer")
	}
	return id, nil
}

// parseFlag accepts the usual boolean spellings plus the "on" a form
// checkbox submits. Empty means false.
func parseFlag(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return false, nil
	case "on", "yes":
		return true, nil
	case "off", "no":
		return false, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, errors.New("must be a boolean")
	}
	return v, nil
}
