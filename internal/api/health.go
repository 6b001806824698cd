package api

import (
	"errors"
	"net/http"

	"github.com/seantiz/timelock/internal/engine"
)

type healthResponse struct {
	Status      string `json:"status"`
	Initialized bool   `json:"initialized"`
}

// handleHealthz reports liveness. A store that cannot be read makes the
// service unavailable; an uninitialized one is healthy but reported.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	_, err := s.engine.Admin(r.Context())
	switch {
	case err == nil:
		s.writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Initialized: true})
	case errors.Is(err, engine.ErrNotInitialized):
		s.writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
	default:
		s.logger.Error("healthz: store unavailable", "error", err)
		s.writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
	}
}
