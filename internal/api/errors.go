package api

import (
	"errors"
	"net/http"

	"github.com/seantiz/timelock/internal/auth"
	"github.com/seantiz/timelock/internal/engine"
)

// conflictRetryAfter is the Retry-After hint, in seconds, sent with a store
// conflict.
const conflictRetryAfter = "1"

// statusFor maps an engine error to its HTTP status.
func statusFor(err error) int {
	switch engine.KindOf(err) {
	case engine.KindUnauthorized:
		if errors.Is(err, auth.ErrForbidden) {
			return http.StatusForbidden
		}
		return http.StatusUnauthorized
	case engine.KindNotFound:
		return http.StatusNotFound
	case engine.KindAlreadyQueued, engine.KindAlreadyInitialized:
		return http.StatusConflict
	case engine.KindTooEarly:
		return http.StatusTooEarly
	case engine.KindDelayOutOfRange, engine.KindInvalidOperationID, engine.KindInvalidPrincipal:
		return http.StatusBadRequest
	case engine.KindNotInitialized, engine.KindConflict:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeEngineError writes err with its mapped status and kind code. Internal
// failures are logged and their details withheld from the client.
func (s *Server) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	kind := engine.KindOf(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("engine call failed", "path", r.URL.Path, "error", err)
		s.writeError(w, status, string(engine.KindInternal), "internal error")
		return
	}
	if kind == engine.KindConflict {
		w.Header().Set("Retry-After", conflictRetryAfter)
	}
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="timelock"`)
	}
	s.writeError(w, status, string(kind), err.Error())
}
