package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/seantiz/timelock/internal/auth"
	"github.com/seantiz/timelock/internal/engine"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&engine.Error{Kind: engine.KindUnauthorized, Err: auth.ErrUnauthenticated}, http.StatusUnauthorized},
		{&engine.Error{Kind: engine.KindUnauthorized, Err: fmt.Errorf("%w: caller", auth.ErrForbidden)}, http.StatusForbidden},
		{engine.ErrNotFound, http.StatusNotFound},
		{engine.ErrAlreadyQueued, http.StatusConflict},
		{engine.ErrAlreadyInitialized, http.StatusConflict},
		{engine.ErrTooEarly, http.StatusTooEarly},
		{engine.ErrDelayOutOfRange, http.StatusBadRequest},
		{engine.ErrInvalidOperationID, http.StatusBadRequest},
		{engine.ErrInvalidPrincipal, http.StatusBadRequest},
		{engine.ErrNotInitialized, http.StatusServiceUnavailable},
		{engine.ErrConflict, http.StatusServiceUnavailable},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestWriteEngineErrorConflictSetsRetryAfter(t *testing.T) {
	srv := newTestServer(t)
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/v1/operations", nil)

	srv.writeEngineError(w, r, &engine.Error{Kind: engine.KindConflict, Op: "queue", Err: errors.New("exec: transaction conflict")})

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "1" {
		t.Errorf("Retry-After = %q, want %q", got, "1")
	}
	if !strings.Contains(w.Body.String(), `"code":"conflict"`) {
		t.Errorf("body = %s, want code conflict", w.Body.String())
	}
}
