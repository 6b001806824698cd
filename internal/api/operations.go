package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/seantiz/timelock/internal/engine"
	"github.com/seantiz/timelock/internal/model"
)

// queueRequest is the JSON body for POST /v1/operations.
type queueRequest struct {
	ID    string `json:"id"`
	Delay uint64 `json:"delay"`
}

// executeResponse is the JSON response for POST /v1/operations/{id}/execute.
type executeResponse struct {
	ID         string `json:"id"`
	ExecutedAt uint64 `json:"executed_at"`
}

// cancelResponse is the JSON response for DELETE /v1/operations/{id}.
type cancelResponse struct {
	ID    string      `json:"id"`
	State model.State `json:"state"`
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	var req queueRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	id, ok := s.parseID(w, req.ID)
	if !ok {
		return
	}

	executeAt, err := s.engine.Queue(r.Context(), id, req.Delay)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}

	w.Header().Set("Location", "/v1/operations/"+id.Hex())
	s.writeJSON(w, http.StatusCreated, model.Operation{
		ID:        id.Hex(),
		State:     model.StatePending,
		ExecuteAt: executeAt,
	})
}

func (s *Server) handleGetOperation(w http.ResponseWriter, r *http.Request) {
	id, ok := s.parseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	op, err := s.engine.Lookup(r.Context(), id)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, op)
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	id, ok := s.parseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	executedAt, err := s.engine.Execute(r.Context(), id)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, executeResponse{ID: id.Hex(), ExecutedAt: executedAt})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id, ok := s.parseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	if err := s.engine.Cancel(r.Context(), id); err != nil {
		s.writeEngineError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, cancelResponse{ID: id.Hex(), State: model.StateUnknown})
}

// parseID decodes a hex operation id, writing a 400 on failure.
func (s *Server) parseID(w http.ResponseWriter, raw string) (model.OperationID, bool) {
	id, err := model.ParseOperationID(raw)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, string(engine.KindInvalidOperationID), err.Error())
		return nil, false
	}
	return id, true
}
