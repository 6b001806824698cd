package api

import "net/http"

type adminResponse struct {
	Admin string `json:"admin"`
}

func (s *Server) handleGetAdmin(w http.ResponseWriter, r *http.Request) {
	admin, err := s.engine.Admin(r.Context())
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, adminResponse{Admin: admin})
}
