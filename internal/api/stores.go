package api

import (
	"net/http"

	"github.com/seantiz/timelock/internal/store"
)

func (s *Server) handleListStores(w http.ResponseWriter, _ *http.Request) {
	drivers := []store.DriverInfo{}
	if s.drivers != nil {
		drivers = s.drivers.List()
	}
	s.writeJSON(w, http.StatusOK, drivers)
}
