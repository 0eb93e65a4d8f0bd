package api

import (
	"encoding/json"
	"net/http"
)

// healthResponse reports liveness, the engine driver in use and whether a
// test case is executing.
type healthResponse struct {
	Status  string `json:"status"`
	Engine  string `json:"engine"`
	Running bool   `json:"running"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	resp := healthResponse{
		Status:  "ok",
		Engine:  s.engine,
		Running: s.control.Running(),
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error("encode healthz response", "error", err)
	}
}
