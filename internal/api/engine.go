package api

import (
	"net/http"
	"time"

	"github.com/nrfconnect/auto-pts/internal/pts"
	"github.com/nrfconnect/auto-pts/internal/ptscontrol"
)

// engineResponse is the JSON response for GET /v1/engine.
type engineResponse struct {
	Engine  string           `json:"engine"`
	Version string           `json:"version"`
	BDAddr  string           `json:"bd_addr"`
	Running bool             `json:"running"`
	Drivers []pts.DriverInfo `json:"drivers"`
}

func (s *Server) handleGetEngine(w http.ResponseWriter, r *http.Request) {
	version, err := s.control.Version(r.Context())
	if err != nil {
		s.writeBridgeError(w, "get engine version", err)
		return
	}
	addr, err := s.control.BDAddr(r.Context())
	if err != nil {
		s.writeBridgeError(w, "get engine address", err)
		return
	}

	drivers := []pts.DriverInfo{}
	if s.registry != nil {
		drivers = s.registry.List()
	}

	s.writeJSON(w, http.StatusOK, engineResponse{
		Engine:  s.engine,
		Version: ptscontrol.FormatVersion(version),
		BDAddr:  addr,
		Running: s.control.Running(),
		Drivers: drivers,
	})
}

// settingsRequest is the JSON body for PUT /v1/settings. Absent fields are
// left unchanged.
type settingsRequest struct {
	CallTimeoutMS   *uint32 `json:"call_timeout_ms"`
	MaximumLogging  *bool   `json:"maximum_logging"`
	SaveTestHistory *bool   `json:"save_test_history"`
}

// handleUpdateSettings applies the given settings in field order: call
// timeout, maximum logging, then test history. The engine has no batch
// update, so a failure stops at that setting and the ones before it stay
// applied; the error response names the setting that failed.
func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	ctx := r.Context()
	if req.CallTimeoutMS != nil {
		timeout := time.Duration(*req.CallTimeoutMS) * time.Millisecond
		if err := s.control.SetCallTimeout(ctx, timeout); err != nil {
			s.writeBridgeError(w, "set call timeout", err)
			return
		}
	}
	if req.MaximumLogging != nil {
		if err := s.control.EnableMaximumLogging(ctx, *req.MaximumLogging); err != nil {
			s.writeBridgeError(w, "enable maximum logging", err)
			return
		}
	}
	if req.SaveTestHistory != nil {
		if err := s.control.SaveTestHistoryLog(ctx, *req.SaveTestHistory); err != nil {
			s.writeBridgeError(w, "save test history log", err)
			return
		}
	}

	w.WriteHeader(http.StatusNoContent)
}
