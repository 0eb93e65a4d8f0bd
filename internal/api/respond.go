package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/nrfconnect/auto-pts/internal/pts"
	"github.com/nrfconnect/auto-pts/internal/ptscontrol"
	"github.com/nrfconnect/auto-pts/internal/runner"
	"github.com/nrfconnect/auto-pts/internal/workspace"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
	maxBodySize      = 1 << 20 // 1 MB
)

// errorResponse is the JSON body of every non-2xx response. Code carries the
// engine HRESULT when the failure came from the engine.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// writeJSON writes a JSON response with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, errorResponse{Error: message})
}

// writeBridgeError maps a bridge error to its HTTP status and writes it.
func (s *Server) writeBridgeError(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error(op, "error", err)
	} else {
		s.logger.Warn(op, "error", err)
	}

	resp := errorResponse{Error: op + ": " + err.Error()}
	var perr *pts.Error
	if errors.As(err, &perr) {
		resp.Code = perr.Code.String()
	}
	s.writeJSON(w, status, resp)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ptscontrol.ErrAlreadyRunning):
		return http.StatusConflict
	case errors.Is(err, ptscontrol.ErrEngineTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, ptscontrol.ErrEngineIO):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ptscontrol.ErrEngineCall),
		errors.Is(err, ptscontrol.ErrProtocolViolation),
		errors.Is(err, ptscontrol.ErrBufferTooSmall):
		return http.StatusBadGateway
	case errors.Is(err, workspace.ErrExtension), errors.Is(err, workspace.ErrNotExist):
		return http.StatusBadRequest
	case errors.Is(err, runner.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// decodeBody decodes a size-limited JSON request body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	return json.NewDecoder(r.Body).Decode(v)
}

// parseIntQuery parses an integer query parameter with a default value.
func parseIntQuery(r *http.Request, key string, defaultVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
