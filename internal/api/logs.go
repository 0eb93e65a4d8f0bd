package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nrfconnect/auto-pts/internal/model"
	"github.com/nrfconnect/auto-pts/internal/runner"
)

// SSE event names of the run log stream.
const (
	EventLog  = "log"
	EventDone = "done"
)

func (s *Server) handleStreamLogs(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	run, err := s.runner.Get(id)
	if errors.Is(err, runner.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		s.logger.Error("get run for logs", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get run")
		return
	}

	// Set SSE headers.
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// A finished run has nothing left to stream.
	if model.Terminal(run.Status) {
		w.WriteHeader(http.StatusOK)
		_ = writeSSEEvent(w, EventDone, run.Status)
		return
	}

	// Disable write timeout for long-lived SSE connections.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		s.logger.Error("set write deadline for SSE", "error", err)
	}

	// Subscribe on a closed topic returns a closed channel, so a run that
	// finished since the status check ends the loop below at once.
	ch, unsub := s.runner.Broker().Subscribe(id)
	defer unsub()

	w.WriteHeader(http.StatusOK)
	flusher, canFlush := w.(http.Flusher)
	if canFlush {
		flusher.Flush()
	}

	for {
		select {
		case line, ok := <-ch:
			if !ok {
				status := model.StatusCompleted
				if final, err := s.runner.Get(id); err == nil {
					status = final.Status
				}
				_ = writeSSEEvent(w, EventDone, status)
				if canFlush {
					flusher.Flush()
				}
				return
			}
			if err := writeSSELine(w, line); err != nil {
				return // Write failed (e.g. client gone).
			}
			if canFlush {
				flusher.Flush()
			}
		case <-r.Context().Done():
			return // Client disconnected.
		}
	}
}

// logHistoryResponse is the JSON response for GET /v1/runs/:id/logs/history.
type logHistoryResponse struct {
	RunID string          `json:"run_id"`
	Lines []model.LogLine `json:"lines"`
}

func (s *Server) handleGetLogHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	lines, err := s.runner.Logs(id)
	if errors.Is(err, runner.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		s.logger.Error("get log lines", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get log lines")
		return
	}

	s.writeJSON(w, http.StatusOK, logHistoryResponse{
		RunID: id,
		Lines: lines,
	})
}

// writeSSELine writes a log line as a "log" event with the line's sequence
// number as the event id. JSON encoding keeps the data on a single line.
func writeSSELine(w http.ResponseWriter, line model.LogLine) error {
	data, err := json.Marshal(line)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", line.Seq, EventLog, data)
	return err
}

// writeSSEEvent writes a named SSE event (event: <type>\ndata: <data>\n\n).
func writeSSEEvent(w http.ResponseWriter, eventType, data string) error {
	if _, err := fmt.Fprintf(w, "event: %s\n", eventType); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	return nil
}
