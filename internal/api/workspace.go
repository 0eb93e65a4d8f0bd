package api

import (
	"net/http"

	"github.com/nrfconnect/auto-pts/internal/workspace"
)

// createWorkspaceRequest is the JSON body for POST /v1/workspace.
type createWorkspaceRequest struct {
	BDAddr  string `json:"bd_addr"`
	PTSFile string `json:"pts_file"`
	Name    string `json:"name"`
	Path    string `json:"path"`
}

// openWorkspaceRequest is the JSON body for POST /v1/workspace/open.
type openWorkspaceRequest struct {
	Path string `json:"path"`
}

type workspaceResponse struct {
	Path string `json:"path"`
}

func (s *Server) handleCreateWorkspace(w http.ResponseWriter, r *http.Request) {
	var req createWorkspaceRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.PTSFile == "" || req.Name == "" || req.Path == "" {
		s.writeError(w, http.StatusBadRequest, "pts_file, name and path are required")
		return
	}

	if err := s.control.CreateWorkspace(r.Context(), req.BDAddr, req.PTSFile, req.Name, req.Path); err != nil {
		s.writeBridgeError(w, "create workspace", err)
		return
	}

	s.writeJSON(w, http.StatusCreated, workspaceResponse{Path: req.Path})
}

func (s *Server) handleOpenWorkspace(w http.ResponseWriter, r *http.Request) {
	var req openWorkspaceRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Path == "" {
		s.writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	path, err := workspace.Validate(req.Path)
	if err != nil {
		s.writeBridgeError(w, "validate workspace", err)
		return
	}
	if err := s.control.OpenWorkspace(r.Context(), path); err != nil {
		s.writeBridgeError(w, "open workspace", err)
		return
	}

	s.writeJSON(w, http.StatusOK, workspaceResponse{Path: path})
}
