package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nrfconnect/auto-pts/internal/ptscontrol"
)

type listProjectsResponse struct {
	Projects []ptscontrol.ProjectInfo `json:"projects"`
}

type listTestCasesResponse struct {
	Project   string                    `json:"project"`
	TestCases []ptscontrol.TestCaseInfo `json:"test_cases"`
}

type listTSSResponse struct {
	Project   string   `json:"project"`
	TestCases []string `json:"test_cases"`
}

type picsRequest struct {
	Value *bool `json:"value"`
}

type pixitRequest struct {
	Value *string `json:"value"`
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.control.Projects(r.Context())
	if err != nil {
		s.writeBridgeError(w, "list projects", err)
		return
	}
	if projects == nil {
		projects = []ptscontrol.ProjectInfo{}
	}
	s.writeJSON(w, http.StatusOK, listProjectsResponse{Projects: projects})
}

func (s *Server) handleListTestCases(w http.ResponseWriter, r *http.Request) {
	project := chi.URLParam(r, "project")

	cases, err := s.control.TestCases(r.Context(), project)
	if err != nil {
		s.writeBridgeError(w, "list test cases", err)
		return
	}
	if cases == nil {
		cases = []ptscontrol.TestCaseInfo{}
	}
	s.writeJSON(w, http.StatusOK, listTestCasesResponse{Project: project, TestCases: cases})
}

func (s *Server) handleListTSS(w http.ResponseWriter, r *http.Request) {
	project := chi.URLParam(r, "project")

	names, err := s.control.TestCasesFromTSSFile(r.Context(), project)
	if err != nil {
		s.writeBridgeError(w, "list tss test cases", err)
		return
	}
	if names == nil {
		names = []string{}
	}
	s.writeJSON(w, http.StatusOK, listTSSResponse{Project: project, TestCases: names})
}

func (s *Server) handleUpdatePics(w http.ResponseWriter, r *http.Request) {
	var req picsRequest
	if err := decodeBody(w, r, &req); err != nil || req.Value == nil {
		s.writeError(w, http.StatusBadRequest, "body must be {\"value\": true|false}")
		return
	}

	project, entry := chi.URLParam(r, "project"), chi.URLParam(r, "entry")
	if err := s.control.UpdatePics(r.Context(), project, entry, *req.Value); err != nil {
		s.writeBridgeError(w, "update pics", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUpdatePixit(w http.ResponseWriter, r *http.Request) {
	var req pixitRequest
	if err := decodeBody(w, r, &req); err != nil || req.Value == nil {
		s.writeError(w, http.StatusBadRequest, "body must be {\"value\": \"...\"}")
		return
	}

	project, param := chi.URLParam(r, "project"), chi.URLParam(r, "param")
	if err := s.control.UpdatePixitParam(r.Context(), project, param, *req.Value); err != nil {
		s.writeBridgeError(w, "update pixit", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleTestCaseAction serves POST /v1/projects/{project}/testcases/{name}/stop.
// Test case names contain slashes, so the name and action share a wildcard.
func (s *Server) handleTestCaseAction(w http.ResponseWriter, r *http.Request) {
	project := chi.URLParam(r, "project")
	name, ok := strings.CutSuffix(chi.URLParam(r, "*"), "/stop")
	if !ok || name == "" {
		s.writeError(w, http.StatusNotFound, "unknown test case action")
		return
	}

	if err := s.control.StopTestCase(r.Context(), project, name); err != nil {
		s.writeBridgeError(w, "stop test case", err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
