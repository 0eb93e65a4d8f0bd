package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a project, test case, PICS entry or PIXIT
// parameter does not exist in the loaded workspace.
var ErrNotFound = errors.New("not found")

// Project is one engine project of the loaded workspace.
type Project struct {
	Index   int    `json:"index"`
	Name    string `json:"name"`
	Version string `json:"version"`
}

// TestCase is one test case of a project. Script holds the encoded steps the
// simulated engine plays back when the case runs.
type TestCase struct {
	Project     string `json:"project"`
	Index       int    `json:"index"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Active      bool   `json:"active"`
	InTSS       bool   `json:"in_tss"`
	Script      []byte `json:"-"`
}

// ProjectData is everything loaded for a project when a workspace opens.
type ProjectData struct {
	Project
	TestCases []TestCase
	Pics      map[string]bool
	Pixit     map[string]string
}

// Workspace is the full state replaced by LoadWorkspace.
type Workspace struct {
	Path       string
	Name       string
	IUTAddress string
	Projects   []ProjectData
}

// WorkspaceInfo describes the currently loaded workspace.
type WorkspaceInfo struct {
	Path       string `json:"path"`
	Name       string `json:"name"`
	IUTAddress string `json:"iut_address"`
}

// Store defines the state operations of a simulated engine workspace.
type Store interface {
	// LoadWorkspace atomically replaces all state with ws.
	LoadWorkspace(ctx context.Context, ws *Workspace) error
	GetWorkspaceInfo(ctx context.Context) (*WorkspaceInfo, error)

	ProjectCount(ctx context.Context) (int, error)
	GetProjectByIndex(ctx context.Context, index int) (*Project, error)
	GetProject(ctx context.Context, name string) (*Project, error)

	ListTestCases(ctx context.Context, project string) ([]*TestCase, error)
	GetTestCase(ctx context.Context, project, name string) (*TestCase, error)

	// SetPics and SetPixit report whether the stored value changed.
	SetPics(ctx context.Context, project, entry string, value bool) (bool, error)
	GetPics(ctx context.Context, project, entry string) (bool, error)
	SetPixit(ctx context.Context, project, param, value string) (bool, error)
	GetPixit(ctx context.Context, project, param string) (string, error)
	ListPics(ctx context.Context, project string) (map[string]bool, error)
	ListPixit(ctx context.Context, project string) (map[string]string, error)

	Close() error
}
