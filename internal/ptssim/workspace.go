package ptssim

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/nrfconnect/auto-pts/internal/store"
)

// WorkspaceExt is the extension of engine workspace files.
const WorkspaceExt = ".pqw6"

//go:embed demo.pqw6
var demoWorkspace []byte

// Workspace is the on-disk workspace document.
type Workspace struct {
	Name       string    `yaml:"name"`
	IUTAddress string    `yaml:"iut_address,omitempty"`
	Projects   []Project `yaml:"projects"`
}

// Project is one engine project in a workspace document.
type Project struct {
	Name      string            `yaml:"name"`
	Version   string            `yaml:"version"`
	Pics      map[string]bool   `yaml:"pics,omitempty"`
	Pixit     map[string]string `yaml:"pixit,omitempty"`
	TestCases []TestCase        `yaml:"test_cases"`
}

// TestCase is one test case in a workspace document. TSS defaults to true.
type TestCase struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Active      bool   `yaml:"active"`
	TSS         *bool  `yaml:"tss,omitempty"`
	Script      []Step `yaml:"script,omitempty"`
}

// ParseWorkspace decodes and validates a workspace document.
func ParseWorkspace(data []byte) (*Workspace, error) {
	var ws Workspace
	if err := yaml.Unmarshal(data, &ws); err != nil {
		return nil, fmt.Errorf("parse workspace: %w", err)
	}
	if err := ws.validate(); err != nil {
		return nil, err
	}
	return &ws, nil
}

// ReadWorkspace reads and decodes the workspace file at path.
func ReadWorkspace(path string) (*Workspace, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workspace: %w", err)
	}
	return ParseWorkspace(data)
}

// WriteFile encodes ws to path.
func (ws *Workspace) WriteFile(path string) error {
	data, err := yaml.Marshal(ws)
	if err != nil {
		return fmt.Errorf("encode workspace: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write workspace: %w", err)
	}
	return nil
}

// DemoWorkspace returns the built-in demo workspace.
func DemoWorkspace() *Workspace {
	ws, err := ParseWorkspace(demoWorkspace)
	if err != nil {
		panic(fmt.Sprintf("embedded demo workspace: %v", err))
	}
	return ws
}

// WriteDemoWorkspace writes the built-in demo workspace into dir and
// returns its path.
func WriteDemoWorkspace(dir string) (string, error) {
	path := filepath.Join(dir, "demo"+WorkspaceExt)
	if err := os.WriteFile(path, demoWorkspace, 0o644); err != nil {
		return "", fmt.Errorf("write demo workspace: %w", err)
	}
	return path, nil
}

func (ws *Workspace) validate() error {
	seen := make(map[string]bool)
	for _, p := range ws.Projects {
		if p.Name == "" {
			return fmt.Errorf("workspace %q: project without name", ws.Name)
		}
		if seen[p.Name] {
			return fmt.Errorf("workspace %q: duplicate project %q", ws.Name, p.Name)
		}
		seen[p.Name] = true

		cases := make(map[string]bool)
		for _, tc := range p.TestCases {
			if tc.Name == "" {
				return fmt.Errorf("project %q: test case without name", p.Name)
			}
			if cases[tc.Name] {
				return fmt.Errorf("project %q: duplicate test case %q", p.Name, tc.Name)
			}
			cases[tc.Name] = true
			for i, step := range tc.Script {
				if err := step.validate(); err != nil {
					return fmt.Errorf("test case %q step %d: %w", tc.Name, i, err)
				}
			}
		}
	}
	return nil
}

// toStore converts the document into the state store's form.
func (ws *Workspace) toStore(path string) (*store.Workspace, error) {
	out := &store.Workspace{
		Path:       path,
		Name:       ws.Name,
		IUTAddress: ws.IUTAddress,
	}
	for _, p := range ws.Projects {
		pd := store.ProjectData{
			Project: store.Project{Name: p.Name, Version: p.Version},
			Pics:    p.Pics,
			Pixit:   p.Pixit,
		}
		for _, tc := range p.TestCases {
			script, err := yaml.Marshal(tc.Script)
			if err != nil {
				return nil, fmt.Errorf("encode script %q: %w", tc.Name, err)
			}
			pd.TestCases = append(pd.TestCases, store.TestCase{
				Name:        tc.Name,
				Description: tc.Description,
				Active:      tc.Active,
				InTSS:       tc.TSS == nil || *tc.TSS,
				Script:      script,
			})
		}
		out.Projects = append(out.Projects, pd)
	}
	return out, nil
}
