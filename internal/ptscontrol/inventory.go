package ptscontrol

import (
	"context"
	"fmt"
)

// ProjectInfo summarises one workspace project.
type ProjectInfo struct {
	Name          string `json:"name"`
	Version       string `json:"version"`
	TestCaseCount uint32 `json:"test_case_count"`
}

// TestCaseInfo describes one test case of a project.
type TestCaseInfo struct {
	Index       uint32 `json:"index"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Active      bool   `json:"active"`
}

// Projects enumerates the projects of the active workspace.
func (c *Control) Projects(ctx context.Context) ([]ProjectInfo, error) {
	n, err := c.ProjectCount(ctx)
	if err != nil {
		return nil, err
	}

	projects := make([]ProjectInfo, 0, n)
	for i := range n {
		name, err := c.ProjectName(ctx, i)
		if err != nil {
			return nil, err
		}
		version, err := c.ProjectVersion(ctx, name)
		if err != nil {
			return nil, err
		}
		count, err := c.TestCaseCount(ctx, name)
		if err != nil {
			return nil, err
		}
		projects = append(projects, ProjectInfo{Name: name, Version: version, TestCaseCount: count})
	}
	return projects, nil
}

// TestCases enumerates the test cases of project with their descriptions and
// enable state.
func (c *Control) TestCases(ctx context.Context, project string) ([]TestCaseInfo, error) {
	n, err := c.TestCaseCount(ctx, project)
	if err != nil {
		return nil, err
	}

	cases := make([]TestCaseInfo, 0, n)
	for i := range n {
		name, err := c.TestCaseName(ctx, project, i)
		if err != nil {
			return nil, err
		}
		desc, err := c.TestCaseDescription(ctx, project, i)
		if err != nil {
			return nil, err
		}
		active, err := c.IsActiveTestCase(ctx, project, name)
		if err != nil {
			return nil, err
		}
		cases = append(cases, TestCaseInfo{Index: i, Name: name, Description: desc, Active: active})
	}
	return cases, nil
}

// FormatVersion renders an engine version the way the engine reports it, as
// lower-case hex.
func FormatVersion(version uint32) string {
	return fmt.Sprintf("%x", version)
}
