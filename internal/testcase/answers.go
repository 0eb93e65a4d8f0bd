package testcase

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// AnyProject is the project key whose answers apply to every project.
const AnyProject = "*"

// Answers maps a project and wid to the value returned for an implicit send.
//
// The file form is:
//
//	projects:
//	  GAP:
//	    20: OK
//	  "*":
//	    1: OK
type Answers struct {
	Projects map[string]map[uint16]string `yaml:"projects"`
}

// ParseAnswers decodes an answers document.
func ParseAnswers(data []byte) (*Answers, error) {
	var a Answers
	if err := yaml.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("parse answers: %w", err)
	}
	if a.Projects == nil {
		a.Projects = make(map[string]map[uint16]string)
	}
	return &a, nil
}

// LoadAnswers reads and decodes the answers file at path.
func LoadAnswers(path string) (*Answers, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read answers: %w", err)
	}
	return ParseAnswers(data)
}

// Set records answer for project and wid.
func (a *Answers) Set(project string, wid uint16, answer string) {
	if a.Projects == nil {
		a.Projects = make(map[string]map[uint16]string)
	}
	if a.Projects[project] == nil {
		a.Projects[project] = make(map[uint16]string)
	}
	a.Projects[project][wid] = answer
}

// Lookup returns the answer for project and wid, falling back to the
// AnyProject entries.
func (a *Answers) Lookup(project string, wid uint16) (string, bool) {
	if a == nil {
		return "", false
	}
	if answer, ok := a.Projects[project][wid]; ok {
		return answer, true
	}
	answer, ok := a.Projects[AnyProject][wid]
	return answer, ok
}
