package ptssim

import (
	"errors"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nrfconnect/auto-pts/internal/pts"
)

// Step is one scripted engine action. Exactly one field is set.
type Step struct {
	Log          *LogStep          `yaml:"log,omitempty"`
	Wait         string            `yaml:"wait,omitempty"`
	ImplicitSend *ImplicitSendStep `yaml:"implicit_send,omitempty"`
	Verdict      string            `yaml:"verdict,omitempty"`
}

// LogStep emits one log event.
type LogStep struct {
	Type    pts.LogType `yaml:"type"`
	Message string      `yaml:"message"`
}

// ImplicitSendStep asks the bound client for a value. When Expect is set,
// any other answer (including none) fails the test case.
type ImplicitSendStep struct {
	WID          int64  `yaml:"wid"`
	Style        int64  `yaml:"style"`
	Description  string `yaml:"description"`
	ResponseSize int64  `yaml:"response_size,omitempty"`
	Expect       string `yaml:"expect,omitempty"`
}

// Response buffer sizes, in UTF-16 code units.
const (
	defaultResponseSize = 512
	maxResponseSize     = 1 << 16
)

func (s Step) validate() error {
	set := 0
	if s.Log != nil {
		set++
	}
	if s.Wait != "" {
		set++
		if _, err := time.ParseDuration(s.Wait); err != nil {
			return fmt.Errorf("wait: %w", err)
		}
	}
	if s.ImplicitSend != nil {
		set++
	}
	if s.Verdict != "" {
		set++
	}
	if set != 1 {
		return errors.New("step must set exactly one of log, wait, implicit_send, verdict")
	}
	return nil
}

func (s Step) kind() string {
	switch {
	case s.Log != nil:
		return "log"
	case s.Wait != "":
		return "wait"
	case s.ImplicitSend != nil:
		return "implicit_send"
	default:
		return "verdict"
	}
}

func decodeScript(data []byte) ([]Step, error) {
	var steps []Step
	if err := yaml.Unmarshal(data, &steps); err != nil {
		return nil, fmt.Errorf("decode script: %w", err)
	}
	return steps, nil
}
