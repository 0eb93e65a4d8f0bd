package testcase

import (
	"fmt"
	"strings"
	"sync"

	"github.com/nrfconnect/auto-pts/internal/model"
	"github.com/nrfconnect/auto-pts/internal/pts"
	"github.com/nrfconnect/auto-pts/internal/ptscontrol"
)

// Status values a TestCase passes through before reaching a verdict.
const (
	StatusInit    = "init"
	StatusRunning = "running"
)

// finalVerdictPrefix precedes the verdict in the engine's final verdict message.
const finalVerdictPrefix = "final verdict:"

// Compile-time interface satisfaction check.
var _ ptscontrol.TestCase = (*TestCase)(nil)

// Event is one log notification received during a run.
type Event struct {
	Type    pts.LogType
	Label   string
	Time    string
	Message string
}

// Options configures a TestCase. The zero value answers nothing and
// forwards nothing.
type Options struct {
	// Answers supplies implicit send answers when Forward is nil.
	Answers *Answers

	// Forward, when set, receives every notification. Its answers take
	// precedence over Answers.
	Forward ptscontrol.Receiver

	// Sink is called for every log event after it is recorded.
	Sink func(Event)
}

// TestCase is a single engine test case bound to a run.
type TestCase struct {
	project string
	name    string
	opts    Options

	mu       sync.Mutex
	status   string
	verdict  string
	events   []Event
	requests []ptscontrol.ImplicitSendRequest
	runErr   error
}

// New creates a test case in the init state.
func New(project, name string, opts Options) *TestCase {
	return &TestCase{
		project: project,
		name:    name,
		opts:    opts,
		status:  StatusInit,
	}
}

// ProjectName implements ptscontrol.TestCase.
func (t *TestCase) ProjectName() string { return t.project }

// Name implements ptscontrol.TestCase.
func (t *TestCase) Name() string { return t.name }

func (t *TestCase) String() string {
	return fmt.Sprintf("%s %s", t.project, t.name)
}

// PreRun implements ptscontrol.TestCase.
func (t *TestCase) PreRun() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = StatusRunning
}

// PostRun implements ptscontrol.TestCase. A verdict seen during the run
// becomes the status; otherwise the run ends ERROR if the engine call
// failed and INCONC if it did not.
func (t *TestCase) PostRun(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.runErr = err
	switch {
	case t.verdict != "":
		t.status = t.verdict
	case err != nil:
		t.status = model.VerdictError
	default:
		t.status = model.VerdictInconc
	}
}

// Log implements ptscontrol.Receiver.
func (t *TestCase) Log(logType pts.LogType, logTypeLabel, logTime, message string) error {
	ev := Event{Type: logType, Label: logTypeLabel, Time: logTime, Message: message}

	t.mu.Lock()
	t.events = append(t.events, ev)
	if logType == pts.LogTypeFinalVerdict {
		if v, ok := ParseVerdict(message); ok {
			t.verdict = v
		}
	}
	t.mu.Unlock()

	if t.opts.Sink != nil {
		t.opts.Sink(ev)
	}
	if t.opts.Forward != nil {
		return t.opts.Forward.Log(logType, logTypeLabel, logTime, message)
	}
	return nil
}

// OnImplicitSend implements ptscontrol.Receiver.
func (t *TestCase) OnImplicitSend(req ptscontrol.ImplicitSendRequest) (string, error) {
	t.mu.Lock()
	t.requests = append(t.requests, req)
	t.mu.Unlock()

	if t.opts.Forward != nil {
		return t.opts.Forward.OnImplicitSend(req)
	}
	answer, _ := t.opts.Answers.Lookup(req.Project, req.WID)
	return answer, nil
}

// Status returns the current status: init, running or a verdict.
func (t *TestCase) Status() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Verdict returns the verdict reported by the engine, if any.
func (t *TestCase) Verdict() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.verdict
}

// Err returns the error the engine run ended with.
func (t *TestCase) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.runErr
}

// Events returns a copy of the log events received so far.
func (t *TestCase) Events() []Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Event, len(t.events))
	copy(out, t.events)
	return out
}

// Requests returns a copy of the implicit send requests received so far.
func (t *TestCase) Requests() []ptscontrol.ImplicitSendRequest {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]ptscontrol.ImplicitSendRequest, len(t.requests))
	copy(out, t.requests)
	return out
}

// ParseVerdict extracts the verdict from a final verdict message. Both
// "Final Verdict: PASS" and a bare "PASS" are accepted.
func ParseVerdict(message string) (string, bool) {
	s := strings.TrimSpace(message)
	if len(s) >= len(finalVerdictPrefix) && strings.EqualFold(s[:len(finalVerdictPrefix)], finalVerdictPrefix) {
		s = strings.TrimSpace(s[len(finalVerdictPrefix):])
	}
	switch v := strings.ToUpper(s); v {
	case model.VerdictPass, model.VerdictFail, model.VerdictInconc:
		return v, true
	default:
		return "", false
	}
}
