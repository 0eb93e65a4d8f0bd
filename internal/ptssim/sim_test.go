package ptssim

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf16"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nrfconnect/auto-pts/internal/pts"
)

// stepClock advances by one millisecond on every reading.
type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Millisecond)
	return c.t
}

type logEvent struct {
	Type    pts.LogType
	Label   string
	Time    string
	Message string
}

// handlers records engine notifications and answers implicit sends.
type handlers struct {
	mu       sync.Mutex
	logs     []logEvent
	wids     []int64
	styles   []int64
	answer   string
	capacity []int64
}

func (h *handlers) Log(logType pts.LogType, label, logTime, message string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.logs = append(h.logs, logEvent{logType, label, logTime, message})
}

func (h *handlers) OnImplicitSend(_ string, wid int64, _, _ string, style int64, response []uint16, responseSize int64, present *int32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.wids = append(h.wids, wid)
	h.styles = append(h.styles, style)
	h.capacity = append(h.capacity, responseSize)
	if h.answer == "" {
		return
	}
	enc := utf16.Encode([]rune(h.answer))
	copy(response, enc)
	response[len(enc)] = 0
	*present = 1
}

func (h *handlers) events() []logEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]logEvent(nil), h.logs...)
}

func newDemoSim(t *testing.T) (*Sim, *handlers, string) {
	t.Helper()
	dir := t.TempDir()
	path, err := WriteDemoWorkspace(dir)
	require.NoError(t, err)

	clock := &stepClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	s, err := New(Options{Clock: clock.Now})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	h := &handlers{}
	require.NoError(t, s.SetControlClientLoggerCallback(h))
	require.NoError(t, s.RegisterImplicitSendCallbackEx(h))
	require.NoError(t, s.OpenWorkspace(context.Background(), path))
	return s, h, path
}

func TestDemoWorkspaceEnumeration(t *testing.T) {
	s, _, _ := newDemoSim(t)
	ctx := context.Background()

	n, err := s.GetProjectCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), n)

	name, err := s.GetProjectName(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, "GAP", name)

	version, err := s.GetProjectVersion(ctx, "L2CAP")
	require.NoError(t, err)
	assert.Equal(t, "5.1.0", version)

	count, err := s.GetTestCaseCount(ctx, "GAP")
	require.NoError(t, err)
	assert.Equal(t, uint32(3), count)

	tssCount, err := s.GetTestCaseCountFromTSSFile(ctx, "GAP")
	require.NoError(t, err)
	assert.Equal(t, uint32(2), tssCount)

	names, err := s.GetTestCasesFromTSSFile(ctx, "GAP")
	require.NoError(t, err)
	assert.Equal(t, []string{"GAP/CONN/ACEP/BV-01-C", "GAP/CONN/ACEP/BV-02-C"}, names)

	tcName, err := s.GetTestCaseName(ctx, "GAP", 1)
	require.NoError(t, err)
	assert.Equal(t, "GAP/CONN/ACEP/BV-02-C", tcName)

	desc, err := s.GetTestCaseDescription(ctx, "GAP", 0)
	require.NoError(t, err)
	assert.Contains(t, desc, "Auto-connection")

	active, err := s.IsActiveTestCase(ctx, "GAP", "GAP/CONN/ACEP/BV-02-C")
	require.NoError(t, err)
	assert.False(t, active)
}

func TestLookupErrors(t *testing.T) {
	s, _, _ := newDemoSim(t)
	ctx := context.Background()

	_, err := s.GetProjectName(ctx, 5)
	assert.True(t, pts.HasCode(err, pts.EInvalidArg), "got %v", err)

	_, err = s.GetTestCaseName(ctx, "GAP", 99)
	assert.True(t, pts.HasCode(err, pts.EInvalidArg), "got %v", err)

	_, err = s.GetTestCaseCount(ctx, "NOPE")
	assert.True(t, pts.HasCode(err, pts.EInvalidArg), "got %v", err)
}

func TestOpenWorkspaceErrors(t *testing.T) {
	s, err := New(Options{})
	require.NoError(t, err)
	defer s.Close()

	err = s.OpenWorkspace(context.Background(), filepath.Join(t.TempDir(), "missing.pqw6"))
	assert.True(t, pts.HasCode(err, pts.EFileNotFound), "got %v", err)

	bad := filepath.Join(t.TempDir(), "bad.pqw6")
	require.NoError(t, os.WriteFile(bad, []byte("projects:\n  - name: GAP\n  - name: GAP\n"), 0o644))
	err = s.OpenWorkspace(context.Background(), bad)
	assert.True(t, pts.HasCode(err, pts.EFail), "got %v", err)
}

func TestUpdatePicsAndPixit(t *testing.T) {
	s, _, _ := newDemoSim(t)
	ctx := context.Background()

	require.NoError(t, s.UpdatePics(ctx, "L2CAP", "TSPC_L2CAP_3_13", true))
	err := s.UpdatePics(ctx, "L2CAP", "TSPC_L2CAP_3_13", true)
	assert.True(t, pts.HasCode(err, pts.EPicsEntryNotChanged), "got %v", err)

	err = s.UpdatePics(ctx, "L2CAP", "TSPC_UNKNOWN", true)
	assert.True(t, pts.HasCode(err, pts.EInvalidArg), "got %v", err)

	require.NoError(t, s.UpdatePixitParam(ctx, "L2CAP", "TSPX_iut_role_initiator", "FALSE"))
	err = s.UpdatePixitParam(ctx, "L2CAP", "TSPX_iut_role_initiator", "FALSE")
	assert.True(t, pts.HasCode(err, pts.EPixitParamNotChanged), "got %v", err)
	require.NoError(t, s.UpdatePixitParam(ctx, "L2CAP", "TSPX_iut_role_initiator", "TRUE"))

	v, err := s.Pixit(ctx, "L2CAP", "TSPX_iut_role_initiator")
	require.NoError(t, err)
	assert.Equal(t, "TRUE", v)

	on, err := s.Pics(ctx, "L2CAP", "TSPC_L2CAP_3_13")
	require.NoError(t, err)
	assert.True(t, on)
}

func TestRunTestCasePass(t *testing.T) {
	s, h, _ := newDemoSim(t)
	h.answer = "OK"

	require.NoError(t, s.RunTestCase(context.Background(), "GAP", "GAP/CONN/ACEP/BV-01-C"))

	events := h.events()
	require.NotEmpty(t, events)
	assert.Equal(t, pts.LogTypeStartTest, events[0].Type)
	assert.Equal(t, pts.LogTypeEndTest, events[len(events)-1].Type)

	for i := 1; i < len(events); i++ {
		assert.Less(t, events[i-1].Time, events[i].Time, "log times must increase")
	}

	var verdicts []string
	for _, ev := range events {
		if ev.Type == pts.LogTypeFinalVerdict {
			verdicts = append(verdicts, ev.Message)
		}
	}
	assert.Equal(t, []string{"Final Verdict: PASS"}, verdicts)
	assert.Equal(t, []int64{77}, h.wids)
	assert.Equal(t, []int64{int64(pts.StyleOkCancel1)}, h.styles)
	assert.Equal(t, []int64{256}, h.capacity)
}

func TestRunTestCaseWrongAnswerFails(t *testing.T) {
	s, h, _ := newDemoSim(t)

	require.NoError(t, s.RunTestCase(context.Background(), "GAP", "GAP/CONN/ACEP/BV-01-C"))

	var final string
	for _, ev := range h.events() {
		if ev.Type == pts.LogTypeFinalVerdict {
			final = ev.Message
		}
	}
	assert.Equal(t, "Final Verdict: FAIL", final)
}

func TestRunTestCaseInactive(t *testing.T) {
	s, _, _ := newDemoSim(t)
	err := s.RunTestCase(context.Background(), "GAP", "GAP/CONN/ACEP/BV-02-C")
	assert.True(t, pts.HasCode(err, pts.EFail), "got %v", err)

	err = s.RunTestCase(context.Background(), "GAP", "GAP/NOPE")
	assert.True(t, pts.HasCode(err, pts.EInvalidArg), "got %v", err)
}

func TestRunTestCaseTimeout(t *testing.T) {
	s, h, _ := newDemoSim(t)
	require.NoError(t, s.SetPTSCallTimeout(context.Background(), 50))

	start := time.Now()
	err := s.RunTestCase(context.Background(), "L2CAP", "L2CAP/COS/CED/BV-03-C")
	assert.True(t, pts.HasCode(err, pts.ETimeout), "got %v", err)
	assert.Less(t, time.Since(start), time.Second)

	n := len(h.events())
	time.Sleep(100 * time.Millisecond)
	assert.Len(t, h.events(), n, "no callbacks after RunTestCase returns")

	// Zero disables the timeout again.
	require.NoError(t, s.SetPTSCallTimeout(context.Background(), 0))
	require.NoError(t, s.RunTestCase(context.Background(), "GAP", "GAP/BROB/BCST/BV-01-C"))
}

func TestRunTestCaseContextCanceled(t *testing.T) {
	s, _, _ := newDemoSim(t)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := s.RunTestCase(ctx, "L2CAP", "L2CAP/COS/CED/BV-03-C")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStopTestCaseNotImplemented(t *testing.T) {
	s, _, _ := newDemoSim(t)
	err := s.StopTestCase(context.Background(), "GAP", "GAP/CONN/ACEP/BV-01-C")
	assert.True(t, pts.HasCode(err, pts.ENotImpl), "got %v", err)
}

func TestMaximumLogging(t *testing.T) {
	s, h, _ := newDemoSim(t)
	require.NoError(t, s.RunTestCase(context.Background(), "GAP", "GAP/BROB/BCST/BV-01-C"))
	quiet := len(h.events())

	h.mu.Lock()
	h.logs = nil
	h.mu.Unlock()

	require.NoError(t, s.EnableMaximumLogging(context.Background(), true))
	require.NoError(t, s.RunTestCase(context.Background(), "GAP", "GAP/BROB/BCST/BV-01-C"))
	assert.Greater(t, len(h.events()), quiet)
}

func TestSaveTestHistoryLog(t *testing.T) {
	s, _, path := newDemoSim(t)
	require.NoError(t, s.SaveTestHistoryLog(context.Background(), true))
	require.NoError(t, s.RunTestCase(context.Background(), "GAP", "GAP/BROB/BCST/BV-01-C"))

	entries, err := os.ReadDir(filepath.Join(filepath.Dir(path), "history"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasPrefix(entries[0].Name(), "GAP_GAP_BROB_BCST_BV-01-C_"))

	data, err := os.ReadFile(filepath.Join(filepath.Dir(path), "history", entries[0].Name()))
	require.NoError(t, err)
	assert.Contains(t, string(data), "Final Verdict: PASS")
}

func TestCreateWorkspace(t *testing.T) {
	s, _, template := newDemoSim(t)
	dir := filepath.Join(t.TempDir(), "ws")

	require.NoError(t, s.CreateWorkspace(context.Background(), "00:11:22:33:44:55", template, "mine", dir))

	ws, err := ReadWorkspace(filepath.Join(dir, "mine.pqw6"))
	require.NoError(t, err)
	assert.Equal(t, "mine", ws.Name)
	assert.Equal(t, "00:11:22:33:44:55", ws.IUTAddress)

	err = s.CreateWorkspace(context.Background(), "00:11:22:33:44:55", filepath.Join(dir, "none.pqw6"), "x", dir)
	assert.True(t, pts.HasCode(err, pts.EFileNotFound), "got %v", err)
}

func TestImplicitSendUnregistered(t *testing.T) {
	s, h, _ := newDemoSim(t)
	require.NoError(t, s.UnregisterImplicitSendCallbackEx(h))

	require.NoError(t, s.RunTestCase(context.Background(), "L2CAP", "L2CAP/COS/CED/BV-01-C"))
	assert.Empty(t, h.wids)
}

func TestParseWorkspaceValidation(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "two actions in one step", doc: "projects:\n  - name: A\n    test_cases:\n      - name: T\n        script:\n          - verdict: PASS\n            wait: 1s\n"},
		{name: "bad wait", doc: "projects:\n  - name: A\n    test_cases:\n      - name: T\n        script:\n          - wait: soon\n"},
		{name: "unnamed project", doc: "projects:\n  - version: '1'\n"},
		{name: "duplicate test case", doc: "projects:\n  - name: A\n    test_cases:\n      - name: T\n      - name: T\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseWorkspace([]byte(tt.doc))
			assert.Error(t, err)
		})
	}

	assert.NotPanics(t, func() { DemoWorkspace() })
}

func TestRegister(t *testing.T) {
	reg := pts.NewRegistry()
	Register(reg, "sim", Options{})

	eng, err := reg.Open("sim")
	require.NoError(t, err)
	defer eng.Close()

	v, err := eng.GetPTSVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DefaultVersion, v)
}
