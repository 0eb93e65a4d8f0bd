package ptscontrol

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nrfconnect/auto-pts/internal/pts"
)

// fakeEngine records calls and lets each test script RunTestCase.
type fakeEngine struct {
	mu    sync.Mutex
	calls map[string]int

	logHandler  pts.LogHandler
	sendHandler pts.ImplicitSendHandler

	addr      uint64
	version   uint32
	pics      map[string]bool
	pixit     map[string]string
	timeoutMS uint32

	run       func(ctx context.Context, project, testCase string) error
	workspace error
	stop      error
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		calls:   make(map[string]int),
		addr:    0x1B_DC_F2_1A_57_0D,
		version: 0x00080500,
		pics:    make(map[string]bool),
		pixit:   make(map[string]string),
	}
}

func (f *fakeEngine) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *fakeEngine) record(method string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[method]++
}

func (f *fakeEngine) CreateWorkspace(_ context.Context, _, _, _, _ string) error {
	f.record("CreateWorkspace")
	return f.workspace
}

func (f *fakeEngine) OpenWorkspace(_ context.Context, _ string) error {
	f.record("OpenWorkspace")
	return f.workspace
}

func (f *fakeEngine) GetProjectCount(context.Context) (uint32, error) {
	f.record("GetProjectCount")
	return 2, nil
}

func (f *fakeEngine) GetProjectName(_ context.Context, i uint32) (string, error) {
	f.record("GetProjectName")
	names := []string{"GAP", "L2CAP"}
	if int(i) >= len(names) {
		return "", pts.Errorf("GetProjectName", pts.EInvalidArg, "index %d", i)
	}
	return names[i], nil
}

func (f *fakeEngine) GetProjectVersion(context.Context, string) (string, error) {
	f.record("GetProjectVersion")
	return "8.5.0", nil
}

func (f *fakeEngine) GetTestCaseCount(context.Context, string) (uint32, error) {
	f.record("GetTestCaseCount")
	return 1, nil
}

func (f *fakeEngine) GetTestCaseName(context.Context, string, uint32) (string, error) {
	f.record("GetTestCaseName")
	return "GAP/CONN/ACEP/BV-01-C", nil
}

func (f *fakeEngine) GetTestCaseDescription(context.Context, string, uint32) (string, error) {
	f.record("GetTestCaseDescription")
	return "Auto-connection establishment", nil
}

func (f *fakeEngine) IsActiveTestCase(context.Context, string, string) (bool, error) {
	f.record("IsActiveTestCase")
	return true, nil
}

func (f *fakeEngine) GetTestCaseCountFromTSSFile(context.Context, string) (uint32, error) {
	f.record("GetTestCaseCountFromTSSFile")
	return 2, nil
}

func (f *fakeEngine) GetTestCasesFromTSSFile(context.Context, string) ([]string, error) {
	f.record("GetTestCasesFromTSSFile")
	return []string{"GAP/CONN/ACEP/BV-01-C", "GAP/CONN/ACEP/BV-02-C"}, nil
}

func (f *fakeEngine) RunTestCase(ctx context.Context, project, testCase string) error {
	f.record("RunTestCase")
	if f.run == nil {
		return nil
	}
	return f.run(ctx, project, testCase)
}

func (f *fakeEngine) StopTestCase(context.Context, string, string) error {
	f.record("StopTestCase")
	return f.stop
}

func (f *fakeEngine) UpdatePics(_ context.Context, _, entry string, value bool) error {
	f.record("UpdatePics")
	f.mu.Lock()
	defer f.mu.Unlock()
	if cur, ok := f.pics[entry]; ok && cur == value {
		return pts.Errorf("UpdatePics", pts.EPicsEntryNotChanged, "")
	}
	f.pics[entry] = value
	return nil
}

func (f *fakeEngine) UpdatePixitParam(_ context.Context, _, param, value string) error {
	f.record("UpdatePixitParam")
	f.mu.Lock()
	defer f.mu.Unlock()
	if cur, ok := f.pixit[param]; ok && cur == value {
		return pts.Errorf("UpdatePixitParam", pts.EPixitParamNotChanged, "")
	}
	f.pixit[param] = value
	return nil
}

func (f *fakeEngine) EnableMaximumLogging(context.Context, bool) error {
	f.record("EnableMaximumLogging")
	return nil
}

func (f *fakeEngine) SetPTSCallTimeout(_ context.Context, ms uint32) error {
	f.record("SetPTSCallTimeout")
	f.timeoutMS = ms
	return nil
}

func (f *fakeEngine) SaveTestHistoryLog(context.Context, bool) error {
	f.record("SaveTestHistoryLog")
	return nil
}

func (f *fakeEngine) GetPTSBluetoothAddress(context.Context) (uint64, error) {
	f.record("GetPTSBluetoothAddress")
	return f.addr, nil
}

func (f *fakeEngine) GetPTSVersion(context.Context) (uint32, error) {
	f.record("GetPTSVersion")
	return f.version, nil
}

func (f *fakeEngine) SetControlClientLoggerCallback(h pts.LogHandler) error {
	f.record("SetControlClientLoggerCallback")
	f.logHandler = h
	return nil
}

func (f *fakeEngine) RegisterImplicitSendCallbackEx(h pts.ImplicitSendHandler) error {
	f.record("RegisterImplicitSendCallbackEx")
	f.sendHandler = h
	return nil
}

func (f *fakeEngine) UnregisterImplicitSendCallbackEx(pts.ImplicitSendHandler) error {
	f.record("UnregisterImplicitSendCallbackEx")
	f.sendHandler = nil
	return nil
}

func (f *fakeEngine) Close() error {
	f.record("Close")
	return nil
}

// implicitSend drives the registered handler the way the engine does and
// returns the buffer contents and presence flag afterwards.
func (f *fakeEngine) implicitSend(wid, style int64, capacity int) (string, bool) {
	buf := make([]uint16, capacity)
	var present int32
	f.sendHandler.OnImplicitSend("GAP", wid, "GAP/CONN/ACEP/BV-01-C", "Please confirm", style, buf, int64(capacity), &present)
	return readResponse(buf), present != 0
}

// recordingCase is a TestCase that records everything it receives.
type recordingCase struct {
	mu        sync.Mutex
	project   string
	name      string
	answer    string
	logErr    error
	logPanic  bool
	sendErr   error
	sendPanic bool
	logs      []string
	requests  []ImplicitSendRequest
	preRuns   int
	postRuns  int
	postErr   error
}

func (r *recordingCase) Log(_ pts.LogType, _, _, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, message)
	if r.logPanic {
		panic("log receiver crashed")
	}
	return r.logErr
}

func (r *recordingCase) OnImplicitSend(req ImplicitSendRequest) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req)
	if r.sendPanic {
		panic("implicit send receiver crashed")
	}
	return r.answer, r.sendErr
}

func (r *recordingCase) ProjectName() string { return r.project }
func (r *recordingCase) Name() string        { return r.name }
func (r *recordingCase) PreRun()             { r.preRuns++ }

func (r *recordingCase) PostRun(err error) {
	r.postRuns++
	r.postErr = err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestControl builds a Control over eng whose exit hook records codes
// instead of terminating the test binary.
func newTestControl(t *testing.T, eng *fakeEngine) (*Control, *[]int) {
	t.Helper()
	c, err := New(context.Background(), eng, discardLogger())
	require.NoError(t, err)

	var exits []int
	c.exit = func(code int) { exits = append(exits, code) }
	t.Cleanup(func() { _ = c.Close() })
	return c, &exits
}
