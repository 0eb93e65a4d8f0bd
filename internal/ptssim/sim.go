package ptssim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf16"

	"github.com/nrfconnect/auto-pts/internal/model"
	"github.com/nrfconnect/auto-pts/internal/pts"
	"github.com/nrfconnect/auto-pts/internal/store"
)

// Defaults reported by a simulated engine.
const (
	DefaultBluetoothAddress uint64 = 0x1BDCF21A570D
	DefaultVersion          uint32 = 0x00080600

	// LogTimeFormat is the layout of the log time passed to log handlers.
	LogTimeFormat = "15:04:05.000"
)

// Options configures a simulated engine.
type Options struct {
	// DBPath is the SQLite database holding workspace state. Empty means
	// an in-memory database.
	DBPath string

	BluetoothAddress uint64
	Version          uint32

	// Clock supplies event timestamps. Defaults to time.Now.
	Clock func() time.Time

	Logger *slog.Logger
}

// Compile-time interface satisfaction check.
var _ pts.Engine = (*Sim)(nil)

// Sim implements pts.Engine by playing back workspace scripts.
type Sim struct {
	store  store.Store
	addr   uint64
	ver    uint32
	clock  func() time.Time
	logger *slog.Logger

	mu          sync.Mutex
	logHandler  pts.LogHandler
	sendHandler pts.ImplicitSendHandler
	timeoutMS   uint32
	maxLogging  bool
	saveHistory bool
	running     bool
	closed      bool
}

// New creates a simulated engine with no workspace open.
func New(opts Options) (*Sim, error) {
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = ":memory:"
	}
	st, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sim state: %w", err)
	}

	s := &Sim{
		store:  st,
		addr:   opts.BluetoothAddress,
		ver:    opts.Version,
		clock:  opts.Clock,
		logger: opts.Logger,
	}
	if s.addr == 0 {
		s.addr = DefaultBluetoothAddress
	}
	if s.ver == 0 {
		s.ver = DefaultVersion
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	return s, nil
}

// Register adds the simulated engine to reg under name.
func Register(reg *pts.Registry, name string, opts Options) {
	reg.Register(name, "scripted engine double backed by YAML workspaces", func() (pts.Engine, error) {
		return New(opts)
	})
}

// CreateWorkspace copies the workspace document at ptsFilePath to
// workspacePath/workspaceName.pqw6 with the IUT address set, and opens it.
func (s *Sim) CreateWorkspace(ctx context.Context, bdAddr, ptsFilePath, workspaceName, workspacePath string) error {
	const op = "CreateWorkspace"

	ws, err := ReadWorkspace(ptsFilePath)
	if err != nil {
		return fileError(op, err)
	}
	ws.Name = workspaceName
	ws.IUTAddress = bdAddr

	if err := os.MkdirAll(workspacePath, 0o755); err != nil {
		return pts.Errorf(op, pts.EFail, "create workspace dir: %v", err)
	}
	path := filepath.Join(workspacePath, workspaceName+WorkspaceExt)
	if err := ws.WriteFile(path); err != nil {
		return pts.Errorf(op, pts.EFail, "%v", err)
	}

	return s.load(ctx, op, ws, path)
}

// OpenWorkspace loads the workspace document at workspacePath.
func (s *Sim) OpenWorkspace(ctx context.Context, workspacePath string) error {
	const op = "OpenWorkspace"

	ws, err := ReadWorkspace(workspacePath)
	if err != nil {
		return fileError(op, err)
	}
	return s.load(ctx, op, ws, workspacePath)
}

func (s *Sim) load(ctx context.Context, op string, ws *Workspace, path string) error {
	data, err := ws.toStore(path)
	if err != nil {
		return pts.Errorf(op, pts.EFail, "%v", err)
	}
	if err := s.store.LoadWorkspace(ctx, data); err != nil {
		return pts.Errorf(op, pts.EFail, "%v", err)
	}
	s.logger.Info("sim workspace opened", "path", path, "projects", len(ws.Projects))
	return nil
}

func fileError(op string, err error) error {
	if errors.Is(err, os.ErrNotExist) {
		return pts.Errorf(op, pts.EFileNotFound, "%v", err)
	}
	return pts.Errorf(op, pts.EFail, "%v", err)
}

// storeError maps a state lookup failure onto an engine error.
func storeError(op string, err error, what string) error {
	if errors.Is(err, store.ErrNotFound) {
		return pts.Errorf(op, pts.EInvalidArg, "unknown %s", what)
	}
	return pts.Errorf(op, pts.EFail, "%v", err)
}

func (s *Sim) GetProjectCount(ctx context.Context) (uint32, error) {
	n, err := s.store.ProjectCount(ctx)
	if err != nil {
		return 0, pts.Errorf("GetProjectCount", pts.EFail, "%v", err)
	}
	return uint32(n), nil
}

func (s *Sim) GetProjectName(ctx context.Context, projectIndex uint32) (string, error) {
	p, err := s.store.GetProjectByIndex(ctx, int(projectIndex))
	if err != nil {
		return "", storeError("GetProjectName", err, fmt.Sprintf("project index %d", projectIndex))
	}
	return p.Name, nil
}

func (s *Sim) GetProjectVersion(ctx context.Context, projectName string) (string, error) {
	p, err := s.store.GetProject(ctx, projectName)
	if err != nil {
		return "", storeError("GetProjectVersion", err, "project "+projectName)
	}
	return p.Version, nil
}

func (s *Sim) GetTestCaseCount(ctx context.Context, projectName string) (uint32, error) {
	tcs, err := s.store.ListTestCases(ctx, projectName)
	if err != nil {
		return 0, storeError("GetTestCaseCount", err, "project "+projectName)
	}
	return uint32(len(tcs)), nil
}

func (s *Sim) testCaseAt(ctx context.Context, op, projectName string, index uint32) (*store.TestCase, error) {
	tcs, err := s.store.ListTestCases(ctx, projectName)
	if err != nil {
		return nil, storeError(op, err, "project "+projectName)
	}
	if int(index) >= len(tcs) {
		return nil, pts.Errorf(op, pts.EInvalidArg, "test case index %d out of range", index)
	}
	return tcs[index], nil
}

func (s *Sim) GetTestCaseName(ctx context.Context, projectName string, testCaseIndex uint32) (string, error) {
	tc, err := s.testCaseAt(ctx, "GetTestCaseName", projectName, testCaseIndex)
	if err != nil {
		return "", err
	}
	return tc.Name, nil
}

func (s *Sim) GetTestCaseDescription(ctx context.Context, projectName string, testCaseIndex uint32) (string, error) {
	tc, err := s.testCaseAt(ctx, "GetTestCaseDescription", projectName, testCaseIndex)
	if err != nil {
		return "", err
	}
	return tc.Description, nil
}

func (s *Sim) IsActiveTestCase(ctx context.Context, projectName, testCaseName string) (bool, error) {
	tc, err := s.store.GetTestCase(ctx, projectName, testCaseName)
	if err != nil {
		return false, storeError("IsActiveTestCase", err, "test case "+testCaseName)
	}
	return tc.Active, nil
}

func (s *Sim) tssNames(ctx context.Context, op, projectName string) ([]string, error) {
	tcs, err := s.store.ListTestCases(ctx, projectName)
	if err != nil {
		return nil, storeError(op, err, "project "+projectName)
	}
	var names []string
	for _, tc := range tcs {
		if tc.InTSS {
			names = append(names, tc.Name)
		}
	}
	return names, nil
}

func (s *Sim) GetTestCaseCountFromTSSFile(ctx context.Context, projectName string) (uint32, error) {
	names, err := s.tssNames(ctx, "GetTestCaseCountFromTSSFile", projectName)
	if err != nil {
		return 0, err
	}
	return uint32(len(names)), nil
}

func (s *Sim) GetTestCasesFromTSSFile(ctx context.Context, projectName string) ([]string, error) {
	return s.tssNames(ctx, "GetTestCasesFromTSSFile", projectName)
}

// RunTestCase plays the test case script and blocks until it ends. When a
// call timeout is set and elapses first, the script is abandoned and the
// timeout HRESULT returned. No callback is delivered after RunTestCase
// returns.
func (s *Sim) RunTestCase(ctx context.Context, projectName, testCaseName string) error {
	const op = "RunTestCase"

	tc, err := s.store.GetTestCase(ctx, projectName, testCaseName)
	if err != nil {
		return storeError(op, err, "test case "+testCaseName)
	}
	if !tc.Active {
		return pts.Errorf(op, pts.EFail, "test case %s is not active", testCaseName)
	}
	steps, err := decodeScript(tc.Script)
	if err != nil {
		return pts.Errorf(op, pts.EFail, "%v", err)
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return pts.Errorf(op, pts.EFail, "a test case is already running")
	}
	s.running = true
	timeout := time.Duration(s.timeoutMS) * time.Millisecond
	p := &playback{
		sim:        s,
		project:    projectName,
		testCase:   testCaseName,
		logH:       s.logHandler,
		sendH:      s.sendHandler,
		maxLogging: s.maxLogging,
	}
	saveHistory := s.saveHistory
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		p.play(runCtx, steps)
	}()

	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}

	var runErr error
	select {
	case <-done:
	case <-timer:
		cancel()
		<-done
		runErr = pts.Errorf(op, pts.ETimeout, "test case %s exceeded call timeout %s", testCaseName, timeout)
	case <-ctx.Done():
		<-done
		runErr = ctx.Err()
	}

	if saveHistory {
		if err := s.writeHistory(ctx, projectName, testCaseName, p.history); err != nil {
			s.logger.Warn("sim history log not saved", "test_case", testCaseName, "error", err)
		}
	}
	return runErr
}

// StopTestCase is not implemented by the engine.
func (s *Sim) StopTestCase(context.Context, string, string) error {
	return pts.Errorf("StopTestCase", pts.ENotImpl, "StopTestCase is not currently implemented")
}

func (s *Sim) UpdatePics(ctx context.Context, projectName, entryName string, value bool) error {
	const op = "UpdatePics"
	changed, err := s.store.SetPics(ctx, projectName, entryName, value)
	if err != nil {
		return storeError(op, err, "PICS entry "+entryName)
	}
	if !changed {
		return pts.Errorf(op, pts.EPicsEntryNotChanged, "PICS entry %s not changed", entryName)
	}
	return nil
}

func (s *Sim) UpdatePixitParam(ctx context.Context, projectName, paramName, value string) error {
	const op = "UpdatePixitParam"
	changed, err := s.store.SetPixit(ctx, projectName, paramName, value)
	if err != nil {
		return storeError(op, err, "PIXIT parameter "+paramName)
	}
	if !changed {
		return pts.Errorf(op, pts.EPixitParamNotChanged, "PIXIT parameter %s not changed", paramName)
	}
	return nil
}

func (s *Sim) EnableMaximumLogging(_ context.Context, enable bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maxLogging = enable
	return nil
}

func (s *Sim) SetPTSCallTimeout(_ context.Context, timeoutMS uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeoutMS = timeoutMS
	return nil
}

func (s *Sim) SaveTestHistoryLog(_ context.Context, save bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveHistory = save
	return nil
}

func (s *Sim) GetPTSBluetoothAddress(context.Context) (uint64, error) {
	return s.addr, nil
}

func (s *Sim) GetPTSVersion(context.Context) (uint32, error) {
	return s.ver, nil
}

func (s *Sim) SetControlClientLoggerCallback(h pts.LogHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logHandler = h
	return nil
}

func (s *Sim) RegisterImplicitSendCallbackEx(h pts.ImplicitSendHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sendHandler = h
	return nil
}

func (s *Sim) UnregisterImplicitSendCallbackEx(pts.ImplicitSendHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sendHandler = nil
	return nil
}

// Close releases the state store.
func (s *Sim) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.store.Close()
}

// Pics returns the current value of a PICS entry.
func (s *Sim) Pics(ctx context.Context, projectName, entryName string) (bool, error) {
	return s.store.GetPics(ctx, projectName, entryName)
}

// Pixit returns the current value of a PIXIT parameter.
func (s *Sim) Pixit(ctx context.Context, projectName, paramName string) (string, error) {
	return s.store.GetPixit(ctx, projectName, paramName)
}

// writeHistory saves the run log next to the open workspace.
func (s *Sim) writeHistory(ctx context.Context, projectName, testCaseName string, lines []string) error {
	info, err := s.store.GetWorkspaceInfo(ctx)
	if err != nil {
		return fmt.Errorf("workspace info: %w", err)
	}

	dir := filepath.Join(filepath.Dir(info.Path), "history")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create history dir: %w", err)
	}

	name := fmt.Sprintf("%s_%s_%s.log",
		projectName,
		strings.NewReplacer("/", "_", " ", "_").Replace(testCaseName),
		s.clock().Format("20060102_150405.000"),
	)
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	s.logger.Info("sim history log saved", "path", path)
	return nil
}

// playback is one script execution.
type playback struct {
	sim        *Sim
	project    string
	testCase   string
	logH       pts.LogHandler
	sendH      pts.ImplicitSendHandler
	maxLogging bool

	failed  bool
	history []string
}

func (p *playback) play(ctx context.Context, steps []Step) {
	p.log(pts.LogTypeStartTest, fmt.Sprintf("Test case : %s started", p.testCase))

	verdict := ""
	for i, step := range steps {
		if ctx.Err() != nil {
			return
		}
		if p.maxLogging {
			p.log(pts.LogTypeGeneralText, fmt.Sprintf("step %d: %s", i, step.kind()))
		}

		switch {
		case step.Log != nil:
			p.log(step.Log.Type, step.Log.Message)
		case step.Wait != "":
			d, _ := time.ParseDuration(step.Wait)
			select {
			case <-time.After(d):
			case <-ctx.Done():
				return
			}
		case step.ImplicitSend != nil:
			p.implicitSend(step.ImplicitSend)
		case step.Verdict != "":
			verdict = strings.ToUpper(step.Verdict)
		}
	}

	if p.failed {
		verdict = model.VerdictFail
	}
	if verdict != "" {
		p.log(pts.LogTypeFinalVerdict, "Final Verdict: "+verdict)
	}
	p.log(pts.LogTypeEndTest, fmt.Sprintf("Test case : %s ended", p.testCase))
}

func (p *playback) log(logType pts.LogType, message string) {
	ts := p.sim.clock().Format(LogTimeFormat)
	p.history = append(p.history, fmt.Sprintf("%s %s %s", ts, logType, message))
	if p.logH != nil {
		p.logH.Log(logType, logType.String(), ts, message)
	}
}

func (p *playback) implicitSend(step *ImplicitSendStep) {
	size := step.ResponseSize
	if size == 0 {
		size = defaultResponseSize
	}
	// Out-of-range sizes are passed through as declared over a minimal buffer.
	n := size
	if n < 1 || n > maxResponseSize {
		n = 1
	}
	buf := make([]uint16, n)
	var present int32

	p.log(pts.LogTypeImplicitSend, fmt.Sprintf("wid %d: %s", step.WID, step.Description))
	if p.sendH != nil {
		p.sendH.OnImplicitSend(p.project, step.WID, p.testCase, step.Description, step.Style, buf, size, &present)
	}

	answer := ""
	if present != 0 {
		answer = decodeUTF16(buf)
	}
	p.log(pts.LogTypeGeneralText, fmt.Sprintf("wid %d response: %q present=%v", step.WID, answer, present != 0))

	if step.Expect != "" && answer != step.Expect {
		p.failed = true
		p.log(pts.LogTypeError, fmt.Sprintf("wid %d: expected %q, got %q", step.WID, step.Expect, answer))
	}
}

func decodeUTF16(buf []uint16) string {
	n := 0
	for n < len(buf) && buf[n] != 0 {
		n++
	}
	return string(utf16.Decode(buf[:n]))
}
