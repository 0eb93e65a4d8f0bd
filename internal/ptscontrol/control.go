package ptscontrol

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nrfconnect/auto-pts/internal/pts"
)

// Control is the single entry point to one PTS engine connection.
//
// Engine failures are translated into the package's error kinds. At most one
// test case runs at a time; RunTestCase and RunTestCaseObject return
// ErrAlreadyRunning while another run is in flight.
type Control struct {
	engine    pts.Engine
	logger    *slog.Logger
	logRelay  *LogRelay
	sendRelay *ImplicitSendRelay
	running   atomic.Bool

	// exit terminates the process when a receiver fails inside a callback.
	exit func(code int)

	addrMu sync.Mutex
	bdAddr string

	relayErrMu sync.Mutex
	relayErrs  []error
}

// New takes ownership of engine, registers both relays with it and reads
// the engine identity. The relays are registered exactly once, here.
func New(ctx context.Context, engine pts.Engine, logger *slog.Logger) (*Control, error) {
	c := &Control{
		engine: engine,
		logger: logger,
		exit:   os.Exit,
	}
	c.logRelay = NewLogRelay(logger, c.fatal)
	c.sendRelay = NewImplicitSendRelay(logger, c.fatal, c.reportRelayError)

	if err := engine.SetControlClientLoggerCallback(c.logRelay); err != nil {
		return nil, fmt.Errorf("set logger callback: %w", wrapEngine(ErrEngineCall, err))
	}
	if err := engine.RegisterImplicitSendCallbackEx(c.sendRelay); err != nil {
		return nil, fmt.Errorf("register implicit send callback: %w", wrapEngine(ErrEngineCall, err))
	}

	version, err := c.Version(ctx)
	if err != nil {
		return nil, err
	}
	addr, err := c.BluetoothAddress(ctx)
	if err != nil {
		return nil, err
	}
	bdAddr, err := c.BDAddr(ctx)
	if err != nil {
		return nil, err
	}

	logger.Info("pts connected",
		"version", fmt.Sprintf("%x", version),
		"bluetooth_address", fmt.Sprintf("%x", addr),
		"bd_addr", bdAddr,
	)
	return c, nil
}

// Close unregisters the relays and closes the engine connection.
func (c *Control) Close() error {
	var errs []error
	if err := c.engine.UnregisterImplicitSendCallbackEx(c.sendRelay); err != nil {
		errs = append(errs, fmt.Errorf("unregister implicit send callback: %w", err))
	}
	if err := c.engine.SetControlClientLoggerCallback(nil); err != nil {
		errs = append(errs, fmt.Errorf("clear logger callback: %w", err))
	}
	if err := c.engine.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close engine: %w", err))
	}
	return errors.Join(errs...)
}

// CreateWorkspace creates a new workspace for the IUT at bdAddr from the
// engine project file ptsFilePath.
func (c *Control) CreateWorkspace(ctx context.Context, bdAddr, ptsFilePath, workspaceName, workspacePath string) error {
	err := c.call("CreateWorkspace", func() error {
		return c.engine.CreateWorkspace(ctx, bdAddr, ptsFilePath, workspaceName, workspacePath)
	})
	c.trace("CreateWorkspace", err,
		"bd_addr", bdAddr, "pts_file_path", ptsFilePath,
		"workspace_name", workspaceName, "workspace_path", workspacePath)
	if err != nil {
		return wrapEngine(ErrEngineIO, err)
	}
	return nil
}

// OpenWorkspace loads an existing workspace file.
func (c *Control) OpenWorkspace(ctx context.Context, workspacePath string) error {
	err := c.call("OpenWorkspace", func() error {
		return c.engine.OpenWorkspace(ctx, workspacePath)
	})
	c.trace("OpenWorkspace", err, "workspace_path", workspacePath)
	if err != nil {
		return wrapEngine(ErrEngineIO, err)
	}
	return nil
}

// ProjectCount returns the number of projects in the active workspace.
func (c *Control) ProjectCount(ctx context.Context) (uint32, error) {
	var n uint32
	err := c.call("GetProjectCount", func() (err error) {
		n, err = c.engine.GetProjectCount(ctx)
		return err
	})
	c.trace("GetProjectCount", err, "count", n)
	if err != nil {
		return 0, wrapEngine(ErrEngineCall, err)
	}
	return n, nil
}

// ProjectName returns the name of the project at index.
func (c *Control) ProjectName(ctx context.Context, index uint32) (string, error) {
	var name string
	err := c.call("GetProjectName", func() (err error) {
		name, err = c.engine.GetProjectName(ctx, index)
		return err
	})
	c.trace("GetProjectName", err, "index", index, "name", name)
	if err != nil {
		return "", wrapEngine(ErrEngineCall, err)
	}
	return name, nil
}

// ProjectVersion returns the version string of the named project.
func (c *Control) ProjectVersion(ctx context.Context, project string) (string, error) {
	var version string
	err := c.call("GetProjectVersion", func() (err error) {
		version, err = c.engine.GetProjectVersion(ctx, project)
		return err
	})
	c.trace("GetProjectVersion", err, "project", project, "version", version)
	if err != nil {
		return "", wrapEngine(ErrEngineCall, err)
	}
	return version, nil
}

// TestCaseCount returns the number of test cases in project.
func (c *Control) TestCaseCount(ctx context.Context, project string) (uint32, error) {
	var n uint32
	err := c.call("GetTestCaseCount", func() (err error) {
		n, err = c.engine.GetTestCaseCount(ctx, project)
		return err
	})
	c.trace("GetTestCaseCount", err, "project", project, "count", n)
	if err != nil {
		return 0, wrapEngine(ErrEngineCall, err)
	}
	return n, nil
}

// TestCaseName returns the name of the test case at index in project.
func (c *Control) TestCaseName(ctx context.Context, project string, index uint32) (string, error) {
	var name string
	err := c.call("GetTestCaseName", func() (err error) {
		name, err = c.engine.GetTestCaseName(ctx, project, index)
		return err
	})
	c.trace("GetTestCaseName", err, "project", project, "index", index, "name", name)
	if err != nil {
		return "", wrapEngine(ErrEngineCall, err)
	}
	return name, nil
}

// TestCaseDescription returns the description of the test case at index in
// project.
func (c *Control) TestCaseDescription(ctx context.Context, project string, index uint32) (string, error) {
	var desc string
	err := c.call("GetTestCaseDescription", func() (err error) {
		desc, err = c.engine.GetTestCaseDescription(ctx, project, index)
		return err
	})
	c.trace("GetTestCaseDescription", err, "project", project, "index", index, "description", desc)
	if err != nil {
		return "", wrapEngine(ErrEngineCall, err)
	}
	return desc, nil
}

// IsActiveTestCase reports whether the test case is enabled in project.
func (c *Control) IsActiveTestCase(ctx context.Context, project, testCase string) (bool, error) {
	var active bool
	err := c.call("IsActiveTestCase", func() (err error) {
		active, err = c.engine.IsActiveTestCase(ctx, project, testCase)
		return err
	})
	c.trace("IsActiveTestCase", err, "project", project, "test_case", testCase, "active", active)
	if err != nil {
		return false, wrapEngine(ErrEngineCall, err)
	}
	return active, nil
}

// TestCaseCountFromTSSFile returns the number of test cases listed in the
// project's test suite specification file, regardless of enable state.
func (c *Control) TestCaseCountFromTSSFile(ctx context.Context, project string) (uint32, error) {
	var n uint32
	err := c.call("GetTestCaseCountFromTSSFile", func() (err error) {
		n, err = c.engine.GetTestCaseCountFromTSSFile(ctx, project)
		return err
	})
	c.trace("GetTestCaseCountFromTSSFile", err, "project", project, "count", n)
	if err != nil {
		return 0, wrapEngine(ErrEngineCall, err)
	}
	return n, nil
}

// TestCasesFromTSSFile returns the test case names listed in the project's
// test suite specification file.
func (c *Control) TestCasesFromTSSFile(ctx context.Context, project string) ([]string, error) {
	var names []string
	err := c.call("GetTestCasesFromTSSFile", func() (err error) {
		names, err = c.engine.GetTestCasesFromTSSFile(ctx, project)
		return err
	})
	c.trace("GetTestCasesFromTSSFile", err, "project", project, "test_cases", names)
	if err != nil {
		return nil, wrapEngine(ErrEngineCall, err)
	}
	return names, nil
}

// UpdatePics sets a PICS entry. Setting an entry to the value it already
// holds succeeds.
func (c *Control) UpdatePics(ctx context.Context, project, entry string, value bool) error {
	start := time.Now()
	err := c.engine.UpdatePics(ctx, project, entry, value)
	if err != nil {
		err = updateError(err, pts.EPicsEntryNotChanged)
	}
	return c.finishUpdate("UpdatePics", start, err, "project", project, "entry", entry, "value", value)
}

// UpdatePixitParam sets a PIXIT parameter. Setting a parameter to the value
// it already holds succeeds.
func (c *Control) UpdatePixitParam(ctx context.Context, project, param, value string) error {
	start := time.Now()
	err := c.engine.UpdatePixitParam(ctx, project, param, value)
	if err != nil {
		err = updateError(err, pts.EPixitParamNotChanged)
	}
	return c.finishUpdate("UpdatePixitParam", start, err, "project", project, "param", param, "value", value)
}

func (c *Control) finishUpdate(method string, start time.Time, err error, args ...any) error {
	switch {
	case err == nil:
		observeEngineCall(method, start, resultOK)
	case errors.Is(err, ErrIdempotentNoop):
		observeEngineCall(method, start, resultUnchanged)
		c.logger.Info("value already set, update skipped", append([]any{"method", method}, args...)...)
		return nil
	default:
		observeEngineCall(method, start, resultError)
	}
	c.trace(method, err, args...)
	return err
}

// RunTestCase executes a test case and blocks until the engine finishes it
// or the call timeout elapses. It is never retried.
func (c *Control) RunTestCase(ctx context.Context, project, testCase string) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer c.running.Store(false)

	return c.runTestCase(ctx, project, testCase)
}

// RunTestCaseObject binds tc to both relays for the duration of one engine
// run. tc.PostRun is called exactly once and tc is unbound on every exit
// path, including an engine failure or panic. Protocol errors raised by the
// relays during the run are joined into the returned error.
func (c *Control) RunTestCaseObject(ctx context.Context, tc TestCase) (err error) {
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer c.running.Store(false)

	c.logger.Info("starting test case object", "project", tc.ProjectName(), "test_case", tc.Name())

	c.takeRelayErrors()
	c.bind(tc)
	defer c.unbind()

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: RunTestCase panicked: %v", ErrEngineCall, p)
		}
		tc.PostRun(err)
		c.logger.Info("done test case object", "project", tc.ProjectName(), "test_case", tc.Name(), "error", err)
	}()

	tc.PreRun()
	err = c.runTestCase(ctx, tc.ProjectName(), tc.Name())
	if relayErr := c.takeRelayErrors(); relayErr != nil {
		err = errors.Join(err, relayErr)
	}
	return err
}

func (c *Control) runTestCase(ctx context.Context, project, testCase string) error {
	c.logger.Info("starting test case", "project", project, "test_case", testCase)

	err := c.call("RunTestCase", func() error {
		return c.engine.RunTestCase(ctx, project, testCase)
	})
	c.trace("RunTestCase", err, "project", project, "test_case", testCase)
	if err != nil {
		return runError(err)
	}

	c.logger.Info("done test case", "project", project, "test_case", testCase)
	return nil
}

// StopTestCase forwards a stop request. The engine does not implement
// stopping, so any failure is logged and reported as success.
func (c *Control) StopTestCase(ctx context.Context, project, testCase string) error {
	err := c.call("StopTestCase", func() error {
		return c.engine.StopTestCase(ctx, project, testCase)
	})
	c.trace("StopTestCase", err, "project", project, "test_case", testCase)
	if err != nil {
		c.logger.Warn("stop test case not honoured by engine", "project", project, "test_case", testCase, "error", err)
	}
	return nil
}

// EnableMaximumLogging toggles the engine's verbose logging.
func (c *Control) EnableMaximumLogging(ctx context.Context, enable bool) error {
	err := c.call("EnableMaximumLogging", func() error {
		return c.engine.EnableMaximumLogging(ctx, enable)
	})
	c.trace("EnableMaximumLogging", err, "enable", enable)
	if err != nil {
		return wrapEngine(ErrEngineCall, err)
	}
	return nil
}

// SetCallTimeout sets the timeout applied to subsequent RunTestCase calls,
// with millisecond resolution. Zero disables the timeout.
func (c *Control) SetCallTimeout(ctx context.Context, timeout time.Duration) error {
	ms := timeout.Milliseconds()
	if ms < 0 || ms > math.MaxUint32 {
		return fmt.Errorf("%w: call timeout %s out of range", ErrProtocolViolation, timeout)
	}

	err := c.call("SetPTSCallTimeout", func() error {
		return c.engine.SetPTSCallTimeout(ctx, uint32(ms))
	})
	c.trace("SetPTSCallTimeout", err, "timeout_ms", ms)
	if err != nil {
		return wrapEngine(ErrEngineCall, err)
	}
	return nil
}

// SaveTestHistoryLog controls whether the engine saves test logs in the
// workspace folder.
func (c *Control) SaveTestHistoryLog(ctx context.Context, save bool) error {
	err := c.call("SaveTestHistoryLog", func() error {
		return c.engine.SaveTestHistoryLog(ctx, save)
	})
	c.trace("SaveTestHistoryLog", err, "save", save)
	if err != nil {
		return wrapEngine(ErrEngineCall, err)
	}
	return nil
}

// BluetoothAddress returns the engine's own Bluetooth address.
func (c *Control) BluetoothAddress(ctx context.Context) (uint64, error) {
	var addr uint64
	err := c.call("GetPTSBluetoothAddress", func() (err error) {
		addr, err = c.engine.GetPTSBluetoothAddress(ctx)
		return err
	})
	c.trace("GetPTSBluetoothAddress", err, "address", fmt.Sprintf("%x", addr))
	if err != nil {
		return 0, wrapEngine(ErrEngineCall, err)
	}
	return addr, nil
}

// BDAddr returns the engine's address formatted by FormatBDAddr. The first
// successful result is cached for the lifetime of the connection.
func (c *Control) BDAddr(ctx context.Context) (string, error) {
	c.addrMu.Lock()
	defer c.addrMu.Unlock()

	if c.bdAddr != "" {
		c.trace("BDAddr", nil, "bd_addr", c.bdAddr, "cached", true)
		return c.bdAddr, nil
	}

	addr, err := c.BluetoothAddress(ctx)
	if err != nil {
		return "", err
	}
	c.bdAddr = FormatBDAddr(addr)
	c.trace("BDAddr", nil, "bd_addr", c.bdAddr, "cached", false)
	return c.bdAddr, nil
}

// Version returns the engine version.
func (c *Control) Version(ctx context.Context) (uint32, error) {
	var version uint32
	err := c.call("GetPTSVersion", func() (err error) {
		version, err = c.engine.GetPTSVersion(ctx)
		return err
	})
	c.trace("GetPTSVersion", err, "version", fmt.Sprintf("%x", version))
	if err != nil {
		return 0, wrapEngine(ErrEngineCall, err)
	}
	return version, nil
}

// Running reports whether a test case run is in flight.
func (c *Control) Running() bool {
	return c.running.Load()
}

func (c *Control) bind(tc TestCase) {
	c.logger.Debug("binding receiver", "project", tc.ProjectName(), "test_case", tc.Name())
	c.logRelay.Bind(tc)
	c.sendRelay.Bind(tc)
	receiverBound.Set(1)
}

func (c *Control) unbind() {
	c.logRelay.Unbind()
	c.sendRelay.Unbind()
	receiverBound.Set(0)
	c.logger.Debug("receiver unbound")
}

func (c *Control) reportRelayError(err error) {
	c.relayErrMu.Lock()
	defer c.relayErrMu.Unlock()
	c.relayErrs = append(c.relayErrs, err)
}

// takeRelayErrors returns and clears the errors reported since the last call.
func (c *Control) takeRelayErrors() error {
	c.relayErrMu.Lock()
	defer c.relayErrMu.Unlock()
	err := errors.Join(c.relayErrs...)
	c.relayErrs = nil
	return err
}

// fatal handles a receiver failure inside an engine callback. The engine is
// blocked in its own call stack and cannot be unwound, so the process exits.
func (c *Control) fatal(err error) {
	c.logger.Error("receiver failed inside engine callback, terminating", "error", err)
	c.exit(1)
}

// call runs one engine call and records its metrics.
func (c *Control) call(method string, fn func() error) error {
	start := time.Now()
	err := fn()
	result := resultOK
	if err != nil {
		result = resultError
	}
	observeEngineCall(method, start, result)
	return err
}

// trace emits the per-call debug line: method, arguments and result.
func (c *Control) trace(method string, err error, args ...any) {
	attrs := append([]any{"method", method}, args...)
	if err != nil {
		attrs = append(attrs, "error", err)
	}
	c.logger.Debug("pts call", attrs...)
}
