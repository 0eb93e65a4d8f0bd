package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nrfconnect/auto-pts/internal/pts"
	"github.com/nrfconnect/auto-pts/internal/ptscontrol"
	"github.com/nrfconnect/auto-pts/internal/ptssim"
	"github.com/nrfconnect/auto-pts/internal/workspace"
)

// SimDriver is the registry name of the simulated engine.
const SimDriver = "sim"

// NewRegistry returns the engine drivers available to this build.
func NewRegistry(simDB string, logger *slog.Logger) *pts.Registry {
	reg := pts.NewRegistry()
	ptssim.Register(reg, SimDriver, ptssim.Options{DBPath: simDB, Logger: logger})
	return reg
}

// session is an open engine connection for one command.
type session struct {
	registry *pts.Registry
	control  *ptscontrol.Control
}

// openSession connects to the configured engine and, when workspacePath is
// set, opens that workspace.
func openSession(ctx context.Context, engine, simDB, workspacePath string, logger *slog.Logger) (*session, error) {
	reg := NewRegistry(simDB, logger)
	eng, err := reg.Open(engine)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open engine", err)
	}

	ctl, err := ptscontrol.New(ctx, eng, logger)
	if err != nil {
		_ = eng.Close()
		return nil, WrapExitError(ExitCommandError, "connect to engine", err)
	}

	if workspacePath != "" {
		if err := openWorkspace(ctx, ctl, workspacePath); err != nil {
			_ = ctl.Close()
			return nil, err
		}
	}
	return &session{registry: reg, control: ctl}, nil
}

// openWorkspaceSession is openSession for commands that need a workspace.
func (o *RootOptions) openWorkspaceSession(ctx context.Context, logger *slog.Logger) (*session, error) {
	if o.Workspace == "" {
		return nil, NewExitError(ExitCommandError, "--workspace is required")
	}
	return openSession(ctx, o.Engine, o.SimDB, o.Workspace, logger)
}

func openWorkspace(ctx context.Context, ctl *ptscontrol.Control, path string) error {
	abs, err := workspace.Validate(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid workspace", err)
	}
	if err := ctl.OpenWorkspace(ctx, abs); err != nil {
		return WrapExitError(ExitCommandError, "open workspace", err)
	}
	return nil
}

func (s *session) Close() error {
	return s.control.Close()
}

// EngineSettings are the engine options applied after connecting.
type EngineSettings struct {
	CallTimeout     time.Duration
	MaximumLogging  bool
	SaveTestHistory bool
}

// Apply sends the non-default settings to the engine.
func (e EngineSettings) Apply(ctx context.Context, ctl *ptscontrol.Control) error {
	var errs []error
	if e.CallTimeout > 0 {
		errs = append(errs, ctl.SetCallTimeout(ctx, e.CallTimeout))
	}
	if e.MaximumLogging {
		errs = append(errs, ctl.EnableMaximumLogging(ctx, true))
	}
	if e.SaveTestHistory {
		errs = append(errs, ctl.SaveTestHistoryLog(ctx, true))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("apply engine settings: %w", err)
	}
	return nil
}
