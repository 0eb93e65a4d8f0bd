package pts

import "context"

// Engine is the control surface every engine driver must implement. One
// Engine value corresponds to one running engine instance.
//
// Methods mirror the engine's native calls one to one; failures are reported
// as *Error values carrying the engine's HRESULT.
type Engine interface {
	CreateWorkspace(ctx context.Context, bdAddr, ptsFilePath, workspaceName, workspacePath string) error
	OpenWorkspace(ctx context.Context, workspacePath string) error

	GetProjectCount(ctx context.Context) (uint32, error)
	GetProjectName(ctx context.Context, projectIndex uint32) (string, error)
	GetProjectVersion(ctx context.Context, projectName string) (string, error)

	GetTestCaseCount(ctx context.Context, projectName string) (uint32, error)
	GetTestCaseName(ctx context.Context, projectName string, testCaseIndex uint32) (string, error)
	GetTestCaseDescription(ctx context.Context, projectName string, testCaseIndex uint32) (string, error)
	IsActiveTestCase(ctx context.Context, projectName, testCaseName string) (bool, error)

	GetTestCaseCountFromTSSFile(ctx context.Context, projectName string) (uint32, error)
	GetTestCasesFromTSSFile(ctx context.Context, projectName string) ([]string, error)

	// RunTestCase blocks until the engine finishes the test case or the
	// configured call timeout elapses. Notifications are delivered to the
	// registered handlers while it runs, possibly from another goroutine.
	RunTestCase(ctx context.Context, projectName, testCaseName string) error
	StopTestCase(ctx context.Context, projectName, testCaseName string) error

	UpdatePics(ctx context.Context, projectName, entryName string, value bool) error
	UpdatePixitParam(ctx context.Context, projectName, paramName, value string) error

	EnableMaximumLogging(ctx context.Context, enable bool) error
	// SetPTSCallTimeout sets the RunTestCase timeout in milliseconds; 0 disables it.
	SetPTSCallTimeout(ctx context.Context, timeoutMS uint32) error
	SaveTestHistoryLog(ctx context.Context, save bool) error

	GetPTSBluetoothAddress(ctx context.Context) (uint64, error)
	GetPTSVersion(ctx context.Context) (uint32, error)

	// SetControlClientLoggerCallback must be called once before the engine is
	// used. A nil handler disables log delivery.
	SetControlClientLoggerCallback(h LogHandler) error
	RegisterImplicitSendCallbackEx(h ImplicitSendHandler) error
	UnregisterImplicitSendCallbackEx(h ImplicitSendHandler) error

	Close() error
}

// LogHandler receives one call per log event emitted by the engine.
// Implementations must not block and must not panic back into the engine.
type LogHandler interface {
	Log(logType LogType, logTypeLabel, logTime, message string)
}

// ImplicitSendHandler is invoked when the engine is blocked waiting for a
// value or action it cannot produce itself.
//
// The numeric fields arrive in the engine's wide representation; wid is
// contracted to fit 16 bits and style and responseSize to fit 32 bits.
// response is the engine-owned output buffer of UTF-16 code units; an
// answer is written NUL-terminated into at most responseSize units and
// *responseIsPresent set to 1.
type ImplicitSendHandler interface {
	OnImplicitSend(projectName string, wid int64, testCaseName, description string,
		style int64, response []uint16, responseSize int64, responseIsPresent *int32)
}
