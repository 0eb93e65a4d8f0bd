package ptscontrol

import "github.com/nrfconnect/auto-pts/internal/pts"

// Receiver consumes engine notifications for one test case run. It may be
// an in-process object or a proxy to a remote client.
//
// Returning an error (or panicking) from either method is fatal to the
// process: the engine is blocked inside its own call stack and offers no way
// to unwind.
type Receiver interface {
	Log(logType pts.LogType, logTypeLabel, logTime, message string) error

	// OnImplicitSend returns the answer to write back to the engine. An empty
	// answer leaves the engine's buffer untouched and lets it use its default.
	OnImplicitSend(req ImplicitSendRequest) (string, error)
}

// ImplicitSendRequest is an engine request for a test-specific value, with
// the numeric fields already range-checked.
type ImplicitSendRequest struct {
	Project          string `json:"project"`
	WID              uint16 `json:"wid"`
	TestCase         string `json:"test_case"`
	Description      string `json:"description"`
	Style            uint32 `json:"style"`
	Response         string `json:"response"`
	ResponseCapacity uint32 `json:"response_capacity"`
	ResponsePresent  bool   `json:"response_present"`
}

// TestCase is a Receiver that also drives its own execution lifecycle.
type TestCase interface {
	Receiver

	ProjectName() string
	Name() string

	// PreRun is called after the test case is bound and before the engine
	// starts it.
	PreRun()

	// PostRun is called exactly once after the engine call returns, with its
	// error, before the test case is unbound.
	PostRun(err error)
}
