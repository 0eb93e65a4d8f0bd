package ptscontrol

import (
	"context"
	"errors"
	"fmt"

	"github.com/nrfconnect/auto-pts/internal/pts"
)

// Error kinds returned by the bridge. Engine failures wrap both the kind and
// the underlying *pts.Error, so callers can use errors.Is for the kind and
// errors.As for the HRESULT.
var (
	ErrEngineCall        = errors.New("engine call failed")
	ErrEngineTimeout     = errors.New("engine call timed out")
	ErrEngineIO          = errors.New("engine workspace i/o failed")
	ErrProtocolViolation = errors.New("engine protocol violation")
	ErrBufferTooSmall    = errors.New("response does not fit engine buffer")
	ErrAlreadyRunning    = errors.New("a test case is already running")

	// ErrIdempotentNoop marks a PICS/PIXIT update the engine rejected because
	// the value was already set. It never reaches the caller.
	ErrIdempotentNoop = errors.New("value already set")

	// ErrReceiverFailed marks an error or panic raised by a Receiver inside an
	// engine callback. The relays escalate it to process termination.
	ErrReceiverFailed = errors.New("receiver failed")
)

func wrapEngine(kind, err error) error {
	return fmt.Errorf("%w: %w", kind, err)
}

// runError maps a RunTestCase failure onto the bridge taxonomy.
func runError(err error) error {
	if pts.HasCode(err, pts.ETimeout) || errors.Is(err, context.DeadlineExceeded) {
		return wrapEngine(ErrEngineTimeout, err)
	}
	return wrapEngine(ErrEngineCall, err)
}

// updateError maps a PICS/PIXIT update failure, downgrading the engine's
// "not changed" code to ErrIdempotentNoop.
func updateError(err error, notChanged pts.HRESULT) error {
	if pts.HasCode(err, notChanged) {
		return wrapEngine(ErrIdempotentNoop, err)
	}
	return wrapEngine(ErrEngineCall, err)
}
