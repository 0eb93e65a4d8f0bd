package pts

import (
	"errors"
	"fmt"
)

// HRESULT is the status code the engine attaches to a failed call.
type HRESULT uint32

// Engine status codes the bridge interprets.
const (
	// EPicsEntryNotChanged is returned by UpdatePics when the entry already
	// holds the requested value.
	EPicsEntryNotChanged HRESULT = 0x849C0032

	// EPixitParamNotChanged is returned by UpdatePixitParam when the
	// parameter already holds the requested value.
	EPixitParamNotChanged HRESULT = 0x849C0021

	ENotImpl      HRESULT = 0x80004001
	EFail         HRESULT = 0x80004005
	EInvalidArg   HRESULT = 0x80070057
	EFileNotFound HRESULT = 0x80070002
	ETimeout      HRESULT = 0x800705B4
)

func (h HRESULT) String() string {
	return fmt.Sprintf("0x%08X", uint32(h))
}

// Error is a failure reported by the engine.
type Error struct {
	Op      string
	Code    HRESULT
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: hresult %s", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: %s (hresult %s)", e.Op, e.Message, e.Code)
}

// Errorf builds an *Error for op with the given code.
func Errorf(op string, code HRESULT, format string, args ...any) *Error {
	return &Error{Op: op, Code: code, Message: fmt.Sprintf(format, args...)}
}

// HasCode reports whether err is, or wraps, an *Error carrying code.
func HasCode(err error, code HRESULT) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}
