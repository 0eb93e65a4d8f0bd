package callback

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/nrfconnect/auto-pts/internal/ptscontrol"
)

// MaxMessageSize is the maximum allowed frame payload (1 MiB).
const MaxMessageSize = 1 << 20

// Request methods.
const (
	MethodLog          = "log"
	MethodImplicitSend = "implicit_send"
)

// LogParams carries one engine log event.
type LogParams struct {
	Type    int    `json:"type"`
	Label   string `json:"label"`
	Time    string `json:"time"`
	Message string `json:"message"`
}

// Request is sent from the bridge to the remote receiver. Exactly one of
// Log and ImplicitSend is set, matching Method.
type Request struct {
	Seq          uint64                          `json:"seq"`
	Method       string                          `json:"method"`
	Log          *LogParams                      `json:"log,omitempty"`
	ImplicitSend *ptscontrol.ImplicitSendRequest `json:"implicit_send,omitempty"`
}

// Response answers the Request with the same Seq. A non-empty Error means the
// remote receiver failed.
type Response struct {
	Seq    uint64 `json:"seq"`
	Answer string `json:"answer,omitempty"`
	Error  string `json:"error,omitempty"`
}

// WriteMessage writes a length-prefixed JSON message to w.
func WriteMessage(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if len(data) > MaxMessageSize {
		return fmt.Errorf("message size %d exceeds maximum %d", len(data), MaxMessageSize)
	}

	// Single write so a frame is never interleaved with another writer's.
	frame := make([]byte, 4+len(data))
	binary.BigEndian.PutUint32(frame, uint32(len(data)))
	copy(frame[4:], data)
	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// ReadMessage reads a length-prefixed JSON message from r and decodes it into v.
func ReadMessage(r io.Reader, v any) error {
	var length uint32
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return fmt.Errorf("read length prefix: %w", err)
	}

	if length > MaxMessageSize {
		return fmt.Errorf("message size %d exceeds maximum %d", length, MaxMessageSize)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return fmt.Errorf("read payload: %w", err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal message: %w", err)
	}

	return nil
}
