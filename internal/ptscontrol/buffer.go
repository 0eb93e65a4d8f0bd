package ptscontrol

import (
	"fmt"
	"unicode/utf16"
)

// writeResponse copies answer into buf as NUL-terminated UTF-16, using at
// most capacity code units. buf is left untouched when the answer does not
// fit.
func writeResponse(buf []uint16, capacity uint32, answer string) error {
	if uint64(capacity) > uint64(len(buf)) {
		return fmt.Errorf("%w: declared capacity %d exceeds buffer length %d",
			ErrProtocolViolation, capacity, len(buf))
	}

	encoded := utf16.Encode([]rune(answer))
	if need := len(encoded) + 1; uint64(need) > uint64(capacity) {
		return fmt.Errorf("%w: answer needs %d units, capacity is %d",
			ErrBufferTooSmall, need, capacity)
	}

	copy(buf, encoded)
	buf[len(encoded)] = 0
	return nil
}

// readResponse decodes the NUL-terminated contents of buf.
func readResponse(buf []uint16) string {
	n := 0
	for n < len(buf) && buf[n] != 0 {
		n++
	}
	return string(utf16.Decode(buf[:n]))
}
