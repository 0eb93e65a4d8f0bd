package ptscontrol

import (
	"fmt"
	"strings"
)

// FormatBDAddr renders the engine's 64-bit Bluetooth address as
// colon-separated octets. The engine reports the address without its
// leading zero octet, so "00" is always prepended.
func FormatBDAddr(addr uint64) string {
	digits := fmt.Sprintf("%X", addr)
	if len(digits)%2 != 0 {
		digits = "0" + digits
	}

	var b strings.Builder
	b.WriteString("00")
	for i := 0; i < len(digits); i += 2 {
		b.WriteByte(':')
		b.WriteString(digits[i : i+2])
	}
	return b.String()
}
