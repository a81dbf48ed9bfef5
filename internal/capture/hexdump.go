package capture

import (
	"fmt"
	"strings"

	"github.com/tturner/etherip/internal/enip"
)

// HexDump renders data as offset, hex and ASCII columns.
func HexDump(data []byte, width int) string {
	if width <= 0 {
		width = 16
	}
	var sb strings.Builder
	for i := 0; i < len(data); i += width {
		fmt.Fprintf(&sb, "%04x: ", i)
		for j := 0; j < width; j++ {
			if i+j < len(data) {
				fmt.Fprintf(&sb, "%02x ", data[i+j])
			} else {
				sb.WriteString("   ")
			}
		}
		sb.WriteString(" |")
		for j := 0; j < width && i+j < len(data); j++ {
			if b := data[i+j]; b >= 32 && b < 127 {
				sb.WriteByte(b)
			} else {
				sb.WriteByte('.')
			}
		}
		sb.WriteString("|\n")
	}
	return sb.String()
}

// FrameHex dumps the encapsulation header and payload separately.
func FrameHex(raw []byte) string {
	if len(raw) < enip.HeaderSize {
		return HexDump(raw, 16)
	}
	out := "header:\n" + HexDump(raw[:enip.HeaderSize], 16)
	if len(raw) > enip.HeaderSize {
		out += "data:\n" + HexDump(raw[enip.HeaderSize:], 16)
	}
	return out
}
