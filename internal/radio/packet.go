// internal/radio/packet.go
package radio

import "github.com/tamzrod/ecomanager-rx/internal/frame"

// On-air framing around every outbound payload.
var (
	header = []byte{
		0x55,       // preamble
		0x2D, 0xD4, // sync word
	}
	tail = []byte{0x40, 0x00}
)

// Assemble wraps payload for transmission:
// preamble, sync word, payload, optional checksum, tail.
func Assemble(payload []byte, checksum bool) []byte {
	n := len(header) + len(payload) + len(tail)
	if checksum {
		n++
	}

	out := make([]byte, 0, n)
	out = append(out, header...)
	out = append(out, payload...)
	if checksum {
		out = append(out, frame.ModularSum(payload))
	}
	out = append(out, tail...)
	return out
}
