// internal/frame/command.go
package frame

// CommandLen is the size of an outbound transceiver command payload.
const CommandLen = 11

// commandType is byte 0 of every command sent to a transceiver.
const commandType byte = 0x46

// commandTrailer closes the payload; the checksum, if any, follows it.
const commandTrailer byte = 0x4F

// Code is the two-byte command code at payload bytes 6,7.
type Code [2]byte

var (
	CodePoll = Code{0x50, 0x53} // "PS"
	CodeAck  = Code{0x41, 0x4B} // "AK"
	CodeOn   = Code{'O', 'N'}
	CodeOff  = Code{'O', 'F'}
)

func (c Code) String() string { return string(c[:]) }

// Command builds the payload addressed to transceiver id.
//
// Layout:
// 0     type (0x46)
// 1–4   id, big-endian
// 5     reserved (0)
// 6–7   code
// 8–9   zero
// 10    trailer (0x4F)
func Command(id uint32, code Code) [CommandLen]byte {
	var p [CommandLen]byte
	p[0] = commandType
	p[1] = byte(id >> 24)
	p[2] = byte(id >> 16)
	p[3] = byte(id >> 8)
	p[4] = byte(id)
	p[6] = code[0]
	p[7] = code[1]
	p[10] = commandTrailer
	return p
}

// ModularSum is the 8-bit wrapping sum of b.
func ModularSum(b []byte) byte {
	var sum byte
	for _, v := range b {
		sum += v
	}
	return sum
}
