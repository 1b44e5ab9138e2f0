// internal/frame/frame.go
package frame

import (
	"errors"

	"golang.org/x/xerrors"

	"github.com/tamzrod/ecomanager-rx/internal/clock"
)

// ---- WIRE CONSTANTS ----

// TransceiverMarker is the first byte of every transceiver reply.
const TransceiverMarker byte = 0x52

const (
	// TransmitOnlyLen is the Manchester-encoded length of a TX frame.
	TransmitOnlyLen = 16
	// TransceiverLen is the length of a TRX reply, checksum included.
	TransceiverLen = 12

	// MaxLen is the capacity of Frame.Raw.
	MaxLen = TransmitOnlyLen
)

// NumChannels is the number of wattage channels a frame can carry.
const NumChannels = 3

// Invalid marks an absent wattage channel.
const Invalid uint16 = 0xFFFF

// pairing marker carried in bytes 6,7 of a transceiver pairing request ("CO").
const (
	trxPairHi byte = 0x43
	trxPairLo byte = 0x4F
)

// trxStateOn is byte 10 of a transceiver reply when its relay is on.
const trxStateOn byte = 0x53

// ---- ERRORS ----

var (
	ErrLength     = errors.New("frame: bad length")
	ErrManchester = errors.New("frame: illegal manchester bit pair")
	ErrChecksum   = errors.New("frame: checksum mismatch")
)

// ---- TYPES ----

// Kind tags which of the two frame shapes a Frame holds.
type Kind uint8

const (
	TransmitOnly Kind = iota
	Transceiver
)

func (k Kind) String() string {
	switch k {
	case TransmitOnly:
		return "tx"
	case Transceiver:
		return "trx"
	default:
		return "unknown"
	}
}

// KindOf classifies a frame from its first byte.
func KindOf(first byte) Kind {
	if first == TransceiverMarker {
		return Transceiver
	}
	return TransmitOnly
}

// ExpectedLen is the number of raw bytes a frame of kind k occupies on air.
func ExpectedLen(k Kind) int {
	if k == Transceiver {
		return TransceiverLen
	}
	return TransmitOnlyLen
}

// Health is the post-processing verdict of a frame.
type Health uint8

const (
	Unchecked Health = iota
	OK
	Bad
)

func (h Health) String() string {
	switch h {
	case Unchecked:
		return "unchecked"
	case OK:
		return "ok"
	default:
		return "bad"
	}
}

// Frame is one received unit of radio data.
// ID, Watts, Pairing and State are meaningful only when Health == OK.
type Frame struct {
	Kind     Kind
	Raw      [MaxLen]byte
	Len      int
	Health   Health
	Timecode clock.Millis

	ID      uint32
	Watts   [NumChannels]uint16
	Pairing bool
	State   bool // transceiver relay state

	// Err records why Health is Bad.
	Err error
}

// Bytes returns the logical contents of Raw.
// After a TX frame is processed this is the Manchester-decoded payload.
func (f *Frame) Bytes() []byte { return f.Raw[:f.Len] }

// Decode builds a frame from raw and post-processes it.
// The result is always usable as a value; check Health before reading fields.
func Decode(raw []byte, timecode clock.Millis) Frame {
	f := Frame{Timecode: timecode}

	if len(raw) == 0 {
		f.fail(xerrors.Errorf("frame: empty buffer: %w", ErrLength))
		return f
	}

	f.Kind = KindOf(raw[0])
	if want := ExpectedLen(f.Kind); len(raw) != want {
		f.fail(xerrors.Errorf("frame: %s frame has %d bytes, want %d: %w", f.Kind, len(raw), want, ErrLength))
		return f
	}

	f.Len = copy(f.Raw[:], raw)
	f.Process()
	return f
}

// Process validates the raw bytes and extracts fields.
// Calling it again on a processed frame changes nothing.
func (f *Frame) Process() {
	if f.Health != Unchecked {
		return
	}

	if f.Len != ExpectedLen(f.Kind) {
		f.fail(xerrors.Errorf("frame: %s frame has %d bytes: %w", f.Kind, f.Len, ErrLength))
		return
	}

	switch f.Kind {
	case TransmitOnly:
		f.processTransmitOnly()
	case Transceiver:
		f.processTransceiver()
	default:
		f.fail(xerrors.Errorf("frame: unknown kind %d: %w", f.Kind, ErrLength))
	}
}

func (f *Frame) fail(err error) {
	f.Health = Bad
	f.Err = err
	f.ID = 0
	f.Pairing = false
	f.State = false
	for c := range f.Watts {
		f.Watts[c] = Invalid
	}
}

// ---- TRANSMIT-ONLY ----

func (f *Frame) processTransmitOnly() {
	dec, err := ManchesterDecode(f.Raw[:f.Len])

	// Keep the (possibly partial) decoded bytes for diagnostics.
	f.Len = copy(f.Raw[:], dec)
	for i := f.Len; i < len(f.Raw); i++ {
		f.Raw[i] = 0
	}

	if err != nil {
		f.fail(err)
		return
	}

	b := f.Raw[:f.Len]

	f.ID = uint32(b[0]&0x0F)<<8 | uint32(b[1])
	f.Pairing = b[0]&0x80 != 0

	for c := 0; c < NumChannels; c++ {
		hi := b[2+2*c]
		lo := b[3+2*c]
		if hi&0x80 == 0 {
			f.Watts[c] = Invalid
			continue
		}
		f.Watts[c] = uint16(hi&0x7F)<<8 | uint16(lo)
	}

	f.Health = OK
}

// ---- TRANSCEIVER ----

func (f *Frame) processTransceiver() {
	b := f.Raw[:f.Len]
	last := len(b) - 1

	got := b[last]
	want := ModularSum(b[:last])
	if got != want {
		f.fail(xerrors.Errorf("frame: trx checksum got=0x%02x want=0x%02x: %w", got, want, ErrChecksum))
		return
	}

	f.ID = uint32(b[1])<<24 | uint32(b[2])<<16 | uint32(b[3])<<8 | uint32(b[4])
	f.Pairing = b[6] == trxPairHi && b[7] == trxPairLo
	f.State = b[10] == trxStateOn

	f.Watts[0] = uint16(b[8])<<8 | uint16(b[9])
	f.Watts[1] = Invalid
	f.Watts[2] = Invalid

	f.Health = OK
}
