// internal/radio/link.go
package radio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/goburrow/serial"

	"github.com/tamzrod/ecomanager-rx/internal/clock"
	"github.com/tamzrod/ecomanager-rx/internal/frame"
)

// AckGap separates the two copies of a pairing acknowledgment.
const AckGap = 50 * time.Millisecond

// Link is the byte pipe to the radio bridge.
// Reads feed a Receiver; writes carry assembled command packets.
type Link struct {
	port     io.ReadWriteCloser
	rx       *Receiver
	clock    clock.Clock
	checksum bool

	wmu sync.Mutex
}

// LinkConfig is the runtime config a Link needs.
type LinkConfig struct {
	// Checksum appends the modular sum to every outbound payload.
	Checksum bool
}

func NewLink(port io.ReadWriteCloser, rx *Receiver, c clock.Clock, cfg LinkConfig) (*Link, error) {
	if port == nil {
		return nil, errors.New("radio: port required")
	}
	if rx == nil {
		return nil, errors.New("radio: receiver required")
	}
	if c == nil {
		return nil, errors.New("radio: clock required")
	}
	return &Link{
		port:     port,
		rx:       rx,
		clock:    c,
		checksum: cfg.Checksum,
	}, nil
}

// Run reads from the port until ctx is done or the port fails.
// A read timeout in the middle of a frame abandons that frame.
func (l *Link) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = l.port.Close()
	}()

	buf := make([]byte, 64)
	for {
		n, err := l.port.Read(buf)
		for _, b := range buf[:n] {
			l.rx.AppendByte(b)
		}

		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			return nil
		}
		if isTimeout(err) {
			if l.rx.InProgress() {
				slog.Debug("radio: frame gap, dropping partial frame")
				l.rx.Abort()
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			return errors.New("radio: link closed by peer")
		}
		return fmt.Errorf("radio: read: %w", err)
	}
}

// Close closes the underlying port.
func (l *Link) Close() error { return l.port.Close() }

// SendPoll asks transceiver id for its latest reading.
func (l *Link) SendPoll(id uint32) error {
	return l.send(id, frame.CodePoll)
}

// SendAck completes pairing with transceiver id.
// The acknowledgment is sent twice, AckGap apart.
func (l *Link) SendAck(id uint32) error {
	if err := l.send(id, frame.CodeAck); err != nil {
		return err
	}
	l.clock.Sleep(AckGap)
	return l.send(id, frame.CodeAck)
}

// SendStateChange switches transceiver id on or off.
func (l *Link) SendStateChange(id uint32, on bool) error {
	code := frame.CodeOff
	if on {
		code = frame.CodeOn
	}
	return l.send(id, code)
}

func (l *Link) send(id uint32, code frame.Code) error {
	payload := frame.Command(id, code)
	pkt := Assemble(payload[:], l.checksum)

	l.wmu.Lock()
	defer l.wmu.Unlock()

	if err := writeAll(l.port, pkt); err != nil {
		return fmt.Errorf("radio: send %s to %d: %w", code, id, err)
	}
	slog.Debug("radio: command sent", "code", code.String(), "id", id)
	return nil
}

// ---- helpers ----

func writeAll(w io.Writer, b []byte) error {
	for len(b) > 0 {
		n, err := w.Write(b)
		if err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, serial.ErrTimeout) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
