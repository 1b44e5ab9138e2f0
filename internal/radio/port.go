// internal/radio/port.go
package radio

import (
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/goburrow/serial"
)

// SerialConfig describes a radio bridge on a serial line.
type SerialConfig struct {
	Address  string
	BaudRate int
	// Timeout bounds each read; it doubles as the inter-frame gap.
	Timeout time.Duration
}

// OpenSerial opens the bridge's serial port, 8N1.
func OpenSerial(cfg SerialConfig) (io.ReadWriteCloser, error) {
	if cfg.Address == "" {
		return nil, errors.New("radio serial: address required")
	}
	if cfg.BaudRate <= 0 {
		cfg.BaudRate = 38400
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 50 * time.Millisecond
	}

	p, err := serial.Open(&serial.Config{
		Address:  cfg.Address,
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		StopBits: 1,
		Parity:   "N",
		Timeout:  cfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("radio serial: open %s: %w", cfg.Address, err)
	}
	return p, nil
}

// TCPConfig describes a radio bridge reachable over TCP (e.g. ser2net).
type TCPConfig struct {
	Endpoint string
	Timeout  time.Duration
}

// DialTCP connects to a networked radio bridge.
// Every read is bounded by cfg.Timeout so frame gaps surface as timeouts.
func DialTCP(cfg TCPConfig) (io.ReadWriteCloser, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("radio tcp: endpoint required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 50 * time.Millisecond
	}

	conn, err := net.DialTimeout("tcp", cfg.Endpoint, 2*time.Second)
	if err != nil {
		return nil, fmt.Errorf("radio tcp: dial: %w", err)
	}
	return &deadlineConn{Conn: conn, timeout: cfg.Timeout}, nil
}

type deadlineConn struct {
	net.Conn
	timeout time.Duration
}

func (c *deadlineConn) Read(b []byte) (int, error) {
	_ = c.Conn.SetReadDeadline(time.Now().Add(c.timeout))
	return c.Conn.Read(b)
}

func (c *deadlineConn) Write(b []byte) (int, error) {
	_ = c.Conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	return c.Conn.Write(b)
}
