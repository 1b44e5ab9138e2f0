// internal/mirror/ingest/client.go
package ingest

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"time"
)

// Raw Ingest v1 request layout, big-endian:
//
//	0-1  "RI"
//	2    version (1)
//	3    area
//	4-5  unit id
//	6-7  address
//	8-9  count
//	10+  registers
//
// The server answers with a single status byte and closes.
const (
	Version    byte = 1
	headerSize      = 10
)

// Area selects the server memory a packet targets.
type Area byte

const (
	AreaCoils            Area = 1
	AreaDiscreteInputs   Area = 2
	AreaHoldingRegisters Area = 3
	AreaInputRegisters   Area = 4
)

// Status is the server's one-byte answer.
type Status byte

const (
	StatusOK       Status = 0x00
	StatusRejected Status = 0x01
)

func (s Status) Err() error {
	switch s {
	case StatusOK:
		return nil
	case StatusRejected:
		return errors.New("ingest: rejected by server")
	}
	return fmt.Errorf("ingest: unknown status 0x%02x", byte(s))
}

// Packet is one register write.
type Packet struct {
	Area   Area
	UnitID uint8
	Addr   uint16
	Regs   []uint16
}

func (p Packet) MarshalBinary() ([]byte, error) {
	if len(p.Regs) == 0 || len(p.Regs) > 0xFFFF {
		return nil, fmt.Errorf("ingest: %d registers", len(p.Regs))
	}

	b := make([]byte, headerSize+2*len(p.Regs))
	b[0], b[1], b[2], b[3] = 'R', 'I', Version, byte(p.Area)
	binary.BigEndian.PutUint16(b[4:], uint16(p.UnitID))
	binary.BigEndian.PutUint16(b[6:], p.Addr)
	binary.BigEndian.PutUint16(b[8:], uint16(len(p.Regs)))
	for i, r := range p.Regs {
		binary.BigEndian.PutUint16(b[headerSize+2*i:], r)
	}
	return b, nil
}

type Config struct {
	Endpoint string
	Timeout  time.Duration
}

// Client sends each block write as its own connection.
type Client struct {
	endpoint string
	timeout  time.Duration
}

func New(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("ingest: endpoint required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	return &Client{endpoint: cfg.Endpoint, timeout: cfg.Timeout}, nil
}

// WriteRegisters writes regs into the holding-register area.
func (c *Client) WriteRegisters(unitID uint8, addr uint16, regs []uint16) error {
	pkt, err := Packet{Area: AreaHoldingRegisters, UnitID: unitID, Addr: addr, Regs: regs}.MarshalBinary()
	if err != nil {
		return err
	}
	st, err := c.exchange(pkt)
	if err != nil {
		return fmt.Errorf("ingest %s: %w", c.endpoint, err)
	}
	return st.Err()
}

func (c *Client) exchange(pkt []byte) (Status, error) {
	conn, err := net.DialTimeout("tcp", c.endpoint, c.timeout)
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}
	// net.Conn.Write returns an error on any short write
	if _, err := conn.Write(pkt); err != nil {
		return 0, err
	}

	var resp [1]byte
	if _, err := io.ReadFull(conn, resp[:]); err != nil {
		return 0, err
	}
	return Status(resp[0]), nil
}

// Close is a no-op; connections are per write.
func (c *Client) Close() error { return nil }
