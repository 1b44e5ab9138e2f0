// internal/mirror/modbus/client.go
package modbus

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goburrow/modbus"
)

// MaxWriteRegisters is the FC16 quantity limit.
const MaxWriteRegisters = 123

type Config struct {
	Endpoint string
	Timeout  time.Duration
}

// Client writes status blocks to a Modbus TCP server.
//
// The connection is opened by the first write and dropped after any
// failed one, so a server that restarts is picked up again on the next
// block write. Writes are serialized: the unit id lives on the handler.
type Client struct {
	mu      sync.Mutex
	handler *modbus.TCPClientHandler
	mb      modbus.Client
}

func New(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("mirror modbus: endpoint required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}

	h := modbus.NewTCPClientHandler(cfg.Endpoint)
	h.Timeout = cfg.Timeout
	h.IdleTimeout = time.Minute

	return &Client{handler: h, mb: modbus.NewClient(h)}, nil
}

// WriteRegisters stores regs at addr on unitID (FC16).
func (c *Client) WriteRegisters(unitID uint8, addr uint16, regs []uint16) error {
	n := len(regs)
	if n == 0 || n > MaxWriteRegisters {
		return fmt.Errorf("mirror modbus: %d registers, want 1..%d", n, MaxWriteRegisters)
	}

	payload := make([]byte, 2*n)
	for i, r := range regs {
		binary.BigEndian.PutUint16(payload[2*i:], r)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.handler.SlaveId = unitID
	if _, err := c.mb.WriteMultipleRegisters(addr, uint16(n), payload); err != nil {
		_ = c.handler.Close()
		return fmt.Errorf("mirror modbus: write %d@%d unit %d: %w", n, addr, unitID, err)
	}
	return nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handler.Close()
}
