// internal/mirror/builder.go
package mirror

import (
	"fmt"
	"time"

	"github.com/tamzrod/ecomanager-rx/internal/mirror/ingest"
	mmodbus "github.com/tamzrod/ecomanager-rx/internal/mirror/modbus"
)

const (
	TransportModbus = "modbus"
	TransportIngest = "ingest"
)

// NewClient builds the endpoint client for transport.
func NewClient(transport, endpoint string, timeout time.Duration) (Client, error) {
	switch transport {
	case TransportModbus, "":
		c, err := mmodbus.New(mmodbus.Config{Endpoint: endpoint, Timeout: timeout})
		if err != nil {
			return nil, fmt.Errorf("mirror: %w", err)
		}
		return c, nil
	case TransportIngest:
		c, err := ingest.New(ingest.Config{Endpoint: endpoint, Timeout: timeout})
		if err != nil {
			return nil, fmt.Errorf("mirror: %w", err)
		}
		return c, nil
	}
	return nil, fmt.Errorf("mirror: unknown transport %q", transport)
}
