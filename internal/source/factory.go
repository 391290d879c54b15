package source

import (
	"context"
	"fmt"
	"time"
)

// Config selects and parameterises a transport.
type Config struct {
	Transport string

	// Address is host:port for TransportTCP.
	Address        string
	ConnectTimeout time.Duration

	// SerialPath and Serial configure TransportSerial.
	SerialPath string
	Serial     PortOptions

	// PCAPFile and PCAPPort configure TransportPCAP.
	PCAPFile string
	PCAPPort int
}

// Open opens the transport described by cfg.
func Open(ctx context.Context, cfg Config) (Source, error) {
	switch cfg.Transport {
	case TransportTCP:
		if cfg.Address == "" {
			return nil, fmt.Errorf("tcp transport requires an address")
		}
		return DialTCP(ctx, cfg.Address, cfg.ConnectTimeout)
	case TransportSerial:
		if cfg.SerialPath == "" {
			return nil, fmt.Errorf("serial transport requires a port path")
		}
		return OpenSerial(cfg.SerialPath, cfg.Serial)
	case TransportPCAP:
		if cfg.PCAPFile == "" {
			return nil, fmt.Errorf("pcap transport requires a capture file")
		}
		return OpenPCAP(cfg.PCAPFile, cfg.PCAPPort)
	default:
		return nil, fmt.Errorf("unknown transport %q (expected %s, %s or %s)",
			cfg.Transport, TransportTCP, TransportSerial, TransportPCAP)
	}
}

// Describe renders the transport endpoint for logs.
func (c Config) Describe() string {
	switch c.Transport {
	case TransportTCP:
		return "tcp://" + c.Address
	case TransportSerial:
		return "serial://" + c.SerialPath
	case TransportPCAP:
		return fmt.Sprintf("pcap://%s?port=%d", c.PCAPFile, c.PCAPPort)
	default:
		return c.Transport
	}
}
