package source

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/banshee-data/sensorlink/internal/monitoring"
)

// DefaultConnectTimeout bounds the initial TCP connection attempt.
const DefaultConnectTimeout = 5 * time.Second

// tcpSource adapts a net.Conn to Source by setting a read deadline before
// every Read.
type tcpSource struct {
	conn net.Conn

	mu          sync.Mutex
	readTimeout time.Duration
}

// DialTCP connects to the sensor's TCP server at addr.
func DialTCP(ctx context.Context, addr string, connectTimeout time.Duration) (Source, error) {
	if connectTimeout <= 0 {
		connectTimeout = DefaultConnectTimeout
	}

	monitoring.Opsf("connecting to %s (timeout %s)", addr, connectTimeout)
	d := net.Dialer{Timeout: connectTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	monitoring.Opsf("connected to %s", addr)

	return NewConnSource(conn), nil
}

// NewConnSource wraps an established connection.
func NewConnSource(conn net.Conn) Source {
	return &tcpSource{conn: conn}
}

func (s *tcpSource) Read(p []byte) (int, error) {
	s.mu.Lock()
	timeout := s.readTimeout
	s.mu.Unlock()

	if timeout > 0 {
		if err := s.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return 0, err
		}
	}
	return s.conn.Read(p)
}

func (s *tcpSource) SetReadTimeout(timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readTimeout = timeout
	return nil
}

func (s *tcpSource) Close() error {
	return s.conn.Close()
}
