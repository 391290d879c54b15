// Package source provides the byte sources a collection session reads from:
// a serial port, a TCP connection to the sensor, or a packet capture replay.
//
// Every source is a blocking reader with a bounded per-read timeout. A read
// that times out is not an error to the caller; IsTimeout recognises the
// various ways the underlying transports report it.
package source

import (
	"errors"
	"io"
	"net"
	"os"
	"time"
)

// Source is the minimal interface a session reads chunks from.
// This abstraction enables driver tests without real hardware.
type Source interface {
	io.ReadCloser
	// SetReadTimeout bounds how long a single Read may block. A Read that
	// times out returns either (0, nil) or an error for which IsTimeout
	// reports true.
	SetReadTimeout(timeout time.Duration) error
}

// ErrTimeout is returned by sources that report read timeouts as errors.
var ErrTimeout = errors.New("read timeout")

// IsTimeout reports whether err is a read timeout rather than a failure.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// Transport names accepted by Open.
const (
	TransportTCP    = "tcp"
	TransportSerial = "serial"
	TransportPCAP   = "pcap"
)
