package source

import (
	"fmt"

	"go.bug.st/serial"

	"github.com/banshee-data/sensorlink/internal/monitoring"
)

// serialOpen is replaced in tests.
var serialOpen = func(path string, mode *serial.Mode) (Source, error) {
	return serial.Open(path, mode)
}

// OpenSerial opens the serial port at path. go.bug.st/serial reports a read
// timeout as a zero-length read with a nil error.
func OpenSerial(path string, opts PortOptions) (Source, error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}

	port, err := serialOpen(path, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", path, err)
	}

	monitoring.Opsf("opened serial port %s at %d baud", path, mode.BaudRate)
	return port, nil
}
