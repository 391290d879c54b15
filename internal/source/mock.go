package source

import (
	"errors"
	"io"
	"sync"
	"time"
)

// ErrPortClosed is returned by TestablePort after Close.
var ErrPortClosed = errors.New("port closed")

// Step is one scripted outcome of a TestablePort read.
type Step struct {
	// Data is returned by the read when Err is nil and Timeout is false.
	Data []byte
	// Timeout makes the read return (0, nil) as go.bug.st/serial does.
	Timeout bool
	// Err is returned by the read.
	Err error
}

// TestablePort implements Source with scripted reads for testing.
// Each Read consumes one Step; a Step whose Data is larger than the read
// buffer is split across reads. When the script runs out Read returns io.EOF.
type TestablePort struct {
	mu sync.Mutex

	steps []Step

	// OnRead is called before every Read, outside the lock. Tests use it to
	// advance a mock clock.
	OnRead func()

	// ReadCalls records the number of Read calls.
	ReadCalls int

	// ReadTimeout is the most recent timeout passed to SetReadTimeout.
	ReadTimeout time.Duration

	// Closed indicates whether Close was called.
	Closed bool

	// CloseError is returned by Close if set.
	CloseError error
}

// NewTestablePort creates a TestablePort that plays back steps in order.
func NewTestablePort(steps ...Step) *TestablePort {
	return &TestablePort{steps: steps}
}

// Chunks returns one data Step per chunk.
func Chunks(chunks ...[]byte) []Step {
	steps := make([]Step, 0, len(chunks))
	for _, c := range chunks {
		steps = append(steps, Step{Data: c})
	}
	return steps
}

// Read plays back the next scripted step.
func (t *TestablePort) Read(p []byte) (int, error) {
	t.mu.Lock()
	hook := t.OnRead
	t.mu.Unlock()
	if hook != nil {
		hook()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.ReadCalls++
	if t.Closed {
		return 0, ErrPortClosed
	}
	if len(t.steps) == 0 {
		return 0, io.EOF
	}

	step := &t.steps[0]
	switch {
	case step.Err != nil:
		err := step.Err
		t.steps = t.steps[1:]
		return 0, err
	case step.Timeout:
		t.steps = t.steps[1:]
		return 0, nil
	}

	n := copy(p, step.Data)
	step.Data = step.Data[n:]
	if len(step.Data) == 0 {
		t.steps = t.steps[1:]
	}
	return n, nil
}

// Append adds steps to the end of the script.
func (t *TestablePort) Append(steps ...Step) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.steps = append(t.steps, steps...)
}

// Remaining returns the number of unplayed steps.
func (t *TestablePort) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.steps)
}

// SetReadTimeout implements Source.
func (t *TestablePort) SetReadTimeout(timeout time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ReadTimeout = timeout
	return nil
}

// Close marks the port as closed.
func (t *TestablePort) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Closed = true
	return t.CloseError
}

// IsClosed reports whether Close was called.
func (t *TestablePort) IsClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.Closed
}
