package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/sensorlink/internal/demux"
	"github.com/banshee-data/sensorlink/internal/monitoring"
	"github.com/banshee-data/sensorlink/internal/source"
	"github.com/banshee-data/sensorlink/internal/timeutil"
	"github.com/banshee-data/sensorlink/internal/units"
)

// Defaults applied to zero Config fields.
const (
	DefaultDuration       = 10 * time.Second
	DefaultReadTimeout    = time.Second
	DefaultChunkSize      = 4096
	DefaultReportInterval = time.Second
)

// Config bounds a collection session.
type Config struct {
	// Duration is the target wall-clock length of the session.
	Duration time.Duration
	// ReadTimeout bounds each blocking read so the loop can observe the
	// deadline and cancellation.
	ReadTimeout time.Duration
	// ChunkSize is the read buffer size.
	ChunkSize int
	// ReportInterval is how often throughput is logged.
	ReportInterval time.Duration
}

// DefaultConfig returns the standard session bounds.
func DefaultConfig() Config {
	return Config{
		Duration:       DefaultDuration,
		ReadTimeout:    DefaultReadTimeout,
		ChunkSize:      DefaultChunkSize,
		ReportInterval: DefaultReportInterval,
	}
}

func (c Config) withDefaults() Config {
	if c.Duration <= 0 {
		c.Duration = DefaultDuration
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.ReportInterval <= 0 {
		c.ReportInterval = DefaultReportInterval
	}
	return c
}

// Opener establishes the byte source for a session. The driver closes what
// it opens.
type Opener func(ctx context.Context) (source.Source, error)

// Option configures a Driver.
type Option func(*Driver)

// WithClock replaces the wall clock, for tests.
func WithClock(c timeutil.Clock) Option {
	return func(d *Driver) { d.clock = c }
}

// WithSourceName labels the session with a description of its source.
func WithSourceName(name string) Option {
	return func(d *Driver) { d.sourceName = name }
}

// Driver runs collection sessions against one source and record format.
type Driver struct {
	cfg        Config
	open       Opener
	format     demux.Format
	clock      timeutil.Clock
	sourceName string
}

// New returns a Driver. Zero Config fields take their defaults.
func New(cfg Config, open Opener, format demux.Format, opts ...Option) *Driver {
	d := &Driver{
		cfg:    cfg.withDefaults(),
		open:   open,
		format: format,
		clock:  timeutil.RealClock{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Config returns the effective session bounds.
func (d *Driver) Config() Config {
	return d.cfg
}

// Run opens the source and collects until the target duration elapses, the
// source reports end of stream, ctx is cancelled, or a transport error
// occurs. The returned Session is never nil: a failed connection yields an
// empty session and a failed read a truncated one that keeps every sample
// decoded so far. The error is non-nil only for connection and transport
// failures.
func (d *Driver) Run(ctx context.Context) (*Session, error) {
	sess := &Session{
		ID:     uuid.New().String(),
		Source: d.sourceName,
		Format: d.format,
		Target: d.cfg.Duration,
	}
	// Reset once the source is open; a failed connect keeps the attempt time.
	sess.Started = d.clock.Now()

	dm, err := demux.New(d.format)
	if err != nil {
		sess.EndReason = EndConnectFailed
		sess.Err = err
		return sess, fmt.Errorf("session %s: %w", sess.ID, err)
	}

	monitoring.Opsf("session %s: opening %s, format %s, duration %s", sess.ID, d.describeSource(), d.format, d.cfg.Duration)
	src, err := d.open(ctx)
	if err != nil {
		sess.EndReason = EndConnectFailed
		sess.Err = err
		monitoring.Opsf("session %s: connect failed: %v", sess.ID, err)
		return sess, fmt.Errorf("session %s: connect: %w", sess.ID, err)
	}
	defer func() {
		if cerr := src.Close(); cerr != nil {
			monitoring.Diagf("session %s: close source: %v", sess.ID, cerr)
		}
	}()

	if err := src.SetReadTimeout(d.cfg.ReadTimeout); err != nil {
		monitoring.Opsf("session %s: warning: failed to set read timeout %s: %v", sess.ID, d.cfg.ReadTimeout, err)
	}

	start := d.clock.Now()
	sess.Started = start
	d.collect(ctx, sess, src, dm, start)

	sess.Duration = d.clock.Since(start)
	sess.Audio = dm.Audio()
	sess.IMU = dm.IMU()
	sess.Stats = dm.Stats()

	monitoring.Opsf("%s", sess.Summary())
	monitoring.Diagf("session %s: demux %s, %d bytes left buffered", sess.ID, sess.Stats, dm.Buffered())

	if sess.Err != nil {
		return sess, fmt.Errorf("session %s: read: %w", sess.ID, sess.Err)
	}
	return sess, nil
}

// collect is the read loop. It sets sess.EndReason and, on a transport
// failure, sess.Err.
func (d *Driver) collect(ctx context.Context, sess *Session, src source.Source, dm *demux.Demultiplexer, start time.Time) {
	buf := make([]byte, d.cfg.ChunkSize)
	lastReport := start

	for {
		if ctx.Err() != nil {
			sess.EndReason = EndCancelled
			monitoring.Opsf("session %s: stopping due to context cancellation", sess.ID)
			return
		}

		now := d.clock.Now()
		elapsed := now.Sub(start)
		if elapsed >= d.cfg.Duration {
			sess.EndReason = EndDuration
			return
		}
		if now.Sub(lastReport) >= d.cfg.ReportInterval {
			monitoring.Diagf("session %s: receiving %.1fs / %s, %s, %.2f KB/s",
				sess.ID, elapsed.Seconds(), d.cfg.Duration,
				units.FormatBytes(sess.BytesReceived),
				units.KBPerSecond(sess.BytesReceived, elapsed.Seconds()))
			lastReport = now
		}

		n, err := src.Read(buf)
		if n > 0 {
			dm.Feed(buf[:n])
			sess.BytesReceived += int64(n)
			sess.Chunks++
		}

		switch {
		case err == nil:
			if n == 0 {
				sess.Timeouts++
			}
		case source.IsTimeout(err):
			sess.Timeouts++
		case errors.Is(err, io.EOF):
			sess.EndReason = EndEOF
			monitoring.Opsf("session %s: source closed the stream", sess.ID)
			return
		case ctx.Err() != nil:
			sess.EndReason = EndCancelled
			monitoring.Opsf("session %s: stopping due to context cancellation", sess.ID)
			return
		default:
			sess.EndReason = EndTransportError
			sess.Err = err
			monitoring.Opsf("session %s: transport error: %v", sess.ID, err)
			return
		}
	}
}

func (d *Driver) describeSource() string {
	if d.sourceName == "" {
		return "source"
	}
	return d.sourceName
}
