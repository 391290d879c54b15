// Package session runs one bounded collection session: it opens a byte
// source, feeds every chunk it reads into a demultiplexer until the target
// duration elapses or the stream ends, and returns the collected sequences
// together with the elapsed time actually spent collecting.
package session

import (
	"fmt"
	"time"

	"github.com/banshee-data/sensorlink/internal/demux"
	"github.com/banshee-data/sensorlink/internal/units"
)

// EndReason records why a session's read loop stopped.
type EndReason string

const (
	EndDuration       EndReason = "duration"
	EndEOF            EndReason = "eof"
	EndCancelled      EndReason = "cancelled"
	EndTransportError EndReason = "transport-error"
	EndConnectFailed  EndReason = "connect-failed"
)

// Session is the result of one collection run.
type Session struct {
	ID        string
	Source    string
	Format    demux.Format
	Started   time.Time
	Target    time.Duration
	Duration  time.Duration
	EndReason EndReason
	// Err is the transport error that ended the session, if any.
	Err error

	BytesReceived int64
	Chunks        int
	Timeouts      int

	Audio []int32
	IMU   []demux.IMUSample
	Stats demux.Stats
}

// AudioRate is the measured audio sample rate in Hz over the actual elapsed
// duration, or 0 when nothing was timed.
func (s *Session) AudioRate() float64 {
	return rate(len(s.Audio), s.Duration)
}

// IMURate is the measured IMU record rate in Hz.
func (s *Session) IMURate() float64 {
	return rate(len(s.IMU), s.Duration)
}

// Throughput is the average byte rate in KB/s.
func (s *Session) Throughput() float64 {
	return units.KBPerSecond(s.BytesReceived, s.Duration.Seconds())
}

// Empty reports whether the session collected no samples of either kind.
func (s *Session) Empty() bool {
	return len(s.Audio) == 0 && len(s.IMU) == 0
}

func rate(n int, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(n) / d.Seconds()
}

// Summary renders the end-of-session report.
func (s *Session) Summary() string {
	out := fmt.Sprintf("session %s ended (%s) after %.2fs of %s: bytes=%s audio=%d imu=%d",
		s.ID, s.EndReason, s.Duration.Seconds(), s.Target,
		units.FormatBytes(s.BytesReceived), len(s.Audio), len(s.IMU))
	if s.Duration > 0 {
		out += fmt.Sprintf(" audio_rate=%.2fHz imu_rate=%.2fHz data_rate=%.2fKB/s",
			s.AudioRate(), s.IMURate(), s.Throughput())
	}
	return out
}
