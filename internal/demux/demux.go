package demux

import (
	"bytes"
	"fmt"

	"github.com/banshee-data/sensorlink/internal/monitoring"
)

// Stats counts what a Demultiplexer has done with the bytes it was fed.
type Stats struct {
	BytesFed       int64 `json:"bytes_fed"`
	AudioSamples   int64 `json:"audio_samples"`
	AudioRecords   int64 `json:"audio_records"`
	IMURecords     int64 `json:"imu_records"`
	ResyncBytes    int64 `json:"resync_bytes"`
	DecodeErrors   int64 `json:"decode_errors"`
	DiscardedBytes int64 `json:"discarded_bytes"`
}

// Demultiplexer splits one byte stream into an audio sequence and an IMU
// sequence. It is not safe for concurrent use: a single caller feeds it and
// reads the sequences between feeds.
type Demultiplexer struct {
	format  Format
	imuSize int

	buf   []byte
	audio []int32
	imu   []IMUSample
	stats Stats
}

// New returns a Demultiplexer for the given record format.
func New(f Format) (*Demultiplexer, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	f.Marker = bytes.Clone(f.Marker)
	return &Demultiplexer{
		format:  f,
		imuSize: f.IMUPayloadSize(),
	}, nil
}

// Format returns the record format the Demultiplexer was built with.
func (d *Demultiplexer) Format() Format {
	return d.format
}

// Feed appends chunk to the backlog and decodes every complete record at its
// head. Bytes of an incomplete record stay buffered until a later Feed
// completes them. The caller may reuse chunk after Feed returns.
func (d *Demultiplexer) Feed(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	d.stats.BytesFed += int64(len(chunk))
	d.buf = append(d.buf, chunk...)

	off := 0
	for off < len(d.buf) {
		n := d.step(d.buf[off:])
		if n == 0 {
			break
		}
		off += n
	}

	// Drop the consumed prefix, keeping the backing array.
	d.buf = d.buf[:copy(d.buf, d.buf[off:])]
}

// step decodes at most one unit from the head of b and returns the number of
// bytes it consumed. Zero means more data is needed.
func (d *Demultiplexer) step(b []byte) int {
	if d.format.Framing == FramingMarker {
		return d.stepMarker(b)
	}
	return d.stepTyped(b)
}

func (d *Demultiplexer) stepTyped(b []byte) int {
	switch b[0] {
	case d.format.AudioID:
		size := 1 + d.format.AudioPayloadSize()
		if len(b) < size {
			return 0
		}
		d.audio = decodeAudio(d.audio, b[1:size], d.format.AudioWidth)
		d.stats.AudioRecords++
		d.stats.AudioSamples += int64(d.format.SamplesPerRecord)
		return size

	case d.format.IMUID:
		size := 1 + d.imuSize
		if len(b) < size {
			return 0
		}
		d.appendIMU(b[1:size])
		return size

	default:
		d.stats.ResyncBytes++
		if monitoring.TraceEnabled() {
			monitoring.Tracef("demux: skipping unknown kind byte 0x%02x", b[0])
		}
		return 1
	}
}

func (d *Demultiplexer) stepMarker(b []byte) int {
	marker := d.format.Marker
	width := d.format.AudioWidth

	pos := bytes.Index(b, marker)
	limit := pos
	if pos < 0 {
		// A marker may be split across chunks; never read its first bytes
		// as audio.
		limit = len(b) - markerPrefixAtEnd(b, marker)
	}

	if n := limit - limit%width; n > 0 {
		before := len(d.audio)
		d.audio = decodeAudio(d.audio, b[:n], width)
		d.stats.AudioSamples += int64(len(d.audio) - before)
		return n
	}
	if pos < 0 {
		return 0
	}

	end := pos + len(marker) + d.imuSize
	if len(b) < end {
		return 0
	}
	if pos > 0 {
		// Fewer than one audio stride sits between the last sample and the
		// marker.
		d.stats.DiscardedBytes += int64(pos)
		if monitoring.TraceEnabled() {
			monitoring.Tracef("demux: discarding %d bytes before IMU marker", pos)
		}
	}
	d.appendIMU(b[pos+len(marker) : end])
	return end
}

func (d *Demultiplexer) appendIMU(payload []byte) {
	s, err := decodeIMU(payload, d.format.IMUTimestamp)
	if err != nil {
		d.stats.DecodeErrors++
		monitoring.Opsf("demux: dropping IMU record: %v (payload %X)", err, payload)
		return
	}
	d.imu = append(d.imu, s)
	d.stats.IMURecords++
}

// markerPrefixAtEnd returns the length of the longest proper prefix of marker
// that ends b.
func markerPrefixAtEnd(b, marker []byte) int {
	k := len(marker) - 1
	if k > len(b) {
		k = len(b)
	}
	for ; k > 0; k-- {
		if bytes.Equal(b[len(b)-k:], marker[:k]) {
			return k
		}
	}
	return 0
}

// Audio returns the decoded audio samples in arrival order. The slice is a
// view that later Feeds may extend; callers must not modify it.
func (d *Demultiplexer) Audio() []int32 {
	return d.audio
}

// IMU returns the decoded IMU readings in arrival order. The slice is a view
// that later Feeds may extend; callers must not modify it.
func (d *Demultiplexer) IMU() []IMUSample {
	return d.imu
}

// Buffered returns the number of received bytes not yet decoded.
func (d *Demultiplexer) Buffered() int {
	return len(d.buf)
}

// Stats returns a snapshot of the demultiplexer counters.
func (d *Demultiplexer) Stats() Stats {
	return d.stats
}

// String summarises the decoded totals.
func (s Stats) String() string {
	return fmt.Sprintf("fed=%d audio=%d imu=%d resync=%d decode_errors=%d discarded=%d",
		s.BytesFed, s.AudioSamples, s.IMURecords, s.ResyncBytes, s.DecodeErrors, s.DiscardedBytes)
}
