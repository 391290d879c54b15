package demux

import (
	"bytes"
	"errors"
	"fmt"
)

// ErrInvalidFormat is returned by Format.Validate and New for descriptors the
// scanner cannot work with.
var ErrInvalidFormat = errors.New("invalid record format")

// Framing selects how record boundaries are recognised in the byte stream.
type Framing int

const (
	// FramingTyped introduces every record with a one-byte kind identifier.
	FramingTyped Framing = iota
	// FramingMarker introduces IMU records with a multi-byte marker; every
	// other byte belongs to the audio stream, consumed at a fixed stride.
	FramingMarker
)

func (f Framing) String() string {
	switch f {
	case FramingTyped:
		return "typed"
	case FramingMarker:
		return "marker"
	default:
		return fmt.Sprintf("Framing(%d)", int(f))
	}
}

// ParseFraming maps a configuration string onto a Framing.
func ParseFraming(s string) (Framing, error) {
	switch s {
	case "typed", "":
		return FramingTyped, nil
	case "marker":
		return FramingMarker, nil
	default:
		return 0, fmt.Errorf("%w: unknown framing %q (expected typed or marker)", ErrInvalidFormat, s)
	}
}

// Wire constants used by the firmware revisions.
const (
	DefaultAudioID          byte = 0x01
	DefaultIMUID            byte = 0x02
	DefaultSamplesPerRecord      = 512

	imuFloatFields = 6
	floatSize      = 4
	timestampSize  = 4
)

// DefaultMarker introduces an IMU record in the marker-delimited framing.
var DefaultMarker = []byte{0xFF, 0xFE, 0xFD, 0xFC}

// Format describes the record layout of one firmware revision. It is
// configuration, not state: a Demultiplexer copies it on construction.
type Format struct {
	Framing Framing

	// AudioID and IMUID are the kind bytes for FramingTyped.
	AudioID byte
	IMUID   byte

	// AudioWidth is the size of one signed little-endian audio sample: 2 or 4.
	AudioWidth int

	// SamplesPerRecord is the number of audio samples carried by one typed
	// audio record. Unused for FramingMarker.
	SamplesPerRecord int

	// IMUTimestamp selects the 7-field IMU payload (six float32 followed by a
	// uint32 device timestamp) instead of the 6-field one.
	IMUTimestamp bool

	// Marker introduces IMU records for FramingMarker.
	Marker []byte
}

// TypedFormat returns the typed-identifier layout: 0x01 + samplesPerRecord
// int16 audio samples, 0x02 + six float32 and a uint32 timestamp.
func TypedFormat(samplesPerRecord int) Format {
	return Format{
		Framing:          FramingTyped,
		AudioID:          DefaultAudioID,
		IMUID:            DefaultIMUID,
		AudioWidth:       2,
		SamplesPerRecord: samplesPerRecord,
		IMUTimestamp:     true,
	}
}

// MarkerFormat returns the marker-delimited layout: audioWidth-byte audio
// samples interrupted by FF FE FD FC and six float32 IMU values.
func MarkerFormat(audioWidth int) Format {
	return Format{
		Framing:    FramingMarker,
		AudioWidth: audioWidth,
		Marker:     bytes.Clone(DefaultMarker),
	}
}

// Validate checks that the descriptor is usable.
func (f Format) Validate() error {
	if f.AudioWidth != 2 && f.AudioWidth != 4 {
		return fmt.Errorf("%w: audio width must be 2 or 4 bytes, got %d", ErrInvalidFormat, f.AudioWidth)
	}
	switch f.Framing {
	case FramingTyped:
		if f.SamplesPerRecord <= 0 {
			return fmt.Errorf("%w: samples per record must be positive, got %d", ErrInvalidFormat, f.SamplesPerRecord)
		}
		if f.AudioID == f.IMUID {
			return fmt.Errorf("%w: audio and IMU identifiers are both 0x%02x", ErrInvalidFormat, f.AudioID)
		}
	case FramingMarker:
		if len(f.Marker) == 0 {
			return fmt.Errorf("%w: marker framing requires a non-empty marker", ErrInvalidFormat)
		}
	default:
		return fmt.Errorf("%w: unknown framing %d", ErrInvalidFormat, int(f.Framing))
	}
	return nil
}

// AudioPayloadSize is the payload length of one typed audio record.
func (f Format) AudioPayloadSize() int {
	return f.SamplesPerRecord * f.AudioWidth
}

// IMUPayloadSize is the payload length of one IMU record: 24 bytes, or 28 with
// the timestamp.
func (f Format) IMUPayloadSize() int {
	n := imuFloatFields * floatSize
	if f.IMUTimestamp {
		n += timestampSize
	}
	return n
}

// String renders the descriptor for startup logs.
func (f Format) String() string {
	switch f.Framing {
	case FramingTyped:
		return fmt.Sprintf("typed(audio=0x%02x x%d int%d, imu=0x%02x %dB)",
			f.AudioID, f.SamplesPerRecord, f.AudioWidth*8, f.IMUID, f.IMUPayloadSize())
	case FramingMarker:
		return fmt.Sprintf("marker(%X, audio int%d, imu %dB)", f.Marker, f.AudioWidth*8, f.IMUPayloadSize())
	default:
		return f.Framing.String()
	}
}
