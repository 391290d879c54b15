// Package testutil provides shared test helpers: builders for the firmware
// wire formats and small assertion helpers.
//
// The builders are deliberately independent of the demux package so that
// tests encode the wire format from first principles rather than through the
// code under test.
package testutil

import (
	"encoding/binary"
	"math"
	"testing"
)

// Marker is the IMU introducer used by the marker-delimited firmware.
var Marker = []byte{0xFF, 0xFE, 0xFD, 0xFC}

// Float32s encodes values as little-endian float32.
func Float32s(values ...float32) []byte {
	out := make([]byte, 0, 4*len(values))
	for _, v := range values {
		out = binary.LittleEndian.AppendUint32(out, math.Float32bits(v))
	}
	return out
}

// Int16s encodes samples as little-endian int16.
func Int16s(samples ...int16) []byte {
	out := make([]byte, 0, 2*len(samples))
	for _, s := range samples {
		out = binary.LittleEndian.AppendUint16(out, uint16(s))
	}
	return out
}

// Int32s encodes samples as little-endian int32.
func Int32s(samples ...int32) []byte {
	out := make([]byte, 0, 4*len(samples))
	for _, s := range samples {
		out = binary.LittleEndian.AppendUint32(out, uint32(s))
	}
	return out
}

// TypedAudio builds a typed audio record: 0x01 followed by int16 samples.
func TypedAudio(samples ...int16) []byte {
	return append([]byte{0x01}, Int16s(samples...)...)
}

// TypedIMU builds a typed IMU record: 0x02, six float32 and a uint32
// timestamp.
func TypedIMU(fields [6]float32, timestamp uint32) []byte {
	out := append([]byte{0x02}, Float32s(fields[:]...)...)
	return binary.LittleEndian.AppendUint32(out, timestamp)
}

// MarkerIMU builds a marker-delimited IMU record: the marker followed by six
// float32.
func MarkerIMU(fields [6]float32) []byte {
	out := append([]byte{}, Marker...)
	return append(out, Float32s(fields[:]...)...)
}

// Concat joins byte slices into one stream.
func Concat(parts ...[]byte) []byte {
	var n int
	for _, p := range parts {
		n += len(p)
	}
	out := make([]byte, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// SplitAt cuts stream at the given ascending offsets. Offsets outside the
// stream are ignored.
func SplitAt(stream []byte, offsets ...int) [][]byte {
	var chunks [][]byte
	prev := 0
	for _, off := range offsets {
		if off <= prev || off >= len(stream) {
			continue
		}
		chunks = append(chunks, stream[prev:off])
		prev = off
	}
	return append(chunks, stream[prev:])
}

// EveryN cuts stream into chunks of n bytes; the last chunk may be shorter.
func EveryN(stream []byte, n int) [][]byte {
	var chunks [][]byte
	for len(stream) > n {
		chunks = append(chunks, stream[:n])
		stream = stream[n:]
	}
	return append(chunks, stream)
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}
