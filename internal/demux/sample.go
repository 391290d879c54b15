package demux

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrMalformedPayload marks a correctly framed record whose payload cannot be
// decoded into finite values.
var ErrMalformedPayload = errors.New("malformed payload")

// IMUSample is one decoded IMU reading. Acceleration is in g and angular rate
// in deg/s as reported by the firmware.
type IMUSample struct {
	AccelX, AccelY, AccelZ float64
	GyroX, GyroY, GyroZ    float64

	// Timestamp is the device clock in milliseconds. Only meaningful when
	// HasTimestamp is set.
	Timestamp    uint32
	HasTimestamp bool
}

// Accel returns the acceleration vector.
func (s IMUSample) Accel() [3]float64 {
	return [3]float64{s.AccelX, s.AccelY, s.AccelZ}
}

// Gyro returns the angular rate vector.
func (s IMUSample) Gyro() [3]float64 {
	return [3]float64{s.GyroX, s.GyroY, s.GyroZ}
}

// Fields returns the six sensor values in wire order.
func (s IMUSample) Fields() [6]float64 {
	return [6]float64{s.AccelX, s.AccelY, s.AccelZ, s.GyroX, s.GyroY, s.GyroZ}
}

// decodeAudio appends the little-endian signed samples in payload to dst.
func decodeAudio(dst []int32, payload []byte, width int) []int32 {
	for i := 0; i+width <= len(payload); i += width {
		switch width {
		case 2:
			dst = append(dst, int32(int16(binary.LittleEndian.Uint16(payload[i:]))))
		case 4:
			dst = append(dst, int32(binary.LittleEndian.Uint32(payload[i:])))
		}
	}
	return dst
}

// decodeIMU decodes six little-endian float32 values, optionally followed by
// a little-endian uint32 timestamp.
func decodeIMU(payload []byte, withTimestamp bool) (IMUSample, error) {
	want := imuFloatFields * floatSize
	if withTimestamp {
		want += timestampSize
	}
	if len(payload) != want {
		return IMUSample{}, fmt.Errorf("%w: IMU payload is %d bytes, want %d", ErrMalformedPayload, len(payload), want)
	}

	var v [imuFloatFields]float64
	for i := range v {
		f := math.Float32frombits(binary.LittleEndian.Uint32(payload[i*floatSize:]))
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return IMUSample{}, fmt.Errorf("%w: IMU field %d is %v", ErrMalformedPayload, i, f)
		}
		v[i] = float64(f)
	}

	s := IMUSample{
		AccelX: v[0], AccelY: v[1], AccelZ: v[2],
		GyroX: v[3], GyroY: v[4], GyroZ: v[5],
	}
	if withTimestamp {
		s.Timestamp = binary.LittleEndian.Uint32(payload[imuFloatFields*floatSize:])
		s.HasTimestamp = true
	}
	return s, nil
}
