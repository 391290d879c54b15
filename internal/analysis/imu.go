package analysis

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/sensorlink/internal/demux"
	"github.com/banshee-data/sensorlink/internal/monitoring"
	"github.com/banshee-data/sensorlink/internal/units"
)

// IMUConfig parameterises ProcessIMU.
type IMUConfig struct {
	// FallbackRate is used when neither the duration nor the device
	// timestamps give a rate.
	FallbackRate float64
	// Alpha is the complementary filter's gyro weight.
	Alpha float64
}

// DefaultIMUConfig returns the standard IMU parameters.
func DefaultIMUConfig() IMUConfig {
	return IMUConfig{
		FallbackRate: 100,
		Alpha:        0.98,
	}
}

// RateSource records how the IMU sample rate was obtained.
type RateSource string

const (
	RateFromDuration   RateSource = "duration"
	RateFromTimestamps RateSource = "timestamps"
	RateFallback       RateSource = "fallback"
)

// minRateDuration is the shortest session whose duration is trusted for the
// IMU rate.
const minRateDuration = 100 * time.Millisecond

// Vec3 is an (x, y, z) triple.
type Vec3 [3]float64

// IMUResult holds the processed IMU channels. Every per-sample slice has one
// entry per input sample.
type IMUResult struct {
	Time       []float64 // seconds from the first sample
	Rate       float64
	RateSource RateSource

	// Accel (g) and Gyro (deg/s) with the linear trend removed.
	Accel []Vec3
	Gyro  []Vec3

	Velocity []Vec3 // m/s
	Position []Vec3 // m
	Angle    []Vec3 // deg

	// Roll and Pitch (deg) from the complementary filter.
	Roll  []float64
	Pitch []float64

	// AccelZSpectrum is normalised by the sample count.
	AccelZSpectrum Spectrum
}

// ProcessIMU estimates the sample rate, detrends the channels, integrates
// acceleration and angular rate, fuses roll and pitch, and computes the
// accel-Z spectrum. Integration, fusion and the spectrum need at least two
// samples and are left zero-valued otherwise.
func ProcessIMU(samples []demux.IMUSample, duration time.Duration, cfg IMUConfig) (*IMUResult, error) {
	n := len(samples)
	if n == 0 {
		return nil, fmt.Errorf("imu: %w", ErrNoSamples)
	}

	res := &IMUResult{
		Accel:    make([]Vec3, n),
		Gyro:     make([]Vec3, n),
		Velocity: make([]Vec3, n),
		Position: make([]Vec3, n),
		Angle:    make([]Vec3, n),
		Roll:     make([]float64, n),
		Pitch:    make([]float64, n),
	}
	res.Rate, res.RateSource, res.Time = imuTimeBase(samples, duration, cfg.FallbackRate)

	for i, s := range samples {
		res.Accel[i] = s.Accel()
		res.Gyro[i] = s.Gyro()
	}
	detrend(res.Accel)
	detrend(res.Gyro)

	if n < 2 {
		monitoring.Diagf("imu: single sample, skipping integration, fusion and spectrum")
		return res, nil
	}

	for axis := 0; axis < 3; axis++ {
		accel := column(res.Accel, axis)
		floats.Scale(units.StandardGravity, accel)
		velocity := cumulativeTrapezoid(accel, res.Time)
		setColumn(res.Velocity, axis, velocity)
		setColumn(res.Position, axis, cumulativeTrapezoid(velocity, res.Time))
		setColumn(res.Angle, axis, cumulativeTrapezoid(column(res.Gyro, axis), res.Time))
	}

	if res.Rate > 0 {
		complementaryFilter(samples, 1/res.Rate, cfg.Alpha, res.Roll, res.Pitch)
	}

	res.AccelZSpectrum = magnitudeSpectrum(column(res.Accel, 2), res.Rate, float64(n))

	monitoring.Diagf("imu: %d samples at %.2f Hz (from %s), span %.2fs", n, res.Rate, res.RateSource, res.Time[n-1])
	return res, nil
}

// imuTimeBase picks the sample rate and time axis: evenly spaced over the
// session duration when it is usable, else from the device timestamps, else
// from the fallback rate.
func imuTimeBase(samples []demux.IMUSample, duration time.Duration, fallback float64) (float64, RateSource, []float64) {
	n := len(samples)
	t := make([]float64, n)

	if duration > minRateDuration && n > 1 {
		secs := duration.Seconds()
		span := floats.Span(make([]float64, n+1), 0, secs)
		copy(t, span[:n])
		return float64(n) / secs, RateFromDuration, t
	}

	if n > 1 && samples[0].HasTimestamp {
		first := float64(samples[0].Timestamp)
		var steps []float64
		for i, s := range samples {
			t[i] = (float64(s.Timestamp) - first) / 1000
			if i > 0 {
				if d := t[i] - t[i-1]; d > 0 {
					steps = append(steps, d)
				}
			}
		}
		if len(steps) > 0 {
			return 1 / stat.Mean(steps, nil), RateFromTimestamps, t
		}
		monitoring.Opsf("imu: warning: timestamps never advance, using fallback rate %.1f Hz", fallback)
		return fallback, RateFallback, t
	}

	if fallback > 0 {
		for i := range t {
			t[i] = float64(i) / fallback
		}
	}
	if n > 1 {
		monitoring.Opsf("imu: warning: no usable duration or timestamps, using fallback rate %.1f Hz", fallback)
	}
	return fallback, RateFallback, t
}

// detrend removes the least-squares line (against sample index) from each
// axis.
func detrend(v []Vec3) {
	n := len(v)
	if n < 2 {
		return
	}
	idx := make([]float64, n)
	for i := range idx {
		idx[i] = float64(i)
	}
	for axis := 0; axis < 3; axis++ {
		y := column(v, axis)
		alpha, beta := stat.LinearRegression(idx, y, nil, false)
		for i := range v {
			v[i][axis] -= alpha + beta*idx[i]
		}
	}
}

// cumulativeTrapezoid integrates y over x with the trapezoid rule, starting
// from zero.
func cumulativeTrapezoid(y, x []float64) []float64 {
	out := make([]float64, len(y))
	for i := 1; i < len(y); i++ {
		out[i] = out[i-1] + (x[i]-x[i-1])*(y[i]+y[i-1])/2
	}
	return out
}

// complementaryFilter blends integrated gyro rates with the tilt implied by
// the gravity vector. It uses the raw samples: the detrended accelerometer
// no longer contains gravity.
func complementaryFilter(samples []demux.IMUSample, dt, alpha float64, roll, pitch []float64) {
	accelRoll := func(s demux.IMUSample) float64 {
		return units.RadToDeg(math.Atan2(s.AccelY, s.AccelZ))
	}
	accelPitch := func(s demux.IMUSample) float64 {
		return units.RadToDeg(math.Atan2(-s.AccelX, math.Hypot(s.AccelY, s.AccelZ)))
	}

	roll[0] = accelRoll(samples[0])
	pitch[0] = accelPitch(samples[0])
	for i := 1; i < len(samples); i++ {
		s := samples[i]
		roll[i] = alpha*(roll[i-1]+s.GyroX*dt) + (1-alpha)*accelRoll(s)
		pitch[i] = alpha*(pitch[i-1]+s.GyroY*dt) + (1-alpha)*accelPitch(s)
	}
}

func column(v []Vec3, axis int) []float64 {
	out := make([]float64, len(v))
	for i := range v {
		out[i] = v[i][axis]
	}
	return out
}

func setColumn(v []Vec3, axis int, col []float64) {
	for i := range v {
		v[i][axis] = col[i]
	}
}
