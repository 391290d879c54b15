// Package units provides the physical constants and conversions shared by
// the IMU analysis and the throughput reports.
package units

import (
	"fmt"
	"math"
)

// StandardGravity is one g in m/s². The IMU reports acceleration in g.
const StandardGravity = 9.81

// BytesPerKB is the binary unit used for throughput reporting.
const BytesPerKB = 1024

// GToMPS2 converts an acceleration in g to m/s².
func GToMPS2(g float64) float64 {
	return g * StandardGravity
}

// DegToRad converts degrees to radians.
func DegToRad(deg float64) float64 {
	return deg * math.Pi / 180
}

// RadToDeg converts radians to degrees.
func RadToDeg(rad float64) float64 {
	return rad * 180 / math.Pi
}

// KBPerSecond returns the byte rate in KB/s, or 0 for a non-positive elapsed
// time.
func KBPerSecond(bytes int64, elapsedSecs float64) float64 {
	if elapsedSecs <= 0 {
		return 0
	}
	return float64(bytes) / elapsedSecs / BytesPerKB
}

// FormatBytes renders a byte count as "N (x.xx KB)".
func FormatBytes(bytes int64) string {
	return fmt.Sprintf("%d (%.2f KB)", bytes, float64(bytes)/BytesPerKB)
}
