// Package analysis turns the sequences collected by a session into the
// signals that get plotted and stored: a decimated, anti-aliased audio track
// with its spectrum, and IMU motion estimates (detrended channels, integrated
// velocity, position and angle, fused roll and pitch, accel-Z spectrum).
//
// Both entry points take the actual elapsed session duration, because the
// firmware's nominal rates drift from what the link delivers.
package analysis

import "errors"

// ErrNoSamples is returned when there is nothing to analyse.
var ErrNoSamples = errors.New("no samples")
