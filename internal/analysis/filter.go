package analysis

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/floats"
)

// MaxFilterOrder bounds the Butterworth order accepted by configuration.
const MaxFilterOrder = 12

// biquad is one second-order section in transposed direct form II with a0
// normalised to 1.
type biquad struct {
	b0, b1, b2 float64
	a1, a2     float64
}

func (s biquad) dcGain() float64 {
	return (s.b0 + s.b1 + s.b2) / (1 + s.a1 + s.a2)
}

// steadyState is the section state after a unit step has been applied
// forever.
func (s biquad) steadyState() (z1, z2 float64) {
	g := s.dcGain()
	return g - s.b0, s.b2 - s.a2*g
}

// cascade is a filter stored as second-order sections. High orders at the
// low cutoffs used for decimation are unstable as a single polynomial.
type cascade []biquad

// butterworthLowpass designs a digital Butterworth low-pass filter. wn is the
// cutoff as a fraction of the Nyquist frequency.
func butterworthLowpass(order int, wn float64) (cascade, error) {
	if order < 1 || order > MaxFilterOrder {
		return nil, fmt.Errorf("filter order must be between 1 and %d, got %d", MaxFilterOrder, order)
	}
	if wn <= 0 || wn >= 1 {
		return nil, fmt.Errorf("normalised cutoff must be in (0, 1), got %f", wn)
	}

	// Analog prototype poles, prewarped and mapped with the bilinear
	// transform at fs = 2 so that wn is relative to Nyquist.
	const fs = 2.0
	warped := 2 * fs * math.Tan(math.Pi*wn/fs)
	bilinear := func(s complex128) complex128 {
		return (2*fs + s) / (2*fs - s)
	}

	sections := make(cascade, 0, (order+1)/2)
	for k := 0; k < order/2; k++ {
		theta := math.Pi/2 + math.Pi*float64(2*k+1)/float64(2*order)
		p := bilinear(complex(warped, 0) * cmplx.Exp(complex(0, theta)))
		a1 := -2 * real(p)
		a2 := real(p)*real(p) + imag(p)*imag(p)
		// Both zeros at z = -1; scale for unity gain at DC.
		g := (1 + a1 + a2) / 4
		sections = append(sections, biquad{b0: g, b1: 2 * g, b2: g, a1: a1, a2: a2})
	}
	if order%2 == 1 {
		p := real(bilinear(complex(-warped, 0)))
		g := (1 - p) / 2
		sections = append(sections, biquad{b0: g, b1: g, a1: -p})
	}
	return sections, nil
}

// apply runs the cascade over x in place, starting every section in the
// steady state it would reach for a constant input of init.
func (c cascade) apply(x []float64, init float64) {
	gain := init
	for _, s := range c {
		z1, z2 := s.steadyState()
		z1 *= gain
		z2 *= gain
		for i, v := range x {
			y := s.b0*v + z1
			z1 = s.b1*v - s.a1*y + z2
			z2 = s.b2*v - s.a2*y
			x[i] = y
		}
		gain *= s.dcGain()
	}
}

// padLength is the odd-extension length used by filtfilt.
func (c cascade) padLength() int {
	return 3 * (2*len(c) + 1)
}

// filtfilt applies the cascade forward and backward for zero phase
// distortion. The signal is padded by odd extension at both ends to reduce
// edge transients; short signals get a shorter pad.
func (c cascade) filtfilt(x []float64) []float64 {
	n := len(x)
	if n == 0 {
		return nil
	}
	pad := c.padLength()
	if pad > n-1 {
		pad = n - 1
	}

	ext := oddExtend(x, pad)
	c.apply(ext, ext[0])
	floats.Reverse(ext)
	c.apply(ext, ext[0])
	floats.Reverse(ext)

	out := make([]float64, n)
	copy(out, ext[pad:pad+n])
	return out
}

// oddExtend reflects x about its end points by pad samples on each side.
func oddExtend(x []float64, pad int) []float64 {
	n := len(x)
	ext := make([]float64, 0, n+2*pad)
	for i := pad; i >= 1; i-- {
		ext = append(ext, 2*x[0]-x[i])
	}
	ext = append(ext, x...)
	for i := n - 2; i >= n-1-pad; i-- {
		ext = append(ext, 2*x[n-1]-x[i])
	}
	return ext
}

// decimate keeps every factor-th sample starting with the first.
func decimate(x []float64, factor int) []float64 {
	if factor <= 1 {
		out := make([]float64, len(x))
		copy(out, x)
		return out
	}
	out := make([]float64, 0, (len(x)+factor-1)/factor)
	for i := 0; i < len(x); i += factor {
		out = append(out, x[i])
	}
	return out
}
