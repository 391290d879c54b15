package analysis

import (
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Spectrum is a one-sided magnitude spectrum.
type Spectrum struct {
	Freq []float64 `json:"freq"` // Hz
	Mag  []float64 `json:"mag"`
}

// magnitudeSpectrum returns |FFT(x)| / norm for the non-negative
// frequencies of a real signal sampled at rate Hz.
func magnitudeSpectrum(x []float64, rate, norm float64) Spectrum {
	if len(x) == 0 {
		return Spectrum{}
	}
	fft := fourier.NewFFT(len(x))
	coeff := fft.Coefficients(nil, x)

	s := Spectrum{
		Freq: make([]float64, len(coeff)),
		Mag:  make([]float64, len(coeff)),
	}
	for i, c := range coeff {
		s.Freq[i] = fft.Freq(i) * rate
		s.Mag[i] = cmplx.Abs(c) / norm
	}
	return s
}

// Len is the number of frequency bins.
func (s Spectrum) Len() int {
	return len(s.Freq)
}

// Peak returns the strongest non-DC bin. ok is false when the spectrum has
// no bins above DC.
func (s Spectrum) Peak() (freq, mag float64, ok bool) {
	best := -1
	for i := 1; i < len(s.Mag); i++ {
		if best < 0 || s.Mag[i] > s.Mag[best] {
			best = i
		}
	}
	if best < 0 {
		return 0, 0, false
	}
	return s.Freq[best], s.Mag[best], true
}
