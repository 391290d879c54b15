package analysis

import (
	"fmt"
	"time"

	"github.com/banshee-data/sensorlink/internal/monitoring"
)

// AudioConfig parameterises ProcessAudio.
type AudioConfig struct {
	// NominalRate is used when the session duration is unknown.
	NominalRate float64
	// DownsampleFactor keeps every n-th filtered sample.
	DownsampleFactor int
	// FilterOrder is the Butterworth anti-aliasing filter order.
	FilterOrder int
	// CutoffFraction places the cutoff relative to the post-decimation
	// Nyquist frequency.
	CutoffFraction float64
}

// DefaultAudioConfig matches the microphone firmware: 48 kHz decimated by 50.
func DefaultAudioConfig() AudioConfig {
	return AudioConfig{
		NominalRate:      48000,
		DownsampleFactor: 50,
		FilterOrder:      6,
		CutoffFraction:   0.9,
	}
}

// AudioResult holds the processed audio track.
type AudioResult struct {
	// Raw is the input converted to float64.
	Raw []float64
	// InputRate is the sample rate of Raw in Hz.
	InputRate float64
	// Filtered reports whether the anti-aliasing filter ran.
	Filtered bool
	CutoffHz float64
	// Decimated is the filtered track after downsampling, sampled at Rate.
	Decimated []float64
	Rate      float64
	Spectrum  Spectrum
}

// ProcessAudio low-pass filters the samples, decimates them and computes the
// magnitude spectrum of the decimated track. The input rate is measured from
// duration when it is positive.
func ProcessAudio(samples []int32, duration time.Duration, cfg AudioConfig) (*AudioResult, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("audio: %w", ErrNoSamples)
	}
	factor := cfg.DownsampleFactor
	if factor < 1 {
		factor = 1
	}

	res := &AudioResult{
		Raw:       make([]float64, len(samples)),
		InputRate: cfg.NominalRate,
	}
	for i, s := range samples {
		res.Raw[i] = float64(s)
	}
	if duration > 0 {
		res.InputRate = float64(len(samples)) / duration.Seconds()
	}
	if res.InputRate <= 0 {
		return nil, fmt.Errorf("audio: no usable sample rate (nominal %f)", cfg.NominalRate)
	}
	res.Rate = res.InputRate / float64(factor)

	nyquist := res.InputRate / 2
	res.CutoffHz = res.Rate / 2 * cfg.CutoffFraction
	filtered := res.Raw
	if res.CutoffHz > 0 && res.CutoffHz < nyquist {
		sos, err := butterworthLowpass(cfg.FilterOrder, res.CutoffHz/nyquist)
		if err != nil {
			monitoring.Opsf("audio: warning: anti-aliasing filter not applied: %v", err)
		} else {
			filtered = sos.filtfilt(res.Raw)
			res.Filtered = true
		}
	} else {
		monitoring.Opsf("audio: warning: cutoff %.2f Hz is not below Nyquist %.2f Hz, skipping filter", res.CutoffHz, nyquist)
	}

	res.Decimated = decimate(filtered, factor)
	res.Spectrum = magnitudeSpectrum(res.Decimated, res.Rate, 1)

	monitoring.Diagf("audio: %d samples at %.1f Hz, low-pass %.1f Hz (order %d), decimated x%d to %d samples at %.1f Hz",
		len(samples), res.InputRate, res.CutoffHz, cfg.FilterOrder, factor, len(res.Decimated), res.Rate)
	return res, nil
}
