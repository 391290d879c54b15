package report

import (
	"bytes"
	"fmt"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/sensorlink/internal/analysis"
)

// maxChartPoints caps the points per interactive series.
const maxChartPoints = 5000

func spectrumChart(title, subtitle string, s analysis.Spectrum) *charts.Line {
	data := make([]opts.LineData, 0, maxChartPoints)
	stride := 1
	if s.Len() > maxChartPoints {
		stride = (s.Len() + maxChartPoints - 1) / maxChartPoints
	}
	for i := 0; i < s.Len(); i += stride {
		data = append(data, opts.LineData{Value: []interface{}{s.Freq[i], s.Mag[i]}})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: "Hz", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Name: "Magnitude"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "inside"}, opts.DataZoom{Type: "slider"}),
	)
	line.AddSeries(title, data, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
	return line
}

// WriteSpectraHTML renders the audio and accel-Z spectra on one page.
// Either result may be nil.
func WriteSpectraHTML(path, heading string, audio *analysis.AudioResult, imu *analysis.IMUResult) error {
	page := components.NewPage()
	page.SetPageTitle(heading)

	added := 0
	if audio != nil && audio.Spectrum.Len() > 0 {
		page.AddCharts(spectrumChart("Audio spectrum",
			fmt.Sprintf("%d samples at %.1f Hz, low-pass %.1f Hz", len(audio.Decimated), audio.Rate, audio.CutoffHz),
			audio.Spectrum))
		added++
	}
	if imu != nil && imu.AccelZSpectrum.Len() > 0 {
		page.AddCharts(spectrumChart("Accel Z spectrum",
			fmt.Sprintf("%d samples at %.2f Hz (%s)", len(imu.Time), imu.Rate, imu.RateSource),
			imu.AccelZSpectrum))
		added++
	}
	if added == 0 {
		return fmt.Errorf("no spectra to render")
	}

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		return fmt.Errorf("render spectra: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
