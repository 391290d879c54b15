package report

import (
	"fmt"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/sensorlink/internal/analysis"
)

// maxPlotPoints caps the points drawn per series; longer series are strided.
const maxPlotPoints = 20000

var (
	plotWidth  = 14 * vg.Inch
	plotHeight = 5 * vg.Inch
)

// series is one named line.
type series struct {
	name string
	xys  plotter.XYs
}

// xySeries pairs x and y, striding to at most maxPlotPoints.
func xySeries(x, y []float64) plotter.XYs {
	n := len(y)
	if len(x) < n {
		n = len(x)
	}
	stride := 1
	if n > maxPlotPoints {
		stride = (n + maxPlotPoints - 1) / maxPlotPoints
	}
	pts := make(plotter.XYs, 0, n/stride+1)
	for i := 0; i < n; i += stride {
		pts = append(pts, plotter.XY{X: x[i], Y: y[i]})
	}
	return pts
}

// sampleAxis returns i/rate for n samples.
func sampleAxis(n int, rate float64) []float64 {
	out := make([]float64, n)
	if rate <= 0 {
		for i := range out {
			out[i] = float64(i)
		}
		return out
	}
	for i := range out {
		out[i] = float64(i) / rate
	}
	return out
}

func savePlot(dir, file, title, xLabel, yLabel string, lines ...series) (string, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	p.Add(plotter.NewGrid())

	args := make([]any, 0, 2*len(lines))
	for _, l := range lines {
		if len(l.xys) == 0 {
			continue
		}
		args = append(args, l.name, l.xys)
	}
	if len(args) > 0 {
		if err := plotutil.AddLines(p, args...); err != nil {
			return "", fmt.Errorf("%s: %w", file, err)
		}
	}

	path := filepath.Join(dir, file)
	if err := p.Save(plotWidth, plotHeight, path); err != nil {
		return "", fmt.Errorf("save %s: %w", file, err)
	}
	return path, nil
}

// PlotAudio writes the raw, decimated and spectrum plots of an audio result
// into dir and returns the file paths.
func PlotAudio(dir string, res *analysis.AudioResult) ([]string, error) {
	if res == nil {
		return nil, nil
	}

	var files []string
	add := func(path string, err error) error {
		if err != nil {
			return err
		}
		files = append(files, path)
		return nil
	}

	if err := add(savePlot(dir, "audio_raw.png",
		fmt.Sprintf("Raw audio (%.0f Hz)", res.InputRate), "Time (s)", "Amplitude",
		series{"raw", xySeries(sampleAxis(len(res.Raw), res.InputRate), res.Raw)})); err != nil {
		return files, err
	}
	if err := add(savePlot(dir, "audio_decimated.png",
		fmt.Sprintf("Filtered and decimated audio (%.1f Hz)", res.Rate), "Time (s)", "Amplitude",
		series{"decimated", xySeries(sampleAxis(len(res.Decimated), res.Rate), res.Decimated)})); err != nil {
		return files, err
	}
	if err := add(savePlot(dir, "audio_spectrum.png",
		"Audio spectrum", "Frequency (Hz)", "Magnitude",
		series{"|FFT|", xySeries(res.Spectrum.Freq, res.Spectrum.Mag)})); err != nil {
		return files, err
	}
	return files, nil
}

// PlotIMU writes one plot per derived IMU quantity into dir and returns the
// file paths.
func PlotIMU(dir string, res *analysis.IMUResult) ([]string, error) {
	if res == nil {
		return nil, nil
	}

	xyz := func(v []analysis.Vec3, prefix string) []series {
		out := make([]series, 3)
		for axis, name := range []string{"x", "y", "z"} {
			col := make([]float64, len(v))
			for i := range v {
				col[i] = v[i][axis]
			}
			out[axis] = series{prefix + name, xySeries(res.Time, col)}
		}
		return out
	}

	plots := []struct {
		file, title, yLabel string
		lines               []series
	}{
		{"imu_accel.png", "Acceleration (detrended)", "g", xyz(res.Accel, "a")},
		{"imu_gyro.png", "Angular rate (detrended)", "deg/s", xyz(res.Gyro, "g")},
		{"imu_velocity.png", "Velocity", "m/s", xyz(res.Velocity, "v")},
		{"imu_position.png", "Position", "m", xyz(res.Position, "p")},
		{"imu_angle.png", "Integrated angle", "deg", xyz(res.Angle, "angle_")},
		{"imu_orientation.png", "Complementary filter", "deg", []series{
			{"roll", xySeries(res.Time, res.Roll)},
			{"pitch", xySeries(res.Time, res.Pitch)},
		}},
	}

	var files []string
	for _, pl := range plots {
		path, err := savePlot(dir, pl.file, pl.title, "Time (s)", pl.yLabel, pl.lines...)
		if err != nil {
			return files, err
		}
		files = append(files, path)
	}

	if res.AccelZSpectrum.Len() > 0 {
		path, err := savePlot(dir, "imu_accel_z_spectrum.png",
			fmt.Sprintf("Accel Z spectrum (%.1f Hz)", res.Rate), "Frequency (Hz)", "Magnitude",
			series{"|FFT|/N", xySeries(res.AccelZSpectrum.Freq, res.AccelZSpectrum.Mag)})
		if err != nil {
			return files, err
		}
		files = append(files, path)
	}
	return files, nil
}
