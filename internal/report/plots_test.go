package report

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/sensorlink/internal/analysis"
	"github.com/banshee-data/sensorlink/internal/demux"
	"github.com/banshee-data/sensorlink/internal/monitoring"
)

func init() {
	monitoring.Mute()
}

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

func analysedAudio(t *testing.T) *analysis.AudioResult {
	t.Helper()
	samples := make([]int32, 9600)
	for i := range samples {
		samples[i] = int32(1000 * math.Sin(2*math.Pi*50*float64(i)/9600))
	}
	res, err := analysis.ProcessAudio(samples, 200*time.Millisecond, analysis.DefaultAudioConfig())
	require.NoError(t, err)
	return res
}

func analysedIMU(t *testing.T) *analysis.IMUResult {
	t.Helper()
	samples := make([]demux.IMUSample, 64)
	for i := range samples {
		samples[i] = demux.IMUSample{
			AccelZ: 1 + 0.1*math.Sin(float64(i)/4),
			GyroX:  math.Cos(float64(i) / 8),
		}
	}
	res, err := analysis.ProcessIMU(samples, 640*time.Millisecond, analysis.DefaultIMUConfig())
	require.NoError(t, err)
	return res
}

func assertPNG(t *testing.T, path string) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, pngMagic), "%s is not a PNG", path)
}

func TestPlotAudio(t *testing.T) {
	dir := t.TempDir()
	files, err := PlotAudio(dir, analysedAudio(t))
	require.NoError(t, err)
	require.Len(t, files, 3)
	for _, f := range files {
		assert.Equal(t, dir, filepath.Dir(f))
		assertPNG(t, f)
	}
}

func TestPlotIMU(t *testing.T) {
	dir := t.TempDir()
	files, err := PlotIMU(dir, analysedIMU(t))
	require.NoError(t, err)
	require.Len(t, files, 7)
	for _, f := range files {
		assertPNG(t, f)
	}
}

func TestPlot_NilResults(t *testing.T) {
	files, err := PlotAudio(t.TempDir(), nil)
	assert.NoError(t, err)
	assert.Empty(t, files)

	files, err = PlotIMU(t.TempDir(), nil)
	assert.NoError(t, err)
	assert.Empty(t, files)
}

func TestPlot_MissingDirectory(t *testing.T) {
	_, err := PlotAudio(filepath.Join(t.TempDir(), "absent"), analysedAudio(t))
	assert.Error(t, err)
}

func TestXYSeries_Strides(t *testing.T) {
	n := 3*maxPlotPoints + 1
	x := make([]float64, n)
	for i := range x {
		x[i] = float64(i)
	}
	pts := xySeries(x, x)
	assert.LessOrEqual(t, len(pts), maxPlotPoints)
	assert.Equal(t, 0.0, pts[0].X)

	short := xySeries([]float64{0, 1}, []float64{5, 6, 7})
	assert.Len(t, short, 2)
}

func TestSampleAxis(t *testing.T) {
	assert.Equal(t, []float64{0, 0.5, 1}, sampleAxis(3, 2))
	assert.Equal(t, []float64{0, 1, 2}, sampleAxis(3, 0))
}
