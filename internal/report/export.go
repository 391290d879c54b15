// Package report writes the artefacts of an analysed session: the
// decimated audio track as text, the raw IMU samples as CSV, PNG plots and
// an interactive HTML page of the spectra.
package report

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/banshee-data/sensorlink/internal/demux"
	"github.com/banshee-data/sensorlink/internal/security"
)

// Output file names.
const (
	AudioTextFile   = "final_audio_data.txt"
	IMUCSVFile      = "imu_data.csv"
	SpectraHTMLFile = "spectra.html"
)

// SessionDir creates and returns root/<timestamp>_<label>, refusing any
// directory that would land outside root.
func SessionDir(root string, started time.Time, label string) (string, error) {
	name := started.Format("20060102_150405") + "_" + security.SanitizeFilename(label)
	dir := filepath.Join(root, name)
	if err := security.ValidateWithin(dir, root); err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	return dir, nil
}

// WriteAudioText writes one rounded sample per line.
func WriteAudioText(path string, samples []float64) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, s := range samples {
		w.WriteString(strconv.FormatInt(int64(math.Round(s)), 10))
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

// WriteIMUCSV writes the decoded IMU samples with a header row. The
// timestamp column is present when the samples carry one.
func WriteIMUCSV(path string, samples []demux.IMUSample) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	withTimestamp := len(samples) > 0 && samples[0].HasTimestamp
	header := []string{"accel_x", "accel_y", "accel_z", "gyro_x", "gyro_y", "gyro_z"}
	if withTimestamp {
		header = append(header, "timestamp")
	}

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	row := make([]string, len(header))
	for _, s := range samples {
		for i, v := range s.Fields() {
			row[i] = strconv.FormatFloat(v, 'g', -1, 32)
		}
		if withTimestamp {
			row[6] = strconv.FormatUint(uint64(s.Timestamp), 10)
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
