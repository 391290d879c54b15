// Package config loads the collector configuration file.
//
// Every field is optional. Missing fields fall back to the defaults returned
// by the Get* accessors, so a partial file (or no file at all) is valid.
package config

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/banshee-data/sensorlink/internal/analysis"
	"github.com/banshee-data/sensorlink/internal/demux"
	"github.com/banshee-data/sensorlink/internal/source"
)

// ExampleConfigPath is the documented example configuration, relative to the
// repository root.
const ExampleConfigPath = "config/sensorlink.example.json"

const maxFileSize = 1 * 1024 * 1024 // 1MB

// Defaults for the sensor firmware shipped with the board.
const (
	DefaultTransport = source.TransportTCP
	DefaultAddress   = "192.168.78.42:8088"
	DefaultPCAPPort  = 8088
	DefaultFraming   = "marker"
	DefaultOutputDir = "."
)

// Config is the root collector configuration.
type Config struct {
	// Transport
	Transport      *string `json:"transport,omitempty"` // tcp, serial or pcap
	Address        *string `json:"address,omitempty"`
	ConnectTimeout *string `json:"connect_timeout,omitempty"` // duration string like "5s"
	SerialPort     *string `json:"serial_port,omitempty"`
	BaudRate       *int    `json:"baud_rate,omitempty"`
	DataBits       *int    `json:"data_bits,omitempty"`
	StopBits       *int    `json:"stop_bits,omitempty"`
	Parity         *string `json:"parity,omitempty"`
	PCAPFile       *string `json:"pcap_file,omitempty"`
	PCAPPort       *int    `json:"pcap_port,omitempty"`

	// Session
	Duration       *string `json:"duration,omitempty"`
	ReadTimeout    *string `json:"read_timeout,omitempty"`
	ReportInterval *string `json:"report_interval,omitempty"`
	ChunkSize      *int    `json:"chunk_size,omitempty"`

	// Record format
	Framing          *string `json:"framing,omitempty"` // typed or marker
	AudioWidth       *int    `json:"audio_width,omitempty"`
	SamplesPerRecord *int    `json:"samples_per_record,omitempty"`
	IMUTimestamp     *bool   `json:"imu_timestamp,omitempty"`
	Marker           *string `json:"marker,omitempty"` // hex, e.g. "FFFEFDFC"

	// Analysis
	NominalAudioRate   *float64 `json:"nominal_audio_rate,omitempty"`
	DownsampleFactor   *int     `json:"downsample_factor,omitempty"`
	FilterOrder        *int     `json:"filter_order,omitempty"`
	CutoffFraction     *float64 `json:"cutoff_fraction,omitempty"`
	IMUFallbackRate    *float64 `json:"imu_fallback_rate,omitempty"`
	ComplementaryAlpha *float64 `json:"complementary_alpha,omitempty"`

	// Output
	OutputDir    *string `json:"output_dir,omitempty"`
	DatabasePath *string `json:"database_path,omitempty"` // empty disables the session store
	Plots        *bool   `json:"plots,omitempty"`
	HTMLReport   *bool   `json:"html_report,omitempty"`
}

func ptrString(v string) *string { return &v }

// Empty returns a Config with every field unset.
func Empty() *Config {
	return &Config{}
}

// Load reads a Config from a JSON file. The file must have a .json
// extension and be under 1MB.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Empty()
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the values that are set.
func (c *Config) Validate() error {
	switch t := c.GetTransport(); t {
	case source.TransportTCP, source.TransportSerial, source.TransportPCAP:
	default:
		return fmt.Errorf("transport must be one of tcp, serial, pcap, got %q", t)
	}

	durations := []struct {
		name string
		val  *string
	}{
		{"duration", c.Duration},
		{"read_timeout", c.ReadTimeout},
		{"connect_timeout", c.ConnectTimeout},
		{"report_interval", c.ReportInterval},
	}
	for _, d := range durations {
		if d.val == nil || *d.val == "" {
			continue
		}
		v, err := time.ParseDuration(*d.val)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", d.name, *d.val, err)
		}
		if v <= 0 {
			return fmt.Errorf("%s must be positive, got %s", d.name, v)
		}
	}

	if c.ChunkSize != nil && *c.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive, got %d", *c.ChunkSize)
	}
	if c.PCAPPort != nil && (*c.PCAPPort <= 0 || *c.PCAPPort > 65535) {
		return fmt.Errorf("pcap_port must be between 1 and 65535, got %d", *c.PCAPPort)
	}
	if _, err := c.GetPortOptions().Normalize(); err != nil {
		return err
	}

	if _, err := demux.ParseFraming(c.GetFraming()); err != nil {
		return err
	}
	if c.Marker != nil {
		if _, err := decodeMarker(*c.Marker); err != nil {
			return err
		}
	}
	f, err := c.GetFormat()
	if err != nil {
		return err
	}
	if err := f.Validate(); err != nil {
		return err
	}

	if c.NominalAudioRate != nil && *c.NominalAudioRate <= 0 {
		return fmt.Errorf("nominal_audio_rate must be positive, got %f", *c.NominalAudioRate)
	}
	if c.DownsampleFactor != nil && *c.DownsampleFactor < 1 {
		return fmt.Errorf("downsample_factor must be at least 1, got %d", *c.DownsampleFactor)
	}
	if c.FilterOrder != nil && (*c.FilterOrder < 1 || *c.FilterOrder > analysis.MaxFilterOrder) {
		return fmt.Errorf("filter_order must be between 1 and %d, got %d", analysis.MaxFilterOrder, *c.FilterOrder)
	}
	if c.CutoffFraction != nil && (*c.CutoffFraction <= 0 || *c.CutoffFraction >= 1) {
		return fmt.Errorf("cutoff_fraction must be between 0 and 1 exclusive, got %f", *c.CutoffFraction)
	}
	if c.IMUFallbackRate != nil && *c.IMUFallbackRate <= 0 {
		return fmt.Errorf("imu_fallback_rate must be positive, got %f", *c.IMUFallbackRate)
	}
	if c.ComplementaryAlpha != nil && (*c.ComplementaryAlpha < 0 || *c.ComplementaryAlpha > 1) {
		return fmt.Errorf("complementary_alpha must be between 0 and 1, got %f", *c.ComplementaryAlpha)
	}
	return nil
}

func decodeMarker(s string) ([]byte, error) {
	b, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("invalid marker %q: %w", s, err)
	}
	if len(b) == 0 {
		return nil, fmt.Errorf("marker must not be empty")
	}
	return b, nil
}

// parseDuration returns def when s is unset or unparsable.
func parseDuration(s *string, def time.Duration) time.Duration {
	if s == nil || *s == "" {
		return def
	}
	d, err := time.ParseDuration(*s)
	if err != nil {
		return def
	}
	return d
}
