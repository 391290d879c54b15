package config

import (
	"time"

	"github.com/banshee-data/sensorlink/internal/analysis"
	"github.com/banshee-data/sensorlink/internal/demux"
	"github.com/banshee-data/sensorlink/internal/session"
	"github.com/banshee-data/sensorlink/internal/source"
)

// GetTransport returns the transport name or the default.
func (c *Config) GetTransport() string {
	if c.Transport == nil || *c.Transport == "" {
		return DefaultTransport
	}
	return *c.Transport
}

// GetAddress returns the sensor's TCP address or the default.
func (c *Config) GetAddress() string {
	if c.Address == nil || *c.Address == "" {
		return DefaultAddress
	}
	return *c.Address
}

// GetConnectTimeout returns the TCP connect timeout or the default.
func (c *Config) GetConnectTimeout() time.Duration {
	return parseDuration(c.ConnectTimeout, source.DefaultConnectTimeout)
}

// GetPortOptions returns the serial parameters. Unset fields stay zero and
// are defaulted by PortOptions.Normalize.
func (c *Config) GetPortOptions() source.PortOptions {
	var opts source.PortOptions
	if c.BaudRate != nil {
		opts.BaudRate = *c.BaudRate
	}
	if c.DataBits != nil {
		opts.DataBits = *c.DataBits
	}
	if c.StopBits != nil {
		opts.StopBits = *c.StopBits
	}
	if c.Parity != nil {
		opts.Parity = *c.Parity
	}
	return opts
}

// GetPCAPPort returns the TCP port to replay from a capture or the default.
func (c *Config) GetPCAPPort() int {
	if c.PCAPPort == nil {
		return DefaultPCAPPort
	}
	return *c.PCAPPort
}

// GetSourceConfig assembles the transport selection.
func (c *Config) GetSourceConfig() source.Config {
	cfg := source.Config{
		Transport:      c.GetTransport(),
		Address:        c.GetAddress(),
		ConnectTimeout: c.GetConnectTimeout(),
		Serial:         c.GetPortOptions(),
		PCAPPort:       c.GetPCAPPort(),
	}
	if c.SerialPort != nil {
		cfg.SerialPath = *c.SerialPort
	}
	if c.PCAPFile != nil {
		cfg.PCAPFile = *c.PCAPFile
	}
	return cfg
}

// GetSessionConfig returns the session bounds.
func (c *Config) GetSessionConfig() session.Config {
	cfg := session.Config{
		Duration:       parseDuration(c.Duration, session.DefaultDuration),
		ReadTimeout:    parseDuration(c.ReadTimeout, session.DefaultReadTimeout),
		ReportInterval: parseDuration(c.ReportInterval, session.DefaultReportInterval),
		ChunkSize:      session.DefaultChunkSize,
	}
	if c.ChunkSize != nil {
		cfg.ChunkSize = *c.ChunkSize
	}
	return cfg
}

// GetFraming returns the framing name or the default.
func (c *Config) GetFraming() string {
	if c.Framing == nil || *c.Framing == "" {
		return DefaultFraming
	}
	return *c.Framing
}

// GetFormat builds the record format. Typed framing starts from
// demux.TypedFormat and marker framing from demux.MarkerFormat; explicit
// fields override either.
func (c *Config) GetFormat() (demux.Format, error) {
	framing, err := demux.ParseFraming(c.GetFraming())
	if err != nil {
		return demux.Format{}, err
	}

	var f demux.Format
	switch framing {
	case demux.FramingTyped:
		n := demux.DefaultSamplesPerRecord
		if c.SamplesPerRecord != nil {
			n = *c.SamplesPerRecord
		}
		f = demux.TypedFormat(n)
	default:
		f = demux.MarkerFormat(4)
	}

	if c.AudioWidth != nil {
		f.AudioWidth = *c.AudioWidth
	}
	if c.IMUTimestamp != nil {
		f.IMUTimestamp = *c.IMUTimestamp
	}
	if c.Marker != nil {
		m, err := decodeMarker(*c.Marker)
		if err != nil {
			return demux.Format{}, err
		}
		f.Marker = m
	}
	return f, nil
}

// GetAudioConfig returns the audio analysis parameters.
func (c *Config) GetAudioConfig() analysis.AudioConfig {
	cfg := analysis.DefaultAudioConfig()
	if c.NominalAudioRate != nil {
		cfg.NominalRate = *c.NominalAudioRate
	}
	if c.DownsampleFactor != nil {
		cfg.DownsampleFactor = *c.DownsampleFactor
	}
	if c.FilterOrder != nil {
		cfg.FilterOrder = *c.FilterOrder
	}
	if c.CutoffFraction != nil {
		cfg.CutoffFraction = *c.CutoffFraction
	}
	return cfg
}

// GetIMUConfig returns the IMU analysis parameters.
func (c *Config) GetIMUConfig() analysis.IMUConfig {
	cfg := analysis.DefaultIMUConfig()
	if c.IMUFallbackRate != nil {
		cfg.FallbackRate = *c.IMUFallbackRate
	}
	if c.ComplementaryAlpha != nil {
		cfg.Alpha = *c.ComplementaryAlpha
	}
	return cfg
}

// GetOutputDir returns the output directory or the default.
func (c *Config) GetOutputDir() string {
	if c.OutputDir == nil || *c.OutputDir == "" {
		return DefaultOutputDir
	}
	return *c.OutputDir
}

// GetDatabasePath returns the session store path; empty disables it.
func (c *Config) GetDatabasePath() string {
	if c.DatabasePath == nil {
		return ""
	}
	return *c.DatabasePath
}

// GetPlots reports whether PNG plots are written.
func (c *Config) GetPlots() bool {
	if c.Plots == nil {
		return true
	}
	return *c.Plots
}

// GetHTMLReport reports whether the HTML spectra page is written.
func (c *Config) GetHTMLReport() bool {
	if c.HTMLReport == nil {
		return true
	}
	return *c.HTMLReport
}
