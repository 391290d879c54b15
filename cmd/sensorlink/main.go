// Command sensorlink collects one session of interleaved audio and IMU data
// from the sensor board, analyses it and writes the report artefacts.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/banshee-data/sensorlink/internal/config"
	"github.com/banshee-data/sensorlink/internal/db"
	"github.com/banshee-data/sensorlink/internal/monitoring"
	"github.com/banshee-data/sensorlink/internal/session"
	"github.com/banshee-data/sensorlink/internal/source"
	"github.com/banshee-data/sensorlink/internal/version"
)

type cliFlags struct {
	fs *flag.FlagSet

	configPath  string
	showVersion bool
	trace       bool
	quiet       bool
	list        bool
	limit       int

	transport  string
	address    string
	serialPort string
	baudRate   int
	pcapFile   string
	pcapPort   int
	duration   time.Duration
	framing    string
	audioWidth int
	outputDir  string
	dbPath     string
	noPlots    bool
	noHTML     bool
}

func newFlags(output io.Writer) *cliFlags {
	f := &cliFlags{fs: flag.NewFlagSet("sensorlink", flag.ContinueOnError)}
	f.fs.SetOutput(output)

	f.fs.StringVar(&f.configPath, "config", "", "Path to a JSON configuration file")
	f.fs.BoolVar(&f.showVersion, "version", false, "Print the version and exit")
	f.fs.BoolVar(&f.trace, "trace", false, "Enable per-record trace logging")
	f.fs.BoolVar(&f.quiet, "quiet", false, "Suppress diagnostic logging")
	f.fs.BoolVar(&f.list, "list", false, "List stored sessions and exit")
	f.fs.IntVar(&f.limit, "limit", 20, "Number of sessions shown by -list (0 for all)")

	f.fs.StringVar(&f.transport, "transport", config.DefaultTransport, "Byte source: tcp, serial or pcap")
	f.fs.StringVar(&f.address, "address", config.DefaultAddress, "host:port of the sensor board (tcp)")
	f.fs.StringVar(&f.serialPort, "serial-port", "", "Serial device path (serial)")
	f.fs.IntVar(&f.baudRate, "baud", source.DefaultBaudRate, "Serial baud rate (serial)")
	f.fs.StringVar(&f.pcapFile, "pcap", "", "Capture file to replay (pcap)")
	f.fs.IntVar(&f.pcapPort, "pcap-port", config.DefaultPCAPPort, "TCP/UDP port to extract from the capture (pcap)")
	f.fs.DurationVar(&f.duration, "duration", session.DefaultDuration, "Target session length")
	f.fs.StringVar(&f.framing, "framing", config.DefaultFraming, "Record framing: typed or marker")
	f.fs.IntVar(&f.audioWidth, "audio-width", 0, "Audio sample width in bytes (2 or 4, 0 keeps the framing default)")
	f.fs.StringVar(&f.outputDir, "output", config.DefaultOutputDir, "Directory that receives the session output folder")
	f.fs.StringVar(&f.dbPath, "db", "", "SQLite session store (empty disables it)")
	f.fs.BoolVar(&f.noPlots, "no-plots", false, "Skip PNG plots")
	f.fs.BoolVar(&f.noHTML, "no-html", false, "Skip the HTML spectra page")
	return f
}

func (f *cliFlags) parse(args []string) error {
	return f.fs.Parse(args)
}

// apply copies explicitly set flags over the file configuration.
func (f *cliFlags) apply(cfg *config.Config) {
	f.fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "transport":
			cfg.Transport = &f.transport
		case "address":
			cfg.Address = &f.address
		case "serial-port":
			cfg.SerialPort = &f.serialPort
		case "baud":
			cfg.BaudRate = &f.baudRate
		case "pcap":
			cfg.PCAPFile = &f.pcapFile
		case "pcap-port":
			cfg.PCAPPort = &f.pcapPort
		case "duration":
			d := f.duration.String()
			cfg.Duration = &d
		case "framing":
			cfg.Framing = &f.framing
		case "audio-width":
			if f.audioWidth != 0 {
				cfg.AudioWidth = &f.audioWidth
			}
		case "output":
			cfg.OutputDir = &f.outputDir
		case "db":
			cfg.DatabasePath = &f.dbPath
		case "no-plots":
			plots := !f.noPlots
			cfg.Plots = &plots
		case "no-html":
			html := !f.noHTML
			cfg.HTMLReport = &html
		}
	})
}

// loadConfig reads the optional file, applies flag overrides and validates
// the result.
func (f *cliFlags) loadConfig() (*config.Config, error) {
	cfg := config.Empty()
	if f.configPath != "" {
		var err error
		if cfg, err = config.Load(f.configPath); err != nil {
			return nil, err
		}
	}
	f.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func main() {
	flags := newFlags(os.Stderr)
	if err := flags.parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}
	if flags.showVersion {
		fmt.Println(version.String())
		return
	}

	writers := monitoring.LogWriters{Ops: os.Stderr, Diag: os.Stderr}
	if flags.quiet {
		writers.Diag = nil
	}
	if flags.trace {
		writers.Trace = os.Stderr
	}
	monitoring.SetLogWriters(writers)

	cfg, err := flags.loadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if flags.list {
		if err := listSessions(ctx, os.Stdout, cfg.GetDatabasePath(), flags.limit); err != nil {
			log.Fatalf("Failed to list sessions: %v", err)
		}
		return
	}

	monitoring.Opsf("%s starting", version.String())
	src := cfg.GetSourceConfig()
	res, err := run(ctx, cfg, func(ctx context.Context) (source.Source, error) {
		return source.Open(ctx, src)
	})
	if err != nil {
		log.Fatalf("Session failed: %v", err)
	}
	if res.Session.Empty() {
		monitoring.Opsf("no data collected from %s (%s)", res.Session.Source, res.Session.EndReason)
		os.Exit(1)
	}
	for _, file := range res.Files {
		monitoring.Diagf("wrote %s", file)
	}
	monitoring.Opsf("session %s complete, output in %s", res.Session.ID, res.Dir)
}

func listSessions(ctx context.Context, w io.Writer, path string, limit int) error {
	if path == "" {
		return fmt.Errorf("no session store configured (set -db or database_path)")
	}
	store, err := db.NewDB(path)
	if err != nil {
		return err
	}
	defer store.Close()

	recs, err := store.ListSessions(ctx, limit)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tSOURCE\tEND\tDURATION\tAUDIO\tIMU")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.2fs\t%d\t%d\n",
			r.ID, r.Started.Local().Format(time.DateTime), r.Source, r.EndReason,
			r.Duration.Seconds(), r.AudioSamples, r.IMURecords)
	}
	return tw.Flush()
}
