package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/banshee-data/sensorlink/internal/analysis"
	"github.com/banshee-data/sensorlink/internal/config"
	"github.com/banshee-data/sensorlink/internal/db"
	"github.com/banshee-data/sensorlink/internal/monitoring"
	"github.com/banshee-data/sensorlink/internal/report"
	"github.com/banshee-data/sensorlink/internal/session"
)

// result is everything one invocation produced.
type result struct {
	Session *session.Session
	Audio   *analysis.AudioResult
	IMU     *analysis.IMUResult
	Dir     string
	Files   []string
}

// run collects one session and processes it. Transport failures degrade the
// session instead of failing the run; only configuration, output and store
// errors are returned.
func run(ctx context.Context, cfg *config.Config, open session.Opener, opts ...session.Option) (*result, error) {
	format, err := cfg.GetFormat()
	if err != nil {
		return nil, err
	}
	opts = append([]session.Option{session.WithSourceName(cfg.GetSourceConfig().Describe())}, opts...)

	sess, runErr := session.New(cfg.GetSessionConfig(), open, format, opts...).Run(ctx)
	if runErr != nil {
		monitoring.Opsf("warning: %v", runErr)
	}
	res := &result{Session: sess}

	if !sess.Empty() {
		res.analyse(cfg)
		if err := res.write(cfg); err != nil {
			return res, err
		}
	}

	// An interrupted session is still recorded.
	if path := cfg.GetDatabasePath(); path != "" {
		if err := store(context.WithoutCancel(ctx), path, sess); err != nil {
			return res, err
		}
	}
	return res, nil
}

// analyse runs whichever analyses have data. An analysis failure is logged
// and leaves the corresponding result nil.
func (r *result) analyse(cfg *config.Config) {
	s := r.Session
	if len(s.Audio) > 0 {
		ar, err := analysis.ProcessAudio(s.Audio, s.Duration, cfg.GetAudioConfig())
		if err != nil {
			monitoring.Opsf("audio analysis failed: %v", err)
		}
		r.Audio = ar
	}
	if len(s.IMU) > 0 {
		ir, err := analysis.ProcessIMU(s.IMU, s.Duration, cfg.GetIMUConfig())
		if err != nil {
			monitoring.Opsf("imu analysis failed: %v", err)
		}
		r.IMU = ir
	}
}

func (r *result) write(cfg *config.Config) error {
	s := r.Session
	label := s.ID
	if len(label) > 8 {
		label = label[:8]
	}
	dir, err := report.SessionDir(cfg.GetOutputDir(), s.Started, label)
	if err != nil {
		return err
	}
	r.Dir = dir

	if r.Audio != nil {
		path := filepath.Join(dir, report.AudioTextFile)
		if err := report.WriteAudioText(path, r.Audio.Decimated); err != nil {
			return err
		}
		r.Files = append(r.Files, path)
	}
	if len(s.IMU) > 0 {
		path := filepath.Join(dir, report.IMUCSVFile)
		if err := report.WriteIMUCSV(path, s.IMU); err != nil {
			return err
		}
		r.Files = append(r.Files, path)
	}

	if cfg.GetPlots() {
		files, err := report.PlotAudio(dir, r.Audio)
		if err != nil {
			return fmt.Errorf("audio plots: %w", err)
		}
		r.Files = append(r.Files, files...)
		if files, err = report.PlotIMU(dir, r.IMU); err != nil {
			return fmt.Errorf("imu plots: %w", err)
		}
		r.Files = append(r.Files, files...)
	}

	if cfg.GetHTMLReport() && (r.Audio != nil || r.IMU != nil) {
		path := filepath.Join(dir, report.SpectraHTMLFile)
		heading := fmt.Sprintf("Session %s (%s)", s.ID, s.Source)
		if err := report.WriteSpectraHTML(path, heading, r.Audio, r.IMU); err != nil {
			monitoring.Opsf("spectra page skipped: %v", err)
		} else {
			r.Files = append(r.Files, path)
		}
	}
	return nil
}

func store(ctx context.Context, path string, s *session.Session) error {
	database, err := db.NewDB(path)
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	defer database.Close()

	if err := database.RecordSession(ctx, s); err != nil {
		return err
	}
	monitoring.Diagf("session %s recorded in %s", s.ID, path)
	return nil
}
