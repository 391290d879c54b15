package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/sensorlink/internal/demux"
	"github.com/banshee-data/sensorlink/internal/session"
)

// ErrSessionNotFound is returned when a session id has no row.
var ErrSessionNotFound = errors.New("session not found")

// SessionRecord is the persisted summary of one collection session.
type SessionRecord struct {
	ID            string
	Source        string
	Format        string
	Started       time.Time
	Target        time.Duration
	Duration      time.Duration
	EndReason     string
	Error         string
	BytesReceived int64
	Chunks        int
	Timeouts      int
	AudioSamples  int
	IMURecords    int
	AudioRate     float64
	IMURate       float64
	Stats         demux.Stats
}

// RecordSession stores the session summary and its IMU records in a single
// transaction. Audio samples are not stored; they go to the text export.
func (db *DB) RecordSession(ctx context.Context, s *session.Session) error {
	if s == nil || s.ID == "" {
		return fmt.Errorf("record session: missing session id")
	}
	stats, err := json.Marshal(s.Stats)
	if err != nil {
		return fmt.Errorf("failed to encode demux stats: %w", err)
	}
	var errText sql.NullString
	if s.Err != nil {
		errText = sql.NullString{String: s.Err.Error(), Valid: true}
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (
			session_id, source, format, started_unix_nanos, target_nanos,
			duration_nanos, end_reason, error, bytes_received, chunks, timeouts,
			audio_samples, imu_records, audio_rate_hz, imu_rate_hz, demux_stats_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.Source, s.Format.String(), s.Started.UnixNano(), int64(s.Target),
		int64(s.Duration), string(s.EndReason), errText, s.BytesReceived, s.Chunks, s.Timeouts,
		len(s.Audio), len(s.IMU), s.AudioRate(), s.IMURate(), string(stats),
	)
	if err != nil {
		return fmt.Errorf("failed to insert session %s: %w", s.ID, err)
	}

	if len(s.IMU) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO imu_samples (
				session_id, seq, accel_x, accel_y, accel_z, gyro_x, gyro_y, gyro_z, device_ms
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare imu insert: %w", err)
		}
		defer stmt.Close()

		for i, r := range s.IMU {
			var ts sql.NullInt64
			if r.HasTimestamp {
				ts = sql.NullInt64{Int64: int64(r.Timestamp), Valid: true}
			}
			if _, err := stmt.ExecContext(ctx, s.ID, i,
				r.AccelX, r.AccelY, r.AccelZ, r.GyroX, r.GyroY, r.GyroZ, ts); err != nil {
				return fmt.Errorf("failed to insert imu record %d: %w", i, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit session %s: %w", s.ID, err)
	}
	return nil
}

const sessionColumns = `session_id, source, format, started_unix_nanos, target_nanos,
	duration_nanos, end_reason, error, bytes_received, chunks, timeouts,
	audio_samples, imu_records, audio_rate_hz, imu_rate_hz, demux_stats_json`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (SessionRecord, error) {
	var (
		rec                      SessionRecord
		started, target, elapsed int64
		errText, stats           sql.NullString
		audioRate, imuRate       sql.NullFloat64
	)
	if err := row.Scan(&rec.ID, &rec.Source, &rec.Format, &started, &target,
		&elapsed, &rec.EndReason, &errText, &rec.BytesReceived, &rec.Chunks, &rec.Timeouts,
		&rec.AudioSamples, &rec.IMURecords, &audioRate, &imuRate, &stats); err != nil {
		return rec, err
	}
	rec.Started = time.Unix(0, started).UTC()
	rec.Target = time.Duration(target)
	rec.Duration = time.Duration(elapsed)
	rec.Error = errText.String
	rec.AudioRate = audioRate.Float64
	rec.IMURate = imuRate.Float64
	if stats.Valid && stats.String != "" {
		if err := json.Unmarshal([]byte(stats.String), &rec.Stats); err != nil {
			return rec, fmt.Errorf("failed to decode demux stats for %s: %w", rec.ID, err)
		}
	}
	return rec, nil
}

// ListSessions returns the most recent sessions first. A non-positive limit
// returns all of them.
func (db *DB) ListSessions(ctx context.Context, limit int) ([]SessionRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions ORDER BY started_unix_nanos DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionRecord
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// GetSession loads one session summary by id.
func (db *DB) GetSession(ctx context.Context, id string) (SessionRecord, error) {
	row := db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE session_id = ?`, id)
	rec, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return rec, err
}

// SessionIMU returns the stored IMU records of a session in arrival order.
func (db *DB) SessionIMU(ctx context.Context, id string) ([]demux.IMUSample, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT accel_x, accel_y, accel_z, gyro_x, gyro_y, gyro_z, device_ms
		FROM imu_samples WHERE session_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query imu samples: %w", err)
	}
	defer rows.Close()

	var out []demux.IMUSample
	for rows.Next() {
		var (
			r  demux.IMUSample
			ts sql.NullInt64
		)
		if err := rows.Scan(&r.AccelX, &r.AccelY, &r.AccelZ, &r.GyroX, &r.GyroY, &r.GyroZ, &ts); err != nil {
			return nil, err
		}
		if ts.Valid {
			r.Timestamp = uint32(ts.Int64)
			r.HasTimestamp = true
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// DeleteSession removes a session and, by cascade, its IMU records.
func (db *DB) DeleteSession(ctx context.Context, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return nil
}
