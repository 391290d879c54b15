package db

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/sensorlink/internal/demux"
	"github.com/banshee-data/sensorlink/internal/monitoring"
	"github.com/banshee-data/sensorlink/internal/session"
)

func init() {
	monitoring.Mute()
}

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := NewDB(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

func testSession(id string, started time.Time) *session.Session {
	return &session.Session{
		ID:            id,
		Source:        "tcp://127.0.0.1:8088",
		Format:        demux.MarkerFormat(4),
		Started:       started,
		Target:        10 * time.Second,
		Duration:      2 * time.Second,
		EndReason:     session.EndDuration,
		BytesReceived: 4096,
		Chunks:        3,
		Timeouts:      1,
		Audio:         []int32{1, -2, 3, -4},
		IMU: []demux.IMUSample{
			{AccelX: 0.1, AccelY: 0.2, AccelZ: 1, GyroX: 0.01, GyroY: 0.02, GyroZ: 0.03},
			{AccelX: 0.2, AccelY: 0.3, AccelZ: 0.9, GyroX: -0.01, Timestamp: 1500, HasTimestamp: true},
		},
		Stats: demux.Stats{BytesFed: 4096, AudioSamples: 4, IMURecords: 2, ResyncBytes: 7},
	}
}

func TestNewDB_AppliesMigrations(t *testing.T) {
	database := setupTestDB(t)

	version, dirty, err := database.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)

	// Running again is a no-op.
	require.NoError(t, database.MigrateUp())
}

func TestOpenDB_NoSchema(t *testing.T) {
	database, err := OpenDB(filepath.Join(t.TempDir(), "empty.db"))
	require.NoError(t, err)
	defer database.Close()

	version, dirty, err := database.MigrateVersion()
	require.NoError(t, err)
	assert.Zero(t, version)
	assert.False(t, dirty)

	var n int
	require.NoError(t, database.QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='sessions'`).Scan(&n))
	assert.Zero(t, n)
}

func TestMigrateDown(t *testing.T) {
	database := setupTestDB(t)
	require.NoError(t, database.MigrateDown())

	version, _, err := database.MigrateVersion()
	require.NoError(t, err)
	assert.Zero(t, version)

	var n int
	require.NoError(t, database.QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name IN ('sessions', 'imu_samples')`).Scan(&n))
	assert.Zero(t, n)
}

func TestMigrateUp_ClosedDB(t *testing.T) {
	database, err := OpenDB(filepath.Join(t.TempDir(), "closed.db"))
	require.NoError(t, err)
	require.NoError(t, database.Close())

	assert.Error(t, database.MigrateUp())
}

func TestMigrationsFS(t *testing.T) {
	data, err := MigrationsFS().Open("migrations/000001_create_sessions.up.sql")
	require.NoError(t, err)
	defer data.Close()
	body, err := io.ReadAll(data)
	require.NoError(t, err)
	assert.Contains(t, string(body), "CREATE TABLE IF NOT EXISTS sessions")
}

func TestRecordSession_RoundTrip(t *testing.T) {
	database := setupTestDB(t)
	ctx := context.Background()
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := testSession("a", started)

	require.NoError(t, database.RecordSession(ctx, s))

	rec, err := database.GetSession(ctx, "a")
	require.NoError(t, err)
	want := SessionRecord{
		ID:            "a",
		Source:        s.Source,
		Format:        s.Format.String(),
		Started:       started,
		Target:        10 * time.Second,
		Duration:      2 * time.Second,
		EndReason:     "duration",
		BytesReceived: 4096,
		Chunks:        3,
		Timeouts:      1,
		AudioSamples:  4,
		IMURecords:    2,
		AudioRate:     2,
		IMURate:       1,
		Stats:         s.Stats,
	}
	if diff := cmp.Diff(want, rec); diff != "" {
		t.Errorf("GetSession mismatch (-want +got):\n%s", diff)
	}

	imu, err := database.SessionIMU(ctx, "a")
	require.NoError(t, err)
	if diff := cmp.Diff(s.IMU, imu); diff != "" {
		t.Errorf("SessionIMU mismatch (-want +got):\n%s", diff)
	}
}

func TestRecordSession_StoresTransportError(t *testing.T) {
	database := setupTestDB(t)
	ctx := context.Background()
	s := testSession("err", time.Unix(100, 0))
	s.EndReason = session.EndTransportError
	s.Err = errors.New("connection reset by peer")
	s.IMU = nil

	require.NoError(t, database.RecordSession(ctx, s))

	rec, err := database.GetSession(ctx, "err")
	require.NoError(t, err)
	assert.Equal(t, "transport-error", rec.EndReason)
	assert.Equal(t, "connection reset by peer", rec.Error)
	assert.Zero(t, rec.IMURecords)

	imu, err := database.SessionIMU(ctx, "err")
	require.NoError(t, err)
	assert.Empty(t, imu)
}

func TestRecordSession_Errors(t *testing.T) {
	database := setupTestDB(t)
	ctx := context.Background()

	assert.Error(t, database.RecordSession(ctx, nil))
	assert.Error(t, database.RecordSession(ctx, &session.Session{}))

	s := testSession("dup", time.Unix(1, 0))
	require.NoError(t, database.RecordSession(ctx, s))
	require.Error(t, database.RecordSession(ctx, s))

	// The failed duplicate must not leave extra IMU rows behind.
	imu, err := database.SessionIMU(ctx, "dup")
	require.NoError(t, err)
	assert.Len(t, imu, 2)
}

func TestListSessions(t *testing.T) {
	database := setupTestDB(t)
	ctx := context.Background()
	base := time.Unix(1_700_000_000, 0)
	for i, id := range []string{"first", "second", "third"} {
		require.NoError(t, database.RecordSession(ctx, testSession(id, base.Add(time.Duration(i)*time.Minute))))
	}

	tests := []struct {
		name  string
		limit int
		want  []string
	}{
		{"all", 0, []string{"third", "second", "first"}},
		{"negative", -5, []string{"third", "second", "first"}},
		{"limited", 2, []string{"third", "second"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs, err := database.ListSessions(ctx, tt.limit)
			require.NoError(t, err)
			var ids []string
			for _, r := range recs {
				ids = append(ids, r.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestGetSession_NotFound(t *testing.T) {
	database := setupTestDB(t)
	_, err := database.GetSession(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestDeleteSession_Cascades(t *testing.T) {
	database := setupTestDB(t)
	ctx := context.Background()
	require.NoError(t, database.RecordSession(ctx, testSession("gone", time.Unix(5, 0))))

	require.NoError(t, database.DeleteSession(ctx, "gone"))

	var n int
	require.NoError(t, database.QueryRow(`SELECT COUNT(*) FROM imu_samples WHERE session_id = 'gone'`).Scan(&n))
	assert.Zero(t, n)
	assert.ErrorIs(t, database.DeleteSession(ctx, "gone"), ErrSessionNotFound)
}
