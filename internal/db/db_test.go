package db

import (
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/sensorfusion/internal/monitoring"
	"github.com/banshee-data/sensorfusion/internal/timeutil"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	monitoring.SetLogger(nil)
	db, err := NewDB(filepath.Join(t.TempDir(), "fusion.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestPragmasApplied(t *testing.T) {
	db := newTestDB(t)

	var journalMode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
	assert.Equal(t, "wal", journalMode)

	var busyTimeout int
	require.NoError(t, db.QueryRow("PRAGMA busy_timeout").Scan(&busyTimeout))
	assert.Equal(t, 5000, busyTimeout)

	var synchronous int
	require.NoError(t, db.QueryRow("PRAGMA synchronous").Scan(&synchronous))
	assert.Equal(t, 1, synchronous, "NORMAL")

	var foreignKeys int
	require.NoError(t, db.QueryRow("PRAGMA foreign_keys").Scan(&foreignKeys))
	assert.Equal(t, 1, foreignKeys)
}

func TestMigrationsApplied(t *testing.T) {
	db := newTestDB(t)

	version, dirty, err := db.MigrateVersion(MigrationsFS())
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)

	for _, table := range []string{"fusion_runs", "fusion_estimates"} {
		var n int
		require.NoError(t, db.QueryRow(
			"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&n))
		assert.Equal(t, 1, n, table)
	}

	// Re-running is a no-op.
	require.NoError(t, db.MigrateUp(MigrationsFS()))
}

func TestMigrateDown(t *testing.T) {
	db := newTestDB(t)

	require.NoError(t, db.MigrateDown(MigrationsFS()))
	version, _, err := db.MigrateVersion(MigrationsFS())
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)

	var n int
	require.NoError(t, db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='fusion_estimates'",
	).Scan(&n))
	assert.Equal(t, 0, n)
}

func TestMigrateVersionBeforeMigrations(t *testing.T) {
	monitoring.SetLogger(nil)
	db, err := OpenDB(filepath.Join(t.TempDir(), "empty.db"))
	require.NoError(t, err)
	defer db.Close()

	migrations := fstest.MapFS{
		"000001_init.up.sql":   &fstest.MapFile{Data: []byte("CREATE TABLE IF NOT EXISTS t1 (id INTEGER PRIMARY KEY);")},
		"000001_init.down.sql": &fstest.MapFile{Data: []byte("DROP TABLE IF EXISTS t1;")},
	}
	version, dirty, err := db.MigrateVersion(migrations)
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)
	assert.False(t, dirty)

	require.NoError(t, db.MigrateUp(migrations))
	version, _, err = db.MigrateVersion(migrations)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
}

func TestMigrateUpClosedDB(t *testing.T) {
	monitoring.SetLogger(nil)
	db, err := OpenDB(filepath.Join(t.TempDir(), "closed.db"))
	require.NoError(t, err)
	db.Close()

	err = db.MigrateUp(MigrationsFS())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create sqlite driver")
}

func TestRunLifecycle(t *testing.T) {
	db := newTestDB(t)

	run, err := db.CreateRun("file:obj_pose.txt", []byte(`{"std_a":1.5}`))
	require.NoError(t, err)
	_, err = uuid.Parse(run.RunID)
	require.NoError(t, err, "run IDs are UUIDs")
	assert.NotZero(t, run.StartedUnixUS)

	got, err := db.GetRun(run.RunID)
	require.NoError(t, err)
	assert.Equal(t, "file:obj_pose.txt", got.Source)
	assert.JSONEq(t, `{"std_a":1.5}`, string(got.ConfigJSON))
	assert.Zero(t, got.FinishedUnixUS)
	assert.Nil(t, got.RMSE)

	rmse := [4]float64{0.07, 0.08, 0.3, 0.25}
	require.NoError(t, db.FinishRun(run.RunID, &rmse))

	got, err = db.GetRun(run.RunID)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, got.FinishedUnixUS, got.StartedUnixUS)
	require.NotNil(t, got.RMSE)
	assert.Equal(t, rmse, *got.RMSE)

	runs, err := db.ListRuns()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.RunID, runs[0].RunID)
}

func TestRunTimestampsUseClock(t *testing.T) {
	db := newTestDB(t)
	start := time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC)
	clock := timeutil.NewMockClock(start)
	db.SetClock(clock)

	run, err := db.CreateRun("replay.txt", nil)
	require.NoError(t, err)
	assert.Equal(t, start.UnixMicro(), run.StartedUnixUS)

	clock.Advance(90 * time.Second)
	require.NoError(t, db.FinishRun(run.RunID, nil))

	got, err := db.GetRun(run.RunID)
	require.NoError(t, err)
	assert.Equal(t, start.UnixMicro(), got.StartedUnixUS)
	assert.Equal(t, start.Add(90*time.Second).UnixMicro(), got.FinishedUnixUS)
}

func TestFinishRunWithoutGroundTruth(t *testing.T) {
	db := newTestDB(t)

	run, err := db.CreateRun("udp::9000", nil)
	require.NoError(t, err)
	require.NoError(t, db.FinishRun(run.RunID, nil))

	got, err := db.GetRun(run.RunID)
	require.NoError(t, err)
	assert.Nil(t, got.RMSE)
	assert.Nil(t, got.ConfigJSON)
	assert.NotZero(t, got.FinishedUnixUS)
}

func TestUnknownRun(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetRun("missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
	assert.ErrorIs(t, db.FinishRun("missing", nil), ErrRunNotFound)
}

func TestRecordAndListEstimates(t *testing.T) {
	db := newTestDB(t)

	run, err := db.CreateRun("test", nil)
	require.NoError(t, err)

	nis := 1.25
	gt := [4]float64{1, 2, 3, 4}
	estimates := []Estimate{
		{RunID: run.RunID, Seq: 1, TimestampUS: 100, Sensor: "laser", PX: 1, PY: 2},
		{RunID: run.RunID, Seq: 2, TimestampUS: 200, Sensor: "radar", PX: 1.1, PY: 2.1, V: 3, Yaw: 0.2, YawRate: 0.01, NIS: &nis, GroundTruth: &gt},
	}
	// Insert out of order to check ordering on read.
	require.NoError(t, db.RecordEstimate(&estimates[1]))
	require.NoError(t, db.RecordEstimate(&estimates[0]))

	got, err := db.ListEstimates(run.RunID)
	require.NoError(t, err)
	assert.Equal(t, estimates, got)

	err = db.RecordEstimate(&estimates[0])
	assert.Error(t, err, "duplicate sequence numbers are rejected")

	err = db.RecordEstimate(&Estimate{RunID: "no-such-run", Seq: 1, Sensor: "laser"})
	assert.Error(t, err, "estimates must belong to a run")

	none, err := db.ListEstimates("no-such-run")
	require.NoError(t, err)
	assert.Empty(t, none)
}
