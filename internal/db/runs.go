package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrRunNotFound is returned when a run ID has no row.
var ErrRunNotFound = errors.New("fusion run not found")

// Run is one pass of the filter over a measurement source.
type Run struct {
	RunID          string          `json:"run_id"`
	Source         string          `json:"source"`
	ConfigJSON     json.RawMessage `json:"config_json,omitempty"`
	StartedUnixUS  int64           `json:"started_unix_us"`
	FinishedUnixUS int64           `json:"finished_unix_us,omitempty"` // 0 while running

	// RMSE is [px, py, vx, vy]; nil when the source carried no ground truth.
	RMSE *[4]float64 `json:"rmse,omitempty"`
}

// Estimate is the filter output after one reading.
type Estimate struct {
	RunID       string   `json:"run_id"`
	Seq         int      `json:"seq"`
	TimestampUS int64    `json:"timestamp_us"`
	Sensor      string   `json:"sensor"`
	PX          float64  `json:"px"`
	PY          float64  `json:"py"`
	V           float64  `json:"v"`
	Yaw         float64  `json:"yaw"`
	YawRate     float64  `json:"yawd"`
	NIS         *float64 `json:"nis,omitempty"` // nil when no correction ran

	// GroundTruth is [px, py, vx, vy] when the reading carried it.
	GroundTruth *[4]float64 `json:"ground_truth,omitempty"`
}

// CreateRun inserts a new run and returns it. The run ID is a fresh UUID.
func (db *DB) CreateRun(source string, configJSON []byte) (*Run, error) {
	run := &Run{
		RunID:         uuid.New().String(),
		Source:        source,
		ConfigJSON:    configJSON,
		StartedUnixUS: db.clock.Now().UnixMicro(),
	}

	var cfg interface{}
	if len(configJSON) > 0 {
		cfg = string(configJSON)
	}

	_, err := db.Exec(`
		INSERT INTO fusion_runs (run_id, source, config_json, started_unix_us)
		VALUES (?, ?, ?, ?)`,
		run.RunID, run.Source, cfg, run.StartedUnixUS,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	return run, nil
}

// RecordEstimate stores one estimate. (run_id, seq) must be unique.
func (db *DB) RecordEstimate(e *Estimate) error {
	var gt [4]interface{}
	if e.GroundTruth != nil {
		for i, v := range e.GroundTruth {
			gt[i] = v
		}
	}
	var nis interface{}
	if e.NIS != nil {
		nis = *e.NIS
	}

	_, err := db.Exec(`
		INSERT INTO fusion_estimates (
			run_id, seq, timestamp_us, sensor, px, py, v, yaw, yawd, nis,
			gt_px, gt_py, gt_vx, gt_vy
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.RunID, e.Seq, e.TimestampUS, e.Sensor, e.PX, e.PY, e.V, e.Yaw, e.YawRate, nis,
		gt[0], gt[1], gt[2], gt[3],
	)
	if err != nil {
		return fmt.Errorf("failed to insert estimate %d: %w", e.Seq, err)
	}
	return nil
}

// FinishRun stamps the finish time and stores the RMSE, which may be nil.
func (db *DB) FinishRun(runID string, rmse *[4]float64) error {
	var vals [4]interface{}
	if rmse != nil {
		for i, v := range rmse {
			vals[i] = v
		}
	}

	res, err := db.Exec(`
		UPDATE fusion_runs
		SET finished_unix_us = ?, rmse_px = ?, rmse_py = ?, rmse_vx = ?, rmse_vy = ?
		WHERE run_id = ?`,
		db.clock.Now().UnixMicro(), vals[0], vals[1], vals[2], vals[3], runID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish %s: %w", runID, ErrRunNotFound)
	}
	return nil
}

// GetRun returns a single run by ID.
func (db *DB) GetRun(runID string) (*Run, error) {
	row := db.QueryRow(`
		SELECT run_id, source, config_json, started_unix_us, finished_unix_us,
		       rmse_px, rmse_py, rmse_vx, rmse_vy
		FROM fusion_runs
		WHERE run_id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get %s: %w", runID, ErrRunNotFound)
	}
	return run, err
}

// ListRuns returns all runs, most recent first.
func (db *DB) ListRuns() ([]*Run, error) {
	rows, err := db.Query(`
		SELECT run_id, source, config_json, started_unix_us, finished_unix_us,
		       rmse_px, rmse_py, rmse_vx, rmse_vy
		FROM fusion_runs
		ORDER BY started_unix_us DESC`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// ListEstimates returns the estimates of a run in sequence order.
func (db *DB) ListEstimates(runID string) ([]Estimate, error) {
	rows, err := db.Query(`
		SELECT run_id, seq, timestamp_us, sensor, px, py, v, yaw, yawd, nis,
		       gt_px, gt_py, gt_vx, gt_vy
		FROM fusion_estimates
		WHERE run_id = ?
		ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("query estimates: %w", err)
	}
	defer rows.Close()

	var out []Estimate
	for rows.Next() {
		var (
			e   Estimate
			nis sql.NullFloat64
			gt  [4]sql.NullFloat64
		)
		if err := rows.Scan(
			&e.RunID, &e.Seq, &e.TimestampUS, &e.Sensor,
			&e.PX, &e.PY, &e.V, &e.Yaw, &e.YawRate, &nis,
			&gt[0], &gt[1], &gt[2], &gt[3],
		); err != nil {
			return nil, fmt.Errorf("scan estimate: %w", err)
		}
		if nis.Valid {
			v := nis.Float64
			e.NIS = &v
		}
		e.GroundTruth = nullQuad(gt)
		out = append(out, e)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		run      Run
		cfg      sql.NullString
		finished sql.NullInt64
		rmse     [4]sql.NullFloat64
	)
	if err := row.Scan(
		&run.RunID, &run.Source, &cfg, &run.StartedUnixUS, &finished,
		&rmse[0], &rmse[1], &rmse[2], &rmse[3],
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	if cfg.Valid {
		run.ConfigJSON = json.RawMessage(cfg.String)
	}
	run.FinishedUnixUS = finished.Int64
	run.RMSE = nullQuad(rmse)
	return &run, nil
}

// nullQuad returns nil unless all four values are present.
func nullQuad(v [4]sql.NullFloat64) *[4]float64 {
	var out [4]float64
	for i, n := range v {
		if !n.Valid {
			return nil
		}
		out[i] = n.Float64
	}
	return &out
}
