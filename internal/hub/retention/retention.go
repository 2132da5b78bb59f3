// SPDX-License-Identifier: BSD-3-Clause

// Package retention implements the hub's byte-addressable retention sink
// (spec.md §4.5/§6, supplemented by SPEC_FULL.md §6.8): a sqlite-backed
// store of sensor and fan history with raw, 1-minute-rollup, and
// 1-hour-rollup tables, pruned on a ticker driven by the active license
// tier's retention window. The rollup-then-prune shape is grounded on
// cudascope's internal/storage/retention.go, generalized from GPU/host
// metrics to Pankha's sensor/fan telemetry; the bounded ingest queue with
// drop-oldest overflow exists so a slow or stalled sink never backs up the
// dispatcher's hot broadcast path (spec.md §5 "agent fidelity is not
// affected by sink slowness").
package retention

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pankha/pankha/internal/hub/license"
	"github.com/pankha/pankha/pkg/wire"
)

const schema = `
CREATE TABLE IF NOT EXISTS sensor_raw (
	ts INTEGER NOT NULL, agent_id TEXT NOT NULL, sensor_id TEXT NOT NULL, temperature REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sensor_raw_ts ON sensor_raw(ts);
CREATE INDEX IF NOT EXISTS idx_sensor_raw_lookup ON sensor_raw(agent_id, sensor_id, ts);

CREATE TABLE IF NOT EXISTS sensor_1m (
	ts INTEGER NOT NULL, agent_id TEXT NOT NULL, sensor_id TEXT NOT NULL,
	temperature_avg REAL NOT NULL, temperature_max REAL NOT NULL,
	PRIMARY KEY (ts, agent_id, sensor_id)
);
CREATE TABLE IF NOT EXISTS sensor_1h (
	ts INTEGER NOT NULL, agent_id TEXT NOT NULL, sensor_id TEXT NOT NULL,
	temperature_avg REAL NOT NULL, temperature_max REAL NOT NULL,
	PRIMARY KEY (ts, agent_id, sensor_id)
);

CREATE TABLE IF NOT EXISTS fan_raw (
	ts INTEGER NOT NULL, agent_id TEXT NOT NULL, fan_id TEXT NOT NULL, rpm INTEGER NOT NULL, duty INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_fan_raw_ts ON fan_raw(ts);
CREATE INDEX IF NOT EXISTS idx_fan_raw_lookup ON fan_raw(agent_id, fan_id, ts);

CREATE TABLE IF NOT EXISTS fan_1m (
	ts INTEGER NOT NULL, agent_id TEXT NOT NULL, fan_id TEXT NOT NULL,
	rpm_avg REAL NOT NULL, rpm_max INTEGER NOT NULL, duty_avg REAL NOT NULL, duty_max INTEGER NOT NULL,
	PRIMARY KEY (ts, agent_id, fan_id)
);
CREATE TABLE IF NOT EXISTS fan_1h (
	ts INTEGER NOT NULL, agent_id TEXT NOT NULL, fan_id TEXT NOT NULL,
	rpm_avg REAL NOT NULL, rpm_max INTEGER NOT NULL, duty_avg REAL NOT NULL, duty_max INTEGER NOT NULL,
	PRIMARY KEY (ts, agent_id, fan_id)
);
`

const (
	queueCapacity  = 2048
	batchSize      = 200
	flushInterval  = 2 * time.Second
	rollupInterval = 60 * time.Second
)

// sample is one agent's telemetry tick, timestamped at enqueue time.
type sample struct {
	ts      int64
	agentID string
	sensors []wire.SensorReading
	fans    []wire.FanReading
}

// Store is the hub's sqlite-backed retention sink.
type Store struct {
	conn   *sql.DB
	wmu    sync.Mutex // serializes writes, mirroring sqlite's single-writer model
	logger *slog.Logger

	queue chan sample
}

// Open creates or opens the sqlite database at dbPath and applies the
// schema. dbPath's parent directory is created if missing.
func Open(dbPath string, logger *slog.Logger) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: create data dir: %w", ErrOpenFailed, err)
		}
	}

	conn, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpenFailed, err)
	}
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: migrate: %w", ErrOpenFailed, err)
	}

	return &Store{
		conn:   conn,
		logger: logger,
		queue:  make(chan sample, queueCapacity),
	}, nil
}

// Close stops accepting writes and closes the underlying connection. Run
// should have already returned (via context cancellation) before Close is
// called, or queued samples may be lost.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Enqueue admits one agent's telemetry tick for eventual persistence. It
// never blocks: if the queue is full, the oldest queued sample is dropped
// to admit the new one, so a stalled sink degrades retention fidelity
// rather than backpressuring the caller's hot path.
func (s *Store) Enqueue(agentID string, sensors []wire.SensorReading, fans []wire.FanReading, ts int64) {
	smp := sample{ts: ts, agentID: agentID, sensors: sensors, fans: fans}
	select {
	case s.queue <- smp:
	default:
		select {
		case <-s.queue:
		default:
		}
		select {
		case s.queue <- smp:
		default:
			s.logger.Warn("retention queue full, dropped sample", "agentId", agentID)
		}
	}
}

// Run drains the ingest queue in batches until ctx is canceled. Call it
// from its own goroutine.
func (s *Store) Run(ctx context.Context) {
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]sample, 0, batchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := s.writeBatch(batch); err != nil {
			s.logger.Error("retention batch write failed", "error", err)
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case smp := <-s.queue:
			batch = append(batch, smp)
			if len(batch) >= batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

// writeBatch persists a batch of samples inside a single transaction,
// following cudascope's WriteGPUMetrics prepare-once-exec-many pattern.
func (s *Store) writeBatch(batch []sample) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("%w: begin tx: %w", ErrWriteFailed, err)
	}
	defer tx.Rollback()

	sensorStmt, err := tx.Prepare(`INSERT INTO sensor_raw (ts, agent_id, sensor_id, temperature) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("%w: prepare sensor insert: %w", ErrWriteFailed, err)
	}
	defer sensorStmt.Close()

	fanStmt, err := tx.Prepare(`INSERT INTO fan_raw (ts, agent_id, fan_id, rpm, duty) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("%w: prepare fan insert: %w", ErrWriteFailed, err)
	}
	defer fanStmt.Close()

	for _, smp := range batch {
		for _, reading := range smp.sensors {
			if _, err := sensorStmt.Exec(smp.ts, smp.agentID, reading.ID, reading.Temperature); err != nil {
				return fmt.Errorf("%w: exec sensor insert: %w", ErrWriteFailed, err)
			}
		}
		for _, reading := range smp.fans {
			if _, err := fanStmt.Exec(smp.ts, smp.agentID, reading.ID, reading.RPM, reading.Duty); err != nil {
				return fmt.Errorf("%w: exec fan insert: %w", ErrWriteFailed, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", ErrWriteFailed, err)
	}
	return nil
}

// RunRollupAndPrune starts the background rollup/prune loop, consulting
// oracle on every tick so a mid-flight license change takes effect without
// a restart. It blocks until ctx is canceled.
func (s *Store) RunRollupAndPrune(ctx context.Context, oracle license.Oracle) {
	ticker := time.NewTicker(rollupInterval)
	defer ticker.Stop()

	s.doRollupAndPrune(oracle.CurrentLimits())

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.doRollupAndPrune(oracle.CurrentLimits())
		}
	}
}

func (s *Store) doRollupAndPrune(limits license.Limits) {
	now := time.Now().Unix()

	s.rollupSensorsTo1m(now - 120)
	s.rollupFansTo1m(now - 120)
	s.rollupSensorsTo1h(now - 7200)
	s.rollupFansTo1h(now - 7200)

	if limits.RetentionDays <= 0 {
		return
	}
	cutoff := now - int64(limits.RetentionDays)*86400
	for _, table := range []string{"sensor_raw", "sensor_1m", "sensor_1h", "fan_raw", "fan_1m", "fan_1h"} {
		s.prune(table, cutoff)
	}
}

func (s *Store) rollupSensorsTo1m(beforeTs int64) {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	var lastRolled int64
	s.conn.QueryRow("SELECT COALESCE(MAX(ts), 0) FROM sensor_1m").Scan(&lastRolled)

	_, err := s.conn.Exec(`
		INSERT OR REPLACE INTO sensor_1m (ts, agent_id, sensor_id, temperature_avg, temperature_max)
		SELECT (ts / 60) * 60 AS minute_ts, agent_id, sensor_id, AVG(temperature), MAX(temperature)
		FROM sensor_raw
		WHERE ts > ? AND ts <= ?
		GROUP BY minute_ts, agent_id, sensor_id
	`, lastRolled, beforeTs)
	if err != nil {
		s.logger.Error("sensor rollup to 1m failed", "error", err)
	}
}

func (s *Store) rollupSensorsTo1h(beforeTs int64) {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	var lastRolled int64
	s.conn.QueryRow("SELECT COALESCE(MAX(ts), 0) FROM sensor_1h").Scan(&lastRolled)

	_, err := s.conn.Exec(`
		INSERT OR REPLACE INTO sensor_1h (ts, agent_id, sensor_id, temperature_avg, temperature_max)
		SELECT (ts / 3600) * 3600 AS hour_ts, agent_id, sensor_id, AVG(temperature_avg), MAX(temperature_max)
		FROM sensor_1m
		WHERE ts > ? AND ts <= ?
		GROUP BY hour_ts, agent_id, sensor_id
	`, lastRolled, beforeTs)
	if err != nil {
		s.logger.Error("sensor rollup to 1h failed", "error", err)
	}
}

func (s *Store) rollupFansTo1m(beforeTs int64) {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	var lastRolled int64
	s.conn.QueryRow("SELECT COALESCE(MAX(ts), 0) FROM fan_1m").Scan(&lastRolled)

	_, err := s.conn.Exec(`
		INSERT OR REPLACE INTO fan_1m (ts, agent_id, fan_id, rpm_avg, rpm_max, duty_avg, duty_max)
		SELECT (ts / 60) * 60 AS minute_ts, agent_id, fan_id, AVG(rpm), MAX(rpm), AVG(duty), MAX(duty)
		FROM fan_raw
		WHERE ts > ? AND ts <= ?
		GROUP BY minute_ts, agent_id, fan_id
	`, lastRolled, beforeTs)
	if err != nil {
		s.logger.Error("fan rollup to 1m failed", "error", err)
	}
}

func (s *Store) rollupFansTo1h(beforeTs int64) {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	var lastRolled int64
	s.conn.QueryRow("SELECT COALESCE(MAX(ts), 0) FROM fan_1h").Scan(&lastRolled)

	_, err := s.conn.Exec(`
		INSERT OR REPLACE INTO fan_1h (ts, agent_id, fan_id, rpm_avg, rpm_max, duty_avg, duty_max)
		SELECT (ts / 3600) * 3600 AS hour_ts, agent_id, fan_id, AVG(rpm_avg), MAX(rpm_max), AVG(duty_avg), MAX(duty_max)
		FROM fan_1m
		WHERE ts > ? AND ts <= ?
		GROUP BY hour_ts, agent_id, fan_id
	`, lastRolled, beforeTs)
	if err != nil {
		s.logger.Error("fan rollup to 1h failed", "error", err)
	}
}

func (s *Store) prune(table string, beforeTs int64) {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	result, err := s.conn.Exec("DELETE FROM "+table+" WHERE ts < ?", beforeTs)
	if err != nil {
		s.logger.Error("prune failed", "table", table, "error", err)
		return
	}
	if rows, _ := result.RowsAffected(); rows > 0 {
		s.logger.Debug("pruned rows", "table", table, "rows", rows)
	}
}

// QuerySensorHistory returns raw sensor_raw rows for one sensor within
// [since, until], ordered by timestamp. Intended for the REST history
// endpoint; rollup-table queries are added as the UI's history range
// selector needs them.
func (s *Store) QuerySensorHistory(ctx context.Context, agentID, sensorID string, since, until int64) ([]SensorPoint, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT ts, temperature FROM sensor_raw WHERE agent_id = ? AND sensor_id = ? AND ts >= ? AND ts <= ? ORDER BY ts`,
		agentID, sensorID, since, until)
	if err != nil {
		return nil, fmt.Errorf("query sensor history: %w", err)
	}
	defer rows.Close()

	var out []SensorPoint
	for rows.Next() {
		var p SensorPoint
		if err := rows.Scan(&p.Timestamp, &p.Temperature); err != nil {
			return nil, fmt.Errorf("scan sensor history row: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SensorPoint is one historical sensor reading.
type SensorPoint struct {
	Timestamp   int64   `json:"ts"`
	Temperature float64 `json:"temperature"`
}
