// SPDX-License-Identifier: BSD-3-Clause

package retention

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pankha/pankha/internal/hub/license"
	"github.com/pankha/pankha/pkg/log"
	"github.com/pankha/pankha/pkg/wire"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "pankha.db")
	s, err := Open(dbPath, log.NewDefaultLogger())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestEnqueueAndRunPersistsReadings(t *testing.T) {
	s := openTestStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx)

	now := time.Now().Unix()
	s.Enqueue("agent-1",
		[]wire.SensorReading{{ID: "k10temp_1", Temperature: 55.5}},
		[]wire.FanReading{{ID: "fan1", RPM: 1200, Duty: 40}},
		now)

	require.Eventually(t, func() bool {
		points, err := s.QuerySensorHistory(context.Background(), "agent-1", "k10temp_1", now-10, now+10)
		return err == nil && len(points) == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
}

func TestEnqueueDropsOldestWhenQueueFull(t *testing.T) {
	s := openTestStore(t)

	for i := 0; i < queueCapacity+10; i++ {
		s.Enqueue("agent-1", []wire.SensorReading{{ID: "s", Temperature: float64(i)}}, nil, int64(i))
	}
	assert.LessOrEqual(t, len(s.queue), queueCapacity)
}

func TestDoRollupAndPruneRemovesOldRows(t *testing.T) {
	s := openTestStore(t)

	old := time.Now().Add(-30 * 24 * time.Hour).Unix()
	_, err := s.conn.Exec(`INSERT INTO sensor_raw (ts, agent_id, sensor_id, temperature) VALUES (?, ?, ?, ?)`,
		old, "agent-1", "k10temp_1", 60.0)
	require.NoError(t, err)

	s.doRollupAndPrune(license.Limits{Tier: license.TierFree, MaxAgents: 5, RetentionDays: 7})

	points, err := s.QuerySensorHistory(context.Background(), "agent-1", "k10temp_1", old-10, old+10)
	require.NoError(t, err)
	assert.Empty(t, points)
}

func TestDoRollupAndPruneSkipsPruneOnUnboundedRetention(t *testing.T) {
	s := openTestStore(t)

	old := time.Now().Add(-1000 * 24 * time.Hour).Unix()
	_, err := s.conn.Exec(`INSERT INTO sensor_raw (ts, agent_id, sensor_id, temperature) VALUES (?, ?, ?, ?)`,
		old, "agent-1", "k10temp_1", 60.0)
	require.NoError(t, err)

	s.doRollupAndPrune(license.Limits{Tier: license.TierEnterprise, MaxAgents: 0, RetentionDays: 0})

	points, err := s.QuerySensorHistory(context.Background(), "agent-1", "k10temp_1", old-10, old+10)
	require.NoError(t, err)
	assert.Len(t, points, 1)
}

func TestRollupSensorsTo1mAggregatesRawRows(t *testing.T) {
	s := openTestStore(t)

	base := (time.Now().Unix() / 60) * 60
	_, err := s.conn.Exec(`INSERT INTO sensor_raw (ts, agent_id, sensor_id, temperature) VALUES
		(?, 'agent-1', 'k10temp_1', 50), (?, 'agent-1', 'k10temp_1', 60)`, base-300, base-290)
	require.NoError(t, err)

	s.rollupSensorsTo1m(time.Now().Unix())

	var avg, max float64
	err = s.conn.QueryRow(`SELECT temperature_avg, temperature_max FROM sensor_1m WHERE agent_id='agent-1' AND sensor_id='k10temp_1'`).
		Scan(&avg, &max)
	require.NoError(t, err)
	assert.Equal(t, 55.0, avg)
	assert.Equal(t, 60.0, max)
}
