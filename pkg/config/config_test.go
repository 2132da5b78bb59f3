// SPDX-License-Identifier: BSD-3-Clause

package config

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSynthesizesDefaultWhenMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agent.json")

	cfg, err := Load(path, "agent-1", "test-host")
	require.NoError(t, err)
	assert.Equal(t, "agent-1", cfg.Agent.ID)
	assert.True(t, cfg.Hardware.EnableFanControl)

	reloaded, err := Load(path, "agent-1", "test-host")
	require.NoError(t, err)
	assert.Equal(t, cfg.Agent.ID, reloaded.Agent.ID)
}

func TestRoundTripSerialization(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agent.json")

	cfg, err := Load(path, "agent-1", "test-host")
	require.NoError(t, err)

	data, err := json.Marshal(cfg)
	require.NoError(t, err)

	var decoded AgentConfig
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, cfg.Agent, decoded.Agent)
	assert.Equal(t, cfg.Backend, decoded.Backend)
	assert.Equal(t, cfg.Hardware, decoded.Hardware)
	assert.Equal(t, cfg.Logging, decoded.Logging)
}

func TestMutateRejectsOutOfRangeAndLeavesConfigUnchanged(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agent.json")
	cfg, err := Load(path, "agent-1", "test-host")
	require.NoError(t, err)

	before := cfg.Snapshot()

	err = cfg.Mutate(func(c *AgentConfig) {
		c.Hardware.EmergencyTemp = 200
	})
	require.Error(t, err)

	after := cfg.Snapshot()
	assert.Equal(t, before.Hardware.EmergencyTemp, after.Hardware.EmergencyTemp)
}

func TestMutateAcceptsValidChangeAndPersists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agent.json")
	cfg, err := Load(path, "agent-1", "test-host")
	require.NoError(t, err)

	err = cfg.Mutate(func(c *AgentConfig) {
		c.Hardware.FanStepPercent = 10
	})
	require.NoError(t, err)

	reloaded, err := Load(path, "agent-1", "test-host")
	require.NoError(t, err)
	assert.Equal(t, 10, reloaded.Hardware.FanStepPercent)
}

func TestValidateRejectsInvalidFanStep(t *testing.T) {
	cfg := Default("agent-1", "test-host")
	cfg.Hardware.FanStepPercent = 7
	require.Error(t, cfg.Validate())
}
