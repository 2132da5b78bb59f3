// SPDX-License-Identifier: BSD-3-Clause

package session

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pankha/pankha/internal/agent/control"
	"github.com/pankha/pankha/internal/agent/hardware"
	"github.com/pankha/pankha/pkg/config"
	"github.com/pankha/pankha/pkg/log"
	"github.com/pankha/pankha/pkg/wire"
)

func newTestSession(t *testing.T) (*Session, *control.Engine, *config.AgentConfig) {
	t.Helper()

	mock := hardware.NewMockController()
	cfg, err := config.Load(filepath.Join(t.TempDir(), "agent.json"), "agent-1", "Test Agent")
	require.NoError(t, err)

	eng, err := control.NewEngine(mock, cfg)
	require.NoError(t, err)
	require.NoError(t, eng.Start(context.Background()))

	sess, err := New("agent-1", "Test Agent", "ws://example.invalid/ws/agent", cfg, eng, mock, log.NewDefaultLogger())
	require.NoError(t, err)

	return sess, eng, cfg
}

func rawPayload(t *testing.T, v any) json.RawMessage {
	t.Helper()
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestHandleCommandSetFanSpeedAppliesManualOverride(t *testing.T) {
	sess, eng, _ := newTestSession(t)
	ctx := context.Background()
	_, err := eng.Tick(ctx) // populate knownFans
	require.NoError(t, err)

	resp := sess.handleCommand(ctx, rawFrame{
		CommandID: "cmd-1",
		Command:   wire.CommandSetFanSpeed,
		Payload:   rawPayload(t, wire.SetFanSpeedPayload{FanID: "mock_fan1", Speed: 55}),
	})

	assert.True(t, resp.Success)
	assert.Equal(t, "cmd-1", resp.CommandID)
}

func TestHandleCommandSetFanSpeedUnknownFanFails(t *testing.T) {
	sess, eng, _ := newTestSession(t)
	ctx := context.Background()
	_, err := eng.Tick(ctx)
	require.NoError(t, err)

	resp := sess.handleCommand(ctx, rawFrame{
		CommandID: "cmd-2",
		Command:   wire.CommandSetFanSpeed,
		Payload:   rawPayload(t, wire.SetFanSpeedPayload{FanID: "does_not_exist", Speed: 55}),
	})

	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Error)
}

func TestHandleCommandEmergencyStopAndClear(t *testing.T) {
	sess, eng, _ := newTestSession(t)
	ctx := context.Background()

	resp := sess.handleCommand(ctx, rawFrame{CommandID: "cmd-3", Command: wire.CommandEmergencyStop})
	assert.True(t, resp.Success)
	assert.Equal(t, "emergency", eng.Mode())

	resp = sess.handleCommand(ctx, rawFrame{CommandID: "cmd-4", Command: wire.CommandClearEmergency})
	assert.True(t, resp.Success)
}

func TestHandleCommandSetHysteresisMutatesConfig(t *testing.T) {
	sess, _, cfg := newTestSession(t)
	ctx := context.Background()

	resp := sess.handleCommand(ctx, rawFrame{
		CommandID: "cmd-5",
		Command:   wire.CommandSetHysteresis,
		Payload:   rawPayload(t, wire.SetHysteresisPayload{Hysteresis: 4}),
	})

	assert.True(t, resp.Success)
	assert.Equal(t, 4.0, cfg.Snapshot().Hardware.HysteresisTemp)
}

func TestHandleCommandSetHysteresisRejectsOutOfRange(t *testing.T) {
	sess, _, _ := newTestSession(t)
	ctx := context.Background()

	resp := sess.handleCommand(ctx, rawFrame{
		CommandID: "cmd-6",
		Command:   wire.CommandSetHysteresis,
		Payload:   rawPayload(t, wire.SetHysteresisPayload{Hysteresis: 50}),
	})

	assert.False(t, resp.Success)
}

func TestHandleCommandUnknownCommandFails(t *testing.T) {
	sess, _, _ := newTestSession(t)
	ctx := context.Background()

	resp := sess.handleCommand(ctx, rawFrame{CommandID: "cmd-7", Command: "notACommand"})
	assert.False(t, resp.Success)
}

func TestHandleCommandSelfUpdateFailsWhenHubUnreachable(t *testing.T) {
	sess, _, _ := newTestSession(t)
	ctx := context.Background()

	resp := sess.handleCommand(ctx, rawFrame{
		CommandID: "cmd-8",
		Command:   wire.CommandSelfUpdate,
		Payload:   rawPayload(t, wire.SelfUpdatePayload{Hash: "deadbeef"}),
	})

	assert.False(t, resp.Success)
}

func TestResolveBinaryURLRewritesSchemeAndPath(t *testing.T) {
	sess, _, _ := newTestSession(t)

	url, err := sess.resolveBinaryURL("stable", "1.2.3")
	require.NoError(t, err)
	assert.Equal(t, "http://example.invalid/api/deploy/binary?channel=stable&version=1.2.3", url)
}
