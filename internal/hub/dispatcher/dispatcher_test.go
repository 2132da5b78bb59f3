// SPDX-License-Identifier: BSD-3-Clause

package dispatcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pankha/pankha/internal/hub/license"
	"github.com/pankha/pankha/internal/hub/registry"
	"github.com/pankha/pankha/pkg/log"
	"github.com/pankha/pankha/pkg/wire"
)

func TestComputeDeltaAppliesEpsilonThresholds(t *testing.T) {
	prevSensors := map[string]wire.SensorReading{"s1": {ID: "s1", Temperature: 50.0}}
	prevFans := map[string]wire.FanReading{"f1": {ID: "f1", RPM: 1000, Duty: 40}}

	sensors := []wire.SensorReading{{ID: "s1", Temperature: 50.05}} // below epsilon
	fans := []wire.FanReading{{ID: "f1", RPM: 1002, Duty: 40}}      // below epsilon

	changedSensors, changedFans := computeDelta(prevSensors, sensors, prevFans, fans)
	assert.Empty(t, changedSensors)
	assert.Empty(t, changedFans)

	sensors[0].Temperature = 50.2 // exceeds 0.1 epsilon
	fans[0].Duty = 42             // exceeds 1% epsilon

	changedSensors, changedFans = computeDelta(prevSensors, sensors, prevFans, fans)
	assert.Len(t, changedSensors, 1)
	assert.Len(t, changedFans, 1)
}

func TestComputeDeltaTreatsFirstSightingAsChanged(t *testing.T) {
	changedSensors, changedFans := computeDelta(nil, []wire.SensorReading{{ID: "s1", Temperature: 10}}, nil, []wire.FanReading{{ID: "f1"}})
	assert.Len(t, changedSensors, 1)
	assert.Len(t, changedFans, 1)
}

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func newTestHub(t *testing.T) (*Hub, *httptest.Server, *httptest.Server) {
	t.Helper()
	reg := registry.New(license.NewStaticOracle("pro"))
	h := New(reg, nil, log.NewDefaultLogger())
	agentSrv := httptest.NewServer(http.HandlerFunc(h.ServeAgentWS))
	subSrv := httptest.NewServer(http.HandlerFunc(h.ServeSubscriberWS))
	t.Cleanup(func() { agentSrv.Close(); subSrv.Close() })
	return h, agentSrv, subSrv
}

func TestSubscriberReceivesFullStateOnConnect(t *testing.T) {
	_, _, subSrv := newTestHub(t)
	conn := dialWS(t, subSrv)

	var msg map[string]any
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "fullState", msg["type"])
}

func TestAgentRegistersAndBroadcastsDelta(t *testing.T) {
	_, agentSrv, subSrv := newTestHub(t)

	sub := dialWS(t, subSrv)
	var fullState map[string]any
	require.NoError(t, sub.ReadJSON(&fullState))

	agent := dialWS(t, agentSrv)
	require.NoError(t, agent.WriteJSON(wire.NewRegisterFrame("agent-1", "Box", "linux", "1.0.0", nil, wire.Capabilities{})))

	var registered map[string]any
	require.NoError(t, agent.ReadJSON(&registered))
	assert.Equal(t, "registered", registered["type"])

	var agentRegistered map[string]any
	require.NoError(t, sub.ReadJSON(&agentRegistered))
	assert.Equal(t, "agentRegistered", agentRegistered["type"])

	require.NoError(t, agent.WriteJSON(wire.NewDataFrame("agent-1", 0,
		[]wire.SensorReading{{ID: "s1", Temperature: 55.5}},
		[]wire.FanReading{{ID: "f1", RPM: 1200, Duty: 40}},
		wire.SystemHealth{})))

	var delta map[string]any
	require.NoError(t, sub.ReadJSON(&delta))
	assert.Equal(t, "systemDelta", delta["type"])
	assert.Equal(t, "agent-1", delta["agentId"])
}

func TestSendCommandTimesOutWhenAgentSilent(t *testing.T) {
	h, agentSrv, _ := newTestHub(t)
	agent := dialWS(t, agentSrv)

	require.NoError(t, agent.WriteJSON(wire.NewRegisterFrame("agent-1", "Box", "linux", "1.0.0", nil, wire.Capabilities{})))
	var registered map[string]any
	require.NoError(t, agent.ReadJSON(&registered))

	// Don't drain the agent's inbound commands; just let the round trip expire.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := h.SendCommand(ctx, "agent-1", wire.CommandPing, nil)
	assert.Error(t, err)
}

func TestSendCommandFailsForOfflineAgent(t *testing.T) {
	h, _, _ := newTestHub(t)
	_, err := h.SendCommand(context.Background(), "nope", wire.CommandPing, nil)
	require.Error(t, err)
}

func TestSendCommandRejectsConcurrentCommandToSameAgent(t *testing.T) {
	h, agentSrv, _ := newTestHub(t)
	agent := dialWS(t, agentSrv)

	require.NoError(t, agent.WriteJSON(wire.NewRegisterFrame("agent-1", "Box", "linux", "1.0.0", nil, wire.Capabilities{})))
	var registered map[string]any
	require.NoError(t, agent.ReadJSON(&registered))

	done := make(chan struct{})
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()
		h.SendCommand(ctx, "agent-1", wire.CommandPing, nil)
		close(done)
	}()
	time.Sleep(20 * time.Millisecond) // let the first command claim in-flight

	_, err := h.SendCommand(context.Background(), "agent-1", wire.CommandPing, nil)
	require.ErrorIs(t, err, ErrCommandConflict)
	<-done
}
