// SPDX-License-Identifier: BSD-3-Clause

// Package dispatcher implements the hub's agent+UI session handling
// (spec.md §4.5): idempotent agent registration through internal/hub/registry,
// the UI subscriber protocol (fullState/systemDelta/agentRegistered/
// agentOffline), delta computation with epsilon thresholds, command routing
// with a bounded round-trip timeout, per-subscriber coalescing backpressure,
// and per-session panic containment. Connection handling is grounded on
// cudascope's internal/api/ws_hub.go Hub (one goroutine per connection,
// read-loop-detects-disconnect), generalized from a single broadcast fan-out
// to the two distinct session kinds (agent, UI subscriber) Pankha has.
package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/pankha/pankha/internal/hub/registry"
	"github.com/pankha/pankha/internal/hub/retention"
	"github.com/pankha/pankha/pkg/wire"
)

const commandTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub owns every live agent and UI-subscriber connection plus the delta
// baseline used to compute systemDelta frames.
type Hub struct {
	registry  *registry.Registry
	retention *retention.Store
	logger    *slog.Logger

	deltaMu     sync.Mutex
	prevSensors map[string]map[string]wire.SensorReading
	prevFans    map[string]map[string]wire.FanReading

	subMu       sync.Mutex
	subscribers map[*subscriber]struct{}

	pendingMu sync.Mutex
	pending   map[string]chan wire.CommandResponseFrame

	inFlightMu sync.Mutex
	inFlight   map[string]bool // agentID -> a command is currently awaiting response
}

// New creates a Hub. retention may be nil in tests that don't exercise the
// sink path.
func New(reg *registry.Registry, ret *retention.Store, logger *slog.Logger) *Hub {
	return &Hub{
		registry:    reg,
		retention:   ret,
		logger:      logger,
		prevSensors: make(map[string]map[string]wire.SensorReading),
		prevFans:    make(map[string]map[string]wire.FanReading),
		subscribers: make(map[*subscriber]struct{}),
		pending:     make(map[string]chan wire.CommandResponseFrame),
		inFlight:    make(map[string]bool),
	}
}

// ServeAgentWS upgrades an incoming HTTP request to a websocket and runs
// the agent session handler until the connection closes.
func (h *Hub) ServeAgentWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("agent ws upgrade failed", "error", err)
		return
	}
	h.handleAgentConn(r.Context(), conn)
}

// ServeSubscriberWS upgrades an incoming HTTP request to a websocket and
// runs the UI subscriber handler until the connection closes.
func (h *Hub) ServeSubscriberWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("subscriber ws upgrade failed", "error", err)
		return
	}
	h.handleSubscriberConn(r.Context(), conn)
}

// handleAgentConn owns one agent's connection lifecycle: register, serve,
// disconnect. A panic anywhere in this function is contained here rather
// than taking down the dispatcher (spec.md §5 "failure containment"),
// mirroring u-bmc's pkg/process panic-to-error recovery at the per-service
// boundary: the panic is logged, the session is closed, and the agent is
// marked offline through registry.Disconnect like any other session end.
// The agent's status is not set to error.
func (h *Hub) handleAgentConn(ctx context.Context, conn *websocket.Conn) {
	var agentID string
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("agent session panicked", "agentId", agentID, "panic", r)
		}
		if agentID != "" {
			if err := h.registry.Disconnect(ctx, agentID); err != nil {
				h.logger.Warn("disconnect after session end failed", "agentId", agentID, "error", err)
			}
			h.broadcastAll("", struct {
				Type    string `json:"type"`
				AgentID string `json:"agentId"`
			}{Type: "agentOffline", AgentID: agentID})
		}
	}()

	var regFrame wire.RegisterFrame
	if err := conn.ReadJSON(&regFrame); err != nil {
		conn.Close()
		return
	}
	if regFrame.Type != wire.TypeRegister {
		conn.Close()
		return
	}
	agentID = regFrame.AgentID

	ac := newAgentConn(agentID, conn, h.logger)
	go ac.writeLoop()

	if _, err := h.registry.Register(ctx, regFrame, ac); err != nil {
		h.logger.Warn("agent registration rejected", "agentId", agentID, "error", err)
		ac.send(wire.CloseFrame{Type: wire.TypeClose, Reason: err.Error()})
		time.Sleep(50 * time.Millisecond) // best-effort delivery before close
		ac.Close()
		return
	}
	ac.send(wire.RegisteredFrame{Type: wire.TypeRegistered, AgentID: agentID})
	h.broadcastAll("", struct {
		Type    string `json:"type"`
		AgentID string `json:"agentId"`
	}{Type: "agentRegistered", AgentID: agentID})

	defer ac.Close()

	for {
		var raw struct {
			Type      string          `json:"type"`
			CommandID string          `json:"commandId"`
			Timestamp int64           `json:"timestamp"`
			Sensors   []wire.SensorReading `json:"sensors"`
			Fans      []wire.FanReading    `json:"fans"`
			Health    wire.SystemHealth    `json:"health"`
			Success   bool            `json:"success"`
			Data      any             `json:"data"`
			Error     string          `json:"error"`
		}
		if err := conn.ReadJSON(&raw); err != nil {
			return
		}

		switch raw.Type {
		case wire.TypeData:
			h.handleData(agentID, raw.Sensors, raw.Fans)
		case wire.TypeCommandResponse:
			h.resolveCommand(raw.CommandID, wire.CommandResponseFrame{
				Type: raw.Type, CommandID: raw.CommandID, Success: raw.Success, Data: raw.Data, Error: raw.Error,
			})
		case wire.TypePong:
			// liveness only; registry.LastSeen already refreshed by ApplyTelemetry/Register.
		default:
			h.logger.Debug("ignoring unrecognized agent frame", "agentId", agentID, "type", raw.Type)
		}
	}
}

func (h *Hub) handleData(agentID string, sensors []wire.SensorReading, fans []wire.FanReading) {
	if err := h.registry.ApplyTelemetry(agentID, sensors, fans); err != nil {
		h.logger.Warn("telemetry for unknown agent", "agentId", agentID, "error", err)
		return
	}

	if h.retention != nil {
		h.retention.Enqueue(agentID, sensors, fans, time.Now().Unix())
	}

	h.deltaMu.Lock()
	changedSensors, changedFans := computeDelta(h.prevSensors[agentID], sensors, h.prevFans[agentID], fans)
	newSensors := make(map[string]wire.SensorReading, len(sensors))
	for _, s := range sensors {
		newSensors[s.ID] = s
	}
	newFans := make(map[string]wire.FanReading, len(fans))
	for _, f := range fans {
		newFans[f.ID] = f
	}
	h.prevSensors[agentID] = newSensors
	h.prevFans[agentID] = newFans
	h.deltaMu.Unlock()

	if len(changedSensors) == 0 && len(changedFans) == 0 {
		return
	}
	h.broadcastAll(agentID, systemDelta{Type: "systemDelta", AgentID: agentID, Sensors: changedSensors, Fans: changedFans})
}

// SendCommand routes a command to an agent and blocks for its response or
// ErrCommandTimeout, whichever comes first (spec.md §4.5/§5, 10s default).
func (h *Hub) SendCommand(ctx context.Context, agentID, command string, payload any) (wire.CommandResponseFrame, error) {
	entry, err := h.registry.Get(agentID)
	if err != nil {
		return wire.CommandResponseFrame{}, err
	}
	if entry.Session == nil {
		return wire.CommandResponseFrame{}, fmt.Errorf("%w: %s", ErrAgentOffline, agentID)
	}

	h.inFlightMu.Lock()
	if h.inFlight[agentID] {
		h.inFlightMu.Unlock()
		return wire.CommandResponseFrame{}, fmt.Errorf("%w: %s", ErrCommandConflict, agentID)
	}
	h.inFlight[agentID] = true
	h.inFlightMu.Unlock()
	defer func() {
		h.inFlightMu.Lock()
		delete(h.inFlight, agentID)
		h.inFlightMu.Unlock()
	}()

	commandID := uuid.NewString()
	respCh := make(chan wire.CommandResponseFrame, 1)
	h.pendingMu.Lock()
	h.pending[commandID] = respCh
	h.pendingMu.Unlock()
	defer func() {
		h.pendingMu.Lock()
		delete(h.pending, commandID)
		h.pendingMu.Unlock()
	}()

	frame := wire.CommandFrame{Type: wire.TypeCommand, CommandID: commandID, Command: command, Payload: payload}
	if err := entry.Session.SendCommand(frame); err != nil {
		return wire.CommandResponseFrame{}, err
	}

	timeout := time.NewTimer(commandTimeout)
	defer timeout.Stop()

	select {
	case resp := <-respCh:
		return resp, nil
	case <-timeout.C:
		return wire.CommandResponseFrame{}, fmt.Errorf("%w: agent %s, command %s", ErrCommandTimeout, agentID, command)
	case <-ctx.Done():
		return wire.CommandResponseFrame{}, ctx.Err()
	}
}

func (h *Hub) resolveCommand(commandID string, resp wire.CommandResponseFrame) {
	h.pendingMu.Lock()
	ch, ok := h.pending[commandID]
	h.pendingMu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- resp:
	default:
	}
}

// fleetSnapshot is the UI-facing fullState payload shape.
type fleetSnapshot struct {
	Type    string          `json:"type"`
	Systems []systemSummary `json:"systems"`
}

type systemSummary struct {
	AgentID  string               `json:"agentId"`
	Name     string               `json:"name"`
	Platform string               `json:"platform"`
	Version  string               `json:"version"`
	Status   string               `json:"status"`
	Sensors  []wire.SensorReading `json:"sensors"`
	Fans     []wire.FanReading    `json:"fans"`
}

func (h *Hub) buildFullState() fleetSnapshot {
	entries := h.registry.List()
	systems := make([]systemSummary, 0, len(entries))
	for _, e := range entries {
		sensors := make([]wire.SensorReading, 0, len(e.LastSensors))
		for _, s := range e.LastSensors {
			sensors = append(sensors, s)
		}
		fans := make([]wire.FanReading, 0, len(e.LastFans))
		for _, f := range e.LastFans {
			fans = append(fans, f)
		}
		systems = append(systems, systemSummary{
			AgentID: e.AgentID, Name: e.Name, Platform: e.Platform, Version: e.Version,
			Status: string(e.Status()), Sensors: sensors, Fans: fans,
		})
	}
	return fleetSnapshot{Type: "fullState", Systems: systems}
}

// handleSubscriberConn owns one UI client's connection lifecycle.
func (h *Hub) handleSubscriberConn(ctx context.Context, conn *websocket.Conn) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("subscriber session panicked", "panic", r)
		}
	}()

	sub := newSubscriber(conn, h.logger)
	h.subMu.Lock()
	h.subscribers[sub] = struct{}{}
	h.subMu.Unlock()
	defer func() {
		h.subMu.Lock()
		delete(h.subscribers, sub)
		h.subMu.Unlock()
	}()

	go sub.writeLoop()
	sub.enqueue("", h.buildFullState())

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	sub.close(websocket.CloseNormalClosure, "")
}

// broadcastAll fans a frame out to every connected UI subscriber.
// coalesceKey non-empty marks the frame as a systemDelta eligible for
// backpressure coalescing, keyed per agent.
func (h *Hub) broadcastAll(coalesceKey string, frame any) {
	h.subMu.Lock()
	defer h.subMu.Unlock()

	for sub := range h.subscribers {
		if !sub.enqueue(coalesceKey, frame) {
			delete(h.subscribers, sub)
			go sub.close(1013, "backpressure exceeded")
		}
	}
}
