// SPDX-License-Identifier: BSD-3-Clause

// Package session implements the agent's long-lived bidirectional realtime
// channel with the hub: a single writer goroutine owning the connection (an
// actor with an inbound send-queue, per spec.md §9's redesign away from a
// shared-mutex writer), a reader goroutine, a 30s liveness watchdog, and the
// reconnect backoff table of spec.md §4.4. Modeled on cudascope's
// internal/api/ws_hub.go connection handling, generalized from a hub
// broadcasting to many clients into one agent dialing out to one hub.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pankha/pankha/internal/agent/control"
	"github.com/pankha/pankha/internal/agent/hardware"
	"github.com/pankha/pankha/internal/agent/update"
	"github.com/pankha/pankha/pkg/config"
	"github.com/pankha/pankha/pkg/log"
	"github.com/pankha/pankha/pkg/wire"
)

const (
	watchdogTimeout   = 30 * time.Second
	commandTimeout    = 10 * time.Second
	connectionTimeout = 10 * time.Second
)

// Version is the agent build version reported at registration. Overridden
// at link time in a real build; left as a sentinel in source.
var Version = "dev"

// Session owns the agent-to-hub realtime channel for one agent process.
type Session struct {
	agentID  string
	agentName string
	url      string

	cfg      *config.AgentConfig
	engine   *control.Engine
	ctrl     hardware.Controller
	health   *HealthCollector
	updater  *update.Manager
	logger   *slog.Logger

	mu           sync.Mutex
	conn         *websocket.Conn
	sendCh       chan any
	reconnectAtt int
	latestSnap   control.Snapshot
}

// New creates a Session. The caller owns starting the control engine's own
// tick loop separately; Session reads its latest Snapshot via SetSnapshot,
// called once per tick by the loop driving engine.Tick.
func New(agentID, agentName, url string, cfg *config.AgentConfig, engine *control.Engine, ctrl hardware.Controller, logger *slog.Logger) (*Session, error) {
	health, err := NewHealthCollector()
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}

	binaryPath, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}

	return &Session{
		agentID:   agentID,
		agentName: agentName,
		url:       url,
		cfg:       cfg,
		engine:    engine,
		ctrl:      ctrl,
		health:    health,
		updater:   update.NewManager(binaryPath, filepath.Join(filepath.Dir(binaryPath), "staging")),
		logger:    logger,
		sendCh:    make(chan any, 32),
	}, nil
}

// SetSnapshot records the latest control-loop tick result, read by the
// periodic Data-frame sender. Safe to call from the control loop's own
// goroutine concurrently with Run.
func (s *Session) SetSnapshot(snap control.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latestSnap = snap
}

// Run drives the connect/register/serve/reconnect cycle until ctx is
// cancelled, and returns only then. Every connection error, including a
// malformed URL, is logged and followed by a backoff and another attempt.
func (s *Session) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err := s.runOnce(ctx); err != nil {
			s.logger.Warn("session disconnected", "error", err)
			_ = s.engine.NotifyDisconnected(ctx)
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		s.reconnectAtt++
		base := time.Duration(s.cfg.Snapshot().Backend.ReconnectInterval * float64(time.Second))
		delay := backoffDelay(base, s.reconnectAtt)
		s.logger.Info("reconnecting", "attempt", s.reconnectAtt, "delay", delay)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// runOnce dials, registers, and serves one connection lifetime. Returning
// nil only happens on an orderly close (a server close frame or ctx being
// cancelled); any other path
// (watchdog, read/write error) returns a non-nil error so Run reconnects.
func (s *Session) runOnce(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, connectionTimeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, s.url, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDialFailed, err)
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	defer func() {
		_ = conn.Close()
		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()
	}()

	// Re-run discovery on (re)connect so a register frame always reflects
	// current hardware, per SPEC_FULL.md §6.4.
	sensors, err := s.ctrl.DiscoverSensors(ctx)
	if err != nil {
		return fmt.Errorf("session: discover sensors: %w", err)
	}
	fans, err := s.ctrl.DiscoverFans(ctx)
	if err != nil {
		return fmt.Errorf("session: discover fans: %w", err)
	}

	cfgSnap := s.cfg.Snapshot()
	register := wire.NewRegisterFrame(
		s.agentID, s.agentName, s.ctrl.Platform(), Version, cfgSnap,
		wire.Capabilities{
			Sensors:           toWireSensors(sensors),
			Fans:              toWireFans(fans),
			FanControlEnabled: cfgSnap.Hardware.EnableFanControl,
		},
	)
	if err := conn.WriteJSON(register); err != nil {
		return fmt.Errorf("session: write register: %w", err)
	}

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	inbound := make(chan rawFrame, 32)
	readErrCh := make(chan error, 1)
	go s.readLoop(conn, inbound, readErrCh)

	writeErrCh := make(chan error, 1)
	go s.writeLoop(runCtx, conn, writeErrCh)

	watchdog := time.NewTimer(watchdogTimeout)
	defer watchdog.Stop()

	dataTicker := time.NewTicker(cfgSnap.UpdateIntervalDuration())
	defer dataTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.enqueue(wire.CloseFrame{Type: wire.TypeClose, Reason: "agent shutting down"})
			return nil

		case err := <-readErrCh:
			return fmt.Errorf("session: read: %w", err)

		case err := <-writeErrCh:
			return fmt.Errorf("session: write: %w", err)

		case <-watchdog.C:
			return ErrWatchdogTimeout

		case <-dataTicker.C:
			s.mu.Lock()
			snap := s.latestSnap
			s.mu.Unlock()
			s.enqueue(wire.NewDataFrame(
				s.agentID, time.Now().UnixMilli(),
				toWireSensors(snap.Sensors), toWireFans(snap.Fans),
				toWireHealth(s.health.Collect()),
			))

		case frame := <-inbound:
			if !watchdog.Stop() {
				select {
				case <-watchdog.C:
				default:
				}
			}
			watchdog.Reset(watchdogTimeout)

			switch frame.Type {
			case wire.TypeRegistered:
				s.reconnectAtt = 0
				if err := s.engine.NotifyConnected(ctx); err != nil {
					s.logger.Warn("notify connected failed", "error", err)
				}
			case wire.TypePing:
				s.enqueue(wire.NewPongFrame())
			case wire.TypeCommand:
				s.enqueue(s.handleCommand(ctx, frame))
			case wire.TypeClose:
				return nil
			}
		}
	}
}

// enqueue hands an outbound frame to the single writer goroutine. Never
// blocks indefinitely: a full queue drops the oldest pending frame rather
// than stalling the session loop, since telemetry is inherently stale-
// tolerant. A dropped commandResponse is not resent; the hub's SendCommand
// reports a timeout once its own 10s bound passes.
func (s *Session) enqueue(frame any) {
	select {
	case s.sendCh <- frame:
	default:
		select {
		case <-s.sendCh:
		default:
		}
		select {
		case s.sendCh <- frame:
		default:
		}
	}
}

func (s *Session) writeLoop(ctx context.Context, conn *websocket.Conn, errCh chan<- error) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-s.sendCh:
			if err := conn.WriteJSON(frame); err != nil {
				select {
				case errCh <- err:
				default:
				}
				return
			}
		}
	}
}

// handleCommand decodes and applies one inbound Command frame, returning the
// CommandResponseFrame to enqueue. Commands are processed in receive order
// on the session's own goroutine, so no two commands ever race each other;
// the control loop's own Tick goroutine is the only other writer of fan
// duty, coordinated through Engine's internal mutex.
func (s *Session) handleCommand(ctx context.Context, frame rawFrame) wire.CommandResponseFrame {
	payload, err := wire.DecodeCommandPayload(frame.Command, frame.Payload)
	if err != nil {
		return wire.NewCommandFailure(frame.CommandID, err.Error())
	}

	fail := func(err error) wire.CommandResponseFrame {
		return wire.NewCommandFailure(frame.CommandID, err.Error())
	}

	switch frame.Command {
	case wire.CommandSetFanSpeed:
		p := payload.(*wire.SetFanSpeedPayload)
		if err := s.engine.SetManualFanSpeed(p.FanID, p.Speed); err != nil {
			return fail(err)
		}

	case wire.CommandEmergencyStop:
		if err := s.engine.TriggerEmergencyStop(ctx); err != nil {
			return fail(err)
		}

	case wire.CommandClearEmergency:
		s.engine.ClearEmergency()

	case wire.CommandPing:
		return wire.NewCommandSuccess(frame.CommandID, map[string]bool{"pong": true})

	case wire.CommandSetUpdateInterval:
		p := payload.(*wire.SetUpdateIntervalPayload)
		if err := s.cfg.Mutate(func(c *config.AgentConfig) { c.Agent.UpdateInterval = p.Interval }); err != nil {
			return fail(err)
		}

	case wire.CommandSetSensorDeduplication:
		p := payload.(*wire.SetSensorDeduplicationPayload)
		if err := s.cfg.Mutate(func(c *config.AgentConfig) { c.Hardware.FilterDuplicateSensors = p.Enabled }); err != nil {
			return fail(err)
		}

	case wire.CommandSetSensorTolerance:
		p := payload.(*wire.SetSensorTolerancePayload)
		if err := s.cfg.Mutate(func(c *config.AgentConfig) { c.Hardware.DuplicateSensorTolerance = p.Tolerance }); err != nil {
			return fail(err)
		}

	case wire.CommandSetFanStep:
		p := payload.(*wire.SetFanStepPayload)
		if err := s.cfg.Mutate(func(c *config.AgentConfig) { c.Hardware.FanStepPercent = p.Step }); err != nil {
			return fail(err)
		}

	case wire.CommandSetHysteresis:
		p := payload.(*wire.SetHysteresisPayload)
		if err := s.cfg.Mutate(func(c *config.AgentConfig) { c.Hardware.HysteresisTemp = p.Hysteresis }); err != nil {
			return fail(err)
		}

	case wire.CommandSetEmergencyTemp:
		p := payload.(*wire.SetEmergencyTempPayload)
		if err := s.cfg.Mutate(func(c *config.AgentConfig) { c.Hardware.EmergencyTemp = p.Temperature }); err != nil {
			return fail(err)
		}

	case wire.CommandSetLogLevel:
		p := payload.(*wire.SetLogLevelPayload)
		if err := log.SetLevel(p.Level); err != nil {
			return fail(err)
		}
		if err := s.cfg.Mutate(func(c *config.AgentConfig) { c.Agent.LogLevel = p.Level }); err != nil {
			return fail(err)
		}

	case wire.CommandSelfUpdate:
		p := payload.(*wire.SelfUpdatePayload)
		binaryURL, err := s.resolveBinaryURL(p.Channel, p.Version)
		if err != nil {
			return fail(err)
		}
		if err := s.updater.Apply(ctx, update.Request{
			Channel:      p.Channel,
			Version:      p.Version,
			ExpectedHash: p.Hash,
			BinaryURL:    binaryURL,
		}); err != nil {
			return fail(err)
		}
		// The swap succeeded; the service manager restarts the process and
		// the next register frame reports the new version. No further frames
		// are sent on this (about to die) connection.

	default:
		return fail(fmt.Errorf("unknown command: %s", frame.Command))
	}

	return wire.NewCommandSuccess(frame.CommandID, nil)
}

// rawFrame is the superset shape used to decode any inbound frame before
// dispatching on Type; Payload is deferred as json.RawMessage so
// wire.DecodeCommandPayload can parse it against the command's own schema.
type rawFrame struct {
	Type      string          `json:"type"`
	CommandID string          `json:"commandId"`
	Command   string          `json:"command"`
	Payload   json.RawMessage `json:"payload"`
}

func (s *Session) readLoop(conn *websocket.Conn, out chan<- rawFrame, errCh chan<- error) {
	for {
		var frame rawFrame
		if err := conn.ReadJSON(&frame); err != nil {
			select {
			case errCh <- err:
			default:
			}
			return
		}
		out <- frame
	}
}

func toWireSensors(sensors []hardware.Sensor) []wire.SensorReading {
	out := make([]wire.SensorReading, len(sensors))
	for i, s := range sensors {
		out[i] = wire.SensorReading{
			ID: s.ID, ChipGroup: s.ChipGroup, Label: s.Label, SensorType: string(s.Type),
			Priority: s.Priority, Visible: s.Visible, Temperature: s.Temperature,
			Warning: s.Warning, Critical: s.Critical, Stale: s.Stale,
		}
	}
	return out
}

func toWireFans(fans []hardware.Fan) []wire.FanReading {
	out := make([]wire.FanReading, len(fans))
	for i, f := range fans {
		out[i] = wire.FanReading{
			ID: f.ID, Label: f.Label, RPM: f.RPM, Duty: f.Duty, LastPWM: f.LastPWM,
			ProfileID: f.ProfileID, ControlSource: f.ControlSource, HasPWMControl: f.HasPWMControl,
		}
	}
	return out
}

// resolveBinaryURL derives the hub's REST download endpoint from its
// websocket session URL: the hub serves the staged binary over the same
// LAN address, on the deploy REST surface rather than the realtime
// channel, per spec.md §4.7's "LAN pull, not from the public release
// source" requirement.
func (s *Session) resolveBinaryURL(channel, version string) (string, error) {
	u, err := url.Parse(s.url)
	if err != nil {
		return "", fmt.Errorf("session: parse backend url: %w", err)
	}

	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	}
	u.Path = "/api/deploy/binary"
	u.RawQuery = url.Values{"channel": {channel}, "version": {version}}.Encode()

	return strings.TrimSuffix(u.String(), "?"), nil
}

func toWireHealth(h Health) wire.SystemHealth {
	return wire.SystemHealth{CPUPercent: h.CPUPercent, MemoryBytes: h.MemoryBytes, UptimeSecs: h.UptimeSecs}
}
