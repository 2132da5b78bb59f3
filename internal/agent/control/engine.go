// SPDX-License-Identifier: BSD-3-Clause

// Package control implements the agent's per-tick closed-loop fan control:
// sensor deduplication, curve evaluation, hysteresis, step-limited
// smoothing, and the emergency/failsafe overrides that take priority over
// all of it. It is the agent-side analogue of the thermal policy state
// machines u-bmc drives from its sensormon package, adapted from percent
// thresholds to a tagged connectivity mode backed by pkg/state.
package control

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/pankha/pankha/internal/agent/hardware"
	"github.com/pankha/pankha/pkg/config"
	"github.com/pankha/pankha/pkg/hwmon"
	"github.com/pankha/pankha/pkg/state"
)

// FanAssignment binds one fan to a control source and curve, as pushed down
// by the hub's profile engine. ControlSource is either a specific sensor id,
// hardware.ControlSourceHighest, or a chip-group token produced by
// hwmon.DeriveChipGroup.
type FanAssignment struct {
	ControlSource string
	Curve         Curve
	ProfileID     string
}

// Snapshot is the result of one Tick, shaped for direct use as a TELEMETRY
// frame payload.
type Snapshot struct {
	Sensors         []hardware.Sensor
	Fans            []hardware.Fan
	Mode            string
	EmergencyActive bool
}

// Engine runs the per-tick control loop against a hardware.Controller.
type Engine struct {
	ctrl hardware.Controller
	cfg  *config.AgentConfig

	connectivity *state.FSM

	mu              sync.Mutex
	assignments     map[string]FanAssignment
	lastTargetTemp  map[string]float64
	lastTarget      map[string]float64
	commandedDuty   map[string]int
	lastWritten     map[string]int
	manualLatch     bool
	resumeOnClear   string // connectivity state to restore once emergency clears: "online" or ""
	manualSpeed     map[string]int
	knownFans       map[string]hardware.Fan
}

// NewEngine creates an Engine. cfg is read fresh (via Snapshot) on every
// tick, so inbound configuration commands take effect on the next tick
// without restarting the loop.
func NewEngine(ctrl hardware.Controller, cfg *config.AgentConfig) (*Engine, error) {
	fsm, err := state.NewConnectivityStateMachine("agent-connectivity")
	if err != nil {
		return nil, fmt.Errorf("control: build connectivity fsm: %w", err)
	}

	return &Engine{
		ctrl:           ctrl,
		cfg:            cfg,
		connectivity:   fsm,
		assignments:    make(map[string]FanAssignment),
		lastTargetTemp: make(map[string]float64),
		lastTarget:     make(map[string]float64),
		commandedDuty:  make(map[string]int),
		lastWritten:    make(map[string]int),
		manualSpeed:    make(map[string]int),
		knownFans:      make(map[string]hardware.Fan),
	}, nil
}

// SetManualFanSpeed records a direct fanId/speed override from a
// setFanSpeed command. The fan must be known (discovered by a prior tick)
// and PWM-capable, and enable_fan_control must be on: if it is false, no
// PWM value may ever be written, even one latched now for a later tick.
// The override takes effect on the next tick and persists, stepped by
// fan_step_percent per tick like any other target, until cleared by
// SetAssignments (a fresh profile binding) or another setFanSpeed.
func (e *Engine) SetManualFanSpeed(fanID string, duty int) error {
	if duty < 0 || duty > 100 {
		return fmt.Errorf("%w: %d", hardware.ErrOutOfRange, duty)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.cfg.Snapshot().Hardware.EnableFanControl {
		return fmt.Errorf("%w: %s", ErrFanControlDisabled, fanID)
	}

	fan, ok := e.knownFans[fanID]
	if !ok {
		return fmt.Errorf("%w: %s", hardware.ErrFanNotFound, fanID)
	}
	if !fan.HasPWMControl {
		return fmt.Errorf("%w: %s", hardware.ErrUnsupported, fanID)
	}

	e.manualSpeed[fanID] = duty
	return nil
}

// Start brings the connectivity FSM online. Must be called once before Tick.
func (e *Engine) Start(ctx context.Context) error {
	return e.connectivity.Start(ctx)
}

// SetAssignments replaces the fan control-source/curve bindings, applied
// atomically at the start of the next tick. Any pending manual setFanSpeed
// override is cleared, since a fresh profile assignment supersedes it.
func (e *Engine) SetAssignments(assignments map[string]FanAssignment) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.assignments = assignments
	e.manualSpeed = make(map[string]int)
}

// Mode reports the connectivity FSM's current state.
func (e *Engine) Mode() string {
	return e.connectivity.CurrentState()
}

// NotifyConnected tells the engine the hub session is established.
func (e *Engine) NotifyConnected(ctx context.Context) error {
	switch e.connectivity.CurrentState() {
	case "connecting":
		return e.connectivity.Fire(ctx, "session_established")
	case "failsafe":
		if err := e.connectivity.Fire(ctx, "reconnect_attempt"); err != nil {
			return err
		}
		return e.connectivity.Fire(ctx, "session_established")
	case "emergency":
		e.mu.Lock()
		e.resumeOnClear = "online"
		e.mu.Unlock()
		return nil
	default:
		return nil
	}
}

// NotifyDisconnected tells the engine the hub session was lost.
func (e *Engine) NotifyDisconnected(ctx context.Context) error {
	switch e.connectivity.CurrentState() {
	case "online":
		return e.connectivity.Fire(ctx, "session_lost_with_timeout")
	case "connecting":
		return e.connectivity.Fire(ctx, "failsafe_timeout_elapsed")
	case "emergency":
		e.mu.Lock()
		e.resumeOnClear = ""
		e.mu.Unlock()
		return nil
	default:
		return nil
	}
}

// TriggerEmergencyStop latches the emergency state until an explicit
// ClearEmergency, regardless of subsequent sensor readings. This implements
// the latched interpretation of the emergencyStop command (spec's open
// question on latch-vs-auto-clear): a manually triggered emergency requires
// a manual clear, while a sensor-triggered emergency still auto-clears once
// every visible sensor drops below emergency_temp by at least
// hysteresis_temp, so a single alarmed sensor can't wedge the fleet.
func (e *Engine) TriggerEmergencyStop(ctx context.Context) error {
	e.mu.Lock()
	e.manualLatch = true
	e.mu.Unlock()

	if ok, _ := e.connectivity.CanFire("thermal_emergency"); ok {
		return e.connectivity.Fire(ctx, "thermal_emergency")
	}
	return nil
}

// ClearEmergency releases a manual latch set by TriggerEmergencyStop. If
// every visible sensor is below emergency_temp by at least hysteresis_temp,
// the next tick exits Emergency.
func (e *Engine) ClearEmergency() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.manualLatch = false
}

// Tick runs one control-loop iteration: read_sample, emergency check,
// per-fan resolve/curve/hysteresis/smoothing/floor, write, and returns a
// Snapshot ready for telemetry emission.
func (e *Engine) Tick(ctx context.Context) (Snapshot, error) {
	cfg := e.cfg.Snapshot()

	sensors, err := e.ctrl.DiscoverSensors(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	fans, err := e.ctrl.DiscoverFans(ctx)
	if err != nil {
		return Snapshot{}, err
	}

	temps, rpms, readErrs := e.ctrl.ReadSample(ctx)
	tolerance := 0.0
	if cfg.Hardware.FilterDuplicateSensors {
		tolerance = cfg.Hardware.DuplicateSensorTolerance
	}

	readings := make([]hwmon.SensorReading, 0, len(sensors))
	for i := range sensors {
		s := &sensors[i]
		if t, ok := temps[s.ID]; ok {
			s.Temperature = t
			s.Stale = false
		} else {
			s.Stale = true
			if _, failed := readErrs[s.ID]; !failed {
				continue
			}
		}
		readings = append(readings, hwmon.SensorReading{ID: s.ID, ChipPrefix: s.ChipPrefix, Temperature: s.Temperature})
	}
	visibility := hwmon.DeduplicateSensors(readings, tolerance)
	for i := range sensors {
		if v, ok := visibility[sensors[i].ID]; ok {
			sensors[i].Visible = v && !sensors[i].Stale
		} else {
			sensors[i].Visible = false
		}
	}

	for i := range fans {
		if rpm, ok := rpms[fans[i].ID]; ok {
			fans[i].RPM = rpm
		}
	}

	e.mu.Lock()
	for _, fan := range fans {
		e.knownFans[fan.ID] = fan
	}
	e.mu.Unlock()

	wasEmergency := e.connectivity.CurrentState() == "emergency"
	emergencyActive := e.isEmergencyActive(sensors, cfg, wasEmergency)
	if err := e.updateConnectivityForEmergency(ctx, emergencyActive, cfg); err != nil {
		return Snapshot{}, err
	}

	mode := e.connectivity.CurrentState()

	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range fans {
		fan := &fans[i]
		if !cfg.Hardware.EnableFanControl {
			continue
		}

		duty := e.resolveFanDuty(*fan, sensors, mode, emergencyActive, cfg)
		if err := e.writeFanDuty(ctx, fan, duty, mode); err != nil {
			return Snapshot{}, err
		}
	}

	sort.Slice(fans, func(i, j int) bool { return fans[i].ID < fans[j].ID })

	return Snapshot{Sensors: sensors, Fans: fans, Mode: mode, EmergencyActive: emergencyActive}, nil
}

// isEmergencyActive reports whether the emergency condition is still in
// force. Entering uses emergency_temp directly; once already active,
// clearing requires every visible sensor to drop below emergency_temp by at
// least hysteresis_temp, so a sensor oscillating right at the threshold
// can't flap the fleet between emergency and normal control every tick.
func (e *Engine) isEmergencyActive(sensors []hardware.Sensor, cfg config.AgentConfig, wasEmergency bool) bool {
	e.mu.Lock()
	latched := e.manualLatch
	e.mu.Unlock()
	if latched {
		return true
	}

	threshold := cfg.Hardware.EmergencyTemp
	if wasEmergency {
		threshold -= cfg.Hardware.HysteresisTemp
	}
	for _, s := range sensors {
		if s.Visible && s.Temperature >= threshold {
			return true
		}
	}
	return false
}

func (e *Engine) updateConnectivityForEmergency(ctx context.Context, active bool, cfg config.AgentConfig) error {
	current := e.connectivity.CurrentState()

	if active {
		if current != "emergency" {
			e.mu.Lock()
			if current == "online" {
				e.resumeOnClear = "online"
			} else {
				e.resumeOnClear = ""
			}
			e.mu.Unlock()
			return e.connectivity.Fire(ctx, "thermal_emergency")
		}
		return nil
	}

	if current != "emergency" {
		return nil
	}

	e.mu.Lock()
	manual := e.manualLatch
	resume := e.resumeOnClear
	e.mu.Unlock()
	if manual {
		return nil
	}

	if err := e.connectivity.Fire(ctx, "emergency_cleared"); err != nil {
		return err
	}
	if resume == "online" {
		return e.connectivity.Fire(ctx, "session_established")
	}
	return nil
}

// resolveFanDuty applies steps 3a-3e of the per-tick control algorithm for
// one fan, or the emergency/failsafe override when applicable.
func (e *Engine) resolveFanDuty(fan hardware.Fan, sensors []hardware.Sensor, mode string, emergencyActive bool, cfg config.AgentConfig) int {
	if emergencyActive {
		e.lastTarget[fan.ID] = 100
		return 100
	}
	if mode == "failsafe" {
		return cfg.Hardware.FailsafeSpeed
	}

	if manual, ok := e.manualSpeed[fan.ID]; ok {
		return stepToward(e.commandedDuty[fan.ID], manual, cfg.Hardware.FanStepPercent, cfg.Hardware.FanSafetyMinimum)
	}

	assignment, ok := e.assignments[fan.ID]
	if !ok {
		assignment = FanAssignment{ControlSource: hardware.ControlSourceHighest, Curve: DefaultCurve}
	}

	sourceTemp, found := resolveControlSource(assignment.ControlSource, sensors)
	if !found {
		return e.commandedDuty[fan.ID]
	}

	curve := assignment.Curve
	if len(curve) == 0 {
		curve = DefaultCurve
	}
	rawTarget := curve.Evaluate(sourceTemp)

	lastTemp, hadAnchor := e.lastTargetTemp[fan.ID]
	diff := sourceTemp - lastTemp
	if diff < 0 {
		diff = -diff
	}
	if hadAnchor && diff < cfg.Hardware.HysteresisTemp {
		// Within the hysteresis band of the last temperature that actually
		// moved this fan's target: hold the commanded duty exactly where it
		// is rather than continuing to smooth toward a stale target.
		return e.commandedDuty[fan.ID]
	}
	e.lastTargetTemp[fan.ID] = sourceTemp
	e.lastTarget[fan.ID] = rawTarget

	return stepToward(e.commandedDuty[fan.ID], int(rawTarget), cfg.Hardware.FanStepPercent, cfg.Hardware.FanSafetyMinimum)
}

// stepToward moves current at most stepPercent points toward target, then
// applies the safety floor. Shared by curve-resolved targets and direct
// setFanSpeed manual overrides.
func stepToward(current, target, stepPercent, safetyMinimum int) int {
	next := current
	if target > current {
		next = current + stepPercent
		if next > target {
			next = target
		}
	} else if target < current {
		next = current - stepPercent
		if next < target {
			next = target
		}
	}

	result := next
	if result < safetyMinimum {
		result = safetyMinimum
	}
	if result > 100 {
		result = 100
	}
	return result
}

// writeFanDuty commits a resolved duty to hardware, skipping the write if it
// equals the last successful write (idempotent per spec.md §4.2 step 4), and
// preferring driver-auto release for GPU fans in Failsafe where the
// platform supports it.
func (e *Engine) writeFanDuty(ctx context.Context, fan *hardware.Fan, duty int, mode string) error {
	e.commandedDuty[fan.ID] = duty

	if mode == "failsafe" && e.ctrl.Platform() == "windows" {
		if err := e.ctrl.ReleaseFanToAuto(ctx, fan.ID); err == nil {
			fan.ControlSource = "driver-auto"
			delete(e.lastWritten, fan.ID)
			return nil
		}
		// Fall through to an explicit duty write if release-to-auto isn't
		// supported for this fan.
	}

	if !fan.HasPWMControl {
		return nil
	}
	if last, ok := e.lastWritten[fan.ID]; ok && last == duty {
		fan.Duty = duty
		fan.LastPWM = last
		return nil
	}

	if err := e.ctrl.SetFanDuty(ctx, fan.ID, duty); err != nil {
		return err
	}
	e.lastWritten[fan.ID] = duty
	fan.Duty = duty
	return nil
}

// resolveControlSource returns the max temperature among visible sensors
// matching source: a specific sensor id, hardware.ControlSourceHighest
// (max over all visible sensors), or a chip-group token (max within that
// group only).
func resolveControlSource(source string, sensors []hardware.Sensor) (float64, bool) {
	if source == hardware.ControlSourceHighest {
		var max float64
		found := false
		for _, s := range sensors {
			if s.Visible && (!found || s.Temperature > max) {
				max, found = s.Temperature, true
			}
		}
		return max, found
	}

	for _, s := range sensors {
		if s.ID == source && s.Visible {
			return s.Temperature, true
		}
	}

	var max float64
	found := false
	for _, s := range sensors {
		if !s.Visible {
			continue
		}
		if hwmon.DeriveChipGroup(s.ID) == source && (!found || s.Temperature > max) {
			max, found = s.Temperature, true
		}
	}
	return max, found
}
