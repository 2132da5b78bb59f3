// SPDX-License-Identifier: BSD-3-Clause

package dispatcher

import (
	"math"

	"github.com/pankha/pankha/pkg/wire"
)

// Epsilon thresholds below which a reading is not considered changed
// (spec.md §4.5): temperature ≥ 0.1°C, duty ≥ 1%, RPM ≥ 5.
const (
	epsilonTemperature = 0.1
	epsilonDutyPercent = 1
	epsilonRPM         = 5
)

// systemDelta is the UI-facing frame carrying only changed sensors/fans
// for one agent.
type systemDelta struct {
	Type    string               `json:"type"`
	AgentID string               `json:"agentId"`
	Sensors []wire.SensorReading `json:"sensors,omitempty"`
	Fans    []wire.FanReading    `json:"fans,omitempty"`
}

func sensorChanged(prev wire.SensorReading, cur wire.SensorReading, hasPrev bool) bool {
	if !hasPrev {
		return true
	}
	if math.Abs(prev.Temperature-cur.Temperature) >= epsilonTemperature {
		return true
	}
	return prev.Stale != cur.Stale || prev.Visible != cur.Visible
}

func fanChanged(prev wire.FanReading, cur wire.FanReading, hasPrev bool) bool {
	if !hasPrev {
		return true
	}
	if math.Abs(float64(prev.Duty-cur.Duty)) >= epsilonDutyPercent {
		return true
	}
	if math.Abs(float64(prev.RPM-cur.RPM)) >= epsilonRPM {
		return true
	}
	return prev.ControlSource != cur.ControlSource || prev.ProfileID != cur.ProfileID || prev.HasPWMControl != cur.HasPWMControl
}

// computeDelta diffs a fresh telemetry tick against the last-broadcast
// baseline, returning only the sensors/fans whose change exceeds the
// relevant epsilon. An entity with no prior baseline always counts as
// changed (first sighting).
func computeDelta(prevSensors map[string]wire.SensorReading, sensors []wire.SensorReading, prevFans map[string]wire.FanReading, fans []wire.FanReading) ([]wire.SensorReading, []wire.FanReading) {
	var changedSensors []wire.SensorReading
	for _, s := range sensors {
		prev, ok := prevSensors[s.ID]
		if sensorChanged(prev, s, ok) {
			changedSensors = append(changedSensors, s)
		}
	}

	var changedFans []wire.FanReading
	for _, f := range fans {
		prev, ok := prevFans[f.ID]
		if fanChanged(prev, f, ok) {
			changedFans = append(changedFans, f)
		}
	}

	return changedSensors, changedFans
}
