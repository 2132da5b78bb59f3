// SPDX-License-Identifier: BSD-3-Clause

package hardware

import (
	"context"
	"fmt"
	"sync"
)

// mockSensorSeed is one entry in MockController's seeded sensor table,
// grounded on the mainboard mock target's SensorDefinition-with-base-value
// pattern (an id, a chip class, a base temperature, warning/critical
// thresholds).
type mockSensorSeed struct {
	id          string
	chipPrefix  string
	label       string
	sensorType  SensorType
	priority    int
	temperature float64
	warning     float64
	critical    float64
}

// mockFanSeed is one entry in MockController's seeded fan table.
type mockFanSeed struct {
	id            string
	label         string
	hasPWMControl bool
}

// MockController is an in-memory fake Controller driven by seeded
// sensor/fan tables, used by the agent binary on platforms with no hardware
// binding and by the control-engine, session, and CLI tests so they do not
// depend on real sysfs/NVML access.
type MockController struct {
	mu sync.RWMutex

	sensors map[string]*mockSensorSeed
	fans    map[string]*mockFanSeed
	rpm     map[string]int
	duty    map[string]int
	lastPWM map[string]int
	auto    map[string]bool
	failIDs map[string]bool
}

// NewMockController creates a MockController with a small default fleet:
// one CPU sensor, one GPU sensor, one ACPI sensor placed close enough to
// the CPU reading to exercise deduplication, and two PWM-capable fans.
func NewMockController() *MockController {
	m := &MockController{
		sensors: map[string]*mockSensorSeed{
			"k10temp_1": {id: "k10temp_1", chipPrefix: "k10temp", label: "Tctl", sensorType: SensorTypeCPU, priority: 100, temperature: 45.0, warning: 75, critical: 95},
			"acpitz_0":  {id: "acpitz_0", chipPrefix: "acpitz", label: "acpi", sensorType: SensorTypeOther, priority: 40, temperature: 45.8, warning: 80, critical: 100},
			"nvidiagpu_0": {id: "nvidiagpu_0", chipPrefix: "nvidiagpu", label: "GPU 0", sensorType: SensorTypeGPU, priority: 90, temperature: 55.0, warning: 83, critical: 92},
		},
		fans: map[string]*mockFanSeed{
			"mock_fan1": {id: "mock_fan1", label: "CPU Fan", hasPWMControl: true},
			"mock_fan2": {id: "mock_fan2", label: "Case Fan", hasPWMControl: true},
		},
		rpm:     make(map[string]int),
		duty:    make(map[string]int),
		lastPWM: make(map[string]int),
		auto:    make(map[string]bool),
		failIDs: make(map[string]bool),
	}
	for id := range m.fans {
		m.rpm[id] = 600
	}
	return m
}

func (m *MockController) Platform() string { return "mock" }

// SetTemperature overrides a seeded sensor's current temperature, for tests
// that drive the control engine through a specific tick sequence.
func (m *MockController) SetTemperature(sensorID string, celsius float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sensors[sensorID]; ok {
		s.temperature = celsius
	}
}

// SetReadFailure forces ReadSample to report ErrReadUnavailable for id on
// every subsequent call, until cleared with SetReadFailure(id, false).
func (m *MockController) SetReadFailure(id string, fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if fail {
		m.failIDs[id] = true
	} else {
		delete(m.failIDs, id)
	}
}

// LastWrittenDuty returns the raw 0-255 PWM value of the last successful
// SetFanDuty for a fan (duty/100*255, truncated) and whether any write has
// occurred yet.
func (m *MockController) LastWrittenDuty(fanID string) (int, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.lastPWM[fanID]
	return d, ok
}

// IsReleasedToAuto reports whether ReleaseFanToAuto was the most recent
// operation applied to fanID.
func (m *MockController) IsReleasedToAuto(fanID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.auto[fanID]
}

func (m *MockController) DiscoverSensors(ctx context.Context) ([]Sensor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sensors := make([]Sensor, 0, len(m.sensors))
	for id, s := range m.sensors {
		sensors = append(sensors, Sensor{
			ID:          id,
			ChipPrefix:  s.chipPrefix,
			ChipGroup:   id,
			Label:       s.label,
			Type:        s.sensorType,
			Priority:    s.priority,
			Visible:     true,
			Temperature: s.temperature,
			Warning:     s.warning,
			Critical:    s.critical,
		})
	}
	return sensors, nil
}

func (m *MockController) DiscoverFans(ctx context.Context) ([]Fan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	fans := make([]Fan, 0, len(m.fans))
	for id, f := range m.fans {
		fans = append(fans, Fan{
			ID:            id,
			Label:         f.label,
			ControlSource: ControlSourceHighest,
			HasPWMControl: f.hasPWMControl,
			RPM:           m.rpm[id],
			Duty:          m.duty[id],
			LastPWM:       m.lastPWM[id],
		})
	}
	return fans, nil
}

func (m *MockController) ReadSample(ctx context.Context) (map[string]float64, map[string]int, map[string]error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	temps := make(map[string]float64, len(m.sensors))
	errs := make(map[string]error)
	for id, s := range m.sensors {
		if m.failIDs[id] {
			errs[id] = fmt.Errorf("%w: %s", ErrReadUnavailable, id)
			continue
		}
		temps[id] = s.temperature
	}

	rpms := make(map[string]int, len(m.fans))
	for id := range m.fans {
		if m.failIDs[id] {
			errs[id] = fmt.Errorf("%w: %s", ErrReadUnavailable, id)
			continue
		}
		rpms[id] = m.rpm[id]
	}

	return temps, rpms, errs
}

func (m *MockController) SetFanDuty(ctx context.Context, fanID string, dutyPct int) error {
	if dutyPct < 0 || dutyPct > 100 {
		return fmt.Errorf("%w: %d", ErrOutOfRange, dutyPct)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	fan, ok := m.fans[fanID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrFanNotFound, fanID)
	}
	if !fan.hasPWMControl {
		return fmt.Errorf("%w: %s", ErrUnsupported, fanID)
	}

	m.duty[fanID] = dutyPct
	m.lastPWM[fanID] = int(float64(dutyPct) / 100.0 * 255.0)
	m.auto[fanID] = false
	// A simple linear RPM model: 600 RPM idle floor, 2000 RPM at 100% duty.
	m.rpm[fanID] = 600 + dutyPct*14
	return nil
}

func (m *MockController) ReleaseFanToAuto(ctx context.Context, fanID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.fans[fanID]; !ok {
		return fmt.Errorf("%w: %s", ErrFanNotFound, fanID)
	}
	m.auto[fanID] = true
	return nil
}
