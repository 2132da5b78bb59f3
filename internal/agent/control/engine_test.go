// SPDX-License-Identifier: BSD-3-Clause

package control

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pankha/pankha/internal/agent/hardware"
	"github.com/pankha/pankha/pkg/config"
)

func newTestEngine(t *testing.T) (*Engine, *hardware.MockController, *config.AgentConfig) {
	t.Helper()

	mock := hardware.NewMockController()
	cfg := config.Default("agent-1", "Test Agent")
	cfg.Hardware.EmergencyTemp = 85
	cfg.Hardware.HysteresisTemp = 2
	cfg.Hardware.FanStepPercent = 5
	cfg.Hardware.FanSafetyMinimum = 10
	cfg.Hardware.FailsafeSpeed = 70
	cfg.Hardware.FilterDuplicateSensors = false

	eng, err := NewEngine(mock, cfg)
	require.NoError(t, err)
	require.NoError(t, eng.Start(context.Background()))

	eng.SetAssignments(map[string]FanAssignment{
		"mock_fan1": {
			ControlSource: "k10temp_1",
			Curve: Curve{
				{Temperature: 30, Duty: 20},
				{Temperature: 50, Duty: 40},
				{Temperature: 65, Duty: 70},
				{Temperature: 80, Duty: 100},
			},
		},
	})

	return eng, mock, cfg
}

func TestEngineSteadyStateControlSequence(t *testing.T) {
	eng, mock, _ := newTestEngine(t)
	ctx := context.Background()

	// Warm up to commandedDuty=20 with its change-anchor at 30°C, matching
	// the testable-property scenario's assumption that the fan is already
	// settled at the curve value for 30°C before the stepped sequence below.
	// Each warm-up temperature differs from the last by exactly
	// hysteresis_temp so every tick recomputes and steps, rather than
	// holding at a single repeated reading (which would freeze after the
	// first tick, same as steps 30 and 57.5 do deliberately below).
	var snap Snapshot
	var err error
	for _, warm := range []float64{20, 22, 24, 26, 28, 30} {
		mock.SetTemperature("k10temp_1", warm)
		snap, err = eng.Tick(ctx)
		require.NoError(t, err)
	}
	assert.Equal(t, "connecting", snap.Mode)

	steps := []struct {
		temp     float64
		wantDuty int
	}{
		{30, 20},
		{57, 25},
		{57.5, 25},
		{70, 30},
		{86, 100},
		{60, 95},
	}

	for _, step := range steps {
		mock.SetTemperature("k10temp_1", step.temp)
		snap, err := eng.Tick(ctx)
		require.NoError(t, err)

		var fan *hardware.Fan
		for i := range snap.Fans {
			if snap.Fans[i].ID == "mock_fan1" {
				fan = &snap.Fans[i]
			}
		}
		require.NotNil(t, fan)
		assert.Equal(t, step.wantDuty, fan.Duty, "temp=%v", step.temp)
	}
}

func TestEngineEmergencyOverridesEveryFan(t *testing.T) {
	eng, mock, _ := newTestEngine(t)
	ctx := context.Background()

	mock.SetTemperature("k10temp_1", 90)
	snap, err := eng.Tick(ctx)
	require.NoError(t, err)

	assert.True(t, snap.EmergencyActive)
	assert.Equal(t, "emergency", snap.Mode)
	for _, fan := range snap.Fans {
		if fan.HasPWMControl {
			assert.Equal(t, 100, fan.Duty)
		}
	}
}

func TestEngineEmergencyAutoClearsWithoutManualLatch(t *testing.T) {
	eng, mock, _ := newTestEngine(t)
	ctx := context.Background()

	mock.SetTemperature("k10temp_1", 90)
	_, err := eng.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, "emergency", eng.Mode())

	mock.SetTemperature("k10temp_1", 40)
	_, err = eng.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, "connecting", eng.Mode())
}

func TestEngineManualEmergencyLatchRequiresExplicitClear(t *testing.T) {
	eng, mock, _ := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, eng.TriggerEmergencyStop(ctx))
	mock.SetTemperature("k10temp_1", 30)

	_, err := eng.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, "emergency", eng.Mode())

	eng.ClearEmergency()
	_, err = eng.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, "connecting", eng.Mode())
}

func TestEngineFailsafeAppliesFailsafeSpeed(t *testing.T) {
	eng, mock, cfg := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.Tick(ctx)
	require.NoError(t, err)
	require.NoError(t, eng.NotifyDisconnected(ctx)) // connecting -> failsafe

	mock.SetTemperature("k10temp_1", 40)
	snap, err := eng.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, "failsafe", snap.Mode)

	for _, fan := range snap.Fans {
		if fan.HasPWMControl {
			assert.Equal(t, cfg.Hardware.FailsafeSpeed, fan.Duty)
		}
	}
}

func TestEngineEmergencyDuringFailsafe(t *testing.T) {
	eng, mock, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.Tick(ctx)
	require.NoError(t, err)
	require.NoError(t, eng.NotifyDisconnected(ctx))

	mock.SetTemperature("k10temp_1", 86)
	snap, err := eng.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, "emergency", snap.Mode)
	for _, fan := range snap.Fans {
		if fan.HasPWMControl {
			assert.Equal(t, 100, fan.Duty)
		}
	}
}

func TestEngineUnassignedFanUsesDefaultCurve(t *testing.T) {
	eng, mock, _ := newTestEngine(t)
	ctx := context.Background()

	mock.SetTemperature("k10temp_1", 30)
	snap, err := eng.Tick(ctx)
	require.NoError(t, err)

	for _, fan := range snap.Fans {
		if fan.ID == "mock_fan2" {
			assert.GreaterOrEqual(t, fan.Duty, 0)
		}
	}
}

func TestEngineSetFanDutyIsSkippedWhenUnchanged(t *testing.T) {
	eng, mock, _ := newTestEngine(t)
	ctx := context.Background()

	mock.SetTemperature("k10temp_1", 30)
	_, err := eng.Tick(ctx)
	require.NoError(t, err)

	duty1, ok := mock.LastWrittenDuty("mock_fan1")
	require.True(t, ok)

	_, err = eng.Tick(ctx)
	require.NoError(t, err)
	duty2, ok := mock.LastWrittenDuty("mock_fan1")
	require.True(t, ok)
	assert.Equal(t, duty1, duty2)
}

func TestEngineNeverWritesPWMWhenFanControlDisabledEvenDuringEmergency(t *testing.T) {
	eng, mock, cfg := newTestEngine(t)
	ctx := context.Background()

	cfg.Hardware.EnableFanControl = false

	mock.SetTemperature("k10temp_1", 90) // above emergency_temp
	_, err := eng.Tick(ctx)
	require.NoError(t, err)

	_, ok := mock.LastWrittenDuty("mock_fan1")
	assert.False(t, ok, "no PWM write may occur while enable_fan_control is false, even in emergency")
}

func TestSetManualFanSpeedRejectedWhenFanControlDisabled(t *testing.T) {
	eng, _, cfg := newTestEngine(t)
	cfg.Hardware.EnableFanControl = false

	err := eng.SetManualFanSpeed("mock_fan1", 50)
	assert.ErrorIs(t, err, ErrFanControlDisabled)
}
