// SPDX-License-Identifier: BSD-3-Clause

package hardware

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockControllerDiscoverSensorsAndFans(t *testing.T) {
	m := NewMockController()

	sensors, err := m.DiscoverSensors(context.Background())
	require.NoError(t, err)
	assert.Len(t, sensors, 3)

	fans, err := m.DiscoverFans(context.Background())
	require.NoError(t, err)
	assert.Len(t, fans, 2)
	for _, f := range fans {
		assert.True(t, f.HasPWMControl)
	}
}

func TestMockControllerSetFanDutyWritesAndComputesRPM(t *testing.T) {
	m := NewMockController()

	err := m.SetFanDuty(context.Background(), "mock_fan1", 50)
	require.NoError(t, err)

	duty, ok := m.LastWrittenDuty("mock_fan1")
	require.True(t, ok)
	assert.Equal(t, 127, duty) // 50% of 255, truncated

	_, rpms, errs := m.ReadSample(context.Background())
	require.Empty(t, errs)
	assert.Equal(t, 600+50*14, rpms["mock_fan1"])
}

func TestMockControllerSetFanDutyRejectsOutOfRange(t *testing.T) {
	m := NewMockController()
	err := m.SetFanDuty(context.Background(), "mock_fan1", 150)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestMockControllerSetFanDutyUnknownFan(t *testing.T) {
	m := NewMockController()
	err := m.SetFanDuty(context.Background(), "nope", 50)
	assert.ErrorIs(t, err, ErrFanNotFound)
}

func TestMockControllerReleaseFanToAuto(t *testing.T) {
	m := NewMockController()
	require.NoError(t, m.SetFanDuty(context.Background(), "mock_fan1", 80))
	assert.False(t, m.IsReleasedToAuto("mock_fan1"))

	require.NoError(t, m.ReleaseFanToAuto(context.Background(), "mock_fan1"))
	assert.True(t, m.IsReleasedToAuto("mock_fan1"))
}

func TestMockControllerSetTemperatureOverride(t *testing.T) {
	m := NewMockController()
	m.SetTemperature("k10temp_1", 88.5)

	temps, _, errs := m.ReadSample(context.Background())
	require.Empty(t, errs)
	assert.Equal(t, 88.5, temps["k10temp_1"])
}

func TestMockControllerSetReadFailure(t *testing.T) {
	m := NewMockController()
	m.SetReadFailure("k10temp_1", true)

	temps, _, errs := m.ReadSample(context.Background())
	require.Error(t, errs["k10temp_1"])
	assert.True(t, errors.Is(errs["k10temp_1"], ErrReadUnavailable))
	_, ok := temps["k10temp_1"]
	assert.False(t, ok)

	m.SetReadFailure("k10temp_1", false)
	temps, _, errs = m.ReadSample(context.Background())
	require.Empty(t, errs)
	_, ok = temps["k10temp_1"]
	assert.True(t, ok)
}
