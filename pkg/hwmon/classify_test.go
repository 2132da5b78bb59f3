// SPDX-License-Identifier: BSD-3-Clause

package hwmon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChipClassPriority(t *testing.T) {
	cases := []struct {
		name   string
		prefix string
		want   int
	}{
		{"cpu_amd", "k10temp", 100},
		{"cpu_intel", "coretemp", 100},
		{"gpu_nvidia", "nvidiagpu", 90},
		{"gpu_amd", "amdgpu", 90},
		{"superio_ite", "it8628", 85},
		{"superio_nuvoton", "nct6775", 85},
		{"nvme", "nvme", 75},
		{"wmi", "wmi_bus", 50},
		{"acpi", "acpitz", 40},
		{"unknown", "somevendorchip", 60},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ChipClassPriority(tc.prefix))
		})
	}
}

func TestDeriveChipGroup(t *testing.T) {
	cases := []struct {
		name string
		id   string
		want string
	}{
		{"plain_chip", "k10temp", "k10temp"},
		{"plain_chip_no_underscore", "it8628", "it8628"},
		{"chip_with_instance", "nvidiagpu_0", "nvidiagpu_0"},
		{"chip_with_instance_and_suffix", "nvidiagpu_0_tctl", "nvidiagpu_0"},
		{"empty", "", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DeriveChipGroup(tc.id))
		})
	}
}

func TestDeriveChipGroupIsStableAcrossCalls(t *testing.T) {
	ids := []string{"k10temp_tctl", "nvidiagpu_0", "it8628_3", "acpitz_0_crit"}
	for _, id := range ids {
		first := DeriveChipGroup(id)
		second := DeriveChipGroup(id)
		require.Equal(t, first, second, "derivation must be deterministic for %s", id)
	}
}

func TestDeduplicateSensorsHidesLowerPriorityWithinTolerance(t *testing.T) {
	readings := []SensorReading{
		{ID: "cpu0", ChipPrefix: "k10temp", Temperature: 45.2},
		{ID: "acpi0", ChipPrefix: "acpitz", Temperature: 45.8},
	}

	visible := DeduplicateSensors(readings, 1.0)

	assert.True(t, visible["cpu0"])
	assert.False(t, visible["acpi0"])
}

func TestDeduplicateSensorsKeepsDistantReadingsSeparate(t *testing.T) {
	readings := []SensorReading{
		{ID: "cpu0", ChipPrefix: "k10temp", Temperature: 45.0},
		{ID: "gpu0", ChipPrefix: "nvidiagpu", Temperature: 70.0},
	}

	visible := DeduplicateSensors(readings, 1.0)

	assert.True(t, visible["cpu0"])
	assert.True(t, visible["gpu0"])
}

func TestDeduplicateSensorsZeroToleranceDisablesFiltering(t *testing.T) {
	readings := []SensorReading{
		{ID: "cpu0", ChipPrefix: "k10temp", Temperature: 45.0},
		{ID: "acpi0", ChipPrefix: "acpitz", Temperature: 45.0},
	}

	visible := DeduplicateSensors(readings, 0)

	assert.True(t, visible["cpu0"])
	assert.True(t, visible["acpi0"])
}

func TestDeduplicateSensorsBreaksTiesBySensorID(t *testing.T) {
	readings := []SensorReading{
		{ID: "nct6775_fan2", ChipPrefix: "nct6775", Temperature: 40.0},
		{ID: "it8628_fan1", ChipPrefix: "it8628", Temperature: 40.1},
	}

	visible := DeduplicateSensors(readings, 0.5)

	assert.True(t, visible["it8628_fan1"])
	assert.False(t, visible["nct6775_fan2"])
}
