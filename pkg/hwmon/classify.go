// SPDX-License-Identifier: BSD-3-Clause

package hwmon

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

// ChipClassPriority returns the deduplication priority associated with a
// chip prefix (e.g. "k10temp", "it8628", "nvidiagpu"). Higher values win
// when two sensors are judged to read the same physical junction. Unknown
// prefixes get a middle-of-the-road priority rather than the lowest, since
// an unrecognized chip is more likely a vendor-specific board sensor than a
// synthetic ACPI/WMI fallback.
func ChipClassPriority(chipPrefix string) int {
	p := strings.ToLower(chipPrefix)

	switch {
	case strings.HasPrefix(p, "k10temp"), strings.HasPrefix(p, "coretemp"), strings.HasPrefix(p, "zenpower"):
		return 100
	case strings.Contains(p, "nvidia"), strings.Contains(p, "amdgpu"), strings.HasPrefix(p, "gpu"):
		return 90
	case strings.HasPrefix(p, "it86"), strings.HasPrefix(p, "nct"), strings.HasPrefix(p, "w836"), strings.HasPrefix(p, "f71"):
		return 85
	case strings.HasPrefix(p, "nvme"):
		return 75
	case strings.HasPrefix(p, "wmi"):
		return 50
	case strings.HasPrefix(p, "acpitz"), strings.HasPrefix(p, "acpi"):
		return 40
	default:
		return 60
	}
}

var (
	reChipGroupWithDigits = regexp.MustCompile(`^[A-Za-z0-9]+_[0-9]+`)
	reChipGroupAlnum      = regexp.MustCompile(`^[A-Za-z0-9]+`)
)

// DeriveChipGroup extracts a grouping key from a stable sensor-id, following
// a three-step cascade: the longest prefix matching "<alnum>+_<digits>+";
// failing that, the longest alnum run before the first underscore; failing
// that, the entire id. The same cascade must be applied on the agent and the
// hub so that UI sensor selections referencing a chip-group token (rather
// than a specific sensor-id) round-trip identically on both sides.
func DeriveChipGroup(sensorID string) string {
	if sensorID == "" {
		return sensorID
	}

	if m := reChipGroupWithDigits.FindString(sensorID); m != "" {
		return m
	}

	if idx := strings.IndexByte(sensorID, '_'); idx > 0 {
		prefix := sensorID[:idx]
		if m := reChipGroupAlnum.FindString(prefix); m != "" {
			return m
		}
		return prefix
	}

	if m := reChipGroupAlnum.FindString(sensorID); m != "" {
		return m
	}

	return sensorID
}

// SensorReading is the minimal per-sensor state the deduplication algorithm
// needs: a stable id, the chip prefix it was discovered under, and its most
// recent temperature reading.
type SensorReading struct {
	ID          string
	ChipPrefix  string
	Temperature float64
}

// DeduplicateSensors groups readings whose temperatures fall within
// tolerance degrees of one another and marks every sensor but the
// highest-priority one in each group as hidden. Ties within a group are
// broken by ascending sensor-id. Hidden sensors remain present in the
// returned map (visible=false) rather than omitted, since hidden sensors
// must stay addressable by id even though they are excluded from HIGHEST
// aggregation. A non-positive tolerance disables deduplication entirely:
// every sensor is reported visible.
func DeduplicateSensors(readings []SensorReading, tolerance float64) map[string]bool {
	visible := make(map[string]bool, len(readings))

	if tolerance <= 0 {
		for _, r := range readings {
			visible[r.ID] = true
		}
		return visible
	}

	sorted := make([]SensorReading, len(readings))
	copy(sorted, readings)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	grouped := make(map[string]bool, len(sorted))
	for i, anchor := range sorted {
		if grouped[anchor.ID] {
			continue
		}

		group := []SensorReading{anchor}
		for j := i + 1; j < len(sorted); j++ {
			candidate := sorted[j]
			if grouped[candidate.ID] {
				continue
			}
			if math.Abs(candidate.Temperature-anchor.Temperature) <= tolerance {
				group = append(group, candidate)
			}
		}

		best := group[0]
		bestPriority := ChipClassPriority(best.ChipPrefix)
		for _, g := range group[1:] {
			priority := ChipClassPriority(g.ChipPrefix)
			if priority > bestPriority {
				best, bestPriority = g, priority
			}
		}

		for _, g := range group {
			grouped[g.ID] = true
			visible[g.ID] = g.ID == best.ID
		}
	}

	return visible
}
