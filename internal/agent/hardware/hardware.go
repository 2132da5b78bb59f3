// SPDX-License-Identifier: BSD-3-Clause

// Package hardware defines the platform-agnostic capability set the control
// engine drives: sensor/fan discovery, sampling, and PWM writes. Concrete
// platforms (linux.go, windows.go, a forecast darwin.go) each implement
// Controller behind a build tag, and an untagged in-memory mock.go serves
// tests and platforms with no hardware binding, following u-bmc's
// per-platform capability split
// (spec's "dynamic capability discovery" redesign note): one coherent unit
// per platform, no mixing platforms in one file.
package hardware

import (
	"context"
	"errors"
)

// Errors returned by Controller operations, named directly by the contract
// in spec.md §4.1.
var (
	ErrReadUnavailable       = errors.New("sensor channel read unavailable")
	ErrUnsupported           = errors.New("fan does not support PWM control")
	ErrOutOfRange            = errors.New("duty out of range")
	ErrAccessDenied          = errors.New("access denied writing hardware")
	ErrFanNotFound           = errors.New("fan not found")
	ErrSensorNotFound        = errors.New("sensor not found")
	ErrPlatformUnsupported   = errors.New("hardware platform not supported")
)

// SensorType tags a Sensor with the coarse class used by the dashboard and
// by chip-class dedup priority.
type SensorType string

const (
	SensorTypeCPU         SensorType = "cpu"
	SensorTypeGPU         SensorType = "gpu"
	SensorTypeMotherboard SensorType = "motherboard"
	SensorTypeNVMe        SensorType = "nvme"
	SensorTypeOther       SensorType = "other"
)

// Sensor is a discovered temperature-bearing monitoring point.
type Sensor struct {
	ID          string
	ChipPrefix  string
	ChipGroup   string
	Label       string
	Type        SensorType
	Priority    int
	Visible     bool
	Temperature float64
	Warning     float64
	Critical    float64
	Stale       bool
}

// ControlSource names what a Fan's target temperature is derived from: a
// specific sensor id, the HIGHEST token (max over all visible sensors), or
// a chip-group token (max within that group).
const ControlSourceHighest = "HIGHEST"

// Fan is a discovered PWM-capable (or not) cooling device.
type Fan struct {
	ID            string
	Label         string
	RPM           int
	Duty          int
	LastPWM       int
	ProfileID     string
	ControlSource string
	HasPWMControl bool
}

// Controller is the capability set the control engine drives. Every
// platform implementation must honor the same invariants: no capability
// may silently drop a write, and set_fan_duty failures are typed per the
// contract above.
type Controller interface {
	// DiscoverSensors returns every sensor this host exposes. Restartable:
	// calling it again re-walks the hardware surface from scratch.
	DiscoverSensors(ctx context.Context) ([]Sensor, error)
	// DiscoverFans returns every fan this host exposes. Restartable.
	DiscoverFans(ctx context.Context) ([]Fan, error)
	// ReadSample reads every sensor and fan, returning temperatures and RPMs
	// keyed by id. A failure reading one channel does not invalidate the
	// others; it is reported via the returned per-id error map.
	ReadSample(ctx context.Context) (map[string]float64, map[string]int, map[string]error)
	// SetFanDuty writes a commanded duty percentage to one fan.
	SetFanDuty(ctx context.Context, fanID string, dutyPct int) error
	// ReleaseFanToAuto hands a fan back to firmware/driver control, where
	// that is meaningful (distinct from writing 100).
	ReleaseFanToAuto(ctx context.Context, fanID string) error
	// Platform names this controller's platform tag (linux, windows, mock).
	Platform() string
}
