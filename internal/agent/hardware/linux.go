// SPDX-License-Identifier: BSD-3-Clause

//go:build linux

package hardware

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/pankha/pankha/pkg/hwmon"
)

// LinuxController walks the kernel hwmon surface under /sys/class/hwmon.
// Sensor and fan ids are built from chip name + sensor index so they are
// stable across restarts for an unchanged hardware layout.
type LinuxController struct {
	discoverer *hwmon.Discoverer

	mu          sync.RWMutex
	sensorPaths map[string]string // sensor id -> input attribute sysfs path
	fanPaths    map[string]fanPath
}

type fanPath struct {
	rpmPath  string
	pwmPath  string
	writable bool
}

// NewLinuxController creates a Controller backed by sysfs hwmon discovery.
func NewLinuxController(opts ...hwmon.DiscoveryOption) *LinuxController {
	return &LinuxController{
		discoverer:  hwmon.NewDiscoverer(opts...),
		sensorPaths: make(map[string]string),
		fanPaths:    make(map[string]fanPath),
	}
}

func (c *LinuxController) Platform() string { return "linux" }

// DiscoverSensors re-walks hwmon, returning every temperature sensor with its chip-derived priority, chip group, and visibility
// computed by the configured deduplication pass (visibility is recomputed
// by the caller via hwmon.DeduplicateSensors once current readings are
// available; at discovery time every sensor defaults to visible).
func (c *LinuxController) DiscoverSensors(ctx context.Context) ([]Sensor, error) {
	devices, err := c.discoverer.DiscoverDevices(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadUnavailable, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.sensorPaths = make(map[string]string)

	var sensors []Sensor
	for _, device := range devices {
		infos, err := device.GetSensorsByType(ctx, hwmon.SensorTypeTemperature)
		if err != nil {
			continue
		}

		for _, info := range infos {
			path, err := info.GetAttributePath(hwmon.AttributeInput)
			if err != nil {
				continue
			}

			id := fmt.Sprintf("%s_%d", device.Name, info.Index)
			c.sensorPaths[id] = path

			sensors = append(sensors, Sensor{
				ID:         id,
				ChipPrefix: device.Name,
				ChipGroup:  hwmon.DeriveChipGroup(id),
				Label:      info.Label,
				Type:       classifySensorType(device.Name),
				Priority:   hwmon.ChipClassPriority(device.Name),
				Visible:    true,
			})
		}
	}

	sort.Slice(sensors, func(i, j int) bool { return sensors[i].ID < sensors[j].ID })
	return sensors, nil
}

// DiscoverFans re-walks hwmon for fan (tach) and pwm sensors, pairing a
// fanN_input with a pwmN control file on the same device when present.
func (c *LinuxController) DiscoverFans(ctx context.Context) ([]Fan, error) {
	devices, err := c.discoverer.DiscoverDevices(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadUnavailable, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.fanPaths = make(map[string]fanPath)

	var fans []Fan
	for _, device := range devices {
		tachs, err := device.GetSensorsByType(ctx, hwmon.SensorTypeFan)
		if err != nil {
			continue
		}
		pwms, err := device.GetSensorsByType(ctx, hwmon.SensorTypePWM)
		if err != nil {
			pwms = nil
		}
		pwmByIndex := make(map[int]*hwmon.SensorInfo, len(pwms))
		for _, p := range pwms {
			pwmByIndex[p.Index] = p
		}

		for _, tach := range tachs {
			rpmPath, err := tach.GetAttributePath(hwmon.AttributeInput)
			if err != nil {
				continue
			}

			id := fmt.Sprintf("%s_fan%d", device.Name, tach.Index)
			fp := fanPath{rpmPath: rpmPath}

			if pwm, ok := pwmByIndex[tach.Index]; ok {
				if pwmInputPath, err := pwm.GetAttributePath(hwmon.AttributeInput); err == nil {
					fp.pwmPath = pwmInputPath
					fp.writable = hwmon.IsWritable(pwmInputPath)
				}
			}
			c.fanPaths[id] = fp

			fans = append(fans, Fan{
				ID:            id,
				Label:         tach.Label,
				ControlSource: ControlSourceHighest,
				HasPWMControl: fp.writable,
			})
		}
	}

	sort.Slice(fans, func(i, j int) bool { return fans[i].ID < fans[j].ID })
	return fans, nil
}

// ReadSample refreshes every known sensor and fan reading.
func (c *LinuxController) ReadSample(ctx context.Context) (map[string]float64, map[string]int, map[string]error) {
	c.mu.RLock()
	sensorPaths := make(map[string]string, len(c.sensorPaths))
	for id, p := range c.sensorPaths {
		sensorPaths[id] = p
	}
	fanPaths := make(map[string]fanPath, len(c.fanPaths))
	for id, p := range c.fanPaths {
		fanPaths[id] = p
	}
	c.mu.RUnlock()

	temps := make(map[string]float64, len(sensorPaths))
	rpms := make(map[string]int, len(fanPaths))
	errs := make(map[string]error)

	for id, path := range sensorPaths {
		milli, err := hwmon.ReadIntCtx(ctx, path)
		if err != nil {
			errs[id] = fmt.Errorf("%w: %w", ErrReadUnavailable, err)
			continue
		}
		temps[id] = hwmon.NewTemperatureValue(int64(milli)).Celsius()
	}

	for id, fp := range fanPaths {
		rpm, err := hwmon.ReadIntCtx(ctx, fp.rpmPath)
		if err != nil {
			errs[id] = fmt.Errorf("%w: %w", ErrReadUnavailable, err)
			continue
		}
		rpms[id] = int(hwmon.NewFanValue(int64(rpm)).RPM())
	}

	return temps, rpms, errs
}

// SetFanDuty writes a 0-100 duty percentage, converting to the 0-255 pwmN
// raw scale hwmon expects.
func (c *LinuxController) SetFanDuty(ctx context.Context, fanID string, dutyPct int) error {
	if dutyPct < 0 || dutyPct > 100 {
		return fmt.Errorf("%w: %d", ErrOutOfRange, dutyPct)
	}

	c.mu.RLock()
	fp, ok := c.fanPaths[fanID]
	c.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrFanNotFound, fanID)
	}
	if fp.pwmPath == "" || !fp.writable {
		return fmt.Errorf("%w: %s", ErrUnsupported, fanID)
	}

	pwm := hwmon.NewPWMValue(int64(float64(dutyPct) / 100.0 * 255.0))
	if err := hwmon.WriteIntCtx(ctx, fp.pwmPath, int(pwm.Raw())); err != nil {
		return fmt.Errorf("%w: %w", ErrAccessDenied, err)
	}
	return nil
}

// ReleaseFanToAuto always fails on Linux hwmon: there is no firmware-auto
// mode distinct from a PWM write, so it returns ErrUnsupported for a known
// fan and ErrFanNotFound otherwise, and the caller should instead write the
// platform's agreed failsafe duty.
func (c *LinuxController) ReleaseFanToAuto(ctx context.Context, fanID string) error {
	c.mu.RLock()
	_, ok := c.fanPaths[fanID]
	c.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrFanNotFound, fanID)
	}
	return fmt.Errorf("%w: release-to-auto has no linux hwmon equivalent", ErrUnsupported)
}

func classifySensorType(chipPrefix string) SensorType {
	priority := hwmon.ChipClassPriority(chipPrefix)
	switch {
	case priority >= 100:
		return SensorTypeCPU
	case priority >= 90:
		return SensorTypeGPU
	case priority >= 80:
		return SensorTypeMotherboard
	case priority >= 70:
		return SensorTypeNVMe
	default:
		return SensorTypeOther
	}
}
