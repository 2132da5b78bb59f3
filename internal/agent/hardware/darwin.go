// SPDX-License-Identifier: BSD-3-Clause

//go:build darwin

package hardware

import (
	"context"
	"fmt"
)

// DarwinController documents the gap rather than silently compiling an
// empty capability set: a macOS variant is forecast by the specification
// but not required, and the pack carries no macOS SMC/IOKit binding to
// ground one on.
type DarwinController struct{}

// NewDarwinController returns a Controller stub that fails every operation
// with ErrPlatformUnsupported.
func NewDarwinController() *DarwinController { return &DarwinController{} }

func (c *DarwinController) Platform() string { return "darwin" }

func (c *DarwinController) DiscoverSensors(ctx context.Context) ([]Sensor, error) {
	return nil, fmt.Errorf("%w: macOS sensor discovery", ErrPlatformUnsupported)
}

func (c *DarwinController) DiscoverFans(ctx context.Context) ([]Fan, error) {
	return nil, fmt.Errorf("%w: macOS fan discovery", ErrPlatformUnsupported)
}

func (c *DarwinController) ReadSample(ctx context.Context) (map[string]float64, map[string]int, map[string]error) {
	return nil, nil, map[string]error{"": fmt.Errorf("%w: macOS read_sample", ErrPlatformUnsupported)}
}

func (c *DarwinController) SetFanDuty(ctx context.Context, fanID string, dutyPct int) error {
	return fmt.Errorf("%w: macOS set_fan_duty", ErrPlatformUnsupported)
}

func (c *DarwinController) ReleaseFanToAuto(ctx context.Context, fanID string) error {
	return fmt.Errorf("%w: macOS release_fan_to_auto", ErrPlatformUnsupported)
}
