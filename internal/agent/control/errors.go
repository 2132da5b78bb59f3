// SPDX-License-Identifier: BSD-3-Clause

package control

import "errors"

var (
	// ErrEngineNotStarted names the condition of using an Engine before
	// Start. Tick does not check for it and never returns it; a transition
	// fired before Start fails with the state machine's own not-started error.
	ErrEngineNotStarted = errors.New("control engine not started")
	// ErrNoVisibleSensors names the condition of a fan's control source
	// resolving to no visible sensor (every candidate hidden by
	// deduplication or stale). Tick does not report it; the fan keeps its
	// current commanded duty instead.
	ErrNoVisibleSensors = errors.New("no visible sensor for control source")
	// ErrFanControlDisabled is returned when a command would write a PWM
	// value while enable_fan_control is false.
	ErrFanControlDisabled = errors.New("fan control is disabled")
)
