// SPDX-License-Identifier: BSD-3-Clause

package state

import "time"

// NewStateMachine builds an FSM from the provided options.
func NewStateMachine(opts ...Option) (*FSM, error) {
	return New(NewConfig(opts...))
}

// NewConnectivityStateMachine builds the agent's connectivity-mode FSM:
// Connecting -> Online while a session is established, Failsafe while the
// hub is unreachable and safety limits take over, Emergency on a sensor
// emergency condition regardless of connectivity.
func NewConnectivityStateMachine(name string, opts ...Option) (*FSM, error) {
	baseOpts := []Option{
		WithName(name),
		WithDescription("agent connectivity mode"),
		WithInitialState("connecting"),
		WithStates("connecting", "online", "failsafe", "emergency"),
		WithTransition("connecting", "online", "session_established"),
		WithTransition("online", "connecting", "session_lost"),
		WithTransition("connecting", "failsafe", "failsafe_timeout_elapsed"),
		WithTransition("online", "failsafe", "session_lost_with_timeout"),
		WithTransition("failsafe", "connecting", "reconnect_attempt"),
		WithTransition("connecting", "emergency", "thermal_emergency"),
		WithTransition("online", "emergency", "thermal_emergency"),
		WithTransition("failsafe", "emergency", "thermal_emergency"),
		WithTransition("emergency", "connecting", "emergency_cleared"),
		WithStateTimeout(10 * time.Second),
	}
	return NewStateMachine(append(baseOpts, opts...)...)
}

// NewAgentStatusStateMachine builds the hub-side per-agent status FSM used
// by the registry to track session health independent of the agent's own
// connectivity FSM.
func NewAgentStatusStateMachine(name string, opts ...Option) (*FSM, error) {
	baseOpts := []Option{
		WithName(name),
		WithDescription("hub-tracked agent status"),
		WithInitialState("offline"),
		WithStates("offline", "online", "updating", "error"),
		WithTransition("offline", "online", "register"),
		WithTransition("online", "offline", "disconnect"),
		WithTransition("online", "updating", "self_update_started"),
		WithTransition("updating", "offline", "disconnect"),
		WithTransition("updating", "online", "self_update_complete"),
		WithTransition("online", "error", "watchdog_timeout"),
		WithTransition("error", "offline", "disconnect"),
		WithTransition("error", "online", "register"),
		WithStateTimeout(5 * time.Second),
	}
	return NewStateMachine(append(baseOpts, opts...)...)
}
