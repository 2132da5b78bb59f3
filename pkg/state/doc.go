// SPDX-License-Identifier: BSD-3-Clause

// Package state provides a finite state machine wrapper around
// github.com/qmuntal/stateless, adding persistence and broadcast callbacks,
// a bounded transition timeout, and a Manager for keeping many named
// machines (one per tracked entity) in one place.
//
// The agent uses NewConnectivityStateMachine to track its own
// connecting/online/failsafe/emergency mode; the hub uses
// NewAgentStatusStateMachine, one instance per registered agent held in its
// Manager, to track offline/online/updating/error session status.
//
// # Basic usage
//
//	sm, err := state.NewConnectivityStateMachine("agent",
//		state.WithPersistence(func(ctx context.Context, name, s string) error {
//			return os.WriteFile(modePath, []byte(s), 0o600)
//		}),
//		state.WithBroadcast(func(ctx context.Context, name, from, to, trigger string) error {
//			logger.Info("connectivity mode changed", "from", from, "to", to, "trigger", trigger)
//			return nil
//		}),
//	)
//	if err != nil {
//		return err
//	}
//	if err := sm.Start(ctx); err != nil {
//		return err
//	}
//	if err := sm.Fire(ctx, "session_established"); err != nil {
//		logger.Warn("transition rejected", "error", err)
//	}
package state
