// SPDX-License-Identifier: BSD-3-Clause

package state

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/qmuntal/stateless"
)

// FSM is a thread-safe finite state machine wrapping stateless.StateMachine
// with support for guards, entry actions, persistence, and broadcast.
type FSM struct {
	config  *Config
	machine *stateless.StateMachine
	mu      sync.RWMutex
	started bool
	stopped bool

	currentState string
}

// New creates a new FSM from the provided configuration.
func New(config *Config) (*FSM, error) {
	if config == nil {
		return nil, ErrInvalidConfig
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	sm := &FSM{
		config:       config,
		currentState: config.InitialState,
		machine:      stateless.NewStateMachine(config.InitialState),
	}

	byFrom := make(map[string][]Transition)
	for _, t := range config.Transitions {
		byFrom[t.From] = append(byFrom[t.From], t)
	}
	for from, transitions := range byFrom {
		cfg := sm.machine.Configure(from)
		for _, t := range transitions {
			t := t
			switch {
			case t.Guard != nil:
				cfg.PermitDynamic(t.Trigger, func(ctx context.Context, _ ...any) (any, error) {
					if t.Guard(ctx) {
						return t.To, nil
					}
					return nil, ErrTransitionGuardFailed
				})
			default:
				cfg.Permit(t.Trigger, t.To)
			}
			if t.Action != nil {
				sm.machine.Configure(t.To).OnEntryFrom(t.Trigger, func(ctx context.Context, _ ...any) error {
					return t.Action(ctx, t.From, t.To)
				})
			}
		}
	}

	return sm, nil
}

// Start marks the FSM ready to fire transitions, persisting the initial
// state if persistence is enabled.
func (sm *FSM) Start(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.started {
		return nil
	}
	if sm.stopped {
		return ErrStateMachineStopped
	}
	sm.started = true

	if sm.config.PersistState && sm.config.PersistCallback != nil {
		if err := sm.config.PersistCallback(ctx, sm.config.Name, sm.currentState); err != nil {
			return fmt.Errorf("%w: %w", ErrPersistenceFailed, err)
		}
	}
	return nil
}

// Stop marks the FSM stopped; subsequent Fire calls return ErrStateMachineStopped.
func (sm *FSM) Stop(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if !sm.started || sm.stopped {
		return nil
	}
	sm.stopped = true
	return nil
}

// Fire triggers a state transition, bounded by the configured state timeout.
// Persistence and broadcast callbacks, if set, run after the transition
// completes and with the FSM's lock released.
func (sm *FSM) Fire(ctx context.Context, trigger string) error {
	sm.mu.Lock()

	if !sm.started {
		sm.mu.Unlock()
		return ErrStateMachineNotStarted
	}
	if sm.stopped {
		sm.mu.Unlock()
		return ErrStateMachineStopped
	}

	if ok, err := sm.machine.CanFire(trigger); err != nil {
		sm.mu.Unlock()
		return fmt.Errorf("%w: trigger %s not valid in state %s: %w", ErrInvalidTrigger, trigger, sm.currentState, err)
	} else if !ok {
		sm.mu.Unlock()
		return fmt.Errorf("%w: trigger %s not valid in state %s", ErrInvalidTrigger, trigger, sm.currentState)
	}

	previousState := sm.currentState

	timeout := sm.config.StateTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	fireCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		if err := sm.machine.FireCtx(fireCtx, trigger); err != nil {
			done <- fmt.Errorf("%w: %w", ErrInvalidTransition, err)
			return
		}
		done <- nil
	}()

	select {
	case err := <-done:
		if err != nil {
			sm.mu.Unlock()
			return err
		}
	case <-fireCtx.Done():
		sm.mu.Unlock()
		if errors.Is(fireCtx.Err(), context.DeadlineExceeded) {
			return ErrTransitionTimeout
		}
		return fireCtx.Err()
	}

	rawState, err := sm.machine.State(ctx)
	if err != nil {
		sm.mu.Unlock()
		return fmt.Errorf("failed to read current state: %w", err)
	}
	sm.currentState = fmt.Sprintf("%v", rawState)

	name := sm.config.Name
	curr := sm.currentState
	persistEnabled := sm.config.PersistState
	persistCb := sm.config.PersistCallback
	broadcastCb := sm.config.BroadcastCallback
	sm.mu.Unlock()

	if persistEnabled && persistCb != nil {
		if perr := persistCb(ctx, name, curr); perr != nil {
			return fmt.Errorf("%w: %w", ErrPersistenceFailed, perr)
		}
	}
	if broadcastCb != nil {
		_ = broadcastCb(ctx, name, previousState, curr, trigger)
	}

	return nil
}

// CurrentState returns the FSM's current state.
func (sm *FSM) CurrentState() string {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.currentState
}

// CanFire reports whether trigger can fire from the current state.
func (sm *FSM) CanFire(trigger string) (bool, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.machine.CanFire(trigger)
}

// PermittedTriggers returns every trigger that can fire from the current state.
func (sm *FSM) PermittedTriggers() []string {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	triggers, err := sm.machine.PermittedTriggers()
	if err != nil {
		return nil
	}
	result := make([]string, len(triggers))
	for i, t := range triggers {
		result[i] = fmt.Sprintf("%v", t)
	}
	return result
}

// IsInState reports whether the FSM is currently in state.
func (sm *FSM) IsInState(state string) bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.currentState == state
}

// Name returns the FSM's name.
func (sm *FSM) Name() string { return sm.config.Name }

// ToGraph returns a DOT graph representation of the FSM, useful for
// documenting the agent connectivity mode or hub agent-status machines.
func (sm *FSM) ToGraph() string {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.machine.ToGraph()
}

// Manager owns a set of named FSMs, e.g. one per registered agent on the hub.
type Manager struct {
	mu       sync.RWMutex
	machines map[string]*FSM
}

// NewManager creates an empty Manager.
func NewManager() *Manager {
	return &Manager{machines: make(map[string]*FSM)}
}

// AddStateMachine registers sm under its own Name.
func (m *Manager) AddStateMachine(sm *FSM) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sm == nil {
		return fmt.Errorf("%w: nil state machine", ErrInvalidConfig)
	}
	if _, exists := m.machines[sm.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrStateMachineExists, sm.Name())
	}
	m.machines[sm.Name()] = sm
	return nil
}

// RemoveStateMachine drops the named machine from the manager.
func (m *Manager) RemoveStateMachine(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.machines[name]; !exists {
		return fmt.Errorf("%w: %s", ErrStateMachineNotFound, name)
	}
	delete(m.machines, name)
	return nil
}

// GetStateMachine looks up a machine by name.
func (m *Manager) GetStateMachine(name string) (*FSM, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sm, exists := m.machines[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrStateMachineNotFound, name)
	}
	return sm, nil
}

// ListStateMachines returns the names of every managed machine.
func (m *Manager) ListStateMachines() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.machines))
	for name := range m.machines {
		names = append(names, name)
	}
	return names
}

// StopAll stops every managed machine, joining any errors encountered.
func (m *Manager) StopAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for _, sm := range m.machines {
		if err := sm.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
