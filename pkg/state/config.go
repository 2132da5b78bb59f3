// SPDX-License-Identifier: BSD-3-Clause

package state

import (
	"context"
	"fmt"
	"time"
)

// Config holds the configuration for a state machine.
type Config struct {
	// Name is the unique identifier for the state machine.
	Name string
	// Description provides human-readable information about the state machine.
	Description string
	// InitialState is the starting state of the machine.
	InitialState string
	// States defines all possible states.
	States []string
	// Transitions defines allowed transitions, including optional guard and action handlers.
	Transitions []Transition
	// StateTimeout bounds how long a single Fire call may take.
	StateTimeout time.Duration
	// PersistState enables the persistence callback after a successful transition.
	PersistState bool
	// PersistCallback is invoked after a transition so the new state can be durably recorded.
	PersistCallback PersistenceCallback
	// BroadcastCallback is invoked after a transition so observers can be notified of the change.
	BroadcastCallback BroadcastCallback
}

// Transition describes one allowed state change.
type Transition struct {
	From    string
	To      string
	Trigger string
	Guard   GuardFunc
	Action  ActionFunc
}

// PersistenceCallback is called when a state change needs to be persisted.
type PersistenceCallback func(ctx context.Context, machineName, state string) error

// BroadcastCallback is called when a state change needs to be broadcast.
type BroadcastCallback func(ctx context.Context, machineName, previousState, currentState, trigger string) error

// GuardFunc determines if a transition is allowed to fire.
type GuardFunc func(ctx context.Context) bool

// ActionFunc runs on entry into the destination state of a transition.
type ActionFunc func(ctx context.Context, from, to string) error

// Option configures a Config.
type Option interface {
	apply(*Config)
}

type optionFunc func(*Config)

func (f optionFunc) apply(c *Config) { f(c) }

// WithName sets the name of the state machine.
func WithName(name string) Option {
	return optionFunc(func(c *Config) { c.Name = name })
}

// WithDescription sets the description of the state machine.
func WithDescription(description string) Option {
	return optionFunc(func(c *Config) { c.Description = description })
}

// WithInitialState sets the initial state of the state machine.
func WithInitialState(state string) Option {
	return optionFunc(func(c *Config) { c.InitialState = state })
}

// WithStates sets the available states for the state machine.
func WithStates(states ...string) Option {
	return optionFunc(func(c *Config) { c.States = append([]string(nil), states...) })
}

// WithTransition adds an unconditional transition to the state machine.
func WithTransition(from, to, trigger string) Option {
	return optionFunc(func(c *Config) {
		c.Transitions = append(c.Transitions, Transition{From: from, To: to, Trigger: trigger})
	})
}

// WithGuardedTransition adds a transition with a guard condition.
func WithGuardedTransition(from, to, trigger string, guard GuardFunc) Option {
	return optionFunc(func(c *Config) {
		c.Transitions = append(c.Transitions, Transition{From: from, To: to, Trigger: trigger, Guard: guard})
	})
}

// WithActionTransition adds a transition that runs an action on entry.
func WithActionTransition(from, to, trigger string, action ActionFunc) Option {
	return optionFunc(func(c *Config) {
		c.Transitions = append(c.Transitions, Transition{From: from, To: to, Trigger: trigger, Action: action})
	})
}

// WithCompleteTransition adds a transition with both a guard and an action.
func WithCompleteTransition(from, to, trigger string, guard GuardFunc, action ActionFunc) Option {
	return optionFunc(func(c *Config) {
		c.Transitions = append(c.Transitions, Transition{From: from, To: to, Trigger: trigger, Guard: guard, Action: action})
	})
}

// WithStateTimeout sets the maximum duration for state transitions.
func WithStateTimeout(timeout time.Duration) Option {
	return optionFunc(func(c *Config) { c.StateTimeout = timeout })
}

// WithPersistence enables persistence and sets its callback.
func WithPersistence(callback PersistenceCallback) Option {
	return optionFunc(func(c *Config) {
		c.PersistState = true
		c.PersistCallback = callback
	})
}

// WithBroadcast sets the broadcast callback.
func WithBroadcast(callback BroadcastCallback) Option {
	return optionFunc(func(c *Config) { c.BroadcastCallback = callback })
}

// NewConfig creates a new state machine configuration with the provided options.
func NewConfig(opts ...Option) *Config {
	cfg := &Config{
		States:       []string{},
		Transitions:  []Transition{},
		StateTimeout: 5 * time.Second,
	}

	for _, opt := range opts {
		opt.apply(cfg)
	}

	return cfg
}

// Validate checks if the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidConfig)
	}
	if c.InitialState == "" {
		return fmt.Errorf("%w: initial state cannot be empty", ErrInvalidConfig)
	}
	if len(c.States) == 0 {
		return fmt.Errorf("%w: at least one state must be defined", ErrInvalidConfig)
	}

	initialStateFound := false
	stateNames := make(map[string]bool, len(c.States))
	for _, state := range c.States {
		if state == "" {
			return fmt.Errorf("%w: state name cannot be empty", ErrInvalidConfig)
		}
		if stateNames[state] {
			return fmt.Errorf("%w: duplicate state name: %s", ErrInvalidConfig, state)
		}
		stateNames[state] = true
		if state == c.InitialState {
			initialStateFound = true
		}
	}
	if !initialStateFound {
		return fmt.Errorf("%w: initial state %s not found in states list", ErrInvalidConfig, c.InitialState)
	}

	for _, transition := range c.Transitions {
		if transition.From == "" || transition.To == "" {
			return fmt.Errorf("%w: transition from and to states cannot be empty", ErrInvalidConfig)
		}
		if transition.Trigger == "" {
			return fmt.Errorf("%w: transition trigger cannot be empty", ErrInvalidConfig)
		}
		if !stateNames[transition.From] {
			return fmt.Errorf("%w: transition from state %s not found", ErrInvalidConfig, transition.From)
		}
		if !stateNames[transition.To] {
			return fmt.Errorf("%w: transition to state %s not found", ErrInvalidConfig, transition.To)
		}
	}

	if c.StateTimeout <= 0 {
		return fmt.Errorf("%w: state timeout must be positive", ErrInvalidConfig)
	}

	return nil
}
