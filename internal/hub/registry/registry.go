// SPDX-License-Identifier: BSD-3-Clause

// Package registry holds the hub's in-memory fleet view: one entry per
// agent, keyed by agent-id, tracking session handle, last register
// snapshot, last telemetry, status, last-seen time, fan-profile
// assignments, and license-derived limits (spec.md §4.5 "Fleet registry").
// The locking discipline favors cheap concurrent reads (broadcast fan-out)
// over writes, following u-bmc's statemgr package's RWMutex-guarded
// in-memory state pattern.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pankha/pankha/internal/hub/license"
	"github.com/pankha/pankha/pkg/state"
	"github.com/pankha/pankha/pkg/wire"
)

// Status mirrors the agent-status FSM's state names, exported as a type
// for callers that don't want to depend on pkg/state directly.
type Status string

const (
	StatusOffline  Status = "offline"
	StatusOnline   Status = "online"
	StatusUpdating Status = "updating"
	StatusError    Status = "error"
)

// Session is the narrow surface the registry needs from an agent's live
// websocket session, to avoid importing internal/hub/dispatcher (which
// itself depends on registry) and creating an import cycle.
type Session interface {
	// SendCommand enqueues a command frame for delivery to this agent.
	SendCommand(frame wire.CommandFrame) error
	// Close tears down the underlying connection.
	Close() error
}

// Entry is one agent's fleet-registry record.
type Entry struct {
	AgentID  string
	Name     string
	Platform string
	Version  string

	Session Session

	LastRegister *wire.RegisterFrame
	LastSensors  map[string]wire.SensorReading
	LastFans     map[string]wire.FanReading
	LastSeen     time.Time

	FanProfileAssignments map[string]string // fanID -> profileID

	fsm *state.FSM
}

// Status reports the entry's current lifecycle status.
func (e *Entry) Status() Status {
	return Status(e.fsm.CurrentState())
}

// Registry is the fleet-wide agent table.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	fsms    *state.Manager
	oracle  license.Oracle
}

// New creates an empty Registry consulting oracle for tier-derived limits.
func New(oracle license.Oracle) *Registry {
	return &Registry{
		entries: make(map[string]*Entry),
		fsms:    state.NewManager(),
		oracle:  oracle,
	}
}

// Register records (or replaces) the session for agentID. Idempotent on
// agent-id: a second register from the same id replaces the session handle
// rather than duplicating the entry, per spec.md §4.5.
func (r *Registry) Register(ctx context.Context, frame wire.RegisterFrame, sess Session) (*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if limits := r.oracle.CurrentLimits(); limits.MaxAgents > 0 {
		if _, exists := r.entries[frame.AgentID]; !exists && len(r.entries) >= limits.MaxAgents {
			return nil, fmt.Errorf("%w: tier %s allows at most %d agents", ErrAgentLimitReached, limits.Tier, limits.MaxAgents)
		}
	}

	entry, exists := r.entries[frame.AgentID]
	if !exists {
		fsm, err := state.NewAgentStatusStateMachine(fmt.Sprintf("agent-status-%s", frame.AgentID))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFSMSetup, err)
		}
		if err := fsm.Start(ctx); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFSMSetup, err)
		}
		if err := r.fsms.AddStateMachine(fsm); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFSMSetup, err)
		}

		entry = &Entry{
			AgentID:               frame.AgentID,
			LastSensors:           make(map[string]wire.SensorReading),
			LastFans:              make(map[string]wire.FanReading),
			FanProfileAssignments: make(map[string]string),
			fsm:                   fsm,
		}
		r.entries[frame.AgentID] = entry
	}

	entry.Name = frame.Name
	entry.Platform = frame.Platform
	entry.Version = frame.Version
	entry.Session = sess
	regCopy := frame
	entry.LastRegister = &regCopy
	entry.LastSeen = nowFunc()

	if ok, _ := entry.fsm.CanFire("register"); ok {
		if err := entry.fsm.Fire(ctx, "register"); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrTransition, err)
		}
	}

	return entry, nil
}

// nowFunc is overridable in tests.
var nowFunc = time.Now

// Disconnect marks an agent offline and clears its session handle, leaving
// its last-known telemetry cached for the UI until it reconnects.
func (r *Registry) Disconnect(ctx context.Context, agentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[agentID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrAgentNotFound, agentID)
	}
	entry.Session = nil
	if ok, _ := entry.fsm.CanFire("disconnect"); ok {
		return entry.fsm.Fire(ctx, "disconnect")
	}
	return nil
}

// MarkUpdating transitions an agent into the updating status while a
// selfUpdate command is in flight.
func (r *Registry) MarkUpdating(ctx context.Context, agentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[agentID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrAgentNotFound, agentID)
	}
	if ok, _ := entry.fsm.CanFire("self_update_started"); ok {
		return entry.fsm.Fire(ctx, "self_update_started")
	}
	return nil
}

// ApplyTelemetry merges an agent's latest Data frame into the cached
// per-sensor/per-fan readings and refreshes LastSeen.
func (r *Registry) ApplyTelemetry(agentID string, sensors []wire.SensorReading, fans []wire.FanReading) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[agentID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrAgentNotFound, agentID)
	}

	for _, s := range sensors {
		entry.LastSensors[s.ID] = s
	}
	for _, f := range fans {
		entry.LastFans[f.ID] = f
	}
	entry.LastSeen = nowFunc()

	return nil
}

// AssignProfile records the hub-authoritative fan-to-profile binding.
func (r *Registry) AssignProfile(agentID, fanID, profileID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[agentID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrAgentNotFound, agentID)
	}
	entry.FanProfileAssignments[fanID] = profileID
	return nil
}

// Get returns a shallow copy of one agent's entry, or ErrAgentNotFound.
func (r *Registry) Get(agentID string) (Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[agentID]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrAgentNotFound, agentID)
	}
	return *entry, nil
}

// List returns every entry, sorted by agent-id for deterministic output.
func (r *Registry) List() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AgentID < out[j].AgentID })
	return out
}
