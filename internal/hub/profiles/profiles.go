// SPDX-License-Identifier: BSD-3-Clause

// Package profiles implements the hub-resident Profile Engine (spec.md
// §4.6): a library of built-in FanProfiles, curve validation, and
// import/export with conflict resolution. Agents never resolve profile
// identity — they only execute the curve and control-source token the hub
// pushes down with each assignment.
package profiles

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// CurvePoint is one (temperature, duty) pair of a FanProfile's curve.
type CurvePoint struct {
	Temperature float64 `json:"temperature"`
	Duty        float64 `json:"duty"`
}

// ProfileType tags what kind of source a profile targets, informing the
// default control-source token suggested at assignment time.
type ProfileType string

const (
	TypeCPU         ProfileType = "cpu"
	TypeGPU         ProfileType = "gpu"
	TypeMotherboard ProfileType = "motherboard"
	TypeGeneric     ProfileType = "generic"
)

// Profile is one FanProfile entity (spec.md §3).
type Profile struct {
	ID     string       `json:"id"`
	Name   string       `json:"name"`
	Type   ProfileType  `json:"type"`
	Curve  []CurvePoint `json:"curve"`
	Global bool         `json:"global"`
	System bool         `json:"system"`
}

// ConflictPolicy names how Import resolves an id collision with an
// existing profile.
type ConflictPolicy string

const (
	ConflictSkip      ConflictPolicy = "skip"
	ConflictRename     ConflictPolicy = "rename"
	ConflictOverwrite ConflictPolicy = "overwrite"
)

// exportFormat is the portable document's format tag, versioned
// independently of the Go module so old exports remain importable.
const (
	exportFormat  = "pankha.profile.v1"
	schemaVersion = 1
)

// exportEnvelope is the on-the-wire import/export document shape.
type exportEnvelope struct {
	Format        string    `json:"format"`
	SchemaVersion int       `json:"schemaVersion"`
	Profiles      []Profile `json:"profiles"`
}

// Engine owns the hub's profile library: built-ins plus user-authored
// profiles, keyed by id.
type Engine struct {
	profiles map[string]Profile
}

// New creates an Engine pre-seeded with the built-in library.
func New() *Engine {
	e := &Engine{profiles: make(map[string]Profile)}
	for _, p := range builtins() {
		e.profiles[p.ID] = p
	}
	return e
}

// builtins returns the read-only default profile library named in
// spec.md §4.6: Silent, Balanced, Performance, GPU-Optimal, Lazy,
// Standard, and a small-board variant.
func builtins() []Profile {
	return []Profile{
		{ID: "builtin-silent", Name: "Silent", Type: TypeGeneric, System: true, Global: true, Curve: []CurvePoint{
			{Temperature: 30, Duty: 10}, {Temperature: 50, Duty: 20}, {Temperature: 70, Duty: 40}, {Temperature: 85, Duty: 70},
		}},
		{ID: "builtin-balanced", Name: "Balanced", Type: TypeGeneric, System: true, Global: true, Curve: []CurvePoint{
			{Temperature: 30, Duty: 20}, {Temperature: 50, Duty: 40}, {Temperature: 65, Duty: 70}, {Temperature: 80, Duty: 100},
		}},
		{ID: "builtin-performance", Name: "Performance", Type: TypeGeneric, System: true, Global: true, Curve: []CurvePoint{
			{Temperature: 30, Duty: 40}, {Temperature: 45, Duty: 60}, {Temperature: 60, Duty: 85}, {Temperature: 75, Duty: 100},
		}},
		{ID: "builtin-gpu-optimal", Name: "GPU-Optimal", Type: TypeGPU, System: true, Global: true, Curve: []CurvePoint{
			{Temperature: 40, Duty: 30}, {Temperature: 60, Duty: 55}, {Temperature: 75, Duty: 85}, {Temperature: 85, Duty: 100},
		}},
		{ID: "builtin-lazy", Name: "Lazy", Type: TypeGeneric, System: true, Global: true, Curve: []CurvePoint{
			{Temperature: 40, Duty: 15}, {Temperature: 65, Duty: 25}, {Temperature: 80, Duty: 55}, {Temperature: 90, Duty: 100},
		}},
		{ID: "builtin-standard", Name: "Standard", Type: TypeGeneric, System: true, Global: true, Curve: []CurvePoint{
			{Temperature: 30, Duty: 25}, {Temperature: 55, Duty: 45}, {Temperature: 70, Duty: 75}, {Temperature: 82, Duty: 100},
		}},
		{ID: "builtin-small-board", Name: "Small Board", Type: TypeMotherboard, System: true, Global: true, Curve: []CurvePoint{
			{Temperature: 35, Duty: 30}, {Temperature: 55, Duty: 50}, {Temperature: 70, Duty: 80}, {Temperature: 80, Duty: 100},
		}},
	}
}

// Validate checks a user-authored curve against spec.md §4.6: at least two
// points; temperatures and duties in [0,100]; no duplicate temperatures.
func Validate(curve []CurvePoint) error {
	if len(curve) < 2 {
		return fmt.Errorf("%w: need at least 2 points, got %d", ErrInvalidCurve, len(curve))
	}

	seen := make(map[float64]bool, len(curve))
	for _, p := range curve {
		if p.Temperature < 0 || p.Temperature > 100 {
			return fmt.Errorf("%w: temperature %.1f outside [0,100]", ErrInvalidCurve, p.Temperature)
		}
		if p.Duty < 0 || p.Duty > 100 {
			return fmt.Errorf("%w: duty %.1f outside [0,100]", ErrInvalidCurve, p.Duty)
		}
		if seen[p.Temperature] {
			return fmt.Errorf("%w: duplicate temperature %.1f", ErrInvalidCurve, p.Temperature)
		}
		seen[p.Temperature] = true
	}
	return nil
}

// Create adds a new user-authored profile after validating its curve.
func (e *Engine) Create(name string, profileType ProfileType, curve []CurvePoint) (Profile, error) {
	if err := Validate(curve); err != nil {
		return Profile{}, err
	}
	p := Profile{ID: uuid.NewString(), Name: name, Type: profileType, Curve: curve}
	e.profiles[p.ID] = p
	return p, nil
}

// Clone copies an existing profile (built-in or not) under a new id, the
// only way to mutate the content of a system/global profile.
func (e *Engine) Clone(id, newName string) (Profile, error) {
	src, ok := e.profiles[id]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %s", ErrProfileNotFound, id)
	}
	clone := src
	clone.ID = uuid.NewString()
	clone.Name = newName
	clone.System = false
	clone.Global = false
	e.profiles[clone.ID] = clone
	return clone, nil
}

// Get looks up a profile by id.
func (e *Engine) Get(id string) (Profile, error) {
	p, ok := e.profiles[id]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %s", ErrProfileNotFound, id)
	}
	return p, nil
}

// List returns every profile in the library.
func (e *Engine) List() []Profile {
	out := make([]Profile, 0, len(e.profiles))
	for _, p := range e.profiles {
		out = append(out, p)
	}
	return out
}

// Export serializes the named profiles (or the whole library, if ids is
// empty) into the portable import/export document.
func (e *Engine) Export(ids []string) ([]byte, error) {
	var selected []Profile
	if len(ids) == 0 {
		selected = e.List()
	} else {
		for _, id := range ids {
			p, err := e.Get(id)
			if err != nil {
				return nil, err
			}
			selected = append(selected, p)
		}
	}

	return json.MarshalIndent(exportEnvelope{
		Format:        exportFormat,
		SchemaVersion: schemaVersion,
		Profiles:      selected,
	}, "", "  ")
}

// Import decodes a portable document and merges its profiles into the
// library, resolving id collisions per policy.
func (e *Engine) Import(data []byte, policy ConflictPolicy) ([]Profile, error) {
	var env exportEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedDocument, err)
	}
	if env.Format != exportFormat {
		return nil, fmt.Errorf("%w: unrecognized format %q", ErrMalformedDocument, env.Format)
	}

	imported := make([]Profile, 0, len(env.Profiles))
	for _, p := range env.Profiles {
		if err := Validate(p.Curve); err != nil {
			return nil, fmt.Errorf("%w: profile %s: %w", ErrMalformedDocument, p.Name, err)
		}

		if _, collides := e.profiles[p.ID]; collides {
			switch policy {
			case ConflictSkip:
				continue
			case ConflictRename:
				p.ID = uuid.NewString()
			case ConflictOverwrite:
				// fall through, overwrite in place below
			default:
				return nil, fmt.Errorf("%w: %s", ErrUnknownConflictPolicy, policy)
			}
		}

		p.System = false
		e.profiles[p.ID] = p
		imported = append(imported, p)
	}

	return imported, nil
}
