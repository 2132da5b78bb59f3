// SPDX-License-Identifier: BSD-3-Clause

// Package config holds the agent's persisted configuration: a JSON document
// loaded at boot, mutated atomically by inbound commands, and written back
// to the same file with a write-then-rename so the file never observes a
// partial state.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// AgentSection holds agent identity and cadence fields.
type AgentSection struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	UpdateInterval float64 `json:"update_interval"`
	LogLevel       string `json:"log_level"`
}

// BackendSection holds the hub connection fields.
type BackendSection struct {
	ServerURL           string  `json:"server_url"`
	ReconnectInterval   float64 `json:"reconnect_interval"`
	ConnectionTimeout   float64 `json:"connection_timeout"`
	MaxReconnectAttempts int    `json:"max_reconnect_attempts"`
}

// HardwareSection holds the control-loop tuning fields.
type HardwareSection struct {
	EnableFanControl         bool    `json:"enable_fan_control"`
	EmergencyTemp            float64 `json:"emergency_temp"`
	FailsafeSpeed            int     `json:"failsafe_speed"`
	FanSafetyMinimum         int     `json:"fan_safety_minimum"`
	HysteresisTemp           float64 `json:"hysteresis_temp"`
	FanStepPercent           int     `json:"fan_step_percent"`
	FilterDuplicateSensors   bool    `json:"filter_duplicate_sensors"`
	DuplicateSensorTolerance float64 `json:"duplicate_sensor_tolerance"`
}

// LoggingSection holds local log-file rotation fields.
type LoggingSection struct {
	FilePath      string `json:"file_path"`
	RotationSize  int64  `json:"rotation_size_bytes"`
	RetentionDays int    `json:"retention_days"`
}

// AgentConfig is the full on-disk configuration document.
type AgentConfig struct {
	Agent    AgentSection    `json:"agent"`
	Backend  BackendSection  `json:"backend"`
	Hardware HardwareSection `json:"hardware"`
	Logging  LoggingSection  `json:"logging"`

	path string
	mu   sync.RWMutex
}

// validFanSteps mirrors the setFanStep command's enumerated payload.
var validFanSteps = map[int]bool{3: true, 5: true, 10: true, 15: true, 25: true, 50: true, 100: true}

// Default returns a new AgentConfig populated with sensible defaults,
// matching the synthesized document written when no config file exists yet.
func Default(agentID, agentName string) *AgentConfig {
	return &AgentConfig{
		Agent: AgentSection{
			ID:             agentID,
			Name:           agentName,
			UpdateInterval: 2,
			LogLevel:       "info",
		},
		Backend: BackendSection{
			ServerURL:            "ws://localhost:8090/ws/agent",
			ReconnectInterval:    5,
			ConnectionTimeout:    10,
			MaxReconnectAttempts: -1,
		},
		Hardware: HardwareSection{
			EnableFanControl:         true,
			EmergencyTemp:            90,
			FailsafeSpeed:            70,
			FanSafetyMinimum:         10,
			HysteresisTemp:           2,
			FanStepPercent:           5,
			FilterDuplicateSensors:   true,
			DuplicateSensorTolerance: 1.0,
		},
		Logging: LoggingSection{
			FilePath:      "",
			RotationSize:  10 * 1024 * 1024,
			RetentionDays: 7,
		},
	}
}

// Load reads and parses the configuration file at path. If the file does
// not exist, a default document seeded with agentID/agentName is written
// and returned.
func Load(path, agentID, agentName string) (*AgentConfig, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		cfg := Default(agentID, agentName)
		cfg.path = path
		if err := cfg.Save(); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfigLoad, err)
	}

	cfg := &AgentConfig{path: path}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfigLoad, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save serializes the configuration and writes it to its file atomically
// (write to a temp file in the same directory, then rename over the
// original). Unlike pkg/file's AtomicUpdateFile, this replaces the file's
// full contents rather than appending to them, which is what a config
// document requires.
func (c *AgentConfig) Save() error {
	c.mu.RLock()
	data, err := json.MarshalIndent(c, "", "  ")
	c.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfigSave, err)
	}

	dir := filepath.Dir(c.path)
	tmp, err := os.CreateTemp(dir, fmt.Sprintf(".%s.tmp.*", filepath.Base(c.path)))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfigSave, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: %w", ErrConfigSave, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrConfigSave, err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return fmt.Errorf("%w: %w", ErrConfigSave, err)
	}
	if err := os.Rename(tmpName, c.path); err != nil {
		return fmt.Errorf("%w: %w", ErrConfigSave, err)
	}

	return nil
}

// Snapshot returns a deep copy of the configuration, safe for the control
// loop to read without holding the config's lock for the duration of a tick.
func (c *AgentConfig) Snapshot() AgentConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return AgentConfig{Agent: c.Agent, Backend: c.Backend, Hardware: c.Hardware, Logging: c.Logging}
}

// Mutate applies fn to the configuration under an exclusive lock, validates
// the result, and persists it if the mutation and validation both succeed.
// On any failure the configuration is left unchanged.
func (c *AgentConfig) Mutate(fn func(*AgentConfig)) error {
	c.mu.Lock()

	before := AgentConfig{Agent: c.Agent, Backend: c.Backend, Hardware: c.Hardware, Logging: c.Logging}
	fn(c)

	if err := c.validateLocked(); err != nil {
		c.Agent, c.Backend, c.Hardware, c.Logging = before.Agent, before.Backend, before.Hardware, before.Logging
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()

	if err := c.Save(); err != nil {
		c.mu.Lock()
		c.Agent, c.Backend, c.Hardware, c.Logging = before.Agent, before.Backend, before.Hardware, before.Logging
		c.mu.Unlock()
		return err
	}
	return nil
}

// Validate checks every field against its documented range.
func (c *AgentConfig) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.validateLocked()
}

func (c *AgentConfig) validateLocked() error {
	if c.Agent.ID == "" {
		return fmt.Errorf("%w: agent id cannot be empty", ErrInvalidConfig)
	}
	if c.Agent.UpdateInterval < 0.5 || c.Agent.UpdateInterval > 30 {
		return fmt.Errorf("%w: update_interval %.2f outside [0.5, 30]", ErrOutOfRange, c.Agent.UpdateInterval)
	}
	if c.Backend.ServerURL == "" {
		return fmt.Errorf("%w: backend server_url cannot be empty", ErrInvalidConfig)
	}
	if c.Hardware.EmergencyTemp < 70 || c.Hardware.EmergencyTemp > 100 {
		return fmt.Errorf("%w: emergency_temp %.2f outside [70, 100]", ErrOutOfRange, c.Hardware.EmergencyTemp)
	}
	if c.Hardware.FailsafeSpeed < 0 || c.Hardware.FailsafeSpeed > 100 {
		return fmt.Errorf("%w: failsafe_speed %d outside [0, 100]", ErrOutOfRange, c.Hardware.FailsafeSpeed)
	}
	if c.Hardware.FanSafetyMinimum < 0 || c.Hardware.FanSafetyMinimum > 100 {
		return fmt.Errorf("%w: fan_safety_minimum %d outside [0, 100]", ErrOutOfRange, c.Hardware.FanSafetyMinimum)
	}
	if c.Hardware.HysteresisTemp < 0.0 || c.Hardware.HysteresisTemp > 10.0 {
		return fmt.Errorf("%w: hysteresis_temp %.2f outside [0.0, 10.0]", ErrOutOfRange, c.Hardware.HysteresisTemp)
	}
	if !validFanSteps[c.Hardware.FanStepPercent] {
		return fmt.Errorf("%w: fan_step_percent %d not one of {3,5,10,15,25,50,100}", ErrOutOfRange, c.Hardware.FanStepPercent)
	}
	if c.Hardware.DuplicateSensorTolerance < 0.25 || c.Hardware.DuplicateSensorTolerance > 5.0 {
		return fmt.Errorf("%w: duplicate_sensor_tolerance %.2f outside [0.25, 5.0]", ErrOutOfRange, c.Hardware.DuplicateSensorTolerance)
	}

	return nil
}

// UpdateIntervalDuration returns Agent.UpdateInterval as a time.Duration,
// clamped to the [0.5s, 30s] range the control loop's ticker honors.
func (c *AgentConfig) UpdateIntervalDuration() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()

	seconds := c.Agent.UpdateInterval
	if seconds < 0.5 {
		seconds = 0.5
	}
	if seconds > 30 {
		seconds = 30
	}
	return time.Duration(seconds * float64(time.Second))
}
