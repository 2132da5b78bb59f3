// SPDX-License-Identifier: BSD-3-Clause

package config

import "errors"

var (
	// ErrInvalidConfig indicates a structurally or semantically invalid configuration.
	ErrInvalidConfig = errors.New("invalid agent configuration")
	// ErrOutOfRange indicates a field value fell outside its permitted range.
	ErrOutOfRange = errors.New("configuration value out of range")
	// ErrConfigLoad indicates the configuration file could not be read or parsed.
	ErrConfigLoad = errors.New("failed to load configuration")
	// ErrConfigSave indicates the configuration could not be persisted.
	ErrConfigSave = errors.New("failed to save configuration")
)
