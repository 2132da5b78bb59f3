// SPDX-License-Identifier: BSD-3-Clause

package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pankha/pankha/internal/agent/hardware"
)

func TestParseRecognizesTestAndVersionVerbs(t *testing.T) {
	opts, err := Parse([]string{"-test"})
	require.NoError(t, err)
	assert.True(t, opts.Test)

	opts, err = Parse([]string{"-version"})
	require.NoError(t, err)
	assert.True(t, opts.PrintVersion)
}

func TestRunVersionPrintsVersion(t *testing.T) {
	var stdout, stderr bytes.Buffer
	opts := Options{PrintVersion: true}

	code := Run(context.Background(), opts, hardware.NewMockController(), &stdout, &stderr)

	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout.String(), Version)
}

func TestRunTestReportsDiscoveredHardware(t *testing.T) {
	var stdout, stderr bytes.Buffer
	opts := Options{Test: true}

	code := Run(context.Background(), opts, hardware.NewMockController(), &stdout, &stderr)

	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout.String(), "sensor")
	assert.Contains(t, stdout.String(), "fan")
}

func TestRunCheckFailsWithoutConfig(t *testing.T) {
	var stdout, stderr bytes.Buffer
	opts := Options{Check: true, ConfigPath: filepath.Join(t.TempDir(), "missing.json")}

	code := Run(context.Background(), opts, hardware.NewMockController(), &stdout, &stderr)

	assert.Equal(t, ExitMissingConfig, code)
}

func TestRunSetupThenPrintConfigRoundTrips(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "agent.json")

	var stdout, stderr bytes.Buffer
	setupOpts := Options{Setup: true, ConfigPath: configPath}
	code := Run(context.Background(), setupOpts, hardware.NewMockController(), &stdout, &stderr)
	require.Equal(t, ExitSuccess, code)

	stdout.Reset()
	printOpts := Options{PrintConfig: true, ConfigPath: configPath}
	code = Run(context.Background(), printOpts, hardware.NewMockController(), &stdout, &stderr)
	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout.String(), "\"hardware\"")
}

func TestRunStatusReportsNotRunningWithoutPIDFile(t *testing.T) {
	var stdout, stderr bytes.Buffer
	opts := Options{Status: true, PIDPath: filepath.Join(t.TempDir(), "nonexistent.pid")}

	code := Run(context.Background(), opts, hardware.NewMockController(), &stdout, &stderr)

	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, stdout.String(), "not running")
}
