// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvOrFallsBackWhenUnset(t *testing.T) {
	assert.Equal(t, "fallback", envOr("PANKHA_HUB_TEST_UNSET_VAR", "fallback"))

	t.Setenv("PANKHA_HUB_TEST_SET_VAR", "explicit")
	assert.Equal(t, "explicit", envOr("PANKHA_HUB_TEST_SET_VAR", "fallback"))
}

func TestLoadOrCreateSigningKeyIsStableAcrossCalls(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deploy.key")

	first, err := loadOrCreateSigningKey(path)
	require.NoError(t, err)
	require.Len(t, first, 32)

	second, err := loadOrCreateSigningKey(path)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
