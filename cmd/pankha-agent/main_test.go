// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pankha/pankha/internal/agent/hardware"
)

func TestReleaseAllFansReleasesEveryPWMFan(t *testing.T) {
	ctrl := hardware.NewMockController()
	logger := slog.Default()

	releaseAllFans(ctrl, logger)

	fans, err := ctrl.DiscoverFans(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, fans)
	for _, fan := range fans {
		if fan.HasPWMControl {
			assert.True(t, ctrl.IsReleasedToAuto(fan.ID), "fan %s not released to auto", fan.ID)
		}
	}

	temps, rpms, errs := ctrl.ReadSample(context.Background())
	assert.Empty(t, errs)
	assert.NotEmpty(t, temps)
	assert.NotEmpty(t, rpms)
}

func TestNewControllerReturnsUsableController(t *testing.T) {
	ctrl := newController()
	require.NotNil(t, ctrl)
	assert.NotEmpty(t, ctrl.Platform())
}
