// SPDX-License-Identifier: BSD-3-Clause

package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pankha/pankha/internal/hub/license"
	"github.com/pankha/pankha/pkg/wire"
)

type fakeSession struct {
	sent []wire.CommandFrame
}

func (f *fakeSession) SendCommand(frame wire.CommandFrame) error {
	f.sent = append(f.sent, frame)
	return nil
}
func (f *fakeSession) Close() error { return nil }

func TestRegisterIsIdempotentOnAgentID(t *testing.T) {
	reg := New(license.NewStaticOracle("pro"))
	ctx := context.Background()

	frame := wire.NewRegisterFrame("agent-1", "Box One", "linux", "1.0.0", nil, wire.Capabilities{})
	_, err := reg.Register(ctx, frame, &fakeSession{})
	require.NoError(t, err)

	sess2 := &fakeSession{}
	entry, err := reg.Register(ctx, frame, sess2)
	require.NoError(t, err)

	assert.Len(t, reg.List(), 1)
	assert.Equal(t, StatusOnline, entry.Status())
	assert.Same(t, sess2, entry.Session.(*fakeSession))
}

func TestRegisterRejectsOverTierLimit(t *testing.T) {
	reg := New(license.NewStaticOracle("free")) // MaxAgents: 5
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		frame := wire.NewRegisterFrame(
			string(rune('a'+i)), "box", "linux", "1.0.0", nil, wire.Capabilities{})
		_, err := reg.Register(ctx, frame, &fakeSession{})
		require.NoError(t, err)
	}

	_, err := reg.Register(ctx, wire.NewRegisterFrame("overflow", "box", "linux", "1.0.0", nil, wire.Capabilities{}), &fakeSession{})
	require.ErrorIs(t, err, ErrAgentLimitReached)
}

func TestDisconnectMarksOffline(t *testing.T) {
	reg := New(license.NewStaticOracle("pro"))
	ctx := context.Background()

	frame := wire.NewRegisterFrame("agent-1", "Box One", "linux", "1.0.0", nil, wire.Capabilities{})
	_, err := reg.Register(ctx, frame, &fakeSession{})
	require.NoError(t, err)

	require.NoError(t, reg.Disconnect(ctx, "agent-1"))

	entry, err := reg.Get("agent-1")
	require.NoError(t, err)
	assert.Equal(t, StatusOffline, entry.Status())
	assert.Nil(t, entry.Session)
}

func TestApplyTelemetryMergesReadings(t *testing.T) {
	reg := New(license.NewStaticOracle("pro"))
	ctx := context.Background()

	frame := wire.NewRegisterFrame("agent-1", "Box One", "linux", "1.0.0", nil, wire.Capabilities{})
	_, err := reg.Register(ctx, frame, &fakeSession{})
	require.NoError(t, err)

	err = reg.ApplyTelemetry("agent-1",
		[]wire.SensorReading{{ID: "k10temp_1", Temperature: 55.2}},
		[]wire.FanReading{{ID: "fan1", RPM: 1200, Duty: 40}})
	require.NoError(t, err)

	entry, err := reg.Get("agent-1")
	require.NoError(t, err)
	assert.Equal(t, 55.2, entry.LastSensors["k10temp_1"].Temperature)
	assert.Equal(t, 1200, entry.LastFans["fan1"].RPM)
}

func TestGetUnknownAgentFails(t *testing.T) {
	reg := New(license.NewStaticOracle("pro"))
	_, err := reg.Get("nope")
	require.ErrorIs(t, err, ErrAgentNotFound)
}
