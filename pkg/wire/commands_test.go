// SPDX-License-Identifier: BSD-3-Clause

package wire

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeCommandPayloadKnownTypes(t *testing.T) {
	raw := json.RawMessage(`{"fanId":"fan1","speed":75}`)
	payload, err := DecodeCommandPayload(CommandSetFanSpeed, raw)
	require.NoError(t, err)

	p, ok := payload.(*SetFanSpeedPayload)
	require.True(t, ok)
	assert.Equal(t, "fan1", p.FanID)
	assert.Equal(t, 75, p.Speed)
}

func TestDecodeCommandPayloadNoPayloadCommands(t *testing.T) {
	payload, err := DecodeCommandPayload(CommandEmergencyStop, nil)
	require.NoError(t, err)
	assert.Nil(t, payload)
}

func TestDecodeCommandPayloadUnknownType(t *testing.T) {
	_, err := DecodeCommandPayload("doSomethingUnexpected", nil)
	require.ErrorIs(t, err, ErrUnknownCommand)
}

func TestDecodeCommandPayloadMalformed(t *testing.T) {
	raw := json.RawMessage(`{"speed": "not-a-number"}`)
	_, err := DecodeCommandPayload(CommandSetFanSpeed, raw)
	require.ErrorIs(t, err, ErrMalformedPayload)
}
