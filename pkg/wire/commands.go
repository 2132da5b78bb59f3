// SPDX-License-Identifier: BSD-3-Clause

package wire

import (
	"encoding/json"
	"fmt"
)

// Command type names (normative set from the agent-hub command table).
const (
	CommandSetFanSpeed             = "setFanSpeed"
	CommandEmergencyStop            = "emergencyStop"
	CommandClearEmergency           = "clearEmergency"
	CommandSetUpdateInterval        = "setUpdateInterval"
	CommandSetSensorDeduplication   = "setSensorDeduplication"
	CommandSetSensorTolerance       = "setSensorTolerance"
	CommandSetFanStep               = "setFanStep"
	CommandSetHysteresis            = "setHysteresis"
	CommandSetEmergencyTemp         = "setEmergencyTemp"
	CommandSetLogLevel              = "setLogLevel"
	CommandSelfUpdate                = "selfUpdate"
	CommandPing                      = "ping"
)

// SetFanSpeedPayload is the payload for setFanSpeed.
type SetFanSpeedPayload struct {
	FanID string `json:"fanId"`
	Speed int    `json:"speed"`
}

// SetUpdateIntervalPayload is the payload for setUpdateInterval.
type SetUpdateIntervalPayload struct {
	Interval float64 `json:"interval"`
}

// SetSensorDeduplicationPayload is the payload for setSensorDeduplication.
type SetSensorDeduplicationPayload struct {
	Enabled bool `json:"enabled"`
}

// SetSensorTolerancePayload is the payload for setSensorTolerance.
type SetSensorTolerancePayload struct {
	Tolerance float64 `json:"tolerance"`
}

// SetFanStepPayload is the payload for setFanStep.
type SetFanStepPayload struct {
	Step int `json:"step"`
}

// SetHysteresisPayload is the payload for setHysteresis.
type SetHysteresisPayload struct {
	Hysteresis float64 `json:"hysteresis"`
}

// SetEmergencyTempPayload is the payload for setEmergencyTemp.
type SetEmergencyTempPayload struct {
	Temperature float64 `json:"temperature"`
}

// SetLogLevelPayload is the payload for setLogLevel.
type SetLogLevelPayload struct {
	Level string `json:"level"`
}

// SelfUpdatePayload is the payload for selfUpdate.
type SelfUpdatePayload struct {
	Channel string `json:"channel,omitempty"`
	Version string `json:"version,omitempty"`
	Hash    string `json:"hash"`
}

// DecodeCommandPayload parses raw into the typed payload for commandType,
// rejecting unknown command types and malformed payloads at parse time
// rather than leaving them to be discovered at dispatch time. The returned
// value is one of the *Payload types above, or nil for commands that carry
// no payload (emergencyStop, clearEmergency, ping).
func DecodeCommandPayload(commandType string, raw json.RawMessage) (any, error) {
	decode := func(v any) (any, error) {
		if len(raw) == 0 {
			return v, nil
		}
		if err := json.Unmarshal(raw, v); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrMalformedPayload, commandType, err)
		}
		return v, nil
	}

	switch commandType {
	case CommandSetFanSpeed:
		return decode(&SetFanSpeedPayload{})
	case CommandEmergencyStop, CommandClearEmergency, CommandPing:
		return nil, nil
	case CommandSetUpdateInterval:
		return decode(&SetUpdateIntervalPayload{})
	case CommandSetSensorDeduplication:
		return decode(&SetSensorDeduplicationPayload{})
	case CommandSetSensorTolerance:
		return decode(&SetSensorTolerancePayload{})
	case CommandSetFanStep:
		return decode(&SetFanStepPayload{})
	case CommandSetHysteresis:
		return decode(&SetHysteresisPayload{})
	case CommandSetEmergencyTemp:
		return decode(&SetEmergencyTempPayload{})
	case CommandSetLogLevel:
		return decode(&SetLogLevelPayload{})
	case CommandSelfUpdate:
		return decode(&SelfUpdatePayload{})
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, commandType)
	}
}
