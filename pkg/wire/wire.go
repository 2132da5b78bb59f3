// SPDX-License-Identifier: BSD-3-Clause

// Package wire defines the JSON frame types exchanged over the agent-hub
// realtime channel (conceptually one gorilla/websocket connection per
// session), modeled on cudascope's internal/api/ws_hub.go duplex pattern.
// Every frame is a UTF-8 JSON object carrying a "type" discriminator;
// timestamps are milliseconds since Unix epoch, duties are integers 0-100,
// and temperatures are floating-point degrees Celsius to one decimal of
// significant precision.
package wire

// Frame type discriminators. Bit-exact compatibility is required for these
// seven frame types: Register, Data, Command, CommandResponse, Registered,
// Ping, Pong.
const (
	TypeRegister        = "register"
	TypeData             = "data"
	TypeUpdateConfig     = "updateConfig"
	TypeCommandResponse  = "commandResponse"
	TypePong             = "pong"
	TypeRegistered       = "registered"
	TypeCommand          = "command"
	TypePing             = "ping"
	TypeClose            = "close"
)

// Envelope is the minimal shape every frame shares: enough to dispatch on
// Type before decoding the rest of the payload into a concrete frame type.
type Envelope struct {
	Type string `json:"type"`
}

// SensorReading is the wire representation of one sensor's current state.
type SensorReading struct {
	ID          string  `json:"id"`
	ChipGroup   string  `json:"chipGroup"`
	Label       string  `json:"label"`
	SensorType  string  `json:"type"`
	Priority    int     `json:"priority"`
	Visible     bool    `json:"visible"`
	Temperature float64 `json:"temperature"`
	Warning     float64 `json:"warning,omitempty"`
	Critical    float64 `json:"critical,omitempty"`
	Stale       bool    `json:"stale,omitempty"`
}

// FanReading is the wire representation of one fan's current state.
type FanReading struct {
	ID              string `json:"id"`
	Label           string `json:"label"`
	RPM             int    `json:"rpm"`
	Duty            int    `json:"duty"`
	LastPWM         int    `json:"lastPwm"`
	ProfileID       string `json:"profileId,omitempty"`
	ControlSource   string `json:"controlSource,omitempty"`
	HasPWMControl   bool   `json:"hasPwmControl"`
}

// SystemHealth is the agent process health block attached to every Data frame.
type SystemHealth struct {
	CPUPercent  float64 `json:"cpuPercent"`
	MemoryBytes uint64  `json:"memoryBytes"`
	UptimeSecs  int64   `json:"uptimeSeconds"`
}

// Capabilities describes what the agent discovered at registration time.
type Capabilities struct {
	Sensors           []SensorReading `json:"sensors"`
	Fans              []FanReading    `json:"fans"`
	FanControlEnabled bool            `json:"fanControlEnabled"`
}

// RegisterFrame is sent once per (re)connection.
type RegisterFrame struct {
	Type         string       `json:"type"`
	AgentID      string       `json:"agentId"`
	Name         string       `json:"name"`
	Platform     string       `json:"platform"`
	Version      string       `json:"version"`
	Config       any          `json:"config"`
	Capabilities Capabilities `json:"capabilities"`
}

// NewRegisterFrame builds a RegisterFrame with the Type field already set.
func NewRegisterFrame(agentID, name, platform, version string, config any, caps Capabilities) RegisterFrame {
	return RegisterFrame{
		Type:         TypeRegister,
		AgentID:      agentID,
		Name:         name,
		Platform:     platform,
		Version:      version,
		Config:       config,
		Capabilities: caps,
	}
}

// DataFrame is periodic telemetry, emitted once per control-loop tick.
type DataFrame struct {
	Type      string          `json:"type"`
	AgentID   string          `json:"agentId"`
	Timestamp int64           `json:"timestamp"`
	Sensors   []SensorReading `json:"sensors"`
	Fans      []FanReading    `json:"fans"`
	Health    SystemHealth    `json:"health"`
}

// NewDataFrame builds a DataFrame with the Type field already set.
func NewDataFrame(agentID string, timestampMillis int64, sensors []SensorReading, fans []FanReading, health SystemHealth) DataFrame {
	return DataFrame{
		Type:      TypeData,
		AgentID:   agentID,
		Timestamp: timestampMillis,
		Sensors:   sensors,
		Fans:      fans,
		Health:    health,
	}
}

// UpdateConfigFrame announces a config change that originated locally (e.g.
// a command applied to the agent's own AgentConfig).
type UpdateConfigFrame struct {
	Type    string `json:"type"`
	AgentID string `json:"agentId"`
	Config  any    `json:"config"`
}

// CommandResponseFrame replies to an inbound Command, keyed by CommandID.
type CommandResponseFrame struct {
	Type      string `json:"type"`
	CommandID string `json:"commandId"`
	Success   bool   `json:"success"`
	Data      any    `json:"data,omitempty"`
	Error     string `json:"error,omitempty"`
}

// NewCommandSuccess builds a successful CommandResponseFrame.
func NewCommandSuccess(commandID string, data any) CommandResponseFrame {
	return CommandResponseFrame{Type: TypeCommandResponse, CommandID: commandID, Success: true, Data: data}
}

// NewCommandFailure builds a failed CommandResponseFrame.
func NewCommandFailure(commandID, errMsg string) CommandResponseFrame {
	return CommandResponseFrame{Type: TypeCommandResponse, CommandID: commandID, Success: false, Error: errMsg}
}

// PongFrame replies to the hub's keepalive Ping.
type PongFrame struct {
	Type string `json:"type"`
}

// NewPongFrame builds a PongFrame.
func NewPongFrame() PongFrame { return PongFrame{Type: TypePong} }

// RegisteredFrame confirms registration, optionally carrying a normalized
// agent record back from the hub.
type RegisteredFrame struct {
	Type    string `json:"type"`
	AgentID string `json:"agentId"`
	Record  any    `json:"record,omitempty"`
}

// CommandFrame carries one command from the hub to an agent.
type CommandFrame struct {
	Type      string `json:"type"`
	CommandID string `json:"commandId"`
	Command   string `json:"command"`
	Payload   any    `json:"payload"`
}

// PingFrame is the hub's keepalive probe.
type PingFrame struct {
	Type string `json:"type"`
}

// CloseFrame requests an orderly agent shutdown.
type CloseFrame struct {
	Type   string `json:"type"`
	Reason string `json:"reason,omitempty"`
}
