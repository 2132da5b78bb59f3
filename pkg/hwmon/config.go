// SPDX-License-Identifier: BSD-3-Clause

//nolint:goconst
package hwmon

// SensorType represents the type of hardware sensor.
type SensorType int

const (
	// SensorTypeTemperature represents temperature sensors (temp*).
	SensorTypeTemperature SensorType = iota
	// SensorTypeVoltage represents voltage sensors (in*).
	SensorTypeVoltage
	// SensorTypeFan represents fan sensors (fan*).
	SensorTypeFan
	// SensorTypePower represents power sensors (power*).
	SensorTypePower
	// SensorTypeCurrent represents current sensors (curr*).
	SensorTypeCurrent
	// SensorTypeHumidity represents humidity sensors (humidity*).
	SensorTypeHumidity
	// SensorTypePressure represents pressure sensors (pressure*).
	SensorTypePressure
	// SensorTypePWM represents PWM outputs (pwm*).
	SensorTypePWM
	// SensorTypeGeneric represents generic sensors or custom types.
	SensorTypeGeneric
)

// String returns the string representation of the sensor type.
func (st SensorType) String() string {
	switch st {
	case SensorTypeTemperature:
		return "temperature"
	case SensorTypeVoltage:
		return "voltage"
	case SensorTypeFan:
		return "fan"
	case SensorTypePower:
		return "power"
	case SensorTypeCurrent:
		return "current"
	case SensorTypeHumidity:
		return "humidity"
	case SensorTypePressure:
		return "pressure"
	case SensorTypePWM:
		return "pwm"
	case SensorTypeGeneric:
		return "generic"
	default:
		return "unknown"
	}
}

// Prefix returns the hwmon file prefix for the sensor type.
func (st SensorType) Prefix() string {
	switch st {
	case SensorTypeTemperature:
		return "temp"
	case SensorTypeVoltage:
		return "in"
	case SensorTypeFan:
		return "fan"
	case SensorTypePower:
		return "power"
	case SensorTypeCurrent:
		return "curr"
	case SensorTypeHumidity:
		return "humidity"
	case SensorTypePressure:
		return "pressure"
	case SensorTypePWM:
		return "pwm"
	default:
		return ""
	}
}

// SensorAttribute represents different sensor attributes available in hwmon.
type SensorAttribute int

const (
	// AttributeInput represents the current sensor reading (*_input).
	AttributeInput SensorAttribute = iota
	// AttributeLabel represents the sensor label (*_label).
	AttributeLabel
	// AttributeMin represents the minimum threshold (*_min).
	AttributeMin
	// AttributeMax represents the maximum threshold (*_max).
	AttributeMax
	// AttributeCrit represents the critical threshold (*_crit).
	AttributeCrit
	// AttributeAlarm represents the alarm status (*_alarm).
	AttributeAlarm
	// AttributeEnable represents the enable/disable control (*_enable).
	AttributeEnable
	// AttributeTarget represents the target value (*_target).
	AttributeTarget
	// AttributeFault represents the fault status (*_fault).
	AttributeFault
	// AttributeBeep represents the beep enable (*_beep).
	AttributeBeep
	// AttributeOffset represents the sensor offset (*_offset).
	AttributeOffset
	// AttributeType represents the sensor type (*_type).
	AttributeType
)

// String returns the string representation of the sensor attribute.
func (sa SensorAttribute) String() string {
	switch sa {
	case AttributeInput:
		return "input"
	case AttributeLabel:
		return "label"
	case AttributeMin:
		return "min"
	case AttributeMax:
		return "max"
	case AttributeCrit:
		return "crit"
	case AttributeAlarm:
		return "alarm"
	case AttributeEnable:
		return "enable"
	case AttributeTarget:
		return "target"
	case AttributeFault:
		return "fault"
	case AttributeBeep:
		return "beep"
	case AttributeOffset:
		return "offset"
	case AttributeType:
		return "type"
	default:
		return "unknown"
	}
}

// IsWritable returns true if the attribute is typically writable.
func (sa SensorAttribute) IsWritable() bool {
	switch sa {
	case AttributeMin, AttributeMax, AttributeCrit, AttributeEnable,
		AttributeTarget, AttributeBeep, AttributeOffset:
		return true
	default:
		return false
	}
}

