// SPDX-License-Identifier: BSD-3-Clause

package hwmon

import (
	"fmt"
)

// TemperatureValue represents a temperature sensor value.
type TemperatureValue struct {
	raw int64 // millidegree Celsius
}

// NewTemperatureValue creates a new temperature value from millidegree Celsius.
func NewTemperatureValue(millidegree int64) TemperatureValue {
	return TemperatureValue{raw: millidegree}
}

// Raw returns the raw millidegree Celsius value.
func (t TemperatureValue) Raw() int64 {
	return t.raw
}

// Float returns the temperature in degrees Celsius.
func (t TemperatureValue) Float() float64 {
	return float64(t.raw) / 1000.0
}

// Celsius returns the temperature in degrees Celsius.
func (t TemperatureValue) Celsius() float64 {
	return t.Float()
}

// Fahrenheit returns the temperature in degrees Fahrenheit.
func (t TemperatureValue) Fahrenheit() float64 {
	return t.Celsius()*9.0/5.0 + 32.0
}

// Kelvin returns the temperature in Kelvin.
func (t TemperatureValue) Kelvin() float64 {
	return t.Celsius() + 273.15
}

// String returns a human-readable temperature string.
func (t TemperatureValue) String() string {
	return fmt.Sprintf("%.1f°C", t.Celsius())
}

// Type returns the sensor type.
func (t TemperatureValue) Type() SensorType {
	return SensorTypeTemperature
}

// IsValid returns true if the temperature is within reasonable bounds.
func (t TemperatureValue) IsValid() bool {
	celsius := t.Celsius()
	return celsius >= -273.15 && celsius <= 200.0
}

// FanValue represents a fan tachometer value.
type FanValue struct {
	raw int64 // RPM
}

// NewFanValue creates a new fan value from RPM.
func NewFanValue(rpm int64) FanValue {
	return FanValue{raw: rpm}
}

// Raw returns the raw RPM value.
func (f FanValue) Raw() int64 {
	return f.raw
}

// Float returns the fan speed in RPM.
func (f FanValue) Float() float64 {
	return float64(f.raw)
}

// RPM returns the fan speed in RPM.
func (f FanValue) RPM() int64 {
	return f.raw
}

// String returns a human-readable fan speed string.
func (f FanValue) String() string {
	return fmt.Sprintf("%d RPM", f.raw)
}

// Type returns the sensor type.
func (f FanValue) Type() SensorType {
	return SensorTypeFan
}

// IsValid returns true if the fan speed is within reasonable bounds.
func (f FanValue) IsValid() bool {
	return f.raw >= 0 && f.raw <= 50000
}

// PWMValue represents a PWM output value.
type PWMValue struct {
	raw int64 // 0-255
}

// NewPWMValue creates a new PWM value (0-255).
func NewPWMValue(value int64) PWMValue {
	if value < 0 {
		value = 0
	} else if value > 255 {
		value = 255
	}
	return PWMValue{raw: value}
}

// Raw returns the raw PWM value (0-255).
func (p PWMValue) Raw() int64 {
	return p.raw
}

// Float returns the PWM value as a percentage (0.0-100.0).
func (p PWMValue) Float() float64 {
	return float64(p.raw) * 100.0 / 255.0
}

// Value returns the PWM value (0-255).
func (p PWMValue) Value() int64 {
	return p.raw
}

// Percent returns the PWM value as a percentage.
func (p PWMValue) Percent() float64 {
	return p.Float()
}

// String returns a human-readable PWM string.
func (p PWMValue) String() string {
	return fmt.Sprintf("PWM %d (%.1f%%)", p.raw, p.Percent())
}

// Type returns the sensor type.
func (p PWMValue) Type() SensorType {
	return SensorTypePWM
}

// IsValid returns true if the PWM value is within valid bounds.
func (p PWMValue) IsValid() bool {
	return p.raw >= 0 && p.raw <= 255
}
