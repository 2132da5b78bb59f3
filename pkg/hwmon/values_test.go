// SPDX-License-Identifier: BSD-3-Clause

package hwmon

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTemperatureValueConversions(t *testing.T) {
	v := NewTemperatureValue(45230) // 45.23C

	assert.InDelta(t, 45.23, v.Celsius(), 0.001)
	assert.InDelta(t, 113.414, v.Fahrenheit(), 0.001)
	assert.InDelta(t, 318.38, v.Kelvin(), 0.001)
	assert.True(t, v.IsValid())
	assert.False(t, NewTemperatureValue(-300000).IsValid())
}

func TestFanValueRPM(t *testing.T) {
	v := NewFanValue(1234)
	assert.Equal(t, int64(1234), v.RPM())
	assert.True(t, v.IsValid())
	assert.False(t, NewFanValue(-1).IsValid())
}

func TestPWMValueClampsAndConvertsToPercent(t *testing.T) {
	assert.Equal(t, int64(255), NewPWMValue(999).Raw())
	assert.Equal(t, int64(0), NewPWMValue(-5).Raw())

	half := NewPWMValue(128)
	assert.InDelta(t, 50.2, half.Percent(), 0.1)
}
