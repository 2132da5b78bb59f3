// SPDX-License-Identifier: BSD-3-Clause

package control

import "sort"

// CurvePoint is one (temperature, duty) anchor of a fan curve, both axes
// expressed as percent-like values on [0, 100].
type CurvePoint struct {
	Temperature float64
	Duty        float64
}

// Curve is an ordered set of curve points. Evaluate interpolates linearly
// between adjacent points and clamps outside the defined range. Curves are
// authored and validated by the hub (at least two points, no duplicate
// temperatures); the agent only evaluates them.
type Curve []CurvePoint

// DefaultCurve is the fallback applied to a fan with no hub-assigned
// profile, a gentle general-purpose ramp.
var DefaultCurve = Curve{
	{Temperature: 30, Duty: 20},
	{Temperature: 50, Duty: 40},
	{Temperature: 65, Duty: 70},
	{Temperature: 80, Duty: 100},
}

// Evaluate returns the curve's duty at the given temperature. Points need
// not be pre-sorted; Evaluate sorts a copy on every call, which is cheap
// for the handful of points a real curve carries.
func (c Curve) Evaluate(temp float64) float64 {
	if len(c) == 0 {
		return 0
	}
	points := make([]CurvePoint, len(c))
	copy(points, c)
	sort.Slice(points, func(i, j int) bool { return points[i].Temperature < points[j].Temperature })

	if temp <= points[0].Temperature {
		return points[0].Duty
	}
	last := points[len(points)-1]
	if temp >= last.Temperature {
		return last.Duty
	}

	for i := 1; i < len(points); i++ {
		if temp > points[i].Temperature {
			continue
		}
		lo, hi := points[i-1], points[i]
		span := hi.Temperature - lo.Temperature
		if span <= 0 {
			return hi.Duty
		}
		frac := (temp - lo.Temperature) / span
		return lo.Duty + frac*(hi.Duty-lo.Duty)
	}
	return last.Duty
}
