// Package utils contains small numeric and concurrency helpers shared by the
// estimator and the planner.
package utils

import (
	"math"
)

// Square returns n*n.
func Square(n float64) float64 {
	return n * n
}

// WrapAngle maps an angle in radians onto [-pi, pi).
func WrapAngle(a float64) float64 {
	a = math.Mod(a+math.Pi, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a - math.Pi
}

// Mod2Pi maps an angle in radians onto [0, 2pi).
func Mod2Pi(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a
}

// AngleDiff returns the smallest absolute difference between two headings,
// taking wraparound into account. The arguments are commutative.
func AngleDiff(a1, a2 float64) float64 {
	return math.Abs(WrapAngle(a1 - a2))
}
