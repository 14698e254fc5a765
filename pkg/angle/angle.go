// Package angle provides angle wraparound and clamping helpers shared by the arm and drive packages.
package angle

import "math"

// Normalize360 wraps an angle in degrees into [0, 360).
func Normalize360(a float64) float64 {
	a = a - 360.0*math.Floor(a/360.0)
	// floating point can land exactly on 360 for tiny negative inputs
	if a >= 360.0 {
		a -= 360.0
	}
	return a
}

// Normalize180 wraps an angle in degrees into (-180, 180].
func Normalize180(a float64) float64 {
	a = Normalize360(a)
	if a > 180.0 {
		a -= 360.0
	}
	return a
}

// SymmetricClamp clamps v into [-|bound|, |bound|]. NaN is returned unchanged.
func SymmetricClamp(v, bound float64) float64 {
	bound = math.Abs(bound)
	return math.Min(math.Max(v, -bound), bound)
}

// Radians converts degrees to radians.
func Radians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// Degrees converts radians to degrees.
func Degrees(rad float64) float64 {
	return rad * 180.0 / math.Pi
}
