package dynamo

import "math"

// WrapAngle maps x into [0, 2π).
func WrapAngle(x float64) float64 {
	x = math.Mod(x, TwoPi)
	if x < 0 {
		x += TwoPi
	}
	// math.Mod of a tiny negative can round up to exactly 2π.
	if x >= TwoPi {
		x = 0
	}
	return x
}

// SectorAngle is the angle of sector i when the circle is split into n.
func SectorAngle(i, n int) float64 {
	return float64(i) * TwoPi / float64(n)
}

func Clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}
