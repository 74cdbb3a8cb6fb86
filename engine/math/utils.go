package math

import "golang.org/x/exp/constraints"

// Clamp returns the value `f` clamped to the range [low, high].
// It works for any numeric type (integers and floats).
func Clamp[T constraints.Ordered](f, low, high T) T {
	if f < low {
		return low
	}
	if f > high {
		return high
	}
	return f
}

// Saturate clamps f to [0, 1].
func Saturate[T constraints.Float](f T) T {
	return Clamp(f, 0, 1)
}

// Mix is GLSL mix: a*(1-t) + b*t.
func Mix[T constraints.Float](a, b, t T) T {
	return a*(1-t) + b*t
}

// DivCeil is ceil(n/d) for positive integers.
func DivCeil[T constraints.Integer](n, d T) T {
	return (n + d - 1) / d
}

// ToUnorm8 converts a [0, 1] channel to an 8-bit unorm value, rounding to nearest.
func ToUnorm8[T constraints.Float](f T) uint8 {
	return uint8(Saturate(f)*255 + 0.5)
}
