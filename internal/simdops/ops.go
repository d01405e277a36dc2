// Package simdops wraps the SIMD kernels the correlation search relies on.
// Keeping the wrappers here isolates the rest of the code from the
// unsafe-variant naming of the underlying library.
package simdops

import "github.com/tphakala/simd/f32"

// Dot computes the dot product of a and b. The slices must have equal
// length; the underlying kernel skips bounds checks on that assumption.
func Dot(a, b []float32) float32 {
	return f32.DotProductUnsafe(a, b)
}

// Energy computes the sum of squares of a.
func Energy(a []float32) float32 {
	return f32.DotProductUnsafe(a, a)
}
