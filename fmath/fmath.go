// Package fmath holds the small numeric helpers shared by the decoder, the
// mesh builder, and the GPU upload layer.
package fmath

import (
	"math"

	"golang.org/x/exp/constraints"
)

func Abs32(f float32) float32 {
	return float32(math.Abs(float64(f)))
}

// AlignUp rounds v up to the next multiple of alignment, which must be a
// power of two.
func AlignUp[T constraints.Integer](v, alignment T) T {
	return (v + alignment - 1) & -alignment
}

func Clamp[T constraints.Ordered](v, lo, hi T) T {
	return min(max(v, lo), hi)
}
