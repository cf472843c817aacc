// Package codec converts quantized landmark coordinates to and from floats.
//
// The backend sends every coordinate as an integer q where
//
//	real = (q - Bias) / Scale
//
// so the resolution is 1/Scale. Sentinel q = 0 decodes to -1/Scale and is
// treated by consumers as "near zero", never as an error.
package codec

import "math"

const (
	Bias  = 1
	Scale = 10000.0
)

// Resolution is the smallest representable step.
const Resolution = 1 / Scale

// Decode converts a wire integer to its calibrated value.
func Decode(q int32) float64 {
	return float64(int64(q)-Bias) / Scale
}

// Encode is the inverse of Decode, rounding to the nearest quantum.
// Values outside the int32 range saturate.
func Encode(v float64) int32 {
	q := math.Round(v*Scale) + Bias
	switch {
	case q >= math.MaxInt32:
		return math.MaxInt32
	case q <= math.MinInt32:
		return math.MinInt32
	}
	return int32(q)
}

// DecodeInto decodes src into dst, which must be at least len(src) long.
func DecodeInto(dst []float64, src []int32) {
	for i, q := range src {
		dst[i] = Decode(q)
	}
}
