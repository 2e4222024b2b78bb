package common

import "math"

// Amount is a fixed-point currency value in minor units (1 unit = 0.01),
// adopted per spec.md §9's design note in place of the source's raw f32
// comparisons, to avoid float drift in conservation checks (invariant 1).
type Amount int64

// AmountFromFloat32 converts the wire format's legacy f32 value into fixed
// point, rounding to the nearest minor unit.
func AmountFromFloat32(v float32) Amount {
	return Amount(math.Round(float64(v) * 100))
}

// Float32 converts back to the wire format's legacy f32 representation.
func (a Amount) Float32() float32 {
	return float32(a) / 100
}

// Sum totals a slice of Amounts.
func Sum(values []Amount) Amount {
	var total Amount
	for _, v := range values {
		total += v
	}
	return total
}
