package utils

import "math"

// ClampInt clamps v into the inclusive [min, max] range.
// If min > max, the bounds are swapped.
func ClampInt(v, min, max int) int {
	if min > max {
		min, max = max, min
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// Round2 rounds to two decimals, the precision costs are reported with.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// SumInts returns the sum of all values in vals.
func SumInts(vals ...int) int {
	sum := 0
	for _, v := range vals {
		sum += v
	}
	return sum
}
