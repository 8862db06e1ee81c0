package chread

import "math"

// safeFloat replaces NaN/Inf with 0.0.
// ClickHouse returns NaN for avg() on empty result sets.
func safeFloat(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0.0
	}
	return f
}
