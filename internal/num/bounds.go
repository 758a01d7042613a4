// Package num provides bounded-value helpers shared by the update engines.
// Probability- and centrality-like quantities must stay in [0, 1] after every
// update; accumulated arithmetic that pushes a value outside its range is
// recovered locally by clamping (never surfaced as an error).
package num

import "golang.org/x/exp/constraints"

// Clamp bounds v to [lo, hi].
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Unit bounds v to [0, 1]. Used for probabilities, centralities, ratios.
func Unit(v float64) float64 {
	return Clamp(v, 0.0, 1.0)
}
