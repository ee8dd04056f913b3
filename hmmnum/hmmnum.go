// Package hmmnum collects the small numerical checks the engines use to
// guard against the probability-mass bugs that are otherwise invisible
// in a HMM's recurrences: probabilities drifting out of [0,1], or a
// distribution silently failing to sum to one after scaling.
package hmmnum

import "math"

// Tolerance is the default epsilon used for sum-to-one and range checks
// throughout this module.
const Tolerance = 1e-8

// ProbabilityInRange reports whether p lies within delta of [0,1]. It is
// meant for posteriors, not for densities, which may legitimately exceed 1.
func ProbabilityInRange(p, delta float64) bool {
	return p >= -delta && p <= 1+delta
}

// SumsToOne reports whether values sums to 1 within delta.
func SumsToOne(values []float64, delta float64) bool {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return math.Abs(sum-1) <= delta
}

// LogToLinear exponentiates every value of m, returning a new map with
// the same keys. Plain maps have no order, so callers that need one
// preserved (as the engines do) convert key-by-key instead of through
// this helper.
func LogToLinear[K comparable](m map[K]float64) map[K]float64 {
	out := make(map[K]float64, len(m))
	for k, v := range m {
		out[k] = math.Exp(v)
	}
	return out
}
