package indicators

import (
	"math"
	"sort"
)

// Null numeric values are carried as NaN so that missing reference data and
// missing lag/lead gaps propagate through arithmetic the way SQL nulls do.
// The aggregate helpers below skip NaN contributions entirely.

func isNull(v float64) bool {
	return math.IsNaN(v)
}

func nullFloat() float64 {
	return math.NaN()
}

// sumValid returns the sum and count of the non-null values
func sumValid(values []float64) (sum float64, n int) {
	for _, v := range values {
		if isNull(v) {
			continue
		}
		sum += v
		n++
	}
	return sum, n
}

// meanValid returns the mean of the non-null values, or null when none remain
func meanValid(values []float64) float64 {
	sum, n := sumValid(values)
	if n == 0 {
		return nullFloat()
	}
	return sum / float64(n)
}

// stddevPop returns the population standard deviation (divide by N) of the
// non-null values. Variability statistics across every aggregator divide by
// N, not N-1.
func stddevPop(values []float64) float64 {
	mean := meanValid(values)
	if isNull(mean) {
		return nullFloat()
	}
	var sumSq float64
	var n int
	for _, v := range values {
		if isNull(v) {
			continue
		}
		sumSq += (v - mean) * (v - mean)
		n++
	}
	return math.Sqrt(sumSq / float64(n))
}

// medianApprox returns the lower median of the non-null values: an actual
// element of the input, matching percentile_approx(.., 0.5) tolerance.
func medianApprox(values []float64) float64 {
	valid := make([]float64, 0, len(values))
	for _, v := range values {
		if !isNull(v) {
			valid = append(valid, v)
		}
	}
	if len(valid) == 0 {
		return nullFloat()
	}
	sort.Float64s(valid)
	return valid[(len(valid)-1)/2]
}
