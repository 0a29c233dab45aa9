package features

import (
	"math"
	"sort"
)

// ClipBounds returns Q1 - k*IQR and Q3 + k*IQR of values.
// Quantiles interpolate linearly between order statistics.
// ok is false when values is empty.
func ClipBounds(values []float64, k float64) (lower, upper float64, ok bool) {
	if len(values) == 0 {
		return 0, 0, false
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	q1 := Quantile(sorted, 0.25)
	q3 := Quantile(sorted, 0.75)
	iqr := q3 - q1
	return q1 - k*iqr, q3 + k*iqr, true
}

// Quantile returns the q-th quantile of sorted using linear interpolation
// at position q*(n-1).
func Quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	pos := q * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

func clamp(v, lower, upper float64) float64 {
	return math.Min(math.Max(v, lower), upper)
}
