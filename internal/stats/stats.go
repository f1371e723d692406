// Package stats provides the numeric primitives behind outlier detection:
// mean, population standard deviation, percentiles and a z-score outlier test.
// All functions are pure and treat an empty dataset as zero-valued rather than
// an error.
package stats

import (
	"math"
	"sort"
)

// OutlierResult describes the outcome of a z-score outlier test.
type OutlierResult struct {
	IsOutlier bool
	Value     float64
	Mean      float64
	StdDev    float64
	ZScore    float64
	Threshold float64
}

// Mean returns the arithmetic mean of values, or 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// StdDev returns the population standard deviation (divide by N, not N-1).
func StdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := Mean(values)
	sumSq := 0.0
	for _, v := range values {
		d := v - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(values)))
}

// Median returns the middle order statistic, averaging the two middle values
// for even-length input.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := sortedCopy(values)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// Percentile returns the pth percentile (0-100) using linear interpolation
// between order statistics.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	sorted := sortedCopy(values)
	idx := (p / 100) * float64(len(sorted)-1)
	lower := int(math.Floor(idx))
	upper := int(math.Ceil(idx))
	weight := idx - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// DetectOutlier tests value against the dataset's mean and standard deviation
// at the given z-score threshold. A zero-variance dataset flags any value that
// differs from the mean, reporting an infinite z-score.
func DetectOutlier(value float64, dataset []float64, threshold float64) OutlierResult {
	if len(dataset) == 0 {
		return OutlierResult{Value: value, Threshold: threshold}
	}

	mean := Mean(dataset)
	stdDev := StdDev(dataset)

	if stdDev == 0 {
		r := OutlierResult{
			IsOutlier: value != mean,
			Value:     value,
			Mean:      mean,
			Threshold: threshold,
		}
		if r.IsOutlier {
			r.ZScore = math.Inf(1)
		}
		return r
	}

	z := math.Abs(value-mean) / stdDev
	return OutlierResult{
		IsOutlier: z > threshold,
		Value:     value,
		Mean:      mean,
		StdDev:    stdDev,
		ZScore:    z,
		Threshold: threshold,
	}
}

// Outlier is a dataset member flagged by FindOutliers.
type Outlier struct {
	Value  float64
	Index  int
	ZScore float64
}

// FindOutliers returns every member of dataset whose z-score exceeds the
// threshold. A zero-variance dataset has no outliers among its own members.
func FindOutliers(dataset []float64, threshold float64) []Outlier {
	mean := Mean(dataset)
	stdDev := StdDev(dataset)
	if stdDev == 0 {
		return nil
	}

	var outliers []Outlier
	for i, v := range dataset {
		z := math.Abs(v-mean) / stdDev
		if z > threshold {
			outliers = append(outliers, Outlier{Value: v, Index: i, ZScore: z})
		}
	}
	return outliers
}

func sortedCopy(values []float64) []float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return sorted
}
