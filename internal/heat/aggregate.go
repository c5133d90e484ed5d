package heat

import (
	"math"

	"backend-fleettrack/internal/shared/geo"
)

// Aggregate counts how many features traverse each canonical street segment,
// then annotates every feature's Properties with a normalized heatIntensity in
// [0,1] and the raw heatWeight it was derived from. Returns nil when the batch
// contains no usable segments. Empty input is not an error.
func Aggregate(features []Feature, precision int) *Stats {
	counts := make(map[string]int)
	for _, f := range features {
		forEachSegment(f, precision, func(key string) {
			counts[key]++
		})
	}

	globalMax, globalMin := 0, 0
	for _, c := range counts {
		if c > globalMax {
			globalMax = c
		}
		if globalMin == 0 || c < globalMin {
			globalMin = c
		}
	}

	for i := range features {
		f := &features[i]
		segCount, sum, featureMax := 0, 0, 0
		forEachSegment(*f, precision, func(key string) {
			c := counts[key]
			segCount++
			sum += c
			if c > featureMax {
				featureMax = c
			}
		})

		// The max keeps a feature sharing one busy segment visually hot; the
		// mean is the fallback for features whose max never rises above it.
		source := float64(featureMax)
		if segCount > 0 {
			mean := float64(sum) / float64(segCount)
			if mean > source {
				source = mean
			}
		}

		if f.Properties == nil {
			f.Properties = make(map[string]any)
		}
		f.Properties["heatIntensity"] = Normalize(source, globalMax)
		f.Properties["heatWeight"] = source
	}

	if len(counts) == 0 {
		return nil
	}
	return &Stats{
		MaxCount:      globalMax,
		MinCount:      globalMin,
		TotalSegments: len(counts),
		Precision:     precision,
	}
}

// Normalize maps a raw overlap weight into [0,1] against the batch maximum.
// Logarithmic compression keeps low- and medium-traffic segments visually
// distinct even when a few segments dominate; falls back to a linear ratio if
// the logarithm degenerates.
func Normalize(source float64, globalMax int) float64 {
	if source <= 0 {
		return 0
	}
	if globalMax == 1 {
		return 1
	}
	v := math.Log(source+1) / math.Log(float64(globalMax)+1)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		v = source / float64(globalMax)
	}
	return math.Min(1, v)
}

func forEachSegment(f Feature, precision int, fn func(key string)) {
	for _, line := range f.Geometry.Lines {
		for i := 1; i < len(line); i++ {
			key, ok := geo.SegmentKey(line[i-1], line[i], precision)
			if !ok {
				continue
			}
			fn(key)
		}
	}
}
