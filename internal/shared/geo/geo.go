package geo

import (
	"math"
	"strconv"
	"strings"
)

const earthRadiusKm = 6371.0

// HaversineKm returns the great-circle distance between two points in kilometers.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// SegmentKey builds an order-independent identity for the segment between two
// points. Coordinates are rounded to precision decimal digits, so two traces of
// the same street match despite GPS jitter below that resolution, and the two
// endpoint sub-keys are ordered lexicographically so key(A,B) == key(B,A).
// Returns false for malformed points: fewer than two elements, or non-finite
// values after rounding.
func SegmentKey(a, b []float64, precision int) (string, bool) {
	ka, ok := endpointKey(a, precision)
	if !ok {
		return "", false
	}
	kb, ok := endpointKey(b, precision)
	if !ok {
		return "", false
	}
	if ka <= kb {
		return ka + "|" + kb, true
	}
	return kb + "|" + ka, true
}

func endpointKey(p []float64, precision int) (string, bool) {
	if len(p) < 2 {
		return "", false
	}
	x := roundTo(p[0], precision)
	y := roundTo(p[1], precision)
	if math.IsNaN(x) || math.IsInf(x, 0) || math.IsNaN(y) || math.IsInf(y, 0) {
		return "", false
	}
	var sb strings.Builder
	sb.WriteString(strconv.FormatFloat(x, 'f', -1, 64))
	sb.WriteByte(':')
	sb.WriteString(strconv.FormatFloat(y, 'f', -1, 64))
	return sb.String(), true
}

func roundTo(v float64, precision int) float64 {
	scale := math.Pow(10, float64(precision))
	return math.Round(v*scale) / scale
}

// PolylineLengthM sums the haversine length of consecutive [lon, lat] pairs.
func PolylineLengthM(line [][]float64) float64 {
	total := 0.0
	for i := 1; i < len(line); i++ {
		prev, curr := line[i-1], line[i]
		if len(prev) < 2 || len(curr) < 2 {
			continue
		}
		total += HaversineKm(prev[1], prev[0], curr[1], curr[0]) * 1000
	}
	return total
}
