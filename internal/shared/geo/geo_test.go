package geo

import (
	"math"
	"testing"
)

func TestHaversineKm(t *testing.T) {
	// Dallas (32.7767, -96.797) to Austin (30.2672, -97.7431) ~ 290 km
	d := HaversineKm(32.7767, -96.797, 30.2672, -97.7431)
	if d < 250 || d > 330 {
		t.Fatalf("unexpected distance: %v", d)
	}
}

func TestSegmentKeyOrderIndependent(t *testing.T) {
	a := []float64{-96.797312, 32.776664}
	b := []float64{-96.795001, 32.778201}

	k1, ok := SegmentKey(a, b, 6)
	if !ok {
		t.Fatalf("expected key")
	}
	k2, ok := SegmentKey(b, a, 6)
	if !ok {
		t.Fatalf("expected key")
	}
	if k1 != k2 {
		t.Fatalf("key not order independent: %q vs %q", k1, k2)
	}
}

func TestSegmentKeyRoundsJitter(t *testing.T) {
	a := []float64{-96.7973120, 32.7766640}
	jittered := []float64{-96.7973121, 32.7766639}
	b := []float64{-96.795, 32.7782}

	k1, _ := SegmentKey(a, b, 6)
	k2, _ := SegmentKey(jittered, b, 6)
	if k1 != k2 {
		t.Fatalf("expected jitter below precision to collapse: %q vs %q", k1, k2)
	}

	k3, _ := SegmentKey([]float64{-96.7974, 32.7766}, b, 6)
	if k1 == k3 {
		t.Fatalf("expected distinct key for distinct endpoint")
	}
}

func TestSegmentKeyMalformed(t *testing.T) {
	good := []float64{-96.797, 32.776}
	cases := [][]float64{
		nil,
		{},
		{-96.797},
		{math.NaN(), 32.776},
		{-96.797, math.Inf(1)},
	}
	for _, bad := range cases {
		if _, ok := SegmentKey(bad, good, 6); ok {
			t.Fatalf("expected rejection for %v", bad)
		}
		if _, ok := SegmentKey(good, bad, 6); ok {
			t.Fatalf("expected rejection for %v", bad)
		}
	}
}

func TestPolylineLengthM(t *testing.T) {
	line := [][]float64{
		{-96.797, 32.776},
		{-96.797, 32.786},
		{-96.797, 32.796},
	}
	length := PolylineLengthM(line)
	// two ~1.11 km legs
	if length < 2000 || length > 2500 {
		t.Fatalf("unexpected length: %v", length)
	}

	if PolylineLengthM([][]float64{{-96.797, 32.776}}) != 0 {
		t.Fatalf("expected zero length for single point")
	}
}
