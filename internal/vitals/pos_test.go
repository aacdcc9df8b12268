package vitals

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/stat"

	"github.com/pranalabs/breathloop/internal/breath"
)

// TestPulsePOSCancelsSharedIllumination exercises the core chrominance
// property: a brightness change that scales all channels identically is
// specular, not pulsatile, and must project to (near) zero.
func TestPulsePOSCancelsSharedIllumination(t *testing.T) {
	const n = 256
	samples := make([]breath.ColorSample, n)
	for i := range samples {
		gain := 1 + 0.2*math.Sin(2*math.Pi*float64(i)/40)
		samples[i] = breath.ColorSample{R: 182 * gain, G: 128 * gain, B: 108 * gain}
	}

	h := pulsePOS(samples, 30, 1.6)
	for i, v := range h {
		if math.Abs(v) > 1e-9 {
			t.Fatalf("sample %d: shared illumination leaked into the pulse signal: %v", i, v)
		}
	}
}

func TestPulsePOSKeepsChromaticPulse(t *testing.T) {
	samples := pulseSamples(72, 30, 256)
	h := pulsePOS(samples, 30, 1.6)
	if len(h) != len(samples) {
		t.Fatalf("length mismatch: %d vs %d", len(h), len(samples))
	}
	if stat.StdDev(h, nil) <= 0 {
		t.Error("chromatic pulse must survive the projection")
	}
}

func TestMovingAverage(t *testing.T) {
	flat := []float64{2, 2, 2, 2, 2}
	for i, v := range movingAverage(flat, 5) {
		if v != 2 {
			t.Errorf("sample %d: constant signal changed to %v", i, v)
		}
	}

	spiky := []float64{0, 0, 10, 0, 0}
	smooth := movingAverage(spiky, 5)
	if smooth[2] >= 10 {
		t.Errorf("spike not attenuated: %v", smooth[2])
	}

	// A window below 2 is a copy, not an alias.
	out := movingAverage(spiky, 1)
	out[0] = 99
	if spiky[0] != 0 {
		t.Error("window-1 moving average aliased its input")
	}
}

func TestRemoveDC(t *testing.T) {
	sig := []float64{1, 2, 3, 4}
	removeDC(sig)
	if mean := stat.Mean(sig, nil); math.Abs(mean) > 1e-12 {
		t.Errorf("mean after DC removal = %v", mean)
	}
}

func TestWindowBounds(t *testing.T) {
	cases := []struct {
		i, n, half     int
		wantLo, wantHi int
	}{
		{0, 10, 3, 0, 4},
		{5, 10, 3, 2, 9},
		{9, 10, 3, 6, 10},
	}
	for _, tc := range cases {
		lo, hi := windowBounds(tc.i, tc.n, tc.half)
		if lo != tc.wantLo || hi != tc.wantHi {
			t.Errorf("windowBounds(%d,%d,%d) = (%d,%d), want (%d,%d)",
				tc.i, tc.n, tc.half, lo, hi, tc.wantLo, tc.wantHi)
		}
	}
}
