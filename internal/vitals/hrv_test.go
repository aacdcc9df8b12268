package vitals

import (
	"math"
	"testing"
)

func TestDetectPeaksRegularPulse(t *testing.T) {
	const fs = 30.0
	sig := sine(1.2, fs, 300) // 10 s of 72 BPM: 12 beats

	peaks := detectPeaks(sig, fs, 0.3, 0.5)
	if len(peaks) < 10 || len(peaks) > 13 {
		t.Fatalf("expected about 12 peaks, got %d", len(peaks))
	}
	period := fs / 1.2 // 25 samples
	for i := 1; i < len(peaks); i++ {
		gap := float64(peaks[i] - peaks[i-1])
		if math.Abs(gap-period) > 2 {
			t.Errorf("peak gap %d = %v samples, want about %v", i, gap, period)
		}
	}
}

func TestDetectPeaksEnforcesMinDistance(t *testing.T) {
	sig := make([]float64, 60)
	sig[10] = 1.0
	sig[14] = 2.0 // taller twin inside the refractory window
	sig[40] = 1.5

	peaks := detectPeaks(sig, 30, 0.3, 0.5) // min distance 9 samples
	if len(peaks) != 2 {
		t.Fatalf("expected 2 peaks, got %v", peaks)
	}
	if peaks[0] != 14 {
		t.Errorf("expected the taller twin kept, got index %d", peaks[0])
	}
	if peaks[1] != 40 {
		t.Errorf("expected second peak at 40, got %d", peaks[1])
	}
}

func TestDetectPeaksDegenerate(t *testing.T) {
	if got := detectPeaks([]float64{1, 2}, 30, 0.3, 0.5); got != nil {
		t.Errorf("short signal: got %v", got)
	}
	if got := detectPeaks(sine(1, 30, 64), 0, 0.3, 0.5); got != nil {
		t.Errorf("zero sample rate: got %v", got)
	}
}

func TestInterBeatIntervals(t *testing.T) {
	got := interBeatIntervals([]int{0, 25, 50}, 30)
	want := 25.0 / 30.0
	if len(got) != 2 {
		t.Fatalf("expected 2 intervals, got %v", got)
	}
	for i, v := range got {
		if math.Abs(v-want) > 1e-12 {
			t.Errorf("interval %d = %v, want %v", i, v, want)
		}
	}
	if interBeatIntervals([]int{7}, 30) != nil {
		t.Error("a single beat has no interval")
	}
}

func TestComputeHRV(t *testing.T) {
	m := computeHRV([]float64{0.8, 0.9, 0.8, 1.0})

	// Successive differences 0.1, -0.1, 0.2 -> RMSSD = sqrt(0.06/3) s.
	if math.Abs(m.RMSSDMs-141.42) > 0.1 {
		t.Errorf("RMSSD = %v ms, want 141.42", m.RMSSDMs)
	}
	// Sample stddev of the intervals is 95.74 ms.
	if math.Abs(m.SDNNMs-95.74) > 0.1 {
		t.Errorf("SDNN = %v ms, want 95.74", m.SDNNMs)
	}
	// SI = AMo/(2*Mo*MxDMn) with the mean standing in for the mode:
	// one of four intervals inside the 50 ms bin around 0.875 s.
	if math.Abs(m.StressIndex-71.43) > 0.1 {
		t.Errorf("stress index = %v, want 71.43", m.StressIndex)
	}
}

func TestComputeHRVTooFewIntervals(t *testing.T) {
	if m := computeHRV([]float64{0.8}); m != (hrvMetrics{}) {
		t.Errorf("expected zero metrics, got %+v", m)
	}
}

func TestBaevskyIndexZeroSpread(t *testing.T) {
	if got := baevskyIndex([]float64{0.8, 0.8, 0.8}); got != 0 {
		t.Errorf("identical intervals must report 0, got %v", got)
	}
}
