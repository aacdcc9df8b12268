package vitals

import (
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/pranalabs/breathloop/internal/breath"
)

// pulseSamples builds a synthetic skin-tone sequence whose green channel
// carries a pulsatile component at the given heart rate.
func pulseSamples(bpm, fs float64, n int) []breath.ColorSample {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	out := make([]breath.ColorSample, n)
	for i := range out {
		t := float64(i) / fs
		pulse := math.Sin(2 * math.Pi * bpm / 60.0 * t)
		out[i] = breath.ColorSample{
			R:  182 + 1.2*pulse,
			G:  128 + 2.5*pulse,
			B:  108 + 0.8*pulse,
			At: base.Add(time.Duration(t * float64(time.Second))),
		}
	}
	return out
}

func noiseSamples(fs float64, n int, seed int64) []breath.ColorSample {
	rng := rand.New(rand.NewSource(seed))
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	out := make([]breath.ColorSample, n)
	for i := range out {
		t := float64(i) / fs
		out[i] = breath.ColorSample{
			R:  182 + (rng.Float64()*2-1)*5,
			G:  128 + (rng.Float64()*2-1)*5,
			B:  108 + (rng.Float64()*2-1)*5,
			At: base.Add(time.Duration(t * float64(time.Second))),
		}
	}
	return out
}

func TestAnalyzeRecoversHeartRate(t *testing.T) {
	samples := pulseSamples(72, 30, 256)

	v, err := Analyze(samples, 0, DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(v.HeartRateBPM-72) > 3 {
		t.Errorf("heart rate = %.1f BPM, want 72 +/- 3", v.HeartRateBPM)
	}
	if v.Confidence <= 0.5 {
		t.Errorf("clean pulsatile signal: confidence = %v, want > 0.5", v.Confidence)
	}
	if v.SNR <= 5 {
		t.Errorf("clean pulsatile signal: SNR = %v, want > 5", v.SNR)
	}
	if v.Quality == breath.QualityPoor {
		t.Errorf("clean signal graded poor")
	}
	if !v.At.Equal(samples[len(samples)-1].At) {
		t.Errorf("result timestamp must be the newest sample's")
	}
}

func TestAnalyzeNoiseIsLowConfidence(t *testing.T) {
	v, err := Analyze(noiseSamples(30, 256, 99), 0, DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if v.Confidence >= 0.3 {
		t.Errorf("pure noise: confidence = %v, want < 0.3", v.Confidence)
	}
	if v.Quality != breath.QualityPoor {
		t.Errorf("pure noise graded %s, want poor", v.Quality)
	}
}

func TestAnalyzeInsufficientSamples(t *testing.T) {
	_, err := Analyze(pulseSamples(72, 30, MinSamples-1), 0, DefaultConfig())
	if !errors.Is(err, ErrInsufficientSamples) {
		t.Fatalf("expected ErrInsufficientSamples, got %v", err)
	}
}

func TestAnalyzeRejectsFrozenTimestamps(t *testing.T) {
	samples := pulseSamples(72, 30, 128)
	at := samples[0].At
	for i := range samples {
		samples[i].At = at
	}
	if _, err := Analyze(samples, 0, DefaultConfig()); err == nil {
		t.Fatal("expected an error for non-increasing timestamps")
	}
}

func TestAnalyzeMotionPenalty(t *testing.T) {
	samples := pulseSamples(72, 30, 256)
	cfg := DefaultConfig()

	still, err := Analyze(samples, 0, cfg)
	if err != nil {
		t.Fatal(err)
	}
	moving, err := Analyze(samples, 0.25, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if moving.Confidence >= still.Confidence {
		t.Errorf("motion must degrade confidence: %v vs %v", moving.Confidence, still.Confidence)
	}

	shaking, err := Analyze(samples, 0.5, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if shaking.Confidence != 0 {
		t.Errorf("motion at the penalty ceiling must zero confidence, got %v", shaking.Confidence)
	}
}
