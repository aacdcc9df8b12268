package vitals

import (
	"errors"
	"fmt"
	"math"

	"github.com/pranalabs/breathloop/internal/breath"
)

// MinSamples is the minimum buffered sample count for an extraction.
const MinSamples = 64

// ErrInsufficientSamples reports a buffer too short to analyse. This is
// an explicit error result, never a silent zero.
var ErrInsufficientSamples = errors.New("vitals: insufficient buffered samples")

// Config holds the extraction algorithm parameters.
type Config struct {
	NormWindowSec    float64 // POS local normalisation window, each side
	SmoothWindow     int     // moving-average width in samples
	HRLowHz          float64 // spectral heart-rate band
	HRHighHz         float64
	RespLowHz        float64 // spectral respiration band
	RespHighHz       float64
	PeakMinDistSec   float64 // minimum inter-beat distance
	PeakThresholdStd float64 // adaptive threshold stddev multiplier
	SNRNorm          float64 // SNR that maps to full spectral confidence
	MotionPenalty    float64 // motion-to-confidence penalty multiplier
}

// DefaultConfig returns the default extraction configuration. The bands
// cover roughly 40-220 BPM for pulse and 6-30 breaths/min for
// respiration.
func DefaultConfig() Config {
	return Config{
		NormWindowSec:    1.6,
		SmoothWindow:     5,
		HRLowHz:          0.66,
		HRHighHz:         3.66,
		RespLowHz:        0.1,
		RespHighHz:       0.5,
		PeakMinDistSec:   0.3,
		PeakThresholdStd: 0.5,
		SNRNorm:          10.0,
		MotionPenalty:    2.0,
	}
}

// Analyze runs the full extraction over a snapshot of the color buffer.
func Analyze(samples []breath.ColorSample, motion float64, cfg Config) (breath.VitalSigns, error) {
	if len(samples) < MinSamples {
		return breath.VitalSigns{}, fmt.Errorf("%w: have %d, need %d",
			ErrInsufficientSamples, len(samples), MinSamples)
	}

	span := samples[len(samples)-1].At.Sub(samples[0].At).Seconds()
	if span <= 0 {
		return breath.VitalSigns{}, fmt.Errorf("vitals: non-increasing sample timestamps")
	}
	fs := float64(len(samples)-1) / span

	// 1. Pulse extraction (POS), then smoothing and DC removal leave the
	// AC pulse component.
	pulse := pulsePOS(samples, fs, cfg.NormWindowSec)
	ac := movingAverage(pulse, cfg.SmoothWindow)
	removeDC(ac)

	out := breath.VitalSigns{At: samples[len(samples)-1].At}

	// 2. Heart rate from the spectral peak in the physiological band.
	hrHz, snr, ok := spectralPeak(ac, fs, cfg.HRLowHz, cfg.HRHighHz)
	if !ok {
		return breath.VitalSigns{}, fmt.Errorf("vitals: no spectral peak in heart-rate band")
	}
	out.HeartRateBPM = hrHz * 60
	out.SNR = snr

	// 3. Respiration from the sub-Hz band of the same windowed signal.
	// Frequency resolution down here is coarse for a 6 s window, so this
	// estimate is inherently low-confidence.
	if respHz, _, respOK := spectralPeak(ac, fs, cfg.RespLowHz, cfg.RespHighHz); respOK {
		out.RespirationRPM = respHz * 60
	}

	// 4. Time-domain HRV from detected beats. Fewer than 3 peaks leaves
	// all HRV fields zero rather than reporting a misleading statistic.
	peaks := detectPeaks(ac, fs, cfg.PeakMinDistSec, cfg.PeakThresholdStd)
	if len(peaks) >= 3 {
		m := computeHRV(interBeatIntervals(peaks, fs))
		out.RMSSDMs = m.RMSSDMs
		out.SDNNMs = m.SDNNMs
		out.StressIndex = m.StressIndex
	}

	// 5. Confidence fusion: motion and poor spectral separation degrade
	// trust independently and multiplicatively.
	out.Confidence = math.Max(0, 1-cfg.MotionPenalty*motion) * math.Min(1, snr/cfg.SNRNorm)
	out.Quality = breath.QualityForConfidence(out.Confidence)

	return out, nil
}
