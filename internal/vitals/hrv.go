package vitals

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// detectPeaks finds beat candidates in the AC pulse signal with an
// adaptive threshold (mean + 0.5*stddev) and an enforced minimum
// inter-peak distance. The 0.3 s default distance caps the detectable
// rate at 200 BPM.
func detectPeaks(sig []float64, fs, minDistSec, thresholdStd float64) []int {
	if len(sig) < 3 || fs <= 0 {
		return nil
	}
	threshold := stat.Mean(sig, nil) + thresholdStd*stat.StdDev(sig, nil)
	minDist := int(minDistSec * fs)
	if minDist < 1 {
		minDist = 1
	}

	var peaks []int
	for i := 1; i < len(sig)-1; i++ {
		if sig[i] <= threshold || sig[i] < sig[i-1] || sig[i] < sig[i+1] {
			continue
		}
		if len(peaks) > 0 && i-peaks[len(peaks)-1] < minDist {
			// Too close to the previous beat: keep the taller of the two.
			if sig[i] > sig[peaks[len(peaks)-1]] {
				peaks[len(peaks)-1] = i
			}
			continue
		}
		peaks = append(peaks, i)
	}
	return peaks
}

// interBeatIntervals converts peak indices to interval durations in
// seconds.
func interBeatIntervals(peaks []int, fs float64) []float64 {
	if len(peaks) < 2 {
		return nil
	}
	out := make([]float64, 0, len(peaks)-1)
	for i := 1; i < len(peaks); i++ {
		out = append(out, float64(peaks[i]-peaks[i-1])/fs)
	}
	return out
}

// hrvMetrics holds the time-domain HRV outputs.
type hrvMetrics struct {
	RMSSDMs     float64
	SDNNMs      float64
	StressIndex float64
}

// computeHRV derives RMSSD, SDNN and a Baevsky-style stress index from
// inter-beat intervals (seconds). Callers must ensure at least two
// intervals (three detected beats); fewer beats report as zero upstream
// rather than as a misleading statistic.
func computeHRV(intervals []float64) hrvMetrics {
	var m hrvMetrics
	if len(intervals) < 2 {
		return m
	}

	var sumSq float64
	for i := 1; i < len(intervals); i++ {
		d := intervals[i] - intervals[i-1]
		sumSq += d * d
	}
	m.RMSSDMs = math.Sqrt(sumSq/float64(len(intervals)-1)) * 1000
	m.SDNNMs = stat.StdDev(intervals, nil) * 1000
	m.StressIndex = baevskyIndex(intervals)
	return m
}

// baevskyIndex approximates the Baevsky stress index SI = AMo/(2*Mo*MxDMn).
// The interval mean stands in for the statistical mode, which is only
// valid for near-Gaussian interval distributions; this approximation is
// deliberate and documented rather than corrected.
func baevskyIndex(intervals []float64) float64 {
	mo := stat.Mean(intervals, nil) // mode proxy, seconds
	if mo <= 0 {
		return 0
	}

	// Amplitude of mode: percentage of intervals inside a 50 ms bin
	// centered on the mode.
	const binHalfWidth = 0.025
	inBin := 0
	lo, hi := intervals[0], intervals[0]
	for _, v := range intervals {
		if math.Abs(v-mo) <= binHalfWidth {
			inBin++
		}
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	amo := 100 * float64(inBin) / float64(len(intervals))

	mxdmn := hi - lo
	if mxdmn <= 0 {
		return 0
	}
	return amo / (2 * mo * mxdmn)
}
