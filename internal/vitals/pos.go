package vitals

import (
	"gonum.org/v1/gonum/stat"

	"github.com/pranalabs/breathloop/internal/breath"
)

// pulsePOS runs the POS chrominance projection over the fused color
// samples. Each channel is temporally normalised by its local windowed
// mean, then the projections S1 = G-B and S2 = G+B-2R are combined as
// H = S1 + alpha*S2 with alpha = stddev(S1)/stddev(S2) over the same
// window. The combination cancels the specular/illumination component
// shared by all channels while keeping the pulsatile one, which makes it
// robust to the bounded head motion of a seated user.
func pulsePOS(samples []breath.ColorSample, fs, windowSec float64) []float64 {
	n := len(samples)
	w := int(windowSec * fs)
	if w < 1 {
		w = 1
	}

	s1 := make([]float64, n)
	s2 := make([]float64, n)
	for i := range samples {
		lo, hi := windowBounds(i, n, w)
		var mr, mg, mb float64
		for j := lo; j < hi; j++ {
			mr += samples[j].R
			mg += samples[j].G
			mb += samples[j].B
		}
		span := float64(hi - lo)
		mr /= span
		mg /= span
		mb /= span

		rn := safeDiv(samples[i].R, mr)
		gn := safeDiv(samples[i].G, mg)
		bn := safeDiv(samples[i].B, mb)

		s1[i] = gn - bn
		s2[i] = gn + bn - 2*rn
	}

	h := make([]float64, n)
	for i := range h {
		lo, hi := windowBounds(i, n, w)
		sd1 := stat.StdDev(s1[lo:hi], nil)
		sd2 := stat.StdDev(s2[lo:hi], nil)
		alpha := safeDiv(sd1, sd2)
		h[i] = s1[i] + alpha*s2[i]
	}
	return h
}

// movingAverage applies a small symmetric moving average.
func movingAverage(sig []float64, window int) []float64 {
	if window < 2 {
		return append([]float64(nil), sig...)
	}
	half := window / 2
	out := make([]float64, len(sig))
	for i := range sig {
		lo, hi := windowBounds(i, len(sig), half)
		var sum float64
		for j := lo; j < hi; j++ {
			sum += sig[j]
		}
		out[i] = sum / float64(hi-lo)
	}
	return out
}

// removeDC subtracts the global mean in place, leaving the AC pulse
// component.
func removeDC(sig []float64) {
	mean := stat.Mean(sig, nil)
	for i := range sig {
		sig[i] -= mean
	}
}

func windowBounds(i, n, half int) (lo, hi int) {
	lo = i - half
	if lo < 0 {
		lo = 0
	}
	hi = i + half + 1
	if hi > n {
		hi = n
	}
	return lo, hi
}

func safeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}
