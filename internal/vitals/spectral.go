package vitals

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// spectralPeak finds the dominant frequency of sig within [lowHz, highHz]
// and the SNR of that peak against the rest of the in-band power. The
// signal is Hamming-windowed before the transform. Returns ok=false when
// the band contains no usable bins.
func spectralPeak(sig []float64, fs, lowHz, highHz float64) (freqHz, snr float64, ok bool) {
	n := len(sig)
	if n < 4 || fs <= 0 {
		return 0, 0, false
	}

	windowed := make([]float64, n)
	for i, v := range sig {
		// Hamming: 0.54 - 0.46*cos(2*pi*i/(n-1))
		windowed[i] = v * (0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(n-1)))
	}

	fft := fourier.NewFFT(n)
	coeffs := fft.Coefficients(nil, windowed)

	power := make([]float64, len(coeffs))
	var totalPower float64
	peakIdx := -1
	for i := 1; i < len(coeffs); i++ {
		f := fft.Freq(i) * fs
		if f < lowHz || f > highHz {
			continue
		}
		power[i] = real(coeffs[i])*real(coeffs[i]) + imag(coeffs[i])*imag(coeffs[i])
		totalPower += power[i]
		if peakIdx < 0 || power[i] > power[peakIdx] {
			peakIdx = i
		}
	}
	if peakIdx < 0 || totalPower <= 0 {
		return 0, 0, false
	}

	// Peak power integrates the window's leakage lobe: the peak bin plus
	// its immediate neighbours. A single bin understates a real tone
	// smeared across three bins by the Hamming window.
	peakPower := power[peakIdx]
	if peakIdx-1 >= 0 {
		peakPower += power[peakIdx-1]
	}
	if peakIdx+1 < len(power) {
		peakPower += power[peakIdx+1]
	}

	rest := totalPower - peakPower
	if rest < 1e-12 {
		// Essentially a pure tone; report a saturating SNR.
		snr = 100
	} else {
		snr = peakPower / rest
	}
	return fft.Freq(peakIdx) * fs, snr, true
}
