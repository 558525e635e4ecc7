package analysis

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat"
)

// Nyquist returns the highest resolvable frequency at sample period dt.
func Nyquist(dt float64) float64 { return 0.5 / dt }

// Spectrum returns the one-sided power spectrum of signal sampled every dt
// seconds, mean removed. Frequencies are in Hz.
func Spectrum(signal []float64, dt float64) (freqs, power []float64) {
	n := len(signal)
	if n < 2 || dt <= 0 {
		return nil, nil
	}
	mean := stat.Mean(signal, nil)
	centered := make([]float64, n)
	for i, v := range signal {
		centered[i] = v - mean
	}

	fft := fourier.NewFFT(n)
	coeff := fft.Coefficients(nil, centered)
	freqs = make([]float64, len(coeff))
	power = make([]float64, len(coeff))
	for i, c := range coeff {
		freqs[i] = fft.Freq(i) / dt
		a := cmplx.Abs(c)
		power[i] = a * a / float64(n)
	}
	return freqs, power
}

// DominantFrequency is the non-DC frequency carrying the most power, or 0
// for a constant signal.
func DominantFrequency(signal []float64, dt float64) float64 {
	freqs, power := Spectrum(signal, dt)
	best, bestPower := 0.0, 1e-12
	for i := 1; i < len(power); i++ {
		if power[i] > bestPower {
			best, bestPower = freqs[i], power[i]
		}
	}
	if math.IsNaN(best) {
		return 0
	}
	return best
}
