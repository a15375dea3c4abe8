package spectrogram

import "math"

// HTK mel scale.
func hzToMel(hz float64) float64 {
	return 2595.0 * math.Log10(1.0+hz/700.0)
}

func melToHz(mel float64) float64 {
	return 700.0 * (math.Pow(10, mel/2595.0) - 1.0)
}

// MelFilterbank builds numMels triangular filters over the nFFT/2+1 bins of
// a real FFT, spaced evenly on the HTK mel scale between fmin and fmax.
// Each filter is area-normalised (Slaney style) so that wider high-frequency
// bands do not dominate.
func MelFilterbank(sampleRate, nFFT, numMels int, fmin, fmax float64) [][]float64 {
	numBins := nFFT/2 + 1

	fftFreqs := make([]float64, numBins)
	for k := range fftFreqs {
		fftFreqs[k] = float64(k) * float64(sampleRate) / float64(nFFT)
	}

	melMin, melMax := hzToMel(fmin), hzToMel(fmax)
	melFreqs := make([]float64, numMels+2)
	for i := range melFreqs {
		melFreqs[i] = melToHz(melMin + (melMax-melMin)*float64(i)/float64(numMels+1))
	}

	weights := make([][]float64, numMels)
	for m := 0; m < numMels; m++ {
		lo, center, hi := melFreqs[m], melFreqs[m+1], melFreqs[m+2]
		norm := 2.0 / (hi - lo)
		row := make([]float64, numBins)
		for k, f := range fftFreqs {
			lower := (f - lo) / (center - lo)
			upper := (hi - f) / (hi - center)
			if w := math.Min(lower, upper); w > 0 {
				row[k] = w * norm
			}
		}
		weights[m] = row
	}
	return weights
}
