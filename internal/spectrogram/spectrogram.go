package spectrogram

import (
	"github.com/himanishpuri/PerfectPitch/internal/frameclock"
	"github.com/himanishpuri/PerfectPitch/internal/model"
	"github.com/himanishpuri/PerfectPitch/pkg/perfectpitch"
	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
)

// Extractor turns waveforms into mel power spectrograms. The window and
// filterbank are built once; Extract itself keeps no state and is safe for
// concurrent use.
type Extractor struct {
	hopLength    int
	windowLength int
	clock        frameclock.Clock
	window       []float64
	filterbank   [][]float64
	numMels      int
}

func NewExtractor(cfg perfectpitch.Config) *Extractor {
	return &Extractor{
		hopLength:    cfg.HopLength,
		windowLength: cfg.WindowLength,
		clock:        frameclock.New(cfg),
		window:       window.Hann(cfg.WindowLength),
		filterbank: MelFilterbank(cfg.SampleRate, cfg.WindowLength, cfg.SpecDim,
			cfg.FMin, float64(cfg.SampleRate)/2),
		numMels: cfg.SpecDim,
	}
}

// NumBins is the column count of every spectrogram.
func (e *Extractor) NumBins() int {
	return e.numMels
}

// PowerSpectrum returns |X[k]|^2 for k in [0, len(frame)/2].
func PowerSpectrum(frame []float64) []float64 {
	spectrum := fft.FFTReal(frame)
	power := make([]float64, len(frame)/2+1)
	for k := range power {
		re, im := real(spectrum[k]), imag(spectrum[k])
		power[k] = re*re + im*im
	}
	return power
}

// Extract computes one row per hop. Row i covers samples
// [i*hop, i*hop+window); samples past the end of the waveform are zero.
// An empty waveform gives a matrix with zero rows.
func (e *Extractor) Extract(samples model.Waveform) *model.Matrix {
	numFrames := e.clock.NumFrames(len(samples))
	spec := model.NewMatrix(numFrames, e.numMels)

	frame := make([]float64, e.windowLength)
	for i := 0; i < numFrames; i++ {
		start := i * e.hopLength
		for j := range frame {
			frame[j] = 0
			if idx := start + j; idx < len(samples) {
				frame[j] = float64(samples[idx]) * e.window[j]
			}
		}

		power := PowerSpectrum(frame)
		row := spec.Row(i)
		for m, weights := range e.filterbank {
			var energy float64
			for k, w := range weights {
				if w != 0 {
					energy += w * power[k]
				}
			}
			row[m] = float32(energy)
		}
	}
	return spec
}
