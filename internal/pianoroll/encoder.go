// Package pianoroll quantises note lists onto the frame grid.
package pianoroll

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"

	"github.com/himanishpuri/PerfectPitch/internal/frameclock"
	"github.com/himanishpuri/PerfectPitch/internal/model"
	"github.com/himanishpuri/PerfectPitch/pkg/perfectpitch"
)

// MaxPitchShift bounds the augmentation transpose in semitones.
const MaxPitchShift = 5

// TimeScales are the stretch factors augmentation chooses from.
var TimeScales = []float64{0.8, 0.9, 1.0, 1.1, 1.2}

// Pianoroll holds four frame-aligned matrices of shape
// (frames, NumPitches). Column j is pitch MinPitch+j.
type Pianoroll struct {
	Actives    *model.Matrix
	Onsets     *model.Matrix
	Offsets    *model.Matrix
	Velocities *model.Matrix
}

// NumFrames is the row count shared by the four matrices.
func (p *Pianoroll) NumFrames() int {
	return p.Onsets.Rows
}

// PadOrTruncate returns a copy whose matrices all have exactly frames rows.
func (p *Pianoroll) PadOrTruncate(frames int) *Pianoroll {
	return &Pianoroll{
		Actives:    p.Actives.PadOrTruncate(frames),
		Onsets:     p.Onsets.PadOrTruncate(frames),
		Offsets:    p.Offsets.PadOrTruncate(frames),
		Velocities: p.Velocities.PadOrTruncate(frames),
	}
}

// Encoder turns transcriptions into piano-rolls.
type Encoder struct {
	cfg   perfectpitch.Config
	clock frameclock.Clock

	mu  sync.Mutex
	rng *rand.Rand // nil disables augmentation
}

// Option configures an Encoder.
type Option func(*Encoder)

// WithAugmentation enables random transposition and time stretching drawn
// from rng. The encoder serialises access to rng.
func WithAugmentation(rng *rand.Rand) Option {
	return func(e *Encoder) {
		e.rng = rng
	}
}

// NewEncoder builds an encoder on cfg's frame grid.
func NewEncoder(cfg perfectpitch.Config, opts ...Option) *Encoder {
	e := &Encoder{cfg: cfg, clock: frameclock.New(cfg)}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Augmenting reports whether Encode randomises its input.
func (e *Encoder) Augmenting() bool {
	return e.rng != nil
}

// Validate checks that the arrays are parallel and every pitch is in range.
func (e *Encoder) Validate(t *model.Transcription) error {
	n := len(t.Pitches)
	if len(t.StartTimes) != n || len(t.EndTimes) != n || len(t.Velocities) != n {
		return fmt.Errorf("%w: pitches=%d start_times=%d end_times=%d velocities=%d",
			perfectpitch.ErrMismatchedArrays, n, len(t.StartTimes), len(t.EndTimes), len(t.Velocities))
	}
	for i, p := range t.Pitches {
		if p < e.cfg.MinPitch || p > e.cfg.MaxPitch {
			return fmt.Errorf("%w: note %d has pitch %d, valid range [%d, %d]",
				perfectpitch.ErrPitchOutOfRange, i, p, e.cfg.MinPitch, e.cfg.MaxPitch)
		}
	}
	return nil
}

// PitchShiftBounds returns the half-open range [lo, hi) of transpositions
// that keep every pitch valid, capped at MaxPitchShift either way.
func (e *Encoder) PitchShiftBounds(pitches []int) (int, int) {
	lo := max(e.cfg.MinPitch-slices.Min(pitches), -MaxPitchShift)
	hi := min(e.cfg.MaxPitch-slices.Max(pitches), MaxPitchShift)
	return lo, hi
}

// augment draws one transposition and one time scale and applies them to
// copies of the note arrays.
func (e *Encoder) augment(t *model.Transcription) *model.Transcription {
	lo, hi := e.PitchShiftBounds(t.Pitches)

	e.mu.Lock()
	shift := 0
	if hi > lo {
		shift = lo + e.rng.IntN(hi-lo)
	}
	scale := TimeScales[e.rng.IntN(len(TimeScales))]
	e.mu.Unlock()

	out := &model.Transcription{
		Pitches:    make([]int, len(t.Pitches)),
		StartTimes: make([]float64, len(t.StartTimes)),
		EndTimes:   make([]float64, len(t.EndTimes)),
		Velocities: t.Velocities,
	}
	for i := range t.Pitches {
		out.Pitches[i] = t.Pitches[i] + shift
		out.StartTimes[i] = t.StartTimes[i] * scale
		out.EndTimes[i] = t.EndTimes[i] * scale
	}
	return out
}

// Encode quantises t onto the frame grid. The grid has max(offset frame)+1
// rows, counting every note. Notes whose onset and offset land in the same
// frame are then skipped. Velocities are divided by velocityMax at onset
// frames. Inputs are never modified.
func (e *Encoder) Encode(t *model.Transcription, velocityMax int) (*Pianoroll, error) {
	if err := e.Validate(t); err != nil {
		return nil, err
	}

	numPitches := e.cfg.NumPitches()
	if t.Len() == 0 {
		return &Pianoroll{
			Actives:    model.NewMatrix(0, numPitches),
			Onsets:     model.NewMatrix(0, numPitches),
			Offsets:    model.NewMatrix(0, numPitches),
			Velocities: model.NewMatrix(0, numPitches),
		}, nil
	}
	if velocityMax <= 0 {
		return nil, fmt.Errorf("velocity max must be positive, got %d", velocityMax)
	}

	if e.rng != nil {
		t = e.augment(t)
	}

	onsetFrames := make([]int, t.Len())
	offsetFrames := make([]int, t.Len())
	numFrames := 0
	for i := range t.Pitches {
		onsetFrames[i] = e.clock.TimeToFrame(t.StartTimes[i])
		offsetFrames[i] = e.clock.TimeToFrame(t.EndTimes[i])
		numFrames = max(numFrames, offsetFrames[i]+1)
	}

	roll := &Pianoroll{
		Actives:    model.NewMatrix(numFrames, numPitches),
		Onsets:     model.NewMatrix(numFrames, numPitches),
		Offsets:    model.NewMatrix(numFrames, numPitches),
		Velocities: model.NewMatrix(numFrames, numPitches),
	}
	for i, pitch := range t.Pitches {
		onset, offset := onsetFrames[i], offsetFrames[i]
		if onset == offset {
			continue
		}
		col := pitch - e.cfg.MinPitch
		roll.Onsets.Set(onset, col, 1)
		roll.Offsets.Set(offset, col, 1)
		roll.Velocities.Set(onset, col, float32(t.Velocities[i])/float32(velocityMax))
		for f := onset; f < offset; f++ {
			roll.Actives.Set(f, col, 1)
		}
	}
	return roll, nil
}
