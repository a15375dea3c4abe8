package pianoroll

import (
	"errors"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/himanishpuri/PerfectPitch/internal/model"
	"github.com/himanishpuri/PerfectPitch/pkg/perfectpitch"
)

// quarterSecond uses 0.25 s frames so test times are exact.
func quarterSecond(t *testing.T) perfectpitch.Config {
	t.Helper()
	cfg, err := perfectpitch.New(
		perfectpitch.WithSampleRate(1000),
		perfectpitch.WithHopLength(250),
		perfectpitch.WithFMin(10),
	)
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	return cfg
}

func notes(n ...model.NoteEvent) *model.Transcription {
	return model.NewTranscription(n)
}

func TestEncodeBasic(t *testing.T) {
	cfg := quarterSecond(t)
	enc := NewEncoder(cfg)

	roll, err := enc.Encode(notes(model.NoteEvent{Pitch: 60, StartTime: 0.25, EndTime: 1.0, Velocity: 64}), 128)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if roll.NumFrames() != 5 {
		t.Fatalf("frames = %d, want 5", roll.NumFrames())
	}
	col := 60 - cfg.MinPitch
	for _, m := range []*model.Matrix{roll.Actives, roll.Onsets, roll.Offsets, roll.Velocities} {
		if m.Cols != cfg.NumPitches() {
			t.Fatalf("cols = %d, want %d", m.Cols, cfg.NumPitches())
		}
	}

	if roll.Onsets.At(1, col) != 1 || roll.Onsets.Sum() != 1 {
		t.Errorf("onset not at frame 1 only")
	}
	if roll.Offsets.At(4, col) != 1 || roll.Offsets.Sum() != 1 {
		t.Errorf("offset not at frame 4 only")
	}
	if got := roll.Velocities.At(1, col); got != 0.5 {
		t.Errorf("velocity = %v, want 0.5", got)
	}
	if roll.Velocities.Sum() != 0.5 {
		t.Errorf("velocity set outside onset frame")
	}
	for f, want := range []float32{0, 1, 1, 1, 0} {
		if got := roll.Actives.At(f, col); got != want {
			t.Errorf("active[%d] = %v, want %v", f, got, want)
		}
	}
}

func TestEncodeZeroLengthNote(t *testing.T) {
	enc := NewEncoder(perfectpitch.Default())

	roll, err := enc.Encode(notes(model.NoteEvent{Pitch: 60, StartTime: 0.001, EndTime: 0.002, Velocity: 80}), 80)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if roll.NumFrames() != 1 {
		t.Errorf("frames = %d, want 1", roll.NumFrames())
	}
	if roll.Onsets.Sum() != 0 || roll.Offsets.Sum() != 0 || roll.Actives.Sum() != 0 {
		t.Error("zero-length note should leave every matrix empty")
	}
}

func TestEncodeDroppedNoteStillSizesGrid(t *testing.T) {
	cfg := quarterSecond(t)
	enc := NewEncoder(cfg)

	roll, err := enc.Encode(notes(
		model.NoteEvent{Pitch: 60, StartTime: 0, EndTime: 0.5, Velocity: 100},
		model.NoteEvent{Pitch: 62, StartTime: 1.0, EndTime: 1.1, Velocity: 100},
	), 100)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if roll.NumFrames() != 5 {
		t.Errorf("frames = %d, want 5", roll.NumFrames())
	}
	if roll.Onsets.At(4, 62-cfg.MinPitch) != 0 {
		t.Error("dropped note left an onset")
	}
	if roll.Onsets.Sum() != 1 {
		t.Errorf("onsets = %v, want 1", roll.Onsets.Sum())
	}
}

func TestEncodePitchOutOfRange(t *testing.T) {
	cfg := perfectpitch.Default()
	enc := NewEncoder(cfg)

	for _, pitch := range []int{cfg.MinPitch - 1, cfg.MaxPitch + 1} {
		_, err := enc.Encode(notes(model.NoteEvent{Pitch: pitch, StartTime: 0, EndTime: 1, Velocity: 10}), 10)
		if !errors.Is(err, perfectpitch.ErrPitchOutOfRange) {
			t.Errorf("pitch %d: err = %v, want ErrPitchOutOfRange", pitch, err)
		}
	}
}

func TestEncodeMismatchedArrays(t *testing.T) {
	enc := NewEncoder(perfectpitch.Default())
	tr := &model.Transcription{
		Pitches:    []int{60, 62},
		StartTimes: []float64{0, 1},
		EndTimes:   []float64{1},
		Velocities: []int{10, 10},
	}
	if _, err := enc.Encode(tr, 10); !errors.Is(err, perfectpitch.ErrMismatchedArrays) {
		t.Errorf("err = %v, want ErrMismatchedArrays", err)
	}
}

func TestEncodeEmpty(t *testing.T) {
	cfg := perfectpitch.Default()
	roll, err := NewEncoder(cfg).Encode(&model.Transcription{}, 0)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if roll.NumFrames() != 0 || roll.Actives.Cols != cfg.NumPitches() {
		t.Errorf("shape = (%d, %d), want (0, %d)", roll.NumFrames(), roll.Actives.Cols, cfg.NumPitches())
	}
}

func TestEncodeRejectsNonPositiveVelocityMax(t *testing.T) {
	enc := NewEncoder(perfectpitch.Default())
	if _, err := enc.Encode(notes(model.NoteEvent{Pitch: 60, StartTime: 0, EndTime: 1, Velocity: 10}), 0); err == nil {
		t.Error("expected error for velocity max 0")
	}
}

func TestEncodeDeterministic(t *testing.T) {
	enc := NewEncoder(quarterSecond(t))
	tr := notes(
		model.NoteEvent{Pitch: 48, StartTime: 0, EndTime: 2, Velocity: 30},
		model.NoteEvent{Pitch: 72, StartTime: 0.5, EndTime: 1.75, Velocity: 90},
	)
	a, err := enc.Encode(tr, 90)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	b, _ := enc.Encode(tr, 90)
	if !a.Onsets.Equal(b.Onsets) || !a.Actives.Equal(b.Actives) || !a.Velocities.Equal(b.Velocities) {
		t.Error("encoding is not deterministic")
	}
}

func TestAugmentationPitchShiftBounds(t *testing.T) {
	cfg := quarterSecond(t)
	enc := NewEncoder(cfg, WithAugmentation(rand.New(rand.NewPCG(1, 2))))
	tr := notes(
		model.NoteEvent{Pitch: 22, StartTime: 0, EndTime: 4, Velocity: 50},
		model.NoteEvent{Pitch: 105, StartTime: 0, EndTime: 4, Velocity: 50},
	)

	lo, hi := enc.PitchShiftBounds(tr.Pitches)
	if lo != -1 || hi != 3 {
		t.Fatalf("bounds = [%d, %d), want [-1, 3)", lo, hi)
	}

	seen := make(map[int]bool)
	for trial := 0; trial < 1000; trial++ {
		roll, err := enc.Encode(tr, 50)
		if err != nil {
			t.Fatalf("trial %d: %v", trial, err)
		}
		lowest := slices.Index(roll.Onsets.Row(0), 1)
		if lowest < 0 {
			t.Fatalf("trial %d: no onset at frame 0", trial)
		}
		shift := lowest + cfg.MinPitch - 22
		if shift < lo || shift >= hi {
			t.Fatalf("trial %d: shift %d outside [%d, %d)", trial, shift, lo, hi)
		}
		if roll.Onsets.At(0, 105+shift-cfg.MinPitch) != 1 {
			t.Fatalf("trial %d: notes shifted by different amounts", trial)
		}
		seen[shift] = true
	}
	for s := lo; s < hi; s++ {
		if !seen[s] {
			t.Errorf("shift %d never drawn", s)
		}
	}
}

func TestAugmentationTimeScale(t *testing.T) {
	enc := NewEncoder(quarterSecond(t), WithAugmentation(rand.New(rand.NewPCG(7, 7))))
	tr := notes(model.NoteEvent{Pitch: 60, StartTime: 10.1, EndTime: 12, Velocity: 50})

	// 10.1 s scaled by 0.8..1.2 lands on these onset frames.
	allowed := []int{32, 36, 40, 44, 48}
	seen := make(map[int]bool)
	for trial := 0; trial < 200; trial++ {
		roll, err := enc.Encode(tr, 50)
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		onset := -1
		for f := 0; f < roll.NumFrames(); f++ {
			if slices.Contains(roll.Onsets.Row(f), 1) {
				onset = f
				break
			}
		}
		if !slices.Contains(allowed, onset) {
			t.Fatalf("onset frame %d not a scaled position", onset)
		}
		seen[onset] = true
	}
	if len(seen) != len(allowed) {
		t.Errorf("saw %d distinct scales, want %d", len(seen), len(allowed))
	}
}

func TestAugmentationDoesNotMutateInput(t *testing.T) {
	enc := NewEncoder(quarterSecond(t), WithAugmentation(rand.New(rand.NewPCG(3, 4))))
	tr := notes(model.NoteEvent{Pitch: 60, StartTime: 1, EndTime: 2, Velocity: 50})

	for i := 0; i < 20; i++ {
		if _, err := enc.Encode(tr, 50); err != nil {
			t.Fatalf("Encode: %v", err)
		}
	}
	if tr.Pitches[0] != 60 || tr.StartTimes[0] != 1 || tr.EndTimes[0] != 2 {
		t.Errorf("input modified: %+v", tr)
	}
}

func TestPadOrTruncate(t *testing.T) {
	enc := NewEncoder(quarterSecond(t))

	tests := []struct {
		name    string
		end     float64
		rows    int
		wantSum float64
	}{
		{"pad", 24.0, 97, 1},
		{"truncate", 25.5, 103, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			roll, err := enc.Encode(notes(model.NoteEvent{Pitch: 60, StartTime: 0, EndTime: tt.end, Velocity: 1}), 1)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			if roll.NumFrames() != tt.rows {
				t.Fatalf("frames = %d, want %d", roll.NumFrames(), tt.rows)
			}
			fixed := roll.PadOrTruncate(100)
			for _, m := range []*model.Matrix{fixed.Actives, fixed.Onsets, fixed.Offsets, fixed.Velocities} {
				if m.Rows != 100 {
					t.Errorf("rows = %d, want 100", m.Rows)
				}
			}
			if got := fixed.Offsets.Sum(); got != tt.wantSum {
				t.Errorf("offsets sum = %v, want %v", got, tt.wantSum)
			}
			if got := fixed.Actives.Sum(); got != float64(min(tt.rows-1, 100)) {
				t.Errorf("actives sum = %v", got)
			}
		})
	}
}
