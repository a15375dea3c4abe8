package model

// Waveform is mono audio at the pipeline sample rate, amplitudes in [-1, 1].
type Waveform []float32

// NoteEvent is a single note of a score.
type NoteEvent struct {
	Pitch     int
	StartTime float64 // seconds
	EndTime   float64 // seconds, >= StartTime
	Velocity  int     // 0..127
	Channel   int
}

// Transcription is a note list stored as parallel arrays. Order carries no
// meaning.
type Transcription struct {
	Pitches    []int
	StartTimes []float64
	EndTimes   []float64
	Velocities []int
}

// NewTranscription flattens notes into parallel arrays.
func NewTranscription(notes []NoteEvent) *Transcription {
	t := &Transcription{
		Pitches:    make([]int, len(notes)),
		StartTimes: make([]float64, len(notes)),
		EndTimes:   make([]float64, len(notes)),
		Velocities: make([]int, len(notes)),
	}
	for i, n := range notes {
		t.Pitches[i] = n.Pitch
		t.StartTimes[i] = n.StartTime
		t.EndTimes[i] = n.EndTime
		t.Velocities[i] = n.Velocity
	}
	return t
}

func (t *Transcription) Len() int {
	return len(t.Pitches)
}

// Notes converts the parallel arrays back into NoteEvents. Callers must
// check that the arrays have equal length first.
func (t *Transcription) Notes() []NoteEvent {
	notes := make([]NoteEvent, len(t.Pitches))
	for i := range notes {
		notes[i] = NoteEvent{
			Pitch:     t.Pitches[i],
			StartTime: t.StartTimes[i],
			EndTime:   t.EndTimes[i],
			Velocity:  t.Velocities[i],
		}
	}
	return notes
}

// VelocityRange returns the min and max velocity, or 0, 0 for an empty
// transcription.
func (t *Transcription) VelocityRange() (int, int) {
	if len(t.Velocities) == 0 {
		return 0, 0
	}
	lo, hi := t.Velocities[0], t.Velocities[0]
	for _, v := range t.Velocities[1:] {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	return lo, hi
}

// NoteSequence is the stored form of a Transcription: intervals pair each
// note's start and end time.
type NoteSequence struct {
	Pitches    []int
	Intervals  [][2]float64
	Velocities []int
}

// Transcription unpacks the intervals into start and end arrays.
func (ns *NoteSequence) Transcription() *Transcription {
	t := &Transcription{
		Pitches:    append([]int(nil), ns.Pitches...),
		StartTimes: make([]float64, len(ns.Intervals)),
		EndTimes:   make([]float64, len(ns.Intervals)),
		Velocities: append([]int(nil), ns.Velocities...),
	}
	for i, iv := range ns.Intervals {
		t.StartTimes[i] = iv[0]
		t.EndTimes[i] = iv[1]
	}
	return t
}

// NoteSequenceOf packs a Transcription into intervals.
func NoteSequenceOf(t *Transcription) *NoteSequence {
	ns := &NoteSequence{
		Pitches:    append([]int(nil), t.Pitches...),
		Intervals:  make([][2]float64, len(t.StartTimes)),
		Velocities: append([]int(nil), t.Velocities...),
	}
	for i := range ns.Intervals {
		ns.Intervals[i] = [2]float64{t.StartTimes[i], t.EndTimes[i]}
	}
	return ns
}

// RawExample holds the persisted fields of one training example.
type RawExample struct {
	Key         string
	Audio       Waveform
	VelocityMin int
	VelocityMax int
	Notes       NoteSequence
}
