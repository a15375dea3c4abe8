package dataset

import (
	"github.com/himanishpuri/PerfectPitch/internal/model"
	"github.com/himanishpuri/PerfectPitch/internal/pianoroll"
)

// View names used as Item keys.
const (
	ViewAudio        = "audio"
	ViewVelocityMin  = "velocity_min"
	ViewVelocityMax  = "velocity_max"
	ViewNoteSequence = "notesequence"
	ViewSpec         = "spec"
	ViewSpecLength   = "spec_length"
	ViewPianoroll    = "pianoroll"
)

// ViewNames lists every view in a stable order.
var ViewNames = []string{
	ViewAudio, ViewVelocityMin, ViewVelocityMax, ViewNoteSequence,
	ViewSpec, ViewSpecLength, ViewPianoroll,
}

// Views selects what Get materialises. The piano-roll is padded or
// truncated to spec_length unless KeepPianorollLength is set.
type Views struct {
	Audio        bool
	VelocityMin  bool
	VelocityMax  bool
	NoteSequence bool
	Spec         bool
	SpecLength   bool
	Pianoroll    bool

	KeepPianorollLength bool
}

// AllViews requests every view with the default pad/truncate policy.
func AllViews() Views {
	return Views{
		Audio:        true,
		VelocityMin:  true,
		VelocityMax:  true,
		NoteSequence: true,
		Spec:         true,
		SpecLength:   true,
		Pianoroll:    true,
	}
}

// ParseViews builds a Views from view names. Unknown names are reported.
func ParseViews(names []string) (Views, []string) {
	var v Views
	var unknown []string
	for _, name := range names {
		switch name {
		case ViewAudio:
			v.Audio = true
		case ViewVelocityMin:
			v.VelocityMin = true
		case ViewVelocityMax:
			v.VelocityMax = true
		case ViewNoteSequence:
			v.NoteSequence = true
		case ViewSpec:
			v.Spec = true
		case ViewSpecLength:
			v.SpecLength = true
		case ViewPianoroll:
			v.Pianoroll = true
		default:
			unknown = append(unknown, name)
		}
	}
	return v, unknown
}

func (v Views) Empty() bool {
	return !(v.Audio || v.VelocityMin || v.VelocityMax || v.NoteSequence || v.Spec || v.SpecLength || v.Pianoroll)
}

// Item maps view name to value and holds exactly the requested views.
type Item map[string]any

func (it Item) Audio() (model.Waveform, bool) {
	v, ok := it[ViewAudio].(model.Waveform)
	return v, ok
}

func (it Item) VelocityMin() (int, bool) {
	v, ok := it[ViewVelocityMin].(int)
	return v, ok
}

func (it Item) VelocityMax() (int, bool) {
	v, ok := it[ViewVelocityMax].(int)
	return v, ok
}

func (it Item) NoteSequence() (model.NoteSequence, bool) {
	v, ok := it[ViewNoteSequence].(model.NoteSequence)
	return v, ok
}

func (it Item) Spec() (*model.Matrix, bool) {
	v, ok := it[ViewSpec].(*model.Matrix)
	return v, ok
}

func (it Item) SpecLength() (int, bool) {
	v, ok := it[ViewSpecLength].(int)
	return v, ok
}

func (it Item) Pianoroll() (*pianoroll.Pianoroll, bool) {
	v, ok := it[ViewPianoroll].(*pianoroll.Pianoroll)
	return v, ok
}
