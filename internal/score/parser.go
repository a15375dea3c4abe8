// Package score turns Standard MIDI Files into transcriptions.
package score

import (
	"fmt"
	"os"

	"github.com/himanishpuri/PerfectPitch/internal/model"
)

type openNote struct {
	tick     uint64
	velocity int
}

type noteKey struct {
	channel int
	pitch   int
}

// Score is a decoded MIDI file before sustain is applied.
type Score struct {
	Notes   []model.NoteEvent
	Pedals  []PedalEvent
	EndTime float64
}

// Decode reads the note and pedal events of a MIDI file. Note-offs (or
// note-ons with zero velocity) close every open note of that channel and
// pitch that started earlier; notes never closed are dropped.
func Decode(data []byte) (*Score, error) {
	f, err := readSMF(data)
	if err != nil {
		return nil, err
	}
	conv := newTimeConverter(f)

	s := &Score{}
	for _, track := range f.tracks {
		open := make(map[noteKey][]openNote)

		for _, ev := range track {
			s.EndTime = max(s.EndTime, conv.seconds(ev.tick))

			switch ev.kind {
			case kindNoteOn:
				key := noteKey{ev.channel, ev.data1}
				open[key] = append(open[key], openNote{tick: ev.tick, velocity: ev.data2})

			case kindNoteOff:
				key := noteKey{ev.channel, ev.data1}
				var still []openNote
				for _, on := range open[key] {
					if on.tick >= ev.tick {
						still = append(still, on)
						continue
					}
					s.Notes = append(s.Notes, model.NoteEvent{
						Pitch:     ev.data1,
						StartTime: conv.seconds(on.tick),
						EndTime:   conv.seconds(ev.tick),
						Velocity:  on.velocity,
						Channel:   ev.channel,
					})
				}
				open[key] = still

			case kindControl:
				if ev.data1 == SustainController {
					s.Pedals = append(s.Pedals, PedalEvent{
						Time:    conv.seconds(ev.tick),
						Channel: ev.channel,
						Down:    ev.data2 >= SustainThreshold,
					})
				}
			}
		}
	}
	return s, nil
}

// ParseNotes decodes data and applies the sustain pedal.
func ParseNotes(data []byte) ([]model.NoteEvent, error) {
	s, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return ApplySustain(s.Notes, s.Pedals, s.EndTime), nil
}

// Parse decodes data into a Transcription with sustain applied. Malformed
// input yields an error wrapping perfectpitch.ErrMalformedScore and no
// partial result.
func Parse(data []byte) (*model.Transcription, error) {
	notes, err := ParseNotes(data)
	if err != nil {
		return nil, err
	}
	return model.NewTranscription(notes), nil
}

func ParseFile(path string) (*model.Transcription, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading score: %w", err)
	}
	t, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}
