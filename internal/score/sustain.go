package score

import (
	"sort"

	"github.com/himanishpuri/PerfectPitch/internal/model"
)

// SustainController is the MIDI controller number of the damper pedal.
const SustainController = 64

// SustainThreshold: controller values at or above it mean the pedal is down.
const SustainThreshold = 64

// PedalEvent is a sustain pedal change on one channel.
type PedalEvent struct {
	Time    float64
	Channel int
	Down    bool
}

// Event kinds in the order they are processed when they share a timestamp.
const (
	sustainOn = iota
	sustainOff
	noteOn
	noteOff
)

type timedEvent struct {
	time    float64
	kind    int
	channel int
	note    int // index into notes for noteOn/noteOff
}

// ApplySustain lengthens notes held by the sustain pedal. A note released
// while the pedal is down keeps sounding until the pedal comes up, or
// until the same pitch is struck again on that channel, whichever comes
// first. Notes still sounding at endTime end there. Notes that collapse to
// zero length through a re-strike are removed. The input slice is not
// modified.
func ApplySustain(notes []model.NoteEvent, pedals []PedalEvent, endTime float64) []model.NoteEvent {
	out := make([]model.NoteEvent, len(notes))
	copy(out, notes)

	events := make([]timedEvent, 0, len(pedals)+2*len(notes))
	for _, p := range pedals {
		kind := sustainOff
		if p.Down {
			kind = sustainOn
		}
		events = append(events, timedEvent{time: p.Time, kind: kind, channel: p.Channel})
	}
	for i, n := range notes {
		events = append(events,
			timedEvent{time: n.StartTime, kind: noteOn, channel: n.Channel, note: i},
			timedEvent{time: n.EndTime, kind: noteOff, channel: n.Channel, note: i},
		)
	}
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].time != events[j].time {
			return events[i].time < events[j].time
		}
		return events[i].kind < events[j].kind
	})

	pedalDown := make(map[int]bool)
	sounding := make(map[int][]int)
	removed := make(map[int]bool)

	for _, ev := range events {
		switch ev.kind {
		case sustainOn:
			pedalDown[ev.channel] = true

		case sustainOff:
			pedalDown[ev.channel] = false
			keep := sounding[ev.channel][:0]
			for _, idx := range sounding[ev.channel] {
				if out[idx].EndTime < ev.time {
					out[idx].EndTime = ev.time
				} else {
					keep = append(keep, idx)
				}
			}
			sounding[ev.channel] = keep

		case noteOn:
			if pedalDown[ev.channel] {
				keep := sounding[ev.channel][:0]
				for _, idx := range sounding[ev.channel] {
					if out[idx].Pitch != out[ev.note].Pitch {
						keep = append(keep, idx)
						continue
					}
					out[idx].EndTime = ev.time
					if out[idx].StartTime == out[idx].EndTime {
						removed[idx] = true
					}
				}
				sounding[ev.channel] = keep
			}
			sounding[ev.channel] = append(sounding[ev.channel], ev.note)

		case noteOff:
			if pedalDown[ev.channel] {
				continue
			}
			active := sounding[ev.channel]
			for i, idx := range active {
				if idx == ev.note {
					sounding[ev.channel] = append(active[:i], active[i+1:]...)
					break
				}
			}
		}
	}

	for _, active := range sounding {
		for _, idx := range active {
			out[idx].EndTime = max(out[idx].EndTime, endTime)
		}
	}

	if len(removed) == 0 {
		return out
	}
	kept := out[:0]
	for i, n := range out {
		if !removed[i] {
			kept = append(kept, n)
		}
	}
	return kept
}
