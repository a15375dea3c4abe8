package score

import (
	"bytes"
	"encoding/binary"
	"math"
	"sort"

	"github.com/himanishpuri/PerfectPitch/internal/model"
)

// EncodeTicksPerQuarter is the division written by Encode. At the default
// tempo one tick is 1/960 s.
const EncodeTicksPerQuarter = 480

type encEvent struct {
	tick  uint32
	order int
	msg   []byte
}

func secondsToTicks(t float64) uint32 {
	return uint32(math.Round(t * EncodeTicksPerQuarter * 1e6 / defaultTempo))
}

// Encode writes notes and pedal changes as a format-0 Standard MIDI File at
// 120 bpm. Times are rounded to the nearest tick.
func Encode(notes []model.NoteEvent, pedals []PedalEvent) []byte {
	var events []encEvent
	for _, n := range notes {
		ch := byte(n.Channel & 0x0F)
		events = append(events,
			encEvent{secondsToTicks(n.StartTime), 2, []byte{0x90 | ch, byte(n.Pitch), byte(n.Velocity)}},
			encEvent{secondsToTicks(n.EndTime), 0, []byte{0x80 | ch, byte(n.Pitch), 0}},
		)
	}
	for _, p := range pedals {
		value := byte(0)
		if p.Down {
			value = 127
		}
		events = append(events, encEvent{secondsToTicks(p.Time), 1,
			[]byte{0xB0 | byte(p.Channel&0x0F), SustainController, value}})
	}
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].tick != events[j].tick {
			return events[i].tick < events[j].tick
		}
		return events[i].order < events[j].order
	})

	var track bytes.Buffer
	var last uint32
	for _, ev := range events {
		writeVLQ(&track, ev.tick-last)
		track.Write(ev.msg)
		last = ev.tick
	}
	writeVLQ(&track, 0)
	track.Write([]byte{0xFF, 0x2F, 0x00})

	var out bytes.Buffer
	out.WriteString("MThd")
	binary.Write(&out, binary.BigEndian, uint32(6))
	binary.Write(&out, binary.BigEndian, uint16(0))
	binary.Write(&out, binary.BigEndian, uint16(1))
	binary.Write(&out, binary.BigEndian, uint16(EncodeTicksPerQuarter))
	out.WriteString("MTrk")
	binary.Write(&out, binary.BigEndian, uint32(track.Len()))
	out.Write(track.Bytes())
	return out.Bytes()
}

func writeVLQ(buf *bytes.Buffer, v uint32) {
	var tmp [5]byte
	i := len(tmp) - 1
	tmp[i] = byte(v & 0x7F)
	for v >>= 7; v > 0; v >>= 7 {
		i--
		tmp[i] = byte(v&0x7F) | 0x80
	}
	buf.Write(tmp[i:])
}
