package score

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/himanishpuri/PerfectPitch/pkg/perfectpitch"
)

type eventKind int

const (
	kindNoteOn eventKind = iota
	kindNoteOff
	kindControl
	kindTempo
	kindEndOfTrack
)

const defaultTempo = 500000 // microseconds per quarter note (120 bpm)

// midiEvent is a decoded channel or meta event positioned in ticks.
type midiEvent struct {
	tick    uint64
	kind    eventKind
	channel int
	data1   int // pitch or controller number
	data2   int // velocity or controller value
	tempo   int
}

type smfFile struct {
	format   int
	division uint16
	tracks   [][]midiEvent
}

// byteReader tracks its offset so errors can point at the bad byte.
type byteReader struct {
	data []byte
	pos  int
}

func (r *byteReader) fail(format string, args ...any) error {
	return fmt.Errorf("%w: %s at offset %d", perfectpitch.ErrMalformedScore, fmt.Sprintf(format, args...), r.pos)
}

func (r *byteReader) remaining() int {
	return len(r.data) - r.pos
}

func (r *byteReader) peek() (byte, error) {
	if r.remaining() < 1 {
		return 0, r.fail("unexpected end of data")
	}
	return r.data[r.pos], nil
}

func (r *byteReader) readByte() (byte, error) {
	b, err := r.peek()
	if err != nil {
		return 0, err
	}
	r.pos++
	return b, nil
}

func (r *byteReader) readN(n int) ([]byte, error) {
	if n < 0 || r.remaining() < n {
		return nil, r.fail("need %d bytes, have %d", n, r.remaining())
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *byteReader) readUint16() (uint16, error) {
	b, err := r.readN(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *byteReader) readUint32() (uint32, error) {
	b, err := r.readN(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// readVLQ reads a variable-length quantity of at most four bytes.
func (r *byteReader) readVLQ() (uint32, error) {
	var v uint32
	for i := 0; i < 4; i++ {
		b, err := r.readByte()
		if err != nil {
			return 0, err
		}
		v = v<<7 | uint32(b&0x7F)
		if b&0x80 == 0 {
			return v, nil
		}
	}
	return 0, r.fail("variable-length quantity longer than 4 bytes")
}

func (r *byteReader) readDataByte() (int, error) {
	b, err := r.readByte()
	if err != nil {
		return 0, err
	}
	if b&0x80 != 0 {
		r.pos--
		return 0, r.fail("status byte 0x%02X where data byte expected", b)
	}
	return int(b), nil
}

// readSMF decodes a Standard MIDI File. Chunks other than MThd and MTrk
// are skipped.
func readSMF(data []byte) (*smfFile, error) {
	r := &byteReader{data: data}

	id, err := r.readN(4)
	if err != nil {
		return nil, err
	}
	if string(id) != "MThd" {
		r.pos = 0
		return nil, r.fail("missing MThd header")
	}
	headerLen, err := r.readUint32()
	if err != nil {
		return nil, err
	}
	if headerLen < 6 {
		return nil, r.fail("header length %d too short", headerLen)
	}
	header, err := r.readN(int(headerLen))
	if err != nil {
		return nil, err
	}

	f := &smfFile{
		format:   int(binary.BigEndian.Uint16(header[0:2])),
		division: binary.BigEndian.Uint16(header[4:6]),
	}
	numTracks := int(binary.BigEndian.Uint16(header[2:4]))
	if f.format > 2 {
		return nil, r.fail("unsupported format %d", f.format)
	}
	if f.division == 0 {
		return nil, r.fail("zero time division")
	}
	if f.division&0x8000 != 0 {
		fps := -int8(f.division >> 8)
		if (fps != 24 && fps != 25 && fps != 29 && fps != 30) || f.division&0xFF == 0 {
			return nil, r.fail("invalid SMPTE division 0x%04X", f.division)
		}
	}

	for len(f.tracks) < numTracks {
		id, err := r.readN(4)
		if err != nil {
			return nil, err
		}
		length, err := r.readUint32()
		if err != nil {
			return nil, err
		}
		body, err := r.readN(int(length))
		if err != nil {
			return nil, err
		}
		if string(id) != "MTrk" {
			continue
		}
		events, err := readTrack(body, r.pos-int(length))
		if err != nil {
			return nil, fmt.Errorf("track %d: %w", len(f.tracks), err)
		}
		f.tracks = append(f.tracks, events)
	}

	return f, nil
}

func readTrack(body []byte, base int) ([]midiEvent, error) {
	r := &byteReader{data: body}
	wrap := func(err error) error {
		return fmt.Errorf("%w (track chunk at offset %d)", err, base)
	}

	var (
		events []midiEvent
		tick   uint64
		status byte
	)

	for r.remaining() > 0 {
		delta, err := r.readVLQ()
		if err != nil {
			return nil, wrap(err)
		}
		tick += uint64(delta)

		b, err := r.peek()
		if err != nil {
			return nil, wrap(err)
		}
		if b&0x80 != 0 {
			status = b
			r.pos++
		} else if status == 0 {
			return nil, wrap(r.fail("running status with no previous status"))
		}

		switch {
		case status == 0xFF:
			status = 0
			typ, err := r.readByte()
			if err != nil {
				return nil, wrap(err)
			}
			length, err := r.readVLQ()
			if err != nil {
				return nil, wrap(err)
			}
			payload, err := r.readN(int(length))
			if err != nil {
				return nil, wrap(err)
			}
			switch typ {
			case 0x51:
				if len(payload) != 3 {
					return nil, wrap(r.fail("tempo event with %d bytes", len(payload)))
				}
				tempo := int(payload[0])<<16 | int(payload[1])<<8 | int(payload[2])
				events = append(events, midiEvent{tick: tick, kind: kindTempo, tempo: tempo})
			case 0x2F:
				events = append(events, midiEvent{tick: tick, kind: kindEndOfTrack})
				return events, nil
			}

		case status == 0xF0 || status == 0xF7:
			status = 0
			length, err := r.readVLQ()
			if err != nil {
				return nil, wrap(err)
			}
			if _, err := r.readN(int(length)); err != nil {
				return nil, wrap(err)
			}

		case status > 0xF0:
			return nil, wrap(r.fail("unexpected system message 0x%02X", status))

		default:
			ch := int(status & 0x0F)
			msg := status & 0xF0

			d1, err := r.readDataByte()
			if err != nil {
				return nil, wrap(err)
			}
			d2 := 0
			if msg != 0xC0 && msg != 0xD0 {
				if d2, err = r.readDataByte(); err != nil {
					return nil, wrap(err)
				}
			}

			switch msg {
			case 0x90:
				kind := kindNoteOn
				if d2 == 0 {
					kind = kindNoteOff
				}
				events = append(events, midiEvent{tick: tick, kind: kind, channel: ch, data1: d1, data2: d2})
			case 0x80:
				events = append(events, midiEvent{tick: tick, kind: kindNoteOff, channel: ch, data1: d1, data2: d2})
			case 0xB0:
				events = append(events, midiEvent{tick: tick, kind: kindControl, channel: ch, data1: d1, data2: d2})
			}
		}
	}

	// Missing end-of-track: accept the events read so far.
	events = append(events, midiEvent{tick: tick, kind: kindEndOfTrack})
	return events, nil
}

type tempoSegment struct {
	tick    uint64
	seconds float64
	tempo   int
}

// timeConverter maps absolute ticks to seconds using the merged tempo map
// of all tracks, or a fixed rate for SMPTE divisions.
type timeConverter struct {
	ticksPerQuarter float64
	ticksPerSecond  float64 // set for SMPTE divisions
	segments        []tempoSegment
}

func newTimeConverter(f *smfFile) *timeConverter {
	if f.division&0x8000 != 0 {
		fps := float64(-int8(f.division >> 8))
		if fps == 29 {
			fps = 29.97
		}
		return &timeConverter{ticksPerSecond: fps * float64(f.division&0xFF)}
	}

	var changes []midiEvent
	for _, track := range f.tracks {
		for _, ev := range track {
			if ev.kind == kindTempo {
				changes = append(changes, ev)
			}
		}
	}
	sort.SliceStable(changes, func(i, j int) bool { return changes[i].tick < changes[j].tick })

	c := &timeConverter{
		ticksPerQuarter: float64(f.division),
		segments:        []tempoSegment{{tick: 0, seconds: 0, tempo: defaultTempo}},
	}
	for _, ev := range changes {
		last := &c.segments[len(c.segments)-1]
		if ev.tick == last.tick {
			last.tempo = ev.tempo
			continue
		}
		c.segments = append(c.segments, tempoSegment{tick: ev.tick, seconds: c.seconds(ev.tick), tempo: ev.tempo})
	}
	return c
}

func (c *timeConverter) seconds(tick uint64) float64 {
	if c.ticksPerSecond > 0 {
		return float64(tick) / c.ticksPerSecond
	}
	i := sort.Search(len(c.segments), func(i int) bool { return c.segments[i].tick > tick }) - 1
	seg := c.segments[i]
	return seg.seconds + float64(tick-seg.tick)*float64(seg.tempo)/(c.ticksPerQuarter*1e6)
}
