package main

import (
	"github.com/himanishpuri/PerfectPitch/internal/dataset"
	"github.com/himanishpuri/PerfectPitch/internal/model"
	"github.com/himanishpuri/PerfectPitch/internal/pianoroll"
)

// MatrixDTO is a row-major float32 matrix; rows are frames.
type MatrixDTO struct {
	Rows int       `json:"rows" msgpack:"rows"`
	Cols int       `json:"cols" msgpack:"cols"`
	Data []float32 `json:"data" msgpack:"data"`
}

func matrixDTO(m *model.Matrix) MatrixDTO {
	return MatrixDTO{Rows: m.Rows, Cols: m.Cols, Data: m.Data}
}

type PianorollDTO struct {
	Actives    MatrixDTO `json:"actives" msgpack:"actives"`
	Onsets     MatrixDTO `json:"onsets" msgpack:"onsets"`
	Offsets    MatrixDTO `json:"offsets" msgpack:"offsets"`
	Velocities MatrixDTO `json:"velocities" msgpack:"velocities"`
}

func pianorollDTO(p *pianoroll.Pianoroll) PianorollDTO {
	return PianorollDTO{
		Actives:    matrixDTO(p.Actives),
		Onsets:     matrixDTO(p.Onsets),
		Offsets:    matrixDTO(p.Offsets),
		Velocities: matrixDTO(p.Velocities),
	}
}

type NoteSequenceDTO struct {
	Pitches    []int        `json:"pitches" msgpack:"pitches"`
	Intervals  [][2]float64 `json:"intervals" msgpack:"intervals"`
	Velocities []int        `json:"velocities" msgpack:"velocities"`
}

// ExampleResponse is the response for GET /api/examples/{index}. Views
// holds exactly the requested view names.
type ExampleResponse struct {
	Index int            `json:"index" msgpack:"index"`
	Key   string         `json:"key" msgpack:"key"`
	Views map[string]any `json:"views" msgpack:"views"`
}

func exampleResponse(index int, key string, item dataset.Item) ExampleResponse {
	views := make(map[string]any, len(item))
	for name := range item {
		switch name {
		case dataset.ViewAudio:
			a, _ := item.Audio()
			views[name] = []float32(a)
		case dataset.ViewNoteSequence:
			ns, _ := item.NoteSequence()
			views[name] = NoteSequenceDTO{Pitches: ns.Pitches, Intervals: ns.Intervals, Velocities: ns.Velocities}
		case dataset.ViewSpec:
			s, _ := item.Spec()
			views[name] = matrixDTO(s)
		case dataset.ViewPianoroll:
			p, _ := item.Pianoroll()
			views[name] = pianorollDTO(p)
		default:
			views[name] = item[name]
		}
	}
	return ExampleResponse{Index: index, Key: key, Views: views}
}

// ExampleDTO describes a stored example without its arrays.
type ExampleDTO struct {
	Index       int     `json:"index"`
	Key         string  `json:"key"`
	NumSamples  int     `json:"num_samples"`
	DurationSec float64 `json:"duration_sec"`
	NumNotes    int     `json:"num_notes"`
	VelocityMin int     `json:"velocity_min"`
	VelocityMax int     `json:"velocity_max"`
}

// ListExamplesResponse is the response for GET /api/examples
type ListExamplesResponse struct {
	Examples []ExampleDTO `json:"examples"`
	Count    int          `json:"count"`
}

// MetricsResponse provides server health and store metrics
type MetricsResponse struct {
	Status       string `json:"status"`
	DatabasePath string `json:"database_path"`
	ExampleCount int64  `json:"example_count"`
	SampleRate   int    `json:"sample_rate"`
	HopLength    int    `json:"hop_length"`
	SpecDim      int    `json:"spec_dim"`
	NumPitches   int    `json:"num_pitches"`
	Augment      bool   `json:"augment"`
}

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}
