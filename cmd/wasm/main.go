//go:build js && wasm

package main

import (
	"fmt"
	"syscall/js"

	"github.com/himanishpuri/PerfectPitch/internal/model"
	"github.com/himanishpuri/PerfectPitch/internal/pianoroll"
	"github.com/himanishpuri/PerfectPitch/internal/score"
	"github.com/himanishpuri/PerfectPitch/internal/spectrogram"
	"github.com/himanishpuri/PerfectPitch/pkg/perfectpitch"
)

// Error codes returned to JavaScript
const (
	ErrorNone = iota
	ErrorInvalidArgs
	ErrorScoreParse
	ErrorPianorollFailed
)

var cfg = perfectpitch.Default()

// melSpectrogram(audioArray, sampleRate, channels) computes the mel power
// spectrogram of PCM already decoded by the browser. The browser must
// resample to the pipeline rate first.
// Returns: {error: number, data: {rows, cols, values: Float32Array} | string}
func melSpectrogram(this js.Value, args []js.Value) any {
	if len(args) < 3 {
		return makeErrorResponse(ErrorInvalidArgs, "Expected 3 arguments: audioArray, sampleRate, channels")
	}

	audioDataJS := args[0]
	sampleRateJS := args[1]
	channelsJS := args[2]

	if audioDataJS.Type() != js.TypeObject {
		return makeErrorResponse(ErrorInvalidArgs, "audioArray must be an Array or Float32Array")
	}
	if sampleRateJS.Type() != js.TypeNumber || channelsJS.Type() != js.TypeNumber {
		return makeErrorResponse(ErrorInvalidArgs, "sampleRate and channels must be numbers")
	}

	sampleRate := sampleRateJS.Int()
	channels := channelsJS.Int()
	if sampleRate != cfg.SampleRate {
		return makeErrorResponse(ErrorInvalidArgs, fmt.Sprintf("Sample rate must be %d Hz, got %d", cfg.SampleRate, sampleRate))
	}
	if channels < 1 || channels > 2 {
		return makeErrorResponse(ErrorInvalidArgs, fmt.Sprintf("Channels must be 1 (mono) or 2 (stereo), got: %d", channels))
	}

	length := audioDataJS.Length()
	samples := make(model.Waveform, length)
	for i := 0; i < length; i++ {
		val := audioDataJS.Index(i)
		if val.Type() != js.TypeNumber {
			return makeErrorResponse(ErrorInvalidArgs, fmt.Sprintf("audioArray element %d is not a number", i))
		}
		samples[i] = float32(val.Float())
	}
	if channels == 2 {
		samples = stereoToMono(samples)
	}

	spec := spectrogram.NewExtractor(cfg).Extract(samples)
	return makeDataResponse(matrixObject(spec))
}

// pianoroll(midiBytes) parses a Standard MIDI File, applies the sustain
// pedal and encodes it on the pipeline frame grid.
// Returns: {error: number, data: {actives, onsets, offsets, velocities} | string}
func encodePianoroll(this js.Value, args []js.Value) any {
	if len(args) < 1 || args[0].Type() != js.TypeObject {
		return makeErrorResponse(ErrorInvalidArgs, "Expected 1 argument: midiBytes (Uint8Array)")
	}

	data := make([]byte, args[0].Length())
	js.CopyBytesToGo(data, args[0])

	t, err := score.Parse(data)
	if err != nil {
		return makeErrorResponse(ErrorScoreParse, err.Error())
	}
	_, vmax := t.VelocityRange()

	roll, err := pianoroll.NewEncoder(cfg).Encode(t, vmax)
	if err != nil {
		return makeErrorResponse(ErrorPianorollFailed, err.Error())
	}

	result := js.Global().Get("Object").New()
	result.Set("actives", matrixObject(roll.Actives))
	result.Set("onsets", matrixObject(roll.Onsets))
	result.Set("offsets", matrixObject(roll.Offsets))
	result.Set("velocities", matrixObject(roll.Velocities))
	return makeDataResponse(result)
}

func matrixObject(m *model.Matrix) js.Value {
	values := js.Global().Get("Float32Array").New(len(m.Data))
	for i, v := range m.Data {
		values.SetIndex(i, v)
	}
	obj := js.Global().Get("Object").New()
	obj.Set("rows", m.Rows)
	obj.Set("cols", m.Cols)
	obj.Set("values", values)
	return obj
}

func stereoToMono(stereo model.Waveform) model.Waveform {
	mono := make(model.Waveform, len(stereo)/2)
	for i := range mono {
		mono[i] = (stereo[i*2] + stereo[i*2+1]) / 2
	}
	return mono
}

func makeDataResponse(data js.Value) js.Value {
	result := js.Global().Get("Object").New()
	result.Set("error", ErrorNone)
	result.Set("data", data)
	return result
}

func makeErrorResponse(errorCode int, message string) js.Value {
	result := js.Global().Get("Object").New()
	result.Set("error", errorCode)
	result.Set("data", message)
	return result
}

func main() {
	console := js.Global().Get("console")
	logf := func(method, msg string) {
		if !console.IsUndefined() {
			console.Call(method, msg)
		}
	}

	logf("log", "🔧 PerfectPitch WASM module initializing...")

	done := make(chan struct{})

	js.Global().Set("melSpectrogram", js.FuncOf(melSpectrogram))
	js.Global().Set("pianoroll", js.FuncOf(encodePianoroll))
	logf("log", "📝 melSpectrogram and pianoroll registered")

	window := js.Global().Get("window")
	if window.IsUndefined() {
		logf("error", "❌ window object is undefined!")
	} else {
		event := js.Global().Get("CustomEvent").New("wasmReady", js.Global().Get("Object").New())
		window.Call("dispatchEvent", event)
		logf("log", "✅ wasmReady event dispatched")
	}

	<-done
}
