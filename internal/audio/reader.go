package audio

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/himanishpuri/PerfectPitch/internal/model"
)

// ReadWav decodes a PCM WAV file into mono samples normalised to [-1, 1]
// and returns them with the file's sample rate. Channels are averaged.
func ReadWav(path string) (model.Waveform, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return nil, 0, fmt.Errorf("%s: not a valid WAV file", path)
	}
	if decoder.WavAudioFormat != 1 {
		return nil, 0, fmt.Errorf("%s: unsupported WAV audio format %d, only PCM (1) supported", path, decoder.WavAudioFormat)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("%s: reading samples: %w", path, err)
	}

	samples, err := toMono(buf, int(decoder.NumChans), int(decoder.BitDepth))
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", path, err)
	}
	return samples, int(decoder.SampleRate), nil
}

// toMono averages interleaved channels and scales by the bit depth.
func toMono(buf *audio.IntBuffer, channels, bitDepth int) (model.Waveform, error) {
	if channels < 1 {
		return nil, errors.New("wav has no channels")
	}
	if bitDepth < 8 || bitDepth > 32 {
		return nil, fmt.Errorf("unsupported bits per sample: %d", bitDepth)
	}

	scale := 1.0 / float64(int64(1)<<(bitDepth-1))
	frames := len(buf.Data) / channels
	out := make(model.Waveform, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += float64(buf.Data[i*channels+c])
		}
		out[i] = float32(sum / float64(channels) * scale)
	}
	return out, nil
}

// WriteWav writes samples as 16-bit mono PCM. Values outside [-1, 1] are
// clipped.
func WriteWav(path string, samples model.Waveform, sampleRate int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	data := make([]int, len(samples))
	for i, s := range samples {
		v := math.Round(float64(s) * math.MaxInt16)
		data[i] = int(max(math.MinInt16, min(math.MaxInt16, v)))
	}

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("encoding wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalising wav: %w", err)
	}
	return nil
}
