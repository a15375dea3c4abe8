package audio

import (
	"context"
	"errors"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/himanishpuri/PerfectPitch/internal/model"
)

func sine(freq float64, sampleRate, n int) model.Waveform {
	out := make(model.Waveform, n)
	for i := range out {
		out[i] = float32(0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)))
	}
	return out
}

func TestWriteReadWavRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	want := sine(440, 16000, 1600)

	if err := WriteWav(path, want, 16000); err != nil {
		t.Fatalf("WriteWav: %v", err)
	}

	got, rate, err := ReadWav(path)
	if err != nil {
		t.Fatalf("ReadWav: %v", err)
	}
	if rate != 16000 {
		t.Errorf("Expected sample rate 16000, got %d", rate)
	}
	if len(got) != len(want) {
		t.Fatalf("Expected %d samples, got %d", len(want), len(got))
	}
	for i := range want {
		if math.Abs(float64(got[i]-want[i])) > 1e-3 {
			t.Fatalf("sample %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestWriteWavClips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loud.wav")
	if err := WriteWav(path, model.Waveform{2, -2}, 8000); err != nil {
		t.Fatalf("WriteWav: %v", err)
	}
	got, _, err := ReadWav(path)
	if err != nil {
		t.Fatalf("ReadWav: %v", err)
	}
	if got[0] < 0.99 || got[0] > 1 || got[1] > -0.99 || got[1] < -1 {
		t.Errorf("samples not clipped: %v", got)
	}
}

func TestReadWavStereoAveraged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stereo.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	enc := wav.NewEncoder(f, 8000, 16, 2, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 2, SampleRate: 8000},
		Data:           []int{16384, 0, -16384, -16384, 8192, 24576},
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close encoder: %v", err)
	}
	f.Close()

	got, rate, err := ReadWav(path)
	if err != nil {
		t.Fatalf("ReadWav: %v", err)
	}
	if rate != 8000 {
		t.Errorf("Expected 8000 Hz, got %d", rate)
	}
	want := []float32{0.25, -0.5, 0.5}
	if len(got) != len(want) {
		t.Fatalf("Expected %d frames, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("frame %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestReadWavInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "invalid.wav")
	if err := os.WriteFile(path, []byte("INVALID HEADER DATA"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, _, err := ReadWav(path); err == nil {
		t.Error("ReadWav should fail on invalid file")
	}
}

func TestReadWavMissingFile(t *testing.T) {
	if _, _, err := ReadWav(filepath.Join(t.TempDir(), "nope.wav")); !os.IsNotExist(err) {
		t.Errorf("Expected not-exist error, got %v", err)
	}
}

func TestParseProbe(t *testing.T) {
	out := []byte(`{
		"streams": [
			{"codec_type": "video"},
			{"codec_type": "audio", "sample_rate": "44100", "channels": 2, "bits_per_sample": 16}
		],
		"format": {"filename": "/x/piece.flac", "duration": "12.5", "format_name": "flac"}
	}`)

	meta, err := parseProbe("/x/piece.flac", out)
	if err != nil {
		t.Fatalf("parseProbe: %v", err)
	}
	if meta.Filename != "piece.flac" || meta.SampleRate != 44100 || meta.Channels != 2 ||
		meta.DurationSec != 12.5 || meta.Format != "flac" {
		t.Errorf("unexpected metadata: %+v", meta)
	}

	if _, err := parseProbe("x", []byte(`{"streams": [{"codec_type": "video"}]}`)); !errors.Is(err, ErrNoAudioStream) {
		t.Errorf("Expected ErrNoAudioStream, got %v", err)
	}
}

func TestConvertToMonoWAV(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not installed")
	}

	dir := t.TempDir()
	src := filepath.Join(dir, "source.wav")
	if err := WriteWav(src, sine(440, 44100, 44100), 44100); err != nil {
		t.Fatalf("WriteWav: %v", err)
	}

	out, err := ConvertToMonoWAV(context.Background(), src, filepath.Join(dir, "converted"), ConvertWAVConfig{SampleRate: 16000})
	if err != nil {
		t.Fatalf("ConvertToMonoWAV: %v", err)
	}
	if filepath.Base(out) != "source.wav" {
		t.Errorf("Expected output named source.wav, got %s", out)
	}

	samples, rate, err := ReadWav(out)
	if err != nil {
		t.Fatalf("ReadWav: %v", err)
	}
	if rate != 16000 {
		t.Errorf("Expected 16000 Hz, got %d", rate)
	}
	if len(samples) < 15900 || len(samples) > 16100 {
		t.Errorf("Expected about one second of audio, got %d samples", len(samples))
	}
}
