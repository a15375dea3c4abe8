// Package ingest builds the example store from audio recordings and their
// MIDI scores.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/himanishpuri/PerfectPitch/internal/audio"
	"github.com/himanishpuri/PerfectPitch/internal/frameclock"
	"github.com/himanishpuri/PerfectPitch/internal/model"
	"github.com/himanishpuri/PerfectPitch/internal/score"
	"github.com/himanishpuri/PerfectPitch/internal/storage"
	"github.com/himanishpuri/PerfectPitch/pkg/logger"
	"github.com/himanishpuri/PerfectPitch/pkg/perfectpitch"
	"github.com/himanishpuri/PerfectPitch/pkg/utils"
)

var (
	AudioExts = []string{".wav", ".flac", ".mp3"}
	MIDIExts  = []string{".mid", ".midi"}
)

type Ingester struct {
	db      *storage.DBClient
	cfg     perfectpitch.Config
	tempDir string
	log     *logger.Logger
}

type Option func(*Ingester)

// WithTempDir sets where converted WAV files are written.
func WithTempDir(dir string) Option {
	return func(in *Ingester) {
		in.tempDir = dir
	}
}

func WithLogger(l *logger.Logger) Option {
	return func(in *Ingester) {
		in.log = l
	}
}

// New records cfg.SampleRate on an empty store, or checks it against the
// rate already recorded.
func New(db *storage.DBClient, cfg perfectpitch.Config, opts ...Option) (*Ingester, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	in := &Ingester{
		db:      db,
		cfg:     cfg,
		tempDir: os.TempDir(),
		log:     logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(in)
	}

	rate, ok, err := db.SampleRate()
	if err != nil {
		return nil, err
	}
	switch {
	case !ok:
		if err := db.SetSampleRate(cfg.SampleRate); err != nil {
			return nil, err
		}
		in.log.Infof("New store, sample rate set to %d Hz", cfg.SampleRate)
	case rate != cfg.SampleRate:
		return nil, fmt.Errorf("%w: store sample rate %d, pipeline expects %d",
			perfectpitch.ErrConfigMismatch, rate, cfg.SampleRate)
	}
	return in, nil
}

// AddSamples parses midi and stores it with samples under key. Velocity
// bounds are taken from the parsed notes, 0 and 0 when there are none.
func (in *Ingester) AddSamples(key string, samples model.Waveform, midi []byte) error {
	t, err := score.Parse(midi)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}

	outside := 0
	for _, p := range t.Pitches {
		if p < in.cfg.MinPitch || p > in.cfg.MaxPitch {
			outside++
		}
	}
	if outside > 0 {
		in.log.Warnf("%s: %d notes outside pitch range [%d, %d]", key, outside, in.cfg.MinPitch, in.cfg.MaxPitch)
	}
	if extra := uncoveredFrames(frameclock.New(in.cfg), len(samples), t); extra > 0 {
		in.log.Warnf("%s: score runs %d frame(s) past the end of the recording, piano-roll will be truncated", key, extra)
	}

	vmin, vmax := t.VelocityRange()
	ex := &model.RawExample{
		Key:         key,
		Audio:       samples,
		VelocityMin: vmin,
		VelocityMax: vmax,
		Notes:       *model.NoteSequenceOf(t),
	}
	if err := in.db.PutExample(ex); err != nil {
		return err
	}
	in.log.Infof("Stored %s: %d samples, %d notes, velocity [%d, %d]", key, len(samples), t.Len(), vmin, vmax)
	return nil
}

// uncoveredFrames is how many piano-roll frames of t fall past the
// spectrogram of numSamples samples.
func uncoveredFrames(clock frameclock.Clock, numSamples int, t *model.Transcription) int {
	if t.Len() == 0 {
		return 0
	}
	end := slices.Max(t.EndTimes)
	return max(0, clock.TimeToFrame(end)+1-clock.NumFrames(numSamples))
}

// loadAudio returns mono samples at the pipeline rate. WAV files already at
// that rate are read directly; everything else goes through ffmpeg.
func (in *Ingester) loadAudio(ctx context.Context, audioPath string) (model.Waveform, error) {
	if strings.EqualFold(filepath.Ext(audioPath), ".wav") {
		samples, rate, err := audio.ReadWav(audioPath)
		if err == nil && rate == in.cfg.SampleRate {
			return samples, nil
		}
	}

	meta, err := audio.ReadMetadataFFmpeg(ctx, audioPath)
	switch {
	case errors.Is(err, audio.ErrNoAudioStream):
		return nil, fmt.Errorf("%s: %w", filepath.Base(audioPath), err)
	case err != nil:
		// ffmpeg reports the real problem if there is one.
		in.log.Debugf("ffprobe %s: %v", audioPath, err)
	default:
		in.log.Debugf("%s: %.1fs %s, %d Hz, %d ch", meta.Filename, meta.DurationSec, meta.Format, meta.SampleRate, meta.Channels)
	}

	workDir := filepath.Join(in.tempDir, "perfectpitch-"+utils.GenerateUUID())
	defer os.RemoveAll(workDir)

	wavPath, err := audio.ConvertToMonoWAV(ctx, audioPath, workDir, audio.ConvertWAVConfig{
		SampleRate: in.cfg.SampleRate,
	})
	if err != nil {
		return nil, fmt.Errorf("audio conversion failed: %w", err)
	}

	samples, rate, err := audio.ReadWav(wavPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read WAV file: %w", err)
	}
	if rate != in.cfg.SampleRate {
		return nil, fmt.Errorf("%w: converted audio is %d Hz, want %d", perfectpitch.ErrConfigMismatch, rate, in.cfg.SampleRate)
	}
	return samples, nil
}

// AddPair ingests one recording and its score.
func (in *Ingester) AddPair(ctx context.Context, key, audioPath, midiPath string) error {
	in.log.Debugf("Processing %s: %s + %s", key, audioPath, midiPath)

	midi, err := os.ReadFile(midiPath)
	if err != nil {
		return fmt.Errorf("%s: reading score: %w", key, err)
	}

	samples, err := in.loadAudio(ctx, audioPath)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return in.AddSamples(key, samples, midi)
}

// Pair is a recording and score sharing a name.
type Pair struct {
	Key   string
	Audio string
	MIDI  string
}

// Report summarises AddDirectory.
type Report struct {
	Added    []string
	Failed   map[string]error
	Unpaired []string
}

// FindPairs walks dir and matches <name>.{wav,flac,mp3} with
// <name>.{mid,midi}. Keys are slash-separated paths relative to dir without
// extension, returned in lexicographic order. Files with only one half are
// listed in unpaired.
func FindPairs(dir string) (pairs []Pair, unpaired []string, err error) {
	audioByKey := make(map[string]string)
	midiByKey := make(map[string]string)

	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(utils.TrimExt(rel))

		switch {
		case slices.Contains(AudioExts, ext):
			if prev, ok := audioByKey[key]; ok {
				return fmt.Errorf("two recordings for %s: %s and %s", key, prev, path)
			}
			audioByKey[key] = path
		case slices.Contains(MIDIExts, ext):
			if prev, ok := midiByKey[key]; ok {
				return fmt.Errorf("two scores for %s: %s and %s", key, prev, path)
			}
			midiByKey[key] = path
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	for key, a := range audioByKey {
		m, ok := midiByKey[key]
		if !ok {
			unpaired = append(unpaired, a)
			continue
		}
		pairs = append(pairs, Pair{Key: key, Audio: a, MIDI: m})
	}
	for key, m := range midiByKey {
		if _, ok := audioByKey[key]; !ok {
			unpaired = append(unpaired, m)
		}
	}

	slices.SortFunc(pairs, func(a, b Pair) int { return strings.Compare(a.Key, b.Key) })
	slices.Sort(unpaired)
	return pairs, unpaired, nil
}

// AddDirectory ingests every pair under dir. A failing pair is logged and
// recorded in the report; the walk continues. Cancelling ctx stops it.
func (in *Ingester) AddDirectory(ctx context.Context, dir string) (*Report, error) {
	pairs, unpaired, err := FindPairs(dir)
	if err != nil {
		return nil, err
	}

	report := &Report{Failed: make(map[string]error), Unpaired: unpaired}
	for _, name := range unpaired {
		in.log.Warnf("Skipping %s: no matching recording or score", name)
	}

	for _, p := range pairs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := in.AddPair(ctx, p.Key, p.Audio, p.MIDI); err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			in.log.Errorf("Failed to ingest %s: %v", p.Key, err)
			report.Failed[p.Key] = err
			continue
		}
		report.Added = append(report.Added, p.Key)
	}

	in.log.Infof("Ingested %d of %d pairs from %s", len(report.Added), len(pairs), dir)
	return report, nil
}
