// Package dataset serves stored examples as model-ready views.
package dataset

import (
	"fmt"
	"math/rand/v2"
	"slices"

	"github.com/himanishpuri/PerfectPitch/internal/frameclock"
	"github.com/himanishpuri/PerfectPitch/internal/model"
	"github.com/himanishpuri/PerfectPitch/internal/pianoroll"
	"github.com/himanishpuri/PerfectPitch/internal/spectrogram"
	"github.com/himanishpuri/PerfectPitch/internal/storage"
	"github.com/himanishpuri/PerfectPitch/pkg/logger"
	"github.com/himanishpuri/PerfectPitch/pkg/perfectpitch"
)

// Backend is the read side of the example store.
type Backend interface {
	SampleRate() (int, bool, error)
	ListKeys() ([]string, error)
	ReadExample(key string) (*model.RawExample, error)
	Close() error
}

// Store is a fixed-length collection of examples ordered by key. It is not
// safe for concurrent use; give each worker its own Store.
type Store struct {
	backend   Backend
	cfg       perfectpitch.Config
	keys      []string
	clock     frameclock.Clock
	extractor *spectrogram.Extractor
	encoder   *pianoroll.Encoder

	rng *rand.Rand
	log *logger.Logger
}

type Option func(*Store)

// WithAugmentation makes every piano-roll view randomly transposed and
// stretched using rng.
func WithAugmentation(rng *rand.Rand) Option {
	return func(s *Store) {
		s.rng = rng
	}
}

func WithLogger(l *logger.Logger) Option {
	return func(s *Store) {
		s.log = l
	}
}

// New checks the backend's sample rate against cfg and snapshots its keys.
// A missing or different sample rate is ErrConfigMismatch.
func New(backend Backend, cfg perfectpitch.Config, opts ...Option) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Store{
		backend:   backend,
		cfg:       cfg,
		clock:     frameclock.New(cfg),
		extractor: spectrogram.NewExtractor(cfg),
		log:       logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	rate, ok, err := backend.SampleRate()
	if err != nil {
		return nil, fmt.Errorf("reading store sample rate: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: store has no sample rate attribute", perfectpitch.ErrConfigMismatch)
	}
	if rate != cfg.SampleRate {
		return nil, fmt.Errorf("%w: store sample rate %d, pipeline expects %d",
			perfectpitch.ErrConfigMismatch, rate, cfg.SampleRate)
	}

	keys, err := backend.ListKeys()
	if err != nil {
		return nil, err
	}
	s.keys = slices.Clone(keys)
	slices.Sort(s.keys)

	var encOpts []pianoroll.Option
	if s.rng != nil {
		encOpts = append(encOpts, pianoroll.WithAugmentation(s.rng))
	}
	s.encoder = pianoroll.NewEncoder(cfg, encOpts...)

	s.log.Debugf("dataset: %d examples at %d Hz (augment=%v)", len(s.keys), rate, s.encoder.Augmenting())
	return s, nil
}

// Open opens the sqlite store at path and wraps it. The Store owns the
// handle and closes it on Close.
func Open(path string, cfg perfectpitch.Config, opts ...Option) (*Store, error) {
	db, err := storage.Open(path)
	if err != nil {
		return nil, err
	}
	s, err := New(db, cfg, opts...)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Len() int {
	return len(s.keys)
}

func (s *Store) Key(i int) (string, error) {
	if i < 0 || i >= len(s.keys) {
		return "", fmt.Errorf("%w: %d not in [0, %d)", perfectpitch.ErrIndexOutOfRange, i, len(s.keys))
	}
	return s.keys[i], nil
}

func (s *Store) Keys() []string {
	return slices.Clone(s.keys)
}

// Get reads example i and derives the requested views. The result holds
// exactly the requested keys.
func (s *Store) Get(i int, views Views) (Item, error) {
	key, err := s.Key(i)
	if err != nil {
		return nil, err
	}
	item := Item{}
	if views.Empty() {
		return item, nil
	}

	ex, err := s.backend.ReadExample(key)
	if err != nil {
		return nil, fmt.Errorf("example %s: %w", key, err)
	}

	if views.Audio {
		item[ViewAudio] = ex.Audio
	}
	if views.VelocityMin {
		item[ViewVelocityMin] = ex.VelocityMin
	}
	if views.VelocityMax {
		item[ViewVelocityMax] = ex.VelocityMax
	}
	if views.NoteSequence {
		item[ViewNoteSequence] = ex.Notes
	}

	specLength := s.clock.NumFrames(len(ex.Audio))
	if views.SpecLength {
		item[ViewSpecLength] = specLength
	}
	if views.Spec {
		item[ViewSpec] = s.extractor.Extract(ex.Audio)
	}

	if views.Pianoroll {
		roll, err := s.encoder.Encode(ex.Notes.Transcription(), ex.VelocityMax)
		if err != nil {
			return nil, fmt.Errorf("example %s: %w", key, err)
		}
		if !views.KeepPianorollLength {
			if roll.NumFrames() != specLength {
				s.log.Debugf("dataset: %s pianoroll %d frames, spec %d", key, roll.NumFrames(), specLength)
			}
			roll = roll.PadOrTruncate(specLength)
		}
		item[ViewPianoroll] = roll
	}
	return item, nil
}

func (s *Store) Close() error {
	return s.backend.Close()
}
