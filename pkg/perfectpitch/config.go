package perfectpitch

import (
	"fmt"
)

// Config holds the constants shared by the producer (ingestion) and the
// consumer (dataset) of training examples. It is a plain value: copy it
// freely, never mutate it after construction.
type Config struct {
	SampleRate   int
	HopLength    int
	WindowLength int
	SpecDim      int
	FMin         float64
	MinPitch     int
	MaxPitch     int
}

type Option func(*Config)

func WithSampleRate(rate int) Option {
	return func(c *Config) {
		c.SampleRate = rate
	}
}

func WithHopLength(hop int) Option {
	return func(c *Config) {
		c.HopLength = hop
	}
}

func WithWindowLength(n int) Option {
	return func(c *Config) {
		c.WindowLength = n
	}
}

func WithSpecDim(bins int) Option {
	return func(c *Config) {
		c.SpecDim = bins
	}
}

func WithFMin(hz float64) Option {
	return func(c *Config) {
		c.FMin = hz
	}
}

// WithPitchRange sets the inclusive MIDI pitch range of the piano-roll.
func WithPitchRange(lo, hi int) Option {
	return func(c *Config) {
		c.MinPitch = lo
		c.MaxPitch = hi
	}
}

// Default returns the piano transcription constants.
func Default() Config {
	return Config{
		SampleRate:   16000,
		HopLength:    512,
		WindowLength: 2048,
		SpecDim:      229,
		FMin:         30.0,
		MinPitch:     21,
		MaxPitch:     108,
	}
}

// New applies opts on top of Default and validates the result.
func New(opts ...Option) (Config, error) {
	cfg := Default()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch {
	case c.SampleRate <= 0:
		return fmt.Errorf("sample rate must be positive, got %d", c.SampleRate)
	case c.HopLength <= 0:
		return fmt.Errorf("hop length must be positive, got %d", c.HopLength)
	case c.WindowLength <= 0:
		return fmt.Errorf("window length must be positive, got %d", c.WindowLength)
	case c.SpecDim <= 0:
		return fmt.Errorf("spec dim must be positive, got %d", c.SpecDim)
	case c.FMin < 0 || c.FMin >= float64(c.SampleRate)/2:
		return fmt.Errorf("fmin %.1f outside [0, %d)", c.FMin, c.SampleRate/2)
	case c.MinPitch < 0 || c.MaxPitch > 127 || c.MinPitch > c.MaxPitch:
		return fmt.Errorf("invalid pitch range [%d, %d]", c.MinPitch, c.MaxPitch)
	}
	return nil
}

// NumPitches is the width of every piano-roll matrix.
func (c Config) NumPitches() int {
	return c.MaxPitch - c.MinPitch + 1
}

// FrameDuration is the length of one frame in seconds.
func (c Config) FrameDuration() float64 {
	return float64(c.HopLength) / float64(c.SampleRate)
}
