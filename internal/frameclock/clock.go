// Package frameclock maps between seconds and frame indices.
package frameclock

import (
	"math"

	"github.com/himanishpuri/PerfectPitch/pkg/perfectpitch"
)

// Clock converts between seconds and frames for one Config.
type Clock struct {
	hopLength     int
	frameDuration float64
}

// New returns the clock for cfg's hop and sample rate.
func New(cfg perfectpitch.Config) Clock {
	return Clock{
		hopLength:     cfg.HopLength,
		frameDuration: cfg.FrameDuration(),
	}
}

// FrameDuration is the length of one frame in seconds.
func (c Clock) FrameDuration() float64 {
	return c.frameDuration
}

// TimeToFrame returns the frame containing t. t must not be negative.
func (c Clock) TimeToFrame(t float64) int {
	return int(math.Floor(t / c.frameDuration))
}

// FrameToTime returns the start time of frame f.
func (c Clock) FrameToTime(f int) float64 {
	return float64(f) * c.frameDuration
}

// NumFrames is the number of hops needed to cover numSamples samples.
func (c Clock) NumFrames(numSamples int) int {
	return (numSamples + c.hopLength - 1) / c.hopLength
}
