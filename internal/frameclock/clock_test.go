package frameclock

import (
	"testing"

	"github.com/himanishpuri/PerfectPitch/pkg/perfectpitch"
)

func testClock(t *testing.T) Clock {
	t.Helper()
	cfg, err := perfectpitch.New(perfectpitch.WithSampleRate(1000), perfectpitch.WithHopLength(250), perfectpitch.WithFMin(10))
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	return New(cfg)
}

func TestTimeToFrame(t *testing.T) {
	c := testClock(t) // 0.25 s frames

	tests := []struct {
		t    float64
		want int
	}{
		{0, 0},
		{0.1, 0},
		{0.25, 1},
		{0.49, 1},
		{0.5, 2},
		{2.0, 8},
	}
	for _, tt := range tests {
		if got := c.TimeToFrame(tt.t); got != tt.want {
			t.Errorf("TimeToFrame(%v) = %d, want %d", tt.t, got, tt.want)
		}
	}
}

func TestFrameToTime(t *testing.T) {
	c := testClock(t)
	if got := c.FrameToTime(3); got != 0.75 {
		t.Errorf("FrameToTime(3) = %v, want 0.75", got)
	}
	if c.FrameDuration() != 0.25 {
		t.Errorf("FrameDuration = %v, want 0.25", c.FrameDuration())
	}
}

func TestNumFrames(t *testing.T) {
	c := testClock(t)

	tests := []struct {
		samples int
		want    int
	}{
		{0, 0},
		{1, 1},
		{249, 1},
		{250, 1},
		{251, 2},
		{1000, 4},
	}
	for _, tt := range tests {
		if got := c.NumFrames(tt.samples); got != tt.want {
			t.Errorf("NumFrames(%d) = %d, want %d", tt.samples, got, tt.want)
		}
	}
}
