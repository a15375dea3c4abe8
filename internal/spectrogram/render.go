package spectrogram

import (
	"errors"
	"image"
	"image/draw"

	"github.com/eligwz/spectrogram"
)

type RenderOptions struct {
	Width  int
	Height int // also the number of frequency bins drawn
	Log10  bool
}

func DefaultRenderOptions() RenderOptions {
	return RenderOptions{Width: 2048, Height: 512}
}

// Render draws samples as a PNG spectrogram at path. It is a debugging aid
// for eyeballing ingested audio; training uses Extract.
func Render(samples []float64, sampleRate int, path string, opts RenderOptions) error {
	if len(samples) == 0 {
		return errors.New("no samples to render")
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		opts = DefaultRenderOptions()
	}

	img := spectrogram.NewImage128(image.Rect(0, 0, opts.Width, opts.Height))

	black := spectrogram.ParseColor("000000")
	draw.Draw(img, img.Bounds(), image.NewUniform(black), image.Point{}, draw.Src)

	// Hamming window, FFT, magnitude.
	spectrogram.Drawfft(
		img,
		samples,
		uint32(sampleRate),
		uint32(opts.Height),
		false,
		false,
		true,
		opts.Log10,
	)

	return spectrogram.SavePng(img, path)
}
