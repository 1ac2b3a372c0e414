package dsp

import (
	"errors"
	"image"
	"image/draw"
	"image/png"
	"io"

	"github.com/eligwz/spectrogram"
)

// RenderOptions controls spectrogram image output.
type RenderOptions struct {
	Width  int
	Height int
	// Background is a hex RGB colour such as "000000".
	Background string
	// Log10 draws magnitudes on a log scale.
	Log10 bool
}

// DefaultRenderOptions matches the size used for visual debugging.
func DefaultRenderOptions() RenderOptions {
	return RenderOptions{Width: 2048, Height: 512, Background: "000000"}
}

func (o RenderOptions) check(samples []float64) (RenderOptions, error) {
	if len(samples) == 0 {
		return o, errors.New("no samples to render")
	}
	if o.Width <= 0 || o.Height <= 0 {
		return o, errors.New("image dimensions must be positive")
	}
	if o.Background == "" {
		o.Background = "000000"
	}
	return o, nil
}

// SaveSpectrogramPNG draws an FFT spectrogram of mono samples and writes
// it to path.
func SaveSpectrogramPNG(path string, samples []float64, sampleRate int, opts RenderOptions) error {
	opts, err := opts.check(samples)
	if err != nil {
		return err
	}

	img := spectrogram.NewImage128(image.Rect(0, 0, opts.Width, opts.Height))
	draw.Draw(img, img.Bounds(), image.NewUniform(spectrogram.ParseColor(opts.Background)), image.Point{}, draw.Src)
	// Hamming window, FFT, magnitude
	spectrogram.Drawfft(img, samples, uint32(sampleRate), uint32(opts.Height), false, false, true, opts.Log10)

	return spectrogram.SavePng(img, path)
}

// WriteSpectrogramPNG is SaveSpectrogramPNG for an arbitrary writer.
func WriteSpectrogramPNG(w io.Writer, samples []float64, sampleRate int, opts RenderOptions) error {
	opts, err := opts.check(samples)
	if err != nil {
		return err
	}

	img := spectrogram.NewImage128(image.Rect(0, 0, opts.Width, opts.Height))
	draw.Draw(img, img.Bounds(), image.NewUniform(spectrogram.ParseColor(opts.Background)), image.Point{}, draw.Src)
	spectrogram.Drawfft(img, samples, uint32(sampleRate), uint32(opts.Height), false, false, true, opts.Log10)

	return png.Encode(w, img)
}
