// Package features turns audio into a fixed-size models.FeatureBundle.
//
// The pipeline resamples to a single analysis rate, runs one centred STFT
// and derives every per-frame descriptor from it: MFCC, spectral
// centroid, rolloff, zero-crossing rate, chroma and spectral contrast.
// Per-frame values are aggregated to mean and population standard
// deviation. Tempo comes from the autocorrelation of a log-mel onset
// envelope. The same samples and Config always give a bit-identical
// bundle.
package features

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/himanishpuri/SonicMatch/pkg/errors"
	"github.com/himanishpuri/SonicMatch/pkg/models"
	"github.com/himanishpuri/SonicMatch/pkg/sonicmatch/audio"
	"github.com/himanishpuri/SonicMatch/pkg/sonicmatch/dsp"
)

// Defaults
const (
	SampleRate = audio.AnalysisSampleRate
	FrameSize  = 2048
	HopSize    = 512
	NMels      = 128

	// silenceFloor is the peak amplitude below which input counts as silent.
	silenceFloor = 1e-6
)

// Config fixes the analysis parameters. Bundles are only comparable when
// produced with the same Config.
type Config struct {
	SampleRate int
	FrameSize  int
	HopSize    int
	NMels      int
	// TempDir receives ffmpeg conversions of non-WAV input.
	TempDir string
}

// DefaultConfig returns the canonical analysis parameters.
func DefaultConfig() Config {
	return Config{
		SampleRate: SampleRate,
		FrameSize:  FrameSize,
		HopSize:    HopSize,
		NMels:      NMels,
	}
}

// Key identifies the parameters that shape a bundle. TempDir is not part
// of it.
func (c Config) Key() string {
	return fmt.Sprintf("sr%d-f%d-h%d-m%d", c.SampleRate, c.FrameSize, c.HopSize, c.NMels)
}

func (c Config) validate() error {
	if c.SampleRate <= 0 || c.FrameSize <= 0 || c.HopSize <= 0 || c.NMels < models.MFCCSize {
		return errors.Wrap(fmt.Errorf("%+v", c), errors.CategoryConfiguration, "invalid extractor config")
	}
	if c.FrameSize&(c.FrameSize-1) != 0 {
		return errors.Wrap(fmt.Errorf("frame size %d", c.FrameSize), errors.CategoryConfiguration, "frame size must be a power of two")
	}
	return nil
}

// Extraction is the result of processing one file.
type Extraction struct {
	Bundle   *models.FeatureBundle
	Analysis *models.AudioAnalysis
}

// Extractor computes feature bundles. Filterbanks are built once, so an
// Extractor should be reused. It is safe for concurrent use.
type Extractor struct {
	cfg    Config
	loader *audio.Loader

	window   []float64
	melFB    [][]float64
	chromaFB [][]float64
	dct      [][]float64
}

// NewExtractor prepares an Extractor for cfg.
func NewExtractor(cfg Config) (*Extractor, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Extractor{
		cfg:      cfg,
		loader:   &audio.Loader{TempDir: cfg.TempDir},
		window:   dsp.Hann(cfg.FrameSize),
		melFB:    dsp.MelFilterbank(cfg.SampleRate, cfg.FrameSize, cfg.NMels, 0, 0),
		chromaFB: dsp.ChromaFilterbank(cfg.SampleRate, cfg.FrameSize),
		dct:      dsp.DCTBasis(models.MFCCSize, cfg.NMels),
	}, nil
}

// Config returns the analysis parameters.
func (e *Extractor) Config() Config { return e.cfg }

// ExtractFile decodes path and extracts its feature bundle.
func (e *Extractor) ExtractFile(ctx context.Context, path string) (*models.FeatureBundle, error) {
	x, err := e.Process(ctx, path)
	if err != nil {
		return nil, err
	}
	return x.Bundle, nil
}

// Process decodes path once and returns both the feature bundle and the
// basic level analysis of the source signal.
func (e *Extractor) Process(ctx context.Context, path string) (*Extraction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sig, err := e.loader.Load(ctx, path)
	if err != nil {
		return nil, errors.NewExtractionError(path, "could not decode audio", err)
	}
	analysis := audio.Analyze(sig, path)

	bundle, err := e.extract(path, sig.Samples, sig.SampleRate)
	if err != nil {
		return nil, err
	}
	return &Extraction{Bundle: bundle, Analysis: analysis}, nil
}

// ExtractSamples extracts a bundle from mono samples in [-1, 1] at
// sampleRate.
func (e *Extractor) ExtractSamples(samples []float64, sampleRate int) (*models.FeatureBundle, error) {
	return e.extract("", samples, sampleRate)
}

func (e *Extractor) extract(source string, samples []float64, sampleRate int) (*models.FeatureBundle, error) {
	fail := func(reason string, err error) (*models.FeatureBundle, error) {
		return nil, errors.NewExtractionError(source, reason, err)
	}

	if len(samples) == 0 {
		return fail("empty input", nil)
	}
	if sampleRate <= 0 {
		return fail(fmt.Sprintf("invalid sample rate %d", sampleRate), nil)
	}
	if sampleRate != e.cfg.SampleRate {
		resampled, err := audio.Resample(samples, sampleRate, e.cfg.SampleRate)
		if err != nil {
			return fail("resampling failed", err)
		}
		samples = resampled
	}
	if len(samples) < e.cfg.FrameSize {
		return fail(fmt.Sprintf("input of %d samples is shorter than one %d-sample frame", len(samples), e.cfg.FrameSize), nil)
	}
	if audio.PeakAmplitude(samples) < silenceFloor {
		return fail("silent input", nil)
	}

	spec, err := dsp.STFT(samples, e.cfg.SampleRate, e.cfg.FrameSize, e.cfg.HopSize, e.window)
	if err != nil {
		return fail("stft failed", err)
	}
	power := spec.Power()
	logMel := dsp.LogMel(power, e.melFB)

	b := &models.FeatureBundle{}
	b.MFCCMean, b.MFCCStd = dsp.ColumnMeanStd(dsp.MFCC(logMel, e.dct))
	b.SpectralCentroidMean, b.SpectralCentroidStd = dsp.MeanStd(dsp.SpectralCentroid(spec))
	b.SpectralRolloffMean, b.SpectralRolloffStd = dsp.MeanStd(dsp.SpectralRolloff(spec))
	b.ZeroCrossingRateMean, b.ZeroCrossingRateStd = dsp.MeanStd(dsp.ZeroCrossingRate(samples, e.cfg.FrameSize, e.cfg.HopSize))
	b.ChromaMean = dsp.ColumnMean(dsp.Chroma(power, e.chromaFB))
	b.ContrastMean = dsp.ColumnMean(dsp.SpectralContrast(spec))
	b.Tempo = dsp.EstimateTempo(dsp.OnsetStrength(logMel), e.cfg.SampleRate, e.cfg.HopSize)
	b.Duration = float64(len(samples)) / float64(e.cfg.SampleRate)

	for _, v := range []struct {
		name string
		vals []float64
	}{
		{"mfcc_mean", b.MFCCMean},
		{"chroma_mean", b.ChromaMean},
		{"contrast_mean", b.ContrastMean},
	} {
		if len(v.vals) > 0 && floats.Norm(v.vals, 2) == 0 {
			return fail("silent input: "+v.name+" has zero norm", nil)
		}
	}
	if err := b.Validate(); err != nil {
		return fail("non-finite feature value", err)
	}
	return b, nil
}
