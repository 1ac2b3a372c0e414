package features

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/himanishpuri/SonicMatch/internal/testutil"
	"github.com/himanishpuri/SonicMatch/pkg/errors"
	"github.com/himanishpuri/SonicMatch/pkg/models"
)

func newExtractor(t *testing.T) *Extractor {
	t.Helper()
	e, err := NewExtractor(DefaultConfig())
	require.NoError(t, err)
	return e
}

func TestExtractSamplesProducesValidBundle(t *testing.T) {
	e := newExtractor(t)
	b, err := e.ExtractSamples(testutil.Tone(SampleRate, 2, 0.5, 440, 660), SampleRate)
	require.NoError(t, err)

	require.NoError(t, b.Validate())
	assert.Len(t, b.MFCCMean, models.MFCCSize)
	assert.Len(t, b.MFCCStd, models.MFCCSize)
	assert.Len(t, b.ChromaMean, models.ChromaSize)
	assert.Len(t, b.ContrastMean, models.ContrastSize)
	assert.InDelta(t, 2.0, b.Duration, 1e-9)
	assert.Greater(t, b.SpectralCentroidMean, 300.0)
	assert.Less(t, b.SpectralCentroidMean, 1500.0)
	assert.GreaterOrEqual(t, b.Tempo, 0.0)
}

func TestExtractSamplesIsDeterministic(t *testing.T) {
	e := newExtractor(t)
	samples := testutil.ClickTrack(SampleRate, 3, 100, 42)

	a, err := e.ExtractSamples(samples, SampleRate)
	require.NoError(t, err)
	b, err := e.ExtractSamples(samples, SampleRate)
	require.NoError(t, err)
	assert.Equal(t, a.Values(), b.Values())
}

func TestExtractSamplesEstimatesTempo(t *testing.T) {
	e := newExtractor(t)
	bpm := 60.0 * SampleRate / (HopSize * 20)
	b, err := e.ExtractSamples(testutil.ClickTrack(SampleRate, 10, bpm, 3), SampleRate)
	require.NoError(t, err)
	assert.InDelta(t, bpm, b.Tempo, bpm*0.03)
}

func TestExtractSamplesResamples(t *testing.T) {
	e := newExtractor(t)
	b, err := e.ExtractSamples(testutil.Tone(44100, 1, 0.5, 440), 44100)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, b.Duration, 1e-3)
}

func TestExtractSamplesIgnoresContentAboveAnalysisBand(t *testing.T) {
	e := newExtractor(t)
	ref, err := e.ExtractSamples(testutil.Tone(SampleRate, 2, 0.5, 440), SampleRate)
	require.NoError(t, err)

	// a 15 kHz partial at 44.1 kHz is outside the 22050 Hz analysis band
	mixed, err := e.ExtractSamples(testutil.Tone(44100, 2, 0.5, 440, 15000), 44100)
	require.NoError(t, err)

	assert.InDelta(t, ref.SpectralCentroidMean, mixed.SpectralCentroidMean, 50)
	assert.InDelta(t, ref.SpectralRolloffMean, mixed.SpectralRolloffMean, 100)
}

func TestConfigKey(t *testing.T) {
	cfg := DefaultConfig()
	withTemp := cfg
	withTemp.TempDir = "/tmp/elsewhere"
	assert.Equal(t, cfg.Key(), withTemp.Key())

	hop := cfg
	hop.HopSize = 256
	assert.NotEqual(t, cfg.Key(), hop.Key())
}

func TestExtractSamplesFailures(t *testing.T) {
	e := newExtractor(t)
	tests := []struct {
		name       string
		samples    []float64
		sampleRate int
		reason     string
	}{
		{"empty", nil, SampleRate, "empty input"},
		{"silent", make([]float64, SampleRate), SampleRate, "silent input"},
		{"too short", testutil.Tone(SampleRate, 0.05, 0.5, 440), SampleRate, "shorter than one"},
		{"bad rate", testutil.Tone(SampleRate, 1, 0.5, 440), 0, "invalid sample rate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := e.ExtractSamples(tt.samples, tt.sampleRate)
			assert.Nil(t, b)
			require.Error(t, err)

			var xerr *errors.ExtractionError
			require.True(t, errors.As(err, &xerr))
			assert.Contains(t, xerr.Reason, tt.reason)
		})
	}
}

func TestProcessFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	testutil.WriteWAV(t, path, testutil.Tone(SampleRate, 1.5, 0.5, 440), SampleRate, 1)

	e := newExtractor(t)
	x, err := e.Process(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, x.Bundle.Validate())
	assert.Equal(t, 1500, x.Analysis.DurationMs)
	assert.Equal(t, "WAV", x.Analysis.Format)

	// a file and its samples give the same bundle up to 16-bit quantisation
	direct, err := e.ExtractSamples(testutil.Tone(SampleRate, 1.5, 0.5, 440), SampleRate)
	require.NoError(t, err)
	assert.InDelta(t, direct.SpectralCentroidMean, x.Bundle.SpectralCentroidMean, 1)
}

func TestExtractFileUndecodable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.wav")
	require.NoError(t, os.WriteFile(path, []byte("definitely not audio"), 0o644))

	_, err := newExtractor(t).ExtractFile(context.Background(), path)
	require.Error(t, err)
	assert.True(t, errors.IsExtraction(err))
	assert.Equal(t, errors.CategoryAudio, errors.CategoryOf(err))
}

func TestExtractFileCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newExtractor(t).ExtractFile(ctx, "whatever.wav")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewExtractorRejectsBadConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FrameSize = 1000
	_, err := NewExtractor(cfg)
	assert.Error(t, err)

	cfg = DefaultConfig()
	cfg.NMels = 4
	_, err = NewExtractor(cfg)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}
