package audio

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/himanishpuri/SonicMatch/internal/testutil"
)

func TestResampleLengthAndIdentity(t *testing.T) {
	in := testutil.Tone(44100, 1, 0.5, 440)

	out, err := Resample(in, 44100, 22050)
	require.NoError(t, err)
	assert.Len(t, out, 22050)

	same, err := Resample(in, 44100, 44100)
	require.NoError(t, err)
	assert.Equal(t, len(in), len(same))

	_, err = Resample(in, 0, 22050)
	assert.Error(t, err)
}

func TestResamplePreservesLowFrequencyTone(t *testing.T) {
	in := testutil.Tone(48000, 0.5, 0.8, 200)
	out, err := Resample(in, 48000, 22050)
	require.NoError(t, err)

	want := testutil.Tone(22050, 0.5, 0.8, 200)
	for i := 10; i < len(out)-10; i += 101 {
		assert.InDelta(t, want[i], out[i], 1e-3, "sample %d", i)
	}
}

// amplitude returns the magnitude of the freq component of a signal
// whose length is a whole number of seconds.
func amplitude(samples []float64, sampleRate int, freq float64) float64 {
	var re, im float64
	for i, v := range samples {
		phase := 2 * math.Pi * freq * float64(i) / float64(sampleRate)
		re += v * math.Cos(phase)
		im -= v * math.Sin(phase)
	}
	return 2 * math.Hypot(re, im) / float64(len(samples))
}

func TestResampleRemovesContentAboveTargetNyquist(t *testing.T) {
	// 15 kHz folds to 7050 Hz at 22050 Hz without a low-pass
	in := testutil.Tone(44100, 1, 0.5, 440, 15000)
	out, err := Resample(in, 44100, 22050)
	require.NoError(t, err)
	require.Len(t, out, 22050)

	assert.InDelta(t, 0.25, amplitude(out, 22050, 440), 0.01)
	assert.Less(t, amplitude(out, 22050, 7050), 0.01)
}

func TestLowPassKernelHasUnitGain(t *testing.T) {
	h := lowPassKernel(0.225, 60)
	assert.Len(t, h, 121)

	var sum float64
	for i, v := range h {
		sum += v
		assert.InDelta(t, v, h[len(h)-1-i], 1e-15, "tap %d", i)
	}
	assert.InDelta(t, 1.0, sum, 1e-12)
}

func TestResampleTinyInput(t *testing.T) {
	out, err := Resample([]float64{0.1, 0.2}, 11025, 22050)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.1, 0.2, 0.2}, out)
}

func TestToAnalysisRate(t *testing.T) {
	sig := &Signal{Samples: testutil.Tone(11025, 1, 0.5, 300), SampleRate: 11025}
	require.NoError(t, sig.ToAnalysisRate())
	assert.Equal(t, AnalysisSampleRate, sig.SampleRate)
	assert.Len(t, sig.Samples, AnalysisSampleRate)
}

func TestAnalyze(t *testing.T) {
	// half a second of tone, half a second of silence
	samples := append(testutil.Tone(22050, 0.5, 1.0, 440), make([]float64, 11025)...)
	path := filepath.Join(t.TempDir(), "half.wav")
	testutil.WriteWAV(t, path, samples, 22050, 1)

	sig, err := ReadWAV(path)
	require.NoError(t, err)
	a := Analyze(sig, path)

	assert.Equal(t, 1000, a.DurationMs)
	assert.Equal(t, "WAV", a.Format)
	assert.True(t, a.ClippingDetected)
	assert.InDelta(t, 50, a.SilencePercentage, 0.5)
	assert.InDelta(t, 1/math.Sqrt(2)/math.Sqrt(2), a.RMSAmplitude, 0.01)
	assert.Greater(t, a.FileSizeBytes, int64(44100))
}

func TestAnalyzeEmptySignal(t *testing.T) {
	a := Analyze(&Signal{SampleRate: 22050}, "")
	assert.Zero(t, a.MaxAmplitude)
	assert.Zero(t, a.SilencePercentage)
}

func TestGuessGenreAndMood(t *testing.T) {
	assert.Equal(t, "Electronic", GuessGenre("/music/Deep House Mix.mp3"))
	assert.Equal(t, "Rock", GuessGenre("punk_anthem.wav"))
	assert.Equal(t, "Unknown", GuessGenre("track01.wav"))

	assert.Equal(t, "Calm", GuessMood("ambient-evening.flac"))
	assert.Equal(t, "Happy", GuessMood("Upbeat.mp3"))
	assert.Equal(t, "Neutral", GuessMood("track01.wav"))
}

func TestResolveTitleArtistFromFilename(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Darude - Sandstorm.wav")
	testutil.WriteWAV(t, path, testutil.Tone(8000, 0.1, 0.2, 440), 8000, 1)

	title, artist := ResolveTitleArtist(context.Background(), path, "", "")
	assert.Equal(t, "Sandstorm", title)
	assert.Equal(t, "Darude", artist)

	title, artist = ResolveTitleArtist(context.Background(), path, "Given", "")
	assert.Equal(t, "Given", title)
	assert.Equal(t, "Darude", artist)
}
