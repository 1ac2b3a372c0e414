package audio

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/himanishpuri/SonicMatch/internal/testutil"
)

func TestReadWAVMono(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	samples := testutil.Tone(8000, 0.5, 0.5, 440)
	testutil.WriteWAV(t, path, samples, 8000, 1)

	sig, err := ReadWAV(path)
	require.NoError(t, err)

	assert.Equal(t, 8000, sig.SampleRate)
	assert.Equal(t, 1, sig.Channels)
	assert.Equal(t, "wav", sig.Format)
	require.Len(t, sig.Samples, len(samples))
	for i := 0; i < len(samples); i += 97 {
		assert.InDelta(t, samples[i], sig.Samples[i], 1e-4)
	}
	assert.InDelta(t, 0.5, sig.Duration(), 1e-9)
}

func TestReadWAVStereoDownmix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stereo.wav")
	interleaved := make([]float64, 0, 200)
	for i := 0; i < 100; i++ {
		interleaved = append(interleaved, 0.5, -0.25)
	}
	testutil.WriteWAV(t, path, interleaved, 16000, 2)

	sig, err := ReadWAV(path)
	require.NoError(t, err)

	assert.Equal(t, 2, sig.Channels)
	require.Len(t, sig.Samples, 100)
	for _, s := range sig.Samples {
		assert.InDelta(t, 0.125, s, 1e-4)
	}
}

func TestReadWAVRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.wav")
	require.NoError(t, os.WriteFile(path, []byte("INVALID HEADER DATA"), 0o644))

	_, err := ReadWAV(path)
	assert.Error(t, err)
}

func TestLoaderReadsWAVNatively(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "native.WAV")
	testutil.WriteWAV(t, path, testutil.Tone(22050, 0.2, 0.3, 1000), 22050, 1)

	l := &Loader{TempDir: dir}
	sig, err := l.Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 22050, sig.SampleRate)
	assert.Len(t, sig.Samples, 4410)
}

func TestLoaderMissingFile(t *testing.T) {
	l := &Loader{TempDir: t.TempDir()}
	_, err := l.Load(context.Background(), filepath.Join(t.TempDir(), "nope.wav"))
	assert.Error(t, err)
}

func TestPCMSample(t *testing.T) {
	assert.Equal(t, int32(-1), pcmSample([]byte{0xFF, 0xFF}, 16))
	assert.Equal(t, int32(-8388608), pcmSample([]byte{0x00, 0x00, 0x80}, 24))
	assert.Equal(t, int32(8388607), pcmSample([]byte{0xFF, 0xFF, 0x7F}, 24))
	assert.Equal(t, int32(-128), pcmSample([]byte{0x80}, 8))
}

func TestAudioDivisor(t *testing.T) {
	d, err := audioDivisor(24)
	require.NoError(t, err)
	assert.Equal(t, 8388608.0, d)

	_, err = audioDivisor(12)
	assert.Error(t, err)
}
