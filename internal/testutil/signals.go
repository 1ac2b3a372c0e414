// Package testutil generates deterministic audio for tests.
package testutil

import (
	"math"
	"math/rand"
	"os"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Tone returns a sum of sine partials at the given frequencies.
func Tone(sampleRate int, seconds float64, amp float64, freqs ...float64) []float64 {
	n := int(float64(sampleRate) * seconds)
	out := make([]float64, n)
	if len(freqs) == 0 {
		return out
	}
	for i := range out {
		t := float64(i) / float64(sampleRate)
		var v float64
		for _, f := range freqs {
			v += math.Sin(2 * math.Pi * f * t)
		}
		out[i] = amp * v / float64(len(freqs))
	}
	return out
}

// ClickTrack returns short decaying noise bursts at the given tempo, on
// top of a quiet tone so no frame is fully silent.
func ClickTrack(sampleRate int, seconds, bpm float64, seed int64) []float64 {
	out := Tone(sampleRate, seconds, 0.05, 220)
	rng := rand.New(rand.NewSource(seed))
	period := int(60.0 / bpm * float64(sampleRate))
	burst := sampleRate / 50
	for start := 0; start < len(out); start += period {
		for j := 0; j < burst && start+j < len(out); j++ {
			env := math.Exp(-float64(j) / float64(burst) * 5)
			out[start+j] += 0.8 * env * (rng.Float64()*2 - 1)
		}
	}
	return out
}

// Noise returns uniform white noise.
func Noise(sampleRate int, seconds, amp float64, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, int(float64(sampleRate)*seconds))
	for i := range out {
		out[i] = amp * (rng.Float64()*2 - 1)
	}
	return out
}

// WriteWAV writes interleaved samples as 16-bit PCM.
func WriteWAV(t testing.TB, path string, samples []float64, sampleRate, channels int) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating %s: %v", path, err)
	}
	defer f.Close()

	data := make([]int, len(samples))
	for i, s := range samples {
		s = math.Max(-1, math.Min(1, s))
		data[i] = int(math.Round(s * 32767))
	}

	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encoding %s: %v", path, err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("closing encoder for %s: %v", path, err)
	}
}
