package audio

import (
	"math"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/himanishpuri/SonicMatch/pkg/models"
)

const (
	clipLevel        = 0.99
	silenceThreshDB  = -50.0
	silenceWindowSec = 0.1
)

// Analyze computes basic level statistics of a decoded signal. path is
// only used for the format and file size fields and may be empty.
func Analyze(sig *Signal, path string) *models.AudioAnalysis {
	a := &models.AudioAnalysis{
		DurationMs: int(sig.Duration() * 1000),
		SampleRate: sig.SampleRate,
		Channels:   sig.Channels,
		Format:     strings.ToUpper(sig.Format),
	}
	if path != "" {
		if fi, err := os.Stat(path); err == nil {
			a.FileSizeBytes = fi.Size()
		}
		if a.Format == "" {
			a.Format = strings.ToUpper(strings.TrimPrefix(filepath.Ext(path), "."))
		}
	}
	if len(sig.Samples) == 0 {
		return a
	}

	a.MaxAmplitude = PeakAmplitude(sig.Samples)
	a.RMSAmplitude = rms(sig.Samples)
	a.ClippingDetected = a.MaxAmplitude >= clipLevel
	a.SilencePercentage = silencePercentage(sig.Samples, sig.SampleRate)
	return a
}

// PeakAmplitude returns the largest absolute sample value.
func PeakAmplitude(samples []float64) float64 {
	var peak float64
	for _, s := range samples {
		if v := math.Abs(s); v > peak {
			peak = v
		}
	}
	return peak
}

func rms(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	return floats.Norm(samples, 2) / math.Sqrt(float64(len(samples)))
}

func silencePercentage(samples []float64, sampleRate int) float64 {
	window := int(silenceWindowSec * float64(sampleRate))
	if window <= 0 {
		window = len(samples)
	}
	var silent, total int
	for start := 0; start < len(samples); start += window {
		end := min(start+window, len(samples))
		level := rms(samples[start:end])
		if level == 0 || 20*math.Log10(level) < silenceThreshDB {
			silent += end - start
		}
		total += end - start
	}
	return 100 * float64(silent) / float64(total)
}
