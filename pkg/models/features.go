package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"github.com/himanishpuri/SonicMatch/pkg/errors"
)

// Fixed vector lengths of a FeatureBundle.
const (
	MFCCSize     = 13
	ChromaSize   = 12
	ContrastSize = 7
)

// FeatureBundle is the fixed-size description of one audio file.
// Two bundles are only comparable when they were extracted with the same
// analysis rate, frame size and hop size.
type FeatureBundle struct {
	MFCCMean []float64 `json:"mfcc_mean"`
	MFCCStd  []float64 `json:"mfcc_std"`

	SpectralCentroidMean float64 `json:"spectral_centroid_mean"`
	SpectralCentroidStd  float64 `json:"spectral_centroid_std"`
	SpectralRolloffMean  float64 `json:"spectral_rolloff_mean"`
	SpectralRolloffStd   float64 `json:"spectral_rolloff_std"`
	ZeroCrossingRateMean float64 `json:"zero_crossing_rate_mean"`
	ZeroCrossingRateStd  float64 `json:"zero_crossing_rate_std"`

	ChromaMean   []float64 `json:"chroma_mean"`
	ContrastMean []float64 `json:"contrast_mean"`

	Tempo    float64 `json:"tempo"`    // BPM
	Duration float64 `json:"duration"` // seconds
}

// bundleKeys is the complete JSON field set, in serialization order.
var bundleKeys = []string{
	"mfcc_mean", "mfcc_std",
	"spectral_centroid_mean", "spectral_centroid_std",
	"spectral_rolloff_mean", "spectral_rolloff_std",
	"zero_crossing_rate_mean", "zero_crossing_rate_std",
	"chroma_mean", "contrast_mean",
	"tempo", "duration",
}

// Validate checks vector lengths and that every value is finite.
func (b *FeatureBundle) Validate() error {
	if b == nil {
		return errors.NewInvalidBundleError("", "bundle is nil")
	}
	vectors := []struct {
		name string
		vals []float64
		want int
	}{
		{"mfcc_mean", b.MFCCMean, MFCCSize},
		{"mfcc_std", b.MFCCStd, MFCCSize},
		{"chroma_mean", b.ChromaMean, ChromaSize},
		{"contrast_mean", b.ContrastMean, ContrastSize},
	}
	for _, v := range vectors {
		if len(v.vals) != v.want {
			return errors.NewInvalidBundleError(v.name, "expected %d values, got %d", v.want, len(v.vals))
		}
		for i, x := range v.vals {
			if !finite(x) {
				return errors.NewInvalidBundleError(v.name, "value %d is not finite", i)
			}
		}
	}
	for i, x := range b.scalars() {
		if !finite(x) {
			return errors.NewInvalidBundleError(bundleKeys[i+2], "value is not finite")
		}
	}
	if b.Tempo < 0 {
		return errors.NewInvalidBundleError("tempo", "negative tempo %.3f", b.Tempo)
	}
	if b.Duration < 0 {
		return errors.NewInvalidBundleError("duration", "negative duration %.3f", b.Duration)
	}
	return nil
}

// scalars returns the six spectral statistics in bundleKeys order.
func (b *FeatureBundle) scalars() []float64 {
	return []float64{
		b.SpectralCentroidMean, b.SpectralCentroidStd,
		b.SpectralRolloffMean, b.SpectralRolloffStd,
		b.ZeroCrossingRateMean, b.ZeroCrossingRateStd,
	}
}

// Values flattens the bundle into a single slice in the canonical field
// order. The result is what the fingerprint hash is computed over.
func (b *FeatureBundle) Values() []float64 {
	out := make([]float64, 0, 2*MFCCSize+6+ChromaSize+ContrastSize+2)
	out = append(out, b.MFCCMean...)
	out = append(out, b.MFCCStd...)
	out = append(out, b.scalars()...)
	out = append(out, b.ChromaMean...)
	out = append(out, b.ContrastMean...)
	out = append(out, b.Tempo, b.Duration)
	return out
}

// Clone returns a deep copy.
func (b *FeatureBundle) Clone() *FeatureBundle {
	if b == nil {
		return nil
	}
	c := *b
	c.MFCCMean = append([]float64(nil), b.MFCCMean...)
	c.MFCCStd = append([]float64(nil), b.MFCCStd...)
	c.ChromaMean = append([]float64(nil), b.ChromaMean...)
	c.ContrastMean = append([]float64(nil), b.ContrastMean...)
	return &c
}

// DecodeFeatureBundle parses a persisted bundle. Unlike json.Unmarshal it
// rejects records with absent keys, so a missing scalar is reported
// instead of silently becoming zero.
func DecodeFeatureBundle(data []byte) (*FeatureBundle, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.NewInvalidBundleError("", "malformed JSON: %v", err)
	}
	for _, k := range bundleKeys {
		v, ok := raw[k]
		if !ok || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			return nil, errors.NewInvalidBundleError(k, "missing")
		}
	}

	var b FeatureBundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, errors.NewInvalidBundleError("", "decoding: %v", err)
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return &b, nil
}

// Encode is the inverse of DecodeFeatureBundle.
func (b *FeatureBundle) Encode() ([]byte, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("encoding feature bundle: %w", err)
	}
	return data, nil
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
