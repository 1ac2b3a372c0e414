package models

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/himanishpuri/SonicMatch/pkg/errors"
)

func sampleBundle() *FeatureBundle {
	seq := func(n int, start float64) []float64 {
		out := make([]float64, n)
		for i := range out {
			out[i] = start + float64(i)
		}
		return out
	}
	return &FeatureBundle{
		MFCCMean:             seq(MFCCSize, -200),
		MFCCStd:              seq(MFCCSize, 1),
		SpectralCentroidMean: 2100,
		SpectralCentroidStd:  340,
		SpectralRolloffMean:  4300,
		SpectralRolloffStd:   900,
		ZeroCrossingRateMean: 0.08,
		ZeroCrossingRateStd:  0.02,
		ChromaMean:           seq(ChromaSize, 0.1),
		ContrastMean:         seq(ContrastSize, 10),
		Tempo:                123.05,
		Duration:             187.4,
	}
}

func TestValidateAcceptsWellFormedBundle(t *testing.T) {
	assert.NoError(t, sampleBundle().Validate())
}

func TestValidateRejectsMalformedBundles(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(b *FeatureBundle)
		field  string
	}{
		{"short mfcc", func(b *FeatureBundle) { b.MFCCMean = b.MFCCMean[:12] }, "mfcc_mean"},
		{"missing contrast", func(b *FeatureBundle) { b.ContrastMean = nil }, "contrast_mean"},
		{"long chroma", func(b *FeatureBundle) { b.ChromaMean = append(b.ChromaMean, 1) }, "chroma_mean"},
		{"nan std", func(b *FeatureBundle) { b.MFCCStd[3] = math.NaN() }, "mfcc_std"},
		{"inf rolloff", func(b *FeatureBundle) { b.SpectralRolloffStd = math.Inf(1) }, "spectral_rolloff_std"},
		{"negative tempo", func(b *FeatureBundle) { b.Tempo = -1 }, "tempo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := sampleBundle()
			tt.mutate(b)
			err := b.Validate()
			require.Error(t, err)

			var ib *errors.InvalidBundleError
			require.ErrorAs(t, err, &ib)
			assert.Equal(t, tt.field, ib.Field)
		})
	}

	var nilBundle *FeatureBundle
	assert.Error(t, nilBundle.Validate())
}

func TestEncodeDecodeRoundTripKeepsFieldNames(t *testing.T) {
	data, err := sampleBundle().Encode()
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Len(t, raw, len(bundleKeys))
	for _, k := range bundleKeys {
		assert.Contains(t, raw, k)
	}

	decoded, err := DecodeFeatureBundle(data)
	require.NoError(t, err)
	assert.Equal(t, sampleBundle(), decoded)
}

func TestDecodeRejectsMissingScalar(t *testing.T) {
	data, err := sampleBundle().Encode()
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	delete(raw, "tempo")
	stripped, err := json.Marshal(raw)
	require.NoError(t, err)

	_, err = DecodeFeatureBundle(stripped)
	var ib *errors.InvalidBundleError
	require.ErrorAs(t, err, &ib)
	assert.Equal(t, "tempo", ib.Field)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := DecodeFeatureBundle([]byte("{not json"))
	assert.True(t, errors.IsInvalidBundle(err))
}

func TestValuesOrderAndClone(t *testing.T) {
	b := sampleBundle()
	vals := b.Values()
	require.Len(t, vals, 2*MFCCSize+6+ChromaSize+ContrastSize+2)
	assert.Equal(t, b.MFCCMean[0], vals[0])
	assert.Equal(t, b.SpectralCentroidMean, vals[2*MFCCSize])
	assert.Equal(t, b.Duration, vals[len(vals)-1])

	c := b.Clone()
	c.MFCCMean[0] = 42
	assert.NotEqual(t, c.MFCCMean[0], b.MFCCMean[0])
}

func TestOutcomeText(t *testing.T) {
	for o, name := range outcomeNames {
		text, err := o.MarshalText()
		require.NoError(t, err)
		assert.Equal(t, name, string(text))

		var back Outcome
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, o, back)
	}
	var o Outcome
	assert.Error(t, o.UnmarshalText([]byte("maybe")))
}
