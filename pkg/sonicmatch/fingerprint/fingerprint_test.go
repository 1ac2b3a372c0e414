package fingerprint

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/himanishpuri/SonicMatch/pkg/errors"
	"github.com/himanishpuri/SonicMatch/pkg/models"
)

func bundle() *models.FeatureBundle {
	b := &models.FeatureBundle{
		MFCCMean:     make([]float64, models.MFCCSize),
		MFCCStd:      make([]float64, models.MFCCSize),
		ChromaMean:   make([]float64, models.ChromaSize),
		ContrastMean: make([]float64, models.ContrastSize),
	}
	for i := range b.MFCCMean {
		b.MFCCMean[i] = float64(i) - 6.5
		b.MFCCStd[i] = float64(i) / 10
	}
	for i := range b.ChromaMean {
		b.ChromaMean[i] = float64(i%3) / 3
	}
	for i := range b.ContrastMean {
		b.ContrastMean[i] = 20 + float64(i)
	}
	b.SpectralCentroidMean, b.SpectralCentroidStd = 1500, 120
	b.SpectralRolloffMean, b.SpectralRolloffStd = 3000, 250
	b.ZeroCrossingRateMean, b.ZeroCrossingRateStd = 0.08, 0.01
	b.Tempo, b.Duration = 120, 30
	return b
}

func TestToBytesLayout(t *testing.T) {
	b := bundle()
	buf := ToBytes(b)
	require.Len(t, buf, 8*(2*models.MFCCSize+6+models.ChromaSize+models.ContrastSize+2))

	first := math.Float64frombits(binary.LittleEndian.Uint64(buf[:8]))
	assert.Equal(t, b.MFCCMean[0], first)

	last := math.Float64frombits(binary.LittleEndian.Uint64(buf[len(buf)-8:]))
	assert.Equal(t, b.Duration, last)

	tempo := math.Float64frombits(binary.LittleEndian.Uint64(buf[len(buf)-16:]))
	assert.Equal(t, b.Tempo, tempo)
}

func TestBuildIsDeterministic(t *testing.T) {
	a, err := Build(bundle())
	require.NoError(t, err)
	b, err := Build(bundle())
	require.NoError(t, err)

	assert.Equal(t, a.Hash, b.Hash)
	assert.Len(t, a.Hash, 64)
}

func TestBuildIsSensitiveToEveryField(t *testing.T) {
	base, err := Build(bundle())
	require.NoError(t, err)

	mutations := map[string]func(*models.FeatureBundle){
		"mfcc":     func(b *models.FeatureBundle) { b.MFCCMean[3] += 1e-9 },
		"centroid": func(b *models.FeatureBundle) { b.SpectralCentroidStd++ },
		"chroma":   func(b *models.FeatureBundle) { b.ChromaMean[11] = 0.5 },
		"tempo":    func(b *models.FeatureBundle) { b.Tempo = 121 },
		"duration": func(b *models.FeatureBundle) { b.Duration = 30.5 },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			b := bundle()
			mutate(b)
			fp, err := Build(b)
			require.NoError(t, err)
			assert.NotEqual(t, base.Hash, fp.Hash)
		})
	}
}

func TestBuildCopiesBundle(t *testing.T) {
	b := bundle()
	fp, err := Build(b)
	require.NoError(t, err)

	b.MFCCMean[0] = 99
	assert.NotEqual(t, 99.0, fp.Bundle.MFCCMean[0])
}

func TestBuildRejectsInvalidBundle(t *testing.T) {
	b := bundle()
	b.ChromaMean = b.ChromaMean[:5]
	_, err := Build(b)
	require.Error(t, err)
	assert.True(t, errors.IsInvalidBundle(err))

	_, err = Build(nil)
	assert.Error(t, err)
}

func TestFileDigest(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.bin")
	b := filepath.Join(dir, "b.bin")
	require.NoError(t, os.WriteFile(a, []byte("hello"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("hello!"), 0o644))

	da, err := FileDigest(a)
	require.NoError(t, err)
	db, err := FileDigest(b)
	require.NoError(t, err)

	assert.Len(t, da, 16)
	assert.NotEqual(t, da, db)

	again, err := FileDigest(a)
	require.NoError(t, err)
	assert.Equal(t, da, again)

	_, err = FileDigest(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}
