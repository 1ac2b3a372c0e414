package testutil

import (
	"math/rand"

	"github.com/himanishpuri/SonicMatch/pkg/models"
)

// Bundle returns a valid pseudo-random feature bundle. Equal seeds give
// equal bundles.
func Bundle(seed int64) *models.FeatureBundle {
	rng := rand.New(rand.NewSource(seed))
	vec := func(n int, lo, hi float64) []float64 {
		v := make([]float64, n)
		for i := range v {
			v[i] = lo + rng.Float64()*(hi-lo)
		}
		return v
	}
	return &models.FeatureBundle{
		MFCCMean:             vec(models.MFCCSize, -50, 50),
		MFCCStd:              vec(models.MFCCSize, 1, 20),
		SpectralCentroidMean: 500 + rng.Float64()*3000,
		SpectralCentroidStd:  50 + rng.Float64()*300,
		SpectralRolloffMean:  1000 + rng.Float64()*6000,
		SpectralRolloffStd:   100 + rng.Float64()*500,
		ZeroCrossingRateMean: rng.Float64() * 0.2,
		ZeroCrossingRateStd:  rng.Float64() * 0.05,
		ChromaMean:           vec(models.ChromaSize, 0, 1),
		ContrastMean:         vec(models.ContrastSize, 5, 40),
		Tempo:                60 + rng.Float64()*120,
		Duration:             10 + rng.Float64()*200,
	}
}
