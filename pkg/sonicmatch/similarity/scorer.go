// Package similarity scores how alike two feature bundles sound.
package similarity

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/himanishpuri/SonicMatch/pkg/errors"
	"github.com/himanishpuri/SonicMatch/pkg/models"
)

// Floors for the relative tempo and centroid tolerances.
const (
	minTempoTolerance    = 10.0   // BPM
	tempoToleranceRatio  = 0.1    // of the faster tempo
	minCentroidTolerance = 1000.0 // Hz
)

// Weights are the per-term contributions to the total score.
type Weights struct {
	MFCC     float64 `json:"mfcc" mapstructure:"mfcc"`
	Chroma   float64 `json:"chroma" mapstructure:"chroma"`
	Contrast float64 `json:"contrast" mapstructure:"contrast"`
	Tempo    float64 `json:"tempo" mapstructure:"tempo"`
	Spectral float64 `json:"spectral" mapstructure:"spectral"`
}

// DefaultWeights is the canonical weighting: timbre first, then harmony,
// texture, rhythm and brightness.
func DefaultWeights() Weights {
	return Weights{MFCC: 0.35, Chroma: 0.25, Contrast: 0.20, Tempo: 0.10, Spectral: 0.10}
}

// Validate requires non-negative weights summing to 1.
func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"mfcc": w.MFCC, "chroma": w.Chroma, "contrast": w.Contrast, "tempo": w.Tempo, "spectral": w.Spectral,
	} {
		if v < 0 || math.IsNaN(v) {
			return errors.Wrap(fmt.Errorf("%s=%v", name, v), errors.CategoryConfiguration, "negative similarity weight")
		}
	}
	if sum := w.sum(); math.Abs(sum-1) > 1e-9 {
		return errors.Wrap(fmt.Errorf("sum=%v", sum), errors.CategoryConfiguration, "similarity weights must sum to 1")
	}
	return nil
}

func (w Weights) sum() float64 {
	return w.MFCC + w.Chroma + w.Contrast + w.Tempo + w.Spectral
}

// Breakdown is a score with its per-term similarities.
type Breakdown struct {
	MFCC     float64 `json:"mfcc"`
	Chroma   float64 `json:"chroma"`
	Contrast float64 `json:"contrast"`
	Tempo    float64 `json:"tempo"`
	Spectral float64 `json:"spectral"`
	Total    float64 `json:"total"`
}

// Scorer compares bundles. The zero value is not usable; use New or
// Default. A Scorer is immutable and safe for concurrent use.
type Scorer struct {
	w Weights
}

// New returns a Scorer with the given weights.
func New(w Weights) (*Scorer, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return &Scorer{w: w}, nil
}

// Default returns a Scorer with DefaultWeights.
func Default() *Scorer {
	return &Scorer{w: DefaultWeights()}
}

// Weights returns the scorer's weights.
func (s *Scorer) Weights() Weights { return s.w }

// Score returns the similarity of a and b in [0, 1]. It is symmetric, and
// a valid bundle scores 1 against itself. A nil or malformed bundle
// scores 0.
func (s *Scorer) Score(a, b *models.FeatureBundle) float64 {
	return s.Explain(a, b).Total
}

// Explain is Score with the per-term breakdown. A bundle with an
// all-zero MFCC, chroma or contrast vector is degenerate and scores 0 on
// every term.
func (s *Scorer) Explain(a, b *models.FeatureBundle) Breakdown {
	if !scorable(a) || !scorable(b) {
		return Breakdown{}
	}

	d := Breakdown{
		MFCC:     Cosine(a.MFCCMean, b.MFCCMean),
		Chroma:   Cosine(a.ChromaMean, b.ChromaMean),
		Contrast: Cosine(a.ContrastMean, b.ContrastMean),
		Tempo:    TempoSimilarity(a.Tempo, b.Tempo),
		Spectral: CentroidSimilarity(a.SpectralCentroidMean, b.SpectralCentroidMean),
	}
	total := s.w.MFCC*d.MFCC +
		s.w.Chroma*d.Chroma +
		s.w.Contrast*d.Contrast +
		s.w.Tempo*d.Tempo +
		s.w.Spectral*d.Spectral
	// normalising by the weight sum keeps identical bundles at exactly 1
	d.Total = clamp01(total / s.w.sum())
	return d
}

func scorable(b *models.FeatureBundle) bool {
	if b == nil || b.Validate() != nil {
		return false
	}
	for _, v := range [][]float64{b.MFCCMean, b.ChromaMean, b.ContrastMean} {
		if floats.Norm(v, 2) == 0 {
			return false
		}
	}
	return true
}

// Cosine returns the cosine similarity of a and b, or 0 when either has
// zero norm or their lengths differ. Anti-correlated vectors score
// negative.
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	na, nb := floats.Norm(a, 2), floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	if floats.Equal(a, b) {
		return 1
	}
	c := floats.Dot(a, b) / (na * nb)
	if math.IsNaN(c) {
		return 0
	}
	return math.Max(-1, math.Min(1, c))
}

// TempoSimilarity falls linearly to 0 once the BPM gap reaches 10% of the
// faster tempo, with a floor of 10 BPM on that tolerance.
func TempoSimilarity(a, b float64) float64 {
	tol := math.Max(tempoToleranceRatio*math.Max(a, b), minTempoTolerance)
	return math.Max(0, 1-math.Abs(a-b)/tol)
}

// CentroidSimilarity falls linearly to 0 once the centroid gap reaches
// the larger centroid, with a floor of 1 kHz.
func CentroidSimilarity(a, b float64) float64 {
	tol := math.Max(math.Max(a, b), minCentroidTolerance)
	return math.Max(0, 1-math.Abs(a-b)/tol)
}

func clamp01(x float64) float64 {
	if math.IsNaN(x) {
		return 0
	}
	return math.Max(0, math.Min(1, x))
}
