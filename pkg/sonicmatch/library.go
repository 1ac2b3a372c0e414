package sonicmatch

import (
	"context"

	"github.com/himanishpuri/SonicMatch/pkg/models"
	"github.com/himanishpuri/SonicMatch/pkg/sonicmatch/features"
	"github.com/himanishpuri/SonicMatch/pkg/sonicmatch/fingerprint"
	"github.com/himanishpuri/SonicMatch/pkg/sonicmatch/recognition"
	"github.com/himanishpuri/SonicMatch/pkg/sonicmatch/similarity"
)

// The functions in this file need no database. They use the canonical
// analysis parameters and weights.

// ExtractFeatures decodes the file at path and returns its feature bundle.
// Callers extracting many files should hold a features.Extractor instead.
func ExtractFeatures(ctx context.Context, path string) (*models.FeatureBundle, error) {
	e, err := features.NewExtractor(features.DefaultConfig())
	if err != nil {
		return nil, err
	}
	return e.ExtractFile(ctx, path)
}

// BuildFingerprint returns the identity hash of a bundle.
func BuildFingerprint(b *models.FeatureBundle) (models.Fingerprint, error) {
	return fingerprint.Build(b)
}

// ScoreSimilarity returns the weighted similarity of two bundles in
// [0, 1]. Malformed bundles are reported as errors rather than scored 0.
func ScoreSimilarity(a, b *models.FeatureBundle) (float64, error) {
	if err := a.Validate(); err != nil {
		return 0, err
	}
	if err := b.Validate(); err != nil {
		return 0, err
	}
	return similarity.Default().Score(a, b), nil
}

// Recognize ranks refs against query and decides against threshold.
func Recognize(query *models.FeatureBundle, refs []models.ReferenceRecord, threshold float64) (*models.RecognitionResult, error) {
	e, err := recognition.NewEngine(threshold)
	if err != nil {
		return nil, err
	}
	return e.Recognize(query, refs)
}
