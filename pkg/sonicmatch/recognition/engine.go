// Package recognition ranks reference tracks against a query bundle and
// decides whether the best one is a match.
package recognition

import (
	"math"
	"sort"
	"time"

	"github.com/himanishpuri/SonicMatch/pkg/errors"
	"github.com/himanishpuri/SonicMatch/pkg/models"
	"github.com/himanishpuri/SonicMatch/pkg/sonicmatch/similarity"
)

// DefaultThreshold is the minimum similarity for a positive match.
const DefaultThreshold = 0.85

// Reasons attached to negative results.
const (
	ReasonNoReferenceData = "no reference data available"
	ReasonBelowThreshold  = "no match found above threshold"
)

// Logger is the subset of the project logger the engine needs.
type Logger interface {
	Debugf(format string, args ...any)
	Warnf(format string, args ...any)
}

// Observer receives one call per completed scan.
type Observer interface {
	ObserveScan(outcome models.Outcome, best float64, skipped int, elapsed time.Duration)
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Warnf(string, ...any)  {}

// Engine scans reference records linearly. It holds no mutable state and
// is safe for concurrent use.
type Engine struct {
	scorer    *similarity.Scorer
	threshold float64
	log       Logger
	obs       Observer
}

// Option configures an Engine.
type Option func(*Engine)

// WithScorer replaces the default scorer.
func WithScorer(s *similarity.Scorer) Option {
	return func(e *Engine) { e.scorer = s }
}

// WithLogger sets where skipped candidates are reported.
func WithLogger(l Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithObserver attaches a metrics sink.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.obs = o }
}

// NewEngine returns an Engine with the given default threshold.
func NewEngine(threshold float64, opts ...Option) (*Engine, error) {
	if err := ValidateThreshold(threshold); err != nil {
		return nil, err
	}
	e := &Engine{scorer: similarity.Default(), threshold: threshold, log: nopLogger{}}
	for _, opt := range opts {
		opt(e)
	}
	if e.scorer == nil {
		e.scorer = similarity.Default()
	}
	if e.log == nil {
		e.log = nopLogger{}
	}
	return e, nil
}

// ValidateThreshold requires a threshold in [0, 1].
func ValidateThreshold(threshold float64) error {
	if math.IsNaN(threshold) || threshold < 0 || threshold > 1 {
		return errors.Wrap(errors.Errorf("got %v", threshold), errors.CategoryValidation, "threshold must be within [0, 1]")
	}
	return nil
}

// Threshold returns the engine's default threshold.
func (e *Engine) Threshold() float64 { return e.threshold }

// Scorer returns the scorer used for ranking.
func (e *Engine) Scorer() *similarity.Scorer { return e.scorer }

// Recognize scans refs with the engine's default threshold.
func (e *Engine) Recognize(query *models.FeatureBundle, refs []models.ReferenceRecord) (*models.RecognitionResult, error) {
	return e.RecognizeWithThreshold(query, refs, e.threshold)
}

// RecognizeWithThreshold scores query against every usable reference,
// ranks them, and decides against threshold.
//
// A malformed query fails the whole call with an InvalidBundleError.
// Malformed references are skipped, logged and counted in Skipped. With
// no usable reference the outcome is NoReferenceData, which is distinct
// from a scan that found nothing above threshold.
func (e *Engine) RecognizeWithThreshold(query *models.FeatureBundle, refs []models.ReferenceRecord, threshold float64) (*models.RecognitionResult, error) {
	start := time.Now()
	if err := ValidateThreshold(threshold); err != nil {
		return nil, err
	}
	if err := query.Validate(); err != nil {
		return nil, err
	}

	res := &models.RecognitionResult{
		Threshold:  threshold,
		Candidates: make([]models.Candidate, 0, len(refs)),
	}
	for _, ref := range refs {
		if err := ref.Bundle.Validate(); err != nil {
			e.log.Warnf("skipping reference %q: %v", ref.ID, err)
			res.Skipped++
			continue
		}
		res.Candidates = append(res.Candidates, models.Candidate{
			ID:         ref.ID,
			Title:      ref.Title,
			Artist:     ref.Artist,
			Similarity: e.scorer.Score(query, ref.Bundle),
		})
	}

	sort.SliceStable(res.Candidates, func(i, j int) bool {
		return res.Candidates[i].Similarity > res.Candidates[j].Similarity
	})

	best, ok := res.Best()
	switch {
	case !ok:
		res.Outcome = models.OutcomeNoReferenceData
		res.Reason = ReasonNoReferenceData
	case best.Similarity >= threshold:
		res.Outcome = models.OutcomeRecognized
		res.Recognized = true
		res.MatchedID = best.ID
		res.Confidence = best.Similarity
	default:
		res.Outcome = models.OutcomeNotRecognized
		res.Confidence = best.Similarity
		res.Reason = ReasonBelowThreshold
	}

	e.log.Debugf("scanned %d references (%d skipped): %s, best=%.4f threshold=%.2f",
		len(res.Candidates), res.Skipped, res.Outcome, res.Confidence, threshold)
	if e.obs != nil {
		e.obs.ObserveScan(res.Outcome, res.Confidence, res.Skipped, time.Since(start))
	}
	return res, nil
}

// Top returns the n best candidates of a result, or all of them when n
// is not positive.
func Top(res *models.RecognitionResult, n int) []models.Candidate {
	if res == nil {
		return nil
	}
	if n <= 0 || n > len(res.Candidates) {
		n = len(res.Candidates)
	}
	return append([]models.Candidate(nil), res.Candidates[:n]...)
}
