package recognition

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/himanishpuri/SonicMatch/internal/testutil"
	"github.com/himanishpuri/SonicMatch/pkg/errors"
	"github.com/himanishpuri/SonicMatch/pkg/models"
	"github.com/himanishpuri/SonicMatch/pkg/sonicmatch/similarity"
)

type recordingLogger struct {
	mu    sync.Mutex
	warns []string
}

func (l *recordingLogger) Debugf(string, ...any) {}
func (l *recordingLogger) Warnf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, fmt.Sprintf(format, args...))
}

type recordingObserver struct {
	outcome models.Outcome
	best    float64
	skipped int
	calls   int
}

func (o *recordingObserver) ObserveScan(outcome models.Outcome, best float64, skipped int, _ time.Duration) {
	o.outcome, o.best, o.skipped = outcome, best, skipped
	o.calls++
}

func refs(n int) []models.ReferenceRecord {
	out := make([]models.ReferenceRecord, n)
	for i := range out {
		out[i] = models.ReferenceRecord{
			ID:     fmt.Sprintf("ref-%d", i),
			Title:  fmt.Sprintf("Track %d", i),
			Artist: "Various",
			Bundle: testutil.Bundle(int64(1000 + i)),
		}
	}
	return out
}

func newEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	e, err := NewEngine(DefaultThreshold, opts...)
	require.NoError(t, err)
	return e
}

func TestIdenticalQueryIsRecognized(t *testing.T) {
	library := refs(5)
	query := library[3].Bundle.Clone()

	res, err := newEngine(t).Recognize(query, library)
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeRecognized, res.Outcome)
	assert.True(t, res.Recognized)
	assert.Equal(t, "ref-3", res.MatchedID)
	assert.Equal(t, 1.0, res.Confidence)
	assert.Equal(t, DefaultThreshold, res.Threshold)
	assert.Len(t, res.Candidates, 5)
	assert.Equal(t, res.MatchedID, res.Candidates[0].ID)
}

func TestZeroMFCCQueryIsNotRecognized(t *testing.T) {
	library := refs(4)
	query := library[0].Bundle.Clone()
	query.MFCCMean = make([]float64, models.MFCCSize)

	res, err := newEngine(t).Recognize(query, library)
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeNotRecognized, res.Outcome)
	assert.False(t, res.Recognized)
	assert.Empty(t, res.MatchedID)
	for _, c := range res.Candidates {
		assert.Zero(t, c.Similarity)
	}
}

func TestRankingWithNearMiss(t *testing.T) {
	// tempo-only scoring makes similarities exact: 1 - |Δ|/10 below 100 BPM
	scorer, err := similarity.New(similarity.Weights{Tempo: 1})
	require.NoError(t, err)

	query := testutil.Bundle(1)
	query.Tempo = 100

	library := refs(10)
	tempos := []float64{80, 96, 85, 99, 70, 90, 60, 92, 75, 50}
	for i := range library {
		library[i].Bundle.Tempo = tempos[i]
	}

	res, err := newEngine(t, WithScorer(scorer)).Recognize(query, library)
	require.NoError(t, err)

	require.Len(t, res.Candidates, 10)
	assert.True(t, res.Recognized)
	assert.Equal(t, "ref-3", res.MatchedID)
	assert.InDelta(t, 0.90, res.Candidates[0].Similarity, 1e-12)
	assert.InDelta(t, 0.60, res.Candidates[1].Similarity, 1e-12)
	assert.Equal(t, "ref-1", res.Candidates[1].ID)
	for i := 1; i < len(res.Candidates); i++ {
		assert.GreaterOrEqual(t, res.Candidates[i-1].Similarity, res.Candidates[i].Similarity)
	}
}

func TestNearMissStaysVisible(t *testing.T) {
	scorer, err := similarity.New(similarity.Weights{Tempo: 1})
	require.NoError(t, err)

	query := testutil.Bundle(1)
	query.Tempo = 100
	library := refs(2)
	library[0].Bundle.Tempo = 98 // 0.8
	library[1].Bundle.Tempo = 50

	res, err := newEngine(t, WithScorer(scorer)).Recognize(query, library)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeNotRecognized, res.Outcome)
	assert.Equal(t, ReasonBelowThreshold, res.Reason)
	assert.InDelta(t, 0.8, res.Confidence, 1e-12)
	assert.Equal(t, "ref-0", res.Candidates[0].ID)
}

func TestMalformedCandidateIsSkipped(t *testing.T) {
	log := &recordingLogger{}
	obs := &recordingObserver{}
	library := refs(4)
	library[1].Bundle.ContrastMean = nil
	library[2].Bundle = nil

	res, err := newEngine(t, WithLogger(log), WithObserver(obs)).Recognize(library[0].Bundle.Clone(), library)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Skipped)
	require.Len(t, res.Candidates, 2)
	for _, c := range res.Candidates {
		assert.NotEqual(t, "ref-1", c.ID)
		assert.NotEqual(t, "ref-2", c.ID)
	}
	require.Len(t, log.warns, 2)
	assert.Contains(t, log.warns[0], "ref-1")
	assert.Contains(t, log.warns[0], "contrast_mean")

	assert.Equal(t, 1, obs.calls)
	assert.Equal(t, 2, obs.skipped)
	assert.Equal(t, models.OutcomeRecognized, obs.outcome)
}

func TestEmptyCorpus(t *testing.T) {
	for name, library := range map[string][]models.ReferenceRecord{
		"nil":         nil,
		"all invalid": {{ID: "broken"}},
	} {
		t.Run(name, func(t *testing.T) {
			res, err := newEngine(t).Recognize(testutil.Bundle(1), library)
			require.NoError(t, err)
			assert.Equal(t, models.OutcomeNoReferenceData, res.Outcome)
			assert.False(t, res.Recognized)
			assert.Zero(t, res.Confidence)
			assert.Equal(t, ReasonNoReferenceData, res.Reason)
			assert.NotNil(t, res.Candidates)
		})
	}
}

func TestInvalidQueryFails(t *testing.T) {
	q := testutil.Bundle(1)
	q.MFCCStd = q.MFCCStd[:3]

	res, err := newEngine(t).Recognize(q, refs(3))
	assert.Nil(t, res)
	require.Error(t, err)
	assert.True(t, errors.IsInvalidBundle(err))

	_, err = newEngine(t).Recognize(nil, refs(3))
	assert.True(t, errors.IsInvalidBundle(err))
}

func TestThresholdMonotonicity(t *testing.T) {
	library := refs(6)
	query := library[2].Bundle.Clone()
	query.Tempo += 3
	query.SpectralCentroidMean += 200

	e := newEngine(t)
	wasRecognized := true
	for th := 0.0; th <= 1.0; th += 0.05 {
		res, err := e.RecognizeWithThreshold(query, library, th)
		require.NoError(t, err)
		if !wasRecognized {
			assert.False(t, res.Recognized, "threshold %.2f flipped back to recognized", th)
		}
		wasRecognized = res.Recognized
	}
}

func TestThresholdValidation(t *testing.T) {
	_, err := NewEngine(1.5)
	assert.Error(t, err)
	_, err = NewEngine(-0.1)
	assert.Error(t, err)

	_, err = newEngine(t).RecognizeWithThreshold(testutil.Bundle(1), refs(1), 2)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func TestStableTieOrder(t *testing.T) {
	library := refs(3)
	shared := testutil.Bundle(99)
	for i := range library {
		library[i].Bundle = shared.Clone()
	}

	res, err := newEngine(t).Recognize(shared, library)
	require.NoError(t, err)
	assert.Equal(t, []string{"ref-0", "ref-1", "ref-2"}, []string{res.Candidates[0].ID, res.Candidates[1].ID, res.Candidates[2].ID})
}

func TestTop(t *testing.T) {
	res, err := newEngine(t).Recognize(testutil.Bundle(1), refs(5))
	require.NoError(t, err)

	assert.Len(t, Top(res, 2), 2)
	assert.Len(t, Top(res, 0), 5)
	assert.Len(t, Top(res, 50), 5)
	assert.Nil(t, Top(nil, 3))
}
