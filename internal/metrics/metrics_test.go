package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/himanishpuri/SonicMatch/pkg/models"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.ObserveExtraction(nil, 200*time.Millisecond)
	m.ObserveExtraction(errors.New("boom"), time.Millisecond)
	m.IncrementCacheHits()
	m.ObserveScan(models.OutcomeRecognized, 0.93, 2, time.Millisecond)
	m.ObserveScan(models.OutcomeNoReferenceData, 0, 0, time.Millisecond)
	m.ObserveFailedRecognition()
	m.SetSnapshotSize(42)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Extractions.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Extractions.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHits))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Recognitions.WithLabelValues("recognized")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Recognitions.WithLabelValues("extraction_failed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SkippedCandidates))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.SnapshotSize))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "sonicmatch_recognitions_total")
	assert.Contains(t, names, "sonicmatch_best_similarity")
}

func TestDoubleRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)
	_, err = New(reg)
	assert.Error(t, err)
}
