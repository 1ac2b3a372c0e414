// Package metrics provides the Prometheus metrics for extraction and
// recognition.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/himanishpuri/SonicMatch/pkg/models"
)

// Metrics contains all Prometheus metrics of the matching pipeline.
type Metrics struct {
	Extractions        *prometheus.CounterVec
	ExtractionDuration prometheus.Histogram
	CacheHits          prometheus.Counter
	Recognitions       *prometheus.CounterVec
	RecognitionLatency prometheus.Histogram
	BestSimilarity     prometheus.Histogram
	SkippedCandidates  prometheus.Counter
	SnapshotSize       prometheus.Gauge
	registry           *prometheus.Registry
}

// New creates the metrics and registers them with registry.
func New(registry *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}
	return m, nil
}

// Registry returns the registry the metrics were registered with.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) initMetrics() error {
	m.Extractions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sonicmatch_extractions_total",
		Help: "Total number of feature extractions by result",
	}, []string{"result"})

	m.ExtractionDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sonicmatch_extraction_duration_seconds",
		Help:    "Time spent decoding and extracting features from one file",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	})

	m.CacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sonicmatch_extraction_cache_hits_total",
		Help: "Extractions served from the persistent feature cache",
	})

	m.Recognitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sonicmatch_recognitions_total",
		Help: "Total number of recognition scans by outcome",
	}, []string{"outcome"})

	m.RecognitionLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sonicmatch_recognition_duration_seconds",
		Help:    "Time spent scanning the reference set",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
	})

	m.BestSimilarity = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sonicmatch_best_similarity",
		Help:    "Similarity of the best candidate per scan",
		Buckets: prometheus.LinearBuckets(0.05, 0.05, 20),
	})

	m.SkippedCandidates = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sonicmatch_skipped_candidates_total",
		Help: "Reference records skipped because their bundle was malformed",
	})

	m.SnapshotSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sonicmatch_reference_snapshot_size",
		Help: "Number of reference records in the current snapshot",
	})

	return nil
}

// ObserveExtraction records one extraction attempt.
func (m *Metrics) ObserveExtraction(err error, elapsed time.Duration) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Extractions.WithLabelValues(result).Inc()
	m.ExtractionDuration.Observe(elapsed.Seconds())
}

// IncrementCacheHits counts an extraction answered from cache.
func (m *Metrics) IncrementCacheHits() {
	m.CacheHits.Inc()
}

// ObserveScan records one recognition scan.
func (m *Metrics) ObserveScan(outcome models.Outcome, best float64, skipped int, elapsed time.Duration) {
	m.Recognitions.WithLabelValues(outcome.String()).Inc()
	m.RecognitionLatency.Observe(elapsed.Seconds())
	if outcome != models.OutcomeNoReferenceData {
		m.BestSimilarity.Observe(best)
	}
	m.SkippedCandidates.Add(float64(skipped))
}

// ObserveFailedRecognition counts a request that never reached the scan.
func (m *Metrics) ObserveFailedRecognition() {
	m.Recognitions.WithLabelValues(models.OutcomeExtractionFailed.String()).Inc()
}

// SetSnapshotSize updates the reference set gauge.
func (m *Metrics) SetSnapshotSize(n int) {
	m.SnapshotSize.Set(float64(n))
}

// Collect implements the prometheus.Collector interface.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.Extractions.Collect(ch)
	ch <- m.ExtractionDuration
	ch <- m.CacheHits
	m.Recognitions.Collect(ch)
	ch <- m.RecognitionLatency
	ch <- m.BestSimilarity
	ch <- m.SkippedCandidates
	ch <- m.SnapshotSize
}

// Describe implements the prometheus.Collector interface.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.Extractions.Describe(ch)
	m.ExtractionDuration.Describe(ch)
	m.CacheHits.Describe(ch)
	m.Recognitions.Describe(ch)
	m.RecognitionLatency.Describe(ch)
	m.BestSimilarity.Describe(ch)
	m.SkippedCandidates.Describe(ch)
	m.SnapshotSize.Describe(ch)
}
