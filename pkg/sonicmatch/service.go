package sonicmatch

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/himanishpuri/SonicMatch/internal/cache"
	"github.com/himanishpuri/SonicMatch/internal/metrics"
	"github.com/himanishpuri/SonicMatch/internal/worker"
	"github.com/himanishpuri/SonicMatch/pkg/errors"
	"github.com/himanishpuri/SonicMatch/pkg/logger"
	"github.com/himanishpuri/SonicMatch/pkg/models"
	"github.com/himanishpuri/SonicMatch/pkg/sonicmatch/audio"
	"github.com/himanishpuri/SonicMatch/pkg/sonicmatch/features"
	"github.com/himanishpuri/SonicMatch/pkg/sonicmatch/fingerprint"
	"github.com/himanishpuri/SonicMatch/pkg/sonicmatch/recognition"
	"github.com/himanishpuri/SonicMatch/pkg/sonicmatch/similarity"
	"github.com/himanishpuri/SonicMatch/pkg/utils"
)

// sonicService is the default implementation of the Service interface.
type sonicService struct {
	storage Storage
	log     Logger
	config  *Config

	extractor *features.Extractor
	scorer    *similarity.Scorer
	engine    *recognition.Engine
	ranker    *recognition.Engine // engine without observer, for SimilarTracks
	snapshot  *recognition.Snapshot
	pool      *worker.Pool
	bundles   *cache.Bundles
	store     *cache.Store     // nil when CacheDir is empty or unusable
	metrics   *metrics.Metrics // nil without WithMetrics

	// Each reload takes a generation before reading the store. A reload
	// only publishes when no later generation has published yet.
	reloadSeq atomic.Uint64
	reloadMu  sync.Mutex
	published uint64
}

func NewService(opts ...Option) (Service, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger()
	}

	scorer, err := similarity.New(cfg.Weights)
	if err != nil {
		return nil, err
	}
	if err := recognition.ValidateThreshold(cfg.Threshold); err != nil {
		return nil, err
	}

	extractor := cfg.Extractor
	if extractor == nil {
		xcfg := features.DefaultConfig()
		xcfg.TempDir = cfg.TempDir
		if extractor, err = features.NewExtractor(xcfg); err != nil {
			return nil, err
		}
	}

	var m *metrics.Metrics
	engineOpts := []recognition.Option{
		recognition.WithScorer(scorer),
		recognition.WithLogger(cfg.Logger),
	}
	if cfg.Registry != nil {
		if m, err = metrics.New(cfg.Registry); err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
		engineOpts = append(engineOpts, recognition.WithObserver(m))
	}
	engine, err := recognition.NewEngine(cfg.Threshold, engineOpts...)
	if err != nil {
		return nil, err
	}

	ranker, err := recognition.NewEngine(cfg.Threshold, engineOpts[:2]...)
	if err != nil {
		return nil, err
	}

	stor := cfg.Storage
	if stor == nil {
		stor, err = NewSQLiteStorage(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage: %w", err)
		}
	}

	var store *cache.Store
	if cfg.CacheDir != "" {
		store, err = cache.OpenStore(cfg.CacheDir)
		if err != nil {
			cfg.Logger.Warnf("Extraction cache disabled: %v", err)
			store = nil
		}
	}

	s := &sonicService{
		storage:   stor,
		log:       cfg.Logger,
		config:    cfg,
		extractor: extractor,
		scorer:    scorer,
		engine:    engine,
		ranker:    ranker,
		snapshot:  recognition.NewSnapshot(nil),
		pool:      worker.New(cfg.Workers),
		bundles:   cache.NewBundles(cfg.CacheTTL),
		store:     store,
		metrics:   m,
	}

	if n, err := stor.ResetStuckTracks(); err != nil {
		s.log.Warnf("Failed to reset stuck tracks: %v", err)
	} else if n > 0 {
		s.log.Infof("Reset %d tracks left in processing", n)
	}
	if _, err := s.ReloadReferences(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// process returns the bundle and analysis of the file at path, from the
// extraction cache when the same bytes were analysed before with the same
// parameters. With pooled set the DSP work runs on the worker pool.
func (s *sonicService) process(ctx context.Context, path string, pooled bool) (*features.Extraction, error) {
	digest, derr := fingerprint.FileDigest(path)
	key := digest + "/" + s.extractor.Config().Key()
	if derr == nil && s.store != nil {
		entry, ok, err := s.store.Get(key)
		if err != nil {
			s.log.Warnf("Extraction cache read failed: %v", err)
		} else if ok {
			s.log.Debugf("Extraction cache hit for %s (%s)", filepath.Base(path), digest)
			if s.metrics != nil {
				s.metrics.IncrementCacheHits()
			}
			return &features.Extraction{Bundle: entry.Bundle, Analysis: entry.Analysis}, nil
		}
	}

	start := time.Now()
	var x *features.Extraction
	run := func() error {
		out, err := s.extractor.Process(ctx, path)
		if err != nil {
			return err
		}
		x = out
		return nil
	}
	var err error
	if pooled {
		err = s.pool.Do(ctx, run)
	} else {
		err = run()
	}
	if s.metrics != nil {
		s.metrics.ObserveExtraction(err, time.Since(start))
	}
	if err != nil {
		return nil, err
	}
	s.log.Debugf("Extracted %s in %v (tempo %.1f BPM)", filepath.Base(path), time.Since(start), x.Bundle.Tempo)

	if derr == nil && s.store != nil {
		if err := s.store.Put(key, &cache.Entry{Bundle: x.Bundle, Analysis: x.Analysis}); err != nil {
			s.log.Warnf("Extraction cache write failed: %v", err)
		}
	}
	return x, nil
}

func (s *sonicService) ExtractFeatures(ctx context.Context, audioPath string) (*models.FeatureBundle, error) {
	x, err := s.process(ctx, audioPath, true)
	if err != nil {
		return nil, err
	}
	return x.Bundle.Clone(), nil
}

func (s *sonicService) BuildFingerprint(bundle *models.FeatureBundle) (models.Fingerprint, error) {
	return fingerprint.Build(bundle)
}

// ScoreSimilarity scores two bundles with the configured weights.
func (s *sonicService) ScoreSimilarity(a, b *models.FeatureBundle) (float64, error) {
	if err := a.Validate(); err != nil {
		return 0, err
	}
	if err := b.Validate(); err != nil {
		return 0, err
	}
	return s.scorer.Score(a, b), nil
}

func (s *sonicService) Recognize(query *models.FeatureBundle, refs []models.ReferenceRecord, threshold float64) (*models.RecognitionResult, error) {
	return s.engine.RecognizeWithThreshold(query, refs, threshold)
}

// AddTrack registers the file at audioPath and fingerprints it. Missing
// title and artist come from tags, ffprobe or the file name; missing
// genre and mood from file name keywords.
func (s *sonicService) AddTrack(ctx context.Context, audioPath string, in models.TrackInput) (*models.Track, error) {
	in.Title, in.Artist = audio.ResolveTitleArtist(ctx, audioPath, in.Title, in.Artist)
	if in.Genre == "" {
		in.Genre = audio.GuessGenre(audioPath)
	}
	if in.Mood == "" {
		in.Mood = audio.GuessMood(audioPath)
	}
	s.log.Infof("Processing track: %s by %s", in.Title, in.Artist)

	trackID, err := s.storage.RegisterTrack(in, audioPath, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to register track: %w", err)
	}

	track, err := s.fingerprint(ctx, trackID, audioPath, true)
	if err != nil {
		return nil, err
	}
	if track.IsReference {
		if _, err := s.ReloadReferences(); err != nil {
			s.log.Warnf("Reference reload failed: %v", err)
		}
	}
	s.log.Infof("Successfully added track ID=%s", trackID)
	return track, nil
}

// AddYouTubeTrack downloads the audio of a video and adds it as a track.
// Title and artist default to the video metadata.
func (s *sonicService) AddYouTubeTrack(ctx context.Context, youtubeURL string, in models.TrackInput) (*models.Track, error) {
	if !utils.IsYouTubeURL(youtubeURL) {
		return nil, errors.Wrap(fmt.Errorf("%q", youtubeURL), errors.CategoryValidation, "not a YouTube URL")
	}
	s.log.Infof("Downloading audio from %s", youtubeURL)

	wavPath, meta, err := audio.DownloadYouTubeAudio(ctx, youtubeURL, s.config.TempDir)
	if err != nil {
		return nil, fmt.Errorf("youtube download failed: %w", err)
	}
	if in.Title == "" {
		in.Title = meta.Title
	}
	if in.Artist == "" {
		in.Artist = meta.Artist
	}
	in.YouTubeID = videoID(meta, youtubeURL)
	return s.AddTrack(ctx, wavPath, in)
}

// videoID prefers the id yt-dlp reported and falls back to parsing the
// URL.
func videoID(meta *audio.VideoInfo, youtubeURL string) string {
	if meta != nil && meta.ID != "" {
		return meta.ID
	}
	id, err := utils.ExtractYouTubeID(youtubeURL)
	if err != nil {
		return ""
	}
	return id
}

// FingerprintTrack re-extracts a stored track from its file path.
func (s *sonicService) FingerprintTrack(ctx context.Context, trackID string) (*models.Track, error) {
	track, err := s.storage.GetTrackByID(trackID)
	if err != nil {
		return nil, err
	}
	if track.FilePath == "" {
		return nil, errors.Wrap(errors.Errorf("track %s", trackID), errors.CategoryValidation, "track has no source file")
	}

	track, err = s.fingerprint(ctx, trackID, track.FilePath, true)
	if err != nil {
		return nil, err
	}
	if track.IsReference {
		if _, err := s.ReloadReferences(); err != nil {
			s.log.Warnf("Reference reload failed: %v", err)
		}
	}
	return track, nil
}

// fingerprint runs extraction for a registered track and records the
// outcome on it.
func (s *sonicService) fingerprint(ctx context.Context, trackID, path string, pooled bool) (*models.Track, error) {
	if err := s.storage.SetTrackProcessing(trackID); err != nil {
		return nil, err
	}

	x, err := s.process(ctx, path, pooled)
	if err != nil {
		s.log.Errorf("Extraction failed for track %s: %v", trackID, err)
		if serr := s.storage.SetTrackError(trackID, err); serr != nil {
			s.log.Warnf("Failed to record error on track %s: %v", trackID, serr)
		}
		return nil, err
	}

	fp, err := fingerprint.Build(x.Bundle)
	if err != nil {
		_ = s.storage.SetTrackError(trackID, err)
		return nil, err
	}
	if dup, err := s.storage.GetTrackByHash(fp.Hash); err == nil && dup.ID != trackID {
		s.log.Warnf("Track %s has the same fingerprint as %s (%s - %s)", trackID, dup.ID, dup.Artist, dup.Title)
	}

	if err := s.storage.StoreFingerprint(trackID, fp, x.Analysis); err != nil {
		return nil, fmt.Errorf("failed to store fingerprint: %w", err)
	}
	s.bundles.Set(trackID, x.Bundle)
	return s.storage.GetTrackByID(trackID)
}

// BatchFingerprint fingerprints the given tracks on the worker pool. A
// failing track does not stop the others. The reference snapshot is
// reloaded once at the end.
func (s *sonicService) BatchFingerprint(ctx context.Context, trackIDs []string) (*BatchResult, error) {
	tracks := make([]*models.Track, len(trackIDs))
	errs := s.pool.Each(ctx, len(trackIDs), func(ctx context.Context, i int) error {
		track, err := s.storage.GetTrackByID(trackIDs[i])
		if err != nil {
			return err
		}
		if track.FilePath == "" {
			return errors.Wrap(errors.Errorf("track %s", track.ID), errors.CategoryValidation, "track has no source file")
		}
		tracks[i], err = s.fingerprint(ctx, track.ID, track.FilePath, false)
		return err
	})

	res := &BatchResult{Succeeded: []models.Track{}, Failed: []BatchFailure{}}
	for i, err := range errs {
		if err != nil {
			res.Failed = append(res.Failed, BatchFailure{TrackID: trackIDs[i], Error: err.Error()})
			continue
		}
		res.Succeeded = append(res.Succeeded, *tracks[i])
	}
	s.log.Infof("Batch fingerprint: %d succeeded, %d failed", len(res.Succeeded), len(res.Failed))

	if len(res.Succeeded) > 0 {
		if _, err := s.ReloadReferences(); err != nil {
			return res, err
		}
	}
	return res, ctx.Err()
}

// RecognizeFile extracts the query file, scans the reference snapshot and
// logs the request. When extraction fails the result carries the
// ExtractionFailed outcome and the error is returned with it.
func (s *sonicService) RecognizeFile(ctx context.Context, audioPath string) (*models.RecognitionResult, error) {
	start := time.Now()
	s.log.Infof("Recognizing audio: %s", audioPath)

	x, err := s.process(ctx, audioPath, true)
	if err != nil {
		if s.metrics != nil {
			s.metrics.ObserveFailedRecognition()
		}
		res := &models.RecognitionResult{
			Outcome:    models.OutcomeExtractionFailed,
			Candidates: []models.Candidate{},
			Threshold:  s.engine.Threshold(),
			Reason:     err.Error(),
		}
		s.logRecognition(filepath.Base(audioPath), res, err, time.Since(start))
		return res, err
	}

	res, err := s.engine.Recognize(x.Bundle, s.snapshot.Load())
	if err != nil {
		return nil, err
	}
	s.logRecognition(filepath.Base(audioPath), res, nil, time.Since(start))
	return res, nil
}

// RecognizeBundle scans the reference snapshot with an already extracted
// bundle.
func (s *sonicService) RecognizeBundle(ctx context.Context, query *models.FeatureBundle) (*models.RecognitionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	res, err := s.engine.Recognize(query, s.snapshot.Load())
	if err != nil {
		return nil, err
	}
	s.logRecognition("bundle", res, nil, time.Since(start))
	return res, nil
}

func (s *sonicService) logRecognition(source string, res *models.RecognitionResult, cause error, elapsed time.Duration) {
	rec := &models.Recognition{
		Source:         source,
		Confidence:     res.Confidence,
		BestSimilarity: res.Confidence,
		Threshold:      res.Threshold,
		ProcessingTime: elapsed.Seconds(),
		Result:         res,
	}
	switch res.Outcome {
	case models.OutcomeRecognized:
		rec.Status = models.RecognitionFound
		rec.MatchedTrackID = res.MatchedID
	case models.OutcomeNotRecognized:
		rec.Status = models.RecognitionNotFound
	case models.OutcomeNoReferenceData:
		rec.Status = models.RecognitionNoReferenceData
	default:
		rec.Status = models.RecognitionError
	}
	if cause != nil {
		rec.Error = cause.Error()
	}
	if err := s.storage.SaveRecognition(rec); err != nil {
		s.log.Warnf("Failed to log recognition: %v", err)
	}
	s.log.Infof("Recognition of %s: %s (confidence %.4f, %d candidates, %d skipped)",
		source, res.Outcome, res.Confidence, len(res.Candidates), res.Skipped)
}

// bundle returns the features of a stored track, through the TTL cache.
func (s *sonicService) bundle(trackID string) (*models.Track, *models.FeatureBundle, error) {
	track, err := s.storage.GetTrackByID(trackID)
	if err != nil {
		return nil, nil, err
	}
	if b, ok := s.bundles.Get(trackID); ok {
		return track, b, nil
	}
	if track.Features == nil {
		return nil, nil, errors.Wrap(errors.Errorf("track %s is %s", trackID, track.FingerprintStatus), errors.CategoryValidation, "track has no features")
	}
	s.bundles.Set(trackID, track.Features)
	return track, track.Features, nil
}

// CompareTracks explains the similarity between two stored tracks.
func (s *sonicService) CompareTracks(idA, idB string) (*similarity.Breakdown, error) {
	_, a, err := s.bundle(idA)
	if err != nil {
		return nil, err
	}
	_, b, err := s.bundle(idB)
	if err != nil {
		return nil, err
	}
	bd := s.scorer.Explain(a, b)
	return &bd, nil
}

// SimilarTracks ranks the reference snapshot against a stored track and
// returns the n closest other tracks.
func (s *sonicService) SimilarTracks(trackID string, n int) ([]models.Candidate, error) {
	_, b, err := s.bundle(trackID)
	if err != nil {
		return nil, err
	}

	refs := s.snapshot.Load()
	others := make([]models.ReferenceRecord, 0, len(refs))
	for _, r := range refs {
		if r.ID != trackID {
			others = append(others, r)
		}
	}
	res, err := s.ranker.Recognize(b, others)
	if err != nil {
		return nil, err
	}
	return recognition.Top(res, n), nil
}

func (s *sonicService) GetTrack(trackID string) (*models.Track, error) {
	return s.storage.GetTrackByID(trackID)
}

func (s *sonicService) ListTracks() ([]models.Track, error) {
	return s.storage.ListTracks()
}

func (s *sonicService) TrackCount() (int64, error) {
	return s.storage.TrackCount()
}

// DeleteTrack removes a track and drops it from the caches and the
// reference snapshot.
func (s *sonicService) DeleteTrack(trackID string) error {
	if err := s.storage.DeleteTrackByID(trackID); err != nil {
		return err
	}
	s.bundles.Delete(trackID)
	_, err := s.ReloadReferences()
	return err
}

func (s *sonicService) ListRecognitions(limit int) ([]models.Recognition, error) {
	return s.storage.ListRecognitions(limit)
}

// ReloadReferences replaces the recognition snapshot with the current
// reference tracks and returns how many there are.
func (s *sonicService) ReloadReferences() (int, error) {
	gen := s.reloadSeq.Add(1)
	refs, err := s.storage.ListReferences()
	if err != nil {
		return 0, fmt.Errorf("failed to load references: %w", err)
	}

	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()
	if gen < s.published {
		n := s.snapshot.Len()
		s.log.Debugf("Dropped reference reload %d, %d already published", gen, s.published)
		return n, nil
	}
	s.published = gen
	n := s.snapshot.Swap(refs)
	if s.metrics != nil {
		s.metrics.SetSnapshotSize(n)
	}
	s.log.Debugf("Loaded %d reference tracks", n)
	return n, nil
}

// Cleanup clears the bundle cache, removes recognitions of deleted
// tracks, releases tracks stuck in processing and reloads the snapshot.
func (s *sonicService) Cleanup() (*CleanupReport, error) {
	report := &CleanupReport{CacheEntriesCleared: s.bundles.Len()}
	s.bundles.Clear()

	var err error
	if report.OrphanedRecognitions, err = s.storage.DeleteOrphanedRecognitions(); err != nil {
		return nil, err
	}
	if report.StuckTracksReset, err = s.storage.ResetStuckTracks(); err != nil {
		return nil, err
	}
	if report.References, err = s.ReloadReferences(); err != nil {
		return nil, err
	}
	s.log.Infof("Cleanup: %d cache entries, %d orphaned recognitions, %d stuck tracks",
		report.CacheEntriesCleared, report.OrphanedRecognitions, report.StuckTracksReset)
	return report, nil
}

// Close releases all resources held by the service.
func (s *sonicService) Close() error {
	var errs []error
	if s.store != nil {
		errs = append(errs, s.store.Close())
	}
	errs = append(errs, s.storage.Close())
	return errors.Join(errs...)
}
