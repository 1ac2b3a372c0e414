package sonicmatch

import (
	"context"

	"github.com/himanishpuri/SonicMatch/pkg/models"
	"github.com/himanishpuri/SonicMatch/pkg/sonicmatch/similarity"
)

type Service interface {
	ExtractFeatures(ctx context.Context, audioPath string) (*models.FeatureBundle, error)
	BuildFingerprint(bundle *models.FeatureBundle) (models.Fingerprint, error)
	ScoreSimilarity(a, b *models.FeatureBundle) (float64, error)
	Recognize(query *models.FeatureBundle, refs []models.ReferenceRecord, threshold float64) (*models.RecognitionResult, error)

	AddTrack(ctx context.Context, audioPath string, in models.TrackInput) (*models.Track, error)
	AddYouTubeTrack(ctx context.Context, youtubeURL string, in models.TrackInput) (*models.Track, error)
	FingerprintTrack(ctx context.Context, trackID string) (*models.Track, error)
	BatchFingerprint(ctx context.Context, trackIDs []string) (*BatchResult, error)

	RecognizeFile(ctx context.Context, audioPath string) (*models.RecognitionResult, error)
	RecognizeBundle(ctx context.Context, query *models.FeatureBundle) (*models.RecognitionResult, error)
	CompareTracks(idA, idB string) (*similarity.Breakdown, error)
	SimilarTracks(trackID string, n int) ([]models.Candidate, error)

	GetTrack(trackID string) (*models.Track, error)
	ListTracks() ([]models.Track, error)
	TrackCount() (int64, error)
	DeleteTrack(trackID string) error
	ListRecognitions(limit int) ([]models.Recognition, error)

	ReloadReferences() (int, error)
	Cleanup() (*CleanupReport, error)
	Close() error
}

type Storage interface {
	RegisterTrack(in models.TrackInput, filePath string, durationMs int) (string, error)
	SetTrackProcessing(trackID string) error
	SetTrackError(trackID string, cause error) error
	StoreFingerprint(trackID string, fp models.Fingerprint, analysis *models.AudioAnalysis) error
	GetTrackByID(trackID string) (*models.Track, error)
	GetTrackByHash(hash string) (*models.Track, error)
	ListTracks() ([]models.Track, error)
	ListReferences() ([]models.ReferenceRecord, error)
	DeleteTrackByID(trackID string) error
	TrackCount() (int64, error)
	SaveRecognition(rec *models.Recognition) error
	ListRecognitions(limit int) ([]models.Recognition, error)
	DeleteOrphanedRecognitions() (int64, error)
	ResetStuckTracks() (int64, error)
	Close() error
}

type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
}
