package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/himanishpuri/SonicMatch/pkg/models"
	"github.com/himanishpuri/SonicMatch/pkg/sonicmatch/similarity"
	"github.com/himanishpuri/SonicMatch/pkg/utils"
)

// Request limits
const (
	// MaxBatchSize is the largest number of track ids accepted by one
	// batch fingerprint request.
	MaxBatchSize = 500

	// MaxSimilar caps the n query parameter of the similar endpoint.
	MaxSimilar = 100

	// DefaultRecognitionLimit is the page size of the recognition log.
	DefaultRecognitionLimit = 50
)

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// HealthResponse is the response for GET /health
type HealthResponse struct {
	Status     string  `json:"status"`
	Time       string  `json:"time"`
	TrackCount int64   `json:"track_count"`
	Threshold  float64 `json:"threshold"`
}

// TrackDTO is a stored track without its feature vectors
type TrackDTO struct {
	ID                string    `json:"id"`
	Title             string    `json:"title"`
	Artist            string    `json:"artist"`
	Genre             string    `json:"genre,omitempty"`
	Mood              string    `json:"mood,omitempty"`
	YouTubeID         string    `json:"youtube_id,omitempty"`
	DurationMs        int       `json:"duration_ms"`
	Tempo             float64   `json:"tempo"`
	FingerprintHash   string    `json:"fingerprint_hash,omitempty"`
	FingerprintStatus string    `json:"fingerprint_status"`
	FingerprintError  string    `json:"fingerprint_error,omitempty"`
	IsReference       bool      `json:"is_reference"`
	CreatedAt         time.Time `json:"created_at"`

	Analysis *models.AudioAnalysis `json:"analysis,omitempty"`
	Features *models.FeatureBundle `json:"features,omitempty"`
}

func toTrackDTO(t *models.Track, withFeatures bool) TrackDTO {
	dto := TrackDTO{
		ID:                t.ID,
		Title:             t.Title,
		Artist:            t.Artist,
		Genre:             t.Genre,
		Mood:              t.Mood,
		YouTubeID:         t.YouTubeID,
		DurationMs:        t.DurationMs,
		Tempo:             t.Tempo,
		FingerprintHash:   t.FingerprintHash,
		FingerprintStatus: t.FingerprintStatus,
		FingerprintError:  t.FingerprintError,
		IsReference:       t.IsReference,
		CreatedAt:         t.CreatedAt,
		Analysis:          t.Analysis,
	}
	if withFeatures {
		dto.Features = t.Features
	}
	return dto
}

// TracksResponse is the response for GET /api/tracks
type TracksResponse struct {
	Tracks []TrackDTO `json:"tracks"`
	Count  int        `json:"count"`
}

// AddYouTubeTrackRequest is the request body for POST /api/tracks/youtube
type AddYouTubeTrackRequest struct {
	YouTubeURL string `json:"youtube_url"`
	Title      string `json:"title,omitempty"`
	Artist     string `json:"artist,omitempty"`
	Genre      string `json:"genre,omitempty"`
	Mood       string `json:"mood,omitempty"`
	Reference  *bool  `json:"reference,omitempty"`
}

// Validate checks if the request is valid
func (r *AddYouTubeTrackRequest) Validate() error {
	if strings.TrimSpace(r.YouTubeURL) == "" {
		return fmt.Errorf("youtube_url is required")
	}
	if !utils.IsYouTubeURL(r.YouTubeURL) {
		return fmt.Errorf("youtube_url is not a YouTube URL")
	}
	return nil
}

// Input converts the request into a track description. Tracks are
// references unless the request says otherwise.
func (r *AddYouTubeTrackRequest) Input() models.TrackInput {
	in := models.TrackInput{
		Title:       r.Title,
		Artist:      r.Artist,
		Genre:       r.Genre,
		Mood:        r.Mood,
		IsReference: true,
	}
	if r.Reference != nil {
		in.IsReference = *r.Reference
	}
	return in
}

// BatchFingerprintRequest is the request body for POST /api/tracks/batch
type BatchFingerprintRequest struct {
	TrackIDs []string `json:"track_ids"`
}

// Validate checks if the request is valid
func (r *BatchFingerprintRequest) Validate() error {
	if len(r.TrackIDs) == 0 {
		return fmt.Errorf("track_ids cannot be empty")
	}
	if len(r.TrackIDs) > MaxBatchSize {
		return fmt.Errorf("too many track ids: %d (maximum: %d)", len(r.TrackIDs), MaxBatchSize)
	}
	for i, id := range r.TrackIDs {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("track_ids[%d] is empty", i)
		}
	}
	return nil
}

// BatchFingerprintResponse is the response for POST /api/tracks/batch
type BatchFingerprintResponse struct {
	Succeeded []TrackDTO       `json:"succeeded"`
	Failed    []BatchFailedDTO `json:"failed"`
}

// BatchFailedDTO is one track a batch could not fingerprint
type BatchFailedDTO struct {
	TrackID string `json:"track_id"`
	Error   string `json:"error"`
}

// BundleRequest is the request body for POST /api/recognize/bundle and
// POST /api/fingerprint. The bundle stays raw so that absent fields are
// rejected instead of decoding to zero.
type BundleRequest struct {
	Bundle json.RawMessage `json:"bundle"`
}

// Validate checks if the request is valid
func (r *BundleRequest) Validate() error {
	if len(r.Bundle) == 0 || string(r.Bundle) == "null" {
		return fmt.Errorf("bundle is required")
	}
	return nil
}

// Decode parses the bundle. The returned error is an InvalidBundleError.
func (r *BundleRequest) Decode() (*models.FeatureBundle, error) {
	return models.DecodeFeatureBundle(r.Bundle)
}

// ScoreRequest is the request body for POST /api/score
type ScoreRequest struct {
	A json.RawMessage `json:"a"`
	B json.RawMessage `json:"b"`
}

// Validate checks if the request is valid
func (r *ScoreRequest) Validate() error {
	if len(r.A) == 0 || string(r.A) == "null" {
		return fmt.Errorf("bundle a is required")
	}
	if len(r.B) == 0 || string(r.B) == "null" {
		return fmt.Errorf("bundle b is required")
	}
	return nil
}

// ScoreResponse is the response for POST /api/score
type ScoreResponse struct {
	Similarity float64              `json:"similarity"`
	Breakdown  similarity.Breakdown `json:"breakdown"`
}

// FingerprintResponse is the response for POST /api/fingerprint
type FingerprintResponse struct {
	Hash string `json:"hash"`
}

// SimilarResponse is the response for GET /api/tracks/{id}/similar
type SimilarResponse struct {
	TrackID    string             `json:"track_id"`
	Candidates []models.Candidate `json:"candidates"`
	Count      int                `json:"count"`
}

// RecognitionDTO is one row of the recognition log
type RecognitionDTO struct {
	ID             string    `json:"id"`
	Source         string    `json:"source"`
	Status         string    `json:"status"`
	MatchedTrackID string    `json:"matched_track_id,omitempty"`
	Confidence     float64   `json:"confidence"`
	Threshold      float64   `json:"threshold"`
	ProcessingTime float64   `json:"processing_time_s"`
	Error          string    `json:"error,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// RecognitionsResponse is the response for GET /api/recognitions
type RecognitionsResponse struct {
	Recognitions []RecognitionDTO `json:"recognitions"`
	Count        int              `json:"count"`
}
