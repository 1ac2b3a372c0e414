package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/himanishpuri/SonicMatch/pkg/errors"
	"github.com/himanishpuri/SonicMatch/pkg/logger"
	"github.com/himanishpuri/SonicMatch/pkg/models"
	"github.com/himanishpuri/SonicMatch/pkg/sonicmatch"
	"github.com/himanishpuri/SonicMatch/pkg/sonicmatch/similarity"
	"github.com/himanishpuri/SonicMatch/pkg/utils"
)

// maxUploadBytes bounds multipart bodies kept in memory.
const maxUploadBytes = 100 << 20

// Server encapsulates the HTTP server and its dependencies
type Server struct {
	service  sonicmatch.Service
	config   *ServerConfig
	log      sonicmatch.Logger
	scorer   *similarity.Scorer
	registry *prometheus.Registry
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	DBPath         string
	TempDir        string
	Threshold      float64
	Weights        similarity.Weights
	AllowedOrigins []string
}

// NewServer creates a new server instance. registry may be nil, in which
// case /metrics is not served.
func NewServer(service sonicmatch.Service, config *ServerConfig, registry *prometheus.Registry) (*Server, error) {
	scorer, err := similarity.New(config.Weights)
	if err != nil {
		return nil, err
	}
	return &Server{
		service:  service,
		config:   config,
		log:      logger.GetLogger(),
		scorer:   scorer,
		registry: registry,
	}, nil
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Errorf("Failed to encode JSON response: %v", err)
	}
}

// respondError writes an error response
func (s *Server) respondError(w http.ResponseWriter, statusCode int, message string) {
	s.respondJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

// statusFor maps a service error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errors.ErrNotFound):
		return http.StatusNotFound
	case errors.IsInvalidBundle(err), errors.IsCategory(err, errors.CategoryValidation):
		return http.StatusBadRequest
	case errors.IsExtraction(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondServiceError(w http.ResponseWriter, action string, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		s.log.Errorf("Failed to %s: %v", action, err)
	} else {
		s.log.Warnf("Failed to %s: %v", action, err)
	}
	s.respondError(w, code, fmt.Sprintf("Failed to %s: %v", action, err))
}

// decodeJSON reads a request body into dst and runs its Validate method.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{ Validate() error }) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxUploadBytes)).Decode(dst); err != nil {
		s.log.Errorf("Failed to decode request: %v", err)
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if err := dst.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

// saveUpload copies the "audio" form file into its own directory under
// TempDir, keeping the client's file name so title and genre hints still
// work.
func (s *Server) saveUpload(r *http.Request) (string, error) {
	file, header, err := r.FormFile("audio")
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryValidation, "audio file is required")
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if name == "." || name == string(filepath.Separator) || name == "" {
		name = "upload.wav"
	}
	dir := filepath.Join(s.config.TempDir, "uploads", utils.GenerateUUID())
	if err := utils.MakeDir(dir); err != nil {
		return "", errors.Wrap(err, errors.CategoryFileIO, "creating upload directory")
	}
	path := filepath.Join(dir, name)
	if err := copyUpload(path, file); err != nil {
		os.RemoveAll(dir)
		return "", errors.Wrap(err, errors.CategoryFileIO, "saving uploaded file")
	}
	return path, nil
}

func copyUpload(path string, src multipart.File) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// handleRoot handles GET /
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		s.respondError(w, http.StatusNotFound, "Not found")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"service": "SonicMatch API",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"health":          "GET /health",
			"metrics":         "GET /metrics",
			"tracks":          "GET /api/tracks",
			"addTrack":        "POST /api/tracks",
			"addTrackYouTube": "POST /api/tracks/youtube",
			"batch":           "POST /api/tracks/batch",
			"getTrack":        "GET /api/tracks/{id}",
			"deleteTrack":     "DELETE /api/tracks/{id}",
			"similar":         "GET /api/tracks/{id}/similar?n=",
			"recognize":       "POST /api/recognize",
			"recognizeBundle": "POST /api/recognize/bundle",
			"score":           "POST /api/score",
			"fingerprint":     "POST /api/fingerprint",
			"recognitions":    "GET /api/recognitions",
		},
	})
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	count, err := s.service.TrackCount()
	if err != nil {
		s.log.Errorf("Failed to get track count: %v", err)
		s.respondError(w, http.StatusServiceUnavailable, "Database unavailable")
		return
	}
	s.respondJSON(w, http.StatusOK, HealthResponse{
		Status:     "healthy",
		Time:       time.Now().Format(time.RFC3339),
		TrackCount: count,
		Threshold:  s.config.Threshold,
	})
}

// handleListTracks handles GET /api/tracks
func (s *Server) handleListTracks(w http.ResponseWriter, r *http.Request) {
	tracks, err := s.service.ListTracks()
	if err != nil {
		s.respondServiceError(w, "list tracks", err)
		return
	}

	dtos := make([]TrackDTO, len(tracks))
	for i := range tracks {
		dtos[i] = toTrackDTO(&tracks[i], false)
	}
	s.respondJSON(w, http.StatusOK, TracksResponse{Tracks: dtos, Count: len(dtos)})
}

// handleAddTrack handles POST /api/tracks (multipart file upload)
func (s *Server) handleAddTrack(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.log.Errorf("Failed to parse form: %v", err)
		s.respondError(w, http.StatusBadRequest, "Failed to parse form data")
		return
	}

	in := models.TrackInput{
		Title:       strings.TrimSpace(r.FormValue("title")),
		Artist:      strings.TrimSpace(r.FormValue("artist")),
		Genre:       strings.TrimSpace(r.FormValue("genre")),
		Mood:        strings.TrimSpace(r.FormValue("mood")),
		YouTubeID:   strings.TrimSpace(r.FormValue("youtube_id")),
		IsReference: true,
	}
	if v := r.FormValue("reference"); v != "" {
		ref, err := strconv.ParseBool(v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "reference must be a boolean")
			return
		}
		in.IsReference = ref
	}

	path, err := s.saveUpload(r)
	if err != nil {
		s.respondServiceError(w, "save upload", err)
		return
	}

	// The upload stays on disk: it is the source a later re-fingerprint reads.
	track, err := s.service.AddTrack(ctx, path, in)
	if err != nil {
		s.respondServiceError(w, "add track", err)
		return
	}

	s.log.Infof("Successfully added track: %s by %s (ID: %s)", track.Title, track.Artist, track.ID)
	s.respondJSON(w, http.StatusCreated, toTrackDTO(track, false))
}

// handleAddYouTubeTrack handles POST /api/tracks/youtube
func (s *Server) handleAddYouTubeTrack(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Minute)
	defer cancel()

	var req AddYouTubeTrackRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	s.log.Infof("Adding track from YouTube URL: %s", req.YouTubeURL)
	track, err := s.service.AddYouTubeTrack(ctx, req.YouTubeURL, req.Input())
	if err != nil {
		s.respondServiceError(w, "add YouTube track", err)
		return
	}
	s.respondJSON(w, http.StatusCreated, toTrackDTO(track, false))
}

// handleGetTrack handles GET /api/tracks/{id}
func (s *Server) handleGetTrack(w http.ResponseWriter, r *http.Request) {
	track, err := s.service.GetTrack(r.PathValue("id"))
	if err != nil {
		s.respondServiceError(w, "get track", err)
		return
	}
	withFeatures, _ := strconv.ParseBool(r.URL.Query().Get("features"))
	s.respondJSON(w, http.StatusOK, toTrackDTO(track, withFeatures))
}

// handleDeleteTrack handles DELETE /api/tracks/{id}
func (s *Server) handleDeleteTrack(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.service.DeleteTrack(id); err != nil {
		s.respondServiceError(w, "delete track", err)
		return
	}
	s.log.Infof("Deleted track %s", id)
	s.respondJSON(w, http.StatusOK, map[string]string{
		"message": "Track deleted successfully",
		"id":      id,
	})
}

// handleBatchFingerprint handles POST /api/tracks/batch
func (s *Server) handleBatchFingerprint(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Minute)
	defer cancel()

	var req BatchFingerprintRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	res, err := s.service.BatchFingerprint(ctx, req.TrackIDs)
	if err != nil && res == nil {
		s.respondServiceError(w, "fingerprint batch", err)
		return
	}

	out := BatchFingerprintResponse{
		Succeeded: make([]TrackDTO, len(res.Succeeded)),
		Failed:    make([]BatchFailedDTO, len(res.Failed)),
	}
	for i := range res.Succeeded {
		out.Succeeded[i] = toTrackDTO(&res.Succeeded[i], false)
	}
	for i, f := range res.Failed {
		out.Failed[i] = BatchFailedDTO{TrackID: f.TrackID, Error: f.Error}
	}
	status := http.StatusOK
	if err != nil {
		s.log.Warnf("Batch interrupted: %v", err)
		status = http.StatusGatewayTimeout
	}
	s.respondJSON(w, status, out)
}

// handleSimilar handles GET /api/tracks/{id}/similar?n=
func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	n := 5
	if v := r.URL.Query().Get("n"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 || parsed > MaxSimilar {
			s.respondError(w, http.StatusBadRequest, fmt.Sprintf("n must be between 1 and %d", MaxSimilar))
			return
		}
		n = parsed
	}

	candidates, err := s.service.SimilarTracks(id, n)
	if err != nil {
		s.respondServiceError(w, "find similar tracks", err)
		return
	}
	s.respondJSON(w, http.StatusOK, SimilarResponse{TrackID: id, Candidates: candidates, Count: len(candidates)})
}

// handleRecognize handles POST /api/recognize (multipart file upload)
func (s *Server) handleRecognize(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.log.Errorf("Failed to parse form: %v", err)
		s.respondError(w, http.StatusBadRequest, "Failed to parse form data")
		return
	}

	path, err := s.saveUpload(r)
	if err != nil {
		s.respondServiceError(w, "save upload", err)
		return
	}
	defer os.RemoveAll(filepath.Dir(path))

	res, err := s.service.RecognizeFile(ctx, path)
	if err != nil {
		if res != nil && errors.IsExtraction(err) {
			s.log.Warnf("Extraction failed for query: %v", err)
			s.respondJSON(w, http.StatusUnprocessableEntity, res)
			return
		}
		s.respondServiceError(w, "recognize audio", err)
		return
	}

	s.log.Infof("Recognition complete: %s (confidence %.4f)", res.Outcome, res.Confidence)
	s.respondJSON(w, http.StatusOK, res)
}

// handleRecognizeBundle handles POST /api/recognize/bundle for clients that
// extract features themselves.
func (s *Server) handleRecognizeBundle(w http.ResponseWriter, r *http.Request) {
	var req BundleRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	bundle, err := req.Decode()
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.service.RecognizeBundle(r.Context(), bundle)
	if err != nil {
		s.respondServiceError(w, "recognize bundle", err)
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}

// handleScore handles POST /api/score
func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	var req ScoreRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	a, err := models.DecodeFeatureBundle(req.A)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "a: "+err.Error())
		return
	}
	b, err := models.DecodeFeatureBundle(req.B)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "b: "+err.Error())
		return
	}

	score, err := s.service.ScoreSimilarity(a, b)
	if err != nil {
		s.respondServiceError(w, "score bundles", err)
		return
	}
	s.respondJSON(w, http.StatusOK, ScoreResponse{Similarity: score, Breakdown: s.scorer.Explain(a, b)})
}

// handleFingerprint handles POST /api/fingerprint
func (s *Server) handleFingerprint(w http.ResponseWriter, r *http.Request) {
	var req BundleRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	bundle, err := req.Decode()
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	fp, err := s.service.BuildFingerprint(bundle)
	if err != nil {
		s.respondServiceError(w, "build fingerprint", err)
		return
	}
	s.respondJSON(w, http.StatusOK, FingerprintResponse{Hash: fp.Hash})
}

// handleRecognitions handles GET /api/recognitions?limit=
func (s *Server) handleRecognitions(w http.ResponseWriter, r *http.Request) {
	limit := DefaultRecognitionLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			s.respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	recs, err := s.service.ListRecognitions(limit)
	if err != nil {
		s.respondServiceError(w, "list recognitions", err)
		return
	}
	dtos := make([]RecognitionDTO, len(recs))
	for i, rec := range recs {
		dtos[i] = RecognitionDTO{
			ID:             rec.ID,
			Source:         rec.Source,
			Status:         rec.Status,
			MatchedTrackID: rec.MatchedTrackID,
			Confidence:     rec.Confidence,
			Threshold:      rec.Threshold,
			ProcessingTime: rec.ProcessingTime,
			Error:          rec.Error,
			CreatedAt:      rec.CreatedAt,
		}
	}
	s.respondJSON(w, http.StatusOK, RecognitionsResponse{Recognitions: dtos, Count: len(dtos)})
}
