//go:build !js && !wasm
// +build !js,!wasm

// Package storage persists the reference library and the recognition log
// in SQLite through gorm.
package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/himanishpuri/SonicMatch/pkg/errors"
	"github.com/himanishpuri/SonicMatch/pkg/models"
	"github.com/himanishpuri/SonicMatch/pkg/utils"
)

const DefaultDBFile = "sonicmatch.sqlite3"
const errDBClientNil = "db client is nil"

type DBClient struct {
	DB *gorm.DB
	db *sql.DB
}

type Track struct {
	ID                string  `gorm:"primaryKey;type:varchar(36)"`
	Title             string  `gorm:"uniqueIndex:idx_track_unique,priority:1;index:idx_track_meta,priority:1" json:"title"`
	Artist            string  `gorm:"uniqueIndex:idx_track_unique,priority:2;index:idx_track_meta,priority:2" json:"artist"`
	Genre             string  `json:"genre"`
	Mood              string  `json:"mood"`
	FilePath          string  `json:"file_path"`
	YouTubeID         string  `gorm:"index:idx_youtube_id" json:"youtube_id"`
	DurationMs        int     `json:"duration_ms"`
	Tempo             float64 `json:"tempo"`
	FingerprintHash   string  `gorm:"index:idx_fingerprint_hash;type:varchar(64)" json:"fingerprint_hash"`
	FingerprintStatus string  `gorm:"index:idx_fingerprint_status;default:pending" json:"fingerprint_status"`
	FingerprintError  string  `json:"fingerprint_error"`
	IsReference       bool    `gorm:"index:idx_is_reference" json:"is_reference"`
	Features          string  `json:"features"`
	Analysis          string  `json:"analysis"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type Recognition struct {
	ID             string  `gorm:"primaryKey;type:varchar(36)"`
	Source         string  `json:"source"`
	Status         string  `gorm:"index:idx_recognition_status" json:"status"`
	MatchedTrackID string  `gorm:"type:varchar(36);index:idx_matched_track" json:"matched_track_id"`
	Confidence     float64 `json:"confidence"`
	BestSimilarity float64 `json:"best_similarity"`
	Threshold      float64 `json:"threshold"`
	ProcessingTime float64 `json:"processing_time"`
	Error          string  `json:"error"`
	Result         string  `json:"result"`
	CreatedAt      time.Time
}

func NewDBClient() (*DBClient, error) {
	dbPath := os.Getenv("SONIC_DB_PATH")
	if dbPath == "" {
		dbPath = DefaultDBFile
	}
	return NewDBClientWithPath(dbPath)
}

func NewDBClientWithPath(dbPath string) (*DBClient, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, errors.CategoryFileIO, "creating db dir")
		}
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	db, err := gorm.Open(sqlite.Open(dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"), gormConfig)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryDatabase, "opening sqlite db")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&Track{}, &Recognition{}); err != nil {
		sqlDB.Close()
		return nil, errors.Wrap(err, errors.CategoryDatabase, "auto migrate")
	}

	return &DBClient{DB: db, db: sqlDB}, nil
}

func (c *DBClient) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

func (c *DBClient) ready() error {
	if c == nil || c.DB == nil {
		return errors.Wrap(errors.New(errDBClientNil), errors.CategoryDatabase, "storage")
	}
	return nil
}

// RegisterTrack creates a pending track, or returns the id of the
// existing track with the same title and artist. Empty fields of an
// existing track are filled from in.
func (c *DBClient) RegisterTrack(in models.TrackInput, filePath string, durationMs int) (string, error) {
	if err := c.ready(); err != nil {
		return "", err
	}

	var track Track

	err := c.DB.Where("title = ? AND artist = ?", in.Title, in.Artist).First(&track).Error
	if err == nil {
		updates := map[string]any{}
		if track.YouTubeID == "" && in.YouTubeID != "" {
			updates["you_tube_id"] = in.YouTubeID
		}
		if track.FilePath == "" && filePath != "" {
			updates["file_path"] = filePath
		}
		if in.IsReference && !track.IsReference {
			updates["is_reference"] = true
		}
		if len(updates) > 0 {
			if err := c.DB.Model(&track).Updates(updates).Error; err != nil {
				return "", errors.Wrap(err, errors.CategoryDatabase, "updating track %s", track.ID)
			}
		}
		return track.ID, nil
	}

	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", errors.Wrap(err, errors.CategoryDatabase, "querying existing track")
	}

	track = Track{
		ID:                utils.GenerateUUID(),
		Title:             in.Title,
		Artist:            in.Artist,
		Genre:             in.Genre,
		Mood:              in.Mood,
		FilePath:          filePath,
		YouTubeID:         in.YouTubeID,
		DurationMs:        durationMs,
		FingerprintStatus: models.StatusPending,
		IsReference:       in.IsReference,
	}
	err = c.DB.Create(&track).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE constraint failed") {
			if fetchErr := c.DB.Where("title = ? AND artist = ?", in.Title, in.Artist).First(&track).Error; fetchErr != nil {
				return "", fmt.Errorf("fetching track after constraint violation: %w", fetchErr)
			}
			return track.ID, nil
		}
		return "", errors.Wrap(err, errors.CategoryDatabase, "creating track")
	}

	return track.ID, nil
}

// SetTrackProcessing marks a track as being fingerprinted.
func (c *DBClient) SetTrackProcessing(id string) error {
	return c.updateTrack(id, map[string]any{
		"fingerprint_status": models.StatusProcessing,
		"fingerprint_error":  "",
	})
}

// SetTrackError records a failed fingerprint attempt.
func (c *DBClient) SetTrackError(id string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return c.updateTrack(id, map[string]any{
		"fingerprint_status": models.StatusError,
		"fingerprint_error":  msg,
	})
}

// StoreFingerprint saves the bundle and analysis of a track and marks it
// completed.
func (c *DBClient) StoreFingerprint(id string, fp models.Fingerprint, analysis *models.AudioAnalysis) error {
	features, err := fp.Bundle.Encode()
	if err != nil {
		return err
	}
	updates := map[string]any{
		"features":           string(features),
		"fingerprint_hash":   fp.Hash,
		"fingerprint_status": models.StatusCompleted,
		"fingerprint_error":  "",
		"tempo":              fp.Bundle.Tempo,
		"duration_ms":        int(fp.Bundle.Duration * 1000),
	}
	if analysis != nil {
		raw, err := json.Marshal(analysis)
		if err != nil {
			return fmt.Errorf("encoding analysis: %w", err)
		}
		updates["analysis"] = string(raw)
		updates["duration_ms"] = analysis.DurationMs
	}
	return c.updateTrack(id, updates)
}

func (c *DBClient) updateTrack(id string, updates map[string]any) error {
	if err := c.ready(); err != nil {
		return err
	}
	res := c.DB.Model(&Track{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return errors.Wrap(res.Error, errors.CategoryDatabase, "updating track %s", id)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("track %s: %w", id, errors.ErrNotFound)
	}
	return nil
}

func (c *DBClient) GetTrackByID(id string) (*models.Track, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	var row Track
	if err := c.DB.Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("track %s: %w", id, errors.ErrNotFound)
		}
		return nil, errors.Wrap(err, errors.CategoryDatabase, "querying track %s", id)
	}
	return row.toModel(), nil
}

// GetTrackByHash returns the first completed track with the given
// fingerprint hash.
func (c *DBClient) GetTrackByHash(hash string) (*models.Track, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	var row Track
	err := c.DB.Where("fingerprint_hash = ? AND fingerprint_status = ?", hash, models.StatusCompleted).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("fingerprint %s: %w", hash, errors.ErrNotFound)
		}
		return nil, errors.Wrap(err, errors.CategoryDatabase, "querying fingerprint hash")
	}
	return row.toModel(), nil
}

func (c *DBClient) ListTracks() ([]models.Track, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	var rows []Track
	if err := c.DB.Order("created_at asc").Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, errors.CategoryDatabase, "listing tracks")
	}
	out := make([]models.Track, 0, len(rows))
	for i := range rows {
		out = append(out, *rows[i].toModel())
	}
	return out, nil
}

// ListReferences returns every completed reference track in creation
// order. A track whose stored features no longer decode is returned with
// a nil bundle so the recognition scan can skip and count it.
func (c *DBClient) ListReferences() ([]models.ReferenceRecord, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	var rows []Track
	err := c.DB.Select("id", "title", "artist", "features").
		Where("is_reference = ? AND fingerprint_status = ?", true, models.StatusCompleted).
		Order("created_at asc").
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryDatabase, "listing references")
	}
	out := make([]models.ReferenceRecord, 0, len(rows))
	for _, r := range rows {
		bundle, _ := models.DecodeFeatureBundle([]byte(r.Features))
		out = append(out, models.ReferenceRecord{ID: r.ID, Title: r.Title, Artist: r.Artist, Bundle: bundle})
	}
	return out, nil
}

func (c *DBClient) DeleteTrackByID(id string) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", id).Delete(&Track{})
		if res.Error != nil {
			return errors.Wrap(res.Error, errors.CategoryDatabase, "deleting track %s", id)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("track %s: %w", id, errors.ErrNotFound)
		}
		return nil
	})
}

func (c *DBClient) TrackCount() (int64, error) {
	if err := c.ready(); err != nil {
		return 0, err
	}
	var n int64
	if err := c.DB.Model(&Track{}).Count(&n).Error; err != nil {
		return 0, errors.Wrap(err, errors.CategoryDatabase, "counting tracks")
	}
	return n, nil
}

// SaveRecognition appends rec to the recognition log, assigning an id
// when rec has none.
func (c *DBClient) SaveRecognition(rec *models.Recognition) error {
	if err := c.ready(); err != nil {
		return err
	}
	if rec.ID == "" {
		rec.ID = utils.GenerateUUID()
	}
	row := Recognition{
		ID:             rec.ID,
		Source:         rec.Source,
		Status:         rec.Status,
		MatchedTrackID: rec.MatchedTrackID,
		Confidence:     rec.Confidence,
		BestSimilarity: rec.BestSimilarity,
		Threshold:      rec.Threshold,
		ProcessingTime: rec.ProcessingTime,
		Error:          rec.Error,
	}
	if rec.Result != nil {
		raw, err := json.Marshal(rec.Result)
		if err != nil {
			return fmt.Errorf("encoding recognition result: %w", err)
		}
		row.Result = string(raw)
	}
	if err := c.DB.Create(&row).Error; err != nil {
		return errors.Wrap(err, errors.CategoryDatabase, "saving recognition")
	}
	rec.CreatedAt = row.CreatedAt
	return nil
}

// ListRecognitions returns the newest recognitions first. A non-positive
// limit returns all of them.
func (c *DBClient) ListRecognitions(limit int) ([]models.Recognition, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	q := c.DB.Order("created_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []Recognition
	if err := q.Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, errors.CategoryDatabase, "listing recognitions")
	}
	out := make([]models.Recognition, 0, len(rows))
	for _, r := range rows {
		rec := models.Recognition{
			ID:             r.ID,
			Source:         r.Source,
			Status:         r.Status,
			MatchedTrackID: r.MatchedTrackID,
			Confidence:     r.Confidence,
			BestSimilarity: r.BestSimilarity,
			Threshold:      r.Threshold,
			ProcessingTime: r.ProcessingTime,
			Error:          r.Error,
			CreatedAt:      r.CreatedAt,
		}
		if r.Result != "" {
			var res models.RecognitionResult
			if err := json.Unmarshal([]byte(r.Result), &res); err == nil {
				rec.Result = &res
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

// DeleteOrphanedRecognitions removes log entries whose matched track no
// longer exists and returns how many were removed.
func (c *DBClient) DeleteOrphanedRecognitions() (int64, error) {
	if err := c.ready(); err != nil {
		return 0, err
	}
	res := c.DB.Where("matched_track_id <> '' AND matched_track_id NOT IN (?)",
		c.DB.Model(&Track{}).Select("id")).Delete(&Recognition{})
	if res.Error != nil {
		return 0, errors.Wrap(res.Error, errors.CategoryDatabase, "deleting orphaned recognitions")
	}
	return res.RowsAffected, nil
}

// ResetStuckTracks moves tracks left in processing back to pending, for
// example after a crash mid-batch.
func (c *DBClient) ResetStuckTracks() (int64, error) {
	if err := c.ready(); err != nil {
		return 0, err
	}
	res := c.DB.Model(&Track{}).Where("fingerprint_status = ?", models.StatusProcessing).
		Update("fingerprint_status", models.StatusPending)
	if res.Error != nil {
		return 0, errors.Wrap(res.Error, errors.CategoryDatabase, "resetting stuck tracks")
	}
	return res.RowsAffected, nil
}

func (t *Track) toModel() *models.Track {
	out := &models.Track{
		ID:                t.ID,
		Title:             t.Title,
		Artist:            t.Artist,
		Genre:             t.Genre,
		Mood:              t.Mood,
		FilePath:          t.FilePath,
		YouTubeID:         t.YouTubeID,
		DurationMs:        t.DurationMs,
		Tempo:             t.Tempo,
		FingerprintHash:   t.FingerprintHash,
		FingerprintStatus: t.FingerprintStatus,
		FingerprintError:  t.FingerprintError,
		IsReference:       t.IsReference,
		CreatedAt:         t.CreatedAt,
	}
	if t.Features != "" {
		if b, err := models.DecodeFeatureBundle([]byte(t.Features)); err == nil {
			out.Features = b
		}
	}
	if t.Analysis != "" {
		var a models.AudioAnalysis
		if err := json.Unmarshal([]byte(t.Analysis), &a); err == nil {
			out.Analysis = &a
		}
	}
	return out
}
