package models

import "time"

// Fingerprint processing states of a stored track.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusError      = "error"
)

// Recognition log states.
const (
	RecognitionFound           = "found"
	RecognitionNotFound        = "not_found"
	RecognitionNoReferenceData = "no_reference_data"
	RecognitionError           = "error"
)

// Track represents a song in the reference library.
type Track struct {
	ID                string         // UUID
	Title             string         // Song title
	Artist            string         // Artist name
	Genre             string         // Genre label, possibly guessed from the file name
	Mood              string         // Mood label, possibly guessed from the file name
	FilePath          string         // Source audio used for extraction
	YouTubeID         string         // YouTube video ID (if available)
	DurationMs        int            // Duration in milliseconds
	Tempo             float64        // BPM from the bundle
	FingerprintHash   string         // Identity hash of the bundle
	FingerprintStatus string         // pending, processing, completed, error
	FingerprintError  string         // Last extraction error
	IsReference       bool           // Whether the track takes part in recognition
	Features          *FeatureBundle // nil until fingerprinted
	Analysis          *AudioAnalysis // nil until analysed
	CreatedAt         time.Time
}

// Reference converts a fingerprinted track into a scan record.
func (t *Track) Reference() ReferenceRecord {
	return ReferenceRecord{ID: t.ID, Title: t.Title, Artist: t.Artist, Bundle: t.Features}
}

// AudioAnalysis holds basic signal statistics computed alongside the
// feature bundle.
type AudioAnalysis struct {
	DurationMs        int     `json:"duration_ms"`
	SampleRate        int     `json:"sample_rate"`
	Channels          int     `json:"channels"`
	MaxAmplitude      float64 `json:"max_amplitude"`
	RMSAmplitude      float64 `json:"rms_amplitude"`
	ClippingDetected  bool    `json:"clipping_detected"`
	SilencePercentage float64 `json:"silence_percentage"`
	Format            string  `json:"format"`
	FileSizeBytes     int64   `json:"file_size_bytes"`
}

// Recognition is one logged recognition request.
type Recognition struct {
	ID             string
	Source         string
	Status         string
	MatchedTrackID string
	Confidence     float64
	BestSimilarity float64
	Threshold      float64
	ProcessingTime float64 // seconds
	Error          string
	Result         *RecognitionResult
	CreatedAt      time.Time
}

// TrackInput describes a track being added to the library. Empty Title or
// Artist are filled from file metadata.
type TrackInput struct {
	Title       string
	Artist      string
	Genre       string
	Mood        string
	YouTubeID   string
	IsReference bool
}
