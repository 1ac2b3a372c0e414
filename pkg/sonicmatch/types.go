package sonicmatch

import "github.com/himanishpuri/SonicMatch/pkg/models"

// BatchResult reports a batch fingerprint run. Every requested id ends
// up in exactly one of the two lists.
type BatchResult struct {
	Succeeded []models.Track `json:"succeeded"`
	Failed    []BatchFailure `json:"failed"`
}

// BatchFailure is one track that could not be fingerprinted.
type BatchFailure struct {
	TrackID string `json:"track_id"`
	Error   string `json:"error"`
}

// CleanupReport summarises a Cleanup run.
type CleanupReport struct {
	CacheEntriesCleared  int   `json:"cache_entries_cleared"`
	OrphanedRecognitions int64 `json:"orphaned_recognitions"`
	StuckTracksReset     int64 `json:"stuck_tracks_reset"`
	References           int   `json:"references"`
}
