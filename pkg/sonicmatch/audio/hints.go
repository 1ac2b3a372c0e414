package audio

import (
	"path/filepath"
	"strings"
)

type keywordRule struct {
	label    string
	keywords []string
}

var genreRules = []keywordRule{
	{"Electronic", []string{"electronic", "techno", "house", "edm"}},
	{"Rock", []string{"rock", "metal", "punk"}},
	{"Pop", []string{"pop", "mainstream"}},
	{"Jazz", []string{"jazz", "blues"}},
	{"Classical", []string{"classical", "orchestra"}},
}

var moodRules = []keywordRule{
	{"Happy", []string{"happy", "energetic", "upbeat", "dance"}},
	{"Sad", []string{"sad", "melancholy", "depressing"}},
	{"Calm", []string{"calm", "relaxing", "peaceful", "ambient"}},
	{"Aggressive", []string{"aggressive", "angry", "intense"}},
}

// GuessGenre labels a file from keywords in its name. The first matching
// rule wins; no match yields "Unknown".
func GuessGenre(path string) string {
	return matchRules(path, genreRules, "Unknown")
}

// GuessMood works like GuessGenre with mood keywords and a "Neutral"
// fallback.
func GuessMood(path string) string {
	return matchRules(path, moodRules, "Neutral")
}

func matchRules(path string, rules []keywordRule, fallback string) string {
	name := strings.ToLower(filepath.Base(path))
	for _, r := range rules {
		for _, k := range r.keywords {
			if strings.Contains(name, k) {
				return r.label
			}
		}
	}
	return fallback
}
