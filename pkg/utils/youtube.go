package utils

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// pathPrefixes are the youtube.com paths that carry the id as the next
// path segment.
var pathPrefixes = []string{"/embed/", "/v/", "/shorts/", "/live/"}

// ExtractYouTubeID returns the 11 character video id of a youtube.com,
// music.youtube.com or youtu.be URL.
func ExtractYouTubeID(youtubeURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(youtubeURL))
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}
	host := strings.ToLower(u.Hostname())

	var id string
	switch {
	case host == "youtu.be":
		id, _, _ = strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
	case strings.HasSuffix(host, "youtube.com"):
		if u.Path == "/watch" {
			id = u.Query().Get("v")
			break
		}
		for _, p := range pathPrefixes {
			if rest, ok := strings.CutPrefix(u.Path, p); ok {
				id, _, _ = strings.Cut(rest, "/")
				break
			}
		}
	default:
		return "", fmt.Errorf("not a YouTube URL: %s", youtubeURL)
	}

	if !videoIDPattern.MatchString(id) {
		return "", fmt.Errorf("unable to extract video ID from URL: %s", youtubeURL)
	}
	return id, nil
}

// IsYouTubeURL reports whether urlStr points at a YouTube host.
func IsYouTubeURL(urlStr string) bool {
	u, err := url.Parse(strings.TrimSpace(urlStr))
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return host == "youtu.be" || host == "youtube.com" || strings.HasSuffix(host, ".youtube.com")
}
