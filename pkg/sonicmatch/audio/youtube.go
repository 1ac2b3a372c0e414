package audio

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lrstanley/go-ytdlp"

	"github.com/himanishpuri/SonicMatch/pkg/errors"
	"github.com/himanishpuri/SonicMatch/pkg/utils"
)

// downloadTimeout bounds a YouTube download when the caller set no deadline.
const downloadTimeout = 3 * time.Minute

// VideoInfo is the subset of the yt-dlp info JSON used for ingestion.
type VideoInfo struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Track    string  `json:"track"`
	Artist   string  `json:"artist"`
	Channel  string  `json:"channel"`
	Uploader string  `json:"uploader"`
	Duration float64 `json:"duration"`
	URL      string  `json:"webpage_url"`
}

// normalize prefers music metadata over the video title and channel.
func (v *VideoInfo) normalize() {
	v.Title = firstNonBlank(v.Track, v.Title)
	v.Artist = firstNonBlank(v.Artist, v.Channel, v.Uploader, "Unknown Artist")
}

func firstNonBlank(values ...string) string {
	for _, s := range values {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

// DownloadYouTubeAudio fetches the best audio stream of a video into
// outputDir as <video id>.wav and returns its path with the video
// metadata. The file is kept so the track can be fingerprinted again.
func DownloadYouTubeAudio(ctx context.Context, youtubeURL, outputDir string) (string, *VideoInfo, error) {
	if !utils.IsYouTubeURL(youtubeURL) {
		return "", nil, errors.Wrap(errors.New(youtubeURL), errors.CategoryValidation, "not a YouTube URL")
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, downloadTimeout)
		defer cancel()
	}
	if err := utils.MakeDir(outputDir); err != nil {
		return "", nil, errors.Wrap(err, errors.CategoryFileIO, "creating %s", outputDir)
	}

	probe, err := ytdlp.New().DumpSingleJSON().NoPlaylist().NoWarnings().Run(ctx, youtubeURL)
	if err != nil {
		return "", nil, ytdlpError(ctx, err, "reading video metadata")
	}
	var info VideoInfo
	if err := json.Unmarshal([]byte(probe.Stdout), &info); err != nil {
		return "", nil, errors.Wrap(err, errors.CategoryAudio, "parsing yt-dlp metadata")
	}
	if info.ID == "" {
		return "", nil, errors.Wrap(errors.New("empty id"), errors.CategoryAudio, "parsing yt-dlp metadata")
	}
	info.normalize()
	if info.Title == "" {
		return "", nil, errors.Wrap(errors.New("empty title"), errors.CategoryAudio, "parsing yt-dlp metadata")
	}

	_, err = ytdlp.New().
		Format("ba").
		NoPlaylist().
		NoWarnings().
		ExtractAudio().
		AudioFormat("wav").
		Output(filepath.Join(outputDir, info.ID+".%(ext)s")).
		Run(ctx, youtubeURL)
	if err != nil {
		return "", nil, ytdlpError(ctx, err, "downloading audio")
	}

	path := filepath.Join(outputDir, info.ID+".wav")
	if _, err := os.Stat(path); err != nil {
		return "", nil, errors.Wrap(err, errors.CategoryFileIO, "locating download of %s", info.ID)
	}
	return path, &info, nil
}

func ytdlpError(ctx context.Context, err error, action string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return errors.Wrap(err, errors.CategoryAudio, "yt-dlp: %s", action)
}
