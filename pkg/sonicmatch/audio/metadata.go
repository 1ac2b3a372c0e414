package audio

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dhowden/tag"

	"github.com/himanishpuri/SonicMatch/pkg/errors"
)

// Metadata describes an audio file as reported by its tags or by ffprobe.
type Metadata struct {
	Filename    string
	Title       string
	Artist      string
	Album       string
	Genre       string
	DurationSec float64
	SampleRate  int
	Channels    int
	BitDepth    int
	Format      string
}

// probeTimeout bounds an ffprobe call when the caller set no deadline.
const probeTimeout = 5 * time.Second

type probeReport struct {
	Format  probeFormat   `json:"format"`
	Streams []probeStream `json:"streams"`
}

type probeFormat struct {
	Name     string            `json:"format_name"`
	Duration string            `json:"duration"`
	Tags     map[string]string `json:"tags"`
}

type probeStream struct {
	CodecType     string            `json:"codec_type"`
	SampleRate    string            `json:"sample_rate"`
	Channels      int               `json:"channels"`
	BitsPerSample int               `json:"bits_per_sample"`
	Tags          map[string]string `json:"tags"`
}

// tag looks key up in the container tags, then in the audio stream tags.
// Vorbis and FLAC files report upper-case keys, so the lookup ignores case.
func (r *probeReport) tag(stream *probeStream, key string) string {
	for _, tags := range []map[string]string{r.Format.Tags, stream.Tags} {
		for k, v := range tags {
			if strings.EqualFold(k, key) && strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v)
			}
		}
	}
	return ""
}

func (r *probeReport) audioStream() (*probeStream, bool) {
	for i := range r.Streams {
		if r.Streams[i].CodecType == "audio" {
			return &r.Streams[i], true
		}
	}
	return nil, false
}

// ReadMetadataFFmpeg probes path with ffprobe. It fails when ffprobe is
// missing or the file holds no audio stream.
func ReadMetadataFFmpeg(ctx context.Context, path string) (*Metadata, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, probeTimeout)
		defer cancel()
	}

	out, err := exec.CommandContext(ctx, "ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format", "-show_streams",
		path,
	).Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.Wrap(err, errors.CategoryAudio, "ffprobe %s", filepath.Base(path))
	}

	var report probeReport
	if err := json.Unmarshal(out, &report); err != nil {
		return nil, errors.Wrap(err, errors.CategoryAudio, "parsing ffprobe output")
	}
	stream, ok := report.audioStream()
	if !ok {
		return nil, errors.Wrap(errors.New("no audio stream"), errors.CategoryAudio, "probing %s", filepath.Base(path))
	}

	duration, _ := strconv.ParseFloat(report.Format.Duration, 64)
	rate, _ := strconv.Atoi(stream.SampleRate)
	return &Metadata{
		Filename:    filepath.Base(path),
		Title:       report.tag(stream, "title"),
		Artist:      report.tag(stream, "artist"),
		Album:       report.tag(stream, "album"),
		Genre:       report.tag(stream, "genre"),
		DurationSec: duration,
		SampleRate:  rate,
		Channels:    stream.Channels,
		BitDepth:    stream.BitsPerSample,
		Format:      report.Format.Name,
	}, nil
}

// ReadTags reads embedded ID3, MP4, FLAC or OGG tags without shelling out.
func ReadTags(path string) (*Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return nil, err
	}
	return &Metadata{
		Filename: filepath.Base(path),
		Title:    strings.TrimSpace(m.Title()),
		Artist:   strings.TrimSpace(m.Artist()),
		Album:    strings.TrimSpace(m.Album()),
		Genre:    strings.TrimSpace(m.Genre()),
		Format:   string(m.FileType()),
	}, nil
}

// ResolveTitleArtist fills the empty values of title and artist from
// embedded tags, then ffprobe, then the file name ("Artist - Title.ext").
func ResolveTitleArtist(ctx context.Context, path, title, artist string) (string, string) {
	if title != "" && artist != "" {
		return title, artist
	}

	if m, err := ReadTags(path); err == nil {
		title, artist = fill(title, m.Title), fill(artist, m.Artist)
	}
	if title == "" || artist == "" {
		if m, err := ReadMetadataFFmpeg(ctx, path); err == nil {
			title, artist = fill(title, m.Title), fill(artist, m.Artist)
		}
	}
	if title == "" || artist == "" {
		base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		if a, t, ok := strings.Cut(base, " - "); ok {
			title, artist = fill(title, strings.TrimSpace(t)), fill(artist, strings.TrimSpace(a))
		} else {
			title = fill(title, base)
		}
	}
	return title, fill(artist, "Unknown Artist")
}

func fill(cur, candidate string) string {
	if cur != "" {
		return cur
	}
	return candidate
}
