// Package audio turns audio files into mono float64 signals at the
// analysis sample rate.
package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/tphakala/flac"
)

// AnalysisSampleRate is the rate every signal is resampled to before
// feature extraction.
const AnalysisSampleRate = 22050

// Signal is decoded mono audio.
type Signal struct {
	Samples    []float64 // normalized to [-1, 1]
	SampleRate int
	Channels   int    // channel count of the source before downmix
	Format     string // wav, flac or the ffmpeg-converted source extension
}

// Duration returns the signal length in seconds.
func (s *Signal) Duration() float64 {
	if s == nil || s.SampleRate == 0 {
		return 0
	}
	return float64(len(s.Samples)) / float64(s.SampleRate)
}

// Loader decodes files. WAV and FLAC are read natively; anything else is
// converted through ffmpeg into TempDir first.
type Loader struct {
	TempDir string
}

// Load decodes path into a mono signal at its native sample rate.
func (l *Loader) Load(ctx context.Context, path string) (*Signal, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))

	switch ext {
	case "wav", "wave":
		sig, err := ReadWAV(path)
		if err == nil {
			return sig, nil
		}
		if !errors.Is(err, errUnsupportedWAV) {
			return nil, err
		}
		// float or exotic PCM; let ffmpeg normalise it
	case "flac":
		return ReadFLAC(path)
	}

	tempDir := l.TempDir
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	converted, err := ConvertToMonoWAV(ctx, path, tempDir, AnalysisSampleRate)
	if err != nil {
		return nil, fmt.Errorf("audio conversion failed: %w", err)
	}
	defer os.Remove(converted)

	sig, err := ReadWAV(converted)
	if err != nil {
		return nil, err
	}
	sig.Format = ext
	return sig, nil
}

var errUnsupportedWAV = errors.New("unsupported WAV encoding")

// ReadWAV decodes a PCM WAV file.
func ReadWAV(path string) (*Signal, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return DecodeWAV(f)
}

// DecodeWAV decodes PCM WAV data of 8, 16, 24 or 32 bits and averages all
// channels down to mono.
func DecodeWAV(r io.ReadSeeker) (*Signal, error) {
	decoder := wav.NewDecoder(r)
	decoder.ReadInfo()
	if !decoder.IsValidFile() {
		return nil, errors.New("invalid WAV file format")
	}
	if decoder.WavAudioFormat != 1 {
		return nil, fmt.Errorf("%w: audio format %d", errUnsupportedWAV, decoder.WavAudioFormat)
	}
	if decoder.NumChans == 0 {
		return nil, errors.New("WAV file declares zero channels")
	}
	if decoder.BitDepth == 8 {
		// unsigned samples
		return nil, fmt.Errorf("%w: 8-bit PCM", errUnsupportedWAV)
	}

	divisor, err := audioDivisor(int(decoder.BitDepth))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errUnsupportedWAV, err)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("reading PCM data: %w", err)
	}

	return &Signal{
		Samples:    downmix(buf, divisor),
		SampleRate: int(decoder.SampleRate),
		Channels:   int(decoder.NumChans),
		Format:     "wav",
	}, nil
}

func downmix(buf *audio.IntBuffer, divisor float64) []float64 {
	channels := buf.Format.NumChannels
	if channels < 1 {
		channels = 1
	}
	frames := len(buf.Data) / channels
	out := make([]float64, frames)
	scale := 1.0 / (divisor * float64(channels))
	for i := 0; i < frames; i++ {
		var sum int
		for c := 0; c < channels; c++ {
			sum += buf.Data[i*channels+c]
		}
		out[i] = float64(sum) * scale
	}
	return out
}

// ReadFLAC decodes a FLAC file frame by frame.
func ReadFLAC(path string) (*Signal, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	decoder, err := flac.NewDecoder(f)
	if err != nil {
		return nil, fmt.Errorf("opening FLAC stream: %w", err)
	}
	if decoder.NChannels < 1 {
		return nil, errors.New("FLAC stream declares zero channels")
	}

	divisor, err := audioDivisor(decoder.BitsPerSample)
	if err != nil {
		return nil, err
	}

	bytesPerSample := decoder.BitsPerSample / 8
	frameWidth := bytesPerSample * decoder.NChannels
	scale := 1.0 / (divisor * float64(decoder.NChannels))

	samples := make([]float64, 0, int(decoder.TotalSamples))
	for {
		frame, err := decoder.Next()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("decoding FLAC frame: %w", err)
		}

		for i := 0; i+frameWidth <= len(frame); i += frameWidth {
			var sum int64
			for c := 0; c < decoder.NChannels; c++ {
				sum += int64(pcmSample(frame[i+c*bytesPerSample:], decoder.BitsPerSample))
			}
			samples = append(samples, float64(sum)*scale)
		}
	}

	return &Signal{
		Samples:    samples,
		SampleRate: decoder.SampleRate,
		Channels:   decoder.NChannels,
		Format:     "flac",
	}, nil
}

// pcmSample reads one little-endian signed sample.
func pcmSample(b []byte, bitDepth int) int32 {
	switch bitDepth {
	case 8:
		return int32(int8(b[0]))
	case 16:
		return int32(int16(binary.LittleEndian.Uint16(b)))
	case 24:
		v := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
		if v&0x800000 != 0 {
			v |= ^0xFFFFFF
		}
		return v
	case 32:
		return int32(binary.LittleEndian.Uint32(b))
	}
	return 0
}

func audioDivisor(bitDepth int) (float64, error) {
	switch bitDepth {
	case 8:
		return 128.0, nil
	case 16:
		return 32768.0, nil
	case 24:
		return 8388608.0, nil
	case 32:
		return 2147483648.0, nil
	default:
		return 0, fmt.Errorf("unsupported audio bit depth: %d", bitDepth)
	}
}
