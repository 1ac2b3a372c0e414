package audio

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/himanishpuri/SonicMatch/pkg/errors"
	"github.com/himanishpuri/SonicMatch/pkg/utils"
)

// convertTimeout bounds an ffmpeg run when the caller set no deadline.
const convertTimeout = time.Minute

// ConvertToMonoWAV transcodes inputPath with ffmpeg into a new mono 16-bit
// PCM WAV file at sampleRate inside tempDir. The caller owns the returned
// file. A zero sampleRate means AnalysisSampleRate.
func ConvertToMonoWAV(ctx context.Context, inputPath, tempDir string, sampleRate int) (string, error) {
	if sampleRate <= 0 {
		sampleRate = AnalysisSampleRate
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, convertTimeout)
		defer cancel()
	}

	if err := utils.MakeDir(tempDir); err != nil {
		return "", errors.Wrap(err, errors.CategoryFileIO, "creating %s", tempDir)
	}
	out, err := os.CreateTemp(tempDir, "sonicmatch-*.wav")
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryFileIO, "creating conversion target")
	}
	outputPath := out.Name()
	out.Close()

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-y", "-v", "error",
		"-i", inputPath,
		"-vn",
		"-ac", "1",
		"-ar", strconv.Itoa(sampleRate),
		"-c:a", "pcm_s16le",
		"-f", "wav",
		outputPath,
	)
	if msg, err := cmd.CombinedOutput(); err != nil {
		_ = utils.DeleteFile(outputPath)
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", errors.Wrap(fmt.Errorf("%w: %s", err, msg), errors.CategoryAudio, "ffmpeg")
	}
	return outputPath, nil
}
