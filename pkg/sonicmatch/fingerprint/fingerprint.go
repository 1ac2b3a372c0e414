// Package fingerprint derives identity hashes from feature bundles and
// content digests from audio files.
//
// A fingerprint hash only says two bundles are bit-identical. It carries
// no notion of perceptual similarity; that is the scorer's job.
package fingerprint

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/OneOfOne/xxhash"

	"github.com/himanishpuri/SonicMatch/pkg/models"
)

// ToBytes serializes the numeric fields of b in canonical order, each as
// a little-endian IEEE-754 float64.
func ToBytes(b *models.FeatureBundle) []byte {
	vals := b.Values()
	buf := make([]byte, 8*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(v))
	}
	return buf
}

// Hash returns the hex SHA-256 digest of ToBytes(b).
func Hash(b *models.FeatureBundle) string {
	sum := sha256.Sum256(ToBytes(b))
	return hex.EncodeToString(sum[:])
}

// Build validates b and returns its fingerprint. The bundle inside the
// fingerprint is a copy.
func Build(b *models.FeatureBundle) (models.Fingerprint, error) {
	if err := b.Validate(); err != nil {
		return models.Fingerprint{}, err
	}
	return models.Fingerprint{Hash: Hash(b), Bundle: *b.Clone()}, nil
}

// FileDigest returns the xxhash64 of the file content as 16 hex digits.
func FileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s for digest: %w", path, err)
	}
	defer f.Close()

	h := xxhash.New64()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("reading %s for digest: %w", path, err)
	}
	return fmt.Sprintf("%016x", h.Sum64()), nil
}
