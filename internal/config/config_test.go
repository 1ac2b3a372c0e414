package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/himanishpuri/SonicMatch/pkg/errors"
)

func newCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	AddFlags(cmd)
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	s, err := Load(newCmd(t))
	require.NoError(t, err)

	assert.Equal(t, "sonicmatch.sqlite3", s.DBPath)
	assert.Equal(t, 0.85, s.Threshold)
	assert.Equal(t, time.Hour, s.CacheTTL)
	assert.Equal(t, 8080, s.Port)
	assert.InDelta(t, 0.35, s.Weights.MFCC, 1e-12)
	assert.Equal(t, []string{"*"}, s.AllowedOrigins())
	assert.Len(t, s.Options(), 7)
}

func TestLoadPrecedence(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SONIC_THRESHOLD", "0.7")
	t.Setenv("SONIC_DB_PATH", "env.db")
	t.Setenv("SONIC_CACHE_TTL", "5m")

	s, err := Load(newCmd(t, "--threshold", "0.9"))
	require.NoError(t, err)
	assert.Equal(t, 0.9, s.Threshold, "flag beats env")
	assert.Equal(t, "env.db", s.DBPath)
	assert.Equal(t, 5*time.Minute, s.CacheTTL)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	file := filepath.Join(dir, "sonic.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
threshold: 0.8
origins: "http://a.example, http://b.example"
weights:
  mfcc: 0.4
  chroma: 0.2
  contrast: 0.2
  tempo: 0.1
  spectral: 0.1
`), 0o644))

	s, err := Load(newCmd(t, "--config", file))
	require.NoError(t, err)
	assert.Equal(t, 0.8, s.Threshold)
	assert.InDelta(t, 0.4, s.Weights.MFCC, 1e-12)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, s.AllowedOrigins())
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := Load(newCmd(t, "--threshold", "2"))
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))

	t.Setenv("SONIC_WEIGHTS_MFCC", "0.9")
	_, err = Load(newCmd(t))
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))

	_, err = Load(newCmd(t, "--config", "does-not-exist.yaml"))
	assert.Error(t, err)
}
