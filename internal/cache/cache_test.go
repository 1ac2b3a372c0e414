package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/himanishpuri/SonicMatch/internal/testutil"
	"github.com/himanishpuri/SonicMatch/pkg/models"
)

func TestBundlesSetGetCopies(t *testing.T) {
	c := NewBundles(time.Minute)
	b := testutil.Bundle(1)
	c.Set("t1", b)

	b.Tempo = 999
	got, ok := c.Get("t1")
	require.True(t, ok)
	assert.NotEqual(t, 999.0, got.Tempo)

	got.Tempo = 555
	again, _ := c.Get("t1")
	assert.NotEqual(t, 555.0, again.Tempo)

	c.Set("nil", nil)
	_, ok = c.Get("nil")
	assert.False(t, ok)
}

func TestBundlesDeleteClearAndExpire(t *testing.T) {
	c := NewBundles(50 * time.Millisecond)
	c.Set("a", testutil.Bundle(1))
	c.Set("b", testutil.Bundle(2))
	assert.Equal(t, 2, c.Len())

	c.Delete("a")
	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Clear()
	assert.Zero(t, c.Len())

	c.Set("c", testutil.Bundle(3))
	time.Sleep(80 * time.Millisecond)
	_, ok = c.Get("c")
	assert.False(t, ok)
}

func TestStoreRoundTrip(t *testing.T) {
	s, err := OpenStore(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	_, ok, err := s.Get("missing")
	require.NoError(t, err)
	assert.False(t, ok)

	entry := &Entry{
		Bundle:   testutil.Bundle(4),
		Analysis: &models.AudioAnalysis{DurationMs: 1234, Format: "WAV"},
	}
	require.NoError(t, s.Put("abc123", entry))

	got, ok, err := s.Get("abc123")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, entry.Bundle.Values(), got.Bundle.Values())
	assert.Equal(t, 1234, got.Analysis.DurationMs)

	n, err := s.Len()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, s.Delete("abc123"))
	_, ok, err = s.Get("abc123")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStoreRejectsInvalidBundle(t *testing.T) {
	s, err := OpenStore(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	bad := testutil.Bundle(5)
	bad.MFCCMean = nil
	assert.Error(t, s.Put("k", &Entry{Bundle: bad}))
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenStore(dir)
	require.NoError(t, err)
	require.NoError(t, s.Put("k", &Entry{Bundle: testutil.Bundle(6)}))
	require.NoError(t, s.Close())

	s, err = OpenStore(dir)
	require.NoError(t, err)
	defer s.Close()
	_, ok, err := s.Get("k")
	require.NoError(t, err)
	assert.True(t, ok)
}
