package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractYouTubeID(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://youtube.com/watch?v=dQw4w9WgXcQ&t=42s", "dQw4w9WgXcQ"},
		{"https://youtu.be/dQw4w9WgXcQ?si=abc", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/shorts/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://music.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
	}
	for _, tt := range tests {
		got, err := ExtractYouTubeID(tt.url)
		require.NoError(t, err, tt.url)
		assert.Equal(t, tt.want, got, tt.url)
	}

	for _, bad := range []string{
		"https://vimeo.com/12345",
		"https://www.youtube.com/watch",
		"https://youtu.be/short",
		"://bad",
	} {
		_, err := ExtractYouTubeID(bad)
		assert.Error(t, err, bad)
	}
}

func TestIsYouTubeURL(t *testing.T) {
	assert.True(t, IsYouTubeURL("https://www.youtube.com/watch?v=dQw4w9WgXcQ"))
	assert.True(t, IsYouTubeURL("https://youtu.be/dQw4w9WgXcQ"))
	assert.False(t, IsYouTubeURL("https://notyoutube.com.evil/watch"))
	assert.False(t, IsYouTubeURL("song.mp3"))
}

func TestListAudioFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.wav", "a.MP3", "notes.txt", filepath.Join("sub", "c.flac")} {
		path := filepath.Join(dir, name)
		require.NoError(t, MakeDir(filepath.Dir(path)))
		require.NoError(t, os.WriteFile(path, nil, 0o644))
	}

	flat, err := ListAudioFiles(dir, false)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.MP3"), filepath.Join(dir, "b.wav")}, flat)

	deep, err := ListAudioFiles(dir, true)
	require.NoError(t, err)
	assert.Len(t, deep, 3)

	_, err = ListAudioFiles(filepath.Join(dir, "missing"), true)
	assert.Error(t, err)
}

func TestFileHelpers(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "y.wav")
	require.NoError(t, os.WriteFile(dst, []byte("x"), 0o644))

	require.NoError(t, DeleteFile(dst))
	assert.NoFileExists(t, dst)
	assert.NoError(t, DeleteFile(dst), "deleting a missing file is not an error")
}

func TestUUID(t *testing.T) {
	id := GenerateUUID()
	assert.Len(t, id, 36)
	assert.Equal(t, "4", id[14:15])
	assert.NotEqual(t, id, GenerateUUID())
}
