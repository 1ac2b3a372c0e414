package errors

import (
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractionErrorMessageAndUnwrap(t *testing.T) {
	err := NewExtractionError("clip.wav", "cannot decode", io.ErrUnexpectedEOF)

	assert.Equal(t, "extraction failed for clip.wav: cannot decode: unexpected EOF", err.Error())
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, CategoryAudio, CategoryOf(err))
}

func TestIsExtractionThroughWrapping(t *testing.T) {
	base := NewExtractionError("", "silent input", nil)
	wrapped := fmt.Errorf("recognize: %w", base)

	assert.True(t, IsExtraction(wrapped))
	assert.False(t, IsInvalidBundle(wrapped))
	assert.Equal(t, "extraction failed: silent input", base.Error())
}

func TestInvalidBundleError(t *testing.T) {
	err := NewInvalidBundleError("contrast_mean", "expected %d values, got %d", 7, 0)

	assert.Equal(t, "invalid feature bundle: contrast_mean: expected 7 values, got 0", err.Error())
	assert.True(t, IsCategory(err, CategoryValidation))
	assert.True(t, IsInvalidBundle(fmt.Errorf("query: %w", err)))
}

func TestWrapCategory(t *testing.T) {
	assert.Nil(t, Wrap(nil, CategoryDatabase, "ignored"))

	err := Wrap(io.EOF, CategoryDatabase, "loading track %s", "abc")
	assert.Equal(t, "loading track abc: EOF", err.Error())
	assert.True(t, IsCategory(err, CategoryDatabase))
	assert.ErrorIs(t, err, io.EOF)
}

func TestSentinels(t *testing.T) {
	err := fmt.Errorf("track abc: %w", ErrNotFound)
	assert.True(t, Is(err, ErrNotFound))
	assert.False(t, Is(io.EOF, ErrNotFound))
	assert.Equal(t, CategoryNotFound, CategoryOf(err))
	assert.Equal(t, CategoryGeneric, CategoryOf(io.EOF))
}
