package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newBufferLogger(level LogLevel) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	l := New(Config{Level: level, Output: &buf})
	return l, &buf
}

func TestLevelFiltering(t *testing.T) {
	l, buf := newBufferLogger(WARN)

	l.Infof("dropped %d", 1)
	l.Warnf("kept %d", 2)
	l.Errorf("kept %d", 3)

	out := buf.String()
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, out, "[WARN] kept 2")
	assert.Contains(t, out, "[ERROR] kept 3")
}

func TestWithPrefix(t *testing.T) {
	l, buf := newBufferLogger(DEBUG)
	l.With("[recognition]").With("[scan]").Debugf("candidates=%d", 4)

	assert.True(t, strings.HasSuffix(strings.TrimSpace(buf.String()), "[DEBUG] [recognition] [scan] candidates=4"))
}

func TestFatalCallsExit(t *testing.T) {
	l, buf := newBufferLogger(INFO)
	code := -1
	l.exit = func(c int) { code = c }

	l.Fatalf("boom")
	assert.Equal(t, 1, code)
	assert.Contains(t, buf.String(), "[FATAL] boom")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("debug"))
	assert.Equal(t, WARN, ParseLevel("warning"))
	assert.Equal(t, ERROR, ParseLevel(" ERROR "))
	assert.Equal(t, INFO, ParseLevel("chatty"))
}

func TestDiscardWritesNothing(t *testing.T) {
	l := Discard()
	l.Errorf("nothing to see")
	assert.Equal(t, FATAL+1, l.Level())
}
