package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProgressLine(t *testing.T) {
	line := progressLine(50_000_000, 100_000_000, 10*time.Second)
	assert.Contains(t, line, "[===============               ]")
	assert.Contains(t, line, " 50%")
	assert.Contains(t, line, "50 MB / 100 MB")
	assert.Contains(t, line, "5.0 MB/s")

	assert.Contains(t, progressLine(10, 0, 0), "  0%")
	assert.Contains(t, progressLine(200, 100, time.Second), "100%")
}

func TestProgressBar_Throttles(t *testing.T) {
	out := &bytes.Buffer{}
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bar := NewProgressBar(out)
	bar.now = func() time.Time { return now }

	bar.Start("Episode One", 1000)
	bar.Update(100, 1000)
	bar.Update(200, 1000) // same instant, dropped
	now = now.Add(time.Second)
	bar.Update(300, 1000)
	bar.Update(1000, 1000) // final update always drawn
	bar.Finish()

	text := out.String()
	assert.True(t, strings.HasPrefix(text, "Episode One (1.0 kB)\n"))
	assert.Equal(t, 3, strings.Count(text, "\r"))
	assert.True(t, strings.HasSuffix(text, "\n"))
	assert.Contains(t, text, "100%")
}

func TestProgressBar_FinishWithoutUpdates(t *testing.T) {
	out := &bytes.Buffer{}
	bar := NewProgressBar(out)
	bar.Start(strings.Repeat("a", 50), 0)
	bar.Finish()
	assert.Equal(t, strings.Repeat("a", 40)+"... (0 B)\n", out.String())
}

func TestShorten(t *testing.T) {
	assert.Equal(t, "abc", shorten("abc", 3))
	assert.Equal(t, "ab...", shorten("abc", 2))
	assert.Equal(t, "жж...", shorten("жжж", 2))
}
