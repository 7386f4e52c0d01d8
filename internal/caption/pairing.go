package caption

import (
	"strings"

	"github.com/blockedby/tgvideo/internal/telegram"
)

// Window bounds how far from a video the description search looks.
// Messages are ordered newest first, so Older counts positions after the video
// and Newer counts positions before it.
type Window struct {
	Older int
	Newer int
}

// DefaultWindow looks at up to 10 older messages, then up to 5 newer ones.
var DefaultWindow = Window{Older: 10, Newer: 5}

// FindDescription returns the text of the nearest caption message for target
// using DefaultWindow. See Window.FindDescription.
func FindDescription(messages []*telegram.Message, target *telegram.Message) (string, bool) {
	return DefaultWindow.FindDescription(messages, target)
}

// FindDescription locates target in messages (newest first) and returns the body
// of the closest older non-video message with text, falling back to the closest
// newer one. Video messages are never used as descriptions.
func (w Window) FindDescription(messages []*telegram.Message, target *telegram.Message) (string, bool) {
	if target == nil {
		return "", false
	}

	pos := -1
	for i, m := range messages {
		if m != nil && m.ID == target.ID {
			pos = i
			break
		}
	}
	if pos < 0 {
		return "", false
	}

	for i := 1; i <= w.Older && pos+i < len(messages); i++ {
		if text, ok := descriptionOf(messages[pos+i]); ok {
			return text, true
		}
	}
	for i := 1; i <= w.Newer && pos-i >= 0; i++ {
		if text, ok := descriptionOf(messages[pos-i]); ok {
			return text, true
		}
	}
	return "", false
}

func descriptionOf(m *telegram.Message) (string, bool) {
	if m == nil || m.IsVideo() {
		return "", false
	}
	text := m.Body()
	if strings.TrimSpace(text) == "" {
		return "", false
	}
	return text, true
}
