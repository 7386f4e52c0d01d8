// Package caption derives video titles and descriptions from nearby channel messages.
package caption

import (
	"regexp"
	"strings"
)

// maxTitleLen caps titles taken from a plain line or the whitespace fallback, in characters.
const maxTitleLen = 100

var (
	boldRe     = regexp.MustCompile(`\*\*(.+?)\*\*`)
	emphasisRe = regexp.MustCompile(`\*\*|\*|__|_`)
	headingRe  = regexp.MustCompile(`\*\*|\*|__|_|#`)
)

// ExtractTitle derives a short display title from description text.
// The first rule that yields a non-empty title wins:
//  1. the first **bold** span
//  2. the first line after the first "|", emphasis markers removed
//  3. the first line longer than 3 characters, markers removed, capped at 100 characters
//  4. the whole text with whitespace collapsed, capped at 100 characters
func ExtractTitle(text string) string {
	if text == "" {
		return ""
	}

	if title := boldTitle(text); title != "" {
		return title
	}
	if title := titleAfterPipe(text); title != "" {
		return title
	}
	if title := firstLineTitle(text); title != "" {
		return title
	}
	return truncate(strings.Join(strings.Fields(text), " "), maxTitleLen)
}

func boldTitle(text string) string {
	m := boldRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

func titleAfterPipe(text string) string {
	_, after, ok := strings.Cut(text, "|")
	if !ok {
		return ""
	}
	title := emphasisRe.ReplaceAllString(strings.TrimSpace(after), "")
	title = strings.TrimSpace(title)
	first, _, _ := strings.Cut(title, "\n")
	return strings.TrimSpace(first)
}

func firstLineTitle(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if len([]rune(line)) <= 3 {
			continue
		}
		if title := strings.TrimSpace(headingRe.ReplaceAllString(line, "")); title != "" {
			return truncate(title, maxTitleLen)
		}
	}
	return ""
}

// truncate cuts s to at most n characters.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
