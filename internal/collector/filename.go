package collector

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

const (
	// maxFileNameLen is the cap for a file name including its extension, in characters.
	maxFileNameLen = 200
	defaultExt     = ".mp4"
)

var (
	illegalFileChars = regexp.MustCompile(`[<>:"/\\|?*]`)
	whitespaceRun    = regexp.MustCompile(`\s+`)
)

// BuildFileName turns a video title into a safe file name, keeping the extension
// of the original file name (".mp4" when it has none). An unusable title falls
// back to the original name, then to video_<id>.
func BuildFileName(title, originalName string, messageID int) string {
	ext := filepath.Ext(originalName)
	if ext == "" {
		ext = defaultExt
	}

	safe := illegalFileChars.ReplaceAllString(title, "")
	safe = whitespaceRun.ReplaceAllString(strings.TrimSpace(safe), "_")
	safe = strings.Trim(safe, ".")

	if safe == "" {
		if base := filepath.Base(originalName); originalName != "" && base != "." && !illegalFileChars.MatchString(base) {
			return base
		}
		return fmt.Sprintf("video_%d%s", messageID, ext)
	}

	if r := []rune(safe); len(r) > maxFileNameLen-len([]rune(ext)) {
		safe = string(r[:maxFileNameLen-len([]rune(ext))])
	}
	return safe + ext
}

// withSuffix inserts _<messageID> before the extension.
func withSuffix(name string, messageID int) string {
	ext := filepath.Ext(name)
	return fmt.Sprintf("%s_%d%s", strings.TrimSuffix(name, ext), messageID, ext)
}
