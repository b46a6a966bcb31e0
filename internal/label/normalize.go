// Package label extracts the candidate label text from raw recognizer output.
package label

import (
	"regexp"
	"strings"
)

var (
	leadingMarker = regexp.MustCompile(`(?i)^to:\s*`)
	anyMarker     = regexp.MustCompile(`(?i)to:`)
)

// keepAfterLastStar is how many characters survive after the last asterisk,
// enough for an item count marker such as "*3x".
const keepAfterLastStar = 2

// Normalize cleans recognized label text. It never fails; empty input gives
// empty output.
func Normalize(raw string) string {
	text := leadingMarker.ReplaceAllString(raw, "")

	// Duplicated print blocks repeat the carrier marker, the last block wins.
	if parts := anyMarker.Split(text, -1); len(parts) >= 2 {
		text = strings.TrimSpace(parts[len(parts)-1])
	}

	text = strings.Trim(text, "*")

	return truncateAfterLastStar(text)
}

func truncateAfterLastStar(text string) string {
	idx := strings.LastIndex(text, "*")
	if idx < 0 {
		return text
	}
	tail := []rune(text[idx+1:])
	if len(tail) > keepAfterLastStar {
		tail = tail[:keepAfterLastStar]
	}
	return text[:idx+1] + string(tail)
}
