package protocol

import (
	"regexp"
	"strings"
	"unicode"
)

const (
	MaxNameLength = 24
	DefaultName   = "racer"
)

var whitespace = regexp.MustCompile(`\s+`)

// SanitizeName cleans up a display name sent by a client: non-printable
// characters are dropped, runs of whitespace collapse to one space and the
// result is cut to MaxNameLength runes.
func SanitizeName(name string) string {
	var builder strings.Builder
	for _, r := range name {
		if unicode.IsPrint(r) || unicode.IsSpace(r) {
			builder.WriteRune(r)
		}
	}

	cleaned := strings.TrimSpace(whitespace.ReplaceAllLiteralString(builder.String(), " "))

	runes := []rune(cleaned)
	if len(runes) > MaxNameLength {
		cleaned = strings.TrimSpace(string(runes[:MaxNameLength]))
	}
	return cleaned
}
