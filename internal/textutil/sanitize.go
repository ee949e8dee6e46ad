package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// fileNameReplacer swaps filesystem-unsafe characters for look-alikes.
var fileNameReplacer = strings.NewReplacer(
	"/", " ",
	"\\", " ",
	":", "：",
	"*", "⭐",
	"?", "？",
	"\"", "'",
	"<", "《",
	">", "》",
	"|", "丨",
	".", "·",
)

// SanitizeFileName makes name safe to use as a single path segment. Control
// characters are removed and the result is trimmed.
func SanitizeFileName(name string) string {
	name = norm.NFC.String(strings.TrimSpace(name))
	if name == "" {
		return ""
	}
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	return strings.TrimSpace(fileNameReplacer.Replace(name))
}

// EpisodeTitle builds the directory name for an episode from its short title
// (usually the number) and its full title. When both are the same only one is
// kept.
func EpisodeTitle(shortTitle, title string) string {
	short := SanitizeFileName(shortTitle)
	full := SanitizeFileName(title)
	switch {
	case short == full, short == "":
		return full
	case full == "":
		return short
	default:
		return strings.TrimSpace(short + " " + full)
	}
}
