// Package twitter turns extracted text into a tweet and posts it: format
// and truncate, upload the chart screenshot, create the tweet, and append
// the outcome to the daily post log.
package twitter

import (
	"strings"

	"flipbot/internal/extract"
)

// MaxTweetLen is the platform's hard content limit.
const MaxTweetLen = 280

// truncationSuffix marks a tweet that lost trailing lines to the limit.
const truncationSuffix = "..."

// Draft is the deterministic publish payload derived from a session's
// extraction. Content always fits MaxTweetLen.
type Draft struct {
	Content   string
	ImagePath string
	LinkURL   string
}

// BuildDraft normalizes and truncates text into a postable draft.
func BuildDraft(text, imagePath, linkURL string) Draft {
	return Draft{
		Content:   Truncate(Normalize(text), MaxTweetLen),
		ImagePath: imagePath,
		LinkURL:   linkURL,
	}
}

// Normalize cleans extracted text for posting: strip a leading colon left
// over from the marker split, split single-line multi-bullet text into
// title plus bullet lines, drop blank-line runs.
func Normalize(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimLeft(text, ": ")
	text = extract.NormalizeBullets(text)

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, " \t")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// Truncate fits text into limit by dropping whole trailing lines and
// appending the suffix. Never cuts mid-line: a tweet either carries a whole
// bullet or loses it. A single oversized line falls back to a rune cut.
func Truncate(text string, limit int) string {
	if len([]rune(text)) <= limit {
		return text
	}

	lines := strings.Split(text, "\n")
	for len(lines) > 1 {
		lines = lines[:len(lines)-1]
		candidate := strings.Join(lines, "\n") + truncationSuffix
		if len([]rune(candidate)) <= limit {
			return candidate
		}
	}

	runes := []rune(lines[0])
	cut := limit - len([]rune(truncationSuffix))
	if cut < 0 {
		cut = 0
	}
	if len(runes) > cut {
		runes = runes[:cut]
	}
	return strings.TrimRight(string(runes), " ") + truncationSuffix
}
