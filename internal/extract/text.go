// Package extract locates the tweet-ready text block in a rendered chat
// response and normalizes it into canonical bullet form. Extraction is a
// strict fallback chain; the text transforms in this file are pure and apply
// identically no matter which stage produced the raw block.
package extract

import (
	"strings"
	"unicode"

	"flipbot/internal/markers"
)

// CanonicalBullet is the single glyph every bullet variant normalizes to.
const CanonicalBullet = "•"

var bulletGlyphs = map[rune]bool{
	'-': true,
	'*': true,
	'•': true,
	'◦': true,
	'▪': true,
	'▫': true,
}

// CollectBlock walks the raw element text line by line, starts collecting at
// the text-block marker, and stops at the first terminator line. Bullet lines
// stay separate lines; consecutive prose lines are joined with spaces.
func CollectBlock(text string) string {
	lines := strings.Split(text, "\n")

	var out []string
	prose := ""
	flushProse := func() {
		if prose != "" {
			out = append(out, prose)
			prose = ""
		}
	}

	collecting := false
	for _, raw := range lines {
		line := strings.TrimSpace(raw)

		if !collecting {
			if idx := strings.Index(line, markers.TextBlock); idx >= 0 {
				collecting = true
				if rest := strings.TrimSpace(line[idx+len(markers.TextBlock):]); rest != "" {
					prose = rest
				}
			}
			continue
		}

		if line == "" {
			continue
		}
		if markers.IsTerminatorLine(line) {
			break
		}
		// Section headers are rendering chrome, not content.
		if strings.HasPrefix(line, "##") {
			continue
		}
		line = strings.TrimPrefix(strings.TrimSuffix(line, "**"), "**")
		if line == "" {
			continue
		}

		if isBulletLine(line) {
			flushProse()
			out = append(out, line)
			continue
		}
		if prose == "" {
			prose = line
		} else {
			prose += " " + line
		}
	}
	flushProse()

	return strings.Join(out, "\n")
}

// Clean is the post-processing applied to every extraction stage's output:
// strip a redundant marker prefix, drop surrogate-pair emoji, normalize
// bullets. Returns "" when nothing survives.
func Clean(text string) string {
	text = strings.TrimSpace(text)
	if idx := strings.Index(text, markers.TextBlock); idx == 0 {
		text = strings.TrimSpace(text[len(markers.TextBlock):])
	}
	text = StripAstralRunes(text)
	text = NormalizeBullets(text)
	return strings.TrimSpace(text)
}

// StripAstralRunes removes code points outside the Basic Multilingual Plane
// (the ones encoded as surrogate pairs in the page's UTF-16 DOM strings),
// plus any stray unpaired surrogates. Emoji pictographs all live there.
func StripAstralRunes(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r > 0xFFFF || (r >= 0xD800 && r <= 0xDFFF) || r == unicode.ReplacementChar {
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}

// NormalizeBullets rewrites every bullet glyph variant to the canonical
// bullet with one trailing space. Lines holding more than one inline bullet
// are split into one line per bullet, with any text before the first bullet
// preserved as its own line. The transform is idempotent.
func NormalizeBullets(text string) string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		out = append(out, normalizeLine(strings.TrimRight(line, " \t"))...)
	}
	return strings.Join(out, "\n")
}

func normalizeLine(line string) []string {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return []string{""}
	}

	positions := bulletPositions(trimmed)
	switch {
	case len(positions) == 0:
		return []string{trimmed}

	case len(positions) == 1 && positions[0] == 0:
		rest := strings.TrimSpace(string([]rune(trimmed)[1:]))
		return []string{CanonicalBullet + " " + rest}

	case len(positions) == 1:
		// Single inline bullet: normalize the glyph in place, keep the line.
		runes := []rune(trimmed)
		runes[positions[0]] = '•'
		return []string{string(runes)}

	default:
		return splitBullets(trimmed, positions)
	}
}

// bulletPositions returns rune offsets of bullet glyphs that start the line
// or sit between spaces. Hyphens and asterisks embedded in words never count.
func bulletPositions(line string) []int {
	runes := []rune(line)
	var positions []int
	for i, r := range runes {
		if !bulletGlyphs[r] {
			continue
		}
		prevOK := i == 0 || unicode.IsSpace(runes[i-1])
		nextOK := i+1 < len(runes) && unicode.IsSpace(runes[i+1])
		if prevOK && nextOK {
			positions = append(positions, i)
		}
	}
	return positions
}

func splitBullets(line string, positions []int) []string {
	runes := []rune(line)
	var out []string

	if lead := strings.TrimSpace(string(runes[:positions[0]])); lead != "" {
		out = append(out, lead)
	}
	for i, pos := range positions {
		end := len(runes)
		if i+1 < len(positions) {
			end = positions[i+1]
		}
		segment := strings.TrimSpace(string(runes[pos+1 : end]))
		if segment != "" {
			out = append(out, CanonicalBullet+" "+segment)
		}
	}
	return out
}

func isBulletLine(line string) bool {
	runes := []rune(line)
	if len(runes) == 0 || !bulletGlyphs[runes[0]] {
		return false
	}
	return len(runes) > 1 && unicode.IsSpace(runes[1])
}
