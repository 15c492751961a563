package extract

import "strings"

// Literal fragments of the instruction template. Their presence in an
// extracted block means the assistant echoed the prompt's format section back
// instead of filling it in.
var placeholderMarkers = []string{
	"concise bullet format",
	`format: "[topic]`,
	"[topic]:",
	"[metric]",
	"html_chart",
	"this_concludes_the_analysis",
	"key fields:",
	"add a quick 260 character summary",
}

// IsPlaceholder reports whether text is template scaffolding rather than real
// content. Matching is case-insensitive over a whitespace-flattened copy; the
// bracket check catches templates whose literal wording drifted.
func IsPlaceholder(text string) bool {
	normalized := strings.ToLower(strings.TrimSpace(text))
	normalized = strings.ReplaceAll(normalized, "\n", " ")
	if normalized == "" {
		return false
	}

	for _, m := range placeholderMarkers {
		if strings.Contains(normalized, m) {
			return true
		}
	}

	// Real summaries rarely contain brackets at all; templates are dense with
	// [placeholder] slots. Threshold scales with length, floor of two.
	brackets := strings.Count(normalized, "[") + strings.Count(normalized, "]")
	threshold := len([]rune(normalized)) / 15
	if threshold < 2 {
		threshold = 2
	}
	return brackets >= threshold
}
