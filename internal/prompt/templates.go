// Package prompt owns everything sent to the remote assistant: the two-phase
// instruction templates, the analysis prompt catalog with its rotation
// strategies, and the condensed identifiers recorded in the history ledger.
package prompt

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Substitution points in the phase-1 template.
const (
	TopicPlaceholder   = "{{ANALYSIS_PROMPT}}"
	HistoryPlaceholder = "{{PROMPT_HISTORY}}"
)

// ErrMissingPlaceholder marks a template that lost one of its substitution
// points. This is a configuration error, not a runtime condition; callers
// abort instead of submitting a half-formed prompt.
var ErrMissingPlaceholder = errors.New("template missing substitution point")

const defaultPhase1 = `You are a crypto analyst preparing a data-driven analysis for a social post.

` + TopicPlaceholder + `

These topics were covered recently. Pick an angle that does not repeat them:
` + HistoryPlaceholder + `

Work through the data step by step and keep your findings in this conversation.
Do not produce the final summary or any charts yet.

When your analysis is complete, end your message with exactly:
ANALYSIS_CHECKPOINT_REACHED`

const defaultPhase2 = `Now produce the final deliverable from the analysis above. Respond with:

HTML_CHART:

[Complete HTML with Highcharts, 1200x675px, clean styling]

Requirements:

- Always include the chart with the response

- Complete the deliverable in one response

- Render the HTML as an artifact (NOT a code block)

- Use high-contrast colors: ['#8B5CF6', '#EC4899', '#06B6D4', '#F59E0B', '#EF4444', '#10B981', '#6366F1', '#F97316']

- White text on dark cards (background:#334155), dark borders, high contrast gradients

- Validate data before charting; skip the chart if the data is not valid

MAKE SURE THE BOTTOM FOLLOWS THIS STRUCTURE EXACTLY:

TWITTER_TEXT: [Concise bullet format with bullet symbol, each line under 50 chars, total under 260]

Format: "[Topic]:

 - [Metric]:

 - [Metric]:

 - [Metric]: "

End with: **THIS_CONCLUDES_THE_ANALYSIS**`

// Templates holds the two phase instructions. Phase1 must carry both
// substitution points; Phase2 is sent verbatim.
type Templates struct {
	Phase1 string `yaml:"phase1"`
	Phase2 string `yaml:"phase2"`
}

// DefaultTemplates returns the built-in instruction templates.
func DefaultTemplates() Templates {
	return Templates{Phase1: defaultPhase1, Phase2: defaultPhase2}
}

// LoadTemplates reads template overrides from a YAML file. Empty fields fall
// back to the defaults; the result is validated before use.
func LoadTemplates(path string) (Templates, error) {
	t := DefaultTemplates()

	data, err := os.ReadFile(path)
	if err != nil {
		return t, fmt.Errorf("read templates %s: %w", path, err)
	}
	var override Templates
	if err := yaml.Unmarshal(data, &override); err != nil {
		return t, fmt.Errorf("parse templates %s: %w", path, err)
	}
	if override.Phase1 != "" {
		t.Phase1 = override.Phase1
	}
	if override.Phase2 != "" {
		t.Phase2 = override.Phase2
	}

	if err := t.Validate(); err != nil {
		return t, err
	}
	return t, nil
}

// Validate checks the phase-1 template still carries its substitution points.
func (t Templates) Validate() error {
	if !strings.Contains(t.Phase1, HistoryPlaceholder) {
		return fmt.Errorf("%w: %s", ErrMissingPlaceholder, HistoryPlaceholder)
	}
	if !strings.Contains(t.Phase1, TopicPlaceholder) {
		return fmt.Errorf("%w: %s", ErrMissingPlaceholder, TopicPlaceholder)
	}
	return nil
}

// BuildPhase1 fills the analysis template with the chosen topic prompt and
// the serialized history. Fails when a substitution point is missing.
func (t Templates) BuildPhase1(topic string, history []string) (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}
	out := strings.Replace(t.Phase1, TopicPlaceholder, strings.TrimSpace(topic), 1)
	out = strings.Replace(out, HistoryPlaceholder, SerializeHistory(history), 1)
	return out, nil
}

// BuildPhase2 returns the output-phase instructions.
func (t Templates) BuildPhase2() string {
	return t.Phase2
}

// SerializeHistory renders condensed history entries as a bulleted list for
// template substitution. An empty ledger renders as "(none yet)".
func SerializeHistory(condensed []string) string {
	if len(condensed) == 0 {
		return "(none yet)"
	}
	lines := make([]string, 0, len(condensed))
	for _, c := range condensed {
		lines = append(lines, "- "+c)
	}
	return strings.Join(lines, "\n")
}
