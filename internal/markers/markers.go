// Package markers defines the sentinel vocabulary shared between the prompt
// templates and the completion/extraction pipeline. The remote assistant is
// instructed to emit these tokens verbatim; everything downstream polls for
// them instead of guessing at render state.
package markers

// Sentinel tokens the assistant is instructed to emit.
const (
	// Checkpoint signals the end of the phase-1 analysis turn.
	Checkpoint = "ANALYSIS_CHECKPOINT_REACHED"

	// Conclusion signals the end of the phase-2 output turn.
	Conclusion = "THIS_CONCLUDES_THE_ANALYSIS"

	// TextBlock prefixes the tweet-ready summary block.
	TextBlock = "TWITTER_TEXT:"

	// ChartBlock prefixes the rendered-chart section. It doubles as a
	// terminator when collecting the text block.
	ChartBlock = "HTML_CHART"
)

// Operator-authored content carries this role attribute somewhere in its
// ancestor chain. Matches inside such subtrees are the operator's own prompt
// echoing back and must be discarded.
const (
	OperatorRoleAttr  = "data-message-role"
	OperatorRoleValue = "user"

	// OperatorAncestorDepth bounds the ancestor walk when classifying a
	// matched element.
	OperatorAncestorDepth = 10
)

// TerminatorPrefixes end collection of the tweet text block. The bold
// variants cover markdown rendering of the same tokens; the prose prefixes
// are boilerplate the assistant tends to append after the block.
var TerminatorPrefixes = []string{
	"**" + Conclusion + "**",
	Conclusion,
	"**" + ChartBlock + "**",
	ChartBlock,
	"View Report",
	"Based on my comprehensive analysis",
}

// IsTerminatorLine reports whether a trimmed line ends text-block collection.
func IsTerminatorLine(line string) bool {
	for _, p := range TerminatorPrefixes {
		if len(line) >= len(p) && line[:len(p)] == p {
			return true
		}
	}
	return false
}
