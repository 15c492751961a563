package extract

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"flipbot/internal/markers"
)

// Stage names which fallback produced the extracted text.
type Stage string

const (
	// StageMarker scoped the scan to elements carrying the text-block token.
	StageMarker Stage = "marker"
	// StageKeyword matched elements by analysis keywords when no marker
	// element survived.
	StageKeyword Stage = "keyword"
	// StagePageScan fell back to a line scan of the whole page body.
	StagePageScan Stage = "page_scan"
	// StageNone means every stage came up empty or placeholder-only.
	StageNone Stage = "none"
)

// pageScanWindow bounds how many content lines the body scan collects after
// the marker line.
const pageScanWindow = 10

// Keywords the second stage probes for when the marker token never rendered.
var fallbackKeywords = []string{
	"analysis",
	"blockchain",
	"ethereum",
	"solana",
	"bitcoin",
	"defi",
}

// Bounds on a keyword-stage candidate. Shorter is a nav fragment, longer is
// the whole transcript.
const (
	keywordCandidateMin = 30
	keywordCandidateMax = 1200
)

// Source is the page view the extractor reads. Implementations must already
// exclude operator-authored subtrees from their results.
type Source interface {
	// TextsContaining returns the visible text of assistant-authored elements
	// whose text contains token, innermost matches first.
	TextsContaining(ctx context.Context, token string) ([]string, error)

	// ContentBlocks returns the visible text of assistant message containers
	// in document order.
	ContentBlocks(ctx context.Context) ([]string, error)

	// BodyText returns the full visible text of the page body.
	BodyText(ctx context.Context) (string, error)
}

// Result is an extraction outcome. Text is empty when Stage is StageNone.
type Result struct {
	Text  string
	Stage Stage
}

// Engine runs the staged tweet-text extraction.
type Engine struct {
	log *zap.Logger
}

// New returns an Engine logging through log.
func New(log *zap.Logger) *Engine {
	return &Engine{log: log.Named("extract")}
}

// TweetText walks the fallback chain and returns the first clean,
// non-placeholder block. A stage whose page query fails is skipped, not
// fatal; only an empty chain yields StageNone.
func (e *Engine) TweetText(ctx context.Context, src Source) Result {
	if text := e.fromMarkerElements(ctx, src); text != "" {
		return Result{Text: text, Stage: StageMarker}
	}
	if text := e.fromKeywordElements(ctx, src); text != "" {
		return Result{Text: text, Stage: StageKeyword}
	}
	if text := e.fromPageScan(ctx, src); text != "" {
		return Result{Text: text, Stage: StagePageScan}
	}
	e.log.Warn("no tweet text found in any extraction stage")
	return Result{Stage: StageNone}
}

func (e *Engine) fromMarkerElements(ctx context.Context, src Source) string {
	texts, err := src.TextsContaining(ctx, markers.TextBlock)
	if err != nil {
		e.log.Warn("marker element query failed", zap.Error(err))
		return ""
	}
	for _, raw := range texts {
		if text := e.accept(CollectBlock(raw), StageMarker); text != "" {
			return text
		}
	}
	return ""
}

func (e *Engine) fromKeywordElements(ctx context.Context, src Source) string {
	for _, kw := range fallbackKeywords {
		texts, err := src.TextsContaining(ctx, kw)
		if err != nil {
			e.log.Warn("keyword element query failed",
				zap.String("keyword", kw), zap.Error(err))
			continue
		}
		for _, raw := range texts {
			n := len([]rune(strings.TrimSpace(raw)))
			if n < keywordCandidateMin || n > keywordCandidateMax {
				continue
			}
			if text := e.accept(raw, StageKeyword); text != "" {
				return text
			}
		}
	}
	return ""
}

func (e *Engine) fromPageScan(ctx context.Context, src Source) string {
	body, err := src.BodyText(ctx)
	if err != nil {
		e.log.Warn("body text query failed", zap.Error(err))
		return ""
	}
	return e.accept(scanBody(body), StagePageScan)
}

// responseMinLen separates a real analysis body from navigation fragments.
const responseMinLen = 100

// Navigation chrome the content selectors also match; a candidate carrying
// any of these is not the analysis.
var responseNavWords = []string{
	"toggle sidebar",
	"start a chat",
	"recent chats",
}

// ResponseText returns the full analysis text of the response: the first
// assistant content block of substance, bounded at the conclusion marker.
// Empty when no block qualifies.
func (e *Engine) ResponseText(ctx context.Context, src Source) string {
	blocks, err := src.ContentBlocks(ctx)
	if err != nil {
		e.log.Warn("content block query failed", zap.Error(err))
		return ""
	}

	for _, raw := range blocks {
		text := boundResponse(StripAstralRunes(raw))
		if len([]rune(text)) < responseMinLen {
			continue
		}
		if containsNavWord(text) {
			continue
		}
		return text
	}
	e.log.Warn("no substantial response text found")
	return ""
}

// boundResponse cuts the raw block at the conclusion marker and drops
// sentinel-only lines the assistant echoes back.
func boundResponse(raw string) string {
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.Contains(trimmed, markers.Conclusion) {
			break
		}
		if trimmed == markers.Checkpoint {
			continue
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

func containsNavWord(text string) bool {
	lower := strings.ToLower(text)
	for _, w := range responseNavWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

// scanBody finds the marker line in the body text and collects a bounded
// window of following lines, stopping early at a terminator.
func scanBody(body string) string {
	lines := strings.Split(body, "\n")
	start := -1
	for i, raw := range lines {
		if strings.Contains(raw, markers.TextBlock) {
			start = i
			break
		}
	}
	if start < 0 {
		return ""
	}

	window := []string{lines[start]}
	taken := 0
	for _, raw := range lines[start+1:] {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if markers.IsTerminatorLine(line) || taken >= pageScanWindow {
			break
		}
		window = append(window, line)
		taken++
	}
	return CollectBlock(strings.Join(window, "\n"))
}

// accept runs post-processing and the placeholder gate on a candidate block.
func (e *Engine) accept(raw string, stage Stage) string {
	text := Clean(raw)
	if text == "" {
		return ""
	}
	if IsPlaceholder(text) {
		e.log.Info("discarding placeholder candidate",
			zap.String("stage", string(stage)),
			zap.Int("length", len(text)))
		return ""
	}
	return text
}
