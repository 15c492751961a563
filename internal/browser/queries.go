package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"flipbot/internal/markers"
)

// Kind selects the query language a Strategy uses.
type Kind string

const (
	KindCSS   Kind = "css"
	KindXPath Kind = "xpath"
)

// Strategy is one ranked attempt at locating an element. Callers pass a
// slice ordered most-specific first; the first strategy that matches wins.
type Strategy struct {
	Kind    Kind
	Pattern string
}

func (st Strategy) String() string {
	return fmt.Sprintf("%s:%s", st.Kind, st.Pattern)
}

// CSS builds a css Strategy.
func CSS(pattern string) Strategy { return Strategy{Kind: KindCSS, Pattern: pattern} }

// XPath builds an xpath Strategy.
func XPath(pattern string) Strategy { return Strategy{Kind: KindXPath, Pattern: pattern} }

// TextXPath builds a Strategy matching elements whose direct text contains
// the token.
func TextXPath(token string) Strategy {
	return XPath(fmt.Sprintf(`//*[contains(text(), %s)]`, xpathLiteral(token)))
}

// xpathLiteral quotes a string for embedding in an XPath expression. Tokens
// holding both quote kinds need the concat form.
func xpathLiteral(s string) string {
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	if !strings.Contains(s, `'`) {
		return `'` + s + `'`
	}
	parts := strings.Split(s, `"`)
	quoted := make([]string, 0, len(parts)*2)
	for i, p := range parts {
		if i > 0 {
			quoted = append(quoted, `'"'`)
		}
		if p != "" {
			quoted = append(quoted, `"`+p+`"`)
		}
	}
	return "concat(" + strings.Join(quoted, ", ") + ")"
}

func (s *Surface) query(ctx context.Context, st Strategy) (rod.Elements, error) {
	page := s.page.Context(ctx)
	switch st.Kind {
	case KindXPath:
		return page.ElementsX(st.Pattern)
	default:
		return page.Elements(st.Pattern)
	}
}

// FindAll returns every match of the first strategy that yields any.
func (s *Surface) FindAll(ctx context.Context, strategies ...Strategy) (rod.Elements, error) {
	for _, st := range strategies {
		els, err := s.query(ctx, st)
		if err != nil {
			s.log.Debug("strategy query failed", zap.String("strategy", st.String()), zap.Error(err))
			continue
		}
		if len(els) > 0 {
			return els, nil
		}
	}
	return nil, nil
}

// FindFirst returns the first match across the ranked strategies, or nil
// when nothing matches.
func (s *Surface) FindFirst(ctx context.Context, strategies ...Strategy) (*rod.Element, error) {
	els, err := s.FindAll(ctx, strategies...)
	if err != nil || len(els) == 0 {
		return nil, err
	}
	return els.First(), nil
}

// ClickFirst locates an element via the ranked strategies and clicks it.
// Returns false when no strategy matched.
func (s *Surface) ClickFirst(ctx context.Context, strategies ...Strategy) (bool, error) {
	el, err := s.FindFirst(ctx, strategies...)
	if err != nil || el == nil {
		return false, err
	}
	if err := el.ScrollIntoView(); err != nil {
		s.log.Debug("scroll into view failed", zap.Error(err))
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return false, fmt.Errorf("click: %w", err)
	}
	return true, nil
}

// SubmitFirst types text into the first matching element and sends it with
// Enter. The pause lets the editor's input handlers run before the submit.
func (s *Surface) SubmitFirst(ctx context.Context, text string, strategies ...Strategy) error {
	el, err := s.FindFirst(ctx, strategies...)
	if err != nil {
		return fmt.Errorf("locate input: %w", err)
	}
	if el == nil {
		return fmt.Errorf("no input matched %v", strategies)
	}

	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("focus input: %w", err)
	}
	if err := el.Input(text); err != nil {
		return fmt.Errorf("type text: %w", err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(500 * time.Millisecond):
	}

	if err := el.Type(input.Enter); err != nil {
		return fmt.Errorf("submit text: %w", err)
	}
	return nil
}

// InputFirst types text into the first matching element.
func (s *Surface) InputFirst(ctx context.Context, text string, strategies ...Strategy) error {
	el, err := s.FindFirst(ctx, strategies...)
	if err != nil {
		return err
	}
	if el == nil {
		return fmt.Errorf("no element matched %v", strategies)
	}
	if err := el.Input(text); err != nil {
		return fmt.Errorf("input: %w", err)
	}
	return nil
}

// IsOperatorAuthored walks up to a bounded number of ancestors looking for
// the operator role attribute. A match means the element sits inside the
// operator's own message and must not be treated as assistant output.
func (s *Surface) IsOperatorAuthored(el *rod.Element) (bool, error) {
	res, err := el.Eval(fmt.Sprintf(`
	() => {
		let node = this;
		for (let depth = 0; depth < %d && node; depth++) {
			if (node.getAttribute && node.getAttribute(%q) === %q) {
				return true;
			}
			node = node.parentElement;
		}
		return false;
	}
	`, markers.OperatorAncestorDepth, markers.OperatorRoleAttr, markers.OperatorRoleValue))
	if err != nil {
		return false, fmt.Errorf("authorship check: %w", err)
	}
	return res.Value.Bool(), nil
}

// TextsContaining returns the visible text of assistant-authored elements
// whose direct text contains token. The XPath text() match keeps results to
// the immediate parents of matching text nodes, so nested duplicates are
// rare; document order is preserved.
func (s *Surface) TextsContaining(ctx context.Context, token string) ([]string, error) {
	els, err := s.query(ctx, TextXPath(token))
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", token, err)
	}
	return s.assistantTexts(els), nil
}

// Selectors the chat surface renders message bodies under, most specific
// first.
var contentStrategies = []Strategy{
	CSS(`.message-content`),
	CSS(`.chat-response`),
	CSS(`.analysis-result`),
	CSS(`[class*="message"]`),
	CSS(`[class*="response"]`),
}

// ContentBlocks returns the visible text of assistant-authored message
// containers, document order preserved.
func (s *Surface) ContentBlocks(ctx context.Context) ([]string, error) {
	els, err := s.FindAll(ctx, contentStrategies...)
	if err != nil {
		return nil, fmt.Errorf("content query: %w", err)
	}
	return s.assistantTexts(els), nil
}

func (s *Surface) assistantTexts(els rod.Elements) []string {
	var texts []string
	for _, el := range els {
		operator, err := s.IsOperatorAuthored(el)
		if err != nil {
			s.log.Debug("authorship check failed, skipping element", zap.Error(err))
			continue
		}
		if operator {
			continue
		}
		text, err := el.Text()
		if err != nil {
			s.log.Debug("element text failed", zap.Error(err))
			continue
		}
		if strings.TrimSpace(text) != "" {
			texts = append(texts, text)
		}
	}
	return texts
}

// BodyText returns the visible text of the page body.
func (s *Surface) BodyText(ctx context.Context) (string, error) {
	el, err := s.page.Context(ctx).Element("body")
	if err != nil {
		return "", fmt.Errorf("body element: %w", err)
	}
	text, err := el.Text()
	if err != nil {
		return "", fmt.Errorf("body text: %w", err)
	}
	return text, nil
}
