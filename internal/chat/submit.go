package chat

import (
	"context"
	"fmt"

	"flipbot/internal/browser"
)

// Chat input strategies, most specific first. The surface uses a Lexical
// rich-text editor; the plain selectors cover older renderings.
var inputStrategies = []browser.Strategy{
	browser.CSS(`[data-lexical-editor="true"]`),
	browser.CSS(`[contenteditable="true"][role="textbox"]`),
	browser.CSS(`textarea[placeholder*="Ask"]`),
	browser.CSS(`textarea[data-testid="chat-input"]`),
	browser.CSS(`textarea`),
	browser.CSS(`[contenteditable="true"]`),
	browser.CSS(`[role="textbox"]`),
}

// submitPrompt types text into the chat input and sends it with Enter.
func submitPrompt(ctx context.Context, surface Surface, text string) error {
	if err := surface.SubmitFirst(ctx, text, inputStrategies...); err != nil {
		return fmt.Errorf("submit prompt: %w", err)
	}
	return nil
}
