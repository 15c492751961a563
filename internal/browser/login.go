package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// loginPollInterval paces the post-submit URL checks.
const loginPollInterval = 2 * time.Second

// Credentials carries the account used for the chat surface. Both fields are
// required; validation happens at config load.
type Credentials struct {
	Email    string
	Password string
}

// Login navigates to loginURL, submits the credential form, and waits until
// the location shows the authenticated chat surface. The wait is bounded by
// ctx; pass a deadline.
func (s *Surface) Login(ctx context.Context, loginURL string, creds Credentials) error {
	if err := s.Navigate(ctx, loginURL); err != nil {
		return err
	}

	if err := s.InputFirst(ctx, creds.Email,
		CSS(`input[name="email"]`),
		CSS(`input[type="email"]`),
	); err != nil {
		return fmt.Errorf("fill email: %w", err)
	}
	if err := s.InputFirst(ctx, creds.Password,
		CSS(`input[name="password"]`),
		CSS(`input[type="password"]`),
	); err != nil {
		return fmt.Errorf("fill password: %w", err)
	}

	clicked, err := s.ClickFirst(ctx,
		CSS(`button[type="submit"]`),
		XPath(`//button[contains(text(), "Sign in")]`),
	)
	if err != nil {
		return fmt.Errorf("submit login: %w", err)
	}
	if !clicked {
		return fmt.Errorf("login submit button not found")
	}

	s.log.Info("login submitted, waiting for chat surface")
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("login did not reach chat surface: %w", ctx.Err())
		case <-time.After(loginPollInterval):
		}

		url, err := s.CurrentURL()
		if err != nil {
			s.log.Debug("url check failed during login wait", zap.Error(err))
			continue
		}
		if strings.Contains(url, "chat") {
			s.log.Info("authenticated", zap.String("url", url))
			return nil
		}
	}
}
