// Package browser wraps go-rod with the surface the chat pipeline needs:
// launch-or-attach lifecycle, ranked element queries, viewport and scroll
// control, and authorship classification for matched elements.
package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"
	"go.uber.org/zap"
)

// Ownership records whether this process launched the browser or attached to
// one that was already running. Teardown differs: an owned browser is killed,
// a borrowed one is left alive with only our page closed.
type Ownership int

const (
	Owned Ownership = iota
	Borrowed
)

func (o Ownership) String() string {
	if o == Borrowed {
		return "borrowed"
	}
	return "owned"
}

// ErrClipboardUnsupported is returned by TryReadClipboard when the page
// cannot grant programmatic clipboard access. Callers fall through to the
// next capture strategy.
var ErrClipboardUnsupported = errors.New("clipboard read unsupported")

// Config holds browser settings.
type Config struct {
	// DebuggerURL attaches to a running Chrome instead of launching one.
	DebuggerURL string `yaml:"debugger_url"`
	// Bin overrides the Chrome binary used when launching.
	Bin      string `yaml:"bin"`
	Headless bool   `yaml:"headless"`

	ViewportWidth       int `yaml:"viewport_width"`
	ViewportHeight      int `yaml:"viewport_height"`
	NavigationTimeoutMs int `yaml:"navigation_timeout_ms"`
}

// DefaultConfig returns the settings the pipeline was tuned against.
func DefaultConfig() Config {
	return Config{
		Headless:            true,
		ViewportWidth:       1200,
		ViewportHeight:      800,
		NavigationTimeoutMs: 30000,
	}
}

// NavigationTimeout returns the navigation timeout.
func (c Config) NavigationTimeout() time.Duration {
	if c.NavigationTimeoutMs == 0 {
		return 30 * time.Second
	}
	return time.Duration(c.NavigationTimeoutMs) * time.Millisecond
}

// Surface is a single attached page plus its browser connection.
type Surface struct {
	cfg       Config
	log       *zap.Logger
	ownership Ownership

	browser *rod.Browser
	page    *rod.Page
	launch  *launcher.Launcher
}

// Open connects to Chrome and opens one page at the configured viewport.
// A configured DebuggerURL yields a Borrowed surface; otherwise Chrome is
// launched and the surface is Owned.
func Open(ctx context.Context, cfg Config, log *zap.Logger) (*Surface, error) {
	s := &Surface{cfg: cfg, log: log.Named("browser")}

	controlURL := cfg.DebuggerURL
	if controlURL != "" {
		s.ownership = Borrowed
	} else {
		s.ownership = Owned
		launch := launcher.New().Headless(cfg.Headless)
		if cfg.Bin != "" {
			launch = launch.Bin(cfg.Bin)
		}
		url, err := launch.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch chrome: %w", err)
		}
		s.launch = launch
		controlURL = url
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		s.cleanupLauncher()
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}
	s.browser = browser

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = browser.Close()
		s.cleanupLauncher()
		return nil, fmt.Errorf("create page: %w", err)
	}
	s.page = page

	if err := s.SetViewport(cfg.ViewportWidth, cfg.ViewportHeight); err != nil {
		s.log.Warn("failed to set viewport", zap.Error(err))
	}

	s.log.Info("browser surface ready",
		zap.String("ownership", s.ownership.String()),
		zap.Bool("headless", cfg.Headless))
	return s, nil
}

// Ownership reports whether the surface owns its browser process.
func (s *Surface) Ownership() Ownership { return s.ownership }

// Viewport returns the configured viewport size.
func (s *Surface) Viewport() (width, height int) {
	return s.cfg.ViewportWidth, s.cfg.ViewportHeight
}

// Page exposes the underlying rod page for protocol-level calls.
func (s *Surface) Page() *rod.Page { return s.page }

// Navigate loads url and waits for the load event.
func (s *Surface) Navigate(ctx context.Context, url string) error {
	page := s.page.Context(ctx).Timeout(s.cfg.NavigationTimeout())
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("wait load %s: %w", url, err)
	}
	return nil
}

// CurrentURL returns the page's current location.
func (s *Surface) CurrentURL() (string, error) {
	info, err := s.page.Info()
	if err != nil {
		return "", fmt.Errorf("page info: %w", err)
	}
	return info.URL, nil
}

// HTML returns the full page markup.
func (s *Surface) HTML() (string, error) {
	return s.page.HTML()
}

// Eval runs a JS function on the page and returns its JSON value.
func (s *Surface) Eval(ctx context.Context, js string, args ...interface{}) (gson.JSON, error) {
	res, err := s.page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS:           js,
		JSArgs:       args,
		ByValue:      true,
		AwaitPromise: true,
	})
	if err != nil {
		return gson.JSON{}, fmt.Errorf("evaluate: %w", err)
	}
	return res.Value, nil
}

// SetViewport overrides the device metrics.
func (s *Surface) SetViewport(width, height int) error {
	return proto.EmulationSetDeviceMetricsOverride{
		Width:             width,
		Height:            height,
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}.Call(s.page)
}

// PageHeight returns the document scroll height.
func (s *Surface) PageHeight(ctx context.Context) (int, error) {
	v, err := s.Eval(ctx, `() => document.body.scrollHeight`)
	if err != nil {
		return 0, err
	}
	return v.Int(), nil
}

// ScrollThroughPage scrolls the document top to bottom in viewport-sized
// steps so lazy content renders, stopping once the scroll height stabilizes
// or maxScrolls is reached. Returns the final document height.
func (s *Surface) ScrollThroughPage(ctx context.Context, maxScrolls int, pause time.Duration) (int, error) {
	lastHeight := 0
	for i := 0; i < maxScrolls; i++ {
		height, err := s.PageHeight(ctx)
		if err != nil {
			return lastHeight, err
		}
		if height == lastHeight && i > 0 {
			break
		}
		lastHeight = height

		if _, err := s.Eval(ctx, `() => window.scrollBy(0, window.innerHeight)`); err != nil {
			return lastHeight, err
		}
		select {
		case <-ctx.Done():
			return lastHeight, ctx.Err()
		case <-time.After(pause):
		}
	}

	if _, err := s.Eval(ctx, `() => window.scrollTo(0, 0)`); err != nil {
		return lastHeight, err
	}
	return lastHeight, nil
}

// Screenshot captures the page as PNG. fullPage captures beyond the viewport.
func (s *Surface) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	data, err := s.page.Context(ctx).Screenshot(fullPage, nil)
	if err != nil {
		return nil, fmt.Errorf("screenshot: %w", err)
	}
	return data, nil
}

// SaveScreenshot captures the page and writes it to path, creating parent
// directories as needed.
func (s *Surface) SaveScreenshot(ctx context.Context, path string, fullPage bool) error {
	data, err := s.Screenshot(ctx, fullPage)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create screenshot dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write screenshot: %w", err)
	}
	s.log.Debug("screenshot saved", zap.String("path", path), zap.Bool("full_page", fullPage))
	return nil
}

// TryReadClipboard probes navigator.clipboard.readText. Headless and
// unfocused pages routinely deny the permission; that surfaces as
// ErrClipboardUnsupported rather than a hard failure.
func (s *Surface) TryReadClipboard(ctx context.Context) (string, error) {
	v, err := s.Eval(ctx, `
	async () => {
		if (!navigator.clipboard || !navigator.clipboard.readText) {
			return { ok: false, err: "api unavailable" };
		}
		try {
			const text = await navigator.clipboard.readText();
			return { ok: true, text };
		} catch (e) {
			return { ok: false, err: String(e) };
		}
	}
	`)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrClipboardUnsupported, err)
	}
	if !v.Get("ok").Bool() {
		return "", fmt.Errorf("%w: %s", ErrClipboardUnsupported, v.Get("err").Str())
	}
	return strings.TrimSpace(v.Get("text").Str()), nil
}

// Close tears the surface down according to ownership. Owned surfaces kill
// the browser process; borrowed ones only close the page we opened.
func (s *Surface) Close() error {
	var errs []error
	if s.page != nil {
		if err := s.page.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close page: %w", err))
		}
		s.page = nil
	}

	if s.ownership == Owned && s.browser != nil {
		if err := s.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close browser: %w", err))
		}
	}
	s.browser = nil
	s.cleanupLauncher()

	s.log.Info("browser surface closed", zap.String("ownership", s.ownership.String()))
	return errors.Join(errs...)
}

func (s *Surface) cleanupLauncher() {
	if s.launch != nil {
		s.launch.Cleanup()
		s.launch = nil
	}
}
