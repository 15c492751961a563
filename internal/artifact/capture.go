package artifact

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"
	"go.uber.org/zap"

	"flipbot/internal/browser"
)

// Surface is the browser capability the capture protocol drives.
type Surface interface {
	FindFirst(ctx context.Context, strategies ...browser.Strategy) (*rod.Element, error)
	ClickFirst(ctx context.Context, strategies ...browser.Strategy) (bool, error)
	Eval(ctx context.Context, js string, args ...interface{}) (gson.JSON, error)
	TryReadClipboard(ctx context.Context) (string, error)
	HTML() (string, error)
	CurrentURL() (string, error)
	Navigate(ctx context.Context, url string) error
	ScrollThroughPage(ctx context.Context, maxScrolls int, pause time.Duration) (int, error)
	PageHeight(ctx context.Context) (int, error)
	Viewport() (width, height int)
	SetViewport(width, height int) error
	SaveScreenshot(ctx context.Context, path string, fullPage bool) error
}

// Config tunes the capture protocol.
type Config struct {
	ScreenshotsDir string

	// CopyLinkAttempts and CopyLinkInterval pace the copy-link poll.
	CopyLinkAttempts int
	CopyLinkInterval time.Duration

	// MaxScrolls bounds the lazy-load scroll on the artifact page.
	MaxScrolls  int
	ScrollPause time.Duration

	// SettleDelay waits out page transitions after clicks and navigation.
	SettleDelay time.Duration

	// HeightBuffer pads the final viewport so the page bottom is not clipped.
	HeightBuffer int
}

// DefaultConfig returns the tuned capture settings.
func DefaultConfig(screenshotsDir string) Config {
	return Config{
		ScreenshotsDir:   screenshotsDir,
		CopyLinkAttempts: 10,
		CopyLinkInterval: time.Second,
		MaxScrolls:       10,
		ScrollPause:      time.Second,
		SettleDelay:      3 * time.Second,
		HeightBuffer:     100,
	}
}

// Artifact is the capture outcome. Empty fields mean that step degraded.
type Artifact struct {
	URL            string
	ScreenshotPath string
}

// Capturer runs the capture protocol against one surface.
type Capturer struct {
	surface Surface
	cfg     Config
	log     *zap.Logger
}

// NewCapturer builds a Capturer.
func NewCapturer(surface Surface, cfg Config, log *zap.Logger) *Capturer {
	return &Capturer{surface: surface, cfg: cfg, log: log.Named("artifact")}
}

// Capture publishes the artifact, recovers its URL through the fallback
// chain, and screenshots the rendered page. Never returns an error: each
// miss degrades to an empty field and the session carries on.
func (c *Capturer) Capture(ctx context.Context) Artifact {
	var art Artifact

	intercepted := c.installClipboardIntercept(ctx)

	c.clickPublish(ctx)

	if url := c.urlFromClipboard(ctx, intercepted); url != "" {
		art.URL = url
	} else if url := c.urlFromDOM(ctx); url != "" {
		art.URL = url
	}

	if art.URL == "" {
		c.log.Warn("no artifact URL recovered, skipping screenshot")
		return art
	}
	c.log.Info("artifact URL recovered", zap.String("url", art.URL))

	path, err := c.screenshotArtifact(ctx, art.URL)
	if err != nil {
		c.log.Warn("artifact screenshot failed", zap.Error(err))
		return art
	}
	art.ScreenshotPath = path
	return art
}

// installClipboardIntercept wraps navigator.clipboard.writeText so the copy
// the publish flow performs lands in a page global we can read back. Best
// effort: a denied probe just disables the clipboard path.
func (c *Capturer) installClipboardIntercept(ctx context.Context) bool {
	_, err := c.surface.Eval(ctx, `
	() => {
		if (window.__copiedLink !== undefined) return true;
		window.__copiedLink = "";
		if (!navigator.clipboard || !navigator.clipboard.writeText) return false;
		const original = navigator.clipboard.writeText.bind(navigator.clipboard);
		navigator.clipboard.writeText = (text) => {
			window.__copiedLink = String(text);
			return original(text).catch(() => {});
		};
		return true;
	}
	`)
	if err != nil {
		c.log.Debug("clipboard intercept unavailable", zap.Error(err))
		return false
	}
	return true
}

// clickPublish finds the Publish control and clicks it. "Share" opens a
// different dialog and must never match. A missing control is fine; the
// artifact may already be published.
func (c *Capturer) clickPublish(ctx context.Context) {
	el, err := c.surface.FindFirst(ctx,
		browser.XPath(`//span[text()="Publish"]`),
		browser.XPath(`//button[.//span[text()="Publish"]]`),
		browser.XPath(`//button[starts-with(normalize-space(text()), "Publish")]`),
	)
	if err != nil || el == nil {
		c.log.Info("publish control not found, assuming already published")
		return
	}

	text, err := el.Text()
	if err != nil {
		c.log.Debug("publish control text unreadable", zap.Error(err))
		text = ""
	}

	x, positionKnown := 0.0, false
	if shape, err := el.Shape(); err == nil && len(shape.Quads) > 0 {
		x, positionKnown = shape.Box().X, true
	}
	width, _ := c.surface.Viewport()

	if !publishControlUsable(text, x, positionKnown, width) {
		c.log.Debug("publish match rejected",
			zap.String("text", text), zap.Float64("x", x))
		return
	}

	// Click the element the checks ran against, whichever strategy found it.
	if err := el.ScrollIntoView(); err != nil {
		c.log.Debug("scroll into view failed", zap.Error(err))
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		c.log.Debug("publish click failed", zap.Error(err))
		return
	}
	c.log.Info("publish clicked")
	c.pause(ctx, c.cfg.SettleDelay)
}

// publishControlUsable reports whether a matched publish control is the real
// one: the share dialog is rejected outright, and when the element position
// is known it must sit in the artifact pane on the right half of the
// viewport. Left-half matches are chat text echoing the word.
func publishControlUsable(text string, x float64, positionKnown bool, viewportWidth int) bool {
	if strings.Contains(text, "Share") {
		return false
	}
	if positionKnown && x < float64(viewportWidth)/2 {
		return false
	}
	return true
}

// urlFromClipboard reads the intercepted copy first, then polls for a
// copy-link control and reads the clipboard after invoking it.
func (c *Capturer) urlFromClipboard(ctx context.Context, intercepted bool) string {
	if url := c.readCopiedLink(ctx, intercepted); url != "" {
		return url
	}

	for i := 0; i < c.cfg.CopyLinkAttempts; i++ {
		clicked, err := c.surface.ClickFirst(ctx,
			browser.XPath(`//button[@aria-label="Copy link"]`),
			browser.XPath(`//button[.//*[contains(@class, "lucide-link")]]`),
			browser.XPath(`//span[text()="Copy link"]`),
		)
		if err == nil && clicked {
			c.pause(ctx, c.cfg.CopyLinkInterval)
			if url := c.readCopiedLink(ctx, intercepted); url != "" {
				return url
			}
		}
		c.pause(ctx, c.cfg.CopyLinkInterval)
	}
	return ""
}

func (c *Capturer) readCopiedLink(ctx context.Context, intercepted bool) string {
	if intercepted {
		if v, err := c.surface.Eval(ctx, `() => window.__copiedLink || ""`); err == nil {
			if url := v.Str(); IsArtifactURL(url) {
				return url
			}
		}
	}

	text, err := c.surface.TryReadClipboard(ctx)
	if err != nil {
		if !errors.Is(err, browser.ErrClipboardUnsupported) {
			c.log.Debug("clipboard read failed", zap.Error(err))
		}
		return ""
	}
	if IsArtifactURL(text) {
		return text
	}
	return ""
}

// urlFromDOM runs the DOM-inspection fallbacks in order: view-control
// attributes, page anchors, script globals, and last the raw markup scan.
func (c *Capturer) urlFromDOM(ctx context.Context) string {
	if url := c.urlFromViewControl(ctx); url != "" {
		c.log.Debug("artifact URL from view control", zap.String("url", url))
		return url
	}
	if url := c.urlFromAnchors(); url != "" {
		c.log.Debug("artifact URL from page anchors", zap.String("url", url))
		return url
	}
	if url := c.urlFromGlobals(ctx); url != "" {
		c.log.Debug("artifact URL from script globals", zap.String("url", url))
		return url
	}
	if url := c.urlFromRawScan(); url != "" {
		c.log.Debug("artifact URL from raw markup scan", zap.String("url", url))
		return url
	}
	return ""
}

func (c *Capturer) urlFromViewControl(ctx context.Context) string {
	el, err := c.surface.FindFirst(ctx,
		browser.XPath(`//a[.//span[text()="View"]]`),
		browser.XPath(`//button[.//span[text()="View"]]`),
		browser.XPath(`//span[text()="View"]`),
	)
	if err != nil || el == nil {
		return ""
	}

	for _, attr := range urlAttrs {
		if v, err := el.Attribute(attr); err == nil && v != nil && IsArtifactURL(*v) {
			return *v
		}
	}
	if v, err := el.Attribute("onclick"); err == nil && v != nil {
		if m := artifactURLRe.FindString(*v); m != "" {
			return m
		}
	}

	// The clickable wrapper is often the parent anchor.
	if parent, err := el.Parent(); err == nil && parent != nil {
		if v, err := parent.Attribute("href"); err == nil && v != nil && IsArtifactURL(*v) {
			return *v
		}
	}
	return ""
}

func (c *Capturer) urlFromAnchors() string {
	markup, err := c.surface.HTML()
	if err != nil {
		c.log.Debug("page markup unavailable", zap.Error(err))
		return ""
	}

	base := ""
	if current, err := c.surface.CurrentURL(); err == nil {
		if idx := strings.Index(current, "://"); idx > 0 {
			if slash := strings.Index(current[idx+3:], "/"); slash > 0 {
				base = current[:idx+3+slash]
			}
		}
	}

	if url := FindInHTML(markup, base); IsArtifactURL(url) {
		return url
	}
	return ""
}

// urlFromRawScan is the last resort: a pattern match over the raw markup,
// catching URLs embedded in scripts or serialized state.
func (c *Capturer) urlFromRawScan() string {
	markup, err := c.surface.HTML()
	if err != nil {
		return ""
	}
	if url := FirstInText(markup); IsArtifactURL(url) {
		return url
	}
	return ""
}

func (c *Capturer) urlFromGlobals(ctx context.Context) string {
	v, err := c.surface.Eval(ctx, `
	() => {
		const names = ['artifactUrl', 'artifact_url', 'viewUrl', 'view_url',
			'shareUrl', 'share_url', 'reportUrl', 'report_url'];
		for (const name of names) {
			const value = window[name];
			if (typeof value === 'string' && value.includes('artifacts')) {
				return value;
			}
		}
		return "";
	}
	`)
	if err != nil {
		return ""
	}
	if url := v.Str(); IsArtifactURL(url) {
		return url
	}
	return ""
}

// screenshotArtifact opens the artifact page and captures it whole: settle,
// lazy-load scroll until the height stabilizes, grow the viewport to the
// content height plus buffer, then one full-page shot from the top.
func (c *Capturer) screenshotArtifact(ctx context.Context, url string) (string, error) {
	if err := c.surface.Navigate(ctx, url); err != nil {
		return "", err
	}
	c.pause(ctx, c.cfg.SettleDelay)

	if _, err := c.surface.ScrollThroughPage(ctx, c.cfg.MaxScrolls, c.cfg.ScrollPause); err != nil {
		c.log.Debug("artifact scroll incomplete", zap.Error(err))
	}

	height, err := c.surface.PageHeight(ctx)
	if err != nil {
		return "", err
	}
	width, _ := c.surface.Viewport()
	if err := c.surface.SetViewport(width, height+c.cfg.HeightBuffer); err != nil {
		c.log.Debug("viewport resize failed", zap.Error(err))
	}
	if _, err := c.surface.Eval(ctx, `() => window.scrollTo(0, 0)`); err != nil {
		c.log.Debug("scroll to top failed", zap.Error(err))
	}

	path := filepath.Join(c.cfg.ScreenshotsDir,
		fmt.Sprintf("artifact_%s.png", time.Now().Format("20060102_150405")))
	if err := c.surface.SaveScreenshot(ctx, path, true); err != nil {
		return "", err
	}
	return path, nil
}

func (c *Capturer) pause(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
