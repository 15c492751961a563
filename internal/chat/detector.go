// Package chat drives the two-phase conversation: it submits the phase
// prompts, polls the rendered page for completion signals, and walks the
// session state machine through extraction and publishing.
package chat

import (
	"context"
	"time"

	"go.uber.org/zap"

	"flipbot/internal/browser"
	"flipbot/internal/markers"
)

// PollPolicy bounds one wait: how often to look and when to give up. Grace
// is the point after which partial results become acceptable; zero disables
// the grace flag.
type PollPolicy struct {
	Interval time.Duration
	Timeout  time.Duration
	Grace    time.Duration
}

// Signals is one poll's view of the rendered response.
type Signals struct {
	Conclusion   bool
	Text         bool
	Chart        bool
	InputEnabled bool
}

// Any reports whether at least one content signal rendered.
func (s Signals) Any() bool {
	return s.Conclusion || s.Text || s.Chart
}

// ResponseWait is the outcome of waiting for the phase-2 response. A timeout
// is not an error: Complete is false and the collected signals say what did
// render.
type ResponseWait struct {
	Complete          bool
	PartialAcceptable bool
	Signals           Signals
	Elapsed           time.Duration
}

// responseComplete implements the completion criterion: an explicit
// conclusion, both content blocks, or the input re-enabling after at least
// one block rendered.
func responseComplete(s Signals) bool {
	if s.Conclusion {
		return true
	}
	if s.Text && s.Chart {
		return true
	}
	return s.InputEnabled && s.Any()
}

// Detector polls the surface for marker tokens. Single-threaded: one poll
// loop, one surface.
type Detector struct {
	surface Surface
	log     *zap.Logger
}

// NewDetector builds a Detector over surface.
func NewDetector(surface Surface, log *zap.Logger) *Detector {
	return &Detector{surface: surface, log: log.Named("detector")}
}

// WaitCheckpoint polls for the phase-1 checkpoint token. Returns whether the
// token rendered before the timeout; there is no partial outcome for
// checkpoints.
func (d *Detector) WaitCheckpoint(ctx context.Context, policy PollPolicy) bool {
	deadline := time.Now().Add(policy.Timeout)

	for {
		if d.tokenRendered(ctx, markers.Checkpoint) {
			d.log.Info("checkpoint token rendered")
			return true
		}
		if time.Now().After(deadline) {
			d.log.Warn("checkpoint wait timed out",
				zap.Duration("timeout", policy.Timeout))
			return false
		}
		if !d.sleep(ctx, policy.Interval) {
			return false
		}
	}
}

// WaitResponse polls for the phase-2 completion criterion. Once past the
// grace window the partial flag is set, but polling continues to the hard
// timeout. Never returns an error; a timeout degrades to whatever signals
// rendered.
func (d *Detector) WaitResponse(ctx context.Context, policy PollPolicy) ResponseWait {
	start := time.Now()
	deadline := start.Add(policy.Timeout)

	var wait ResponseWait
	for {
		d.clickViewReportControls(ctx)

		wait.Signals = d.collectSignals(ctx)
		wait.Elapsed = time.Since(start)

		if responseComplete(wait.Signals) {
			wait.Complete = true
			d.log.Info("response complete",
				zap.Bool("conclusion", wait.Signals.Conclusion),
				zap.Bool("text", wait.Signals.Text),
				zap.Bool("chart", wait.Signals.Chart),
				zap.Bool("input_enabled", wait.Signals.InputEnabled),
				zap.Duration("elapsed", wait.Elapsed))
			return wait
		}

		if policy.Grace > 0 && wait.Elapsed >= policy.Grace && !wait.PartialAcceptable {
			wait.PartialAcceptable = true
			d.log.Warn("grace window passed, partial results acceptable",
				zap.Duration("elapsed", wait.Elapsed))
		}

		if time.Now().After(deadline) {
			d.log.Warn("response wait timed out",
				zap.Duration("timeout", policy.Timeout),
				zap.Bool("partial_acceptable", wait.PartialAcceptable))
			return wait
		}
		if !d.sleep(ctx, policy.Interval) {
			return wait
		}
	}
}

func (d *Detector) collectSignals(ctx context.Context) Signals {
	return Signals{
		Conclusion:   d.tokenRendered(ctx, markers.Conclusion),
		Text:         d.tokenRendered(ctx, markers.TextBlock),
		Chart:        d.chartRendered(ctx),
		InputEnabled: d.inputEnabled(ctx),
	}
}

// tokenRendered reports whether the token appears outside operator-authored
// subtrees.
func (d *Detector) tokenRendered(ctx context.Context, token string) bool {
	texts, err := d.surface.TextsContaining(ctx, token)
	if err != nil {
		d.log.Debug("token query failed", zap.String("token", token), zap.Error(err))
		return false
	}
	return len(texts) > 0
}

// chartRendered accepts either the chart token or a View Report control,
// which only appears once an artifact rendered.
func (d *Detector) chartRendered(ctx context.Context) bool {
	if d.tokenRendered(ctx, markers.ChartBlock) {
		return true
	}
	texts, err := d.surface.TextsContaining(ctx, "View Report")
	if err != nil {
		return false
	}
	return len(texts) > 0
}

// inputEnabled checks whether the chat input accepts text again. The surface
// disables it while the assistant is streaming.
func (d *Detector) inputEnabled(ctx context.Context) bool {
	v, err := d.surface.Eval(ctx, `
	() => {
		const el = document.querySelector(
			"[data-lexical-editor='true'], [contenteditable='true'][role='textbox'], textarea");
		if (!el) return false;
		if (el.disabled) return false;
		if (el.getAttribute('aria-disabled') === 'true') return false;
		if (el.getAttribute('contenteditable') === 'false') return false;
		return true;
	}
	`)
	if err != nil {
		d.log.Debug("input state query failed", zap.Error(err))
		return false
	}
	return v.Bool()
}

// clickViewReportControls nudges lazy chart panes to render. Best effort;
// a missing control is the normal case.
func (d *Detector) clickViewReportControls(ctx context.Context) {
	clicked, err := d.surface.ClickFirst(ctx,
		browser.XPath(`//button[.//span[text()="View Report"]]`),
		browser.XPath(`//span[text()="View Report"]`),
	)
	if err == nil && clicked {
		d.log.Debug("clicked view report control")
	}
}

// sleep pauses between polls; false means the context ended.
func (d *Detector) sleep(ctx context.Context, interval time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(interval):
		return true
	}
}
