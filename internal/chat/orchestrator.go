package chat

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"flipbot/internal/artifact"
	"flipbot/internal/browser"
	"flipbot/internal/config"
	"flipbot/internal/extract"
	"flipbot/internal/history"
	"flipbot/internal/prompt"
)

// State names the session's position in the pipeline. Failed is reachable
// from every state; every session ends in Done or Failed.
type State string

const (
	StateInit              State = "init"
	StateAuthenticated     State = "authenticated"
	StateNavigated         State = "navigated"
	StatePhase1Submitted   State = "phase1_submitted"
	StateCheckpointReached State = "checkpoint_reached"
	StateCheckpointTimeout State = "checkpoint_timeout"
	StatePhase2Submitted   State = "phase2_submitted"
	StateResponseComplete  State = "response_complete"
	StateResponseTimeout   State = "response_timeout"
	StateExtracted         State = "extracted"
	StatePublished         State = "published"
	StateDone              State = "done"
	StateFailed            State = "failed"
)

// Result accumulates what the session recovered. Fields stay empty when the
// corresponding step degraded.
type Result struct {
	TwitterText    string
	ResponseText   string
	ExtractStage   string
	ArtifactURL    string
	ScreenshotPath string
	Screenshots    []string
	PartialResults bool
	TweetID        string
}

// Session is one pipeline run.
type Session struct {
	ID        string
	State     State
	StartedAt time.Time
	Result    Result
	Err       string
}

// Publisher posts the extracted content. Wired in only for full runs;
// analyze-only runs pass nil.
type Publisher interface {
	Publish(ctx context.Context, runID, text, imagePath, linkURL string) (tweetID string, err error)
}

// Surface is the browser capability a session drives. *browser.Surface is
// the production implementation; tests substitute a fake.
type Surface interface {
	extract.Source
	artifact.Surface

	Login(ctx context.Context, loginURL string, creds browser.Credentials) error
	SubmitFirst(ctx context.Context, text string, strategies ...browser.Strategy) error
	Close() error
}

// Options wires an Orchestrator.
type Options struct {
	Surface        Surface
	Chat           config.ChatConfig
	Credentials    browser.Credentials
	Templates      prompt.Templates
	History        *history.Store
	ScreenshotsDir string
	Publisher      Publisher
	Log            *zap.Logger

	// Capture overrides the artifact capture tuning; nil uses defaults.
	Capture *artifact.Config
}

// Orchestrator walks one session through the two-phase conversation,
// extraction, capture, and publishing.
type Orchestrator struct {
	opts     Options
	detector *Detector
	engine   *extract.Engine
	capturer *artifact.Capturer
	log      *zap.Logger
}

// NewOrchestrator builds the orchestrator and its collaborators.
func NewOrchestrator(opts Options) *Orchestrator {
	captureCfg := artifact.DefaultConfig(opts.ScreenshotsDir)
	if opts.Capture != nil {
		captureCfg = *opts.Capture
	}
	return &Orchestrator{
		opts:     opts,
		detector: NewDetector(opts.Surface, opts.Log),
		engine:   extract.New(opts.Log),
		capturer: artifact.NewCapturer(opts.Surface, captureCfg, opts.Log),
		log:      opts.Log.Named("chat"),
	}
}

// Run executes one full session for the selected prompt. The returned error
// is non-nil only for fatal configuration problems; every runtime failure
// lands in the session's Err field with state Failed. Teardown always runs
// and releases the browser according to its ownership.
func (o *Orchestrator) Run(ctx context.Context) (Session, error) {
	sel, err := o.selectPrompt()
	if err != nil {
		return Session{State: StateFailed, Err: err.Error()}, err
	}
	return o.run(ctx, sel)
}

// RunWith executes one session for an explicit selection.
func (o *Orchestrator) RunWith(ctx context.Context, sel prompt.Selection) (Session, error) {
	return o.run(ctx, sel)
}

func (o *Orchestrator) selectPrompt() (prompt.Selection, error) {
	catalog := prompt.DefaultCatalog()
	sel, err := prompt.NewSelector(catalog, o.opts.History).Pick(prompt.StrategyDaily, time.Now())
	if err != nil {
		return prompt.Selection{}, fmt.Errorf("select prompt: %w", err)
	}
	return sel, nil
}

func (o *Orchestrator) run(ctx context.Context, sel prompt.Selection) (Session, error) {
	s := Session{
		ID:        uuid.NewString()[:8],
		State:     StateInit,
		StartedAt: time.Now(),
	}
	log := o.log.With(zap.String("session", s.ID))
	log.Info("session starting",
		zap.String("category", sel.Category),
		zap.String("condensed", sel.Condensed))

	defer func() {
		if err := o.opts.Surface.Close(); err != nil {
			log.Warn("surface teardown failed", zap.Error(err))
		}
	}()

	// Phase-1 template problems are fatal config errors: abort before
	// touching the browser.
	phase1, err := o.opts.Templates.BuildPhase1(sel.Text, o.opts.History.Condensed())
	if err != nil {
		log.Error("phase-1 template invalid", zap.Error(err))
		s.State = StateFailed
		s.Err = err.Error()
		return s, err
	}

	loginCtx, cancel := context.WithTimeout(ctx, o.opts.Chat.LoginTimeout())
	err = o.opts.Surface.Login(loginCtx, o.opts.Chat.LoginURL(), o.opts.Credentials)
	cancel()
	if err != nil {
		return o.fail(ctx, s, "login", err), nil
	}
	o.transition(&s, StateAuthenticated, log)

	if err := o.opts.Surface.Navigate(ctx, o.opts.Chat.ChatURL()); err != nil {
		return o.fail(ctx, s, "navigate", err), nil
	}
	o.pause(ctx, o.opts.Chat.NavSettle())
	o.transition(&s, StateNavigated, log)

	if err := submitPrompt(ctx, o.opts.Surface, phase1); err != nil {
		return o.fail(ctx, s, "phase1_submit", err), nil
	}
	o.transition(&s, StatePhase1Submitted, log)

	if o.detector.WaitCheckpoint(ctx, PollPolicy{
		Interval: o.opts.Chat.PollInterval(),
		Timeout:  o.opts.Chat.CheckpointTimeout(),
	}) {
		o.transition(&s, StateCheckpointReached, log)
	} else {
		// The analysis may still be usable; phase 2 proceeds regardless.
		o.transition(&s, StateCheckpointTimeout, log)
	}

	o.pause(ctx, o.opts.Chat.SettleDelay())

	if err := submitPrompt(ctx, o.opts.Surface, o.opts.Templates.BuildPhase2()); err != nil {
		return o.fail(ctx, s, "phase2_submit", err), nil
	}
	o.transition(&s, StatePhase2Submitted, log)

	wait := o.detector.WaitResponse(ctx, PollPolicy{
		Interval: o.opts.Chat.PollInterval(),
		Timeout:  o.opts.Chat.ResponseTimeout(),
		Grace:    o.opts.Chat.ResponseGrace(),
	})
	if wait.Complete {
		o.transition(&s, StateResponseComplete, log)
	} else {
		s.Result.PartialResults = true
		o.transition(&s, StateResponseTimeout, log)
	}

	o.closeArtifactView(ctx)

	res := o.engine.TweetText(ctx, o.opts.Surface)
	s.Result.TwitterText = res.Text
	s.Result.ExtractStage = string(res.Stage)
	s.Result.ResponseText = o.engine.ResponseText(ctx, o.opts.Surface)
	o.transition(&s, StateExtracted, log)

	art := o.capturer.Capture(ctx)
	s.Result.ArtifactURL = art.URL
	s.Result.ScreenshotPath = art.ScreenshotPath
	if art.ScreenshotPath != "" {
		s.Result.Screenshots = append(s.Result.Screenshots, art.ScreenshotPath)
	}

	o.recordHistory(sel, log)

	if o.opts.Publisher != nil && s.Result.TwitterText != "" {
		tweetID, err := o.opts.Publisher.Publish(ctx, s.ID,
			s.Result.TwitterText, s.Result.ScreenshotPath, s.Result.ArtifactURL)
		if err != nil {
			// A missing post is not a degraded success; the session fails.
			return o.fail(ctx, s, "publish", err), nil
		}
		s.Result.TweetID = tweetID
		o.transition(&s, StatePublished, log)
	}

	o.transition(&s, StateDone, log)
	return s, nil
}

// recordHistory marks the prompt as used once the session got far enough to
// have consumed it. Written once, at the end.
func (o *Orchestrator) recordHistory(sel prompt.Selection, log *zap.Logger) {
	o.opts.History.Touch(sel.Condensed)
	if err := o.opts.History.Save(); err != nil {
		log.Warn("history save failed", zap.Error(err))
	}
}

// closeArtifactView dismisses an open artifact pane so the publish control
// and chat text are reachable. Best effort.
func (o *Orchestrator) closeArtifactView(ctx context.Context) {
	clicked, err := o.opts.Surface.ClickFirst(ctx,
		browser.XPath(`//button[@aria-label="Close"]`),
		browser.XPath(`//button[.//*[contains(@class, "lucide-x")]]`),
	)
	if err == nil && clicked {
		o.log.Debug("closed artifact view")
		o.pause(ctx, time.Second)
	}
}

// fail captures a diagnostic screenshot, marks the session Failed, and lets
// teardown run. Runtime failures never propagate as errors.
func (o *Orchestrator) fail(ctx context.Context, s Session, stage string, err error) Session {
	o.log.Error("session failed",
		zap.String("session", s.ID),
		zap.String("stage", stage),
		zap.String("state", string(s.State)),
		zap.Error(err))

	path := filepath.Join(o.opts.ScreenshotsDir,
		fmt.Sprintf("warning_%s_%s.png", stage, time.Now().Format("20060102_150405")))
	if shotErr := o.opts.Surface.SaveScreenshot(ctx, path, false); shotErr != nil {
		o.log.Debug("diagnostic screenshot failed", zap.Error(shotErr))
	} else {
		s.Result.Screenshots = append(s.Result.Screenshots, path)
	}

	s.State = StateFailed
	s.Err = fmt.Sprintf("%s: %v", stage, err)
	return s
}

func (o *Orchestrator) transition(s *Session, next State, log *zap.Logger) {
	log.Info("state transition",
		zap.String("from", string(s.State)),
		zap.String("to", string(next)))
	s.State = next
}

func (o *Orchestrator) pause(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
