package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"flipbot/internal/artifact"
	"flipbot/internal/browser"
	"flipbot/internal/chat"
	"flipbot/internal/config"
	"flipbot/internal/history"
	"flipbot/internal/logging"
	"flipbot/internal/prompt"
	"flipbot/internal/twitter"
)

var (
	// Global flags
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "flipbot",
	Short: "flipbot - automated blockchain analysis poster",
	Long: `flipbot drives the Flipside AI chat surface through a two-phase
analysis conversation, extracts the tweet-ready summary and chart artifact,
and posts the result to Twitter.

Credentials come from the environment:
  FLIPSIDE_EMAIL, FLIPSIDE_PASSWORD
  TWITTER_API_KEY, TWITTER_API_SECRET,
  TWITTER_ACCESS_TOKEN, TWITTER_ACCESS_SECRET, TWITTER_BEARER_TOKEN`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}

		level := cfg.Logging.Level
		if verbose {
			level = zapcore.DebugLevel.String()
		}
		logger, err = logging.New(level, cfg.Logging.File)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// runCmd executes the full pipeline: analyze, extract, capture, post.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one full analysis-and-post cycle",
	Long: `Runs the complete pipeline: log in to the chat surface, submit the
two-phase analysis conversation, extract the tweet text, capture the chart
artifact, and post to Twitter. The run summary and full result land under
the configured logs and results directories.`,
	RunE: runFull,
}

// analyzeCmd runs the pipeline without posting.
var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run the analysis pipeline without posting",
	Long: `Runs analysis, extraction, and artifact capture but skips Twitter.
The saved result file can be posted later with "flipbot post".`,
	RunE: runAnalyze,
}

// postCmd posts a previously saved run result.
var postCmd = &cobra.Command{
	Use:   "post [result-file]",
	Short: "Post a saved run result to Twitter",
	Args:  cobra.ExactArgs(1),
	RunE:  postSaved,
}

// historyCmd shows the prompt history ledger.
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the prompt history ledger",
	RunE:  showHistory,
}

// promptsCmd reports catalog coverage.
var promptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "Show prompt catalog usage statistics",
	RunE:  showPrompts,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(postCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(promptsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runFull(cmd *cobra.Command, args []string) error {
	creds := config.LoadCredentials()
	if err := creds.Validate(cfg.Twitter.Enabled); err != nil {
		return err
	}

	recorder := logging.NewRecorder(cfg.Storage.LogsDir, cfg.Storage.ResultsDir)

	var publisher chat.Publisher
	if cfg.Twitter.Enabled {
		publisher = twitter.NewPipeline(creds, cfg.Twitter, recorder, logger)
	} else {
		logger.Info("twitter publishing disabled, running analysis only")
	}

	return executeSession(creds, recorder, publisher)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	creds := config.LoadCredentials()
	if err := creds.Validate(false); err != nil {
		return err
	}

	recorder := logging.NewRecorder(cfg.Storage.LogsDir, cfg.Storage.ResultsDir)
	return executeSession(creds, recorder, nil)
}

// executeSession runs one orchestrated session and records its outcome. The
// returned error reflects the final state so the process exit code does too.
func executeSession(creds config.Credentials, recorder *logging.Recorder, publisher chat.Publisher) error {
	ctx, cancel := signalContext()
	defer cancel()

	hist, err := history.Open(cfg.Prompt.HistoryPath)
	if err != nil {
		return fmt.Errorf("open prompt history: %w", err)
	}

	templates := prompt.DefaultTemplates()
	if cfg.Prompt.TemplatesPath != "" {
		if templates, err = prompt.LoadTemplates(cfg.Prompt.TemplatesPath); err != nil {
			return fmt.Errorf("load templates: %w", err)
		}
	}

	catalog := prompt.DefaultCatalog()
	if cfg.Prompt.CatalogPath != "" {
		if catalog, err = prompt.LoadCatalog(cfg.Prompt.CatalogPath); err != nil {
			return fmt.Errorf("load catalog: %w", err)
		}
	}

	sel, err := prompt.NewSelector(catalog, hist).Pick(cfg.Prompt.Rotation, time.Now())
	if err != nil {
		return err
	}

	surface, err := browser.Open(ctx, cfg.Browser, logger)
	if err != nil {
		return fmt.Errorf("open browser: %w", err)
	}

	email, password := creds.Flipside()
	orch := chat.NewOrchestrator(chat.Options{
		Surface:        surface,
		Chat:           cfg.Chat,
		Credentials:    browser.Credentials{Email: email, Password: password},
		Templates:      templates,
		History:        hist,
		ScreenshotsDir: cfg.Storage.ScreenshotsDir,
		Publisher:      publisher,
		Log:            logger,
	})

	session, runErr := orch.RunWith(ctx, sel)

	rec := runRecord(session, sel)
	if err := recorder.AppendRunSummary(rec); err != nil {
		logger.Warn("run summary append failed", zap.Error(err))
	}
	resultPath, err := recorder.WriteRunResult(rec)
	if err != nil {
		logger.Warn("run result write failed", zap.Error(err))
	}

	printSessionSummary(session, resultPath)

	if runErr != nil {
		return runErr
	}
	if session.State == chat.StateFailed {
		return fmt.Errorf("session failed: %s", session.Err)
	}
	return nil
}

func runRecord(s chat.Session, sel prompt.Selection) logging.RunRecord {
	return logging.RunRecord{
		RunID:      s.ID,
		StartedAt:  s.StartedAt,
		FinishedAt: time.Now(),
		State:      string(s.State),
		Success:    s.State == chat.StateDone && s.Err == "",

		Prompt:    sel.Text,
		Condensed: sel.Condensed,

		TwitterText:    s.Result.TwitterText,
		ResponseText:   s.Result.ResponseText,
		ArtifactURL:    s.Result.ArtifactURL,
		Screenshots:    s.Result.Screenshots,
		TweetID:        s.Result.TweetID,
		Error:          s.Err,
		PartialResults: s.Result.PartialResults,
	}
}

func printSessionSummary(s chat.Session, resultPath string) {
	fmt.Printf("Session %s finished in state %s\n", s.ID, s.State)
	if s.Result.TwitterText != "" {
		fmt.Printf("  text (%s): %s\n", s.Result.ExtractStage, s.Result.TwitterText)
	}
	if s.Result.ArtifactURL != "" {
		fmt.Printf("  artifact: %s\n", s.Result.ArtifactURL)
	}
	if s.Result.TweetID != "" {
		fmt.Printf("  tweet: %s\n", s.Result.TweetID)
	}
	if s.Err != "" {
		fmt.Printf("  error: %s\n", s.Err)
	}
	if resultPath != "" {
		fmt.Printf("  result: %s\n", resultPath)
	}
}

func postSaved(cmd *cobra.Command, args []string) error {
	creds := config.LoadCredentials()
	if err := creds.Validate(true); err != nil {
		return err
	}

	rec, err := logging.ReadRunResult(args[0])
	if err != nil {
		return err
	}
	if rec.TwitterText == "" {
		return fmt.Errorf("run %s has no tweet text to post", rec.RunID)
	}
	if rec.TweetID != "" {
		return fmt.Errorf("run %s was already posted as tweet %s", rec.RunID, rec.TweetID)
	}

	ctx, cancel := signalContext()
	defer cancel()

	var screenshot string
	if len(rec.Screenshots) > 0 {
		screenshot = rec.Screenshots[0]
	}
	link := artifact.ToDirectChatURL(rec.ArtifactURL)

	recorder := logging.NewRecorder(cfg.Storage.LogsDir, cfg.Storage.ResultsDir)
	pipeline := twitter.NewPipeline(creds, cfg.Twitter, recorder, logger)

	tweetID, err := pipeline.Publish(ctx, rec.RunID, rec.TwitterText, screenshot, link)
	if err != nil {
		return err
	}

	rec.TweetID = tweetID
	rec.Success = true
	if _, err := recorder.WriteRunResult(rec); err != nil {
		logger.Warn("run result update failed", zap.Error(err))
	}

	fmt.Printf("Posted run %s as tweet %s\n", rec.RunID, tweetID)
	return nil
}

func showHistory(cmd *cobra.Command, args []string) error {
	hist, err := history.Open(cfg.Prompt.HistoryPath)
	if err != nil {
		return err
	}

	entries := hist.Entries()
	if len(entries) == 0 {
		fmt.Println("No prompts used yet.")
		return nil
	}

	fmt.Printf("%d prompts in history (most recent last):\n", len(entries))
	for _, e := range entries {
		fmt.Printf("  %s  %s\n", e.UsedAt.Format("2006-01-02 15:04"), e.CondensedPrompt)
	}
	return nil
}

func showPrompts(cmd *cobra.Command, args []string) error {
	hist, err := history.Open(cfg.Prompt.HistoryPath)
	if err != nil {
		return err
	}

	catalog := prompt.DefaultCatalog()
	if cfg.Prompt.CatalogPath != "" {
		if catalog, err = prompt.LoadCatalog(cfg.Prompt.CatalogPath); err != nil {
			return err
		}
	}

	stats := prompt.NewSelector(catalog, hist).Stats()
	fmt.Printf("Catalog: %d prompts, %d used, %d available\n",
		stats.Total, stats.Used, stats.Available)
	for _, c := range stats.Categories {
		fmt.Printf("  %-22s %d/%d used\n", c.Name, c.Used, c.Total)
	}
	return nil
}
