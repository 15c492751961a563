// Package config loads the flipbot configuration: YAML file over defaults,
// environment overrides on top. Credentials never live in the file; they are
// read from the environment and their absence is a fatal startup error.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"flipbot/internal/browser"
)

// Config holds all flipbot configuration.
type Config struct {
	Name string `yaml:"name"`

	// Chat surface endpoints and pipeline timing.
	Chat ChatConfig `yaml:"chat"`

	// Browser launch/attach settings.
	Browser browser.Config `yaml:"browser"`

	// Prompt catalog, templates, and history ledger.
	Prompt PromptConfig `yaml:"prompt"`

	// Twitter publishing.
	Twitter TwitterConfig `yaml:"twitter"`

	// Local storage layout.
	Storage StorageConfig `yaml:"storage"`

	// Logging.
	Logging LoggingConfig `yaml:"logging"`
}

// ChatConfig configures the chat surface and the completion detector. All
// timing values are whole seconds.
type ChatConfig struct {
	BaseURL   string `yaml:"base_url"`
	LoginPath string `yaml:"login_path"`
	ChatPath  string `yaml:"chat_path"`

	LoginTimeoutS      int `yaml:"login_timeout_s"`
	CheckpointTimeoutS int `yaml:"checkpoint_timeout_s"`
	ResponseTimeoutS   int `yaml:"response_timeout_s"`
	ResponseGraceS     int `yaml:"response_grace_s"`
	PollIntervalS      int `yaml:"poll_interval_s"`
	SettleDelayS       int `yaml:"settle_delay_s"`
	NavSettleS         int `yaml:"nav_settle_s"`
}

// LoginURL returns the absolute login page URL.
func (c ChatConfig) LoginURL() string { return c.BaseURL + c.LoginPath }

// ChatURL returns the absolute chat page URL.
func (c ChatConfig) ChatURL() string { return c.BaseURL + c.ChatPath }

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

func (c ChatConfig) LoginTimeout() time.Duration      { return seconds(c.LoginTimeoutS) }
func (c ChatConfig) CheckpointTimeout() time.Duration { return seconds(c.CheckpointTimeoutS) }
func (c ChatConfig) ResponseTimeout() time.Duration   { return seconds(c.ResponseTimeoutS) }
func (c ChatConfig) ResponseGrace() time.Duration     { return seconds(c.ResponseGraceS) }
func (c ChatConfig) PollInterval() time.Duration      { return seconds(c.PollIntervalS) }
func (c ChatConfig) SettleDelay() time.Duration       { return seconds(c.SettleDelayS) }
func (c ChatConfig) NavSettle() time.Duration         { return seconds(c.NavSettleS) }

// PromptConfig configures prompt selection.
type PromptConfig struct {
	// CatalogPath overrides the embedded prompt catalog.
	CatalogPath string `yaml:"catalog_path"`
	// TemplatesPath overrides the built-in phase templates.
	TemplatesPath string `yaml:"templates_path"`
	// HistoryPath locates the prompt history ledger.
	HistoryPath string `yaml:"history_path"`
	// Rotation is "daily" or "random".
	Rotation string `yaml:"rotation"`
}

// TwitterConfig configures the publish pipeline. Credentials come from the
// environment, never from this struct.
type TwitterConfig struct {
	Enabled bool `yaml:"enabled"`

	UploadTimeoutS     int `yaml:"upload_timeout_s"`
	ProcessingTimeoutS int `yaml:"processing_timeout_s"`
}

func (c TwitterConfig) UploadTimeout() time.Duration     { return seconds(c.UploadTimeoutS) }
func (c TwitterConfig) ProcessingTimeout() time.Duration { return seconds(c.ProcessingTimeoutS) }

// StorageConfig lays out the local working directories.
type StorageConfig struct {
	ScreenshotsDir string `yaml:"screenshots_dir"`
	LogsDir        string `yaml:"logs_dir"`
	ResultsDir     string `yaml:"results_dir"`
}

// LoggingConfig configures process logging.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	File  string `yaml:"file"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name: "flipbot",

		Chat: ChatConfig{
			BaseURL:   "https://flipsidecrypto.xyz",
			LoginPath: "/auth/signin",
			ChatPath:  "/chat",

			LoginTimeoutS:      60,
			CheckpointTimeoutS: 300,
			ResponseTimeoutS:   600,
			ResponseGraceS:     180,
			PollIntervalS:      5,
			SettleDelayS:       30,
			NavSettleS:         5,
		},

		Browser: browser.DefaultConfig(),

		Prompt: PromptConfig{
			HistoryPath: "data/prompt_history.json",
			Rotation:    "daily",
		},

		Twitter: TwitterConfig{
			Enabled:            true,
			UploadTimeoutS:     60,
			ProcessingTimeoutS: 60,
		},

		Storage: StorageConfig{
			ScreenshotsDir: "screenshots",
			LogsDir:        "logs",
			ResultsDir:     "results",
		},

		Logging: LoggingConfig{
			Level: "info",
			File:  "logs/flipbot.log",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields defaults;
// environment overrides always apply.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if url := os.Getenv("FLIPBOT_CHAT_URL"); url != "" {
		c.Chat.BaseURL = url
	}
	if url := os.Getenv("FLIPBOT_DEBUGGER_URL"); url != "" {
		c.Browser.DebuggerURL = url
	}
	if v := os.Getenv("FLIPBOT_HEADLESS"); v != "" {
		if headless, err := strconv.ParseBool(v); err == nil {
			c.Browser.Headless = headless
		}
	}
	if path := os.Getenv("FLIPBOT_HISTORY"); path != "" {
		c.Prompt.HistoryPath = path
	}
	if level := os.Getenv("FLIPBOT_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}
