package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// PostRecord is one publish attempt. Every attempt is recorded, successful
// or not; the daily file is the system of record for what went out.
type PostRecord struct {
	PostedAt    time.Time `json:"posted_at"`
	RunID       string    `json:"run_id"`
	TweetID     string    `json:"tweet_id,omitempty"`
	Content     string    `json:"content"`
	MediaID     string    `json:"media_id,omitempty"`
	ArtifactURL string    `json:"artifact_url,omitempty"`
	Success     bool      `json:"success"`
	Error       string    `json:"error,omitempty"`
}

// RunRecord summarizes one pipeline run.
type RunRecord struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	State      string    `json:"state"`
	Success    bool      `json:"success"`

	Prompt    string `json:"prompt"`
	Condensed string `json:"condensed_prompt"`

	TwitterText    string   `json:"twitter_text,omitempty"`
	ResponseText   string   `json:"response_text,omitempty"`
	ArtifactURL    string   `json:"artifact_url,omitempty"`
	Screenshots    []string `json:"screenshots,omitempty"`
	TweetID        string   `json:"tweet_id,omitempty"`
	Error          string   `json:"error,omitempty"`
	PartialResults bool     `json:"partial_results,omitempty"`
}

// Recorder appends audit records under the logs directory and writes full
// run results under the results directory.
type Recorder struct {
	logsDir    string
	resultsDir string
	mu         sync.Mutex

	// now is replaceable in tests to pin the daily file name.
	now func() time.Time
}

// NewRecorder builds a Recorder over the two storage directories.
func NewRecorder(logsDir, resultsDir string) *Recorder {
	return &Recorder{logsDir: logsDir, resultsDir: resultsDir, now: time.Now}
}

// PostLogPath returns the daily publish log path for t.
func (r *Recorder) PostLogPath(t time.Time) string {
	return filepath.Join(r.logsDir, fmt.Sprintf("twitter_posts_%s.jsonl", t.Format("20060102")))
}

// SummaryPath returns the daily run summary path for t.
func (r *Recorder) SummaryPath(t time.Time) string {
	return filepath.Join(r.logsDir, fmt.Sprintf("daily_summary_%s.jsonl", t.Format("20060102")))
}

// AppendPost appends a publish record to today's post log.
func (r *Recorder) AppendPost(rec PostRecord) error {
	if rec.PostedAt.IsZero() {
		rec.PostedAt = r.now()
	}
	return r.appendJSONL(r.PostLogPath(rec.PostedAt), rec)
}

// AppendRunSummary appends a run record to today's summary log.
func (r *Recorder) AppendRunSummary(rec RunRecord) error {
	when := rec.FinishedAt
	if when.IsZero() {
		when = r.now()
	}
	return r.appendJSONL(r.SummaryPath(when), rec)
}

// WriteRunResult writes the full run record as a standalone JSON file and
// returns its path.
func (r *Recorder) WriteRunResult(rec RunRecord) (string, error) {
	if err := os.MkdirAll(r.resultsDir, 0o755); err != nil {
		return "", fmt.Errorf("create results dir: %w", err)
	}

	name := fmt.Sprintf("run_%s.json", r.now().Format("20060102_150405"))
	if rec.RunID != "" {
		name = fmt.Sprintf("run_%s.json", rec.RunID)
	}
	path := filepath.Join(r.resultsDir, name)

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode run record: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write run record: %w", err)
	}
	return path, nil
}

// ReadRunResult loads a run record written by WriteRunResult.
func ReadRunResult(path string) (RunRecord, error) {
	var rec RunRecord
	data, err := os.ReadFile(path)
	if err != nil {
		return rec, fmt.Errorf("read run record: %w", err)
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("parse run record %s: %w", path, err)
	}
	return rec, nil
}

func (r *Recorder) appendJSONL(path string, v interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append %s: %w", path, err)
	}
	return nil
}
