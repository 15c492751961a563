package logging

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRecorder(t *testing.T) *Recorder {
	t.Helper()
	dir := t.TempDir()
	r := NewRecorder(filepath.Join(dir, "logs"), filepath.Join(dir, "results"))
	r.now = func() time.Time { return time.Date(2026, 8, 23, 10, 30, 0, 0, time.UTC) }
	return r
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	require.NoError(t, sc.Err())
	return lines
}

func TestAppendPostDailyFile(t *testing.T) {
	r := newTestRecorder(t)

	require.NoError(t, r.AppendPost(PostRecord{RunID: "r1", Content: "first", Success: true}))
	require.NoError(t, r.AppendPost(PostRecord{RunID: "r2", Content: "second", Success: false, Error: "media upload failed"}))

	path := r.PostLogPath(r.now())
	assert.True(t, strings.HasSuffix(path, "twitter_posts_20260823.jsonl"))

	lines := readLines(t, path)
	require.Len(t, lines, 2)

	var rec PostRecord
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &rec))
	assert.Equal(t, "second", rec.Content)
	assert.False(t, rec.Success)
	assert.Equal(t, "media upload failed", rec.Error)
}

func TestAppendPostKeepsExplicitTimestamp(t *testing.T) {
	r := newTestRecorder(t)
	posted := time.Date(2026, 8, 22, 23, 59, 0, 0, time.UTC)

	require.NoError(t, r.AppendPost(PostRecord{PostedAt: posted, RunID: "r1", Content: "late"}))

	lines := readLines(t, r.PostLogPath(posted))
	require.Len(t, lines, 1)
}

func TestRunSummaryAppend(t *testing.T) {
	r := newTestRecorder(t)
	rec := RunRecord{
		RunID:     "abc",
		State:     "done",
		Success:   true,
		Prompt:    "Analyze stablecoin supply.",
		Condensed: "market_insights:multi:stablecoin-supply",
	}
	require.NoError(t, r.AppendRunSummary(rec))

	lines := readLines(t, r.SummaryPath(r.now()))
	require.Len(t, lines, 1)

	var got RunRecord
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &got))
	assert.Equal(t, "abc", got.RunID)
	assert.Equal(t, "done", got.State)
}

func TestWriteAndReadRunResult(t *testing.T) {
	r := newTestRecorder(t)
	rec := RunRecord{
		RunID:       "abc",
		State:       "extracted",
		TwitterText: "Chain X grew 40%\n• users up",
		ArtifactURL: "https://flipsidecrypto.xyz/chat/shared/artifacts/defi-users-a1b2c3",
	}

	path, err := r.WriteRunResult(rec)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "run_abc.json"))

	got, err := ReadRunResult(path)
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

func TestNewLoggerRejectsBadLevel(t *testing.T) {
	_, err := New("loud", "")
	require.Error(t, err)
}

func TestNewLoggerCreatesFileDir(t *testing.T) {
	file := filepath.Join(t.TempDir(), "logs", "flipbot.log")
	log, err := New("info", file)
	require.NoError(t, err)
	log.Info("started")
	require.NoError(t, log.Sync())

	_, err = os.Stat(file)
	require.NoError(t, err)
}
