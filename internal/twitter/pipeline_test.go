package twitter

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"flipbot/internal/config"
	"flipbot/internal/logging"
)

type stubUploader struct {
	mediaID   string
	uploadErr error
	tweetID   string
	tweetErr  error

	uploadedPath string
	tweetText    string
	tweetMedia   []string
}

func (s *stubUploader) UploadMedia(_ context.Context, path string) (string, error) {
	s.uploadedPath = path
	return s.mediaID, s.uploadErr
}

func (s *stubUploader) CreateTweet(_ context.Context, text string, mediaIDs []string) (string, error) {
	s.tweetText = text
	s.tweetMedia = mediaIDs
	return s.tweetID, s.tweetErr
}

func testPipeline(t *testing.T, stub *stubUploader) (*Pipeline, *logging.Recorder) {
	t.Helper()
	dir := t.TempDir()
	rec := logging.NewRecorder(dir, dir)
	return &Pipeline{
		client:   stub,
		recorder: rec,
		cfg:      config.DefaultConfig().Twitter,
		log:      zap.NewNop(),
	}, rec
}

func TestPublishWithMedia(t *testing.T) {
	stub := &stubUploader{mediaID: "42", tweetID: "1001"}
	p, rec := testPipeline(t, stub)

	id, err := p.Publish(context.Background(), "run1",
		"Chain X grew 40% this quarter\n• users up\n• volume up", "shots/chart.png",
		"https://flipsidecrypto.xyz/chat/shared/artifacts/vol-abc")
	require.NoError(t, err)
	assert.Equal(t, "1001", id)
	assert.Equal(t, "shots/chart.png", stub.uploadedPath)
	assert.Equal(t, []string{"42"}, stub.tweetMedia)

	data, err := os.ReadFile(rec.PostLogPath(time.Now()))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"tweet_id":"1001"`)
	assert.Contains(t, string(data), `"success":true`)
}

func TestPublishTextOnlyWhenUploadFails(t *testing.T) {
	stub := &stubUploader{uploadErr: errors.New("upload boom"), tweetID: "1002"}
	p, _ := testPipeline(t, stub)

	id, err := p.Publish(context.Background(), "run2", "still worth posting", "shots/chart.png", "")
	require.NoError(t, err)
	assert.Equal(t, "1002", id)
	assert.Empty(t, stub.tweetMedia)
}

func TestPublishSkipsUploadWithoutImage(t *testing.T) {
	stub := &stubUploader{tweetID: "1003"}
	p, _ := testPipeline(t, stub)

	_, err := p.Publish(context.Background(), "run3", "no chart this run", "", "")
	require.NoError(t, err)
	assert.Empty(t, stub.uploadedPath)
}

func TestPublishTweetFailureRecorded(t *testing.T) {
	stub := &stubUploader{tweetErr: errors.New("duplicate content")}
	p, rec := testPipeline(t, stub)

	_, err := p.Publish(context.Background(), "run4", "same text twice", "", "")
	require.Error(t, err)

	data, readErr := os.ReadFile(rec.PostLogPath(time.Now()))
	require.NoError(t, readErr)
	assert.Contains(t, string(data), `"success":false`)
	assert.Contains(t, string(data), "duplicate content")
}

func TestPublishRejectsEmptyText(t *testing.T) {
	stub := &stubUploader{tweetID: "never"}
	p, _ := testPipeline(t, stub)

	_, err := p.Publish(context.Background(), "run5", "   \n  ", "", "")
	require.Error(t, err)
	assert.Empty(t, stub.tweetText)
}

func TestPublishTruncatesBeforePosting(t *testing.T) {
	stub := &stubUploader{tweetID: "1006"}
	p, _ := testPipeline(t, stub)

	long := "headline\n" + strings.Repeat("• padded analytics bullet for the length check\n", 20)
	_, err := p.Publish(context.Background(), "run6", long, "", "")
	require.NoError(t, err)
	assert.LessOrEqual(t, len([]rune(stub.tweetText)), MaxTweetLen)
}
