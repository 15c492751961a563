package twitter

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"flipbot/internal/config"
	"flipbot/internal/logging"
)

// MediaUploader is the slice of Client the pipeline needs; split out so tests
// can stub the network.
type MediaUploader interface {
	UploadMedia(ctx context.Context, path string) (string, error)
	CreateTweet(ctx context.Context, text string, mediaIDs []string) (string, error)
}

// Pipeline drafts, posts, and records one tweet per run. Media failures
// degrade to a text-only post; only tweet creation itself is fatal. Every
// attempt lands in the daily post log either way.
type Pipeline struct {
	client   MediaUploader
	recorder *logging.Recorder
	cfg      config.TwitterConfig
	log      *zap.Logger
}

// NewPipeline wires the publish pipeline from validated credentials.
func NewPipeline(creds config.Credentials, cfg config.TwitterConfig, recorder *logging.Recorder, log *zap.Logger) *Pipeline {
	client := NewClient(
		creds.TwitterAPIKey, creds.TwitterAPISecret,
		creds.TwitterAccessToken, creds.TwitterAccessSecret,
		cfg.ProcessingTimeout(), log,
	)
	return &Pipeline{
		client:   client,
		recorder: recorder,
		cfg:      cfg,
		log:      log.Named("publish"),
	}
}

// Publish formats the extracted text, uploads the screenshot when present,
// and creates the tweet. Implements the orchestrator's Publisher.
func (p *Pipeline) Publish(ctx context.Context, runID, text, imagePath, linkURL string) (string, error) {
	draft := BuildDraft(text, imagePath, linkURL)
	if draft.Content == "" {
		return "", fmt.Errorf("nothing to post")
	}

	rec := logging.PostRecord{
		RunID:       runID,
		Content:     draft.Content,
		ArtifactURL: draft.LinkURL,
	}

	var mediaIDs []string
	if draft.ImagePath != "" {
		uploadCtx, cancel := context.WithTimeout(ctx, p.cfg.UploadTimeout())
		mediaID, err := p.client.UploadMedia(uploadCtx, draft.ImagePath)
		cancel()
		if err != nil {
			// Chart upload is best effort; the text still goes out.
			p.log.Warn("media upload failed, posting text only",
				zap.String("image", draft.ImagePath), zap.Error(err))
		} else {
			mediaIDs = append(mediaIDs, mediaID)
			rec.MediaID = mediaID
		}
	}

	tweetID, err := p.client.CreateTweet(ctx, draft.Content, mediaIDs)
	if err != nil {
		rec.Error = err.Error()
		p.record(rec)
		return "", fmt.Errorf("create tweet: %w", err)
	}

	rec.TweetID = tweetID
	rec.Success = true
	rec.PostedAt = time.Now()
	p.record(rec)

	p.log.Info("tweet posted",
		zap.String("run_id", runID),
		zap.String("tweet_id", tweetID),
		zap.Int("length", len([]rune(draft.Content))),
		zap.Bool("with_media", len(mediaIDs) > 0))
	return tweetID, nil
}

func (p *Pipeline) record(rec logging.PostRecord) {
	if err := p.recorder.AppendPost(rec); err != nil {
		p.log.Warn("post log append failed", zap.Error(err))
	}
}
