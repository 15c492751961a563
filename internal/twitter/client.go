package twitter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/dghubble/oauth1"
	"go.uber.org/zap"
)

const (
	mediaUploadURL = "https://upload.twitter.com/1.1/media/upload.json"
	createTweetURL = "https://api.twitter.com/2/tweets"

	// mediaChunkSize is the APPEND segment size.
	mediaChunkSize = 1 << 20
)

// Client talks to the Twitter API: v1.1 chunked media upload with its async
// processing poll, and the v2 create-tweet endpoint. All requests are
// OAuth1-signed user-context calls.
type Client struct {
	http *http.Client
	log  *zap.Logger

	// Endpoint overrides for tests; zero values mean the real API.
	uploadURL string
	tweetURL  string

	processingTimeout time.Duration
}

// NewClient builds a Client signing with the given user credentials.
func NewClient(apiKey, apiSecret, accessToken, accessSecret string, processingTimeout time.Duration, log *zap.Logger) *Client {
	cfg := oauth1.NewConfig(apiKey, apiSecret)
	token := oauth1.NewToken(accessToken, accessSecret)

	return &Client{
		http:              cfg.Client(oauth1.NoContext, token),
		log:               log.Named("twitter"),
		uploadURL:         mediaUploadURL,
		tweetURL:          createTweetURL,
		processingTimeout: processingTimeout,
	}
}

type mediaUploadResponse struct {
	MediaIDString  string `json:"media_id_string"`
	ProcessingInfo *struct {
		State          string `json:"state"`
		CheckAfterSecs int    `json:"check_after_secs"`
		Error          *struct {
			Message string `json:"message"`
		} `json:"error"`
	} `json:"processing_info"`
}

// UploadMedia pushes a PNG through INIT/APPEND/FINALIZE and waits out any
// async processing. Returns the media ID to attach to a tweet.
func (c *Client) UploadMedia(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read media: %w", err)
	}

	mediaID, err := c.mediaInit(ctx, len(data))
	if err != nil {
		return "", err
	}
	c.log.Debug("media init ok", zap.String("media_id", mediaID), zap.Int("bytes", len(data)))

	for segment := 0; segment*mediaChunkSize < len(data); segment++ {
		start := segment * mediaChunkSize
		end := start + mediaChunkSize
		if end > len(data) {
			end = len(data)
		}
		if err := c.mediaAppend(ctx, mediaID, segment, data[start:end]); err != nil {
			return "", err
		}
	}

	status, err := c.mediaFinalize(ctx, mediaID)
	if err != nil {
		return "", err
	}
	if status.ProcessingInfo != nil {
		if err := c.waitProcessing(ctx, mediaID, status); err != nil {
			return "", err
		}
	}

	c.log.Info("media uploaded", zap.String("media_id", mediaID))
	return mediaID, nil
}

func (c *Client) mediaInit(ctx context.Context, totalBytes int) (string, error) {
	form := url.Values{
		"command":        {"INIT"},
		"total_bytes":    {strconv.Itoa(totalBytes)},
		"media_type":     {"image/png"},
		"media_category": {"tweet_image"},
	}
	var resp mediaUploadResponse
	if err := c.postForm(ctx, form, &resp); err != nil {
		return "", fmt.Errorf("media init: %w", err)
	}
	if resp.MediaIDString == "" {
		return "", fmt.Errorf("media init: no media id in response")
	}
	return resp.MediaIDString, nil
}

func (c *Client) mediaAppend(ctx context.Context, mediaID string, segment int, chunk []byte) error {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	_ = w.WriteField("command", "APPEND")
	_ = w.WriteField("media_id", mediaID)
	_ = w.WriteField("segment_index", strconv.Itoa(segment))

	part, err := w.CreateFormFile("media", "chunk")
	if err != nil {
		return fmt.Errorf("media append: %w", err)
	}
	if _, err := part.Write(chunk); err != nil {
		return fmt.Errorf("media append: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("media append: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadURL, &body)
	if err != nil {
		return fmt.Errorf("media append: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("media append segment %d: %w", segment, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("media append segment %d: status %d: %s", segment, resp.StatusCode, msg)
	}
	return nil
}

func (c *Client) mediaFinalize(ctx context.Context, mediaID string) (mediaUploadResponse, error) {
	form := url.Values{
		"command":  {"FINALIZE"},
		"media_id": {mediaID},
	}
	var resp mediaUploadResponse
	if err := c.postForm(ctx, form, &resp); err != nil {
		return resp, fmt.Errorf("media finalize: %w", err)
	}
	return resp, nil
}

// waitProcessing polls STATUS until the platform reports success or
// failure, honoring its suggested backoff, bounded by processingTimeout.
func (c *Client) waitProcessing(ctx context.Context, mediaID string, status mediaUploadResponse) error {
	deadline := time.Now().Add(c.processingTimeout)

	for {
		info := status.ProcessingInfo
		if info == nil || info.State == "succeeded" {
			return nil
		}
		if info.State == "failed" {
			msg := "unknown"
			if info.Error != nil {
				msg = info.Error.Message
			}
			return fmt.Errorf("media processing failed: %s", msg)
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("media processing timed out in state %s", info.State)
		}

		wait := time.Duration(info.CheckAfterSecs) * time.Second
		if wait <= 0 {
			wait = time.Second
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}

		form := url.Values{
			"command":  {"STATUS"},
			"media_id": {mediaID},
		}
		status = mediaUploadResponse{}
		if err := c.getForm(ctx, form, &status); err != nil {
			return fmt.Errorf("media status: %w", err)
		}
	}
}

type createTweetRequest struct {
	Text  string `json:"text"`
	Media *struct {
		MediaIDs []string `json:"media_ids"`
	} `json:"media,omitempty"`
}

type createTweetResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

// CreateTweet posts text with optional attached media and returns the new
// tweet's ID.
func (c *Client) CreateTweet(ctx context.Context, text string, mediaIDs []string) (string, error) {
	payload := createTweetRequest{Text: text}
	if len(mediaIDs) > 0 {
		payload.Media = &struct {
			MediaIDs []string `json:"media_ids"`
		}{MediaIDs: mediaIDs}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode tweet: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tweetURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create tweet: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("create tweet: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("create tweet: status %d: %s", resp.StatusCode, msg)
	}

	var out createTweetResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode tweet response: %w", err)
	}
	if out.Data.ID == "" {
		return "", fmt.Errorf("create tweet: no id in response")
	}
	return out.Data.ID, nil
}

func (c *Client) postForm(ctx context.Context, form url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadURL,
		bytes.NewBufferString(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, out)
}

func (c *Client) getForm(ctx context.Context, form url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.uploadURL+"?"+form.Encode(), nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, msg)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
