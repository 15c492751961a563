package twitter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testClient(srv *httptest.Server) *Client {
	return &Client{
		http:              srv.Client(),
		log:               zap.NewNop(),
		uploadURL:         srv.URL + "/1.1/media/upload.json",
		tweetURL:          srv.URL + "/2/tweets",
		processingTimeout: 10 * time.Second,
	}
}

func writeTestImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chart.png")
	require.NoError(t, os.WriteFile(path, []byte("not-a-real-png"), 0o644))
	return path
}

func TestUploadMediaFullFlow(t *testing.T) {
	var commands []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cmd := r.FormValue("command")
		commands = append(commands, cmd)

		switch cmd {
		case "INIT":
			assert.Equal(t, "image/png", r.FormValue("media_type"))
			assert.Equal(t, "tweet_image", r.FormValue("media_category"))
			_ = json.NewEncoder(w).Encode(map[string]string{"media_id_string": "710511363345354753"})
		case "APPEND":
			assert.Equal(t, "710511363345354753", r.FormValue("media_id"))
			w.WriteHeader(http.StatusNoContent)
		case "FINALIZE":
			_ = json.NewEncoder(w).Encode(map[string]string{"media_id_string": "710511363345354753"})
		default:
			t.Fatalf("unexpected command %q", cmd)
		}
	}))
	defer srv.Close()

	id, err := testClient(srv).UploadMedia(context.Background(), writeTestImage(t))
	require.NoError(t, err)
	assert.Equal(t, "710511363345354753", id)
	assert.Equal(t, []string{"INIT", "APPEND", "FINALIZE"}, commands)
}

func TestUploadMediaWaitsForProcessing(t *testing.T) {
	var statusCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			// STATUS poll: pending once, then succeeded.
			state := "succeeded"
			if statusCalls.Add(1) == 1 {
				state = "in_progress"
			}
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"media_id_string": "42",
				"processing_info": map[string]interface{}{"state": state, "check_after_secs": 0},
			})
			return
		}
		switch r.FormValue("command") {
		case "INIT":
			_ = json.NewEncoder(w).Encode(map[string]string{"media_id_string": "42"})
		case "APPEND":
			w.WriteHeader(http.StatusNoContent)
		case "FINALIZE":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"media_id_string": "42",
				"processing_info": map[string]interface{}{"state": "pending", "check_after_secs": 0},
			})
		}
	}))
	defer srv.Close()

	id, err := testClient(srv).UploadMedia(context.Background(), writeTestImage(t))
	require.NoError(t, err)
	assert.Equal(t, "42", id)
	assert.GreaterOrEqual(t, statusCalls.Load(), int32(2))
}

func TestUploadMediaProcessingFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.FormValue("command") {
		case "INIT":
			_ = json.NewEncoder(w).Encode(map[string]string{"media_id_string": "42"})
		case "APPEND":
			w.WriteHeader(http.StatusNoContent)
		case "FINALIZE":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"media_id_string": "42",
				"processing_info": map[string]interface{}{
					"state": "failed",
					"error": map[string]string{"message": "InvalidMedia"},
				},
			})
		}
	}))
	defer srv.Close()

	_, err := testClient(srv).UploadMedia(context.Background(), writeTestImage(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "InvalidMedia")
}

func TestUploadMediaMissingFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected when the file is missing")
	}))
	defer srv.Close()

	_, err := testClient(srv).UploadMedia(context.Background(), "/nonexistent/chart.png")
	require.Error(t, err)
}

func TestCreateTweetWithMedia(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req struct {
			Text  string `json:"text"`
			Media *struct {
				MediaIDs []string `json:"media_ids"`
			} `json:"media"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Chain X grew 40%", req.Text)
		require.NotNil(t, req.Media)
		assert.Equal(t, []string{"42"}, req.Media.MediaIDs)

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]map[string]string{"data": {"id": "1445880548472328192"}})
	}))
	defer srv.Close()

	id, err := testClient(srv).CreateTweet(context.Background(), "Chain X grew 40%", []string{"42"})
	require.NoError(t, err)
	assert.Equal(t, "1445880548472328192", id)
}

func TestCreateTweetTextOnlyOmitsMedia(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		_, hasMedia := raw["media"]
		assert.False(t, hasMedia)
		_ = json.NewEncoder(w).Encode(map[string]map[string]string{"data": {"id": "7"}})
	}))
	defer srv.Close()

	id, err := testClient(srv).CreateTweet(context.Background(), "text only", nil)
	require.NoError(t, err)
	assert.Equal(t, "7", id)
}

func TestCreateTweetAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"detail":"duplicate content"}`))
	}))
	defer srv.Close()

	_, err := testClient(srv).CreateTweet(context.Background(), "dup", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}
