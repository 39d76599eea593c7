package video

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
	"go.uber.org/zap/zaptest"
)

func newSoraServer(t *testing.T, fail bool) *httptest.Server {
	t.Helper()
	var polls atomic.Int32
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-video", r.Header.Get("Authorization"))
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/videos":
			var body soraCreateRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "sora-2", body.Model)
			assert.Equal(t, "8", body.Seconds)
			assert.Equal(t, "1280x720", body.Size)
			_, _ = w.Write([]byte(`{"id":"video_1","status":"queued"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/v1/videos/video_1":
			if polls.Add(1) < 2 {
				_, _ = w.Write([]byte(`{"id":"video_1","status":"in_progress","progress":40}`))
				return
			}
			if fail {
				_, _ = w.Write([]byte(`{"id":"video_1","status":"failed","error":{"code":"moderation","message":"blocked"}}`))
				return
			}
			_, _ = w.Write([]byte(`{"id":"video_1","status":"completed","progress":100}`))
		case r.Method == http.MethodGet && r.URL.Path == "/v1/videos/video_1/content":
			_, _ = w.Write([]byte("MP4DATA"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func newTestSora(t *testing.T, baseURL string) *SoraProvider {
	return NewSoraProvider(SoraConfig{
		APIKey:       "sk-video",
		BaseURL:      baseURL,
		OutputDir:    t.TempDir(),
		PollInterval: 10 * time.Millisecond,
	}, zaptest.NewLogger(t))
}

func TestSoraProvider_Generate(t *testing.T) {
	srv := newSoraServer(t, false)
	defer srv.Close()

	p := newTestSora(t, srv.URL)
	res, err := p.Generate(context.Background(), &GenerateRequest{Prompt: "waves", Seconds: 8, Size: "1280x720"})
	require.NoError(t, err)

	assert.Equal(t, "video_1", res.VideoID)
	assert.Equal(t, filepath.Join(p.cfg.OutputDir, "video_1.mp4"), res.Path)
	data, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	assert.Equal(t, "MP4DATA", string(data))
}

func TestSoraProvider_Generate_Failed(t *testing.T) {
	srv := newSoraServer(t, true)
	defer srv.Close()

	_, err := newTestSora(t, srv.URL).Generate(context.Background(), &GenerateRequest{Prompt: "waves", Seconds: 8, Size: "1280x720"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blocked")
}

func TestSoraProvider_MissingKey(t *testing.T) {
	p := NewSoraProvider(SoraConfig{}, nil)
	assert.Equal(t, "sora", p.Name())
	assert.Equal(t, DefaultSoraConfig().PollInterval, p.cfg.PollInterval)

	_, err := p.Generate(context.Background(), &GenerateRequest{Prompt: "x"})
	assert.Error(t, err)
}

func TestSoraProvider_CreateError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad size"}}`))
	}))
	defer srv.Close()

	_, err := newTestSora(t, srv.URL).Generate(context.Background(), &GenerateRequest{Prompt: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=400")
}
