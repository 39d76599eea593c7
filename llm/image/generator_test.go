package image

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	resp *GenerateResponse
	err  error
	got  *GenerateRequest
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Generate(_ context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	s.got = req
	return s.resp, s.err
}

func fixedNow() time.Time {
	return time.Date(2026, 10, 14, 9, 30, 5, 123*int(time.Millisecond), time.UTC)
}

func TestPromptFromResponse(t *testing.T) {
	long := strings.Repeat("a", 400)
	got := PromptFromResponse("  " + long)
	assert.True(t, strings.HasPrefix(got, ArtistPreamble))
	assert.Equal(t, len(ArtistPreamble)+MaxPromptChars-2, len(got), "slice first, then trim")

	assert.Equal(t, ArtistPreamble+"short", PromptFromResponse(" short "))
}

func TestGenerator_SavesInlineData(t *testing.T) {
	dir := t.TempDir()
	stub := &stubProvider{resp: &GenerateResponse{Provider: "stub", Images: []ImageData{{Data: []byte("PNG"), MimeType: "image/png"}}}}
	g := NewGenerator(stub, dir, nil)
	g.now = fixedNow

	res := g.FromResponse(context.Background(), "a vivid description of tides")
	require.True(t, res.Success, res.Error)
	assert.Equal(t, filepath.Join(dir, "generated_20261014_093005_123.png"), res.Path)
	assert.True(t, strings.HasPrefix(stub.got.Prompt, ArtistPreamble))

	data, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	assert.Equal(t, "PNG", string(data))
}

func TestGenerator_DownloadsURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("FROMURL"))
	}))
	defer srv.Close()

	stub := &stubProvider{resp: &GenerateResponse{Images: []ImageData{{URL: srv.URL + "/img.png"}}}}
	g := NewGenerator(stub, t.TempDir(), nil)
	res := g.Generate(context.Background(), "x")
	require.True(t, res.Success, res.Error)
	data, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	assert.Equal(t, "FROMURL", string(data))
}

func TestGenerator_Failures(t *testing.T) {
	tests := []struct {
		name string
		p    Provider
		want string
	}{
		{"nil provider", nil, "not configured"},
		{"provider error", &stubProvider{err: errors.New("quota")}, "quota"},
		{"no images", &stubProvider{resp: &GenerateResponse{}}, "no image"},
		{"empty image", &stubProvider{resp: &GenerateResponse{Images: []ImageData{{}}}}, "neither"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := NewGenerator(tt.p, t.TempDir(), nil).Generate(context.Background(), "x")
			assert.False(t, res.Success)
			assert.Contains(t, res.Error, tt.want)
		})
	}
}

func TestExtensionFor(t *testing.T) {
	assert.Equal(t, "jpg", extensionFor("image/jpeg"))
	assert.Equal(t, "webp", extensionFor("image/webp"))
	assert.Equal(t, "png", extensionFor(""))
}

func TestOpenAIProvider_Generate(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte("IMG"))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/images/generations", r.URL.Path)
		assert.Equal(t, "Bearer sk-img", r.Header.Get("Authorization"))
		var body dalleRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "dall-e-3", body.Model)
		assert.Equal(t, "1024x1024", body.Size)
		_, _ = fmt.Fprintf(w, `{"created":1700000000,"data":[{"b64_json":%q,"revised_prompt":"r"}]}`, encoded)
	}))
	defer srv.Close()

	p := NewOpenAIProvider(OpenAIConfig{APIKey: "sk-img", BaseURL: srv.URL})
	resp, err := p.Generate(context.Background(), &GenerateRequest{Prompt: "tides"})
	require.NoError(t, err)
	require.Len(t, resp.Images, 1)
	assert.Equal(t, []byte("IMG"), resp.Images[0].Data)
	assert.Equal(t, "r", resp.Images[0].RevisedPrompt)
}

func TestOpenAIProvider_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"content policy"}}`))
	}))
	defer srv.Close()

	_, err := NewOpenAIProvider(OpenAIConfig{BaseURL: srv.URL}).Generate(context.Background(), &GenerateRequest{Prompt: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "content policy")
}

func TestGeminiProvider_MissingKey(t *testing.T) {
	p := NewGeminiProvider(GeminiConfig{})
	assert.Equal(t, DefaultGeminiConfig().Model, p.cfg.Model)
	_, err := p.Generate(context.Background(), &GenerateRequest{Prompt: "x"})
	assert.Error(t, err)
}
