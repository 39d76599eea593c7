package gemini

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/BaSui01/liminal/llm"
	"github.com/BaSui01/liminal/llm/providers"
	"github.com/BaSui01/liminal/types"
)

func TestGeminiProvider_Name(t *testing.T) {
	provider := NewGeminiProvider(providers.GeminiConfig{}, zap.NewNop())
	assert.Equal(t, "gemini", provider.Name())
	assert.True(t, provider.SupportsStreaming())
}

func TestGeminiProvider_DefaultModel(t *testing.T) {
	assert.Equal(t, defaultModel, providers.ChooseModel(nil, "", defaultModel))
}

func TestConvertTurns(t *testing.T) {
	msgs := []types.Message{
		types.NewUserMessage("[User]: hi"),
		types.NewAssistantMessage("hello", "AI-1", "m"),
		types.NewUserMessage("").WithContent(types.Parts(
			types.TextPart("look"),
			types.ImagePart("image/png", "QUJD"),
			types.ImagePart("image/png", "%%%not-base64"),
		)),
	}
	got := ConvertTurns(msgs)
	require.Len(t, got, 3)

	assert.Equal(t, string(genai.RoleUser), got[0].Role)
	assert.Equal(t, string(genai.RoleModel), got[1].Role)
	assert.Equal(t, "hello", got[1].Parts[0].Text)

	require.Len(t, got[2].Parts, 2, "undecodable image is skipped")
	require.NotNil(t, got[2].Parts[1].InlineData)
	assert.Equal(t, "image/png", got[2].Parts[1].InlineData.MIMEType)
	assert.Equal(t, []byte("ABC"), got[2].Parts[1].InlineData.Data)
}

func TestGeminiProvider_MissingKey(t *testing.T) {
	provider := NewGeminiProvider(providers.GeminiConfig{}, nil)
	_, err := provider.Completion(context.Background(), &llm.ChatRequest{
		Messages: []types.Message{types.NewUserMessage("hi")},
	})
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrUnauthorized))
}

func TestGeminiProvider_Completion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.Contains(r.URL.Path, ":generateContent"), r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"candidates":[{"content":{"role":"model","parts":[{"text":"hi there"}]}}],
			"usageMetadata":{"promptTokenCount":3,"candidatesTokenCount":2,"totalTokenCount":5},
			"responseId":"r1"
		}`))
	}))
	defer srv.Close()

	provider := NewGeminiProvider(providers.GeminiConfig{
		BaseProviderConfig: providers.BaseProviderConfig{APIKey: "test-key", BaseURL: srv.URL},
	}, zap.NewNop())

	resp, err := provider.Completion(context.Background(), &llm.ChatRequest{
		Model:    "gemini-test",
		System:   "be brief",
		Messages: []types.Message{types.NewUserMessage("hi")},
	})
	require.NoError(t, err)
	assert.Equal(t, "hi there", resp.Content)
	assert.Equal(t, 5, resp.Usage.TotalTokens)
	assert.Equal(t, "gemini-test", resp.Model)
}

func TestGeminiProvider_Integration(t *testing.T) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		t.Skip("GEMINI_API_KEY not set, skipping integration test")
	}

	provider := NewGeminiProvider(providers.GeminiConfig{
		BaseProviderConfig: providers.BaseProviderConfig{APIKey: apiKey, Timeout: 30 * time.Second},
	}, zap.NewNop())

	resp, err := provider.Completion(context.Background(), &llm.ChatRequest{
		Messages: []types.Message{types.NewUserMessage("Say 'test' only")},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Content)
}
