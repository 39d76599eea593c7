package router

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/liminal/llm"
	"github.com/BaSui01/liminal/llm/observability"
	"github.com/BaSui01/liminal/llm/video"
	"github.com/BaSui01/liminal/types"
)

type fakeProvider struct {
	name      string
	streaming bool
	content   string
	chunks    []string
	err       error
	chunkErr  *types.Error
	usage     llm.ChatUsage

	completionCalls int
	streamCalls     int
	lastReq         *llm.ChatRequest
}

func (f *fakeProvider) Name() string            { return f.name }
func (f *fakeProvider) SupportsStreaming() bool { return f.streaming }

func (f *fakeProvider) HealthCheck(context.Context) (*llm.HealthStatus, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &llm.HealthStatus{Healthy: true}, nil
}

func (f *fakeProvider) Completion(_ context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	f.completionCalls++
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &llm.ChatResponse{Content: f.content, Usage: f.usage}, nil
}

func (f *fakeProvider) Stream(_ context.Context, req *llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	f.streamCalls++
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	ch := make(chan llm.StreamChunk, len(f.chunks)+1)
	for _, c := range f.chunks {
		ch <- llm.StreamChunk{Delta: c}
	}
	if f.chunkErr != nil {
		ch <- llm.StreamChunk{Err: f.chunkErr}
	} else {
		ch <- llm.StreamChunk{FinishReason: "stop", Usage: &f.usage}
	}
	close(ch)
	return ch, nil
}

type fakeVideo struct {
	res *video.GenerateResult
	err error
	got *video.GenerateRequest
}

func (f *fakeVideo) Name() string { return "fake-video" }

func (f *fakeVideo) Generate(_ context.Context, req *video.GenerateRequest) (*video.GenerateResult, error) {
	f.got = req
	return f.res, f.err
}

func request(last types.Content) *llm.ChatRequest {
	return &llm.ChatRequest{
		Model:    "m",
		System:   "sys",
		Messages: []types.Message{{Role: types.RoleUser, Content: last}},
	}
}

func TestRouter_CompletionWithoutCallback(t *testing.T) {
	p := &fakeProvider{name: "openai", streaming: true, content: "hello"}
	r := New(zaptest.NewLogger(t), WithProvider(BackendOpenAI, p))

	res, err := r.Call(context.Background(), llm.Participant{Name: "AI-1", ModelID: "gpt-4o"}, request(types.Text("hi")), nil)
	require.NoError(t, err)
	assert.Equal(t, types.RoleAssistant, res.Role)
	assert.Equal(t, "hello", res.Content)
	assert.Equal(t, "openai", res.Backend)
	assert.Equal(t, 1, p.completionCalls)
	assert.Zero(t, p.streamCalls)
}

func TestRouter_StreamingForwardsChunks(t *testing.T) {
	p := &fakeProvider{name: "anthropic", streaming: true, chunks: []string{"Hel", "lo", " there"}, usage: llm.ChatUsage{PromptTokens: 10, CompletionTokens: 3}}
	r := New(nil, WithProvider(BackendAnthropic, p))

	var got []string
	res, err := r.Call(context.Background(), llm.Participant{Name: "AI-2", ModelID: "claude-sonnet-4"}, request(types.Text("hi")),
		func(s string) { got = append(got, s) })
	require.NoError(t, err)
	assert.Equal(t, []string{"Hel", "lo", " there"}, got)
	assert.Equal(t, "Hello there", res.Content)
	assert.Equal(t, 10, res.Usage.PromptTokens)
	assert.Equal(t, 1, p.streamCalls)
}

func TestRouter_NonStreamingBackendIgnoresCallback(t *testing.T) {
	p := &fakeProvider{name: "replicate", content: "deep"}
	r := New(nil, WithProvider(BackendReplicate, p))

	called := false
	res, err := r.Call(context.Background(), llm.Participant{ModelID: "deepseek-ai/deepseek-r1", ModelDisplay: "DeepSeek R1"},
		request(types.Text("hi")), func(string) { called = true })
	require.NoError(t, err)
	assert.False(t, called)
	assert.Equal(t, "deep", res.Content)
}

func TestRouter_StreamChunkError(t *testing.T) {
	p := &fakeProvider{name: "openrouter", streaming: true, chunks: []string{"par"},
		chunkErr: types.NewError(types.ErrUpstreamError, "stream broke")}
	r := New(nil, WithProvider(BackendOpenRouter, p))

	_, err := r.Call(context.Background(), llm.Participant{ModelID: "mistral/large"}, request(types.Text("hi")), func(string) {})
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrUpstreamError))
}

func TestRouter_Fallbacks(t *testing.T) {
	tests := []struct {
		name    string
		backend Backend
		p       llm.Participant
		want    string
	}{
		{"openai", BackendOpenAI, llm.Participant{ModelID: "gpt-4o"}, "No response from OpenAI"},
		{"gemini", BackendGemini, llm.Participant{ModelID: "gemini-2.5-pro"}, "No response from Gemini"},
		{"replicate", BackendReplicate, llm.Participant{ModelID: "x", ModelDisplay: "DeepSeek"}, "No response from model"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(nil, WithProvider(tt.backend, &fakeProvider{name: string(tt.backend), content: "  "}))
			res, err := r.Call(context.Background(), tt.p, request(types.Text("hi")), nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Content)
			assert.True(t, res.Fallback)
		})
	}
}

func TestRouter_EmptyWithoutFallbackIsError(t *testing.T) {
	r := New(nil, WithProvider(BackendAnthropic, &fakeProvider{name: "anthropic"}))
	_, err := r.Call(context.Background(), llm.Participant{ModelID: "claude-3"}, request(types.Text("hi")), nil)
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrEmptyContent))
}

func TestRouter_Errors(t *testing.T) {
	t.Run("provider not set", func(t *testing.T) {
		_, err := New(nil).Call(context.Background(), llm.Participant{ModelID: "gpt-4o"}, request(types.Text("hi")), nil)
		assert.True(t, types.IsCode(err, types.ErrProviderNotSet))
	})

	t.Run("plain error is wrapped", func(t *testing.T) {
		cause := errors.New("connection reset")
		r := New(nil, WithProvider(BackendOpenRouter, &fakeProvider{name: "openrouter", err: cause}))
		_, err := r.Call(context.Background(), llm.Participant{ModelID: "qwen/qwen3"}, request(types.Text("hi")), nil)
		require.Error(t, err)
		assert.True(t, types.IsCode(err, types.ErrProvider))
		assert.ErrorIs(t, err, cause)
		e, _ := types.AsError(err)
		assert.Equal(t, "openrouter", e.Provider)
	})

	t.Run("typed error passes through", func(t *testing.T) {
		typed := types.NewError(types.ErrRateLimited, "slow down").WithRetryable(true)
		r := New(nil, WithProvider(BackendGemini, &fakeProvider{name: "gemini", err: typed}))
		_, err := r.Call(context.Background(), llm.Participant{ModelID: "gemini-2.5-flash"}, request(types.Text("hi")), nil)
		assert.True(t, types.IsCode(err, types.ErrRateLimited))
		assert.True(t, types.IsRetryable(err))
	})
}

func TestRouter_Video(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		v := &fakeVideo{res: &video.GenerateResult{VideoID: "vid_1", Path: "videos/vid_1.mp4"}}
		r := New(nil, WithVideo(v, VideoDefaults{Seconds: 8, Size: "1280x720"}))

		res, err := r.Call(context.Background(), llm.Participant{ModelID: "sora-2-pro"},
			request(types.Parts(types.TextPart("ocean"), types.ImagePart("image/png", "QUJD"), types.TextPart("waves"))), nil)
		require.NoError(t, err)
		assert.Equal(t, types.RoleAssistant, res.Role)
		assert.Equal(t, "[Sora] Video created: videos/vid_1.mp4", res.Content)
		assert.Equal(t, "ocean waves", v.got.Prompt)
		assert.Equal(t, "sora-2-pro", v.got.Model)
		assert.Equal(t, 8, v.got.Seconds)
		assert.Equal(t, "1280x720", v.got.Size)
	})

	t.Run("failure is a system result", func(t *testing.T) {
		v := &fakeVideo{err: errors.New("moderation blocked")}
		r := New(nil, WithVideo(v, VideoDefaults{}))

		res, err := r.Call(context.Background(), llm.Participant{ModelID: "sora-2"}, request(types.Text("   ")), nil)
		require.NoError(t, err)
		assert.Equal(t, types.RoleSystem, res.Role)
		assert.Equal(t, "[Sora] Video generation failed: moderation blocked", res.Content)
		assert.Equal(t, DefaultVideoPrompt, v.got.Prompt)
	})

	t.Run("not configured", func(t *testing.T) {
		res, err := New(nil).Call(context.Background(), llm.Participant{ModelID: "sora-2"}, request(types.Text("x")), nil)
		require.NoError(t, err)
		assert.Equal(t, types.RoleSystem, res.Role)
	})
}

func TestRouter_MetricsAndCost(t *testing.T) {
	m, err := observability.NewMetrics()
	require.NoError(t, err)
	tracker := observability.NewCostTracker(nil)

	p := &fakeProvider{name: "openai", content: "ok", usage: llm.ChatUsage{PromptTokens: 1000, CompletionTokens: 1000}}
	r := New(nil, WithProvider(BackendOpenAI, p), WithMetrics(m), WithCostTracker(tracker))

	req := request(types.Text("hi"))
	req.Model = "gpt-4o"
	ctx := types.WithBranchID(context.Background(), "main")
	_, err = r.Call(ctx, llm.Participant{Name: "AI-1", ModelID: "gpt-4o"}, req, nil)
	require.NoError(t, err)

	summary := tracker.Summary()
	assert.Equal(t, 1, summary.RequestCount)
	assert.InDelta(t, 0.0125, summary.TotalCost, 1e-9)
}

func TestRouter_Health(t *testing.T) {
	r := New(nil,
		WithProvider(BackendOpenAI, &fakeProvider{name: "openai"}),
		WithProvider(BackendGemini, &fakeProvider{name: "gemini", err: errors.New("down")}))

	got := r.Health(context.Background())
	require.Len(t, got, 2)
	assert.True(t, got[BackendOpenAI].Healthy)
	assert.False(t, got[BackendGemini].Healthy)
}

func TestVideoPrompt_EmptyRequest(t *testing.T) {
	assert.Equal(t, DefaultVideoPrompt, VideoPrompt(&llm.ChatRequest{}))
}
