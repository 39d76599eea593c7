package router

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/liminal/llm"
	"github.com/BaSui01/liminal/llm/observability"
	"github.com/BaSui01/liminal/llm/video"
	"github.com/BaSui01/liminal/types"
)

// DefaultVideoPrompt 最后一轮没有文本时的视频提示
const DefaultVideoPrompt = "A short abstract motion graphic in warm colors"

// 空回复的替代文本；未列出的后端空回复视为错误
var fallbackText = map[Backend]string{
	BackendOpenAI:    "No response from OpenAI",
	BackendGemini:    "No response from Gemini",
	BackendReplicate: "No response from model",
}

// FallbackText 返回后端的空回复替代文本
func FallbackText(b Backend) (string, bool) {
	s, ok := fallbackText[b]
	return s, ok
}

// VideoDefaults Sora 路由使用的时长与尺寸；零值表示交给 API 默认。
type VideoDefaults struct {
	Seconds int
	Size    string
}

// Router 把一次发言分派给对应后端，不做重试。
type Router struct {
	rules     *RuleRouter
	providers map[Backend]llm.Provider
	video     video.Generator
	videoCfg  VideoDefaults
	metrics   *observability.Metrics
	costs     *observability.CostTracker
	logger    *zap.Logger
}

// Option 配置 Router
type Option func(*Router)

// WithProvider 注册一个后端的 Provider
func WithProvider(b Backend, p llm.Provider) Option {
	return func(r *Router) {
		if p != nil {
			r.providers[b] = p
		}
	}
}

// WithVideo 设置 Sora 路由使用的视频生成器
func WithVideo(g video.Generator, defaults VideoDefaults) Option {
	return func(r *Router) {
		r.video = g
		r.videoCfg = defaults
	}
}

// WithRules 替换默认路由规则
func WithRules(rules []Rule) Option {
	return func(r *Router) { r.rules = NewRuleRouter(rules) }
}

// WithMetrics 为每次发言记录 Span 与指标
func WithMetrics(m *observability.Metrics) Option {
	return func(r *Router) { r.metrics = m }
}

// WithCostTracker 累计会话成本
func WithCostTracker(t *observability.CostTracker) Option {
	return func(r *Router) { r.costs = t }
}

// New 创建路由器
func New(logger *zap.Logger, opts ...Option) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Router{
		rules:     NewRuleRouter(nil),
		providers: make(map[Backend]llm.Provider),
		logger:    logger.With(zap.String("component", "router")),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Backend 返回参与者将被分派到的后端
func (r *Router) Backend(p llm.Participant) Backend {
	return r.rules.Resolve(p)
}

// Provider 返回已注册的 Provider
func (r *Router) Provider(b Backend) (llm.Provider, bool) {
	p, ok := r.providers[b]
	return p, ok
}

// Call 执行一次发言。onChunk 非空且后端支持流式时走流式接口，
// 每个增量文本原样回调。
func (r *Router) Call(ctx context.Context, p llm.Participant, req *llm.ChatRequest, onChunk func(string)) (*llm.Result, error) {
	backend := r.Backend(p)
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	if backend == BackendVideo {
		return r.callVideo(ctx, p, req), nil
	}

	provider, ok := r.providers[backend]
	if !ok {
		return nil, types.NewError(types.ErrProviderNotSet, fmt.Sprintf("no provider configured for %s", backend)).
			WithProvider(string(backend))
	}
	streaming := onChunk != nil && provider.SupportsStreaming()

	attrs := observability.RequestAttrs{
		Backend:     string(backend),
		Model:       req.Model,
		Participant: p.Name,
		Streaming:   streaming,
	}
	if branch, ok := types.BranchID(ctx); ok {
		attrs.Branch = branch
	}

	start := time.Now()
	var span trace.Span
	if r.metrics != nil {
		ctx, span = r.metrics.StartRequest(ctx, attrs)
	}

	r.logger.Debug("dispatching turn",
		zap.String("participant", p.Name),
		zap.String("backend", string(backend)),
		zap.String("model", req.Model),
		zap.Bool("streaming", streaming))

	var (
		resp *llm.ChatResponse
		err  error
	)
	if streaming {
		resp, err = r.consumeStream(ctx, provider, req, onChunk)
	} else {
		resp, err = provider.Completion(ctx, req)
	}

	result, err := r.finish(backend, resp, err)
	r.record(ctx, span, attrs, result, err, time.Since(start))
	if err != nil {
		r.logger.Warn("turn failed",
			zap.String("participant", p.Name),
			zap.String("backend", string(backend)),
			zap.Error(err))
		return nil, err
	}
	return result, nil
}

func (r *Router) consumeStream(ctx context.Context, provider llm.Provider, req *llm.ChatRequest, onChunk func(string)) (*llm.ChatResponse, error) {
	ch, err := provider.Stream(ctx, req)
	if err != nil {
		return nil, err
	}
	var (
		sb   strings.Builder
		resp = &llm.ChatResponse{Provider: provider.Name(), Model: req.Model}
	)
	for {
		select {
		case <-ctx.Done():
			return nil, types.NewError(types.ErrUpstreamTimeout, "stream interrupted").
				WithCause(ctx.Err()).WithProvider(provider.Name())
		case chunk, ok := <-ch:
			if !ok {
				resp.Content = sb.String()
				return resp, nil
			}
			if chunk.Err != nil {
				return nil, chunk.Err
			}
			if chunk.Delta != "" {
				sb.WriteString(chunk.Delta)
				onChunk(chunk.Delta)
			}
			if chunk.ID != "" {
				resp.ID = chunk.ID
			}
			if chunk.FinishReason != "" {
				resp.FinishReason = chunk.FinishReason
			}
			if chunk.Usage != nil {
				resp.Usage = *chunk.Usage
			}
		}
	}
}

// finish 统一错误类型并应用空回复替代文本
func (r *Router) finish(backend Backend, resp *llm.ChatResponse, err error) (*llm.Result, error) {
	if err != nil {
		if _, ok := types.AsError(err); ok {
			return nil, err
		}
		return nil, types.NewError(types.ErrProvider, "provider call failed").
			WithCause(err).WithProvider(string(backend))
	}
	if resp == nil {
		resp = &llm.ChatResponse{}
	}
	result := &llm.Result{
		Role:    types.RoleAssistant,
		Content: resp.Content,
		Backend: string(backend),
		Usage:   resp.Usage,
	}
	if strings.TrimSpace(result.Content) == "" {
		text, ok := fallbackText[backend]
		if !ok {
			return nil, types.NewError(types.ErrEmptyContent, fmt.Sprintf("empty response from %s", backend)).
				WithProvider(string(backend))
		}
		result.Content = text
		result.Fallback = true
	}
	return result, nil
}

func (r *Router) record(ctx context.Context, span trace.Span, attrs observability.RequestAttrs, result *llm.Result, err error, elapsed time.Duration) {
	resp := observability.ResponseAttrs{Status: "ok", Duration: elapsed}
	if err != nil {
		resp.Status = "error"
		resp.ErrorCode = string(types.GetErrorCode(err))
	} else {
		resp.TokensPrompt = result.Usage.PromptTokens
		resp.TokensCompletion = result.Usage.CompletionTokens
		resp.Fallback = result.Fallback
		if r.costs != nil {
			resp.Cost = r.costs.Track(attrs.Backend, attrs.Model, resp.TokensPrompt, resp.TokensCompletion)
		}
	}
	if r.metrics != nil && span != nil {
		r.metrics.EndRequest(ctx, span, attrs, resp)
	}
}

// VideoPrompt 取最后一轮的文本作为视频提示
func VideoPrompt(req *llm.ChatRequest) string {
	last := req.Prompt().Content
	var prompt string
	if last.IsList() {
		var texts []string
		for _, part := range last.Parts {
			if part.Type == types.PartText {
				texts = append(texts, part.Text)
			}
		}
		prompt = strings.Join(texts, " ")
	} else {
		prompt = last.Text
	}
	if strings.TrimSpace(prompt) == "" {
		return DefaultVideoPrompt
	}
	return prompt
}

func (r *Router) callVideo(ctx context.Context, p llm.Participant, req *llm.ChatRequest) *llm.Result {
	if r.video == nil {
		return &llm.Result{
			Role:    types.RoleSystem,
			Content: "[Sora] Video generation failed: video generator not configured",
			Backend: string(BackendVideo),
		}
	}
	r.logger.Info("starting video job",
		zap.String("participant", p.Name),
		zap.String("model", p.ModelID),
		zap.Int("seconds", r.videoCfg.Seconds),
		zap.String("size", r.videoCfg.Size))

	res, err := r.video.Generate(ctx, &video.GenerateRequest{
		Prompt:  VideoPrompt(req),
		Model:   p.ModelID,
		Seconds: r.videoCfg.Seconds,
		Size:    r.videoCfg.Size,
	})
	if err != nil {
		r.logger.Warn("video job failed", zap.Error(err))
		return &llm.Result{
			Role:    types.RoleSystem,
			Content: "[Sora] Video generation failed: " + err.Error(),
			Backend: string(BackendVideo),
		}
	}
	r.logger.Info("video job completed", zap.String("video_id", res.VideoID), zap.String("path", res.Path))
	return &llm.Result{
		Role:    types.RoleAssistant,
		Content: "[Sora] Video created: " + res.Path,
		Backend: string(BackendVideo),
	}
}

// Health 并发检查所有已注册 Provider
func (r *Router) Health(ctx context.Context) map[Backend]*llm.HealthStatus {
	var (
		mu  sync.Mutex
		out = make(map[Backend]*llm.HealthStatus, len(r.providers))
		g   errgroup.Group
	)
	for backend, provider := range r.providers {
		g.Go(func() error {
			status, err := provider.HealthCheck(ctx)
			if err != nil || status == nil {
				status = &llm.HealthStatus{Healthy: false}
				r.logger.Debug("health check failed", zap.String("backend", string(backend)), zap.Error(err))
			}
			mu.Lock()
			out[backend] = status
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}
