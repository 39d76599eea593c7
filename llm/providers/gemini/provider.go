package gemini

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/BaSui01/liminal/llm"
	"github.com/BaSui01/liminal/llm/providers"
	"github.com/BaSui01/liminal/types"
)

const defaultModel = "gemini-2.5-flash"

// GeminiProvider 通过 google.golang.org/genai SDK 调用 Gemini。
// SDK 客户端在首次调用时创建，缺少 API Key 时错误作为该轮的失败返回。
type GeminiProvider struct {
	cfg        providers.GeminiConfig
	httpClient *http.Client
	logger     *zap.Logger

	mu     sync.Mutex
	client *genai.Client
}

// NewGeminiProvider 创建 Gemini Provider
func NewGeminiProvider(cfg providers.GeminiConfig, logger *zap.Logger) *GeminiProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GeminiProvider{
		cfg:        cfg,
		httpClient: providers.NewHTTPClient(cfg.Timeout),
		logger:     logger.With(zap.String("provider", "gemini")),
	}
}

func (p *GeminiProvider) Name() string { return "gemini" }

func (p *GeminiProvider) SupportsStreaming() bool { return true }

func (p *GeminiProvider) sdk(ctx context.Context) (*genai.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		return p.client, nil
	}
	if strings.TrimSpace(p.cfg.APIKey) == "" {
		return nil, types.NewError(types.ErrUnauthorized, "gemini api key not configured").WithProvider(p.Name())
	}
	cc := &genai.ClientConfig{
		APIKey:     p.cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: p.httpClient,
	}
	if p.cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: p.cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, types.NewError(types.ErrProvider, "create gemini client").WithCause(err).WithProvider(p.Name())
	}
	p.client = client
	return client, nil
}

func (p *GeminiProvider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	start := time.Now()
	client, err := p.sdk(ctx)
	if err != nil {
		return &llm.HealthStatus{Healthy: false}, err
	}
	_, err = client.Models.Get(ctx, providers.ChooseModel(nil, p.cfg.Model, defaultModel), nil)
	latency := time.Since(start)
	if err != nil {
		return &llm.HealthStatus{Healthy: false, Latency: latency}, fmt.Errorf("gemini health check failed: %w", err)
	}
	return &llm.HealthStatus{Healthy: true, Latency: latency}, nil
}

// ConvertTurns 把归一化轮次转换为 Gemini contents：assistant 映射为 model，
// 图片段解码为 inline data，无法解码的图片被跳过。
func ConvertTurns(msgs []types.Message) []*genai.Content {
	out := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		role := string(genai.RoleUser)
		if m.Role == types.RoleAssistant {
			role = string(genai.RoleModel)
		}
		var parts []*genai.Part
		if !m.Content.IsList() {
			parts = append(parts, &genai.Part{Text: m.Content.Text})
		} else {
			for _, part := range m.Content.Parts {
				switch part.Type {
				case types.PartText:
					parts = append(parts, &genai.Part{Text: part.Text})
				case types.PartImage:
					data, err := base64.StdEncoding.DecodeString(part.Data)
					if err != nil {
						continue
					}
					mediaType := part.MediaType
					if mediaType == "" {
						mediaType = "image/jpeg"
					}
					parts = append(parts, &genai.Part{InlineData: &genai.Blob{MIMEType: mediaType, Data: data}})
				}
			}
		}
		if len(parts) == 0 {
			continue
		}
		out = append(out, &genai.Content{Role: role, Parts: parts})
	}
	return out
}

func (p *GeminiProvider) generateConfig(req *llm.ChatRequest) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}
	if req.Temperature > 0 {
		t := req.Temperature
		cfg.Temperature = &t
	}
	return cfg
}

func usageOf(resp *genai.GenerateContentResponse) llm.ChatUsage {
	if resp == nil || resp.UsageMetadata == nil {
		return llm.ChatUsage{}
	}
	u := resp.UsageMetadata
	return llm.ChatUsage{
		PromptTokens:     int(u.PromptTokenCount),
		CompletionTokens: int(u.CandidatesTokenCount),
		TotalTokens:      int(u.TotalTokenCount),
	}
}

func (p *GeminiProvider) wrapErr(err error) *types.Error {
	if e, ok := types.AsError(err); ok {
		return e
	}
	return types.NewError(types.ErrProvider, err.Error()).WithCause(err).WithProvider(p.Name())
}

func (p *GeminiProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	client, err := p.sdk(ctx)
	if err != nil {
		return nil, err
	}
	model := providers.ChooseModel(req, p.cfg.Model, defaultModel)
	resp, err := client.Models.GenerateContent(ctx, model, ConvertTurns(req.Messages), p.generateConfig(req))
	if err != nil {
		return nil, p.wrapErr(err)
	}
	return &llm.ChatResponse{
		ID:        resp.ResponseID,
		Provider:  p.Name(),
		Model:     model,
		Content:   resp.Text(),
		Usage:     usageOf(resp),
		CreatedAt: time.Now(),
	}, nil
}

func (p *GeminiProvider) Stream(ctx context.Context, req *llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	client, err := p.sdk(ctx)
	if err != nil {
		return nil, err
	}
	model := providers.ChooseModel(req, p.cfg.Model, defaultModel)
	contents := ConvertTurns(req.Messages)
	cfg := p.generateConfig(req)

	ch := make(chan llm.StreamChunk)
	go func() {
		defer close(ch)
		for resp, err := range client.Models.GenerateContentStream(ctx, model, contents, cfg) {
			chunk := llm.StreamChunk{Provider: p.Name(), Model: model}
			if err != nil {
				chunk.Err = p.wrapErr(err)
			} else {
				chunk.ID = resp.ResponseID
				chunk.Delta = resp.Text()
				if resp.UsageMetadata != nil {
					u := usageOf(resp)
					chunk.Usage = &u
				}
			}
			select {
			case <-ctx.Done():
				return
			case ch <- chunk:
			}
			if chunk.Err != nil {
				return
			}
		}
	}()
	return ch, nil
}

var _ llm.Provider = (*GeminiProvider)(nil)
