package claude

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/liminal/llm"
	"github.com/BaSui01/liminal/llm/providers"
	"github.com/BaSui01/liminal/types"
)

// ConnectingPrompt 是压缩后无可用轮次时的占位用户消息
const ConnectingPrompt = "Connecting..."

const (
	defaultBaseURL   = "https://api.anthropic.com"
	defaultModel     = "claude-sonnet-4-5-20250929"
	defaultMaxTokens = 4000
	apiVersion       = "2023-06-01"
)

// ClaudeProvider 实现 Anthropic Claude 的 LLM Provider。
// Claude API 与 OpenAI 有显著差异：
// 1. 认证使用 x-api-key 请求头而非 Bearer Token
// 2. system 提示单独传递
// 3. 流式响应使用 SSE 格式但事件结构不同
type ClaudeProvider struct {
	cfg    providers.ClaudeConfig
	client *http.Client
	logger *zap.Logger
}

// NewClaudeProvider 创建 Claude Provider。
func NewClaudeProvider(cfg providers.ClaudeConfig, logger *zap.Logger) *ClaudeProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClaudeProvider{
		cfg:    cfg,
		client: providers.NewHTTPClient(cfg.Timeout),
		logger: logger.With(zap.String("provider", "anthropic")),
	}
}

func (p *ClaudeProvider) Name() string { return "anthropic" }

func (p *ClaudeProvider) SupportsStreaming() bool { return true }

func (p *ClaudeProvider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	start := time.Now()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint("/v1/models"), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	p.buildHeaders(httpReq)

	resp, err := p.client.Do(httpReq)
	latency := time.Since(start)
	if err != nil {
		return &llm.HealthStatus{Healthy: false, Latency: latency}, err
	}
	defer providers.SafeCloseBody(resp.Body)

	if resp.StatusCode != http.StatusOK {
		msg := providers.ReadErrorMessage(resp.Body)
		return &llm.HealthStatus{Healthy: false, Latency: latency}, fmt.Errorf("claude health check failed: status=%d msg=%s", resp.StatusCode, msg)
	}
	return &llm.HealthStatus{Healthy: true, Latency: latency}, nil
}

// Claude 的消息结构与 OpenAI 不同
type claudeMessage struct {
	Role    string          `json:"role"` // user 或 assistant
	Content []claudeContent `json:"content"`
}

type claudeContent struct {
	Type   string        `json:"type"` // text, image
	Text   string        `json:"text,omitempty"`
	Source *claudeSource `json:"source,omitempty"`
}

type claudeSource struct {
	Type      string `json:"type"` // base64
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type claudeRequest struct {
	Model       string          `json:"model"`
	Messages    []claudeMessage `json:"messages"`
	System      string          `json:"system,omitempty"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float32         `json:"temperature,omitempty"`
	Stream      bool            `json:"stream,omitempty"`
}

type claudeUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type claudeResponse struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Role       string          `json:"role"`
	Content    []claudeContent `json:"content"`
	Model      string          `json:"model"`
	StopReason string          `json:"stop_reason"`
	Usage      *claudeUsage    `json:"usage,omitempty"`
}

// 流式响应的事件类型
type claudeStreamEvent struct {
	Type    string          `json:"type"` // message_start, content_block_delta, message_delta, message_stop
	Index   int             `json:"index,omitempty"`
	Delta   *claudeDelta    `json:"delta,omitempty"`
	Message *claudeResponse `json:"message,omitempty"`
	Usage   *claudeUsage    `json:"usage,omitempty"`
	Error   *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type claudeDelta struct {
	Type       string `json:"type"` // text_delta
	Text       string `json:"text,omitempty"`
	StopReason string `json:"stop_reason,omitempty"`
}

func (p *ClaudeProvider) buildHeaders(req *http.Request) {
	// Claude 使用 x-api-key 认证
	req.Header.Set("x-api-key", p.cfg.APIKey)
	req.Header.Set("anthropic-version", apiVersion)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
}

func (p *ClaudeProvider) endpoint(path string) string {
	return strings.TrimRight(p.cfg.BaseURL, "/") + path
}

// CompactTurns 在发送前对轮次做 Claude 专用压缩：
// 跳过空轮次和 system 轮次，按拼接后的文本去重；全部被过滤时补一条 Connecting... 用户消息。
func CompactTurns(msgs []types.Message) []types.Message {
	out := make([]types.Message, 0, len(msgs))
	seen := make(map[string]struct{}, len(msgs))
	for _, m := range msgs {
		if isBlank(m.Content) || m.Role == types.RoleSystem {
			continue
		}
		key := joinedText(m.Content)
		if key != "" {
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
		}
		out = append(out, m)
	}
	if len(out) == 0 {
		out = append(out, types.NewUserMessage(ConnectingPrompt))
	}
	return out
}

// isBlank 列表内容仅在既无文本段也无图片段时视为空，字符串内容仅在为空串时视为空
func isBlank(c types.Content) bool {
	if !c.IsList() {
		return c.Text == ""
	}
	return len(c.Parts) == 0
}

func joinedText(c types.Content) string {
	if !c.IsList() {
		return c.Text
	}
	var b strings.Builder
	for _, part := range c.Parts {
		if part.Type == types.PartText {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}

// convertToClaudeMessages 将统一格式转换为 Claude 格式，图片以 base64 source 块发送
func convertToClaudeMessages(msgs []types.Message) []claudeMessage {
	out := make([]claudeMessage, 0, len(msgs))
	for _, m := range msgs {
		cm := claudeMessage{Role: string(m.Role)}
		if !m.Content.IsList() {
			cm.Content = []claudeContent{{Type: "text", Text: m.Content.Text}}
			out = append(out, cm)
			continue
		}
		for _, part := range m.Content.Parts {
			switch part.Type {
			case types.PartText:
				cm.Content = append(cm.Content, claudeContent{Type: "text", Text: part.Text})
			case types.PartImage:
				mediaType := part.MediaType
				if mediaType == "" {
					mediaType = "image/jpeg"
				}
				cm.Content = append(cm.Content, claudeContent{
					Type:   "image",
					Source: &claudeSource{Type: "base64", MediaType: mediaType, Data: part.Data},
				})
			}
		}
		out = append(out, cm)
	}
	return out
}

func (p *ClaudeProvider) buildBody(req *llm.ChatRequest, stream bool) claudeRequest {
	maxTokens := p.cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return claudeRequest{
		Model:       providers.ChooseModel(req, p.cfg.Model, defaultModel),
		Messages:    convertToClaudeMessages(CompactTurns(req.Messages)),
		System:      req.System,
		MaxTokens:   providers.ChooseMaxTokens(req, maxTokens),
		Temperature: req.Temperature,
		Stream:      stream,
	}
}

func (p *ClaudeProvider) post(ctx context.Context, body claudeRequest) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint("/v1/messages"), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	p.buildHeaders(httpReq)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, providers.TransportError(err, p.Name())
	}
	if resp.StatusCode >= 400 {
		defer providers.SafeCloseBody(resp.Body)
		msg := providers.ReadErrorMessage(resp.Body)
		return nil, providers.MapHTTPError(resp.StatusCode, msg, p.Name())
	}
	return resp, nil
}

func (p *ClaudeProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	resp, err := p.post(ctx, p.buildBody(req, false))
	if err != nil {
		return nil, err
	}
	defer providers.SafeCloseBody(resp.Body)

	var claudeResp claudeResponse
	if err := json.NewDecoder(resp.Body).Decode(&claudeResp); err != nil {
		return nil, providers.DecodeError(err, p.Name())
	}
	return toClaudeChatResponse(claudeResp, p.Name()), nil
}

func (p *ClaudeProvider) Stream(ctx context.Context, req *llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	resp, err := p.post(ctx, p.buildBody(req, true))
	if err != nil {
		return nil, err
	}

	ch := make(chan llm.StreamChunk)
	go func() {
		defer providers.SafeCloseBody(resp.Body)
		defer close(ch)

		send := func(chunk llm.StreamChunk) bool {
			select {
			case <-ctx.Done():
				return false
			case ch <- chunk:
				return true
			}
		}

		reader := bufio.NewReader(resp.Body)
		var currentID, currentModel string
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				if err != io.EOF {
					send(llm.StreamChunk{Err: providers.TransportError(err, p.Name())})
				}
				return
			}

			line = strings.TrimSpace(line)
			// Claude SSE 格式：event: <type>\ndata: <json>，事件类型行直接跳过
			if line == "" || !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))

			var event claudeStreamEvent
			if err := json.Unmarshal([]byte(data), &event); err != nil {
				send(llm.StreamChunk{Err: providers.DecodeError(err, p.Name())})
				return
			}

			switch event.Type {
			case "message_start":
				if event.Message != nil {
					currentID = event.Message.ID
					currentModel = event.Message.Model
				}
			case "content_block_delta":
				if event.Delta == nil || event.Delta.Type != "text_delta" {
					continue
				}
				if !send(llm.StreamChunk{ID: currentID, Provider: p.Name(), Model: currentModel, Delta: event.Delta.Text}) {
					return
				}
			case "message_delta":
				if event.Delta != nil && event.Delta.StopReason != "" {
					chunk := llm.StreamChunk{ID: currentID, Provider: p.Name(), Model: currentModel, FinishReason: event.Delta.StopReason}
					if event.Usage != nil {
						chunk.Usage = &llm.ChatUsage{
							PromptTokens:     event.Usage.InputTokens,
							CompletionTokens: event.Usage.OutputTokens,
							TotalTokens:      event.Usage.InputTokens + event.Usage.OutputTokens,
						}
					}
					if !send(chunk) {
						return
					}
				}
			case "error":
				msg := "stream error"
				if event.Error != nil {
					msg = event.Error.Message
				}
				send(llm.StreamChunk{Err: types.NewError(types.ErrUpstreamError, msg).WithProvider(p.Name())})
				return
			case "message_stop":
				return
			}
		}
	}()

	return ch, nil
}

func toClaudeChatResponse(cr claudeResponse, provider string) *llm.ChatResponse {
	var text strings.Builder
	for _, c := range cr.Content {
		if c.Type == "text" {
			text.WriteString(c.Text)
		}
	}
	resp := &llm.ChatResponse{
		ID:           cr.ID,
		Provider:     provider,
		Model:        cr.Model,
		Content:      text.String(),
		FinishReason: cr.StopReason,
		CreatedAt:    time.Now(),
	}
	if cr.Usage != nil {
		resp.Usage = llm.ChatUsage{
			PromptTokens:     cr.Usage.InputTokens,
			CompletionTokens: cr.Usage.OutputTokens,
			TotalTokens:      cr.Usage.InputTokens + cr.Usage.OutputTokens,
		}
	}
	return resp
}

var _ llm.Provider = (*ClaudeProvider)(nil)
