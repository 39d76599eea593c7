package replicate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/liminal/llm"
	"github.com/BaSui01/liminal/llm/providers"
	"github.com/BaSui01/liminal/types"
)

const (
	defaultBaseURL      = "https://api.replicate.com"
	defaultModel        = "deepseek-ai/deepseek-r1"
	defaultPollInterval = time.Second
	defaultMaxTokens    = 4000
)

// Prediction status values.
const (
	StatusStarting   = "starting"
	StatusProcessing = "processing"
	StatusSucceeded  = "succeeded"
	StatusFailed     = "failed"
	StatusCanceled   = "canceled"
)

var thinkBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)

// Provider runs hosted models (DeepSeek and friends) through the Replicate
// Predictions API. A prediction is created with "Prefer: wait" and polled
// through urls.get until it reaches a terminal status.
type Provider struct {
	cfg    providers.ReplicateConfig
	client *http.Client
	logger *zap.Logger
}

func New(cfg providers.ReplicateConfig, logger *zap.Logger) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		cfg:    cfg,
		client: providers.NewHTTPClient(cfg.Timeout),
		logger: logger.With(zap.String("provider", "replicate")),
	}
}

func (p *Provider) Name() string { return "replicate" }

// SupportsStreaming is false: predictions are polled to completion.
func (p *Provider) SupportsStreaming() bool { return false }

type predictionInput struct {
	Prompt       string  `json:"prompt"`
	SystemPrompt string  `json:"system_prompt,omitempty"`
	MaxTokens    int     `json:"max_tokens,omitempty"`
	Temperature  float32 `json:"temperature,omitempty"`
}

type predictionRequest struct {
	Input predictionInput `json:"input"`
}

type prediction struct {
	ID     string          `json:"id"`
	Model  string          `json:"model"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output,omitempty"`
	Error  any             `json:"error,omitempty"`
	URLs   struct {
		Get    string `json:"get"`
		Cancel string `json:"cancel"`
	} `json:"urls"`
	Metrics struct {
		InputTokenCount  int `json:"input_token_count"`
		OutputTokenCount int `json:"output_token_count"`
	} `json:"metrics"`
}

func (pr *prediction) terminal() bool {
	switch pr.Status {
	case StatusSucceeded, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

// text joins the output, which Replicate returns as either a string or a
// list of string tokens.
func (pr *prediction) text() string {
	if len(pr.Output) == 0 {
		return ""
	}
	var parts []string
	if err := json.Unmarshal(pr.Output, &parts); err == nil {
		return strings.Join(parts, "")
	}
	var s string
	if err := json.Unmarshal(pr.Output, &s); err == nil {
		return s
	}
	return ""
}

// FlattenTurns renders the turn list as a single prompt. Replicate language
// models take one prompt string rather than a message array.
func FlattenTurns(msgs []types.Message) string {
	var b strings.Builder
	for i, m := range msgs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		text := m.Content.PlainText()
		if m.Role == types.RoleAssistant {
			b.WriteString("Assistant: ")
		}
		b.WriteString(text)
	}
	return b.String()
}

// StripReasoning removes <think> blocks and trims the remainder.
func StripReasoning(s string) string {
	return strings.TrimSpace(thinkBlock.ReplaceAllString(s, ""))
}

func (p *Provider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	start := time.Now()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint("/v1/account"), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	providers.BearerTokenHeaders(httpReq, p.cfg.APIKey)

	resp, err := p.client.Do(httpReq)
	latency := time.Since(start)
	if err != nil {
		return &llm.HealthStatus{Healthy: false, Latency: latency}, err
	}
	defer providers.SafeCloseBody(resp.Body)
	if resp.StatusCode != http.StatusOK {
		msg := providers.ReadErrorMessage(resp.Body)
		return &llm.HealthStatus{Healthy: false, Latency: latency}, fmt.Errorf("replicate health check failed: status=%d msg=%s", resp.StatusCode, msg)
	}
	return &llm.HealthStatus{Healthy: true, Latency: latency}, nil
}

func (p *Provider) endpoint(path string) string {
	return strings.TrimRight(p.cfg.BaseURL, "/") + path
}

func (p *Provider) do(ctx context.Context, method, url string, body []byte, wait bool) (*prediction, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	providers.BearerTokenHeaders(httpReq, p.cfg.APIKey)
	if wait {
		httpReq.Header.Set("Prefer", "wait")
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, providers.TransportError(err, p.Name())
	}
	defer providers.SafeCloseBody(resp.Body)
	if resp.StatusCode >= 400 {
		msg := providers.ReadErrorMessage(resp.Body)
		return nil, providers.MapHTTPError(resp.StatusCode, msg, p.Name())
	}

	var pr prediction
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, providers.DecodeError(err, p.Name())
	}
	return &pr, nil
}

func (p *Provider) poll(ctx context.Context, pr *prediction) (*prediction, error) {
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for !pr.terminal() {
		if pr.URLs.Get == "" {
			return nil, types.NewError(types.ErrUpstreamError, "prediction has no poll url").WithProvider(p.Name())
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
		next, err := p.do(ctx, http.MethodGet, pr.URLs.Get, nil, false)
		if err != nil {
			return nil, err
		}
		p.logger.Debug("prediction polled", zap.String("id", next.ID), zap.String("status", next.Status))
		pr = next
	}
	return pr, nil
}

func (p *Provider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	model := providers.ChooseModel(req, p.cfg.Model, defaultModel)
	payload, err := json.Marshal(predictionRequest{Input: predictionInput{
		Prompt:       FlattenTurns(req.Messages),
		SystemPrompt: req.System,
		MaxTokens:    providers.ChooseMaxTokens(req, defaultMaxTokens),
		Temperature:  req.Temperature,
	}})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	pr, err := p.do(ctx, http.MethodPost, p.endpoint("/v1/models/"+model+"/predictions"), payload, true)
	if err != nil {
		return nil, err
	}
	pr, err = p.poll(ctx, pr)
	if err != nil {
		return nil, err
	}
	if pr.Status != StatusSucceeded {
		msg := fmt.Sprintf("prediction %s %s", pr.ID, pr.Status)
		if pr.Error != nil {
			msg = fmt.Sprintf("%s: %v", msg, pr.Error)
		}
		return nil, types.NewError(types.ErrGenerationFailed, msg).WithProvider(p.Name())
	}

	content := pr.text()
	if !p.cfg.KeepReasoning {
		content = StripReasoning(content)
	}
	return &llm.ChatResponse{
		ID:       pr.ID,
		Provider: p.Name(),
		Model:    model,
		Content:  content,
		Usage: llm.ChatUsage{
			PromptTokens:     pr.Metrics.InputTokenCount,
			CompletionTokens: pr.Metrics.OutputTokenCount,
			TotalTokens:      pr.Metrics.InputTokenCount + pr.Metrics.OutputTokenCount,
		},
		CreatedAt: time.Now(),
	}, nil
}

// Stream delivers the finished prediction as a single chunk.
func (p *Provider) Stream(ctx context.Context, req *llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	resp, err := p.Completion(ctx, req)
	if err != nil {
		return nil, err
	}
	ch := make(chan llm.StreamChunk, 1)
	usage := resp.Usage
	ch <- llm.StreamChunk{ID: resp.ID, Provider: p.Name(), Model: resp.Model, Delta: resp.Content, FinishReason: "stop", Usage: &usage}
	close(ch)
	return ch, nil
}

var _ llm.Provider = (*Provider)(nil)
