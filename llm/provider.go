package llm

import (
	"context"
	"time"

	"github.com/BaSui01/liminal/types"
)

// ChatRequest 是归一化后的 Provider 请求：一条系统提示 + 按顺序排列的 user/assistant 轮次。
// Messages 不含 system 轮次，且最后一条总是 user。
type ChatRequest struct {
	Model        string          `json:"model"`         // Provider 侧模型 ID
	ModelDisplay string          `json:"model_display"` // 配置中的显示名
	Participant  string          `json:"participant"`   // AI-<n>
	System       string          `json:"system"`
	Messages     []types.Message `json:"messages"`
	MaxTokens    int             `json:"max_tokens,omitempty"`
	Temperature  float32         `json:"temperature,omitempty"`
	Timeout      time.Duration   `json:"timeout,omitempty"`
}

// Prompt 返回请求内容（最后一轮）。
func (r *ChatRequest) Prompt() types.Message {
	if len(r.Messages) == 0 {
		return types.Message{}
	}
	return r.Messages[len(r.Messages)-1]
}

// Context 返回最后一轮之前的全部轮次（不含系统提示）。
func (r *ChatRequest) Context() []types.Message {
	if len(r.Messages) == 0 {
		return nil
	}
	return r.Messages[:len(r.Messages)-1]
}

// Turns 返回带系统轮次的完整列表，系统轮次在首位。
func (r *ChatRequest) Turns() []types.Message {
	out := make([]types.Message, 0, len(r.Messages)+1)
	out = append(out, types.Message{Role: types.RoleSystem, Content: types.Text(r.System)})
	return append(out, r.Messages...)
}

type ChatUsage struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`
}

type ChatResponse struct {
	ID           string    `json:"id,omitempty"`
	Provider     string    `json:"provider,omitempty"`
	Model        string    `json:"model"`
	Content      string    `json:"content"`
	FinishReason string    `json:"finish_reason,omitempty"`
	Usage        ChatUsage `json:"usage,omitempty"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
}

type StreamChunk struct {
	ID           string       `json:"id,omitempty"`
	Provider     string       `json:"provider,omitempty"`
	Model        string       `json:"model,omitempty"`
	Delta        string       `json:"delta"`
	FinishReason string       `json:"finish_reason,omitempty"`
	Usage        *ChatUsage   `json:"usage,omitempty"` // 最终 chunk 可带 usage
	Err          *types.Error `json:"error,omitempty"`
}

// HealthStatus 表示 Provider 健康检查结果。
type HealthStatus struct {
	Healthy bool          `json:"healthy"`
	Latency time.Duration `json:"latency"`
}

// Provider 定义了统一的 LLM 适配接口，便于路由与监控。
type Provider interface {
	// Completion 发起同步聊天请求，返回完整响应
	Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// Stream 发起流式聊天请求，返回增量响应通道
	Stream(ctx context.Context, req *ChatRequest) (<-chan StreamChunk, error)

	// HealthCheck 执行轻量级健康检查
	HealthCheck(ctx context.Context) (*HealthStatus, error)

	// Name 返回 Provider 的唯一标识
	Name() string

	// SupportsStreaming 返回是否支持增量输出；不支持时路由层只调用 Completion
	SupportsStreaming() bool
}

// Participant 是一轮中的发言方配置，由配置层按轮次提供。
type Participant struct {
	Name         string `json:"name"`          // AI-<n>
	ModelDisplay string `json:"model_display"` // 显示名，如 "Claude 4 Sonnet"
	ModelID      string `json:"model_id"`      // Provider 侧模型 ID
	SystemPrompt string `json:"system_prompt"`
}

// Result 是一次发言的最终结果。Role 通常为 assistant；视频生成失败时为 system。
type Result struct {
	Role    types.Role
	Content string
	Backend string
	Usage   ChatUsage
	// Fallback 为 true 表示后端返回空回复，Content 是替代文本
	Fallback bool
}
