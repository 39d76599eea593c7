package providers

import "time"

// DefaultTimeout 是 Provider HTTP 客户端的默认超时
const DefaultTimeout = 120 * time.Second

// BaseProviderConfig 所有 Provider 共享的基础配置字段。
// 通过嵌入此结构体，各 Provider 的 Config 自动获得 APIKey、BaseURL、Model、Timeout 四个字段，
// 避免重复定义。
type BaseProviderConfig struct {
	APIKey  string        `json:"api_key" yaml:"api_key"`
	BaseURL string        `json:"base_url" yaml:"base_url"`
	Model   string        `json:"model,omitempty" yaml:"model,omitempty"`
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// OpenAIConfig OpenAI Provider 配置
type OpenAIConfig struct {
	BaseProviderConfig `yaml:",inline"`
	Organization       string `json:"organization,omitempty" yaml:"organization,omitempty"`
}

// OpenRouterConfig OpenRouter Provider 配置
type OpenRouterConfig struct {
	BaseProviderConfig `yaml:",inline"`
	SiteURL            string `json:"site_url,omitempty" yaml:"site_url,omitempty"`   // HTTP-Referer
	SiteName           string `json:"site_name,omitempty" yaml:"site_name,omitempty"` // X-Title
}

// ClaudeConfig Claude Provider 配置
type ClaudeConfig struct {
	BaseProviderConfig `yaml:",inline"`
	MaxTokens          int `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
}

// GeminiConfig Gemini Provider 配置
type GeminiConfig struct {
	BaseProviderConfig `yaml:",inline"`
}

// ReplicateConfig Replicate Provider 配置（DeepSeek 等托管模型）
type ReplicateConfig struct {
	BaseProviderConfig `yaml:",inline"`
	PollInterval       time.Duration `json:"poll_interval,omitempty" yaml:"poll_interval,omitempty"`
	// KeepReasoning 为 false 时去除输出中的 <think>...</think> 段
	KeepReasoning bool `json:"keep_reasoning,omitempty" yaml:"keep_reasoning,omitempty"`
}
