// =============================================================================
// 📦 Liminal 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/BaSui01/liminal/types"
)

// MaxParticipants 主线最多参与者数量
const MaxParticipants = 5

// DefaultPromptPair 默认提示组名称
const DefaultPromptPair = "backrooms"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:       DefaultServerConfig(),
		Conversation: DefaultConversationConfig(),
		Participants: []string{"Claude 4 Sonnet", "GPT-4o", "Gemini 2.5 Pro", "Claude 4 Sonnet", "GPT-4o"},
		Models:       DefaultModels(),
		PromptPairs:  DefaultPromptPairs(),
		Providers:    DefaultProvidersConfig(),
		Media:        DefaultMediaConfig(),
		Log:          DefaultLogConfig(),
		Telemetry:    DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:          8080,
		MetricsPort:       9091,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      0,
		IdleTimeout:       120 * time.Second,
		ShutdownTimeout:   15 * time.Second,
		RateLimitRPS:      20,
		RateLimitBurst:    40,
	}
}

// DefaultConversationConfig 返回默认对话配置
func DefaultConversationConfig() ConversationConfig {
	return ConversationConfig{
		NumAIs:         3,
		MaxIterations:  1,
		TurnDelay:      2 * time.Second,
		PromptPair:     DefaultPromptPair,
		TranscriptPath: "conversation_full.html",
		TurnTimeout:    3 * time.Minute,
		MaxTokens:      4000,
		Temperature:    1.0,
		Workers:        8,
	}
}

// DefaultModels 返回默认的显示名到模型 ID 映射
func DefaultModels() map[string]string {
	return map[string]string{
		"Claude 4 Opus":     "claude-opus-4-20250514",
		"Claude 4 Sonnet":   "claude-sonnet-4-20250514",
		"Claude 3.5 Haiku":  "claude-3-5-haiku-20241022",
		"GPT-4o":            "gpt-4o",
		"GPT-4.1":           "gpt-4.1",
		"o3":                "o3",
		"Gemini 2.5 Pro":    "gemini-2.5-pro",
		"Gemini 2.5 Flash":  "gemini-2.5-flash",
		"DeepSeek R1":       "deepseek-ai/deepseek-r1",
		"Llama 3.1 405B":    "meta-llama/llama-3.1-405b-instruct",
		"Qwen 3 235B":       "qwen/qwen3-235b-a22b",
		"Sora 2":            "sora-2",
		"Sora 2 Pro":        "sora-2-pro",
	}
}

// DefaultPromptPairs 返回内置提示组
func DefaultPromptPairs() map[string]map[string]string {
	backrooms := "You are in a conversation with other AIs. No human operator is present. " +
		"Explore ideas freely, build on what the others say, and feel free to use ascii art and markdown."
	return map[string]map[string]string{
		DefaultPromptPair: {
			"AI-1": backrooms,
			"AI-2": backrooms,
			"AI-3": backrooms,
			"AI-4": backrooms,
			"AI-5": backrooms,
		},
		"muse": {
			"AI-1": "You are a poet. Answer every message with a short poem that picks up its imagery.",
			"AI-2": "You are a critic. Respond to the previous poem with a brief, generous reading of it.",
			"AI-3": "You are a wanderer who turns the conversation toward somewhere unexpected.",
		},
	}
}

// DefaultProvidersConfig 返回默认后端地址
func DefaultProvidersConfig() ProvidersConfig {
	return ProvidersConfig{
		OpenAI:     ProviderConfig{BaseURL: "https://api.openai.com", Timeout: 2 * time.Minute},
		Anthropic:  ProviderConfig{BaseURL: "https://api.anthropic.com", Timeout: 2 * time.Minute},
		Gemini:     ProviderConfig{Timeout: 2 * time.Minute},
		OpenRouter: ProviderConfig{BaseURL: "https://openrouter.ai/api", Timeout: 2 * time.Minute},
		Replicate:  ProviderConfig{BaseURL: "https://api.replicate.com", Timeout: 5 * time.Minute},
		SiteName:   "Liminal Backrooms",
	}
}

// DefaultMediaConfig 返回默认媒体配置
func DefaultMediaConfig() MediaConfig {
	return MediaConfig{
		AutoImage:        false,
		ImageProvider:    "openai",
		ImageDir:         "images",
		SoraModel:        "sora-2",
		VideoDir:         "videos",
		SoraPollInterval: 5 * time.Second,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:        false,
		OTLPEndpoint:   "localhost:4317",
		ServiceName:    "liminal",
		SampleRate:     0.1,
		ExportInterval: 30 * time.Second,
	}
}

// =============================================================================
// 🔍 查询与校验
// =============================================================================

// ModelID 把显示名解析为模型 ID；未登记的显示名原样返回
func (c *Config) ModelID(display string) string {
	if id, ok := c.Models[display]; ok {
		return id
	}
	return display
}

// PromptFor 返回提示组中某个 AI 的系统提示
func (c *Config) PromptFor(pair, aiName string) string {
	if pair == "" {
		pair = c.Conversation.PromptPair
	}
	return c.PromptPairs[pair][aiName]
}

// PromptPairNames 返回排序后的提示组名称
func (c *Config) PromptPairNames() []string {
	names := make([]string, 0, len(c.PromptPairs))
	for name := range c.PromptPairs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate 校验配置
func (c *Config) Validate() error {
	var errs []string

	if c.Conversation.NumAIs < 1 || c.Conversation.NumAIs > MaxParticipants {
		errs = append(errs, fmt.Sprintf("conversation.num_ais must be between 1 and %d, got %d",
			MaxParticipants, c.Conversation.NumAIs))
	}
	if c.Conversation.MaxIterations < 1 {
		errs = append(errs, "conversation.max_iterations must be at least 1")
	}
	if c.Conversation.TurnDelay < 0 {
		errs = append(errs, "conversation.turn_delay must not be negative")
	}
	if len(c.Models) == 0 {
		errs = append(errs, "at least one model must be configured")
	}
	if len(c.Participants) < c.Conversation.NumAIs {
		errs = append(errs, fmt.Sprintf("%d participants configured, num_ais needs %d",
			len(c.Participants), c.Conversation.NumAIs))
	}
	for i, display := range c.Participants {
		if _, ok := c.Models[display]; !ok {
			errs = append(errs, fmt.Sprintf("participants[%d]: unknown model %q", i, display))
		}
	}
	if _, ok := c.PromptPairs[c.Conversation.PromptPair]; !ok {
		errs = append(errs, fmt.Sprintf("unknown prompt pair %q", c.Conversation.PromptPair))
	}
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		errs = append(errs, fmt.Sprintf("server.http_port out of range: %d", c.Server.HTTPPort))
	}
	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		errs = append(errs, "telemetry.sample_rate must be between 0 and 1")
	}

	if len(errs) > 0 {
		return types.NewError(types.ErrInvalidConfig, strings.Join(errs, "; "))
	}
	return nil
}
