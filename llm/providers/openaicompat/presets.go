package openaicompat

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/BaSui01/liminal/llm/providers"
)

const (
	defaultOpenAIBaseURL     = "https://api.openai.com"
	defaultOpenRouterBaseURL = "https://openrouter.ai/api"
)

// NewOpenAI creates the provider for gpt-*, o1 and o3 models.
func NewOpenAI(cfg providers.OpenAIConfig, logger *zap.Logger) *Provider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	return New(Config{
		ProviderName:  "openai",
		APIKey:        cfg.APIKey,
		BaseURL:       baseURL,
		DefaultModel:  cfg.Model,
		FallbackModel: "gpt-4.1",
		Timeout:       cfg.Timeout,
		BuildHeaders: func(req *http.Request, apiKey string) {
			providers.BearerTokenHeaders(req, apiKey)
			if cfg.Organization != "" {
				req.Header.Set("OpenAI-Organization", cfg.Organization)
			}
		},
	}, logger)
}

// NewOpenRouter creates the catch-all provider for every other model id.
func NewOpenRouter(cfg providers.OpenRouterConfig, logger *zap.Logger) *Provider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenRouterBaseURL
	}
	return New(Config{
		ProviderName:  "openrouter",
		APIKey:        cfg.APIKey,
		BaseURL:       baseURL,
		DefaultModel:  cfg.Model,
		FallbackModel: "openai/gpt-4o-mini",
		Timeout:       cfg.Timeout,
		BuildHeaders: func(req *http.Request, apiKey string) {
			providers.BearerTokenHeaders(req, apiKey)
			if cfg.SiteURL != "" {
				req.Header.Set("HTTP-Referer", cfg.SiteURL)
			}
			if cfg.SiteName != "" {
				req.Header.Set("X-Title", cfg.SiteName)
			}
		},
	}, logger)
}
