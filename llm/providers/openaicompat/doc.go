// Package openaicompat implements the OpenAI Chat Completions wire format.
//
// One Provider type serves both OpenAI and OpenRouter. The presets only set
// what differs:
//
//   - Provider name and fallback model
//   - Base URL
//   - Attribution or organization headers
//
// Usage:
//
//	p := openaicompat.NewOpenRouter(providers.OpenRouterConfig{
//	    BaseProviderConfig: providers.BaseProviderConfig{APIKey: key},
//	    SiteName:           "Liminal Backrooms",
//	}, logger)
package openaicompat
