package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// applyLegacyEnv 读取无前缀的环境变量名，便于直接复用已有的 .env 文件。
// LIMINAL_ 前缀变量在其后应用，优先级更高。
func applyLegacyEnv(cfg *Config) error {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	str("OPENAI_API_KEY", &cfg.Providers.OpenAI.APIKey)
	str("ANTHROPIC_API_KEY", &cfg.Providers.Anthropic.APIKey)
	str("GEMINI_API_KEY", &cfg.Providers.Gemini.APIKey)
	str("GOOGLE_API_KEY", &cfg.Providers.Gemini.APIKey)
	str("OPENROUTER_API_KEY", &cfg.Providers.OpenRouter.APIKey)
	str("REPLICATE_API_TOKEN", &cfg.Providers.Replicate.APIKey)

	str("SORA_MODEL", &cfg.Media.SoraModel)
	str("SORA_SIZE", &cfg.Media.SoraSize)

	// 只有 "1" 表示开启
	if v, ok := os.LookupEnv("SORA_AUTO_FROM_AI1"); ok {
		cfg.Media.SoraAutoFromAI1 = strings.TrimSpace(v) == "1"
	}

	// 非法的秒数被忽略，交给 API 默认
	if v, ok := os.LookupEnv("SORA_SECONDS"); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			cfg.Media.SoraSeconds = n
		}
	}

	if v, ok := os.LookupEnv("TURN_DELAY"); ok && strings.TrimSpace(v) != "" {
		secs, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil || secs < 0 {
			return fmt.Errorf("invalid TURN_DELAY %q", v)
		}
		cfg.Conversation.TurnDelay = time.Duration(secs * float64(time.Second))
	}

	if v, ok := os.LookupEnv("SHOW_CHAIN_OF_THOUGHT_IN_CONTEXT"); ok && strings.TrimSpace(v) != "" {
		b, err := parseBool(v)
		if err != nil {
			return fmt.Errorf("invalid SHOW_CHAIN_OF_THOUGHT_IN_CONTEXT %q", v)
		}
		cfg.Conversation.ShowChainOfThought = b
	}

	return nil
}
