// 配置加载器测试。
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/liminal/types"
)

// clearLegacyEnv 清空可能来自宿主环境的兼容变量
func clearLegacyEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"OPENAI_API_KEY", "ANTHROPIC_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY",
		"OPENROUTER_API_KEY", "REPLICATE_API_TOKEN", "SORA_MODEL", "SORA_SIZE",
		"SORA_AUTO_FROM_AI1", "SORA_SECONDS", "TURN_DELAY", "SHOW_CHAIN_OF_THOUGHT_IN_CONTEXT",
	} {
		t.Setenv(k, "")
	}
}

func TestLoader_LoadDefaults(t *testing.T) {
	clearLegacyEnv(t)
	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, 3, cfg.Conversation.NumAIs)
	assert.Equal(t, DefaultPromptPair, cfg.Conversation.PromptPair)
	assert.NoError(t, cfg.Validate())
}

func TestLoader_LoadFromYAML(t *testing.T) {
	clearLegacyEnv(t)
	configPath := filepath.Join(t.TempDir(), "config.yaml")

	yamlContent := `
server:
  http_port: 8888
  read_header_timeout: 5s

conversation:
  num_ais: 2
  max_iterations: 4
  turn_delay: 500ms
  prompt_pair: muse

participants:
  - "Claude 4 Opus"
  - "Llama"

models:
  Llama: meta-llama/llama-3.3-70b

prompt_pairs:
  muse:
    AI-1: "first"
    AI-2: "second"

log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0o644))

	cfg, err := NewLoader().WithConfigPath(configPath).Load()
	require.NoError(t, err)

	assert.Equal(t, 8888, cfg.Server.HTTPPort)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadHeaderTimeout)
	assert.Equal(t, 2, cfg.Conversation.NumAIs)
	assert.Equal(t, 4, cfg.Conversation.MaxIterations)
	assert.Equal(t, 500*time.Millisecond, cfg.Conversation.TurnDelay)
	assert.Equal(t, []string{"Claude 4 Opus", "Llama"}, cfg.Participants)
	assert.Equal(t, "debug", cfg.Log.Level)

	// yaml 合并进默认 map
	assert.Equal(t, "meta-llama/llama-3.3-70b", cfg.ModelID("Llama"))
	assert.Equal(t, "gpt-4o", cfg.ModelID("GPT-4o"))
	assert.Equal(t, "second", cfg.PromptFor("", "AI-2"))

	// 未修改的字段保持默认
	assert.Equal(t, 9091, cfg.Server.MetricsPort)
	assert.NoError(t, cfg.Validate())
}

func TestLoader_LoadFromEnv(t *testing.T) {
	clearLegacyEnv(t)
	t.Setenv("LIMINAL_SERVER_HTTP_PORT", "7070")
	t.Setenv("LIMINAL_CONVERSATION_NUM_AIS", "5")
	t.Setenv("LIMINAL_CONVERSATION_TURN_DELAY", "1.5")
	t.Setenv("LIMINAL_CONVERSATION_SHOW_CHAIN_OF_THOUGHT_IN_CONTEXT", "yes")
	t.Setenv("LIMINAL_PARTICIPANTS", "GPT-4o, o3 ,GPT-4o,o3,Mystery")
	t.Setenv("LIMINAL_MODELS", "Mystery=vendor/mystery-1")
	t.Setenv("LIMINAL_PROVIDERS_OPENROUTER_API_KEY", "or-key")
	t.Setenv("LIMINAL_SERVER_CORS_ALLOWED_ORIGINS", "http://a.test,http://b.test")
	t.Setenv("LIMINAL_TELEMETRY_SAMPLE_RATE", "0.5")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.HTTPPort)
	assert.Equal(t, 5, cfg.Conversation.NumAIs)
	assert.Equal(t, 1500*time.Millisecond, cfg.Conversation.TurnDelay)
	assert.True(t, cfg.Conversation.ShowChainOfThought)
	assert.Equal(t, []string{"GPT-4o", "o3", "GPT-4o", "o3", "Mystery"}, cfg.Participants)
	assert.Equal(t, "vendor/mystery-1", cfg.ModelID("Mystery"))
	assert.Equal(t, "o3", cfg.ModelID("o3"))
	assert.True(t, cfg.Providers.OpenRouter.Configured())
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.CORSAllowedOrigins)
	assert.Equal(t, 0.5, cfg.Telemetry.SampleRate)
	assert.NoError(t, cfg.Validate())
}

func TestLoader_LegacyEnv(t *testing.T) {
	clearLegacyEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("GOOGLE_API_KEY", "g-key")
	t.Setenv("REPLICATE_API_TOKEN", "r8_x")
	t.Setenv("SORA_AUTO_FROM_AI1", "1")
	t.Setenv("SORA_MODEL", "sora-2-pro")
	t.Setenv("SORA_SECONDS", "8")
	t.Setenv("SORA_SIZE", "1280x720")
	t.Setenv("TURN_DELAY", "3")
	t.Setenv("SHOW_CHAIN_OF_THOUGHT_IN_CONTEXT", "true")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.Providers.OpenAI.APIKey)
	assert.Equal(t, "g-key", cfg.Providers.Gemini.APIKey)
	assert.Equal(t, "r8_x", cfg.Providers.Replicate.APIKey)
	assert.False(t, cfg.Providers.Anthropic.Configured())
	assert.True(t, cfg.Media.SoraAutoFromAI1)
	assert.Equal(t, "sora-2-pro", cfg.Media.SoraModel)
	assert.Equal(t, 8, cfg.Media.SoraSeconds)
	assert.Equal(t, "1280x720", cfg.Media.SoraSize)
	assert.Equal(t, 3*time.Second, cfg.Conversation.TurnDelay)
	assert.True(t, cfg.Conversation.ShowChainOfThought)
}

func TestLoader_LegacyEnvEdgeCases(t *testing.T) {
	clearLegacyEnv(t)
	t.Setenv("SORA_AUTO_FROM_AI1", "true") // 只有 "1" 开启
	t.Setenv("SORA_SECONDS", "eight")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	assert.False(t, cfg.Media.SoraAutoFromAI1)
	assert.Zero(t, cfg.Media.SoraSeconds)

	t.Setenv("TURN_DELAY", "soon")
	_, err = NewLoader().Load()
	assert.Error(t, err)
}

func TestLoader_PrefixedEnvOverridesLegacy(t *testing.T) {
	clearLegacyEnv(t)
	t.Setenv("OPENAI_API_KEY", "legacy")
	t.Setenv("LIMINAL_PROVIDERS_OPENAI_API_KEY", "prefixed")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	assert.Equal(t, "prefixed", cfg.Providers.OpenAI.APIKey)

	cfg, err = NewLoader().WithLegacyEnv(false).WithEnvPrefix("NOPE").Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.Providers.OpenAI.APIKey)
}

func TestLoader_EnvOverridesYAML(t *testing.T) {
	clearLegacyEnv(t)
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("server:\n  http_port: 8888\n"), 0o644))

	t.Setenv("LIMINAL_SERVER_HTTP_PORT", "9999")

	cfg, err := NewLoader().WithConfigPath(configPath).Load()
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.HTTPPort)
}

func TestLoader_DotEnv(t *testing.T) {
	clearLegacyEnv(t)
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("ANTHROPIC_API_KEY=from-dotenv\nSORA_SIZE=720x1280\n"), 0o644))

	// 已设置的进程变量不被 .env 覆盖
	t.Setenv("SORA_SIZE", "1920x1080")
	// godotenv 只写入未设置的变量；测试结束时清理
	t.Cleanup(func() { _ = os.Unsetenv("ANTHROPIC_API_KEY") })
	require.NoError(t, os.Unsetenv("ANTHROPIC_API_KEY"))

	cfg, err := NewLoader().WithDotEnv(envPath).Load()
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Providers.Anthropic.APIKey)
	assert.Equal(t, "1920x1080", cfg.Media.SoraSize)
}

func TestLoader_DotEnvMissingIsIgnored(t *testing.T) {
	clearLegacyEnv(t)
	_, err := NewLoader().WithDotEnv(filepath.Join(t.TempDir(), ".env")).Load()
	assert.NoError(t, err)
}

func TestLoader_InvalidMapEntry(t *testing.T) {
	clearLegacyEnv(t)
	t.Setenv("LIMINAL_MODELS", "no-equals-sign")
	_, err := NewLoader().Load()
	assert.Error(t, err)
}

func TestLoader_WithValidator(t *testing.T) {
	clearLegacyEnv(t)
	t.Setenv("LIMINAL_CONVERSATION_NUM_AIS", "9")

	_, err := NewLoader().WithValidator(func(c *Config) error { return c.Validate() }).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "num_ais")
	assert.True(t, types.IsCode(err, types.ErrInvalidConfig))
}

func TestLoader_NonExistentFile(t *testing.T) {
	clearLegacyEnv(t)
	cfg, err := NewLoader().WithConfigPath("/nonexistent/config.yaml").Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.HTTPPort)
}

func TestLoader_InvalidYAML(t *testing.T) {
	clearLegacyEnv(t)
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("server:\n  http_port: [unclosed\n"), 0o644))

	_, err := NewLoader().WithConfigPath(configPath).Load()
	assert.Error(t, err)
}

func TestMustLoad_InvalidFile(t *testing.T) {
	clearLegacyEnv(t)
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("::: not yaml"), 0o644))

	assert.Panics(t, func() { MustLoad(configPath) })
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
		err  bool
	}{
		{"2s", 2 * time.Second, false},
		{"250ms", 250 * time.Millisecond, false},
		{"2", 2 * time.Second, false},
		{"0.5", 500 * time.Millisecond, false},
		{"later", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseDuration(tt.in)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
