package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Zero(t, cfg.Server.WriteTimeout)
	assert.Equal(t, 15*time.Second, cfg.Server.ShutdownTimeout)

	assert.Equal(t, 3, cfg.Conversation.NumAIs)
	assert.Equal(t, 1, cfg.Conversation.MaxIterations)
	assert.Equal(t, "conversation_full.html", cfg.Conversation.TranscriptPath)

	assert.Len(t, cfg.Participants, MaxParticipants)
	assert.Equal(t, "sora-2", cfg.Media.SoraModel)
	assert.Equal(t, 5*time.Second, cfg.Media.SoraPollInterval)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Telemetry.Enabled)
}

func TestDefaultPromptPairs_CoverEverySlot(t *testing.T) {
	pairs := DefaultPromptPairs()
	require.Contains(t, pairs, DefaultPromptPair)
	for _, ai := range []string{"AI-1", "AI-2", "AI-3", "AI-4", "AI-5"} {
		assert.NotEmpty(t, pairs[DefaultPromptPair][ai], ai)
	}
}

func TestConfig_ModelIDFallsBackToDisplay(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "claude-sonnet-4-20250514", cfg.ModelID("Claude 4 Sonnet"))
	assert.Equal(t, "custom/model", cfg.ModelID("custom/model"))
}

func TestConfig_PromptFor(t *testing.T) {
	cfg := DefaultConfig()
	assert.NotEmpty(t, cfg.PromptFor("", "AI-1"))
	assert.Contains(t, cfg.PromptFor("muse", "AI-1"), "poet")
	assert.Empty(t, cfg.PromptFor("muse", "AI-5"))
	assert.Empty(t, cfg.PromptFor("missing", "AI-1"))
	assert.Equal(t, []string{"backrooms", "muse"}, cfg.PromptPairNames())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"zero ais", func(c *Config) { c.Conversation.NumAIs = 0 }, "num_ais"},
		{"six ais", func(c *Config) { c.Conversation.NumAIs = 6 }, "num_ais"},
		{"no iterations", func(c *Config) { c.Conversation.MaxIterations = 0 }, "max_iterations"},
		{"negative delay", func(c *Config) { c.Conversation.TurnDelay = -time.Second }, "turn_delay"},
		{"no models", func(c *Config) { c.Models = nil }, "at least one model"},
		{"unknown participant model", func(c *Config) { c.Participants[1] = "Nope" }, `unknown model "Nope"`},
		{"too few participants", func(c *Config) { c.Participants = c.Participants[:2] }, "num_ais needs 3"},
		{"unknown pair", func(c *Config) { c.Conversation.PromptPair = "x" }, "prompt pair"},
		{"bad port", func(c *Config) { c.Server.HTTPPort = 70000 }, "http_port"},
		{"bad sample rate", func(c *Config) { c.Telemetry.SampleRate = 2 }, "sample_rate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
