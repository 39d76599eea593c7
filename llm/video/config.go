package video

import "time"

// SoraConfig 配置 OpenAI Sora 视频生成.
type SoraConfig struct {
	APIKey       string        `json:"api_key" yaml:"api_key"`
	BaseURL      string        `json:"base_url" yaml:"base_url"`
	Model        string        `json:"model,omitempty" yaml:"model,omitempty"` // sora-2, sora-2-pro
	OutputDir    string        `json:"output_dir,omitempty" yaml:"output_dir,omitempty"`
	PollInterval time.Duration `json:"poll_interval,omitempty" yaml:"poll_interval,omitempty"`
	MaxWait      time.Duration `json:"max_wait,omitempty" yaml:"max_wait,omitempty"`
	Timeout      time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// DefaultSoraConfig 返回默认 Sora 配置.
func DefaultSoraConfig() SoraConfig {
	return SoraConfig{
		BaseURL:      "https://api.openai.com",
		Model:        "sora-2",
		OutputDir:    "videos",
		PollInterval: 5 * time.Second,
		MaxWait:      10 * time.Minute,
		Timeout:      120 * time.Second,
	}
}
