// =============================================================================
// 📦 Liminal 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + .env + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithDotEnv(".env").
//	    WithValidator(func(c *config.Config) error { return c.Validate() }).
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 兼容环境变量 → LIMINAL_ 前缀环境变量
// .env 中的变量只填充进程里尚未设置的环境变量。
// =============================================================================
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultEnvPrefix 环境变量前缀
const DefaultEnvPrefix = "LIMINAL"

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config 是 Liminal 的完整配置结构
type Config struct {
	// Server 服务器配置
	Server ServerConfig `yaml:"server" env:"SERVER"`

	// Conversation 轮次调度配置
	Conversation ConversationConfig `yaml:"conversation" env:"CONVERSATION"`

	// Participants 每个发言位（AI-1..AI-5）使用的模型显示名
	Participants []string `yaml:"participants" env:"PARTICIPANTS"`

	// Models 显示名到模型 ID 的映射
	Models map[string]string `yaml:"models" env:"MODELS"`

	// PromptPairs 命名的系统提示组，每组按 AI-<n> 给出提示
	PromptPairs map[string]map[string]string `yaml:"prompt_pairs" env:"-"`

	// Providers 各后端的凭据与地址
	Providers ProvidersConfig `yaml:"providers" env:"PROVIDERS"`

	// Media 图片与视频副作用
	Media MediaConfig `yaml:"media" env:"MEDIA"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`

	// Telemetry 遥测配置
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	// HTTP 端口
	HTTPPort int `yaml:"http_port" env:"HTTP_PORT"`
	// Metrics 端口，0 表示不启动
	MetricsPort int `yaml:"metrics_port" env:"METRICS_PORT"`
	// 读取请求头超时
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" env:"READ_HEADER_TIMEOUT"`
	// 写入超时（0 表示不限）
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	// 空闲超时
	IdleTimeout time.Duration `yaml:"idle_timeout" env:"IDLE_TIMEOUT"`
	// 优雅关闭超时
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	// 每个客户端 IP 的请求速率
	RateLimitRPS float64 `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	// 速率突发
	RateLimitBurst int `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
	// CORS 允许的来源，空表示不启用 CORS
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS"`
}

// ConversationConfig 轮次调度配置
type ConversationConfig struct {
	// 主线参与者数量 1..5
	NumAIs int `yaml:"num_ais" env:"NUM_AIS"`
	// 每次输入后的轮数预算
	MaxIterations int `yaml:"max_iterations" env:"MAX_ITERATIONS"`
	// 同一轮内相邻发言的间隔
	TurnDelay time.Duration `yaml:"turn_delay" env:"TURN_DELAY"`
	// 当前使用的提示组
	PromptPair string `yaml:"prompt_pair" env:"PROMPT_PAIR"`
	// 对话记录 HTML 输出路径
	TranscriptPath string `yaml:"transcript_path" env:"TRANSCRIPT_PATH"`
	// DeepSeek 等模型的推理段是否保留在上下文中
	ShowChainOfThought bool `yaml:"show_chain_of_thought_in_context" env:"SHOW_CHAIN_OF_THOUGHT_IN_CONTEXT"`
	// 单次发言超时
	TurnTimeout time.Duration `yaml:"turn_timeout" env:"TURN_TIMEOUT"`
	// 单次发言最大输出 token
	MaxTokens int `yaml:"max_tokens" env:"MAX_TOKENS"`
	// 采样温度
	Temperature float64 `yaml:"temperature" env:"TEMPERATURE"`
	// worker pool 大小
	Workers int `yaml:"workers" env:"WORKERS"`
}

// ProviderConfig 单个后端的凭据与地址
type ProviderConfig struct {
	APIKey  string        `yaml:"api_key" env:"API_KEY"`
	BaseURL string        `yaml:"base_url" env:"BASE_URL"`
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// Configured 是否提供了凭据
func (p ProviderConfig) Configured() bool {
	return strings.TrimSpace(p.APIKey) != ""
}

// ProvidersConfig 全部后端
type ProvidersConfig struct {
	OpenAI     ProviderConfig `yaml:"openai" env:"OPENAI"`
	Anthropic  ProviderConfig `yaml:"anthropic" env:"ANTHROPIC"`
	Gemini     ProviderConfig `yaml:"gemini" env:"GEMINI"`
	OpenRouter ProviderConfig `yaml:"openrouter" env:"OPENROUTER"`
	Replicate  ProviderConfig `yaml:"replicate" env:"REPLICATE"`
	// OpenRouter 归属头
	SiteURL  string `yaml:"site_url" env:"SITE_URL"`
	SiteName string `yaml:"site_name" env:"SITE_NAME"`
}

// MediaConfig 图片与视频配置
type MediaConfig struct {
	// 回复后自动生成配图
	AutoImage bool `yaml:"auto_image" env:"AUTO_IMAGE"`
	// 图片后端: openai, gemini
	ImageProvider string `yaml:"image_provider" env:"IMAGE_PROVIDER"`
	// 图片模型，空表示后端默认
	ImageModel string `yaml:"image_model" env:"IMAGE_MODEL"`
	// 图片保存目录
	ImageDir string `yaml:"image_dir" env:"IMAGE_DIR"`
	// AI-1 回复后自动生成视频
	SoraAutoFromAI1 bool `yaml:"sora_auto_from_ai1" env:"SORA_AUTO_FROM_AI1"`
	// 视频模型
	SoraModel string `yaml:"sora_model" env:"SORA_MODEL"`
	// 视频时长（秒），0 表示 API 默认
	SoraSeconds int `yaml:"sora_seconds" env:"SORA_SECONDS"`
	// 视频尺寸，如 1280x720
	SoraSize string `yaml:"sora_size" env:"SORA_SIZE"`
	// 视频保存目录
	VideoDir string `yaml:"video_dir" env:"VIDEO_DIR"`
	// 视频任务轮询间隔
	SoraPollInterval time.Duration `yaml:"sora_poll_interval" env:"SORA_POLL_INTERVAL"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// 输出路径
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// 是否启用调用者信息
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
	// 是否启用堆栈跟踪
	EnableStacktrace bool `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig 遥测配置
type TelemetryConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// OTLP 端点
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	// 不使用 TLS 连接端点
	Insecure bool `yaml:"insecure" env:"INSECURE"`
	// 服务名称
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
	// 采样率
	SampleRate float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
	// 指标导出间隔
	ExportInterval time.Duration `yaml:"export_interval" env:"EXPORT_INTERVAL"`
}

// =============================================================================
// 🔧 配置加载器
// =============================================================================

// Loader 配置加载器（Builder 模式）
type Loader struct {
	configPath string
	dotEnvPath string
	envPrefix  string
	legacyEnv  bool
	validators []func(*Config) error
}

// NewLoader 创建新的配置加载器
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  DefaultEnvPrefix,
		legacyEnv:  true,
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath 设置配置文件路径
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithDotEnv 设置 .env 文件路径；文件不存在时忽略
func (l *Loader) WithDotEnv(path string) *Loader {
	l.dotEnvPath = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithLegacyEnv 控制是否读取无前缀的兼容环境变量（OPENAI_API_KEY 等）
func (l *Loader) WithLegacyEnv(enabled bool) *Loader {
	l.legacyEnv = enabled
	return l
}

// WithValidator 添加配置验证器
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 加载配置
func (l *Loader) Load() (*Config, error) {
	// 1. 从默认值开始
	cfg := DefaultConfig()

	// 2. 如果指定了配置文件，从文件加载
	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// 3. .env 只补充未设置的变量
	if l.dotEnvPath != "" {
		if err := godotenv.Load(l.dotEnvPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", l.dotEnvPath, err)
		}
	}

	// 4. 兼容环境变量
	if l.legacyEnv {
		if err := applyLegacyEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from env: %w", err)
		}
	}

	// 5. 前缀环境变量覆盖
	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	// 6. 运行验证器
	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile 从 YAML 文件加载配置
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// 文件不存在，使用默认值
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// loadFromEnv 从环境变量加载配置
func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv 递归设置结构体字段
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		// 获取 env tag
		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		// 如果是结构体（time.Duration 除外），递归处理
		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue, ok := os.LookupEnv(envKey)
		if !ok || envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

// setFieldValue 设置字段值
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// 特殊处理 time.Duration
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := parseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := parseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// 支持逗号分隔的字符串切片
		if field.Type().Elem().Kind() == reflect.String {
			field.Set(reflect.ValueOf(splitList(value)))
		}

	case reflect.Map:
		// 支持 key=value,key2=value2 形式的 map[string]string，与已有条目合并
		if field.Type().Key().Kind() != reflect.String || field.Type().Elem().Kind() != reflect.String {
			return nil
		}
		if field.IsNil() {
			field.Set(reflect.MakeMap(field.Type()))
		}
		for _, pair := range splitList(value) {
			k, v, ok := strings.Cut(pair, "=")
			if !ok || strings.TrimSpace(k) == "" {
				return fmt.Errorf("invalid map entry %q", pair)
			}
			field.SetMapIndex(reflect.ValueOf(strings.TrimSpace(k)), reflect.ValueOf(strings.TrimSpace(v)))
		}
	}

	return nil
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseDuration 接受 Go 时长字符串，也接受纯数字秒数（TURN_DELAY=2）
func parseDuration(value string) (time.Duration, error) {
	if d, err := time.ParseDuration(value); err == nil {
		return d, nil
	}
	secs, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", value)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// parseBool 在 strconv.ParseBool 之外接受 yes/no/on/off
func parseBool(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "yes", "on":
		return true, nil
	case "no", "off":
		return false, nil
	}
	return strconv.ParseBool(strings.TrimSpace(value))
}

// =============================================================================
// 🔍 辅助函数
// =============================================================================

// MustLoad 加载配置，失败时 panic
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// LoadFromEnv 仅从环境变量加载配置
func LoadFromEnv() (*Config, error) {
	return NewLoader().Load()
}
