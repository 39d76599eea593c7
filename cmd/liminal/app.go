package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/liminal/agent/conversation"
	"github.com/BaSui01/liminal/agent/scheduler"
	"github.com/BaSui01/liminal/api/handlers"
	"github.com/BaSui01/liminal/config"
	"github.com/BaSui01/liminal/internal/metrics"
	"github.com/BaSui01/liminal/internal/pool"
	"github.com/BaSui01/liminal/internal/server"
	"github.com/BaSui01/liminal/internal/telemetry"
	"github.com/BaSui01/liminal/internal/transcript"
	"github.com/BaSui01/liminal/llm"
	"github.com/BaSui01/liminal/llm/image"
	"github.com/BaSui01/liminal/llm/observability"
	"github.com/BaSui01/liminal/llm/providers"
	claude "github.com/BaSui01/liminal/llm/providers/anthropic"
	"github.com/BaSui01/liminal/llm/providers/gemini"
	"github.com/BaSui01/liminal/llm/providers/openaicompat"
	"github.com/BaSui01/liminal/llm/providers/replicate"
	"github.com/BaSui01/liminal/llm/router"
	"github.com/BaSui01/liminal/llm/video"
)

// =============================================================================
// 🖥️ App 结构
// =============================================================================

// App 持有一次会话的全部组件：对话树、调度器、路由器与服务器
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	telemetry *telemetry.Providers
	registry  *prometheus.Registry
	collector *metrics.Collector
	pool      *pool.Pool
	effects   *pool.Pool

	Roster    *scheduler.Roster
	Hub       *scheduler.Hub
	Router    *router.Router
	Scheduler *scheduler.Scheduler

	healthHandler *handlers.HealthHandler
}

type appOptions struct {
	console  io.Writer
	registry *prometheus.Registry
	caller   scheduler.Caller
}

// AppOption 配置 App
type AppOption func(*appOptions)

// WithConsole 把展示文本同时写到 w
func WithConsole(w io.Writer) AppOption {
	return func(o *appOptions) { o.console = w }
}

// WithRegistry 使用独立的 Prometheus registry 而不是全局默认 registry
func WithRegistry(reg *prometheus.Registry) AppOption {
	return func(o *appOptions) { o.registry = reg }
}

// WithCaller 替换路由器作为发言执行者
func WithCaller(c scheduler.Caller) AppOption {
	return func(o *appOptions) { o.caller = c }
}

// NewApp 按配置组装应用
func NewApp(cfg *config.Config, logger *zap.Logger, opts ...AppOption) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var o appOptions
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{cfg: cfg, logger: logger, registry: o.registry}

	// 1. 遥测
	tp, err := telemetry.Init(cfg.Telemetry, Version, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
		tp = &telemetry.Providers{}
	}
	a.telemetry = tp

	// 2. 指标与 worker pool
	if a.registry != nil {
		a.collector = metrics.NewCollectorWith(a.registry, "liminal", logger)
	} else {
		a.collector = metrics.NewCollector("liminal", logger)
	}
	a.pool = pool.New(pool.Config{MaxWorkers: cfg.Conversation.Workers}, logger)
	a.pool.OnDone = a.collector.RecordPoolTask
	a.effects = pool.New(pool.EffectsConfig(), logger)
	a.effects.OnDone = a.collector.RecordPoolTask

	// 3. 路由器
	turnMetrics, err := observability.NewMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to create turn metrics: %w", err)
	}
	sora := buildVideo(cfg, logger)
	routerOpts := append(providerOptions(cfg, logger),
		router.WithMetrics(turnMetrics),
		router.WithCostTracker(observability.NewCostTracker(nil)))
	if sora != nil {
		routerOpts = append(routerOpts, router.WithVideo(sora, router.VideoDefaults{
			Seconds: cfg.Media.SoraSeconds,
			Size:    cfg.Media.SoraSize,
		}))
	}
	a.Router = router.New(logger, routerOpts...)

	// 4. 调度器
	a.Roster = scheduler.NewRoster(cfg)
	a.Hub = scheduler.NewHub(logger)

	var display scheduler.Display = a.Hub
	if o.console != nil {
		display = scheduler.MultiDisplay{a.Hub, NewConsoleDisplay(o.console)}
	}
	var caller scheduler.Caller = a.Router
	if o.caller != nil {
		caller = o.caller
	}

	schedCfg := scheduler.Config{
		Tree:        conversation.NewTree(logger),
		Caller:      caller,
		Settings:    a.Roster,
		Pool:        a.pool,
		EffectsPool: a.effects,
		Display:     display,
		Transcript:  transcript.New(cfg.Conversation.TranscriptPath, logger),
		Media: scheduler.MediaOptions{
			AutoImage:       cfg.Media.AutoImage,
			SoraAutoFromAI1: cfg.Media.SoraAutoFromAI1,
			SoraModel:       cfg.Media.SoraModel,
			SoraSeconds:     cfg.Media.SoraSeconds,
			SoraSize:        cfg.Media.SoraSize,
		},
		Metrics: a.collector,
	}
	if gen := buildImages(cfg, logger); gen != nil {
		schedCfg.Images = gen
	}
	if sora != nil {
		schedCfg.Videos = sora
	}
	a.Scheduler, err = scheduler.New(schedCfg, logger)
	if err != nil {
		return nil, err
	}

	// 5. 健康检查
	a.healthHandler = handlers.NewHealthHandler(logger)
	for _, b := range []router.Backend{
		router.BackendAnthropic, router.BackendOpenAI, router.BackendGemini,
		router.BackendOpenRouter, router.BackendReplicate,
	} {
		if p, ok := a.Router.Provider(b); ok {
			a.healthHandler.RegisterCheck(providerCheck(b, p))
		}
	}

	logger.Info("Application assembled",
		zap.Int("participants", len(cfg.Participants)),
		zap.Int("num_ais", cfg.Conversation.NumAIs),
		zap.String("prompt_pair", cfg.Conversation.PromptPair),
		zap.Bool("auto_image", schedCfg.Images != nil),
		zap.Bool("video", sora != nil),
		zap.Bool("telemetry", tp.Enabled()),
	)
	return a, nil
}

// =============================================================================
// 🔧 Provider 组装
// =============================================================================

func base(p config.ProviderConfig) providers.BaseProviderConfig {
	return providers.BaseProviderConfig{APIKey: p.APIKey, BaseURL: p.BaseURL, Timeout: p.Timeout}
}

// providerOptions 为每个配置了凭据的后端注册 Provider
func providerOptions(cfg *config.Config, logger *zap.Logger) []router.Option {
	p := cfg.Providers
	var opts []router.Option

	if p.Anthropic.Configured() {
		opts = append(opts, router.WithProvider(router.BackendAnthropic, claude.NewClaudeProvider(providers.ClaudeConfig{
			BaseProviderConfig: base(p.Anthropic),
			MaxTokens:          cfg.Conversation.MaxTokens,
		}, logger)))
	}
	if p.OpenAI.Configured() {
		opts = append(opts, router.WithProvider(router.BackendOpenAI, openaicompat.NewOpenAI(providers.OpenAIConfig{
			BaseProviderConfig: base(p.OpenAI),
		}, logger)))
	}
	if p.Gemini.Configured() {
		opts = append(opts, router.WithProvider(router.BackendGemini, gemini.NewGeminiProvider(providers.GeminiConfig{
			BaseProviderConfig: base(p.Gemini),
		}, logger)))
	}
	if p.OpenRouter.Configured() {
		opts = append(opts, router.WithProvider(router.BackendOpenRouter, openaicompat.NewOpenRouter(providers.OpenRouterConfig{
			BaseProviderConfig: base(p.OpenRouter),
			SiteURL:            p.SiteURL,
			SiteName:           p.SiteName,
		}, logger)))
	}
	if p.Replicate.Configured() {
		opts = append(opts, router.WithProvider(router.BackendReplicate, replicate.New(providers.ReplicateConfig{
			BaseProviderConfig: base(p.Replicate),
			KeepReasoning:      cfg.Conversation.ShowChainOfThought,
		}, logger)))
	}
	return opts
}

// buildVideo Sora 使用 OpenAI 凭据；未配置时返回 nil
func buildVideo(cfg *config.Config, logger *zap.Logger) *video.SoraProvider {
	if !cfg.Providers.OpenAI.Configured() {
		return nil
	}
	sc := video.DefaultSoraConfig()
	sc.APIKey = cfg.Providers.OpenAI.APIKey
	if cfg.Providers.OpenAI.BaseURL != "" {
		sc.BaseURL = cfg.Providers.OpenAI.BaseURL
	}
	if cfg.Media.SoraModel != "" {
		sc.Model = cfg.Media.SoraModel
	}
	if cfg.Media.VideoDir != "" {
		sc.OutputDir = cfg.Media.VideoDir
	}
	if cfg.Media.SoraPollInterval > 0 {
		sc.PollInterval = cfg.Media.SoraPollInterval
	}
	return video.NewSoraProvider(sc, logger)
}

// buildImages 在启用自动配图且后端有凭据时返回生成器
func buildImages(cfg *config.Config, logger *zap.Logger) *image.Generator {
	if !cfg.Media.AutoImage {
		return nil
	}
	var provider image.Provider
	switch cfg.Media.ImageProvider {
	case "gemini":
		if !cfg.Providers.Gemini.Configured() {
			logger.Warn("auto image enabled but gemini api key missing")
			return nil
		}
		gc := image.DefaultGeminiConfig()
		gc.APIKey = cfg.Providers.Gemini.APIKey
		if cfg.Media.ImageModel != "" {
			gc.Model = cfg.Media.ImageModel
		}
		provider = image.NewGeminiProvider(gc)
	default:
		if !cfg.Providers.OpenAI.Configured() {
			logger.Warn("auto image enabled but openai api key missing")
			return nil
		}
		oc := image.DefaultOpenAIConfig()
		oc.APIKey = cfg.Providers.OpenAI.APIKey
		if cfg.Media.ImageModel != "" {
			oc.Model = cfg.Media.ImageModel
		}
		provider = image.NewOpenAIProvider(oc)
	}
	return image.NewGenerator(provider, cfg.Media.ImageDir, logger)
}

func providerCheck(b router.Backend, p llm.Provider) handlers.HealthCheck {
	return handlers.NewFuncHealthCheck("provider:"+string(b), func(ctx context.Context) error {
		status, err := p.HealthCheck(ctx)
		if err != nil {
			return err
		}
		if status == nil || !status.Healthy {
			return fmt.Errorf("%s reported unhealthy", b)
		}
		return nil
	})
}

// =============================================================================
// 🌐 路由
// =============================================================================

// Routes 构建 API 路由与中间件链；ctx 结束时限流器的清理协程退出
func (a *App) Routes(ctx context.Context) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", a.healthHandler.HandleHealth)
	mux.HandleFunc("/ready", a.healthHandler.HandleReady)
	mux.HandleFunc("/version", a.healthHandler.HandleVersion(Version, BuildTime, GitCommit))

	conv := handlers.NewConversationHandler(a.Scheduler, a.logger)
	mux.HandleFunc("/api/v1/conversation", conv.HandleConversation)
	mux.HandleFunc("/api/v1/conversation/input", conv.HandleInput)
	mux.HandleFunc("/api/v1/conversation/continue", conv.HandleContinue)
	mux.HandleFunc("/api/v1/branches", conv.HandleBranches)
	mux.HandleFunc("/api/v1/branches/main", conv.HandleReturnMain)

	settings := handlers.NewSettingsHandler(a.Roster, a.logger)
	mux.HandleFunc("/api/v1/settings", settings.HandleSettings)

	stream := handlers.NewStreamHandler(a.Hub, a.cfg.Server.CORSAllowedOrigins, a.logger)
	mux.HandleFunc("/api/v1/stream", stream.HandleStream)

	middlewares := []Middleware{
		Recovery(a.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(a.logger),
		MetricsMiddleware(a.collector),
	}
	if a.telemetry.Enabled() {
		middlewares = append(middlewares, OTelTracing())
	}
	middlewares = append(middlewares,
		CORS(a.cfg.Server.CORSAllowedOrigins),
		RateLimiter(ctx, a.cfg.Server.RateLimitRPS, a.cfg.Server.RateLimitBurst, a.logger),
	)
	return Chain(mux, middlewares...)
}

func (a *App) metricsHandler() http.Handler {
	mux := http.NewServeMux()
	if a.registry != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	} else {
		mux.Handle("/metrics", promhttp.Handler())
	}
	return mux
}

// =============================================================================
// 🚀 运行
// =============================================================================

// Serve 运行调度器、API 服务器与 Metrics 服务器，直到 ctx 结束或任一组件失败
func (a *App) Serve(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.Scheduler.Run(ctx) })

	s := a.cfg.Server
	api := server.NewManager("api", a.Routes(ctx), server.Config{
		Addr:              fmt.Sprintf(":%d", s.HTTPPort),
		ReadHeaderTimeout: s.ReadHeaderTimeout,
		WriteTimeout:      s.WriteTimeout,
		IdleTimeout:       s.IdleTimeout,
		MaxHeaderBytes:    1 << 20,
		ShutdownTimeout:   s.ShutdownTimeout,
	}, a.logger)
	g.Go(func() error { return api.Run(ctx) })

	if s.MetricsPort > 0 {
		metricsServer := server.NewManager("metrics", a.metricsHandler(), server.Config{
			Addr:              fmt.Sprintf(":%d", s.MetricsPort),
			ReadHeaderTimeout: s.ReadHeaderTimeout,
			ShutdownTimeout:   s.ShutdownTimeout,
		}, a.logger)
		g.Go(func() error { return metricsServer.Run(ctx) })
	}

	a.logger.Info("All servers started",
		zap.Int("http_port", s.HTTPPort),
		zap.Int("metrics_port", s.MetricsPort))
	return g.Wait()
}

// RunConsole 运行调度器与控制台，控制台结束时调度器随之停止
func (a *App) RunConsole(ctx context.Context, c *Console) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.Scheduler.Run(ctx) })
	g.Go(func() error {
		defer cancel()
		return c.Run(ctx)
	})
	return g.Wait()
}

// Close 释放 worker pool 与遥测
func (a *App) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, p := range []*pool.Pool{a.pool, a.effects} {
		if err := p.Close(ctx); err != nil {
			a.logger.Warn("worker pool shutdown error", zap.Error(err))
		}
	}
	if err := a.telemetry.Shutdown(ctx); err != nil {
		a.logger.Warn("telemetry shutdown error", zap.Error(err))
	}
	a.logger.Info("Graceful shutdown completed")
}
