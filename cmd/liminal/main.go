// =============================================================================
// Liminal 主入口
// =============================================================================
// 多模型轮流对话服务，包含 HTTP API、websocket 事件流与 Prometheus 指标
//
// 使用方法:
//
//	liminal serve                       # 启动服务
//	liminal serve --config config.yaml  # 指定配置文件
//	liminal run                         # 控制台会话
//	liminal version                     # 显示版本信息
//	liminal health                      # 健康检查
// =============================================================================

// @title Liminal API
// @version 1.0.0
// @description Turn scheduler for multi-model conversations with rabbithole and fork branches.

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /
// @schemes http

package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/liminal/config"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// =============================================================================
// 🎯 主函数
// =============================================================================

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		runServe(os.Args[2:])
	case "run":
		runConsole(os.Args[2:])
	case "version":
		printVersion()
	case "health":
		runHealthCheck(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// loadConfig 解析公共参数并加载配置；失败时直接退出
func loadConfig(name string, args []string) *config.Config {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	dotEnv := fs.String("env-file", ".env", "Path to .env file (ignored when missing)")
	fs.Parse(args)

	loader := config.NewLoader().
		WithDotEnv(*dotEnv).
		WithValidator(func(c *config.Config) error { return c.Validate() })
	if *configPath != "" {
		loader = loader.WithConfigPath(*configPath)
	}

	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// =============================================================================
// 🖥️ serve 命令
// =============================================================================

func runServe(args []string) {
	cfg := loadConfig("serve", args)

	logger := initLogger(cfg.Log)
	defer logger.Sync()

	logger.Info("Starting Liminal",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := NewApp(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to build application", zap.Error(err))
	}
	if err := app.Serve(ctx); err != nil {
		logger.Error("Server exited with error", zap.Error(err))
		app.Close()
		os.Exit(1)
	}
	app.Close()

	logger.Info("Liminal stopped")
}

// =============================================================================
// 💬 run 命令
// =============================================================================

func runConsole(args []string) {
	cfg := loadConfig("run", args)

	// 控制台会话的日志写到 stderr，避免与对话输出交错
	cfg.Log.OutputPaths = []string{"stderr"}
	logger := initLogger(cfg.Log)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := NewApp(cfg, logger, WithConsole(os.Stdout))
	if err != nil {
		logger.Fatal("Failed to build application", zap.Error(err))
	}

	console := NewConsole(app.Scheduler, os.Stdin, os.Stdout, logger)
	err = app.RunConsole(ctx, console)
	app.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Session ended: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// 🏥 健康检查命令
// =============================================================================

func runHealthCheck(args []string) {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	addr := fs.String("addr", "http://localhost:8080", "Server address")
	fs.Parse(args)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(*addr + "/health")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Health check failed: status %d\n", resp.StatusCode)
		os.Exit(1)
	}

	fmt.Println("OK")
}

// =============================================================================
// 📋 版本和帮助
// =============================================================================

func printVersion() {
	fmt.Printf("Liminal %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`Liminal - multi-model conversation scheduler

Usage:
  liminal <command> [options]

Commands:
  serve     Start the HTTP API, websocket feed and metrics server
  run       Start an interactive console session
  version   Show version information
  health    Check server health
  help      Show this help message

Options for 'serve' and 'run':
  --config <path>     Path to configuration file (YAML)
  --env-file <path>   Path to .env file (default .env)

Console commands:
  /rabbithole <text>  Explore <text> in a rabbithole branch
  /fork <text>        Fork the conversation at <text>
  /main               Return to the main conversation
  /continue           Run another round without input
  /quit               End the session

Examples:
  liminal serve
  liminal serve --config /etc/liminal/config.yaml
  liminal run --env-file ~/.liminal.env
  liminal health --addr http://localhost:8080
  liminal version`)
}

// =============================================================================
// 🔧 日志初始化
// =============================================================================

func initLogger(cfg config.LogConfig) *zap.Logger {
	// 解析日志级别
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	// 配置编码器
	var encoderConfig zapcore.EncoderConfig
	encoding := "json"
	if cfg.Format == "console" {
		encoding = "console"
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	outputs := cfg.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stdout"}
	}

	zapConfig := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Development:       cfg.Format == "console",
		Encoding:          encoding,
		EncoderConfig:     encoderConfig,
		OutputPaths:       outputs,
		ErrorOutputPaths:  []string{"stderr"},
		DisableCaller:     !cfg.EnableCaller,
		DisableStacktrace: !cfg.EnableStacktrace,
	}

	logger, err := zapConfig.Build()
	if err != nil {
		// 回退到基本 logger
		logger, _ = zap.NewProduction()
	}

	return logger
}
