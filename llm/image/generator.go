package image

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Generator 调用 Provider 并把第一张图像保存到 Dir.
type Generator struct {
	provider Provider
	dir      string
	client   *http.Client
	logger   *zap.Logger
	now      func() time.Time
}

// NewGenerator 创建落盘生成器；dir 为空时使用 "images".
func NewGenerator(provider Provider, dir string, logger *zap.Logger) *Generator {
	if dir == "" {
		dir = "images"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		provider: provider,
		dir:      dir,
		client:   &http.Client{Timeout: 60 * time.Second},
		logger:   logger.With(zap.String("component", "image_generator")),
		now:      time.Now,
	}
}

// Generate 生成并保存图像，失败以 Result.Error 表示.
func (g *Generator) Generate(ctx context.Context, prompt string) Result {
	if g.provider == nil {
		return Result{Error: "image provider not configured"}
	}
	resp, err := g.provider.Generate(ctx, &GenerateRequest{Prompt: prompt})
	if err != nil {
		return Result{Error: err.Error()}
	}
	if len(resp.Images) == 0 {
		return Result{Error: "no image returned"}
	}

	img := resp.Images[0]
	data := img.Data
	if len(data) == 0 && img.URL != "" {
		data, err = g.fetch(ctx, img.URL)
		if err != nil {
			return Result{Error: err.Error()}
		}
	}
	if len(data) == 0 {
		return Result{Error: "image response had neither data nor url"}
	}

	path, err := g.save(data, img.MimeType)
	if err != nil {
		return Result{Error: err.Error()}
	}
	g.logger.Info("image saved", zap.String("path", path), zap.String("provider", resp.Provider))
	return Result{Success: true, Path: path}
}

// FromResponse 用 AI 回复构造提示后生成图像.
func (g *Generator) FromResponse(ctx context.Context, text string) Result {
	return g.Generate(ctx, PromptFromResponse(text))
}

func (g *Generator) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("image download failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("image download failed: status=%d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func extensionFor(mimeType string) string {
	switch {
	case strings.Contains(mimeType, "jpeg"), strings.Contains(mimeType, "jpg"):
		return "jpg"
	case strings.Contains(mimeType, "webp"):
		return "webp"
	default:
		return "png"
	}
}

func (g *Generator) save(data []byte, mimeType string) (string, error) {
	if err := os.MkdirAll(g.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create images directory: %w", err)
	}
	now := g.now()
	name := fmt.Sprintf("generated_%s_%03d.%s", now.Format("20060102_150405"), now.Nanosecond()/int(time.Millisecond), extensionFor(mimeType))
	path := filepath.Join(g.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to save image: %w", err)
	}
	return path, nil
}
