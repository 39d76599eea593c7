package video

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// SoraProvider 使用 OpenAI Videos API 生成视频.
// 流程: POST /v1/videos 创建任务 → 轮询 GET /v1/videos/{id} → 下载 /content 到 OutputDir.
type SoraProvider struct {
	cfg    SoraConfig
	client *http.Client
	logger *zap.Logger
}

// NewSoraProvider 创建 Sora 视频提供者, 未设置的字段使用默认值.
func NewSoraProvider(cfg SoraConfig, logger *zap.Logger) *SoraProvider {
	def := DefaultSoraConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = def.OutputDir
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = def.MaxWait
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SoraProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger.With(zap.String("component", "sora")),
	}
}

func (p *SoraProvider) Name() string { return "sora" }

type soraCreateRequest struct {
	Model   string `json:"model"`
	Prompt  string `json:"prompt"`
	Seconds string `json:"seconds,omitempty"`
	Size    string `json:"size,omitempty"`
}

type soraJob struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	Model     string `json:"model"`
	Progress  int    `json:"progress"`
	CreatedAt int64  `json:"created_at"`
	Error     *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (p *SoraProvider) url(path string) string {
	return strings.TrimRight(p.cfg.BaseURL, "/") + path
}

func (p *SoraProvider) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, p.url(path), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (p *SoraProvider) doJSON(req *http.Request, out any) error {
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("sora request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return fmt.Errorf("sora error: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(errBody)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode sora response: %w", err)
	}
	return nil
}

// Generate 创建视频任务并阻塞直到视频下载完成或失败.
func (p *SoraProvider) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResult, error) {
	if strings.TrimSpace(p.cfg.APIKey) == "" {
		return nil, fmt.Errorf("sora api key not configured")
	}
	start := time.Now()
	model := req.Model
	if model == "" {
		model = p.cfg.Model
	}

	body := soraCreateRequest{Model: model, Prompt: req.Prompt, Size: req.Size}
	if req.Seconds > 0 {
		body.Seconds = strconv.Itoa(req.Seconds)
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.MaxWait)
	defer cancel()

	httpReq, err := p.newRequest(ctx, http.MethodPost, "/v1/videos", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	var job soraJob
	if err := p.doJSON(httpReq, &job); err != nil {
		return nil, err
	}
	p.logger.Info("sora job created",
		zap.String("video_id", job.ID),
		zap.String("model", model),
		zap.Int("seconds", req.Seconds),
		zap.String("size", req.Size))

	done, err := p.pollJob(ctx, job)
	if err != nil {
		return nil, err
	}

	path, err := p.download(ctx, done.ID)
	if err != nil {
		return nil, err
	}
	return &GenerateResult{
		VideoID:   done.ID,
		Path:      path,
		Model:     model,
		Elapsed:   time.Since(start),
		CreatedAt: time.Now(),
	}, nil
}

func (p *SoraProvider) pollJob(ctx context.Context, job soraJob) (*soraJob, error) {
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		switch job.Status {
		case StatusCompleted:
			return &job, nil
		case StatusFailed:
			if job.Error != nil && job.Error.Message != "" {
				return nil, fmt.Errorf("sora generation failed: %s", job.Error.Message)
			}
			return nil, fmt.Errorf("sora generation failed")
		}
		// 继续轮询 queued / in_progress

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("sora job %s: %w", job.ID, ctx.Err())
		case <-ticker.C:
		}

		httpReq, err := p.newRequest(ctx, http.MethodGet, "/v1/videos/"+job.ID, nil)
		if err != nil {
			return nil, err
		}
		var next soraJob
		if err := p.doJSON(httpReq, &next); err != nil {
			p.logger.Warn("sora poll failed", zap.String("video_id", job.ID), zap.Error(err))
			continue
		}
		if next.ID == "" {
			next.ID = job.ID
		}
		p.logger.Debug("sora job polled",
			zap.String("video_id", next.ID),
			zap.String("status", next.Status),
			zap.Int("progress", next.Progress))
		job = next
	}
}

func (p *SoraProvider) download(ctx context.Context, id string) (string, error) {
	httpReq, err := p.newRequest(ctx, http.MethodGet, "/v1/videos/"+id+"/content", nil)
	if err != nil {
		return "", err
	}
	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("sora download failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("sora download failed: status=%d", resp.StatusCode)
	}

	if err := os.MkdirAll(p.cfg.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output dir: %w", err)
	}
	path := filepath.Join(p.cfg.OutputDir, id+".mp4")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create video file: %w", err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("failed to write video file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close video file: %w", err)
	}
	return path, nil
}

var _ Generator = (*SoraProvider)(nil)
