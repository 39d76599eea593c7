package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/liminal/llm"
	"github.com/BaSui01/liminal/llm/video"
)

// 回复短于该长度时不触发配图与视频
const minSideEffectChars = 20

// startSideEffects 在副作用 pool 上启动自动配图与自动视频。两者不占用发言 worker，
// 失败只记录日志与指标。
func (s *Scheduler) startSideEffects(ctx context.Context, branch string, p llm.Participant, content string) {
	if len(strings.TrimSpace(content)) <= minSideEffectChars {
		return
	}
	if s.media.AutoImage && s.images != nil {
		s.startImage(ctx, branch, p, content)
	}
	if s.media.SoraAutoFromAI1 && s.videos != nil && p.Name == "AI-1" {
		s.startVideo(ctx, content)
	}
}

func (s *Scheduler) startImage(ctx context.Context, branch string, p llm.Participant, content string) {
	s.display.AppendText("\nGenerating an image based on this response...\n", StyleSystem)

	err := s.effectPool.TrySubmit(ctx, "image:"+p.Name, func(ctx context.Context) error {
		res := s.images.FromResponse(ctx, content)
		var err error
		if !res.Success {
			err = errors.New(res.Error)
		}
		if s.metrics != nil {
			s.metrics.RecordSideEffect("image", err)
		}
		s.post(func() { s.onImage(branch, p.Name, res.Path, err) })
		return err
	})
	if err != nil {
		s.logger.Warn("image task dropped", zap.String("participant", p.Name), zap.Error(err))
		if s.metrics != nil {
			s.metrics.RecordSideEffect("image", err)
		}
	}
}

// onImage 在循环协程上把图片路径挂到该参与者最近的回复上
func (s *Scheduler) onImage(branch, aiName, path string, err error) {
	if err != nil {
		s.logger.Warn("image generation failed", zap.String("participant", aiName), zap.Error(err))
		s.display.AppendText(fmt.Sprintf("\nImage generation failed: %v\n", err), StyleSystem)
		return
	}
	if !s.tree.SetImagePath(branch, aiName, path) {
		s.logger.Warn("no message to attach image to", zap.String("participant", aiName), zap.String("path", path))
		return
	}
	s.logger.Info("image attached", zap.String("participant", aiName), zap.String("path", path))
	s.render(branch)
	s.display.AppendText(fmt.Sprintf("\nGenerated image saved to %s\n", path), StyleSystem)
}

func (s *Scheduler) startVideo(ctx context.Context, content string) {
	s.display.AppendText("\n[system] Starting Sora video job from AI-1 response...\n", StyleSystem)

	req := &video.GenerateRequest{
		Prompt:  content,
		Model:   s.media.SoraModel,
		Seconds: s.media.SoraSeconds,
		Size:    s.media.SoraSize,
	}
	err := s.effectPool.TrySubmit(ctx, "video:AI-1", func(ctx context.Context) error {
		res, err := s.videos.Generate(ctx, req)
		if s.metrics != nil {
			s.metrics.RecordSideEffect("video", err)
		}
		if err != nil {
			s.logger.Warn("sora video failed", zap.Error(err))
			return err
		}
		s.logger.Info("sora video completed", zap.String("video_id", res.VideoID), zap.String("path", res.Path))
		return nil
	})
	if err != nil {
		s.logger.Warn("video task dropped", zap.Error(err))
		if s.metrics != nil {
			s.metrics.RecordSideEffect("video", err)
		}
	}
}

// post 把函数交回循环协程执行；循环已退出时丢弃
func (s *Scheduler) post(fn func()) {
	select {
	case s.effects <- fn:
	case <-s.stopped:
	}
}
