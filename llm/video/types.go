// Package video provides text-to-video generation.
package video

import (
	"context"
	"time"
)

// Job status values reported by the Videos API.
const (
	StatusQueued     = "queued"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// GenerateRequest represents a video generation request.
type GenerateRequest struct {
	Prompt  string `json:"prompt"`
	Model   string `json:"model,omitempty"`
	Seconds int    `json:"seconds,omitempty"` // Duration in seconds, 0 uses the API default
	Size    string `json:"size,omitempty"`    // e.g. "1280x720"
}

// GenerateResult describes a finished, downloaded video.
type GenerateResult struct {
	VideoID   string        `json:"video_id"`
	Path      string        `json:"video_path"`
	Model     string        `json:"model"`
	Elapsed   time.Duration `json:"elapsed"`
	CreatedAt time.Time     `json:"created_at"`
}

// Generator creates a video from a prompt and stores it locally.
type Generator interface {
	Name() string
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResult, error)
}
