// 包 image 提供文生图能力，生成结果落盘为本地文件.
package image

import (
	"context"
	"strings"
	"time"
)

// ArtistPreamble 是自动生图时加在回复文本前的艺术指引.
const ArtistPreamble = "You are the artist/chronicler of an exchange between multiple AIs. Create an image using the following ai text contribution as inspiration. DO NOT merely repeat text in the image. Interpret the text in image form."

// MaxPromptChars 是从回复中截取的最大字符数.
const MaxPromptChars = 300

// 生成请求代表图像生成请求 。
type GenerateRequest struct {
	Prompt         string `json:"prompt"`
	Model          string `json:"model,omitempty"`
	Size           string `json:"size,omitempty"`            // 1024x1024, 1792x1024, etc.
	Quality        string `json:"quality,omitempty"`         // standard, hd
	ResponseFormat string `json:"response_format,omitempty"` // url, b64_json
}

// ImageData 代表生成的图像，URL 与 Data 二选一.
type ImageData struct {
	URL           string `json:"url,omitempty"`
	Data          []byte `json:"-"`
	MimeType      string `json:"mime_type,omitempty"`
	RevisedPrompt string `json:"revised_prompt,omitempty"`
}

// 生成响应(Generate Response)代表图像生成的响应.
type GenerateResponse struct {
	Provider  string      `json:"provider"`
	Model     string      `json:"model"`
	Images    []ImageData `json:"images"`
	CreatedAt time.Time   `json:"created_at"`
}

// Result 是一次落盘生成的结果.
type Result struct {
	Success bool   `json:"success"`
	Path    string `json:"image_path,omitempty"`
	Error   string `json:"error,omitempty"`
}

// 提供方定义了图像生成提供者接口.
type Provider interface {
	// 从文本提示生成图像 。
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error)

	// 名称返回提供者名称 。
	Name() string
}

// PromptFromResponse 截取回复前 MaxPromptChars 个字符并加上 ArtistPreamble.
func PromptFromResponse(text string) string {
	runes := []rune(text)
	if len(runes) > MaxPromptChars {
		runes = runes[:MaxPromptChars]
	}
	return ArtistPreamble + strings.TrimSpace(string(runes))
}
