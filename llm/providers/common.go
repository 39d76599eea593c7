package providers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/BaSui01/liminal/llm"
	"github.com/BaSui01/liminal/types"
)

// MapHTTPError 将 HTTP 状态码映射为带有合适重试标记的 types.Error
// 这是所有提供者使用的通用错误映射函数
func MapHTTPError(status int, msg string, provider string) *types.Error {
	e := types.NewError(types.ErrUpstreamError, msg).WithHTTPStatus(status).WithProvider(provider)
	switch status {
	case http.StatusUnauthorized:
		e.Code = types.ErrUnauthorized
	case http.StatusForbidden:
		e.Code = types.ErrForbidden
	case http.StatusTooManyRequests:
		e.Code = types.ErrRateLimited
		e.Retryable = true
	case http.StatusBadRequest:
		// 检查配额/信用关键字
		msgLower := strings.ToLower(msg)
		if strings.Contains(msgLower, "quota") ||
			strings.Contains(msgLower, "credit") ||
			strings.Contains(msgLower, "limit") {
			e.Code = types.ErrQuotaExceeded
		} else {
			e.Code = types.ErrInvalidRequest
		}
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		e.Code = types.ErrUpstreamTimeout
		e.Retryable = true
	case http.StatusServiceUnavailable, http.StatusBadGateway:
		e.Retryable = true
	case 529: // Model overloaded (Anthropic)
		e.Code = types.ErrModelOverloaded
		e.Retryable = true
	default:
		e.Retryable = status >= 500
	}
	return e
}

// TransportError 包装网络层错误（连接失败、超时等）
func TransportError(err error, provider string) *types.Error {
	return types.NewError(types.ErrUpstreamError, err.Error()).
		WithCause(err).
		WithHTTPStatus(http.StatusBadGateway).
		WithRetryable(true).
		WithProvider(provider)
}

// DecodeError 包装响应体解析失败
func DecodeError(err error, provider string) *types.Error {
	return types.NewError(types.ErrUpstreamError, fmt.Sprintf("decode response: %v", err)).
		WithCause(err).
		WithHTTPStatus(http.StatusBadGateway).
		WithProvider(provider)
}

// ReadErrorMessage 读取响应体中的错误消息
// 尝试解析 JSON 错误响应，失败则回退到原始文本
func ReadErrorMessage(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 64<<10))
	if err != nil {
		return "failed to read error response"
	}

	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    any    `json:"code"`
		} `json:"error"`
		Detail string `json:"detail"` // Replicate
	}

	if err := json.Unmarshal(data, &errResp); err == nil {
		if errResp.Error.Message != "" {
			if errResp.Error.Type != "" {
				return fmt.Sprintf("%s (type: %s)", errResp.Error.Message, errResp.Error.Type)
			}
			return errResp.Error.Message
		}
		if errResp.Detail != "" {
			return errResp.Detail
		}
	}

	// 回退到原始文本
	return strings.TrimSpace(string(data))
}

// OpenAI 兼容 API 通用类型，OpenAI 与 OpenRouter 共用。

// OpenAICompatContentPart 是多段内容中的一段（文本或图片 URL）.
type OpenAICompatContentPart struct {
	Type     string                `json:"type"`
	Text     string                `json:"text,omitempty"`
	ImageURL *OpenAICompatImageURL `json:"image_url,omitempty"`
}

// OpenAICompatImageURL 图片地址，base64 图片以 data URL 传递.
type OpenAICompatImageURL struct {
	URL string `json:"url"`
}

// OpenAICompatMessage 表示 OpenAI 兼容的请求消息；Content 为 string 或 []OpenAICompatContentPart.
type OpenAICompatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// OpenAICompatRequest 表示 OpenAI 兼容的聊天完成请求.
type OpenAICompatRequest struct {
	Model       string                `json:"model"`
	Messages    []OpenAICompatMessage `json:"messages"`
	MaxTokens   int                   `json:"max_tokens,omitempty"`
	Temperature float32               `json:"temperature,omitempty"`
	Stream      bool                  `json:"stream,omitempty"`
}

// OpenAICompatRespMessage 响应中的消息，内容总是文本.
type OpenAICompatRespMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// OpenAICompatChoice 表示 OpenAI 兼容响应中的单个选项.
type OpenAICompatChoice struct {
	Index        int                      `json:"index"`
	FinishReason string                   `json:"finish_reason"`
	Message      OpenAICompatRespMessage  `json:"message"`
	Delta        *OpenAICompatRespMessage `json:"delta,omitempty"`
}

// OpenAICompatUsage 表示 OpenAI 兼容响应中的 token 用量.
type OpenAICompatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// OpenAICompatResponse 表示 OpenAI 兼容的聊天完成响应.
type OpenAICompatResponse struct {
	ID      string               `json:"id"`
	Model   string               `json:"model"`
	Choices []OpenAICompatChoice `json:"choices"`
	Usage   *OpenAICompatUsage   `json:"usage,omitempty"`
	Created int64                `json:"created,omitempty"`
}

// DataURL 把 base64 图片片段转成 data URL.
func DataURL(p types.ContentPart) string {
	mediaType := p.MediaType
	if mediaType == "" {
		mediaType = "image/jpeg"
	}
	return "data:" + mediaType + ";base64," + p.Data
}

// ConvertContentToOpenAI 纯文本保持为字符串，多段内容转为 content parts 数组.
func ConvertContentToOpenAI(c types.Content) any {
	if !c.IsList() {
		return c.Text
	}
	parts := make([]OpenAICompatContentPart, 0, len(c.Parts))
	for _, p := range c.Parts {
		switch p.Type {
		case types.PartText:
			parts = append(parts, OpenAICompatContentPart{Type: "text", Text: p.Text})
		case types.PartImage:
			parts = append(parts, OpenAICompatContentPart{
				Type:     "image_url",
				ImageURL: &OpenAICompatImageURL{URL: DataURL(p)},
			})
		}
	}
	return parts
}

// ConvertRequestToOpenAI 把归一化请求转为 OpenAI 兼容的消息列表，系统提示在首位.
func ConvertRequestToOpenAI(req *llm.ChatRequest) []OpenAICompatMessage {
	out := make([]OpenAICompatMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		out = append(out, OpenAICompatMessage{Role: string(types.RoleSystem), Content: req.System})
	}
	for _, m := range req.Messages {
		out = append(out, OpenAICompatMessage{
			Role:    string(m.Role),
			Content: ConvertContentToOpenAI(m.Content),
		})
	}
	return out
}

// ToLLMChatResponse 将 OpenAI 兼容的响应转换为 llm.ChatResponse.
func ToLLMChatResponse(oa OpenAICompatResponse, provider string) *llm.ChatResponse {
	resp := &llm.ChatResponse{
		ID:       oa.ID,
		Provider: provider,
		Model:    oa.Model,
	}
	if len(oa.Choices) > 0 {
		resp.Content = oa.Choices[0].Message.Content
		resp.FinishReason = oa.Choices[0].FinishReason
	}
	if oa.Usage != nil {
		resp.Usage = llm.ChatUsage{
			PromptTokens:     oa.Usage.PromptTokens,
			CompletionTokens: oa.Usage.CompletionTokens,
			TotalTokens:      oa.Usage.TotalTokens,
		}
	}
	return resp
}

// ChooseModel 根据请求和默认值选择模型
func ChooseModel(req *llm.ChatRequest, defaultModel, fallbackModel string) string {
	if req != nil && req.Model != "" {
		return req.Model
	}
	if defaultModel != "" {
		return defaultModel
	}
	return fallbackModel
}

// ChooseMaxTokens 请求未指定时使用默认值
func ChooseMaxTokens(req *llm.ChatRequest, def int) int {
	if req != nil && req.MaxTokens > 0 {
		return req.MaxTokens
	}
	return def
}

// BearerTokenHeaders 是标准的 Bearer token 认证 header 构建函数。
func BearerTokenHeaders(r *http.Request, apiKey string) {
	r.Header.Set("Authorization", "Bearer "+apiKey)
	r.Header.Set("Content-Type", "application/json")
}

// SafeCloseBody 安全关闭 HTTP 响应体并忽略错误
func SafeCloseBody(body io.ReadCloser) {
	if body != nil {
		_ = body.Close()
	}
}

// NewHTTPClient 返回带超时的 HTTP 客户端；timeout 为 0 时使用默认值
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}
