package tokenizer

import (
	"strings"
	"sync"

	"github.com/BaSui01/liminal/llm"
)

// ImageTokens 是每张图片的固定估算值（低细节图片的计费基数）
const ImageTokens = 85

// Tokenizer 统一的 token 计数接口.
type Tokenizer interface {
	// CountTokens 返回给定文本的 token 数.
	CountTokens(text string) (int, error)

	// CountMessages 返回消息列表的总 token 数,
	// 包括每条消息的开销（角色标记、分隔符等）。
	CountMessages(messages []Message) (int, error)

	// Name 返回分词器的名称.
	Name() string
}

// Message 是 tokenizer 使用的轻量消息结构.
type Message struct {
	Role    string
	Content string
}

// 按编码缓存的 tiktoken 实例，编码表只需加载一次.
var (
	byEncoding   = make(map[string]Tokenizer)
	byEncodingMu sync.Mutex
)

// ForModel 返回模型对应的分词器。tiktoken 初始化失败（例如离线时
// 无法下载编码表）时自动退回估算器。
func ForModel(modelID string) Tokenizer {
	encoding := EncodingFor(modelID)

	byEncodingMu.Lock()
	defer byEncodingMu.Unlock()

	if t, ok := byEncoding[encoding]; ok {
		return t
	}
	t := &fallback{
		primary: NewTiktokenTokenizer(encoding),
		backup:  NewEstimatorTokenizer(),
	}
	byEncoding[encoding] = t
	return t
}

// EstimateRequest 估算一次请求的提示 token 数：系统提示加全部轮次，
// 图片按 ImageTokens 计。
func EstimateRequest(t Tokenizer, req *llm.ChatRequest) int {
	if req == nil {
		return 0
	}
	msgs := make([]Message, 0, len(req.Messages)+1)
	images := 0
	for _, m := range req.Turns() {
		msgs = append(msgs, Message{Role: string(m.Role), Content: m.Content.PlainText()})
		images += len(m.Content.Images())
	}
	n, err := t.CountMessages(msgs)
	if err != nil {
		return 0
	}
	return n + images*ImageTokens
}

// fallback 在 primary 出错后改用 backup，并记住这个选择.
type fallback struct {
	primary Tokenizer
	backup  Tokenizer

	mu     sync.Mutex
	failed bool
}

func (f *fallback) active() Tokenizer {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failed {
		return f.backup
	}
	return f.primary
}

func (f *fallback) markFailed() {
	f.mu.Lock()
	f.failed = true
	f.mu.Unlock()
}

func (f *fallback) CountTokens(text string) (int, error) {
	n, err := f.active().CountTokens(text)
	if err == nil {
		return n, nil
	}
	f.markFailed()
	return f.backup.CountTokens(text)
}

func (f *fallback) CountMessages(messages []Message) (int, error) {
	n, err := f.active().CountMessages(messages)
	if err == nil {
		return n, nil
	}
	f.markFailed()
	return f.backup.CountMessages(messages)
}

func (f *fallback) Name() string {
	return f.active().Name()
}

func isOpenAIModern(modelID string) bool {
	id := strings.ToLower(modelID)
	if i := strings.LastIndex(id, "/"); i >= 0 {
		id = id[i+1:]
	}
	for _, prefix := range []string{"gpt-4o", "gpt-4.1", "gpt-5", "o1", "o3", "o4"} {
		if strings.HasPrefix(id, prefix) {
			return true
		}
	}
	return false
}

// EncodingFor 返回模型使用的 tiktoken 编码；非 OpenAI 模型用 cl100k_base 近似.
func EncodingFor(modelID string) string {
	if isOpenAIModern(modelID) {
		return "o200k_base"
	}
	return "cl100k_base"
}
