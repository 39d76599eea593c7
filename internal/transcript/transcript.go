package transcript

import (
	"fmt"
	"html"
	"html/template"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/liminal/internal/pool"
	"github.com/BaSui01/liminal/types"
)

// DefaultPath 默认输出文件
const DefaultPath = "conversation_full.html"

// TimestampLayout 消息头里的时间格式
const TimestampLayout = "January 02, 2006 at 03:04 PM"

// Writer 把对话渲染为 HTML 并写入文件
type Writer struct {
	path   string
	logger *zap.Logger
	now    func() time.Time

	mu sync.Mutex // 串行化写文件
}

// Option 配置 Writer
type Option func(*Writer)

// WithClock 替换时间来源；消息没有时间戳时使用
func WithClock(now func() time.Time) Option {
	return func(w *Writer) { w.now = now }
}

// New 创建 Writer。path 为空时使用 DefaultPath。
func New(path string, logger *zap.Logger, opts ...Option) *Writer {
	if path == "" {
		path = DefaultPath
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Writer{
		path:   path,
		logger: logger.With(zap.String("component", "transcript")),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Path 返回输出文件路径
func (w *Writer) Path() string { return w.path }

type block struct {
	Class     string
	Header    string
	Timestamp string
	Body      template.HTML
	ImageSrc  template.URL
	ImageAlt  string
}

type page struct {
	Title  string
	Footer string
	Blocks []block
}

// Render 重新生成整份文档
func (w *Writer) Render(msgs []types.Message) error {
	buf := pool.Buffers.Get()
	defer pool.Buffers.Put(buf)

	if err := pageTemplate.Execute(buf, page{
		Title:  "Liminal Conversation",
		Footer: "Generated by Liminal Backrooms",
		Blocks: w.blocks(msgs),
	}); err != nil {
		return fmt.Errorf("render transcript: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := writeAtomic(w.path, buf.Bytes()); err != nil {
		return err
	}
	w.logger.Debug("transcript written", zap.String("path", w.path), zap.Int("messages", len(msgs)))
	return nil
}

func (w *Writer) blocks(msgs []types.Message) []block {
	out := make([]block, 0, len(msgs))
	for _, m := range msgs {
		if m.IsBranchIndicator() || m.Content.IsEmpty() {
			continue
		}
		ts := m.Timestamp
		if ts.IsZero() {
			ts = w.now()
		}
		b := block{
			Class:     string(m.Role),
			Timestamp: ts.Format(TimestampLayout),
			Body:      FormatBody(m.Content.PlainText()),
		}
		switch m.Role {
		case types.RoleAssistant:
			b.Header = m.AIName
			if m.Model != "" {
				b.Header += " (" + m.Model + ")"
			}
		case types.RoleUser:
			b.Header = "User"
		}
		b.ImageSrc, b.ImageAlt = imageOf(m)
		out = append(out, b)
	}
	return out
}

func imageOf(m types.Message) (template.URL, string) {
	for _, p := range m.Content.Images() {
		if p.Data == "" {
			continue
		}
		mediaType := p.MediaType
		if mediaType == "" {
			mediaType = "image/jpeg"
		}
		// base64 数据由 ContentPart 保证，只有 data: 前缀是拼接的
		return template.URL("data:" + mediaType + ";base64," + p.Data), "Uploaded image"
	}
	if m.GeneratedImagePath != "" {
		return template.URL(strings.ReplaceAll(m.GeneratedImagePath, `\`, "/")), "Generated image"
	}
	return "", ""
}

// FormatBody 转义文本并处理代码围栏与 greentext
func FormatBody(text string) template.HTML {
	var sb strings.Builder
	segments := strings.Split(text, "```")
	for i, seg := range segments {
		// 奇数段位于围栏内；未闭合的最后一段按普通文本处理
		if i%2 == 1 && i < len(segments)-1 {
			sb.WriteString("<pre><code>")
			sb.WriteString(html.EscapeString(stripFenceLanguage(seg)))
			sb.WriteString("</code></pre>")
			continue
		}
		if i%2 == 1 {
			sb.WriteString("```")
		}
		writeProse(&sb, seg)
	}
	return template.HTML(sb.String())
}

var fenceLanguage = regexp.MustCompile(`^[A-Za-z0-9_+#.-]*$`)

func stripFenceLanguage(seg string) string {
	first, rest, ok := strings.Cut(seg, "\n")
	if !ok {
		return seg
	}
	// 首行是语言标记（或为空）时去掉
	if fenceLanguage.MatchString(first) {
		return rest
	}
	return seg
}

func writeProse(sb *strings.Builder, seg string) {
	lines := strings.Split(seg, "\n")
	for i, line := range lines {
		if i > 0 {
			sb.WriteString("\n")
		}
		escaped := html.EscapeString(line)
		if strings.HasPrefix(strings.TrimSpace(line), ">") {
			sb.WriteString(`<p class="greentext">`)
			sb.WriteString(escaped)
			sb.WriteString("</p>")
			continue
		}
		sb.WriteString(escaped)
	}
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create transcript dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".transcript-*.html")
	if err != nil {
		return fmt.Errorf("create temp transcript: %w", err)
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return fmt.Errorf("write transcript: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return fmt.Errorf("close transcript: %w", err)
	}
	if err := os.Chmod(name, 0o644); err != nil {
		os.Remove(name)
		return fmt.Errorf("chmod transcript: %w", err)
	}
	if err := os.Rename(name, path); err != nil {
		os.Remove(name)
		return fmt.Errorf("replace transcript: %w", err)
	}
	return nil
}
