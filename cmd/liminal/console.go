package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/BaSui01/liminal/agent/conversation"
	"github.com/BaSui01/liminal/agent/scheduler"
	"github.com/BaSui01/liminal/types"
)

// consoleEngine 是控制台需要的调度器能力
type consoleEngine interface {
	Submit(ctx context.Context, in types.UserInput) error
	Continue(ctx context.Context) error
	CreateBranch(ctx context.Context, kind conversation.BranchKind, anchor string) error
	ReturnToMain(ctx context.Context) error
	Wait(ctx context.Context) error
}

type lineKind int

const (
	lineSkip lineKind = iota
	lineInput
	lineBranch
	lineMain
	lineContinue
	lineQuit
	lineHelp
)

type consoleLine struct {
	kind   lineKind
	text   string
	branch conversation.BranchKind
}

var errUnknownCommand = errors.New("unknown command, type /help")

// parseLine 解析一行控制台输入。以 / 开头的是命令，其余都是发给参与者的文本。
func parseLine(line string) (consoleLine, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return consoleLine{kind: lineSkip}, nil
	}
	if !strings.HasPrefix(line, "/") {
		return consoleLine{kind: lineInput, text: line}, nil
	}

	name, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	switch strings.ToLower(name) {
	case "/rabbithole", "/fork":
		kind := conversation.BranchKind(strings.TrimPrefix(strings.ToLower(name), "/"))
		if rest == "" {
			return consoleLine{}, fmt.Errorf("usage: %s <text>", name)
		}
		return consoleLine{kind: lineBranch, text: rest, branch: kind}, nil
	case "/main":
		return consoleLine{kind: lineMain}, nil
	case "/continue":
		return consoleLine{kind: lineContinue}, nil
	case "/quit", "/exit":
		return consoleLine{kind: lineQuit}, nil
	case "/help":
		return consoleLine{kind: lineHelp}, nil
	}
	return consoleLine{}, errUnknownCommand
}

// Console 从文本流读取输入并驱动调度器
type Console struct {
	engine consoleEngine
	in     io.Reader
	out    io.Writer
	logger *zap.Logger
}

// NewConsole 创建控制台会话
func NewConsole(engine consoleEngine, in io.Reader, out io.Writer, logger *zap.Logger) *Console {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Console{
		engine: engine,
		in:     in,
		out:    out,
		logger: logger.With(zap.String("component", "console")),
	}
}

// Run 逐行处理输入。输入结束后等待进行中的轮次完成再返回。
func (c *Console) Run(ctx context.Context) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.in)
		scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					if err != nil {
						return fmt.Errorf("read input: %w", err)
					}
				default:
				}
				return c.drain(ctx)
			}
			quit, err := c.handle(ctx, line)
			if err != nil {
				fmt.Fprintf(c.out, "\n[error] %v\n", err)
			}
			if quit {
				return nil
			}
		}
	}
}

func (c *Console) drain(ctx context.Context) error {
	err := c.engine.Wait(ctx)
	if err == nil || errors.Is(err, context.Canceled) || types.IsCode(err, types.ErrShuttingDown) {
		return nil
	}
	return err
}

func (c *Console) handle(ctx context.Context, raw string) (bool, error) {
	line, err := parseLine(raw)
	if err != nil {
		return false, err
	}
	switch line.kind {
	case lineInput:
		return false, c.engine.Submit(ctx, types.UserInput{Text: line.text})
	case lineBranch:
		c.logger.Debug("branch command", zap.String("type", string(line.branch)))
		return false, c.engine.CreateBranch(ctx, line.branch, line.text)
	case lineMain:
		if err := c.engine.ReturnToMain(ctx); err != nil {
			return false, err
		}
		fmt.Fprintln(c.out, "\n[returned to main conversation]")
		return false, nil
	case lineContinue:
		return false, c.engine.Continue(ctx)
	case lineQuit:
		return true, nil
	case lineHelp:
		fmt.Fprintln(c.out, consoleHelp)
	}
	return false, nil
}

const consoleHelp = `Commands:
  /rabbithole <text>  explore <text> in a rabbithole branch
  /fork <text>        fork the conversation at <text>
  /main               return to the main conversation
  /continue           run another round without input
  /quit               end the session
Anything else is sent to the participants.`

// ConsoleDisplay 把流式文本写到终端；整段重绘在终端里没有意义，忽略
type ConsoleDisplay struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsoleDisplay 创建终端展示
func NewConsoleDisplay(out io.Writer) *ConsoleDisplay {
	return &ConsoleDisplay{out: out}
}

func (d *ConsoleDisplay) DisplayConversation([]types.Message, *conversation.BranchContext) {}

func (d *ConsoleDisplay) AppendText(text string, _ scheduler.Style) {
	d.mu.Lock()
	defer d.mu.Unlock()
	io.WriteString(d.out, text)
}

func (d *ConsoleDisplay) StartLoading() {}

func (d *ConsoleDisplay) StopLoading() {}
