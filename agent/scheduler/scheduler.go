package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/liminal/agent/conversation"
	"github.com/BaSui01/liminal/internal/metrics"
	"github.com/BaSui01/liminal/internal/pool"
	"github.com/BaSui01/liminal/llm"
	"github.com/BaSui01/liminal/llm/image"
	"github.com/BaSui01/liminal/llm/tokenizer"
	"github.com/BaSui01/liminal/llm/video"
	"github.com/BaSui01/liminal/types"
)

// State 调度器状态
type State string

const (
	StateIdle            State = "idle"
	StateRoundInProgress State = "round_in_progress"
	StateRoundComplete   State = "round_complete"
)

// 一轮的触发来源，用作指标标签
const (
	TriggerInput    = "input"
	TriggerContinue = "continue"
	TriggerBranch   = "branch"
	TriggerAuto     = "auto"
)

// Caller 执行一次发言；router.Router 实现该接口
type Caller interface {
	Call(ctx context.Context, p llm.Participant, req *llm.ChatRequest, onChunk func(string)) (*llm.Result, error)
}

// ImageMaker 根据回复文本生成配图；image.Generator 实现该接口
type ImageMaker interface {
	FromResponse(ctx context.Context, text string) image.Result
}

// Transcript 在每次变更后重新生成对话记录
type Transcript interface {
	Render(msgs []types.Message) error
}

// MediaOptions 自动配图与自动视频
type MediaOptions struct {
	AutoImage       bool
	SoraAutoFromAI1 bool
	SoraModel       string
	SoraSeconds     int
	SoraSize        string
}

// Config 调度器依赖
type Config struct {
	Tree        *conversation.Tree
	Caller      Caller
	Settings    SettingsSource
	Pool        *pool.Pool
	// EffectsPool 运行配图与视频任务，必须与 Pool 不同；为空时创建一个小的独立 pool
	EffectsPool *pool.Pool
	Display     Display
	Transcript  Transcript
	Images      ImageMaker
	Videos      video.Generator
	Media       MediaOptions
	Metrics     *metrics.Collector
}

// Status 调度器状态快照
type Status struct {
	State          State  `json:"state"`
	TurnCount      int    `json:"turn_count"`
	MaxIterations  int    `json:"max_iterations"`
	ActiveBranch   string `json:"active_branch"`
	RoundBranch    string `json:"round_branch,omitempty"`
	CurrentSpeaker string `json:"current_participant,omitempty"`
	Queued         int    `json:"queued_commands"`
	Rounds         int    `json:"rounds_completed"`
}

type commandKind int

const (
	cmdInput commandKind = iota
	cmdContinue
	cmdBranch
	cmdReturnMain
)

func (k commandKind) String() string {
	switch k {
	case cmdInput:
		return "input"
	case cmdContinue:
		return "continue"
	case cmdBranch:
		return "branch"
	case cmdReturnMain:
		return "return_to_main"
	}
	return "unknown"
}

type command struct {
	kind       commandKind
	input      *types.Message
	branchKind conversation.BranchKind
	anchor     string
	reply      chan error
}

// round 是进行中的一轮。目标分支在一轮内固定。
type round struct {
	branch   string
	kind     conversation.BranchKind
	trigger  string
	tasks    []llm.Participant
	next     int
	task     *turnTask
	timer    *time.Timer
	settings Settings
}

// Scheduler 按顺序调度每一轮的发言。
//
// 只有 Run 所在的协程修改对话树；发言在 worker pool 上执行，
// 通过每个任务自己的分片通道与完成通道把结果送回循环。
type Scheduler struct {
	tree       *conversation.Tree
	caller     Caller
	settings   SettingsSource
	pool       *pool.Pool
	effectPool *pool.Pool
	ownedPools []*pool.Pool
	display    Display
	transcript Transcript
	images     ImageMaker
	videos     video.Generator
	media      MediaOptions
	metrics    *metrics.Collector
	logger     *zap.Logger

	cmds    chan command
	effects chan func()
	stopped chan struct{}
	running sync.Once

	// 以下字段只由循环协程访问
	round     *round
	queue     []command
	buffers   map[string]*strings.Builder
	turnCount int
	rounds    int

	statusMu sync.RWMutex
	status   Status
	idle     chan struct{}
}

// New 创建调度器。Pool 或 EffectsPool 为空时创建并持有默认 pool。
func New(cfg Config, logger *zap.Logger) (*Scheduler, error) {
	if cfg.Tree == nil || cfg.Caller == nil || cfg.Settings == nil {
		return nil, types.NewError(types.ErrInvalidConfig, "scheduler requires a tree, a caller and a settings source")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "scheduler"))

	s := &Scheduler{
		tree:       cfg.Tree,
		caller:     cfg.Caller,
		settings:   cfg.Settings,
		pool:       cfg.Pool,
		display:    cfg.Display,
		transcript: cfg.Transcript,
		images:     cfg.Images,
		videos:     cfg.Videos,
		media:      cfg.Media,
		metrics:    cfg.Metrics,
		logger:     logger,
		cmds:       make(chan command),
		effects:    make(chan func(), 16),
		stopped:    make(chan struct{}),
		buffers:    make(map[string]*strings.Builder),
		idle:       make(chan struct{}),
	}
	if s.display == nil {
		s.display = NopDisplay{}
	}
	if s.media.SoraModel == "" {
		s.media.SoraModel = "sora-2"
	}
	if s.pool == nil {
		s.pool = pool.New(pool.DefaultConfig(), logger)
		s.ownedPools = append(s.ownedPools, s.pool)
	}
	s.effectPool = cfg.EffectsPool
	if s.effectPool == s.pool {
		return nil, types.NewError(types.ErrInvalidConfig, "side effects cannot share the turn pool")
	}
	if s.effectPool == nil {
		s.effectPool = pool.New(pool.EffectsConfig(), logger)
		s.ownedPools = append(s.ownedPools, s.effectPool)
	}
	close(s.idle)
	s.status = Status{State: StateIdle, ActiveBranch: s.tree.Active()}
	return s, nil
}

// =============================================================================
// 命令入口（任意协程可调用）
// =============================================================================

// Submit 提交用户输入。有活动分支时写入分支，否则写入主线。
func (s *Scheduler) Submit(ctx context.Context, in types.UserInput) error {
	msg := in.Message()
	if msg.Content.IsEmpty() {
		return types.NewError(types.ErrEmptyContent, "input has no content")
	}
	return s.send(ctx, command{kind: cmdInput, input: &msg})
}

// Continue 在没有新输入的情况下再跑一轮
func (s *Scheduler) Continue(ctx context.Context) error {
	return s.send(ctx, command{kind: cmdContinue})
}

// CreateBranch 从活动对话创建分支并立即开始分支的一轮
func (s *Scheduler) CreateBranch(ctx context.Context, kind conversation.BranchKind, anchor string) error {
	if !kind.Valid() {
		return types.NewError(types.ErrMalformedInput, fmt.Sprintf("unknown branch type %q", kind))
	}
	if strings.TrimSpace(anchor) == "" {
		return types.NewError(types.ErrMalformedInput, "anchor text is required")
	}
	return s.send(ctx, command{kind: cmdBranch, branchKind: kind, anchor: anchor})
}

// ReturnToMain 切回主线
func (s *Scheduler) ReturnToMain(ctx context.Context) error {
	return s.send(ctx, command{kind: cmdReturnMain})
}

func (s *Scheduler) send(ctx context.Context, cmd command) error {
	cmd.reply = make(chan error, 1)
	select {
	case s.cmds <- cmd:
	case <-s.stopped:
		return types.NewError(types.ErrShuttingDown, "scheduler stopped")
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-s.stopped:
		return types.NewError(types.ErrShuttingDown, "scheduler stopped")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status 返回当前状态
func (s *Scheduler) Status() Status {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	return s.status
}

// Wait 阻塞直到调度器空闲（没有进行中的轮次也没有排队命令）
func (s *Scheduler) Wait(ctx context.Context) error {
	s.statusMu.RLock()
	idle := s.idle
	s.statusMu.RUnlock()

	select {
	case <-idle:
		return nil
	case <-s.stopped:
		return types.NewError(types.ErrShuttingDown, "scheduler stopped")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Tree 返回调度器使用的对话树（只读访问）
func (s *Scheduler) Tree() *conversation.Tree {
	return s.tree
}

// =============================================================================
// 调度循环
// =============================================================================

// Run 运行调度循环，直到 ctx 结束。只能调用一次。
func (s *Scheduler) Run(ctx context.Context) error {
	started := false
	s.running.Do(func() { started = true })
	if !started {
		return types.NewError(types.ErrInternalError, "scheduler already running")
	}
	defer s.shutdown()

	s.logger.Info("scheduler started")
	for {
		var (
			chunks <-chan string
			done   <-chan outcome
			delay  <-chan time.Time
		)
		if r := s.round; r != nil {
			if r.task != nil {
				chunks = r.task.chunks
				done = r.task.done
			}
			if r.timer != nil {
				delay = r.timer.C
			}
		}

		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopping")
			return nil
		case cmd := <-s.cmds:
			cmd.reply <- s.accept(ctx, cmd)
		case fn := <-s.effects:
			fn()
		case chunk := <-chunks:
			s.onChunk(chunk)
		case out := <-done:
			s.onOutcome(ctx, out)
		case <-delay:
			s.round.timer = nil
			s.dispatch(ctx)
		}
	}
}

func (s *Scheduler) shutdown() {
	close(s.stopped)
	if s.round != nil && s.round.timer != nil {
		s.round.timer.Stop()
	}
	if len(s.ownedPools) > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		for _, p := range s.ownedPools {
			if err := p.Close(ctx); err != nil {
				s.logger.Warn("pool close timed out", zap.Error(err))
			}
		}
	}
}

// accept 在一轮进行中时把命令排队，否则立即执行
func (s *Scheduler) accept(ctx context.Context, cmd command) error {
	if s.round != nil {
		s.queue = append(s.queue, cmd)
		s.logger.Debug("command queued", zap.String("command", cmd.kind.String()), zap.Int("queued", len(s.queue)))
		if s.metrics != nil {
			s.metrics.SetQueuedCommands(len(s.queue))
		}
		s.publishStatus()
		return nil
	}
	err := s.execute(ctx, cmd)
	if s.round == nil {
		s.publishStatus()
	}
	return err
}

func (s *Scheduler) execute(ctx context.Context, cmd command) error {
	switch cmd.kind {
	case cmdInput:
		return s.startRound(ctx, s.tree.Active(), cmd.input, TriggerInput)

	case cmdContinue:
		return s.startRound(ctx, s.tree.Active(), nil, TriggerContinue)

	case cmdBranch:
		id, err := s.tree.CreateBranch(s.tree.Active(), cmd.branchKind, cmd.anchor)
		if err != nil {
			return err
		}
		s.logger.Info("branch created",
			zap.String("branch", id),
			zap.String("type", string(cmd.branchKind)),
			zap.String("anchor", cmd.anchor))

		var first types.Message
		if cmd.branchKind == conversation.KindRabbithole {
			first = types.NewUserMessage(cmd.anchor)
		} else {
			first = types.NewUserMessage("...").WithHidden(true)
		}
		return s.startRound(ctx, id, &first, TriggerBranch)

	case cmdReturnMain:
		s.tree.ReturnToMain()
		s.render(conversation.MainBranchID)
		return nil
	}
	return types.NewError(types.ErrInternalError, "unknown command")
}

// startRound 开始一轮：去掉重复尾消息、按需重置计数、追加输入、建立任务列表并派发第一个任务
func (s *Scheduler) startRound(ctx context.Context, branch string, input *types.Message, trigger string) error {
	s.tree.DropDuplicateTail(branch)

	msgs, err := s.tree.Snapshot(branch)
	if err != nil {
		return err
	}
	// 只有新输入或空对话重置计数；自动续轮从不重置
	if input != nil || (trigger != TriggerAuto && len(msgs) == 0) {
		s.turnCount = 0
	}
	if input != nil {
		if err := s.tree.Append(branch, *input); err != nil {
			return err
		}
	}

	settings := s.settings.Settings()
	tasks := settings.ForRound(branch == conversation.MainBranchID)
	if len(tasks) == 0 {
		s.render(branch)
		return types.NewError(types.ErrInvalidConfig, "no participants configured")
	}
	bc, err := s.tree.Context(branch)
	if err != nil {
		return err
	}

	s.round = &round{
		branch:   branch,
		kind:     bc.Kind,
		trigger:  trigger,
		tasks:    tasks,
		settings: settings,
	}
	s.logger.Info("round started",
		zap.String("branch", branch),
		zap.String("trigger", trigger),
		zap.Int("participants", len(tasks)),
		zap.Int("turn", s.turnCount+1),
		zap.Int("max_iterations", settings.MaxIterations))

	s.render(branch)
	s.display.StartLoading()
	s.dispatch(ctx)
	return nil
}

// dispatch 派发下一个参与者。请求基于派发前一刻的对话快照构建。
func (s *Scheduler) dispatch(ctx context.Context) {
	r := s.round
	index := r.next
	p := r.tasks[index]
	r.next++

	task := newTurnTask(index, p)
	r.task = task
	s.publishStatus()
	if s.metrics != nil {
		s.metrics.TurnStarted()
	}

	msgs, err := s.tree.Snapshot(r.branch)
	if err != nil {
		task.finish(outcome{err: err})
		return
	}
	bc, err := s.tree.Context(r.branch)
	if err != nil {
		task.finish(outcome{err: err})
		return
	}
	req := conversation.Normalize(p, msgs, conversation.ResolveSystemPrompt(p.SystemPrompt, bc))
	req.MaxTokens = r.settings.MaxTokens
	req.Temperature = r.settings.Temperature
	req.Timeout = r.settings.TurnTimeout

	s.logger.Debug("dispatching participant",
		zap.String("participant", p.Name),
		zap.String("model", p.ModelID),
		zap.String("branch", r.branch),
		zap.Bool("prompt_overridden", conversation.Overridden(bc)),
		zap.Int("turns", len(req.Messages)))

	taskCtx := types.WithParticipant(types.WithBranchID(ctx, r.branch), p.Name)
	err = s.pool.Submit(taskCtx, "turn:"+p.Name, func(ctx context.Context) (err error) {
		defer func() {
			if v := recover(); v != nil {
				task.finish(outcome{err: types.NewError(types.ErrInternalError, fmt.Sprintf("turn panicked: %v", v))})
				err = &pool.PanicError{Task: "turn:" + p.Name, Value: v}
			}
		}()
		// 编码表可能需要下载，估算放在 worker 上
		if s.metrics != nil {
			s.metrics.RecordPromptTokens(p.ModelID, tokenizer.EstimateRequest(tokenizer.ForModel(p.ModelID), req))
		}
		res, callErr := s.caller.Call(ctx, p, req, task.emit(ctx))
		task.finish(outcome{result: res, err: callErr})
		return callErr
	})
	if err != nil {
		task.finish(outcome{err: err})
	}
}

func (s *Scheduler) onChunk(chunk string) {
	task := s.round.task
	p := task.participant

	buf, ok := s.buffers[p.Name]
	if !ok {
		buf = &strings.Builder{}
		s.buffers[p.Name] = buf
		task.streamed = true
		s.display.AppendText(header(p), StyleHeader)
		if s.metrics != nil {
			s.metrics.RecordFirstChunk(p.Name, p.ModelID, time.Since(task.started))
		}
	}
	buf.WriteString(chunk)
	s.display.AppendText(chunk, StyleAI)
	if s.metrics != nil {
		s.metrics.RecordChunk(p.Name)
	}
}

func header(p llm.Participant) string {
	return fmt.Sprintf("\n%s (%s):\n\n", p.Name, p.ModelDisplay)
}

// onOutcome 处理一个参与者的完成通知，然后推进到下一个参与者或结束本轮
func (s *Scheduler) onOutcome(ctx context.Context, out outcome) {
	r := s.round
	task := r.task
	p := task.participant
	r.task = nil
	delete(s.buffers, p.Name)
	elapsed := time.Since(task.started)

	status := "ok"
	if out.err == nil && out.result == nil {
		out.err = types.NewError(types.ErrInternalError, "turn returned no result")
	}
	if out.err != nil {
		status = "error"
		text := "Error: " + out.err.Error()
		if err := s.tree.Append(r.branch, types.NewSystemMessage(text)); err != nil {
			s.logger.Error("failed to append error message", zap.Error(err))
		}
		s.display.AppendText("\n"+text+"\n", StyleSystem)
		s.logger.Warn("turn failed",
			zap.String("participant", p.Name),
			zap.String("branch", r.branch),
			zap.Duration("elapsed", elapsed),
			zap.Error(out.err))
	} else {
		res := out.result
		if res.Fallback {
			status = "fallback"
		}
		var msg types.Message
		if res.Role == types.RoleSystem {
			msg = types.NewSystemMessage(res.Content)
			s.display.AppendText("\n"+res.Content+"\n", StyleSystem)
		} else {
			msg = types.NewAssistantMessage(res.Content, p.Name, p.ModelDisplay)
			if !task.streamed {
				s.display.AppendText(header(p), StyleHeader)
				s.display.AppendText(res.Content, StyleAI)
			}
		}
		if err := s.tree.AppendContinuation(r.branch, msg); err != nil {
			s.logger.Warn("response not appended", zap.String("participant", p.Name), zap.Error(err))
		}
		s.logger.Info("turn completed",
			zap.String("participant", p.Name),
			zap.String("backend", res.Backend),
			zap.String("branch", r.branch),
			zap.Duration("elapsed", elapsed),
			zap.Int("chars", len(res.Content)))
		if msg.Role == types.RoleAssistant {
			s.startSideEffects(ctx, r.branch, p, res.Content)
		}
	}
	if s.metrics != nil {
		s.metrics.RecordTurn(p.Name, p.ModelID, status, elapsed)
	}
	s.render(r.branch)

	if r.next < len(r.tasks) {
		if d := r.settings.TurnDelay; d > 0 {
			r.timer = time.NewTimer(d)
			s.publishStatus()
			return
		}
		s.dispatch(ctx)
		return
	}
	s.closeRound(ctx)
}

// closeRound 结束本轮：计数加一，先执行排队命令，否则在预算内自动续轮
func (s *Scheduler) closeRound(ctx context.Context) {
	r := s.round
	s.round = nil
	s.turnCount++
	s.rounds++
	s.display.StopLoading()
	if s.metrics != nil {
		s.metrics.RecordRound(string(r.kind), r.trigger)
	}
	s.setState(StateRoundComplete)

	maxIterations := s.settings.Settings().MaxIterations
	s.logger.Info("round completed",
		zap.String("branch", r.branch),
		zap.Int("turn", s.turnCount),
		zap.Int("max_iterations", maxIterations))

	if len(s.queue) > 0 {
		s.drainQueue(ctx)
		return
	}
	if s.turnCount < maxIterations {
		if err := s.startRound(ctx, r.branch, nil, TriggerAuto); err != nil {
			s.logger.Error("auto-continuation failed", zap.Error(err))
			s.display.AppendText("\nError: "+err.Error()+"\n", StyleSystem)
			s.publishStatus()
		}
		return
	}
	s.publishStatus()
}

// drainQueue 依次执行排队命令，直到某个命令开始新的一轮
func (s *Scheduler) drainQueue(ctx context.Context) {
	for len(s.queue) > 0 && s.round == nil {
		cmd := s.queue[0]
		s.queue = s.queue[1:]
		if err := s.execute(ctx, cmd); err != nil {
			s.logger.Warn("queued command failed", zap.String("command", cmd.kind.String()), zap.Error(err))
			s.display.AppendText("\nError: "+err.Error()+"\n", StyleSystem)
		}
	}
	if s.metrics != nil {
		s.metrics.SetQueuedCommands(len(s.queue))
	}
	s.publishStatus()
}

// render 重新生成对话记录并刷新展示；只处理当前显示的对话
func (s *Scheduler) render(branch string) {
	if branch != s.tree.Active() {
		return
	}
	msgs, err := s.tree.Snapshot(branch)
	if err != nil {
		s.logger.Warn("render skipped", zap.String("branch", branch), zap.Error(err))
		return
	}
	if s.transcript != nil {
		if err := s.transcript.Render(msgs); err != nil {
			s.logger.Warn("transcript not written", zap.Error(err))
		}
	}

	visible := make([]types.Message, 0, len(msgs))
	for _, m := range msgs {
		if !m.Hidden {
			visible = append(visible, m)
		}
	}
	var bc *conversation.BranchContext
	if branch != conversation.MainBranchID {
		if c, err := s.tree.Context(branch); err == nil {
			bc = &c
		}
	}
	s.display.DisplayConversation(visible, bc)
}

// =============================================================================
// 状态发布
// =============================================================================

func (s *Scheduler) setState(state State) {
	s.statusMu.Lock()
	s.status.State = state
	s.statusMu.Unlock()
}

// publishStatus 把循环内状态同步到可并发读取的快照
func (s *Scheduler) publishStatus() {
	st := Status{
		State:        StateIdle,
		TurnCount:    s.turnCount,
		ActiveBranch: s.tree.Active(),
		Queued:       len(s.queue),
		Rounds:       s.rounds,
	}
	if r := s.round; r != nil {
		st.State = StateRoundInProgress
		st.RoundBranch = r.branch
		st.MaxIterations = r.settings.MaxIterations
		if r.task != nil {
			st.CurrentSpeaker = r.task.participant.Name
		}
	} else {
		st.MaxIterations = s.settings.Settings().MaxIterations
	}

	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	s.status = st
	busy := st.State != StateIdle || st.Queued > 0
	select {
	case <-s.idle:
		if busy {
			s.idle = make(chan struct{})
		}
	default:
		if !busy {
			close(s.idle)
		}
	}
}
