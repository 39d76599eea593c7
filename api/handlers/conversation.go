package handlers

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/liminal/agent/conversation"
	"github.com/BaSui01/liminal/agent/scheduler"
	"github.com/BaSui01/liminal/api"
	"github.com/BaSui01/liminal/types"
)

// Engine 是 HTTP 层需要的调度器能力；scheduler.Scheduler 实现该接口
type Engine interface {
	Submit(ctx context.Context, in types.UserInput) error
	Continue(ctx context.Context) error
	CreateBranch(ctx context.Context, kind conversation.BranchKind, anchor string) error
	ReturnToMain(ctx context.Context) error
	Status() scheduler.Status
	Tree() *conversation.Tree
}

// =============================================================================
// 💬 对话 Handler
// =============================================================================

// ConversationHandler 对话与分支处理器
type ConversationHandler struct {
	engine Engine
	logger *zap.Logger
}

// NewConversationHandler 创建对话处理器
func NewConversationHandler(engine Engine, logger *zap.Logger) *ConversationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConversationHandler{
		engine: engine,
		logger: logger.With(zap.String("handler", "conversation")),
	}
}

// HandleConversation 返回活动对话的可见消息
// @Summary 活动对话
// @Tags 对话
// @Produce json
// @Success 200 {object} Response{data=api.ConversationView}
// @Router /api/v1/conversation [get]
func (h *ConversationHandler) HandleConversation(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, h.logger, http.MethodGet) {
		return
	}
	view, err := h.view()
	if err != nil {
		WriteErr(w, err, h.logger)
		return
	}
	WriteSuccess(w, view)
}

func (h *ConversationHandler) view() (*api.ConversationView, error) {
	tree := h.engine.Tree()
	active := tree.Active()
	visible, err := tree.Visible(active)
	if err != nil {
		return nil, err
	}
	view := &api.ConversationView{
		BranchID: active,
		Messages: visible,
		Status:   h.engine.Status(),
	}
	if active != conversation.MainBranchID {
		bc, err := tree.Context(active)
		if err != nil {
			return nil, err
		}
		view.Branch = &bc
	}
	return view, nil
}

// HandleInput 提交用户输入。一轮进行中时输入排队，202 返回。
// @Summary 提交输入
// @Tags 对话
// @Accept json
// @Produce json
// @Param request body api.InputRequest true "输入"
// @Success 202 {object} Response{data=scheduler.Status}
// @Failure 400 {object} Response
// @Router /api/v1/conversation/input [post]
func (h *ConversationHandler) HandleInput(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, h.logger, http.MethodPost) {
		return
	}
	var req api.InputRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	in, err := types.ParseUserInput(req.Input)
	if err != nil {
		WriteErr(w, err, h.logger)
		return
	}
	if err := h.engine.Submit(r.Context(), in); err != nil {
		WriteErr(w, err, h.logger)
		return
	}
	WriteAccepted(w, h.engine.Status())
}

// HandleContinue 无输入再跑一轮
// @Summary 续轮
// @Tags 对话
// @Produce json
// @Success 202 {object} Response{data=scheduler.Status}
// @Router /api/v1/conversation/continue [post]
func (h *ConversationHandler) HandleContinue(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, h.logger, http.MethodPost) {
		return
	}
	if err := h.engine.Continue(r.Context()); err != nil {
		WriteErr(w, err, h.logger)
		return
	}
	WriteAccepted(w, h.engine.Status())
}

// HandleBranches GET 列出分支，POST 创建分支
// @Summary 分支
// @Tags 分支
// @Accept json
// @Produce json
// @Param request body api.BranchRequest false "创建分支"
// @Success 200 {object} Response{data=api.BranchList}
// @Success 202 {object} Response{data=scheduler.Status}
// @Router /api/v1/branches [get]
// @Router /api/v1/branches [post]
func (h *ConversationHandler) HandleBranches(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, h.logger, http.MethodGet, http.MethodPost) {
		return
	}
	if r.Method == http.MethodGet {
		tree := h.engine.Tree()
		WriteSuccess(w, api.BranchList{Active: tree.Active(), Branches: tree.Branches()})
		return
	}

	var req api.BranchRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	kind := conversation.BranchKind(strings.ToLower(strings.TrimSpace(req.Kind)))
	if err := h.engine.CreateBranch(r.Context(), kind, req.AnchorText); err != nil {
		WriteErr(w, err, h.logger)
		return
	}
	h.logger.Info("branch requested", zap.String("type", string(kind)))
	WriteAccepted(w, h.engine.Status())
}

// HandleReturnMain 切回主线
// @Summary 回到主线
// @Tags 分支
// @Produce json
// @Success 200 {object} Response{data=scheduler.Status}
// @Router /api/v1/branches/main [post]
func (h *ConversationHandler) HandleReturnMain(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, h.logger, http.MethodPost) {
		return
	}
	if err := h.engine.ReturnToMain(r.Context()); err != nil {
		WriteErr(w, err, h.logger)
		return
	}
	WriteSuccess(w, h.engine.Status())
}
