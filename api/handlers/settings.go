package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/BaSui01/liminal/agent/scheduler"
	"github.com/BaSui01/liminal/api"
	"github.com/BaSui01/liminal/types"
)

// SettingsStore 运行时设置；scheduler.Roster 实现该接口
type SettingsStore interface {
	View() scheduler.RosterView
	Update(u scheduler.RosterUpdate) error
}

// SettingsHandler 设置处理器
type SettingsHandler struct {
	store  SettingsStore
	logger *zap.Logger
}

// NewSettingsHandler 创建设置处理器
func NewSettingsHandler(store SettingsStore, logger *zap.Logger) *SettingsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettingsHandler{store: store, logger: logger.With(zap.String("handler", "settings"))}
}

// HandleSettings GET 返回当前设置，PUT 修改设置。修改在下一轮生效。
// @Summary 运行时设置
// @Tags 设置
// @Accept json
// @Produce json
// @Param request body api.SettingsRequest false "变更"
// @Success 200 {object} Response{data=scheduler.RosterView}
// @Failure 400 {object} Response
// @Router /api/v1/settings [get]
// @Router /api/v1/settings [put]
func (h *SettingsHandler) HandleSettings(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, h.logger, http.MethodGet, http.MethodPut) {
		return
	}
	if r.Method == http.MethodGet {
		WriteSuccess(w, h.store.View())
		return
	}

	var req api.SettingsRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	err := h.store.Update(scheduler.RosterUpdate{
		NumAIs:        req.NumAIs,
		MaxIterations: req.MaxIterations,
		PromptPair:    req.PromptPair,
		TurnDelay:     req.TurnDelayDuration(),
		Participants:  req.Participants,
	})
	if err != nil {
		if _, ok := types.AsError(err); !ok {
			err = types.NewError(types.ErrInvalidConfig, err.Error())
		}
		WriteErr(w, err, h.logger)
		return
	}
	view := h.store.View()
	h.logger.Info("settings updated",
		zap.Int("num_ais", view.NumAIs),
		zap.Int("max_iterations", view.MaxIterations),
		zap.String("prompt_pair", view.PromptPair))
	WriteSuccess(w, view)
}
