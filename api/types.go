package api

import (
	"encoding/json"
	"time"

	"github.com/BaSui01/liminal/agent/conversation"
	"github.com/BaSui01/liminal/agent/scheduler"
	"github.com/BaSui01/liminal/types"
)

// =============================================================================
// 对话类型
// =============================================================================

// InputRequest 用户输入请求。
// @Description input 可以是字符串，也可以是 {text, image} 对象
type InputRequest struct {
	Input json.RawMessage `json:"input" binding:"required"`
}

// BranchRequest 创建分支请求。
// @Description 从活动对话创建 rabbithole 或 fork
type BranchRequest struct {
	// 分支类型：rabbithole 或 fork
	Kind string `json:"kind" example:"rabbithole" binding:"required"`
	// 锚点文本
	AnchorText string `json:"anchor_text" example:"liminal spaces" binding:"required"`
}

// ConversationView 活动对话的可见视图
type ConversationView struct {
	// 当前显示的分支 ID
	BranchID string `json:"branch_id" example:"main"`
	// 可见消息（不含 hidden）
	Messages []types.Message `json:"messages"`
	// 分支上下文；主线为空
	Branch *conversation.BranchContext `json:"branch,omitempty"`
	// 调度器状态
	Status scheduler.Status `json:"status"`
}

// BranchList 分支列表
type BranchList struct {
	Active   string                 `json:"active"`
	Branches []conversation.Summary `json:"branches"`
}

// =============================================================================
// 设置类型
// =============================================================================

// SettingsRequest 运行时设置变更；省略的字段保持不变
type SettingsRequest struct {
	NumAIs        *int     `json:"num_ais,omitempty" example:"3"`
	MaxIterations *int     `json:"max_iterations,omitempty" example:"2"`
	PromptPair    *string  `json:"prompt_pair,omitempty" example:"backrooms"`
	TurnDelay     *float64 `json:"turn_delay_seconds,omitempty" example:"2"`
	Participants  []string `json:"participants,omitempty"`
}

// TurnDelayDuration 把秒数转换为时长
func (r SettingsRequest) TurnDelayDuration() *time.Duration {
	if r.TurnDelay == nil {
		return nil
	}
	d := time.Duration(*r.TurnDelay * float64(time.Second))
	return &d
}
