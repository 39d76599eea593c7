package scheduler

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/BaSui01/liminal/config"
	"github.com/BaSui01/liminal/llm"
)

// BranchParticipants 分支轮次固定的参与者数量
const BranchParticipants = 3

// Settings 是一轮开始时读取的参与者与预算，调度器只读取不修改
type Settings struct {
	// Participants 按槽位排列的全部参与者（AI-1..AI-n）
	Participants  []llm.Participant
	NumAIs        int
	MaxIterations int
	TurnDelay     time.Duration
	TurnTimeout   time.Duration
	MaxTokens     int
	Temperature   float32
}

// ForRound 返回一轮要调度的参与者：主线取前 NumAIs 个，分支固定取前 3 个
func (s Settings) ForRound(main bool) []llm.Participant {
	n := BranchParticipants
	if main {
		n = s.NumAIs
	}
	if n > len(s.Participants) {
		n = len(s.Participants)
	}
	if n < 0 {
		n = 0
	}
	out := make([]llm.Participant, n)
	copy(out, s.Participants[:n])
	return out
}

// SettingsSource 按轮次提供配置
type SettingsSource interface {
	Settings() Settings
}

// StaticSettings 固定不变的配置
type StaticSettings Settings

// Settings 实现 SettingsSource
func (s StaticSettings) Settings() Settings { return Settings(s) }

// RosterUpdate 描述一次运行时设置变更；nil 字段保持不变
type RosterUpdate struct {
	NumAIs        *int           `json:"num_ais,omitempty"`
	MaxIterations *int           `json:"max_iterations,omitempty"`
	PromptPair    *string        `json:"prompt_pair,omitempty"`
	TurnDelay     *time.Duration `json:"turn_delay,omitempty"`
	Participants  []string       `json:"participants,omitempty"`
}

// RosterView 是设置的只读视图
type RosterView struct {
	NumAIs        int           `json:"num_ais"`
	MaxIterations int           `json:"max_iterations"`
	PromptPair    string        `json:"prompt_pair"`
	PromptPairs   []string      `json:"prompt_pairs"`
	TurnDelay     time.Duration `json:"turn_delay"`
	Participants  []string      `json:"participants"`
	Models        []string      `json:"models"`
}

// Roster 是基于配置的 SettingsSource，支持运行时修改参与者与预算
type Roster struct {
	mu  sync.RWMutex
	cfg config.Config
}

// NewRoster 从配置创建 Roster
func NewRoster(cfg *config.Config) *Roster {
	c := *cfg
	c.Participants = append([]string(nil), cfg.Participants...)
	return &Roster{cfg: c}
}

// Settings 实现 SettingsSource
func (r *Roster) Settings() Settings {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conv := r.cfg.Conversation
	ps := make([]llm.Participant, 0, len(r.cfg.Participants))
	for i, display := range r.cfg.Participants {
		name := fmt.Sprintf("AI-%d", i+1)
		ps = append(ps, llm.Participant{
			Name:         name,
			ModelDisplay: display,
			ModelID:      r.cfg.ModelID(display),
			SystemPrompt: r.cfg.PromptFor("", name),
		})
	}
	return Settings{
		Participants:  ps,
		NumAIs:        conv.NumAIs,
		MaxIterations: conv.MaxIterations,
		TurnDelay:     conv.TurnDelay,
		TurnTimeout:   conv.TurnTimeout,
		MaxTokens:     conv.MaxTokens,
		Temperature:   float32(conv.Temperature),
	}
}

// Update 校验并应用一次设置变更；校验失败时不做任何修改
func (r *Roster) Update(u RosterUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := r.cfg
	next.Participants = append([]string(nil), r.cfg.Participants...)
	if u.NumAIs != nil {
		next.Conversation.NumAIs = *u.NumAIs
	}
	if u.MaxIterations != nil {
		next.Conversation.MaxIterations = *u.MaxIterations
	}
	if u.PromptPair != nil {
		next.Conversation.PromptPair = *u.PromptPair
	}
	if u.TurnDelay != nil {
		next.Conversation.TurnDelay = *u.TurnDelay
	}
	if len(u.Participants) > 0 {
		if len(u.Participants) > config.MaxParticipants {
			return fmt.Errorf("at most %d participants", config.MaxParticipants)
		}
		// 只替换给出的槽位
		for i, display := range u.Participants {
			if i < len(next.Participants) {
				next.Participants[i] = display
			} else {
				next.Participants = append(next.Participants, display)
			}
		}
	}
	if err := next.Validate(); err != nil {
		return err
	}
	r.cfg = next
	return nil
}

// View 返回当前设置
func (r *Roster) View() RosterView {
	r.mu.RLock()
	defer r.mu.RUnlock()

	models := make([]string, 0, len(r.cfg.Models))
	for display := range r.cfg.Models {
		models = append(models, display)
	}
	sort.Strings(models)
	return RosterView{
		NumAIs:        r.cfg.Conversation.NumAIs,
		MaxIterations: r.cfg.Conversation.MaxIterations,
		PromptPair:    r.cfg.Conversation.PromptPair,
		PromptPairs:   r.cfg.PromptPairNames(),
		TurnDelay:     r.cfg.Conversation.TurnDelay,
		Participants:  append([]string(nil), r.cfg.Participants...),
		Models:        models,
	}
}
