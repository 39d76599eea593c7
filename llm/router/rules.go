package router

import (
	"strings"

	"github.com/BaSui01/liminal/llm"
)

// Backend 标识一次发言最终落到的后端
type Backend string

const (
	BackendVideo      Backend = "video"
	BackendAnthropic  Backend = "anthropic"
	BackendOpenAI     Backend = "openai"
	BackendGemini     Backend = "gemini"
	BackendReplicate  Backend = "replicate"
	BackendOpenRouter Backend = "openrouter"
)

// MatchKind 规则的匹配方式
type MatchKind string

const (
	MatchExact           MatchKind = "exact"            // 模型 ID 完全相等
	MatchPrefix          MatchKind = "prefix"           // 模型 ID 前缀
	MatchContains        MatchKind = "contains"         // 模型 ID（小写）包含
	MatchDisplayContains MatchKind = "display_contains" // 显示名（小写）包含
)

// Rule 路由规则，Values 中任意一个命中即匹配
type Rule struct {
	Kind    MatchKind
	Values  []string
	Backend Backend
}

func (r Rule) matches(p llm.Participant) bool {
	for _, v := range r.Values {
		switch r.Kind {
		case MatchExact:
			if p.ModelID == v {
				return true
			}
		case MatchPrefix:
			if strings.HasPrefix(p.ModelID, v) {
				return true
			}
		case MatchContains:
			if strings.Contains(strings.ToLower(p.ModelID), v) {
				return true
			}
		case MatchDisplayContains:
			if strings.Contains(strings.ToLower(p.ModelDisplay), v) {
				return true
			}
		}
	}
	return false
}

// DefaultRules 返回内置的路由顺序
func DefaultRules() []Rule {
	return []Rule{
		{Kind: MatchExact, Values: []string{"sora-2", "sora-2-pro"}, Backend: BackendVideo},
		{Kind: MatchContains, Values: []string{"claude"}, Backend: BackendAnthropic},
		{Kind: MatchPrefix, Values: []string{"gpt-", "o1", "o3"}, Backend: BackendOpenAI},
		{Kind: MatchContains, Values: []string{"gemini"}, Backend: BackendGemini},
		{Kind: MatchDisplayContains, Values: []string{"deepseek"}, Backend: BackendReplicate},
	}
}

// RuleRouter 按顺序匹配规则，第一条命中的规则胜出。
// 与按前缀长度排序不同，这里顺序本身就是优先级。
type RuleRouter struct {
	rules    []Rule
	fallback Backend
}

// NewRuleRouter 创建规则路由器；rules 为空时使用 DefaultRules
func NewRuleRouter(rules []Rule) *RuleRouter {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	copied := make([]Rule, len(rules))
	copy(copied, rules)
	return &RuleRouter{rules: copied, fallback: BackendOpenRouter}
}

// Resolve 返回参与者应使用的后端；没有规则命中时返回 OpenRouter
func (r *RuleRouter) Resolve(p llm.Participant) Backend {
	if r == nil {
		return BackendOpenRouter
	}
	for _, rule := range r.rules {
		if rule.matches(p) {
			return rule.Backend
		}
	}
	return r.fallback
}

// GetRules 获取所有路由规则（用于调试）
func (r *RuleRouter) GetRules() []Rule {
	return r.rules
}
