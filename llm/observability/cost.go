package observability

import (
	"strings"
	"sync"
)

// CostCalculator 成本计算器
type CostCalculator struct {
	mu     sync.RWMutex
	prices map[string]*ModelPrice // key: backend:model
}

// ModelPrice 模型价格
type ModelPrice struct {
	Backend     string
	Model       string
	PriceInput  float64 // USD per 1K tokens
	PriceOutput float64 // USD per 1K tokens
}

// NewCostCalculator 创建成本计算器
func NewCostCalculator() *CostCalculator {
	c := &CostCalculator{
		prices: make(map[string]*ModelPrice),
	}
	c.loadDefaultPrices()
	return c
}

// loadDefaultPrices 加载默认价格（可从配置覆盖）
func (c *CostCalculator) loadDefaultPrices() {
	defaults := []ModelPrice{
		// OpenAI
		{Backend: "openai", Model: "gpt-4o", PriceInput: 0.0025, PriceOutput: 0.01},
		{Backend: "openai", Model: "gpt-4o-mini", PriceInput: 0.00015, PriceOutput: 0.0006},
		{Backend: "openai", Model: "gpt-4.1", PriceInput: 0.002, PriceOutput: 0.008},
		{Backend: "openai", Model: "o3", PriceInput: 0.002, PriceOutput: 0.008},
		// Anthropic
		{Backend: "anthropic", Model: "claude-opus-4", PriceInput: 0.015, PriceOutput: 0.075},
		{Backend: "anthropic", Model: "claude-sonnet-4", PriceInput: 0.003, PriceOutput: 0.015},
		{Backend: "anthropic", Model: "claude-3-5-haiku", PriceInput: 0.0008, PriceOutput: 0.004},
		// Gemini
		{Backend: "gemini", Model: "gemini-2.5-pro", PriceInput: 0.00125, PriceOutput: 0.01},
		{Backend: "gemini", Model: "gemini-2.5-flash", PriceInput: 0.0003, PriceOutput: 0.0025},
	}

	for _, p := range defaults {
		c.SetPrice(p.Backend, p.Model, p.PriceInput, p.PriceOutput)
	}
}

// SetPrice 设置模型价格
func (c *CostCalculator) SetPrice(backend, model string, priceInput, priceOutput float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.prices[backend+":"+model] = &ModelPrice{
		Backend:     backend,
		Model:       model,
		PriceInput:  priceInput,
		PriceOutput: priceOutput,
	}
}

// GetPrice 获取模型价格。精确匹配失败时取最长的前缀匹配，
// 使带日期后缀的模型 ID（claude-sonnet-4-20250514）也能命中。
func (c *CostCalculator) GetPrice(backend, model string) *ModelPrice {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if p, ok := c.prices[backend+":"+model]; ok {
		return p
	}
	var best *ModelPrice
	for _, p := range c.prices {
		if p.Backend != backend || !strings.HasPrefix(model, p.Model) {
			continue
		}
		if best == nil || len(p.Model) > len(best.Model) {
			best = p
		}
	}
	return best
}

// Calculate 计算成本，未知模型返回 0
func (c *CostCalculator) Calculate(backend, model string, tokensInput, tokensOutput int) float64 {
	price := c.GetPrice(backend, model)
	if price == nil {
		return 0
	}

	inputCost := float64(tokensInput) / 1000 * price.PriceInput
	outputCost := float64(tokensOutput) / 1000 * price.PriceOutput

	return inputCost + outputCost
}

// UpdatePrices 批量更新价格（从配置）
func (c *CostCalculator) UpdatePrices(prices []ModelPrice) {
	for _, p := range prices {
		c.SetPrice(p.Backend, p.Model, p.PriceInput, p.PriceOutput)
	}
}

// CostSummary 成本汇总
type CostSummary struct {
	TotalCost       float64 `json:"total_cost"`
	TotalTokens     int     `json:"total_tokens"`
	TokensInput     int     `json:"tokens_input"`
	TokensOutput    int     `json:"tokens_output"`
	RequestCount    int     `json:"request_count"`
	AvgCostPerReq   float64 `json:"avg_cost_per_req"`
	AvgTokensPerReq float64 `json:"avg_tokens_per_req"`
}

// CostTracker 成本追踪器（会话级别）
type CostTracker struct {
	calculator *CostCalculator
	mu         sync.Mutex
	summary    CostSummary
}

// NewCostTracker 创建成本追踪器
func NewCostTracker(calculator *CostCalculator) *CostTracker {
	if calculator == nil {
		calculator = NewCostCalculator()
	}
	return &CostTracker{
		calculator: calculator,
	}
}

// Track 追踪一次发言的成本
func (t *CostTracker) Track(backend, model string, tokensInput, tokensOutput int) float64 {
	cost := t.calculator.Calculate(backend, model, tokensInput, tokensOutput)

	t.mu.Lock()
	defer t.mu.Unlock()

	t.summary.TotalCost += cost
	t.summary.TokensInput += tokensInput
	t.summary.TokensOutput += tokensOutput
	t.summary.TotalTokens += tokensInput + tokensOutput
	t.summary.RequestCount++

	t.summary.AvgCostPerReq = t.summary.TotalCost / float64(t.summary.RequestCount)
	t.summary.AvgTokensPerReq = float64(t.summary.TotalTokens) / float64(t.summary.RequestCount)

	return cost
}

// Summary 获取成本汇总
func (t *CostTracker) Summary() CostSummary {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.summary
}

// Reset 重置统计
func (t *CostTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.summary = CostSummary{}
}
