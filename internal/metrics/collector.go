// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器
type Collector struct {
	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpResponseSize    *prometheus.HistogramVec

	// 发言指标
	turnsTotal         *prometheus.CounterVec
	turnDuration       *prometheus.HistogramVec
	firstChunkLatency  *prometheus.HistogramVec
	streamChunks       *prometheus.CounterVec
	promptTokens       *prometheus.HistogramVec
	turnsInFlight      prometheus.Gauge
	roundsTotal        *prometheus.CounterVec
	queuedCommands     prometheus.Gauge
	sideEffectsTotal   *prometheus.CounterVec
	poolTasksCompleted *prometheus.CounterVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器，注册到默认 Registry
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	return NewCollectorWith(prometheus.DefaultRegisterer, namespace, logger)
}

// NewCollectorWith 创建指标收集器，注册到指定 Registry
func NewCollectorWith(reg prometheus.Registerer, namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// HTTP 指标
	c.httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	c.httpResponseSize = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	// 发言指标
	c.turnsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Total number of participant turns",
		},
		[]string{"participant", "model", "status"},
	)

	c.turnDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "Participant turn duration in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"participant", "model"},
	)

	c.firstChunkLatency = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_first_chunk_seconds",
			Help:      "Time from dispatch to the first streamed chunk",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"participant", "model"},
	)

	c.streamChunks = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_chunks_total",
			Help:      "Total number of streamed chunks",
		},
		[]string{"participant"},
	)

	c.promptTokens = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_prompt_tokens",
			Help:      "Estimated prompt tokens per turn",
			Buckets:   prometheus.ExponentialBuckets(256, 2, 10),
		},
		[]string{"model"},
	)

	c.turnsInFlight = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "turns_in_flight",
			Help:      "Number of turns currently dispatched",
		},
	)

	c.roundsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_total",
			Help:      "Total number of completed rounds",
		},
		[]string{"branch_kind", "trigger"}, // trigger: input, continue, auto
	)

	c.queuedCommands = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queued_commands",
			Help:      "Commands waiting for the current round to close",
		},
	)

	c.sideEffectsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "side_effects_total",
			Help:      "Total number of media side effects",
		},
		[]string{"kind", "status"}, // kind: image, video
	)

	c.poolTasksCompleted = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pool_tasks_total",
			Help:      "Tasks finished by the worker pool",
		},
		[]string{"task", "status"},
	)

	c.logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🎯 HTTP 指标记录
// =============================================================================

// RecordHTTPRequest 记录 HTTP 请求
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration, responseSize int64) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	c.httpResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
}

// =============================================================================
// 🤖 发言指标记录
// =============================================================================

// TurnStarted 标记一次发言开始
func (c *Collector) TurnStarted() {
	c.turnsInFlight.Inc()
}

// RecordTurn 记录一次发言结束；status 为 ok 或 error
func (c *Collector) RecordTurn(participant, model, status string, duration time.Duration) {
	c.turnsInFlight.Dec()
	c.turnsTotal.WithLabelValues(participant, model, status).Inc()
	c.turnDuration.WithLabelValues(participant, model).Observe(duration.Seconds())
}

// RecordFirstChunk 记录首个流式分片的延迟
func (c *Collector) RecordFirstChunk(participant, model string, latency time.Duration) {
	c.firstChunkLatency.WithLabelValues(participant, model).Observe(latency.Seconds())
}

// RecordChunk 记录一个流式分片
func (c *Collector) RecordChunk(participant string) {
	c.streamChunks.WithLabelValues(participant).Inc()
}

// RecordPromptTokens 记录估算的提示 token 数
func (c *Collector) RecordPromptTokens(model string, tokens int) {
	c.promptTokens.WithLabelValues(model).Observe(float64(tokens))
}

// RecordRound 记录一轮结束
func (c *Collector) RecordRound(branchKind, trigger string) {
	if branchKind == "" {
		branchKind = "main"
	}
	c.roundsTotal.WithLabelValues(branchKind, trigger).Inc()
}

// SetQueuedCommands 设置排队中的命令数
func (c *Collector) SetQueuedCommands(n int) {
	c.queuedCommands.Set(float64(n))
}

// RecordSideEffect 记录一次图片或视频副作用
func (c *Collector) RecordSideEffect(kind string, err error) {
	c.sideEffectsTotal.WithLabelValues(kind, outcome(err)).Inc()
}

// RecordPoolTask 记录 worker pool 中一个任务的结束，签名与 pool.Pool.OnDone 一致
func (c *Collector) RecordPoolTask(task string, err error, _ time.Duration) {
	c.poolTasksCompleted.WithLabelValues(task, outcome(err)).Inc()
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// statusCode 将 HTTP 状态码转换为字符串
func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
