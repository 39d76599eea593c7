package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/BaSui01/liminal/llm"

// Metrics 发言级指标收集器（OpenTelemetry）
type Metrics struct {
	tracer trace.Tracer
	meter  metric.Meter
	// 柜台
	requestTotal  metric.Int64Counter
	tokenTotal    metric.Int64Counter
	errorTotal    metric.Int64Counter
	fallbackTotal metric.Int64Counter
	// 直方图
	requestDuration metric.Float64Histogram
	costPerRequest  metric.Float64Histogram
	// 高地语
	activeRequests metric.Int64UpDownCounter
}

// NewMetrics 创建指标收集器，使用全局 TracerProvider / MeterProvider
func NewMetrics() (*Metrics, error) {
	tracer := otel.Tracer(instrumentationName)
	meter := otel.Meter(instrumentationName)

	m := &Metrics{
		tracer: tracer,
		meter:  meter,
	}

	var err error

	m.requestTotal, err = meter.Int64Counter("llm.turn.total",
		metric.WithDescription("Total number of participant turns dispatched"),
		metric.WithUnit("{turn}"))
	if err != nil {
		return nil, err
	}

	m.tokenTotal, err = meter.Int64Counter("llm.token.total",
		metric.WithDescription("Total tokens consumed"),
		metric.WithUnit("{token}"))
	if err != nil {
		return nil, err
	}

	m.errorTotal, err = meter.Int64Counter("llm.error.total",
		metric.WithDescription("Total number of failed turns"),
		metric.WithUnit("{error}"))
	if err != nil {
		return nil, err
	}

	// 空回复替换为固定文本
	m.fallbackTotal, err = meter.Int64Counter("llm.fallback.total",
		metric.WithDescription("Empty replies replaced by fallback text"),
		metric.WithUnit("{fallback}"))
	if err != nil {
		return nil, err
	}

	m.requestDuration, err = meter.Float64Histogram("llm.turn.duration",
		metric.WithDescription("Turn duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.5, 1, 2.5, 5, 10, 30, 60, 120, 300))
	if err != nil {
		return nil, err
	}

	m.costPerRequest, err = meter.Float64Histogram("llm.cost.per_turn",
		metric.WithDescription("Estimated cost per turn in USD"),
		metric.WithUnit("USD"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1))
	if err != nil {
		return nil, err
	}

	m.activeRequests, err = meter.Int64UpDownCounter("llm.turn.active",
		metric.WithDescription("Number of turns in flight"),
		metric.WithUnit("{turn}"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RequestAttrs 请求属性
type RequestAttrs struct {
	Backend     string
	Model       string
	Participant string
	Branch      string
	Streaming   bool
}

// ResponseAttrs 响应属性
type ResponseAttrs struct {
	Status           string
	ErrorCode        string
	TokensPrompt     int
	TokensCompletion int
	Cost             float64
	Duration         time.Duration
	Fallback         bool
}

// StartRequest 开始一次发言的追踪
func (m *Metrics) StartRequest(ctx context.Context, attrs RequestAttrs) (context.Context, trace.Span) {
	ctx, span := m.tracer.Start(ctx, "llm.turn",
		trace.WithAttributes(
			attribute.String("llm.backend", attrs.Backend),
			attribute.String("llm.model", attrs.Model),
			attribute.String("liminal.participant", attrs.Participant),
			attribute.String("liminal.branch", attrs.Branch),
			attribute.Bool("llm.streaming", attrs.Streaming),
		))

	m.activeRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("backend", attrs.Backend),
			attribute.String("model", attrs.Model)))

	return ctx, span
}

// EndRequest 结束追踪并记录指标
func (m *Metrics) EndRequest(ctx context.Context, span trace.Span, req RequestAttrs, resp ResponseAttrs) {
	defer span.End()

	commonAttrs := []attribute.KeyValue{
		attribute.String("backend", req.Backend),
		attribute.String("model", req.Model),
		attribute.String("participant", req.Participant),
		attribute.String("status", resp.Status),
	}

	m.activeRequests.Add(ctx, -1,
		metric.WithAttributes(
			attribute.String("backend", req.Backend),
			attribute.String("model", req.Model)))

	m.requestTotal.Add(ctx, 1, metric.WithAttributes(commonAttrs...))
	m.requestDuration.Record(ctx, resp.Duration.Seconds(), metric.WithAttributes(commonAttrs...))

	totalTokens := int64(resp.TokensPrompt + resp.TokensCompletion)
	if totalTokens > 0 {
		m.tokenTotal.Add(ctx, int64(resp.TokensPrompt), metric.WithAttributes(
			attribute.String("backend", req.Backend),
			attribute.String("model", req.Model),
			attribute.String("type", "prompt")))

		m.tokenTotal.Add(ctx, int64(resp.TokensCompletion), metric.WithAttributes(
			attribute.String("backend", req.Backend),
			attribute.String("model", req.Model),
			attribute.String("type", "completion")))
	}

	if resp.Cost > 0 {
		m.costPerRequest.Record(ctx, resp.Cost, metric.WithAttributes(commonAttrs...))
	}

	if resp.ErrorCode != "" {
		m.errorTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("backend", req.Backend),
			attribute.String("model", req.Model),
			attribute.String("error_code", resp.ErrorCode)))

		span.SetAttributes(attribute.String("error.code", resp.ErrorCode))
	}

	if resp.Fallback {
		m.fallbackTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("backend", req.Backend),
			attribute.String("model", req.Model)))
		span.SetAttributes(attribute.Bool("llm.fallback", true))
	}

	span.SetAttributes(
		attribute.String("llm.status", resp.Status),
		attribute.Int("llm.tokens.prompt", resp.TokensPrompt),
		attribute.Int("llm.tokens.completion", resp.TokensCompletion),
		attribute.Float64("llm.cost", resp.Cost),
		attribute.Float64("llm.duration_ms", float64(resp.Duration.Milliseconds())))
}

// Tracer 获取 Tracer
func (m *Metrics) Tracer() trace.Tracer {
	return m.tracer
}
