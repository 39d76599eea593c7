// 版权所有 2024 Liminal Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 observability 为每一次参与者发言提供 OpenTelemetry 追踪与指标，
以及按后端/模型的成本核算。

# 核心接口

  - Metrics：发言级 Span（llm.turn）与计数器、延迟直方图、
    成本直方图、空回复降级计数。使用全局 Provider，
    未配置 SDK 时全部退化为 no-op。
  - CostCalculator：backend:model 价格表，带日期后缀的模型 ID
    按最长前缀命中。
  - CostTracker：会话级累计，用于状态接口展示。
*/
package observability
