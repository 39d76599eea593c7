// Copyright 2026 Liminal Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
# 概述

包 providers 提供各模型服务商适配器共享的配置与辅助函数。
子包 anthropic、gemini、openaicompat、replicate 依赖本包完成
请求转换、错误映射与 HTTP 客户端构造。

# 核心类型

  - BaseProviderConfig — 所有 Provider 共享的基础配置（APIKey、BaseURL、Model、Timeout）
  - ClaudeConfig / GeminiConfig / OpenAIConfig / OpenRouterConfig / ReplicateConfig
  - OpenAICompat* 系列 — OpenAI 兼容 Chat Completions 的请求/响应结构体

# 核心函数

  - MapHTTPError — 将 HTTP 状态码映射为 types.Error（含 Retryable 标记）
  - TransportError / DecodeError — 网络与解码失败的统一包装
  - ConvertRequestToOpenAI / ConvertContentToOpenAI — 消息与多模态内容转换
  - ToLLMChatResponse — OpenAI 兼容响应到 llm.ChatResponse 的转换
  - ChooseModel / ChooseMaxTokens — 请求值优先，其次默认值
*/
package providers
