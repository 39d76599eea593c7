// Copyright 2026 Liminal Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
# 概述

包 claude 提供 Anthropic Claude 系列模型的 Provider 适配实现。
本包将归一化后的 llm.ChatRequest 映射到 Anthropic Messages API（/v1/messages），
处理认证、消息格式与流式响应的协议转换。

# 核心结构体

  - ClaudeProvider — 独立实现 llm.Provider 接口（未嵌入 openaicompat）

# 协议差异

  - 认证使用 x-api-key 请求头（非 Bearer Token）
  - system 提示单独传递到 system 字段
  - 图片以 base64 source 块发送
  - 流式 SSE 事件结构独立（message_start / content_block_delta 等）

# 发送前压缩

CompactTurns 跳过空轮次与 system 轮次，按拼接文本去重；
全部被过滤时补一条 "Connecting..." 用户消息。
*/
package claude
