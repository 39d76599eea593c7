// Copyright (c) Liminal Authors.
// Licensed under the MIT License.

/*
Package handlers 提供 liminal HTTP API 的请求处理器实现。

# 概述

handlers 包实现对话调度器对外的 HTTP 与 websocket 端点，
包括输入提交、分支管理、运行时设置、事件流以及统一的响应/错误处理。
所有 Handler 均遵循标准 net/http 接口。

# 核心类型

  - ConversationHandler — 活动对话视图、输入、续轮与分支
  - SettingsHandler     — 参与者、轮数与提示组的运行时设置
  - StreamHandler       — websocket 展示事件流
  - HealthHandler       — 健康检查（/health, /ready, /version）
  - Response            — 统一 JSON 响应结构（success + data + error + timestamp）
  - ResponseWriter      — 包装 http.ResponseWriter 以捕获状态码与字节数

# 主要能力

  - ErrorCode → HTTP 状态码映射；一轮进行中提交的输入排队并返回 202
  - DecodeJSONBody（8 MB 限制 + 严格模式），容纳 base64 图片输入
  - 可扩展健康检查：RegisterCheck 注册自定义 HealthCheck 实现
*/
package handlers
