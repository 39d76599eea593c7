// Copyright (c) Liminal Authors.
// Licensed under the MIT License.

/*
Package main 提供 Liminal 多模型对话程序入口。

# 概述

cmd/liminal 组装配置、日志、遥测、模型路由器与对话调度器，
提供两种运行方式：HTTP/WebSocket 服务（serve）与终端交互（run）。

# 核心类型

  - App             — 组件装配与生命周期（Serve / RunConsole / Close）
  - Console         — 逐行读取终端输入并驱动调度器
  - ConsoleDisplay  — 把流式回复写到终端
  - Middleware      — HTTP 中间件函数签名 func(http.Handler) http.Handler

# 主要能力

  - 子命令：serve、run、version、health
  - 终端命令：/rabbithole、/fork、/main、/continue、/quit、/help
  - 中间件链：Recovery、RequestID、SecurityHeaders、RequestLogger、
    MetricsMiddleware、OTelTracing、CORS、RateLimiter（基于 IP）
  - Metrics 服务器：独立端口暴露 /metrics（Prometheus）
  - 优雅关闭：信号监听后停止调度器与 HTTP 服务，再关闭 worker pool 与遥测
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
