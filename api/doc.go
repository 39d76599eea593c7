// Package api 定义 Liminal HTTP API 的请求与响应类型。
//
// # API Overview
//
// Liminal 通过 RESTful API 暴露对话调度器：
//   - 查看活动对话与调度状态
//   - 提交输入、无输入续轮
//   - 创建 rabbithole / fork 分支、回到主线
//   - 运行时修改参与者与预算
//   - 通过 websocket 订阅流式展示事件
//
// # Base URL
//
//	http://localhost:8080
//
// # Routes
//
//	GET  /api/v1/conversation
//	POST /api/v1/conversation/input
//	POST /api/v1/conversation/continue
//	GET  /api/v1/branches
//	POST /api/v1/branches
//	POST /api/v1/branches/main
//	GET  /api/v1/settings
//	PUT  /api/v1/settings
//	GET  /api/v1/stream
//	GET  /health
package api
