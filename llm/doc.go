// 版权所有 2024 Liminal Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 llm 定义模型接入层的公共契约：归一化请求、响应、流式增量与 Provider 接口。

# 概述

调度器把每个参与者的一次发言归一化为 [ChatRequest]：一条系统提示加上
按顺序交替的 user/assistant 轮次。各服务商适配器（见 llm/providers 子包）
实现 [Provider]，路由器（llm/router）按模型名选择后端并把结果包装为 [Result]。

# 核心类型

  - [ChatRequest]：模型 ID、显示名、系统提示、轮次、生成参数与超时
  - [ChatResponse] / [StreamChunk]：同步回复与流式增量
  - [Provider]：Completion / Stream / HealthCheck / Name / SupportsStreaming
  - [Participant]：一轮中的发言方（AI-<n>、模型、系统提示）
  - [Result]：一次发言的最终结果，视频失败等情况下 Role 为 system
*/
package llm
