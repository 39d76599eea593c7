// 版权所有 2024 Liminal Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的进程指标采集。

# 核心类型

  - Collector：通过 promauto 注册的向量指标，按 namespace 隔离。
    NewCollector 注册到默认 Registry，NewCollectorWith 注册到指定 Registry。

# 主要能力

  - HTTP 指标：请求总数、耗时、响应体大小，状态码归类为 2xx/3xx/4xx/5xx。
  - 发言指标：按 participant/model/status 计数、发言耗时、首分片延迟、
    流式分片数、估算提示 token、进行中的发言数。
  - 调度指标：按分支类型与触发方式统计轮次，排队命令数。
  - 副作用与 worker pool 任务的成功/失败计数。
*/
package metrics
