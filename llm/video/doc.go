// 版权所有 2024 Liminal Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 video 提供文本到视频的生成能力，当前适配 OpenAI Sora（sora-2 / sora-2-pro）。

# 核心接口

  - Generator — 视频生成的统一抽象，包含 Name() 与 Generate() 方法。
  - GenerateRequest / GenerateResult — 生成请求与已下载视频的结果。
  - SoraProvider — 基于 OpenAI Videos API 的实现。

# 生成流程

 1. POST /v1/videos 创建任务（model、prompt、seconds、size）。
 2. 按 PollInterval 轮询 GET /v1/videos/{id}，状态依次为 queued、in_progress，
    最终 completed 或 failed。
 3. GET /v1/videos/{id}/content 下载到 OutputDir/<id>.mp4。

整个流程受 MaxWait 限制。
*/
package video
