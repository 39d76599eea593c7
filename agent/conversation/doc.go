// 版权所有 2024 Liminal Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 conversation 提供分支对话树、消息归一化与分支提示词策略。

# 概述

conversation 解决三个核心问题：一是如何维护主对话与 rabbithole /
fork 分支各自的消息历史；二是如何把某个分支的原始消息转换为面向
Provider 的有序请求（系统提示 + user/assistant 轮次）；三是在分支
刚创建的若干轮内，用分支指令替换参与者配置的系统提示词。

# 核心类型

  - Tree：分支映射的唯一所有者，根为 "main"
  - Branch：单条对话时间线（id / type / anchor_text / parent_id）
  - BranchContext：从最新分支标记解析出的类型、锚点与标记后回复数

# 主要能力

  - 分支创建：CreateBranch 支持 rabbithole（复制全部历史）与
    fork（截断到锚点所在消息），并追加唯一的分支标记消息
  - 追加与去重：Append 拒绝空内容；AppendContinuation 与
    DropDuplicateTail 仅在末尾两条内容完全相同时弹出最后一条
  - 计数：CountResponsesSince 统计最新标记之后的 assistant 消息数
  - 归一化：Normalize 负责说话人标注、去重、图片片段保序，
    并保证请求以 user 轮次结尾
  - 策略：ResolveSystemPrompt 在 rabbithole 前两次回复、
    fork 首次回复时替换系统提示词

# 与其他包协同

Tree 由 agent/scheduler 独占写入；归一化输出 llm.ChatRequest，
交给 llm/router 分发到具体 Provider。
*/
package conversation
