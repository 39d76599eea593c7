// Copyright (c) Liminal Authors.
// Licensed under the MIT License.

/*
Package types 提供 Liminal 的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 agent、llm、api 等上层模块
提供统一的类型契约：对话消息、用户输入与结构化错误。

# 核心类型

  - Message           — 对话消息（Role、Content、AIName、Model、Hidden、分支标记、图像路径）
  - Content           — 纯文本或有序的 text/image 片段列表，JSON 形态与两者一一对应
  - ContentPart       — 单个内容片段（text 或 base64 image）
  - UserInput         — 用户输入：文本或带图像附件的结构化输入
  - Error / ErrorCode — 结构化错误体系，含 HTTP 状态码、Retryable、Provider 标记

# 主要能力

  - 消息构造：NewUserMessage / NewAssistantMessage / NewSystemMessage
  - 输入解析：ParseUserInput 接受 JSON 字符串或对象
  - 错误工具链：NewError / AsError / IsCode / GetErrorCode / IsRetryable
  - Context 传播：WithBranchID / BranchID / WithParticipant / Participant
*/
package types
