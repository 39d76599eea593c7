// Copyright 2026 Liminal Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
# 概述

包 gemini 通过 google.golang.org/genai SDK 提供 Google Gemini 的 Provider 适配。

# 核心结构体

  - GeminiProvider — 惰性创建 genai.Client，实现 llm.Provider
  - ConvertTurns — 归一化轮次到 genai.Content 的转换（assistant → model，图片 → inline data）

# 支持能力

  - Models.GenerateContent（同步）
  - Models.GenerateContentStream（流式）
  - 系统提示通过 SystemInstruction 传递
*/
package gemini
