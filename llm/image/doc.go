// 版权所有 2024 Liminal Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 image 提供文生图能力，用于根据 AI 回复自动生成配图。

# 核心接口

  - Provider：图像生成提供者接口，包含 Generate 与 Name。
  - OpenAIProvider：OpenAI Images API（/v1/images/generations），
    同时支持 b64_json 与 url 两种返回。
  - GeminiProvider：通过 genai SDK 调用 Gemini 原生图像模型，读取 inline 数据。
  - Generator：调用 Provider 并将首张图像保存为
    images/generated_<时间戳>.<扩展名>，返回 Result{Success, Path | Error}。

# 提示构造

PromptFromResponse 截取回复前 300 个字符（去首尾空白），
并在前面加上 ArtistPreamble 艺术指引。
*/
package image
