// 版权所有 2024 Liminal Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 router 把一次参与者发言分派给具体后端。

# 路由顺序

RuleRouter 按声明顺序匹配，第一条命中的规则胜出：
sora-2/sora-2-pro 走视频，模型 ID 含 claude 走 Anthropic，
gpt-/o1/o3 前缀走 OpenAI，含 gemini 走 Gemini，
显示名含 deepseek 走 Replicate，其余全部走 OpenRouter。

# 调用

Router.Call 在回调非空且后端支持流式时消费 Stream，否则调用 Completion。
空回复按后端替换为固定文本，非 *types.Error 的错误统一包装为
PROVIDER_ERROR。视频路由从不返回错误，失败以 system 角色的结果表示。
*/
package router
