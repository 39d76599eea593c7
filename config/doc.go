// 版权所有 2024 Liminal Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

// Package config 提供 Liminal 的配置加载。
//
// 加载顺序为默认值、YAML 文件、.env、兼容环境变量（OPENAI_API_KEY、
// SORA_MODEL、TURN_DELAY 等）、LIMINAL_ 前缀环境变量，最后运行验证器。
package config
