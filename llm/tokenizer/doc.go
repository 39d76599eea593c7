// Package tokenizer 估算请求的提示 token 数，
// 优先使用 tiktoken 精确计数，编码表不可用时退回 CJK 感知的字符估算器。
package tokenizer
