/*
Package replicate 通过 Replicate Predictions API 调用托管模型（DeepSeek 等）。

创建预测时携带 "Prefer: wait"，未完成时按 PollInterval 轮询 urls.get，
直到 succeeded / failed / canceled。输出 token 数组被拼接为完整回复，
KeepReasoning 关闭时去除 <think> 段。
*/
package replicate
