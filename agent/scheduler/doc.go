// 版权所有 2024 Liminal Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
Package scheduler 按轮次调度多个 AI 参与者的发言。

一轮按任务列表顺序执行：参与者 k 完成后才派发参与者 k+1，第一个之后的每个
参与者前等待固定间隔。每个参与者的请求在派发前一刻从对话树重新构建，因此能看到
本轮前面参与者的回复。

所有对话修改都发生在 Run 所在的单个协程上。发言在 internal/pool 的 worker 上
执行，经由每个任务独有的分片通道与一次性完成通道通知循环。进行中到达的命令排队，
在本轮结束时执行并取代自动续轮。

展示通过 Display 接口输出；Hub 把展示事件扇出给 websocket 等订阅者。
*/
package scheduler
