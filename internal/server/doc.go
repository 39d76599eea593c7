// 版权所有 2024 Liminal Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 server 提供 HTTP 服务器生命周期管理，支持非阻塞启动与优雅关闭。

# 核心类型

  - Manager：封装 net/http.Server 与 net.Listener，提供
    Start/Run/Shutdown。Run 阻塞到 ctx 结束或服务异常，
    便于在 errgroup 中同时运行 API 与指标两个服务。
  - Config：监听地址、请求头读取超时、写超时、空闲超时、
    最大请求头大小与优雅关闭超时。写超时默认为 0，
    以免截断 websocket 长连接。
*/
package server
